// Package zhtext converts traditional-script titles to simplified form and
// derives the phonetic search keys used by the catalog.
package zhtext

import (
	"fmt"
	"strings"

	"github.com/longbridgeapp/opencc"
	"github.com/mozillazg/go-pinyin"
	"golang.org/x/text/width"
)

// Normalizer wraps an OpenCC converter plus pinyin arguments. Safe for
// concurrent use.
type Normalizer struct {
	cc   *opencc.OpenCC
	args pinyin.Args
}

// NewNormalizer loads the traditional-to-simplified conversion dictionaries.
func NewNormalizer() (*Normalizer, error) {
	cc, err := opencc.New("t2s")
	if err != nil {
		return nil, fmt.Errorf("load t2s converter: %w", err)
	}

	args := pinyin.NewArgs()
	args.Style = pinyin.FirstLetter
	// Keep non-Chinese runes verbatim so latin titles stay searchable.
	args.Fallback = func(r rune, _ pinyin.Args) []string {
		return []string{string(r)}
	}

	return &Normalizer{cc: cc, args: args}, nil
}

// Simplify converts traditional script to simplified script. The input is
// returned unchanged if conversion fails.
func (n *Normalizer) Simplify(s string) string {
	out, err := n.cc.Convert(s)
	if err != nil {
		return s
	}
	return out
}

// Initials returns the lowercase first-letter romanization of each syllable.
func (n *Normalizer) Initials(s string) string {
	var b strings.Builder
	for _, syllable := range pinyin.Pinyin(s, n.args) {
		if len(syllable) > 0 {
			b.WriteString(syllable[0])
		}
	}
	return strings.ToLower(b.String())
}

// SearchKey builds the catalog search key: the simplified title, the original
// title and the phonetic initials joined with '|', lowercased and folded to
// half width so full-width latin in titles still matches ascii queries.
func (n *Normalizer) SearchKey(simplified, original string) string {
	key := simplified + "|" + original + "|" + n.Initials(simplified)
	return FoldQuery(key)
}

// FoldQuery normalizes a search query the same way search keys are built.
func FoldQuery(s string) string {
	return strings.ToLower(width.Fold.String(s))
}
