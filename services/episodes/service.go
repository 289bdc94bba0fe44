// Package episodes scrapes a series page into an ordered list of playable
// episode references. Tokens are lifted verbatim from the page and never
// interpreted here.
package episodes

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"anibridge/internal/upstream"
	"anibridge/models"
	"anibridge/utils/zhtext"

	"github.com/PuerkitoBio/goquery"
)

// ErrPageNotFound is returned when the series page has no recognizable
// content container.
var ErrPageNotFound = errors.New("series page not found")

var (
	// Special episode markers take precedence over any number in the title.
	specialRe = regexp.MustCompile(`(?i)(OVA|OAD|SP|Ep)\.?\s*(\d+(?:\.\d+)?)`)
	// Bracketed numbers: [12], (3), 【4】. Fractions allowed.
	bracketRe = regexp.MustCompile(`[\[(【]\s*(\d+(?:\.\d+)?)\s*[\])】]`)
	// Any bracket/paren group, numeric or not. The bare-number scan runs on
	// the title with these removed, so a resolution tag like (1080P) or a
	// fansub tag like [Anime1] never outranks the episode number.
	groupRe  = regexp.MustCompile(`[\[(【][^\])】]*[\])】]`)
	numberRe = regexp.MustCompile(`\d+(?:\.\d+)?`)
)

// Service fetches and parses series pages.
type Service struct {
	client  *upstream.Client
	baseURL string
	norm    *zhtext.Normalizer
}

// NewService creates an episode discoverer rooted at the origin's base URL.
func NewService(client *upstream.Client, baseURL string, norm *zhtext.Normalizer) *Service {
	return &Service{client: client, baseURL: strings.TrimRight(baseURL, "/"), norm: norm}
}

// List returns the ordered episode references for a series id.
func (s *Service) List(ctx context.Context, id string) ([]models.EpisodeRef, error) {
	url := fmt.Sprintf("%s/?cat=%s", s.baseURL, id)

	resp, err := s.client.Get(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("fetch series page: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != 200 {
		return nil, fmt.Errorf("series page returned status %d", resp.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("parse series page: %w", err)
	}

	main := doc.Find("#main")
	if main.Length() == 0 {
		return nil, ErrPageNotFound
	}

	var eps []models.EpisodeRef
	main.Find("article").Each(func(idx int, art *goquery.Selection) {
		fullTitle := strings.TrimSpace(art.Find("h2.entry-title").First().Text())
		if fullTitle == "" {
			fullTitle = fmt.Sprintf("第 %d 集", idx+1)
		}
		fullTitle = s.norm.Simplify(fullTitle)

		token, _ := art.Find("[data-apireq]").First().Attr("data-apireq")

		eps = append(eps, models.EpisodeRef{
			Index:     idx,
			Title:     ShortLabel(fullTitle),
			FullTitle: fullTitle,
			Token:     token,
		})
	})

	return eps, nil
}

// ShortLabel derives the short display label for an episode title. Rules
// apply in strict priority: a special-episode marker (OVA/OAD/SP/Ep) with a
// number wins, then the last bracketed number, then the last bare number
// outside any bracket group, then the full title unchanged. Bare integers
// below 10 are zero-padded to two digits.
func ShortLabel(fullTitle string) string {
	if m := specialRe.FindStringSubmatch(fullTitle); m != nil {
		return strings.ToUpper(m[1]) + " " + m[2]
	}

	if ms := bracketRe.FindAllStringSubmatch(fullTitle, -1); ms != nil {
		return zeroPad(ms[len(ms)-1][1])
	}

	// Numbers inside non-numeric bracket groups are tags, not episode
	// numbers; drop the groups before scanning.
	if ns := numberRe.FindAllString(groupRe.ReplaceAllString(fullTitle, ""), -1); ns != nil {
		return zeroPad(ns[len(ns)-1])
	}

	return fullTitle
}

func zeroPad(num string) string {
	if strings.Contains(num, ".") || len(num) >= 2 {
		return num
	}
	if v, err := strconv.Atoi(num); err == nil && v < 10 {
		return "0" + num
	}
	return num
}
