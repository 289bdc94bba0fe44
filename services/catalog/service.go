// Package catalog ingests the upstream catalog feed into an immutable,
// query-ready snapshot. The snapshot is replaced by a single atomic pointer
// swap on every successful sync; a failed sync leaves the previous snapshot
// authoritative.
package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"html"
	"io"
	"log"
	"net/url"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"anibridge/internal/upstream"
	"anibridge/models"
	"anibridge/utils/zhtext"
)

var (
	catRe    = regexp.MustCompile(`cat=(\d+)`)
	anchorRe = regexp.MustCompile(`>([^<]+)<`)
)

// Snapshot is one immutable generation of the catalog, ordered by numeric id
// descending (newest first).
type Snapshot struct {
	Items []models.CatalogItem
	byID  map[string]int
}

// NewSnapshot builds a snapshot from normalized items, sorting by numeric id
// descending and indexing by id.
func NewSnapshot(items []models.CatalogItem) *Snapshot {
	sorted := make([]models.CatalogItem, len(items))
	copy(sorted, items)
	sort.SliceStable(sorted, func(i, j int) bool {
		a, _ := strconv.Atoi(sorted[i].ID)
		b, _ := strconv.Atoi(sorted[j].ID)
		return a > b
	})

	byID := make(map[string]int, len(sorted))
	for i, item := range sorted {
		byID[item.ID] = i
	}
	return &Snapshot{Items: sorted, byID: byID}
}

// Get returns the catalog item for an id.
func (s *Snapshot) Get(id string) (models.CatalogItem, bool) {
	if s == nil {
		return models.CatalogItem{}, false
	}
	i, ok := s.byID[id]
	if !ok {
		return models.CatalogItem{}, false
	}
	return s.Items[i], true
}

// IDs returns the set of catalog ids in snapshot order.
func (s *Snapshot) IDs() []string {
	if s == nil {
		return nil
	}
	ids := make([]string, len(s.Items))
	for i, item := range s.Items {
		ids[i] = item.ID
	}
	return ids
}

// Search filters items whose search key contains the (already folded)
// keyword. An empty keyword returns the full catalog.
func (s *Snapshot) Search(keyword string) []models.CatalogItem {
	if s == nil {
		return nil
	}
	if keyword == "" {
		return s.Items
	}
	var out []models.CatalogItem
	for _, item := range s.Items {
		if strings.Contains(item.SearchKey, keyword) {
			out = append(out, item)
		}
	}
	return out
}

// Service fetches and holds the current catalog snapshot.
type Service struct {
	client  *upstream.Client
	feedURL string
	marker  string
	norm    *zhtext.Normalizer
	current atomic.Pointer[Snapshot]
}

// NewService creates a catalog service reading from the given feed URL. The
// feed host doubles as the marker that attributes malformed rows to the
// origin.
func NewService(client *upstream.Client, feedURL string, norm *zhtext.Normalizer) *Service {
	s := &Service{client: client, feedURL: feedURL, norm: norm}
	if u, err := url.Parse(feedURL); err == nil {
		s.marker = u.Hostname()
	}
	s.current.Store(NewSnapshot(nil))
	return s
}

// Current returns the latest snapshot. Never nil.
func (s *Service) Current() *Snapshot {
	return s.current.Load()
}

// Sync fetches the feed, rebuilds the snapshot and swaps it in. On any
// network or parse failure the previous snapshot is kept and an error is
// returned.
func (s *Service) Sync(ctx context.Context) (*Snapshot, error) {
	target := fmt.Sprintf("%s?_=%d", s.feedURL, time.Now().UnixMilli())

	resp, err := s.client.Get(ctx, target)
	if err != nil {
		return nil, fmt.Errorf("fetch catalog feed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != 200 {
		return nil, fmt.Errorf("catalog feed returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read catalog feed: %w", err)
	}

	items, err := s.parseFeed(body)
	if err != nil {
		return nil, err
	}

	snapshot := NewSnapshot(items)
	s.current.Store(snapshot)
	log.Printf("[catalog] synced %d items", len(snapshot.Items))
	return snapshot, nil
}

// parseFeed decodes the heterogeneous feed: each row is a 5-element tuple
// where the id slot may hold a real id or the title slot may be a raw HTML
// fragment that still carries cat=<id> and the title as anchor text. Rows
// with no recoverable id are dropped.
func (s *Service) parseFeed(body []byte) ([]models.CatalogItem, error) {
	var rows []json.RawMessage
	if err := json.Unmarshal(body, &rows); err != nil {
		return nil, fmt.Errorf("parse catalog feed: %w", err)
	}

	items := make([]models.CatalogItem, 0, len(rows))
	for _, row := range rows {
		var fields []json.RawMessage
		if err := json.Unmarshal(row, &fields); err != nil || len(fields) < 5 {
			continue
		}

		rawTitle := decodeString(fields[1])

		id, originalTitle, ok := resolveIdentity(fields[0], rawTitle, s.marker)
		if !ok {
			continue
		}

		originalTitle = html.UnescapeString(originalTitle)
		title := s.norm.Simplify(originalTitle)
		status := s.norm.Simplify(decodeString(fields[2]))

		items = append(items, models.CatalogItem{
			ID:            id,
			Title:         title,
			OriginalTitle: originalTitle,
			Status:        status,
			Year:          decodeString(fields[3]),
			Season:        decodeString(fields[4]),
			SearchKey:     s.norm.SearchKey(title, originalTitle),
		})
	}
	return items, nil
}

// resolveIdentity recovers the id and title from a feed row. Well-formed rows
// carry a positive integer id; malformed rows smuggle both inside an HTML
// fragment in the title slot, recognizable by a link back to the feed's own
// host. Fragments pointing anywhere else are not catalog rows.
func resolveIdentity(rawID json.RawMessage, rawTitle, marker string) (string, string, bool) {
	var numeric int64
	if err := json.Unmarshal(rawID, &numeric); err == nil && numeric > 0 {
		return strconv.FormatInt(numeric, 10), rawTitle, true
	}

	if marker == "" || !strings.Contains(rawTitle, marker) {
		return "", "", false
	}
	m := catRe.FindStringSubmatch(rawTitle)
	if m == nil {
		return "", "", false
	}

	title := "未知"
	if t := anchorRe.FindStringSubmatch(rawTitle); t != nil {
		title = t[1]
	}
	return m[1], title, true
}

// decodeString tolerates string, number and null field encodings.
func decodeString(raw json.RawMessage) string {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err == nil {
		return n.String()
	}
	return ""
}
