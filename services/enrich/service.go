// Package enrich fills the title-keyed cover and synopsis tables by querying
// the bgm.tv subject API for catalog titles that are missing either. It is
// the in-process counterpart of the external enrichment job and writes the
// same JSON documents the assets service reads.
package enrich

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"anibridge/internal/upstream"
	"anibridge/services/assets"
	"anibridge/services/catalog"

	"github.com/avast/retry-go/v4"
	"github.com/gabriel-vasile/mimetype"
	"github.com/sourcegraph/conc/pool"
)

const (
	coverMapFile    = "cover_map.json"
	descMapFile     = "desc_map.json"
	manualFixesFile = "manual_fixes.json"

	downloadAttempts = 2
	maxImageBytes    = 16 << 20
)

// Service runs enrichment passes over the current catalog.
type Service struct {
	client    *upstream.Client
	catalog   *catalog.Service
	assets    *assets.Service
	searchURL string
	dataDir   string
	coverDir  string
	workers   int

	mu      sync.Mutex
	covers  map[string]string
	descs   map[string]string
	manual  map[string]string
	changed bool
}

// NewService creates the enrichment job. searchURL is the subject search
// endpoint; titles are appended path-encoded.
func NewService(client *upstream.Client, catalogSvc *catalog.Service, assetSvc *assets.Service, searchURL, dataDir, coverDir string, workers int) *Service {
	if workers <= 0 {
		workers = 4
	}
	return &Service{
		client:    client,
		catalog:   catalogSvc,
		assets:    assetSvc,
		searchURL: strings.TrimRight(searchURL, "/"),
		dataDir:   dataDir,
		coverDir:  coverDir,
		workers:   workers,
	}
}

// subjectResult mirrors the slice of the search payload we consume.
type subjectResult struct {
	List []struct {
		Summary string `json:"summary"`
		Images  struct {
			Large string `json:"large"`
		} `json:"images"`
	} `json:"list"`
}

// Run enriches every catalog title missing a cover or synopsis, then saves
// the updated tables. Titles with no search hit are parked in the manual
// fixes table; a non-empty manual entry overrides the search query.
func (s *Service) Run(ctx context.Context) error {
	snap := s.catalog.Current()
	if len(snap.Items) == 0 {
		return nil
	}

	if err := s.loadTables(); err != nil {
		return err
	}

	var todo []string
	seen := map[string]struct{}{}
	for _, item := range snap.Items {
		if _, dup := seen[item.Title]; dup {
			continue
		}
		seen[item.Title] = struct{}{}
		if s.assets.HasCover(item.Title) && s.assets.HasDescription(item.Title) {
			continue
		}
		todo = append(todo, item.Title)
	}
	if len(todo) == 0 {
		return nil
	}

	log.Printf("[enrich] %d titles missing cover or synopsis", len(todo))

	p := pool.New().WithMaxGoroutines(s.workers)
	for _, title := range todo {
		title := title
		p.Go(func() {
			if ctx.Err() != nil {
				return
			}
			if err := s.enrichTitle(ctx, title); err != nil {
				log.Printf("[enrich] %s: %v", title, err)
			}
		})
	}
	p.Wait()

	return s.saveTables()
}

func (s *Service) enrichTitle(ctx context.Context, title string) error {
	query := title
	s.mu.Lock()
	if override, ok := s.manual[title]; ok && override != "" {
		query = override
	}
	s.mu.Unlock()

	result, err := s.search(ctx, query)
	if err != nil {
		return err
	}
	if len(result.List) == 0 {
		s.mu.Lock()
		if _, ok := s.manual[title]; !ok {
			s.manual[title] = ""
			s.changed = true
		}
		s.mu.Unlock()
		return nil
	}

	hit := result.List[0]

	if !s.assets.HasDescription(title) && hit.Summary != "" {
		s.mu.Lock()
		s.descs[title] = hit.Summary
		s.changed = true
		s.mu.Unlock()
	}

	if !s.assets.HasCover(title) && hit.Images.Large != "" {
		imageURL := strings.Replace(hit.Images.Large, "http://", "https://", 1)
		filename, err := s.downloadCover(ctx, title, imageURL)
		if err != nil {
			return fmt.Errorf("download cover: %w", err)
		}
		s.mu.Lock()
		s.covers[title] = filename
		s.changed = true
		s.mu.Unlock()
	}

	return nil
}

func (s *Service) search(ctx context.Context, query string) (*subjectResult, error) {
	target := fmt.Sprintf("%s/%s?type=2&responseGroup=large", s.searchURL, url.PathEscape(query))

	resp, err := s.client.Get(ctx, target)
	if err != nil {
		return nil, fmt.Errorf("subject search: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != 200 {
		return nil, fmt.Errorf("subject search returned status %d", resp.StatusCode)
	}

	var result subjectResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		// The API answers plain "no result" bodies for some queries.
		return &subjectResult{}, nil
	}
	return &result, nil
}

// downloadCover fetches the image with a small fixed number of attempts and
// names the file by title hash plus the sniffed image extension.
func (s *Service) downloadCover(ctx context.Context, title, imageURL string) (string, error) {
	sum := md5.Sum([]byte(title))
	base := hex.EncodeToString(sum[:])

	// Already present under any known extension from an earlier run.
	if matches, _ := filepath.Glob(filepath.Join(s.coverDir, base+".*")); len(matches) > 0 {
		return filepath.Base(matches[0]), nil
	}

	var body []byte
	err := retry.Do(
		func() error {
			resp, err := s.client.Get(ctx, imageURL)
			if err != nil {
				return err
			}
			defer resp.Body.Close()
			if resp.StatusCode != 200 {
				return fmt.Errorf("image returned status %d", resp.StatusCode)
			}
			body, err = io.ReadAll(io.LimitReader(resp.Body, maxImageBytes))
			return err
		},
		retry.Attempts(downloadAttempts),
		retry.Delay(time.Second),
		retry.DelayType(retry.FixedDelay),
		retry.Context(ctx),
		retry.LastErrorOnly(true),
	)
	if err != nil {
		return "", err
	}

	ext := mimetype.Detect(body).Extension()
	if ext == "" {
		ext = ".jpg"
	}
	filename := base + ext

	if err := os.WriteFile(filepath.Join(s.coverDir, filename), body, 0o644); err != nil {
		return "", fmt.Errorf("write cover file: %w", err)
	}
	return filename, nil
}

func (s *Service) loadTables() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var err error
	if s.covers, err = loadMap(filepath.Join(s.dataDir, coverMapFile)); err != nil {
		return err
	}
	if s.descs, err = loadMap(filepath.Join(s.dataDir, descMapFile)); err != nil {
		return err
	}
	if s.manual, err = loadMap(filepath.Join(s.dataDir, manualFixesFile)); err != nil {
		return err
	}
	s.changed = false
	return nil
}

func (s *Service) saveTables() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.changed {
		return nil
	}
	if err := saveMap(filepath.Join(s.dataDir, coverMapFile), s.covers); err != nil {
		return err
	}
	if err := saveMap(filepath.Join(s.dataDir, descMapFile), s.descs); err != nil {
		return err
	}
	if err := saveMap(filepath.Join(s.dataDir, manualFixesFile), s.manual); err != nil {
		return err
	}
	log.Printf("[enrich] tables saved: %d covers, %d descriptions", len(s.covers), len(s.descs))
	return nil
}

func loadMap(path string) (map[string]string, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return map[string]string{}, nil
	}
	if err != nil {
		return nil, err
	}
	out := map[string]string{}
	if len(data) == 0 {
		return out, nil
	}
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func saveMap(path string, m map[string]string) error {
	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	if err := enc.Encode(m); err != nil {
		f.Close()
		_ = os.Remove(tmp)
		return err
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, path)
}
