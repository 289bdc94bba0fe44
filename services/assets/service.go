// Package assets exposes the title-keyed cover and synopsis lookup tables
// produced by the enrichment job. The tables are read-only here and reloaded
// wholesale by the background sync cycle.
package assets

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

const (
	coverMapFile = "cover_map.json"
	descMapFile  = "desc_map.json"
)

// Service holds the current cover and synopsis maps. Cover entries are
// verified against disk at load time so every consumer reads the same
// verified view; there is no per-request stat.
type Service struct {
	mu       sync.RWMutex
	dataDir  string
	coverDir string
	covers   map[string]string
	descs    map[string]string
}

// NewService loads both tables from dataDir. Missing files are not an error;
// the corresponding table is simply empty.
func NewService(dataDir, coverDir string) (*Service, error) {
	if strings.TrimSpace(dataDir) == "" {
		return nil, errors.New("data directory not provided")
	}
	if err := os.MkdirAll(coverDir, 0o755); err != nil {
		return nil, fmt.Errorf("create cover dir: %w", err)
	}

	s := &Service{
		dataDir:  dataDir,
		coverDir: coverDir,
		covers:   map[string]string{},
		descs:    map[string]string{},
	}
	if err := s.Reload(); err != nil {
		return nil, err
	}
	return s, nil
}

// Reload re-reads both tables, dropping cover entries whose file no longer
// exists on disk.
func (s *Service) Reload() error {
	covers, err := loadMap(filepath.Join(s.dataDir, coverMapFile))
	if err != nil {
		return fmt.Errorf("load cover map: %w", err)
	}
	descs, err := loadMap(filepath.Join(s.dataDir, descMapFile))
	if err != nil {
		return fmt.Errorf("load desc map: %w", err)
	}

	verified := make(map[string]string, len(covers))
	dropped := 0
	for title, file := range covers {
		if file == "" {
			continue
		}
		if _, err := os.Stat(filepath.Join(s.coverDir, file)); err != nil {
			dropped++
			continue
		}
		verified[title] = file
	}
	if dropped > 0 {
		log.Printf("[assets] dropped %d cover entries with missing files", dropped)
	}

	s.mu.Lock()
	s.covers = verified
	s.descs = descs
	s.mu.Unlock()

	log.Printf("[assets] loaded %d covers, %d descriptions", len(verified), len(descs))
	return nil
}

// CoverURL returns the serving path for a title's cover, or "" if none.
func (s *Service) CoverURL(title string) string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if file, ok := s.covers[title]; ok {
		return "/covers/" + file
	}
	return ""
}

// Description returns the synopsis for a title, or "".
func (s *Service) Description(title string) string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.descs[title]
}

// HasCover reports whether a verified cover exists for the title.
func (s *Service) HasCover(title string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.covers[title]
	return ok
}

// HasDescription reports whether a synopsis exists for the title.
func (s *Service) HasDescription(title string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.descs[title] != ""
}

// CoverDir returns the directory cover files are served from.
func (s *Service) CoverDir() string { return s.coverDir }

func loadMap(path string) (map[string]string, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return map[string]string{}, nil
	}
	if err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return map[string]string{}, nil
	}

	out := map[string]string{}
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, err
	}
	return out, nil
}
