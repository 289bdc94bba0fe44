// Package schedule serves the pre-fetched seasonal broadcast grids. The grid
// file is produced by an external scrape job; this service only loads it and
// hands out copies for serve-time enrichment.
package schedule

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"

	"anibridge/models"
)

const scheduleFile = "schedule.json"

// ErrSeasonNotFound is returned for seasons that were never pre-fetched.
var ErrSeasonNotFound = errors.New("season not available")

// Grid is one season's weekly schedule: seven weekday lists of entries.
type Grid [][]models.ScheduleEntry

// Service holds the loaded schedule grids keyed by "{year}_{season}".
type Service struct {
	mu    sync.RWMutex
	path  string
	grids map[string]Grid
}

// NewService loads the schedule file from dataDir. A missing file yields an
// empty service.
func NewService(dataDir string) (*Service, error) {
	s := &Service{
		path:  filepath.Join(dataDir, scheduleFile),
		grids: map[string]Grid{},
	}
	if err := s.Reload(); err != nil {
		return nil, err
	}
	return s, nil
}

// Reload re-reads the schedule file.
func (s *Service) Reload() error {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read schedule: %w", err)
	}
	if len(data) == 0 {
		return nil
	}

	grids := map[string]Grid{}
	if err := json.Unmarshal(data, &grids); err != nil {
		return fmt.Errorf("decode schedule: %w", err)
	}

	s.mu.Lock()
	s.grids = grids
	s.mu.Unlock()

	log.Printf("[schedule] loaded %d seasons", len(grids))
	return nil
}

// Get returns a deep copy of the grid for a season so callers can enrich it
// without touching the cached data.
func (s *Service) Get(year, season string) (Grid, error) {
	key := year + "_" + season

	s.mu.RLock()
	grid, ok := s.grids[key]
	s.mu.RUnlock()
	if !ok {
		return nil, ErrSeasonNotFound
	}

	out := make(Grid, len(grid))
	for i, day := range grid {
		out[i] = make([]models.ScheduleEntry, len(day))
		copy(out[i], day)
	}
	return out, nil
}
