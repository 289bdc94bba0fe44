// Package playback persists per-series playback positions. Records are keyed
// by catalog id, last write wins, no history. Mutations update the store,
// mirror into the projection and persist under one lock.
package playback

import (
	"encoding/json"
	"errors"
	"fmt"
	"maps"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"anibridge/models"
)

var (
	ErrIDRequired      = errors.New("id is required")
	ErrEpisodeRequired = errors.New("episode title is required")
)

// Mirror receives playback changes so the projection stays consistent with
// the store on every mutation.
type Mirror interface {
	SetPlayback(id string, state *models.PlaybackState)
}

// Service manages the playback store.
type Service struct {
	mu      sync.Mutex
	path    string
	records map[string]models.PlaybackRecord
	mirror  Mirror
}

// NewService creates a playback service storing data inside the provided
// directory.
func NewService(storageDir string) (*Service, error) {
	if strings.TrimSpace(storageDir) == "" {
		return nil, errors.New("storage directory not provided")
	}
	if err := os.MkdirAll(storageDir, 0o755); err != nil {
		return nil, fmt.Errorf("create playback dir: %w", err)
	}

	svc := &Service{
		path:    filepath.Join(storageDir, "playback_history.json"),
		records: map[string]models.PlaybackRecord{},
	}
	if err := svc.load(); err != nil {
		return nil, err
	}
	return svc, nil
}

// SetMirror wires the projection patcher. Must be called before serving.
func (s *Service) SetMirror(m Mirror) {
	s.mu.Lock()
	s.mirror = m
	s.mu.Unlock()
}

// Save records a playback position, stamping the current time.
func (s *Service) Save(id, episodeTitle string, position float64) (models.PlaybackRecord, error) {
	if strings.TrimSpace(id) == "" {
		return models.PlaybackRecord{}, ErrIDRequired
	}
	if strings.TrimSpace(episodeTitle) == "" {
		return models.PlaybackRecord{}, ErrEpisodeRequired
	}
	if position < 0 {
		position = 0
	}

	record := models.PlaybackRecord{
		EpisodeTitle: episodeTitle,
		Position:     position,
		Timestamp:    time.Now().UTC(),
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.records[id] = record
	if s.mirror != nil {
		s.mirror.SetPlayback(id, record.State())
	}
	if err := s.saveLocked(); err != nil {
		return models.PlaybackRecord{}, err
	}
	return record, nil
}

// Get returns the record for an id.
func (s *Service) Get(id string) (models.PlaybackRecord, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[id]
	return rec, ok
}

// Clear removes the record for an id. Clearing an absent id is a no-op.
func (s *Service) Clear(id string) error {
	if strings.TrimSpace(id) == "" {
		return ErrIDRequired
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.records[id]; !ok {
		return nil
	}
	delete(s.records, id)
	if s.mirror != nil {
		s.mirror.SetPlayback(id, nil)
	}
	return s.saveLocked()
}

// All returns a copy of every record keyed by id.
func (s *Service) All() map[string]models.PlaybackRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	return maps.Clone(s.records)
}

func (s *Service) load() error {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read playback store: %w", err)
	}
	if len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, &s.records); err != nil {
		return fmt.Errorf("decode playback store: %w", err)
	}
	return nil
}

func (s *Service) saveLocked() error {
	tmp := s.path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("create playback temp file: %w", err)
	}

	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	if err := enc.Encode(s.records); err != nil {
		f.Close()
		_ = os.Remove(tmp)
		return fmt.Errorf("encode playback store: %w", err)
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("close playback temp file: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("replace playback file: %w", err)
	}
	return nil
}
