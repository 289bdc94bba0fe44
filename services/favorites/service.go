// Package favorites persists the ordered set of favorited catalog ids.
// Insertion order is chronological; add and remove are idempotent. Every
// mutation updates the in-memory set, mirrors the change into the projection
// and writes the backing file, all under one lock.
package favorites

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
)

// ErrIDRequired is returned for mutations with an empty id.
var ErrIDRequired = errors.New("id is required")

// Mirror receives favorite changes so the projection stays consistent with
// the store on every mutation.
type Mirror interface {
	SetFavorite(id string, favorite bool)
}

// Service manages the favorites store.
type Service struct {
	mu     sync.Mutex
	path   string
	ids    []string
	index  map[string]struct{}
	mirror Mirror
}

// NewService creates a favorites service storing data inside the provided
// directory.
func NewService(storageDir string) (*Service, error) {
	if strings.TrimSpace(storageDir) == "" {
		return nil, errors.New("storage directory not provided")
	}
	if err := os.MkdirAll(storageDir, 0o755); err != nil {
		return nil, fmt.Errorf("create favorites dir: %w", err)
	}

	svc := &Service{
		path:  filepath.Join(storageDir, "favorites.json"),
		index: map[string]struct{}{},
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

// Add appends an id to the favorites. Adding a present id is a no-op.
func (s *Service) Add(id string) error {
	if strings.TrimSpace(id) == "" {
		return ErrIDRequired
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.index[id]; ok {
		return nil
	}
	s.ids = append(s.ids, id)
	s.index[id] = struct{}{}
	if s.mirror != nil {
		s.mirror.SetFavorite(id, true)
	}
	return s.saveLocked()
}

// Remove deletes an id from the favorites. Removing an absent id is a no-op.
func (s *Service) Remove(id string) error {
	if strings.TrimSpace(id) == "" {
		return ErrIDRequired
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.index[id]; !ok {
		return nil
	}
	s.ids = slices.DeleteFunc(s.ids, func(v string) bool { return v == id })
	delete(s.index, id)
	if s.mirror != nil {
		s.mirror.SetFavorite(id, false)
	}
	return s.saveLocked()
}

// IDs returns the favorites in insertion order (most recent last).
func (s *Service) IDs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.ids)
}

// Contains reports whether an id is favorited.
func (s *Service) Contains(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.index[id]
	return ok
}

func (s *Service) load() error {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read favorites: %w", err)
	}
	if len(data) == 0 {
		return nil
	}

	var ids []string
	if err := json.Unmarshal(data, &ids); err != nil {
		return fmt.Errorf("decode favorites: %w", err)
	}
	for _, id := range ids {
		if _, ok := s.index[id]; ok || id == "" {
			continue
		}
		s.ids = append(s.ids, id)
		s.index[id] = struct{}{}
	}
	return nil
}

func (s *Service) saveLocked() error {
	tmp := s.path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("create favorites temp file: %w", err)
	}

	ids := s.ids
	if ids == nil {
		ids = []string{}
	}
	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	if err := enc.Encode(ids); err != nil {
		f.Close()
		_ = os.Remove(tmp)
		return fmt.Errorf("encode favorites: %w", err)
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("close favorites temp file: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("replace favorites file: %w", err)
	}
	return nil
}
