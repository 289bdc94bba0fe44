// Package projection maintains the denormalized, display-ready record set
// joining the catalog snapshot with asset tables and user state. The whole
// record set is replaced by an atomic pointer swap on rebuild; favorite and
// playback mutations patch a single record copy-on-write, so readers never
// observe a partially built structure or a torn record.
package projection

import (
	"log"
	"sync"
	"sync/atomic"

	"anibridge/models"
	"anibridge/services/assets"
	"anibridge/services/catalog"
)

type recordSet map[string]*models.MetadataRecord

type patchOp struct {
	id     string
	mutate func(*models.MetadataRecord)
}

// Service owns the current projection.
type Service struct {
	assets *assets.Service

	// mu serializes rebuilds and single-record patches; reads go through the
	// atomic pointer without locking.
	mu       sync.Mutex
	building bool
	pending  []patchOp
	current  atomic.Pointer[recordSet]
}

// NewService creates an empty projection over the given asset tables.
func NewService(assetSvc *assets.Service) *Service {
	s := &Service{assets: assetSvc}
	empty := recordSet{}
	s.current.Store(&empty)
	return s
}

// Rebuild produces a brand-new record set and swaps it in. It is a pure
// join: one record per catalog id, no orphans, no gaps. The favorites and
// playback inputs are getters, read after the rebuild window opens; any
// patch landing while the set is under construction is recorded and
// re-applied before the swap, so a concurrent mutation is never lost to the
// rebuild. Getters may be nil for empty inputs.
func (s *Service) Rebuild(snap *catalog.Snapshot, favorites func() []string, playback func() map[string]models.PlaybackRecord) {
	s.mu.Lock()
	s.building = true
	s.pending = nil
	s.mu.Unlock()

	// Store reads happen outside mu: the stores take their own lock and
	// their mutation path locks mu through patch.
	var favSet map[string]struct{}
	if favorites != nil {
		ids := favorites()
		favSet = make(map[string]struct{}, len(ids))
		for _, id := range ids {
			favSet[id] = struct{}{}
		}
	}
	var records map[string]models.PlaybackRecord
	if playback != nil {
		records = playback()
	}

	next := make(recordSet, len(snap.Items))
	for _, item := range snap.Items {
		rec := &models.MetadataRecord{
			ID:          item.ID,
			Title:       item.Title,
			Status:      item.Status,
			Year:        item.Year,
			Season:      item.Season,
			Poster:      s.assets.CoverURL(item.Title),
			Description: s.assets.Description(item.Title),
		}
		if _, ok := favSet[item.ID]; ok {
			rec.IsFavorite = true
		}
		if pb, ok := records[item.ID]; ok {
			rec.Playback = pb.State()
		}
		next[item.ID] = rec
	}

	s.mu.Lock()
	for _, op := range s.pending {
		if rec, ok := next[op.id]; ok {
			clone := *rec
			op.mutate(&clone)
			next[op.id] = &clone
		}
	}
	replayed := len(s.pending)
	s.pending = nil
	s.building = false
	s.current.Store(&next)
	s.mu.Unlock()

	if replayed > 0 {
		log.Printf("[projection] rebuilt %d records, replayed %d in-flight patches", len(next), replayed)
		return
	}
	log.Printf("[projection] rebuilt %d records", len(next))
}

// Get returns the record for an id. The returned record must be treated as
// immutable.
func (s *Service) Get(id string) (*models.MetadataRecord, bool) {
	rec, ok := (*s.current.Load())[id]
	return rec, ok
}

// Len returns the number of records in the current projection.
func (s *Service) Len() int {
	return len(*s.current.Load())
}

// IDs returns the ids present in the current projection, in no defined order.
func (s *Service) IDs() []string {
	set := *s.current.Load()
	ids := make([]string, 0, len(set))
	for id := range set {
		ids = append(ids, id)
	}
	return ids
}

// SetFavorite patches the favorite flag of a single record. Unknown ids are
// ignored; the next rebuild will pick the state up from the store.
func (s *Service) SetFavorite(id string, favorite bool) {
	s.patch(id, func(rec *models.MetadataRecord) {
		rec.IsFavorite = favorite
	})
}

// SetPlayback patches the playback state of a single record. A nil state
// clears it.
func (s *Service) SetPlayback(id string, state *models.PlaybackState) {
	s.patch(id, func(rec *models.MetadataRecord) {
		rec.Playback = state
	})
}

// patch replaces one record with a modified copy inside a freshly copied
// record set, then swaps the set. Existing readers keep their generation.
// During a rebuild the patch is also queued for replay onto the set under
// construction.
func (s *Service) patch(id string, mutate func(*models.MetadataRecord)) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.building {
		s.pending = append(s.pending, patchOp{id: id, mutate: mutate})
	}

	old := *s.current.Load()
	rec, ok := old[id]
	if !ok {
		return
	}

	next := make(recordSet, len(old))
	for k, v := range old {
		next[k] = v
	}
	clone := *rec
	mutate(&clone)
	next[id] = &clone

	s.current.Store(&next)
}
