// Package scheduler runs the fixed-interval background cycle: catalog sync,
// optional asset enrichment, asset/schedule reload and projection rebuild.
// The loop never exits; every failure within a cycle is logged and the next
// tick proceeds on schedule.
package scheduler

import (
	"context"
	"log"
	"sync"
	"time"

	"anibridge/services/assets"
	"anibridge/services/catalog"
	"anibridge/services/favorites"
	"anibridge/services/playback"
	"anibridge/services/projection"
	"anibridge/services/schedule"
)

// Enricher is the optional in-process asset enrichment job.
type Enricher interface {
	Run(ctx context.Context) error
}

// Service drives the periodic sync cycle.
type Service struct {
	catalog    *catalog.Service
	assets     *assets.Service
	schedule   *schedule.Service
	projection *projection.Service
	favorites  *favorites.Service
	playback   *playback.Service
	enricher   Enricher
	interval   time.Duration

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// NewService creates the scheduler. enricher may be nil.
func NewService(
	catalogSvc *catalog.Service,
	assetSvc *assets.Service,
	scheduleSvc *schedule.Service,
	projectionSvc *projection.Service,
	favoritesSvc *favorites.Service,
	playbackSvc *playback.Service,
	enricher Enricher,
	interval time.Duration,
) *Service {
	return &Service{
		catalog:    catalogSvc,
		assets:     assetSvc,
		schedule:   scheduleSvc,
		projection: projectionSvc,
		favorites:  favoritesSvc,
		playback:   playbackSvc,
		enricher:   enricher,
		interval:   interval,
	}
}

// Start begins the background loop, running one cycle immediately.
func (s *Service) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return
	}

	ctx, s.cancel = context.WithCancel(ctx)
	s.running = true

	s.wg.Add(1)
	go s.loop(ctx)

	log.Printf("[scheduler] started, interval %s", s.interval)
}

// Stop halts the loop and waits for an in-flight cycle to finish, bounded by
// the given context.
func (s *Service) Stop(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running {
		return
	}
	s.cancel()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		log.Println("[scheduler] stopped")
	case <-ctx.Done():
		log.Println("[scheduler] stopped (timeout)")
	}
	s.running = false
}

func (s *Service) loop(ctx context.Context) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.RunCycle(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.RunCycle(ctx)
		}
	}
}

// RunCycle executes one full sync cycle. A failed catalog sync keeps the
// previous snapshot; the projection is still rebuilt so reloaded asset
// tables become visible. Panics are contained so the loop survives any
// single cycle.
func (s *Service) RunCycle(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("[scheduler] cycle panic: %v", r)
		}
	}()

	start := time.Now()
	log.Println("[scheduler] cycle start")

	if _, err := s.catalog.Sync(ctx); err != nil {
		log.Printf("[scheduler] catalog sync failed: %v", err)
	}

	if s.enricher != nil {
		if err := s.enricher.Run(ctx); err != nil {
			log.Printf("[scheduler] enrichment failed: %v", err)
		}
	}

	if err := s.assets.Reload(); err != nil {
		log.Printf("[scheduler] asset reload failed: %v", err)
	}
	if err := s.schedule.Reload(); err != nil {
		log.Printf("[scheduler] schedule reload failed: %v", err)
	}

	s.projection.Rebuild(s.catalog.Current(), s.favorites.IDs, s.playback.All)

	log.Printf("[scheduler] cycle complete in %s", time.Since(start).Round(time.Millisecond))
}
