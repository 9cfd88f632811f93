// Package scheduler runs the background loops: the deferred refresh
// worker, the daily expired-cache sweep, and rate limiter pruning.
package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/edgestats/edgestats/internal/analytics"
	"github.com/edgestats/edgestats/internal/cache"
	"github.com/edgestats/edgestats/internal/logging"
	"github.com/edgestats/edgestats/internal/ratelimit"
)

const (
	cleanupInterval = 24 * time.Hour
	pruneInterval   = 10 * time.Minute

	// refreshTimeout bounds one background refresh, retries included.
	refreshTimeout = 2 * time.Minute
)

// Scheduler owns the service's background goroutines. Start them once;
// Stop is safe to call multiple times and waits for the loops to exit.
type Scheduler struct {
	service *analytics.Service
	store   cache.Store
	limiter *ratelimit.Limiter

	stopChan chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

func New(service *analytics.Service, store cache.Store, limiter *ratelimit.Limiter) *Scheduler {
	return &Scheduler{
		service:  service,
		store:    store,
		limiter:  limiter,
		stopChan: make(chan struct{}),
	}
}

// Start launches the refresh worker and the maintenance loops.
func (s *Scheduler) Start() {
	s.wg.Add(3)
	go s.refreshLoop()
	go s.cleanupLoop()
	go s.pruneLoop()
	logging.Debugf("scheduler: background loops started")
}

// Stop signals the loops and blocks until they drain.
func (s *Scheduler) Stop() {
	s.stopOnce.Do(func() {
		close(s.stopChan)
	})
	s.wg.Wait()
}

// refreshLoop drains deferred refresh requests one at a time. Serial
// execution keeps at most one upstream call in flight from this path.
func (s *Scheduler) refreshLoop() {
	defer s.wg.Done()
	for {
		select {
		case <-s.stopChan:
			return
		case timeRange := <-s.service.RefreshRequests():
			ctx, cancel := context.WithTimeout(context.Background(), refreshTimeout)
			s.service.ExecuteRefresh(ctx, timeRange)
			cancel()
		}
	}
}

// cleanupLoop sweeps expired cache rows once on startup and then daily.
func (s *Scheduler) cleanupLoop() {
	defer s.wg.Done()

	s.runCleanup()
	ticker := time.NewTicker(cleanupInterval)
	defer ticker.Stop()
	for {
		select {
		case <-s.stopChan:
			return
		case <-ticker.C:
			s.runCleanup()
		}
	}
}

func (s *Scheduler) runCleanup() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	removed, err := s.store.Cleanup(ctx)
	if err != nil {
		logging.Warnf("scheduler: cache cleanup failed: %v", err)
		return
	}
	if removed > 0 {
		logging.Infof("scheduler: cache cleanup removed %d expired entries", removed)
	}
}

// pruneLoop drops rate limiter counters whose window has lapsed.
func (s *Scheduler) pruneLoop() {
	defer s.wg.Done()

	ticker := time.NewTicker(pruneInterval)
	defer ticker.Stop()
	for {
		select {
		case <-s.stopChan:
			return
		case <-ticker.C:
			if pruned := s.limiter.Prune(); pruned > 0 {
				logging.Debugf("scheduler: pruned %d idle rate limit counters", pruned)
			}
		}
	}
}
