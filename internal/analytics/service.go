package analytics

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/edgestats/edgestats/internal/cache"
	"github.com/edgestats/edgestats/internal/cloudflare"
	"github.com/edgestats/edgestats/internal/json"
	"github.com/edgestats/edgestats/internal/logging"
	"github.com/edgestats/edgestats/internal/ratelimit"
)

const cacheKeyPrefix = "cloudflare_analytics_"

// refreshQueueSize bounds deferred refreshes; with three ranges the
// queue never fills in practice.
const refreshQueueSize = 8

// Upstream is the slice of the Cloudflare client the service needs.
type Upstream interface {
	FetchMetrics(ctx context.Context, timeRange cloudflare.TimeRange) (*cloudflare.Snapshot, error)
	TestConnection(ctx context.Context) (string, error)
}

// Service is the read path for analytics snapshots. Cached data is
// always served when present; a snapshot past the staleness threshold
// additionally schedules one deferred background refresh. Only a cache
// miss blocks on the upstream, behind the per-client rate limiter.
type Service struct {
	store   cache.Store
	limiter *ratelimit.Limiter
	client  Upstream
	creds   *CredentialStore

	cfgMu        sync.RWMutex
	ttl          time.Duration
	staleAfter   time.Duration
	errorLogging bool

	pendingMu sync.Mutex
	pending   map[cloudflare.TimeRange]struct{}
	refreshCh chan cloudflare.TimeRange

	group singleflight.Group
	now   func() time.Time
}

// NewService wires the orchestrator. ttl bounds cached snapshots;
// staleAfter is the age past which a hit triggers a background refresh.
func NewService(store cache.Store, limiter *ratelimit.Limiter, client Upstream, creds *CredentialStore, ttl, staleAfter time.Duration) *Service {
	return &Service{
		store:      store,
		limiter:    limiter,
		client:     client,
		creds:      creds,
		ttl:        ttl,
		staleAfter: staleAfter,
		pending:    make(map[cloudflare.TimeRange]struct{}),
		refreshCh:  make(chan cloudflare.TimeRange, refreshQueueSize),
		now:        time.Now,
	}
}

// UpdateSettings applies reload-safe tuning without a restart.
func (s *Service) UpdateSettings(ttl, staleAfter time.Duration, errorLogging bool) {
	s.cfgMu.Lock()
	s.ttl = ttl
	s.staleAfter = staleAfter
	s.errorLogging = errorLogging
	s.cfgMu.Unlock()
}

// CredentialStore exposes the credential layer for reload and CLI use.
func (s *Service) CredentialStore() *CredentialStore { return s.creds }

func (s *Service) settings() (ttl, staleAfter time.Duration) {
	s.cfgMu.RLock()
	defer s.cfgMu.RUnlock()
	return s.ttl, s.staleAfter
}

func cacheKey(r cloudflare.TimeRange) string {
	return cacheKeyPrefix + string(r)
}

// FetchAnalytics returns the snapshot for rangeKey, serving from cache
// whenever possible. clientID feeds the rate limiter on the miss path.
func (s *Service) FetchAnalytics(ctx context.Context, rangeKey, clientID string) (*cloudflare.Snapshot, error) {
	timeRange := cloudflare.NormalizeRange(rangeKey)
	key := cacheKey(timeRange)

	entry, err := s.store.Get(ctx, key)
	if err != nil {
		logging.Warnf("analytics: cache read failed for %q: %v", key, err)
	}
	if entry != nil {
		var snapshot cloudflare.Snapshot
		if err := json.Unmarshal(entry.Value, &snapshot); err == nil {
			_, staleAfter := s.settings()
			if s.now().Sub(snapshot.FetchedAt) > staleAfter {
				s.scheduleRefresh(timeRange)
			}
			return &snapshot, nil
		}
		logging.Warnf("analytics: discarding undecodable cache entry %q", key)
	}

	if allowed, retryAfter := s.limiter.Allow(clientID); !allowed {
		return nil, &Error{
			Code:       CodeRateLimited,
			Message:    fmt.Sprintf("rate limit exceeded, retry in %s", retryAfter),
			RetryAfter: retryAfter,
		}
	}

	snapshot, err := s.fetchAndStore(ctx, timeRange)
	if err != nil {
		s.logUpstreamFailure(timeRange, err)
		return nil, Classify(err)
	}
	return snapshot, nil
}

// TestConnection verifies the stored credentials against the upstream
// identity endpoint and returns the account email it reports.
func (s *Service) TestConnection(ctx context.Context) (string, error) {
	email, err := s.client.TestConnection(ctx)
	if err != nil {
		return "", Classify(err)
	}
	return email, nil
}

// fetchAndStore collapses concurrent fetches for the same range into a
// single upstream call and writes the result through the cache.
func (s *Service) fetchAndStore(ctx context.Context, timeRange cloudflare.TimeRange) (*cloudflare.Snapshot, error) {
	key := cacheKey(timeRange)
	result, err, _ := s.group.Do(key, func() (any, error) {
		snapshot, err := s.client.FetchMetrics(ctx, timeRange)
		if err != nil {
			return nil, err
		}

		payload, err := json.Marshal(snapshot)
		if err != nil {
			return nil, fmt.Errorf("encode snapshot: %w", err)
		}
		ttl, _ := s.settings()
		if err := s.store.Set(ctx, key, payload, ttl); err != nil {
			// A failed write degrades to uncached serving.
			logging.Warnf("analytics: cache write failed for %q: %v", key, err)
		}
		return snapshot, nil
	})
	if err != nil {
		return nil, err
	}
	return result.(*cloudflare.Snapshot), nil
}

// scheduleRefresh queues at most one pending background refresh per
// range. Duplicate triggers while a refresh is queued or running are
// dropped.
func (s *Service) scheduleRefresh(timeRange cloudflare.TimeRange) {
	s.pendingMu.Lock()
	if _, exists := s.pending[timeRange]; exists {
		s.pendingMu.Unlock()
		return
	}
	s.pending[timeRange] = struct{}{}
	s.pendingMu.Unlock()

	select {
	case s.refreshCh <- timeRange:
		logging.Debugf("analytics: scheduled background refresh for range %s", timeRange)
	default:
		s.clearPending(timeRange)
	}
}

func (s *Service) clearPending(timeRange cloudflare.TimeRange) {
	s.pendingMu.Lock()
	delete(s.pending, timeRange)
	s.pendingMu.Unlock()
}

// RefreshRequests is drained by the background worker.
func (s *Service) RefreshRequests() <-chan cloudflare.TimeRange {
	return s.refreshCh
}

// ExecuteRefresh performs one queued background refresh. Failures are
// logged and swallowed; the stale snapshot keeps serving until the next
// trigger.
func (s *Service) ExecuteRefresh(ctx context.Context, timeRange cloudflare.TimeRange) {
	defer s.clearPending(timeRange)

	if _, err := s.fetchAndStore(ctx, timeRange); err != nil {
		s.logUpstreamFailure(timeRange, err)
		return
	}
	logging.Debugf("analytics: background refresh completed for range %s", timeRange)
}

func (s *Service) logUpstreamFailure(timeRange cloudflare.TimeRange, err error) {
	s.cfgMu.RLock()
	verbose := s.errorLogging
	s.cfgMu.RUnlock()

	if verbose {
		logging.Errorf("analytics: upstream fetch failed for range %s: %v", timeRange, err)
	} else {
		logging.Debugf("analytics: upstream fetch failed for range %s: %v", timeRange, err)
	}
}
