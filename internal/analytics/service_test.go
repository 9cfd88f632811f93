package analytics

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/edgestats/edgestats/internal/cache"
	"github.com/edgestats/edgestats/internal/cloudflare"
	"github.com/edgestats/edgestats/internal/json"
	"github.com/edgestats/edgestats/internal/ratelimit"
)

type fakeUpstream struct {
	mu        sync.Mutex
	calls     int
	lastRange cloudflare.TimeRange
	snapshot  *cloudflare.Snapshot
	err       error
	email     string
}

func (f *fakeUpstream) FetchMetrics(_ context.Context, timeRange cloudflare.TimeRange) (*cloudflare.Snapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.lastRange = timeRange
	if f.err != nil {
		return nil, f.err
	}
	snapshot := *f.snapshot
	return &snapshot, nil
}

func (f *fakeUpstream) TestConnection(context.Context) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	return f.email, nil
}

func (f *fakeUpstream) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func testSnapshot(fetchedAt time.Time) *cloudflare.Snapshot {
	return &cloudflare.Snapshot{
		UniqueVisitors:       7,
		TotalRequests:        10,
		PageViews:            42,
		BandwidthBytes:       1000,
		CachedBandwidthBytes: 250,
		CacheRatioPct:        25.0,
		ThreatsBlocked:       3,
		HTTPSPct:             90.0,
		Bandwidth:            "1000 B",
		CachedBandwidth:      "250 B",
		FetchedAt:            fetchedAt,
	}
}

func newTestService(upstream *fakeUpstream) (*Service, *cache.Memory, *time.Time) {
	store := cache.NewMemory()
	current := time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)
	svc := NewService(store, ratelimit.NewLimiter(ratelimit.DefaultThreshold), upstream, nil, 300*time.Second, 240*time.Second)
	svc.now = func() time.Time { return current }
	return svc, store, &current
}

func seedCache(t *testing.T, store cache.Store, timeRange cloudflare.TimeRange, snapshot *cloudflare.Snapshot, ttl time.Duration) {
	t.Helper()
	payload, err := json.Marshal(snapshot)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if err := store.Set(context.Background(), cacheKey(timeRange), payload, ttl); err != nil {
		t.Fatalf("seed cache: %v", err)
	}
}

func TestFetchAnalyticsFreshHitSkipsUpstream(t *testing.T) {
	upstream := &fakeUpstream{snapshot: testSnapshot(time.Now())}
	svc, store, current := newTestService(upstream)

	seedCache(t, store, cloudflare.Range24h, testSnapshot(current.Add(-30*time.Second)), 300*time.Second)

	snapshot, err := svc.FetchAnalytics(context.Background(), "24", "203.0.113.9")
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if snapshot.TotalRequests != 10 {
		t.Errorf("unexpected snapshot: %+v", snapshot)
	}
	if upstream.callCount() != 0 {
		t.Errorf("fresh hit must not reach upstream, got %d calls", upstream.callCount())
	}
	select {
	case r := <-svc.RefreshRequests():
		t.Errorf("fresh hit must not schedule a refresh, got %s", r)
	default:
	}
}

func TestFetchAnalyticsStaleHitSchedulesOneRefresh(t *testing.T) {
	upstream := &fakeUpstream{snapshot: testSnapshot(time.Now())}
	svc, store, current := newTestService(upstream)

	seedCache(t, store, cloudflare.Range24h, testSnapshot(current.Add(-250*time.Second)), 300*time.Second)

	for i := 0; i < 3; i++ {
		snapshot, err := svc.FetchAnalytics(context.Background(), "24", "203.0.113.9")
		if err != nil {
			t.Fatalf("fetch %d: %v", i, err)
		}
		if snapshot == nil {
			t.Fatalf("fetch %d: stale hit must still serve", i)
		}
	}
	if upstream.callCount() != 0 {
		t.Errorf("stale hit must serve without blocking on upstream, got %d calls", upstream.callCount())
	}

	queued := 0
	for {
		select {
		case <-svc.RefreshRequests():
			queued++
			continue
		default:
		}
		break
	}
	if queued != 1 {
		t.Errorf("expected exactly one queued refresh, got %d", queued)
	}
}

func TestExecuteRefreshUpdatesCacheAndClearsPending(t *testing.T) {
	refreshedAt := time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)
	upstream := &fakeUpstream{snapshot: testSnapshot(refreshedAt)}
	svc, store, current := newTestService(upstream)

	seedCache(t, store, cloudflare.Range24h, testSnapshot(current.Add(-250*time.Second)), 300*time.Second)
	svc.scheduleRefresh(cloudflare.Range24h)
	timeRange := <-svc.RefreshRequests()

	svc.ExecuteRefresh(context.Background(), timeRange)
	if upstream.callCount() != 1 {
		t.Fatalf("expected one upstream call, got %d", upstream.callCount())
	}

	entry, _ := store.Get(context.Background(), cacheKey(cloudflare.Range24h))
	if entry == nil {
		t.Fatal("expected refreshed cache entry")
	}
	var snapshot cloudflare.Snapshot
	if err := json.Unmarshal(entry.Value, &snapshot); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if !snapshot.FetchedAt.Equal(refreshedAt) {
		t.Errorf("cache not refreshed: fetched at %s", snapshot.FetchedAt)
	}

	// Pending marker cleared, so the next stale hit can schedule again.
	svc.scheduleRefresh(cloudflare.Range24h)
	select {
	case <-svc.RefreshRequests():
	default:
		t.Error("expected refresh to be schedulable again")
	}
}

func TestFetchAnalyticsMissFetchesAndCaches(t *testing.T) {
	fetchedAt := time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)
	upstream := &fakeUpstream{snapshot: testSnapshot(fetchedAt)}
	svc, store, _ := newTestService(upstream)

	snapshot, err := svc.FetchAnalytics(context.Background(), "7", "203.0.113.9")
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if snapshot.CacheRatioPct != 25.0 || snapshot.HTTPSPct != 90.0 {
		t.Errorf("unexpected ratios: %+v", snapshot)
	}
	if upstream.lastRange != cloudflare.Range7d {
		t.Errorf("expected range 7, got %s", upstream.lastRange)
	}

	entry, _ := store.Get(context.Background(), cacheKey(cloudflare.Range7d))
	if entry == nil {
		t.Fatal("expected cache write on miss")
	}

	// The second call is a hit and never leaves the cache.
	if _, err := svc.FetchAnalytics(context.Background(), "7", "203.0.113.9"); err != nil {
		t.Fatalf("second fetch: %v", err)
	}
	if upstream.callCount() != 1 {
		t.Errorf("expected a single upstream call, got %d", upstream.callCount())
	}
}

func TestFetchAnalyticsUnknownRangeFallsBack(t *testing.T) {
	upstream := &fakeUpstream{snapshot: testSnapshot(time.Now())}
	svc, _, _ := newTestService(upstream)

	if _, err := svc.FetchAnalytics(context.Background(), "999", "203.0.113.9"); err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if upstream.lastRange != cloudflare.Range24h {
		t.Errorf("expected fallback to 24h range, got %s", upstream.lastRange)
	}
}

func TestFetchAnalyticsRateLimitedOnMiss(t *testing.T) {
	upstream := &fakeUpstream{snapshot: testSnapshot(time.Now())}
	svc, _, _ := newTestService(upstream)
	svc.limiter.SetThreshold(1)

	if _, err := svc.FetchAnalytics(context.Background(), "24", "203.0.113.9"); err != nil {
		t.Fatalf("first fetch: %v", err)
	}
	// Evict so the second call is a miss that hits the limiter gate.
	svc.store.Delete(context.Background(), cacheKey(cloudflare.Range24h))

	_, err := svc.FetchAnalytics(context.Background(), "24", "203.0.113.9")
	var tagged *Error
	if !errors.As(err, &tagged) || tagged.Code != CodeRateLimited {
		t.Fatalf("expected rate limit error, got %v", err)
	}
	if tagged.RetryAfter <= 0 {
		t.Errorf("expected positive retry-after, got %s", tagged.RetryAfter)
	}
	if upstream.callCount() != 1 {
		t.Errorf("limited call must not reach upstream, got %d calls", upstream.callCount())
	}
}

func TestFetchAnalyticsUpstreamFailureClassified(t *testing.T) {
	upstream := &fakeUpstream{err: &cloudflare.TransportError{Err: io.ErrUnexpectedEOF}}
	svc, store, _ := newTestService(upstream)

	_, err := svc.FetchAnalytics(context.Background(), "24", "203.0.113.9")
	var tagged *Error
	if !errors.As(err, &tagged) || tagged.Code != CodeTransportFailure {
		t.Fatalf("expected transport failure, got %v", err)
	}

	if entry, _ := store.Get(context.Background(), cacheKey(cloudflare.Range24h)); entry != nil {
		t.Error("failed fetch must not populate the cache")
	}
}

func TestTestConnection(t *testing.T) {
	upstream := &fakeUpstream{email: "ops@example.com"}
	svc, _, _ := newTestService(upstream)

	email, err := svc.TestConnection(context.Background())
	if err != nil {
		t.Fatalf("test connection: %v", err)
	}
	if email != "ops@example.com" {
		t.Errorf("unexpected email %q", email)
	}

	upstream.err = &cloudflare.UpstreamError{Detail: `[{"message":"auth"}]`}
	_, err = svc.TestConnection(context.Background())
	var tagged *Error
	if !errors.As(err, &tagged) || tagged.Code != CodeUpstreamError {
		t.Fatalf("expected upstream error, got %v", err)
	}
}
