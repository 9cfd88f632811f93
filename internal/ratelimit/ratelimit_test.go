package ratelimit

import (
	"testing"
	"time"
)

func newTestLimiter(threshold int) (*Limiter, *time.Time) {
	l := NewLimiter(threshold)
	current := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	l.now = func() time.Time { return current }
	return l, &current
}

func TestLimiterBlocksOverThreshold(t *testing.T) {
	l, _ := newTestLimiter(100)

	for i := 0; i < 100; i++ {
		allowed, _ := l.Allow("10.0.0.1")
		if !allowed {
			t.Fatalf("request %d unexpectedly blocked", i+1)
		}
	}

	allowed, retryAfter := l.Allow("10.0.0.1")
	if allowed {
		t.Fatal("101st request should be blocked")
	}
	if retryAfter != 2*time.Second {
		t.Errorf("expected 2s retry-after on first excess, got %v", retryAfter)
	}
}

func TestLimiterBackoffGrowsAndSaturates(t *testing.T) {
	l, _ := newTestLimiter(2)

	l.Allow("c")
	l.Allow("c")

	var last time.Duration
	for i := 0; i < 15; i++ {
		allowed, retryAfter := l.Allow("c")
		if allowed {
			t.Fatalf("excess request %d allowed", i+1)
		}
		if retryAfter < last {
			t.Fatalf("backoff shrank: %v after %v", retryAfter, last)
		}
		last = retryAfter
	}
	if last != time.Hour {
		t.Errorf("expected backoff saturation at 1h, got %v", last)
	}
}

func TestLimiterWindowRollover(t *testing.T) {
	l, current := newTestLimiter(1)

	if allowed, _ := l.Allow("10.0.0.2"); !allowed {
		t.Fatal("first request should pass")
	}
	if allowed, _ := l.Allow("10.0.0.2"); allowed {
		t.Fatal("second request within window should be blocked")
	}

	*current = current.Add(Window)
	if allowed, _ := l.Allow("10.0.0.2"); !allowed {
		t.Fatal("first request after rollover should pass")
	}
}

func TestLimiterIsolatesClients(t *testing.T) {
	l, _ := newTestLimiter(1)

	l.Allow("a")
	if allowed, _ := l.Allow("b"); !allowed {
		t.Fatal("client b should have its own counter")
	}
}

func TestLimiterPrune(t *testing.T) {
	l, current := newTestLimiter(10)

	l.Allow("a")
	l.Allow("b")
	*current = current.Add(Window + time.Minute)
	l.Allow("c")

	if removed := l.Prune(); removed != 2 {
		t.Errorf("expected 2 stale counters pruned, got %d", removed)
	}
	if len(l.counters) != 1 {
		t.Errorf("expected 1 live counter, got %d", len(l.counters))
	}
}
