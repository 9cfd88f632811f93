// Package ratelimit implements the per-client fixed-window limiter that
// gates upstream Cloudflare calls.
package ratelimit

import (
	"math"
	"sync"
	"time"
)

const (
	// DefaultThreshold is the default number of allowed requests per window.
	DefaultThreshold = 100
	// Window is the counting window. Counters reset only at rollover.
	Window = time.Hour
	// maxBackoff caps the computed retry-after at one hour.
	maxBackoff = time.Hour
)

type counter struct {
	count       int
	windowStart time.Time
}

// Limiter tracks one counter per client identity over a fixed window.
// Safe for concurrent use.
type Limiter struct {
	mu        sync.Mutex
	counters  map[string]*counter
	threshold int
	now       func() time.Time
}

// NewLimiter creates a limiter allowing threshold requests per hour per
// client. A non-positive threshold falls back to DefaultThreshold.
func NewLimiter(threshold int) *Limiter {
	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	return &Limiter{
		counters:  make(map[string]*counter),
		threshold: threshold,
		now:       time.Now,
	}
}

// SetThreshold updates the per-window threshold at runtime.
func (l *Limiter) SetThreshold(threshold int) {
	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	l.mu.Lock()
	l.threshold = threshold
	l.mu.Unlock()
}

// Allow counts a request for clientID and reports whether it may proceed.
// When blocked, retryAfter carries an exponential backoff hint
// (min(2^(count-threshold), 3600) seconds) for a Retry-After header.
func (l *Limiter) Allow(clientID string) (allowed bool, retryAfter time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	c, ok := l.counters[clientID]
	if !ok || now.Sub(c.windowStart) >= Window {
		l.counters[clientID] = &counter{count: 1, windowStart: now}
		return true, 0
	}

	c.count++
	if c.count > l.threshold {
		return false, backoff(c.count - l.threshold)
	}
	return true, 0
}

// backoff doubles per excess request and saturates at maxBackoff.
func backoff(excess int) time.Duration {
	if excess >= 12 { // 2^12 > 3600
		return maxBackoff
	}
	d := time.Duration(math.Pow(2, float64(excess))) * time.Second
	if d > maxBackoff {
		return maxBackoff
	}
	return d
}

// Prune drops counters whose window has fully elapsed. Called from the
// periodic cleanup pass so the map does not grow without bound.
func (l *Limiter) Prune() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	removed := 0
	for id, c := range l.counters {
		if now.Sub(c.windowStart) >= Window {
			delete(l.counters, id)
			removed++
		}
	}
	return removed
}
