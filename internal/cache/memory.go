package cache

import (
	"context"
	"sync"
	"time"
)

// Memory is the volatile tier: a process-local map with TTL, lost on
// restart. Safe for concurrent use.
type Memory struct {
	mu      sync.RWMutex
	entries map[string]Entry
	now     func() time.Time
}

// NewMemory creates an empty volatile store.
func NewMemory() *Memory {
	return &Memory{
		entries: make(map[string]Entry),
		now:     time.Now,
	}
}

// Get returns the live entry for key, or (nil, nil) when absent or expired.
func (m *Memory) Get(_ context.Context, key string) (*Entry, error) {
	m.mu.RLock()
	entry, ok := m.entries[key]
	m.mu.RUnlock()

	if !ok || entry.Expired(m.now()) {
		return nil, nil
	}
	return &entry, nil
}

// Set stores value under key, replacing any previous entry.
func (m *Memory) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	now := m.now()
	m.mu.Lock()
	m.entries[key] = Entry{
		Key:       key,
		Value:     value,
		CreatedAt: now,
		ExpiresAt: now.Add(ttl),
	}
	m.mu.Unlock()
	return nil
}

// Delete removes the entry for key if present.
func (m *Memory) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	delete(m.entries, key)
	m.mu.Unlock()
	return nil
}

// FlushAll drops every entry.
func (m *Memory) FlushAll(_ context.Context) error {
	m.mu.Lock()
	m.entries = make(map[string]Entry)
	m.mu.Unlock()
	return nil
}

// Cleanup sweeps expired entries.
func (m *Memory) Cleanup(_ context.Context) (int64, error) {
	now := m.now()
	var removed int64

	m.mu.Lock()
	for key, entry := range m.entries {
		if entry.Expired(now) {
			delete(m.entries, key)
			removed++
		}
	}
	m.mu.Unlock()
	return removed, nil
}

// Close is a no-op for the volatile tier.
func (m *Memory) Close() error { return nil }
