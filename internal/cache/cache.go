// Package cache implements the two-tier snapshot cache: a fast volatile
// in-process tier in front of a durable SQL-backed tier with TTL and
// batched expired-entry cleanup.
package cache

import (
	"context"
	"time"
)

// ReadThroughTTL is the volatile-tier TTL applied when a durable hit
// repopulates the volatile tier.
const ReadThroughTTL = 5 * time.Minute

// Entry is one cached value. A key maps to at most one live entry;
// writes replace.
type Entry struct {
	Key       string
	Value     []byte
	CreatedAt time.Time
	ExpiresAt time.Time
}

// Expired reports whether the entry is past its expiration at now.
func (e *Entry) Expired(now time.Time) bool {
	return !e.ExpiresAt.After(now)
}

// Store is the cache contract shared by both tiers. Get returns
// (nil, nil) on a miss; expired entries are treated as misses.
type Store interface {
	Get(ctx context.Context, key string) (*Entry, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	FlushAll(ctx context.Context) error

	// Cleanup removes expired entries and returns how many were dropped.
	Cleanup(ctx context.Context) (int64, error)

	Close() error
}
