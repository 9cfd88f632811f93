package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/edgestats/edgestats/internal/config"
	"github.com/edgestats/edgestats/internal/logging"
)

// Tiered layers the volatile tier over a durable backend. Reads check the
// volatile tier first; a durable hit repopulates the volatile tier with
// ReadThroughTTL. Writes go to both tiers.
type Tiered struct {
	volatile *Memory
	durable  Store
}

// NewTiered wires a fresh volatile tier in front of durable.
func NewTiered(durable Store) *Tiered {
	return &Tiered{
		volatile: NewMemory(),
		durable:  durable,
	}
}

// Open builds the tiered cache for the configured DSN, defaulting to the
// local SQLite backend when no DSN is set.
func Open(ctx context.Context, dsn string) (*Tiered, error) {
	parsed, err := config.ParseDSN(dsn)
	if err != nil {
		return nil, err
	}
	if parsed == nil {
		parsed, err = config.ParseDSN(config.DefaultCacheDSN())
		if err != nil {
			return nil, err
		}
	}

	var durable Store
	switch {
	case parsed.IsPostgres():
		durable, err = NewPostgres(ctx, parsed.URL)
	case parsed.IsSQLite():
		durable, err = NewSQLite(parsed.Path)
	default:
		err = fmt.Errorf("unsupported cache backend: %q", parsed.Backend)
	}
	if err != nil {
		return nil, err
	}

	logging.Infof("cache: durable tier ready (%s)", parsed.Backend)
	return NewTiered(durable), nil
}

func (t *Tiered) Get(ctx context.Context, key string) (*Entry, error) {
	entry, err := t.volatile.Get(ctx, key)
	if err == nil && entry != nil {
		return entry, nil
	}

	entry, err = t.durable.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	if entry == nil {
		return nil, nil
	}

	// Read-through: keep the durable hit close for subsequent requests.
	if err := t.volatile.Set(ctx, key, entry.Value, ReadThroughTTL); err != nil {
		logging.Warnf("cache: volatile repopulate failed for %q: %v", key, err)
	}
	return entry, nil
}

// Set writes both tiers, volatile first so a concurrent reader never sees
// the tiers disagree for longer than this write.
func (t *Tiered) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := t.volatile.Set(ctx, key, value, ttl); err != nil {
		return err
	}
	return t.durable.Set(ctx, key, value, ttl)
}

func (t *Tiered) Delete(ctx context.Context, key string) error {
	if err := t.volatile.Delete(ctx, key); err != nil {
		return err
	}
	return t.durable.Delete(ctx, key)
}

func (t *Tiered) FlushAll(ctx context.Context) error {
	if err := t.volatile.FlushAll(ctx); err != nil {
		return err
	}
	return t.durable.FlushAll(ctx)
}

// Cleanup sweeps both tiers and reports the durable rows removed.
func (t *Tiered) Cleanup(ctx context.Context) (int64, error) {
	if _, err := t.volatile.Cleanup(ctx); err != nil {
		return 0, err
	}
	return t.durable.Cleanup(ctx)
}

func (t *Tiered) Close() error {
	return t.durable.Close()
}
