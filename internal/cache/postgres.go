package cache

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/edgestats/edgestats/internal/logging"
)

const postgresSchema = `
CREATE TABLE IF NOT EXISTS analytics_cache (
	id BIGSERIAL PRIMARY KEY,
	cache_key TEXT NOT NULL UNIQUE,
	cache_value TEXT NOT NULL,
	expiration TIMESTAMPTZ NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_analytics_cache_expiration ON analytics_cache(expiration);
`

// Postgres is the durable tier backed by a PostgreSQL table, for
// deployments where several instances share one cache.
type Postgres struct {
	pool *pgxpool.Pool
	now  func() time.Time

	mu         sync.Mutex
	lastVacuum time.Time
}

// NewPostgres connects to the database and ensures the cache schema.
func NewPostgres(ctx context.Context, dsn string) (*Postgres, error) {
	connectCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	pool, err := pgxpool.New(connectCtx, dsn)
	if err != nil {
		return nil, fmt.Errorf("create postgres pool: %w", err)
	}
	if err := pool.Ping(connectCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	if _, err := pool.Exec(connectCtx, postgresSchema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("initialize cache schema: %w", err)
	}

	return &Postgres{pool: pool, now: time.Now, lastVacuum: time.Now()}, nil
}

func (p *Postgres) Get(ctx context.Context, key string) (*Entry, error) {
	row := p.pool.QueryRow(ctx, `
		SELECT cache_value, expiration, created_at
		FROM analytics_cache
		WHERE cache_key = $1 AND expiration > NOW()`, key)

	var value string
	var expiration, createdAt time.Time
	if err := row.Scan(&value, &expiration, &createdAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("postgres cache get: %w", err)
	}

	return &Entry{
		Key:       key,
		Value:     []byte(value),
		CreatedAt: createdAt,
		ExpiresAt: expiration,
	}, nil
}

func (p *Postgres) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	now := p.now()
	_, err := p.pool.Exec(ctx, `
		INSERT INTO analytics_cache (cache_key, cache_value, expiration, created_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (cache_key) DO UPDATE SET
			cache_value = EXCLUDED.cache_value,
			expiration = EXCLUDED.expiration,
			created_at = EXCLUDED.created_at`,
		key, string(value), now.Add(ttl), now)
	if err != nil {
		return fmt.Errorf("postgres cache set: %w", err)
	}
	return nil
}

func (p *Postgres) Delete(ctx context.Context, key string) error {
	_, err := p.pool.Exec(ctx, `DELETE FROM analytics_cache WHERE cache_key = $1`, key)
	if err != nil {
		return fmt.Errorf("postgres cache delete: %w", err)
	}
	return nil
}

func (p *Postgres) FlushAll(ctx context.Context) error {
	_, err := p.pool.Exec(ctx, `DELETE FROM analytics_cache`)
	if err != nil {
		return fmt.Errorf("postgres cache flush: %w", err)
	}
	return nil
}

// Cleanup deletes expired rows in bounded batches, then reclaims storage
// when warranted.
func (p *Postgres) Cleanup(ctx context.Context) (int64, error) {
	var total int64
	for {
		tag, err := p.pool.Exec(ctx, `
			DELETE FROM analytics_cache
			WHERE id IN (
				SELECT id FROM analytics_cache
				WHERE expiration < NOW()
				LIMIT $1
			)`, cleanupBatchSize)
		if err != nil {
			return total, fmt.Errorf("postgres cache cleanup: %w", err)
		}
		deleted := tag.RowsAffected()
		total += deleted
		if deleted < cleanupBatchSize {
			break
		}
	}

	p.maybeVacuum(ctx, total)
	return total, nil
}

func (p *Postgres) maybeVacuum(ctx context.Context, deleted int64) {
	p.mu.Lock()
	due := deleted > vacuumRowThreshold || p.now().Sub(p.lastVacuum) >= vacuumInterval
	if due {
		p.lastVacuum = p.now()
	}
	p.mu.Unlock()

	if !due {
		return
	}
	if _, err := p.pool.Exec(ctx, `VACUUM analytics_cache`); err != nil {
		logging.Warnf("cache: postgres vacuum failed: %v", err)
	}
}

func (p *Postgres) Close() error {
	p.pool.Close()
	return nil
}
