package cache

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"github.com/edgestats/edgestats/internal/logging"
)

// Cleanup tuning shared by the durable backends.
const (
	cleanupBatchSize = 1000
	// vacuumRowThreshold triggers storage reclamation when a cleanup pass
	// deletes more rows than this.
	vacuumRowThreshold = 100
	// vacuumInterval triggers reclamation on a time basis regardless.
	vacuumInterval = 7 * 24 * time.Hour
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS analytics_cache (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	cache_key TEXT NOT NULL UNIQUE,
	cache_value TEXT NOT NULL,
	expiration INTEGER NOT NULL,
	created_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_analytics_cache_expiration ON analytics_cache(expiration);
`

// SQLite is the durable tier backed by a local SQLite database file.
type SQLite struct {
	db  *sql.DB
	now func() time.Time

	mu         sync.Mutex
	lastVacuum time.Time
}

// NewSQLite opens (and initializes) the cache database at path.
func NewSQLite(path string) (*SQLite, error) {
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return nil, fmt.Errorf("create cache directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite cache: %w", err)
	}
	// modernc.org/sqlite serializes writes; a single connection avoids
	// SQLITE_BUSY under concurrent access.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("initialize cache schema: %w", err)
	}

	return &SQLite{db: db, now: time.Now, lastVacuum: time.Now()}, nil
}

func (s *SQLite) Get(ctx context.Context, key string) (*Entry, error) {
	now := s.now()
	row := s.db.QueryRowContext(ctx, `
		SELECT cache_value, expiration, created_at
		FROM analytics_cache
		WHERE cache_key = ? AND expiration > ?`,
		key, now.Unix())

	var value []byte
	var expiration, createdAt int64
	if err := row.Scan(&value, &expiration, &createdAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("sqlite cache get: %w", err)
	}

	return &Entry{
		Key:       key,
		Value:     value,
		CreatedAt: time.Unix(createdAt, 0),
		ExpiresAt: time.Unix(expiration, 0),
	}, nil
}

func (s *SQLite) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	now := s.now()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO analytics_cache (cache_key, cache_value, expiration, created_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(cache_key) DO UPDATE SET
			cache_value = excluded.cache_value,
			expiration = excluded.expiration,
			created_at = excluded.created_at`,
		key, value, now.Add(ttl).Unix(), now.Unix())
	if err != nil {
		return fmt.Errorf("sqlite cache set: %w", err)
	}
	return nil
}

func (s *SQLite) Delete(ctx context.Context, key string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM analytics_cache WHERE cache_key = ?`, key)
	if err != nil {
		return fmt.Errorf("sqlite cache delete: %w", err)
	}
	return nil
}

func (s *SQLite) FlushAll(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM analytics_cache`)
	if err != nil {
		return fmt.Errorf("sqlite cache flush: %w", err)
	}
	return nil
}

// Cleanup deletes expired rows in bounded batches so a large table never
// holds a long write transaction, then reclaims storage when warranted.
func (s *SQLite) Cleanup(ctx context.Context) (int64, error) {
	var total int64
	for {
		res, err := s.db.ExecContext(ctx, `
			DELETE FROM analytics_cache
			WHERE id IN (
				SELECT id FROM analytics_cache
				WHERE expiration < ?
				LIMIT ?
			)`,
			s.now().Unix(), cleanupBatchSize)
		if err != nil {
			return total, fmt.Errorf("sqlite cache cleanup: %w", err)
		}
		deleted, err := res.RowsAffected()
		if err != nil {
			return total, err
		}
		total += deleted
		if deleted < cleanupBatchSize {
			break
		}
	}

	s.maybeVacuum(ctx, total)
	return total, nil
}

// maybeVacuum reclaims storage after heavy deletion or weekly.
func (s *SQLite) maybeVacuum(ctx context.Context, deleted int64) {
	s.mu.Lock()
	due := deleted > vacuumRowThreshold || s.now().Sub(s.lastVacuum) >= vacuumInterval
	if due {
		s.lastVacuum = s.now()
	}
	s.mu.Unlock()

	if !due {
		return
	}
	if _, err := s.db.ExecContext(ctx, `VACUUM`); err != nil {
		logging.Warnf("cache: sqlite vacuum failed: %v", err)
	}
}

func (s *SQLite) Close() error {
	return s.db.Close()
}
