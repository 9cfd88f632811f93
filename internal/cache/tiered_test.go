package cache

import (
	"context"
	"path/filepath"
	"testing"
	"time"
)

// fakeDurable records calls so tier interaction is observable.
type fakeDurable struct {
	Memory
	gets, sets int
}

func newFakeDurable() *fakeDurable {
	f := &fakeDurable{}
	f.entries = make(map[string]Entry)
	f.now = time.Now
	return f
}

func (f *fakeDurable) Get(ctx context.Context, key string) (*Entry, error) {
	f.gets++
	return f.Memory.Get(ctx, key)
}

func (f *fakeDurable) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	f.sets++
	return f.Memory.Set(ctx, key, value, ttl)
}

func TestTieredWriteHitsBothTiers(t *testing.T) {
	ctx := context.Background()
	durable := newFakeDurable()
	tiered := NewTiered(durable)

	if err := tiered.Set(ctx, "k", []byte("v"), time.Minute); err != nil {
		t.Fatalf("set: %v", err)
	}
	if durable.sets != 1 {
		t.Errorf("expected durable write, got %d", durable.sets)
	}
	if entry, _ := tiered.volatile.Get(ctx, "k"); entry == nil {
		t.Error("expected volatile write")
	}
}

func TestTieredVolatileHitSkipsDurable(t *testing.T) {
	ctx := context.Background()
	durable := newFakeDurable()
	tiered := NewTiered(durable)

	tiered.Set(ctx, "k", []byte("v"), time.Minute)
	durable.gets = 0

	entry, err := tiered.Get(ctx, "k")
	if err != nil || entry == nil {
		t.Fatalf("expected hit, got entry=%v err=%v", entry, err)
	}
	if durable.gets != 0 {
		t.Errorf("durable tier consulted on volatile hit (%d gets)", durable.gets)
	}
}

func TestTieredDurableHitRepopulatesVolatile(t *testing.T) {
	ctx := context.Background()
	durable := newFakeDurable()
	tiered := NewTiered(durable)

	// Seed the durable tier only, simulating a restart.
	durable.Set(ctx, "k", []byte("v"), time.Hour)
	durable.sets = 0

	entry, err := tiered.Get(ctx, "k")
	if err != nil || entry == nil {
		t.Fatalf("expected durable hit, got entry=%v err=%v", entry, err)
	}

	volatileEntry, _ := tiered.volatile.Get(ctx, "k")
	if volatileEntry == nil {
		t.Fatal("expected volatile repopulation")
	}
	ttl := time.Until(volatileEntry.ExpiresAt)
	if ttl <= 0 || ttl > ReadThroughTTL {
		t.Errorf("read-through TTL out of range: %v", ttl)
	}
}

func TestTieredMiss(t *testing.T) {
	tiered := NewTiered(newFakeDurable())
	entry, err := tiered.Get(context.Background(), "absent")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if entry != nil {
		t.Fatalf("expected miss, got %+v", entry)
	}
}

func TestSQLiteBackend(t *testing.T) {
	ctx := context.Background()
	store, err := NewSQLite(filepath.Join(t.TempDir(), "cache.db"))
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	defer store.Close()

	if err := store.Set(ctx, "analytics_24", []byte(`{"requests":10}`), time.Minute); err != nil {
		t.Fatalf("set: %v", err)
	}

	entry, err := store.Get(ctx, "analytics_24")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if entry == nil || string(entry.Value) != `{"requests":10}` {
		t.Fatalf("unexpected entry: %+v", entry)
	}

	// Overwrite keeps a single live row per key.
	if err := store.Set(ctx, "analytics_24", []byte(`{"requests":20}`), time.Minute); err != nil {
		t.Fatalf("overwrite: %v", err)
	}
	entry, _ = store.Get(ctx, "analytics_24")
	if string(entry.Value) != `{"requests":20}` {
		t.Errorf("expected overwrite, got %s", entry.Value)
	}

	if err := store.Delete(ctx, "analytics_24"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if entry, _ := store.Get(ctx, "analytics_24"); entry != nil {
		t.Error("expected miss after delete")
	}
}

func TestSQLiteCleanupRemovesOnlyExpired(t *testing.T) {
	ctx := context.Background()
	store, err := NewSQLite(filepath.Join(t.TempDir(), "cache.db"))
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	defer store.Close()

	current := time.Now()
	store.now = func() time.Time { return current }

	store.Set(ctx, "dead", []byte("a"), time.Minute)
	store.Set(ctx, "live", []byte("b"), time.Hour)

	current = current.Add(10 * time.Minute)

	removed, err := store.Cleanup(ctx)
	if err != nil {
		t.Fatalf("cleanup: %v", err)
	}
	if removed != 1 {
		t.Errorf("expected 1 expired row removed, got %d", removed)
	}

	if entry, _ := store.Get(ctx, "live"); entry == nil {
		t.Error("live entry should survive cleanup")
	}
	if entry, _ := store.Get(ctx, "dead"); entry != nil {
		t.Error("expired entry should be gone")
	}

	removed, _ = store.Cleanup(ctx)
	if removed != 0 {
		t.Errorf("cleanup should be idempotent, removed %d", removed)
	}
}
