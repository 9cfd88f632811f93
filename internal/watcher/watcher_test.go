package watcher

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/edgestats/edgestats/internal/config"
)

func writeConfig(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
}

func TestWatcherReloadsOnContentChange(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	writeConfig(t, path, "port: 8419\ncache-ttl-seconds: 300\n")

	initial, err := config.LoadConfig(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	applied := make(chan *config.Config, 1)
	w := New(path, initial, func(cfg *config.Config) {
		applied <- cfg
	})
	if err := w.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	defer w.Stop()

	writeConfig(t, path, "port: 8419\ncache-ttl-seconds: 600\n")

	select {
	case cfg := <-applied:
		if cfg.CacheTTLSeconds != 600 {
			t.Errorf("expected reloaded ttl 600, got %d", cfg.CacheTTLSeconds)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("reload never applied")
	}
}

func TestWatcherIgnoresNoopRewrite(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := "port: 8419\n"
	writeConfig(t, path, content)

	initial, _ := config.LoadConfig(path)
	applied := make(chan *config.Config, 1)
	w := New(path, initial, func(cfg *config.Config) {
		applied <- cfg
	})
	if err := w.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	defer w.Stop()

	// Identical bytes: the content hash suppresses the apply.
	writeConfig(t, path, content)

	select {
	case <-applied:
		t.Fatal("identical rewrite must not trigger apply")
	case <-time.After(700 * time.Millisecond):
	}
}

func TestBuildConfigChangeDetailsRedactsCredentials(t *testing.T) {
	oldCfg := config.NewDefaultConfig()
	newCfg := config.NewDefaultConfig()
	newCfg.APIToken = "sealed-ciphertext"
	newCfg.RateLimitPerHour = 50

	changes := buildConfigChangeDetails(oldCfg, newCfg)
	if len(changes) != 2 {
		t.Fatalf("expected 2 changes, got %v", changes)
	}
	for _, change := range changes {
		if strings.Contains(change, "sealed-ciphertext") {
			t.Errorf("credential value leaked: %s", change)
		}
	}
}
