// Package watcher reloads the configuration file when it changes on
// disk and reapplies the settings that are safe to change at runtime.
package watcher

import (
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/edgestats/edgestats/internal/config"
	"github.com/edgestats/edgestats/internal/logging"
)

// debounceDelay coalesces the burst of write events editors and atomic
// renames produce for a single save.
const debounceDelay = 250 * time.Millisecond

// Watcher monitors one config file. Apply receives the freshly loaded
// config after every effective change.
type Watcher struct {
	path  string
	apply func(*config.Config)

	lastHash string
	lastCfg  *config.Config

	stopChan chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// New creates a watcher for path. current is the config the process is
// running with; apply runs on the watcher goroutine.
func New(path string, current *config.Config, apply func(*config.Config)) *Watcher {
	return &Watcher{
		path:     path,
		apply:    apply,
		lastHash: hashFile(path),
		lastCfg:  current,
		stopChan: make(chan struct{}),
	}
}

// Start begins watching. The parent directory is watched rather than
// the file itself so atomic replace (write temp, rename) keeps working.
func (w *Watcher) Start() error {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	if err := fsw.Add(filepath.Dir(w.path)); err != nil {
		fsw.Close()
		return err
	}

	w.wg.Add(1)
	go w.loop(fsw)
	logging.Debugf("watcher: monitoring %s", w.path)
	return nil
}

// Stop terminates the watch loop and waits for it to exit.
func (w *Watcher) Stop() {
	w.stopOnce.Do(func() {
		close(w.stopChan)
	})
	w.wg.Wait()
}

func (w *Watcher) loop(fsw *fsnotify.Watcher) {
	defer w.wg.Done()
	defer fsw.Close()

	var debounce *time.Timer
	var debounceC <-chan time.Time

	for {
		select {
		case <-w.stopChan:
			return
		case event, ok := <-fsw.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != filepath.Clean(w.path) {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			if debounce == nil {
				debounce = time.NewTimer(debounceDelay)
				debounceC = debounce.C
			} else {
				debounce.Reset(debounceDelay)
			}
		case <-debounceC:
			debounce = nil
			debounceC = nil
			w.reload()
		case err, ok := <-fsw.Errors:
			if !ok {
				return
			}
			logging.Warnf("watcher: %v", err)
		}
	}
}

// reload re-reads the file, skipping events that did not change its
// content (touch, metadata-only writes, duplicate notifications).
func (w *Watcher) reload() {
	hash := hashFile(w.path)
	if hash == "" || hash == w.lastHash {
		return
	}

	cfg, err := config.LoadConfig(w.path)
	if err != nil {
		logging.Warnf("watcher: config reload failed, keeping previous settings: %v", err)
		return
	}
	w.lastHash = hash

	changes := buildConfigChangeDetails(w.lastCfg, cfg)
	if len(changes) == 0 {
		logging.Debugf("watcher: config rewritten without effective changes")
		w.lastCfg = cfg
		return
	}
	logging.Infof("watcher: configuration reloaded from %s", w.path)
	for _, change := range changes {
		logging.Infof("watcher:   %s", change)
	}
	w.lastCfg = cfg
	w.apply(cfg)
}

func hashFile(path string) string {
	data, err := os.ReadFile(path)
	if err != nil {
		return ""
	}
	return hashBytes(data)
}
