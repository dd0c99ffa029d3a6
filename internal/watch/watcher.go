// Package watch reloads the dataset when its file changes on disk.
package watch

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// DefaultDebounce batches the burst of events an editor or copy produces.
const DefaultDebounce = 500 * time.Millisecond

// ReloadFunc is called once per settled burst of changes.
type ReloadFunc func(ctx context.Context) error

// Stats tracks watcher activity.
type Stats struct {
	Events     int
	Reloads    int
	Errors     int
	LastReload time.Time
	LastError  string
}

// Config tunes a DatasetWatcher.
type Config struct {
	Debounce time.Duration
	Logger   *zap.Logger
}

// DatasetWatcher watches one file. The parent directory is watched so
// atomic replace-by-rename is seen.
type DatasetWatcher struct {
	path     string
	reload   ReloadFunc
	debounce time.Duration
	logger   *zap.Logger
	watcher  *fsnotify.Watcher

	mu        sync.Mutex
	running   bool
	lastEvent time.Time
	dirty     bool
	stats     Stats
	stopCh    chan struct{}
	doneCh    chan struct{}
}

// New creates a watcher for path.
func New(path string, reload ReloadFunc, cfg Config) (*DatasetWatcher, error) {
	if reload == nil {
		return nil, errors.New("watch: reload func is required")
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	debounce := cfg.Debounce
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DatasetWatcher{
		path:     abs,
		reload:   reload,
		debounce: debounce,
		logger:   logger.Named("watch"),
		watcher:  w,
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}, nil
}

// Start begins watching. It does not block.
func (dw *DatasetWatcher) Start(ctx context.Context) error {
	dw.mu.Lock()
	if dw.running {
		dw.mu.Unlock()
		return nil
	}
	dw.running = true
	dw.mu.Unlock()

	if err := dw.watcher.Add(filepath.Dir(dw.path)); err != nil {
		dw.mu.Lock()
		dw.running = false
		dw.mu.Unlock()
		return err
	}
	dw.logger.Info("watching dataset", zap.String("path", dw.path), zap.Duration("debounce", dw.debounce))

	go dw.run(ctx)
	return nil
}

// Stop ends the watch and waits for any running reload.
func (dw *DatasetWatcher) Stop() {
	dw.mu.Lock()
	if !dw.running {
		dw.mu.Unlock()
		_ = dw.watcher.Close()
		return
	}
	dw.running = false
	dw.mu.Unlock()

	close(dw.stopCh)
	<-dw.doneCh
	if err := dw.watcher.Close(); err != nil {
		dw.logger.Warn("close watcher", zap.Error(err))
	}
}

// Stats returns a copy of the activity counters.
func (dw *DatasetWatcher) Stats() Stats {
	dw.mu.Lock()
	defer dw.mu.Unlock()
	return dw.stats
}

func (dw *DatasetWatcher) run(ctx context.Context) {
	defer close(dw.doneCh)

	tick := dw.debounce / 5
	if tick < 10*time.Millisecond {
		tick = 10 * time.Millisecond
	}
	ticker := time.NewTicker(tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-dw.stopCh:
			return
		case event, ok := <-dw.watcher.Events:
			if !ok {
				return
			}
			dw.handleEvent(event)
		case err, ok := <-dw.watcher.Errors:
			if !ok {
				return
			}
			dw.logger.Warn("watch error", zap.Error(err))
			dw.mu.Lock()
			dw.stats.Errors++
			dw.mu.Unlock()
		case <-ticker.C:
			dw.maybeReload(ctx)
		}
	}
}

func (dw *DatasetWatcher) handleEvent(event fsnotify.Event) {
	if filepath.Clean(event.Name) != dw.path {
		return
	}
	if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) && !event.Has(fsnotify.Rename) {
		return
	}
	dw.logger.Debug("dataset event", zap.String("op", event.Op.String()))

	dw.mu.Lock()
	dw.stats.Events++
	dw.lastEvent = time.Now()
	dw.dirty = true
	dw.mu.Unlock()
}

func (dw *DatasetWatcher) maybeReload(ctx context.Context) {
	dw.mu.Lock()
	if !dw.dirty || time.Since(dw.lastEvent) < dw.debounce {
		dw.mu.Unlock()
		return
	}
	dw.dirty = false
	dw.mu.Unlock()

	err := dw.reload(ctx)

	dw.mu.Lock()
	defer dw.mu.Unlock()
	if err != nil {
		dw.stats.Errors++
		dw.stats.LastError = err.Error()
		dw.logger.Warn("dataset reload failed", zap.Error(err))
		return
	}
	dw.stats.Reloads++
	dw.stats.LastReload = time.Now()
}
