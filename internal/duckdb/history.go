package duckdb

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// HistoryConfig holds configuration for the history cleaner.
type HistoryConfig struct {
	// Keep is the number of dataset versions retained. Zero disables
	// cleaning.
	Keep     int
	Interval time.Duration
}

// HistoryCleaner periodically trims the dataset version history.
type HistoryCleaner struct {
	store    *Store
	keep     int
	interval time.Duration
	done     chan struct{}
	wg       sync.WaitGroup
	stopOnce sync.Once
}

// NewHistoryCleaner starts a cleaner. It returns nil when Keep is 0.
func NewHistoryCleaner(store *Store, conf HistoryConfig) *HistoryCleaner {
	if conf.Keep <= 0 {
		return nil
	}
	interval := conf.Interval
	if interval <= 0 {
		interval = time.Hour
	}

	hc := &HistoryCleaner{
		store:    store,
		keep:     conf.Keep,
		interval: interval,
		done:     make(chan struct{}),
	}

	// Catch up after downtime.
	hc.cleanup()

	hc.wg.Add(1)
	go hc.tickLoop()
	return hc
}

func (hc *HistoryCleaner) tickLoop() {
	defer hc.wg.Done()
	ticker := time.NewTicker(hc.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			hc.cleanup()
		case <-hc.done:
			return
		}
	}
}

func (hc *HistoryCleaner) cleanup() {
	rows, err := hc.store.PruneVersions(context.Background(), hc.keep)
	if err != nil {
		hc.store.logger.Warn("history cleanup failed", zap.Error(err))
		return
	}
	if rows > 0 {
		hc.store.logger.Info("history cleanup pruned dataset versions",
			zap.Int64("rows", rows), zap.Int("keep", hc.keep))
	}
}

// Stop signals the cleaner to stop and waits for it to finish. It is safe
// to call on a nil cleaner.
func (hc *HistoryCleaner) Stop() {
	if hc == nil {
		return
	}
	hc.stopOnce.Do(func() {
		close(hc.done)
		hc.wg.Wait()
	})
}
