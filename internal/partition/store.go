// Package partition keeps the hour-partitioned quote dataset resident on
// demand, loading each hour at most once.
package partition

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/tinytelemetry/litclock/internal/model"
)

// ErrInvalidHour is returned for keys other than "00".."23".
var ErrInvalidHour = errors.New("partition: invalid hour key")

// State is the load state of one hour partition.
type State int

const (
	NotRequested State = iota
	Loading
	Resident
)

func (s State) String() string {
	switch s {
	case Loading:
		return "loading"
	case Resident:
		return "resident"
	default:
		return "not-requested"
	}
}

// Fetcher retrieves one hour partition. version is the dataset version
// token and must be part of any cacheable request.
type Fetcher interface {
	Fetch(ctx context.Context, hourKey, version string) (model.QuotePartition, error)
}

// Config tunes a Store.
type Config struct {
	Version        string
	PrefetchWindow time.Duration
	Logger         *zap.Logger
}

// Store is the hourly data cache. Partitions become resident once and are
// never evicted. A failed load is cached as an empty partition so the
// clock degrades to "no quote" instead of refetching every minute.
type Store struct {
	fetcher        Fetcher
	version        string
	prefetchWindow time.Duration
	logger         *zap.Logger

	ctx    context.Context
	cancel context.CancelFunc
	flight singleflight.Group
	wg     sync.WaitGroup

	mu       sync.RWMutex
	resident map[string]model.QuotePartition
	loading  map[string]bool
}

// NewStore creates an empty store.
func NewStore(fetcher Fetcher, cfg Config) *Store {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	version := cfg.Version
	if version == "" {
		version = model.DefaultDatasetVersion
	}
	window := cfg.PrefetchWindow
	if window <= 0 {
		window = model.DefaultPrefetchWindow
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Store{
		fetcher:        fetcher,
		version:        version,
		prefetchWindow: window,
		logger:         logger.Named("partition"),
		ctx:            ctx,
		cancel:         cancel,
		resident:       make(map[string]model.QuotePartition, model.HoursPerDay),
		loading:        make(map[string]bool),
	}
}

// Version returns the dataset version token sent with each fetch.
func (s *Store) Version() string { return s.version }

// Get returns the partition for hourKey when it is resident.
func (s *Store) Get(hourKey string) (model.QuotePartition, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.resident[hourKey]
	return p, ok
}

// State reports the load state of hourKey.
func (s *Store) State(hourKey string) State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if _, ok := s.resident[hourKey]; ok {
		return Resident
	}
	if s.loading[hourKey] {
		return Loading
	}
	return NotRequested
}

// EnsureLoaded makes hourKey resident. Concurrent callers share one fetch.
// Fetch failures are absorbed; the only errors are ErrInvalidHour and the
// caller's context ending while it waits.
func (s *Store) EnsureLoaded(ctx context.Context, hourKey string) error {
	if _, err := model.ParseHourKey(hourKey); err != nil {
		return ErrInvalidHour
	}
	if _, ok := s.Get(hourKey); ok {
		return nil
	}

	ch := s.flight.DoChan(hourKey, func() (interface{}, error) {
		return nil, s.load(hourKey)
	})
	select {
	case <-ch:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// load runs inside the single flight for hourKey.
func (s *Store) load(hourKey string) error {
	s.mu.Lock()
	if _, ok := s.resident[hourKey]; ok {
		s.mu.Unlock()
		return nil
	}
	s.loading[hourKey] = true
	s.mu.Unlock()

	start := time.Now()
	part, err := s.fetcher.Fetch(s.ctx, hourKey, s.version)
	if err != nil {
		s.logger.Warn("partition load failed, caching empty partition",
			zap.String("hour", hourKey),
			zap.String("version", s.version),
			zap.Error(err))
		part = model.QuotePartition{}
	} else if part == nil {
		part = model.QuotePartition{}
	}

	s.mu.Lock()
	delete(s.loading, hourKey)
	s.resident[hourKey] = part
	s.mu.Unlock()

	if err == nil {
		s.logger.Debug("partition resident",
			zap.String("hour", hourKey),
			zap.Int("quotes", part.Count()),
			zap.Duration("took", time.Since(start)))
	}
	return nil
}

// Prefetch starts loading hourKey in the background.
func (s *Store) Prefetch(hourKey string) {
	if _, ok := s.Get(hourKey); ok {
		return
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if err := s.EnsureLoaded(s.ctx, hourKey); err != nil && !errors.Is(err, context.Canceled) {
			s.logger.Debug("prefetch skipped", zap.String("hour", hourKey), zap.Error(err))
		}
	}()
}

// PrefetchAround prefetches the partition that will be needed next: the
// following hour, once t is inside the prefetch window before the hour
// boundary.
func (s *Store) PrefetchAround(t model.TimeOfDay) {
	minutesLeft := time.Duration(60-t.Minute) * time.Minute
	if minutesLeft <= s.prefetchWindow {
		s.Prefetch(t.NextHour().HourKey())
	}
}

// LoadAll makes every hour resident, four fetches at a time.
func (s *Store) LoadAll(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(4)
	for h := 0; h < model.HoursPerDay; h++ {
		key := model.HourKey(h)
		g.Go(func() error {
			return s.EnsureLoaded(gctx, key)
		})
	}
	return g.Wait()
}

// Stats summarises the resident partitions.
func (s *Store) Stats(_ context.Context) (model.DatasetStats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var st model.DatasetStats
	for key, part := range s.resident {
		h, err := model.ParseHourKey(key)
		if err != nil {
			continue
		}
		for _, quotes := range part {
			if len(quotes) == 0 {
				continue
			}
			st.MinutesCovered++
			st.Total += len(quotes)
			st.ByHour[h] += len(quotes)
		}
	}
	return st, nil
}

// Close cancels in-flight fetches and waits for prefetches to finish.
func (s *Store) Close() {
	s.cancel()
	s.wg.Wait()
}
