package partition

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/tinytelemetry/litclock/internal/model"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// gatedFetcher counts calls per hour and blocks until release is closed.
type gatedFetcher struct {
	mu      sync.Mutex
	calls   map[string]int
	started chan string
	release chan struct{}
	fail    map[string]bool
	data    map[string]model.QuotePartition
	version string
}

func newGatedFetcher() *gatedFetcher {
	return &gatedFetcher{
		calls:   make(map[string]int),
		started: make(chan string, 64),
		release: make(chan struct{}),
		fail:    make(map[string]bool),
		data:    make(map[string]model.QuotePartition),
	}
}

func (f *gatedFetcher) Fetch(ctx context.Context, hourKey, version string) (model.QuotePartition, error) {
	f.mu.Lock()
	f.calls[hourKey]++
	f.version = version
	f.mu.Unlock()
	f.started <- hourKey

	select {
	case <-f.release:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	if f.fail[hourKey] {
		return nil, errors.New("boom")
	}
	return f.data[hourKey], nil
}

func (f *gatedFetcher) count(hourKey string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[hourKey]
}

func TestEnsureLoaded_SingleFlight(t *testing.T) {
	f := newGatedFetcher()
	f.data["09"] = model.QuotePartition{"09:15": {{QuoteTimeCase: "quarter past nine"}}}
	s := NewStore(f, Config{Version: "v7"})
	defer s.Close()

	const callers = 16
	var wg sync.WaitGroup
	errs := make(chan error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- s.EnsureLoaded(context.Background(), "09")
		}()
	}

	<-f.started
	assert.Equal(t, Loading, s.State("09"))
	close(f.release)
	wg.Wait()
	close(errs)

	for err := range errs {
		require.NoError(t, err)
	}
	assert.Equal(t, 1, f.count("09"))
	assert.Equal(t, "v7", f.version)
	assert.Equal(t, Resident, s.State("09"))

	part, ok := s.Get("09")
	require.True(t, ok)
	assert.Len(t, part["09:15"], 1)
}

func TestEnsureLoaded_FailureCachesEmptyPartition(t *testing.T) {
	f := newGatedFetcher()
	f.fail["07"] = true
	close(f.release)
	s := NewStore(f, Config{})
	defer s.Close()

	_, ok := s.Get("07")
	require.False(t, ok, "partition resident before any load")
	assert.Equal(t, NotRequested, s.State("07"))

	require.NoError(t, s.EnsureLoaded(context.Background(), "07"))
	part, ok := s.Get("07")
	require.True(t, ok, "failed load must still cache a partition")
	assert.NotNil(t, part)
	assert.Empty(t, part)
	assert.Equal(t, Resident, s.State("07"))

	require.NoError(t, s.EnsureLoaded(context.Background(), "07"))
	assert.Equal(t, 1, f.count("07"), "failed hour refetched")
}

func TestEnsureLoaded_InvalidHour(t *testing.T) {
	s := NewStore(newGatedFetcher(), Config{})
	defer s.Close()

	for _, key := range []string{"24", "7", "ab", ""} {
		assert.ErrorIs(t, s.EnsureLoaded(context.Background(), key), ErrInvalidHour, key)
	}
}

func TestEnsureLoaded_CallerContextDoesNotCancelLoad(t *testing.T) {
	f := newGatedFetcher()
	f.data["10"] = model.QuotePartition{"10:00": {{QuoteTimeCase: "ten"}}}
	s := NewStore(f, Config{})
	defer s.Close()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.EnsureLoaded(ctx, "10") }()

	<-f.started
	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)

	close(f.release)
	require.NoError(t, s.EnsureLoaded(context.Background(), "10"))
	part, ok := s.Get("10")
	require.True(t, ok)
	assert.Len(t, part, 1)
	assert.Equal(t, 1, f.count("10"))
}

func TestPrefetchAround(t *testing.T) {
	f := newGatedFetcher()
	close(f.release)
	s := NewStore(f, Config{PrefetchWindow: 5 * time.Minute})
	defer s.Close()

	s.PrefetchAround(model.TimeOfDay{Hour: 22, Minute: 30})
	s.wg.Wait()
	assert.Equal(t, 0, f.count("23"), "prefetched outside the window")

	s.PrefetchAround(model.TimeOfDay{Hour: 22, Minute: 55})
	s.wg.Wait()
	assert.Equal(t, 1, f.count("23"))

	s.PrefetchAround(model.TimeOfDay{Hour: 23, Minute: 58})
	s.wg.Wait()
	assert.Equal(t, 1, f.count("00"), "prefetch must wrap to midnight")

	s.PrefetchAround(model.TimeOfDay{Hour: 22, Minute: 59})
	s.wg.Wait()
	assert.Equal(t, 1, f.count("23"), "resident partition prefetched again")
}

func TestLoadAllAndStats(t *testing.T) {
	var calls atomic.Int32
	fetch := fetcherFunc(func(_ context.Context, hourKey, _ string) (model.QuotePartition, error) {
		calls.Add(1)
		if hourKey == "03" {
			return model.QuotePartition{
				"03:00": {{QuoteTimeCase: "three"}, {QuoteTimeCase: "three o'clock"}},
				"03:30": {{QuoteTimeCase: "half past three"}},
			}, nil
		}
		return model.QuotePartition{}, nil
	})
	s := NewStore(fetch, Config{})
	defer s.Close()

	require.NoError(t, s.LoadAll(context.Background()))
	assert.EqualValues(t, 24, calls.Load())

	st, err := s.Stats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, st.Total)
	assert.Equal(t, 2, st.MinutesCovered)
	assert.Equal(t, 3, st.ByHour[3])
}

type fetcherFunc func(ctx context.Context, hourKey, version string) (model.QuotePartition, error)

func (f fetcherFunc) Fetch(ctx context.Context, hourKey, version string) (model.QuotePartition, error) {
	return f(ctx, hourKey, version)
}
