package cache

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mac-tron/brewhaul/internal/store"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// countingFetcher counts invocations and serves a fixed payload per call.
type countingFetcher struct {
	calls   int32
	payload func(n int32) []byte
	err     error
}

func (f *countingFetcher) fetch(ctx context.Context, key string) ([]byte, error) {
	n := atomic.AddInt32(&f.calls, 1)
	if f.err != nil {
		return nil, f.err
	}
	if f.payload != nil {
		return f.payload(n), nil
	}
	return []byte("payload"), nil
}

func (f *countingFetcher) count() int32 {
	return atomic.LoadInt32(&f.calls)
}

func newTestBackend(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.New(":memory:")
	require.NoError(t, err)
	require.NoError(t, s.CreateSchema())
	t.Cleanup(func() { s.Close() })
	return s
}

func TestGetFetchesOnceWithinTTL(t *testing.T) {
	backend := newTestBackend(t)
	clock := newFakeClock()
	fetcher := &countingFetcher{}

	c, err := New(backend, fetcher.fetch, WithClock(clock), WithTTL(time.Hour))
	require.NoError(t, err)

	first, err := c.Get(context.Background(), "homebrew-casks")
	require.NoError(t, err)

	clock.Advance(59 * time.Minute)

	second, err := c.Get(context.Background(), "homebrew-casks")
	require.NoError(t, err)

	assert.Equal(t, int32(1), fetcher.count(), "a read within the TTL must not refetch")
	assert.Equal(t, first, second, "cached reads must return identical bytes")
}

func TestGetRefetchesAfterExpiry(t *testing.T) {
	backend := newTestBackend(t)
	clock := newFakeClock()
	fetcher := &countingFetcher{payload: func(n int32) []byte {
		if n == 1 {
			return []byte("old")
		}
		return []byte("new")
	}}

	c, err := New(backend, fetcher.fetch, WithClock(clock), WithTTL(time.Hour))
	require.NoError(t, err)

	first, err := c.Get(context.Background(), "homebrew-casks")
	require.NoError(t, err)
	assert.Equal(t, []byte("old"), first)

	clock.Advance(61 * time.Minute)

	second, err := c.Get(context.Background(), "homebrew-casks")
	require.NoError(t, err)

	assert.Equal(t, int32(2), fetcher.count(), "an expired entry must trigger exactly one refetch")
	assert.Equal(t, []byte("new"), second, "an expired read must never return the stale value")
}

func TestConcurrentGetsCoalesce(t *testing.T) {
	backend := newTestBackend(t)
	clock := newFakeClock()

	var fetches int32
	release := make(chan struct{})
	fetch := func(ctx context.Context, key string) ([]byte, error) {
		atomic.AddInt32(&fetches, 1)
		<-release
		return []byte("payload"), nil
	}

	c, err := New(backend, fetch, WithClock(clock))
	require.NoError(t, err)

	const readers = 10
	var wg sync.WaitGroup
	results := make([][]byte, readers)
	errs := make([]error, readers)
	for i := 0; i < readers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = c.Get(context.Background(), "homebrew-casks")
		}(i)
	}

	// Let the readers pile up on the in-flight fetch, then release it.
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.Equal(t, int32(1), atomic.LoadInt32(&fetches), "concurrent cold reads must share one fetch")
	for i := 0; i < readers; i++ {
		require.NoError(t, errs[i])
		assert.Equal(t, []byte("payload"), results[i])
	}
}

func TestPersistsAcrossRestarts(t *testing.T) {
	backend := newTestBackend(t)
	clock := newFakeClock()
	fetcher := &countingFetcher{}

	first, err := New(backend, fetcher.fetch, WithClock(clock), WithTTL(time.Hour))
	require.NoError(t, err)

	_, err = first.Get(context.Background(), "homebrew-casks")
	require.NoError(t, err)

	// A fresh Cache over the same backend simulates a new process.
	second, err := New(backend, fetcher.fetch, WithClock(clock), WithTTL(time.Hour))
	require.NoError(t, err)

	value, err := second.Get(context.Background(), "homebrew-casks")
	require.NoError(t, err)

	assert.Equal(t, int32(1), fetcher.count(), "a persisted entry must survive a restart")
	assert.Equal(t, []byte("payload"), value)
}

func TestExpiredPersistedEntryIsColdMiss(t *testing.T) {
	backend := newTestBackend(t)
	clock := newFakeClock()
	fetcher := &countingFetcher{}

	require.NoError(t, backend.PutCacheEntry(&store.CacheEntry{
		Key:       "homebrew-casks",
		Value:     []byte("ancient"),
		FetchedAt: clock.Now().Add(-48 * time.Hour),
		TTL:       24 * time.Hour,
	}))

	c, err := New(backend, fetcher.fetch, WithClock(clock))
	require.NoError(t, err)

	value, err := c.Get(context.Background(), "homebrew-casks")
	require.NoError(t, err)

	assert.Equal(t, int32(1), fetcher.count())
	assert.Equal(t, []byte("payload"), value)
}

func TestPutServesWithoutFetching(t *testing.T) {
	backend := newTestBackend(t)
	clock := newFakeClock()
	fetcher := &countingFetcher{}

	c, err := New(backend, fetcher.fetch, WithClock(clock))
	require.NoError(t, err)

	require.NoError(t, c.Put("query/slack", []byte("pinned"), time.Hour))

	value, err := c.Get(context.Background(), "query/slack")
	require.NoError(t, err)

	assert.Equal(t, int32(0), fetcher.count())
	assert.Equal(t, []byte("pinned"), value)
}

func TestInvalidateForcesRefetch(t *testing.T) {
	backend := newTestBackend(t)
	clock := newFakeClock()
	fetcher := &countingFetcher{}

	c, err := New(backend, fetcher.fetch, WithClock(clock))
	require.NoError(t, err)

	_, err = c.Get(context.Background(), "homebrew-casks")
	require.NoError(t, err)

	require.NoError(t, c.Invalidate("homebrew-casks"))

	_, err = c.Get(context.Background(), "homebrew-casks")
	require.NoError(t, err)

	assert.Equal(t, int32(2), fetcher.count())
}

func TestFetchErrorPropagatesAndIsNotCached(t *testing.T) {
	backend := newTestBackend(t)
	clock := newFakeClock()
	fetcher := &countingFetcher{err: errors.New("network down")}

	c, err := New(backend, fetcher.fetch, WithClock(clock))
	require.NoError(t, err)

	_, err = c.Get(context.Background(), "homebrew-casks")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "network down")

	// The failure must not be cached; the next read tries again.
	_, err = c.Get(context.Background(), "homebrew-casks")
	require.Error(t, err)
	assert.Equal(t, int32(2), fetcher.count())
}

func TestStaleReturnsExpiredEntry(t *testing.T) {
	backend := newTestBackend(t)
	clock := newFakeClock()
	fetcher := &countingFetcher{}

	require.NoError(t, backend.PutCacheEntry(&store.CacheEntry{
		Key:       "homebrew-casks",
		Value:     []byte("ancient"),
		FetchedAt: clock.Now().Add(-48 * time.Hour),
		TTL:       24 * time.Hour,
	}))

	c, err := New(backend, fetcher.fetch, WithClock(clock))
	require.NoError(t, err)

	entry, err := c.Stale("homebrew-casks")
	require.NoError(t, err)
	require.NotNil(t, entry)
	assert.Equal(t, []byte("ancient"), entry.Value)

	missing, err := c.Stale("never-cached")
	require.NoError(t, err)
	assert.Nil(t, missing)
}
