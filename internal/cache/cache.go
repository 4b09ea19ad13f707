// Package cache memoizes provider lookups with per-entry TTLs, a small
// in-process hot tier and sqlite persistence that survives restarts.
// Concurrent reads of the same cold key are coalesced into one fetch.
package cache

import (
	"context"
	"fmt"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/singleflight"

	"github.com/mac-tron/brewhaul/internal/store"
)

// DefaultTTL is applied to fetched entries unless overridden. It matches
// the upstream catalog refresh interval.
const DefaultTTL = 24 * time.Hour

// hotEntries caps the in-process tier; the catalog plus per-query lookups
// fit comfortably below this.
const hotEntries = 256

// Clock abstracts time.Now so TTL expiry is testable without real delays.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// SystemClock returns the wall clock.
func SystemClock() Clock { return systemClock{} }

// Fetcher loads the value for a key when the cache cannot serve it.
type Fetcher func(ctx context.Context, key string) ([]byte, error)

// Backend persists entries across runs. *store.Store satisfies it.
type Backend interface {
	GetCacheEntry(key string) (*store.CacheEntry, error)
	PutCacheEntry(entry *store.CacheEntry) error
	DeleteCacheEntry(key string) error
}

// Cache is a keyed TTL store over a persistence backend and a fetcher.
type Cache struct {
	backend Backend
	fetch   Fetcher
	clock   Clock
	ttl     time.Duration
	hot     *lru.Cache[string, *store.CacheEntry]
	group   singleflight.Group
}

// Option configures a Cache.
type Option func(*Cache)

// WithClock substitutes the time source.
func WithClock(clock Clock) Option {
	return func(c *Cache) { c.clock = clock }
}

// WithTTL sets the TTL stamped onto fetched entries.
func WithTTL(ttl time.Duration) Option {
	return func(c *Cache) { c.ttl = ttl }
}

// New creates a Cache. The fetcher runs on miss or expiry; at most one
// fetch per key is ever in flight.
func New(backend Backend, fetch Fetcher, opts ...Option) (*Cache, error) {
	hot, err := lru.New[string, *store.CacheEntry](hotEntries)
	if err != nil {
		return nil, fmt.Errorf("failed to create hot tier: %w", err)
	}

	c := &Cache{
		backend: backend,
		fetch:   fetch,
		clock:   systemClock{},
		ttl:     DefaultTTL,
		hot:     hot,
	}
	for _, opt := range opts {
		opt(c)
	}

	return c, nil
}

// Get returns the cached value for key, fetching it first when the key is
// cold or expired. A read within the TTL never refetches and returns the
// bytes exactly as stored.
func (c *Cache) Get(ctx context.Context, key string) ([]byte, error) {
	if entry := c.lookup(key); entry != nil {
		return entry.Value, nil
	}

	value, err, _ := c.group.Do(key, func() (any, error) {
		// A waiter that lost the race re-checks before fetching again.
		if entry := c.lookup(key); entry != nil {
			return entry.Value, nil
		}

		fetched, err := c.fetch(ctx, key)
		if err != nil {
			return nil, fmt.Errorf("failed to fetch %s: %w", key, err)
		}

		entry := &store.CacheEntry{
			Key:       key,
			Value:     fetched,
			FetchedAt: c.clock.Now(),
			TTL:       c.ttl,
		}
		c.hot.Add(key, entry)
		// Persistence is best effort; a failed write costs a refetch next run.
		_ = c.backend.PutCacheEntry(entry)

		return fetched, nil
	})
	if err != nil {
		return nil, err
	}

	return value.([]byte), nil
}

// Put stores a value with an explicit TTL without consulting the fetcher.
func (c *Cache) Put(key string, value []byte, ttl time.Duration) error {
	entry := &store.CacheEntry{
		Key:       key,
		Value:     value,
		FetchedAt: c.clock.Now(),
		TTL:       ttl,
	}
	c.hot.Add(key, entry)
	if err := c.backend.PutCacheEntry(entry); err != nil {
		return fmt.Errorf("failed to store %s: %w", key, err)
	}
	return nil
}

// Invalidate drops a key from both tiers. The next Get refetches.
func (c *Cache) Invalidate(key string) error {
	c.hot.Remove(key)
	if err := c.backend.DeleteCacheEntry(key); err != nil {
		return fmt.Errorf("failed to invalidate %s: %w", key, err)
	}
	return nil
}

// Stale returns the persisted entry for key even when expired, or nil when
// the key was never cached. Callers use it as a last resort when a refetch
// fails.
func (c *Cache) Stale(key string) (*store.CacheEntry, error) {
	entry, err := c.backend.GetCacheEntry(key)
	if err != nil {
		return nil, fmt.Errorf("failed to read stale entry %s: %w", key, err)
	}
	return entry, nil
}

// lookup returns a live entry from the hot tier or the backend, or nil on
// miss. An expired persisted entry is treated as a cold miss.
func (c *Cache) lookup(key string) *store.CacheEntry {
	if entry, ok := c.hot.Get(key); ok {
		if c.fresh(entry) {
			return entry
		}
		c.hot.Remove(key)
	}

	entry, err := c.backend.GetCacheEntry(key)
	if err != nil || entry == nil {
		return nil
	}
	if !c.fresh(entry) {
		return nil
	}

	c.hot.Add(key, entry)
	return entry
}

func (c *Cache) fresh(entry *store.CacheEntry) bool {
	return c.clock.Now().Before(entry.ExpiresAt())
}
