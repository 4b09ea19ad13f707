package index

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/mac-tron/brewhaul/internal/cache"
)

const (
	// DefaultCatalogURL serves the entire cask catalog as one JSON document.
	DefaultCatalogURL = "https://formulae.brew.sh/api/cask.json"

	// CatalogKey is the cache key the catalog payload is stored under.
	CatalogKey = "homebrew-casks"

	// staleLimit caps how old a cached copy may be when a refresh fails.
	// Beyond this the copy is considered too far from reality to trust.
	staleLimit = 48 * time.Hour

	fetchRetries = 2

	httpTimeout = 30 * time.Second
)

// Client loads the cask catalog through the persistent cache, refreshing
// over HTTP when the cached copy has expired.
type Client struct {
	url   string
	http  *http.Client
	cache *cache.Cache
	clock cache.Clock

	mu      sync.Mutex
	catalog *Catalog
	staleAt time.Time
}

// ClientOption configures a Client.
type ClientOption func(*clientConfig)

type clientConfig struct {
	url   string
	ttl   time.Duration
	clock cache.Clock
	http  *http.Client
}

// WithCatalogURL overrides the catalog endpoint.
func WithCatalogURL(url string) ClientOption {
	return func(cfg *clientConfig) { cfg.url = url }
}

// WithTTL overrides how long a fetched catalog stays fresh.
func WithTTL(ttl time.Duration) ClientOption {
	return func(cfg *clientConfig) { cfg.ttl = ttl }
}

// WithClock substitutes the time source.
func WithClock(clock cache.Clock) ClientOption {
	return func(cfg *clientConfig) { cfg.clock = clock }
}

// WithHTTPClient substitutes the HTTP client.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(cfg *clientConfig) { cfg.http = hc }
}

// NewClient builds a catalog client on top of the given cache backend.
func NewClient(backend cache.Backend, opts ...ClientOption) (*Client, error) {
	cfg := clientConfig{
		url:   DefaultCatalogURL,
		ttl:   cache.DefaultTTL,
		clock: cache.SystemClock(),
		http:  &http.Client{Timeout: httpTimeout},
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	c := &Client{
		url:   cfg.url,
		http:  cfg.http,
		clock: cfg.clock,
	}

	cc, err := cache.New(backend, c.fetchCatalog,
		cache.WithTTL(cfg.ttl),
		cache.WithClock(cfg.clock),
	)
	if err != nil {
		return nil, err
	}
	c.cache = cc

	return c, nil
}

// Load returns the parsed catalog, fetching or refreshing it as needed.
// When a refresh fails but an expired copy no older than the stale limit is
// still on disk, that copy is served and StaleAt reports its fetch time.
func (c *Client) Load(ctx context.Context) (*Catalog, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.catalog != nil {
		return c.catalog, nil
	}

	raw, err := c.cache.Get(ctx, CatalogKey)
	if err != nil {
		entry, staleErr := c.cache.Stale(CatalogKey)
		if staleErr != nil || entry == nil || c.clock.Now().Sub(entry.FetchedAt) > staleLimit {
			return nil, fmt.Errorf("failed to load cask catalog: %w", err)
		}
		raw = entry.Value
		c.staleAt = entry.FetchedAt
	}

	entries, err := parseCatalog(raw)
	if err != nil {
		return nil, err
	}

	c.catalog = NewCatalog(entries)
	return c.catalog, nil
}

// StaleAt reports when the served catalog was originally fetched, if Load
// had to fall back to an expired copy. The zero time means the catalog is
// fresh.
func (c *Client) StaleAt() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.staleAt
}

// Invalidate drops the cached catalog so the next Load refetches. Call it
// after installing or removing casks, since the installed state bound to
// the catalog has changed.
func (c *Client) Invalidate() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.catalog = nil
	c.staleAt = time.Time{}
	return c.cache.Invalidate(CatalogKey)
}

func (c *Client) fetchCatalog(ctx context.Context, _ string) ([]byte, error) {
	var body []byte

	operation := func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, nil)
		if err != nil {
			return backoff.Permanent(err)
		}

		resp, err := c.http.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			return fmt.Errorf("catalog request returned %s", resp.Status)
		}

		body, err = io.ReadAll(resp.Body)
		return err
	}

	policy := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), fetchRetries), ctx)
	if err := backoff.Retry(operation, policy); err != nil {
		return nil, fmt.Errorf("failed to fetch cask catalog: %w", err)
	}

	return body, nil
}
