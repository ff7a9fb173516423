// Package fetcher performs outbound HTTP GETs through a persistent response cache.
//
// Responses are keyed by method, URL (with sorted query) and the headers that change the
// representation. A 2xx body stays fresh for DefaultTTL; later requests for the same key are
// answered from the store without touching the network.
package fetcher

import (
	"context"
	"errors"
	"io"
	"log"
	"net/http"
	"net/url"
	"sync/atomic"
	"time"

	"github.com/avast/retry-go/v4"
	"golang.org/x/sync/singleflight"

	"cinelist/storage"
)

const (
	// DefaultTTL is the freshness window for every cached response.
	DefaultTTL = 24 * time.Hour
	// RequestTimeout bounds a single outbound request.
	RequestTimeout = 20 * time.Second

	defaultAttempts   = 2
	defaultRetryDelay = 250 * time.Millisecond
)

// Store persists cache entries. storage.SQLiteStorage satisfies it.
type Store interface {
	GetEntry(key string) (storage.CacheEntry, bool, error)
	SaveEntry(entry storage.CacheEntry) error
}

// Client is a cache-backed HTTP client. It is safe for concurrent use.
type Client struct {
	name  string
	store Store
	base  http.RoundTripper
	ttl   time.Duration
	now   func() time.Time

	attempts   uint
	retryDelay time.Duration

	group      singleflight.Group
	httpClient *http.Client

	hits   atomic.Int64
	misses atomic.Int64
}

type Option func(*Client)

// WithName sets the label used in log lines.
func WithName(name string) Option {
	return func(c *Client) { c.name = name }
}

// WithBaseTransport replaces the transport used for cache misses.
func WithBaseTransport(rt http.RoundTripper) Option {
	return func(c *Client) { c.base = rt }
}

// WithClock replaces time.Now, for expiry tests.
func WithClock(now func() time.Time) Option {
	return func(c *Client) { c.now = now }
}

// WithRetry sets how many times a request that failed at the network level is tried.
// HTTP error statuses are never retried.
func WithRetry(attempts uint, delay time.Duration) Option {
	return func(c *Client) {
		if attempts > 0 {
			c.attempts = attempts
		}
		c.retryDelay = delay
	}
}

// WithTTL overrides DefaultTTL.
func WithTTL(ttl time.Duration) Option {
	return func(c *Client) { c.ttl = ttl }
}

func New(store Store, opts ...Option) *Client {
	c := &Client{
		name:  "http",
		store: store,
		base:  http.DefaultTransport,
		ttl:   DefaultTTL,
		now:   time.Now,

		attempts:   defaultAttempts,
		retryDelay: defaultRetryDelay,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.httpClient = &http.Client{
		Transport: c.Transport(),
		Timeout:   RequestTimeout,
	}
	return c
}

func (c *Client) Name() string { return c.name }

// Stats counts requests answered from the cache (Hits) and sent upstream (Misses).
type Stats struct {
	Hits   int64
	Misses int64
}

func (c *Client) Stats() Stats {
	return Stats{Hits: c.hits.Load(), Misses: c.misses.Load()}
}

// Fetch GETs rawURL with params merged into its query and returns the response body.
// Any failure, including a non-2xx status, is returned as *FetchError.
func (c *Client) Fetch(ctx context.Context, rawURL string, params url.Values, headers http.Header) ([]byte, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, &FetchError{URL: rawURL, Err: err}
	}
	if len(params) > 0 {
		q := u.Query()
		for k, vs := range params {
			q.Del(k)
			for _, v := range vs {
				q.Add(k, v)
			}
		}
		u.RawQuery = q.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, &FetchError{URL: redactURL(u), Err: err}
	}
	for k, vs := range headers {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		// The client's *url.Error repeats the full request URL, secrets included.
		return nil, &FetchError{URL: redactURL(u), Err: redactError(err)}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &FetchError{URL: redactURL(u), Err: err}
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &FetchError{URL: redactURL(u), StatusCode: resp.StatusCode}
	}
	return body, nil
}

// Transport exposes the caching layer as an http.RoundTripper for clients that
// build their own requests, such as a colly collector.
func (c *Client) Transport() http.RoundTripper {
	return &transport{client: c}
}

func (c *Client) lookup(key string) (storage.CacheEntry, bool) {
	entry, ok, err := c.store.GetEntry(key)
	if err != nil {
		log.Printf("[fetcher] %s cache read failed: %v", c.name, err)
		return storage.CacheEntry{}, false
	}
	if !ok || !entry.Fresh(c.now(), c.ttl) {
		return storage.CacheEntry{}, false
	}
	c.hits.Add(1)
	return entry, true
}

func (c *Client) roundTripAndStore(req *http.Request, key string) (storage.CacheEntry, error) {
	c.misses.Add(1)

	var resp *http.Response
	err := retry.Do(
		func() error {
			var err error
			resp, err = c.base.RoundTrip(req)
			return err
		},
		retry.Context(req.Context()),
		retry.Attempts(c.attempts),
		retry.Delay(c.retryDelay),
		retry.DelayType(retry.FixedDelay),
		retry.LastErrorOnly(true),
		retry.RetryIf(func(err error) bool {
			return !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded)
		}),
		retry.OnRetry(func(n uint, err error) {
			// Also called for the final failed attempt, which is not retried.
			if n+1 < c.attempts {
				log.Printf("[fetcher] %s retrying %s after: %v", c.name, redactURL(req.URL), err)
			}
		}),
	)
	if err != nil {
		return storage.CacheEntry{}, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return storage.CacheEntry{}, err
	}

	entry := storage.CacheEntry{
		Key:         key,
		URL:         redactURL(req.URL),
		StatusCode:  resp.StatusCode,
		ContentType: resp.Header.Get("Content-Type"),
		Body:        body,
		FetchedAt:   c.now(),
	}

	if resp.StatusCode >= 200 && resp.StatusCode <= 299 {
		if err := c.store.SaveEntry(entry); err != nil {
			log.Printf("[fetcher] %s cache write failed for %s: %v", c.name, entry.URL, err)
		}
	} else {
		log.Printf("[fetcher] %s got HTTP %d for %s, not caching", c.name, resp.StatusCode, entry.URL)
	}
	return entry, nil
}
