// Package client is the resilient API-access layer every console feature
// uses to talk to the backend: request construction, timeout-bounded
// execution with error classification, bounded retries with exponential
// backoff, and a two-tier response cache in front of it all.
package client

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/Akansha-Mulchandani/GAIA/internal/cache"
)

const (
	// DefaultRetries is the retry budget when callers don't choose one.
	DefaultRetries = 2
	// DefaultTimeout bounds a single attempt.
	DefaultTimeout = 10 * time.Second
	// DefaultCacheTTL is the freshness window of cached reads.
	DefaultCacheTTL = 30 * time.Second
	// DefaultCachedTimeout bounds a single attempt of a cached read.
	DefaultCachedTimeout = 8 * time.Second
)

// Config configures a Client. BaseURL is resolved once at startup.
type Config struct {
	BaseURL string

	// HTTPClient defaults to a client without a global timeout; per-attempt
	// timeouts are enforced through the request context.
	HTTPClient *http.Client

	// Cache may be nil, in which case cached reads always go to the network.
	Cache *cache.Cache

	// CacheNamespace prefixes cache keys; defaults to "gaia".
	CacheNamespace string

	Logger *slog.Logger

	// Sleep waits between retry attempts; tests replace it to run instantly.
	Sleep func(ctx context.Context, d time.Duration) error
}

// Client talks to the backend API. It is safe for concurrent use.
type Client struct {
	baseURL    string
	httpClient *http.Client
	cache      *cache.Cache
	namespace  string
	logger     *slog.Logger
	sleep      func(ctx context.Context, d time.Duration) error
}

// New creates a Client from cfg.
func New(cfg Config) *Client {
	c := &Client{
		baseURL:    TrimBaseURL(cfg.BaseURL),
		httpClient: cfg.HTTPClient,
		cache:      cfg.Cache,
		namespace:  cfg.CacheNamespace,
		logger:     cfg.Logger,
		sleep:      cfg.Sleep,
	}
	if c.httpClient == nil {
		c.httpClient = &http.Client{}
	}
	if c.namespace == "" {
		c.namespace = cache.DefaultNamespace
	}
	if c.logger == nil {
		c.logger = slog.Default()
	}
	if c.sleep == nil {
		c.sleep = sleepContext
	}
	return c
}

// BaseURL returns the resolved backend base URL.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// sleepContext waits for d or until ctx is done.
func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
