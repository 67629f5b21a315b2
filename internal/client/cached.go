package client

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/Akansha-Mulchandani/GAIA/internal/cache"
	"github.com/Akansha-Mulchandani/GAIA/internal/core"
)

// CacheOptions tunes a cached read.
type CacheOptions struct {
	// TTL is the freshness window; zero or negative disables reads.
	TTL time.Duration
	// Disable bypasses the cache in both directions.
	Disable bool
	Retries int
	Timeout time.Duration
}

// DefaultCacheOptions returns TTL 30s, 2 retries, 8s per attempt.
func DefaultCacheOptions() CacheOptions {
	return CacheOptions{
		TTL:     DefaultCacheTTL,
		Retries: DefaultRetries,
		Timeout: DefaultCachedTimeout,
	}
}

// CacheKey returns the cache key for path and the request's method.
func (c *Client) CacheKey(path string, req *Request) string {
	return cache.Key(c.namespace, path, req.method())
}

// CachedFetchJSON serves a fresh cached payload when one exists, otherwise
// fetches with retries, stores the decoded payload and returns it. A TTL of
// zero always goes to the network but still refreshes the stored copy.
func (c *Client) CachedFetchJSON(ctx context.Context, path string, req *Request, opts CacheOptions) (json.RawMessage, error) {
	useCache := c.cache != nil && !opts.Disable
	key := c.CacheKey(path, req)

	if useCache {
		if payload, ok := c.cache.Read(ctx, key, opts.TTL); ok {
			return payload, nil
		}
	}

	return c.fetchAndStore(ctx, key, path, req, opts, useCache)
}

// Refresh fetches path and overwrites its cached copy without consulting it.
func (c *Client) Refresh(ctx context.Context, path string, opts CacheOptions) (json.RawMessage, error) {
	return c.fetchAndStore(ctx, c.CacheKey(path, nil), path, nil, opts, c.cache != nil)
}

// Invalidate drops the cached copy of a GET on path.
func (c *Client) Invalidate(ctx context.Context, path string) {
	if c.cache != nil {
		c.cache.Invalidate(ctx, c.CacheKey(path, nil))
	}
}

// GetJSON is a cached GET decoded into v.
func (c *Client) GetJSON(ctx context.Context, path string, opts CacheOptions, v any) error {
	payload, err := c.CachedFetchJSON(ctx, path, nil, opts)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(payload, v); err != nil {
		return core.NewDecodeError(err)
	}
	return nil
}

func (c *Client) fetchAndStore(ctx context.Context, key, path string, req *Request, opts CacheOptions, store bool) (json.RawMessage, error) {
	resp, err := c.FetchWithRetry(ctx, path, req, opts.Retries, opts.Timeout)
	if err != nil {
		return nil, err
	}

	if !json.Valid(resp.Body) {
		return nil, core.NewDecodeError(errors.New("body is not valid JSON"))
	}
	payload := json.RawMessage(resp.Body)

	if store {
		c.cache.Write(ctx, key, payload)
	}
	return payload, nil
}
