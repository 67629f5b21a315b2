// Package cache implements the two-tier response cache used by the API
// client: a fast process-lifetime tier warmed from an optional durable tier.
//
// Freshness is decided at read time against the caller's TTL. The TTL is
// not stored with the entry, so two callers reading the same key with
// different TTLs may disagree about whether it is fresh.
package cache

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"time"

	"github.com/Akansha-Mulchandani/GAIA/internal/metrics"
)

// DefaultNamespace prefixes every cache key.
const DefaultNamespace = "gaia"

// Entry is the stored form of a cached payload.
type Entry struct {
	Timestamp int64           `json:"ts"` // unix milliseconds
	Payload   json.RawMessage `json:"json"`
}

// Key builds "<namespace>:cache:<path>:<METHOD>". An empty method means GET.
func Key(namespace, path, method string) string {
	if namespace == "" {
		namespace = DefaultNamespace
	}
	if method == "" {
		method = "GET"
	}
	return namespace + ":cache:" + path + ":" + strings.ToUpper(method)
}

// Cache is safe for concurrent use. Reads and writes are not transactional:
// a read racing a write for the same key may observe either value.
type Cache struct {
	fast    Store
	durable Store
	now     func() time.Time
	logger  *slog.Logger
}

// Option configures a Cache.
type Option func(*Cache)

// WithClock overrides the time source used for timestamps and expiry.
func WithClock(now func() time.Time) Option {
	return func(c *Cache) { c.now = now }
}

// WithLogger sets the logger used for swallowed tier errors.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Cache) { c.logger = logger }
}

// WithFastStore replaces the default in-memory fast tier.
func WithFastStore(s Store) Option {
	return func(c *Cache) { c.fast = s }
}

// New creates a Cache. durable may be nil for a fast-tier-only cache.
func New(durable Store, opts ...Option) *Cache {
	c := &Cache{
		fast:    NewMemoryStore(),
		durable: durable,
		now:     time.Now,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Read returns the cached payload for key if it is younger than ttl.
// A ttl <= 0 always misses without consulting either tier. Tier failures
// are logged and treated as misses; they never reach the caller.
func (c *Cache) Read(ctx context.Context, key string, ttl time.Duration) (json.RawMessage, bool) {
	if ttl <= 0 {
		return nil, false
	}
	now := c.now()

	if entry, ok := c.lookup(ctx, "fast", c.fast, key); ok {
		if c.fresh(entry, now, ttl) {
			metrics.CacheLookups.WithLabelValues("fast", "hit").Inc()
			return entry.Payload, true
		}
		metrics.CacheLookups.WithLabelValues("fast", "stale").Inc()
		c.evict(ctx, "fast", c.fast, key)
	}

	if c.durable == nil {
		return nil, false
	}

	entry, ok := c.lookup(ctx, "durable", c.durable, key)
	if !ok {
		return nil, false
	}
	if !c.fresh(entry, now, ttl) {
		metrics.CacheLookups.WithLabelValues("durable", "stale").Inc()
		c.evict(ctx, "durable", c.durable, key)
		return nil, false
	}

	metrics.CacheLookups.WithLabelValues("durable", "hit").Inc()
	if raw, err := json.Marshal(entry); err == nil {
		if err := c.fast.Set(ctx, key, raw); err != nil {
			c.logger.Debug("cache fast tier write failed", "key", key, "error", err)
		}
	}
	return entry.Payload, true
}

// Write stores payload under key in both tiers, stamped with the current time.
func (c *Cache) Write(ctx context.Context, key string, payload json.RawMessage) {
	raw, err := json.Marshal(Entry{Timestamp: c.now().UnixMilli(), Payload: payload})
	if err != nil {
		c.logger.Debug("cache entry not serialisable", "key", key, "error", err)
		return
	}
	if err := c.fast.Set(ctx, key, raw); err != nil {
		c.logger.Debug("cache fast tier write failed", "key", key, "error", err)
	}
	if c.durable == nil {
		return
	}
	if err := c.durable.Set(ctx, key, raw); err != nil {
		c.logger.Debug("cache durable tier write failed", "key", key, "error", err)
	}
}

// Invalidate removes key from both tiers.
func (c *Cache) Invalidate(ctx context.Context, key string) {
	c.evict(ctx, "fast", c.fast, key)
	if c.durable != nil {
		c.evict(ctx, "durable", c.durable, key)
	}
}

func (c *Cache) lookup(ctx context.Context, tier string, s Store, key string) (Entry, bool) {
	raw, ok, err := s.Get(ctx, key)
	if err != nil {
		metrics.CacheLookups.WithLabelValues(tier, "error").Inc()
		c.logger.Debug("cache read failed", "tier", tier, "key", key, "error", err)
		return Entry{}, false
	}
	if !ok {
		metrics.CacheLookups.WithLabelValues(tier, "miss").Inc()
		return Entry{}, false
	}
	var entry Entry
	if err := json.Unmarshal(raw, &entry); err != nil {
		metrics.CacheLookups.WithLabelValues(tier, "error").Inc()
		c.evict(ctx, tier, s, key)
		return Entry{}, false
	}
	return entry, true
}

func (c *Cache) fresh(e Entry, now time.Time, ttl time.Duration) bool {
	return now.UnixMilli()-e.Timestamp < ttl.Milliseconds()
}

func (c *Cache) evict(ctx context.Context, tier string, s Store, key string) {
	if err := s.Delete(ctx, key); err != nil {
		c.logger.Debug("cache delete failed", "tier", tier, "key", key, "error", err)
	}
}
