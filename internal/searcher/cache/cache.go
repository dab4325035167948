// Package cache keeps lookup results in Redis. Keys embed the index
// checksum, so a rebuilt index never serves results computed against the
// old one even before Invalidate runs.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/Adithya-Monish-Kumar-K/posindex/pkg/metrics"
	pkgredis "github.com/Adithya-Monish-Kumar-K/posindex/pkg/redis"
	"github.com/Adithya-Monish-Kumar-K/posindex/pkg/resilience"
)

const keyPrefix = "posindex:lookup:"

// Store is the subset of the Redis client the cache uses.
type Store interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	FlushByPattern(ctx context.Context, pattern string) (int64, error)
}

type LookupCache struct {
	store   Store
	ttl     time.Duration
	group   singleflight.Group
	breaker *resilience.Breaker
	metrics *metrics.Metrics
	logger  *slog.Logger
}

// New creates a LookupCache. m may be nil. After five consecutive Redis
// failures the cache is bypassed for 30s.
func New(store Store, ttl time.Duration, m *metrics.Metrics) *LookupCache {
	return &LookupCache{
		store:   store,
		ttl:     ttl,
		breaker: resilience.NewBreaker("redis", 5, 30*time.Second),
		metrics: m,
		logger:  slog.Default().With("component", "lookup-cache"),
	}
}

// Key builds a cache key for one lookup kind against the index identified
// by checksum. Each arg is query-escaped so a ':' inside a term or document
// name cannot shift the boundary between args.
func Key(checksum uint32, kind string, args ...string) string {
	var sb strings.Builder
	sb.WriteString(keyPrefix)
	fmt.Fprintf(&sb, "%08x:%s", checksum, kind)
	for _, a := range args {
		sb.WriteByte(':')
		sb.WriteString(url.QueryEscape(a))
	}
	return sb.String()
}

// GetOrCompute returns the cached value under key, or runs compute, caches
// a successful result and returns it. Concurrent misses on one key share a
// single compute call. Errors are never cached, and a failing Redis only
// costs the cache, never the lookup. hit reports whether the value came
// from Redis.
func GetOrCompute[T any](ctx context.Context, c *LookupCache, key string, compute func() (T, error)) (value T, hit bool, err error) {
	if v, ok := get[T](ctx, c, key); ok {
		return v, true, nil
	}
	res, err, _ := c.group.Do(key, func() (any, error) {
		if v, ok := get[T](ctx, c, key); ok {
			return v, nil
		}
		c.metrics.CacheMiss()
		v, err := compute()
		if err != nil {
			return nil, err
		}
		c.set(ctx, key, v)
		return v, nil
	})
	if err != nil {
		var zero T
		return zero, false, err
	}
	return res.(T), false, nil
}

func get[T any](ctx context.Context, c *LookupCache, key string) (T, bool) {
	var (
		v    T
		data string
		miss bool
	)
	err := c.breaker.Do(func() error {
		var err error
		data, err = c.store.Get(ctx, key)
		if pkgredis.IsNilError(err) {
			miss = true
			return nil
		}
		return err
	})
	if err != nil {
		if !errors.Is(err, resilience.ErrOpen) {
			c.logger.Warn("cache get failed", "key", key, "error", err)
		}
		return v, false
	}
	if miss {
		return v, false
	}
	if err := json.Unmarshal([]byte(data), &v); err != nil {
		c.logger.Warn("cache entry unreadable", "key", key, "error", err)
		return v, false
	}
	c.metrics.CacheHit()
	return v, true
}

func (c *LookupCache) set(ctx context.Context, key string, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		c.logger.Warn("cache marshal failed", "key", key, "error", err)
		return
	}
	err = c.breaker.Do(func() error {
		return c.store.Set(ctx, key, data, c.ttl)
	})
	if err != nil && !errors.Is(err, resilience.ErrOpen) {
		c.logger.Warn("cache set failed", "key", key, "error", err)
	}
}

// Invalidate drops every cached lookup.
func (c *LookupCache) Invalidate(ctx context.Context) error {
	deleted, err := c.store.FlushByPattern(ctx, keyPrefix+"*")
	if err != nil {
		return fmt.Errorf("invalidating lookup cache: %w", err)
	}
	c.logger.Info("lookup cache invalidated", "keys_deleted", deleted)
	return nil
}
