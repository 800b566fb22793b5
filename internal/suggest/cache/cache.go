// Package cache provides a Redis-backed cache for autocomplete results.
// Concurrent misses for the same prefix are collapsed through singleflight so
// the engine computes each result once.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync/atomic"

	"golang.org/x/sync/singleflight"

	"github.com/shopstream-labs/catalog-suggest/internal/suggest/index"
	"github.com/shopstream-labs/catalog-suggest/pkg/config"
	pkgredis "github.com/shopstream-labs/catalog-suggest/pkg/redis"
)

const keyPrefix = "suggest:"

type SuggestionCache struct {
	client *pkgredis.Client
	cfg    config.RedisConfig
	group  singleflight.Group
	logger *slog.Logger
	hits   atomic.Int64
	misses atomic.Int64
}

func New(client *pkgredis.Client, cfg config.RedisConfig) *SuggestionCache {
	return &SuggestionCache{
		client: client,
		cfg:    cfg,
		logger: slog.Default().With("component", "suggestion-cache"),
	}
}

func (c *SuggestionCache) Get(ctx context.Context, prefix string, top int) ([]string, bool) {
	key := c.buildKey(prefix, top)
	data, err := c.client.Get(ctx, key)
	if err != nil {
		if pkgredis.IsNilError(err) {
			c.misses.Add(1)
			return nil, false
		}
		c.logger.Error("cache get failed", "key", key, "error", err)
		c.misses.Add(1)
		return nil, false
	}
	var names []string
	if err := json.Unmarshal([]byte(data), &names); err != nil {
		c.logger.Error("cache unmarshal failed", "key", key, "error", err)
		c.misses.Add(1)
		return nil, false
	}
	c.hits.Add(1)
	c.logger.Debug("cache hit", "prefix", prefix, "key", key)
	return names, true
}

func (c *SuggestionCache) Set(ctx context.Context, prefix string, top int, names []string) {
	key := c.buildKey(prefix, top)
	data, err := json.Marshal(names)
	if err != nil {
		c.logger.Error("cache marshal failed", "key", key, "error", err)
		return
	}
	if err := c.client.Set(ctx, key, data, c.cfg.CacheTTL.Std()); err != nil {
		c.logger.Error("cache set failed", "key", key, "error", err)
	}
}

func (c *SuggestionCache) GetOrCompute(
	ctx context.Context,
	prefix string,
	top int,
	computeFn func() ([]string, error),
) ([]string, bool, error) {
	if names, ok := c.Get(ctx, prefix, top); ok {
		return names, true, nil
	}
	key := c.buildKey(prefix, top)
	val, err, _ := c.group.Do(key, func() (interface{}, error) {
		if names, ok := c.Get(ctx, prefix, top); ok {
			return names, nil
		}
		names, err := computeFn()
		if err != nil {
			return nil, err
		}
		c.Set(ctx, prefix, top, names)
		return names, nil
	})
	if err != nil {
		return nil, false, err
	}
	return val.([]string), false, nil
}

// Invalidate drops every cached suggestion. Mutations call this so stale
// results never outlive a catalog change by more than the in-flight reads.
func (c *SuggestionCache) Invalidate(ctx context.Context) error {
	pattern := keyPrefix + "*"
	deleted, err := c.client.FlushByPattern(ctx, pattern)
	if err != nil {
		return fmt.Errorf("invalidating suggestion cache: %w", err)
	}
	c.logger.Info("cache invalidate", "keys_deleted", deleted)
	return nil
}

func (c *SuggestionCache) Stats() (hits, misses int64) {
	return c.hits.Load(), c.misses.Load()
}

// buildKey hashes the folded prefix and top so keys stay bounded regardless
// of prefix length. Folding keeps "Mil" and "mil" on one cache entry, same as
// the index ordering.
func (c *SuggestionCache) buildKey(prefix string, top int) string {
	raw := fmt.Sprintf("%s:top=%d", index.Fold(prefix), top)
	hash := sha256.Sum256([]byte(raw))
	return fmt.Sprintf("%s%x", keyPrefix, hash[:16])
}
