package works

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/anivault/anivault/internal/config"
	"github.com/anivault/anivault/pkg/logger"
)

// SearchCache keeps recent search results in Redis so repeated queries skip
// the trigram scan. Every failure degrades to a cache miss; search must keep
// working when Redis is down or disabled.
type SearchCache struct {
	client *redis.Client
	ttl    time.Duration
	log    *slog.Logger
}

// NewSearchCache builds the cache from config. When the cache is disabled or
// the URL does not parse, the returned cache is inert and every lookup
// misses.
func NewSearchCache(cfg *config.Config, log *slog.Logger) *SearchCache {
	c := &SearchCache{
		ttl: cfg.Redis.CacheTTL(),
		log: log.With(logger.Scope("works.cache")),
	}
	if !cfg.Redis.SearchCacheEnabled {
		return c
	}

	opts, err := redis.ParseURL(cfg.Redis.URL)
	if err != nil {
		c.log.Warn("invalid redis URL, search cache disabled", logger.Error(err))
		return c
	}
	c.client = redis.NewClient(opts)
	c.log.Info("search cache enabled", slog.Duration("ttl", c.ttl))
	return c
}

// Enabled reports whether a Redis client is wired up.
func (c *SearchCache) Enabled() bool {
	return c.client != nil
}

// Get returns cached results for the query, or ok=false on miss, disabled
// cache, or any Redis/decode failure.
func (c *SearchCache) Get(ctx context.Context, query string, limit int) ([]Work, bool) {
	if c.client == nil {
		return nil, false
	}

	raw, err := c.client.Get(ctx, cacheKey(query, limit)).Bytes()
	if err != nil {
		if err != redis.Nil {
			c.log.Warn("search cache read failed", logger.Error(err))
		}
		return nil, false
	}

	var results []Work
	if err := json.Unmarshal(raw, &results); err != nil {
		c.log.Warn("search cache entry corrupt", logger.Error(err))
		return nil, false
	}
	return results, true
}

// Put stores results for the query. Failures are logged and swallowed.
func (c *SearchCache) Put(ctx context.Context, query string, limit int, results []Work) {
	if c.client == nil {
		return
	}

	raw, err := json.Marshal(results)
	if err != nil {
		c.log.Warn("search cache encode failed", logger.Error(err))
		return
	}
	if err := c.client.Set(ctx, cacheKey(query, limit), raw, c.ttl).Err(); err != nil {
		c.log.Warn("search cache write failed", logger.Error(err))
	}
}

// Close releases the Redis connection.
func (c *SearchCache) Close() error {
	if c.client == nil {
		return nil
	}
	return c.client.Close()
}

func cacheKey(query string, limit int) string {
	return fmt.Sprintf("search:%s:%d", query, limit)
}
