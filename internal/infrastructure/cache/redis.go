package cache

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"ArticlesClassifier/internal/infrastructure/llm"
)

// RedisCache keeps raw classifier responses so identical requests (same
// article, same organization context) never hit the external API twice.
// All failures degrade to cache misses; classification never depends on redis
// being reachable.
type RedisCache struct {
	rdb    *redis.Client
	ttl    time.Duration
	logger *slog.Logger
}

var _ llm.ResponseCache = (*RedisCache)(nil)

// New connects a cache with the given entry lifetime.
func New(addr string, ttl time.Duration, logger *slog.Logger) *RedisCache {
	return &RedisCache{
		rdb:    redis.NewClient(&redis.Options{Addr: addr}),
		ttl:    ttl,
		logger: logger,
	}
}

// Ping verifies connectivity; callers may treat a failure as advisory.
func (c *RedisCache) Ping(ctx context.Context) error {
	return c.rdb.Ping(ctx).Err()
}

// Get returns the cached response body for a payload key.
func (c *RedisCache) Get(ctx context.Context, key string) ([]byte, bool) {
	value, err := c.rdb.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false
	}
	if err != nil {
		c.warn("cache get", "key", key, "error", err)
		return nil, false
	}
	return value, true
}

// Set stores a response body under a payload key.
func (c *RedisCache) Set(ctx context.Context, key string, value []byte) {
	if err := c.rdb.Set(ctx, key, value, c.ttl).Err(); err != nil {
		c.warn("cache set", "key", key, "error", err)
	}
}

// Close releases the underlying connection pool.
func (c *RedisCache) Close() error {
	return c.rdb.Close()
}

func (c *RedisCache) warn(msg string, args ...any) {
	if c.logger != nil {
		c.logger.Warn(msg, args...)
	}
}
