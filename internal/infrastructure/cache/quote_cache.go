package cache

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/printsync/backend/internal/application/rates"
)

// RedisQuoteCache stores computed shipping quotes in Redis so repeated
// checkout pushes for the same cart and destination skip recomputation.
type RedisQuoteCache struct {
	client *redis.Client
	logger *zap.Logger
}

// NewRedisQuoteCache creates a Redis-backed quote cache.
func NewRedisQuoteCache(client *redis.Client, logger *zap.Logger) *RedisQuoteCache {
	return &RedisQuoteCache{client: client, logger: logger}
}

// Get returns the cached quote for the key, or false on miss. Redis errors
// are treated as misses so checkout never fails on a cache outage.
func (c *RedisQuoteCache) Get(ctx context.Context, key string) (*rates.Quote, bool) {
	payload, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		if err != redis.Nil {
			c.logger.Warn("quote cache read failed", zap.String("key", key), zap.Error(err))
		}
		return nil, false
	}

	var quote rates.Quote
	if err := json.Unmarshal(payload, &quote); err != nil {
		c.logger.Warn("quote cache entry corrupt, dropping", zap.String("key", key), zap.Error(err))
		c.client.Del(ctx, key)
		return nil, false
	}
	return &quote, true
}

// Set stores a quote with the given lifetime. Failures are logged and
// swallowed.
func (c *RedisQuoteCache) Set(ctx context.Context, key string, quote *rates.Quote, ttl time.Duration) {
	payload, err := json.Marshal(quote)
	if err != nil {
		c.logger.Warn("quote cache encode failed", zap.String("key", key), zap.Error(err))
		return
	}
	if err := c.client.Set(ctx, key, payload, ttl).Err(); err != nil {
		c.logger.Warn("quote cache write failed", zap.String("key", key), zap.Error(err))
	}
}

var _ rates.QuoteCache = (*RedisQuoteCache)(nil)
