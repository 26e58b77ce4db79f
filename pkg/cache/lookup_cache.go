// Package cache stores successful product lookups so repeated scans skip the network.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/nutriscan/nutriscan-engine/pkg/models"
)

// DefaultTTL is used when no TTL is configured.
const DefaultTTL = 24 * time.Hour

const keyPrefix = "nutriscan:product:"

// LookupCache caches successful product lookups by barcode.
// Cache failures are never surfaced; a failed read is a miss.
type LookupCache interface {
	Get(ctx context.Context, barcode string) (models.LookupResult, bool)
	Set(ctx context.Context, barcode string, result models.LookupResult)
}

type redisLookupCache struct {
	client *redis.Client
	ttl    time.Duration
	logger *zap.Logger
}

// NewLookupCache returns a Redis-backed cache, or a no-op cache when client is nil.
func NewLookupCache(client *redis.Client, ttl time.Duration, logger *zap.Logger) LookupCache {
	if client == nil {
		return NoopLookupCache{}
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &redisLookupCache{
		client: client,
		ttl:    ttl,
		logger: logger.Named("lookup-cache"),
	}
}

func (c *redisLookupCache) Get(ctx context.Context, barcode string) (models.LookupResult, bool) {
	data, err := c.client.Get(ctx, keyPrefix+barcode).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.logger.Warn("Failed to read cached lookup", zap.String("barcode", barcode), zap.Error(err))
		}
		return models.LookupResult{}, false
	}

	var result models.LookupResult
	if err := json.Unmarshal(data, &result); err != nil {
		c.logger.Warn("Discarding unreadable cached lookup", zap.String("barcode", barcode), zap.Error(err))
		_ = c.client.Del(ctx, keyPrefix+barcode).Err()
		return models.LookupResult{}, false
	}
	if !result.Found() {
		return models.LookupResult{}, false
	}
	return result, true
}

func (c *redisLookupCache) Set(ctx context.Context, barcode string, result models.LookupResult) {
	if !result.Found() {
		return
	}
	data, err := json.Marshal(result)
	if err != nil {
		c.logger.Warn("Failed to encode lookup for cache", zap.String("barcode", barcode), zap.Error(err))
		return
	}
	if err := c.client.Set(ctx, keyPrefix+barcode, data, c.ttl).Err(); err != nil {
		c.logger.Warn("Failed to cache lookup", zap.String("barcode", barcode), zap.Error(err))
	}
}

// NoopLookupCache never stores anything.
type NoopLookupCache struct{}

func (NoopLookupCache) Get(context.Context, string) (models.LookupResult, bool) {
	return models.LookupResult{}, false
}

func (NoopLookupCache) Set(context.Context, string, models.LookupResult) {}
