package database

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/nutriscan/nutriscan-engine/pkg/config"
	"github.com/nutriscan/nutriscan-engine/pkg/retry"
)

// NewRedisClient creates a Redis client for the lookup cache and waits for it to answer.
// Returns nil if Redis is not configured (host is empty).
func NewRedisClient(ctx context.Context, cfg *config.RedisConfig, logger *zap.Logger) (*redis.Client, error) {
	if cfg.Host == "" {
		return nil, nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr(),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	policy := retry.DefaultConfig()
	policy.Retryable = retry.IsTransient
	policy.OnRetry = func(attempt int, err error, delay time.Duration) {
		logger.Warn("Redis not ready",
			zap.String("addr", cfg.Addr()),
			zap.Int("attempt", attempt),
			zap.Duration("retry_in", delay),
			zap.Error(err))
	}

	if err := retry.Do(ctx, policy, func() error { return client.Ping(ctx).Err() }); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return client, nil
}
