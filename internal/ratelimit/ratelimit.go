// Package ratelimit throttles anonymous order submissions per table.
package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

// Limiter decides whether another request under key is allowed.
type Limiter interface {
	Allow(ctx context.Context, key string) (bool, error)
}

// RedisLimiter is a fixed-window counter shared by every API instance.
// When Redis is unreachable it lets the request through and logs a warning.
type RedisLimiter struct {
	client *redis.Client
	limit  int64
	window time.Duration
	prefix string
	logger *zap.Logger
}

func NewRedisLimiter(client *redis.Client, limit int, window time.Duration, logger *zap.Logger) *RedisLimiter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RedisLimiter{
		client: client,
		limit:  int64(limit),
		window: window,
		prefix: "mesaqr:ratelimit:",
		logger: logger,
	}
}

func (l *RedisLimiter) Allow(ctx context.Context, key string) (bool, error) {
	if l.limit <= 0 {
		return true, nil
	}
	k := l.prefix + key

	pipe := l.client.TxPipeline()
	incr := pipe.Incr(ctx, k)
	ttl := pipe.TTL(ctx, k)
	if _, err := pipe.Exec(ctx); err != nil {
		l.logger.Warn("rate limiter unavailable, allowing request",
			zap.String("key", key), zap.Error(err))
		return true, nil
	}

	// First hit of a window, or a key that lost its expiry.
	if ttl.Val() < 0 {
		if err := l.client.Expire(ctx, k, l.window).Err(); err != nil {
			l.logger.Warn("rate limiter expire failed",
				zap.String("key", key), zap.Error(err))
		}
	}
	return incr.Val() <= l.limit, nil
}

// Noop allows everything. Used when Redis is not configured.
type Noop struct{}

func (Noop) Allow(context.Context, string) (bool, error) { return true, nil }

// OrderKey is the limiter key for order submissions at one table.
func OrderKey(tenantID, tableID fmt.Stringer) string {
	return "order:" + tenantID.String() + ":" + tableID.String()
}
