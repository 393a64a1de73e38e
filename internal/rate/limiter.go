package rate

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisWindow is a [Counter] backed by Redis counters shared by every replica.
type RedisWindow struct {
	redis  redis.UniversalClient
	prefix string
}

// NewRedisWindow creates a [RedisWindow]. Keys are written under prefix.
func NewRedisWindow(redisClient redis.UniversalClient, prefix string) *RedisWindow {
	if prefix == "" {
		prefix = "rl"
	}
	return &RedisWindow{redis: redisClient, prefix: prefix}
}

// Consume increments the counter for key and reports whether the hit fits the limit.
func (l *RedisWindow) Consume(ctx context.Context, key string, limit int, window time.Duration) (Decision, error) {
	if limit <= 0 || window <= 0 {
		return Decision{}, ErrInvalidRule
	}

	count, ttl, err := l.incrementWithTTL(ctx, l.prefix+":"+key, window)
	if err != nil {
		return Decision{}, err
	}

	if count > int64(limit) {
		return Decision{Allowed: false, RetryAfter: retryDelay(ttl)}, nil
	}
	return Decision{Allowed: true, Remaining: limit - int(count)}, nil
}

func (l *RedisWindow) incrementWithTTL(ctx context.Context, key string, ttl time.Duration) (int64, time.Duration, error) {
	count, err := l.redis.Incr(ctx, key).Result()
	if err != nil {
		return 0, 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	// Fixed-window semantics: set TTL only for the first hit in the window.
	if count == 1 {
		if err := l.redis.PExpire(ctx, key, ttl).Err(); err != nil {
			return 0, 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
		}
		return count, ttl, nil
	}

	remaining, err := l.redis.PTTL(ctx, key).Result()
	if err != nil {
		return 0, 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	if remaining < 0 {
		// A key without expiry would never reset; repair it.
		if err := l.redis.PExpire(ctx, key, ttl).Err(); err != nil {
			return 0, 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
		}
		remaining = ttl
	}
	return count, remaining, nil
}
