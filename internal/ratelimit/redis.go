package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/clickrush/apiserver/config"
	"github.com/clickrush/apiserver/internal/scoring"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const redisKeyPrefix = "ratelimit:scores"

// redisCounter is the subset of *redis.Client used by RedisLimiter.
type redisCounter interface {
	Incr(ctx context.Context, key string) *redis.IntCmd
	Expire(ctx context.Context, key string, expiration time.Duration) *redis.BoolCmd
}

// RedisLimiter counts attempts in a fixed window with an atomic INCR,
// so concurrent submissions cannot both slip past the cap. Every
// attempt counts, including ones that later fail to persist.
type RedisLimiter struct {
	client redisCounter
	cfg    config.RateLimitConfig
}

func NewRedisLimiter(client *redis.Client, cfg config.RateLimitConfig) *RedisLimiter {
	return &RedisLimiter{client: client, cfg: cfg}
}

func (l *RedisLimiter) Check(ctx context.Context, userID uuid.UUID, now time.Time) error {
	if !l.cfg.Enabled() {
		return nil
	}

	key := windowKey(userID, now, l.cfg.Window)
	count, err := l.client.Incr(ctx, key).Result()
	if err != nil {
		return fmt.Errorf("incr %s: %w", key, err)
	}
	if count == 1 {
		if err := l.client.Expire(ctx, key, l.cfg.Window).Err(); err != nil {
			return fmt.Errorf("expire %s: %w", key, err)
		}
	}
	if count > int64(l.cfg.MaxRequests) {
		return scoring.RateLimited(l.cfg.Window)
	}
	return nil
}

func windowKey(userID uuid.UUID, now time.Time, window time.Duration) string {
	start := now.Truncate(window).Unix()
	return fmt.Sprintf("%s:%s:%d", redisKeyPrefix, userID, start)
}
