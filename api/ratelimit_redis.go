/*
ratelimit_redis.go - Redis-backed rate limiter

PURPOSE:
  Fixed-window counting in Redis so several server instances share one
  budget per (client, endpoint). The window key carries the window index;
  INCR + EXPIRE run in one pipeline. Fixed windows admit brief bursts at
  window edges, which is acceptable for abuse protection.
*/
package api

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

// RedisLimiter counts requests per (client, endpoint) in Redis.
type RedisLimiter struct {
	client *redis.Client
	limit  int
	window time.Duration
}

func NewRedisLimiter(client *redis.Client, limit int, window time.Duration) *RedisLimiter {
	return &RedisLimiter{client: client, limit: limit, window: window}
}

func (l *RedisLimiter) Allow(ctx context.Context, client, endpoint string) (bool, error) {
	windowIdx := time.Now().Unix() / int64(l.window.Seconds())
	key := fmt.Sprintf("ratelimit:%s:%s:%d", client, endpoint, windowIdx)

	pipe := l.client.TxPipeline()
	count := pipe.Incr(ctx, key)
	pipe.Expire(ctx, key, l.window)
	if _, err := pipe.Exec(ctx); err != nil {
		return false, fmt.Errorf("rate limit check failed: %w", err)
	}
	return count.Val() <= int64(l.limit), nil
}
