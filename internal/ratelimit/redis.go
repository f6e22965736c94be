package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisLimiter counts requests in fixed windows: one INCR'd key per
// (key, bucket), expiring with the window.
type RedisLimiter struct {
	client redis.Cmdable
	prefix string
	limit  int
	window time.Duration
	now    func() time.Time
}

func NewRedisLimiter(client redis.Cmdable, prefix string, limit int, window time.Duration) *RedisLimiter {
	return &RedisLimiter{
		client: client,
		prefix: prefix,
		limit:  limit,
		window: window,
		now:    time.Now,
	}
}

func (l *RedisLimiter) Allow(ctx context.Context, key string) (Result, error) {
	now := l.now()
	bucket := now.UnixNano() / int64(l.window)
	bucketKey := fmt.Sprintf("ratelimit:%s:%s:%d", l.prefix, key, bucket)
	reset := time.Duration(int64(l.window) - now.UnixNano()%int64(l.window))

	var incr *redis.IntCmd
	_, err := l.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		incr = pipe.Incr(ctx, bucketKey)
		pipe.Expire(ctx, bucketKey, l.window)
		return nil
	})
	if err != nil {
		return Result{}, fmt.Errorf("rate limit counter: %w", err)
	}

	count := int(incr.Val())
	res := Result{Limit: l.limit, Remaining: max(l.limit-count, 0), Reset: reset}
	if count > l.limit {
		return res, ErrLimited
	}
	return res, nil
}
