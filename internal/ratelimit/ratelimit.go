package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/USSTM/asset-backend/internal/config"
	"github.com/redis/go-redis/v9"
)

var ErrLimited = errors.New("rate limit exceeded")

// Result describes the caller's budget after a call to Allow.
type Result struct {
	Limit     int
	Remaining int
	Reset     time.Duration
}

// Limiter admits or rejects one request for key. A rejected request returns
// ErrLimited together with a populated Result; any other error is a backend
// failure.
type Limiter interface {
	Allow(ctx context.Context, key string) (Result, error)
}

// New builds the limiter selected by cfg.Backend. The redis client is only
// used by the redis backend.
func New(cfg config.RateLimitConfig, client redis.Cmdable, prefix string, limit int, window time.Duration) (Limiter, error) {
	if limit <= 0 || window <= 0 {
		return nil, fmt.Errorf("invalid rate limit %d per %s", limit, window)
	}
	switch cfg.Backend {
	case "redis":
		if client == nil {
			return nil, errors.New("redis rate limiter requires a redis client")
		}
		return NewRedisLimiter(client, prefix, limit, window), nil
	case "memory":
		return NewMemoryLimiter(limit, window, cfg.MaxKeys), nil
	default:
		return nil, fmt.Errorf("unknown rate limit backend %q", cfg.Backend)
	}
}
