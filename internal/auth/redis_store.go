package auth

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

type redisStore struct {
	client *redis.Client
}

func newRedisStore(client *redis.Client) *redisStore {
	return &redisStore{client: client}
}

func (r *redisStore) storeRefreshToken(ctx context.Context, hash string, userID int64, ttl time.Duration) error {
	return r.client.Set(ctx, refreshTokenKey(hash), userID, ttl).Err()
}

func (r *redisStore) getRefreshToken(ctx context.Context, hash string) (int64, error) {
	return r.client.Get(ctx, refreshTokenKey(hash)).Int64()
}

// takeRefreshToken reads and deletes in one round trip so a token rotates once.
func (r *redisStore) takeRefreshToken(ctx context.Context, hash string) (int64, error) {
	return r.client.GetDel(ctx, refreshTokenKey(hash)).Int64()
}

func (r *redisStore) deleteRefreshToken(ctx context.Context, hash string) error {
	return r.client.Del(ctx, refreshTokenKey(hash)).Err()
}

func refreshTokenKey(hash string) string {
	return fmt.Sprintf("refresh:token:%s", hash)
}
