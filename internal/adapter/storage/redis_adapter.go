package storage

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

const checkoutGuardTTL = 30 * time.Second

// RedisGuard implements the idempotency guard on Redis SETNX. The TTL
// bounds how long a crashed checkout can block its user; the happy
// path releases the key explicitly.
type RedisGuard struct {
	client *redis.Client
}

func NewRedisGuard(client *redis.Client) *RedisGuard {
	return &RedisGuard{client: client}
}

func (r *RedisGuard) Acquire(ctx context.Context, key string) (bool, error) {
	return r.client.SetNX(ctx, key, 1, checkoutGuardTTL).Result()
}

func (r *RedisGuard) Release(ctx context.Context, key string) error {
	return r.client.Del(ctx, key).Err()
}
