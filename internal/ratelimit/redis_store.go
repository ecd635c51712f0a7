package ratelimit

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore counts in Redis so limits hold across replicas. Keys expire
// with the window; the expiry is set only when the counter is created.
type RedisStore struct {
	client *redis.Client
	prefix string
}

func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client, prefix: "ratelimit:"}
}

func (r *RedisStore) Incr(ctx context.Context, key string, window time.Duration) (int, error) {
	full := r.prefix + key

	count, err := r.client.Incr(ctx, full).Result()
	if err != nil {
		return 0, err
	}
	if count == 1 {
		if err := r.client.Expire(ctx, full, window).Err(); err != nil {
			return 0, err
		}
	}
	return int(count), nil
}
