package cache

import (
	"context"
	"time"

	"github.com/canopy-network/transferx/pkg/redis"
)

const redisPrefix = "transferx:cache:"

// Redis is a Cache shared by every API replica.
type Redis struct {
	client *redis.Client
}

func NewRedis(client *redis.Client) *Redis {
	return &Redis{client: client}
}

func (r *Redis) Get(ctx context.Context, key string) ([]byte, bool, error) {
	return r.client.Get(ctx, redisPrefix+key)
}

func (r *Redis) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return r.client.Set(ctx, redisPrefix+key, value, ttl)
}
