// Package cache holds short-lived JSON responses for the composite endpoints.
package cache

import (
	"context"
	"encoding/json"
	"time"
)

// Cache stores opaque values under string keys for a bounded time.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// Remember returns the cached value for key, or computes it with fn and
// stores it for ttl. Cache failures fall through to fn; a nil cache or a
// non-positive ttl disables caching.
func Remember[T any](ctx context.Context, c Cache, key string, ttl time.Duration, fn func(context.Context) (T, error)) (T, error) {
	if c == nil || ttl <= 0 {
		return fn(ctx)
	}

	if b, ok, err := c.Get(ctx, key); err == nil && ok {
		var v T
		if json.Unmarshal(b, &v) == nil {
			return v, nil
		}
	}

	v, err := fn(ctx)
	if err != nil {
		return v, err
	}
	if b, err := json.Marshal(v); err == nil {
		_ = c.Set(ctx, key, b, ttl)
	}
	return v, nil
}
