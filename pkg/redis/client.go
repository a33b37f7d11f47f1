package redis

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/canopy-network/transferx/pkg/config"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// BlockIndexedPattern matches every per-token block channel.
const BlockIndexedPattern = "transferx:*:block.indexed"

// BlockIndexedChannel is the channel the watcher publishes a token's new blocks on.
func BlockIndexedChannel(token string) string {
	return "transferx:" + strings.ToLower(token) + ":block.indexed"
}

// TokenFromChannel extracts the token address from a block channel name.
func TokenFromChannel(channel string) string {
	parts := strings.Split(channel, ":")
	if len(parts) != 3 || parts[0] != "transferx" || parts[2] != "block.indexed" {
		return ""
	}
	return parts[1]
}

// Client wraps the Redis client for block notifications (Pub/Sub) and the
// response cache.
type Client struct {
	client *redis.Client
	logger *zap.Logger
}

// NewClient connects to the Redis server described by cfg and pings it.
func NewClient(ctx context.Context, logger *zap.Logger, cfg config.RedisConfig) (*Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr(),
		Password: cfg.Password,
		DB:       cfg.DB,

		// Connection pool
		PoolSize:     10,
		MinIdleConns: 2,

		// Timeouts
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("failed to connect to Redis at %s: %w", cfg.Addr(), err)
	}

	logger.Info("Connected to Redis", zap.String("addr", cfg.Addr()), zap.Int("db", cfg.DB))

	return &Client{client: rdb, logger: logger}, nil
}

// Close closes the Redis connection.
func (c *Client) Close() error {
	return c.client.Close()
}

// Publish publishes a message to a Redis Pub/Sub channel and returns the
// number of subscribers that received it.
func (c *Client) Publish(ctx context.Context, channel string, message any) (int64, error) {
	n, err := c.client.Publish(ctx, channel, message).Result()
	if err != nil {
		c.logger.Warn("Failed to publish Redis message",
			zap.String("channel", channel),
			zap.Error(err))
		return 0, fmt.Errorf("publish %s: %w", channel, err)
	}
	return n, nil
}

// PSubscribe subscribes to one or more Redis Pub/Sub channel patterns.
// The caller is responsible for closing the PubSub object when done.
func (c *Client) PSubscribe(ctx context.Context, patterns ...string) *redis.PubSub {
	c.logger.Debug("Subscribing to Redis patterns", zap.Strings("patterns", patterns))
	return c.client.PSubscribe(ctx, patterns...)
}

// Get returns the value stored at key. A missing key is not an error.
func (c *Client) Get(ctx context.Context, key string) ([]byte, bool, error) {
	b, err := c.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("get %s: %w", key, err)
	}
	return b, true, nil
}

// Set stores value at key for ttl.
func (c *Client) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := c.client.Set(ctx, key, value, ttl).Err(); err != nil {
		return fmt.Errorf("set %s: %w", key, err)
	}
	return nil
}

// Health checks if Redis is healthy.
func (c *Client) Health(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}
