package redis

import (
	"context"
	"os"
	"strconv"
	"testing"
	"time"

	"github.com/canopy-network/transferx/pkg/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func TestChannelNames(t *testing.T) {
	ch := BlockIndexedChannel("0xDAC17F958D2ee523a2206206994597C13D831ec7")
	assert.Equal(t, "transferx:0xdac17f958d2ee523a2206206994597c13d831ec7:block.indexed", ch)
	assert.Equal(t, "0xdac17f958d2ee523a2206206994597c13d831ec7", TokenFromChannel(ch))
}

func TestTokenFromChannel(t *testing.T) {
	tests := []struct {
		name    string
		channel string
		want    string
	}{
		{"valid", "transferx:0xabc:block.indexed", "0xabc"},
		{"too few parts", "transferx:block.indexed", ""},
		{"too many parts", "transferx:0xabc:extra:block.indexed", ""},
		{"foreign prefix", "canopy:0xabc:block.indexed", ""},
		{"foreign event", "transferx:0xabc:block.pruned", ""},
		{"empty", "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, TokenFromChannel(tt.channel))
		})
	}
}

// liveClient connects to REDIS_HOST/REDIS_PORT, skipping when REDIS_HOST is unset.
func liveClient(t *testing.T) *Client {
	t.Helper()
	host := os.Getenv("REDIS_HOST")
	if host == "" {
		t.Skip("REDIS_HOST not set")
	}
	port := uint16(6379)
	if v := os.Getenv("REDIS_PORT"); v != "" {
		n, err := strconv.ParseUint(v, 10, 16)
		require.NoError(t, err)
		port = uint16(n)
	}
	c, err := NewClient(context.Background(), zaptest.NewLogger(t), config.RedisConfig{Host: host, Port: port})
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func TestGetSetLive(t *testing.T) {
	c := liveClient(t)
	ctx := context.Background()
	key := "transferx:test:" + strconv.FormatInt(time.Now().UnixNano(), 10)

	_, ok, err := c.Get(ctx, key)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, c.Set(ctx, key, []byte("v"), time.Minute))
	got, ok, err := c.Get(ctx, key)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, []byte("v"), got)
}

func TestPublishSubscribeLive(t *testing.T) {
	c := liveClient(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	sub := c.PSubscribe(ctx, BlockIndexedPattern)
	defer func() { _ = sub.Close() }()
	_, err := sub.Receive(ctx)
	require.NoError(t, err)

	_, err = c.Publish(ctx, BlockIndexedChannel("0xabc"), `{"blockNumber":1}`)
	require.NoError(t, err)

	msg, err := sub.ReceiveMessage(ctx)
	require.NoError(t, err)
	assert.Equal(t, "0xabc", TokenFromChannel(msg.Channel))
	assert.JSONEq(t, `{"blockNumber":1}`, msg.Payload)
}
