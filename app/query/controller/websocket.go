package controller

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"net/http"
	"runtime/debug"
	"strings"
	"sync"
	"time"

	"github.com/canopy-network/transferx/pkg/redis"
	"github.com/gorilla/websocket"
	"github.com/puzpuzpuz/xsync/v4"
	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// allTokens subscribes a client to every token's blocks.
const allTokens = "*"

// ClientMessage represents messages sent by WebSocket clients.
type ClientMessage struct {
	Action string `json:"action"` // "subscribe" or "unsubscribe"
	Token  string `json:"token"`  // token address, or "*" for all tokens
}

// ServerMessage represents messages sent to WebSocket clients.
type ServerMessage struct {
	Type    string `json:"type"`    // "block.indexed", "subscribed", "unsubscribed", "error", "info"
	Payload any    `json:"payload"` // Event-specific data
}

// clientSubscriptions tracks which tokens a client is subscribed to.
// Addresses are compared lowercased, matching the channel names.
type clientSubscriptions struct {
	tokens *xsync.Map[string, struct{}]
}

func newClientSubscriptions() *clientSubscriptions {
	return &clientSubscriptions{tokens: xsync.NewMap[string, struct{}]()}
}

func (cs *clientSubscriptions) subscribe(token string) {
	cs.tokens.Store(strings.ToLower(token), struct{}{})
}

func (cs *clientSubscriptions) unsubscribe(token string) {
	cs.tokens.Delete(strings.ToLower(token))
}

// isSubscribed checks a token against the subscriptions. Wildcard (*) matches all tokens.
func (cs *clientSubscriptions) isSubscribed(token string) bool {
	if _, ok := cs.tokens.Load(allTokens); ok {
		return true
	}
	_, ok := cs.tokens.Load(strings.ToLower(token))
	return ok
}

// handleClientMessage applies a subscription request and returns the reply.
func handleClientMessage(msg ClientMessage, subs *clientSubscriptions) ServerMessage {
	switch msg.Action {
	case "subscribe", "unsubscribe":
		if msg.Token == "" {
			return ServerMessage{Type: "error", Payload: map[string]string{"message": "token is required"}}
		}
		if msg.Action == "subscribe" {
			subs.subscribe(msg.Token)
			return ServerMessage{Type: "subscribed", Payload: map[string]string{"token": msg.Token}}
		}
		subs.unsubscribe(msg.Token)
		return ServerMessage{Type: "unsubscribed", Payload: map[string]string{"token": msg.Token}}
	default:
		return ServerMessage{Type: "error", Payload: map[string]string{"message": "unknown action: " + msg.Action}}
	}
}

// HandleWebSocket upgrades HTTP connection to WebSocket and streams new blocks
// per token as the watcher publishes them.
//
// Protocol:
// Client sends: {"action": "subscribe", "token": "0xdac1..."}  // Subscribe to one token
// Client sends: {"action": "subscribe", "token": "*"}          // Subscribe to ALL tokens
// Client sends: {"action": "unsubscribe", "token": "0xdac1..."}
//
// Server sends:
// - {"type": "block.indexed", "payload": {...}}
// - {"type": "subscribed", "payload": {"token": "0xdac1..."}}
// - {"type": "unsubscribed", "payload": {"token": "0xdac1..."}}
// - {"type": "error", "payload": {"message": "..."}}
//
// IMPORTANT: All goroutines have panic recovery to prevent crashes.
func (c *Controller) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	if c.App.RedisClient == nil {
		writeError(w, http.StatusServiceUnavailable, "real-time events not available (Redis disabled)")
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		c.App.Logger.Error("Failed to upgrade WebSocket connection", zap.Error(err))
		return
	}
	defer func(conn *websocket.Conn) {
		if err := conn.Close(); err != nil {
			c.App.Logger.Debug("Failed to close WebSocket connection", zap.Error(err))
		}
	}(conn)

	c.App.Logger.Info("WebSocket client connected", zap.String("remote_addr", r.RemoteAddr))

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	subs := newClientSubscriptions()
	send := make(chan ServerMessage, 256)

	var wg sync.WaitGroup
	c.goSafe(&wg, cancel, "redis subscriber", r.RemoteAddr, func() { c.subscribeToRedis(ctx, send, subs) })
	c.goSafe(&wg, cancel, "ping ticker", r.RemoteAddr, func() { c.sendPings(ctx, conn) })

	// The writer exits once send is closed, after every producer in wg stops.
	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		defer func() {
			if rec := recover(); rec != nil {
				c.App.Logger.Error("Panic in message writer goroutine",
					zap.Any("panic", rec),
					zap.String("stack", string(debug.Stack())),
					zap.String("remote_addr", r.RemoteAddr))
				cancel()
			}
		}()
		c.writeMessages(conn, send, cancel)
	}()

	// Blocks until the connection closes
	c.readClientMessages(ctx, conn, cancel, subs, send)

	cancel()
	wg.Wait()
	close(send)
	<-writerDone

	c.App.Logger.Info("WebSocket client disconnected", zap.String("remote_addr", r.RemoteAddr))
}

// goSafe runs fn on its own goroutine, cancelling the connection on panic.
func (c *Controller) goSafe(wg *sync.WaitGroup, cancel context.CancelFunc, name, remote string, fn func()) {
	wg.Add(1)
	go func() {
		defer wg.Done()
		defer func() {
			if rec := recover(); rec != nil {
				c.App.Logger.Error("Panic in "+name+" goroutine",
					zap.Any("panic", rec),
					zap.String("stack", string(debug.Stack())),
					zap.String("remote_addr", remote))
				cancel()
			}
		}()
		fn()
	}()
}

// subscribeToRedis subscribes to every token block channel and forwards the
// events the client asked for. A lost subscription is retried with
// exponential backoff and the client is told about the outage.
func (c *Controller) subscribeToRedis(ctx context.Context, send chan<- ServerMessage, subs *clientSubscriptions) {
	const (
		initialBackoff = 1 * time.Second
		maxBackoff     = 30 * time.Second
		backoffFactor  = 2.0
		jitterFactor   = 0.1 // 10% jitter
	)

	backoff := initialBackoff
	attemptNum := 0

	for {
		if ctx.Err() != nil {
			return
		}
		attemptNum++

		subscriptionErr := c.attemptRedisSubscription(ctx, send, subs, attemptNum)
		if ctx.Err() != nil {
			return
		}

		if subscriptionErr != nil {
			c.App.Logger.Warn("Redis subscription failed, will retry",
				zap.Error(subscriptionErr),
				zap.Int("attempt", attemptNum),
				zap.Duration("backoff", backoff))
		} else {
			c.App.Logger.Warn("Redis subscription channel closed, will retry",
				zap.Int("attempt", attemptNum),
				zap.Duration("backoff", backoff))
		}

		select {
		case send <- ServerMessage{
			Type: "error",
			Payload: map[string]any{
				"message":     "Redis connection lost, attempting to reconnect...",
				"retryIn":     backoff.Seconds(),
				"attempt":     attemptNum,
				"recoverable": true,
			},
		}:
		case <-ctx.Done():
			return
		}

		select {
		case <-time.After(backoff):
		case <-ctx.Done():
			return
		}

		backoff = calculateNextBackoff(backoff, maxBackoff, backoffFactor, jitterFactor)
	}
}

// attemptRedisSubscription runs one pattern subscription until it fails or
// ctx is cancelled. It returns nil if the channel simply closed.
func (c *Controller) attemptRedisSubscription(ctx context.Context, send chan<- ServerMessage, subs *clientSubscriptions, attemptNum int) error {
	pubsub := c.App.RedisClient.PSubscribe(ctx, redis.BlockIndexedPattern)
	defer func() {
		if err := pubsub.Close(); err != nil {
			c.App.Logger.Debug("Error closing Redis subscription", zap.Error(err))
		}
	}()

	receiveCtx, receiveCancel := context.WithTimeout(ctx, 5*time.Second)
	defer receiveCancel()

	if _, err := pubsub.Receive(receiveCtx); err != nil {
		return fmt.Errorf("failed to confirm Redis subscription: %w", err)
	}

	if attemptNum > 1 {
		select {
		case send <- ServerMessage{Type: "info", Payload: map[string]any{"message": "Redis connection established", "attempt": attemptNum}}:
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	return c.processRedisMessages(ctx, pubsub.Channel(), send, subs)
}

// processRedisMessages forwards subscribed block events until ch closes or
// ctx is cancelled.
func (c *Controller) processRedisMessages(ctx context.Context, ch <-chan *goredis.Message, send chan<- ServerMessage, subs *clientSubscriptions) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case msg, ok := <-ch:
			if !ok {
				return nil
			}

			token := redis.TokenFromChannel(msg.Channel)
			if token == "" {
				c.App.Logger.Warn("Failed to extract token from channel", zap.String("channel", msg.Channel))
				continue
			}
			if !subs.isSubscribed(token) {
				continue
			}

			var payload map[string]any
			if err := json.Unmarshal([]byte(msg.Payload), &payload); err != nil {
				c.App.Logger.Error("Failed to parse Redis message",
					zap.Error(err),
					zap.String("channel", msg.Channel))
				continue
			}

			select {
			case send <- ServerMessage{Type: "block.indexed", Payload: payload}:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}
}

// calculateNextBackoff grows current by factor up to max, with +/- jitterFactor
// jitter, never going below current.
func calculateNextBackoff(current, max time.Duration, factor, jitterFactor float64) time.Duration {
	next := time.Duration(float64(current) * factor)
	if next > max {
		next = max
	}

	jitter := float64(next) * jitterFactor * (2*rand.Float64() - 1)
	nextWithJitter := time.Duration(float64(next) + jitter)

	if nextWithJitter < current {
		nextWithJitter = current
	}
	if nextWithJitter > max {
		nextWithJitter = max
	}
	return nextWithJitter
}

// sendPings sends periodic WebSocket ping frames to keep the connection alive.
// The client will automatically respond with pong frames, which resets the read deadline.
func (c *Controller) sendPings(ctx context.Context, conn *websocket.Conn) {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, []byte{}, time.Now().Add(10*time.Second)); err != nil {
				c.App.Logger.Debug("Failed to send ping", zap.Error(err))
				return
			}
		}
	}
}

// writeMessages writes messages from the send channel to the WebSocket connection.
func (c *Controller) writeMessages(conn *websocket.Conn, send <-chan ServerMessage, cancel context.CancelFunc) {
	for msg := range send {
		_ = conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
		if err := conn.WriteJSON(msg); err != nil {
			c.App.Logger.Debug("Failed to write WebSocket message", zap.Error(err))
			cancel()
			// drain until HandleWebSocket closes send
			for range send {
			}
			return
		}
	}
}

// readClientMessages handles subscription requests until the connection closes.
func (c *Controller) readClientMessages(ctx context.Context, conn *websocket.Conn, cancel context.CancelFunc, subs *clientSubscriptions, send chan<- ServerMessage) {
	if err := conn.SetReadDeadline(time.Now().Add(60 * time.Second)); err != nil {
		c.App.Logger.Error("Failed to set read deadline", zap.Error(err))
		return
	}
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	})

	for {
		var msg ClientMessage
		if err := conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				c.App.Logger.Warn("WebSocket read error", zap.Error(err))
			}
			cancel()
			return
		}

		if err := conn.SetReadDeadline(time.Now().Add(60 * time.Second)); err != nil {
			cancel()
			return
		}

		reply := handleClientMessage(msg, subs)
		if reply.Type != "error" {
			c.App.Logger.Debug("Client "+reply.Type, zap.String("token", msg.Token))
		}
		select {
		case send <- reply:
		case <-ctx.Done():
			return
		}
	}
}
