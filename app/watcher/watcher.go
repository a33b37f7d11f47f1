package watcher

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/canopy-network/transferx/pkg/db"
	"github.com/canopy-network/transferx/pkg/redis"
	"github.com/canopy-network/transferx/pkg/tokens"
	"go.uber.org/zap"
)

// Publisher delivers a payload to every subscriber of channel.
type Publisher interface {
	Publish(ctx context.Context, channel string, message any) (int64, error)
}

// BlockEvent announces one token's transfers in a newly ingested block.
type BlockEvent struct {
	BlockNumber  uint64    `json:"blockNumber"`
	TokenAddress string    `json:"tokenAddress"`
	Symbol       string    `json:"symbol,omitempty"`
	Transfers    uint64    `json:"transfers"`
	TotalValue   string    `json:"totalValue"`
	Timestamp    time.Time `json:"timestamp"`
}

// Watcher follows the head of the transfer table. It only remembers the last
// announced block in memory, so the first tick after a start records the
// head without announcing the history.
type Watcher struct {
	store     db.TransferStore
	publisher Publisher
	tokens    *tokens.Registry
	logger    *zap.Logger

	// mu serializes ticks. Head reads the atomics without it.
	mu     sync.Mutex
	primed atomic.Bool
	last   atomic.Uint64

	// sent holds the tokens of sentBlock already published by a tick that
	// failed partway through it.
	sent      map[string]struct{}
	sentBlock uint64
}

func New(store db.TransferStore, publisher Publisher, registry *tokens.Registry, logger *zap.Logger) *Watcher {
	if registry == nil {
		registry = tokens.Default()
	}
	return &Watcher{store: store, publisher: publisher, tokens: registry, logger: logger}
}

// Head returns the last announced block and whether the head is known yet.
func (w *Watcher) Head() (uint64, bool) {
	if !w.primed.Load() {
		return 0, false
	}
	return w.last.Load(), true
}

// Tick announces every block above the last one seen, oldest first, and
// returns the number of events published. A block is only marked seen once
// all of its events are out.
func (w *Watcher) Tick(ctx context.Context) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if !w.primed.Load() {
		sum, err := w.store.Summarize(ctx, db.TransferFilter{})
		if err != nil {
			return 0, fmt.Errorf("read head: %w", err)
		}
		w.last.Store(sum.MaxBlock)
		w.primed.Store(true)
		w.logger.Info("[watcher] head recorded", zap.Uint64("block", sum.MaxBlock))
		return 0, nil
	}

	from := w.last.Load() + 1
	blocks, err := w.store.BlockAggregates(ctx, db.BlockQuery{Filter: db.TransferFilter{FromBlock: &from}})
	if err != nil {
		return 0, fmt.Errorf("query new blocks: %w", err)
	}
	slices.Reverse(blocks)

	published := 0
	for _, b := range blocks {
		n, err := w.announce(ctx, b.BlockNumber)
		published += n
		if err != nil {
			return published, err
		}
		w.last.Store(b.BlockNumber)
		w.sent = nil
	}
	if len(blocks) > 0 {
		w.logger.Debug("[watcher] blocks announced",
			zap.Int("blocks", len(blocks)),
			zap.Int("events", published),
			zap.Uint64("head", w.last.Load()))
	}
	return published, nil
}

func (w *Watcher) announce(ctx context.Context, number uint64) (int, error) {
	aggs, err := w.store.TokenAggregates(ctx, db.TokenQuery{Filter: db.TransferFilter{FromBlock: &number, ToBlock: &number}})
	if err != nil {
		return 0, fmt.Errorf("query tokens of block %d: %w", number, err)
	}
	if w.sent == nil || w.sentBlock != number {
		w.sent, w.sentBlock = map[string]struct{}{}, number
	}
	published := 0
	for _, t := range aggs {
		if _, done := w.sent[t.TokenAddress]; done {
			continue
		}
		symbol, _ := w.tokens.Symbol(t.TokenAddress)
		payload, err := json.Marshal(BlockEvent{
			BlockNumber:  number,
			TokenAddress: t.TokenAddress,
			Symbol:       symbol,
			Transfers:    t.Transfers,
			TotalValue:   t.TotalValue.String(),
			Timestamp:    t.LastActivity,
		})
		if err != nil {
			return published, fmt.Errorf("encode block event: %w", err)
		}
		if _, err := w.publisher.Publish(ctx, redis.BlockIndexedChannel(t.TokenAddress), string(payload)); err != nil {
			return published, err
		}
		w.sent[t.TokenAddress] = struct{}{}
		published++
	}
	return published, nil
}
