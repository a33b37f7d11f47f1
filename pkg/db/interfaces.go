package db

import (
	"context"
	"errors"
	"slices"
	"time"

	"github.com/canopy-network/transferx/pkg/db/models/indexer"
)

// ErrInvalidSort is returned when a Page names a column outside SortColumns.
var ErrInvalidSort = errors.New("invalid sort column")

// Direction restricts an address filter to one side of a transfer.
type Direction int

const (
	// Either matches from = addr OR to = addr, each row once.
	Either Direction = iota
	Sent
	Received
)

// SortColumns is the whitelist of columns a transfer listing may be ordered by.
var SortColumns = []string{"id", "from", "to", "value", "tokenAddress", "blockNumber", "timestamp", "transactionHash"}

// ValidSort reports whether col can be used as Page.SortBy.
func ValidSort(col string) bool {
	return slices.Contains(SortColumns, col)
}

// TransferFilter narrows the rows an operation reads. Zero fields do not filter.
type TransferFilter struct {
	Address      string
	Direction    Direction
	TokenAddress string
	FromBlock    *uint64 // inclusive
	ToBlock      *uint64 // inclusive
	Since        time.Time
	Until        time.Time // exclusive
}

// Page orders and slices a transfer listing. Limit 0 returns every row.
// Ties on SortBy are broken by id in the same direction.
type Page struct {
	Limit    int
	Offset   int
	SortBy   string
	SortDesc bool
}

// BlockQuery groups filtered rows by block. Blocks come back newest first.
type BlockQuery struct {
	Filter       TransferFilter
	MinTransfers *uint64
	MaxTransfers *uint64
	Limit        int
	Offset       int
}

// TokenQuery groups filtered rows by token, busiest first, ties by address.
type TokenQuery struct {
	Filter TransferFilter
	Limit  int
}

// TransferStore is the read side of the transfer_events table.
type TransferStore interface {
	QueryTransfers(ctx context.Context, filter TransferFilter, page Page) ([]indexer.TransferEvent, error)
	Summarize(ctx context.Context, filter TransferFilter) (indexer.Summary, error)
	BlockAggregates(ctx context.Context, q BlockQuery) ([]indexer.BlockAggregate, error)
	CountBlocks(ctx context.Context, q BlockQuery) (uint64, error)
	TokenAggregates(ctx context.Context, q TokenQuery) ([]indexer.TokenAggregate, error)
	// RecentTokenActivity counts tokens among the window newest transfers.
	RecentTokenActivity(ctx context.Context, window, limit int) ([]indexer.TokenAggregate, error)
	// AddressActivity ranks addresses by sent+received, ties by address.
	AddressActivity(ctx context.Context, limit int) ([]indexer.AddressActivity, error)
	// TimeBuckets returns exactly n buckets of the given width from start.
	TimeBuckets(ctx context.Context, start time.Time, width time.Duration, n int) ([]indexer.Bucket, error)
	Ping(ctx context.Context) error
	Close() error
}
