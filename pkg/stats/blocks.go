package stats

import (
	"context"
	"fmt"
	"math"
	"regexp"
	"time"

	"github.com/canopy-network/transferx/pkg/db"
	"github.com/canopy-network/transferx/pkg/db/models/indexer"
	"github.com/canopy-network/transferx/pkg/utils"
)

// BlocksService derives block views by grouping transfers on blockNumber.
type BlocksService struct{ *base }

type BlockSummary struct {
	Number        uint64    `json:"number"`
	Hash          string    `json:"hash,omitempty"`
	Timestamp     time.Time `json:"timestamp"`
	Transactions  uint64    `json:"transactions"`
	Validator     string    `json:"validator,omitempty"`
	GasUsed       string    `json:"gasUsed,omitempty"`
	GasLimit      string    `json:"gasLimit,omitempty"`
	BaseFeePerGas *float64  `json:"baseFeePerGas,omitempty"`
	Reward        string    `json:"reward,omitempty"`
	Size          uint64    `json:"size,omitempty"`
	TotalValue    string    `json:"totalValue"`
	UniqueTokens  uint64    `json:"uniqueTokens"`
	TopToken      string    `json:"topToken"`
	Synthetic     []string  `json:"synthetic,omitempty"`
}

type BlockTransfer struct {
	Hash         string    `json:"hash"`
	From         string    `json:"from"`
	To           string    `json:"to"`
	Value        string    `json:"value"`
	TokenAddress string    `json:"tokenAddress"`
	Timestamp    time.Time `json:"timestamp"`
}

type BlockDetails struct {
	BlockSummary
	UniqueAddresses uint64          `json:"uniqueAddresses"`
	Transfers       []BlockTransfer `json:"transfers"`
}

func (s *BlocksService) summary(b indexer.BlockAggregate) BlockSummary {
	top := b.TopToken
	if top == "" {
		top = "Unknown"
	}
	sum := BlockSummary{
		Number:       b.BlockNumber,
		Timestamp:    b.Timestamp,
		Transactions: b.Transfers,
		TotalValue:   b.TotalValue.StringFixed(2),
		UniqueTokens: b.UniqueTokens,
		TopToken:     top,
	}
	if s.synthetic {
		sum.fillSynthetic()
	}
	return sum
}

func (s *BlocksService) summaries(ctx context.Context, q db.BlockQuery) ([]BlockSummary, error) {
	blocks, err := s.store.BlockAggregates(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("query block aggregates: %w", err)
	}
	out := make([]BlockSummary, len(blocks))
	for i, b := range blocks {
		out[i] = s.summary(b)
	}
	return out, nil
}

// Summaries returns at most n blocks, newest first.
func (s *BlocksService) Summaries(ctx context.Context, n int) ([]BlockSummary, error) {
	if err := checkLimit(n); err != nil {
		return nil, err
	}
	return s.summaries(ctx, db.BlockQuery{Limit: n})
}

// Details returns one block with its transfers, newest first.
func (s *BlocksService) Details(ctx context.Context, number uint64) (BlockDetails, error) {
	filter := db.TransferFilter{FromBlock: &number, ToBlock: &number}

	blocks, err := s.summaries(ctx, db.BlockQuery{Filter: filter, Limit: 1})
	if err != nil {
		return BlockDetails{}, err
	}
	if len(blocks) == 0 {
		return BlockDetails{}, fmt.Errorf("%w: %d", ErrBlockNotFound, number)
	}

	sum, err := s.store.Summarize(ctx, filter)
	if err != nil {
		return BlockDetails{}, fmt.Errorf("summarize block %d: %w", number, err)
	}
	rows, err := s.store.QueryTransfers(ctx, filter, db.Page{SortBy: "timestamp", SortDesc: true})
	if err != nil {
		return BlockDetails{}, fmt.Errorf("query block %d transfers: %w", number, err)
	}

	transfers := make([]BlockTransfer, len(rows))
	for i, r := range rows {
		transfers[i] = BlockTransfer{
			Hash:         r.TxHash(),
			From:         r.From,
			To:           r.To,
			Value:        r.Value,
			TokenAddress: r.TokenAddress,
			Timestamp:    r.Timestamp,
		}
	}
	return BlockDetails{BlockSummary: blocks[0], UniqueAddresses: sum.Addresses, Transfers: transfers}, nil
}

type BlockStats struct {
	TotalBlocks             uint64     `json:"totalBlocks"`
	LatestBlockNumber       uint64     `json:"latestBlockNumber"`
	LatestBlockTimestamp    *time.Time `json:"latestBlockTimestamp"`
	AvgTransactionsPerBlock uint64     `json:"avgTransactionsPerBlock"`
	AvgBlockTime            *float64   `json:"avgBlockTime,omitempty"`
	TotalTransactions       uint64     `json:"totalTransactions"`
	Synthetic               []string   `json:"synthetic,omitempty"`
}

// Stats measures the average block time over the observed block span. With
// fewer than two blocks there is nothing to measure and the 12s mainnet
// figure stands in, flagged as synthetic.
func (s *BlocksService) Stats(ctx context.Context) (BlockStats, error) {
	sum, err := s.store.Summarize(ctx, db.TransferFilter{})
	if err != nil {
		return BlockStats{}, fmt.Errorf("summarize transfers: %w", err)
	}

	out := BlockStats{
		TotalBlocks:             sum.Blocks,
		LatestBlockNumber:       sum.MaxBlock,
		AvgTransactionsPerBlock: uint64(math.Round(float64(sum.Transfers) / float64(max(sum.Blocks, 1)))),
		TotalTransactions:       sum.Transfers,
	}
	if sum.Transfers > 0 {
		ts := sum.MaxBlockTime
		out.LatestBlockTimestamp = &ts
	}

	switch {
	case sum.Blocks >= 2:
		avg := sum.MaxBlockTime.Sub(sum.MinBlockTime).Seconds() / float64(sum.Blocks-1)
		out.AvgBlockTime = &avg
	case s.synthetic:
		avg := defaultBlockSec
		out.AvgBlockTime = &avg
		out.Synthetic = []string{"avgBlockTime"}
	}
	return out, nil
}

var (
	decimalQuery = regexp.MustCompile(`^[0-9]+$`)
	hexQuery     = regexp.MustCompile(`^0x[0-9a-fA-F]+$`)
)

// searchRadius is how many blocks either side of the searched number match.
const searchRadius = 5

// Search resolves q as a decimal or 0x-hex block number and returns the
// blocks within searchRadius of it. Anything else matches nothing.
func (s *BlocksService) Search(ctx context.Context, q string) ([]BlockSummary, error) {
	if q == "" {
		return nil, invalid("search query is required")
	}
	if !decimalQuery.MatchString(q) && !hexQuery.MatchString(q) {
		return []BlockSummary{}, nil
	}
	number, err := utils.ParseBlockNumber(q)
	if err != nil {
		// out of uint64 range
		return []BlockSummary{}, nil
	}

	lo := number - min(number, searchRadius)
	hi := number + searchRadius
	if hi < number {
		hi = math.MaxUint64
	}
	return s.summaries(ctx, db.BlockQuery{Filter: db.TransferFilter{FromBlock: &lo, ToBlock: &hi}})
}

// BlockPageOptions filters and pages the block list. Zero Page and Limit
// default to 1 and 20.
type BlockPageOptions struct {
	Page            int
	Limit           int
	MinTransactions *uint64
	MaxTransactions *uint64
	// DateRange is one of all, 24h, 7d or 30d. Empty means all.
	DateRange string
}

type Pagination struct {
	Page       int    `json:"page"`
	Limit      int    `json:"limit"`
	Total      uint64 `json:"total"`
	TotalPages uint64 `json:"totalPages"`
}

type PaginatedBlocks struct {
	Blocks     []BlockSummary `json:"blocks"`
	Pagination Pagination     `json:"pagination"`
}

// rangeWindow maps a dashboard range name onto a duration. ok is false for
// unknown names; all and empty yield zero.
func rangeWindow(name string) (time.Duration, bool) {
	switch name {
	case "", "all":
		return 0, true
	case "24h":
		return 24 * time.Hour, true
	case "7d":
		return 7 * 24 * time.Hour, true
	case "30d":
		return 30 * 24 * time.Hour, true
	}
	return 0, false
}

// Paginated applies the date range to transfer rows before grouping, then
// bounds each block's transfer count.
func (s *BlocksService) Paginated(ctx context.Context, opts BlockPageOptions) (PaginatedBlocks, error) {
	if opts.Page == 0 {
		opts.Page = 1
	}
	if opts.Limit == 0 {
		opts.Limit = 20
	}
	if opts.Page < 1 {
		return PaginatedBlocks{}, invalid("page must be positive")
	}
	if err := checkLimit(opts.Limit); err != nil {
		return PaginatedBlocks{}, err
	}
	if opts.MinTransactions != nil && opts.MaxTransactions != nil && *opts.MinTransactions > *opts.MaxTransactions {
		return PaginatedBlocks{}, invalid("minTransactions exceeds maxTransactions")
	}
	window, ok := rangeWindow(opts.DateRange)
	if !ok {
		return PaginatedBlocks{}, invalid("unknown dateRange %q", opts.DateRange)
	}

	q := db.BlockQuery{
		MinTransfers: opts.MinTransactions,
		MaxTransfers: opts.MaxTransactions,
		Limit:        opts.Limit,
		Offset:       (opts.Page - 1) * opts.Limit,
	}
	if window > 0 {
		q.Filter.Since = s.now().Add(-window)
	}

	total, err := s.store.CountBlocks(ctx, q)
	if err != nil {
		return PaginatedBlocks{}, fmt.Errorf("count blocks: %w", err)
	}
	blocks, err := s.summaries(ctx, q)
	if err != nil {
		return PaginatedBlocks{}, err
	}

	limit := uint64(opts.Limit)
	return PaginatedBlocks{
		Blocks: blocks,
		Pagination: Pagination{
			Page:       opts.Page,
			Limit:      opts.Limit,
			Total:      total,
			TotalPages: (total + limit - 1) / limit,
		},
	}, nil
}
