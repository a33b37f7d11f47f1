package stats

import (
	"context"
	"fmt"
	"time"

	"github.com/canopy-network/transferx/pkg/db"
	"github.com/canopy-network/transferx/pkg/db/models/indexer"
	"github.com/canopy-network/transferx/pkg/utils"
)

// ExplorerService backs the explorer dashboard.
type ExplorerService struct{ *base }

// trendingWindow is how many of the newest transfers count as recent.
const trendingWindow = 200

type NetworkStats struct {
	TotalTransfers  uint64 `json:"totalTransfers"`
	UniqueAddresses uint64 `json:"uniqueAddresses"`
	UniqueSenders   uint64 `json:"uniqueSenders"`
	UniqueReceivers uint64 `json:"uniqueReceivers"`
	UniqueTokens    uint64 `json:"uniqueTokens"`
	UniqueBlocks    uint64 `json:"uniqueBlocks"`
	// RecentActivity counts transfers in the last 24 hours.
	RecentActivity uint64 `json:"recentActivity"`
}

func (s *ExplorerService) NetworkStats(ctx context.Context) (NetworkStats, error) {
	all, err := s.store.Summarize(ctx, db.TransferFilter{})
	if err != nil {
		return NetworkStats{}, fmt.Errorf("summarize transfers: %w", err)
	}
	recent, err := s.store.Summarize(ctx, db.TransferFilter{Since: s.now().Add(-24 * time.Hour)})
	if err != nil {
		return NetworkStats{}, fmt.Errorf("summarize last 24h: %w", err)
	}
	return NetworkStats{
		TotalTransfers:  all.Transfers,
		UniqueAddresses: all.Addresses,
		UniqueSenders:   all.Senders,
		UniqueReceivers: all.Receivers,
		UniqueTokens:    all.Tokens,
		UniqueBlocks:    all.Blocks,
		RecentActivity:  recent.Transfers,
	}, nil
}

type TokenActivity struct {
	Address       string    `json:"address"`
	Symbol        string    `json:"symbol"`
	TransferCount uint64    `json:"transferCount"`
	LastActivity  time.Time `json:"lastActivity"`
}

// symbol falls back to the shortened address for unregistered tokens.
func (b *base) symbol(addr string) string {
	if sym, ok := b.tokens.Symbol(addr); ok {
		return sym
	}
	return utils.ShortAddress(addr)
}

func (s *ExplorerService) TopTokens(ctx context.Context, limit int) ([]TokenActivity, error) {
	if err := checkLimit(limit); err != nil {
		return nil, err
	}
	aggs, err := s.store.TokenAggregates(ctx, db.TokenQuery{Limit: limit})
	if err != nil {
		return nil, fmt.Errorf("query token aggregates: %w", err)
	}
	out := make([]TokenActivity, len(aggs))
	for i, t := range aggs {
		out[i] = TokenActivity{
			Address:       t.TokenAddress,
			Symbol:        s.symbol(t.TokenAddress),
			TransferCount: t.Transfers,
			LastActivity:  t.LastActivity,
		}
	}
	return out, nil
}

type Activity struct {
	indexer.TransferEvent
	Type string `json:"type"`
}

func (s *ExplorerService) RecentActivity(ctx context.Context, limit int) ([]Activity, error) {
	if err := checkLimit(limit); err != nil {
		return nil, err
	}
	rows, err := s.store.QueryTransfers(ctx, db.TransferFilter{}, db.Page{Limit: limit, SortBy: "timestamp", SortDesc: true})
	if err != nil {
		return nil, fmt.Errorf("query recent transfers: %w", err)
	}
	out := make([]Activity, len(rows))
	for i, r := range rows {
		out[i] = Activity{TransferEvent: r, Type: "transfer"}
	}
	return out, nil
}

type TrendingToken struct {
	Address         string `json:"address"`
	Symbol          string `json:"symbol"`
	RecentTransfers uint64 `json:"recentTransfers"`
}

// TrendingTokens ranks tokens by their share of the newest transfers.
func (s *ExplorerService) TrendingTokens(ctx context.Context, limit int) ([]TrendingToken, error) {
	if err := checkLimit(limit); err != nil {
		return nil, err
	}
	aggs, err := s.store.RecentTokenActivity(ctx, trendingWindow, limit)
	if err != nil {
		return nil, fmt.Errorf("query recent token activity: %w", err)
	}
	out := make([]TrendingToken, len(aggs))
	for i, t := range aggs {
		out[i] = TrendingToken{Address: t.TokenAddress, Symbol: s.symbol(t.TokenAddress), RecentTransfers: t.Transfers}
	}
	return out, nil
}

type NetworkOverview struct {
	LatestBlock       uint64     `json:"latestBlock"`
	OldestBlock       uint64     `json:"oldestBlock"`
	BlockRange        uint64     `json:"blockRange"`
	IndexingStartTime *time.Time `json:"indexingStartTime"`
	LastIndexedTime   *time.Time `json:"lastIndexedTime"`
}

func (s *ExplorerService) Overview(ctx context.Context) (NetworkOverview, error) {
	sum, err := s.store.Summarize(ctx, db.TransferFilter{})
	if err != nil {
		return NetworkOverview{}, fmt.Errorf("summarize transfers: %w", err)
	}
	if sum.Transfers == 0 {
		return NetworkOverview{}, nil
	}
	start, last := sum.MinBlockTime, sum.MaxBlockTime
	return NetworkOverview{
		LatestBlock:       sum.MaxBlock,
		OldestBlock:       sum.MinBlock,
		BlockRange:        sum.MaxBlock - sum.MinBlock + 1,
		IndexingStartTime: &start,
		LastIndexedTime:   &last,
	}, nil
}

type ExplorerStats struct {
	Network        NetworkStats    `json:"network"`
	Overview       NetworkOverview `json:"overview"`
	TopTokens      []TokenActivity `json:"topTokens"`
	TrendingTokens []TrendingToken `json:"trendingTokens"`
	RecentActivity []Activity      `json:"recentActivity"`
}

// Stats assembles the explorer page. The parts are queried concurrently and
// may observe slightly different snapshots of the table.
func (s *ExplorerService) Stats(ctx context.Context) (ExplorerStats, error) {
	var out ExplorerStats
	err := s.fanOut(ctx,
		func(ctx context.Context) (err error) { out.Network, err = s.NetworkStats(ctx); return },
		func(ctx context.Context) (err error) { out.Overview, err = s.Overview(ctx); return },
		func(ctx context.Context) (err error) { out.TopTokens, err = s.TopTokens(ctx, 10); return },
		func(ctx context.Context) (err error) { out.TrendingTokens, err = s.TrendingTokens(ctx, 5); return },
		func(ctx context.Context) (err error) { out.RecentActivity, err = s.RecentActivity(ctx, 15); return },
	)
	if err != nil {
		return ExplorerStats{}, err
	}
	return out, nil
}
