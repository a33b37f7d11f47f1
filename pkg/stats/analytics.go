package stats

import (
	"context"
	"fmt"
	"time"

	"github.com/canopy-network/transferx/pkg/db"
)

// AnalyticsService backs the analytics dashboard.
type AnalyticsService struct{ *base }

// MaxGasDays bounds the gas history window.
const MaxGasDays = 90

var distributionColors = []string{
	"#22c55e", "#3b82f6", "#8b5cf6", "#f59e0b", "#ef4444",
	"#06b6d4", "#84cc16", "#f97316", "#ec4899", "#6b7280",
}

type Change24h struct {
	Transactions float64 `json:"transactions"`
	Value        float64 `json:"value"`
	Addresses    float64 `json:"addresses"`
	TPS          float64 `json:"tps"`
}

type NetworkMetrics struct {
	TotalTransactions uint64    `json:"totalTransactions"`
	TotalValue        float64   `json:"totalValue"`
	ActiveAddresses   uint64    `json:"activeAddresses"`
	AvgBlockTime      float64   `json:"avgBlockTime"`
	TotalBlocks       uint64    `json:"totalBlocks"`
	TPS               float64   `json:"tps"`
	TotalGasUsed      *uint64   `json:"totalGasUsed,omitempty"`
	Change24h         Change24h `json:"change24h"`
	Synthetic         []string  `json:"synthetic,omitempty"`
}

// pctOfPrior expresses the last-24h figure as a percentage of everything
// before it, with the prior period floored at floor.
func pctOfPrior(recent, total, floor float64) float64 {
	return recent / max(floor, total-recent) * 100
}

// NetworkMetrics computes throughput over the observed time span. Block time
// here is span/blocks, the figure the dashboard has always charted.
func (s *AnalyticsService) NetworkMetrics(ctx context.Context) (NetworkMetrics, error) {
	all, err := s.store.Summarize(ctx, db.TransferFilter{})
	if err != nil {
		return NetworkMetrics{}, fmt.Errorf("summarize transfers: %w", err)
	}
	day, err := s.store.Summarize(ctx, db.TransferFilter{Since: s.now().Add(-24 * time.Hour)})
	if err != nil {
		return NetworkMetrics{}, fmt.Errorf("summarize last 24h: %w", err)
	}

	span := 86400.0
	if all.Transfers > 0 {
		span = all.LastSeen.Sub(all.FirstSeen).Seconds()
	}
	span = max(1, span)

	tps := float64(all.Transfers) / span
	tps24h := float64(day.Transfers) / 86400
	avgBlockTime := defaultBlockSec
	if all.Blocks > 1 {
		avgBlockTime = span / float64(all.Blocks)
	}

	total := all.TotalValue.InexactFloat64()
	total24h := day.TotalValue.InexactFloat64()
	out := NetworkMetrics{
		TotalTransactions: all.Transfers,
		TotalValue:        total,
		ActiveAddresses:   all.Addresses,
		AvgBlockTime:      avgBlockTime,
		TotalBlocks:       all.Blocks,
		TPS:               tps,
		Change24h: Change24h{
			Transactions: pctOfPrior(float64(day.Transfers), float64(all.Transfers), 1),
			Value:        pctOfPrior(total24h, total, 1),
			Addresses:    pctOfPrior(float64(day.Addresses), float64(all.Addresses), 1),
			TPS:          tps24h / max(0.001, tps-tps24h) * 100,
		},
	}
	if s.synthetic {
		out.TotalGasUsed = gasUsed(all.Transfers)
		out.Synthetic = []string{"totalGasUsed"}
	}
	return out, nil
}

type VolumePoint struct {
	Time         string    `json:"time"`
	Transactions uint64    `json:"transactions"`
	Volume       float64   `json:"volume"`
	GasUsed      *uint64   `json:"gasUsed,omitempty"`
	Timestamp    time.Time `json:"timestamp"`
	Synthetic    []string  `json:"synthetic,omitempty"`
}

// NormalizeTimeRange maps anything other than 7d or 30d to 24h.
func NormalizeTimeRange(timeRange string) string {
	switch timeRange {
	case "7d", "30d":
		return timeRange
	}
	return "24h"
}

// Volume buckets the range ending now: 24 hourly points for 24h, daily
// points for 7d and 30d. Unknown ranges fall back to 24h.
func (s *AnalyticsService) Volume(ctx context.Context, timeRange string) ([]VolumePoint, error) {
	now := s.now().UTC()
	width, n, layout := time.Hour, 24, "15:04"
	switch NormalizeTimeRange(timeRange) {
	case "7d":
		width, n, layout = 24*time.Hour, 7, "Jan 2"
	case "30d":
		width, n, layout = 24*time.Hour, 30, "Jan 2"
	}

	buckets, err := s.store.TimeBuckets(ctx, now.Add(-time.Duration(n)*width), width, n)
	if err != nil {
		return nil, fmt.Errorf("query volume buckets: %w", err)
	}
	out := make([]VolumePoint, len(buckets))
	for i, b := range buckets {
		p := VolumePoint{
			Time:         b.Start.Format(layout),
			Transactions: b.Transfers,
			Volume:       b.Volume.InexactFloat64(),
			Timestamp:    b.Start,
		}
		if s.synthetic {
			p.GasUsed = gasUsed(b.Transfers)
			p.Synthetic = []string{"gasUsed"}
		}
		out[i] = p
	}
	return out, nil
}

type TokenShare struct {
	Name   string `json:"name"`
	Symbol string `json:"symbol"`
	// Value is the token's percentage of all transfers.
	Value         float64 `json:"value"`
	Volume        float64 `json:"volume"`
	Color         string  `json:"color"`
	Address       string  `json:"address"`
	TransferCount uint64  `json:"transferCount"`
}

// TokenDistribution returns the busiest tokens with their share of all
// transfers. Unregistered tokens are named by rank.
func (s *AnalyticsService) TokenDistribution(ctx context.Context, limit int) ([]TokenShare, error) {
	if err := checkLimit(limit); err != nil {
		return nil, err
	}
	all, err := s.store.Summarize(ctx, db.TransferFilter{})
	if err != nil {
		return nil, fmt.Errorf("summarize transfers: %w", err)
	}
	aggs, err := s.store.TokenAggregates(ctx, db.TokenQuery{Limit: limit})
	if err != nil {
		return nil, fmt.Errorf("query token aggregates: %w", err)
	}

	out := make([]TokenShare, len(aggs))
	for i, t := range aggs {
		name, symbol := fmt.Sprintf("Token %d", i+1), fmt.Sprintf("T%d", i+1)
		if sym, ok := s.tokens.Symbol(t.TokenAddress); ok {
			name, symbol = sym, sym
		}
		out[i] = TokenShare{
			Name:          name,
			Symbol:        symbol,
			Value:         float64(t.Transfers) / float64(max(all.Transfers, 1)) * 100,
			Volume:        t.TotalValue.InexactFloat64(),
			Color:         distributionColors[i%len(distributionColors)],
			Address:       t.TokenAddress,
			TransferCount: t.Transfers,
		}
	}
	return out, nil
}

type GasPoint struct {
	Date        string   `json:"date"`
	AvgGasPrice string   `json:"avgGasPrice,omitempty"`
	GasUsed     *uint64  `json:"gasUsed,omitempty"`
	BlockCount  uint64   `json:"blockCount"`
	Synthetic   []string `json:"synthetic,omitempty"`
}

// Gas returns one point per UTC day for the last days days, oldest first.
func (s *AnalyticsService) Gas(ctx context.Context, days int) ([]GasPoint, error) {
	if days < 1 || days > MaxGasDays {
		return nil, invalid("days must be between 1 and %d", MaxGasDays)
	}
	today := s.now().UTC().Truncate(24 * time.Hour)
	start := today.Add(-time.Duration(days-1) * 24 * time.Hour)

	buckets, err := s.store.TimeBuckets(ctx, start, 24*time.Hour, days)
	if err != nil {
		return nil, fmt.Errorf("query gas buckets: %w", err)
	}
	out := make([]GasPoint, len(buckets))
	for i, b := range buckets {
		p := GasPoint{Date: b.Start.Format("Jan 2"), BlockCount: b.Blocks}
		if s.synthetic {
			p.AvgGasPrice = gasPrice(b.Start)
			p.GasUsed = gasUsed(b.Transfers)
			p.Synthetic = []string{"avgGasPrice", "gasUsed"}
		}
		out[i] = p
	}
	return out, nil
}

type TokenStats struct {
	Symbol           string  `json:"symbol"`
	Address          string  `json:"address"`
	Volume           float64 `json:"volume"`
	Transactions     uint64  `json:"transactions"`
	UniqueAddresses  uint64  `json:"uniqueAddresses"`
	AvgTransferValue float64 `json:"avgTransferValue"`
	// Change24h is the last day's transfers as a percentage of the prior ones.
	Change24h float64 `json:"change24h"`
}

func (s *AnalyticsService) TopTokens(ctx context.Context, limit int) ([]TokenStats, error) {
	if err := checkLimit(limit); err != nil {
		return nil, err
	}
	aggs, err := s.store.TokenAggregates(ctx, db.TokenQuery{Limit: limit})
	if err != nil {
		return nil, fmt.Errorf("query token aggregates: %w", err)
	}
	day, err := s.store.TokenAggregates(ctx, db.TokenQuery{Filter: db.TransferFilter{Since: s.now().Add(-24 * time.Hour)}})
	if err != nil {
		return nil, fmt.Errorf("query last 24h token aggregates: %w", err)
	}
	recent := make(map[string]uint64, len(day))
	for _, t := range day {
		recent[t.TokenAddress] = t.Transfers
	}

	out := make([]TokenStats, len(aggs))
	for i, t := range aggs {
		r := recent[t.TokenAddress]
		out[i] = TokenStats{
			Symbol:           s.symbol(t.TokenAddress),
			Address:          t.TokenAddress,
			Volume:           t.TotalValue.InexactFloat64(),
			Transactions:     t.Transfers,
			UniqueAddresses:  t.Addresses,
			AvgTransferValue: t.AvgValue.InexactFloat64(),
			Change24h:        pctOfPrior(float64(r), float64(t.Transfers), 1),
		}
	}
	return out, nil
}

type AnalyticsOverview struct {
	NetworkMetrics        NetworkMetrics `json:"networkMetrics"`
	TransactionVolumeData []VolumePoint  `json:"transactionVolumeData"`
	TokenDistribution     []TokenShare   `json:"tokenDistribution"`
	GasData               []GasPoint     `json:"gasData"`
	TopTokens             []TokenStats   `json:"topTokens"`
	Timestamp             time.Time      `json:"timestamp"`
}

// Overview assembles the analytics page, querying the parts concurrently.
func (s *AnalyticsService) Overview(ctx context.Context, timeRange string) (AnalyticsOverview, error) {
	out := AnalyticsOverview{Timestamp: s.now().UTC()}
	err := s.fanOut(ctx,
		func(ctx context.Context) (err error) { out.NetworkMetrics, err = s.NetworkMetrics(ctx); return },
		func(ctx context.Context) (err error) { out.TransactionVolumeData, err = s.Volume(ctx, timeRange); return },
		func(ctx context.Context) (err error) { out.TokenDistribution, err = s.TokenDistribution(ctx, 10); return },
		func(ctx context.Context) (err error) { out.GasData, err = s.Gas(ctx, 7); return },
		func(ctx context.Context) (err error) { out.TopTokens, err = s.TopTokens(ctx, 10); return },
	)
	if err != nil {
		return AnalyticsOverview{}, err
	}
	return out, nil
}
