package stats

import (
	"context"
	"fmt"
	"time"

	"github.com/canopy-network/transferx/pkg/db"
	"github.com/canopy-network/transferx/pkg/db/models/indexer"
)

// TransferService lists raw transfers and the simple per-address views.
type TransferService struct{ *base }

func (s *TransferService) list(ctx context.Context, filter db.TransferFilter, opts ListOptions) ([]indexer.TransferEvent, error) {
	page, err := opts.page()
	if err != nil {
		return nil, err
	}
	rows, err := s.store.QueryTransfers(ctx, filter, page)
	if err != nil {
		return nil, fmt.Errorf("query transfers: %w", err)
	}
	return rows, nil
}

// ByAddress returns transfers sent or received by addr, each row once.
func (s *TransferService) ByAddress(ctx context.Context, addr string, opts ListOptions) ([]indexer.TransferEvent, error) {
	return s.list(ctx, db.TransferFilter{Address: addr}, opts)
}

func (s *TransferService) From(ctx context.Context, addr string, opts ListOptions) ([]indexer.TransferEvent, error) {
	return s.list(ctx, db.TransferFilter{Address: addr, Direction: db.Sent}, opts)
}

func (s *TransferService) To(ctx context.Context, addr string, opts ListOptions) ([]indexer.TransferEvent, error) {
	return s.list(ctx, db.TransferFilter{Address: addr, Direction: db.Received}, opts)
}

func (s *TransferService) ByToken(ctx context.Context, token string, opts ListOptions) ([]indexer.TransferEvent, error) {
	return s.list(ctx, db.TransferFilter{TokenAddress: token}, opts)
}

func (s *TransferService) ByAddressAndToken(ctx context.Context, addr, token string, opts ListOptions) ([]indexer.TransferEvent, error) {
	return s.list(ctx, db.TransferFilter{Address: addr, TokenAddress: token}, opts)
}

// Recent lists the whole table, by default newest first.
func (s *TransferService) Recent(ctx context.Context, opts ListOptions) ([]indexer.TransferEvent, error) {
	return s.list(ctx, db.TransferFilter{}, opts)
}

type RecentBlock struct {
	BlockNumber  uint64    `json:"blockNumber"`
	Timestamp    time.Time `json:"timestamp"`
	Transactions uint64    `json:"transactions"`
}

// RecentBlocks groups transfers by block, newest block first.
func (s *TransferService) RecentBlocks(ctx context.Context, limit, offset int) ([]RecentBlock, error) {
	if err := checkLimit(limit); err != nil {
		return nil, err
	}
	if offset < 0 {
		return nil, invalid("offset must not be negative")
	}
	blocks, err := s.store.BlockAggregates(ctx, db.BlockQuery{Limit: limit, Offset: offset})
	if err != nil {
		return nil, fmt.Errorf("query recent blocks: %w", err)
	}
	out := make([]RecentBlock, len(blocks))
	for i, b := range blocks {
		out[i] = RecentBlock{BlockNumber: b.BlockNumber, Timestamp: b.Timestamp, Transactions: b.Transfers}
	}
	return out, nil
}

// TopAddresses ranks addresses by sent plus received transfers over the whole
// table. Ties are broken by address.
func (s *TransferService) TopAddresses(ctx context.Context, limit int) ([]indexer.AddressActivity, error) {
	if err := checkLimit(limit); err != nil {
		return nil, err
	}
	top, err := s.store.AddressActivity(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("query top addresses: %w", err)
	}
	return top, nil
}

type NetworkSummary struct {
	TotalTransfers  uint64 `json:"totalTransfers"`
	UniqueAddresses uint64 `json:"uniqueAddresses"`
	LatestBlock     uint64 `json:"latestBlock"`
}

func (s *TransferService) Stats(ctx context.Context) (NetworkSummary, error) {
	sum, err := s.store.Summarize(ctx, db.TransferFilter{})
	if err != nil {
		return NetworkSummary{}, fmt.Errorf("summarize transfers: %w", err)
	}
	return NetworkSummary{
		TotalTransfers:  sum.Transfers,
		UniqueAddresses: sum.Addresses,
		LatestBlock:     sum.MaxBlock,
	}, nil
}

type AddressDetails struct {
	Address   string                  `json:"address"`
	Sent      uint64                  `json:"sent"`
	Received  uint64                  `json:"received"`
	Transfers []indexer.TransferEvent `json:"transfers"`
}

// addressDetailsLimit bounds the transfers embedded in AddressDetails.
const addressDetailsLimit = 100

func (s *TransferService) AddressDetails(ctx context.Context, addr string) (AddressDetails, error) {
	sent, err := s.store.Summarize(ctx, db.TransferFilter{Address: addr, Direction: db.Sent})
	if err != nil {
		return AddressDetails{}, fmt.Errorf("summarize sent transfers: %w", err)
	}
	received, err := s.store.Summarize(ctx, db.TransferFilter{Address: addr, Direction: db.Received})
	if err != nil {
		return AddressDetails{}, fmt.Errorf("summarize received transfers: %w", err)
	}

	opts := DefaultListOptions()
	opts.Limit = addressDetailsLimit
	rows, err := s.ByAddress(ctx, addr, opts)
	if err != nil {
		return AddressDetails{}, err
	}
	return AddressDetails{Address: addr, Sent: sent.Transfers, Received: received.Transfers, Transfers: rows}, nil
}
