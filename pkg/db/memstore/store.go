// Package memstore is an in-process TransferStore. It mirrors the Postgres
// store's ordering and aggregation rules and backs the service tests.
package memstore

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/canopy-network/transferx/pkg/db"
	"github.com/canopy-network/transferx/pkg/db/models/indexer"
	"github.com/shopspring/decimal"
)

var _ db.TransferStore = (*Store)(nil)

type Store struct {
	mu     sync.RWMutex
	rows   []indexer.TransferEvent
	nextID uint64
	closed bool
}

func New() *Store {
	return &Store{nextID: 1}
}

// Insert appends rows, assigning ids to rows that have none. Values must
// parse as non-negative decimals.
func (s *Store) Insert(rows ...indexer.TransferEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, r := range rows {
		if _, err := indexer.ParseValue(r.Value); err != nil {
			return err
		}
	}
	for _, r := range rows {
		if r.ID == 0 {
			r.ID = s.nextID
		}
		if r.ID >= s.nextID {
			s.nextID = r.ID + 1
		}
		s.rows = append(s.rows, r)
	}
	return nil
}

func (s *Store) Ping(context.Context) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return fmt.Errorf("memstore closed")
	}
	return nil
}

func (s *Store) Close() error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	return nil
}

func matches(f db.TransferFilter, r indexer.TransferEvent) bool {
	if f.Address != "" {
		switch f.Direction {
		case db.Sent:
			if r.From != f.Address {
				return false
			}
		case db.Received:
			if r.To != f.Address {
				return false
			}
		default:
			if r.From != f.Address && r.To != f.Address {
				return false
			}
		}
	}
	if f.TokenAddress != "" && r.TokenAddress != f.TokenAddress {
		return false
	}
	if f.FromBlock != nil && r.BlockNumber < *f.FromBlock {
		return false
	}
	if f.ToBlock != nil && r.BlockNumber > *f.ToBlock {
		return false
	}
	if !f.Since.IsZero() && r.Timestamp.Before(f.Since) {
		return false
	}
	if !f.Until.IsZero() && !r.Timestamp.Before(f.Until) {
		return false
	}
	return true
}

func (s *Store) filter(ctx context.Context, f db.TransferFilter) ([]indexer.TransferEvent, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, fmt.Errorf("memstore closed")
	}
	out := make([]indexer.TransferEvent, 0, len(s.rows))
	for _, r := range s.rows {
		if matches(f, r) {
			out = append(out, r)
		}
	}
	return out, nil
}

func amount(r indexer.TransferEvent) decimal.Decimal {
	// Insert validated every value
	d, _ := r.Amount()
	return d
}

func compareHash(a, b *string) int {
	switch {
	case a == nil && b == nil:
		return 0
	case a == nil:
		return 1
	case b == nil:
		return -1
	}
	return cmp.Compare(*a, *b)
}

func compareBy(col string, a, b indexer.TransferEvent) int {
	switch col {
	case "id":
		return cmp.Compare(a.ID, b.ID)
	case "from":
		return cmp.Compare(a.From, b.From)
	case "to":
		return cmp.Compare(a.To, b.To)
	case "value":
		return amount(a).Cmp(amount(b))
	case "tokenAddress":
		return cmp.Compare(a.TokenAddress, b.TokenAddress)
	case "blockNumber":
		return cmp.Compare(a.BlockNumber, b.BlockNumber)
	case "transactionHash":
		return compareHash(a.TransactionHash, b.TransactionHash)
	default:
		return a.Timestamp.Compare(b.Timestamp)
	}
}

func (s *Store) QueryTransfers(ctx context.Context, filter db.TransferFilter, page db.Page) ([]indexer.TransferEvent, error) {
	col := page.SortBy
	if col == "" {
		col = "timestamp"
	}
	if !db.ValidSort(col) {
		return nil, fmt.Errorf("%w: %q", db.ErrInvalidSort, col)
	}
	rows, err := s.filter(ctx, filter)
	if err != nil {
		return nil, err
	}

	slices.SortFunc(rows, func(a, b indexer.TransferEvent) int {
		if col == "transactionHash" && (a.TransactionHash == nil) != (b.TransactionHash == nil) {
			// NULLS LAST regardless of direction
			return compareHash(a.TransactionHash, b.TransactionHash)
		}
		c := compareBy(col, a, b)
		if c == 0 {
			c = cmp.Compare(a.ID, b.ID)
		}
		if page.SortDesc {
			return -c
		}
		return c
	})
	return paginate(rows, page.Limit, page.Offset), nil
}

func paginate[T any](rows []T, limit, offset int) []T {
	if offset >= len(rows) {
		return []T{}
	}
	rows = rows[offset:]
	if limit > 0 && limit < len(rows) {
		rows = rows[:limit]
	}
	return rows
}

func (s *Store) Summarize(ctx context.Context, filter db.TransferFilter) (indexer.Summary, error) {
	rows, err := s.filter(ctx, filter)
	if err != nil {
		return indexer.Summary{}, err
	}
	summary := indexer.Summary{TotalValue: decimal.Zero, AvgValue: decimal.Zero}
	if len(rows) == 0 {
		return summary, nil
	}

	senders := map[string]struct{}{}
	receivers := map[string]struct{}{}
	addrs := map[string]struct{}{}
	tokens := map[string]struct{}{}
	blocks := map[uint64]struct{}{}

	summary.MinBlock, summary.MaxBlock = rows[0].BlockNumber, rows[0].BlockNumber
	summary.FirstSeen, summary.LastSeen = rows[0].Timestamp, rows[0].Timestamp
	for _, r := range rows {
		senders[r.From] = struct{}{}
		receivers[r.To] = struct{}{}
		addrs[r.From] = struct{}{}
		addrs[r.To] = struct{}{}
		tokens[r.TokenAddress] = struct{}{}
		blocks[r.BlockNumber] = struct{}{}
		summary.TotalValue = summary.TotalValue.Add(amount(r))
		summary.MinBlock = min(summary.MinBlock, r.BlockNumber)
		summary.MaxBlock = max(summary.MaxBlock, r.BlockNumber)
		if r.Timestamp.Before(summary.FirstSeen) {
			summary.FirstSeen = r.Timestamp
		}
		if r.Timestamp.After(summary.LastSeen) {
			summary.LastSeen = r.Timestamp
		}
	}

	var loSet, hiSet bool
	for _, r := range rows {
		if r.BlockNumber == summary.MinBlock && (!loSet || r.Timestamp.Before(summary.MinBlockTime)) {
			summary.MinBlockTime, loSet = r.Timestamp, true
		}
		if r.BlockNumber == summary.MaxBlock && (!hiSet || r.Timestamp.After(summary.MaxBlockTime)) {
			summary.MaxBlockTime, hiSet = r.Timestamp, true
		}
	}

	summary.Transfers = uint64(len(rows))
	summary.Senders = uint64(len(senders))
	summary.Receivers = uint64(len(receivers))
	summary.Addresses = uint64(len(addrs))
	summary.Tokens = uint64(len(tokens))
	summary.Blocks = uint64(len(blocks))
	summary.AvgValue = summary.TotalValue.Div(decimal.NewFromInt(int64(len(rows))))
	return summary, nil
}

// topByCount picks the key with the highest count, ties by smallest key.
func topByCount(counts map[string]uint64) string {
	best, bestN := "", uint64(0)
	for k, n := range counts {
		if n > bestN || (n == bestN && k < best) {
			best, bestN = k, n
		}
	}
	return best
}

func (s *Store) groupBlocks(ctx context.Context, q db.BlockQuery) ([]indexer.BlockAggregate, error) {
	rows, err := s.filter(ctx, q.Filter)
	if err != nil {
		return nil, err
	}

	byBlock := map[uint64]*indexer.BlockAggregate{}
	tokenCounts := map[uint64]map[string]uint64{}
	for _, r := range rows {
		b, ok := byBlock[r.BlockNumber]
		if !ok {
			b = &indexer.BlockAggregate{BlockNumber: r.BlockNumber, Timestamp: r.Timestamp, TotalValue: decimal.Zero}
			byBlock[r.BlockNumber] = b
			tokenCounts[r.BlockNumber] = map[string]uint64{}
		}
		b.Transfers++
		b.TotalValue = b.TotalValue.Add(amount(r))
		if r.Timestamp.After(b.Timestamp) {
			b.Timestamp = r.Timestamp
		}
		tokenCounts[r.BlockNumber][r.TokenAddress]++
	}

	out := make([]indexer.BlockAggregate, 0, len(byBlock))
	for n, b := range byBlock {
		if q.MinTransfers != nil && b.Transfers < *q.MinTransfers {
			continue
		}
		if q.MaxTransfers != nil && b.Transfers > *q.MaxTransfers {
			continue
		}
		b.UniqueTokens = uint64(len(tokenCounts[n]))
		b.TopToken = topByCount(tokenCounts[n])
		out = append(out, *b)
	}
	slices.SortFunc(out, func(a, b indexer.BlockAggregate) int {
		return cmp.Compare(b.BlockNumber, a.BlockNumber)
	})
	return out, nil
}

func (s *Store) BlockAggregates(ctx context.Context, q db.BlockQuery) ([]indexer.BlockAggregate, error) {
	out, err := s.groupBlocks(ctx, q)
	if err != nil {
		return nil, err
	}
	return paginate(out, q.Limit, q.Offset), nil
}

func (s *Store) CountBlocks(ctx context.Context, q db.BlockQuery) (uint64, error) {
	out, err := s.groupBlocks(ctx, q)
	if err != nil {
		return 0, err
	}
	return uint64(len(out)), nil
}

func sortTokens(out []indexer.TokenAggregate) {
	slices.SortFunc(out, func(a, b indexer.TokenAggregate) int {
		if c := cmp.Compare(b.Transfers, a.Transfers); c != 0 {
			return c
		}
		return cmp.Compare(a.TokenAddress, b.TokenAddress)
	})
}

func (s *Store) TokenAggregates(ctx context.Context, q db.TokenQuery) ([]indexer.TokenAggregate, error) {
	rows, err := s.filter(ctx, q.Filter)
	if err != nil {
		return nil, err
	}

	type acc struct {
		agg       indexer.TokenAggregate
		senders   map[string]struct{}
		receivers map[string]struct{}
		addrs     map[string]struct{}
	}
	byToken := map[string]*acc{}
	for _, r := range rows {
		a, ok := byToken[r.TokenAddress]
		if !ok {
			a = &acc{
				agg:       indexer.TokenAggregate{TokenAddress: r.TokenAddress, TotalValue: decimal.Zero, LastActivity: r.Timestamp},
				senders:   map[string]struct{}{},
				receivers: map[string]struct{}{},
				addrs:     map[string]struct{}{},
			}
			byToken[r.TokenAddress] = a
		}
		a.agg.Transfers++
		a.agg.TotalValue = a.agg.TotalValue.Add(amount(r))
		if r.Timestamp.After(a.agg.LastActivity) {
			a.agg.LastActivity = r.Timestamp
		}
		a.senders[r.From] = struct{}{}
		a.receivers[r.To] = struct{}{}
		a.addrs[r.From] = struct{}{}
		a.addrs[r.To] = struct{}{}
	}

	out := make([]indexer.TokenAggregate, 0, len(byToken))
	for _, a := range byToken {
		a.agg.Senders = uint64(len(a.senders))
		a.agg.Receivers = uint64(len(a.receivers))
		a.agg.Addresses = uint64(len(a.addrs))
		a.agg.AvgValue = a.agg.TotalValue.Div(decimal.NewFromInt(int64(a.agg.Transfers)))
		out = append(out, a.agg)
	}
	sortTokens(out)
	return paginate(out, q.Limit, 0), nil
}

func (s *Store) RecentTokenActivity(ctx context.Context, window, limit int) ([]indexer.TokenAggregate, error) {
	if window <= 0 {
		return []indexer.TokenAggregate{}, nil
	}
	recent, err := s.QueryTransfers(ctx, db.TransferFilter{}, db.Page{Limit: window, SortBy: "timestamp", SortDesc: true})
	if err != nil {
		return nil, err
	}

	byToken := map[string]*indexer.TokenAggregate{}
	for _, r := range recent {
		t, ok := byToken[r.TokenAddress]
		if !ok {
			t = &indexer.TokenAggregate{TokenAddress: r.TokenAddress, LastActivity: r.Timestamp}
			byToken[r.TokenAddress] = t
		}
		t.Transfers++
		if r.Timestamp.After(t.LastActivity) {
			t.LastActivity = r.Timestamp
		}
	}
	out := make([]indexer.TokenAggregate, 0, len(byToken))
	for _, t := range byToken {
		out = append(out, *t)
	}
	sortTokens(out)
	return paginate(out, limit, 0), nil
}

func (s *Store) AddressActivity(ctx context.Context, limit int) ([]indexer.AddressActivity, error) {
	rows, err := s.filter(ctx, db.TransferFilter{})
	if err != nil {
		return nil, err
	}
	byAddr := map[string]*indexer.AddressActivity{}
	get := func(addr string) *indexer.AddressActivity {
		a, ok := byAddr[addr]
		if !ok {
			a = &indexer.AddressActivity{Address: addr}
			byAddr[addr] = a
		}
		return a
	}
	for _, r := range rows {
		get(r.From).Sent++
		get(r.To).Received++
	}

	out := make([]indexer.AddressActivity, 0, len(byAddr))
	for _, a := range byAddr {
		a.Count = a.Sent + a.Received
		out = append(out, *a)
	}
	slices.SortFunc(out, func(a, b indexer.AddressActivity) int {
		if c := cmp.Compare(b.Count, a.Count); c != 0 {
			return c
		}
		return cmp.Compare(a.Address, b.Address)
	})
	return paginate(out, limit, 0), nil
}

func (s *Store) TimeBuckets(ctx context.Context, start time.Time, width time.Duration, n int) ([]indexer.Bucket, error) {
	if n <= 0 {
		return nil, nil
	}
	rows, err := s.filter(ctx, db.TransferFilter{Since: start, Until: start.Add(time.Duration(n) * width)})
	if err != nil {
		return nil, err
	}

	buckets := make([]indexer.Bucket, n)
	blocks := make([]map[uint64]struct{}, n)
	for i := range buckets {
		buckets[i] = indexer.Bucket{Index: i, Start: start.Add(time.Duration(i) * width), Volume: decimal.Zero}
		blocks[i] = map[uint64]struct{}{}
	}
	for _, r := range rows {
		i := int(r.Timestamp.Sub(start) / width)
		buckets[i].Transfers++
		buckets[i].Volume = buckets[i].Volume.Add(amount(r))
		blocks[i][r.BlockNumber] = struct{}{}
	}
	for i := range buckets {
		buckets[i].Blocks = uint64(len(blocks[i]))
	}
	return buckets, nil
}
