package storetest

import (
	"context"
	"testing"
	"time"

	"github.com/canopy-network/transferx/pkg/db"
	"github.com/canopy-network/transferx/pkg/db/models/indexer"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Opener returns a store holding exactly rows.
type Opener func(t *testing.T, rows []indexer.TransferEvent) db.TransferStore

func ptr(v uint64) *uint64 { return &v }

// Run exercises every TransferStore operation against the Fixture.
func Run(t *testing.T, open Opener) {
	ctx := context.Background()
	store := open(t, Fixture())

	t.Run("query transfers", func(t *testing.T) {
		tests := []struct {
			name   string
			filter db.TransferFilter
			page   db.Page
			want   []uint64
		}{
			{"either side, newest first", db.TransferFilter{Address: AddrA}, db.Page{SortDesc: true}, []uint64{5, 3, 2, 1}},
			{"sent", db.TransferFilter{Address: AddrA, Direction: db.Sent}, db.Page{SortDesc: true}, []uint64{2, 1}},
			{"received", db.TransferFilter{Address: AddrA, Direction: db.Received}, db.Page{SortDesc: true}, []uint64{5, 3}},
			{"each row once", db.TransferFilter{Address: AddrB}, db.Page{SortBy: "id"}, []uint64{1, 3}},
			{"address match is exact", db.TransferFilter{Address: "0xABC"}, db.Page{}, []uint64{}},
			{"token", db.TransferFilter{TokenAddress: USDT}, db.Page{SortBy: "id"}, []uint64{1, 3, 4}},
			{"address and token", db.TransferFilter{Address: AddrA, TokenAddress: USDT}, db.Page{SortBy: "id"}, []uint64{1, 3}},
			{"block range", db.TransferFilter{FromBlock: ptr(101), ToBlock: ptr(101)}, db.Page{SortBy: "id"}, []uint64{4, 5}},
			{"time window", db.TransferFilter{Since: T0.Add(time.Second), Until: T0.Add(12 * time.Second)}, db.Page{SortBy: "id"}, []uint64{2, 3}},
			{"value sorts numerically", db.TransferFilter{}, db.Page{SortBy: "value"}, []uint64{5, 3, 2, 1, 4}},
			{"hash asc, nulls last", db.TransferFilter{}, db.Page{SortBy: "transactionHash"}, []uint64{1, 3, 4, 2, 5}},
			{"hash desc, nulls last", db.TransferFilter{}, db.Page{SortBy: "transactionHash", SortDesc: true}, []uint64{4, 3, 1, 5, 2}},
			{"ties broken by id", db.TransferFilter{}, db.Page{SortBy: "blockNumber"}, []uint64{1, 2, 3, 4, 5}},
			{"limit and offset", db.TransferFilter{}, db.Page{Limit: 2, Offset: 1}, []uint64{2, 3}},
			{"offset past end", db.TransferFilter{}, db.Page{Offset: 50}, []uint64{}},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				rows, err := store.QueryTransfers(ctx, tt.filter, tt.page)
				require.NoError(t, err)
				assert.Equal(t, tt.want, IDs(rows))
			})
		}
	})

	t.Run("query transfers rejects unknown sort", func(t *testing.T) {
		_, err := store.QueryTransfers(ctx, db.TransferFilter{}, db.Page{SortBy: "value; DROP TABLE"})
		require.ErrorIs(t, err, db.ErrInvalidSort)
	})

	t.Run("transfer fields round trip", func(t *testing.T) {
		rows, err := store.QueryTransfers(ctx, db.TransferFilter{}, db.Page{SortBy: "id"})
		require.NoError(t, err)
		require.Len(t, rows, 5)
		assert.Equal(t, "1000000000000000000000", rows[3].Value)
		assert.Equal(t, "0xh4", rows[3].TxHash())
		assert.Equal(t, "tx_2", rows[1].TxHash())
		assert.True(t, rows[4].Timestamp.Equal(T0.Add(13*time.Second)))
	})

	t.Run("summarize", func(t *testing.T) {
		s, err := store.Summarize(ctx, db.TransferFilter{})
		require.NoError(t, err)
		assert.Equal(t, uint64(5), s.Transfers)
		assert.Equal(t, uint64(4), s.Senders)
		assert.Equal(t, uint64(4), s.Receivers)
		assert.Equal(t, uint64(4), s.Addresses)
		assert.Equal(t, uint64(3), s.Tokens)
		assert.Equal(t, uint64(2), s.Blocks)
		assert.True(t, decimal.RequireFromString("1000000000000000000182.5").Equal(s.TotalValue), s.TotalValue.String())
		assert.Equal(t, uint64(100), s.MinBlock)
		assert.Equal(t, uint64(101), s.MaxBlock)
		assert.True(t, s.FirstSeen.Equal(T0))
		assert.True(t, s.LastSeen.Equal(T0.Add(13*time.Second)))
		assert.True(t, s.MinBlockTime.Equal(T0))
		assert.True(t, s.MaxBlockTime.Equal(T0.Add(13*time.Second)))
	})

	t.Run("summarize with no rows", func(t *testing.T) {
		s, err := store.Summarize(ctx, db.TransferFilter{TokenAddress: "0xnone"})
		require.NoError(t, err)
		assert.Zero(t, s.Transfers)
		assert.Zero(t, s.Addresses)
		assert.True(t, s.TotalValue.IsZero())
		assert.True(t, s.LastSeen.IsZero())
	})

	t.Run("block aggregates", func(t *testing.T) {
		blocks, err := store.BlockAggregates(ctx, db.BlockQuery{})
		require.NoError(t, err)
		require.Len(t, blocks, 2)

		assert.Equal(t, uint64(101), blocks[0].BlockNumber)
		assert.Equal(t, uint64(2), blocks[0].Transfers)
		assert.Equal(t, uint64(2), blocks[0].UniqueTokens)
		assert.Equal(t, DAI, blocks[0].TopToken, "count tie resolves to the smaller address")
		assert.True(t, blocks[0].Timestamp.Equal(T0.Add(13*time.Second)))

		assert.Equal(t, uint64(100), blocks[1].BlockNumber)
		assert.Equal(t, uint64(3), blocks[1].Transfers)
		assert.Equal(t, USDT, blocks[1].TopToken)
		assert.True(t, decimal.RequireFromString("175.5").Equal(blocks[1].TotalValue))
	})

	t.Run("block aggregates paging and bounds", func(t *testing.T) {
		blocks, err := store.BlockAggregates(ctx, db.BlockQuery{Limit: 1, Offset: 1})
		require.NoError(t, err)
		require.Len(t, blocks, 1)
		assert.Equal(t, uint64(100), blocks[0].BlockNumber)

		q := db.BlockQuery{MinTransfers: ptr(3)}
		blocks, err = store.BlockAggregates(ctx, q)
		require.NoError(t, err)
		require.Len(t, blocks, 1)
		assert.Equal(t, uint64(100), blocks[0].BlockNumber)

		n, err := store.CountBlocks(ctx, q)
		require.NoError(t, err)
		assert.Equal(t, uint64(1), n)

		n, err = store.CountBlocks(ctx, db.BlockQuery{MaxTransfers: ptr(2), Limit: 1})
		require.NoError(t, err)
		assert.Equal(t, uint64(1), n)

		n, err = store.CountBlocks(ctx, db.BlockQuery{Filter: db.TransferFilter{FromBlock: ptr(500)}})
		require.NoError(t, err)
		assert.Zero(t, n)
	})

	t.Run("token aggregates", func(t *testing.T) {
		tokens, err := store.TokenAggregates(ctx, db.TokenQuery{})
		require.NoError(t, err)
		require.Len(t, tokens, 3)
		assert.Equal(t, []string{USDT, DAI, USDC}, []string{tokens[0].TokenAddress, tokens[1].TokenAddress, tokens[2].TokenAddress})

		usdt := tokens[0]
		assert.Equal(t, uint64(3), usdt.Transfers)
		assert.Equal(t, uint64(3), usdt.Senders)
		assert.Equal(t, uint64(3), usdt.Receivers)
		assert.Equal(t, uint64(4), usdt.Addresses)
		assert.True(t, usdt.LastActivity.Equal(T0.Add(12*time.Second)))

		limited, err := store.TokenAggregates(ctx, db.TokenQuery{Limit: 1, Filter: db.TransferFilter{FromBlock: ptr(101)}})
		require.NoError(t, err)
		require.Len(t, limited, 1)
		assert.Equal(t, DAI, limited[0].TokenAddress)
	})

	t.Run("recent token activity", func(t *testing.T) {
		tokens, err := store.RecentTokenActivity(ctx, 2, 5)
		require.NoError(t, err)
		require.Len(t, tokens, 2)
		assert.Equal(t, DAI, tokens[0].TokenAddress)
		assert.Equal(t, USDT, tokens[1].TokenAddress)
		assert.Equal(t, uint64(1), tokens[0].Transfers)
	})

	t.Run("address activity", func(t *testing.T) {
		top, err := store.AddressActivity(ctx, 2)
		require.NoError(t, err)
		assert.Equal(t, []indexer.AddressActivity{
			{Address: AddrA, Sent: 2, Received: 2, Count: 4},
			{Address: AddrB, Sent: 1, Received: 1, Count: 2},
		}, top)
	})

	t.Run("time buckets", func(t *testing.T) {
		buckets, err := store.TimeBuckets(ctx, T0, 10*time.Second, 3)
		require.NoError(t, err)
		require.Len(t, buckets, 3)

		assert.Equal(t, uint64(3), buckets[0].Transfers)
		assert.Equal(t, uint64(1), buckets[0].Blocks)
		assert.True(t, decimal.RequireFromString("175.5").Equal(buckets[0].Volume))
		assert.Equal(t, uint64(2), buckets[1].Transfers)
		assert.Zero(t, buckets[2].Transfers)
		assert.True(t, buckets[2].Volume.IsZero())
		for i, b := range buckets {
			assert.Equal(t, i, b.Index)
			assert.True(t, b.Start.Equal(T0.Add(time.Duration(i)*10*time.Second)))
		}

		none, err := store.TimeBuckets(ctx, T0, time.Second, 0)
		require.NoError(t, err)
		assert.Empty(t, none)
	})

	t.Run("ping", func(t *testing.T) {
		require.NoError(t, store.Ping(ctx))
	})
}
