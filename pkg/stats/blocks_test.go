package stats

import (
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/canopy-network/transferx/pkg/db/models/indexer"
	"github.com/canopy-network/transferx/pkg/db/storetest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSummariesOrderAndLimit(t *testing.T) {
	svc := fixtureServices(t).Blocks

	got, err := svc.Summaries(context.Background(), 2)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, uint64(101), got[0].Number)
	assert.Equal(t, uint64(2), got[0].Transactions)
	assert.Equal(t, uint64(100), got[1].Number)
	assert.Equal(t, uint64(3), got[1].Transactions)

	got, err = svc.Summaries(context.Background(), 1)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, uint64(101), got[0].Number)

	_, err = svc.Summaries(context.Background(), 0)
	assert.ErrorIs(t, err, ErrInvalidQuery)
}

func TestSummaryFields(t *testing.T) {
	svc := fixtureServices(t).Blocks
	got, err := svc.Summaries(context.Background(), 2)
	require.NoError(t, err)

	b := got[0]
	assert.Equal(t, "0x"+strings.Repeat("0", 62)+"65", b.Hash)
	assert.Equal(t, "0xvalidator0000000101", b.Validator)
	assert.Equal(t, "0.0M", b.GasUsed)
	assert.Equal(t, "30.0M", b.GasLimit)
	require.NotNil(t, b.BaseFeePerGas)
	assert.Equal(t, 0.00000001, *b.BaseFeePerGas)
	assert.Equal(t, "0.0002", b.Reward)
	assert.Equal(t, uint64(51000), b.Size)
	assert.Equal(t, "1000000000000000000007.00", b.TotalValue)
	assert.Equal(t, uint64(2), b.UniqueTokens)
	assert.Equal(t, storetest.DAI, b.TopToken)
	assert.ElementsMatch(t, []string{"hash", "validator", "gasUsed", "gasLimit", "baseFeePerGas", "reward", "size"}, b.Synthetic)
	assert.True(t, b.Timestamp.Equal(storetest.T0.Add(13*time.Second)))

	assert.Equal(t, "175.50", got[1].TotalValue)
	assert.Equal(t, storetest.USDT, got[1].TopToken)
}

func TestSummaryWithoutSyntheticFields(t *testing.T) {
	svc := newServices(t, setup{now: soon, rows: storetest.Fixture()}).Blocks
	got, err := svc.Summaries(context.Background(), 1)
	require.NoError(t, err)
	require.Len(t, got, 1)

	raw, err := json.Marshal(got[0])
	require.NoError(t, err)
	for _, field := range []string{"hash", "validator", "gasUsed", "gasLimit", "baseFeePerGas", "reward", "size", "synthetic"} {
		assert.NotContains(t, string(raw), `"`+field+`"`)
	}
	assert.Contains(t, string(raw), `"totalValue":"1000000000000000000007.00"`)
}

func TestSummaryUnknownTopToken(t *testing.T) {
	svc := newServices(t, setup{now: soon, rows: []indexer.TransferEvent{
		{From: storetest.AddrA, To: storetest.AddrB, Value: "1", BlockNumber: 7, Timestamp: storetest.T0},
	}}).Blocks
	got, err := svc.Summaries(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "Unknown", got[0].TopToken)
}

func TestBlockDetails(t *testing.T) {
	svc := fixtureServices(t).Blocks
	got, err := svc.Details(context.Background(), 100)
	require.NoError(t, err)

	assert.Equal(t, uint64(100), got.Number)
	assert.Equal(t, uint64(3), got.Transactions)
	assert.Equal(t, uint64(3), got.UniqueAddresses)
	assert.Equal(t, "175.50", got.TotalValue)
	assert.True(t, got.Timestamp.Equal(storetest.T0.Add(2*time.Second)))

	hashes := make([]string, len(got.Transfers))
	for i, tr := range got.Transfers {
		hashes[i] = tr.Hash
	}
	assert.Equal(t, []string{"0xh3", "tx_2", "0xh1"}, hashes)
}

func TestBlockDetailsNotFound(t *testing.T) {
	svc := fixtureServices(t).Blocks
	_, err := svc.Details(context.Background(), 999)
	require.ErrorIs(t, err, ErrBlockNotFound)
}

func TestBlockStats(t *testing.T) {
	svc := fixtureServices(t).Blocks
	got, err := svc.Stats(context.Background())
	require.NoError(t, err)

	assert.Equal(t, uint64(2), got.TotalBlocks)
	assert.Equal(t, uint64(101), got.LatestBlockNumber)
	require.NotNil(t, got.LatestBlockTimestamp)
	assert.True(t, got.LatestBlockTimestamp.Equal(storetest.T0.Add(13*time.Second)))
	assert.Equal(t, uint64(3), got.AvgTransactionsPerBlock, "2.5 rounds up")
	require.NotNil(t, got.AvgBlockTime)
	assert.InDelta(t, 13.0, *got.AvgBlockTime, 1e-9)
	assert.Equal(t, uint64(5), got.TotalTransactions)
	assert.Empty(t, got.Synthetic)
}

func TestBlockStatsEmpty(t *testing.T) {
	svc := newServices(t, setup{now: soon, synthetic: true}).Blocks
	got, err := svc.Stats(context.Background())
	require.NoError(t, err)
	assert.Zero(t, got.TotalBlocks)
	assert.Nil(t, got.LatestBlockTimestamp)
	require.NotNil(t, got.AvgBlockTime)
	assert.Equal(t, 12.0, *got.AvgBlockTime)
	assert.Equal(t, []string{"avgBlockTime"}, got.Synthetic)

	svc = newServices(t, setup{now: soon}).Blocks
	got, err = svc.Stats(context.Background())
	require.NoError(t, err)
	assert.Nil(t, got.AvgBlockTime)
}

func TestSearch(t *testing.T) {
	svc := fixtureServices(t).Blocks
	tests := []struct {
		q    string
		want []uint64
	}{
		{"100", []uint64{101, 100}},
		{"96", []uint64{101, 100}},
		{"95", []uint64{100}},
		{"0x64", []uint64{101, 100}},
		{"0x" + strings.Repeat("0", 62) + "65", []uint64{101, 100}},
		{"200", []uint64{}},
		{"abc", []uint64{}},
		{"-5", []uint64{}},
		{"18446744073709551615", []uint64{}},
		{"99999999999999999999999", []uint64{}},
	}
	for _, tt := range tests {
		t.Run(tt.q, func(t *testing.T) {
			got, err := svc.Search(context.Background(), tt.q)
			require.NoError(t, err)
			numbers := make([]uint64, len(got))
			for i, b := range got {
				numbers[i] = b.Number
			}
			assert.Equal(t, tt.want, numbers)
		})
	}
}

func TestSearchRequiresQuery(t *testing.T) {
	svc := fixtureServices(t).Blocks
	_, err := svc.Search(context.Background(), "")
	require.ErrorIs(t, err, ErrInvalidQuery)
}

func TestPaginated(t *testing.T) {
	svc := fixtureServices(t).Blocks
	ctx := context.Background()
	three, two := uint64(3), uint64(2)

	got, err := svc.Paginated(ctx, BlockPageOptions{})
	require.NoError(t, err)
	assert.Len(t, got.Blocks, 2)
	assert.Equal(t, Pagination{Page: 1, Limit: 20, Total: 2, TotalPages: 1}, got.Pagination)

	got, err = svc.Paginated(ctx, BlockPageOptions{Page: 2, Limit: 1})
	require.NoError(t, err)
	require.Len(t, got.Blocks, 1)
	assert.Equal(t, uint64(100), got.Blocks[0].Number)
	assert.Equal(t, Pagination{Page: 2, Limit: 1, Total: 2, TotalPages: 2}, got.Pagination)

	got, err = svc.Paginated(ctx, BlockPageOptions{MinTransactions: &three})
	require.NoError(t, err)
	require.Len(t, got.Blocks, 1)
	assert.Equal(t, uint64(100), got.Blocks[0].Number)

	got, err = svc.Paginated(ctx, BlockPageOptions{MaxTransactions: &two, DateRange: "24h"})
	require.NoError(t, err)
	require.Len(t, got.Blocks, 1)
	assert.Equal(t, uint64(101), got.Blocks[0].Number)
}

func TestPaginatedDateRange(t *testing.T) {
	svc := newServices(t, setup{now: storetest.T0.Add(48 * time.Hour), rows: storetest.Fixture()}).Blocks
	ctx := context.Background()

	for _, r := range []string{"24h", "7d", "30d", "all", ""} {
		got, err := svc.Paginated(ctx, BlockPageOptions{DateRange: r})
		require.NoError(t, err, r)
		if r == "24h" {
			assert.Empty(t, got.Blocks)
			assert.Equal(t, Pagination{Page: 1, Limit: 20}, got.Pagination)
			continue
		}
		assert.Len(t, got.Blocks, 2, r)
	}
}

func TestPaginatedValidation(t *testing.T) {
	svc := fixtureServices(t).Blocks
	lo, hi := uint64(5), uint64(1)
	for _, opts := range []BlockPageOptions{
		{Page: -1},
		{Limit: MaxLimit + 1},
		{DateRange: "1y"},
		{MinTransactions: &lo, MaxTransactions: &hi},
	} {
		_, err := svc.Paginated(context.Background(), opts)
		assert.ErrorIs(t, err, ErrInvalidQuery)
	}
}
