package stats

import (
	"context"
	"strconv"
	"testing"
	"time"

	"github.com/canopy-network/transferx/pkg/db/models/indexer"
	"github.com/canopy-network/transferx/pkg/db/storetest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNetworkMetrics(t *testing.T) {
	svc := fixtureServices(t).Analytics
	got, err := svc.NetworkMetrics(context.Background())
	require.NoError(t, err)

	assert.Equal(t, uint64(5), got.TotalTransactions)
	assert.Equal(t, uint64(4), got.ActiveAddresses)
	assert.Equal(t, uint64(2), got.TotalBlocks)
	assert.InDelta(t, 1e21, got.TotalValue, 1e6)
	assert.InDelta(t, 5.0/13.0, got.TPS, 1e-9)
	assert.InDelta(t, 6.5, got.AvgBlockTime, 1e-9)
	// every row is in the last day, so the prior period floors at 1
	assert.InDelta(t, 500.0, got.Change24h.Transactions, 1e-9)
	assert.InDelta(t, 400.0, got.Change24h.Addresses, 1e-9)

	tps24h := 5.0 / 86400
	assert.InDelta(t, tps24h/(5.0/13.0-tps24h)*100, got.Change24h.TPS, 1e-9)

	require.NotNil(t, got.TotalGasUsed)
	assert.Equal(t, uint64(105000), *got.TotalGasUsed)
	assert.Equal(t, []string{"totalGasUsed"}, got.Synthetic)
}

func TestNetworkMetricsEmpty(t *testing.T) {
	svc := newServices(t, setup{now: soon}).Analytics
	got, err := svc.NetworkMetrics(context.Background())
	require.NoError(t, err)
	assert.Zero(t, got.TotalTransactions)
	assert.Zero(t, got.TPS)
	assert.Equal(t, 12.0, got.AvgBlockTime)
	assert.Zero(t, got.Change24h.Transactions)
	assert.Nil(t, got.TotalGasUsed)
	assert.Empty(t, got.Synthetic)
}

func TestVolume(t *testing.T) {
	svc := fixtureServices(t).Analytics
	tests := []struct {
		timeRange string
		points    int
		busy      int
	}{
		{"24h", 24, 23},
		{"7d", 7, 6},
		{"30d", 30, 29},
		{"1y", 24, 23},
		{"", 24, 23},
	}
	for _, tt := range tests {
		t.Run(tt.timeRange, func(t *testing.T) {
			got, err := svc.Volume(context.Background(), tt.timeRange)
			require.NoError(t, err)
			require.Len(t, got, tt.points)

			var total uint64
			for i, p := range got {
				total += p.Transactions
				if i == tt.busy {
					assert.Equal(t, uint64(5), p.Transactions)
					require.NotNil(t, p.GasUsed)
					assert.Equal(t, uint64(105000), *p.GasUsed)
				}
				if i > 0 {
					assert.True(t, p.Timestamp.After(got[i-1].Timestamp))
				}
			}
			assert.Equal(t, uint64(5), total)
		})
	}
}

func TestVolumeLabels(t *testing.T) {
	svc := fixtureServices(t).Analytics
	hourly, err := svc.Volume(context.Background(), "24h")
	require.NoError(t, err)
	assert.Equal(t, "01:00", hourly[0].Time)
	assert.Equal(t, "00:00", hourly[23].Time)
	assert.True(t, hourly[23].Timestamp.Equal(storetest.T0))

	daily, err := svc.Volume(context.Background(), "7d")
	require.NoError(t, err)
	assert.Equal(t, "Jun 24", daily[0].Time)
}

func TestTokenDistribution(t *testing.T) {
	svc := fixtureServices(t).Analytics
	got, err := svc.TokenDistribution(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, got, 3)

	assert.Equal(t, TokenShare{
		Name: "USDT", Symbol: "USDT", Value: got[0].Value, Volume: got[0].Volume,
		Color: "#22c55e", Address: storetest.USDT, TransferCount: 3,
	}, got[0])
	assert.InDelta(t, 60.0, got[0].Value, 1e-9)
	assert.Equal(t, "DAI", got[1].Symbol)
	assert.Equal(t, "#3b82f6", got[1].Color)
	assert.Equal(t, "USDC", got[2].Symbol)

	var sum float64
	for _, s := range got {
		sum += s.Value
	}
	assert.InDelta(t, 100.0, sum, 1e-9)
}

func TestTokenDistributionUnknownTokens(t *testing.T) {
	rows := []indexer.TransferEvent{
		{From: storetest.AddrA, To: storetest.AddrB, Value: "1", TokenAddress: unknownToken, BlockNumber: 1, Timestamp: storetest.T0},
		{From: storetest.AddrA, To: storetest.AddrB, Value: "1", TokenAddress: unknownToken, BlockNumber: 1, Timestamp: storetest.T0},
		{From: storetest.AddrA, To: storetest.AddrB, Value: "1", TokenAddress: storetest.DAI, BlockNumber: 1, Timestamp: storetest.T0},
	}
	svc := newServices(t, setup{now: soon, rows: rows}).Analytics
	got, err := svc.TokenDistribution(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "Token 1", got[0].Name)
	assert.Equal(t, "T1", got[0].Symbol)
	assert.Equal(t, "DAI", got[1].Name)
	assert.InDelta(t, 200.0/3, got[0].Value, 1e-9)

	limited, err := svc.TokenDistribution(context.Background(), 1)
	require.NoError(t, err)
	assert.Len(t, limited, 1)
}

func TestGas(t *testing.T) {
	svc := fixtureServices(t).Analytics
	got, err := svc.Gas(context.Background(), 7)
	require.NoError(t, err)
	require.Len(t, got, 7)

	assert.Equal(t, "Jun 25", got[0].Date)
	last := got[6]
	assert.Equal(t, "Jul 1", last.Date)
	assert.Equal(t, uint64(2), last.BlockCount)
	require.NotNil(t, last.GasUsed)
	assert.Equal(t, uint64(105000), *last.GasUsed)
	assert.Equal(t, []string{"avgGasPrice", "gasUsed"}, last.Synthetic)
	assert.Zero(t, got[0].BlockCount)

	price, err := strconv.ParseFloat(last.AvgGasPrice, 64)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, price, 0.00001)
	assert.Less(t, price, 0.00006)

	again, err := svc.Gas(context.Background(), 7)
	require.NoError(t, err)
	assert.Equal(t, got, again, "gas prices are stable across calls")
}

func TestGasWithoutSyntheticFields(t *testing.T) {
	svc := newServices(t, setup{now: soon, rows: storetest.Fixture()}).Analytics
	got, err := svc.Gas(context.Background(), 1)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, GasPoint{Date: "Jul 1", BlockCount: 2}, got[0])
}

func TestGasValidation(t *testing.T) {
	svc := fixtureServices(t).Analytics
	for _, days := range []int{0, -1, MaxGasDays + 1} {
		_, err := svc.Gas(context.Background(), days)
		assert.ErrorIs(t, err, ErrInvalidQuery, days)
	}
	_, err := svc.Gas(context.Background(), MaxGasDays)
	assert.NoError(t, err)
}

func TestAnalyticsTopTokens(t *testing.T) {
	svc := fixtureServices(t).Analytics
	got, err := svc.TopTokens(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, got, 3)

	usdt := got[0]
	assert.Equal(t, "USDT", usdt.Symbol)
	assert.Equal(t, uint64(3), usdt.Transactions)
	assert.Equal(t, uint64(4), usdt.UniqueAddresses)
	assert.InDelta(t, 1e21/3, usdt.AvgTransferValue, 1e6)
	assert.InDelta(t, 300.0, usdt.Change24h, 1e-9)

	later := newServices(t, setup{now: storetest.T0.Add(48 * time.Hour), rows: storetest.Fixture()}).Analytics
	got, err = later.TopTokens(context.Background(), 1)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Zero(t, got[0].Change24h)
}

func TestAnalyticsTopTokensUnknownSymbol(t *testing.T) {
	rows := []indexer.TransferEvent{
		{From: storetest.AddrA, To: storetest.AddrB, Value: "4", TokenAddress: unknownToken, BlockNumber: 1, Timestamp: storetest.T0},
	}
	svc := newServices(t, setup{now: soon, rows: rows}).Analytics
	got, err := svc.TopTokens(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "0x9999...9999", got[0].Symbol)
	assert.Equal(t, 4.0, got[0].AvgTransferValue)
}

func TestAnalyticsOverview(t *testing.T) {
	svc := fixtureServices(t).Analytics
	got, err := svc.Overview(context.Background(), "7d")
	require.NoError(t, err)
	assert.Equal(t, uint64(5), got.NetworkMetrics.TotalTransactions)
	assert.Len(t, got.TransactionVolumeData, 7)
	assert.Len(t, got.TokenDistribution, 3)
	assert.Len(t, got.GasData, 7)
	assert.Len(t, got.TopTokens, 3)
	assert.True(t, got.Timestamp.Equal(soon))
}

func TestAnalyticsOverviewError(t *testing.T) {
	svc := newServices(t, setup{now: soon, closed: true}).Analytics
	_, err := svc.Overview(context.Background(), "24h")
	require.Error(t, err)
}
