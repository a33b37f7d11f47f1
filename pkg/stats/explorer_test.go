package stats

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/canopy-network/transferx/pkg/db"
	"github.com/canopy-network/transferx/pkg/db/memstore"
	"github.com/canopy-network/transferx/pkg/db/models/indexer"
	"github.com/canopy-network/transferx/pkg/db/storetest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNetworkStats(t *testing.T) {
	svc := fixtureServices(t).Explorer
	got, err := svc.NetworkStats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, NetworkStats{
		TotalTransfers:  5,
		UniqueAddresses: 4,
		UniqueSenders:   4,
		UniqueReceivers: 4,
		UniqueTokens:    3,
		UniqueBlocks:    2,
		RecentActivity:  5,
	}, got)
}

func TestNetworkStatsCountsTable(t *testing.T) {
	store := memstore.New()
	require.NoError(t, store.Insert(storetest.Fixture()...))
	svc := New(store, Options{Now: func() time.Time { return soon }}).Explorer

	for i := 0; i < 3; i++ {
		got, err := svc.NetworkStats(context.Background())
		require.NoError(t, err)
		rows, err := store.QueryTransfers(context.Background(), db.TransferFilter{}, db.Page{})
		require.NoError(t, err)
		assert.Equal(t, uint64(len(rows)), got.TotalTransfers)

		require.NoError(t, store.Insert(indexer.TransferEvent{
			From: storetest.AddrA, To: storetest.AddrB, Value: "1", TokenAddress: storetest.DAI,
			BlockNumber: 102, Timestamp: storetest.T0.Add(time.Minute),
		}))
	}
}

func TestNetworkStatsRecentWindow(t *testing.T) {
	// 24h before now is T0+5s, leaving rows 4 and 5
	svc := newServices(t, setup{now: storetest.T0.Add(24*time.Hour + 5*time.Second), rows: storetest.Fixture()}).Explorer
	got, err := svc.NetworkStats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, uint64(5), got.TotalTransfers)
	assert.Equal(t, uint64(2), got.RecentActivity)
}

func TestExplorerTopTokens(t *testing.T) {
	rows := append(storetest.Fixture(), indexer.TransferEvent{
		ID: 6, From: storetest.AddrA, To: storetest.AddrB, Value: "1", TokenAddress: unknownToken,
		BlockNumber: 101, Timestamp: storetest.T0.Add(14 * time.Second),
	})
	svc := newServices(t, setup{now: soon, rows: rows}).Explorer

	got, err := svc.TopTokens(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, got, 4)
	assert.Equal(t, TokenActivity{
		Address: storetest.USDT, Symbol: "USDT", TransferCount: 3, LastActivity: got[0].LastActivity,
	}, got[0])
	assert.True(t, got[0].LastActivity.Equal(storetest.T0.Add(12*time.Second)))
	assert.Equal(t, "DAI", got[1].Symbol)
	// one-transfer ties sort by address: 0x6b.. < 0x99.. < 0xa0..
	assert.Equal(t, "0x9999...9999", got[2].Symbol)
	assert.Equal(t, "USDC", got[3].Symbol)
}

func TestRecentActivity(t *testing.T) {
	svc := fixtureServices(t).Explorer
	got, err := svc.RecentActivity(context.Background(), 2)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, uint64(5), got[0].ID)
	assert.Equal(t, uint64(4), got[1].ID)

	raw, err := json.Marshal(got[0])
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"type":"transfer"`)
	assert.Contains(t, string(raw), `"from":"`+storetest.AddrD+`"`)
	assert.Contains(t, string(raw), `"transactionHash":null`)
}

func TestTrendingTokens(t *testing.T) {
	svc := fixtureServices(t).Explorer
	got, err := svc.TrendingTokens(context.Background(), 2)
	require.NoError(t, err)
	assert.Equal(t, []TrendingToken{
		{Address: storetest.USDT, Symbol: "USDT", RecentTransfers: 3},
		{Address: storetest.DAI, Symbol: "DAI", RecentTransfers: 1},
	}, got)
}

func TestTrendingTokensOnlyCountsNewest(t *testing.T) {
	var rows []indexer.TransferEvent
	// 250 old USDC transfers followed by 200 newer DAI ones
	for i := 0; i < 450; i++ {
		token := storetest.USDC
		if i >= 250 {
			token = storetest.DAI
		}
		rows = append(rows, indexer.TransferEvent{
			From: storetest.AddrA, To: storetest.AddrB, Value: "1", TokenAddress: token,
			BlockNumber: uint64(i), Timestamp: storetest.T0.Add(time.Duration(i) * time.Second),
		})
	}
	svc := newServices(t, setup{now: soon, rows: rows}).Explorer
	got, err := svc.TrendingTokens(context.Background(), 5)
	require.NoError(t, err)
	assert.Equal(t, []TrendingToken{{Address: storetest.DAI, Symbol: "DAI", RecentTransfers: 200}}, got)
}

func TestNetworkOverview(t *testing.T) {
	svc := fixtureServices(t).Explorer
	got, err := svc.Overview(context.Background())
	require.NoError(t, err)
	assert.Equal(t, uint64(101), got.LatestBlock)
	assert.Equal(t, uint64(100), got.OldestBlock)
	assert.Equal(t, uint64(2), got.BlockRange)
	require.NotNil(t, got.IndexingStartTime)
	require.NotNil(t, got.LastIndexedTime)
	assert.True(t, got.IndexingStartTime.Equal(storetest.T0))
	assert.True(t, got.LastIndexedTime.Equal(storetest.T0.Add(13*time.Second)))

	empty, err := newServices(t, setup{now: soon}).Explorer.Overview(context.Background())
	require.NoError(t, err)
	assert.Equal(t, NetworkOverview{}, empty)
}

func TestExplorerStats(t *testing.T) {
	svc := fixtureServices(t).Explorer
	ctx := context.Background()

	got, err := svc.Stats(ctx)
	require.NoError(t, err)

	network, err := svc.NetworkStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, network, got.Network)
	assert.Equal(t, uint64(101), got.Overview.LatestBlock)
	assert.Len(t, got.TopTokens, 3)
	assert.Len(t, got.TrendingTokens, 3)
	assert.Len(t, got.RecentActivity, 5)
}

func TestExplorerStatsError(t *testing.T) {
	svc := newServices(t, setup{now: soon, closed: true}).Explorer
	_, err := svc.Stats(context.Background())
	require.Error(t, err)
}
