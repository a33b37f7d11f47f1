// Package storetest holds a shared fixture and a behavioural suite that every
// db.TransferStore implementation must pass.
package storetest

import (
	"time"

	"github.com/canopy-network/transferx/pkg/db/models/indexer"
)

const (
	AddrA = "0x1111111111111111111111111111111111111111"
	AddrB = "0x2222222222222222222222222222222222222222"
	AddrC = "0x3333333333333333333333333333333333333333"
	AddrD = "0x4444444444444444444444444444444444444444"

	USDT = "0xdac17f958d2ee523a2206206994597c13d831ec7"
	USDC = "0xa0b86991c6218b36c1d19d4a2e9eb0ce3606eb48"
	DAI  = "0x6b175474e89094c44da98b954eedeac495271d0f"
)

// T0 is the timestamp of the first fixture row.
var T0 = time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC)

func hash(s string) *string { return &s }

// Fixture is five transfers over blocks 100 (three rows) and 101 (two rows).
//
//	id  from  to  value   token  block  t
//	1   A     B   100     USDT   100    T0
//	2   A     C   50      USDC   100    T0+1s   (no hash)
//	3   B     A   25.5    USDT   100    T0+2s
//	4   C     D   1e21    USDT   101    T0+12s
//	5   D     A   7       DAI    101    T0+13s  (no hash)
func Fixture() []indexer.TransferEvent {
	return []indexer.TransferEvent{
		{ID: 1, From: AddrA, To: AddrB, Value: "100", TokenAddress: USDT, BlockNumber: 100, Timestamp: T0, TransactionHash: hash("0xh1")},
		{ID: 2, From: AddrA, To: AddrC, Value: "50", TokenAddress: USDC, BlockNumber: 100, Timestamp: T0.Add(time.Second)},
		{ID: 3, From: AddrB, To: AddrA, Value: "25.5", TokenAddress: USDT, BlockNumber: 100, Timestamp: T0.Add(2 * time.Second), TransactionHash: hash("0xh3")},
		{ID: 4, From: AddrC, To: AddrD, Value: "1000000000000000000000", TokenAddress: USDT, BlockNumber: 101, Timestamp: T0.Add(12 * time.Second), TransactionHash: hash("0xh4")},
		{ID: 5, From: AddrD, To: AddrA, Value: "7", TokenAddress: DAI, BlockNumber: 101, Timestamp: T0.Add(13 * time.Second)},
	}
}

// IDs extracts row ids in order.
func IDs(rows []indexer.TransferEvent) []uint64 {
	out := make([]uint64, len(rows))
	for i, r := range rows {
		out[i] = r.ID
	}
	return out
}
