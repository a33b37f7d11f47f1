package indexer

import (
	"time"

	"github.com/shopspring/decimal"
)

// BlockAggregate is one GROUP BY blockNumber row.
type BlockAggregate struct {
	BlockNumber  uint64
	Transfers    uint64
	Timestamp    time.Time // MAX(timestamp)
	UniqueTokens uint64
	TotalValue   decimal.Decimal
	TopToken     string // most frequent token, ties broken by address
}

// TokenAggregate is one GROUP BY tokenAddress row.
type TokenAggregate struct {
	TokenAddress string
	Transfers    uint64
	TotalValue   decimal.Decimal
	AvgValue     decimal.Decimal
	Senders      uint64
	Receivers    uint64
	Addresses    uint64 // distinct union of senders and receivers
	LastActivity time.Time
}

// AddressActivity counts transfers an address took part in, on either side.
type AddressActivity struct {
	Address  string `json:"address"`
	Sent     uint64 `json:"sent"`
	Received uint64 `json:"received"`
	Count    uint64 `json:"count"`
}

// Summary is the single-row aggregate over a filtered slice of the table.
// Zero-valued when no rows match.
type Summary struct {
	Transfers  uint64
	Senders    uint64
	Receivers  uint64
	Addresses  uint64
	Tokens     uint64
	Blocks     uint64
	TotalValue decimal.Decimal
	AvgValue   decimal.Decimal
	MinBlock   uint64
	MaxBlock   uint64
	// Timestamps of the oldest and newest rows by time
	FirstSeen time.Time
	LastSeen  time.Time
	// Oldest row time within MinBlock and newest row time within MaxBlock
	MinBlockTime time.Time
	MaxBlockTime time.Time
}

// Bucket is one fixed-width time slot. Index counts from the requested start.
type Bucket struct {
	Index     int
	Start     time.Time
	Transfers uint64
	Blocks    uint64
	Volume    decimal.Decimal
}
