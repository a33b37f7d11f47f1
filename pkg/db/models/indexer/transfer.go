package indexer

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// TransferEventsTableName is the table the external ingester writes to.
const TransferEventsTableName = "transfer_events"

// TransferEvent is one ERC-20 Transfer log as stored by the ingester.
// Value is kept as decimal text so no precision is lost on 256-bit amounts.
type TransferEvent struct {
	ID              uint64    `json:"id"`
	From            string    `json:"from"`
	To              string    `json:"to"`
	Value           string    `json:"value"`
	TokenAddress    string    `json:"tokenAddress"`
	BlockNumber     uint64    `json:"blockNumber"`
	Timestamp       time.Time `json:"timestamp"`
	TransactionHash *string   `json:"transactionHash"`
}

// TxHash returns the chain transaction hash, or tx_<id> for rows ingested
// before the column existed.
func (t TransferEvent) TxHash() string {
	if t.TransactionHash != nil && *t.TransactionHash != "" {
		return *t.TransactionHash
	}
	return fmt.Sprintf("tx_%d", t.ID)
}

// Amount parses Value. See ParseValue.
func (t TransferEvent) Amount() (decimal.Decimal, error) {
	return ParseValue(t.Value)
}

// ParseValue parses a transfer value. Values must be non-negative decimals.
func ParseValue(s string) (decimal.Decimal, error) {
	if s == "" {
		return decimal.Zero, fmt.Errorf("invalid transfer value: empty")
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid transfer value %q: %w", s, err)
	}
	if d.IsNegative() {
		return decimal.Zero, fmt.Errorf("invalid transfer value %q: negative", s)
	}
	return d, nil
}
