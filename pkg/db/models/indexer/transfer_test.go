package indexer

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseValue(t *testing.T) {
	for _, v := range []string{"0", "100", "25.5", "1000000000000000000000"} {
		d, err := ParseValue(v)
		require.NoError(t, err, v)
		assert.True(t, d.Equal(decimal.RequireFromString(v)), v)
	}

	for _, v := range []string{"", "-1", "abc"} {
		_, err := ParseValue(v)
		assert.Error(t, err, v)
	}
}

func TestTxHash(t *testing.T) {
	h := "0xabc"
	assert.Equal(t, "0xabc", TransferEvent{ID: 9, TransactionHash: &h}.TxHash())
	assert.Equal(t, "tx_9", TransferEvent{ID: 9}.TxHash())
}
