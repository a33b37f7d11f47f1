package memstore

import (
	"context"
	"testing"

	"github.com/canopy-network/transferx/pkg/db"
	"github.com/canopy-network/transferx/pkg/db/models/indexer"
	"github.com/canopy-network/transferx/pkg/db/storetest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStore(t *testing.T) {
	storetest.Run(t, func(t *testing.T, rows []indexer.TransferEvent) db.TransferStore {
		s := New()
		require.NoError(t, s.Insert(rows...))
		return s
	})
}

func TestInsertRejectsInvalidValues(t *testing.T) {
	s := New()
	for _, v := range []string{"", "-1", "abc", "1e"} {
		err := s.Insert(indexer.TransferEvent{Value: v})
		assert.Error(t, err, v)
	}

	rows, err := s.QueryTransfers(context.Background(), db.TransferFilter{}, db.Page{})
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestInsertAssignsIDs(t *testing.T) {
	s := New()
	require.NoError(t, s.Insert(
		indexer.TransferEvent{ID: 7, Value: "1"},
		indexer.TransferEvent{Value: "2"},
	))

	rows, err := s.QueryTransfers(context.Background(), db.TransferFilter{}, db.Page{SortBy: "id"})
	require.NoError(t, err)
	assert.Equal(t, []uint64{7, 8}, storetest.IDs(rows))
}

func TestClosedStore(t *testing.T) {
	s := New()
	require.NoError(t, s.Close())
	assert.Error(t, s.Ping(context.Background()))

	_, err := s.Summarize(context.Background(), db.TransferFilter{})
	assert.Error(t, err)
}
