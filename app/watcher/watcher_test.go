package watcher

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/canopy-network/transferx/pkg/db"
	"github.com/canopy-network/transferx/pkg/db/memstore"
	"github.com/canopy-network/transferx/pkg/db/models/indexer"
	"github.com/canopy-network/transferx/pkg/db/storetest"
	"github.com/canopy-network/transferx/pkg/redis"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
	"go.uber.org/zap/zaptest/observer"
)

type published struct {
	channel string
	event   BlockEvent
}

// fakePublisher records messages and fails the publish numbered failAt (1-based).
type fakePublisher struct {
	mu     sync.Mutex
	calls  int
	failAt int
	out    []published
}

func (p *fakePublisher) Publish(_ context.Context, channel string, message any) (int64, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls++
	if p.calls == p.failAt {
		return 0, errors.New("redis down")
	}
	var ev BlockEvent
	if err := json.Unmarshal([]byte(message.(string)), &ev); err != nil {
		return 0, err
	}
	p.out = append(p.out, published{channel: channel, event: ev})
	return 1, nil
}

func row(block uint64, token, value string, sec int) indexer.TransferEvent {
	return indexer.TransferEvent{
		From: storetest.AddrA, To: storetest.AddrB, Value: value, TokenAddress: token,
		BlockNumber: block, Timestamp: storetest.T0.Add(time.Duration(sec) * time.Second),
	}
}

func newWatcher(t *testing.T, pub Publisher, rows ...indexer.TransferEvent) (*Watcher, *memstore.Store) {
	t.Helper()
	store := memstore.New()
	require.NoError(t, store.Insert(rows...))
	return New(store, pub, nil, zaptest.NewLogger(t)), store
}

func TestFirstTickOnlyRecordsHead(t *testing.T) {
	pub := &fakePublisher{}
	w, _ := newWatcher(t, pub, storetest.Fixture()...)

	_, ok := w.Head()
	assert.False(t, ok)

	n, err := w.Tick(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
	head, ok := w.Head()
	assert.True(t, ok)
	assert.Equal(t, uint64(101), head)
	assert.Empty(t, pub.out)

	n, err = w.Tick(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestTickAnnouncesNewBlocksOldestFirst(t *testing.T) {
	pub := &fakePublisher{}
	w, store := newWatcher(t, pub, storetest.Fixture()...)
	ctx := context.Background()
	_, err := w.Tick(ctx)
	require.NoError(t, err)

	require.NoError(t, store.Insert(
		row(103, storetest.USDT, "4", 40),
		row(102, storetest.USDT, "1", 24),
		row(102, storetest.DAI, "2", 25),
		row(102, storetest.USDT, "1.5", 26),
	))

	n, err := w.Tick(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	head, _ := w.Head()
	assert.Equal(t, uint64(103), head)

	require.Len(t, pub.out, 3)
	assert.Equal(t, redis.BlockIndexedChannel(storetest.USDT), pub.out[0].channel)
	assert.Equal(t, BlockEvent{
		BlockNumber:  102,
		TokenAddress: storetest.USDT,
		Symbol:       "USDT",
		Transfers:    2,
		TotalValue:   "2.5",
		Timestamp:    storetest.T0.Add(26 * time.Second),
	}, pub.out[0].event)
	assert.Equal(t, redis.BlockIndexedChannel(storetest.DAI), pub.out[1].channel)
	assert.Equal(t, uint64(102), pub.out[1].event.BlockNumber)
	assert.Equal(t, uint64(103), pub.out[2].event.BlockNumber)

	n, err = w.Tick(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestTickFromEmptyTable(t *testing.T) {
	pub := &fakePublisher{}
	w, store := newWatcher(t, pub)
	ctx := context.Background()
	_, err := w.Tick(ctx)
	require.NoError(t, err)

	require.NoError(t, store.Insert(row(1, "0x9999999999999999999999999999999999999999", "1", 0)))
	n, err := w.Tick(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Empty(t, pub.out[0].event.Symbol)
}

func TestTickRetriesUnannouncedBlock(t *testing.T) {
	pub := &fakePublisher{failAt: 2}
	w, store := newWatcher(t, pub, storetest.Fixture()...)
	ctx := context.Background()
	_, err := w.Tick(ctx)
	require.NoError(t, err)

	require.NoError(t, store.Insert(row(102, storetest.USDT, "1", 24), row(103, storetest.DAI, "1", 36)))

	n, err := w.Tick(ctx)
	require.Error(t, err)
	assert.Equal(t, 1, n)
	head, _ := w.Head()
	assert.Equal(t, uint64(102), head, "block 102 went out before the failure")

	n, err = w.Tick(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	require.Len(t, pub.out, 2)
	assert.Equal(t, uint64(103), pub.out[1].event.BlockNumber)
}

func TestTickResumesPartlyAnnouncedBlock(t *testing.T) {
	pub := &fakePublisher{failAt: 2}
	w, store := newWatcher(t, pub, storetest.Fixture()...)
	ctx := context.Background()
	_, err := w.Tick(ctx)
	require.NoError(t, err)

	require.NoError(t, store.Insert(
		row(102, storetest.USDT, "1", 24),
		row(102, storetest.USDT, "2", 25),
		row(102, storetest.DAI, "3", 26),
	))

	n, err := w.Tick(ctx)
	require.Error(t, err)
	assert.Equal(t, 1, n)
	head, _ := w.Head()
	assert.Equal(t, uint64(101), head)

	n, err = w.Tick(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	head, _ = w.Head()
	assert.Equal(t, uint64(102), head)

	require.Len(t, pub.out, 2)
	assert.Equal(t, storetest.USDT, pub.out[0].event.TokenAddress)
	assert.Equal(t, storetest.DAI, pub.out[1].event.TokenAddress)
}

// slowStore holds BlockAggregates until release is closed.
type slowStore struct {
	*memstore.Store
	entered chan struct{}
	release chan struct{}
}

func (s *slowStore) BlockAggregates(ctx context.Context, q db.BlockQuery) ([]indexer.BlockAggregate, error) {
	close(s.entered)
	<-s.release
	return s.Store.BlockAggregates(ctx, q)
}

func TestHeadDoesNotWaitForTick(t *testing.T) {
	mem := memstore.New()
	require.NoError(t, mem.Insert(storetest.Fixture()...))
	store := &slowStore{Store: mem, entered: make(chan struct{}), release: make(chan struct{})}
	w := New(store, &fakePublisher{}, nil, zaptest.NewLogger(t))
	ctx := context.Background()
	_, err := w.Tick(ctx)
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() {
		_, err := w.Tick(ctx)
		done <- err
	}()
	<-store.entered

	app := &App{Watcher: w}
	ready := make(chan bool, 1)
	go func() { ready <- app.Ready() }()
	select {
	case ok := <-ready:
		assert.True(t, ok)
	case <-time.After(5 * time.Second):
		t.Fatal("Ready blocked behind a running tick")
	}

	close(store.release)
	require.NoError(t, <-done)
}

func TestTickStoreError(t *testing.T) {
	w, store := newWatcher(t, &fakePublisher{}, storetest.Fixture()...)
	require.NoError(t, store.Close())

	_, err := w.Tick(context.Background())
	require.Error(t, err)
	_, ok := w.Head()
	assert.False(t, ok)
}

func TestAppReadiness(t *testing.T) {
	w, store := newWatcher(t, &fakePublisher{}, storetest.Fixture()...)
	app := &App{Store: store, Watcher: w, CronSpec: "*/5 * * * * *", Logger: zaptest.NewLogger(t)}
	app.SetupServer()

	probe := func(path string) int {
		rec := httptest.NewRecorder()
		app.Server.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		return rec.Code
	}
	assert.Equal(t, http.StatusOK, probe("/healthz"))
	assert.Equal(t, http.StatusServiceUnavailable, probe("/readyz"))

	_, err := w.Tick(context.Background())
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, probe("/readyz"))
}

func TestSetupScheduler(t *testing.T) {
	w, store := newWatcher(t, &fakePublisher{})
	logger := newCronLogger(zaptest.NewLogger(t))

	app := &App{Store: store, Watcher: w, CronSpec: "*/5 * * * * *", Logger: zaptest.NewLogger(t)}
	require.NoError(t, app.SetupScheduler(context.Background(), logger))
	assert.Len(t, app.Cron.Entries(), 1)

	bad := &App{Store: store, Watcher: w, CronSpec: "every now and then", Logger: zaptest.NewLogger(t)}
	assert.Error(t, bad.SetupScheduler(context.Background(), logger))
}

func TestPrepareReleasesStoreOnBadSpec(t *testing.T) {
	w, store := newWatcher(t, &fakePublisher{})
	logger := newCronLogger(zaptest.NewLogger(t))

	app := &App{Store: store, Watcher: w, CronSpec: "not a spec", Logger: zaptest.NewLogger(t)}
	require.Error(t, app.prepare(context.Background(), logger))
	assert.Error(t, store.Ping(context.Background()))

	ok := &App{Store: memstore.New(), Watcher: w, CronSpec: "*/5 * * * * *", Logger: zaptest.NewLogger(t)}
	require.NoError(t, ok.prepare(context.Background(), logger))
	assert.NoError(t, ok.Store.Ping(context.Background()))
}

func TestCronLogger(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	l := newCronLogger(zap.New(core))

	l.Info("start", "entries", 1)
	l.Error(errors.New("boom"), "tick failed", "entry", 7)

	entries := logs.All()
	require.Len(t, entries, 2)
	assert.Equal(t, "start", entries[0].Message)
	assert.Equal(t, zap.DebugLevel, entries[0].Level)
	assert.Equal(t, "cron", entries[0].LoggerName)
	assert.Equal(t, zap.ErrorLevel, entries[1].Level)
	assert.Equal(t, "boom", entries[1].ContextMap()["error"])
	assert.Equal(t, int64(7), entries[1].ContextMap()["entry"])
}
