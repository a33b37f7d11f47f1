// Package stats shapes transfer_events aggregates into the views served by
// the API: transfer listings, block summaries, explorer and analytics.
package stats

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/alitto/pond/v2"
	"github.com/canopy-network/transferx/pkg/db"
	"github.com/canopy-network/transferx/pkg/tokens"
)

var (
	// ErrInvalidQuery marks caller input the services refuse to run.
	ErrInvalidQuery = errors.New("invalid query")
	// ErrBlockNotFound is returned for a block number with no transfer rows.
	ErrBlockNotFound = errors.New("block not found")
)

// MaxLimit caps every listing.
const MaxLimit = 1000

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidQuery, fmt.Sprintf(format, args...))
}

// Options configures the services. Zero values pick defaults.
type Options struct {
	// Synthetic enables placeholder block and gas fields. Every value filled
	// this way is named in the carrying object's synthetic list.
	Synthetic bool
	Tokens    *tokens.Registry
	// Pool runs the independent queries of composite views. Tasks must not
	// submit to the pool themselves.
	Pool pond.Pool
	Now  func() time.Time
}

type base struct {
	store     db.TransferStore
	synthetic bool
	tokens    *tokens.Registry
	pool      pond.Pool
	now       func() time.Time
}

// Services bundles the four views over one store.
type Services struct {
	Transfers *TransferService
	Blocks    *BlocksService
	Explorer  *ExplorerService
	Analytics *AnalyticsService
}

func New(store db.TransferStore, opts Options) *Services {
	b := &base{
		store:     store,
		synthetic: opts.Synthetic,
		tokens:    opts.Tokens,
		pool:      opts.Pool,
		now:       opts.Now,
	}
	if b.tokens == nil {
		b.tokens = tokens.Default()
	}
	if b.pool == nil {
		b.pool = pond.NewPool(8)
	}
	if b.now == nil {
		b.now = time.Now
	}

	return &Services{
		Transfers: &TransferService{b},
		Blocks:    &BlocksService{b},
		Explorer:  &ExplorerService{b},
		Analytics: &AnalyticsService{b},
	}
}

// fanOut runs tasks concurrently on the shared pool. The first failure
// cancels the context handed to the remaining tasks and is returned.
func (b *base) fanOut(ctx context.Context, tasks ...func(context.Context) error) error {
	group := b.pool.NewGroupContext(ctx)
	groupCtx := group.Context()

	for _, task := range tasks {
		group.SubmitErr(func() error {
			if err := groupCtx.Err(); err != nil {
				return err
			}
			return task(groupCtx)
		})
	}
	if err := group.Wait(); err != nil {
		return err
	}
	return ctx.Err()
}

// ListOptions slices and orders a transfer listing.
type ListOptions struct {
	Limit    int
	Offset   int
	SortBy   string
	SortDesc bool
}

// DefaultListOptions is newest first, limit 100.
func DefaultListOptions() ListOptions {
	return ListOptions{Limit: 100, SortBy: "timestamp", SortDesc: true}
}

func (o ListOptions) page() (db.Page, error) {
	if o.Limit < 1 || o.Limit > MaxLimit {
		return db.Page{}, invalid("limit must be between 1 and %d", MaxLimit)
	}
	if o.Offset < 0 {
		return db.Page{}, invalid("offset must not be negative")
	}
	if o.SortBy == "" {
		o.SortBy = "timestamp"
	}
	if !db.ValidSort(o.SortBy) {
		return db.Page{}, fmt.Errorf("%w: %w: %q", ErrInvalidQuery, db.ErrInvalidSort, o.SortBy)
	}
	return db.Page{Limit: o.Limit, Offset: o.Offset, SortBy: o.SortBy, SortDesc: o.SortDesc}, nil
}

func checkLimit(limit int) error {
	if limit < 1 || limit > MaxLimit {
		return invalid("limit must be between 1 and %d", MaxLimit)
	}
	return nil
}
