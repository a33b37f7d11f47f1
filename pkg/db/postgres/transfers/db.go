package transfers

import (
	"context"
	"fmt"
	"time"

	"github.com/canopy-network/transferx/pkg/config"
	"github.com/canopy-network/transferx/pkg/db"
	"github.com/canopy-network/transferx/pkg/db/postgres"
	"go.uber.org/zap"
)

var _ db.TransferStore = (*DB)(nil)

// DB is the Postgres-backed TransferStore.
type DB struct {
	postgres.Client
}

// New connects to the database described by cfg. It does not touch the schema;
// run Migrate (cmd/migrate) for that.
func New(ctx context.Context, logger *zap.Logger, cfg config.DBConfig, component string) (*DB, error) {
	client, err := postgres.New(ctx, logger.With(zap.String("component", component)), cfg, component)
	if err != nil {
		return nil, err
	}
	return &DB{Client: client}, nil
}

// EnsureSchema checks the transfer table is present so the API fails fast
// against an empty database instead of on the first request.
func (db *DB) EnsureSchema(ctx context.Context) error {
	start := time.Now()
	exists, err := db.TableExists(ctx, tableName)
	if err != nil {
		return err
	}
	if !exists {
		return fmt.Errorf("table %s does not exist, run migrations first", tableName)
	}
	db.Logger.Info("Transfer schema verified",
		zap.String("database", db.Database),
		zap.Duration("duration", time.Since(start)))
	return nil
}
