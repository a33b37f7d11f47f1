package transfers

import (
	"context"
	"fmt"
	"time"

	"github.com/canopy-network/transferx/pkg/db/models/indexer"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"
)

const (
	tableName           = indexer.TransferEventsTableName
	migrationsTableName = "schema_migrations"
)

// Migration is one reversible schema step, identified by a sortable version.
type Migration struct {
	Version string
	Up      string
	Down    string
}

// Migrations is ordered oldest first.
var Migrations = []Migration{
	{
		Version: "20250601000000-create-transfer-events",
		Up: `
			CREATE TABLE IF NOT EXISTS transfer_events (
				id SERIAL PRIMARY KEY,
				"from" TEXT,
				"to" TEXT,
				value TEXT,
				"tokenAddress" TEXT,
				"blockNumber" BIGINT,
				timestamp TIMESTAMP WITH TIME ZONE,
				"createdAt" TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
				"updatedAt" TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
			);

			CREATE INDEX IF NOT EXISTS transfer_events_from ON transfer_events("from");
			CREATE INDEX IF NOT EXISTS transfer_events_to ON transfer_events("to");
			CREATE INDEX IF NOT EXISTS transfer_events_token_address ON transfer_events("tokenAddress");
			CREATE INDEX IF NOT EXISTS transfer_events_block_number ON transfer_events("blockNumber");
			CREATE INDEX IF NOT EXISTS transfer_events_timestamp ON transfer_events(timestamp);
		`,
		Down: `DROP TABLE IF EXISTS transfer_events;`,
	},
	{
		Version: "20250713183446-add-transaction-hash-to-transfer-events",
		Up: `
			ALTER TABLE transfer_events ADD COLUMN IF NOT EXISTS "transactionHash" TEXT NULL;
			CREATE INDEX IF NOT EXISTS transfer_events_transaction_hash ON transfer_events("transactionHash");
		`,
		Down: `
			DROP INDEX IF EXISTS transfer_events_transaction_hash;
			ALTER TABLE transfer_events DROP COLUMN IF EXISTS "transactionHash";
		`,
	},
}

func (db *DB) initMigrations(ctx context.Context) error {
	query := `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version TEXT PRIMARY KEY,
			applied_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
		);
	`
	return db.Exec(ctx, query)
}

// AppliedMigrations returns the applied versions, oldest first.
func (db *DB) AppliedMigrations(ctx context.Context) ([]string, error) {
	if err := db.initMigrations(ctx); err != nil {
		return nil, fmt.Errorf("init %s: %w", migrationsTableName, err)
	}
	rows, err := db.Query(ctx, `SELECT version FROM schema_migrations ORDER BY version`)
	if err != nil {
		return nil, fmt.Errorf("failed to list migrations: %w", err)
	}
	versions, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("failed to scan migrations: %w", err)
	}
	return versions, nil
}

// MigrateUp applies every pending migration, each in its own transaction.
func (db *DB) MigrateUp(ctx context.Context) (int, error) {
	applied, err := db.AppliedMigrations(ctx)
	if err != nil {
		return 0, err
	}
	done := make(map[string]bool, len(applied))
	for _, v := range applied {
		done[v] = true
	}

	count := 0
	for _, m := range Migrations {
		if done[m.Version] {
			continue
		}
		start := time.Now()
		err := db.BeginFunc(ctx, func(tx pgx.Tx) error {
			if _, err := tx.Exec(ctx, m.Up); err != nil {
				return err
			}
			_, err := tx.Exec(ctx, `INSERT INTO schema_migrations (version) VALUES ($1)`, m.Version)
			return err
		})
		if err != nil {
			return count, fmt.Errorf("migration %s up: %w", m.Version, err)
		}
		db.Logger.Info("Applied migration",
			zap.String("version", m.Version),
			zap.Duration("duration", time.Since(start)))
		count++
	}
	return count, nil
}

// MigrateDown reverts the most recently applied migration. It returns an
// empty version when nothing is applied.
func (db *DB) MigrateDown(ctx context.Context) (string, error) {
	applied, err := db.AppliedMigrations(ctx)
	if err != nil {
		return "", err
	}
	if len(applied) == 0 {
		return "", nil
	}
	last := applied[len(applied)-1]

	var m *Migration
	for i := range Migrations {
		if Migrations[i].Version == last {
			m = &Migrations[i]
			break
		}
	}
	if m == nil {
		return "", fmt.Errorf("migration %s is applied but unknown to this binary", last)
	}

	err = db.BeginFunc(ctx, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, m.Down); err != nil {
			return err
		}
		_, err := tx.Exec(ctx, `DELETE FROM schema_migrations WHERE version = $1`, m.Version)
		return err
	})
	if err != nil {
		return "", fmt.Errorf("migration %s down: %w", m.Version, err)
	}
	db.Logger.Info("Reverted migration", zap.String("version", m.Version))
	return m.Version, nil
}
