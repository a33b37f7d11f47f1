package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/canopy-network/transferx/pkg/config"
	"github.com/canopy-network/transferx/pkg/retry"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

// Client wraps a PostgreSQL connection pool and provides helper methods
type Client struct {
	Logger    *zap.Logger
	Pool      *pgxpool.Pool
	Database  string
	Component string
}

// New opens a pgx pool for cfg and pings it, retrying with backoff until the
// database answers or the retry budget runs out.
func New(ctx context.Context, logger *zap.Logger, cfg config.DBConfig, component string) (client Client, err error) {
	connCtx, cancel := context.WithTimeout(ctx, 5*time.Minute)
	defer cancel()

	client.Logger = logger
	client.Component = component

	poolCfg, err := pgxpool.ParseConfig(cfg.DSN())
	if err != nil {
		return Client{}, fmt.Errorf("failed to parse postgres dsn: %w", err)
	}
	client.Database = poolCfg.ConnConfig.Database

	poolCfg.MinConns = cfg.MinConns
	poolCfg.MaxConns = cfg.MaxConns
	poolCfg.MaxConnLifetime = cfg.ConnMaxLifetime
	poolCfg.MaxConnIdleTime = cfg.ConnMaxIdleTime

	retryErr := retry.WithBackoff(connCtx, retry.DefaultConfig(), logger, "postgres_connection", func() error {
		pool, openErr := pgxpool.NewWithConfig(connCtx, poolCfg)
		if openErr != nil {
			return fmt.Errorf("failed to create postgres connection pool: %w", openErr)
		}

		logger.Debug("Pinging PostgreSQL connection",
			zap.String("db", client.Database),
			zap.String("component", component),
		)

		if pingErr := pool.Ping(connCtx); pingErr != nil {
			pool.Close()
			pingErr = fmt.Errorf("failed to ping postgres: %w", pingErr)
			if isFatalConnectError(pingErr) {
				return retry.Permanent(pingErr)
			}
			return pingErr
		}
		client.Pool = pool

		logger.Info("PostgreSQL connection pool configured",
			zap.String("database", client.Database),
			zap.String("component", component),
			zap.Int32("min_conns", cfg.MinConns),
			zap.Int32("max_conns", cfg.MaxConns),
			zap.Duration("conn_max_lifetime", cfg.ConnMaxLifetime),
			zap.Duration("conn_max_idle_time", cfg.ConnMaxIdleTime),
		)
		return nil
	})
	if retryErr != nil {
		return Client{}, retryErr
	}

	return client, nil
}

// Exec executes a query without returning any rows
func (c *Client) Exec(ctx context.Context, query string, args ...any) error {
	_, err := c.Pool.Exec(ctx, query, args...)
	return err
}

// Query executes a query that returns rows
// IMPORTANT: Caller MUST call rows.Close() when done to release the connection
func (c *Client) Query(ctx context.Context, query string, args ...any) (pgx.Rows, error) {
	return c.Pool.Query(ctx, query, args...)
}

// QueryRow executes a query that is expected to return at most one row
func (c *Client) QueryRow(ctx context.Context, query string, args ...any) pgx.Row {
	return c.Pool.QueryRow(ctx, query, args...)
}

// BeginFunc executes fn within a transaction, rolling back if it returns an error.
func (c *Client) BeginFunc(ctx context.Context, fn func(pgx.Tx) error) error {
	return pgx.BeginFunc(ctx, c.Pool, fn)
}

func (c *Client) Ping(ctx context.Context) error {
	return c.Pool.Ping(ctx)
}

// Close closes the connection pool
func (c *Client) Close() error {
	c.Pool.Close()
	return nil
}

// TableExists checks if a table exists in the public schema
func (c *Client) TableExists(ctx context.Context, table string) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1 FROM information_schema.tables
			WHERE table_schema = 'public'
			AND table_name = $1
		)
	`

	var exists bool
	if err := c.Pool.QueryRow(ctx, query, table).Scan(&exists); err != nil {
		return false, fmt.Errorf("check if table exists %s: %w", table, err)
	}
	return exists, nil
}

// isFatalConnectError reports errors that retrying cannot fix: bad
// credentials and a missing database.
func isFatalConnectError(err error) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	switch pgErr.Code {
	case "28P01", "28000", "3D000":
		return true
	}
	return false
}

// IsNoRows checks if the error is a "no rows" error
func IsNoRows(err error) bool {
	return errors.Is(err, pgx.ErrNoRows)
}
