package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/canopy-network/transferx/pkg/config"
	"github.com/canopy-network/transferx/pkg/db/postgres/transfers"
	"github.com/canopy-network/transferx/pkg/logging"
	"go.uber.org/zap"
)

// migrate applies (MIGRATE_DIRECTION=up) or reverts one (down) schema migration.
func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	logger, err := logging.New()
	if err != nil {
		panic(err)
	}
	defer func() { _ = logger.Sync() }()

	cfg, err := config.New(ctx)
	if err != nil {
		logger.Fatal("Unable to load config", zap.Error(err))
	}

	store, err := transfers.New(ctx, logger, cfg.Database, "migrate")
	if err != nil {
		logger.Fatal("Unable to connect to database", zap.Error(err))
	}
	defer func() { _ = store.Close() }()

	switch cfg.Migrate.Direction {
	case "down":
		version, err := store.MigrateDown(ctx)
		if err != nil {
			logger.Fatal("Migration down failed", zap.Error(err))
		}
		if version == "" {
			logger.Info("Nothing to revert")
			return
		}
		logger.Info("Reverted migration", zap.String("version", version))
	default:
		n, err := store.MigrateUp(ctx)
		if err != nil {
			logger.Fatal("Migration up failed", zap.Error(err))
		}
		logger.Info("Schema up to date", zap.Int("applied", n))
	}
}
