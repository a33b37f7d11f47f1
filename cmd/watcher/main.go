package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/canopy-network/transferx/app/watcher"
	"go.uber.org/zap"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	app, err := watcher.Initialize(ctx)
	if err != nil {
		panic(err)
	}

	// Record the head before the first tick
	if _, err := app.Watcher.Tick(ctx); err != nil {
		app.Logger.Warn("Initial head check failed, cron will retry", zap.Error(err))
	}

	app.StartCron()
	app.SetupServer()
	app.Start(ctx)
}
