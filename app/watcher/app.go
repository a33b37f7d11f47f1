package watcher

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/canopy-network/transferx/pkg/config"
	"github.com/canopy-network/transferx/pkg/db"
	"github.com/canopy-network/transferx/pkg/db/postgres/transfers"
	"github.com/canopy-network/transferx/pkg/logging"
	"github.com/canopy-network/transferx/pkg/redis"
	"github.com/canopy-network/transferx/pkg/tokens"
	"github.com/gorilla/mux"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// App polls the transfer table on every Cron tick and publishes new blocks
// to Redis for the query API's WebSocket clients.
type App struct {
	Store       db.TransferStore
	RedisClient *redis.Client
	Watcher     *Watcher

	// Cron is the scheduler that triggers head checks at specified intervals, according to CronSpec.
	Cron     *cron.Cron
	CronSpec string
	Addr     string

	// Logger is used to log messages, errors, and events during the application's lifecycle and operations.
	Logger *zap.Logger

	// Server serves the health probes.
	Server *http.Server
}

// Initialize initializes the App. Redis is required here: without it there
// is nobody to publish to.
func Initialize(ctx context.Context) (*App, error) {
	logger, err := logging.New()
	if err != nil {
		// nothing else to do here, we'll just log to stderr'
		panic(err)
	}

	cfg, err := config.New(ctx)
	if err != nil {
		return nil, err
	}

	registry, err := tokens.NewRegistry(cfg.Stats.TokenSymbols)
	if err != nil {
		return nil, err
	}

	store, err := transfers.New(ctx, logger, cfg.Database, "watcher")
	if err != nil {
		return nil, err
	}

	redisClient, err := redis.NewClient(ctx, logger, cfg.Redis)
	if err != nil {
		_ = store.Close()
		return nil, err
	}

	app := &App{
		Store:       store,
		RedisClient: redisClient,
		Watcher:     New(store, redisClient, registry, logger),
		CronSpec:    cfg.Watcher.CronSpec,
		Addr:        cfg.Watcher.Addr,
		Logger:      logger,
	}

	if err := app.prepare(ctx, newCronLogger(logger)); err != nil {
		return nil, err
	}

	return app, nil
}

// prepare sets up the scheduler, releasing the store and Redis if it fails.
func (a *App) prepare(ctx context.Context, logger cron.Logger) error {
	if err := a.SetupScheduler(ctx, logger); err != nil {
		a.StopCron()
		return err
	}
	return nil
}

// SetupServer sets up the HTTP server.
func (a *App) SetupServer() {
	r := mux.NewRouter()

	r.Handle("/healthz", http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(200) })).Methods("GET")
	r.Handle("/readyz", http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if a.Ready() {
			w.WriteHeader(200)
		} else {
			w.WriteHeader(503)
		}
	})).Methods("GET")

	a.Server = &http.Server{Addr: a.Addr, Handler: r}
}

// SetupScheduler sets up the cron scheduler. Overlapping ticks are skipped.
func (a *App) SetupScheduler(ctx context.Context, logger cron.Logger) error {
	// Seconds field, optional
	a.Cron = cron.New(cron.WithSeconds(), cron.WithLogger(logger), cron.WithChain(cron.Recover(logger), cron.SkipIfStillRunning(logger)))

	_, err := a.Cron.AddFunc(a.CronSpec, func() {
		// keep each run bounded
		rctx, cancel := context.WithTimeout(ctx, 25*time.Second)
		defer cancel()
		if _, err := a.Watcher.Tick(rctx); err != nil {
			logger.Error(err, "[watcher] tick failed")
		}
	})
	return err
}

// StartCron starts the cron scheduler.
func (a *App) StartCron() {
	a.Cron.Start()
	a.Logger.Info("[watcher] Cron started", zap.String("cronSpec", a.CronSpec))
}

// StopCron waits for a running tick, then releases the store and Redis.
func (a *App) StopCron() {
	if a.Cron != nil {
		<-a.Cron.Stop().Done()
	}
	if err := a.Store.Close(); err != nil {
		a.Logger.Error("Failed to close database connection", zap.Error(err))
	}
	if a.RedisClient != nil {
		if err := a.RedisClient.Close(); err != nil {
			a.Logger.Error("Failed to close Redis connection", zap.Error(err))
		}
	}
}

// Ready reports whether the head has been recorded.
func (a *App) Ready() bool {
	_, ok := a.Watcher.Head()
	return ok
}

// Start starts the application.
func (a *App) Start(ctx context.Context) {
	go func() {
		if err := a.Server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.Logger.Error("Health server stopped", zap.Error(err))
		}
	}()
	<-ctx.Done()
	_ = a.Server.Close()
	a.Logger.Info("[watcher] shutting down…")
	a.StopCron()
	a.Logger.Info("さようなら!")
}
