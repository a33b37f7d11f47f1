package types

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/alitto/pond/v2"
	"github.com/canopy-network/transferx/pkg/cache"
	"github.com/canopy-network/transferx/pkg/config"
	"github.com/canopy-network/transferx/pkg/db"
	"github.com/canopy-network/transferx/pkg/redis"
	"github.com/canopy-network/transferx/pkg/stats"
	"go.uber.org/zap"
)

type App struct {
	Config   config.ServerConfig
	Store    db.TransferStore
	Services *stats.Services
	// Pool runs the composite endpoints' concurrent sub-queries.
	Pool pond.Pool
	// Cache holds composite responses for Config.CacheTTL. Nil disables it.
	Cache cache.Cache
	// RedisClient feeds the WebSocket endpoint. Nil when Redis is disabled.
	RedisClient *redis.Client
	// Zap Logger
	Logger *zap.Logger
	// Server represents the HTTP server instance used to handle incoming client requests and manage HTTP routes.
	Server *http.Server
}

// Start serves until ctx is cancelled, then shuts the server down and
// releases the store, pool and Redis client.
func (a *App) Start(ctx context.Context) {
	go func() {
		if err := a.Server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.Logger.Error("HTTP server stopped", zap.Error(err))
		}
	}()
	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := a.Server.Shutdown(shutdownCtx); err != nil {
		a.Logger.Error("Failed to shut down HTTP server", zap.Error(err))
	}

	if a.Pool != nil {
		a.Pool.StopAndWait()
	}

	if err := a.Store.Close(); err != nil {
		a.Logger.Error("Failed to close database connection", zap.Error(err))
	}

	if a.RedisClient != nil {
		if err := a.RedisClient.Close(); err != nil {
			a.Logger.Error("Failed to close Redis connection", zap.Error(err))
		}
	}

	a.Logger.Info("さようなら!")
}
