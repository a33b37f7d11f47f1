package query

import (
	"context"

	"github.com/alitto/pond/v2"
	"github.com/canopy-network/transferx/app/query/types"
	"github.com/canopy-network/transferx/pkg/cache"
	"github.com/canopy-network/transferx/pkg/config"
	"github.com/canopy-network/transferx/pkg/db/postgres/transfers"
	"github.com/canopy-network/transferx/pkg/logging"
	"github.com/canopy-network/transferx/pkg/redis"
	"github.com/canopy-network/transferx/pkg/stats"
	"github.com/canopy-network/transferx/pkg/tokens"
	"go.uber.org/zap"
)

// Initialize initializes the application.
func Initialize(ctx context.Context) *types.App {
	logger, err := logging.New()
	if err != nil {
		// nothing else to do here, we'll just log to stderr'
		panic(err)
	}

	cfg, err := config.New(ctx)
	if err != nil {
		logger.Fatal("Unable to load configuration", zap.Error(err))
	}

	store, err := transfers.New(ctx, logger, cfg.Database, "query")
	if err != nil {
		logger.Fatal("Unable to connect to the transfers database", zap.Error(err), zap.Stringer("db", cfg.Database))
	}
	if err := store.EnsureSchema(ctx); err != nil {
		logger.Fatal("Transfers schema is missing, run cmd/migrate first", zap.Error(err))
	}

	registry, err := tokens.NewRegistry(cfg.Stats.TokenSymbols)
	if err != nil {
		logger.Fatal("Invalid TOKEN_SYMBOLS", zap.Error(err))
	}

	pool := pond.NewPool(cfg.Stats.WorkerPoolSize)
	services := stats.New(store, stats.Options{
		Synthetic: cfg.Stats.SyntheticFields,
		Tokens:    registry,
		Pool:      pool,
	})

	// Redis backs the WebSocket feed and the shared response cache (optional)
	var redisClient *redis.Client
	var responseCache cache.Cache = cache.NewMemory()
	if cfg.Redis.Enabled {
		redisClient, err = redis.NewClient(ctx, logger, cfg.Redis)
		if err != nil {
			logger.Warn("Failed to initialize Redis client - WebSocket real-time events will be disabled",
				zap.Error(err))
			redisClient = nil
		} else {
			responseCache = cache.NewRedis(redisClient)
			logger.Info("Redis client initialized for WebSocket events and response cache")
		}
	} else {
		logger.Info("Redis disabled - WebSocket real-time events will not be available")
	}

	return &types.App{
		Config:      cfg.Server,
		Store:       store,
		Services:    services,
		Pool:        pool,
		Cache:       responseCache,
		RedisClient: redisClient,
		Logger:      logger,
	}
}
