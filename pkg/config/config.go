package config

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"github.com/sethvargo/go-envconfig"
)

type Config struct {
	Database DBConfig
	Server   ServerConfig
	Redis    RedisConfig
	Stats    StatsConfig
	Watcher  WatcherConfig
	Migrate  MigrateConfig
}

type DBConfig struct {
	// URL overrides every other field when set
	URL      string `env:"POSTGRES_URL"`
	Name     string `env:"DB_NAME,default=root"`
	User     string `env:"DB_USER,default=root"`
	Password string `env:"DB_PASSWORD,default=password"`
	Host     string `env:"DB_HOST,default=localhost"`
	Port     uint16 `env:"DB_PORT,default=5432"`
	SSL      bool   `env:"DB_SSL,default=false"`

	MinConns        int32         `env:"POSTGRES_MIN_CONNS,default=2"`
	MaxConns        int32         `env:"POSTGRES_MAX_CONNS,default=20"`
	ConnMaxLifetime time.Duration `env:"POSTGRES_CONN_MAX_LIFETIME,default=1h"`
	ConnMaxIdleTime time.Duration `env:"POSTGRES_CONN_MAX_IDLE_TIME,default=30m"`
}

type ServerConfig struct {
	Addr         string        `env:"ADDR,default=:3000"`
	QueryTimeout time.Duration `env:"QUERY_TIMEOUT,default=10s"`
	CacheTTL     time.Duration `env:"CACHE_TTL,default=10s"`
}

type RedisConfig struct {
	Enabled  bool   `env:"REDIS_ENABLED,default=false"`
	Host     string `env:"REDIS_HOST,default=localhost"`
	Port     uint16 `env:"REDIS_PORT,default=6379"`
	Password string `env:"REDIS_PASSWORD"`
	DB       int    `env:"REDIS_DB,default=0"`
}

type StatsConfig struct {
	// Synthetic block/gas fields are emitted (and flagged) only when enabled
	SyntheticFields bool `env:"SYNTHETIC_FIELDS,default=true"`
	// address:symbol pairs merged over the built-in registry
	TokenSymbols   map[string]string `env:"TOKEN_SYMBOLS"`
	WorkerPoolSize int               `env:"WORKER_POOL_SIZE,default=16"`
}

type WatcherConfig struct {
	CronSpec string `env:"WATCHER_CRON,default=*/5 * * * * *"`
	// Addr serves the watcher's health probes
	Addr string `env:"WATCHER_ADDR,default=:3002"`
}

type MigrateConfig struct {
	Direction string `env:"MIGRATE_DIRECTION,default=up"`
}

// DSN renders the pgx connection string. DB_SSL selects sslmode=require.
func (dbc DBConfig) DSN() string {
	if dbc.URL != "" {
		return dbc.URL
	}

	sslMode := "disable"
	if dbc.SSL {
		sslMode = "require"
	}

	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(dbc.User, dbc.Password),
		Host:   dbc.Host + ":" + strconv.Itoa(int(dbc.Port)),
		Path:   "/" + dbc.Name,
	}
	q := url.Values{}
	q.Set("sslmode", sslMode)
	q.Set("connect_timeout", "5")
	u.RawQuery = q.Encode()
	return u.String()
}

// String hides the password so the config can be logged.
func (dbc DBConfig) String() string {
	return fmt.Sprintf("postgres://%s@%s:%d/%s (ssl=%t)", dbc.User, dbc.Host, dbc.Port, dbc.Name, dbc.SSL)
}

func (rc RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", rc.Host, rc.Port)
}

func New(ctx context.Context) (*Config, error) {
	return load(ctx, envconfig.OsLookuper())
}

func load(ctx context.Context, lookuper envconfig.Lookuper) (*Config, error) {
	var cfg Config
	if err := envconfig.ProcessWith(ctx, &envconfig.Config{Target: &cfg, Lookuper: lookuper}); err != nil {
		return nil, fmt.Errorf("error loading config: %w", err)
	}
	if cfg.Stats.WorkerPoolSize <= 0 {
		return nil, fmt.Errorf("error loading config: WORKER_POOL_SIZE must be positive")
	}
	switch cfg.Migrate.Direction {
	case "up", "down":
	default:
		return nil, fmt.Errorf("error loading config: MIGRATE_DIRECTION must be up or down, got %q", cfg.Migrate.Direction)
	}
	return &cfg, nil
}
