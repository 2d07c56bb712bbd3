package store

import (
	"context"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"resumetailor-hq/tailor/pkg/quota"
)

// Config selects and configures a backend.
type Config struct {
	// Backend is one of "memory", "sqlite", "postgres", "redis", "dynamodb".
	Backend string

	SQLite   SQLiteConfig
	Postgres PostgresConfig
	Redis    RedisConfig
	DynamoDB DynamoConfig
}

// PostgresConfig configures the PostgreSQL backend.
type PostgresConfig struct {
	DSN   string
	Table string
}

// RedisConfig configures the Redis backend.
type RedisConfig struct {
	Addr        string
	Password    string
	DB          int
	KeyPrefix   string
	DialTimeout time.Duration
}

// DynamoConfig configures the DynamoDB backend.
type DynamoConfig struct {
	Table string

	// Client is the DynamoDB client, built by the caller from the shared
	// AWS configuration.
	Client DynamoAPI
}

// New builds the configured backend.
func New(ctx context.Context, cfg Config) (quota.Store, error) {
	switch cfg.Backend {
	case "", "memory":
		return NewMemoryStore(), nil

	case "sqlite":
		return NewSQLiteStore(cfg.SQLite)

	case "postgres":
		if cfg.Postgres.DSN == "" {
			return nil, fmt.Errorf("postgres backend requires a dsn")
		}
		var opts []PostgresOption
		if cfg.Postgres.Table != "" {
			opts = append(opts, WithTable(cfg.Postgres.Table))
		}
		return ConnectPostgres(ctx, cfg.Postgres.DSN, opts...)

	case "redis":
		if cfg.Redis.Addr == "" {
			return nil, fmt.Errorf("redis backend requires an address")
		}
		client := goredis.NewClient(&goredis.Options{
			Addr:        cfg.Redis.Addr,
			Password:    cfg.Redis.Password,
			DB:          cfg.Redis.DB,
			DialTimeout: cfg.Redis.DialTimeout,
		})
		var opts []RedisOption
		if cfg.Redis.KeyPrefix != "" {
			opts = append(opts, WithKeyPrefix(cfg.Redis.KeyPrefix))
		}
		return NewRedisStore(client, opts...), nil

	case "dynamodb":
		if cfg.DynamoDB.Client == nil {
			return nil, fmt.Errorf("dynamodb backend requires a client")
		}
		return NewDynamoStore(cfg.DynamoDB.Client, cfg.DynamoDB.Table), nil

	default:
		return nil, fmt.Errorf("unknown quota backend %q", cfg.Backend)
	}
}
