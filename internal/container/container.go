// Package container wires the service with samber/do. Each XxxPackage function
// registers the providers for one concern.
package container

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jaevor/go-nanoid"
	"github.com/redis/go-redis/v9"
	"github.com/samber/do"
	"github.com/serroba/linktrail/internal/accounting"
	"github.com/serroba/linktrail/internal/analytics"
	"github.com/serroba/linktrail/internal/shortener"
	"github.com/serroba/linktrail/internal/store"
	"go.uber.org/zap"
)

const (
	BackendMemory   = "memory"
	BackendPostgres = "postgres"
	BackendRedis    = "redis"
)

type Options struct {
	Port               int    `default:"8888"                                     help:"Port to listen on"                                  short:"p"`
	BaseURL            string `default:""                                         help:"Public base URL of short links (default http://localhost:<port>)"`
	CodeLength         int    `default:"8"                                        help:"Length of generated short codes"                    short:"c"`
	CodeAttempts       int    `default:"5"                                        help:"Attempts to find a free generated code"`
	DedupWindowSeconds int    `default:"30"                                       help:"Visit deduplication window in seconds (0 disables)"`
	Store              string `default:"memory"                                   help:"Link store backend: memory or postgres"`
	DatabaseURL        string `default:"postgres://localhost:5432/linktrail"      help:"PostgreSQL connection string"`
	RedisAddr          string `default:"localhost:6379"                           help:"Redis server address"                               short:"r"`
	CacheTTLSeconds    int    `default:"300"                                      help:"Redis link cache TTL in seconds (0 disables)"`
	RateLimitStore     string `default:"memory"                                   help:"Rate limit backend: memory or redis"`
	Events             string `default:"redis"                                    help:"Event transport: redis or memory"`
	JWTSecret          string `default:""                                         help:"HS256 secret for owner tokens (required)"`
	LogFormat          string `default:"console"                                  help:"Log format: console or json"`
}

// PublicBaseURL returns the configured base URL or the local default.
func (o *Options) PublicBaseURL() string {
	if o.BaseURL != "" {
		return o.BaseURL
	}

	return fmt.Sprintf("http://localhost:%d", o.Port)
}

// Backend is everything a link store provides: links, atomic visit accounting
// and visit listing.
type Backend interface {
	shortener.Repository
	accounting.Store
	analytics.VisitStore
}

// RedisClient owns the shared Redis connection.
type RedisClient struct {
	*redis.Client
}

func (c *RedisClient) Shutdown() error {
	return c.Close()
}

// PostgresPool owns the shared PostgreSQL pool.
type PostgresPool struct {
	*pgxpool.Pool
}

func (p *PostgresPool) Shutdown() error {
	p.Close()

	return nil
}

// LoggerPackage provides the zap logger.
func LoggerPackage(i *do.Injector) {
	do.Provide(i, func(i *do.Injector) (*zap.Logger, error) {
		opts := do.MustInvoke[*Options](i)

		if opts.LogFormat == "json" {
			return zap.NewProduction()
		}

		return zap.NewDevelopment()
	})
}

// RedisPackage provides the Redis client.
func RedisPackage(i *do.Injector) {
	do.Provide(i, func(i *do.Injector) (*RedisClient, error) {
		opts := do.MustInvoke[*Options](i)

		return &RedisClient{Client: redis.NewClient(&redis.Options{Addr: opts.RedisAddr})}, nil
	})
}

// PostgresPackage provides the PostgreSQL pool. The pool is only opened when
// something invokes it.
func PostgresPackage(i *do.Injector) {
	do.Provide(i, func(i *do.Injector) (*PostgresPool, error) {
		opts := do.MustInvoke[*Options](i)

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		pool, err := pgxpool.New(ctx, opts.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("connect postgres: %w", err)
		}

		return &PostgresPool{Pool: pool}, nil
	})
}

// RepositoryPackage provides the storage backend and the link repository,
// fronted by the Redis cache when a TTL is configured.
func RepositoryPackage(i *do.Injector) {
	do.Provide(i, func(i *do.Injector) (Backend, error) {
		opts := do.MustInvoke[*Options](i)

		switch opts.Store {
		case BackendMemory:
			return store.NewMemoryStore(), nil
		case BackendPostgres:
			pool := do.MustInvoke[*PostgresPool](i)

			return store.NewPostgresStore(pool.Pool), nil
		default:
			return nil, fmt.Errorf("unknown store backend %q", opts.Store)
		}
	})

	do.Provide(i, func(i *do.Injector) (shortener.Repository, error) {
		opts := do.MustInvoke[*Options](i)
		backend := do.MustInvoke[Backend](i)

		if opts.CacheTTLSeconds <= 0 {
			return backend, nil
		}

		client := do.MustInvoke[*RedisClient](i)

		return store.NewRedisCacheRepository(backend, client.Client,
			time.Duration(opts.CacheTTLSeconds)*time.Second), nil
	})
}

// ServicePackage provides the registry, the accounting engine and the read model.
func ServicePackage(i *do.Injector) {
	do.Provide(i, func(i *do.Injector) (*shortener.Registry, error) {
		opts := do.MustInvoke[*Options](i)

		generator, err := nanoid.Standard(opts.CodeLength)
		if err != nil {
			return nil, fmt.Errorf("code generator: %w", err)
		}

		return shortener.NewRegistry(do.MustInvoke[shortener.Repository](i), generator, opts.CodeAttempts), nil
	})

	do.Provide(i, func(i *do.Injector) (*accounting.Engine, error) {
		opts := do.MustInvoke[*Options](i)

		return accounting.NewEngine(
			do.MustInvoke[*shortener.Registry](i),
			do.MustInvoke[Backend](i),
			time.Duration(opts.DedupWindowSeconds)*time.Second,
			do.MustInvoke[*zap.Logger](i),
		), nil
	})

	do.Provide(i, func(i *do.Injector) (*analytics.ReadModel, error) {
		backend := do.MustInvoke[Backend](i)

		return analytics.NewReadModel(backend, backend), nil
	})
}
