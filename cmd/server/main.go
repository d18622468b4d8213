package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/humacli"
	"github.com/go-chi/chi/v5"
	"github.com/joho/godotenv"
	"github.com/samber/do"
	"github.com/serroba/linktrail/internal/container"
	"github.com/serroba/linktrail/internal/messaging"
	"github.com/serroba/linktrail/internal/middleware"
	"github.com/serroba/linktrail/internal/store"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

const (
	shutdownGrace = 30 * time.Second
	tokenLifetime = 30 * 24 * time.Hour
)

func newInjector(options *container.Options) *do.Injector {
	injector := do.New()
	do.ProvideValue(injector, options)

	for _, register := range []func(*do.Injector){
		container.LoggerPackage,
		container.RedisPackage,
		container.PostgresPackage,
		container.RepositoryPackage,
		container.ServicePackage,
		container.MetricsPackage,
		container.RateLimitPackage,
		container.PublisherGroupPackage,
		container.ConsumerGroupPackage,
		container.HTTPPackage,
	} {
		register(injector)
	}

	return injector
}

func main() {
	_ = godotenv.Load()

	cli := humacli.New(func(hooks humacli.Hooks, options *container.Options) {
		injector := newInjector(options)
		logger := do.MustInvoke[*zap.Logger](injector)
		consumers, stopConsumers := context.WithCancel(context.Background())

		var server *http.Server

		hooks.OnStart(func() {
			// resolving the API registers every route on the router
			if _, err := do.Invoke[huma.API](injector); err != nil {
				logger.Fatal("http api not ready", zap.Error(err))
			}

			if options.Events == container.BackendMemory {
				if err := do.MustInvoke[*messaging.ConsumerGroup](injector).Start(consumers); err != nil {
					logger.Fatal("in-process consumers did not start", zap.Error(err))
				}
			}

			server = &http.Server{
				Addr:              fmt.Sprintf(":%d", options.Port),
				Handler:           do.MustInvoke[*chi.Mux](injector),
				ReadHeaderTimeout: 10 * time.Second,
			}

			logger.Info("listening",
				zap.Int("port", options.Port),
				zap.String("store", options.Store),
				zap.String("events", options.Events),
				zap.String("base_url", options.PublicBaseURL()),
			)

			if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Fatal("server failed", zap.Error(err))
			}
		})

		hooks.OnStop(func() {
			ctx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
			defer cancel()

			if server != nil {
				if err := server.Shutdown(ctx); err != nil {
					logger.Error("http shutdown", zap.Error(err))
				}
			}

			stopConsumers()

			if err := injector.Shutdown(); err != nil {
				logger.Error("service shutdown", zap.Error(err))
			}

			logger.Info("stopped")
		})
	})

	cli.Root().AddCommand(migrateCommand(), tokenCommand())
	cli.Run()
}

func migrateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending PostgreSQL schema migrations",
		Run: humacli.WithOptions(func(_ *cobra.Command, _ []string, options *container.Options) {
			injector := newInjector(options)
			defer func() { _ = injector.Shutdown() }()

			logger := do.MustInvoke[*zap.Logger](injector)

			pool, err := do.Invoke[*container.PostgresPool](injector)
			if err != nil {
				logger.Fatal("connect to postgres", zap.Error(err))
			}

			changed, err := store.Migrate(pool.Pool)
			if err != nil {
				logger.Fatal("migration failed", zap.Error(err))
			}

			logger.Info("migrations applied", zap.Bool("changed", changed))
		}),
	}
}

func tokenCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "token <owner-id>",
		Short: "Print an owner token signed with the configured secret",
		Args:  cobra.ExactArgs(1),
		Run: humacli.WithOptions(func(cmd *cobra.Command, args []string, options *container.Options) {
			token, err := middleware.NewTokenVerifier(options.JWTSecret).Issue(args[0], tokenLifetime)
			if err != nil {
				cmd.PrintErrln(err)

				return
			}

			cmd.Println(token)
		}),
	}
}
