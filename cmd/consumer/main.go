package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/samber/do"
	"github.com/serroba/linktrail/internal/container"
	"github.com/serroba/linktrail/internal/messaging"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func main() {
	_ = godotenv.Load()

	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	opts := &container.Options{Events: container.BackendRedis}

	cmd := &cobra.Command{
		Use:   "consumer",
		Short: "Drain link and visit events from the Redis stream into the analytics sink",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			return run(ctx, opts)
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&opts.RedisAddr, "redis-addr", envOr("SERVICE_REDIS_ADDR", "localhost:6379"), "Redis address")
	flags.StringVar(&opts.LogFormat, "log-format", envOr("SERVICE_LOG_FORMAT", "console"), "console or json")

	return cmd
}

func run(ctx context.Context, opts *container.Options) error {
	injector := do.New()
	do.ProvideValue(injector, opts)
	container.LoggerPackage(injector)
	container.RedisPackage(injector)
	container.ConsumerGroupPackage(injector)

	logger := do.MustInvoke[*zap.Logger](injector)

	group, err := do.Invoke[*messaging.ConsumerGroup](injector)
	if err != nil {
		return fmt.Errorf("build consumer group: %w", err)
	}

	if err := group.Start(ctx); err != nil {
		return err
	}

	logger.Info("consuming analytics events",
		zap.String("redis", opts.RedisAddr),
		zap.String("group", container.ConsumerGroupName),
	)

	<-ctx.Done()
	logger.Info("signal received, draining")

	if err := injector.Shutdown(); err != nil {
		logger.Error("shutdown", zap.Error(err))

		return err
	}

	return nil
}

func envOr(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}

	return fallback
}
