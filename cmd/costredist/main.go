package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"

	"github.com/nordvik-erp/costredist/internal/app"
	"github.com/nordvik-erp/costredist/internal/platform/db"
	"github.com/nordvik-erp/costredist/internal/redist"
	"github.com/nordvik-erp/costredist/jobs"
)

// costredist runs one redistribution pass from environment parameters and
// exits non-zero when the run fails.
func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}
	logger := app.NewLogger(cfg)

	pool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect database", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	redisClient := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	asynqClient := asynq.NewClient(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	defer func() {
		if err := asynqClient.Close(); err != nil {
			logger.Warn("asynq close", slog.Any("error", err))
		}
	}()

	repo := redist.NewRepository(pool)
	locker := redist.NewRedisLocker(redisClient, cfg.RunLockTTL)
	trigger := jobs.NewPostingClient(asynqClient, repo, logger)
	service := redist.NewService(repo, trigger, locker, logger)

	report, err := service.Run(ctx, cfg.RunConfig())
	if err != nil {
		logger.Error("redistribution run failed", slog.Any("error", err))
		os.Exit(1)
	}
	logger.Info("redistribution run complete",
		slog.String("run_id", report.RunID),
		slog.String("batch_id", report.BatchID),
		slog.Int("rules", report.Rules),
		slog.Int("buffer_rows", report.BufferRows),
		slog.Bool("posted", report.Posted),
		slog.Int64("order_number", report.OrderNumber),
	)
}
