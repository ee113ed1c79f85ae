package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"

	"github.com/arunika-edu/arunika-edu/internal/app"
	"github.com/arunika-edu/arunika-edu/internal/audit"
	"github.com/arunika-edu/arunika-edu/internal/entitlements"
	jobmetrics "github.com/arunika-edu/arunika-edu/internal/jobs"
	"github.com/arunika-edu/arunika-edu/internal/platform/db"
	"github.com/arunika-edu/arunika-edu/internal/shared"
	"github.com/arunika-edu/arunika-edu/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping worker startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	pool, err := db.New(ctx, cfg.PGDSN, db.Options{
		MaxConns:        cfg.PGMaxConns,
		MinConns:        cfg.PGMinConns,
		MaxConnLifetime: cfg.PGConnMaxLife,
	})
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	auditRepo := audit.NewRepository(pool)
	entitlementsRepo := entitlements.NewRepository(pool)
	entitlementsService := entitlements.NewService(entitlementsRepo, entitlements.DefaultCatalog(), auditRepo, logger)

	metrics := jobmetrics.NewMetrics(nil)
	tierSyncJob := jobs.NewTierSyncJob(entitlementsService, logger, metrics)
	sweepJob := jobs.NewIdempotencySweepJob(shared.NewIdempotencyStore(pool), logger, metrics)

	sweepTask, err := jobs.NewIdempotencySweepTask(cfg.WebhookKeyRetainDays)
	if err != nil {
		logger.Error("build sweep task", slog.Any("error", err))
		os.Exit(1)
	}

	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts: asynq.RedisClientOpt{Addr: cfg.RedisAddr, Password: cfg.RedisPassword, DB: cfg.RedisDB},
		Logger:    logger,
		Handlers: []jobs.TaskHandler{
			{Type: jobs.TaskTierSync, Handler: tierSyncJob.Handle},
			{Type: jobs.TaskIdempotencySweep, Handler: sweepJob.Handle},
		},
		Cron: []jobs.CronRegistration{
			{Spec: "20 2 * * *", Task: sweepTask, Options: []asynq.Option{asynq.MaxRetry(3)}},
		},
	})
	if err != nil {
		logger.Error("init worker", slog.Any("error", err))
		os.Exit(1)
	}

	logger.Info("starting worker", slog.String("queue", jobs.QueueDefault))
	if err := worker.Run(ctx); err != nil && err != context.Canceled {
		logger.Error("worker run", slog.Any("error", err))
		os.Exit(1)
	}
}
