package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/assistente-financeiro/assistente-financeiro/internal/app"
	jobmetrics "github.com/assistente-financeiro/assistente-financeiro/internal/jobs"
	"github.com/assistente-financeiro/assistente-financeiro/internal/partition"
	"github.com/assistente-financeiro/assistente-financeiro/internal/security"
	"github.com/assistente-financeiro/assistente-financeiro/internal/shared"
	"github.com/assistente-financeiro/assistente-financeiro/internal/storage"
	"github.com/assistente-financeiro/assistente-financeiro/internal/users"
	"github.com/assistente-financeiro/assistente-financeiro/jobs"
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

	store, closeStore, err := storage.Open(ctx, cfg.StorageOptions())
	if err != nil {
		logger.Error("open storage", slog.String("driver", cfg.StorageDriver), slog.Any("error", err))
		os.Exit(1)
	}
	defer closeStore()

	registry := prometheus.NewRegistry()
	metrics := jobmetrics.NewMetrics(registry)
	go serveMetrics(logger, cfg.WorkerMetricsAddr, registry)

	profiles := shared.NewProfileManager(store, cfg.ProfileIdleTTL, cfg.IsProduction())
	dir := users.NewDirectory(store, security.NewHasher(cfg.BcryptCost))
	profilesJob := jobs.NewProfilesSweepJob(profiles, cfg.ProfileIdleTTL, logger, metrics)
	partitionsJob := jobs.NewPartitionsSweepJob(partition.NewResolver(store), dir, logger, metrics)

	profilesTask, err := jobs.NewProfilesSweepTask(0, false)
	if err != nil {
		logger.Error("build profiles sweep task", slog.Any("error", err))
		os.Exit(1)
	}
	partitionsTask, err := jobs.NewPartitionsSweepTask(false)
	if err != nil {
		logger.Error("build partitions sweep task", slog.Any("error", err))
		os.Exit(1)
	}

	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts: asynq.RedisClientOpt{Addr: cfg.RedisAddr},
		Logger:    logger,
		Handlers: []jobs.TaskHandler{
			{Type: jobs.TaskProfilesSweep, Handler: profilesJob.Handle},
			{Type: jobs.TaskPartitionsSweep, Handler: partitionsJob.Handle},
		},
		Cron: []jobs.CronRegistration{
			{Spec: cfg.SweepSchedule, Task: profilesTask, Options: []asynq.Option{asynq.MaxRetry(3)}},
			{Spec: "30 3 * * 0", Task: partitionsTask, Options: []asynq.Option{asynq.MaxRetry(3)}},
		},
	})
	if err != nil {
		logger.Error("init worker", slog.Any("error", err))
		os.Exit(1)
	}

	logger.Info("starting worker", slog.String("sweep_schedule", cfg.SweepSchedule))
	if err := worker.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("worker run", slog.Any("error", err))
		os.Exit(1)
	}
}

func serveMetrics(logger *slog.Logger, addr string, registry *prometheus.Registry) {
	if addr == "" {
		return
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	logger.Info("serving worker metrics", slog.String("addr", addr))
	if err := http.ListenAndServe(addr, mux); err != nil {
		logger.Warn("worker metrics server", slog.Any("error", err))
	}
}
