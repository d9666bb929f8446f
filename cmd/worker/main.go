package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"

	"github.com/lumina-clinic/lumina-clinic/internal/app"
	"github.com/lumina-clinic/lumina-clinic/internal/catalog"
	"github.com/lumina-clinic/lumina-clinic/internal/platform/cache"
	"github.com/lumina-clinic/lumina-clinic/internal/platform/db"
	"github.com/lumina-clinic/lumina-clinic/internal/provider"
	"github.com/lumina-clinic/lumina-clinic/internal/sync"
	"github.com/lumina-clinic/lumina-clinic/jobs"
)

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
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Warn("redis unavailable, caching and sync locking degraded", slog.Any("error", err))
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	providerClient := provider.NewClient(provider.Config{
		URL:         cfg.InventoryAPIURL,
		Token:       cfg.InventoryAPIToken,
		InventoryID: cfg.InventoryID,
	}, logger)

	repo := catalog.NewRepository(pool)
	productCache := catalog.NewCache(redisClient, cfg.CacheTTL)
	tracker := sync.NewTracker(pool)

	reconciler := sync.NewReconciler(providerClient, repo, tracker, productCache, logger, sync.Config{
		ChunkSize:           cfg.SyncChunkSize,
		CategoryConcurrency: cfg.SyncCategoryConcurrency,
		ChunkPause:          cfg.SyncChunkPause,
		BatchPause:          cfg.SyncBatchPause,
		PriceListID:         cfg.SyncPriceListID,
		WarehouseID:         cfg.SyncWarehouseID,
	})
	lock := sync.NewRedisLock(redisClient, cfg.SyncLockTTL)
	trigger := sync.NewTrigger(tracker, reconciler, lock, cfg.SyncInterval(), logger)

	syncJob := jobs.NewCatalogSyncJob(trigger, logger)
	cleanupJob := jobs.NewCatalogCleanupJob(repo, tracker, cfg.CleanupRetention(), logger)

	syncTask, err := jobs.NewCatalogSyncTask(false)
	if err != nil {
		logger.Error("build sync task", slog.Any("error", err))
		os.Exit(1)
	}
	cleanupTask, err := jobs.NewCatalogCleanupTask()
	if err != nil {
		logger.Error("build cleanup task", slog.Any("error", err))
		os.Exit(1)
	}

	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts: asynq.RedisClientOpt{Addr: cfg.RedisAddr},
		Logger:    logger,
		Handlers: []jobs.TaskHandler{
			{Type: jobs.TaskCatalogSync, Handler: syncJob.Handle},
			{Type: jobs.TaskCatalogCleanup, Handler: cleanupJob.Handle},
		},
		Cron: []jobs.CronRegistration{
			{Spec: fmt.Sprintf("@every %dm", cfg.SyncIntervalMinutes), Task: syncTask, Options: []asynq.Option{asynq.MaxRetry(2)}},
			{Spec: "0 3 * * *", Task: cleanupTask, Options: []asynq.Option{asynq.MaxRetry(2)}},
		},
	})
	if err != nil {
		logger.Error("init worker", slog.Any("error", err))
		os.Exit(1)
	}

	if err := worker.Run(ctx); err != nil && err != context.Canceled {
		logger.Error("worker run", slog.Any("error", err))
		os.Exit(1)
	}
}
