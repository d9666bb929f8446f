package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"

	"github.com/lumina-clinic/lumina-clinic/internal/app"
	"github.com/lumina-clinic/lumina-clinic/internal/catalog"
	"github.com/lumina-clinic/lumina-clinic/internal/platform/cache"
	"github.com/lumina-clinic/lumina-clinic/internal/platform/db"
	"github.com/lumina-clinic/lumina-clinic/internal/provider"
	"github.com/lumina-clinic/lumina-clinic/internal/sync"
	"github.com/lumina-clinic/lumina-clinic/jobs"
)

// catalogSyncer adapts the sync trigger and job queue to the read service's
// Syncer interface. Background refreshes go through the queue when it is
// available and fall back to an in-process goroutine otherwise.
type catalogSyncer struct {
	trigger *sync.Trigger
	queue   *jobs.Client
	logger  *slog.Logger
}

func (s *catalogSyncer) NeedsSync(ctx context.Context) bool {
	return s.trigger.NeedsSync(ctx)
}

func (s *catalogSyncer) SyncNow(ctx context.Context, force bool) error {
	_, err := s.trigger.RunIfNeeded(ctx, force)
	return err
}

func (s *catalogSyncer) SyncAsync(ctx context.Context) error {
	if s.queue != nil {
		if _, err := s.queue.EnqueueCatalogSync(ctx, false); err == nil {
			return nil
		} else {
			s.logger.Warn("enqueue background sync failed, running in-process", slog.Any("error", err))
		}
	}
	go func() {
		bgCtx, cancel := context.WithTimeout(context.Background(), 30*time.Minute)
		defer cancel()
		if _, err := s.trigger.RunIfNeeded(bgCtx, false); err != nil {
			s.logger.Error("background sync", slog.Any("error", err))
		}
	}()
	return nil
}

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

	queue := jobs.NewClient(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	defer func() {
		if err := queue.Close(); err != nil {
			logger.Warn("queue close", slog.Any("error", err))
		}
	}()

	syncer := &catalogSyncer{trigger: trigger, queue: queue, logger: logger}
	catalogService := catalog.NewService(repo, productCache, syncer, logger)
	catalogHandler := catalog.NewHandler(logger, catalogService, cfg.AdminPassword)
	syncHandler := sync.NewHandler(logger, trigger, tracker, repo, cfg.AdminPassword, cfg.CronSecret)

	router := app.NewRouter(app.RouterParams{
		Logger:         logger,
		Config:         cfg,
		CatalogHandler: catalogHandler,
		SyncHandler:    syncHandler,
		Pool:           pool,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown", slog.Any("error", err))
	}
}
