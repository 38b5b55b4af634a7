package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"printshop/internal/adapter/repo"
	"printshop/internal/db"
	"printshop/internal/extraction"
	"printshop/internal/infra"
	"printshop/internal/pipeline"
	"printshop/internal/queue"
	"printshop/internal/storage"
	"printshop/internal/worker"
)

func main() {
	_ = godotenv.Load()

	cfg, err := infra.LoadConfig()
	if err != nil {
		panic(err)
	}
	logger := infra.NewLogger(cfg.AppEnv, "worker")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, err := infra.NewDBPool(ctx, cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("worker: db connection failed")
	}
	defer pool.Close()

	if err := db.Ensure(ctx, pool); err != nil {
		logger.Fatal().Err(err).Msg("worker: failed to ensure schema")
	}

	blobs, err := buildBlobStore(cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("worker: failed to configure storage")
	}

	recomposer, err := extraction.NewGeminiClient(extraction.GeminiOptions{
		APIKey:  cfg.GeminiAPIKey,
		BaseURL: cfg.GeminiBaseURL,
		Model:   cfg.GeminiModel,
		Logger:  &logger,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("worker: failed to configure recomposition client")
	}

	remover, err := extraction.NewRemovalClient(extraction.RemovalOptions{
		RembgEndpoint:  cfg.RembgEndpoint,
		RemoveBgAPIKey: cfg.RemoveBgAPIKey,
		Logger:         &logger,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("worker: failed to configure background removal client")
	}

	probeCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	if err := remover.Initialize(probeCtx); err != nil {
		logger.Warn().Err(err).Msg("worker: self-hosted removal probe failed, using remote fallback")
	}
	cancel()

	jobs := repo.NewJobRepository(pool)
	assets := repo.NewAssetRepository(pool)
	q := queue.NewPGQueue(pool, queue.Config{
		MaxAttempts:        cfg.QueueMaxAttempts,
		BackoffBase:        cfg.QueueBackoffBase,
		LockDuration:       cfg.QueueLockDuration,
		MaxStalls:          cfg.QueueMaxStalls,
		CompletedRetention: cfg.CompletedRetention,
		DeadRetention:      cfg.DeadRetention,
	})

	orch := pipeline.NewOrchestrator(jobs, assets, blobs, recomposer, remover, logger)
	consumers := worker.NewPool(q, orch, worker.Config{
		Concurrency:       cfg.WorkerConcurrency,
		PollInterval:      cfg.QueuePollInterval,
		HeartbeatInterval: cfg.QueueLockDuration / 3,
	}, logger)

	logger.Info().Int("concurrency", cfg.WorkerConcurrency).Msg("worker started")
	if err := consumers.Run(ctx); err != nil {
		logger.Error().Err(err).Msg("worker stopped with error")
	}
	logger.Info().Msg("worker stopped")
}

func buildBlobStore(cfg *infra.Config) (storage.BlobStore, error) {
	if cfg.StorageBackend == "supabase" {
		return storage.NewSupabaseStore(cfg.SupabaseURL, cfg.SupabaseServiceKey, cfg.SupabaseBucket)
	}
	return storage.NewFileStore(cfg.StoragePath, cfg.StorageBaseURL)
}
