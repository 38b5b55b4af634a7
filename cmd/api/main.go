package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"printshop/internal/adapter/repo"
	"printshop/internal/db"
	"printshop/internal/http/handlers"
	"printshop/internal/http/httpapi"
	"printshop/internal/infra"
	"printshop/internal/pipeline"
	"printshop/internal/queue"
	"printshop/internal/storage"
)

func main() {
	_ = godotenv.Load()

	cfg, err := infra.LoadConfig()
	if err != nil {
		panic(err)
	}
	logger := infra.NewLogger(cfg.AppEnv, "api")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, err := infra.NewDBPool(ctx, cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect database")
	}
	defer pool.Close()

	if err := db.Ensure(ctx, pool); err != nil {
		logger.Fatal().Err(err).Msg("failed to ensure schema")
	}

	blobs, staticDir, err := buildBlobStore(cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to configure storage")
	}

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
	svc := pipeline.NewService(jobs, assets, q, blobs, logger)

	app := handlers.NewApp(svc, logger, cfg.MaxUploadBytes)
	router := httpapi.NewRouter(app, cfg, logger, staticDir)
	server := infra.NewHTTPServer(cfg, router)

	go func() {
		logger.Info().Str("port", cfg.Port).Msg("api listening")
		if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("http server failed")
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTPIdleTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("failed to shutdown server")
	}
	logger.Info().Msg("server stopped")
}

// buildBlobStore selects the artifact backend. The filesystem store also
// reports the directory the API must serve statically so its URLs resolve.
func buildBlobStore(cfg *infra.Config) (storage.BlobStore, string, error) {
	if cfg.StorageBackend == "supabase" {
		store, err := storage.NewSupabaseStore(cfg.SupabaseURL, cfg.SupabaseServiceKey, cfg.SupabaseBucket)
		return store, "", err
	}
	store, err := storage.NewFileStore(cfg.StoragePath, cfg.StorageBaseURL)
	if err != nil {
		return nil, "", err
	}
	return store, cfg.StoragePath, nil
}
