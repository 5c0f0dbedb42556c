package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/joho/godotenv"

	"studio/internal/adapter/repo"
	"studio/internal/infra"
	"studio/internal/infra/credentials"
	"studio/internal/providers/genai"
	videoprovider "studio/internal/providers/video"
	"studio/internal/storage"
)

func main() {
	_ = godotenv.Load()

	cfg, err := infra.LoadConfig()
	if err != nil {
		panic(err)
	}
	logger := infra.NewLogger(cfg.AppEnv)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, err := infra.NewDBPool(ctx, cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("worker: db connection failed")
	}
	defer pool.Close()
	runner := infra.NewSQLRunner(pool, logger)
	if err := repo.Migrate(ctx, runner); err != nil {
		logger.Fatal().Err(err).Msg("worker: migrate failed")
	}

	storagePath, err := filepath.Abs(cfg.StoragePath)
	if err != nil {
		logger.Fatal().Err(err).Msg("worker: invalid storage path")
	}
	fileStore, err := storage.NewFileStore(storagePath)
	if err != nil {
		logger.Fatal().Err(err).Msg("worker: failed to configure storage")
	}

	creds := credentials.NewStore(runner).WithFallback(cfg.GeminiAPIKey)
	client := genai.NewClient(genai.Options{
		Keys:         creds,
		BaseURL:      cfg.GeminiBaseURL,
		Logger:       &logger,
		PollInterval: cfg.PollInterval,
		MaxWait:      cfg.MaxGenerationWait,
		Synthetic:    cfg.SyntheticVideos,
	})
	if cfg.SyntheticVideos {
		logger.Warn().Msg("worker: synthetic videos enabled, jobs without an api key render placeholders")
	}

	generations := repo.NewGenerationRepository(runner)
	w := &jobWorker{
		generations: generations,
		results:     repo.NewResultRepository(runner),
		keys:        creds,
		generator:   videoprovider.NewVeoGenerator(client, logger),
		store:       fileStore,
		logger:      infra.Component(logger, "worker"),
	}

	// jobs left RUNNING by a crashed worker go back to the queue
	if n, err := generations.RequeueStale(ctx, staleAfter); err != nil {
		logger.Warn().Err(err).Msg("worker: requeue stale jobs failed")
	} else if n > 0 {
		logger.Info().Int64("jobs", n).Msg("worker: requeued stale jobs")
	}

	if err := w.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Fatal().Err(err).Msg("worker: stopped with error")
	}
	logger.Info().Msg("worker: stopped")
}
