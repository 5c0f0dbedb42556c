package main

import (
	"context"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"studio/internal/adapter/repo"
	"studio/internal/composite"
	"studio/internal/compositor"
	"studio/internal/domain"
	"studio/internal/gallery"
	"studio/internal/http/handlers"
	httpapi "studio/internal/http/httpapi"
	"studio/internal/infra"
	"studio/internal/infra/credentials"
	"studio/internal/media"
	imgfetch "studio/internal/providers/image"
	"studio/internal/storage"
)

const janitorInterval = 5 * time.Minute

func main() {
	_ = godotenv.Load()

	cfg, err := infra.LoadConfig()
	if err != nil {
		panic(err)
	}
	logger := infra.NewLogger(cfg.AppEnv)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	dbpool, err := infra.NewDBPool(ctx, cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect database")
	}
	defer dbpool.Close()
	runner := infra.NewSQLRunner(dbpool, logger)
	if err := repo.Migrate(ctx, runner); err != nil {
		logger.Fatal().Err(err).Msg("failed to migrate schema")
	}

	storagePath, err := filepath.Abs(cfg.StoragePath)
	if err != nil {
		logger.Fatal().Err(err).Msg("invalid storage path")
	}
	store, err := storage.NewFileStore(storagePath)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to configure storage")
	}

	settings, err := infra.LoadCompositorSettings(cfg.CompositorConfig)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load compositor settings")
	}
	ff, err := media.NewFFmpeg(logger, settings.FFmpeg.BinaryPath, settings.FFmpeg.ProbePath, settings.FFmpeg.Threads)
	if err != nil {
		// AVI sources still decode without ffmpeg
		logger.Warn().Err(err).Msg("ffmpeg unavailable, only MJPEG/AVI clips can be composited")
	}
	font, err := compositor.LoadFont(settings.FontPath)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load caption font")
	}

	catalog, err := gallery.Load(cfg.GalleryConfig)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load gallery")
	}

	registry := composite.NewRegistry(composite.Deps{
		Opener:   media.NewSniffer(ff),
		Store:    store,
		Settings: settings,
		Font:     font,
		Logger:   logger,
	}, cfg.CompositeRetention)
	go registry.RunJanitor(ctx, janitorInterval)

	app := &handlers.App{
		Generations:  repo.NewGenerationRepository(runner),
		Results:      repo.NewResultRepository(runner),
		Credentials:  credentials.NewStore(runner).WithFallback(cfg.GeminiAPIKey),
		Images:       imgfetch.NewFetcher(nil, logger),
		Files:        store,
		Composites:   registry,
		Gallery:      catalog,
		Logger:       logger,
		DefaultModel: domain.Model(cfg.VeoModel),
	}
	router := httpapi.NewRouter(app, httpapi.Options{
		AllowedOrigins:  cfg.AllowedOrigins,
		RateLimitPerMin: cfg.RateLimitPerMin,
		Logger:          logger,
	})
	server := infra.NewHTTPServer(cfg, router)

	go func() {
		logger.Info().Str("addr", server.Addr()).Msg("API listening")
		if err := server.Start(); err != nil {
			logger.Fatal().Err(err).Msg("http server failed")
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTPIdleTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("failed to shutdown server")
	}
	if err := registry.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("composite jobs did not stop in time")
	}
	logger.Info().Msg("server stopped")
}
