package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"rezoning/internal/api/v1/router"
	"rezoning/internal/config"
	"rezoning/internal/logger"
	"rezoning/internal/repository"
	"rezoning/internal/service"

	"github.com/joho/godotenv"
)

func main() {
	logger := logger.New()

	// 1. Load configuration
	if err := godotenv.Load(); err != nil {
		logger.Warn().Msg("Warning: no .env file found")
	}

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Msgf("Error loading config: %v", err)
	}

	ctx := context.Background()

	// 2. Resolve sm:// references
	if cfg.HasSecretRefs() {
		sm, err := service.NewSecretManagerService(ctx)
		if err != nil {
			logger.Fatal().Msgf("Failed to create Secret Manager client: %v", err)
		}
		err = cfg.ResolveSecrets(ctx, sm)
		sm.Close()
		if err != nil {
			logger.Fatal().Msgf("Failed to resolve secrets: %v", err)
		}
	}

	// 3. Open the queue store
	store, err := repository.OpenStore(ctx, cfg)
	if err != nil {
		logger.Fatal().Msgf("Failed to open store: %v", err)
	}
	defer store.Close()
	logger.Info().Str("db_driver", cfg.DBDriver).Msg("Database connection successful")

	// 4. Build router
	r, err := router.New(ctx, cfg, store, logger)
	if err != nil {
		logger.Fatal().Msgf("Failed to build router: %v", err)
	}

	// 5. Create HTTP server
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info().Msgf("Server starting on port %s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Msgf("Listen: %s", err)
		}
	}()

	// 6. Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info().Msg("Shutdown signal received, exiting...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Msgf("Server forced to shutdown: %v", err)
	}
	logger.Info().Msg("Server shut down gracefully")
}
