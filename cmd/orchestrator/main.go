package main

import (
	"context"
	"flag"
	"os/signal"
	"syscall"

	"rezoning/internal/config"
	"rezoning/internal/logger"
	"rezoning/internal/orchestrator/publish"
	"rezoning/internal/orchestrator/summarize"
	"rezoning/internal/repository"
	"rezoning/internal/service"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"
)

func main() {
	// Parse mode flag
	mode := flag.String("mode", "", "Orchestrator mode: summarize|pubsub|webhook|all")
	flag.Parse()

	// Initialize logger
	logger := logger.New()

	// Load environment variables
	if err := godotenv.Load(); err != nil {
		logger.Warn().Msg("Warning: no .env file found")
	}

	// Load config
	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Msgf("Error loading config: %v", err)
	}

	// Set up context with graceful shutdown
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

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

	// Open the queue store
	store, err := repository.OpenStore(ctx, cfg)
	if err != nil {
		logger.Fatal().Msgf("Failed to open store: %v", err)
	}
	defer store.Close()
	logger.Info().Str("db_driver", cfg.DBDriver).Msg("Database connection established")

	// Dispatch to the selected orchestrator
	var runErr error
	switch *mode {
	case "summarize":
		runErr = summarize.Run(ctx, logger, cfg, store)
	case "pubsub":
		runErr = publish.RunPubSub(ctx, logger, cfg, store)
	case "webhook":
		runErr = publish.RunWebhook(ctx, logger, cfg, store)
	case "all":
		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error { return summarize.Run(gctx, logger, cfg, store) })
		if cfg.PubSubEnabled() {
			g.Go(func() error { return publish.RunPubSub(gctx, logger, cfg, store) })
		}
		if cfg.WebhookEnabled() {
			g.Go(func() error { return publish.RunWebhook(gctx, logger, cfg, store) })
		}
		runErr = g.Wait()
	default:
		logger.Fatal().Msgf("Invalid mode: %s", *mode)
	}

	if runErr != nil {
		logger.Fatal().Msgf("%s orchestrator failed: %v", *mode, runErr)
	}

	logger.Info().Msgf("%s orchestrator stopped gracefully", *mode)
}
