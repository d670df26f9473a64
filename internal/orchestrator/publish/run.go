package publish

import (
	"context"
	"fmt"

	"rezoning/internal/config"
	"rezoning/internal/model"
	"rezoning/internal/pipeline"
	"rezoning/internal/pubsub"
	"rezoning/internal/queue"
	"rezoning/internal/repository"
	"rezoning/internal/service"
	"rezoning/internal/worker"

	"github.com/rs/zerolog"
)

// RunPubSub starts the orchestrator relaying posts to the Pub/Sub topic.
func RunPubSub(ctx context.Context, logger zerolog.Logger, cfg *config.Config, store *repository.Store) error {
	publisher, err := pubsub.NewPublisher(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := publisher.Close(); err != nil {
			logger.Error().Err(err).Msg("Failed to close Pub/Sub publisher")
		}
	}()

	return run(ctx, logger, store, cfg.PubSubQueueName, publisher, worker.Config{
		MaxAttempts:  cfg.PubSubMaxAttempts,
		PollInterval: cfg.PollInterval(),
	})
}

// RunWebhook starts the orchestrator relaying posts to the webhook.
func RunWebhook(ctx context.Context, logger zerolog.Logger, cfg *config.Config, store *repository.Store) error {
	if !cfg.WebhookEnabled() {
		return fmt.Errorf("webhook orchestrator: WEBHOOK_URL is not set")
	}
	return run(ctx, logger, store, cfg.WebhookQueueName, service.NewWebhookClient(cfg.WebhookURL, logger), worker.Config{
		MaxAttempts:  cfg.WebhookMaxAttempts,
		PollInterval: cfg.PollInterval(),
	})
}

func run(ctx context.Context, logger zerolog.Logger, store *repository.Store, queueName string, p pipeline.Publisher, wcfg worker.Config) error {
	logger = logger.With().Str("stage", "publish").Str("publisher", p.Name()).Logger()

	q, err := queue.NewFromStore[model.Post](queueName, store)
	if err != nil {
		return err
	}

	logger.Info().Msg("Starting publish orchestrator")
	return worker.New(q, pipeline.Publish(p), wcfg, logger).Run(ctx)
}
