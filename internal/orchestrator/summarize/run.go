package summarize

import (
	"context"
	"errors"

	"rezoning/internal/config"
	"rezoning/internal/model"
	"rezoning/internal/pipeline"
	"rezoning/internal/queue"
	"rezoning/internal/repository"
	"rezoning/internal/service"
	"rezoning/internal/worker"

	"github.com/rs/zerolog"
)

var (
	ErrNoSummarizer = errors.New("SUMMARIZER_BASE_URL is not set")
	ErrNoPublishers = errors.New("no publisher configured: set GCP_PROJECT_ID and/or WEBHOOK_URL")
)

// Run starts the summarize orchestrator. Summaries fan out to the publish
// queue of every configured publisher.
func Run(ctx context.Context, logger zerolog.Logger, cfg *config.Config, store *repository.Store) error {
	logger = logger.With().Str("stage", "summarize").Logger()
	if cfg.SummarizerBaseURL == "" {
		return ErrNoSummarizer
	}

	outputs, err := outputQueues(cfg, store)
	if err != nil {
		return err
	}
	if len(outputs) == 0 {
		return ErrNoPublishers
	}

	in, err := queue.NewFromStore[model.Project](cfg.SummarizeQueueName, store)
	if err != nil {
		return err
	}

	summarizer := service.NewSummaryClient(cfg.SummarizerBaseURL, cfg.SummarizerTimeout(), logger)
	w := worker.New(in, pipeline.Summarize(summarizer, outputs...), worker.Config{
		MaxAttempts:  cfg.SummarizeMaxAttempts,
		PollInterval: cfg.PollInterval(),
	}, logger)

	logger.Info().Int("outputs", len(outputs)).Msg("Starting summarize orchestrator")
	return w.Run(ctx)
}

func outputQueues(cfg *config.Config, store *repository.Store) ([]*queue.Queue[model.Post], error) {
	var names []string
	if cfg.PubSubEnabled() {
		names = append(names, cfg.PubSubQueueName)
	}
	if cfg.WebhookEnabled() {
		names = append(names, cfg.WebhookQueueName)
	}

	outputs := make([]*queue.Queue[model.Post], 0, len(names))
	for _, name := range names {
		q, err := queue.NewFromStore[model.Post](name, store)
		if err != nil {
			return nil, err
		}
		outputs = append(outputs, q)
	}
	return outputs, nil
}
