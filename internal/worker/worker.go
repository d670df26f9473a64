// Package worker runs processing loops over a queue.Queue: pop, hand the
// payload to a Handler, and on failure either push the message back with its
// attempts incremented or move it to the dead-letter store.
package worker

import (
	"context"
	"errors"
	"time"

	"rezoning/internal/queue"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Handler processes one payload. A nil error means the message is done.
type Handler[T any] func(ctx context.Context, payload T) error

type Config struct {
	// MaxAttempts is the number of failed attempts after which a message is
	// dead-lettered.
	MaxAttempts  int
	PollInterval time.Duration
}

// Stats summarises one drain.
type Stats struct {
	Processed    int
	Succeeded    int
	Retried      int
	DeadLettered int
	// Poisoned counts messages whose payload could not be decoded; the queue
	// has already quarantined them.
	Poisoned int
	// Interrupted counts messages put back unchanged because ctx was
	// cancelled while they were being handled.
	Interrupted int
}

// settleTimeout bounds the requeue or dead-letter write after a failure.
const settleTimeout = 10 * time.Second

type Worker[T any] struct {
	queue   *queue.Queue[T]
	handler Handler[T]
	cfg     Config
	logger  zerolog.Logger
}

func New[T any](q *queue.Queue[T], handler Handler[T], cfg Config, logger zerolog.Logger) *Worker[T] {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = DefaultMaxAttempts
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 30 * time.Second
	}
	return &Worker[T]{
		queue:   q,
		handler: handler,
		cfg:     cfg,
		logger:  logger.With().Str("component", "worker").Str("queue", q.Name()).Logger(),
	}
}

// Run drains the queue every PollInterval until ctx is cancelled.
func (w *Worker[T]) Run(ctx context.Context) error {
	w.logger.Info().
		Int("max_attempts", w.cfg.MaxAttempts).
		Str("poll_interval", w.cfg.PollInterval.String()).
		Msg("Starting worker")

	ticker := time.NewTicker(w.cfg.PollInterval)
	defer ticker.Stop()

	for {
		if _, err := w.Drain(ctx); err != nil && ctx.Err() == nil {
			w.logger.Error().Err(err).Msg("Drain failed")
		}

		select {
		case <-ctx.Done():
			w.logger.Info().Msg("Shutting down worker")
			return nil
		case <-ticker.C:
		}
	}
}

// Drain processes the messages present when it starts. Messages pushed while
// it runs, retries included, wait for the next drain. Storage errors stop the
// drain and are returned.
func (w *Worker[T]) Drain(ctx context.Context) (Stats, error) {
	var stats Stats

	depth, err := w.queue.Depth(ctx)
	if err != nil {
		return stats, err
	}
	if depth == 0 {
		return stats, nil
	}

	logger := w.logger.With().Str("drain_id", uuid.NewString()).Logger()
	logger.Debug().Int64("depth", depth).Msg("Draining queue")

	for i := int64(0); i < depth; i++ {
		if err := ctx.Err(); err != nil {
			return stats, err
		}

		msg, ok, err := w.queue.Pop(ctx)
		if errors.Is(err, queue.ErrSerialization) {
			stats.Poisoned++
			logger.Error().Err(err).Msg("Undecodable message moved to dead letters")
			continue
		}
		if err != nil {
			return stats, err
		}
		if !ok {
			break
		}

		stats.Processed++
		if err := w.process(ctx, logger, msg, &stats); err != nil {
			return stats, err
		}
	}

	logger.Info().
		Int("processed", stats.Processed).
		Int("succeeded", stats.Succeeded).
		Int("retried", stats.Retried).
		Int("dead_lettered", stats.DeadLettered).
		Int("poisoned", stats.Poisoned).
		Int("interrupted", stats.Interrupted).
		Msg("Drain complete")
	return stats, nil
}

// process runs the handler on msg and records the outcome. Only storage
// errors from the retry or dead-letter push are returned.
func (w *Worker[T]) process(ctx context.Context, logger zerolog.Logger, msg queue.Message[T], stats *Stats) error {
	handlerErr := w.invoke(ctx, msg.Payload)
	if handlerErr == nil {
		stats.Succeeded++
		logger.Debug().Int64("msg_id", msg.ID).Msg("Message processed")
		return nil
	}

	// The message already left the live queue, so its fate must be written
	// even when ctx was cancelled while the handler ran.
	writeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), settleTimeout)
	defer cancel()

	if ctx.Err() != nil {
		interrupted := msg
		interrupted.ID = 0
		newID, err := w.queue.PushMessage(writeCtx, interrupted)
		if err != nil {
			return err
		}
		stats.Interrupted++
		logger.Warn().
			Err(handlerErr).
			Int64("msg_id", msg.ID).
			Int64("new_msg_id", newID).
			Int("attempts", msg.Attempts).
			Msg("Interrupted by shutdown, requeued without counting the attempt")
		return nil
	}

	next := msg.Retry(w.queue.Now())
	if shouldDeadLetter(next.Attempts, w.cfg.MaxAttempts, handlerErr) {
		dlqID, err := w.queue.PushToDeadLetter(writeCtx, next, handlerErr.Error())
		if err != nil {
			return err
		}
		stats.DeadLettered++
		logger.Warn().
			Err(handlerErr).
			Int64("msg_id", msg.ID).
			Int64("dead_letter_id", dlqID).
			Int("attempts", next.Attempts).
			Msg("Exhausted retries; moving message to dead letters")
		return nil
	}

	newID, err := w.queue.PushMessage(writeCtx, next)
	if err != nil {
		return err
	}
	stats.Retried++
	logger.Error().
		Err(handlerErr).
		Int64("msg_id", msg.ID).
		Int64("new_msg_id", newID).
		Int("attempts", next.Attempts).
		Msg("Processing failed, requeued")
	return nil
}

func (w *Worker[T]) invoke(ctx context.Context, payload T) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &panicError{value: r}
		}
	}()
	return w.handler(ctx, payload)
}
