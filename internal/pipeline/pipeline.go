// Package pipeline holds the handlers for each relay stage. The summarize
// stage fans a project out to one publish queue per downstream publisher, so a
// failing publisher only retries its own delivery. The fan-out is a single
// store transaction: a project is queued for every publisher or for none.
package pipeline

import (
	"context"
	"errors"
	"fmt"

	"rezoning/internal/model"
	"rezoning/internal/queue"
	"rezoning/internal/service"
	"rezoning/internal/worker"
)

// ErrEmptySummary is returned when the summarizer produced no text.
var ErrEmptySummary = errors.New("summarizer returned empty text")

// Publisher delivers a post to one downstream channel.
type Publisher interface {
	Name() string
	Publish(ctx context.Context, post model.Post) error
}

// Summarize returns the handler for the summarize queue. Each project is
// summarized once and pushed to every output queue.
func Summarize(summarizer service.SummaryClient, outputs ...*queue.Queue[model.Post]) worker.Handler[model.Project] {
	return func(ctx context.Context, project model.Project) error {
		text, err := summarizer.Summarize(ctx, project)
		if err != nil {
			return classify(fmt.Errorf("summarizing project %s: %w", project.ID, err))
		}
		if text == "" {
			return worker.Permanent(fmt.Errorf("project %s: %w", project.ID, ErrEmptySummary))
		}

		post := model.Post{ProjectID: project.ID, Text: text, Link: project.Link}
		if _, err := queue.PushAll(ctx, post, outputs...); err != nil {
			return fmt.Errorf("queueing post for project %s: %w", project.ID, err)
		}
		return nil
	}
}

// Publish returns the handler for a publish queue feeding p.
func Publish(p Publisher) worker.Handler[model.Post] {
	return func(ctx context.Context, post model.Post) error {
		if err := p.Publish(ctx, post); err != nil {
			return classify(fmt.Errorf("publishing project %s to %s: %w", post.ProjectID, p.Name(), err))
		}
		return nil
	}
}

// classify marks downstream 4xx responses as permanent failures.
func classify(err error) error {
	if service.IsClientError(err) {
		return worker.Permanent(err)
	}
	return err
}
