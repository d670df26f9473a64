package pubsub

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"rezoning/internal/config"
	"rezoning/internal/model"

	"cloud.google.com/go/pubsub"
	"google.golang.org/api/option"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

// ErrMissingProject is returned by NewPublisher when no GCP project is configured.
var ErrMissingProject = errors.New("GCP project ID is not set")

// PostPublisher publishes posts to a Google Pub/Sub topic.
type PostPublisher struct {
	client *pubsub.Client
	topic  *pubsub.Topic
}

// NewPublisher creates a PostPublisher for cfg.PubSubTopic in cfg.GCPProjectID.
// When PUBSUB_EMULATOR_HOST is configured the client talks to the emulator
// without credentials.
func NewPublisher(ctx context.Context, cfg *config.Config) (*PostPublisher, error) {
	if cfg.GCPProjectID == "" {
		return nil, ErrMissingProject
	}

	var opts []option.ClientOption
	if cfg.PubSubEmulatorHost != "" {
		opts = append(opts,
			option.WithEndpoint(cfg.PubSubEmulatorHost),
			option.WithoutAuthentication(),
			option.WithGRPCDialOption(grpc.WithTransportCredentials(insecure.NewCredentials())),
		)
	}

	client, err := pubsub.NewClient(ctx, cfg.GCPProjectID, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create Pub/Sub client: %w", err)
	}
	return &PostPublisher{client: client, topic: client.Topic(cfg.PubSubTopic)}, nil
}

func (p *PostPublisher) Name() string { return "pubsub" }

// Publish sends post as JSON to the topic and waits for the server ack.
func (p *PostPublisher) Publish(ctx context.Context, post model.Post) error {
	data, err := json.Marshal(post)
	if err != nil {
		return fmt.Errorf("marshaling post: %w", err)
	}
	result := p.topic.Publish(ctx, &pubsub.Message{
		Data:       data,
		Attributes: map[string]string{"project_id": post.ProjectID},
	})
	if _, err := result.Get(ctx); err != nil {
		return fmt.Errorf("failed to publish message to topic %s: %w", p.topic.ID(), err)
	}
	return nil
}

func (p *PostPublisher) Close() error {
	p.topic.Stop()
	return p.client.Close()
}
