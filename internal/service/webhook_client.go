package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"rezoning/internal/model"

	"github.com/rs/zerolog"
)

// WebhookClient posts Slack-compatible {"text": ...} messages to an incoming webhook.
type WebhookClient struct {
	url    string
	client *http.Client
	logger zerolog.Logger
}

func NewWebhookClient(url string, logger zerolog.Logger) *WebhookClient {
	return &WebhookClient{
		url:    url,
		client: &http.Client{Timeout: 10 * time.Second},
		logger: logger.With().Str("service", "WebhookClient").Logger(),
	}
}

type webhookMessage struct {
	Text string `json:"text"`
}

func (c *WebhookClient) Name() string { return "webhook" }

func (c *WebhookClient) Publish(ctx context.Context, post model.Post) error {
	body, err := json.Marshal(webhookMessage{Text: post.Body()})
	if err != nil {
		return fmt.Errorf("marshaling webhook body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("posting to webhook: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		bodyBytes, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return &StatusError{Service: "webhook", StatusCode: resp.StatusCode, Body: string(bodyBytes)}
	}

	c.logger.Debug().Str("project_id", post.ProjectID).Msg("Webhook delivered")
	return nil
}
