package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"rezoning/internal/model"

	"github.com/rs/zerolog"
)

// SummaryClient turns a project into the short text that gets posted.
type SummaryClient interface {
	Summarize(ctx context.Context, project model.Project) (string, error)
}

type summaryClient struct {
	baseURL string
	client  *http.Client
	logger  zerolog.Logger
}

func NewSummaryClient(baseURL string, timeout time.Duration, logger zerolog.Logger) SummaryClient {
	return &summaryClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: timeout},
		logger:  logger.With().Str("service", "SummaryClient").Logger(),
	}
}

type SummarizeRequest struct {
	ProjectID   string   `json:"project_id"`
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Tags        []string `json:"tags,omitempty"`
}

type SummarizeResponse struct {
	Summary string `json:"summary"`
}

func (c *summaryClient) Summarize(ctx context.Context, project model.Project) (string, error) {
	reqBody := SummarizeRequest{
		ProjectID:   project.ID,
		Title:       strings.ReplaceAll(project.Name, "\n", ""),
		Description: project.Description,
		Tags:        project.Tags,
	}

	jsonBody, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("marshaling request body: %w", err)
	}

	url := fmt.Sprintf("%s/summarize", c.baseURL)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(jsonBody))
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("making request to summarizer: %w", err)
	}
	defer func() {
		if closeErr := resp.Body.Close(); closeErr != nil {
			c.logger.Warn().Err(closeErr).Msg("Failed to close response body")
		}
	}()

	if resp.StatusCode != http.StatusOK {
		bodyBytes, readErr := io.ReadAll(io.LimitReader(resp.Body, 4096))
		if readErr != nil {
			c.logger.Warn().Err(readErr).Int("status_code", resp.StatusCode).Msg("Failed to read error body from summarizer")
		}
		c.logger.Error().
			Int("status_code", resp.StatusCode).
			Str("error_body", string(bodyBytes)).
			Msg("Summarizer returned error")
		return "", &StatusError{Service: "summarizer", StatusCode: resp.StatusCode, Body: string(bodyBytes)}
	}

	var summaryResp SummarizeResponse
	if err := json.NewDecoder(resp.Body).Decode(&summaryResp); err != nil {
		return "", fmt.Errorf("decoding response: %w", err)
	}

	c.logger.Debug().
		Str("project_id", project.ID).
		Str("duration", time.Since(start).String()).
		Msg("Summarizer succeeded")
	return strings.TrimSpace(summaryResp.Summary), nil
}
