package config

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/kelseyhightower/envconfig"
)

// SecretPrefix marks a config value that must be fetched from Secret Manager,
// e.g. DB_CONNECTION_STRING=sm://projects/p/secrets/db-dsn/versions/latest.
const SecretPrefix = "sm://"

type Config struct {
	Environment string `envconfig:"ENV" default:"development"`
	Port        string `envconfig:"PORT" default:"8080" validate:"required,numeric"`

	// Store settings
	DBDriver           string `envconfig:"DB_DRIVER" default:"sqlite" validate:"oneof=sqlite postgres"`
	DBPath             string `envconfig:"DB_PATH" default:"rezoning.db" validate:"required_if=DBDriver sqlite"`
	DBConnectionString string `envconfig:"DB_CONNECTION_STRING" validate:"required_if=DBDriver postgres"`

	// Admin API
	AdminJWTSecret string `envconfig:"ADMIN_JWT_SECRET"`

	// Summarize stage settings
	SummarizeQueueName   string `envconfig:"SUMMARIZE_QUEUE_NAME" default:"summarize" validate:"required"`
	SummarizeMaxAttempts int    `envconfig:"SUMMARIZE_MAX_ATTEMPTS" default:"3" validate:"min=1"`
	SummarizerBaseURL    string `envconfig:"SUMMARIZER_BASE_URL" validate:"omitempty,url"`
	SummarizerTimeoutSec int    `envconfig:"SUMMARIZER_TIMEOUT_SEC" default:"60" validate:"min=1"`

	// Pub/Sub publish stage settings
	PubSubQueueName    string `envconfig:"PUBSUB_QUEUE_NAME" default:"publish_pubsub" validate:"required"`
	PubSubMaxAttempts  int    `envconfig:"PUBSUB_MAX_ATTEMPTS" default:"3" validate:"min=1"`
	PubSubTopic        string `envconfig:"PUBSUB_TOPIC" default:"rezoning-posts"`
	PubSubEmulatorHost string `envconfig:"PUBSUB_EMULATOR_HOST"`
	GCPProjectID       string `envconfig:"GCP_PROJECT_ID"`

	// Webhook publish stage settings
	WebhookQueueName   string `envconfig:"WEBHOOK_QUEUE_NAME" default:"publish_webhook" validate:"required"`
	WebhookMaxAttempts int    `envconfig:"WEBHOOK_MAX_ATTEMPTS" default:"3" validate:"min=1"`
	WebhookURL         string `envconfig:"WEBHOOK_URL"`

	PollIntervalSec int `envconfig:"POLL_INTERVAL_SEC" default:"30" validate:"min=1"`

	// Dead-letter archive (S3-compatible)
	S3URL       string `envconfig:"S3_URL"`
	S3Bucket    string `envconfig:"S3_BUCKET"`
	S3Region    string `envconfig:"S3_REGION" default:"us-east-1"`
	S3AccessKey string `envconfig:"S3_ACCESS_KEY"`
	S3SecretKey string `envconfig:"S3_SECRET_KEY"`
}

// Load reads the configuration from the environment and validates it.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	validate := validator.New(validator.WithRequiredStructEnabled())
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

func (c *Config) PollInterval() time.Duration {
	return time.Duration(c.PollIntervalSec) * time.Second
}

func (c *Config) SummarizerTimeout() time.Duration {
	return time.Duration(c.SummarizerTimeoutSec) * time.Second
}

// ArchiveEnabled reports whether dead-letter export to S3 is configured.
func (c *Config) ArchiveEnabled() bool {
	return c.S3Bucket != ""
}

func (c *Config) PubSubEnabled() bool {
	return c.GCPProjectID != ""
}

func (c *Config) WebhookEnabled() bool {
	return c.WebhookURL != ""
}

// SecretAccessor fetches the payload of a Secret Manager secret version.
type SecretAccessor interface {
	AccessSecret(ctx context.Context, name string) (string, error)
}

// ResolveSecrets replaces every sm:// value with the secret it points to.
func (c *Config) ResolveSecrets(ctx context.Context, accessor SecretAccessor) error {
	fields := map[string]*string{
		"DB_CONNECTION_STRING": &c.DBConnectionString,
		"ADMIN_JWT_SECRET":     &c.AdminJWTSecret,
		"WEBHOOK_URL":          &c.WebhookURL,
		"S3_ACCESS_KEY":        &c.S3AccessKey,
		"S3_SECRET_KEY":        &c.S3SecretKey,
	}
	for key, field := range fields {
		if !strings.HasPrefix(*field, SecretPrefix) {
			continue
		}
		value, err := accessor.AccessSecret(ctx, strings.TrimPrefix(*field, SecretPrefix))
		if err != nil {
			return fmt.Errorf("resolving %s: %w", key, err)
		}
		*field = value
	}
	return nil
}

// HasSecretRefs reports whether any value needs Secret Manager resolution.
func (c *Config) HasSecretRefs() bool {
	for _, v := range []string{c.DBConnectionString, c.AdminJWTSecret, c.WebhookURL, c.S3AccessKey, c.S3SecretKey} {
		if strings.HasPrefix(v, SecretPrefix) {
			return true
		}
	}
	return false
}
