package config

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "sqlite", cfg.DBDriver)
	assert.Equal(t, "rezoning.db", cfg.DBPath)
	assert.Equal(t, "summarize", cfg.SummarizeQueueName)
	assert.Equal(t, "publish_pubsub", cfg.PubSubQueueName)
	assert.Equal(t, "publish_webhook", cfg.WebhookQueueName)
	assert.Equal(t, 3, cfg.SummarizeMaxAttempts)
	assert.Equal(t, 30*time.Second, cfg.PollInterval())
	assert.Equal(t, 60*time.Second, cfg.SummarizerTimeout())
	assert.False(t, cfg.ArchiveEnabled())
	assert.False(t, cfg.PubSubEnabled())
	assert.False(t, cfg.WebhookEnabled())
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("DB_DRIVER", "postgres")
	t.Setenv("DB_CONNECTION_STRING", "postgres://relay@localhost:5432/relay")
	t.Setenv("WEBHOOK_MAX_ATTEMPTS", "5")
	t.Setenv("POLL_INTERVAL_SEC", "2")
	t.Setenv("S3_BUCKET", "archive")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "postgres", cfg.DBDriver)
	assert.Equal(t, 5, cfg.WebhookMaxAttempts)
	assert.Equal(t, 2*time.Second, cfg.PollInterval())
	assert.True(t, cfg.ArchiveEnabled())
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{"unknown driver", map[string]string{"DB_DRIVER": "mysql"}},
		{"postgres without dsn", map[string]string{"DB_DRIVER": "postgres"}},
		{"zero attempts", map[string]string{"SUMMARIZE_MAX_ATTEMPTS": "0"}},
		{"bad summarizer url", map[string]string{"SUMMARIZER_BASE_URL": "not a url"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := Load()
			require.Error(t, err)
		})
	}
}

type fakeAccessor map[string]string

func (f fakeAccessor) AccessSecret(ctx context.Context, name string) (string, error) {
	v, ok := f[name]
	if !ok {
		return "", errors.New("secret not found: " + name)
	}
	return v, nil
}

func TestResolveSecrets(t *testing.T) {
	cfg := &Config{
		DBConnectionString: "sm://projects/p/secrets/db/versions/latest",
		AdminJWTSecret:     "plain",
		WebhookURL:         "sm://projects/p/secrets/hook/versions/latest",
	}
	require.True(t, cfg.HasSecretRefs())

	err := cfg.ResolveSecrets(context.Background(), fakeAccessor{
		"projects/p/secrets/db/versions/latest":   "postgres://db",
		"projects/p/secrets/hook/versions/latest": "https://hooks.example.org/x",
	})
	require.NoError(t, err)
	assert.Equal(t, "postgres://db", cfg.DBConnectionString)
	assert.Equal(t, "plain", cfg.AdminJWTSecret)
	assert.Equal(t, "https://hooks.example.org/x", cfg.WebhookURL)
	assert.False(t, cfg.HasSecretRefs())
}

func TestResolveSecretsError(t *testing.T) {
	cfg := &Config{S3SecretKey: "sm://missing"}
	err := cfg.ResolveSecrets(context.Background(), fakeAccessor{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "S3_SECRET_KEY")
}
