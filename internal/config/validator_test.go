package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() *Config {
	cfg := DefaultConfig()
	cfg.Remote.Endpoint = "https://graph.example.com"
	cfg.Sources = []SourceConfig{
		{Pattern: "docs/**/*.md", Collection: "docs"},
		{Pattern: "src/**/*.go", Collection: "code", Extensions: []string{".go"}},
	}
	return cfg
}

func TestValidate(t *testing.T) {
	t.Run("valid config", func(t *testing.T) {
		assert.NoError(t, validConfig().Validate())
	})

	t.Run("missing endpoint", func(t *testing.T) {
		cfg := validConfig()
		cfg.Remote.Endpoint = ""
		assert.ErrorContains(t, cfg.Validate(), "endpoint is required")
	})

	t.Run("bad endpoint scheme", func(t *testing.T) {
		cfg := validConfig()
		cfg.Remote.Endpoint = "ftp://graph.example.com"
		assert.ErrorContains(t, cfg.Validate(), "http or https")
	})

	t.Run("no sources", func(t *testing.T) {
		cfg := validConfig()
		cfg.Sources = nil
		assert.ErrorContains(t, cfg.Validate(), "at least one content source")
	})

	t.Run("source missing collection", func(t *testing.T) {
		cfg := validConfig()
		cfg.Sources[0].Collection = ""
		assert.Error(t, cfg.Validate())
	})

	t.Run("duplicate source", func(t *testing.T) {
		cfg := validConfig()
		cfg.Sources = append(cfg.Sources, cfg.Sources[0])
		assert.ErrorContains(t, cfg.Validate(), "duplicate source")
	})

	t.Run("extension without dot", func(t *testing.T) {
		cfg := validConfig()
		cfg.Sources[1].Extensions = []string{"go"}
		assert.ErrorContains(t, cfg.Validate(), "must start with a dot")
	})

	t.Run("batch size bounds", func(t *testing.T) {
		cfg := validConfig()
		cfg.Sync.BatchSize = 0
		assert.ErrorContains(t, cfg.Validate(), "batch_size must be positive")

		cfg.Sync.BatchSize = 100
		assert.ErrorContains(t, cfg.Validate(), "exceeds the maximum")
	})

	t.Run("poll timeout shorter than interval", func(t *testing.T) {
		cfg := validConfig()
		cfg.Sync.PollInterval = 60
		cfg.Sync.PollTimeout = 30
		assert.ErrorContains(t, cfg.Validate(), "at least the poll_interval")
	})

	t.Run("invalid search type", func(t *testing.T) {
		cfg := validConfig()
		cfg.Search.Type = "VIBES"
		assert.ErrorContains(t, cfg.Validate(), "invalid search type")
	})

	t.Run("invalid cron schedule", func(t *testing.T) {
		cfg := validConfig()
		cfg.Watch.Schedule = "every day at noon"
		assert.ErrorContains(t, cfg.Validate(), "invalid watch schedule")
	})

	t.Run("valid cron schedule", func(t *testing.T) {
		cfg := validConfig()
		cfg.Watch.Schedule = "*/15 * * * *"
		assert.NoError(t, cfg.Validate())
	})
}

func TestValidateSourcesSchema(t *testing.T) {
	t.Run("valid sources", func(t *testing.T) {
		require.NoError(t, ValidateSourcesSchema([]SourceConfig{
			{Pattern: "docs/*.md", Collection: "docs"},
		}))
	})

	t.Run("collection with invalid characters", func(t *testing.T) {
		err := ValidateSourcesSchema([]SourceConfig{
			{Pattern: "docs/*.md", Collection: "my docs!"},
		})
		assert.ErrorContains(t, err, "invalid sources configuration")
	})
}
