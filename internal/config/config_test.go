package config_test

import (
	"os"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/lexgate/lexgate/internal/config"
)

func TestLoad(t *testing.T) {
	t.Run("should load config with defaults", func(t *testing.T) {
		// Clear environment
		os.Clearenv()

		cfg := config.Load()

		require.NotNil(t, cfg)

		// Verify defaults
		require.Equal(t, 8080, cfg.Server.Port)
		require.Equal(t, 30, cfg.Server.ReadTimeout)
		require.Equal(t, 120, cfg.Server.WriteTimeout)
		require.Equal(t, "https://api.openai.com/v1", cfg.OpenAI.BaseURL)
		require.Equal(t, 60, cfg.OpenAI.Timeout)
		require.Empty(t, cfg.OpenAI.APIKey)
		require.Equal(t, "localhost:6379", cfg.Redis.Addr)
		require.False(t, cfg.Cache.Enabled)
		require.Equal(t, 0.95, cfg.Cache.Threshold)
		require.False(t, cfg.Retrieval.Enabled)
		require.Equal(t, 3, cfg.Retrieval.MaxResults)
		require.Equal(t, 0.5, cfg.Retrieval.MinScore)
		require.Equal(t, 3, cfg.Resilience.MaxAttempts)
		require.Equal(t, 2, cfg.Resilience.FallbackAttempts)
		require.Equal(t, 500, cfg.Resilience.BaseDelayMs)
		require.Equal(t, 250, cfg.Resilience.MaxJitterMs)
	})

	t.Run("should load config from environment variables", func(t *testing.T) {
		// Set environment variables using t.Setenv for automatic cleanup
		t.Setenv("SERVER_PORT", "9000")
		t.Setenv("SERVER_READ_TIMEOUT", "60")
		t.Setenv("SERVER_WRITE_TIMEOUT", "60")
		t.Setenv("OPENAI_API_KEY", "sk-test-key")
		t.Setenv("OPENAI_BASE_URL", "https://test.openai.com")
		t.Setenv("OPENAI_TIMEOUT", "120")
		t.Setenv("REDIS_ADDR", "redis:6380")
		t.Setenv("CACHE_ENABLED", "true")
		t.Setenv("CACHE_SIMILARITY_THRESHOLD", "0.9")
		t.Setenv("RETRIEVAL_ENABLED", "true")
		t.Setenv("RETRIEVAL_MIN_SCORE", "0.7")
		t.Setenv("RESILIENCE_MAX_ATTEMPTS", "5")

		cfg := config.Load()

		require.NotNil(t, cfg)

		// Verify loaded values
		require.Equal(t, 9000, cfg.Server.Port)
		require.Equal(t, 60, cfg.Server.ReadTimeout)
		require.Equal(t, 60, cfg.Server.WriteTimeout)
		require.Equal(t, "sk-test-key", cfg.OpenAI.APIKey)
		require.Equal(t, "https://test.openai.com", cfg.OpenAI.BaseURL)
		require.Equal(t, 120, cfg.OpenAI.Timeout)
		require.Equal(t, "redis:6380", cfg.Redis.Addr)
		require.True(t, cfg.Cache.Enabled)
		require.Equal(t, 0.9, cfg.Cache.Threshold)
		require.True(t, cfg.Retrieval.Enabled)
		require.Equal(t, 0.7, cfg.Retrieval.MinScore)
		require.Equal(t, 5, cfg.Resilience.MaxAttempts)
	})
}
