package config_test

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/davidbz/runrelay/internal/config"
)

func TestLoad(t *testing.T) {
	t.Run("should load config with defaults", func(t *testing.T) {
		// Clear environment
		os.Clearenv()

		cfg, err := config.Load()

		require.NoError(t, err)
		require.NotNil(t, cfg)

		require.Equal(t, 8080, cfg.Server.Port)
		require.Equal(t, 30, cfg.Server.ReadTimeout)
		require.Equal(t, 0, cfg.Server.WriteTimeout)
		require.Equal(t, []string{"*"}, cfg.CORS.AllowedOrigins)
		require.Empty(t, cfg.Auth.SecretToken)
		require.Equal(t, "https://api.runpod.ai/v2", cfg.RunPod.BaseURL)
		require.Equal(t, 30*time.Second, cfg.RunPod.Timeout)
		require.Empty(t, cfg.RunPod.APIToken)
		require.Equal(t, 200*time.Millisecond, cfg.Relay.PollInterval)
		require.Equal(t, 300*time.Millisecond, cfg.Relay.SchemaBackoff)
		require.False(t, cfg.Redis.Enabled())
		require.Equal(t, 24*time.Hour, cfg.Redis.LedgerTTL)
		require.Equal(t, "models.yaml", cfg.Catalog.File)
		require.Equal(t, "info", cfg.Log.Level)
	})

	t.Run("should load config from environment variables", func(t *testing.T) {
		// Set environment variables using t.Setenv for automatic cleanup
		t.Setenv("SERVER_PORT", "9000")
		t.Setenv("SERVER_WRITE_TIMEOUT", "60")
		t.Setenv("API_SECRET_TOKEN", "s3cret")
		t.Setenv("RUNPOD_API_TOKEN", "rp-key")
		t.Setenv("RUNPOD_BASE_URL", "http://localhost:9999/v2")
		t.Setenv("RUNPOD_TIMEOUT", "5s")
		t.Setenv("RELAY_POLL_INTERVAL", "50ms")
		t.Setenv("RELAY_SCHEMA_BACKOFF", "1s")
		t.Setenv("REDIS_ADDR", "localhost:6379")
		t.Setenv("REDIS_DB", "2")
		t.Setenv("LEDGER_TTL", "1h")
		t.Setenv("MODELS_FILE", "/etc/runrelay/models.yaml")
		t.Setenv("LOG_LEVEL", "debug")

		cfg, err := config.Load()

		require.NoError(t, err)
		require.Equal(t, 9000, cfg.Server.Port)
		require.Equal(t, 60, cfg.Server.WriteTimeout)
		require.Equal(t, "s3cret", cfg.Auth.SecretToken)
		require.Equal(t, "rp-key", cfg.RunPod.APIToken)
		require.Equal(t, "http://localhost:9999/v2", cfg.RunPod.BaseURL)
		require.Equal(t, 5*time.Second, cfg.RunPod.Timeout)
		require.Equal(t, 50*time.Millisecond, cfg.Relay.PollInterval)
		require.Equal(t, time.Second, cfg.Relay.SchemaBackoff)
		require.True(t, cfg.Redis.Enabled())
		require.Equal(t, 2, cfg.Redis.DB)
		require.Equal(t, time.Hour, cfg.Redis.LedgerTTL)
		require.Equal(t, "/etc/runrelay/models.yaml", cfg.Catalog.File)
		require.Equal(t, "debug", cfg.Log.Level)
	})

	t.Run("should fail on malformed values", func(t *testing.T) {
		t.Setenv("RELAY_POLL_INTERVAL", "soon")

		_, err := config.Load()
		require.Error(t, err)
	})

	t.Run("should expose sub-configs for injection", func(t *testing.T) {
		os.Clearenv()

		cfg, err := config.Load()
		require.NoError(t, err)

		deps := config.ParseDependenciesConfig(cfg)
		require.Same(t, &cfg.Server, deps.Server)
		require.Same(t, &cfg.Relay, deps.Relay)
		require.Same(t, &cfg.Catalog, deps.Catalog)
	})
}
