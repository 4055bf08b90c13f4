package core

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestDefaultConfig verifies that DefaultConfig returns valid defaults
func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.NotNil(t, cfg)
	assert.Equal(t, "nl2sparql", cfg.Name)
	assert.Equal(t, "https://data.europa.eu/sparql", cfg.Endpoint)

	// Pipeline defaults
	assert.Equal(t, 2, cfg.Pipeline.GenerationBudget)
	assert.Equal(t, 1, cfg.Pipeline.ExecutionBudget)
	assert.Equal(t, 30*time.Second, cfg.Pipeline.ExecutionTimeout)
	assert.Equal(t, 3, cfg.Pipeline.MaxExamples)
	assert.Equal(t, 10, cfg.Pipeline.MaxClasses)
	assert.Equal(t, 15, cfg.Pipeline.MaxProperties)
	assert.Equal(t, "template", cfg.Pipeline.Synthesizer)

	// AI defaults
	assert.Equal(t, "auto", cfg.AI.Provider)
	assert.Equal(t, "gpt-4o", cfg.AI.Model)
	assert.InDelta(t, 0.1, cfg.AI.Temperature, 1e-6)
	assert.Equal(t, 2, cfg.AI.RetryAttempts)

	// Store and schema defaults
	assert.Equal(t, "memory", cfg.Store.Provider)
	assert.Equal(t, "hash", cfg.Embedding.Provider)
	assert.Equal(t, 24*time.Hour, cfg.Schema.TTL)
	assert.Equal(t, "nl2sparql:", cfg.Redis.Prefix)

	assert.False(t, cfg.Telemetry.Enabled)
	assert.False(t, cfg.Resilience.CircuitBreaker.Enabled)
	assert.Equal(t, "info", cfg.Logging.Level)

	require.NoError(t, cfg.Validate())
}

// TestLoadFromEnv verifies environment variable loading
func TestLoadFromEnv(t *testing.T) {
	t.Setenv("NL2SPARQL_ENDPOINT", "https://example.org/sparql")
	t.Setenv("NL2SPARQL_GENERATION_BUDGET", "4")
	t.Setenv("NL2SPARQL_EXECUTION_BUDGET", "0")
	t.Setenv("NL2SPARQL_EXECUTION_TIMEOUT", "5s")
	t.Setenv("NL2SPARQL_AI_MODEL", "gpt-4o-mini")
	t.Setenv("NL2SPARQL_AI_TEMPERATURE", "0.3")
	t.Setenv("OPENAI_API_KEY", "sk-test-key")
	t.Setenv("REDIS_URL", "redis://test-redis:6379")
	t.Setenv("NL2SPARQL_STORE_PROVIDER", "redis")
	t.Setenv("NL2SPARQL_SCHEMA_PERSIST", "yes")
	t.Setenv("OTEL_EXPORTER_OTLP_ENDPOINT", "otel-collector:4317")
	t.Setenv("NL2SPARQL_DEV_MODE", "true")

	cfg := DefaultConfig()
	require.NoError(t, cfg.LoadFromEnv())

	assert.Equal(t, "https://example.org/sparql", cfg.Endpoint)
	assert.Equal(t, 4, cfg.Pipeline.GenerationBudget)
	assert.Equal(t, 0, cfg.Pipeline.ExecutionBudget)
	assert.Equal(t, 5*time.Second, cfg.Pipeline.ExecutionTimeout)
	assert.Equal(t, "gpt-4o-mini", cfg.AI.Model)
	assert.InDelta(t, 0.3, cfg.AI.Temperature, 1e-6)
	assert.Equal(t, "sk-test-key", cfg.AI.APIKey)
	assert.Equal(t, "redis://test-redis:6379", cfg.Redis.URL)
	assert.Equal(t, "redis", cfg.Store.Provider)
	assert.True(t, cfg.Schema.Persist)

	// Telemetry auto-enables when an endpoint is present
	assert.True(t, cfg.Telemetry.Enabled)
	assert.Equal(t, "otel-collector:4317", cfg.Telemetry.Endpoint)
	assert.Equal(t, "nl2sparql", cfg.Telemetry.ServiceName)

	// Dev mode switches to readable logs
	assert.True(t, cfg.Development.Enabled)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, "text", cfg.Logging.Format)
}

func TestLoadFromEnv_InvalidValues(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value string
	}{
		{"non-numeric budget", "NL2SPARQL_GENERATION_BUDGET", "two"},
		{"bad duration", "NL2SPARQL_EXECUTION_TIMEOUT", "thirty"},
		{"bad temperature", "NL2SPARQL_AI_TEMPERATURE", "warm"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.key, tt.value)

			err := DefaultConfig().LoadFromEnv()
			require.Error(t, err)
			assert.True(t, IsConfigurationError(err))

			var fe *FrameworkError
			require.True(t, errors.As(err, &fe))
			assert.Equal(t, tt.key, fe.ID)
		})
	}
}

// TestLoadFromFile verifies JSON and YAML file loading
func TestLoadFromFile(t *testing.T) {
	t.Run("json", func(t *testing.T) {
		configFile := filepath.Join(t.TempDir(), "config.json")

		configData := map[string]interface{}{
			"name":     "file-pipeline",
			"endpoint": "https://file.example.org/sparql",
			"pipeline": map[string]interface{}{
				"generation_budget": 5,
				"max_examples":      2,
			},
			"logging": map[string]interface{}{
				"level":  "warn",
				"format": "text",
			},
		}
		jsonData, err := json.MarshalIndent(configData, "", "  ")
		require.NoError(t, err)
		require.NoError(t, os.WriteFile(configFile, jsonData, 0o644))

		cfg := DefaultConfig()
		require.NoError(t, cfg.LoadFromFile(configFile))

		assert.Equal(t, "file-pipeline", cfg.Name)
		assert.Equal(t, "https://file.example.org/sparql", cfg.Endpoint)
		assert.Equal(t, 5, cfg.Pipeline.GenerationBudget)
		assert.Equal(t, 2, cfg.Pipeline.MaxExamples)
		// Untouched keys keep their defaults
		assert.Equal(t, 1, cfg.Pipeline.ExecutionBudget)
		assert.Equal(t, "warn", cfg.Logging.Level)
	})

	t.Run("yaml", func(t *testing.T) {
		configFile := filepath.Join(t.TempDir(), "config.yaml")
		yamlData := `
endpoint: https://yaml.example.org/sparql
pipeline:
  execution_timeout: 12s
  synthesizer: ai
store:
  provider: redis
redis:
  url: redis://localhost:6379
  prefix: "test:"
`
		require.NoError(t, os.WriteFile(configFile, []byte(yamlData), 0o644))

		cfg := DefaultConfig()
		require.NoError(t, cfg.LoadFromFile(configFile))

		assert.Equal(t, "https://yaml.example.org/sparql", cfg.Endpoint)
		assert.Equal(t, 12*time.Second, cfg.Pipeline.ExecutionTimeout)
		assert.Equal(t, "ai", cfg.Pipeline.Synthesizer)
		assert.Equal(t, "redis", cfg.Store.Provider)
		assert.Equal(t, "test:", cfg.Redis.Prefix)
		require.NoError(t, cfg.Validate())
	})

	t.Run("unsupported extension", func(t *testing.T) {
		err := DefaultConfig().LoadFromFile("config.toml")
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrInvalidConfiguration)
	})

	t.Run("missing file", func(t *testing.T) {
		err := DefaultConfig().LoadFromFile(filepath.Join(t.TempDir(), "missing.yaml"))
		require.Error(t, err)
	})
}

// TestValidate verifies configuration validation
func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		setup   func(*Config)
		wantErr error
	}{
		{
			name:  "defaults are valid",
			setup: func(c *Config) {},
		},
		{
			name:    "empty endpoint",
			setup:   func(c *Config) { c.Endpoint = "" },
			wantErr: ErrMissingConfiguration,
		},
		{
			name:    "endpoint without scheme",
			setup:   func(c *Config) { c.Endpoint = "data.europa.eu/sparql" },
			wantErr: ErrInvalidConfiguration,
		},
		{
			name:    "negative budget",
			setup:   func(c *Config) { c.Pipeline.GenerationBudget = -1 },
			wantErr: ErrInvalidConfiguration,
		},
		{
			name:  "zero budgets are allowed",
			setup: func(c *Config) { c.Pipeline.GenerationBudget = 0; c.Pipeline.ExecutionBudget = 0 },
		},
		{
			name:    "zero execution timeout",
			setup:   func(c *Config) { c.Pipeline.ExecutionTimeout = 0 },
			wantErr: ErrInvalidConfiguration,
		},
		{
			name:    "unknown synthesizer",
			setup:   func(c *Config) { c.Pipeline.Synthesizer = "llm" },
			wantErr: ErrInvalidConfiguration,
		},
		{
			name:    "openai without key",
			setup:   func(c *Config) { c.AI.Provider = "openai"; c.AI.APIKey = "" },
			wantErr: ErrMissingConfiguration,
		},
		{
			name:  "openai without key in mock mode",
			setup: func(c *Config) { c.AI.Provider = "openai"; c.Development.MockAI = true },
		},
		{
			name:    "http embedding without base url",
			setup:   func(c *Config) { c.Embedding.Provider = "http" },
			wantErr: ErrMissingConfiguration,
		},
		{
			name:    "redis store without url",
			setup:   func(c *Config) { c.Store.Provider = "redis" },
			wantErr: ErrMissingConfiguration,
		},
		{
			name:    "unknown store",
			setup:   func(c *Config) { c.Store.Provider = "milvus" },
			wantErr: ErrInvalidConfiguration,
		},
		{
			name:    "schema persistence without redis",
			setup:   func(c *Config) { c.Schema.Persist = true },
			wantErr: ErrMissingConfiguration,
		},
		{
			name:    "otlp telemetry without endpoint",
			setup:   func(c *Config) { c.Telemetry.Enabled = true },
			wantErr: ErrMissingConfiguration,
		},
		{
			name:    "otlp-http telemetry without endpoint",
			setup:   func(c *Config) { c.Telemetry.Enabled = true; c.Telemetry.Exporter = "otlp-http" },
			wantErr: ErrMissingConfiguration,
		},
		{
			name:  "stdout telemetry without endpoint",
			setup: func(c *Config) { c.Telemetry.Enabled = true; c.Telemetry.Exporter = "stdout" },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.setup(cfg)

			err := cfg.Validate()
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.wantErr)

			var fe *FrameworkError
			require.True(t, errors.As(err, &fe))
			assert.Equal(t, "Config.Validate", fe.Op)
		})
	}
}

// TestNewConfig verifies option precedence over environment
func TestNewConfig(t *testing.T) {
	t.Setenv("NL2SPARQL_ENDPOINT", "https://env.example.org/sparql")
	t.Setenv("NL2SPARQL_GENERATION_BUDGET", "7")

	cfg, err := NewConfig(
		WithEndpoint("https://opt.example.org/sparql"),
		WithExecutionTimeout(3*time.Second),
		WithCircuitBreaker(3, time.Second),
	)
	require.NoError(t, err)

	assert.Equal(t, "https://opt.example.org/sparql", cfg.Endpoint)
	assert.Equal(t, 7, cfg.Pipeline.GenerationBudget)
	assert.Equal(t, 3*time.Second, cfg.Pipeline.ExecutionTimeout)
	assert.True(t, cfg.Resilience.CircuitBreaker.Enabled)
	assert.Equal(t, 3, cfg.Resilience.CircuitBreaker.Threshold)
}

func TestNewConfig_Options(t *testing.T) {
	t.Run("redis url switches stores", func(t *testing.T) {
		cfg, err := NewConfig(WithRedisURL("redis://localhost:6379"))
		require.NoError(t, err)
		assert.Equal(t, "redis", cfg.Store.Provider)
		assert.True(t, cfg.Schema.Persist)
	})

	t.Run("empty redis url", func(t *testing.T) {
		_, err := NewConfig(WithRedisURL(""))
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrInvalidConfiguration)
	})

	t.Run("negative budgets", func(t *testing.T) {
		_, err := NewConfig(WithBudgets(-1, 1))
		require.Error(t, err)
	})

	t.Run("mock ai", func(t *testing.T) {
		cfg, err := NewConfig(WithMockAI(true))
		require.NoError(t, err)
		assert.Equal(t, "mock", cfg.AI.Provider)
	})

	t.Run("development mode", func(t *testing.T) {
		cfg, err := NewConfig(WithDevelopmentMode(true))
		require.NoError(t, err)
		assert.Equal(t, "text", cfg.Logging.Format)
		assert.Equal(t, "debug", cfg.Logging.Level)
	})

	t.Run("invalid log format", func(t *testing.T) {
		_, err := NewConfig(WithLogFormat("xml"))
		require.Error(t, err)
	})
}

func TestParseBool(t *testing.T) {
	for _, s := range []string{"true", "TRUE", "1", "yes", " on "} {
		assert.True(t, parseBool(s), s)
	}
	for _, s := range []string{"false", "0", "no", "", "maybe"} {
		assert.False(t, parseBool(s), s)
	}
}
