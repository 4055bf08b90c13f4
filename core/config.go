package core

import (
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all configuration options for the query pipeline.
// It supports layered configuration priority:
//  1. Default values (lowest priority)
//  2. Environment variables
//  3. Config file (JSON or YAML), when WithConfigFile is used
//  4. Functional options (highest priority)
//
// Example usage:
//
//	cfg, err := NewConfig(
//	    WithEndpoint("https://data.europa.eu/sparql"),
//	    WithBudgets(2, 1),
//	)
//	if err != nil {
//	    log.Fatal(err)
//	}
type Config struct {
	// Name identifies the service in logs and traces
	Name string `json:"name" yaml:"name" env:"NL2SPARQL_NAME" default:"nl2sparql"`

	// Endpoint is the SPARQL endpoint queries are executed against
	Endpoint string `json:"endpoint" yaml:"endpoint" env:"NL2SPARQL_ENDPOINT" default:"https://data.europa.eu/sparql"`

	Pipeline    PipelineConfig    `json:"pipeline" yaml:"pipeline"`
	AI          AIConfig          `json:"ai" yaml:"ai"`
	Embedding   EmbeddingConfig   `json:"embedding" yaml:"embedding"`
	Store       StoreConfig       `json:"store" yaml:"store"`
	Schema      SchemaConfig      `json:"schema" yaml:"schema"`
	Redis       RedisConfig       `json:"redis" yaml:"redis"`
	Resilience  ResilienceConfig  `json:"resilience" yaml:"resilience"`
	Telemetry   TelemetryConfig   `json:"telemetry" yaml:"telemetry"`
	Logging     LoggingConfig     `json:"logging" yaml:"logging"`
	Development DevelopmentConfig `json:"development" yaml:"development"`
}

// PipelineConfig bounds the generate/execute retry loop and the prompt size.
// Budgets count retries, not calls: a generation budget of 2 allows one
// initial generation plus two regenerations.
type PipelineConfig struct {
	GenerationBudget  int           `json:"generation_budget" yaml:"generation_budget" env:"NL2SPARQL_GENERATION_BUDGET" default:"2"`
	ExecutionBudget   int           `json:"execution_budget" yaml:"execution_budget" env:"NL2SPARQL_EXECUTION_BUDGET" default:"1"`
	ExecutionTimeout  time.Duration `json:"execution_timeout" yaml:"execution_timeout" env:"NL2SPARQL_EXECUTION_TIMEOUT" default:"30s"`
	GenerationTimeout time.Duration `json:"generation_timeout" yaml:"generation_timeout" env:"NL2SPARQL_GENERATION_TIMEOUT" default:"60s"`
	MaxExamples       int           `json:"max_examples" yaml:"max_examples" env:"NL2SPARQL_MAX_EXAMPLES" default:"3"`
	MaxClasses        int           `json:"max_classes" yaml:"max_classes" env:"NL2SPARQL_MAX_CLASSES" default:"10"`
	MaxProperties     int           `json:"max_properties" yaml:"max_properties" env:"NL2SPARQL_MAX_PROPERTIES" default:"15"`
	Synthesizer       string        `json:"synthesizer" yaml:"synthesizer" env:"NL2SPARQL_SYNTHESIZER" default:"template"`
	MaxAnswerRows     int           `json:"max_answer_rows" yaml:"max_answer_rows" env:"NL2SPARQL_MAX_ANSWER_ROWS" default:"10"`
}

// AIConfig configures the text-generation service used for query generation
// and, optionally, answer synthesis.
//
// RetryAttempts retries transient transport failures (429, 5xx, connection
// errors) inside a single GenerateResponse call. The pipeline itself never
// retries a generation error; set it to 0 to fail on the first one.
type AIConfig struct {
	Provider      string        `json:"provider" yaml:"provider" env:"NL2SPARQL_AI_PROVIDER" default:"auto"`
	APIKey        string        `json:"api_key" yaml:"api_key" env:"NL2SPARQL_AI_API_KEY,OPENAI_API_KEY"`
	BaseURL       string        `json:"base_url" yaml:"base_url" env:"NL2SPARQL_AI_BASE_URL"`
	Region        string        `json:"region" yaml:"region" env:"NL2SPARQL_AI_REGION,AWS_REGION"`
	Model         string        `json:"model" yaml:"model" env:"NL2SPARQL_AI_MODEL" default:"gpt-4o"`
	Temperature   float32       `json:"temperature" yaml:"temperature" env:"NL2SPARQL_AI_TEMPERATURE" default:"0.1"`
	MaxTokens     int           `json:"max_tokens" yaml:"max_tokens" env:"NL2SPARQL_AI_MAX_TOKENS" default:"1024"`
	Timeout       time.Duration `json:"timeout" yaml:"timeout" env:"NL2SPARQL_AI_TIMEOUT" default:"60s"`
	RetryAttempts int           `json:"retry_attempts" yaml:"retry_attempts" env:"NL2SPARQL_AI_RETRY_ATTEMPTS" default:"2"`
	RetryDelay    time.Duration `json:"retry_delay" yaml:"retry_delay" env:"NL2SPARQL_AI_RETRY_DELAY" default:"1s"`
}

// EmbeddingConfig selects the text-to-vector collaborator for the example
// store. "http" calls an OpenAI-compatible /embeddings endpoint (OpenAI, TEI,
// LocalAI); "hash" is a local deterministic feature-hashing embedder.
type EmbeddingConfig struct {
	Provider     string        `json:"provider" yaml:"provider" env:"NL2SPARQL_EMBEDDING_PROVIDER" default:"hash"`
	BaseURL      string        `json:"base_url" yaml:"base_url" env:"NL2SPARQL_EMBEDDING_BASE_URL"`
	APIKey       string        `json:"api_key" yaml:"api_key" env:"NL2SPARQL_EMBEDDING_API_KEY"`
	Model        string        `json:"model" yaml:"model" env:"NL2SPARQL_EMBEDDING_MODEL" default:"all-MiniLM-L6-v2"`
	Dimensions   int           `json:"dimensions" yaml:"dimensions" env:"NL2SPARQL_EMBEDDING_DIMENSIONS" default:"384"`
	Timeout      time.Duration `json:"timeout" yaml:"timeout" env:"NL2SPARQL_EMBEDDING_TIMEOUT" default:"30s"`
	CacheEnabled bool          `json:"cache_enabled" yaml:"cache_enabled" env:"NL2SPARQL_EMBEDDING_CACHE" default:"true"`
	CacheMaxCost int64         `json:"cache_max_cost" yaml:"cache_max_cost" env:"NL2SPARQL_EMBEDDING_CACHE_MAX_COST" default:"67108864"`
	CacheTTL     time.Duration `json:"cache_ttl" yaml:"cache_ttl" env:"NL2SPARQL_EMBEDDING_CACHE_TTL" default:"1h"`
}

// StoreConfig configures the example store's vector index.
type StoreConfig struct {
	Provider     string `json:"provider" yaml:"provider" env:"NL2SPARQL_STORE_PROVIDER" default:"memory"`
	SeedOnStart  bool   `json:"seed_on_start" yaml:"seed_on_start" env:"NL2SPARQL_STORE_SEED" default:"true"`
	ExamplesFile string `json:"examples_file" yaml:"examples_file" env:"NL2SPARQL_STORE_EXAMPLES_FILE"`
}

// SchemaConfig configures schema snapshot extraction and caching.
type SchemaConfig struct {
	TTL               time.Duration `json:"ttl" yaml:"ttl" env:"NL2SPARQL_SCHEMA_TTL" default:"24h"`
	Persist           bool          `json:"persist" yaml:"persist" env:"NL2SPARQL_SCHEMA_PERSIST" default:"false"`
	ExtractionTimeout time.Duration `json:"extraction_timeout" yaml:"extraction_timeout" env:"NL2SPARQL_SCHEMA_EXTRACTION_TIMEOUT" default:"60s"`
}

// RedisConfig is shared by the Redis-backed example index and schema store.
type RedisConfig struct {
	URL    string `json:"url" yaml:"url" env:"NL2SPARQL_REDIS_URL,REDIS_URL"`
	Prefix string `json:"prefix" yaml:"prefix" env:"NL2SPARQL_REDIS_PREFIX" default:"nl2sparql:"`
}

// ResilienceConfig contains fault tolerance settings for the SPARQL endpoint.
type ResilienceConfig struct {
	CircuitBreaker CircuitBreakerConfig `json:"circuit_breaker" yaml:"circuit_breaker"`
	Retry          RetryConfig          `json:"retry" yaml:"retry"`
}

// CircuitBreakerConfig defines circuit breaker pattern settings.
// When open, executions fail fast with a request error instead of reaching
// the endpoint.
type CircuitBreakerConfig struct {
	Enabled          bool          `json:"enabled" yaml:"enabled" env:"NL2SPARQL_CB_ENABLED" default:"false"`
	Threshold        int           `json:"threshold" yaml:"threshold" env:"NL2SPARQL_CB_THRESHOLD" default:"5"`
	Timeout          time.Duration `json:"timeout" yaml:"timeout" env:"NL2SPARQL_CB_TIMEOUT" default:"30s"`
	HalfOpenRequests int           `json:"half_open_requests" yaml:"half_open_requests" env:"NL2SPARQL_CB_HALF_OPEN" default:"1"`
}

// RetryConfig defines retry settings with exponential backoff for
// out-of-band operations (schema extraction, seeding).
// Formula: interval = min(InitialInterval * (Multiplier ^ attempt), MaxInterval)
type RetryConfig struct {
	MaxAttempts     int           `json:"max_attempts" yaml:"max_attempts" env:"NL2SPARQL_RETRY_MAX_ATTEMPTS" default:"3"`
	InitialInterval time.Duration `json:"initial_interval" yaml:"initial_interval" env:"NL2SPARQL_RETRY_INITIAL_INTERVAL" default:"500ms"`
	MaxInterval     time.Duration `json:"max_interval" yaml:"max_interval" env:"NL2SPARQL_RETRY_MAX_INTERVAL" default:"5s"`
	Multiplier      float64       `json:"multiplier" yaml:"multiplier" env:"NL2SPARQL_RETRY_MULTIPLIER" default:"2.0"`
}

// TelemetryConfig contains tracing and metrics configuration.
// Exporter "otlp" ships spans to an OTLP gRPC receiver at Endpoint,
// "otlp-http" to an OTLP/HTTP receiver; "stdout" pretty-prints them for
// local runs. Metrics are pushed over
// OTLP/HTTP to MetricsEndpoint when it is set.
type TelemetryConfig struct {
	Enabled         bool    `json:"enabled" yaml:"enabled" env:"NL2SPARQL_TELEMETRY_ENABLED" default:"false"`
	Exporter        string  `json:"exporter" yaml:"exporter" env:"NL2SPARQL_TELEMETRY_EXPORTER" default:"otlp"`
	Endpoint        string  `json:"endpoint" yaml:"endpoint" env:"NL2SPARQL_TELEMETRY_ENDPOINT,OTEL_EXPORTER_OTLP_ENDPOINT"`
	MetricsEndpoint string  `json:"metrics_endpoint" yaml:"metrics_endpoint" env:"NL2SPARQL_TELEMETRY_METRICS_ENDPOINT"`
	ServiceName     string  `json:"service_name" yaml:"service_name" env:"NL2SPARQL_TELEMETRY_SERVICE_NAME,OTEL_SERVICE_NAME"`
	SamplingRate    float64 `json:"sampling_rate" yaml:"sampling_rate" env:"NL2SPARQL_TELEMETRY_SAMPLING_RATE" default:"1.0"`
	Insecure        bool    `json:"insecure" yaml:"insecure" env:"NL2SPARQL_TELEMETRY_INSECURE" default:"true"`
}

// LoggingConfig contains logging configuration.
// Supports structured (JSON) and human-readable (text) formats.
type LoggingConfig struct {
	Level      string `json:"level" yaml:"level" env:"NL2SPARQL_LOG_LEVEL" default:"info"`
	Format     string `json:"format" yaml:"format" env:"NL2SPARQL_LOG_FORMAT" default:"json"`
	Output     string `json:"output" yaml:"output" env:"NL2SPARQL_LOG_OUTPUT" default:"stdout"`
	TimeFormat string `json:"time_format" yaml:"time_format" env:"NL2SPARQL_LOG_TIME_FORMAT"`
}

// DevelopmentConfig contains settings for local development and testing.
//
// WARNING: Never enable development mode in production!
type DevelopmentConfig struct {
	Enabled      bool `json:"enabled" yaml:"enabled" env:"NL2SPARQL_DEV_MODE" default:"false"`
	MockAI       bool `json:"mock_ai" yaml:"mock_ai" env:"NL2SPARQL_MOCK_AI" default:"false"`
	DebugLogging bool `json:"debug_logging" yaml:"debug_logging" env:"NL2SPARQL_DEBUG" default:"false"`
	PrettyLogs   bool `json:"pretty_logs" yaml:"pretty_logs" env:"NL2SPARQL_PRETTY_LOGS" default:"false"`
}

// Option is a functional option for configuring the pipeline.
// Options are applied in order and can return an error if the configuration is invalid.
type Option func(*Config) error

// DefaultConfig returns a configuration with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Name:     "nl2sparql",
		Endpoint: DefaultEndpoint,
		Pipeline: PipelineConfig{
			GenerationBudget:  DefaultGenerationBudget,
			ExecutionBudget:   DefaultExecutionBudget,
			ExecutionTimeout:  DefaultExecutionTimeout,
			GenerationTimeout: DefaultGenerationTimeout,
			MaxExamples:       DefaultMaxExamples,
			MaxClasses:        DefaultMaxClasses,
			MaxProperties:     DefaultMaxProperties,
			Synthesizer:       "template",
			MaxAnswerRows:     10,
		},
		AI: AIConfig{
			Provider:      "auto",
			Model:         DefaultAIModel,
			Temperature:   0.1,
			MaxTokens:     1024,
			Timeout:       60 * time.Second,
			RetryAttempts: 2,
			RetryDelay:    1 * time.Second,
		},
		Embedding: EmbeddingConfig{
			Provider:     "hash",
			Model:        "all-MiniLM-L6-v2",
			Dimensions:   384,
			Timeout:      30 * time.Second,
			CacheEnabled: true,
			CacheMaxCost: 64 << 20, // 64MB
			CacheTTL:     1 * time.Hour,
		},
		Store: StoreConfig{
			Provider:    "memory",
			SeedOnStart: true,
		},
		Schema: SchemaConfig{
			TTL:               DefaultSchemaCacheTTL,
			Persist:           false,
			ExtractionTimeout: 60 * time.Second,
		},
		Redis: RedisConfig{
			Prefix: DefaultRedisPrefix,
		},
		Resilience: ResilienceConfig{
			CircuitBreaker: CircuitBreakerConfig{
				Enabled:          false,
				Threshold:        5,
				Timeout:          30 * time.Second,
				HalfOpenRequests: 1,
			},
			Retry: RetryConfig{
				MaxAttempts:     3,
				InitialInterval: 500 * time.Millisecond,
				MaxInterval:     5 * time.Second,
				Multiplier:      2.0,
			},
		},
		Telemetry: TelemetryConfig{
			Enabled:      false,
			Exporter:     "otlp",
			SamplingRate: 1.0,
			Insecure:     true,
		},
		Logging: LoggingConfig{
			Level:      "info",
			Format:     "json",
			Output:     "stdout",
			TimeFormat: time.RFC3339Nano,
		},
	}
}

// LoadFromEnv loads configuration from environment variables.
// Environment variables take precedence over defaults but are overridden by
// config files and functional options.
//
// Variable naming convention:
//   - Module-specific: NL2SPARQL_<SETTING>
//   - Standard variables: REDIS_URL, OPENAI_API_KEY, OTEL_EXPORTER_OTLP_ENDPOINT
func (c *Config) LoadFromEnv() error {
	if v := os.Getenv("NL2SPARQL_NAME"); v != "" {
		c.Name = v
	}
	if v := os.Getenv(EnvEndpoint); v != "" {
		c.Endpoint = v
	}

	// Pipeline settings
	if err := envInt("NL2SPARQL_GENERATION_BUDGET", &c.Pipeline.GenerationBudget); err != nil {
		return err
	}
	if err := envInt("NL2SPARQL_EXECUTION_BUDGET", &c.Pipeline.ExecutionBudget); err != nil {
		return err
	}
	if err := envDuration("NL2SPARQL_EXECUTION_TIMEOUT", &c.Pipeline.ExecutionTimeout); err != nil {
		return err
	}
	if err := envDuration("NL2SPARQL_GENERATION_TIMEOUT", &c.Pipeline.GenerationTimeout); err != nil {
		return err
	}
	if err := envInt("NL2SPARQL_MAX_EXAMPLES", &c.Pipeline.MaxExamples); err != nil {
		return err
	}
	if err := envInt("NL2SPARQL_MAX_CLASSES", &c.Pipeline.MaxClasses); err != nil {
		return err
	}
	if err := envInt("NL2SPARQL_MAX_PROPERTIES", &c.Pipeline.MaxProperties); err != nil {
		return err
	}
	if v := os.Getenv("NL2SPARQL_SYNTHESIZER"); v != "" {
		c.Pipeline.Synthesizer = v
	}
	if err := envInt("NL2SPARQL_MAX_ANSWER_ROWS", &c.Pipeline.MaxAnswerRows); err != nil {
		return err
	}

	// AI settings
	if v := os.Getenv("NL2SPARQL_AI_PROVIDER"); v != "" {
		c.AI.Provider = v
	}
	if v := os.Getenv("NL2SPARQL_AI_API_KEY"); v != "" {
		c.AI.APIKey = v
	} else if v := os.Getenv("OPENAI_API_KEY"); v != "" {
		c.AI.APIKey = v
	}
	if v := os.Getenv("NL2SPARQL_AI_BASE_URL"); v != "" {
		c.AI.BaseURL = v
	}
	if v := os.Getenv("NL2SPARQL_AI_REGION"); v != "" {
		c.AI.Region = v
	} else if v := os.Getenv("AWS_REGION"); v != "" {
		c.AI.Region = v
	}
	if v := os.Getenv("NL2SPARQL_AI_MODEL"); v != "" {
		c.AI.Model = v
	}
	if v := os.Getenv("NL2SPARQL_AI_TEMPERATURE"); v != "" {
		f, err := strconv.ParseFloat(v, 32)
		if err != nil {
			return envError("NL2SPARQL_AI_TEMPERATURE", v, err)
		}
		c.AI.Temperature = float32(f)
	}
	if err := envInt("NL2SPARQL_AI_MAX_TOKENS", &c.AI.MaxTokens); err != nil {
		return err
	}
	if err := envDuration("NL2SPARQL_AI_TIMEOUT", &c.AI.Timeout); err != nil {
		return err
	}
	if err := envInt("NL2SPARQL_AI_RETRY_ATTEMPTS", &c.AI.RetryAttempts); err != nil {
		return err
	}

	// Embedding settings
	if v := os.Getenv("NL2SPARQL_EMBEDDING_PROVIDER"); v != "" {
		c.Embedding.Provider = v
	}
	if v := os.Getenv("NL2SPARQL_EMBEDDING_BASE_URL"); v != "" {
		c.Embedding.BaseURL = v
	}
	if v := os.Getenv("NL2SPARQL_EMBEDDING_API_KEY"); v != "" {
		c.Embedding.APIKey = v
	}
	if v := os.Getenv("NL2SPARQL_EMBEDDING_MODEL"); v != "" {
		c.Embedding.Model = v
	}
	if err := envInt("NL2SPARQL_EMBEDDING_DIMENSIONS", &c.Embedding.Dimensions); err != nil {
		return err
	}
	if v := os.Getenv("NL2SPARQL_EMBEDDING_CACHE"); v != "" {
		c.Embedding.CacheEnabled = parseBool(v)
	}

	// Store settings
	if v := os.Getenv("NL2SPARQL_STORE_PROVIDER"); v != "" {
		c.Store.Provider = v
	}
	if v := os.Getenv("NL2SPARQL_STORE_SEED"); v != "" {
		c.Store.SeedOnStart = parseBool(v)
	}
	if v := os.Getenv("NL2SPARQL_STORE_EXAMPLES_FILE"); v != "" {
		c.Store.ExamplesFile = v
	}

	// Schema settings
	if err := envDuration("NL2SPARQL_SCHEMA_TTL", &c.Schema.TTL); err != nil {
		return err
	}
	if v := os.Getenv("NL2SPARQL_SCHEMA_PERSIST"); v != "" {
		c.Schema.Persist = parseBool(v)
	}

	// Redis settings
	if v := os.Getenv("NL2SPARQL_REDIS_URL"); v != "" {
		c.Redis.URL = v
	} else if v := os.Getenv(EnvRedisURL); v != "" {
		c.Redis.URL = v
	}
	if v := os.Getenv("NL2SPARQL_REDIS_PREFIX"); v != "" {
		c.Redis.Prefix = v
	}

	// Resilience settings
	if v := os.Getenv("NL2SPARQL_CB_ENABLED"); v != "" {
		c.Resilience.CircuitBreaker.Enabled = parseBool(v)
	}
	if err := envInt("NL2SPARQL_CB_THRESHOLD", &c.Resilience.CircuitBreaker.Threshold); err != nil {
		return err
	}
	if err := envDuration("NL2SPARQL_CB_TIMEOUT", &c.Resilience.CircuitBreaker.Timeout); err != nil {
		return err
	}
	if err := envInt("NL2SPARQL_RETRY_MAX_ATTEMPTS", &c.Resilience.Retry.MaxAttempts); err != nil {
		return err
	}

	// Telemetry settings
	if v := os.Getenv("NL2SPARQL_TELEMETRY_ENABLED"); v != "" {
		c.Telemetry.Enabled = parseBool(v)
	}
	if v := os.Getenv("NL2SPARQL_TELEMETRY_EXPORTER"); v != "" {
		c.Telemetry.Exporter = v
	}
	if v := os.Getenv("NL2SPARQL_TELEMETRY_ENDPOINT"); v != "" {
		c.Telemetry.Endpoint = v
		c.Telemetry.Enabled = true // Auto-enable if endpoint is provided
	} else if v := os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"); v != "" {
		c.Telemetry.Endpoint = v
		c.Telemetry.Enabled = true
	}
	if v := os.Getenv("NL2SPARQL_TELEMETRY_METRICS_ENDPOINT"); v != "" {
		c.Telemetry.MetricsEndpoint = v
	}
	if v := os.Getenv("NL2SPARQL_TELEMETRY_SERVICE_NAME"); v != "" {
		c.Telemetry.ServiceName = v
	} else if v := os.Getenv("OTEL_SERVICE_NAME"); v != "" {
		c.Telemetry.ServiceName = v
	} else if c.Telemetry.ServiceName == "" {
		c.Telemetry.ServiceName = c.Name
	}

	// Logging settings
	if v := os.Getenv("NL2SPARQL_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv("NL2SPARQL_LOG_FORMAT"); v != "" {
		c.Logging.Format = v
	}
	if v := os.Getenv("NL2SPARQL_LOG_OUTPUT"); v != "" {
		c.Logging.Output = v
	}

	// Development settings
	if v := os.Getenv(EnvDevMode); v != "" {
		c.Development.Enabled = parseBool(v)
		if c.Development.Enabled {
			c.Development.PrettyLogs = true
			c.Logging.Level = "debug"
			c.Logging.Format = "text"
		}
	}
	if v := os.Getenv("NL2SPARQL_MOCK_AI"); v != "" {
		c.Development.MockAI = parseBool(v)
	}
	if v := os.Getenv("NL2SPARQL_DEBUG"); v != "" {
		c.Development.DebugLogging = parseBool(v)
		if c.Development.DebugLogging {
			c.Logging.Level = "debug"
		}
	}

	return nil
}

// LoadFromFile loads configuration from a JSON or YAML file.
// Only keys present in the file are changed.
//
// Example YAML:
//
//	endpoint: https://data.europa.eu/sparql
//	pipeline:
//	  generation_budget: 2
//	  execution_timeout: 30s
//	store:
//	  provider: redis
//	redis:
//	  url: redis://localhost:6379
func (c *Config) LoadFromFile(path string) error {
	cleanPath := filepath.Clean(path)

	ext := filepath.Ext(cleanPath)
	if ext != ".json" && ext != ".yaml" && ext != ".yml" {
		return fmt.Errorf("unsupported config file extension %s: %w", ext, ErrInvalidConfiguration)
	}

	if !filepath.IsAbs(cleanPath) {
		wd, err := os.Getwd()
		if err != nil {
			return fmt.Errorf("failed to get working directory: %w", err)
		}
		cleanPath = filepath.Join(wd, cleanPath)
	}

	data, err := os.ReadFile(filepath.Clean(cleanPath)) // nosec G304 -- path is validated
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", cleanPath, err)
	}

	switch ext {
	case ".json":
		if err := json.Unmarshal(data, c); err != nil {
			return fmt.Errorf("failed to parse JSON config file: %v: %w", err, ErrInvalidConfiguration)
		}
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, c); err != nil {
			return fmt.Errorf("failed to parse YAML config file: %v: %w", err, ErrInvalidConfiguration)
		}
	}

	return nil
}

// Validate checks if the configuration is valid and returns an error if not.
// This method is called automatically by NewConfig().
func (c *Config) Validate() error {
	if c.Name == "" {
		return configError("service name is required", ErrMissingConfiguration)
	}

	if c.Endpoint == "" {
		return configError("SPARQL endpoint is required", ErrMissingConfiguration)
	}
	u, err := url.Parse(c.Endpoint)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return configError(fmt.Sprintf("invalid SPARQL endpoint: %q", c.Endpoint), ErrInvalidConfiguration)
	}

	if c.Pipeline.GenerationBudget < 0 || c.Pipeline.ExecutionBudget < 0 {
		return configError(fmt.Sprintf("retry budgets must be non-negative (generation=%d, execution=%d)",
			c.Pipeline.GenerationBudget, c.Pipeline.ExecutionBudget), ErrInvalidConfiguration)
	}
	if c.Pipeline.ExecutionTimeout <= 0 || c.Pipeline.GenerationTimeout <= 0 {
		return configError("pipeline timeouts must be positive", ErrInvalidConfiguration)
	}
	if c.Pipeline.MaxExamples < 0 || c.Pipeline.MaxClasses < 0 || c.Pipeline.MaxProperties < 0 {
		return configError("prompt bounds must be non-negative", ErrInvalidConfiguration)
	}
	switch c.Pipeline.Synthesizer {
	case "template", "ai":
	default:
		return configError(fmt.Sprintf("unknown synthesizer %q (want template or ai)", c.Pipeline.Synthesizer), ErrInvalidConfiguration)
	}

	if c.AI.Provider == "openai" && c.AI.APIKey == "" && c.AI.BaseURL == "" && !c.Development.MockAI {
		return configError("AI API key is required for the openai provider (or use mock AI in development)", ErrMissingConfiguration)
	}

	switch c.Embedding.Provider {
	case "hash":
		if c.Embedding.Dimensions <= 0 {
			return configError("embedding dimensions must be positive", ErrInvalidConfiguration)
		}
	case "http":
		if c.Embedding.BaseURL == "" {
			return configError("embedding base URL is required for the http embedding provider", ErrMissingConfiguration)
		}
	default:
		return configError(fmt.Sprintf("unknown embedding provider %q (want hash or http)", c.Embedding.Provider), ErrInvalidConfiguration)
	}

	switch c.Store.Provider {
	case "memory":
	case "redis":
		if c.Redis.URL == "" {
			return configError("redis URL is required for the redis example store", ErrMissingConfiguration)
		}
	default:
		return configError(fmt.Sprintf("unknown store provider %q (want memory or redis)", c.Store.Provider), ErrInvalidConfiguration)
	}

	if c.Schema.Persist && c.Redis.URL == "" {
		return configError("redis URL is required when schema persistence is enabled", ErrMissingConfiguration)
	}
	if c.Schema.TTL <= 0 {
		return configError("schema TTL must be positive", ErrInvalidConfiguration)
	}

	if exporter := strings.ToLower(c.Telemetry.Exporter); c.Telemetry.Enabled && c.Telemetry.Endpoint == "" &&
		(exporter == "" || strings.HasPrefix(exporter, "otlp")) {
		return configError("telemetry endpoint is required for the otlp exporters", ErrMissingConfiguration)
	}

	return nil
}

// Helper functions

func configError(message string, err error) error {
	return &FrameworkError{
		Op:      "Config.Validate",
		Kind:    "config",
		Message: message,
		Err:     err,
	}
}

func envError(name, value string, err error) error {
	return &FrameworkError{
		Op:      "Config.LoadFromEnv",
		Kind:    "config",
		ID:      name,
		Message: fmt.Sprintf("invalid value %q for %s: %v", value, name, err),
		Err:     ErrInvalidConfiguration,
	}
}

func envInt(name string, dst *int) error {
	v := os.Getenv(name)
	if v == "" {
		return nil
	}
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		return envError(name, v, err)
	}
	*dst = n
	return nil
}

func envDuration(name string, dst *time.Duration) error {
	v := os.Getenv(name)
	if v == "" {
		return nil
	}
	d, err := time.ParseDuration(strings.TrimSpace(v))
	if err != nil {
		return envError(name, v, err)
	}
	*dst = d
	return nil
}

// parseBool converts a string to a boolean value.
// Accepts: "true", "1", "yes", "on" (case-insensitive) as true.
// Everything else is false.
func parseBool(s string) bool {
	s = strings.ToLower(strings.TrimSpace(s))
	return s == "true" || s == "1" || s == "yes" || s == "on"
}

// Functional Options

// WithName sets the service name used in logs and traces.
func WithName(name string) Option {
	return func(c *Config) error {
		c.Name = name
		return nil
	}
}

// WithEndpoint sets the SPARQL endpoint.
func WithEndpoint(endpoint string) Option {
	return func(c *Config) error {
		c.Endpoint = endpoint
		return nil
	}
}

// WithBudgets sets the generation and execution retry budgets.
func WithBudgets(generation, execution int) Option {
	return func(c *Config) error {
		if generation < 0 || execution < 0 {
			return fmt.Errorf("budgets must be non-negative: %w", ErrInvalidConfiguration)
		}
		c.Pipeline.GenerationBudget = generation
		c.Pipeline.ExecutionBudget = execution
		return nil
	}
}

// WithExecutionTimeout sets the hard timeout for each SPARQL execution.
func WithExecutionTimeout(timeout time.Duration) Option {
	return func(c *Config) error {
		if timeout <= 0 {
			return fmt.Errorf("execution timeout must be positive: %w", ErrInvalidConfiguration)
		}
		c.Pipeline.ExecutionTimeout = timeout
		return nil
	}
}

// WithSynthesizer selects "template" or "ai" answer synthesis.
func WithSynthesizer(kind string) Option {
	return func(c *Config) error {
		c.Pipeline.Synthesizer = kind
		return nil
	}
}

// WithAI sets the text-generation provider and its API key.
func WithAI(provider, apiKey string) Option {
	return func(c *Config) error {
		c.AI.Provider = provider
		c.AI.APIKey = apiKey
		return nil
	}
}

// WithAIModel sets the model used for generation.
func WithAIModel(model string) Option {
	return func(c *Config) error {
		c.AI.Model = model
		return nil
	}
}

// WithEmbedding configures an OpenAI-compatible embedding service.
func WithEmbedding(baseURL, model, apiKey string) Option {
	return func(c *Config) error {
		c.Embedding.Provider = "http"
		c.Embedding.BaseURL = baseURL
		c.Embedding.Model = model
		c.Embedding.APIKey = apiKey
		return nil
	}
}

// WithRedisURL sets the Redis URL and switches the example store and schema
// persistence to Redis.
func WithRedisURL(redisURL string) Option {
	return func(c *Config) error {
		if redisURL == "" {
			return fmt.Errorf("redis URL cannot be empty: %w", ErrInvalidConfiguration)
		}
		c.Redis.URL = redisURL
		c.Store.Provider = "redis"
		c.Schema.Persist = true
		return nil
	}
}

// WithSchemaTTL sets how long a schema snapshot stays fresh.
func WithSchemaTTL(ttl time.Duration) Option {
	return func(c *Config) error {
		c.Schema.TTL = ttl
		return nil
	}
}

// WithCircuitBreaker enables the endpoint circuit breaker.
func WithCircuitBreaker(threshold int, timeout time.Duration) Option {
	return func(c *Config) error {
		c.Resilience.CircuitBreaker.Enabled = true
		c.Resilience.CircuitBreaker.Threshold = threshold
		c.Resilience.CircuitBreaker.Timeout = timeout
		return nil
	}
}

// WithTelemetry enables tracing with the given exporter ("otlp" or "stdout").
func WithTelemetry(exporter, endpoint string) Option {
	return func(c *Config) error {
		c.Telemetry.Enabled = true
		c.Telemetry.Exporter = exporter
		c.Telemetry.Endpoint = endpoint
		return nil
	}
}

// WithLogLevel sets the logging level.
func WithLogLevel(level string) Option {
	return func(c *Config) error {
		c.Logging.Level = level
		return nil
	}
}

// WithLogFormat sets the logging format ("json" or "text").
func WithLogFormat(format string) Option {
	return func(c *Config) error {
		if format != "json" && format != "text" {
			return fmt.Errorf("invalid log format %q: %w", format, ErrInvalidConfiguration)
		}
		c.Logging.Format = format
		return nil
	}
}

// WithConfigFile loads settings from a JSON or YAML file.
func WithConfigFile(path string) Option {
	return func(c *Config) error {
		return c.LoadFromFile(path)
	}
}

// WithDevelopmentMode enables development mode: text logs at debug level.
func WithDevelopmentMode(enabled bool) Option {
	return func(c *Config) error {
		c.Development.Enabled = enabled
		if enabled {
			c.Development.PrettyLogs = true
			c.Logging.Format = "text"
			c.Logging.Level = "debug"
		}
		return nil
	}
}

// WithMockAI routes generation to the mock provider.
func WithMockAI(enabled bool) Option {
	return func(c *Config) error {
		c.Development.MockAI = enabled
		if enabled {
			c.AI.Provider = "mock"
		}
		return nil
	}
}

// NewConfig creates a new configuration with the provided options.
// Configuration is applied in the following order:
//  1. Default values from DefaultConfig()
//  2. Environment variables via LoadFromEnv()
//  3. Functional options (highest priority)
//  4. Validation via Validate()
func NewConfig(opts ...Option) (*Config, error) {
	cfg := DefaultConfig()

	if err := cfg.LoadFromEnv(); err != nil {
		return nil, fmt.Errorf("failed to load env config: %w", err)
	}

	for _, opt := range opts {
		if err := opt(cfg); err != nil {
			return nil, fmt.Errorf("failed to apply option: %w", err)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}
