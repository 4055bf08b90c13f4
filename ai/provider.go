// Package ai provides the text-generation client used to write SPARQL
// queries and prose answers. Providers register themselves from init
// functions; import the ones you need:
//
//	import _ "github.com/itsneelabh/nl2sparql/ai/providers/openai"
package ai

import (
	"time"

	"github.com/itsneelabh/nl2sparql/core"
)

// Provider represents an AI provider type
type Provider string

// Standard provider constants
const (
	ProviderOpenAI  Provider = "openai"
	ProviderBedrock Provider = "bedrock"
	ProviderMock    Provider = "mock"
	ProviderAuto    Provider = "auto" // Auto-detect from environment
)

// AIConfig holds configuration for AI client creation
type AIConfig struct {
	Provider string

	// API credentials
	APIKey  string
	BaseURL string
	Region  string

	// Connection settings
	Timeout    time.Duration
	MaxRetries int
	RetryDelay time.Duration

	// Model defaults, used when a call leaves them unset
	Model       string
	Temperature float32
	MaxTokens   int

	Logger    core.Logger
	Telemetry core.Telemetry

	Headers map[string]string
}

// AIOption configures an AI client
type AIOption func(*AIConfig)

// WithProvider sets the AI provider
func WithProvider(provider string) AIOption {
	return func(c *AIConfig) {
		c.Provider = provider
	}
}

// WithAPIKey sets the API key
func WithAPIKey(key string) AIOption {
	return func(c *AIConfig) {
		c.APIKey = key
	}
}

// WithBaseURL sets the base URL for OpenAI-compatible services
func WithBaseURL(url string) AIOption {
	return func(c *AIConfig) {
		c.BaseURL = url
	}
}

// WithRegion sets the AWS region for the Bedrock provider
func WithRegion(region string) AIOption {
	return func(c *AIConfig) {
		c.Region = region
	}
}

// WithTimeout sets the request timeout
func WithTimeout(timeout time.Duration) AIOption {
	return func(c *AIConfig) {
		c.Timeout = timeout
	}
}

// WithMaxRetries sets how many times a transient failure is retried
func WithMaxRetries(retries int) AIOption {
	return func(c *AIConfig) {
		c.MaxRetries = retries
	}
}

// WithRetryDelay sets the initial backoff between retries
func WithRetryDelay(d time.Duration) AIOption {
	return func(c *AIConfig) {
		c.RetryDelay = d
	}
}

// WithModel sets the model to use
func WithModel(model string) AIOption {
	return func(c *AIConfig) {
		c.Model = model
	}
}

// WithTemperature sets the temperature for generation
func WithTemperature(temp float32) AIOption {
	return func(c *AIConfig) {
		c.Temperature = temp
	}
}

// WithMaxTokens sets the maximum tokens for generation
func WithMaxTokens(tokens int) AIOption {
	return func(c *AIConfig) {
		c.MaxTokens = tokens
	}
}

// WithHeaders sets custom headers
func WithHeaders(headers map[string]string) AIOption {
	return func(c *AIConfig) {
		if c.Headers == nil {
			c.Headers = make(map[string]string)
		}
		for k, v := range headers {
			c.Headers[k] = v
		}
	}
}

// WithLogger sets the logger for AI operations
func WithLogger(logger core.Logger) AIOption {
	return func(c *AIConfig) {
		c.Logger = logger
	}
}

// WithTelemetry sets the telemetry provider so each request gets a span.
func WithTelemetry(telemetry core.Telemetry) AIOption {
	return func(c *AIConfig) {
		c.Telemetry = telemetry
	}
}

// OptionsFrom maps the application configuration onto client options.
func OptionsFrom(cfg core.AIConfig) []AIOption {
	return []AIOption{
		WithProvider(firstNonEmpty(cfg.Provider, string(ProviderAuto))),
		WithAPIKey(cfg.APIKey),
		WithBaseURL(cfg.BaseURL),
		WithRegion(cfg.Region),
		WithTimeout(cfg.Timeout),
		WithMaxRetries(cfg.RetryAttempts),
		WithRetryDelay(cfg.RetryDelay),
		WithModel(cfg.Model),
		WithTemperature(cfg.Temperature),
		WithMaxTokens(cfg.MaxTokens),
	}
}

// firstNonEmpty returns the first non-empty string from the provided values
func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
