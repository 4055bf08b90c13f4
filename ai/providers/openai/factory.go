package openai

import (
	"os"

	"github.com/itsneelabh/nl2sparql/ai"
	"github.com/itsneelabh/nl2sparql/core"
)

// Factory implements ai.ProviderFactory for OpenAI-compatible services
type Factory struct{}

// Create creates a new OpenAI client instance
func (f *Factory) Create(config *ai.AIConfig) (core.AIClient, error) {
	apiKey := config.APIKey
	if apiKey == "" {
		apiKey = os.Getenv("OPENAI_API_KEY")
	}

	baseURL := config.BaseURL
	if baseURL == "" {
		baseURL = os.Getenv("OPENAI_BASE_URL")
	}

	client := NewClient(apiKey, baseURL, config.Timeout, config.Headers, config.Logger)
	client.SetTelemetry(config.Telemetry)

	if config.MaxRetries >= 0 {
		client.MaxRetries = config.MaxRetries
	}
	if config.RetryDelay > 0 {
		client.RetryDelay = config.RetryDelay
	}
	if config.Model != "" {
		client.DefaultModel = config.Model
	}
	if config.Temperature > 0 {
		client.DefaultTemperature = config.Temperature
	}
	if config.MaxTokens > 0 {
		client.DefaultMaxTokens = config.MaxTokens
	}
	return client, nil
}

// DetectEnvironment reports OpenAI as available when a key or a custom
// endpoint is configured.
func (f *Factory) DetectEnvironment() (priority int, available bool) {
	if os.Getenv("OPENAI_API_KEY") != "" {
		return 100, true
	}
	if os.Getenv("OPENAI_BASE_URL") != "" {
		return 50, true
	}
	return 0, false
}

// Name returns the provider name
func (f *Factory) Name() string {
	return providerName
}

// Description returns a human-readable description
func (f *Factory) Description() string {
	return "OpenAI-compatible chat completions (OpenAI, Groq, Ollama, LocalAI, etc.)"
}

func init() {
	ai.MustRegister(&Factory{})
}
