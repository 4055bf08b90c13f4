package ai

import (
	"fmt"
	"time"

	"github.com/itsneelabh/nl2sparql/core"
)

// NewClient creates an AI client using registered providers
func NewClient(opts ...AIOption) (core.AIClient, error) {
	config := &AIConfig{
		Provider:    string(ProviderAuto),
		MaxRetries:  2,
		RetryDelay:  time.Second,
		Timeout:     core.DefaultGenerationTimeout,
		Temperature: 0.1,
		MaxTokens:   1024,
	}
	for _, opt := range opts {
		opt(config)
	}

	config.Logger = core.ComponentLogger(config.Logger, "framework/ai")
	logger := config.Logger

	logger.Info("Starting AI client creation", map[string]interface{}{
		"operation":        "ai_client_creation",
		"provider_setting": config.Provider,
		"auto_detect":      config.Provider == string(ProviderAuto),
	})

	if config.Provider == "" || config.Provider == string(ProviderAuto) {
		provider, err := detectBestProvider(logger)
		if err != nil {
			return nil, fmt.Errorf("no AI provider available: %w", err)
		}
		config.Provider = provider
	}

	factory, exists := GetProvider(config.Provider)
	if !exists {
		logger.Error("AI provider not registered", map[string]interface{}{
			"operation":           "ai_provider_lookup",
			"requested_provider":  config.Provider,
			"available_providers": ListProviders(),
		})
		return nil, &core.FrameworkError{
			Op:      "ai.NewClient",
			Kind:    "configuration",
			ID:      config.Provider,
			Message: fmt.Sprintf("provider not registered; import _ \"github.com/itsneelabh/nl2sparql/ai/providers/%s\"", config.Provider),
			Err:     core.ErrInvalidConfiguration,
		}
	}

	client, err := factory.Create(config)
	if err != nil {
		return nil, &core.FrameworkError{Op: "ai.NewClient", Kind: "configuration", ID: config.Provider, Err: err}
	}

	logger.Info("AI client created successfully", map[string]interface{}{
		"operation":   "ai_client_creation",
		"provider":    config.Provider,
		"client_type": fmt.Sprintf("%T", client),
		"status":      "success",
	})
	return client, nil
}

// MustNewClient creates a new AI client and panics on error
func MustNewClient(opts ...AIOption) core.AIClient {
	client, err := NewClient(opts...)
	if err != nil {
		panic(fmt.Sprintf("failed to create AI client: %v", err))
	}
	return client
}
