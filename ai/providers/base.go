// Package providers holds the plumbing shared by AI provider clients:
// defaults, retries, tracing and request logging.
package providers

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/itsneelabh/nl2sparql/core"
	"github.com/itsneelabh/nl2sparql/resilience"
	"github.com/itsneelabh/nl2sparql/telemetry"
)

// BaseClient provides common functionality for all AI providers
type BaseClient struct {
	// HTTPClient is traced; providers built on an SDK pass it through.
	HTTPClient *http.Client

	Logger    core.Logger
	Telemetry core.Telemetry

	// Retry configuration
	MaxRetries int
	RetryDelay time.Duration

	// Defaults applied to unset call options
	DefaultModel        string
	DefaultTemperature  float32
	DefaultMaxTokens    int
	DefaultSystemPrompt string
}

// NewBaseClient creates a new base client with defaults
func NewBaseClient(timeout time.Duration, logger core.Logger) *BaseClient {
	return &BaseClient{
		HTTPClient:         telemetry.NewTracedHTTPClient(nil, timeout),
		Logger:             core.ComponentLogger(logger, "framework/ai"),
		Telemetry:          &core.NoOpTelemetry{},
		MaxRetries:         2,
		RetryDelay:         time.Second,
		DefaultTemperature: 0.1,
		DefaultMaxTokens:   1024,
	}
}

// SetTelemetry enables spans for provider calls.
func (b *BaseClient) SetTelemetry(t core.Telemetry) {
	if t != nil {
		b.Telemetry = t
	}
}

// StartSpan opens a span on the configured telemetry provider.
func (b *BaseClient) StartSpan(ctx context.Context, name string) (context.Context, core.Span) {
	return b.Telemetry.StartSpan(ctx, name)
}

// ExecuteWithRetry runs fn, retrying transient failures with exponential
// backoff. fn should classify its errors with HandleError or
// ClassifyTransportError so only retryable ones are repeated.
func (b *BaseClient) ExecuteWithRetry(ctx context.Context, provider string, fn func() error) error {
	cfg := resilience.DefaultRetryConfig()
	cfg.MaxAttempts = b.MaxRetries + 1
	if b.RetryDelay > 0 {
		cfg.InitialDelay = b.RetryDelay
	}
	cfg.MaxDelay = 30 * time.Second

	attempt := 0
	cfg.RetryIf = func(err error) bool {
		if !core.IsRetryable(err) {
			return false
		}
		b.Logger.Warn("AI request failed, retrying", map[string]interface{}{
			"operation":   "ai_request_retry",
			"provider":    provider,
			"attempt":     attempt,
			"max_retries": b.MaxRetries,
			"error":       err.Error(),
		})
		return true
	}

	err := resilience.Retry(ctx, cfg, func() error {
		attempt++
		return fn()
	})
	if err != nil {
		b.Logger.Error("AI request failed", map[string]interface{}{
			"operation": "ai_request_final_failure",
			"provider":  provider,
			"attempts":  attempt,
			"error":     err.Error(),
		})
		return err
	}
	if attempt > 1 {
		b.Logger.Info("AI request succeeded after retry", map[string]interface{}{
			"operation": "ai_request_recovery",
			"provider":  provider,
			"attempts":  attempt,
		})
	}
	return nil
}

// ApplyDefaults returns a copy of options with unset fields defaulted.
func (b *BaseClient) ApplyDefaults(options *core.AIOptions) *core.AIOptions {
	out := core.AIOptions{}
	if options != nil {
		out = *options
	}
	if out.Model == "" {
		out.Model = b.DefaultModel
	}
	if out.Temperature == 0 {
		out.Temperature = b.DefaultTemperature
	}
	if out.MaxTokens == 0 {
		out.MaxTokens = b.DefaultMaxTokens
	}
	if out.SystemPrompt == "" {
		out.SystemPrompt = b.DefaultSystemPrompt
	}
	return &out
}

// HandleError maps an HTTP status from a provider onto the core error
// kinds. Rate limits and server errors are retryable.
func (b *BaseClient) HandleError(statusCode int, message, provider string) error {
	switch {
	case statusCode == http.StatusUnauthorized || statusCode == http.StatusForbidden:
		return fmt.Errorf("%s API error: invalid or missing API key: %w", provider, core.ErrInvalidConfiguration)
	case statusCode == http.StatusTooManyRequests:
		return fmt.Errorf("%s API error: rate limit exceeded: %w", provider, core.ErrRequestFailed)
	case statusCode >= 500:
		return fmt.Errorf("%s API error: service temporarily unavailable (status %d): %w", provider, statusCode, core.ErrRequestFailed)
	case statusCode == http.StatusBadRequest:
		return fmt.Errorf("%s API error: invalid request - %s: %w", provider, message, core.ErrInvalidInput)
	default:
		return fmt.Errorf("%s API error (status %d): %s", provider, statusCode, message)
	}
}

// ClassifyTransportError marks network failures and timeouts as
// retryable. Caller cancellation is returned as is.
func ClassifyTransportError(ctx context.Context, err error, provider string) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		return fmt.Errorf("%s request timed out: %v: %w", provider, err, core.ErrTimeout)
	}
	return fmt.Errorf("%s request failed: %v: %w", provider, err, core.ErrConnectionFailed)
}

// LogRequest logs outgoing API requests
func (b *BaseClient) LogRequest(provider string, options *core.AIOptions, prompt string) {
	b.Logger.Debug("AI request initiated", map[string]interface{}{
		"operation":     "ai_request",
		"provider":      provider,
		"model":         options.Model,
		"prompt_length": len(prompt),
		"max_tokens":    options.MaxTokens,
		"temperature":   options.Temperature,
	})
}

// LogResponse logs API responses and records token metrics.
func (b *BaseClient) LogResponse(provider, model string, tokens core.TokenUsage, start time.Time) {
	duration := time.Since(start)
	telemetry.Duration(telemetry.MetricAIRequestDuration, start, "provider", provider, "status", "success")
	telemetry.Histogram(telemetry.MetricAIPromptTokens, float64(tokens.PromptTokens), "provider", provider)
	telemetry.Histogram(telemetry.MetricAICompletionTokens, float64(tokens.CompletionTokens), "provider", provider)

	fields := map[string]interface{}{
		"operation":         "ai_response",
		"provider":          provider,
		"model":             model,
		"prompt_tokens":     tokens.PromptTokens,
		"completion_tokens": tokens.CompletionTokens,
		"total_tokens":      tokens.TotalTokens,
		"duration_ms":       duration.Milliseconds(),
		"status":            "success",
	}
	if duration > 0 {
		fields["tokens_per_second"] = float64(tokens.TotalTokens) / duration.Seconds()
	}
	b.Logger.Info("AI response received", fields)
}

// LogFailure records a failed request.
func (b *BaseClient) LogFailure(provider, phase string, err error, start time.Time) {
	telemetry.Duration(telemetry.MetricAIRequestDuration, start, "provider", provider, "status", "error")
	b.Logger.Error("AI request failed", map[string]interface{}{
		"operation": "ai_request_error",
		"provider":  provider,
		"phase":     phase,
		"error":     err.Error(),
	})
}
