// Package openai implements the AI client for OpenAI and any service that
// speaks its chat completions API (Azure gateways, Groq, Ollama, LocalAI).
package openai

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/itsneelabh/nl2sparql/ai/providers"
	"github.com/itsneelabh/nl2sparql/core"
	"github.com/sashabaranov/go-openai"
)

const (
	providerName   = "openai"
	defaultBaseURL = "https://api.openai.com/v1"
	defaultModel   = core.DefaultAIModel
)

// Client implements core.AIClient over the chat completions API.
type Client struct {
	*providers.BaseClient
	api     *openai.Client
	apiKey  string
	baseURL string
}

// NewClient creates an OpenAI-compatible client. headers, if any, are
// added to every request.
func NewClient(apiKey, baseURL string, timeout time.Duration, headers map[string]string, logger core.Logger) *Client {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	if timeout <= 0 {
		timeout = core.DefaultGenerationTimeout
	}

	base := providers.NewBaseClient(timeout, logger)
	base.DefaultModel = defaultModel

	httpClient := base.HTTPClient
	if len(headers) > 0 {
		httpClient = &http.Client{
			Timeout:   httpClient.Timeout,
			Transport: &headerTransport{headers: headers, base: httpClient.Transport},
		}
		base.HTTPClient = httpClient
	}

	cfg := openai.DefaultConfig(apiKey)
	cfg.BaseURL = strings.TrimRight(baseURL, "/")
	cfg.HTTPClient = httpClient

	return &Client{
		BaseClient: base,
		api:        openai.NewClientWithConfig(cfg),
		apiKey:     apiKey,
		baseURL:    cfg.BaseURL,
	}
}

// headerTransport adds custom headers to requests
type headerTransport struct {
	headers map[string]string
	base    http.RoundTripper
}

func (t *headerTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	req = req.Clone(req.Context())
	for k, v := range t.headers {
		req.Header.Set(k, v)
	}
	return t.base.RoundTrip(req)
}

// GenerateResponse generates a response using the chat completions API.
func (c *Client) GenerateResponse(ctx context.Context, prompt string, options *core.AIOptions) (*core.AIResponse, error) {
	ctx, span := c.StartSpan(ctx, "ai.generate_response")
	defer span.End()
	span.SetAttribute("ai.provider", providerName)
	span.SetAttribute("ai.prompt_length", len(prompt))

	if c.apiKey == "" && c.baseURL == defaultBaseURL {
		err := fmt.Errorf("OpenAI API key not configured: %w", core.ErrMissingConfiguration)
		span.RecordError(err)
		return nil, err
	}

	options = c.ApplyDefaults(options)
	span.SetAttribute("ai.model", options.Model)
	c.LogRequest(providerName, options, prompt)
	start := time.Now()

	messages := make([]openai.ChatCompletionMessage, 0, 2)
	if options.SystemPrompt != "" {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: options.SystemPrompt,
		})
	}
	messages = append(messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleUser,
		Content: prompt,
	})

	req := openai.ChatCompletionRequest{
		Model:       options.Model,
		Messages:    messages,
		Temperature: options.Temperature,
		MaxTokens:   options.MaxTokens,
	}

	var resp openai.ChatCompletionResponse
	err := c.ExecuteWithRetry(ctx, providerName, func() error {
		var callErr error
		resp, callErr = c.api.CreateChatCompletion(ctx, req)
		if callErr != nil {
			return c.classify(ctx, callErr)
		}
		return nil
	})
	if err != nil {
		c.LogFailure(providerName, "request_execution", err, start)
		span.RecordError(err)
		return nil, err
	}

	if len(resp.Choices) == 0 {
		err := fmt.Errorf("no choices in OpenAI response: %w", core.ErrGenerationFailed)
		c.LogFailure(providerName, "response_validation", err, start)
		span.RecordError(err)
		return nil, err
	}

	result := &core.AIResponse{
		Content:  resp.Choices[0].Message.Content,
		Model:    firstNonEmpty(resp.Model, options.Model),
		Provider: providerName,
		Usage: core.TokenUsage{
			PromptTokens:     resp.Usage.PromptTokens,
			CompletionTokens: resp.Usage.CompletionTokens,
			TotalTokens:      resp.Usage.TotalTokens,
		},
	}

	span.SetAttribute("ai.prompt_tokens", result.Usage.PromptTokens)
	span.SetAttribute("ai.completion_tokens", result.Usage.CompletionTokens)
	span.SetAttribute("ai.finish_reason", string(resp.Choices[0].FinishReason))
	c.LogResponse(providerName, result.Model, result.Usage, start)
	return result, nil
}

func (c *Client) classify(ctx context.Context, err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return c.HandleError(apiErr.HTTPStatusCode, apiErr.Message, providerName)
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) && reqErr.HTTPStatusCode > 0 {
		return c.HandleError(reqErr.HTTPStatusCode, reqErr.Error(), providerName)
	}
	return providers.ClassifyTransportError(ctx, err, providerName)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
