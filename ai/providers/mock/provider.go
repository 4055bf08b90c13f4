// Package mock provides a scripted AI provider for tests and offline runs.
package mock

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/itsneelabh/nl2sparql/ai"
	"github.com/itsneelabh/nl2sparql/core"
)

// ErrNoResponses is returned once every scripted response has been used.
var ErrNoResponses = errors.New("no more mock responses")

func init() {
	if err := ai.Register(&Factory{}); err != nil {
		panic(fmt.Sprintf("failed to register mock AI provider: %v", err))
	}
}

// Factory creates mock AI clients for testing
type Factory struct{}

// Name returns the provider name
func (f *Factory) Name() string {
	return string(ai.ProviderMock)
}

// Description returns provider description
func (f *Factory) Description() string {
	return "Mock provider for testing"
}

// Create creates a new mock client
func (f *Factory) Create(config *ai.AIConfig) (core.AIClient, error) {
	if config == nil {
		return nil, fmt.Errorf("mock provider: nil config: %w", core.ErrInvalidConfiguration)
	}
	return NewClient(config), nil
}

// DetectEnvironment checks if mock is enabled. Mock is never auto-detected.
func (f *Factory) DetectEnvironment() (priority int, available bool) {
	return 0, false
}

// Client implements core.AIClient for testing. Responses are returned in
// order; the last one repeats when Repeat is set.
type Client struct {
	mu sync.Mutex

	Config        *ai.AIConfig
	Responses     []string
	ResponseIndex int
	Repeat        bool
	Error         error
	CallCount     int
	Prompts       []string
	LastOptions   *core.AIOptions
}

// NewClient creates a new mock client
func NewClient(config *ai.AIConfig) *Client {
	return &Client{
		Config:    config,
		Responses: []string{"SELECT ?dataset WHERE { ?dataset a <http://www.w3.org/ns/dcat#Dataset> } LIMIT 10"},
		Repeat:    true,
	}
}

// GenerateResponse returns the next scripted response.
func (c *Client) GenerateResponse(ctx context.Context, prompt string, options *core.AIOptions) (*core.AIResponse, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.CallCount++
	c.Prompts = append(c.Prompts, prompt)
	c.LastOptions = options

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if c.Error != nil {
		return nil, c.Error
	}

	if c.ResponseIndex >= len(c.Responses) {
		if !c.Repeat || len(c.Responses) == 0 {
			return nil, ErrNoResponses
		}
		c.ResponseIndex = len(c.Responses) - 1
	}
	response := c.Responses[c.ResponseIndex]
	c.ResponseIndex++

	model := "mock-model"
	if options != nil && options.Model != "" {
		model = options.Model
	} else if c.Config != nil && c.Config.Model != "" {
		model = c.Config.Model
	}

	return &core.AIResponse{
		Content:  response,
		Model:    model,
		Provider: string(ai.ProviderMock),
		Usage: core.TokenUsage{
			PromptTokens:     len(prompt) / 4, // Rough estimate
			CompletionTokens: len(response) / 4,
			TotalTokens:      (len(prompt) + len(response)) / 4,
		},
	}, nil
}

// SetResponses sets the responses to return
func (c *Client) SetResponses(responses ...string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Responses = responses
	c.ResponseIndex = 0
}

// SetError sets an error to return
func (c *Client) SetError(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Error = err
}

// Calls returns the number of requests served so far.
func (c *Client) Calls() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.CallCount
}

// LastPrompt returns the most recent prompt, or "".
func (c *Client) LastPrompt() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.Prompts) == 0 {
		return ""
	}
	return c.Prompts[len(c.Prompts)-1]
}

// Reset resets the mock client
func (c *Client) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ResponseIndex = 0
	c.CallCount = 0
	c.Prompts = nil
	c.LastOptions = nil
	c.Error = nil
}
