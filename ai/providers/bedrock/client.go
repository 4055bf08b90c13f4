//go:build bedrock
// +build bedrock

// Package bedrock implements the AI client for AWS Bedrock's Converse API.
// It is compiled only with the bedrock build tag.
package bedrock

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awshttp "github.com/aws/aws-sdk-go-v2/aws/transport/http"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"
	"github.com/itsneelabh/nl2sparql/ai/providers"
	"github.com/itsneelabh/nl2sparql/core"
)

// DefaultModel is Claude 3.5 Sonnet, which handles SPARQL well.
const DefaultModel = "anthropic.claude-3-5-sonnet-20240620-v1:0"

const providerName = "bedrock"

// Client implements core.AIClient for AWS Bedrock
type Client struct {
	*providers.BaseClient
	bedrockClient *bedrockruntime.Client
	region        string
	timeout       time.Duration
}

// NewClient creates a new AWS Bedrock client. Requests go through the
// base client's traced HTTP transport.
func NewClient(cfg aws.Config, region string, logger core.Logger) *Client {
	base := providers.NewBaseClient(core.DefaultGenerationTimeout, logger)
	base.DefaultModel = DefaultModel

	cfg.HTTPClient = base.HTTPClient
	// Retries are handled by ExecuteWithRetry.
	cfg.RetryMaxAttempts = 1

	return &Client{
		BaseClient:    base,
		bedrockClient: bedrockruntime.NewFromConfig(cfg),
		region:        region,
		timeout:       core.DefaultGenerationTimeout,
	}
}

// GenerateResponse generates a response using AWS Bedrock's Converse API
func (c *Client) GenerateResponse(ctx context.Context, prompt string, options *core.AIOptions) (*core.AIResponse, error) {
	ctx, span := c.StartSpan(ctx, "ai.generate_response")
	defer span.End()
	span.SetAttribute("ai.provider", providerName)
	span.SetAttribute("ai.prompt_length", len(prompt))

	options = c.ApplyDefaults(options)
	span.SetAttribute("ai.model", options.Model)
	span.SetAttribute("ai.region", c.region)

	c.LogRequest(providerName, options, prompt)
	start := time.Now()

	input := &bedrockruntime.ConverseInput{
		ModelId: aws.String(options.Model),
		Messages: []types.Message{
			{
				Role:    types.ConversationRoleUser,
				Content: []types.ContentBlock{&types.ContentBlockMemberText{Value: prompt}},
			},
		},
		InferenceConfig: &types.InferenceConfiguration{
			MaxTokens:   aws.Int32(int32(options.MaxTokens)),
			Temperature: aws.Float32(options.Temperature),
		},
	}
	if options.SystemPrompt != "" {
		input.System = []types.SystemContentBlock{
			&types.SystemContentBlockMemberText{Value: options.SystemPrompt},
		}
	}

	var output *bedrockruntime.ConverseOutput
	err := c.ExecuteWithRetry(ctx, providerName, func() error {
		callCtx, cancel := context.WithTimeout(ctx, c.timeout)
		defer cancel()

		var callErr error
		output, callErr = c.bedrockClient.Converse(callCtx, input)
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

	content, err := extractText(output)
	if err != nil {
		c.LogFailure(providerName, "response_validation", err, start)
		span.RecordError(err)
		return nil, err
	}

	result := &core.AIResponse{
		Content:  content,
		Model:    options.Model,
		Provider: providerName,
	}
	if output.Usage != nil {
		result.Usage = core.TokenUsage{
			PromptTokens:     int(aws.ToInt32(output.Usage.InputTokens)),
			CompletionTokens: int(aws.ToInt32(output.Usage.OutputTokens)),
			TotalTokens:      int(aws.ToInt32(output.Usage.TotalTokens)),
		}
	}

	span.SetAttribute("ai.prompt_tokens", result.Usage.PromptTokens)
	span.SetAttribute("ai.completion_tokens", result.Usage.CompletionTokens)
	if output.StopReason != "" {
		span.SetAttribute("ai.stop_reason", string(output.StopReason))
	}
	c.LogResponse(providerName, result.Model, result.Usage, start)
	return result, nil
}

func extractText(output *bedrockruntime.ConverseOutput) (string, error) {
	msg, ok := output.Output.(*types.ConverseOutputMemberMessage)
	if !ok {
		return "", fmt.Errorf("unexpected output type %T from Bedrock: %w", output.Output, core.ErrGenerationFailed)
	}
	var b strings.Builder
	for _, block := range msg.Value.Content {
		if text, ok := block.(*types.ContentBlockMemberText); ok {
			b.WriteString(text.Value)
		}
	}
	if b.Len() == 0 {
		return "", fmt.Errorf("no text content in Bedrock response: %w", core.ErrGenerationFailed)
	}
	return b.String(), nil
}

func (c *Client) classify(ctx context.Context, err error) error {
	var respErr *awshttp.ResponseError
	if errors.As(err, &respErr) {
		status := respErr.HTTPStatusCode()
		// Bedrock reports throttling as 400 ThrottlingException on some models.
		if status == http.StatusBadRequest && strings.Contains(err.Error(), "Throttling") {
			status = http.StatusTooManyRequests
		}
		return c.HandleError(status, err.Error(), providerName)
	}
	return providers.ClassifyTransportError(ctx, err, providerName)
}

// CreateAWSConfig loads an AWS configuration for Bedrock from the default
// chain (IAM role, environment, shared profile), or from creds when given.
func CreateAWSConfig(ctx context.Context, region string, creds aws.CredentialsProvider) (aws.Config, error) {
	opts := []func(*config.LoadOptions) error{
		config.WithRegion(region),
	}
	if creds != nil {
		opts = append(opts, config.WithCredentialsProvider(creds))
	}

	cfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return aws.Config{}, fmt.Errorf("failed to load AWS config: %v: %w", err, core.ErrInvalidConfiguration)
	}
	return cfg, nil
}
