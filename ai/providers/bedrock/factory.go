//go:build bedrock
// +build bedrock

package bedrock

import (
	"context"
	"os"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/itsneelabh/nl2sparql/ai"
	"github.com/itsneelabh/nl2sparql/core"
)

func init() {
	ai.MustRegister(&Factory{})
}

// Factory creates AWS Bedrock AI clients
type Factory struct{}

// Name returns the provider name
func (f *Factory) Name() string {
	return string(ai.ProviderBedrock)
}

// Description returns provider description
func (f *Factory) Description() string {
	return "AWS Bedrock Converse API (Claude, Llama, Mistral, Titan)"
}

// Priority returns provider priority
func (f *Factory) Priority() int {
	return 60
}

// Create creates a new AWS Bedrock client. An API key is treated as an
// access key ID and paired with AWS_SECRET_ACCESS_KEY; without one the
// default credential chain applies.
func (f *Factory) Create(config *ai.AIConfig) (core.AIClient, error) {
	ctx := context.Background()

	region := firstNonEmpty(config.Region, os.Getenv("AWS_REGION"), os.Getenv("AWS_DEFAULT_REGION"), "eu-west-1")

	var creds aws.CredentialsProvider
	if config.APIKey != "" && os.Getenv("AWS_SECRET_ACCESS_KEY") != "" {
		creds = credentials.NewStaticCredentialsProvider(config.APIKey, os.Getenv("AWS_SECRET_ACCESS_KEY"), os.Getenv("AWS_SESSION_TOKEN"))
	}

	awsCfg, err := CreateAWSConfig(ctx, region, creds)
	if err != nil {
		return nil, err
	}

	logger := core.ComponentLogger(config.Logger, "framework/ai")
	logger.Info("Bedrock provider initialized", map[string]interface{}{
		"operation": "ai_provider_init",
		"provider":  "bedrock",
		"region":    region,
		"model":     config.Model,
	})

	client := NewClient(awsCfg, region, logger)
	client.SetTelemetry(config.Telemetry)

	if config.Timeout > 0 {
		client.timeout = config.Timeout
	}
	if config.MaxRetries >= 0 {
		client.MaxRetries = config.MaxRetries
	}
	if config.RetryDelay > 0 {
		client.RetryDelay = config.RetryDelay
	}
	// The shared default model names an OpenAI model.
	if config.Model != "" && config.Model != core.DefaultAIModel {
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

// DetectEnvironment checks if AWS Bedrock is configured
func (f *Factory) DetectEnvironment() (priority int, available bool) {
	if os.Getenv("AWS_ACCESS_KEY_ID") != "" && os.Getenv("AWS_SECRET_ACCESS_KEY") != "" {
		return f.Priority(), true
	}
	if os.Getenv("AWS_PROFILE") != "" {
		return f.Priority(), true
	}
	// Running on AWS (EC2/ECS/Lambda)
	if os.Getenv("AWS_EXECUTION_ENV") != "" || os.Getenv("AWS_CONTAINER_CREDENTIALS_RELATIVE_URI") != "" {
		return f.Priority() + 10, true
	}
	return 0, false
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
