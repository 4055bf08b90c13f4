// Package nl2sparql answers natural-language questions about a DCAT data
// catalog by generating SPARQL, executing it, and retrying with feedback
// when the query fails or finds nothing.
//
// Most users need only this package:
//
//	cfg, err := nl2sparql.NewConfig(nl2sparql.WithMockAI(true))
//	agent, err := nl2sparql.NewAgent(ctx, cfg)
//	res, err := agent.Ask(ctx, "Which datasets about air quality exist?")
//
// The component packages can be used on their own:
//   - github.com/itsneelabh/nl2sparql/orchestration - retry controller, prompt, generation, synthesis
//   - github.com/itsneelabh/nl2sparql/sparql - endpoint execution
//   - github.com/itsneelabh/nl2sparql/schema - schema extraction and caching
//   - github.com/itsneelabh/nl2sparql/retrieval - example store
package nl2sparql

import (
	"github.com/itsneelabh/nl2sparql/core"
	"github.com/itsneelabh/nl2sparql/orchestration"
)

// Re-export core types
type (
	Config    = core.Config
	Option    = core.Option
	Logger    = core.Logger
	AIClient  = core.AIClient
	Telemetry = core.Telemetry

	// Result is the outcome of one Ask.
	Result = orchestration.Result
)

// Re-export configuration functions
var (
	NewConfig     = core.NewConfig
	DefaultConfig = core.DefaultConfig

	WithName             = core.WithName
	WithEndpoint         = core.WithEndpoint
	WithBudgets          = core.WithBudgets
	WithExecutionTimeout = core.WithExecutionTimeout
	WithSynthesizer      = core.WithSynthesizer
	WithAI               = core.WithAI
	WithAIModel          = core.WithAIModel
	WithEmbedding        = core.WithEmbedding
	WithRedisURL         = core.WithRedisURL
	WithSchemaTTL        = core.WithSchemaTTL
	WithCircuitBreaker   = core.WithCircuitBreaker
	WithTelemetry        = core.WithTelemetry
	WithLogLevel         = core.WithLogLevel
	WithLogFormat        = core.WithLogFormat
	WithConfigFile       = core.WithConfigFile
	WithDevelopmentMode  = core.WithDevelopmentMode
	WithMockAI           = core.WithMockAI
)
