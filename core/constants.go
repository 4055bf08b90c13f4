package core

import "time"

// Environment variables read by LoadFromEnv.
const (
	EnvEndpoint = "NL2SPARQL_ENDPOINT"
	EnvRedisURL = "REDIS_URL"
	EnvDevMode  = "NL2SPARQL_DEV_MODE"
)

// DefaultEndpoint is the EU Open Data Portal SPARQL endpoint.
const DefaultEndpoint = "https://data.europa.eu/sparql"

// Pipeline defaults
const (
	DefaultGenerationBudget  = 2
	DefaultExecutionBudget   = 1
	DefaultExecutionTimeout  = 30 * time.Second
	DefaultGenerationTimeout = 60 * time.Second
	DefaultMaxExamples       = 3
	DefaultMaxClasses        = 10
	DefaultMaxProperties     = 15
)

// DefaultAIModel is the chat model used when none is configured.
const DefaultAIModel = "gpt-4o"

// Redis key layout
const (
	// DefaultRedisPrefix namespaces every key this module writes.
	// Example: nl2sparql:schema:https://data.europa.eu/sparql
	DefaultRedisPrefix = "nl2sparql:"

	// DefaultSchemaCacheTTL is how long an extracted schema snapshot stays
	// fresh. Endpoint vocabularies change slowly.
	DefaultSchemaCacheTTL = 24 * time.Hour
)
