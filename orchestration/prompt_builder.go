package orchestration

import (
	"context"
	"fmt"
	"strings"

	"github.com/itsneelabh/nl2sparql/core"
	"github.com/itsneelabh/nl2sparql/retrieval"
	"github.com/itsneelabh/nl2sparql/schema"
)

// PromptInput is everything one generation prompt is built from.
type PromptInput struct {
	Question string
	Reason   RetryReason
	Examples []retrieval.Match
	Schema   *schema.Snapshot

	// SchemaStale marks the snapshot as possibly outdated.
	SchemaStale bool
}

// PromptConfig bounds how much context goes into a prompt.
type PromptConfig struct {
	Endpoint      string
	CatalogName   string
	MaxExamples   int
	MaxClasses    int
	MaxProperties int
}

// DefaultPromptConfig returns the limits used when none are configured.
func DefaultPromptConfig() PromptConfig {
	return PromptConfig{
		Endpoint:      core.DefaultEndpoint,
		CatalogName:   "EU Open Data Portal",
		MaxExamples:   core.DefaultMaxExamples,
		MaxClasses:    core.DefaultMaxClasses,
		MaxProperties: core.DefaultMaxProperties,
	}
}

// PromptConfigFrom derives prompt limits from pipeline configuration.
func PromptConfigFrom(endpoint string, cfg core.PipelineConfig) PromptConfig {
	pc := DefaultPromptConfig()
	if endpoint != "" {
		pc.Endpoint = endpoint
	}
	if cfg.MaxExamples > 0 {
		pc.MaxExamples = cfg.MaxExamples
	}
	if cfg.MaxClasses > 0 {
		pc.MaxClasses = cfg.MaxClasses
	}
	if cfg.MaxProperties > 0 {
		pc.MaxProperties = cfg.MaxProperties
	}
	return pc
}

// Composer builds the generation prompt. Output depends only on its input:
// the same question, examples, schema and reason always give the same text.
type Composer struct {
	config    PromptConfig
	logger    core.Logger
	telemetry core.Telemetry
}

// NewComposer creates a Composer. Zero limits fall back to the defaults.
func NewComposer(cfg PromptConfig) *Composer {
	def := DefaultPromptConfig()
	if cfg.Endpoint == "" {
		cfg.Endpoint = def.Endpoint
	}
	if cfg.CatalogName == "" {
		cfg.CatalogName = def.CatalogName
	}
	if cfg.MaxExamples <= 0 {
		cfg.MaxExamples = def.MaxExamples
	}
	if cfg.MaxClasses <= 0 {
		cfg.MaxClasses = def.MaxClasses
	}
	if cfg.MaxProperties <= 0 {
		cfg.MaxProperties = def.MaxProperties
	}
	return &Composer{
		config:    cfg,
		logger:    &core.NoOpLogger{},
		telemetry: &core.NoOpTelemetry{},
	}
}

// SetLogger sets the logger.
func (c *Composer) SetLogger(logger core.Logger) {
	c.logger = core.ComponentLogger(logger, "framework/orchestration")
}

// SetTelemetry sets the telemetry provider.
func (c *Composer) SetTelemetry(t core.Telemetry) {
	if t != nil {
		c.telemetry = t
	}
}

// Config returns the active limits.
func (c *Composer) Config() PromptConfig {
	return c.config
}

// Compose renders the prompt for input.
func (c *Composer) Compose(ctx context.Context, input PromptInput) string {
	_, span := c.telemetry.StartSpan(ctx, SpanPromptCompose)
	defer span.End()

	var b strings.Builder

	fmt.Fprintf(&b, "Given the natural language query: %q\n\n", input.Question)
	fmt.Fprintf(&b, "You are generating a SPARQL query for the %s (%s).\n", c.config.CatalogName, c.endpoint(input))
	b.WriteString("Use the following similar examples and schema information to guide your generation.\n\n")

	examples := input.Examples
	if len(examples) > c.config.MaxExamples {
		examples = examples[:c.config.MaxExamples]
	}
	if len(examples) > 0 {
		b.WriteString("## Similar Query Examples:\n")
		for i, m := range examples {
			fmt.Fprintf(&b, "\nExample %d:\n", i+1)
			fmt.Fprintf(&b, "Question: %s\n", m.Example.Question)
			if m.Example.Description != "" {
				fmt.Fprintf(&b, "Description: %s\n", m.Example.Description)
			}
			fmt.Fprintf(&b, "SPARQL Query:\n%s\n", strings.TrimSpace(m.Example.Query))
		}
		b.WriteString("\n")
	}

	c.writeSchema(&b, input)
	b.WriteString(instructions)

	if !input.Reason.IsZero() {
		b.WriteString("\n## Correction:\n")
		b.WriteString(input.Reason.Render())
		b.WriteString("\n")
	}

	b.WriteString("\nReturn ONLY the raw SPARQL query without any formatting or explanations.\n")

	prompt := b.String()
	span.SetAttribute("prompt.examples", len(examples))
	span.SetAttribute("prompt.retry_reason", input.Reason.Kind.String())
	span.SetAttribute("prompt.schema_stale", input.SchemaStale)
	span.SetAttribute("prompt.size_bytes", len(prompt))

	c.logger.Debug("Prompt composed", map[string]interface{}{
		"operation":    "compose_prompt",
		"examples":     len(examples),
		"retry_reason": input.Reason.Kind.String(),
		"schema_stale": input.SchemaStale,
		"size_bytes":   len(prompt),
	})
	return prompt
}

func (c *Composer) endpoint(input PromptInput) string {
	if input.Schema != nil && input.Schema.Endpoint != "" {
		return input.Schema.Endpoint
	}
	return c.config.Endpoint
}

func (c *Composer) writeSchema(b *strings.Builder, input PromptInput) {
	snap := input.Schema
	if snap == nil || snap.IsEmpty() {
		if input.SchemaStale {
			b.WriteString("## Schema Information:\nSchema information is currently unavailable.\n\n")
		}
		return
	}

	b.WriteString("## Schema Information:\n")
	if input.SchemaStale {
		fmt.Fprintf(b, "Note: this schema may be outdated (extracted %s).\n",
			snap.ExtractedAt.UTC().Format("2006-01-02 15:04 MST"))
	}

	st := snap.Statistics
	if st.Datasets > 0 {
		fmt.Fprintf(b, "Catalog size: %d datasets, %d distributions, %d publishers.\n",
			st.Datasets, st.Distributions, st.Publishers)
	}

	if classes := snap.TopClasses(c.config.MaxClasses); len(classes) > 0 {
		names := make([]string, 0, len(classes))
		for _, cl := range classes {
			names = append(names, displayName(cl.Name, cl.URI))
		}
		fmt.Fprintf(b, "Available Classes: %s\n", strings.Join(names, ", "))
	}

	if props := snap.TopProperties(c.config.MaxProperties); len(props) > 0 {
		names := make([]string, 0, len(props))
		for _, p := range props {
			names = append(names, displayName(p.Name, p.URI))
		}
		fmt.Fprintf(b, "Available Properties: %s\n", strings.Join(names, ", "))
	}
	b.WriteString("\n")
}

func displayName(name, uri string) string {
	if name != "" {
		return name
	}
	return uri
}

const instructions = `## Instructions:
1. **Target Dataset Discovery**: The query should find datasets (dcat:Dataset) matching the question, returning roughly 10-20 results.
2. **Standard Prefixes**: Declare the prefixes you use, typically:
   PREFIX dct: <http://purl.org/dc/terms/>
   PREFIX dcat: <http://www.w3.org/ns/dcat#>
   PREFIX foaf: <http://xmlns.com/foaf/0.1/>
   PREFIX skos: <http://www.w3.org/2004/02/skos/core#>
   PREFIX rdfs: <http://www.w3.org/2000/01/rdf-schema#>
   PREFIX xsd: <http://www.w3.org/2001/XMLSchema#>
3. **Extract Dataset Information**: Select ?dataset, its dct:title and dct:description, the publisher name through dct:publisher/foaf:name, dcat:landingPage, and dct:issued or dct:modified where useful. Use OPTIONAL for fields that may be missing.
4. **Language Filtering**: Prefer English literals with FILTER(LANGMATCHES(LANG(?title), "en")).
5. **Text Matching**: Match keywords with CONTAINS or REGEX on LCASE values so matching is case-insensitive.
6. **Result Limit**: Always end with a LIMIT of around 15-20.
7. **Learn from Examples**: Follow the structure and patterns of the examples above.
`
