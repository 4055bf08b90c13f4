package orchestration

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/itsneelabh/nl2sparql/core"
	"github.com/itsneelabh/nl2sparql/telemetry"
)

// GenerationError reports that the text-generation service could not
// produce a query. It matches core.ErrGenerationFailed.
type GenerationError struct {
	Err error
}

func (e *GenerationError) Error() string {
	return "generation failed: " + e.Err.Error()
}

func (e *GenerationError) Unwrap() []error {
	return []error{core.ErrGenerationFailed, e.Err}
}

// GenerationOutcome is the result of one generation: a cleaned query, or
// an error. Suspect is set when the query does not start with a SPARQL
// keyword; suspect queries are still executed.
type GenerationOutcome struct {
	Query   string
	Suspect bool
	Err     error
}

// Ok reports whether a query was produced.
func (o GenerationOutcome) Ok() bool {
	return o.Err == nil
}

var (
	openingFence = regexp.MustCompile("(?i)^```(?:sparql)?[ \t]*\n?")
	closingFence = regexp.MustCompile("\\s*```$")
	leadingWord  = regexp.MustCompile(`^[A-Za-z]+`)
)

var queryKeywords = map[string]struct{}{
	"PREFIX":    {},
	"BASE":      {},
	"SELECT":    {},
	"ASK":       {},
	"CONSTRUCT": {},
	"DESCRIBE":  {},
}

// CleanQuery strips surrounding whitespace and markdown code fences.
func CleanQuery(text string) string {
	q := strings.TrimSpace(text)
	q = openingFence.ReplaceAllString(q, "")
	q = closingFence.ReplaceAllString(q, "")
	return strings.TrimSpace(q)
}

// IsSuspect reports whether query fails to start with a SPARQL keyword.
// Leading comment lines are ignored.
func IsSuspect(query string) bool {
	for _, line := range strings.Split(query, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		word := strings.ToUpper(leadingWord.FindString(line))
		_, ok := queryKeywords[word]
		return !ok
	}
	return true
}

// Generator turns prompts into SPARQL through a core.AIClient.
type Generator struct {
	client    core.AIClient
	options   core.AIOptions
	timeout   time.Duration
	logger    core.Logger
	telemetry core.Telemetry
}

// GeneratorOption customizes a Generator.
type GeneratorOption func(*Generator)

// WithModel selects the model.
func WithModel(model string) GeneratorOption {
	return func(g *Generator) {
		g.options.Model = model
	}
}

// WithTemperature sets the sampling temperature.
func WithTemperature(t float32) GeneratorOption {
	return func(g *Generator) {
		g.options.Temperature = t
	}
}

// WithMaxTokens bounds the response length.
func WithMaxTokens(n int) GeneratorOption {
	return func(g *Generator) {
		if n > 0 {
			g.options.MaxTokens = n
		}
	}
}

// WithGenerationTimeout bounds each generation call.
func WithGenerationTimeout(d time.Duration) GeneratorOption {
	return func(g *Generator) {
		if d > 0 {
			g.timeout = d
		}
	}
}

// WithGeneratorLogger sets the logger.
func WithGeneratorLogger(logger core.Logger) GeneratorOption {
	return func(g *Generator) {
		g.logger = core.ComponentLogger(logger, "framework/orchestration")
	}
}

// WithGeneratorTelemetry sets the telemetry provider.
func WithGeneratorTelemetry(t core.Telemetry) GeneratorOption {
	return func(g *Generator) {
		if t != nil {
			g.telemetry = t
		}
	}
}

// GeneratorOptionsFrom maps AI configuration onto generator options.
func GeneratorOptionsFrom(cfg core.AIConfig, pipeline core.PipelineConfig) []GeneratorOption {
	return []GeneratorOption{
		WithModel(cfg.Model),
		WithTemperature(cfg.Temperature),
		WithMaxTokens(cfg.MaxTokens),
		WithGenerationTimeout(pipeline.GenerationTimeout),
	}
}

// NewGenerator creates a Generator over client.
func NewGenerator(client core.AIClient, opts ...GeneratorOption) *Generator {
	g := &Generator{
		client: client,
		options: core.AIOptions{
			Temperature:  0.1,
			MaxTokens:    1024,
			SystemPrompt: "You write SPARQL queries. Reply with the query only.",
		},
		timeout:   core.DefaultGenerationTimeout,
		logger:    &core.NoOpLogger{},
		telemetry: &core.NoOpTelemetry{},
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Generate asks the service for a query. It never returns a Go error;
// failures are carried in the outcome.
func (g *Generator) Generate(ctx context.Context, prompt string) GenerationOutcome {
	ctx, span := g.telemetry.StartSpan(ctx, SpanQueryGenerate)
	defer span.End()

	start := time.Now()
	callCtx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	opts := g.options
	resp, err := g.client.GenerateResponse(callCtx, prompt, &opts)
	if err == nil && resp == nil {
		err = errors.New("empty response")
	}
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
			err = fmt.Errorf("generation timed out after %s: %w", g.timeout, core.ErrTimeout)
		}
		span.RecordError(err)
		telemetry.Duration(telemetry.MetricGenerationDuration, start, "status", "error")
		g.logger.Warn("Query generation failed", map[string]interface{}{
			"operation":   "generate_query",
			"error":       err,
			"duration_ms": time.Since(start).Milliseconds(),
		})
		return GenerationOutcome{Err: &GenerationError{Err: err}}
	}

	query := CleanQuery(resp.Content)
	if query == "" {
		err := &GenerationError{Err: errors.New("response contained no query")}
		span.RecordError(err)
		telemetry.Duration(telemetry.MetricGenerationDuration, start, "status", "error")
		g.logger.Warn("Query generation returned empty text", map[string]interface{}{
			"operation": "generate_query",
			"model":     resp.Model,
		})
		return GenerationOutcome{Err: err}
	}

	suspect := IsSuspect(query)
	if suspect {
		telemetry.Counter(telemetry.MetricGenerationSuspect)
		g.logger.Warn("Generated text does not look like SPARQL", map[string]interface{}{
			"operation": "generate_query",
			"preview":   preview(query),
		})
	}

	telemetry.Duration(telemetry.MetricGenerationDuration, start, "status", "success")
	span.SetAttribute("ai.model", resp.Model)
	span.SetAttribute("ai.provider", resp.Provider)
	span.SetAttribute("query.suspect", suspect)

	g.logger.Debug("Query generated", map[string]interface{}{
		"operation":         "generate_query",
		"model":             resp.Model,
		"provider":          resp.Provider,
		"prompt_tokens":     resp.Usage.PromptTokens,
		"completion_tokens": resp.Usage.CompletionTokens,
		"suspect":           suspect,
		"duration_ms":       time.Since(start).Milliseconds(),
	})
	return GenerationOutcome{Query: query, Suspect: suspect}
}
