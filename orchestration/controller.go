package orchestration

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/itsneelabh/nl2sparql/core"
	"github.com/itsneelabh/nl2sparql/sparql"
	"github.com/itsneelabh/nl2sparql/telemetry"
)

// Dependencies are the components a Controller drives.
type Dependencies struct {
	Retriever   ExampleRetriever
	Schema      SchemaProvider
	Composer    *Composer
	Generator   QueryGenerator
	Executor    QueryExecutor
	Synthesizer Synthesizer
}

// ControllerConfig holds the retry budgets and per-call limits.
type ControllerConfig struct {
	Endpoint         string
	GenerationBudget int
	ExecutionBudget  int
	ExecutionTimeout time.Duration
	MaxExamples      int
}

// DefaultControllerConfig returns the default budgets.
func DefaultControllerConfig() ControllerConfig {
	return ControllerConfig{
		Endpoint:         core.DefaultEndpoint,
		GenerationBudget: core.DefaultGenerationBudget,
		ExecutionBudget:  core.DefaultExecutionBudget,
		ExecutionTimeout: core.DefaultExecutionTimeout,
		MaxExamples:      core.DefaultMaxExamples,
	}
}

// ControllerConfigFrom derives controller settings from configuration.
func ControllerConfigFrom(cfg *core.Config) ControllerConfig {
	cc := DefaultControllerConfig()
	if cfg == nil {
		return cc
	}
	if cfg.Endpoint != "" {
		cc.Endpoint = cfg.Endpoint
	}
	cc.GenerationBudget = cfg.Pipeline.GenerationBudget
	cc.ExecutionBudget = cfg.Pipeline.ExecutionBudget
	if cfg.Pipeline.ExecutionTimeout > 0 {
		cc.ExecutionTimeout = cfg.Pipeline.ExecutionTimeout
	}
	if cfg.Pipeline.MaxExamples > 0 {
		cc.MaxExamples = cfg.Pipeline.MaxExamples
	}
	return cc
}

// Result is the outcome of one Run.
type Result struct {
	RequestID string
	Question  string

	// Answer is the synthesized answer on success and the failure report
	// otherwise. It is never empty.
	Answer    string
	Succeeded bool

	State       State
	Transitions []Phase

	// ExamplesUnavailable is set when example retrieval failed and the
	// prompt was built without examples.
	ExamplesUnavailable bool
	SchemaStale         bool

	Duration time.Duration
}

// Controller runs the generate, execute, synthesize loop for one question
// at a time. It is safe for concurrent use; each Run owns its state.
type Controller struct {
	deps      Dependencies
	config    ControllerConfig
	fallback  *TemplateSynthesizer
	logger    core.Logger
	telemetry core.Telemetry
}

// ControllerOption customizes a Controller.
type ControllerOption func(*Controller)

// WithControllerLogger sets the logger.
func WithControllerLogger(logger core.Logger) ControllerOption {
	return func(c *Controller) {
		c.logger = core.ComponentLogger(logger, "framework/orchestration")
	}
}

// WithControllerTelemetry sets the telemetry provider.
func WithControllerTelemetry(t core.Telemetry) ControllerOption {
	return func(c *Controller) {
		if t != nil {
			c.telemetry = t
		}
	}
}

// NewController validates deps and builds a Controller. A nil Composer is
// replaced by one with default limits; a nil Synthesizer by a
// TemplateSynthesizer.
func NewController(deps Dependencies, cfg ControllerConfig, opts ...ControllerOption) (*Controller, error) {
	var missing []string
	if deps.Retriever == nil {
		missing = append(missing, "retriever")
	}
	if deps.Schema == nil {
		missing = append(missing, "schema provider")
	}
	if deps.Generator == nil {
		missing = append(missing, "generator")
	}
	if deps.Executor == nil {
		missing = append(missing, "executor")
	}
	if len(missing) > 0 {
		return nil, &core.FrameworkError{
			Op:      "orchestration.NewController",
			Kind:    "configuration",
			Message: "missing " + strings.Join(missing, ", "),
			Err:     core.ErrMissingConfiguration,
		}
	}

	def := DefaultControllerConfig()
	if cfg.Endpoint == "" {
		cfg.Endpoint = def.Endpoint
	}
	if cfg.ExecutionTimeout <= 0 {
		cfg.ExecutionTimeout = def.ExecutionTimeout
	}
	if cfg.MaxExamples <= 0 {
		cfg.MaxExamples = def.MaxExamples
	}

	c := &Controller{
		deps:      deps,
		config:    cfg,
		fallback:  NewTemplateSynthesizer(0),
		logger:    &core.NoOpLogger{},
		telemetry: &core.NoOpTelemetry{},
	}
	for _, opt := range opts {
		opt(c)
	}

	if c.deps.Composer == nil {
		pc := DefaultPromptConfig()
		pc.Endpoint = cfg.Endpoint
		pc.MaxExamples = cfg.MaxExamples
		c.deps.Composer = NewComposer(pc)
		c.deps.Composer.SetLogger(c.logger)
		c.deps.Composer.SetTelemetry(c.telemetry)
	}
	if c.deps.Synthesizer == nil {
		c.deps.Synthesizer = c.fallback
	}
	return c, nil
}

// Config returns the active settings.
func (c *Controller) Config() ControllerConfig {
	return c.config
}

// Run answers question. The only error it returns is for an empty
// question; every other failure is reported in the Result.
func (c *Controller) Run(ctx context.Context, question string) (*Result, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return nil, &core.FrameworkError{
			Op:      "orchestration.Run",
			Kind:    "input",
			Message: "question is empty",
			Err:     core.ErrInvalidInput,
		}
	}

	start := time.Now()
	res := &Result{
		RequestID:   uuid.NewString(),
		Question:    question,
		Transitions: []Phase{PhaseGenerate},
	}

	ctx, span := c.telemetry.StartSpan(ctx, SpanPipelineRun)
	defer span.End()
	span.SetAttribute("request_id", res.RequestID)

	c.logger.Info("Pipeline started", telemetry.WithTraceFields(ctx, map[string]interface{}{
		"operation":         "pipeline_run",
		"request_id":        res.RequestID,
		"generation_budget": c.config.GenerationBudget,
		"execution_budget":  c.config.ExecutionBudget,
	}))

	input := c.context(ctx, res)
	state := NewState(question, c.config.GenerationBudget, c.config.ExecutionBudget)

	for !state.Failed() && !state.Succeeded() {
		if err := ctx.Err(); err != nil {
			state = state.Canceled(err)
			res.Transitions = append(res.Transitions, PhaseFail)
			break
		}

		before := state.Phase()
		next, err := c.step(ctx, state, input, res.RequestID)
		if err != nil {
			// Only reachable through a bug in the transition table.
			c.logger.Error("Pipeline transition rejected", map[string]interface{}{
				"operation":  "pipeline_run",
				"request_id": res.RequestID,
				"state":      state.String(),
				"error":      err,
			})
			next = state.fail(FailureExecution, err.Error())
		}
		if ctxErr := ctx.Err(); ctxErr != nil && !next.Succeeded() {
			next = state.Canceled(ctxErr)
		}
		state = next

		// Re-executing the same query counts as a transition too.
		if state.Phase() != before || before == PhaseExecute {
			res.Transitions = append(res.Transitions, state.Phase())
			telemetry.Counter(telemetry.MetricPipelineTransitions, "phase", state.Phase().String())
		}
	}

	res.State = state
	res.Duration = time.Since(start)
	status := StatusSucceeded
	if state.Succeeded() {
		res.Succeeded = true
		res.Answer = state.Answer()
	} else {
		f, _ := state.Failure()
		res.Answer = ReportFailure(question, f)
		status = StatusFailed
		if f.Kind == FailureCanceled {
			status = StatusCanceled
		}
		span.RecordError(errors.New(res.Answer))
	}

	telemetry.Counter(telemetry.MetricPipelineRuns, "status", status)
	telemetry.Duration(telemetry.MetricPipelineDuration, start, "status", status)
	span.SetAttribute("pipeline.status", status)
	span.SetAttribute("pipeline.generation_attempts", state.GenerationAttempts())

	c.logger.Info("Pipeline finished", telemetry.WithTraceFields(ctx, map[string]interface{}{
		"operation":           "pipeline_run",
		"request_id":          res.RequestID,
		"status":              status,
		"generation_attempts": state.GenerationAttempts(),
		"execution_attempts":  state.ExecutionAttempts(),
		"transitions":         len(res.Transitions),
		"duration_ms":         res.Duration.Milliseconds(),
	}))
	return res, nil
}

// context gathers the examples and schema shared by every generation of
// one run.
func (c *Controller) context(ctx context.Context, res *Result) PromptInput {
	input := PromptInput{Question: res.Question}

	matches, err := c.deps.Retriever.RetrieveSimilar(ctx, res.Question, c.config.MaxExamples)
	if err != nil {
		res.ExamplesUnavailable = true
		matches = nil
		c.logger.Warn("Example retrieval failed, continuing without examples", map[string]interface{}{
			"operation":  "retrieve_examples",
			"request_id": res.RequestID,
			"error":      err,
		})
	}
	input.Examples = matches

	lookup := c.deps.Schema.GetSchema(ctx, c.config.Endpoint)
	input.Schema = lookup.Snapshot
	input.SchemaStale = lookup.Stale
	res.SchemaStale = lookup.Stale
	return input
}

func (c *Controller) step(ctx context.Context, s State, input PromptInput, requestID string) (State, error) {
	switch s.Phase() {
	case PhaseGenerate:
		input.Reason = s.Reason()
		prompt := c.deps.Composer.Compose(ctx, input)
		out := c.deps.Generator.Generate(ctx, prompt)
		c.logger.Debug("Generation finished", map[string]interface{}{
			"operation":  "pipeline_generate",
			"request_id": requestID,
			"attempt":    s.GenerationAttempts() + 1,
			"retry":      s.Reason().Kind.String(),
			"ok":         out.Ok(),
			"suspect":    out.Suspect,
		})
		return s.Generated(out)

	case PhaseExecute:
		o := c.deps.Executor.Execute(ctx, s.Query(), c.config.ExecutionTimeout)
		if o == nil {
			o = sparql.RequestError{Message: "executor returned no outcome"}
		}
		c.logger.Debug("Execution finished", map[string]interface{}{
			"operation":  "pipeline_execute",
			"request_id": requestID,
			"attempt":    s.ExecutionAttempts() + 1,
			"outcome":    o.Kind().String(),
		})
		return s.Executed(o)

	case PhaseSynthesize:
		return s.Answered(c.synthesize(ctx, s, requestID))

	default:
		return s, fmt.Errorf("step in phase %s: %w", s.Phase(), ErrInvalidTransition)
	}
}

func (c *Controller) synthesize(ctx context.Context, s State, requestID string) string {
	ctx, span := c.telemetry.StartSpan(ctx, SpanAnswerSynthesize)
	defer span.End()
	kind := synthesizerKind(c.deps.Synthesizer)
	span.SetAttribute("synthesizer", kind)

	success, _ := s.Outcome().(sparql.Success)
	answer, err := c.deps.Synthesizer.Synthesize(ctx, s.Question(), success.Bindings)
	if err == nil && strings.TrimSpace(answer) != "" {
		return answer
	}

	if err != nil {
		span.RecordError(err)
	}
	c.logger.Warn("Synthesis failed, returning raw summary", map[string]interface{}{
		"operation":   "pipeline_synthesize",
		"request_id":  requestID,
		"synthesizer": kind,
		"error":       err,
	})
	summary, _ := c.fallback.Synthesize(ctx, s.Question(), success.Bindings)
	return SynthesisFallback(len(success.Bindings), summary)
}
