package nl2sparql

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/itsneelabh/nl2sparql/ai"
	"github.com/itsneelabh/nl2sparql/core"
	"github.com/itsneelabh/nl2sparql/embedding"
	"github.com/itsneelabh/nl2sparql/orchestration"
	"github.com/itsneelabh/nl2sparql/resilience"
	"github.com/itsneelabh/nl2sparql/retrieval"
	"github.com/itsneelabh/nl2sparql/schema"
	"github.com/itsneelabh/nl2sparql/sparql"
	"github.com/itsneelabh/nl2sparql/telemetry"

	// Registered providers. Bedrock is added by building with -tags bedrock
	// and importing ai/providers/bedrock.
	_ "github.com/itsneelabh/nl2sparql/ai/providers/mock"
	_ "github.com/itsneelabh/nl2sparql/ai/providers/openai"
)

// Agent answers natural-language questions against one SPARQL endpoint.
// It owns every pipeline component and the resources behind them.
type Agent struct {
	config    *core.Config
	logger    core.Logger
	telemetry core.Telemetry

	otel     *telemetry.OTelProvider
	redis    *core.RedisClient
	embedder embedding.Embedder
	embCache *embedding.RistrettoCache

	examples   *retrieval.Store
	schemas    *schema.Cache
	executor   *sparql.HTTPExecutor
	aiClient   core.AIClient
	controller *orchestration.Controller
}

type agentOptions struct {
	logger     core.Logger
	telemetry  core.Telemetry
	aiClient   core.AIClient
	embedder   embedding.Embedder
	httpClient *http.Client
	skipSeed   bool
}

// AgentOption overrides a component NewAgent would otherwise build from
// configuration.
type AgentOption func(*agentOptions)

// WithLogger sets the logger instead of building one from cfg.Logging.
func WithLogger(logger core.Logger) AgentOption {
	return func(o *agentOptions) {
		o.logger = logger
	}
}

// WithTelemetryProvider sets the span provider instead of building an
// OpenTelemetry provider from cfg.Telemetry.
func WithTelemetryProvider(t core.Telemetry) AgentOption {
	return func(o *agentOptions) {
		o.telemetry = t
	}
}

// WithAIClient sets the text-generation client instead of resolving one
// from the provider registry.
func WithAIClient(client core.AIClient) AgentOption {
	return func(o *agentOptions) {
		o.aiClient = client
	}
}

// WithEmbedder sets the example store's embedder.
func WithEmbedder(e embedding.Embedder) AgentOption {
	return func(o *agentOptions) {
		o.embedder = e
	}
}

// WithEndpointHTTPClient sets the HTTP client used for SPARQL requests.
func WithEndpointHTTPClient(client *http.Client) AgentOption {
	return func(o *agentOptions) {
		o.httpClient = client
	}
}

// WithoutSeeding skips populating the example store at start, regardless
// of cfg.Store.SeedOnStart.
func WithoutSeeding() AgentOption {
	return func(o *agentOptions) {
		o.skipSeed = true
	}
}

// NewAgent builds every component from cfg. A nil cfg is loaded with
// core.NewConfig (defaults plus environment).
func NewAgent(ctx context.Context, cfg *core.Config, opts ...AgentOption) (*Agent, error) {
	if cfg == nil {
		var err error
		if cfg, err = core.NewConfig(); err != nil {
			return nil, err
		}
	} else if err := cfg.Validate(); err != nil {
		return nil, err
	}

	o := &agentOptions{}
	for _, opt := range opts {
		opt(o)
	}

	a := &Agent{config: cfg, logger: o.logger}
	if a.logger == nil {
		a.logger = core.NewProductionLogger(cfg.Logging, cfg.Development, cfg.Name)
	}

	if err := a.build(ctx, o); err != nil {
		_ = a.Close(context.Background())
		return nil, err
	}

	if cfg.Store.SeedOnStart && !o.skipSeed {
		if n, err := a.Seed(ctx); err != nil {
			// Runs continue without examples; see orchestration.Result.ExamplesUnavailable.
			a.logger.Warn("Example seeding failed", map[string]interface{}{
				"operation": "agent_seed",
				"error":     err.Error(),
			})
		} else {
			a.logger.Info("Example store seeded", map[string]interface{}{
				"operation": "agent_seed",
				"added":     n,
			})
		}
	}

	a.logger.Info("Agent ready", map[string]interface{}{
		"operation":         "agent_init",
		"endpoint":          cfg.Endpoint,
		"store":             cfg.Store.Provider,
		"embedding":         a.embedder.Model(),
		"synthesizer":       cfg.Pipeline.Synthesizer,
		"generation_budget": cfg.Pipeline.GenerationBudget,
		"execution_budget":  cfg.Pipeline.ExecutionBudget,
		"version":           Version,
	})
	return a, nil
}

func (a *Agent) build(ctx context.Context, o *agentOptions) error {
	cfg := a.config

	if err := a.buildTelemetry(ctx, o); err != nil {
		return err
	}
	if err := a.connectRedis(ctx); err != nil {
		return err
	}
	if err := a.buildExampleStore(o); err != nil {
		return err
	}
	if err := a.buildExecutor(o); err != nil {
		return err
	}
	a.buildSchemaCache()

	a.aiClient = o.aiClient
	if a.aiClient == nil {
		aiOpts := append(ai.OptionsFrom(cfg.AI), ai.WithLogger(a.logger), ai.WithTelemetry(a.telemetry))
		client, err := ai.NewClient(aiOpts...)
		if err != nil {
			return fmt.Errorf("failed to create AI client: %w", err)
		}
		a.aiClient = client
	}

	genOpts := append(orchestration.GeneratorOptionsFrom(cfg.AI, cfg.Pipeline),
		orchestration.WithGeneratorLogger(a.logger),
		orchestration.WithGeneratorTelemetry(a.telemetry),
	)
	generator := orchestration.NewGenerator(a.aiClient, genOpts...)

	composer := orchestration.NewComposer(orchestration.PromptConfigFrom(cfg.Endpoint, cfg.Pipeline))
	composer.SetLogger(a.logger)
	composer.SetTelemetry(a.telemetry)

	template := orchestration.NewTemplateSynthesizer(cfg.Pipeline.MaxAnswerRows)
	var synthesizer orchestration.Synthesizer = template
	if cfg.Pipeline.Synthesizer == orchestration.SynthesizerAI {
		synthesizer = orchestration.NewAISynthesizer(a.aiClient, template, cfg.AI.Model, a.logger)
	}

	controller, err := orchestration.NewController(orchestration.Dependencies{
		Retriever:   a.examples,
		Schema:      a.schemas,
		Composer:    composer,
		Generator:   generator,
		Executor:    a.executor,
		Synthesizer: synthesizer,
	}, orchestration.ControllerConfigFrom(cfg),
		orchestration.WithControllerLogger(a.logger),
		orchestration.WithControllerTelemetry(a.telemetry),
	)
	if err != nil {
		return err
	}
	a.controller = controller
	return nil
}

func (a *Agent) buildTelemetry(ctx context.Context, o *agentOptions) error {
	switch {
	case o.telemetry != nil:
		a.telemetry = o.telemetry
	case a.config.Telemetry.Enabled:
		tcfg := a.config.Telemetry
		if tcfg.ServiceName == "" {
			tcfg.ServiceName = a.config.Name
		}
		provider, err := telemetry.NewOTelProvider(ctx, tcfg, telemetry.WithServiceVersion(Version))
		if err != nil {
			return fmt.Errorf("failed to start telemetry: %w", err)
		}
		a.otel = provider
		a.telemetry = provider
	default:
		a.telemetry = &core.NoOpTelemetry{}
	}
	return nil
}

func (a *Agent) connectRedis(ctx context.Context) error {
	cfg := a.config
	if cfg.Redis.URL == "" || (cfg.Store.Provider != "redis" && !cfg.Schema.Persist) {
		return nil
	}
	client, err := core.NewRedisClient(ctx, core.RedisClientOptions{
		RedisURL:  cfg.Redis.URL,
		DB:        -1,
		Namespace: cfg.Redis.Prefix,
		Logger:    a.logger,
	})
	if err != nil {
		return err
	}
	a.redis = client
	return nil
}

func (a *Agent) buildExampleStore(o *agentOptions) error {
	cfg := a.config

	a.embedder = o.embedder
	if a.embedder == nil {
		switch cfg.Embedding.Provider {
		case "http":
			var cache embedding.Cache
			if cfg.Embedding.CacheEnabled {
				c, err := embedding.NewRistrettoCache(cfg.Embedding.CacheMaxCost, cfg.Embedding.CacheTTL)
				if err != nil {
					return err
				}
				a.embCache = c
				cache = c
			}
			e, err := embedding.NewHTTPEmbedder(embedding.HTTPConfig{
				BaseURL: cfg.Embedding.BaseURL,
				Model:   cfg.Embedding.Model,
				APIKey:  cfg.Embedding.APIKey,
				Timeout: cfg.Embedding.Timeout,
				Cache:   cache,
				Logger:  a.logger,
			})
			if err != nil {
				return err
			}
			a.embedder = e
		default:
			a.embedder = embedding.NewHashEmbedder(cfg.Embedding.Dimensions)
		}
	}

	var index retrieval.VectorIndex = retrieval.NewMemoryIndex()
	if cfg.Store.Provider == "redis" {
		index = retrieval.NewRedisIndex(a.redis.Client(),
			retrieval.WithIndexPrefix(cfg.Redis.Prefix),
			retrieval.WithIndexLogger(a.logger),
		)
	}
	a.examples = retrieval.NewStore(a.embedder, index, a.logger)
	return nil
}

func (a *Agent) buildExecutor(o *agentOptions) error {
	cfg := a.config
	execOpts := []sparql.ExecutorOption{
		sparql.WithLogger(a.logger),
		sparql.WithTelemetry(a.telemetry),
	}
	if o.httpClient != nil {
		execOpts = append(execOpts, sparql.WithHTTPClient(o.httpClient))
	}
	if cfg.Resilience.CircuitBreaker.Enabled {
		cb, err := resilience.CreateCircuitBreaker("sparql-endpoint", cfg.Resilience.CircuitBreaker,
			resilience.ResilienceDependencies{Logger: a.logger, Telemetry: a.telemetry})
		if err != nil {
			return err
		}
		execOpts = append(execOpts, sparql.WithCircuitBreaker(cb))
	}

	executor, err := sparql.NewHTTPExecutor(cfg.Endpoint, execOpts...)
	if err != nil {
		return err
	}
	a.executor = executor
	return nil
}

func (a *Agent) buildSchemaCache() {
	cfg := a.config

	// Introspection of other endpoints gets its own executor without the
	// configured endpoint's breaker.
	runners := func(endpoint string) (schema.QueryRunner, error) {
		if endpoint == a.executor.Endpoint() {
			return a.executor, nil
		}
		return sparql.NewHTTPExecutor(endpoint,
			sparql.WithLogger(a.logger),
			sparql.WithTelemetry(a.telemetry),
		)
	}

	extractor := schema.NewSPARQLExtractor(runners,
		schema.WithQueryTimeout(cfg.Schema.ExtractionTimeout),
		schema.WithRetry(resilience.RetryConfigFrom(cfg.Resilience.Retry)),
		schema.WithExtractorLogger(a.logger),
	)

	cacheOpts := []schema.CacheOption{
		schema.WithCacheTTL(cfg.Schema.TTL),
		schema.WithCacheLogger(a.logger),
	}
	if cfg.Schema.Persist && a.redis != nil {
		cacheOpts = append(cacheOpts, schema.WithStore(schema.NewRedisStore(a.redis.Client(),
			schema.WithTTL(cfg.Schema.TTL),
			schema.WithPrefix(cfg.Redis.Prefix+"schema:"),
		)))
	}
	a.schemas = schema.NewCache(extractor, cacheOpts...)
}

// Ask runs the pipeline for question. The returned error covers invalid
// input only; pipeline failures are reported in the Result.
func (a *Agent) Ask(ctx context.Context, question string) (*orchestration.Result, error) {
	return a.controller.Run(ctx, question)
}

// Seed adds the configured examples (cfg.Store.ExamplesFile, or the
// built-in set) to the example store and returns how many were new.
func (a *Agent) Seed(ctx context.Context) (int, error) {
	var (
		examples []retrieval.QueryExample
		err      error
	)
	if path := a.config.Store.ExamplesFile; path != "" {
		examples, err = retrieval.LoadExamples(path, a.config.Endpoint)
	} else {
		examples, err = retrieval.SeedExamples(a.config.Endpoint)
	}
	if err != nil {
		return 0, err
	}

	before, err := a.examples.Len(ctx)
	if err != nil {
		return 0, err
	}
	if _, err := retrieval.AddAll(ctx, a.examples, examples); err != nil {
		return 0, err
	}
	after, err := a.examples.Len(ctx)
	if err != nil {
		return 0, err
	}
	return after - before, nil
}

// AddExample stores one example and returns its ID.
func (a *Agent) AddExample(ctx context.Context, example retrieval.QueryExample) (string, error) {
	if example.Endpoint == "" {
		example.Endpoint = a.config.Endpoint
	}
	return a.examples.Add(ctx, example)
}

// SimilarExamples returns the k stored examples closest to question.
func (a *Agent) SimilarExamples(ctx context.Context, question string, k int) ([]retrieval.Match, error) {
	return a.examples.RetrieveSimilar(ctx, question, k)
}

// Schema returns the cached schema for the configured endpoint, extracting
// it when missing or expired.
func (a *Agent) Schema(ctx context.Context) schema.Result {
	return a.schemas.GetSchema(ctx, a.config.Endpoint)
}

// RefreshSchema forces a new extraction for the configured endpoint.
func (a *Agent) RefreshSchema(ctx context.Context) (*schema.Snapshot, error) {
	return a.schemas.Refresh(ctx, a.config.Endpoint)
}

// Validate probes whether the endpoint accepts query.
func (a *Agent) Validate(ctx context.Context, query string) error {
	return a.executor.Validate(ctx, query)
}

// Execute runs query once against the configured endpoint.
func (a *Agent) Execute(ctx context.Context, query string) sparql.Outcome {
	return a.executor.Execute(ctx, query, a.config.Pipeline.ExecutionTimeout)
}

// Config returns the agent's configuration.
func (a *Agent) Config() *core.Config {
	return a.config
}

// Logger returns the agent's logger.
func (a *Agent) Logger() core.Logger {
	return a.logger
}

// Close releases the embedder, Redis connection and telemetry exporters.
func (a *Agent) Close(ctx context.Context) error {
	var errs []error
	if a.embedder != nil {
		if err := a.embedder.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if a.embCache != nil {
		a.embCache.Close()
	}
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if a.otel != nil {
		if err := a.otel.Shutdown(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
