package schema

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/itsneelabh/nl2sparql/core"
	"github.com/itsneelabh/nl2sparql/resilience"
	"github.com/itsneelabh/nl2sparql/sparql"
	"github.com/itsneelabh/nl2sparql/telemetry"
)

// Extractor builds a snapshot from an endpoint.
type Extractor interface {
	Extract(ctx context.Context, endpoint string) (*Snapshot, error)
}

// QueryRunner runs one introspection query against an endpoint.
type QueryRunner interface {
	Execute(ctx context.Context, query string, timeout time.Duration) sparql.Outcome
}

// RunnerFactory returns the runner for an endpoint.
type RunnerFactory func(endpoint string) (QueryRunner, error)

const classesQuery = `PREFIX rdfs: <http://www.w3.org/2000/01/rdf-schema#>
PREFIX owl: <http://www.w3.org/2002/07/owl#>
SELECT ?class (SAMPLE(?l) AS ?label) (COUNT(?instance) AS ?instanceCount)
WHERE {
  VALUES ?type { rdfs:Class owl:Class }
  ?class a ?type .
  OPTIONAL { ?class rdfs:label ?l . }
  OPTIONAL { ?instance a ?class . }
}
GROUP BY ?class
ORDER BY DESC(?instanceCount)
LIMIT 50`

const propertiesQuery = `PREFIX rdf: <http://www.w3.org/1999/02/22-rdf-syntax-ns#>
PREFIX rdfs: <http://www.w3.org/2000/01/rdf-schema#>
SELECT ?property (SAMPLE(?d) AS ?domain) (SAMPLE(?r) AS ?range) (COUNT(?s) AS ?usageCount)
WHERE {
  ?property a rdf:Property .
  OPTIONAL { ?property rdfs:domain ?d . }
  OPTIONAL { ?property rdfs:range ?r . }
  OPTIONAL { ?s ?property ?o . }
}
GROUP BY ?property
ORDER BY DESC(?usageCount)
LIMIT 100`

const predicatesQuery = `SELECT ?predicate (COUNT(?predicate) AS ?count)
WHERE {
  ?s ?predicate ?o .
}
GROUP BY ?predicate
ORDER BY DESC(?count)
LIMIT 50`

const statisticsQuery = `PREFIX dcat: <http://www.w3.org/ns/dcat#>
PREFIX dct: <http://purl.org/dc/terms/>
SELECT ?datasetCount ?distributionCount ?catalogCount ?publisherCount ?themeCount
WHERE {
  { SELECT (COUNT(DISTINCT ?dataset) AS ?datasetCount) WHERE { ?dataset a dcat:Dataset . } }
  { SELECT (COUNT(DISTINCT ?distribution) AS ?distributionCount) WHERE { ?distribution a dcat:Distribution . } }
  { SELECT (COUNT(DISTINCT ?catalog) AS ?catalogCount) WHERE { ?catalog a dcat:Catalog . } }
  { SELECT (COUNT(DISTINCT ?publisher) AS ?publisherCount) WHERE { ?dataset dct:publisher ?publisher . } }
  { SELECT (COUNT(DISTINCT ?theme) AS ?themeCount) WHERE { ?dataset dcat:theme ?theme . } }
}`

// SPARQLExtractor introspects an endpoint with SPARQL queries. Each query is
// retried on timeout. A query that still fails contributes nothing; Extract
// fails only when every query fails.
type SPARQLExtractor struct {
	runners RunnerFactory
	timeout time.Duration
	retry   *resilience.RetryConfig
	logger  core.Logger
	now     func() time.Time
}

// ExtractorOption customizes a SPARQLExtractor.
type ExtractorOption func(*SPARQLExtractor)

// WithQueryTimeout bounds each introspection query.
func WithQueryTimeout(d time.Duration) ExtractorOption {
	return func(e *SPARQLExtractor) {
		if d > 0 {
			e.timeout = d
		}
	}
}

// WithRetry sets the timeout retry policy.
func WithRetry(cfg *resilience.RetryConfig) ExtractorOption {
	return func(e *SPARQLExtractor) {
		if cfg != nil {
			e.retry = cfg
		}
	}
}

// WithExtractorLogger sets the logger.
func WithExtractorLogger(logger core.Logger) ExtractorOption {
	return func(e *SPARQLExtractor) {
		e.logger = core.ComponentLogger(logger, "framework/schema")
	}
}

// NewSPARQLExtractor creates an extractor that obtains runners from factory.
func NewSPARQLExtractor(factory RunnerFactory, opts ...ExtractorOption) *SPARQLExtractor {
	e := &SPARQLExtractor{
		runners: factory,
		timeout: core.DefaultExecutionTimeout,
		retry:   resilience.DefaultRetryConfig(),
		logger:  &core.NoOpLogger{},
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Extract runs the introspection queries and assembles a snapshot.
func (e *SPARQLExtractor) Extract(ctx context.Context, endpoint string) (*Snapshot, error) {
	runner, err := e.runners(endpoint)
	if err != nil {
		return nil, &core.FrameworkError{Op: "schema.Extract", Kind: "schema", ID: endpoint, Err: err}
	}

	start := time.Now()
	snap := Empty(endpoint)
	var failures []error

	classRows, err := e.query(ctx, runner, "classes", classesQuery)
	if err != nil {
		failures = append(failures, err)
	}
	for _, row := range classRows {
		uri := row["class"]
		if uri == "" {
			continue
		}
		snap.Classes = append(snap.Classes, Class{
			URI:           uri,
			Name:          LocalName(uri),
			Label:         row["label"],
			InstanceCount: atoi(row["instanceCount"]),
		})
	}

	propRows, err := e.query(ctx, runner, "properties", propertiesQuery)
	if err != nil {
		failures = append(failures, err)
	}
	declared := make(map[string]struct{}, len(propRows))
	for _, row := range propRows {
		uri := row["property"]
		if uri == "" {
			continue
		}
		declared[uri] = struct{}{}
		snap.Properties = append(snap.Properties, Property{
			URI:        uri,
			Name:       LocalName(uri),
			UsageCount: atoi(row["usageCount"]),
			Domain:     row["domain"],
			Range:      row["range"],
		})
	}

	predRows, err := e.query(ctx, runner, "predicates", predicatesQuery)
	if err != nil {
		failures = append(failures, err)
	}
	for _, row := range predRows {
		uri := row["predicate"]
		if uri == "" {
			continue
		}
		if _, ok := declared[uri]; ok {
			continue
		}
		declared[uri] = struct{}{}
		snap.Properties = append(snap.Properties, Property{
			URI:        uri,
			Name:       LocalName(uri),
			UsageCount: atoi(row["count"]),
		})
	}

	statRows, err := e.query(ctx, runner, "statistics", statisticsQuery)
	if err != nil {
		failures = append(failures, err)
	}
	if len(statRows) > 0 {
		row := statRows[0]
		snap.Statistics = Statistics{
			Datasets:      atoi(row["datasetCount"]),
			Distributions: atoi(row["distributionCount"]),
			Catalogs:      atoi(row["catalogCount"]),
			Publishers:    atoi(row["publisherCount"]),
			Themes:        atoi(row["themeCount"]),
		}
	}

	if len(failures) == 4 {
		telemetry.Counter(telemetry.MetricSchemaExtractions, "status", "error")
		return nil, &core.FrameworkError{
			Op:      "schema.Extract",
			Kind:    "schema",
			ID:      endpoint,
			Message: "all introspection queries failed",
			Err:     fmt.Errorf("%w: %w", core.ErrExtractionFailed, errors.Join(failures...)),
		}
	}

	sort.SliceStable(snap.Classes, func(i, j int) bool {
		return snap.Classes[i].InstanceCount > snap.Classes[j].InstanceCount
	})
	sort.SliceStable(snap.Properties, func(i, j int) bool {
		return snap.Properties[i].UsageCount > snap.Properties[j].UsageCount
	})
	snap.ExtractedAt = e.now()

	telemetry.Counter(telemetry.MetricSchemaExtractions, "status", "success")
	e.logger.Info("Schema extracted", map[string]interface{}{
		"operation":      "extract_schema",
		"endpoint":       endpoint,
		"classes":        len(snap.Classes),
		"properties":     len(snap.Properties),
		"datasets":       snap.Statistics.Datasets,
		"failed_queries": len(failures),
		"duration_ms":    time.Since(start).Milliseconds(),
	})
	return snap, nil
}

// query runs one introspection query, retrying only on timeout.
func (e *SPARQLExtractor) query(ctx context.Context, runner QueryRunner, name, q string) ([]sparql.Binding, error) {
	var rows []sparql.Binding

	cfg := *e.retry
	cfg.RetryIf = func(err error) bool {
		return errors.Is(err, core.ErrTimeout)
	}

	err := resilience.Retry(ctx, &cfg, func() error {
		switch o := runner.Execute(ctx, q, e.timeout).(type) {
		case sparql.Success:
			rows = o.Bindings
			return nil
		case sparql.Timeout:
			return fmt.Errorf("%s: %w", o.String(), core.ErrTimeout)
		default:
			return errors.New(o.String())
		}
	})
	if err != nil {
		e.logger.Warn("Introspection query failed", map[string]interface{}{
			"operation": "extract_schema",
			"query":     name,
			"error":     err,
		})
		return nil, fmt.Errorf("%s query: %w", name, err)
	}
	return rows, nil
}

func atoi(s string) int {
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0
	}
	return n
}
