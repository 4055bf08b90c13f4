package telemetry

import (
	"context"
	"fmt"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Pipeline metric names
const (
	// Retry controller
	MetricPipelineRuns        = "pipeline.runs"
	MetricPipelineTransitions = "pipeline.transitions"
	MetricPipelineDuration    = "pipeline.duration_ms"

	// Query executor
	MetricExecutionDuration = "sparql.execution.duration_ms"
	MetricExecutionOutcome  = "sparql.execution.outcome"

	// Query generator
	MetricGenerationDuration = "generation.duration_ms"
	MetricGenerationSuspect  = "generation.suspect"

	// Schema cache
	MetricSchemaLookups     = "schema.cache.lookups"
	MetricSchemaExtractions = "schema.extractions"

	// Example store
	MetricEmbeddingErrors = "retrieval.embedding.errors"
	MetricEmbeddingCache  = "embedding.cache.lookups"

	// Circuit breaker
	MetricCircuitBreakerStateChange = "circuit_breaker.state_changes"
	MetricCircuitBreakerRejected    = "circuit_breaker.rejected"

	// AI provider
	MetricAIRequestDuration  = "ai.request_duration_ms"
	MetricAIPromptTokens     = "ai.prompt_tokens"
	MetricAICompletionTokens = "ai.completion_tokens"
)

// MetricInstruments holds cached metric instruments for efficient recording
type MetricInstruments struct {
	meter      metric.Meter
	counters   map[string]metric.Int64Counter
	histograms map[string]metric.Float64Histogram
	mu         sync.RWMutex
}

// NewMetricInstruments creates a new metrics instrument cache on the global
// meter provider.
func NewMetricInstruments(meterName string) *MetricInstruments {
	return NewMetricInstrumentsFromMeter(otel.Meter(meterName))
}

// NewMetricInstrumentsFromMeter creates a new metrics instrument cache on meter.
func NewMetricInstrumentsFromMeter(meter metric.Meter) *MetricInstruments {
	return &MetricInstruments{
		meter:      meter,
		counters:   make(map[string]metric.Int64Counter),
		histograms: make(map[string]metric.Float64Histogram),
	}
}

// RecordCounter increments a counter metric
func (m *MetricInstruments) RecordCounter(ctx context.Context, name string, value int64, opts ...metric.AddOption) error {
	m.mu.RLock()
	counter, exists := m.counters[name]
	m.mu.RUnlock()

	if !exists {
		m.mu.Lock()
		// Double-check after acquiring write lock
		if counter, exists = m.counters[name]; !exists {
			var err error
			counter, err = m.meter.Int64Counter(name)
			if err != nil {
				m.mu.Unlock()
				return fmt.Errorf("failed to create counter %s: %w", name, err)
			}
			m.counters[name] = counter
		}
		m.mu.Unlock()
	}

	counter.Add(ctx, value, opts...)
	return nil
}

// RecordHistogram records a value distribution (like latencies)
func (m *MetricInstruments) RecordHistogram(ctx context.Context, name string, value float64, opts ...metric.RecordOption) error {
	m.mu.RLock()
	histogram, exists := m.histograms[name]
	m.mu.RUnlock()

	if !exists {
		m.mu.Lock()
		if histogram, exists = m.histograms[name]; !exists {
			var err error
			histogram, err = m.meter.Float64Histogram(name)
			if err != nil {
				m.mu.Unlock()
				return fmt.Errorf("failed to create histogram %s: %w", name, err)
			}
			m.histograms[name] = histogram
		}
		m.mu.Unlock()
	}

	histogram.Record(ctx, value, opts...)
	return nil
}

// RecordError increments an error counter with error type
func (m *MetricInstruments) RecordError(ctx context.Context, name string, errorType string) error {
	return m.RecordCounter(ctx, name, 1,
		metric.WithAttributes(attribute.String("error.type", errorType)))
}
