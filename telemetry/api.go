// Package telemetry provides tracing and metrics for the query pipeline.
//
// The package-level helpers are the simple API used throughout the code:
//
//	telemetry.Counter("pipeline.runs", "outcome", "success")
//	start := time.Now()
//	defer telemetry.Duration("sparql.execution.duration_ms", start, "kind", "success")
//
// They are silent no-ops until NewOTelProvider installs a meter, so
// components never need to check whether telemetry is enabled.
package telemetry

import (
	"context"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

var global atomic.Pointer[MetricInstruments]

// SetMetrics installs m as the target of the package-level helpers.
// Passing nil turns them back into no-ops.
func SetMetrics(m *MetricInstruments) {
	global.Store(m)
}

// Counter increments a counter metric by 1.
// Labels should be provided as key-value pairs.
// Example: Counter("sparql.execution.outcome", "kind", "timeout")
func Counter(name string, labels ...string) {
	CounterWithContext(context.Background(), name, labels...)
}

// CounterWithContext is Counter with a caller-supplied context, so exemplars
// can link the measurement to the active span.
func CounterWithContext(ctx context.Context, name string, labels ...string) {
	m := global.Load()
	if m == nil {
		return // Telemetry not initialized, silent no-op
	}
	_ = m.RecordCounter(ctx, name, 1, metric.WithAttributes(parseLabels(labels...)...))
}

// Histogram records a value in a distribution.
// Example: Histogram("pipeline.generation_attempts", 2, "outcome", "success")
func Histogram(name string, value float64, labels ...string) {
	m := global.Load()
	if m == nil {
		return
	}
	_ = m.RecordHistogram(context.Background(), name, value, metric.WithAttributes(parseLabels(labels...)...))
}

// Duration records elapsed time since startTime in milliseconds.
// Example:
//
//	start := time.Now()
//	defer Duration("generation.duration_ms", start, "provider", "openai")
func Duration(name string, startTime time.Time, labels ...string) {
	ms := float64(time.Since(startTime).Microseconds()) / 1000.0
	Histogram(name, ms, labels...)
}

// parseLabels converts key-value pairs into attributes.
// A trailing key without a value is dropped.
func parseLabels(labels ...string) []attribute.KeyValue {
	attrs := make([]attribute.KeyValue, 0, len(labels)/2)
	for i := 0; i+1 < len(labels); i += 2 {
		attrs = append(attrs, attribute.String(labels[i], labels[i+1]))
	}
	return attrs
}
