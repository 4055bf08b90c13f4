package telemetry

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/itsneelabh/nl2sparql/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func newTestProvider(t *testing.T) (*OTelProvider, *tracetest.InMemoryExporter, *sdkmetric.ManualReader) {
	t.Helper()

	exporter := tracetest.NewInMemoryExporter()
	reader := sdkmetric.NewManualReader()

	p, err := NewOTelProvider(context.Background(),
		core.TelemetryConfig{ServiceName: "test-service", SamplingRate: 1.0},
		WithSpanExporter(exporter),
		WithMetricReader(reader),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = p.Shutdown(context.Background()) })

	return p, exporter, reader
}

func collect(t *testing.T, reader *sdkmetric.ManualReader) map[string]metricdata.Aggregation {
	t.Helper()

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))

	out := make(map[string]metricdata.Aggregation)
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			out[m.Name] = m.Data
		}
	}
	return out
}

func TestOTelProvider_Spans(t *testing.T) {
	p, exporter, _ := newTestProvider(t)

	_, span := p.StartSpan(context.Background(), "sparql.execute")
	span.SetAttribute("sparql.endpoint", "https://example.org/sparql")
	span.SetAttribute("sparql.rows", 3)
	span.SetAttribute("sparql.timeout_ms", int64(1000))
	span.SetAttribute("retry", true)
	span.SetAttribute("ratio", 0.5)
	span.SetAttribute("kind", struct{ A int }{1})
	span.RecordError(errors.New("boom"))
	span.End()

	require.NoError(t, p.traceProvider.ForceFlush(context.Background()))

	spans := exporter.GetSpans()
	require.Len(t, spans, 1)
	assert.Equal(t, "sparql.execute", spans[0].Name)

	attrs := map[attribute.Key]attribute.Value{}
	for _, kv := range spans[0].Attributes {
		attrs[kv.Key] = kv.Value
	}
	assert.Equal(t, "https://example.org/sparql", attrs["sparql.endpoint"].AsString())
	assert.Equal(t, int64(3), attrs["sparql.rows"].AsInt64())
	assert.True(t, attrs["retry"].AsBool())
	assert.Equal(t, "{1}", attrs["kind"].AsString())
	require.Len(t, spans[0].Events, 1, "RecordError adds an exception event")
}

func TestPackageHelpers(t *testing.T) {
	_, _, reader := newTestProvider(t)

	Counter(MetricPipelineRuns, "outcome", "success")
	Counter(MetricPipelineRuns, "outcome", "success")
	Counter(MetricPipelineRuns, "outcome", "failure", "dangling")
	Duration(MetricExecutionDuration, time.Now().Add(-10*time.Millisecond), "kind", "success")

	data := collect(t, reader)

	sum, ok := data[MetricPipelineRuns].(metricdata.Sum[int64])
	require.True(t, ok, "pipeline.runs should be an int64 sum")
	var total int64
	for _, dp := range sum.DataPoints {
		total += dp.Value
	}
	assert.Equal(t, int64(3), total)
	assert.Len(t, sum.DataPoints, 2, "one series per outcome label")

	hist, ok := data[MetricExecutionDuration].(metricdata.Histogram[float64])
	require.True(t, ok)
	require.Len(t, hist.DataPoints, 1)
	assert.GreaterOrEqual(t, hist.DataPoints[0].Sum, 10.0)
}

func TestPackageHelpers_NoopWithoutProvider(t *testing.T) {
	SetMetrics(nil)
	assert.NotPanics(t, func() {
		Counter("x")
		Histogram("y", 1)
		Duration("z", time.Now())
	})
}

func TestShutdownDetachesHelpers(t *testing.T) {
	p, err := NewOTelProvider(context.Background(),
		core.TelemetryConfig{ServiceName: "svc"},
		WithSpanExporter(tracetest.NewInMemoryExporter()),
	)
	require.NoError(t, err)
	assert.Same(t, p.Metrics(), global.Load())

	require.NoError(t, p.Shutdown(context.Background()))
	assert.Nil(t, global.Load())
}

func TestRecordMetric(t *testing.T) {
	p, _, reader := newTestProvider(t)

	p.RecordMetric("schema.snapshot.classes", 42, map[string]string{"endpoint": "e"})

	hist, ok := collect(t, reader)["schema.snapshot.classes"].(metricdata.Histogram[float64])
	require.True(t, ok)
	require.Len(t, hist.DataPoints, 1)
	assert.Equal(t, 42.0, hist.DataPoints[0].Sum)
}

func TestNewOTelProvider_UnknownExporter(t *testing.T) {
	_, err := NewOTelProvider(context.Background(), core.TelemetryConfig{Exporter: "zipkin"})
	require.Error(t, err)
	assert.ErrorIs(t, err, core.ErrInvalidConfiguration)
}

func TestNewSpanExporter(t *testing.T) {
	for _, name := range []string{"otlp", "otlp-http", "stdout"} {
		t.Run(name, func(t *testing.T) {
			exporter, err := newSpanExporter(context.Background(), core.TelemetryConfig{
				Exporter: name,
				Endpoint: "localhost:4318",
				Insecure: true,
			})
			require.NoError(t, err)
			require.NotNil(t, exporter)
			assert.NoError(t, exporter.Shutdown(context.Background()))
		})
	}
}

func TestNewTracedHTTPClient(t *testing.T) {
	p, exporter, _ := newTestProvider(t)

	var traceparent string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		traceparent = r.Header.Get("traceparent")
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	client := NewTracedHTTPClient(nil, time.Second)
	assert.Equal(t, time.Second, client.Timeout)

	ctx, parent := p.StartSpan(context.Background(), "parent")
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL, nil)
	require.NoError(t, err)
	resp, err := client.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	parent.End()

	assert.NotEmpty(t, traceparent, "trace context should propagate to the server")

	require.NoError(t, p.traceProvider.ForceFlush(context.Background()))
	names := []string{}
	for _, s := range exporter.GetSpans() {
		names = append(names, s.Name)
	}
	assert.Contains(t, names, "parent")
	assert.Contains(t, names, "HTTP GET "+req.URL.Host)
}

func TestTraceContext(t *testing.T) {
	assert.False(t, HasTraceContext(context.Background()))
	assert.Equal(t, TraceContext{}, GetTraceContext(context.Background()))

	fields := map[string]interface{}{"operation": "x"}
	assert.NotContains(t, WithTraceFields(context.Background(), fields), "trace_id")

	p, _, _ := newTestProvider(t)
	ctx, span := p.StartSpan(context.Background(), "pipeline.run")
	defer span.End()

	require.True(t, HasTraceContext(ctx))
	tc := GetTraceContext(ctx)
	assert.Len(t, tc.TraceID, 32)
	assert.Len(t, tc.SpanID, 16)
	assert.True(t, tc.Sampled)

	got := WithTraceFields(ctx, map[string]interface{}{"operation": "x"})
	assert.Equal(t, tc.TraceID, got["trace_id"])
	assert.Equal(t, tc.SpanID, got["span_id"])
	assert.Equal(t, "x", got["operation"])
}
