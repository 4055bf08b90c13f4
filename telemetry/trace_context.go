package telemetry

import (
	"context"

	"go.opentelemetry.io/otel/trace"
)

// TraceContext identifies the span active in a context, for log correlation.
type TraceContext struct {
	TraceID string `json:"trace_id"`
	SpanID  string `json:"span_id"`
	Sampled bool   `json:"sampled"`
}

// GetTraceContext returns the IDs of the span in ctx, or a zero value when
// there is no valid span (telemetry disabled or no-op provider).
func GetTraceContext(ctx context.Context) TraceContext {
	if ctx == nil {
		return TraceContext{}
	}
	sc := trace.SpanFromContext(ctx).SpanContext()
	if !sc.IsValid() {
		return TraceContext{}
	}
	return TraceContext{
		TraceID: sc.TraceID().String(),
		SpanID:  sc.SpanID().String(),
		Sampled: sc.IsSampled(),
	}
}

// HasTraceContext reports whether ctx carries a valid span.
func HasTraceContext(ctx context.Context) bool {
	return ctx != nil && trace.SpanFromContext(ctx).SpanContext().IsValid()
}

// WithTraceFields adds trace_id and span_id to fields when ctx carries a
// valid span, and returns fields.
//
//	logger.Info("Pipeline finished", telemetry.WithTraceFields(ctx, map[string]interface{}{
//	    "operation": "pipeline_run",
//	}))
func WithTraceFields(ctx context.Context, fields map[string]interface{}) map[string]interface{} {
	tc := GetTraceContext(ctx)
	if tc.TraceID == "" {
		return fields
	}
	if fields == nil {
		fields = make(map[string]interface{}, 2)
	}
	fields["trace_id"] = tc.TraceID
	fields["span_id"] = tc.SpanID
	return fields
}
