package resilience

import (
	"context"

	"github.com/itsneelabh/nl2sparql/telemetry"
)

// OTelMetricsCollector exports breaker events through the telemetry
// package helpers. Nothing is recorded until a provider is installed.
type OTelMetricsCollector struct {
	ctx context.Context
}

// NewOTelMetricsCollector creates a collector. ctx is attached to every
// measurement.
func NewOTelMetricsCollector(ctx context.Context) *OTelMetricsCollector {
	if ctx == nil {
		ctx = context.Background()
	}
	return &OTelMetricsCollector{ctx: ctx}
}

// RecordStateChange counts a transition, labelled with both states.
func (o *OTelMetricsCollector) RecordStateChange(name string, from, to string) {
	telemetry.CounterWithContext(o.ctx, telemetry.MetricCircuitBreakerStateChange,
		"circuit_breaker", name,
		"from_state", from,
		"to_state", to,
	)
}

// RecordRejection counts a call refused while the breaker was open.
func (o *OTelMetricsCollector) RecordRejection(name string) {
	telemetry.CounterWithContext(o.ctx, telemetry.MetricCircuitBreakerRejected,
		"circuit_breaker", name,
	)
}
