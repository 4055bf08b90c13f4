package resilience

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/itsneelabh/nl2sparql/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type capturingLogger struct {
	mu       sync.Mutex
	messages []string
}

func (l *capturingLogger) record(msg string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.messages = append(l.messages, msg)
}

func (l *capturingLogger) Debug(msg string, fields map[string]interface{}) { l.record(msg) }
func (l *capturingLogger) Info(msg string, fields map[string]interface{})  { l.record(msg) }
func (l *capturingLogger) Warn(msg string, fields map[string]interface{})  { l.record(msg) }
func (l *capturingLogger) Error(msg string, fields map[string]interface{}) { l.record(msg) }

func (l *capturingLogger) has(msg string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, m := range l.messages {
		if m == msg {
			return true
		}
	}
	return false
}

type spanTelemetry struct{}

func (spanTelemetry) StartSpan(ctx context.Context, name string) (context.Context, core.Span) {
	return ctx, &core.NoOpSpan{}
}

func (spanTelemetry) RecordMetric(name string, value float64, labels map[string]string) {}

func TestCreateCircuitBreaker(t *testing.T) {
	cfg := core.CircuitBreakerConfig{Enabled: true, Threshold: 3, Timeout: 20 * time.Second, HalfOpenRequests: 1}

	tests := []struct {
		name        string
		telemetry   core.Telemetry
		wantMetrics bool
	}{
		{name: "no telemetry"},
		{name: "noop telemetry", telemetry: &core.NoOpTelemetry{}},
		{name: "real telemetry", telemetry: spanTelemetry{}, wantMetrics: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger := &capturingLogger{}
			cb, err := CreateCircuitBreaker("sparql-endpoint", cfg, ResilienceDependencies{
				Logger:    logger,
				Telemetry: tt.telemetry,
			})
			require.NoError(t, err)

			assert.Equal(t, "sparql-endpoint", cb.Name())
			assert.Equal(t, 3, cb.config.FailureThreshold)
			assert.Equal(t, 20*time.Second, cb.config.SleepWindow)
			assert.True(t, logger.has("Creating circuit breaker"))

			_, isOTel := cb.config.Metrics.(*OTelMetricsCollector)
			assert.Equal(t, tt.wantMetrics, isOTel)
			assert.Equal(t, tt.wantMetrics, logger.has("Telemetry integration enabled for circuit breaker"))
		})
	}
}
