package resilience

import (
	"context"

	"github.com/itsneelabh/nl2sparql/core"
)

// ResilienceDependencies holds optional dependencies
type ResilienceDependencies struct {
	Logger    core.Logger
	Telemetry core.Telemetry
}

// CreateCircuitBreaker builds a breaker from the user-facing configuration.
// State changes and rejections are exported as metrics when telemetry is
// provided.
func CreateCircuitBreaker(name string, cfg core.CircuitBreakerConfig, deps ResilienceDependencies) (*CircuitBreaker, error) {
	logger := core.ComponentLogger(deps.Logger, "framework/resilience")
	config := ConfigFrom(name, cfg, logger)

	if deps.Telemetry != nil {
		if _, noop := deps.Telemetry.(*core.NoOpTelemetry); !noop {
			config.Metrics = NewOTelMetricsCollector(context.Background())
			logger.Info("Telemetry integration enabled for circuit breaker", map[string]interface{}{
				"operation": "telemetry_integration",
				"name":      name,
			})
		}
	}

	logger.Info("Creating circuit breaker", map[string]interface{}{
		"operation":         "circuit_breaker_creation",
		"name":              name,
		"failure_threshold": config.FailureThreshold,
		"sleep_window":      config.SleepWindow.String(),
	})

	return NewCircuitBreaker(config)
}
