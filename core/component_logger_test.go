package core

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestProductionLoggerImplementsComponentAwareLogger verifies that ProductionLogger
// implements the ComponentAwareLogger interface
func TestProductionLoggerImplementsComponentAwareLogger(t *testing.T) {
	logger := NewProductionLogger(
		LoggingConfig{Level: "info", Format: "json", Output: "stdout"},
		DevelopmentConfig{},
		"test-service",
	)

	_, ok := logger.(ComponentAwareLogger)
	assert.True(t, ok, "ProductionLogger should implement ComponentAwareLogger interface")
}

// TestWithComponentPreservesConfiguration verifies that WithComponent preserves
// the parent logger's configuration (level, format, serviceName)
func TestWithComponentPreservesConfiguration(t *testing.T) {
	parentLogger := NewProductionLogger(
		LoggingConfig{Level: "debug", Format: "json", Output: "stdout"},
		DevelopmentConfig{},
		"parent-service",
	)

	cal, ok := parentLogger.(ComponentAwareLogger)
	require.True(t, ok)

	childLogger := cal.WithComponent("framework/orchestration")
	assert.NotSame(t, parentLogger, childLogger, "WithComponent should create a new logger instance")

	parentPL, ok := parentLogger.(*ProductionLogger)
	require.True(t, ok)
	childPL, ok := childLogger.(*ProductionLogger)
	require.True(t, ok)

	assert.Equal(t, parentPL.level, childPL.level, "Log level should be preserved")
	assert.Equal(t, parentPL.serviceName, childPL.serviceName, "Service name should be preserved")
	assert.Equal(t, parentPL.format, childPL.format, "Format should be preserved")
	assert.Equal(t, parentPL.metricsEnabled, childPL.metricsEnabled, "Metrics enabled should be preserved")

	assert.Equal(t, "framework/core", parentPL.component, "Parent keeps the default component")
	assert.Equal(t, "framework/orchestration", childPL.component, "Child should have new component")
}

// TestLogOutputIncludesComponent verifies that log output includes the component field
func TestLogOutputIncludesComponent(t *testing.T) {
	var buf bytes.Buffer

	logger := &ProductionLogger{
		level:       LogLevelInfo,
		serviceName: "test-service",
		component:   "framework/sparql",
		format:      "json",
		output:      &buf,
	}

	logger.Info("query executed", map[string]interface{}{
		"operation": "sparql_execute",
		"rows":      3,
		"error":     errors.New("ignored as text"),
	})

	var logEntry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &logEntry), "Log output should be valid JSON")

	assert.Equal(t, "framework/sparql", logEntry["component"])
	assert.Equal(t, "test-service", logEntry["service"])
	assert.Equal(t, "INFO", logEntry["level"])
	assert.Equal(t, "query executed", logEntry["message"])
	assert.Equal(t, "sparql_execute", logEntry["operation"])
	assert.Equal(t, float64(3), logEntry["rows"])
	assert.Equal(t, "ignored as text", logEntry["error"])
}

func TestLogLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	logger := &ProductionLogger{
		level:  LogLevelWarn,
		format: "json",
		output: &buf,
	}

	logger.Debug("debug", nil)
	logger.Info("info", nil)
	assert.Zero(t, buf.Len(), "entries below the level must be dropped")

	logger.Warn("warn", nil)
	logger.Error("error", nil)
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	assert.Len(t, lines, 2)
}

func TestTextFormat(t *testing.T) {
	var buf bytes.Buffer
	logger := &ProductionLogger{
		level:       LogLevelDebug,
		serviceName: "svc",
		component:   "framework/schema",
		format:      "text",
		timeFormat:  "15:04:05",
		output:      &buf,
	}

	logger.Debug("refreshing", map[string]interface{}{"zeta": 1, "alpha": "a"})

	out := buf.String()
	assert.Contains(t, out, "[DEBUG] [svc:framework/schema] refreshing")
	assert.Less(t, strings.Index(out, "alpha=a"), strings.Index(out, "zeta=1"), "fields are sorted")
}

func TestNewProductionLogger_DevelopmentOverrides(t *testing.T) {
	logger := NewProductionLogger(
		LoggingConfig{Level: "error", Format: "json"},
		DevelopmentConfig{DebugLogging: true, PrettyLogs: true},
		"svc",
	).(*ProductionLogger)

	assert.Equal(t, LogLevelDebug, logger.level)
	assert.Equal(t, "text", logger.format)
}

func TestParseLogLevel(t *testing.T) {
	tests := map[string]LogLevel{
		"debug":   LogLevelDebug,
		"INFO":    LogLevelInfo,
		"warning": LogLevelWarn,
		"warn":    LogLevelWarn,
		"error":   LogLevelError,
		"bogus":   LogLevelInfo,
	}
	for in, want := range tests {
		assert.Equal(t, want, ParseLogLevel(in), in)
	}
}

func TestComponentLogger(t *testing.T) {
	assert.IsType(t, &NoOpLogger{}, ComponentLogger(nil, "framework/x"))

	base := NewProductionLogger(LoggingConfig{}, DevelopmentConfig{}, "svc")
	tagged := ComponentLogger(base, "framework/retrieval")
	pl, ok := tagged.(*ProductionLogger)
	require.True(t, ok)
	assert.Equal(t, "framework/retrieval", pl.component)

	plain := &NoOpLogger{}
	assert.Same(t, plain, ComponentLogger(plain, "framework/x"))
}
