package providers

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"testing"
	"time"

	"github.com/itsneelabh/nl2sparql/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockLogger for testing
type mockLogger struct {
	debugCalls []map[string]interface{}
	infoCalls  []map[string]interface{}
	warnCalls  []map[string]interface{}
	errorCalls []map[string]interface{}
}

func (m *mockLogger) Debug(msg string, fields map[string]interface{}) {
	m.debugCalls = append(m.debugCalls, fields)
}

func (m *mockLogger) Info(msg string, fields map[string]interface{}) {
	m.infoCalls = append(m.infoCalls, fields)
}

func (m *mockLogger) Warn(msg string, fields map[string]interface{}) {
	m.warnCalls = append(m.warnCalls, fields)
}

func (m *mockLogger) Error(msg string, fields map[string]interface{}) {
	m.errorCalls = append(m.errorCalls, fields)
}

func newTestBase(logger core.Logger) *BaseClient {
	b := NewBaseClient(time.Second, logger)
	b.RetryDelay = time.Millisecond
	return b
}

func TestNewBaseClient(t *testing.T) {
	b := NewBaseClient(45*time.Second, nil)

	require.NotNil(t, b.HTTPClient)
	assert.Equal(t, 45*time.Second, b.HTTPClient.Timeout)
	assert.IsType(t, &core.NoOpLogger{}, b.Logger)
	assert.Equal(t, 2, b.MaxRetries)
	assert.Equal(t, float32(0.1), b.DefaultTemperature)
	assert.Equal(t, 1024, b.DefaultMaxTokens)
}

func TestBaseClient_ApplyDefaults(t *testing.T) {
	b := NewBaseClient(time.Second, nil)
	b.DefaultModel = "default-model"
	b.DefaultSystemPrompt = "system"

	tests := []struct {
		name  string
		input *core.AIOptions
		want  core.AIOptions
	}{
		{
			name:  "nil options",
			input: nil,
			want:  core.AIOptions{Model: "default-model", Temperature: 0.1, MaxTokens: 1024, SystemPrompt: "system"},
		},
		{
			name:  "explicit values kept",
			input: &core.AIOptions{Model: "m", Temperature: 0.7, MaxTokens: 10, SystemPrompt: "s"},
			want:  core.AIOptions{Model: "m", Temperature: 0.7, MaxTokens: 10, SystemPrompt: "s"},
		},
		{
			name:  "partial",
			input: &core.AIOptions{MaxTokens: 64},
			want:  core.AIOptions{Model: "default-model", Temperature: 0.1, MaxTokens: 64, SystemPrompt: "system"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := b.ApplyDefaults(tt.input)
			assert.Equal(t, tt.want, *got)
			if tt.input != nil {
				assert.NotSame(t, tt.input, got, "input must not be mutated")
			}
		})
	}
}

func TestBaseClient_ExecuteWithRetry(t *testing.T) {
	tests := []struct {
		name      string
		errs      []error
		wantCalls int
		wantErr   error
	}{
		{
			name:      "success first time",
			errs:      []error{nil},
			wantCalls: 1,
		},
		{
			name:      "transient then success",
			errs:      []error{fmt.Errorf("503: %w", core.ErrRequestFailed), nil},
			wantCalls: 2,
		},
		{
			name:      "permanent error not retried",
			errs:      []error{fmt.Errorf("401: %w", core.ErrInvalidConfiguration)},
			wantCalls: 1,
			wantErr:   core.ErrInvalidConfiguration,
		},
		{
			name: "retries exhausted",
			errs: []error{
				fmt.Errorf("t: %w", core.ErrTimeout),
				fmt.Errorf("t: %w", core.ErrTimeout),
				fmt.Errorf("t: %w", core.ErrTimeout),
			},
			wantCalls: 3,
			wantErr:   core.ErrMaxRetriesExceeded,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger := &mockLogger{}
			b := newTestBase(logger)

			calls := 0
			err := b.ExecuteWithRetry(context.Background(), "test", func() error {
				e := tt.errs[calls]
				calls++
				return e
			})

			assert.Equal(t, tt.wantCalls, calls)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.NotEmpty(t, logger.errorCalls)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestBaseClient_ExecuteWithRetryCanceled(t *testing.T) {
	b := newTestBase(nil)
	b.RetryDelay = time.Second

	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	err := b.ExecuteWithRetry(ctx, "test", func() error {
		calls++
		cancel()
		return fmt.Errorf("flaky: %w", core.ErrConnectionFailed)
	})

	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, calls)
}

func TestBaseClient_HandleError(t *testing.T) {
	b := NewBaseClient(time.Second, nil)

	tests := []struct {
		status    int
		wantIs    error
		retryable bool
	}{
		{status: http.StatusUnauthorized, wantIs: core.ErrInvalidConfiguration},
		{status: http.StatusForbidden, wantIs: core.ErrInvalidConfiguration},
		{status: http.StatusTooManyRequests, wantIs: core.ErrRequestFailed, retryable: true},
		{status: http.StatusInternalServerError, wantIs: core.ErrRequestFailed, retryable: true},
		{status: http.StatusBadGateway, wantIs: core.ErrRequestFailed, retryable: true},
		{status: http.StatusBadRequest, wantIs: core.ErrInvalidInput},
		{status: http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			err := b.HandleError(tt.status, "details", "test")
			require.Error(t, err)
			assert.Contains(t, err.Error(), "test API error")
			if tt.wantIs != nil {
				assert.ErrorIs(t, err, tt.wantIs)
			}
			assert.Equal(t, tt.retryable, core.IsRetryable(err))
		})
	}
}

type timeoutErr struct{}

func (timeoutErr) Error() string   { return "i/o timeout" }
func (timeoutErr) Timeout() bool   { return true }
func (timeoutErr) Temporary() bool { return true }

var _ net.Error = timeoutErr{}

func TestClassifyTransportError(t *testing.T) {
	canceled, cancel := context.WithCancel(context.Background())
	cancel()

	tests := []struct {
		name   string
		ctx    context.Context
		err    error
		wantIs error
	}{
		{name: "network timeout", ctx: context.Background(), err: timeoutErr{}, wantIs: core.ErrTimeout},
		{name: "deadline", ctx: context.Background(), err: context.DeadlineExceeded, wantIs: core.ErrTimeout},
		{name: "connection refused", ctx: context.Background(), err: errors.New("dial tcp: connection refused"), wantIs: core.ErrConnectionFailed},
		{name: "caller canceled", ctx: canceled, err: errors.New("whatever"), wantIs: context.Canceled},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ErrorIs(t, ClassifyTransportError(tt.ctx, tt.err, "test"), tt.wantIs)
		})
	}
}

func TestBaseClient_Logging(t *testing.T) {
	logger := &mockLogger{}
	b := NewBaseClient(time.Second, logger)
	start := time.Now().Add(-time.Second)

	b.LogRequest("test", &core.AIOptions{Model: "m", MaxTokens: 5}, "prompt")
	require.Len(t, logger.debugCalls, 1)
	assert.Equal(t, "ai_request", logger.debugCalls[0]["operation"])
	assert.Equal(t, 6, logger.debugCalls[0]["prompt_length"])

	b.LogResponse("test", "m", core.TokenUsage{PromptTokens: 3, CompletionTokens: 2, TotalTokens: 5}, start)
	require.Len(t, logger.infoCalls, 1)
	assert.Equal(t, 5, logger.infoCalls[0]["total_tokens"])
	assert.Contains(t, logger.infoCalls[0], "tokens_per_second")

	b.LogFailure("test", "request_execution", errors.New("boom"), start)
	require.Len(t, logger.errorCalls, 1)
	assert.Equal(t, "request_execution", logger.errorCalls[0]["phase"])
}

func TestBaseClient_SetTelemetry(t *testing.T) {
	b := NewBaseClient(time.Second, nil)
	b.SetTelemetry(nil)
	assert.IsType(t, &core.NoOpTelemetry{}, b.Telemetry)

	ctx, span := b.StartSpan(context.Background(), "x")
	assert.NotNil(t, ctx)
	span.SetAttribute("k", "v")
	span.End()
}
