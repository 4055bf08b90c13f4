package core

import (
	"errors"
	"fmt"
	"testing"
)

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected bool
	}{
		{"ErrTimeout is retryable", ErrTimeout, true},
		{"ErrConnectionFailed is retryable", ErrConnectionFailed, true},
		{"ErrRequestFailed is retryable", ErrRequestFailed, true},
		{"wrapped retryable error is retryable", fmt.Errorf("operation failed: %w", ErrTimeout), true},
		{"ErrInvalidInput is not retryable", ErrInvalidInput, false},
		{"ErrCircuitBreakerOpen is not retryable", ErrCircuitBreakerOpen, false},
		{"plain error is not retryable", errors.New("boom"), false},
		{"nil is not retryable", nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsRetryable(tt.err); got != tt.expected {
				t.Errorf("IsRetryable(%v) = %v, want %v", tt.err, got, tt.expected)
			}
		})
	}
}

func TestIsConfigurationError(t *testing.T) {
	if !IsConfigurationError(fmt.Errorf("x: %w", ErrMissingConfiguration)) {
		t.Error("wrapped ErrMissingConfiguration should be a configuration error")
	}
	if !IsConfigurationError(ErrInvalidConfiguration) {
		t.Error("ErrInvalidConfiguration should be a configuration error")
	}
	if IsConfigurationError(ErrTimeout) {
		t.Error("ErrTimeout should not be a configuration error")
	}
}

func TestIsPipelineError(t *testing.T) {
	for _, err := range []error{ErrEmbeddingFailed, ErrGenerationFailed, ErrExtractionFailed} {
		wrapped := &FrameworkError{Op: "test", Err: err}
		if !IsPipelineError(wrapped) {
			t.Errorf("IsPipelineError(%v) = false, want true", wrapped)
		}
	}
	if IsPipelineError(ErrInvalidInput) {
		t.Error("ErrInvalidInput should not be a pipeline error")
	}
}

func TestFrameworkError_Error(t *testing.T) {
	tests := []struct {
		name string
		err  *FrameworkError
		want string
	}{
		{
			name: "op message and cause",
			err:  &FrameworkError{Op: "schema.Extract", Message: "classes query", Err: ErrTimeout},
			want: "schema.Extract: classes query: operation timeout",
		},
		{
			name: "op id and cause",
			err:  &FrameworkError{Op: "retrieval.Add", ID: "abc", Err: ErrEmbeddingFailed},
			want: "retrieval.Add [abc]: embedding failed",
		},
		{
			name: "op and cause",
			err:  &FrameworkError{Op: "sparql.Execute", Err: ErrRequestFailed},
			want: "sparql.Execute: request failed",
		},
		{
			name: "message only",
			err:  &FrameworkError{Message: "endpoint is required"},
			want: "endpoint is required",
		},
		{
			name: "kind only",
			err:  &FrameworkError{Kind: "config"},
			want: "config error",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.want {
				t.Errorf("Error() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestFrameworkError_Unwrap(t *testing.T) {
	err := NewFrameworkError("orchestration.Generate", "generation", ErrGenerationFailed)
	wrapped := fmt.Errorf("outer: %w", err)

	if !errors.Is(wrapped, ErrGenerationFailed) {
		t.Error("errors.Is should see through FrameworkError")
	}

	var fe *FrameworkError
	if !errors.As(wrapped, &fe) {
		t.Fatal("errors.As should find the FrameworkError")
	}
	if fe.Kind != "generation" {
		t.Errorf("Kind = %q, want generation", fe.Kind)
	}
}
