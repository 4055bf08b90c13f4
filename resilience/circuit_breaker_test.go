package resilience

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/itsneelabh/nl2sparql/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type recordingMetrics struct {
	mu          sync.Mutex
	transitions []string
	rejections  int
}

func (r *recordingMetrics) RecordStateChange(name, from, to string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.transitions = append(r.transitions, from+"->"+to)
}

func (r *recordingMetrics) RecordRejection(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rejections++
}

func newTestBreaker(t *testing.T, threshold int) (*CircuitBreaker, *fakeClock, *recordingMetrics) {
	t.Helper()

	metrics := &recordingMetrics{}
	cb, err := NewCircuitBreaker(&CircuitBreakerConfig{
		Name:             "sparql",
		FailureThreshold: threshold,
		SleepWindow:      10 * time.Second,
		HalfOpenRequests: 1,
		Metrics:          metrics,
	})
	require.NoError(t, err)

	clock := &fakeClock{now: time.Unix(1700000000, 0)}
	cb.now = clock.Now
	cb.stateChangedAt = clock.Now()
	return cb, clock, metrics
}

func TestCircuitBreaker_OpensAfterThreshold(t *testing.T) {
	cb, _, metrics := newTestBreaker(t, 3)
	failing := func() error { return core.ErrConnectionFailed }

	for i := 0; i < 3; i++ {
		err := cb.Execute(context.Background(), failing)
		assert.ErrorIs(t, err, core.ErrConnectionFailed)
	}
	assert.Equal(t, StateOpen, cb.GetState())

	called := false
	err := cb.Execute(context.Background(), func() error { called = true; return nil })
	assert.ErrorIs(t, err, core.ErrCircuitBreakerOpen)
	assert.False(t, called, "open circuit must not call through")
	assert.Equal(t, 1, metrics.rejections)
	assert.Equal(t, []string{"closed->open"}, metrics.transitions)
}

func TestCircuitBreaker_SuccessResetsConsecutiveFailures(t *testing.T) {
	cb, _, _ := newTestBreaker(t, 2)

	_ = cb.Execute(context.Background(), func() error { return errors.New("x") })
	_ = cb.Execute(context.Background(), func() error { return nil })
	_ = cb.Execute(context.Background(), func() error { return errors.New("x") })

	assert.Equal(t, StateClosed, cb.GetState())
}

func TestCircuitBreaker_HalfOpenRecovery(t *testing.T) {
	tests := []struct {
		name       string
		probe      error
		finalState CircuitState
	}{
		{"probe success closes", nil, StateClosed},
		{"probe failure reopens", core.ErrTimeout, StateOpen},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cb, clock, _ := newTestBreaker(t, 1)

			_ = cb.Execute(context.Background(), func() error { return core.ErrTimeout })
			require.Equal(t, StateOpen, cb.GetState())

			clock.Advance(9 * time.Second)
			assert.Equal(t, StateOpen, cb.GetState())

			clock.Advance(time.Second)
			assert.Equal(t, StateHalfOpen, cb.GetState())

			_ = cb.Execute(context.Background(), func() error { return tt.probe })
			assert.Equal(t, tt.finalState, cb.GetState())
		})
	}
}

func TestCircuitBreaker_HalfOpenLimitsProbes(t *testing.T) {
	cb, clock, _ := newTestBreaker(t, 1)
	cb.RecordFailure()
	clock.Advance(10 * time.Second)

	assert.True(t, cb.CanExecute())
	assert.False(t, cb.CanExecute(), "only one probe is allowed while half-open")

	cb.RecordSuccess()
	assert.Equal(t, StateClosed, cb.GetState())
	assert.True(t, cb.CanExecute())
}

func TestCircuitBreaker_IgnoresClassifiedErrors(t *testing.T) {
	cb, _, _ := newTestBreaker(t, 1)

	err := cb.Execute(context.Background(), func() error { return context.Canceled })
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, StateClosed, cb.GetState())

	err = cb.Execute(context.Background(), func() error { return core.ErrInvalidConfiguration })
	assert.Error(t, err)
	assert.Equal(t, StateClosed, cb.GetState())
}

func TestCircuitBreaker_CanceledContext(t *testing.T) {
	cb, _, _ := newTestBreaker(t, 1)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	called := false
	err := cb.Execute(ctx, func() error { called = true; return nil })
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, called)
}

func TestCircuitBreaker_ResetAndListeners(t *testing.T) {
	cb, _, _ := newTestBreaker(t, 1)

	var seen []string
	cb.AddStateChangeListener(func(name string, from, to CircuitState) {
		seen = append(seen, name+":"+from.String()+"->"+to.String())
	})

	cb.RecordFailure()
	cb.Reset()

	assert.Equal(t, StateClosed, cb.GetState())
	assert.Equal(t, []string{"sparql:closed->open", "sparql:open->closed"}, seen)
}

func TestNewCircuitBreaker_InvalidConfig(t *testing.T) {
	_, err := NewCircuitBreaker(&CircuitBreakerConfig{FailureThreshold: 0, SleepWindow: time.Second})
	assert.ErrorIs(t, err, core.ErrInvalidConfiguration)

	_, err = NewCircuitBreaker(&CircuitBreakerConfig{FailureThreshold: 1})
	assert.ErrorIs(t, err, core.ErrInvalidConfiguration)
}

func TestConfigFrom(t *testing.T) {
	cfg := ConfigFrom("endpoint", core.CircuitBreakerConfig{Threshold: 7, Timeout: time.Minute, HalfOpenRequests: 2}, nil)
	assert.Equal(t, "endpoint", cfg.Name)
	assert.Equal(t, 7, cfg.FailureThreshold)
	assert.Equal(t, time.Minute, cfg.SleepWindow)
	assert.Equal(t, 2, cfg.HalfOpenRequests)
	assert.NotNil(t, cfg.Logger)
}

func TestCircuitState_String(t *testing.T) {
	assert.Equal(t, "closed", StateClosed.String())
	assert.Equal(t, "open", StateOpen.String())
	assert.Equal(t, "half-open", StateHalfOpen.String())
	assert.Equal(t, "unknown", CircuitState(42).String())
}
