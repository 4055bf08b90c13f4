package resilience

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/itsneelabh/nl2sparql/core"
)

// CircuitState represents the state of the circuit breaker
type CircuitState int

const (
	// StateClosed allows all requests through
	StateClosed CircuitState = iota
	// StateOpen blocks all requests
	StateOpen
	// StateHalfOpen allows limited requests for testing
	StateHalfOpen
)

// String returns the string representation of the state
func (s CircuitState) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// MetricsCollector interface for circuit breaker metrics
type MetricsCollector interface {
	RecordStateChange(name string, from, to string)
	RecordRejection(name string)
}

// noopMetrics is a no-op metrics implementation
type noopMetrics struct{}

func (n *noopMetrics) RecordStateChange(name string, from, to string) {}
func (n *noopMetrics) RecordRejection(name string)                    {}

// ErrorClassifier determines which errors should count toward circuit breaker thresholds
type ErrorClassifier func(error) bool

// DefaultErrorClassifier only counts infrastructure errors, not user errors
func DefaultErrorClassifier(err error) bool {
	if err == nil {
		return false
	}

	// Configuration errors - DON'T count (user error)
	if core.IsConfigurationError(err) {
		return false
	}

	// Context cancellation - DON'T count (client gave up)
	if errors.Is(err, context.Canceled) || errors.Is(err, core.ErrContextCanceled) {
		return false
	}

	// All other errors count as failures (network, timeout, connection issues)
	return true
}

// CircuitBreakerConfig holds configuration for the circuit breaker
type CircuitBreakerConfig struct {
	// Name identifies the circuit breaker
	Name string

	// FailureThreshold is the number of consecutive failures before opening
	FailureThreshold int

	// SleepWindow is how long to wait before entering half-open state
	SleepWindow time.Duration

	// HalfOpenRequests is the number of probe requests allowed in half-open state
	HalfOpenRequests int

	// ErrorClassifier determines which errors count as failures
	ErrorClassifier ErrorClassifier

	// Logger for circuit breaker events
	Logger core.Logger

	// Metrics collector for monitoring
	Metrics MetricsCollector
}

// DefaultConfig returns a production-ready default configuration
func DefaultConfig() *CircuitBreakerConfig {
	return &CircuitBreakerConfig{
		Name:             "default",
		FailureThreshold: 5,
		SleepWindow:      30 * time.Second,
		HalfOpenRequests: 1,
		ErrorClassifier:  DefaultErrorClassifier,
		Logger:           &core.NoOpLogger{},
		Metrics:          &noopMetrics{},
	}
}

// ConfigFrom converts the user-facing configuration.
func ConfigFrom(name string, cfg core.CircuitBreakerConfig, logger core.Logger) *CircuitBreakerConfig {
	c := DefaultConfig()
	c.Name = name
	if cfg.Threshold > 0 {
		c.FailureThreshold = cfg.Threshold
	}
	if cfg.Timeout > 0 {
		c.SleepWindow = cfg.Timeout
	}
	if cfg.HalfOpenRequests > 0 {
		c.HalfOpenRequests = cfg.HalfOpenRequests
	}
	if logger != nil {
		c.Logger = logger
	}
	return c
}

// CircuitBreaker stops calls to a failing dependency for a sleep window,
// then lets a bounded number of probe requests through.
type CircuitBreaker struct {
	config *CircuitBreakerConfig
	logger core.Logger

	mu               sync.Mutex
	state            CircuitState
	stateChangedAt   time.Time
	consecutiveFails int
	halfOpenInFlight int

	listeners []func(name string, from, to CircuitState)

	now func() time.Time
}

// NewCircuitBreaker creates a circuit breaker
func NewCircuitBreaker(config *CircuitBreakerConfig) (*CircuitBreaker, error) {
	if config == nil {
		config = DefaultConfig()
	}
	if config.FailureThreshold <= 0 {
		return nil, fmt.Errorf("failure threshold must be positive: %w", core.ErrInvalidConfiguration)
	}
	if config.SleepWindow <= 0 {
		return nil, fmt.Errorf("sleep window must be positive: %w", core.ErrInvalidConfiguration)
	}
	if config.HalfOpenRequests <= 0 {
		config.HalfOpenRequests = 1
	}
	if config.ErrorClassifier == nil {
		config.ErrorClassifier = DefaultErrorClassifier
	}
	if config.Metrics == nil {
		config.Metrics = &noopMetrics{}
	}

	return &CircuitBreaker{
		config:         config,
		logger:         core.ComponentLogger(config.Logger, "framework/resilience"),
		state:          StateClosed,
		stateChangedAt: time.Now(),
		now:            time.Now,
	}, nil
}

// Name returns the breaker's name.
func (cb *CircuitBreaker) Name() string {
	return cb.config.Name
}

// GetState returns the current state, promoting open to half-open once the
// sleep window has elapsed.
func (cb *CircuitBreaker) GetState() CircuitState {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.maybeHalfOpenLocked()
	return cb.state
}

// CanExecute reserves a slot for one call. Every true result must be
// followed by RecordSuccess or RecordFailure.
func (cb *CircuitBreaker) CanExecute() bool {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.maybeHalfOpenLocked()

	switch cb.state {
	case StateClosed:
		return true
	case StateHalfOpen:
		if cb.halfOpenInFlight < cb.config.HalfOpenRequests {
			cb.halfOpenInFlight++
			return true
		}
	}

	cb.config.Metrics.RecordRejection(cb.config.Name)
	return false
}

// RecordSuccess records a successful call.
func (cb *CircuitBreaker) RecordSuccess() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.consecutiveFails = 0
	if cb.state == StateHalfOpen {
		cb.halfOpenInFlight = 0
		cb.transitionLocked(StateClosed)
	}
}

// RecordFailure records a failed call.
func (cb *CircuitBreaker) RecordFailure() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.consecutiveFails++
	switch cb.state {
	case StateHalfOpen:
		cb.halfOpenInFlight = 0
		cb.transitionLocked(StateOpen)
	case StateClosed:
		if cb.consecutiveFails >= cb.config.FailureThreshold {
			cb.transitionLocked(StateOpen)
		}
	}
}

// Execute runs fn when the circuit allows it. Errors the classifier ignores
// are returned without counting against the circuit.
func (cb *CircuitBreaker) Execute(ctx context.Context, fn func() error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if !cb.CanExecute() {
		return fmt.Errorf("circuit breaker %s: %w", cb.config.Name, core.ErrCircuitBreakerOpen)
	}

	err := fn()
	switch {
	case err == nil:
		cb.RecordSuccess()
	case cb.config.ErrorClassifier(err):
		cb.RecordFailure()
	default:
		cb.release()
	}
	return err
}

// Reset closes the circuit and clears failure counts.
func (cb *CircuitBreaker) Reset() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.consecutiveFails = 0
	cb.halfOpenInFlight = 0
	if cb.state != StateClosed {
		cb.transitionLocked(StateClosed)
	}
}

// AddStateChangeListener registers fn to be called on every transition.
// Listeners run synchronously while the breaker's lock is held and must not
// call back into the breaker.
func (cb *CircuitBreaker) AddStateChangeListener(fn func(name string, from, to CircuitState)) {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.listeners = append(cb.listeners, fn)
}

func (cb *CircuitBreaker) release() {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	if cb.state == StateHalfOpen && cb.halfOpenInFlight > 0 {
		cb.halfOpenInFlight--
	}
}

func (cb *CircuitBreaker) maybeHalfOpenLocked() {
	if cb.state == StateOpen && cb.now().Sub(cb.stateChangedAt) >= cb.config.SleepWindow {
		cb.halfOpenInFlight = 0
		cb.transitionLocked(StateHalfOpen)
	}
}

func (cb *CircuitBreaker) transitionLocked(to CircuitState) {
	from := cb.state
	cb.state = to
	cb.stateChangedAt = cb.now()

	cb.logger.Info("Circuit breaker state changed", map[string]interface{}{
		"operation":            "circuit_breaker_transition",
		"circuit_breaker":      cb.config.Name,
		"from_state":           from.String(),
		"to_state":             to.String(),
		"consecutive_failures": cb.consecutiveFails,
	})
	cb.config.Metrics.RecordStateChange(cb.config.Name, from.String(), to.String())

	for _, l := range cb.listeners {
		l(cb.config.Name, from, to)
	}
}
