package sparql

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/itsneelabh/nl2sparql/core"
	"github.com/itsneelabh/nl2sparql/resilience"
	"github.com/itsneelabh/nl2sparql/telemetry"
)

const (
	// ResultsMediaType is requested from the endpoint.
	ResultsMediaType = "application/sparql-results+json"

	// DefaultValidationTimeout bounds Validate probes.
	DefaultValidationTimeout = 10 * time.Second

	maxResponseBytes = 32 << 20
)

// Executor runs one query with a timeout and classifies the response.
type Executor interface {
	Execute(ctx context.Context, query string, timeout time.Duration) Outcome
}

// HTTPExecutor sends queries to a SPARQL endpoint with HTTP GET.
type HTTPExecutor struct {
	endpoint  *url.URL
	client    *http.Client
	breaker   *resilience.CircuitBreaker
	telemetry core.Telemetry
	logger    core.Logger
}

// ExecutorOption customizes an HTTPExecutor.
type ExecutorOption func(*HTTPExecutor)

// WithHTTPClient replaces the traced default client. Per-request timeouts are
// applied through the request context, so the client needs none.
func WithHTTPClient(client *http.Client) ExecutorOption {
	return func(e *HTTPExecutor) {
		e.client = client
	}
}

// WithCircuitBreaker short-circuits requests while the endpoint is failing.
func WithCircuitBreaker(cb *resilience.CircuitBreaker) ExecutorOption {
	return func(e *HTTPExecutor) {
		e.breaker = cb
	}
}

// WithLogger sets the logger.
func WithLogger(logger core.Logger) ExecutorOption {
	return func(e *HTTPExecutor) {
		e.logger = core.ComponentLogger(logger, "framework/sparql")
	}
}

// WithTelemetry sets the span provider.
func WithTelemetry(t core.Telemetry) ExecutorOption {
	return func(e *HTTPExecutor) {
		if t != nil {
			e.telemetry = t
		}
	}
}

// NewHTTPExecutor creates an executor for endpoint.
func NewHTTPExecutor(endpoint string, opts ...ExecutorOption) (*HTTPExecutor, error) {
	if endpoint == "" {
		return nil, fmt.Errorf("SPARQL endpoint is required: %w", core.ErrMissingConfiguration)
	}
	u, err := url.Parse(endpoint)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, &core.FrameworkError{
			Op:      "sparql.NewHTTPExecutor",
			Kind:    "config",
			ID:      endpoint,
			Message: "endpoint must be an absolute URL",
			Err:     core.ErrInvalidConfiguration,
		}
	}

	e := &HTTPExecutor{
		endpoint:  u,
		client:    telemetry.NewTracedHTTPClient(nil, 0),
		telemetry: &core.NoOpTelemetry{},
		logger:    &core.NoOpLogger{},
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// Endpoint returns the endpoint URL.
func (e *HTTPExecutor) Endpoint() string {
	return e.endpoint.String()
}

// Execute runs query once. timeout <= 0 uses core.DefaultExecutionTimeout.
func (e *HTTPExecutor) Execute(ctx context.Context, query string, timeout time.Duration) Outcome {
	if timeout <= 0 {
		timeout = core.DefaultExecutionTimeout
	}

	ctx, span := e.telemetry.StartSpan(ctx, "sparql.execute")
	defer span.End()
	span.SetAttribute("sparql.endpoint", e.endpoint.Host)
	span.SetAttribute("sparql.timeout_ms", timeout.Milliseconds())

	start := time.Now()
	var outcome Outcome

	run := func() error {
		outcome = e.do(ctx, query, timeout)
		if errors.Is(ctx.Err(), context.Canceled) {
			return ctx.Err()
		}
		return countsAsFailure(outcome)
	}

	if e.breaker != nil {
		err := e.breaker.Execute(ctx, run)
		if outcome == nil {
			if errors.Is(err, core.ErrCircuitBreakerOpen) {
				outcome = RequestError{Message: "circuit breaker open"}
			} else {
				outcome = RequestError{Message: fmt.Sprintf("Request failed: %v", err)}
			}
		}
	} else {
		_ = run()
	}

	kind := outcome.Kind().String()
	telemetry.Duration(telemetry.MetricExecutionDuration, start, "outcome", kind)
	telemetry.Counter(telemetry.MetricExecutionOutcome, "outcome", kind)
	span.SetAttribute("sparql.outcome", kind)

	fields := map[string]interface{}{
		"operation":   "execute",
		"outcome":     kind,
		"duration_ms": time.Since(start).Milliseconds(),
	}
	if s, ok := outcome.(Success); ok {
		fields["rows"] = len(s.Bindings)
		e.logger.Debug("Query executed", fields)
	} else {
		fields["error"] = outcome.String()
		span.RecordError(errors.New(outcome.String()))
		e.logger.Warn("Query execution failed", fields)
	}
	return outcome
}

func (e *HTTPExecutor) do(ctx context.Context, query string, timeout time.Duration) Outcome {
	reqCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, e.requestURL(query), nil)
	if err != nil {
		return RequestError{Message: fmt.Sprintf("Request failed: %v", err)}
	}
	req.Header.Set("Accept", ResultsMediaType)

	resp, err := e.client.Do(req)
	if err != nil {
		if isTimeout(err) {
			return Timeout{After: timeout}
		}
		return RequestError{Message: fmt.Sprintf("Request failed: %v", err)}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		if isTimeout(err) {
			return Timeout{After: timeout}
		}
		return RequestError{StatusCode: resp.StatusCode, Message: fmt.Sprintf("Failed to read response: %v", err)}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return RequestError{
			StatusCode: resp.StatusCode,
			Message:    fmt.Sprintf("HTTP %d: %s", resp.StatusCode, truncate(string(body), 200)),
		}
	}

	return ParseResults(body)
}

func (e *HTTPExecutor) requestURL(query string) string {
	u := *e.endpoint
	q := u.Query()
	q.Set("query", query)
	u.RawQuery = q.Encode()
	return u.String()
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

// countsAsFailure reports outcomes that indicate an unhealthy endpoint.
// Client errors (4xx) and unparseable bodies are the query's fault.
func countsAsFailure(o Outcome) error {
	switch v := o.(type) {
	case Timeout:
		return fmt.Errorf("%s: %w", v.String(), core.ErrTimeout)
	case RequestError:
		if v.StatusCode == 0 || v.StatusCode >= 500 {
			return fmt.Errorf("%s: %w", v.Message, core.ErrRequestFailed)
		}
	}
	return nil
}

var limitPattern = regexp.MustCompile(`(?i)LIMIT\s+\d+`)

// ValidationQuery rewrites query to fetch at most one row.
func ValidationQuery(query string) string {
	if limitPattern.MatchString(query) {
		return limitPattern.ReplaceAllString(query, "LIMIT 1")
	}
	return strings.TrimRight(query, " \t\r\n") + "\nLIMIT 1"
}

// Validate probes whether the endpoint accepts query by running it with
// LIMIT 1. It returns nil when the probe parses successfully.
func (e *HTTPExecutor) Validate(ctx context.Context, query string) error {
	outcome := e.Execute(ctx, ValidationQuery(query), DefaultValidationTimeout)

	var sentinel error
	switch outcome.(type) {
	case Success:
		return nil
	case Timeout:
		sentinel = core.ErrTimeout
	case RequestError:
		sentinel = core.ErrRequestFailed
	default:
		sentinel = core.ErrInvalidInput
	}
	return &core.FrameworkError{
		Op:      "sparql.Validate",
		Kind:    "sparql",
		Message: outcome.String(),
		Err:     sentinel,
	}
}
