package orchestration

import (
	"fmt"
	"unicode/utf8"
)

// RetryKind classifies why a query is being regenerated.
type RetryKind int

const (
	// ReasonNone means this is the first generation.
	ReasonNone RetryKind = iota
	// ReasonExecutionFailed means the previous query errored, timed out past
	// its execution budget, or returned an unparseable body.
	ReasonExecutionFailed
	// ReasonEmptyResult means the previous query ran but matched nothing.
	ReasonEmptyResult
)

func (k RetryKind) String() string {
	switch k {
	case ReasonNone:
		return "none"
	case ReasonExecutionFailed:
		return "execution_failed"
	case ReasonEmptyResult:
		return "empty_result"
	default:
		return "unknown"
	}
}

// previewLength is how much of the previous query a hint quotes.
const previewLength = 100

// RetryReason is the corrective context passed to the next generation.
type RetryReason struct {
	Kind          RetryKind
	PreviousQuery string
	Message       string
}

// ExecutionFailed builds the reason for a query that failed to execute.
func ExecutionFailed(query, message string) RetryReason {
	return RetryReason{Kind: ReasonExecutionFailed, PreviousQuery: query, Message: message}
}

// EmptyResult builds the reason for a query that returned no rows.
func EmptyResult(query string) RetryReason {
	return RetryReason{Kind: ReasonEmptyResult, PreviousQuery: query}
}

// IsZero reports whether there is no corrective context.
func (r RetryReason) IsZero() bool {
	return r.Kind == ReasonNone
}

// Render returns the hint text. Execution failures ask for a correct query;
// empty results ask for a broader one.
func (r RetryReason) Render() string {
	switch r.Kind {
	case ReasonExecutionFailed:
		return fmt.Sprintf("Previous query ('%s...') failed execution. Error: %s. "+
			"Try generating a different query (e.g., simplify, check syntax/prefixes).",
			preview(r.PreviousQuery), r.Message)
	case ReasonEmptyResult:
		return fmt.Sprintf("Previous query ('%s...') returned no results. "+
			"Try generating a query with broader terms or fewer filters.",
			preview(r.PreviousQuery))
	default:
		return ""
	}
}

func preview(query string) string {
	if utf8.RuneCountInString(query) <= previewLength {
		return query
	}
	runes := []rune(query)
	return string(runes[:previewLength])
}
