package orchestration

import (
	"errors"
	"fmt"

	"github.com/itsneelabh/nl2sparql/sparql"
)

// ErrInvalidTransition is returned when a transition is applied in a phase
// that does not allow it.
var ErrInvalidTransition = errors.New("invalid pipeline transition")

// Phase is a state of the retry controller.
type Phase int

const (
	PhaseGenerate Phase = iota
	PhaseExecute
	PhaseSynthesize
	PhaseFail
)

func (p Phase) String() string {
	switch p {
	case PhaseGenerate:
		return "generate"
	case PhaseExecute:
		return "execute"
	case PhaseSynthesize:
		return "synthesize"
	case PhaseFail:
		return "fail"
	default:
		return "unknown"
	}
}

// FailureKind says why a run ended in PhaseFail.
type FailureKind int

const (
	// FailureGeneration: the text-generation service returned an error.
	FailureGeneration FailureKind = iota
	// FailureExecution: the generation budget ran out after execution errors.
	FailureExecution
	// FailureNoResults: the generation budget ran out on empty results.
	FailureNoResults
	// FailureCanceled: the caller's context ended.
	FailureCanceled
)

func (k FailureKind) String() string {
	switch k {
	case FailureGeneration:
		return "generation"
	case FailureExecution:
		return "execution"
	case FailureNoResults:
		return "no_results"
	case FailureCanceled:
		return "canceled"
	default:
		return "unknown"
	}
}

// Failure describes a terminal failure.
type Failure struct {
	Kind FailureKind

	// GenerationBudget is the configured generation budget, for reports.
	GenerationBudget int

	// Message is the last concrete error, if any.
	Message string
}

// State is one immutable snapshot of a pipeline run. Transitions return a
// new State and leave the receiver untouched.
type State struct {
	question string
	phase    Phase

	query   string
	suspect bool
	outcome sparql.Outcome
	reason  RetryReason

	generationAttempts int
	executionAttempts  int
	generationBudget   int
	executionBudget    int

	answer  string
	failure *Failure
}

// NewState starts a run in PhaseGenerate. Negative budgets are treated as 0.
func NewState(question string, generationBudget, executionBudget int) State {
	return State{
		question:         question,
		phase:            PhaseGenerate,
		generationBudget: max(generationBudget, 0),
		executionBudget:  max(executionBudget, 0),
	}
}

func (s State) Question() string { return s.question }
func (s State) Phase() Phase { return s.phase }
func (s State) Query() string { return s.query }
func (s State) Suspect() bool { return s.suspect }
func (s State) Outcome() sparql.Outcome { return s.outcome }
func (s State) Reason() RetryReason { return s.reason }
func (s State) GenerationAttempts() int { return s.generationAttempts }
func (s State) ExecutionAttempts() int { return s.executionAttempts }
func (s State) GenerationBudget() int { return s.generationBudget }
func (s State) ExecutionBudget() int { return s.executionBudget }
func (s State) Answer() string { return s.answer }
func (s State) Terminal() bool { return s.phase == PhaseSynthesize || s.phase == PhaseFail }
func (s State) Succeeded() bool { return s.phase == PhaseSynthesize && s.answer != "" }
func (s State) Failed() bool { return s.phase == PhaseFail }
func (s State) Regenerations() int { return max(s.generationAttempts-1, 0) }
func (s State) ExecutionRetries() int { return max(s.executionAttempts-1, 0) }

func (s State) String() string {
	return fmt.Sprintf("%s(gen=%d exec=%d)", s.phase, s.generationAttempts, s.executionAttempts)
}

// Failure returns the terminal failure, if the run failed.
func (s State) Failure() (Failure, bool) {
	if s.failure == nil {
		return Failure{}, false
	}
	return *s.failure, true
}

func (s State) invalid(op string) error {
	return fmt.Errorf("%s in phase %s: %w", op, s.phase, ErrInvalidTransition)
}

// Generated applies a generation outcome. A query moves the run to
// PhaseExecute with a fresh execution counter; an error fails the run.
func (s State) Generated(out GenerationOutcome) (State, error) {
	if s.phase != PhaseGenerate {
		return s, s.invalid("generated")
	}
	if !out.Ok() {
		return s.fail(FailureGeneration, out.Err.Error()), nil
	}

	next := s
	next.phase = PhaseExecute
	next.query = out.Query
	next.suspect = out.Suspect
	next.outcome = nil
	next.reason = RetryReason{}
	next.generationAttempts++
	next.executionAttempts = 0
	return next, nil
}

// Executed applies an execution outcome and decides the next phase:
//
//   - non-empty success moves to PhaseSynthesize
//   - a timeout re-executes the same query while the execution budget allows
//   - other failures and empty results regenerate while the generation
//     budget allows, and fail otherwise
func (s State) Executed(o sparql.Outcome) (State, error) {
	if s.phase != PhaseExecute {
		return s, s.invalid("executed")
	}
	if o == nil {
		return s, fmt.Errorf("executed with nil outcome: %w", ErrInvalidTransition)
	}

	next := s
	next.outcome = o
	next.executionAttempts++

	switch v := o.(type) {
	case sparql.Success:
		if !v.Empty() {
			next.phase = PhaseSynthesize
			return next, nil
		}
		return next.regenerateOrFail(EmptyResult(s.query), FailureNoResults, ""), nil

	case sparql.Timeout:
		if next.executionAttempts <= next.executionBudget {
			return next, nil
		}
		return next.regenerateOrFail(ExecutionFailed(s.query, v.String()), FailureExecution, v.String()), nil

	default:
		return next.regenerateOrFail(ExecutionFailed(s.query, o.String()), FailureExecution, o.String()), nil
	}
}

func (s State) regenerateOrFail(reason RetryReason, kind FailureKind, message string) State {
	if s.generationAttempts < s.generationBudget {
		s.phase = PhaseGenerate
		s.reason = reason
		return s
	}
	return s.fail(kind, message)
}

// Answered records the final answer. It is only valid once, in
// PhaseSynthesize.
func (s State) Answered(answer string) (State, error) {
	if s.phase != PhaseSynthesize || s.answer != "" {
		return s, s.invalid("answered")
	}
	if answer == "" {
		return s, fmt.Errorf("answered with empty text: %w", ErrInvalidTransition)
	}
	next := s
	next.answer = answer
	return next, nil
}

// Canceled fails the run because its context ended. A run that already
// holds an answer is left as is.
func (s State) Canceled(err error) State {
	if s.Succeeded() || s.phase == PhaseFail {
		return s
	}
	msg := "context canceled"
	if err != nil {
		msg = err.Error()
	}
	return s.fail(FailureCanceled, msg)
}

func (s State) fail(kind FailureKind, message string) State {
	s.phase = PhaseFail
	s.answer = ""
	s.failure = &Failure{Kind: kind, GenerationBudget: s.generationBudget, Message: message}
	return s
}
