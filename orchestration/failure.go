package orchestration

import "fmt"

// ReportFailure renders the user-facing text for a failed run. It names
// the question and the last concrete reason.
func ReportFailure(question string, f Failure) string {
	return fmt.Sprintf("Sorry, I could not successfully answer the query: '%s'.\nReason: %s",
		question, failureReason(f))
}

func failureReason(f Failure) string {
	switch f.Kind {
	case FailureGeneration:
		return "Failed during SPARQL generation: " + f.Message
	case FailureExecution:
		reason := fmt.Sprintf("Maximum generation retries (%d) reached.", f.GenerationBudget)
		if f.Message != "" {
			reason += " Failed during SPARQL execution: " + f.Message
		}
		return reason
	case FailureNoResults:
		return fmt.Sprintf("Maximum generation retries (%d) reached. "+
			"Query executed successfully but found no matching datasets after retrying generation.",
			f.GenerationBudget)
	case FailureCanceled:
		return "Request was canceled before an answer was found: " + f.Message
	default:
		return "Unknown error."
	}
}
