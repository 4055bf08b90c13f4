package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/itsneelabh/nl2sparql/orchestration"
	"github.com/spf13/cobra"
)

// AskOutput is the JSON form of one pipeline run
type AskOutput struct {
	RequestID     string   `json:"request_id"`
	Question      string   `json:"question"`
	Answer        string   `json:"answer"`
	Succeeded     bool     `json:"succeeded"`
	Query         string   `json:"query,omitempty"`
	Generations   int      `json:"generations"`
	Regenerations int      `json:"regenerations"`
	Retries       int      `json:"execution_retries"`
	Failure       string   `json:"failure,omitempty"`
	SchemaStale   bool     `json:"schema_stale,omitempty"`
	NoExamples    bool     `json:"examples_unavailable,omitempty"`
	Phases        []string `json:"phases"`
	DurationMS    int64    `json:"duration_ms"`
}

func newAskCmd(globals *GlobalFlags) *cobra.Command {
	var showQuery bool

	cmd := &cobra.Command{
		Use:   "ask <question>",
		Short: "Answer a question against the endpoint",
		Example: `  nl2sparql ask "How many datasets are published by the European Environment Agency?"
  nl2sparql ask --show-query -o json "Which datasets are about air quality?"`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := globals.newAgent(cmd)
			if err != nil {
				return err
			}
			defer closeAgent(cmd, a)

			result, err := a.Ask(cmd.Context(), strings.Join(args, " "))
			if err != nil {
				return err
			}

			if globals.JSON() {
				return printJSON(cmd.OutOrStdout(), askOutput(result))
			}

			out := cmd.OutOrStdout()
			fmt.Fprintln(out, result.Answer)
			if showQuery && result.State.Query() != "" {
				fmt.Fprintf(out, "\nQuery (after %d generation(s)):\n%s\n", result.State.GenerationAttempts(), result.State.Query())
			}
			if !result.Succeeded {
				return fmt.Errorf("no answer after %d generation(s)", result.State.GenerationAttempts())
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&showQuery, "show-query", false, "Print the last generated query")
	return cmd
}

func askOutput(r *orchestration.Result) AskOutput {
	out := AskOutput{
		RequestID:     r.RequestID,
		Question:      r.Question,
		Answer:        r.Answer,
		Succeeded:     r.Succeeded,
		Query:         r.State.Query(),
		Generations:   r.State.GenerationAttempts(),
		Regenerations: r.State.Regenerations(),
		Retries:       r.State.ExecutionRetries(),
		SchemaStale:   r.SchemaStale,
		NoExamples:    r.ExamplesUnavailable,
		DurationMS:    r.Duration.Round(time.Millisecond).Milliseconds(),
	}
	if f, ok := r.State.Failure(); ok {
		out.Failure = f.Kind.String()
	}
	for _, p := range r.Transitions {
		out.Phases = append(out.Phases, p.String())
	}
	return out
}
