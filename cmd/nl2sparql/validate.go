package main

import (
	"fmt"
	"io"
	"strings"

	nl2sparql "github.com/itsneelabh/nl2sparql"
	"github.com/spf13/cobra"
)

func newValidateCmd(globals *GlobalFlags) *cobra.Command {
	var run bool

	cmd := &cobra.Command{
		Use:   "validate <query|->",
		Short: "Check that the endpoint accepts a SPARQL query",
		Long: `Validate sends the query with LIMIT 1 and reports whether the endpoint
parsed it. Pass - to read the query from stdin. With --run the query is
executed as written and the outcome is printed.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			query := args[0]
			if query == "-" {
				data, err := io.ReadAll(cmd.InOrStdin())
				if err != nil {
					return fmt.Errorf("failed to read query: %w", err)
				}
				query = string(data)
			}
			query = strings.TrimSpace(query)

			a, err := globals.newAgent(cmd, nl2sparql.WithoutSeeding())
			if err != nil {
				return err
			}
			defer closeAgent(cmd, a)

			if run {
				outcome := a.Execute(cmd.Context(), query)
				if globals.JSON() {
					return printJSON(cmd.OutOrStdout(), map[string]interface{}{
						"kind":    outcome.Kind().String(),
						"message": outcome.String(),
						"outcome": outcome,
					})
				}
				fmt.Fprintln(cmd.OutOrStdout(), outcome.String())
				return nil
			}

			verr := a.Validate(cmd.Context(), query)
			if globals.JSON() {
				out := map[string]interface{}{"valid": verr == nil}
				if verr != nil {
					out["error"] = verr.Error()
				}
				if err := printJSON(cmd.OutOrStdout(), out); err != nil {
					return err
				}
				return verr
			}
			if verr != nil {
				return verr
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Query is valid")
			return nil
		},
	}

	cmd.Flags().BoolVar(&run, "run", false, "Execute the query and print the outcome")
	return cmd
}
