package main

import (
	"fmt"
	"strings"

	nl2sparql "github.com/itsneelabh/nl2sparql"
	"github.com/itsneelabh/nl2sparql/retrieval"
	"github.com/spf13/cobra"
)

func newSeedCmd(globals *GlobalFlags) *cobra.Command {
	var (
		file    string
		similar string
		k       int
	)

	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Load example question/query pairs into the example store",
		Long: `Seed embeds example question/query pairs and stores them for retrieval.
Examples already stored are skipped. Without --file the built-in DCAT
examples are used.

With the memory store the examples only live for this process; configure
store.provider: redis to keep them.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := globals.loadConfig()
			if err != nil {
				return err
			}
			if file != "" {
				cfg.Store.ExamplesFile = file
			}

			a, err := nl2sparql.NewAgent(cmd.Context(), cfg, nl2sparql.WithoutSeeding())
			if err != nil {
				return err
			}
			defer closeAgent(cmd, a)

			added, err := a.Seed(cmd.Context())
			if err != nil {
				return err
			}

			var matches []retrieval.Match
			if similar != "" {
				if matches, err = a.SimilarExamples(cmd.Context(), similar, k); err != nil {
					return err
				}
			}

			if globals.JSON() {
				return printJSON(cmd.OutOrStdout(), map[string]interface{}{
					"added":   added,
					"store":   cfg.Store.Provider,
					"matches": matches,
				})
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Added %d example(s) to the %s store\n", added, cfg.Store.Provider)
			for i, m := range matches {
				fmt.Fprintf(out, "\n%d. %s (distance %.3f)\n   %s\n", i+1, m.Example.Question, m.Distance,
					strings.ReplaceAll(m.Example.Query, "\n", "\n   "))
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "", "YAML or JSON file of examples")
	cmd.Flags().StringVar(&similar, "similar", "", "After seeding, list the examples closest to this question")
	cmd.Flags().IntVarP(&k, "top", "k", 3, "Number of examples listed with --similar")
	return cmd
}
