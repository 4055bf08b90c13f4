package main

import (
	"fmt"
	"text/tabwriter"

	nl2sparql "github.com/itsneelabh/nl2sparql"
	"github.com/itsneelabh/nl2sparql/schema"
	"github.com/spf13/cobra"
)

func newSchemaCmd(globals *GlobalFlags) *cobra.Command {
	var (
		refresh bool
		limit   int
	)

	cmd := &cobra.Command{
		Use:   "schema",
		Short: "Show the endpoint's classes, properties and catalog statistics",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := globals.newAgent(cmd, nl2sparql.WithoutSeeding())
			if err != nil {
				return err
			}
			defer closeAgent(cmd, a)

			var (
				snap  *schema.Snapshot
				stale bool
			)
			if refresh {
				if snap, err = a.RefreshSchema(cmd.Context()); err != nil {
					return err
				}
			} else {
				res := a.Schema(cmd.Context())
				snap, stale = res.Snapshot, res.Stale
			}

			if globals.JSON() {
				return printJSON(cmd.OutOrStdout(), snap)
			}
			printSchema(cmd, snap, stale, limit)
			return nil
		},
	}

	cmd.Flags().BoolVar(&refresh, "refresh", false, "Extract again even if a fresh snapshot is cached")
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Maximum classes and properties to list")
	return cmd
}

func printSchema(cmd *cobra.Command, snap *schema.Snapshot, stale bool, limit int) {
	out := cmd.OutOrStdout()

	fmt.Fprintf(out, "Endpoint: %s\n", snap.Endpoint)
	if snap.ExtractedAt.IsZero() {
		fmt.Fprintln(out, "Extracted: never")
	} else {
		fmt.Fprintf(out, "Extracted: %s\n", snap.ExtractedAt.Local().Format("2006-01-02 15:04:05"))
	}
	if stale {
		fmt.Fprintln(out, "Warning: extraction failed, showing the last known schema")
	}

	st := snap.Statistics
	fmt.Fprintf(out, "\nDatasets: %d  Distributions: %d  Catalogs: %d  Publishers: %d  Themes: %d\n",
		st.Datasets, st.Distributions, st.Catalogs, st.Publishers, st.Themes)

	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "\nCLASS\tINSTANCES\tURI")
	for _, c := range snap.TopClasses(limit) {
		fmt.Fprintf(w, "%s\t%d\t%s\n", c.Name, c.InstanceCount, c.URI)
	}
	fmt.Fprintln(w, "\nPROPERTY\tUSES\tURI")
	for _, p := range snap.TopProperties(limit) {
		fmt.Fprintf(w, "%s\t%d\t%s\n", p.Name, p.UsageCount, p.URI)
	}
	_ = w.Flush()
}
