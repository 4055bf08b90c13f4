package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os/signal"
	"syscall"

	nl2sparql "github.com/itsneelabh/nl2sparql"
	"github.com/itsneelabh/nl2sparql/core"
	"github.com/spf13/cobra"
)

// GlobalFlags holds flags available to all commands
type GlobalFlags struct {
	ConfigFile string
	Endpoint   string
	Mock       bool
	Output     string
	LogLevel   string
}

func newRootCmd() *cobra.Command {
	globals := &GlobalFlags{}
	cmd := &cobra.Command{
		Use:   "nl2sparql",
		Short: "Answer natural-language questions with SPARQL",
		Long: `nl2sparql turns a question into a SPARQL query using similar example
queries and the endpoint's schema, runs it, and summarizes the results.

Generation failures, endpoint errors and empty results are fed back into
the next generation until the retry budget is spent.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		Version:       nl2sparql.Version,
	}

	flags := cmd.PersistentFlags()
	flags.StringVar(&globals.ConfigFile, "config", "", "Path to a YAML or JSON config file")
	flags.StringVar(&globals.Endpoint, "endpoint", "", "SPARQL endpoint URL (default: "+core.DefaultEndpoint+")")
	flags.BoolVar(&globals.Mock, "mock", false, "Use the mock AI provider")
	flags.StringVarP(&globals.Output, "output", "o", "text", "Output format (text|json)")
	flags.StringVar(&globals.LogLevel, "log-level", "", "Log level (debug|info|warn|error)")

	cmd.AddCommand(newAskCmd(globals), newSeedCmd(globals), newSchemaCmd(globals), newValidateCmd(globals))
	return cmd
}

// Execute runs the root command, canceling on SIGINT and SIGTERM.
func Execute(ctx context.Context) error {
	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	return newRootCmd().ExecuteContext(ctx)
}

// JSON reports whether results should be printed as JSON.
func (g *GlobalFlags) JSON() bool {
	return g.Output == "json"
}

// loadConfig applies the config file, then the flags, over defaults and
// environment.
func (g *GlobalFlags) loadConfig() (*core.Config, error) {
	if g.Output != "text" && g.Output != "json" {
		return nil, fmt.Errorf("invalid output format %q (want text or json): %w", g.Output, core.ErrInvalidInput)
	}

	var opts []core.Option
	if g.ConfigFile != "" {
		opts = append(opts, core.WithConfigFile(g.ConfigFile))
	}
	if g.Endpoint != "" {
		opts = append(opts, core.WithEndpoint(g.Endpoint))
	}
	if g.Mock {
		opts = append(opts, core.WithMockAI(true))
	}
	if g.LogLevel != "" {
		opts = append(opts, core.WithLogLevel(g.LogLevel))
	}
	// Command output goes to stdout.
	opts = append(opts, func(c *core.Config) error {
		c.Logging.Output = "stderr"
		return nil
	})

	return core.NewConfig(opts...)
}

func (g *GlobalFlags) newAgent(cmd *cobra.Command, opts ...nl2sparql.AgentOption) (*nl2sparql.Agent, error) {
	cfg, err := g.loadConfig()
	if err != nil {
		return nil, err
	}
	return nl2sparql.NewAgent(cmd.Context(), cfg, opts...)
}

func closeAgent(cmd *cobra.Command, a *nl2sparql.Agent) {
	if err := a.Close(context.WithoutCancel(cmd.Context())); err != nil {
		cmd.PrintErrf("Warning: shutdown: %v\n", err)
	}
}

func printJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
