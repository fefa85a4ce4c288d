// Package cmd provides the CLI commands for quotectl.
package cmd

import (
	"fmt"
	"os"
	"sort"

	"github.com/spf13/cobra"
	"go.uber.org/dig"
	"go.uber.org/zap"

	qerrors "model-quote/internal/errors"
	"model-quote/internal/logging"
)

// Version is stamped at build time
var Version = "0.1.0"

type rootOptions struct {
	cfgFile     string
	verbose     bool
	format      string
	noColor     bool
	showMetrics bool
}

// NewRootCmd builds the command tree
func NewRootCmd() *cobra.Command {
	opts := &rootOptions{}
	root := &cobra.Command{
		Use:   "quotectl",
		Short: "Price AI model usage and manage versioned quotes",
		Long: `quotectl prices AI model usage against the product catalog and keeps
customer quotes with an append-only version history.

Examples:
  quotectl price --product qwen-plus --input-tokens 1000000
  quotectl quote create --customer "Acme Corp"
  quotectl quote add-item QT202603010001 --product qwen-max --input-tokens 500000 --discount 0.9
  quotectl quote show QT202603010001 --format json`,
		SilenceErrors: true,
		SilenceUsage:  true,
	}

	root.PersistentFlags().StringVar(&opts.cfgFile, "config", "", "config file, JSON or YAML (default: built-in defaults)")
	root.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "enable debug logging")
	root.PersistentFlags().StringVarP(&opts.format, "format", "f", "cli", "output format (cli, json)")
	root.PersistentFlags().BoolVar(&opts.noColor, "no-color", false, "disable colored output")
	root.PersistentFlags().BoolVar(&opts.showMetrics, "metrics", false, "print service counters to stderr after the command")

	root.AddCommand(newPriceCmd(opts))
	root.AddCommand(newQuoteCmd(opts))
	root.AddCommand(newCatalogCmd(opts))
	root.AddCommand(newConfigCmd(opts))
	root.AddCommand(newVersionCmd())
	return root
}

// Execute runs the CLI
func Execute() error {
	root := NewRootCmd()
	err := root.Execute()
	if err != nil {
		logging.Debug("command failed", zap.Error(err))
		fmt.Fprintln(os.Stderr, "Error:", qerrors.UserMessage(dig.RootCause(err)))
	}
	return err
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "quotectl version %s\n", Version)
		},
	}
}

func (o *rootOptions) printMetrics(cmd *cobra.Command, a *app) {
	if !o.showMetrics || a.metrics == nil {
		return
	}
	counters, err := a.metrics.Counters()
	if err != nil {
		fmt.Fprintln(cmd.ErrOrStderr(), "metrics:", err)
		return
	}
	keys := make([]string, 0, len(counters))
	for k := range counters {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(cmd.ErrOrStderr(), "%s %g\n", k, counters[k])
	}
}
