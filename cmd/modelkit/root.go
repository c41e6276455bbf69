package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// newRootCmd builds the command tree. Flags live on the commands themselves so
// every invocation starts from defaults.
func newRootCmd() *cobra.Command {
	var cfgFile string

	root := &cobra.Command{
		Use:   "modelkit",
		Short: "Observable schema-driven models with validation and change tracking",
		Long: `modelkit loads model schemas from YAML and serves records built from them.

Each record tracks changes against its last commit, validates every field
concurrently and publishes coalesced change events.

Quick start:
  modelkit validate --schemas ./schemas   # Check schema files
  modelkit inspect --schema article.yaml  # Try a model locally
  modelkit serve                          # Start the HTTP server`,
		SilenceUsage: true,
	}

	root.PersistentFlags().StringVarP(&cfgFile, "config", "c", "modelkit.yaml", "config file path")

	root.AddCommand(
		newServeCmd(&cfgFile),
		newValidateCmd(&cfgFile),
		newInspectCmd(),
		newVersionCmd(),
	)
	return root
}

// Execute runs the root command and exits non-zero on error.
func Execute() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

const (
	checkMark = "\033[32m✓\033[0m"
	crossMark = "\033[31m✗\033[0m"
)
