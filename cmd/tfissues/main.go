// Package main provides the entry point for the tfissues CLI, which
// reconciles OS/OT screening test results against the screening store and
// writes root-cause reports.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Set at build time with -ldflags "-X main.version=...".
var (
	version = "dev"
	commit  = "none"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "tfissues",
		Short: "Classify failed OS/OT screening test rows by root cause",
		Long: `tfissues reads screening test-result workbooks, checks every failed row
against the screening store and writes an Issues_<timestamp>.xlsx report.

Commands:
  run       Classify and/or extract rows as configured
  version   Show version information`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(newRunCommand())
	rootCmd.AddCommand(versionCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "tfissues %s (commit: %s)\n", version, commit)
		},
	}
}
