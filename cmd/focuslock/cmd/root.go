// Package cmd implements the focuslock CLI.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var version = "dev"

var rootCmd = &cobra.Command{
	Use:   "focuslock",
	Short: "Session conditioning with attention-demanding interaction overlays",
	Long: `focuslock periodically interrupts a running session with timed,
attention-demanding challenges: typed-phrase locks and numeric-guess
puzzles, replicated across every configured display surface.

The orchestrator admits at most one interaction at a time, mirrors it to
all surfaces, and reports each outcome exactly once to the XP ledger.`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
