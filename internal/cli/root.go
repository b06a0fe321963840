// Package cli implements the runguard command tree.
package cli

import (
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "runguard",
	Short: "Execution safety for partially trusted callers",
	Long: `runguard sits between an agent and the host. It validates every
externally supplied value, refuses executables that are not on the
allow-list, and appends each decision to a hash-chained audit log.

Commands are only ever executed directly (no shell), with a wall-clock
timeout and bounded output capture.`,
	SilenceUsage: true,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
