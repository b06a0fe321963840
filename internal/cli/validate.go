package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/runguard/runguard/internal/validate"
)

var (
	validateInputName string
	validatePathBase  string
)

func init() {
	rootCmd.AddCommand(validateCmd)
	validateCmd.AddCommand(validateHostnameCmd)
	validateCmd.AddCommand(validateInputCmd)
	validateCmd.AddCommand(validatePathCmd)
	validateCmd.AddCommand(validateDepsCmd)

	validateInputCmd.Flags().StringVar(&validateInputName, "name", "input", "Parameter name reported in failures")
	validatePathCmd.Flags().StringVar(&validatePathBase, "base", ".", "Directory the target must stay within")
}

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Probe individual validator checks",
	Long: "Runs a single validator check against a value and reports the\n" +
		"verdict. Useful for testing allow-list and input rules from scripts.\n" +
		"Exit code 0 on pass, 1 on failure.",
}

var validateHostnameCmd = &cobra.Command{
	Use:   "hostname <name>",
	Short: "Check hostname syntax and DNS resolution",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return probe(validate.Hostname(args[0]))
	},
}

var validateInputCmd = &cobra.Command{
	Use:   "input <value>",
	Short: "Check a value against the agent-input rules",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return probe(validate.AgentInput(args[0], validateInputName))
	},
}

var validatePathCmd = &cobra.Command{
	Use:   "path <target>",
	Short: "Check that a path stays within a base directory",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return probe(validate.WithinRoot(validatePathBase, args[0]))
	},
}

var validateDepsCmd = &cobra.Command{
	Use:   "deps <command>...",
	Short: "Check that commands resolve on PATH",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return probe(validate.RequireCommands(args...))
	},
}

func probe(err error) error {
	if err != nil {
		fmt.Fprintf(os.Stderr, "FAILED: %v\n", err)
		os.Exit(1)
	}
	fmt.Println("OK")
	return nil
}
