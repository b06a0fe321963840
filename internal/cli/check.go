package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/runguard/runguard/internal/runner"
	"github.com/runguard/runguard/internal/validate"
)

var (
	checkConfig    string
	checkAllowlist string
)

func init() {
	rootCmd.AddCommand(checkCmd)
	checkCmd.Flags().StringVar(&checkConfig, "config", "", "Path to config YAML (default: ~/.runguard/config.yaml)")
	checkCmd.Flags().StringVar(&checkAllowlist, "allowlist", "", "Path to allow-list YAML (default: ~/.runguard/allowlist.yaml)")
}

var checkCmd = &cobra.Command{
	Use:   "check [flags] -- <command> [args...]",
	Short: "Report whether a command would be allowed, without executing it",
	Long: "Runs the same validation and allow-list checks as `runguard run`\n" +
		"and prints the verdict as JSON. Nothing is executed and nothing is\n" +
		"written to the audit log.\n\n" +
		"Exit code 0 if the command would run, 77 if the executable is not\n" +
		"allow-listed, 1 if an argument fails validation.",
	Args: cobra.MinimumNArgs(1),
	RunE: runCheck,
}

// checkVerdict is the JSON shape shared by `check` and `run --dry-run`.
type checkVerdict struct {
	Command string `json:"command"`
	Allowed bool   `json:"allowed"`
	Kind    string `json:"kind,omitempty"`
	Reason  string `json:"reason,omitempty"`
}

func runCheck(cmd *cobra.Command, args []string) error {
	r, store, err := buildRunner(checkConfig, func(c *runner.Config) {
		if checkAllowlist != "" {
			c.AllowlistPath = checkAllowlist
		}
	})
	if err != nil {
		return err
	}
	defer r.Close()
	if store != nil {
		defer store.Close()
	}

	return printVerdict(r, args[0], args[1:])
}

func verdictFor(r *runner.Runner, name string, args []string) checkVerdict {
	command := name
	if len(args) > 0 {
		command = name + " " + strings.Join(args, " ")
	}

	err := r.Check(name, args)
	if err == nil {
		return checkVerdict{Command: command, Allowed: true}
	}

	var blocked *runner.BlockedError
	if errors.As(err, &blocked) {
		return checkVerdict{Command: command, Kind: "NotAllowed", Reason: blocked.Reason}
	}
	return checkVerdict{Command: command, Kind: string(validate.KindOf(err)), Reason: err.Error()}
}

func printVerdict(r *runner.Runner, name string, args []string) error {
	v := verdictFor(r, name, args)
	out, _ := json.MarshalIndent(v, "", "  ")
	fmt.Println(string(out))

	if !v.Allowed {
		if v.Kind == "NotAllowed" {
			os.Exit(77)
		}
		os.Exit(1)
	}
	return nil
}
