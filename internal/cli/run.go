package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/runguard/runguard/internal/logging"
	"github.com/runguard/runguard/internal/runner"
	"github.com/runguard/runguard/internal/validate"
)

var (
	runConfig    string
	runAllowlist string
	runAuditLog  string
	runTimeout   time.Duration
	runDryRun    bool
	runRedact    bool
	runSanitize  bool
)

func init() {
	rootCmd.AddCommand(runCmd)
	runCmd.Flags().StringVar(&runConfig, "config", "", "Path to config YAML (default: ~/.runguard/config.yaml)")
	runCmd.Flags().StringVar(&runAllowlist, "allowlist", "", "Path to allow-list YAML (default: ~/.runguard/allowlist.yaml)")
	runCmd.Flags().StringVar(&runAuditLog, "audit-log", "", "Path to audit log (default: ~/.runguard/audit.jsonl)")
	runCmd.Flags().DurationVar(&runTimeout, "timeout", 0, "Wall-clock limit for the command (default: 30s)")
	runCmd.Flags().BoolVar(&runDryRun, "dry-run", false, "Print the verdict without executing")
	runCmd.Flags().BoolVar(&runRedact, "redact", false, "Scan captured output for secrets")
	runCmd.Flags().BoolVar(&runSanitize, "sanitize-env", false, "Strip sensitive variables from the child environment")
}

var runCmd = &cobra.Command{
	Use:   "run [flags] -- <command> [args...]",
	Short: "Execute a command behind validation and the allow-list",
	Long: "Validates the command line, checks the executable against the\n" +
		"allow-list, then runs it directly with a timeout and bounded output.\n" +
		"Refused commands are not executed. Exit code 77 indicates a refusal;\n" +
		"executed commands propagate their own exit code.",
	Args: cobra.MinimumNArgs(1),
	RunE: runRun,
}

func runRun(cmd *cobra.Command, args []string) error {
	r, store, err := buildRunner(runConfig, func(c *runner.Config) {
		if runAllowlist != "" {
			c.AllowlistPath = runAllowlist
		}
		if runAuditLog != "" {
			c.AuditPath = runAuditLog
		}
		if runTimeout > 0 {
			c.Timeout = runTimeout
		}
		if runRedact {
			c.RedactOutput = true
		}
		if runSanitize {
			c.SanitizeEnv = true
		}
	})
	if err != nil {
		return err
	}
	defer r.Close()
	if store != nil {
		defer store.Close()
	}

	name := args[0]
	cmdArgs := args[1:]

	if runDryRun {
		return printVerdict(r, name, cmdArgs)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		cancel()
	}()

	result, err := r.Run(ctx, name, cmdArgs, os.Stdin)
	if err != nil {
		var blocked *runner.BlockedError
		if errors.As(err, &blocked) {
			resp := map[string]any{
				"blocked": true,
				"command": blocked.Command,
				"reason":  blocked.Reason,
			}
			out, _ := json.MarshalIndent(resp, "", "  ")
			fmt.Fprintln(os.Stderr, string(out))
			os.Exit(77)
		}
		var ve *validate.Error
		if errors.As(err, &ve) {
			resp := map[string]any{
				"rejected": true,
				"kind":     string(ve.Kind),
				"param":    ve.Param,
				"reason":   ve.Error(),
			}
			out, _ := json.MarshalIndent(resp, "", "  ")
			fmt.Fprintln(os.Stderr, string(out))
			os.Exit(1)
		}
		return err
	}

	fmt.Print(result.Stdout)
	if result.Stderr != "" {
		fmt.Fprint(os.Stderr, result.Stderr)
	}
	if result.StdoutTruncated || result.StderrTruncated {
		logging.Warn("output truncated", "run", result.RunID)
	}
	if result.Redacted > 0 {
		logging.Warn("redacted secrets in output:", strconv.Itoa(result.Redacted))
	}

	if result.ExitCode != 0 {
		os.Exit(result.ExitCode)
	}
	return nil
}
