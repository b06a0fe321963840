package cli

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/runguard/runguard/internal/audit"
)

var (
	auditConfigPath string
	rotateMaxBytes  int64
	showLog         string
	showFrom        string
	showTo          string
	showEvent       string
	showFormat      string
)

func init() {
	rootCmd.AddCommand(auditCmd)
	auditCmd.AddCommand(auditVerifyCmd)
	auditCmd.AddCommand(auditRotateCmd)
	auditCmd.AddCommand(auditShowCmd)

	auditCmd.PersistentFlags().StringVar(&auditConfigPath, "config", "", "Path to config YAML (default: ~/.runguard/config.yaml)")
	auditRotateCmd.Flags().Int64Var(&rotateMaxBytes, "max-bytes", audit.DefaultMaxBytes, "Rotate when the live log exceeds this size")
	auditShowCmd.Flags().StringVarP(&showLog, "log", "l", "", "Path to audit log (default: from config)")
	auditShowCmd.Flags().StringVar(&showFrom, "from", "", "Start time filter (RFC3339)")
	auditShowCmd.Flags().StringVar(&showTo, "to", "", "End time filter (RFC3339)")
	auditShowCmd.Flags().StringVar(&showEvent, "event", "", "Event filter (executed|blocked|rejected_input)")
	auditShowCmd.Flags().StringVarP(&showFormat, "format", "f", "text", "Output format (text|json)")
}

var auditCmd = &cobra.Command{
	Use:   "audit",
	Short: "Audit log operations",
	Long:  "Commands for verifying, rotating, and inspecting the hash-chained audit log.",
}

var auditVerifyCmd = &cobra.Command{
	Use:   "verify [path]",
	Short: "Verify hash chain integrity of an audit log",
	Long: "Walks the JSONL audit log and validates that every entry's prev_hash\n" +
		"matches the SHA-256 of the previous entry. Exits 0 if valid, 1 if tampered.\n" +
		"Without an argument the configured log is verified.",
	Args: cobra.MaximumNArgs(1),
	RunE: runAuditVerify,
}

var auditRotateCmd = &cobra.Command{
	Use:   "rotate [path]",
	Short: "Archive the live audit log when it grows too large",
	Long: "Compresses the live log into a timestamped .zst archive and starts a\n" +
		"fresh segment whose first entry chains to the archived tail, so\n" +
		"verification spans the rotation.",
	Args: cobra.MaximumNArgs(1),
	RunE: runAuditRotate,
}

var auditShowCmd = &cobra.Command{
	Use:   "show [run-id]",
	Short: "Show decisions from the audit log",
	Long: "Reads the audit log, live or archived, filters by run ID, event, and\n" +
		"time range, and renders a decision timeline with summary.",
	Args: cobra.MaximumNArgs(1),
	RunE: runAuditShow,
}

// resolveAuditPath picks the log location: explicit argument, then config,
// then the conventional default.
func resolveAuditPath(arg string) (string, error) {
	if arg != "" {
		return arg, nil
	}
	hc, err := loadHostConfig(auditConfigPath)
	if err != nil {
		return "", err
	}
	if hc.AuditLog != "" {
		return hc.AuditLog, nil
	}
	return audit.DefaultPath()
}

func runAuditVerify(cmd *cobra.Command, args []string) error {
	var arg string
	if len(args) > 0 {
		arg = args[0]
	}
	path, err := resolveAuditPath(arg)
	if err != nil {
		return err
	}

	result := audit.Verify(path)
	if result.Valid {
		fmt.Printf("OK: %d entries verified\n", result.Lines)
		return nil
	}
	fmt.Fprintf(os.Stderr, "FAILED at line %d: %s\n", result.ErrorLine, result.Error)
	os.Exit(1)
	return nil
}

func runAuditRotate(cmd *cobra.Command, args []string) error {
	var arg string
	if len(args) > 0 {
		arg = args[0]
	}
	path, err := resolveAuditPath(arg)
	if err != nil {
		return err
	}

	archive, err := audit.Rotate(path, rotateMaxBytes)
	if err != nil {
		return err
	}
	if archive == "" {
		fmt.Printf("%s is below %d bytes, nothing to rotate\n", path, rotateMaxBytes)
		return nil
	}
	fmt.Printf("archived to %s\n", archive)
	return nil
}

func runAuditShow(cmd *cobra.Command, args []string) error {
	path, err := resolveAuditPath(showLog)
	if err != nil {
		return err
	}

	var filter audit.Filter
	if len(args) > 0 {
		filter.RunID = args[0]
	}
	filter.Event = showEvent

	if showFrom != "" {
		from, err := time.Parse(time.RFC3339, showFrom)
		if err != nil {
			return fmt.Errorf("invalid --from time %q: %w", showFrom, err)
		}
		filter.From = from
	}
	if showTo != "" {
		to, err := time.Parse(time.RFC3339, showTo)
		if err != nil {
			return fmt.Errorf("invalid --to time %q: %w", showTo, err)
		}
		filter.To = to
	}

	result, err := audit.Replay(path, filter)
	if err != nil {
		return err
	}

	switch showFormat {
	case "json":
		out, err := audit.FormatJSON(result)
		if err != nil {
			return err
		}
		fmt.Println(out)
	default:
		fmt.Print(audit.FormatTimeline(result))
	}
	return nil
}
