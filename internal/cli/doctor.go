package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/runguard/runguard/internal/allowlist"
	"github.com/runguard/runguard/internal/audit"
	"github.com/runguard/runguard/internal/validate"
)

var doctorConfig string

func init() {
	rootCmd.AddCommand(doctorCmd)
	doctorCmd.Flags().StringVar(&doctorConfig, "config", "", "Path to config YAML (default: ~/.runguard/config.yaml)")
}

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Check host readiness and diagnose configuration issues",
	RunE:  runDoctor,
}

type checkResult struct {
	label  string
	ok     bool
	detail string
	fix    string
}

func runDoctor(cmd *cobra.Command, args []string) error {
	var checks []checkResult

	// 1. Binary location and version.
	execPath, _ := os.Executable()
	if execPath != "" {
		checks = append(checks, checkResult{
			label:  "runguard binary",
			ok:     true,
			detail: fmt.Sprintf("%s (v%s)", execPath, version),
		})
	} else {
		checks = append(checks, checkResult{
			label:  "runguard binary",
			ok:     false,
			detail: "cannot determine executable path",
		})
	}

	// 2. Config directory.
	dir, dirErr := configDir()
	if dirErr == nil {
		if info, err := os.Stat(dir); err == nil && info.IsDir() {
			checks = append(checks, checkResult{
				label:  "config directory",
				ok:     true,
				detail: dir,
			})
		} else {
			checks = append(checks, checkResult{
				label:  "config directory",
				ok:     false,
				detail: "missing",
				fix:    "runguard init",
			})
		}
	} else {
		checks = append(checks, checkResult{
			label:  "config directory",
			ok:     false,
			detail: "cannot determine home directory",
		})
	}

	// 3. config.yaml. Parse it, not just stat it: a typo here silently
	// reverts every path to its default.
	hc, hcErr := loadHostConfig(doctorConfig)
	cfgPath := doctorConfig
	if cfgPath == "" && dirErr == nil {
		cfgPath = filepath.Join(dir, "config.yaml")
	}
	switch {
	case hcErr != nil:
		checks = append(checks, checkResult{
			label:  "config.yaml",
			ok:     false,
			detail: hcErr.Error(),
			fix:    "fix the YAML or rerun `runguard init --force`",
		})
	case fileExists(cfgPath):
		checks = append(checks, checkResult{
			label:  "config.yaml",
			ok:     true,
			detail: "loads cleanly",
		})
	default:
		checks = append(checks, checkResult{
			label:  "config.yaml",
			ok:     false,
			detail: "missing",
			fix:    "runguard init",
		})
	}

	// 4. Allow-list.
	listPath := hc.Allowlist
	if listPath == "" {
		if p, err := allowlist.DefaultPath(); err == nil {
			listPath = p
		}
	}
	list, listErr := allowlist.Load(hc.Allowlist)
	switch {
	case listErr != nil:
		checks = append(checks, checkResult{
			label:  "allow-list",
			ok:     false,
			detail: listErr.Error(),
			fix:    "fix the YAML syntax in " + listPath,
		})
	case fileExists(listPath):
		checks = append(checks, checkResult{
			label:  "allow-list",
			ok:     true,
			detail: fmt.Sprintf("%s (%d names, %d paths)", listPath, len(list.Names()), len(list.Paths())),
		})
	default:
		checks = append(checks, checkResult{
			label:  "allow-list",
			ok:     true,
			detail: "missing, compiled defaults active",
		})
	}

	// 5. Audit log chain.
	auditPath := hc.AuditLog
	if auditPath == "" {
		if p, err := audit.DefaultPath(); err == nil {
			auditPath = p
		}
	}
	if fileExists(auditPath) {
		vr := audit.Verify(auditPath)
		if vr.Valid {
			checks = append(checks, checkResult{
				label:  "audit chain",
				ok:     true,
				detail: fmt.Sprintf("%d entries, chain intact", vr.Lines),
			})
		} else {
			checks = append(checks, checkResult{
				label:  "audit chain",
				ok:     false,
				detail: fmt.Sprintf("broken at line %d: %s", vr.ErrorLine, vr.Error),
				fix:    "the log was edited or corrupted; archive it and investigate",
			})
		}
	} else {
		checks = append(checks, checkResult{
			label:  "audit chain",
			ok:     true,
			detail: "no audit log yet",
		})
	}

	// 6. History database, only when configured.
	if hc.History != "" {
		if fileExists(hc.History) {
			checks = append(checks, checkResult{
				label:  "history db",
				ok:     true,
				detail: hc.History,
			})
		} else {
			checks = append(checks, checkResult{
				label:  "history db",
				ok:     true,
				detail: "will be created on first run",
			})
		}
	}

	// 7. Allow-listed tools actually resolve on PATH.
	if list != nil {
		if names := list.Names(); len(names) > 0 {
			if err := validate.RequireCommands(names...); err != nil {
				checks = append(checks, checkResult{
					label:  "allow-listed tools",
					ok:     false,
					detail: err.Error(),
					fix:    "install the tools or remove stale entries",
				})
			} else {
				checks = append(checks, checkResult{
					label:  "allow-listed tools",
					ok:     true,
					detail: fmt.Sprintf("all %d resolve on PATH", len(names)),
				})
			}
		}
	}

	// Print results.
	hasFailures := false
	for _, c := range checks {
		mark := "✓"
		if !c.ok {
			mark = "✗"
			hasFailures = true
		}
		line := fmt.Sprintf("%s %-20s %s", mark, c.label+":", c.detail)
		if !c.ok && c.fix != "" {
			line += fmt.Sprintf("  ->  %s", c.fix)
		}
		fmt.Println(line)
	}

	if hasFailures {
		fmt.Println()
		fmt.Println("Some checks failed. Run the suggested commands to fix.")
		return fmt.Errorf("doctor found issues")
	}

	fmt.Println()
	fmt.Println("All checks passed.")
	return nil
}

func fileExists(path string) bool {
	if path == "" {
		return false
	}
	_, err := os.Stat(path)
	return err == nil
}
