package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/runguard/runguard/internal/allowlist"
)

var initForce bool

func init() {
	initCmd.Flags().BoolVar(&initForce, "force", false, "Overwrite existing config files")
	rootCmd.AddCommand(initCmd)
}

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Bootstrap the runguard configuration directory",
	Long: `Creates ~/.runguard with a starter config.yaml and allowlist.yaml.

Existing files are left alone unless --force is given. The audit log and
history database are created lazily on first use.`,
	RunE: runInit,
}

func runInit(cmd *cobra.Command, args []string) error {
	dir, err := configDir()
	if err != nil {
		return err
	}

	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}

	var created []string

	cfgPath := filepath.Join(dir, "config.yaml")
	if wrote, err := writeIfMissing(cfgPath, defaultConfigYAML); err != nil {
		return err
	} else if wrote {
		created = append(created, cfgPath)
	}

	listPath := filepath.Join(dir, "allowlist.yaml")
	listContent, err := defaultAllowlistYAML()
	if err != nil {
		return fmt.Errorf("generate default allow-list: %w", err)
	}
	if wrote, err := writeIfMissing(listPath, listContent); err != nil {
		return err
	} else if wrote {
		created = append(created, listPath)
	}

	fmt.Println("runguard init complete.")
	fmt.Println()
	if len(created) > 0 {
		fmt.Println("Created:")
		for _, path := range created {
			fmt.Printf("  %s\n", path)
		}
		fmt.Println()
	} else {
		fmt.Println("All files already exist (use --force to overwrite).")
		fmt.Println()
	}

	fmt.Println("Verify:")
	fmt.Println("  runguard doctor")
	fmt.Println()
	fmt.Println("Run a command through the guard:")
	fmt.Println("  runguard run -- <command>")

	return nil
}

// writeIfMissing writes content to path if it doesn't exist or --force is set.
// Returns true if the file was written.
func writeIfMissing(path, content string) (bool, error) {
	if !initForce {
		if _, err := os.Stat(path); err == nil {
			return false, nil
		}
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return false, fmt.Errorf("create directory %s: %w", dir, err)
	}

	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return false, fmt.Errorf("write %s: %w", path, err)
	}
	return true, nil
}

const defaultConfigYAML = `# runguard host configuration. Empty paths fall back to ~/.runguard/.

# Allow-list of executables callers may run.
allowlist: ""

# Hash-chained audit log of every decision.
audit_log: ""

# SQLite run-history database. Empty disables history.
history: ""

# Wall-clock limit per command (Go duration syntax).
timeout: 30s

# Bytes kept per captured output stream.
output_limit: 1048576

# Scan captured output for leaked secrets.
redact: true

# Strip sensitive variables from child environments.
sanitize_env: false
`

// defaultAllowlistYAML generates a commented starter allowlist.yaml.
func defaultAllowlistYAML() (string, error) {
	data, err := yaml.Marshal(allowlist.Entries{IncludeDefaults: true})
	if err != nil {
		return "", err
	}
	header := "# runguard allow-list. Fail closed: anything not listed is refused.\n" +
		"# Bare names resolve via PATH; entries containing / match exactly.\n" +
		"# include_defaults merges the compiled read-only utility set\n" +
		"# (cat, ls, grep, head, ...).\n\n"
	return header + string(data), nil
}
