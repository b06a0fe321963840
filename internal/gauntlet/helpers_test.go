//go:build gauntlet

package gauntlet

import (
	"bufio"
	"encoding/json"
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
)

// arena is an isolated working area for one round: its own allow-list,
// its own audit log, and seed files for read-only commands to chew on.
type arena struct {
	dir       string
	allowlist string
	auditLog  string
}

// runArgs builds the argv for `runguard run` against this arena.
func (a *arena) runArgs(command ...string) []string {
	args := []string{"run", "--allowlist", a.allowlist, "--audit-log", a.auditLog, "--"}
	return append(args, command...)
}

// checkArgs builds the argv for `runguard check` against this arena.
func (a *arena) checkArgs(command ...string) []string {
	args := []string{"check", "--allowlist", a.allowlist, "--"}
	return append(args, command...)
}

// newArena creates a temp directory with an allow-list, seed files, and an
// audit log location.
func newArena(t *testing.T) *arena {
	t.Helper()
	dir := t.TempDir()

	for _, sub := range []string{"targets", "logs"} {
		if err := os.MkdirAll(filepath.Join(dir, sub), 0o755); err != nil {
			t.Fatalf("mkdir %s: %v", sub, err)
		}
	}

	seeds := map[string]string{
		"targets/config.json": `{"version": "1.0", "name": "test"}`,
		"targets/report.txt":  "Quarterly report data\n",
	}
	for name, content := range seeds {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
			t.Fatalf("write seed %s: %v", name, err)
		}
	}

	allowlist := filepath.Join(dir, "allowlist.yaml")
	if err := os.WriteFile(allowlist, []byte("allowed: [sh]\ninclude_defaults: true\n"), 0o644); err != nil {
		t.Fatalf("write allowlist: %v", err)
	}

	return &arena{
		dir:       dir,
		allowlist: allowlist,
		auditLog:  filepath.Join(dir, "logs", "audit.jsonl"),
	}
}

// execRunguard runs the compiled binary with the given args.
// Returns stdout, stderr, and exit code.
func execRunguard(t *testing.T, args ...string) (string, string, int) {
	t.Helper()
	cmd := exec.Command(binaryPath, args...)
	cmd.Env = append(os.Environ(), "HOME="+gauntletHome)
	var stdout, stderr strings.Builder
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	err := cmd.Run()
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return stdout.String(), stderr.String(), exitErr.ExitCode()
		}
		t.Fatalf("exec failed: %v", err)
	}
	return stdout.String(), stderr.String(), 0
}

// runExpectExec runs `runguard run` and asserts exit code 0.
func runExpectExec(t *testing.T, a *arena, command ...string) {
	t.Helper()
	_, stderr, code := execRunguard(t, a.runArgs(command...)...)
	if code != 0 {
		t.Errorf("expected execution (exit 0) for %q, got exit %d: %s",
			strings.Join(command, " "), code, stderr)
	}
}

// runExpectRefusal runs `runguard run` and asserts exit code 77
// (allow-list refusal).
func runExpectRefusal(t *testing.T, a *arena, command ...string) {
	t.Helper()
	_, stderr, code := execRunguard(t, a.runArgs(command...)...)
	if code != 77 {
		t.Errorf("expected refusal (exit 77) for %q, got exit %d: %s",
			strings.Join(command, " "), code, stderr)
	}
}

// runExpectRejection runs `runguard run` and asserts exit code 1 with a
// rejection verdict on stderr, so a command that merely exited 1 itself
// cannot pass as a rejection.
func runExpectRejection(t *testing.T, a *arena, command ...string) {
	t.Helper()
	_, stderr, code := execRunguard(t, a.runArgs(command...)...)
	if code != 1 {
		t.Errorf("expected rejection (exit 1) for %q, got exit %d: %s",
			strings.Join(command, " "), code, stderr)
		return
	}
	if !strings.Contains(stderr, "rejected") {
		t.Errorf("expected rejection verdict on stderr for %q, got: %s",
			strings.Join(command, " "), stderr)
	}
}

// verifyChain runs `runguard audit verify` and asserts the chain is valid.
func verifyChain(t *testing.T, auditLogPath string) {
	t.Helper()
	_, stderr, code := execRunguard(t, "audit", "verify", auditLogPath)
	if code != 0 {
		t.Fatalf("audit chain verification failed (exit %d): %s", code, stderr)
	}
}

// verifyChainBroken runs `runguard audit verify` and asserts the chain is
// broken.
func verifyChainBroken(t *testing.T, auditLogPath string) {
	t.Helper()
	_, _, code := execRunguard(t, "audit", "verify", auditLogPath)
	if code == 0 {
		t.Fatal("expected audit chain verification to fail, but it passed")
	}
}

// countEntries counts the number of non-empty lines in the audit log.
func countEntries(t *testing.T, auditLogPath string) int {
	t.Helper()
	f, err := os.Open(auditLogPath)
	if err != nil {
		t.Fatalf("open audit log: %v", err)
	}
	defer f.Close()

	count := 0
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		if strings.TrimSpace(scanner.Text()) != "" {
			count++
		}
	}
	if err := scanner.Err(); err != nil {
		t.Fatalf("scan audit log: %v", err)
	}
	return count
}

// countEvents counts audit entries with a specific event value.
func countEvents(t *testing.T, auditLogPath, event string) int {
	t.Helper()
	entries := parseEntries(t, auditLogPath)
	count := 0
	for _, e := range entries {
		if v, ok := e["event"].(string); ok && v == event {
			count++
		}
	}
	return count
}

// parseEntries parses all JSON objects from the audit log.
func parseEntries(t *testing.T, auditLogPath string) []map[string]any {
	t.Helper()
	f, err := os.Open(auditLogPath)
	if err != nil {
		t.Fatalf("open audit log: %v", err)
	}
	defer f.Close()

	var entries []map[string]any
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		var entry map[string]any
		if err := json.Unmarshal([]byte(line), &entry); err != nil {
			t.Fatalf("parse audit entry: %v\nline: %s", err, line)
		}
		entries = append(entries, entry)
	}
	if err := scanner.Err(); err != nil {
		t.Fatalf("scan audit log: %v", err)
	}
	return entries
}

// findRepoRoot walks up from the current directory to find go.mod.
func findRepoRoot() string {
	dir, err := os.Getwd()
	if err != nil {
		panic("getwd: " + err.Error())
	}
	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			panic("could not find go.mod in any parent directory")
		}
		dir = parent
	}
}
