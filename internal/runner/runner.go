// Package runner executes allow-listed commands on behalf of partially
// trusted callers. Every invocation passes input validation and an
// allow-list check before it reaches exec, and every decision is appended
// to the hash-chained audit log.
package runner

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/google/uuid"

	"github.com/runguard/runguard/internal/allowlist"
	"github.com/runguard/runguard/internal/audit"
	"github.com/runguard/runguard/internal/history"
	"github.com/runguard/runguard/internal/logging"
	"github.com/runguard/runguard/internal/validate"
)

const (
	// DefaultTimeout bounds one command invocation wall-clock.
	DefaultTimeout = 30 * time.Second
	// DefaultOutputLimit is the byte cap kept per output stream.
	DefaultOutputLimit = 1 << 20

	// timeoutExitCode follows the timeout(1) convention.
	timeoutExitCode = 124
	// startFailExitCode follows the shell convention for a command that
	// could not be started.
	startFailExitCode = 127

	// kindNotAllowed labels allow-list refusals in audit entries; refusals
	// are policy decisions, not input-validation failures.
	kindNotAllowed = "NotAllowed"
)

// Config holds runner configuration.
type Config struct {
	AllowlistPath string        // empty means the conventional location
	AuditPath     string        // empty means the conventional location
	Timeout       time.Duration // zero means DefaultTimeout
	OutputLimit   int           // bytes per stream, zero means DefaultOutputLimit
	RedactOutput  bool          // scan captured output for leaked secrets
	SanitizeEnv   bool          // strip sensitive variables from the child env
	Log           *logging.Logger
	History       *history.Store // optional run history
}

// Result captures subprocess execution outcome.
type Result struct {
	RunID           string        `json:"run_id"`
	Stdout          string        `json:"stdout"`
	Stderr          string        `json:"stderr"`
	ExitCode        int           `json:"exit_code"`
	Duration        time.Duration `json:"duration_ns"`
	StdoutTruncated bool          `json:"stdout_truncated,omitempty"`
	StderrTruncated bool          `json:"stderr_truncated,omitempty"`
	TimedOut        bool          `json:"timed_out,omitempty"`
	Redacted        int           `json:"redacted,omitempty"`
}

// BlockedError is returned when the allow-list refuses a command.
type BlockedError struct {
	Command string
	Reason  string
}

func (e *BlockedError) Error() string {
	return fmt.Sprintf("command blocked: %s", e.Reason)
}

// Runner validates, permits, and executes commands.
type Runner struct {
	cfg   Config
	log   *logging.Logger
	audit *audit.Log

	mu    sync.RWMutex
	allow *allowlist.List
}

// New builds a Runner: it loads the allow-list and opens the audit log.
func New(cfg Config) (*Runner, error) {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.OutputLimit <= 0 {
		cfg.OutputLimit = DefaultOutputLimit
	}
	if cfg.Log == nil {
		cfg.Log = logging.Default()
	}

	allow, err := allowlist.Load(cfg.AllowlistPath)
	if err != nil {
		return nil, fmt.Errorf("runner: %w", err)
	}

	auditPath := cfg.AuditPath
	if auditPath == "" {
		auditPath, err = audit.DefaultPath()
		if err != nil {
			return nil, fmt.Errorf("runner: %w", err)
		}
	}
	alog, err := audit.Open(auditPath)
	if err != nil {
		return nil, fmt.Errorf("runner: %w", err)
	}

	return &Runner{cfg: cfg, log: cfg.Log, audit: alog, allow: allow}, nil
}

// Close releases the audit log. The history store is owned by the caller.
func (r *Runner) Close() error {
	return r.audit.Close()
}

// Allowlist returns the current allow-list.
func (r *Runner) Allowlist() *allowlist.List {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.allow
}

// Reload replaces the allow-list from its configured path. Wired as the
// allowlist watcher's reload callback for hot reload.
func (r *Runner) Reload() error {
	allow, err := allowlist.Load(r.cfg.AllowlistPath)
	if err != nil {
		return fmt.Errorf("runner: %w", err)
	}
	r.mu.Lock()
	r.allow = allow
	r.mu.Unlock()
	return nil
}

// AuditPath returns the location of the audit log in use.
func (r *Runner) AuditPath() string {
	return r.audit.Path()
}

// Run validates the command, checks the allow-list, executes with a
// timeout and capped output, and records the decision. Validation
// failures return *validate.Error; refusals return *BlockedError.
func (r *Runner) Run(ctx context.Context, name string, args []string, stdin io.Reader) (*Result, error) {
	runID := newRunID()
	command := commandLine(name, args)

	if err := validateCommand(name, args); err != nil {
		entry := audit.Entry{RunID: runID, Event: audit.EventRejected, Command: command}
		var ve *validate.Error
		if errors.As(err, &ve) {
			entry.Param = ve.Param
			entry.Kind = string(ve.Kind)
			entry.Detail = ve.Detail
		}
		r.record(entry)
		r.remember(history.Run{RunID: runID, Command: command, Decision: audit.EventRejected, Kind: entry.Kind})
		r.log.Warn("rejected:", command, err.Error())
		return nil, err
	}

	if err := r.Allowlist().Permit(name); err != nil {
		r.record(audit.Entry{
			RunID:   runID,
			Event:   audit.EventBlocked,
			Command: command,
			Kind:    kindNotAllowed,
			Detail:  err.Error(),
		})
		r.remember(history.Run{RunID: runID, Command: command, Decision: audit.EventBlocked, Kind: kindNotAllowed})
		r.log.Warn("blocked:", command, err.Error())
		return nil, &BlockedError{Command: name, Reason: err.Error()}
	}

	cctx, cancel := context.WithTimeout(ctx, r.cfg.Timeout)
	defer cancel()

	cmd := exec.CommandContext(cctx, name, args...)
	stdout := newLimitedWriter(r.cfg.OutputLimit)
	stderr := newLimitedWriter(r.cfg.OutputLimit)
	cmd.Stdout = stdout
	cmd.Stderr = stderr
	if stdin != nil {
		cmd.Stdin = stdin
	}
	if r.cfg.SanitizeEnv {
		cmd.Env = sanitizeEnv(os.Environ())
	}

	r.log.Debug("running", command)
	start := time.Now()
	runErr := cmd.Run()
	duration := time.Since(start)

	res := &Result{
		RunID:           runID,
		Stdout:          stdout.String(),
		Stderr:          stderr.String(),
		Duration:        duration,
		StdoutTruncated: stdout.truncated,
		StderrTruncated: stderr.truncated,
	}

	var detail string
	switch {
	case runErr == nil:
	case cctx.Err() == context.DeadlineExceeded:
		res.ExitCode = timeoutExitCode
		res.TimedOut = true
		detail = "timed out after " + r.cfg.Timeout.String()
	default:
		var exitErr *exec.ExitError
		if !errors.As(runErr, &exitErr) {
			// The command never started: record the attempt, then fail.
			r.record(audit.Entry{
				RunID:    runID,
				Event:    audit.EventExecuted,
				Command:  command,
				ExitCode: startFailExitCode,
				Detail:   "start failed: " + runErr.Error(),
			})
			r.remember(history.Run{
				RunID:      runID,
				StartedAt:  start.UTC(),
				Command:    command,
				Decision:   audit.EventExecuted,
				ExitCode:   startFailExitCode,
				DurationMS: duration.Milliseconds(),
			})
			return nil, fmt.Errorf("runner: %s: %w", name, runErr)
		}
		res.ExitCode = exitCodeOf(exitErr)
	}

	if r.cfg.RedactOutput {
		var n int
		res.Stdout, n = ScanOutputFull(res.Stdout)
		res.Redacted += n
		res.Stderr, n = ScanOutputFull(res.Stderr)
		res.Redacted += n
	}

	r.record(audit.Entry{
		RunID:    runID,
		Event:    audit.EventExecuted,
		Command:  command,
		ExitCode: res.ExitCode,
		Detail:   detail,
	})
	r.remember(history.Run{
		RunID:      runID,
		StartedAt:  start.UTC(),
		Command:    command,
		Decision:   audit.EventExecuted,
		ExitCode:   res.ExitCode,
		DurationMS: duration.Milliseconds(),
	})
	r.log.Info("executed", command, "exit", strconv.Itoa(res.ExitCode), "in", duration.Round(time.Millisecond).String())
	return res, nil
}

// Check applies the validation and allow-list gates without executing.
// Dry-run mode: it records nothing.
func (r *Runner) Check(name string, args []string) error {
	if err := validateCommand(name, args); err != nil {
		return err
	}
	if err := r.Allowlist().Permit(name); err != nil {
		return &BlockedError{Command: name, Reason: err.Error()}
	}
	return nil
}

// validateCommand rejects shell metacharacters in the executable name and
// every argument. Execution is argv-based, but arguments still reach tools
// that may interpret them.
func validateCommand(name string, args []string) error {
	if err := validate.NoShellMeta(name, "command"); err != nil {
		return err
	}
	for i, arg := range args {
		if err := validate.NoShellMeta(arg, fmt.Sprintf("arg[%d]", i)); err != nil {
			return err
		}
	}
	return nil
}

func commandLine(name string, args []string) string {
	if len(args) == 0 {
		return name
	}
	return name + " " + strings.Join(args, " ")
}

func newRunID() string {
	return "r-" + uuid.New().String()
}

// exitCodeOf maps a wait status to a shell-style exit code: signal death
// becomes 128+signal.
func exitCodeOf(err *exec.ExitError) int {
	if code := err.ExitCode(); code >= 0 {
		return code
	}
	if ws, ok := err.Sys().(syscall.WaitStatus); ok && ws.Signaled() {
		return 128 + int(ws.Signal())
	}
	return 1
}

// record appends to the audit log. Append failures degrade to a warning so
// a read-only audit location does not take command execution down with it.
func (r *Runner) record(e audit.Entry) {
	if err := r.audit.Record(e); err != nil {
		r.log.Warn("audit append failed:", err.Error())
	}
}

func (r *Runner) remember(run history.Run) {
	if r.cfg.History == nil {
		return
	}
	if err := r.cfg.History.RecordRun(run); err != nil {
		r.log.Warn("history write failed:", err.Error())
	}
}

// limitedWriter retains at most limit bytes and flags overflow.
type limitedWriter struct {
	buf       bytes.Buffer
	limit     int
	truncated bool
}

func newLimitedWriter(limit int) *limitedWriter {
	return &limitedWriter{limit: limit}
}

// Write keeps the first limit bytes. It always reports len(p) consumed so
// the child process never observes a short write.
func (w *limitedWriter) Write(p []byte) (int, error) {
	if room := w.limit - w.buf.Len(); room > 0 {
		if len(p) > room {
			w.buf.Write(p[:room])
			w.truncated = true
		} else {
			w.buf.Write(p)
		}
	} else if len(p) > 0 {
		w.truncated = true
	}
	return len(p), nil
}

func (w *limitedWriter) String() string { return w.buf.String() }
