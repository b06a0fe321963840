// Package failtrap intercepts otherwise-unhandled failures, converts them
// into structured diagnostics, and terminates the process with the original
// failure's exit code. One Trap serves one execution context: goroutines
// must install their own rather than share a tripped flag.
package failtrap

import (
	"errors"
	"fmt"
	"os"
	"runtime"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/runguard/runguard/internal/logging"
)

// Frame is one entry of the call chain active at the failure site.
type Frame struct {
	Function string
	File     string
	Line     int
}

// FailureContext captures everything a human or machine consumer needs to
// act on a failure. Built exactly once per Trap, at trip time.
type FailureContext struct {
	Location  string // failure site, file:line
	Operation string // the failing operation or command text
	ExitCode  int
	Timestamp time.Time
	CallChain []Frame // innermost first; emitted so the outermost lands last
}

// Trap is the per-context failure interceptor. Armed on Install; the first
// unguarded failure trips it, after which further failures are ignored.
type Trap struct {
	log       *logging.Logger
	startedAt time.Time
	tripped   atomic.Bool
	finished  sync.Once
	exit      func(int)
	hook      func(elapsed time.Duration)
}

// Option adjusts a Trap at install time.
type Option func(*Trap)

// WithLogger directs the trap's emission to l instead of the process
// default.
func WithLogger(l *logging.Logger) Option {
	return func(t *Trap) { t.log = l }
}

// WithExitFunc replaces process termination, for tests.
func WithExitFunc(fn func(int)) Option {
	return func(t *Trap) { t.exit = fn }
}

// WithExitHook registers a telemetry callback fired once per termination,
// success or failure, with the elapsed time since Install. The hook cannot
// fail the process or change its exit code.
func WithExitHook(fn func(elapsed time.Duration)) Option {
	return func(t *Trap) { t.hook = fn }
}

// Install arms a new Trap and records the start timestamp for Finish.
func Install(opts ...Option) *Trap {
	t := &Trap{
		log:       logging.Default(),
		startedAt: time.Now(),
		exit:      os.Exit,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Tripped reports whether a failure has already been intercepted.
func (t *Trap) Tripped() bool { return t.tripped.Load() }

// Recover intercepts a panic in the current context. Defer it at the top of
// the context, after deferring Finish:
//
//	trap := failtrap.Install()
//	defer trap.Finish()
//	defer trap.Recover()
func (t *Trap) Recover() {
	v := recover()
	if v == nil {
		return
	}
	operation := fmt.Sprint(v)
	if err, ok := v.(error); ok {
		operation = err.Error()
	}
	t.trip(operation, exitCodeFrom(v), captureFrames())
}

// Fail routes an error the caller cannot handle into the same one-shot
// path as Recover. No-op on nil.
func (t *Trap) Fail(operation string, err error) {
	if err == nil {
		return
	}
	if operation == "" {
		operation = err.Error()
	} else {
		operation = operation + ": " + err.Error()
	}
	t.trip(operation, exitCodeFrom(err), captureFrames())
}

// Check is shorthand for guarding a call site: nothing happens on nil err.
func Check(t *Trap, operation string, err error) {
	if err != nil {
		t.Fail(operation, err)
	}
}

// Finish is the termination hook: it emits elapsed-time telemetry exactly
// once per Trap, never fails, and never changes the already-decided exit
// code. It runs automatically on the failure path; defer it for the
// success path.
func (t *Trap) Finish() {
	t.finished.Do(func() {
		defer func() { recover() }()
		elapsed := time.Since(t.startedAt)
		t.log.Debug("finished in", elapsed.Round(time.Millisecond).String())
		if t.hook != nil {
			t.hook(elapsed)
		}
	})
}

// trip performs the Armed to Tripped transition. Exactly one caller wins;
// later failures, including any raised while handling this one, are
// dropped rather than recursed into.
func (t *Trap) trip(operation string, code int, chain []Frame) {
	if !t.tripped.CompareAndSwap(false, true) {
		return
	}
	location := "unknown"
	if len(chain) > 0 {
		location = chain[0].File + ":" + strconv.Itoa(chain[0].Line)
	}
	fc := FailureContext{
		Location:  location,
		Operation: operation,
		ExitCode:  code,
		Timestamp: time.Now().UTC(),
		CallChain: chain,
	}
	t.emit(fc)
	t.Finish()
	t.exit(fc.ExitCode)
}

// failureRecord is the machine-readable shape of a tripped failure.
type failureRecord struct {
	Timestamp string `json:"timestamp"`
	Level     string `json:"level"`
	Event     string `json:"event"`
	Line      string `json:"line"`
	Command   string `json:"command"`
	ExitCode  int    `json:"exit_code"`
	Message   string `json:"message"`
}

func (t *Trap) emit(fc FailureContext) {
	// A fault while emitting must not re-enter the handler.
	defer func() { recover() }()

	t.log.Error("unhandled failure:", fc.Operation,
		"at", fc.Location, "exit code", strconv.Itoa(fc.ExitCode))
	t.log.JSONRecord(logging.LevelError, failureRecord{
		Timestamp: fc.Timestamp.Format(time.RFC3339),
		Level:     logging.LevelError.String(),
		Event:     "script_error",
		Line:      fc.Location,
		Command:   fc.Operation,
		ExitCode:  fc.ExitCode,
		Message:   "unhandled failure",
	})
	for _, fr := range fc.CallChain {
		t.log.Error("  at", fr.Function, fr.File+":"+strconv.Itoa(fr.Line))
	}
}

// exitCoder is satisfied by *exec.ExitError and by any failure that wants
// its own status propagated instead of the generic 1.
type exitCoder interface{ ExitCode() int }

func exitCodeFrom(v any) int {
	if ec, ok := v.(exitCoder); ok {
		if c := ec.ExitCode(); c > 0 {
			return c
		}
	}
	if err, ok := v.(error); ok {
		var ec exitCoder
		if errors.As(err, &ec) {
			if c := ec.ExitCode(); c > 0 {
				return c
			}
		}
	}
	return 1
}

const framePrefix = "github.com/runguard/runguard/internal/failtrap."

// internalFrame hides runtime machinery and the trap's own entry points
// from the reported chain, leaving only the host's frames.
func internalFrame(fn string) bool {
	if strings.HasPrefix(fn, "runtime.") {
		return true
	}
	rest, ok := strings.CutPrefix(fn, framePrefix)
	if !ok {
		return false
	}
	return strings.HasPrefix(rest, "(*Trap).") || rest == "Check" || rest == "captureFrames"
}

// captureFrames walks the stack at the failure site. Innermost frame first.
func captureFrames() []Frame {
	pcs := make([]uintptr, 64)
	n := runtime.Callers(2, pcs)
	frames := runtime.CallersFrames(pcs[:n])
	var out []Frame
	for {
		fr, more := frames.Next()
		if fr.Function != "" && !internalFrame(fr.Function) {
			out = append(out, Frame{Function: fr.Function, File: fr.File, Line: fr.Line})
		}
		if !more {
			return out
		}
	}
}
