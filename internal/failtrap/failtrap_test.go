package failtrap

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os/exec"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/runguard/runguard/internal/logging"
)

type exitErr struct{ code int }

func (e exitErr) Error() string { return fmt.Sprintf("exit status %d", e.code) }
func (e exitErr) ExitCode() int { return e.code }

func newTestTrap(t *testing.T, cfg logging.Config) (*Trap, *bytes.Buffer, *[]int) {
	t.Helper()
	var buf bytes.Buffer
	var codes []int
	tr := Install(
		WithLogger(logging.New(cfg, &buf)),
		WithExitFunc(func(c int) { codes = append(codes, c) }),
	)
	return tr, &buf, &codes
}

func TestRecoverCapturesPanic(t *testing.T) {
	tr, buf, codes := newTestTrap(t, logging.Config{MinLevel: logging.LevelError})

	func() {
		defer tr.Recover()
		panic("disk exploded")
	}()

	if !tr.Tripped() {
		t.Fatal("trap not tripped")
	}
	if len(*codes) != 1 || (*codes)[0] != 1 {
		t.Fatalf("exit codes = %v, want [1]", *codes)
	}
	out := buf.String()
	if !strings.Contains(out, "[ERROR]") || !strings.Contains(out, "disk exploded") {
		t.Errorf("failure line missing:\n%s", out)
	}
}

func TestRecoverWithoutPanicIsNoop(t *testing.T) {
	tr, buf, codes := newTestTrap(t, logging.Config{MinLevel: logging.LevelDebug, Verbose: true})

	func() {
		defer tr.Recover()
	}()

	if tr.Tripped() || len(*codes) != 0 || buf.Len() != 0 {
		t.Errorf("clean return tripped the trap: tripped=%v codes=%v out=%q",
			tr.Tripped(), *codes, buf.String())
	}
}

func TestOriginalExitCodePreserved(t *testing.T) {
	tr, _, codes := newTestTrap(t, logging.Config{MinLevel: logging.LevelError})

	func() {
		defer tr.Recover()
		panic(exitErr{code: 3})
	}()

	if len(*codes) != 1 || (*codes)[0] != 3 {
		t.Fatalf("exit codes = %v, want [3]", *codes)
	}
}

func TestWrappedExitCodePreserved(t *testing.T) {
	tr, _, codes := newTestTrap(t, logging.Config{MinLevel: logging.LevelError})
	tr.Fail("backup", fmt.Errorf("rsync: %w", exitErr{code: 5}))
	if len(*codes) != 1 || (*codes)[0] != 5 {
		t.Fatalf("exit codes = %v, want [5]", *codes)
	}
}

func TestRealCommandExitCode(t *testing.T) {
	err := exec.Command("sh", "-c", "exit 3").Run()
	if err == nil {
		t.Fatal("expected command failure")
	}
	tr, _, codes := newTestTrap(t, logging.Config{MinLevel: logging.LevelError})
	tr.Fail("sh -c 'exit 3'", err)
	if len(*codes) != 1 || (*codes)[0] != 3 {
		t.Fatalf("exit codes = %v, want [3]", *codes)
	}
}

func TestFirstFailureWins(t *testing.T) {
	tr, buf, codes := newTestTrap(t, logging.Config{MinLevel: logging.LevelError})

	tr.Fail("first", exitErr{code: 2})
	tr.Fail("second", exitErr{code: 9})

	if len(*codes) != 1 || (*codes)[0] != 2 {
		t.Fatalf("exit codes = %v, want [2]", *codes)
	}
	if strings.Contains(buf.String(), "second") {
		t.Errorf("second failure emitted after trip:\n%s", buf.String())
	}
}

func TestFailNilIsNoop(t *testing.T) {
	tr, buf, codes := newTestTrap(t, logging.Config{MinLevel: logging.LevelError})
	tr.Fail("op", nil)
	Check(tr, "op", nil)
	if tr.Tripped() || len(*codes) != 0 || buf.Len() != 0 {
		t.Error("nil error tripped the trap")
	}
}

func innerBoom() { panic("inner boom") }
func outerBoom() { innerBoom() }

func TestCallChainOutermostLast(t *testing.T) {
	tr, buf, _ := newTestTrap(t, logging.Config{MinLevel: logging.LevelError})

	func() {
		defer tr.Recover()
		outerBoom()
	}()

	out := buf.String()
	inner := strings.Index(out, "innerBoom")
	outer := strings.Index(out, "outerBoom")
	caller := strings.Index(out, "TestCallChainOutermostLast")
	if inner < 0 || outer < 0 || caller < 0 {
		t.Fatalf("chain frames missing:\n%s", out)
	}
	if !(inner < outer && outer < caller) {
		t.Errorf("chain order wrong (inner=%d outer=%d caller=%d):\n%s",
			inner, outer, caller, out)
	}
	if strings.Contains(out, "(*Trap).") || strings.Contains(out, "runtime.gopanic") {
		t.Errorf("internal frames leaked into chain:\n%s", out)
	}
}

func TestJSONFailureRecord(t *testing.T) {
	tr, buf, _ := newTestTrap(t, logging.Config{Format: logging.FormatJSON, MinLevel: logging.LevelError})
	tr.Fail("rsync backup", exitErr{code: 7})

	var rec struct {
		Timestamp string `json:"timestamp"`
		Level     string `json:"level"`
		Event     string `json:"event"`
		Line      string `json:"line"`
		Command   string `json:"command"`
		ExitCode  int    `json:"exit_code"`
	}
	found := false
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if !strings.Contains(line, "script_error") {
			continue
		}
		if err := json.Unmarshal([]byte(line), &rec); err != nil {
			t.Fatalf("failure record is not valid JSON: %v\n%s", err, line)
		}
		found = true
	}
	if !found {
		t.Fatalf("no script_error record emitted:\n%s", buf.String())
	}
	if rec.Event != "script_error" || rec.ExitCode != 7 || rec.Level != "ERROR" {
		t.Errorf("record fields wrong: %+v", rec)
	}
	if !strings.Contains(rec.Command, "rsync backup") {
		t.Errorf("command missing from record: %+v", rec)
	}
	if rec.Line == "" || rec.Timestamp == "" {
		t.Errorf("location or timestamp missing: %+v", rec)
	}
}

func TestFinishTelemetry(t *testing.T) {
	var buf bytes.Buffer
	var elapsed []time.Duration
	tr := Install(
		WithLogger(logging.New(logging.Config{MinLevel: logging.LevelDebug, Verbose: true}, &buf)),
		WithExitFunc(func(int) {}),
		WithExitHook(func(d time.Duration) { elapsed = append(elapsed, d) }),
	)

	tr.Finish()
	tr.Finish()

	if len(elapsed) != 1 {
		t.Fatalf("hook fired %d times, want 1", len(elapsed))
	}
	if elapsed[0] < 0 {
		t.Errorf("negative elapsed time %v", elapsed[0])
	}
	if !strings.Contains(buf.String(), "finished in") {
		t.Errorf("telemetry line missing:\n%s", buf.String())
	}
}

func TestFinishRunsOnFailurePath(t *testing.T) {
	hooked := false
	var buf bytes.Buffer
	tr := Install(
		WithLogger(logging.New(logging.Config{MinLevel: logging.LevelError}, &buf)),
		WithExitFunc(func(int) {}),
		WithExitHook(func(time.Duration) { hooked = true }),
	)
	tr.Fail("op", exitErr{code: 4})
	if !hooked {
		t.Error("exit hook skipped on failure path")
	}
}

func TestHookPanicIsContained(t *testing.T) {
	tr := Install(
		WithLogger(logging.New(logging.Config{MinLevel: logging.LevelError}, &bytes.Buffer{})),
		WithExitFunc(func(int) {}),
		WithExitHook(func(time.Duration) { panic("hook bug") }),
	)
	tr.Finish() // a propagated panic fails the test
}

type panicWriter struct{}

func (panicWriter) Write([]byte) (int, error) { panic("writer down") }

func TestEmitFaultDoesNotRecurse(t *testing.T) {
	var codes []int
	tr := Install(
		WithLogger(logging.New(logging.Config{MinLevel: logging.LevelError}, panicWriter{})),
		WithExitFunc(func(c int) { codes = append(codes, c) }),
	)
	tr.Fail("op", exitErr{code: 6})
	if len(codes) != 1 || codes[0] != 6 {
		t.Fatalf("exit codes = %v, want [6] despite emission fault", codes)
	}
}

func TestTrapsAreIndependentPerGoroutine(t *testing.T) {
	var wg sync.WaitGroup
	results := make([]int, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			tr := Install(
				WithLogger(logging.New(logging.Config{MinLevel: logging.LevelError}, &bytes.Buffer{})),
				WithExitFunc(func(c int) { results[n] = c }),
			)
			defer tr.Recover()
			panic(exitErr{code: 10 + n})
		}(i)
	}
	wg.Wait()
	if results[0] != 10 || results[1] != 11 {
		t.Errorf("per-goroutine exit codes = %v, want [10 11]", results)
	}
}
