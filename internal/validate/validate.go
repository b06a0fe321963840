// Package validate guards externally supplied strings and paths before they
// reach an execution context. Every check either returns nil or a *Error
// carrying a Kind; checks are fail-closed and safe for concurrent use.
package validate

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/runguard/runguard/internal/logging"
)

// Kind names a category of validation or runtime failure.
type Kind string

const (
	KindMissingDependency Kind = "MissingDependency"
	KindInvalidHostname   Kind = "InvalidHostname"
	KindUnsafeInput       Kind = "UnsafeInput"
	KindInputTooLong      Kind = "InputTooLong"
	KindPathTraversal     Kind = "PathTraversal"
	KindInvalidPath       Kind = "InvalidPath"
	// KindUnhandledFailure covers errors not raised by a named check.
	KindUnhandledFailure Kind = "UnhandledFailure"
)

// Error is a failed check. Param names the offending parameter or path;
// Detail states the violated rule, never the raw rejected value.
type Error struct {
	Kind   Kind
	Param  string
	Detail string
}

func (e *Error) Error() string {
	if e.Param == "" {
		return fmt.Sprintf("%s: %s", e.Kind, e.Detail)
	}
	return fmt.Sprintf("%s: %s: %s", e.Kind, e.Param, e.Detail)
}

// KindOf extracts the failure kind from err. Foreign non-nil errors map to
// KindUnhandledFailure; nil maps to the empty Kind.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var ve *Error
	if errors.As(err, &ve) {
		return ve.Kind
	}
	return KindUnhandledFailure
}

// RequireCommands verifies that every named executable resolves in PATH.
// All names are checked before failing so the caller learns the full set of
// missing dependencies in one pass.
func RequireCommands(names ...string) error {
	var missing []string
	for _, name := range names {
		if _, err := exec.LookPath(name); err != nil {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return &Error{
			Kind:   KindMissingDependency,
			Detail: "required commands not found in PATH: " + strings.Join(missing, ", "),
		}
	}
	return nil
}

// RFC-1123 host name: dot-separated labels of 1-63 alphanumeric-or-hyphen
// characters, no label starting or ending with a hyphen.
var hostnameRe = regexp.MustCompile(
	`^[A-Za-z0-9]([A-Za-z0-9-]{0,61}[A-Za-z0-9])?` +
		`(\.[A-Za-z0-9]([A-Za-z0-9-]{0,61}[A-Za-z0-9])?)*$`)

// resolveHost is swapped in tests to keep hostname checks off the network.
var resolveHost = func(ctx context.Context, host string) ([]string, error) {
	return net.DefaultResolver.LookupHost(ctx, host)
}

const resolveTimeout = 2 * time.Second

// Hostname checks s against RFC-1123 label rules. On syntactic success a
// bounded DNS lookup runs purely as debug enrichment; lookup failure never
// fails the check.
func Hostname(s string) error {
	if s == "" {
		return &Error{Kind: KindInvalidHostname, Param: "hostname", Detail: "empty"}
	}
	if !hostnameRe.MatchString(s) {
		return &Error{Kind: KindInvalidHostname, Param: "hostname", Detail: "not a valid RFC-1123 name"}
	}
	if log := logging.Default(); log.Enabled(logging.LevelDebug) {
		ctx, cancel := context.WithTimeout(context.Background(), resolveTimeout)
		defer cancel()
		if addrs, err := resolveHost(ctx, s); err != nil {
			log.Debug("hostname", s, "did not resolve:", err.Error())
		} else if len(addrs) > 0 {
			log.Debug("hostname", s, "resolves to", addrs[0])
		}
	}
	return nil
}

// shellMeta is the exact set of bytes that can alter command interpretation
// when interpolated into a shell-invoked command line. Strings free of
// these bytes pass NoShellMeta.
const shellMeta = ";|&`$()<>'\"\n"

// NoShellMeta fails with KindUnsafeInput when s contains a shell
// metacharacter. name identifies the parameter in diagnostics.
func NoShellMeta(s, name string) error {
	if i := strings.IndexAny(s, shellMeta); i >= 0 {
		return &Error{
			Kind:   KindUnsafeInput,
			Param:  name,
			Detail: fmt.Sprintf("contains shell metacharacter %q", s[i]),
		}
	}
	return nil
}

// MaxAgentInputLen caps the byte length of a single agent-supplied value.
const MaxAgentInputLen = 1000

// AgentInput applies the full gate for agent-supplied strings: byte length,
// null byte, carriage return, then shell metacharacters. On success it emits
// exactly one DEBUG record naming the parameter and its length, never the
// value itself.
func AgentInput(s, name string) error {
	if len(s) > MaxAgentInputLen {
		return &Error{
			Kind:   KindInputTooLong,
			Param:  name,
			Detail: fmt.Sprintf("%d bytes exceeds the %d byte limit", len(s), MaxAgentInputLen),
		}
	}
	if strings.IndexByte(s, 0) >= 0 {
		return &Error{Kind: KindUnsafeInput, Param: name, Detail: "contains a null byte"}
	}
	if strings.IndexByte(s, '\r') >= 0 {
		return &Error{Kind: KindUnsafeInput, Param: name, Detail: "contains a carriage return"}
	}
	if err := NoShellMeta(s, name); err != nil {
		return err
	}
	logging.Debug("input", name, "length", strconv.Itoa(len(s)), "passed")
	return nil
}

// WithinRoot confirms that target resolves inside baseDir. Both paths are
// canonicalized (absolute, symlinks resolved) before comparison; a path that
// cannot be canonicalized fails with KindInvalidPath before confinement is
// judged. A bare prefix match is not enough: /opt/base does not admit
// /opt/baseball.
func WithinRoot(baseDir, target string) error {
	base, err := canonicalize(baseDir)
	if err != nil {
		return &Error{Kind: KindInvalidPath, Param: baseDir, Detail: "cannot resolve: " + err.Error()}
	}
	tgt, err := canonicalize(target)
	if err != nil {
		return &Error{Kind: KindInvalidPath, Param: target, Detail: "cannot resolve: " + err.Error()}
	}
	if tgt == base {
		return nil
	}
	prefix := base
	if !strings.HasSuffix(prefix, string(os.PathSeparator)) {
		prefix += string(os.PathSeparator)
	}
	if strings.HasPrefix(tgt, prefix) {
		return nil
	}
	return &Error{
		Kind:   KindPathTraversal,
		Param:  target,
		Detail: fmt.Sprintf("resolves to %s, outside %s", tgt, base),
	}
}

func canonicalize(p string) (string, error) {
	abs, err := filepath.Abs(p)
	if err != nil {
		return "", err
	}
	return filepath.EvalSymlinks(abs)
}
