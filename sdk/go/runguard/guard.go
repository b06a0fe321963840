package runguard

import (
	"context"

	"github.com/runguard/runguard/internal/validate"
)

// RunFunc is the function signature that Guard protects. The caller
// provides a Command describing the intended invocation.
type RunFunc func(ctx context.Context, cmd Command) (*Result, error)

// Guard returns a RunFunc that applies the validation and allow-list gates
// before calling fn. Refused commands never reach fn: validation failures
// return *ValidationError, allow-list refusals *BlockedError.
func (c *Client) Guard(fn RunFunc) RunFunc {
	return func(ctx context.Context, cmd Command) (*Result, error) {
		if err := c.run.Check(cmd.Name, cmd.Args); err != nil {
			return nil, err
		}
		return fn(ctx, cmd)
	}
}

// Validator probes, re-exported for embedders and scripts.

// RequireCommands verifies that every named executable resolves in PATH,
// reporting all missing names at once.
func RequireCommands(names ...string) error {
	return validate.RequireCommands(names...)
}

// Hostname checks s against RFC-1123 label rules.
func Hostname(s string) error {
	return validate.Hostname(s)
}

// NoShellMeta fails when s contains a shell metacharacter.
func NoShellMeta(s, name string) error {
	return validate.NoShellMeta(s, name)
}

// AgentInput applies the full gate for agent-supplied strings: length,
// control bytes, then shell metacharacters.
func AgentInput(s, name string) error {
	return validate.AgentInput(s, name)
}

// WithinRoot confirms that target resolves inside baseDir after symlink
// resolution.
func WithinRoot(baseDir, target string) error {
	return validate.WithinRoot(baseDir, target)
}
