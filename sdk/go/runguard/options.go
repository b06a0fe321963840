package runguard

import (
	"io"
	"time"

	"github.com/runguard/runguard/internal/logging"
)

// Option configures a Client at creation time.
type Option func(*clientConfig)

type clientConfig struct {
	allowlistPath string
	auditPath     string
	historyPath   string
	timeout       time.Duration
	outputLimit   int
	redact        bool
	sanitizeEnv   bool
	logCfg        *logging.Config // nil means the process-wide default logger
	logWriter     io.Writer
}

// logConfig materializes a client-owned logger configuration, seeded from
// the environment on first touch.
func (c *clientConfig) logConfig() *logging.Config {
	if c.logCfg == nil {
		lc := logging.FromEnv()
		c.logCfg = &lc
	}
	return c.logCfg
}

// WithAllowlist sets the path to the allow-list YAML file.
func WithAllowlist(path string) Option {
	return func(c *clientConfig) { c.allowlistPath = path }
}

// WithAuditLog sets the path to the hash-chained audit log.
func WithAuditLog(path string) Option {
	return func(c *clientConfig) { c.auditPath = path }
}

// WithHistory enables the SQLite run-history store at path.
func WithHistory(path string) Option {
	return func(c *clientConfig) { c.historyPath = path }
}

// WithTimeout caps the wall-clock time of one command invocation.
func WithTimeout(d time.Duration) Option {
	return func(c *clientConfig) { c.timeout = d }
}

// WithOutputLimit caps the bytes kept per output stream.
func WithOutputLimit(n int) Option {
	return func(c *clientConfig) { c.outputLimit = n }
}

// WithRedaction scans captured output for leaked secrets and replaces them.
func WithRedaction() Option {
	return func(c *clientConfig) { c.redact = true }
}

// WithSanitizedEnv strips sensitive variables from child environments.
func WithSanitizedEnv() Option {
	return func(c *clientConfig) { c.sanitizeEnv = true }
}

// WithLogFormat sets the client logger's output format ("TEXT" or "JSON").
func WithLogFormat(format string) Option {
	return func(c *clientConfig) { c.logConfig().Format = logging.ParseFormat(format) }
}

// WithLogLevel sets the client logger's minimum level
// (DEBUG, INFO, WARN, ERROR; unrecognized falls back to INFO).
func WithLogLevel(level string) Option {
	return func(c *clientConfig) { c.logConfig().MinLevel = logging.ParseLevel(level) }
}

// WithVerbose opens the second debug gate on the client logger.
func WithVerbose() Option {
	return func(c *clientConfig) { c.logConfig().Verbose = true }
}

// WithLogWriter directs the client logger's emission to w instead of
// stderr.
func WithLogWriter(w io.Writer) Option {
	return func(c *clientConfig) {
		c.logConfig()
		c.logWriter = w
	}
}
