package runguard

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/runguard/runguard/internal/allowlist"
	"github.com/runguard/runguard/internal/failtrap"
	"github.com/runguard/runguard/internal/history"
	"github.com/runguard/runguard/internal/logging"
	"github.com/runguard/runguard/internal/runner"
)

// Client bundles the safety layer for in-process embedding: logger,
// validator access, allow-listed runner, and audit trail. Safe for
// concurrent use.
type Client struct {
	cfg  clientConfig
	log  *logging.Logger
	run  *runner.Runner
	hist *history.Store
}

// New creates a Client with the given options.
func New(opts ...Option) (*Client, error) {
	cfg := clientConfig{}
	for _, o := range opts {
		o(&cfg)
	}

	log := logging.Default()
	if cfg.logCfg != nil {
		w := cfg.logWriter
		if w == nil {
			w = os.Stderr
		}
		log = logging.New(*cfg.logCfg, w)
	}

	var hist *history.Store
	if cfg.historyPath != "" {
		h, err := history.Open(cfg.historyPath)
		if err != nil {
			return nil, fmt.Errorf("runguard: %w", err)
		}
		hist = h
	}

	run, err := runner.New(runner.Config{
		AllowlistPath: cfg.allowlistPath,
		AuditPath:     cfg.auditPath,
		Timeout:       cfg.timeout,
		OutputLimit:   cfg.outputLimit,
		RedactOutput:  cfg.redact,
		SanitizeEnv:   cfg.sanitizeEnv,
		Log:           log,
		History:       hist,
	})
	if err != nil {
		if hist != nil {
			hist.Close()
		}
		return nil, fmt.Errorf("runguard: %w", err)
	}

	return &Client{cfg: cfg, log: log, run: run, hist: hist}, nil
}

// Run validates, permits, and executes a command, recording the decision.
// Validation failures return *ValidationError; allow-list refusals return
// *BlockedError.
func (c *Client) Run(ctx context.Context, cmd Command) (*Result, error) {
	return c.run.Run(ctx, cmd.Name, cmd.Args, cmd.Stdin)
}

// Check applies the validation and allow-list gates without executing or
// recording anything.
func (c *Client) Check(cmd Command) error {
	return c.run.Check(cmd.Name, cmd.Args)
}

// InstallTrap arms a one-shot failure trap bound to the client's logger.
// Install one per independent execution context.
func (c *Client) InstallTrap() *Trap {
	return failtrap.Install(failtrap.WithLogger(c.log))
}

// Watch hot-reloads the allow-list whenever its file changes. Blocks until
// ctx is done; watch errors are logged, never fatal.
func (c *Client) Watch(ctx context.Context) error {
	path := c.cfg.allowlistPath
	if path == "" {
		p, err := allowlist.DefaultPath()
		if err != nil {
			return fmt.Errorf("runguard: %w", err)
		}
		path = p
	}
	w, err := allowlist.NewWatcher(c.log, func() {
		if err := c.run.Reload(); err != nil {
			c.log.Warn("allow-list reload failed:", err.Error())
		}
	}, path)
	if err != nil {
		return fmt.Errorf("runguard: %w", err)
	}
	return w.Run(ctx)
}

// AuditPath returns the location of the audit log in use.
func (c *Client) AuditPath() string {
	return c.run.AuditPath()
}

// RecentRuns returns the n most recent runs from the history store.
// Requires WithHistory.
func (c *Client) RecentRuns(n int) ([]Run, error) {
	if c.hist == nil {
		return nil, errors.New("runguard: history not configured")
	}
	return c.hist.Recent(n)
}

// RecentFailures returns the n most recent failed runs from the history
// store. Requires WithHistory.
func (c *Client) RecentFailures(n int) ([]Run, error) {
	if c.hist == nil {
		return nil, errors.New("runguard: history not configured")
	}
	return c.hist.Failures(n)
}

// Close releases the audit log and, when configured, the history store.
func (c *Client) Close() error {
	err := c.run.Close()
	if c.hist != nil {
		if herr := c.hist.Close(); err == nil {
			err = herr
		}
	}
	return err
}
