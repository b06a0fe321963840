package cli

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/runguard/runguard/internal/history"
	"github.com/runguard/runguard/internal/runner"
)

// hostConfig is the on-disk configuration read from ~/.runguard/config.yaml.
// Every field is optional; zero values fall back to compiled defaults.
type hostConfig struct {
	Allowlist   string `yaml:"allowlist"`
	AuditLog    string `yaml:"audit_log"`
	History     string `yaml:"history"`
	Timeout     string `yaml:"timeout"`
	OutputLimit int    `yaml:"output_limit"`
	Redact      bool   `yaml:"redact"`
	SanitizeEnv bool   `yaml:"sanitize_env"`
}

func configDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home: %w", err)
	}
	return filepath.Join(home, ".runguard"), nil
}

func configPath() (string, error) {
	dir, err := configDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.yaml"), nil
}

// loadHostConfig reads the config file at path, or the default location when
// path is empty. A missing file is not an error: the zero config stands in
// so the tool works before `runguard init` has ever been run.
func loadHostConfig(path string) (hostConfig, error) {
	var hc hostConfig
	if path == "" {
		var err error
		path, err = configPath()
		if err != nil {
			return hc, err
		}
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return hc, nil
		}
		return hc, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &hc); err != nil {
		return hc, fmt.Errorf("parse %s: %w", path, err)
	}
	return hc, nil
}

func (hc hostConfig) timeoutDuration() (time.Duration, error) {
	if hc.Timeout == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(hc.Timeout)
	if err != nil {
		return 0, fmt.Errorf("config timeout %q: %w", hc.Timeout, err)
	}
	return d, nil
}

// buildRunner assembles a Runner from the host config, letting the caller
// mutate the assembled runner.Config for flag overrides. The returned store
// is nil when history is not configured; the caller owns closing both.
func buildRunner(cfgPath string, mutate func(*runner.Config)) (*runner.Runner, *history.Store, error) {
	hc, err := loadHostConfig(cfgPath)
	if err != nil {
		return nil, nil, err
	}
	timeout, err := hc.timeoutDuration()
	if err != nil {
		return nil, nil, err
	}

	cfg := runner.Config{
		AllowlistPath: hc.Allowlist,
		AuditPath:     hc.AuditLog,
		Timeout:       timeout,
		OutputLimit:   hc.OutputLimit,
		RedactOutput:  hc.Redact,
		SanitizeEnv:   hc.SanitizeEnv,
	}

	var store *history.Store
	if hc.History != "" {
		store, err = history.Open(hc.History)
		if err != nil {
			return nil, nil, err
		}
		cfg.History = store
	}

	if mutate != nil {
		mutate(&cfg)
	}

	r, err := runner.New(cfg)
	if err != nil {
		if store != nil {
			store.Close()
		}
		return nil, nil, err
	}
	return r, store, nil
}
