// Package allowlist decides which executables a guarded caller may run.
// Unlike a denylist, the polarity is fail-closed: anything not listed is
// refused.
package allowlist

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// Entries holds the raw allow-list as configured.
type Entries struct {
	// Allowed mixes bare executable names (resolved via PATH by the
	// caller) and absolute paths (matched exactly).
	Allowed []string `yaml:"allowed"`
	// IncludeDefaults merges the compiled read-only utility set.
	IncludeDefaults bool `yaml:"include_defaults"`
}

// List answers Permit queries. Immutable once shared; hot reload replaces
// the whole List rather than mutating it.
type List struct {
	names map[string]struct{}
	paths map[string]struct{}
	raw   Entries
}

// NotAllowedError is a refusal naming the offending executable.
type NotAllowedError struct {
	Command string
}

func (e *NotAllowedError) Error() string {
	return fmt.Sprintf("command %q is not on the allow-list", e.Command)
}

// New builds a List from raw entries.
func New(e Entries) *List {
	l := &List{
		names: make(map[string]struct{}),
		paths: make(map[string]struct{}),
		raw:   e,
	}
	for _, entry := range e.Allowed {
		l.add(entry)
	}
	if e.IncludeDefaults {
		for _, entry := range DefaultEntries.Allowed {
			l.add(entry)
		}
	}
	return l
}

// NewDefault builds a List holding only the compiled defaults.
func NewDefault() *List {
	return New(DefaultEntries)
}

// DefaultPath returns the conventional allow-list location,
// ~/.runguard/allowlist.yaml.
func DefaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("allowlist: resolve home: %w", err)
	}
	return filepath.Join(home, ".runguard", "allowlist.yaml"), nil
}

// Load reads an allow-list from a YAML file. An empty path means the
// conventional location; a missing file falls back to the compiled
// defaults rather than erroring.
func Load(path string) (*List, error) {
	if path == "" {
		p, err := DefaultPath()
		if err != nil {
			return NewDefault(), nil
		}
		path = p
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return NewDefault(), nil
		}
		return nil, fmt.Errorf("allowlist: read %s: %w", path, err)
	}

	var e Entries
	if err := yaml.Unmarshal(data, &e); err != nil {
		return nil, fmt.Errorf("allowlist: parse %s: %w", path, err)
	}
	return New(e), nil
}

// Permit reports whether command may run. Bare names match the name set;
// anything containing a path separator must be listed as a path. Empty
// commands are refused.
func (l *List) Permit(command string) error {
	if command == "" {
		return &NotAllowedError{Command: command}
	}
	if strings.ContainsRune(command, '/') {
		if _, ok := l.paths[filepath.Clean(command)]; ok {
			return nil
		}
		return &NotAllowedError{Command: command}
	}
	if _, ok := l.names[command]; ok {
		return nil
	}
	return &NotAllowedError{Command: command}
}

// Add inserts one entry at runtime. Call before the List is shared.
func (l *List) Add(entry string) {
	l.raw.Allowed = append(l.raw.Allowed, entry)
	l.add(entry)
}

// Names returns every allowed bare name, sorted.
func (l *List) Names() []string {
	out := make([]string, 0, len(l.names))
	for n := range l.names {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

// Paths returns every allowed absolute path, sorted.
func (l *List) Paths() []string {
	out := make([]string, 0, len(l.paths))
	for p := range l.paths {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

// Raw returns the entries as configured, for serialization.
func (l *List) Raw() Entries {
	return l.raw
}

func (l *List) add(entry string) {
	entry = strings.TrimSpace(entry)
	if entry == "" {
		return
	}
	if strings.ContainsRune(entry, '/') {
		l.paths[filepath.Clean(entry)] = struct{}{}
		return
	}
	l.names[entry] = struct{}{}
}
