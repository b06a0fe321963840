package logging

import (
	"encoding/json"
	"io"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/kballard/go-shellquote"
)

// Format selects how emitted records are rendered.
type Format int

const (
	FormatText Format = iota // human-readable lines
	FormatJSON               // one JSON object per line
)

func (f Format) String() string {
	if f == FormatJSON {
		return "JSON"
	}
	return "TEXT"
}

// ParseFormat converts a string to a Format. Anything that is not "json"
// (case-insensitive) resolves to FormatText; format selection never fails.
func ParseFormat(s string) Format {
	if strings.EqualFold(strings.TrimSpace(s), "json") {
		return FormatJSON
	}
	return FormatText
}

// Level is the numeric severity of a record. The spacing between values is
// load-bearing: threshold comparison is numeric, not ordinal.
type Level int

const (
	LevelDebug Level = 10
	LevelInfo  Level = 20
	LevelWarn  Level = 30
	LevelError Level = 40
)

func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "DEBUG"
	case LevelInfo:
		return "INFO"
	case LevelWarn:
		return "WARN"
	case LevelError:
		return "ERROR"
	default:
		return "LEVEL(" + strconv.Itoa(int(l)) + ")"
	}
}

// ParseLevel converts a string ("debug", "info", "warn", "error") to a Level.
// Unknown strings resolve to LevelInfo rather than erroring: logging is
// fail-open, misconfiguration must not stop startup.
func ParseLevel(s string) Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return LevelDebug
	case "info":
		return LevelInfo
	case "warn", "warning":
		return LevelWarn
	case "error":
		return LevelError
	default:
		return LevelInfo
	}
}

// Environment variables read once at initialization.
const (
	EnvFormat  = "RUNGUARD_LOG_FORMAT"
	EnvLevel   = "RUNGUARD_LOG_LEVEL"
	EnvVerbose = "RUNGUARD_VERBOSE"
)

// Config is the read-only logger configuration. Construct it once at process
// start; changing behavior afterwards means building a new Logger.
type Config struct {
	Format   Format
	MinLevel Level
	// Verbose is the second gate for DEBUG records: a Debug call is emitted
	// only when MinLevel admits it AND Verbose is set. DEBUG output stays off
	// by default even at MinLevel=LevelDebug.
	Verbose bool
}

// FromEnv builds a Config from RUNGUARD_LOG_FORMAT, RUNGUARD_LOG_LEVEL and
// RUNGUARD_VERBOSE. Unset or unrecognized values fall back to TEXT / INFO /
// false; reading the environment never fails.
func FromEnv() Config {
	verbose := false
	if v := os.Getenv(EnvVerbose); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			verbose = b
		}
	}
	return Config{
		Format:   ParseFormat(os.Getenv(EnvFormat)),
		MinLevel: ParseLevel(os.Getenv(EnvLevel)),
		Verbose:  verbose,
	}
}

// record is the wire shape of one JSON-mode line.
type record struct {
	Timestamp string `json:"timestamp"`
	Level     string `json:"level"`
	Message   string `json:"message"`
}

// Logger emits level-filtered records to a diagnostic stream. Safe for
// concurrent use. The zero value is not usable; construct with New.
type Logger struct {
	cfg  Config
	exit func(int)

	mu sync.Mutex
	w  io.Writer

	// marshal is the JSON-escaping capability. When it fails the logger
	// degrades to the text renderer and warns exactly once.
	marshal      func(any) ([]byte, error)
	fallbackOnce sync.Once
}

// New creates a Logger writing to w (the diagnostic stream; never pass
// stdout for a tool whose primary output is consumed programmatically).
func New(cfg Config, w io.Writer) *Logger {
	return &Logger{
		cfg:     cfg,
		w:       w,
		exit:    os.Exit,
		marshal: json.Marshal,
	}
}

// Config returns the logger's immutable configuration.
func (l *Logger) Config() Config { return l.cfg }

// Enabled reports whether a record at the given level would be emitted.
// For LevelDebug both gates apply.
func (l *Logger) Enabled(level Level) bool {
	if level < l.cfg.MinLevel {
		return false
	}
	if level == LevelDebug && !l.cfg.Verbose {
		return false
	}
	return true
}

// Debug emits a DEBUG record. Suppressed unless verbose mode is on.
func (l *Logger) Debug(frags ...string) { l.emit(LevelDebug, frags) }

// Info emits an INFO record.
func (l *Logger) Info(frags ...string) { l.emit(LevelInfo, frags) }

// Warn emits a WARN record.
func (l *Logger) Warn(frags ...string) { l.emit(LevelWarn, frags) }

// Error emits an ERROR record.
func (l *Logger) Error(frags ...string) { l.emit(LevelError, frags) }

// Fatal emits an ERROR record and terminates the process with status 1.
func (l *Logger) Fatal(frags ...string) {
	l.emit(LevelError, frags)
	l.exit(1)
}

func (l *Logger) emit(level Level, frags []string) {
	if !l.Enabled(level) {
		return
	}
	ts := time.Now().UTC().Format(time.RFC3339)

	if l.cfg.Format == FormatJSON {
		line, err := l.marshal(record{
			Timestamp: ts,
			Level:     level.String(),
			Message:   strings.Join(frags, " "),
		})
		if err == nil {
			l.write(append(line, '\n'))
			return
		}
		l.warnFallback(ts)
	}

	l.write([]byte(textLine(ts, level, frags)))
}

// JSONRecord emits v as one machine-readable line, bypassing the standard
// record shape. Used for failure records that carry extra fields. Returns
// false when the logger is not in JSON mode, the level is filtered, or
// marshalling failed; callers treat false as "text emission already covers
// this".
func (l *Logger) JSONRecord(level Level, v any) bool {
	if l.cfg.Format != FormatJSON || !l.Enabled(level) {
		return false
	}
	line, err := l.marshal(v)
	if err != nil {
		l.warnFallback(time.Now().UTC().Format(time.RFC3339))
		return false
	}
	l.write(append(line, '\n'))
	return true
}

// warnFallback emits the JSON-degradation notice. Fires at most once per
// Logger regardless of how many records degrade.
func (l *Logger) warnFallback(ts string) {
	l.fallbackOnce.Do(func() {
		l.write([]byte(textLine(ts, LevelWarn,
			[]string{"JSON log encoding unavailable, falling back to text format"})))
	})
}

func (l *Logger) write(line []byte) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.w.Write(line)
}

// textLine renders one text-mode line. Each fragment is quoted individually
// before joining so that a fragment containing spaces or shell
// metacharacters cannot be misread as several fragments.
func textLine(ts string, level Level, frags []string) string {
	return "[" + ts + "] [" + level.String() + "] " + shellquote.Join(frags...) + "\n"
}

var (
	defaultMu sync.RWMutex
	std       *Logger
)

// Init reads the environment once and installs the process-wide default
// logger writing to stderr. Returns the logger for hosts that thread it
// explicitly.
func Init() *Logger {
	return InitFrom(FromEnv(), os.Stderr)
}

// InitFrom installs a default logger with explicit configuration.
func InitFrom(cfg Config, w io.Writer) *Logger {
	l := New(cfg, w)
	SetDefault(l)
	return l
}

// SetDefault replaces the process-wide default logger.
func SetDefault(l *Logger) {
	defaultMu.Lock()
	std = l
	defaultMu.Unlock()
}

// Default returns the process-wide logger. If Init was never called it
// installs a conservative TEXT/INFO logger on stderr so library callers
// never receive nil.
func Default() *Logger {
	defaultMu.RLock()
	l := std
	defaultMu.RUnlock()
	if l != nil {
		return l
	}
	defaultMu.Lock()
	defer defaultMu.Unlock()
	if std == nil {
		std = New(Config{Format: FormatText, MinLevel: LevelInfo}, os.Stderr)
	}
	return std
}

// Package-level emission bound to the default logger.

func Debug(frags ...string) { Default().Debug(frags...) }
func Info(frags ...string)  { Default().Info(frags...) }
func Warn(frags ...string)  { Default().Warn(frags...) }
func Error(frags ...string) { Default().Error(frags...) }
func Fatal(frags ...string) { Default().Fatal(frags...) }
