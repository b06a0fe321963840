package logging

import (
	"context"
	"log/slog"
	"strings"
)

// Handler adapts a Logger to log/slog so host programs already wired to
// slog can route their records through the same diagnostic stream as the
// guard itself. Attrs render as key=value fragments after the message.
type Handler struct {
	logger *Logger
	// attrs are pre-rendered with the group prefix in effect when they
	// were attached, so later WithGroup calls do not re-scope them.
	attrs  []string
	groups []string
}

// NewSlogHandler returns a slog.Handler backed by l.
func NewSlogHandler(l *Logger) *Handler {
	return &Handler{logger: l}
}

// Slog returns a *slog.Logger bound to the process-wide default Logger.
func Slog() *slog.Logger {
	return slog.New(NewSlogHandler(Default()))
}

func levelFrom(sl slog.Level) Level {
	switch {
	case sl < slog.LevelInfo:
		return LevelDebug
	case sl < slog.LevelWarn:
		return LevelInfo
	case sl < slog.LevelError:
		return LevelWarn
	default:
		return LevelError
	}
}

func (h *Handler) Enabled(_ context.Context, level slog.Level) bool {
	return h.logger.Enabled(levelFrom(level))
}

func (h *Handler) Handle(_ context.Context, r slog.Record) error {
	frags := make([]string, 0, 1+len(h.attrs)+r.NumAttrs())
	frags = append(frags, r.Message)
	frags = append(frags, h.attrs...)
	r.Attrs(func(a slog.Attr) bool {
		frags = append(frags, h.renderAttr(a))
		return true
	})
	h.logger.emit(levelFrom(r.Level), frags)
	return nil
}

func (h *Handler) renderAttr(a slog.Attr) string {
	key := a.Key
	if len(h.groups) > 0 {
		key = strings.Join(h.groups, ".") + "." + key
	}
	return key + "=" + a.Value.Resolve().String()
}

func (h *Handler) WithAttrs(attrs []slog.Attr) slog.Handler {
	if len(attrs) == 0 {
		return h
	}
	clone := *h
	clone.attrs = append([]string{}, h.attrs...)
	for _, a := range attrs {
		clone.attrs = append(clone.attrs, h.renderAttr(a))
	}
	return &clone
}

func (h *Handler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	clone := *h
	clone.groups = append(append([]string{}, h.groups...), name)
	return &clone
}
