package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// New creates a process logger with JSON output for backend services.
func New(level slog.Level) *slog.Logger {
	return NewWithWriter(os.Stdout, level, false)
}

// NewWithWriter builds a logger on w. Text output is used by the
// interactive commands.
func NewWithWriter(w io.Writer, level slog.Level, text bool) *slog.Logger {
	opts := &slog.HandlerOptions{Level: level}
	if text {
		return slog.New(slog.NewTextHandler(w, opts))
	}
	return slog.New(slog.NewJSONHandler(w, opts))
}

// ParseLevel maps debug/warn/error to their levels and anything else to info.
func ParseLevel(raw string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
