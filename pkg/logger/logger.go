package logger

import (
	"io"
	"log/slog"
	"os"
	"strings"

	"golang.org/x/term"
)

// New returns a slog.Logger tagged with the given service name. Output is JSON
// unless stdout is an interactive terminal, in which case it is plain text.
func New(service string, level slog.Level) *slog.Logger {
	return NewWithWriter(os.Stdout, service, level, term.IsTerminal(int(os.Stdout.Fd())))
}

// NewWithWriter builds the logger on an arbitrary writer.
func NewWithWriter(w io.Writer, service string, level slog.Level, text bool) *slog.Logger {
	opts := &slog.HandlerOptions{Level: level}
	var h slog.Handler
	if text {
		h = slog.NewTextHandler(w, opts)
	} else {
		h = slog.NewJSONHandler(w, opts)
	}
	return slog.New(h).With("service", service)
}

// ParseLevel maps LOG_LEVEL style names to slog levels, defaulting to info.
func ParseLevel(name string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
