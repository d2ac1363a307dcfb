package logger

import (
	"log/slog"
	"os"
	"strings"
)

// Logger wraps slog so call sites carry structured key/value pairs without
// depending on the slog handler setup.
type Logger struct {
	*slog.Logger
}

// New builds a text logger writing to stdout. Level is one of
// debug|info|warn|error (case-insensitive); anything else means info.
func New(level string) *Logger {
	var lvl slog.Level
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}

	handler := slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: lvl})
	return &Logger{Logger: slog.New(handler)}
}

// With returns a logger that always logs the given attributes.
func (l *Logger) With(args ...any) *Logger {
	return &Logger{Logger: l.Logger.With(args...)}
}
