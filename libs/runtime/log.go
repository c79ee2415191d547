package runtime

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

func NewLogger(service string) *slog.Logger {
	return NewLoggerTo(os.Stdout, service, os.Getenv("LOG_LEVEL"))
}

// NewLoggerTo builds the JSON service logger on w. Unknown levels fall back to info.
func NewLoggerTo(w io.Writer, service, level string) *slog.Logger {
	h := slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level: parseLevel(level),
	})
	return slog.New(h).With("service", service)
}

func parseLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
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
