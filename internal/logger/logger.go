package logger

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

const serviceName = "taskdash"

// New returns a slog.Logger for the given environment: human-readable text
// at debug level for local development, JSON at info level otherwise.
func New(env string) *slog.Logger {
	var h slog.Handler
	switch strings.ToLower(strings.TrimSpace(env)) {
	case "dev", "local", "test":
		h = slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug})
	default:
		h = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo})
	}
	return slog.New(h).With("service", serviceName)
}

// Discard returns a logger that drops every record.
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// Err wraps an error as a slog attribute.
func Err(err error) slog.Attr {
	if err == nil {
		return slog.String("error", "")
	}
	return slog.String("error", err.Error())
}
