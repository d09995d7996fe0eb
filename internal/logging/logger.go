package logging

import (
	"log/slog"
	"os"
	"strings"
)

// NewLogger builds the JSON logger shared by the server and the consumer.
// slog keeps the standard-library feel while emitting structured records any
// log backend can ingest. The service attribute distinguishes the two
// binaries in aggregated output.
func NewLogger(service, level string) *slog.Logger {
	opts := &slog.HandlerOptions{
		Level:     levelFromString(level),
		AddSource: true,
	}
	handler := slog.NewJSONHandler(os.Stdout, opts)
	return slog.New(handler).With("service", service)
}

func levelFromString(level string) slog.Leveler {
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
