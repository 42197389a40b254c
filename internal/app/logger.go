package app

import (
	"log/slog"
	"os"
)

// NewLogger returns a slog.Logger for the given environment and format. Any
// environment other than production logs at debug level.
func NewLogger(appEnv, format string) *slog.Logger {
	opts := &slog.HandlerOptions{AddSource: true}
	if appEnv != "production" {
		opts.Level = slog.LevelDebug
	}
	if format == "json" {
		return slog.New(slog.NewJSONHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stdout, opts))
}
