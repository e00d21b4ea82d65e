// Package logging configures the structured logger shared by every component.
package logging

import (
	"log/slog"
	"os"
)

// New builds a slog.Logger. In development mode it emits human-readable
// text to stderr; otherwise it emits JSON suitable for log aggregation.
func New(isDevelopment bool) *slog.Logger {
	level := slog.LevelInfo
	if isDevelopment {
		level = slog.LevelDebug
	}

	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	if isDevelopment {
		handler = slog.NewTextHandler(os.Stderr, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	}

	return slog.New(handler)
}
