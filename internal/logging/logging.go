// Package logging builds the structured logger shared by the CLI
// commands.
package logging

import (
	"log/slog"
	"os"
)

// NewLogger creates a structured logger for the given verbosity. Verbose
// mode enables debug output from the request pipeline.
func NewLogger(verbose bool) *slog.Logger {
	opts := &slog.HandlerOptions{
		Level: slog.LevelWarn,
	}
	if verbose {
		opts.Level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, opts))
}
