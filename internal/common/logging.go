// Package common holds small helpers shared by the CLI actions.
package common

import (
	"log/slog"
	"os"
)

// NewLogger builds the JSON logger the actions share. Quiet mode keeps only
// errors.
func NewLogger(quiet bool) *slog.Logger {
	level := slog.LevelInfo
	if quiet {
		level = slog.LevelError
	}
	return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}
