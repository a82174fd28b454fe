package runtime

import (
	"log/slog"
	"os"
)

// DefaultLogger returns the process-wide text logger on stderr. Stdout stays
// reserved for the audit stream.
func DefaultLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))
}

// VerboseLogger lowers the level to debug for troubleshooting runs.
func VerboseLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug}))
}
