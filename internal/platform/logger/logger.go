package logger

import (
	"log/slog"
	"os"
)

// New returns the structured stdout logger used across the application.
func New() *slog.Logger {
	return slog.New(slog.NewJSONHandler(os.Stdout, nil))
}
