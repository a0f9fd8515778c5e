package app

import (
	"log/slog"
	"os"
)

// NewLogger builds the process logger. Production defaults to JSON for log
// shipping; anywhere else text output wins unless LOG_FORMAT says json.
func NewLogger(cfg *Config) *slog.Logger {
	json := cfg.IsProduction()
	if cfg != nil && cfg.LogFormat == "json" {
		json = true
	}
	opts := &slog.HandlerOptions{AddSource: true}
	if json {
		return slog.New(slog.NewJSONHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stdout, opts))
}
