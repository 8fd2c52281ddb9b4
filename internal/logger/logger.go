package logger

import (
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/stl-ledger/internal/config"
)

// NewLogger returns the process JSON logger on stdout, tagged with the service name and env
func NewLogger(cfg *config.Config) *slog.Logger {
	return newLogger(os.Stdout, cfg)
}

func newLogger(w io.Writer, cfg *config.Config) *slog.Logger {
	level := parseLevel(cfg.Logging.Level)
	handler := slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level:     level,
		AddSource: level <= slog.LevelDebug,
	})

	var attrs []any
	if cfg.Application.Name != "" {
		attrs = append(attrs, "service", cfg.Application.Name)
	}
	if cfg.Application.Env != "" {
		attrs = append(attrs, "env", cfg.Application.Env)
	}
	logger := slog.New(handler).With(attrs...)

	logger.Debug("Logger initialized", "level", level.String())
	return logger
}

// parseLevel accepts the slog level names in any case and "warning".
// Anything else logs at info.
func parseLevel(raw string) slog.Level {
	raw = strings.TrimSpace(raw)
	if strings.EqualFold(raw, "warning") {
		return slog.LevelWarn
	}
	var level slog.Level
	if err := level.UnmarshalText([]byte(raw)); err != nil {
		return slog.LevelInfo
	}
	return level
}
