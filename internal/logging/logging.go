package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// Init installs the default slog logger. The level comes from override when
// set, else from LOG_LEVEL, else def. LOG_FORMAT=json switches to JSON output.
func Init(def slog.Level, override string) {
	slog.SetDefault(New(os.Stderr, def, override, os.Getenv("LOG_FORMAT")))
}

// New builds a logger writing to w.
func New(w io.Writer, def slog.Level, override, format string) *slog.Logger {
	level := def

	raw := override
	if raw == "" {
		raw = os.Getenv("LOG_LEVEL")
	}
	if l, ok := ParseLevel(raw); ok {
		level = l
	}

	opts := &slog.HandlerOptions{Level: level}
	if strings.EqualFold(format, "json") {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

// ParseLevel maps the accepted level names onto slog levels.
func ParseLevel(s string) (slog.Level, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "dev", "development", "debug":
		return slog.LevelDebug, true
	case "info":
		return slog.LevelInfo, true
	case "warn", "warning":
		return slog.LevelWarn, true
	case "error", "production", "prod":
		return slog.LevelError, true
	}
	return 0, false
}
