package config

import (
	"log/slog"
	"os"
	"strings"
)

// LogLevel enumerates supported logging levels.
type LogLevel string

const (
	LogLevelDebug LogLevel = "debug"
	LogLevelInfo  LogLevel = "info"
	LogLevelWarn  LogLevel = "warn"
	LogLevelError LogLevel = "error"
)

// NormalizeLogLevel maps a raw string to a LogLevel, defaulting to info.
func NormalizeLogLevel(raw string) LogLevel {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "debug":
		return LogLevelDebug
	case "warn", "warning":
		return LogLevelWarn
	case "error":
		return LogLevelError
	default:
		return LogLevelInfo
	}
}

// LogFormat enumerates supported log output formats.
type LogFormat string

const (
	LogFormatJSON LogFormat = "json"
	LogFormatText LogFormat = "text"
)

// NormalizeLogFormat maps a raw string to a LogFormat, defaulting to text.
func NormalizeLogFormat(raw string) LogFormat {
	if strings.EqualFold(strings.TrimSpace(raw), "json") {
		return LogFormatJSON
	}
	return LogFormatText
}

// SetupLogger installs the default slog logger per the logging config.
// Verbose forces debug level regardless of the configured level.
func SetupLogger(cfg LoggingConfig, verbose bool) {
	level := slog.LevelInfo
	switch NormalizeLogLevel(cfg.Level) {
	case LogLevelDebug:
		level = slog.LevelDebug
	case LogLevelWarn:
		level = slog.LevelWarn
	case LogLevelError:
		level = slog.LevelError
	}
	if verbose {
		level = slog.LevelDebug
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if NormalizeLogFormat(cfg.Format) == LogFormatJSON {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	} else {
		handler = slog.NewTextHandler(os.Stderr, opts)
	}
	slog.SetDefault(slog.New(handler))
}
