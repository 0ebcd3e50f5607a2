package config

import (
	"log/slog"
	"os"
)

// SetupLogging installs the default slog logger according to monitoring
// configuration. A -v flag on the CLI forces debug regardless of config.
func SetupLogging(cfg *Config, verbose bool) {
	level := slog.LevelInfo
	format := LogFormatText
	if cfg != nil && cfg.Monitoring != nil {
		switch cfg.Monitoring.Logging.Level {
		case LogLevelDebug:
			level = slog.LevelDebug
		case LogLevelWarn:
			level = slog.LevelWarn
		case LogLevelError:
			level = slog.LevelError
		}
		if cfg.Monitoring.Logging.Format == LogFormatJSON {
			format = LogFormatJSON
		}
	}
	if verbose {
		level = slog.LevelDebug
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if format == LogFormatJSON {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	} else {
		handler = slog.NewTextHandler(os.Stderr, opts)
	}
	slog.SetDefault(slog.New(handler))
}
