package config

import (
	"io"
	"log/slog"
)

// SetupLogging installs the process-wide slog default according to the
// definition's logging section. verbose forces debug level regardless of the
// configured level.
func SetupLogging(def LoggingDef, w io.Writer, verbose bool) {
	level := slog.LevelInfo
	switch NormalizeLogLevel(def.Level) {
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
	if NormalizeLogFormat(def.Format) == LogFormatJSON {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}
	slog.SetDefault(slog.New(handler))
}
