package main

import (
	"io"
	"log"
	"log/slog"
	"strings"
	"time"

	"github.com/lmittmann/tint"
)

// newLogHandler returns a JSON handler for prod and a colored tint handler
// with source locations otherwise.
func newLogHandler(w io.Writer, env string, level slog.Level) slog.Handler {
	if env != "prod" {
		return tint.NewHandler(w, &tint.Options{
			Level:      level,
			AddSource:  true,
			TimeFormat: time.TimeOnly,
		})
	}

	return slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level: level,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if len(groups) > 0 || a.Key != slog.TimeKey {
				return a
			}
			return slog.String("ts", a.Value.Time().UTC().Format(time.RFC3339Nano))
		},
	})
}

// setupLogging installs the default slog logger and routes the standard
// log package through it.
func setupLogging(w io.Writer, env, level string) {
	logger := slog.New(newLogHandler(w, env, parseLevel(level)))
	slog.SetDefault(logger)

	log.SetFlags(0)
	log.SetOutput(slog.NewLogLogger(logger.Handler(), slog.LevelInfo).Writer())
}

func parseLevel(s string) slog.Level {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "warning" {
		s = "warn"
	}
	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return slog.LevelInfo
	}
	return level
}
