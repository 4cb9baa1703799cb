package logger

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"go.uber.org/fx"
)

var Module = fx.Module("logger",
	fx.Provide(NewLogger),
)

// NewLogger builds the process-wide slog.Logger.
//
// LOG_LEVEL selects the minimum level (debug|info|warn|warning|error,
// case-insensitive, default info). Output is text for local development and
// JSON when GO_ENV=production or LOG_JSON=true. When LOG_FILE is set the
// log is additionally appended to that file.
func NewLogger() *slog.Logger {
	level := parseLevel(os.Getenv("LOG_LEVEL"))

	var out io.Writer = os.Stdout
	if path := os.Getenv("LOG_FILE"); path != "" {
		f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			fmt.Fprintf(os.Stderr, "logger: cannot open LOG_FILE %s: %v\n", path, err)
		} else {
			out = io.MultiWriter(os.Stdout, f)
		}
	}

	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	if os.Getenv("GO_ENV") == "production" || isTruthy(os.Getenv("LOG_JSON")) {
		handler = slog.NewJSONHandler(out, opts)
	} else {
		handler = slog.NewTextHandler(out, opts)
	}

	return slog.New(handler)
}

// Scope tags a log line with the component that produced it.
// Services do log.With(logger.Scope("works.repo")) once at construction.
func Scope(name string) slog.Attr {
	return slog.String("scope", name)
}

// Error wraps an error for structured logging under the "error" key.
func Error(err error) slog.Attr {
	return slog.Any("error", err)
}

func parseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func isTruthy(s string) bool {
	switch strings.ToLower(s) {
	case "1", "true", "yes", "on":
		return true
	}
	return false
}
