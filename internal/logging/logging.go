// Package logging configures the process-wide slog logger and carries the
// request id through contexts.
package logging

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"

	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Options selects the logger's level, encoding and destination.
type Options struct {
	Level  string
	Format string // "json" or "text"
	File   string // empty logs to stdout

	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
}

// Setup builds a logger from opts and installs it as the slog default. The
// returned closer releases the log file, if any.
func Setup(opts Options) io.Closer {
	var (
		out    io.Writer = os.Stdout
		closer io.Closer = nopCloser{}
	)

	if opts.File != "" {
		rotating := &lumberjack.Logger{
			Filename:   opts.File,
			MaxSize:    opts.MaxSizeMB,
			MaxBackups: opts.MaxBackups,
			MaxAge:     opts.MaxAgeDays,
			LocalTime:  true,
			Compress:   true,
		}
		out, closer = rotating, rotating
	}

	slog.SetDefault(slog.New(NewHandler(out, opts.Level, opts.Format)))
	return closer
}

// NewHandler returns a JSON or text handler writing to w.
func NewHandler(w io.Writer, level, format string) slog.Handler {
	handlerOpts := &slog.HandlerOptions{Level: ParseLevel(level)}
	if strings.EqualFold(format, "text") {
		return slog.NewTextHandler(w, handlerOpts)
	}
	return slog.NewJSONHandler(w, handlerOpts)
}

// ParseLevel converts a level name to slog.Level, defaulting to info.
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
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

// WithRequestID stores id in ctx under chi's request id key so chi's own
// middleware sees it too.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, chimiddleware.RequestIDKey, id)
}

// RequestID returns the request id stored in ctx, or "".
func RequestID(ctx context.Context) string {
	return chimiddleware.GetReqID(ctx)
}

// FromContext returns the default logger with request_id attached when ctx
// carries one.
func FromContext(ctx context.Context) *slog.Logger {
	logger := slog.Default()
	if id := RequestID(ctx); id != "" {
		logger = logger.With("request_id", id)
	}
	return logger
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
