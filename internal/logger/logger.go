// Package logger builds the zerolog loggers used across the service.
package logger

import (
	"context"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

type contextKey struct{}

// Options selects the level and output format.
type Options struct {
	Level  string // debug, info, warn, error; anything else is info
	Format string // "console" for human output, anything else is JSON
}

// New returns a logger writing to stderr.
func New(opts Options) zerolog.Logger {
	var w io.Writer = os.Stderr
	if strings.EqualFold(opts.Format, "console") {
		w = zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}
	}
	return NewWithWriter(w, opts.Level)
}

// NewWithWriter returns a JSON logger on w.
func NewWithWriter(w io.Writer, level string) zerolog.Logger {
	return zerolog.New(w).Level(ParseLevel(level)).With().Timestamp().Logger()
}

// ParseLevel maps a level name to a zerolog level, defaulting to info.
func ParseLevel(level string) zerolog.Level {
	l, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil || l == zerolog.NoLevel {
		return zerolog.InfoLevel
	}
	return l
}

// WithContext stores log in ctx.
func WithContext(ctx context.Context, log zerolog.Logger) context.Context {
	return context.WithValue(ctx, contextKey{}, log)
}

// FromContext returns the logger stored in ctx, or a disabled logger.
func FromContext(ctx context.Context) zerolog.Logger {
	if log, ok := ctx.Value(contextKey{}).(zerolog.Logger); ok {
		return log
	}
	return zerolog.Nop()
}

// WithFields adds structured fields to a logger.
func WithFields(log zerolog.Logger, fields map[string]interface{}) zerolog.Logger {
	c := log.With()
	for k, v := range fields {
		c = c.Interface(k, v)
	}
	return c.Logger()
}
