// Package logger builds the zerolog logger a command runs with. Logs go to
// stderr; stdout carries prompts and summaries.
package logger

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/mattn/go-colorable"
	"github.com/mattn/go-isatty"
	"github.com/rs/zerolog"
)

// ContextKey is the type for context keys used by the logger.
type ContextKey string

// LoggerKey is the context key for the logger instance.
const LoggerKey ContextKey = "logger"

// Options selects level and output format.
type Options struct {
	Level  string // zerolog level name; empty means info
	Format string // auto, console or json; empty means auto
}

// New creates a logger writing to stderr.
func New(opts Options) (zerolog.Logger, error) {
	return NewWithWriter(os.Stderr, opts)
}

// NewWithWriter creates a logger writing to w. In auto format w gets the
// console writer only when it is a terminal.
func NewWithWriter(w io.Writer, opts Options) (zerolog.Logger, error) {
	level := zerolog.InfoLevel
	if opts.Level != "" {
		l, err := zerolog.ParseLevel(opts.Level)
		if err != nil {
			return zerolog.Nop(), fmt.Errorf("parsing log level: %w", err)
		}
		level = l
	}

	var out io.Writer
	switch opts.Format {
	case "json":
		out = w
	case "console":
		out = console(w, false)
	case "", "auto":
		if f, ok := w.(*os.File); ok && isTerminal(f) {
			out = console(colorable.NewColorable(f), true)
		} else {
			out = w
		}
	default:
		return zerolog.Nop(), fmt.Errorf("unknown log format %q", opts.Format)
	}

	return zerolog.New(out).Level(level).With().Timestamp().Logger(), nil
}

func console(w io.Writer, color bool) zerolog.ConsoleWriter {
	return zerolog.ConsoleWriter{
		Out:        w,
		TimeFormat: time.Kitchen,
		NoColor:    !color,
	}
}

func isTerminal(f *os.File) bool {
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// WithContext adds the logger to the context.
func WithContext(ctx context.Context, logger zerolog.Logger) context.Context {
	return context.WithValue(ctx, LoggerKey, logger)
}

// FromContext retrieves the logger from the context, or a disabled logger.
func FromContext(ctx context.Context) zerolog.Logger {
	if logger, ok := ctx.Value(LoggerKey).(zerolog.Logger); ok {
		return logger
	}
	return zerolog.Nop()
}
