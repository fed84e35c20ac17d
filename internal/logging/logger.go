// Package logging configures the process-wide log/slog logger.
//
// Records go to stdout and, when a file is configured, to a size-rotated log
// file as well. Request handlers get a logger carrying chi's request id from
// FromContext.
package logging

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/go-chi/chi/v5/middleware"
	"gopkg.in/natefinch/lumberjack.v2"
)

const (
	defaultMaxSizeMB  = 100
	defaultMaxBackups = 10
)

// Options controls Setup.
type Options struct {
	// Level is debug, info, warn or error. Anything else means info.
	Level string
	// Format is text or json. Anything else means text.
	Format string

	// File, when set, receives a copy of every record with rotation.
	File       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// Setup installs the default slog logger. The returned closer flushes the
// log file, if any; call it on shutdown.
func Setup(opts Options) io.Closer {
	var (
		w      io.Writer = os.Stdout
		closer io.Closer = nopCloser{}
	)

	if opts.File != "" {
		file := &lumberjack.Logger{
			Filename:   opts.File,
			MaxSize:    orDefault(opts.MaxSizeMB, defaultMaxSizeMB),
			MaxBackups: orDefault(opts.MaxBackups, defaultMaxBackups),
			MaxAge:     opts.MaxAgeDays,
			LocalTime:  true,
		}
		w = io.MultiWriter(os.Stdout, file)
		closer = file
	}

	slog.SetDefault(New(w, opts.Level, opts.Format))
	return closer
}

// New builds a logger writing to w.
func New(w io.Writer, level, format string) *slog.Logger {
	handlerOpts := &slog.HandlerOptions{Level: ParseLevel(level)}

	var handler slog.Handler
	if strings.EqualFold(format, "json") {
		handler = slog.NewJSONHandler(w, handlerOpts)
	} else {
		handler = slog.NewTextHandler(w, handlerOpts)
	}
	return slog.New(handler)
}

// ParseLevel converts a level name to slog.Level.
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

// FromContext returns the default logger with request_id attached when ctx
// carries one.
func FromContext(ctx context.Context) *slog.Logger {
	logger := slog.Default()
	if reqID := middleware.GetReqID(ctx); reqID != "" {
		logger = logger.With("request_id", reqID)
	}
	return logger
}

// WithFields is FromContext plus extra key/value pairs.
func WithFields(ctx context.Context, args ...any) *slog.Logger {
	return FromContext(ctx).With(args...)
}

func orDefault(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}
