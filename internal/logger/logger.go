// Package logger provides structured logging utilities for the application.
// It wraps log/slog with JSON formatting and supports context-based logging
// with session IDs, request IDs and module names.
package logger

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	slogbetterstack "github.com/samber/slog-betterstack"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Logger is the application logger
type Logger struct {
	*slog.Logger

	async   *AsyncHandler
	closers []io.Closer
}

// Options configures optional log sinks beyond the primary writer.
type Options struct {
	// BetterStackToken enables remote shipping when non-empty.
	BetterStackToken    string
	BetterStackEndpoint string

	// FilePath enables a size-rotated local log file when non-empty.
	FilePath       string
	FileMaxSizeMB  int
	FileMaxBackups int
	FileMaxAgeDays int
}

// New creates a new logger instance with JSON formatting
func New(level string) *Logger {
	return NewWithWriter(level, os.Stdout)
}

// NewWithWriter creates a new logger instance with JSON formatting writing to the provided writer
func NewWithWriter(level string, w io.Writer) *Logger {
	return &Logger{Logger: slog.New(NewContextHandler(jsonHandler(parseLevel(level), w)))}
}

// NewWithOptions creates a logger that fans out to w plus every sink enabled in opts.
// Call Shutdown before exit to flush async sinks and close files.
func NewWithOptions(level string, w io.Writer, opts Options) *Logger {
	lvl := parseLevel(level)
	handlers := []slog.Handler{jsonHandler(lvl, w)}
	l := &Logger{}

	if opts.FilePath != "" {
		file := &lumberjack.Logger{
			Filename:   opts.FilePath,
			MaxSize:    opts.FileMaxSizeMB,
			MaxBackups: opts.FileMaxBackups,
			MaxAge:     opts.FileMaxAgeDays,
			Compress:   true,
		}
		handlers = append(handlers, jsonHandler(lvl, file))
		l.closers = append(l.closers, file)
	}

	if opts.BetterStackToken != "" {
		remote := slogbetterstack.Option{
			Level:    lvl,
			Token:    opts.BetterStackToken,
			Endpoint: opts.BetterStackEndpoint,
		}.NewBetterstackHandler()
		l.async = NewAsyncHandler(remote, AsyncOptions{})
		handlers = append(handlers, l.async)
	}

	l.Logger = slog.New(NewContextHandler(NewMultiHandler(handlers...)))
	return l
}

// Shutdown flushes pending remote logs and closes file sinks.
func (l *Logger) Shutdown(ctx context.Context) error {
	var errs []error
	if l.async != nil {
		if err := l.async.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("flush async logs: %w", err))
		}
		if n := l.async.Dropped(); n > 0 {
			errs = append(errs, fmt.Errorf("%d remote log records dropped", n))
		}
	}
	for _, c := range l.closers {
		if err := c.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func parseLevel(level string) slog.Level {
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

func jsonHandler(level slog.Level, w io.Writer) slog.Handler {
	opts := &slog.HandlerOptions{
		Level: level,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if len(groups) > 0 {
				return a
			}
			switch a.Key {
			case slog.TimeKey:
				a.Key = "timestamp"
			case slog.LevelKey:
				lv := a.Value.String()
				if lv == "WARN" {
					lv = "warning"
				} else {
					lv = strings.ToLower(lv)
				}
				a.Value = slog.StringValue(lv)
			case slog.MessageKey:
				a.Key = "message"
			}
			return a
		},
	}
	return slog.NewJSONHandler(w, opts)
}

// WithModule creates a new entry with module field
func (l *Logger) WithModule(module string) *Logger {
	return l.derive(l.With("module", module))
}

// WithRequestID creates a new entry with request ID field
func (l *Logger) WithRequestID(requestID string) *Logger {
	return l.derive(l.With("request_id", requestID))
}

// WithError creates a new entry with error field
func (l *Logger) WithError(err error) *Logger {
	return l.derive(l.With("error", err))
}

// WithField creates a new entry with a single field
func (l *Logger) WithField(key string, value any) *Logger {
	return l.derive(l.With(key, value))
}

// WithFields creates a new entry with multiple fields
func (l *Logger) WithFields(fields map[string]any) *Logger {
	args := make([]any, 0, len(fields)*2)
	for k, v := range fields {
		args = append(args, k, v)
	}
	return l.derive(l.With(args...))
}

// derived loggers share sinks but never own them
func (l *Logger) derive(s *slog.Logger) *Logger {
	return &Logger{Logger: s}
}

// Infof logs a formatted message at info level.
func (l *Logger) Infof(format string, args ...any) {
	l.Info(fmt.Sprintf(format, args...))
}

// Warnf logs a formatted message at warn level.
func (l *Logger) Warnf(format string, args ...any) {
	l.Warn(fmt.Sprintf(format, args...))
}

// Errorf logs a formatted message at error level.
func (l *Logger) Errorf(format string, args ...any) {
	l.Error(fmt.Sprintf(format, args...))
}

// Debugf logs a formatted message at debug level.
func (l *Logger) Debugf(format string, args ...any) {
	l.Debug(fmt.Sprintf(format, args...))
}
