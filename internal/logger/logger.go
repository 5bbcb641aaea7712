// Package logger provides a structured, context-aware logger built on
// log/slog. Services receive a LoggerInterface via their constructors;
// there is no package-level global.
package logger

import (
	"context"
	"io"
	"log/slog"
)

type Level string

const (
	LevelDebug Level = "DEBUG"
	LevelInfo  Level = "INFO"
	LevelWarn  Level = "WARN"
	LevelError Level = "ERROR"
)

// LoggerInterface is the logging surface handed to services. Every
// method takes a context first so trace ids can be attached by
// handlers later without changing call sites.
type LoggerInterface interface {
	Debug(ctx context.Context, msg string, args ...any)
	Info(ctx context.Context, msg string, args ...any)
	Warn(ctx context.Context, msg string, args ...any)
	Error(ctx context.Context, msg string, args ...any)
	With(args ...any) LoggerInterface
}

type Logger struct {
	sl *slog.Logger
}

var _ LoggerInterface = (*Logger)(nil)

// New builds a Logger writing JSON records to w at the given level.
// The service name is attached to every record. Extra attributes may
// be nil.
func New(w io.Writer, level Level, service string, attrs []slog.Attr) *Logger {
	handler := slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level: slogLevel(level),
	})

	sl := slog.New(handler).With(slog.String("service", service))
	for _, a := range attrs {
		sl = sl.With(a)
	}

	return &Logger{sl: sl}
}

func slogLevel(l Level) slog.Level {
	switch l {
	case LevelDebug:
		return slog.LevelDebug
	case LevelWarn:
		return slog.LevelWarn
	case LevelError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func (l *Logger) Debug(ctx context.Context, msg string, args ...any) {
	l.sl.DebugContext(ctx, msg, args...)
}

func (l *Logger) Info(ctx context.Context, msg string, args ...any) {
	l.sl.InfoContext(ctx, msg, args...)
}

func (l *Logger) Warn(ctx context.Context, msg string, args ...any) {
	l.sl.WarnContext(ctx, msg, args...)
}

func (l *Logger) Error(ctx context.Context, msg string, args ...any) {
	l.sl.ErrorContext(ctx, msg, args...)
}

// With returns a logger that includes the given attributes on every
// record.
func (l *Logger) With(args ...any) LoggerInterface {
	return &Logger{sl: l.sl.With(args...)}
}
