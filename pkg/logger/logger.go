// Package logger is a small facade over log/slog for the HTTP
// interface. Access logs flow through the same handler the rest of
// the process configures, so format and level follow the app config.
package logger

import (
	"log/slog"
	"time"
)

// Field is one structured attribute on a log line.
type Field struct {
	Key   string
	Value any
}

// Field constructors.
func String(key, value string) Field      { return Field{Key: key, Value: value} }
func Int(key string, value int) Field     { return Field{Key: key, Value: value} }
func Int64(key string, value int64) Field { return Field{Key: key, Value: value} }
func Bool(key string, value bool) Field   { return Field{Key: key, Value: value} }
func Any(key string, value any) Field     { return Field{Key: key, Value: value} }

// Err names the attribute "error"; a nil error logs as nil.
func Err(err error) Field {
	if err == nil {
		return Field{Key: "error", Value: nil}
	}
	return Field{Key: "error", Value: err.Error()}
}

// Duration logs the value in slog's native duration form.
func Duration(key string, value time.Duration) Field {
	return Field{Key: key, Value: value}
}

// Logger forwards to an underlying slog.Logger.
type Logger struct {
	s *slog.Logger
}

// New wraps an existing slog.Logger. A nil argument falls back to the
// process default.
func New(s *slog.Logger) *Logger {
	if s == nil {
		s = slog.Default()
	}
	return &Logger{s: s}
}

// Default returns a Logger over slog.Default().
func Default() *Logger {
	return &Logger{s: slog.Default()}
}

// With returns a Logger that includes fields on every line.
func (l *Logger) With(fields ...Field) *Logger {
	return &Logger{s: l.s.With(attrs(fields)...)}
}

func (l *Logger) Debug(msg string, fields ...Field) { l.s.Debug(msg, attrs(fields)...) }
func (l *Logger) Info(msg string, fields ...Field)  { l.s.Info(msg, attrs(fields)...) }
func (l *Logger) Warn(msg string, fields ...Field)  { l.s.Warn(msg, attrs(fields)...) }
func (l *Logger) Error(msg string, fields ...Field) { l.s.Error(msg, attrs(fields)...) }

func attrs(fields []Field) []any {
	out := make([]any, 0, len(fields)*2)
	for _, f := range fields {
		out = append(out, f.Key, f.Value)
	}
	return out
}
