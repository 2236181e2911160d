// Package logging defines the small structured-logging interface that pgdrift
// and its shadow orchestrator write to. It is intentionally tiny so that it is
// easy to adapt to whatever logger your application already uses.
package logging

import "context"

// Level is the severity of a log message.
type Level string

const (
	LevelDebug   Level = "debug"
	LevelInfo    Level = "info"
	LevelWarning Level = "warning"
	LevelError   Level = "error"
)

// Field holds a key/value pair for structured logging.
type Field struct {
	Key   string
	Value any
}

// Logger receives every message emitted by pgdrift.
type Logger interface {
	Log(context.Context, Level, string, ...Field)
}

// Helper is an optional interface that a [Logger] can implement so that
// pgdrift's own logging helpers are omitted from stack traces. The
// [TestLogger] implements it through its embedded *testing.T.
type Helper interface {
	Helper()
}

// Emit writes msg to logger if logger is non-nil. Passing a nil logger is
// valid and silently drops the message.
func Emit(ctx context.Context, logger Logger, level Level, msg string, fields ...Field) {
	if logger == nil {
		return
	}
	if hl, ok := logger.(Helper); ok {
		hl.Helper()
	}
	logger.Log(ctx, level, msg, fields...)
}

// EmitError is like [Emit] at [LevelError], with err attached as the "error"
// field.
func EmitError(ctx context.Context, logger Logger, err error, msg string, fields ...Field) {
	if hl, ok := logger.(Helper); ok {
		hl.Helper()
	}
	fields = append(fields, Field{Key: "error", Value: err})
	Emit(ctx, logger, LevelError, msg, fields...)
}
