package pgdrift

import (
	"testing"

	"github.com/peterldowns/pgdrift/logging"
)

// LogLevel represents the severity of the log message, and is one of
//   - [LogLevelDebug]
//   - [LogLevelInfo]
//   - [LogLevelWarning]
//   - [LogLevelError]
type LogLevel = logging.Level

const (
	LogLevelDebug   = logging.LevelDebug
	LogLevelInfo    = logging.LevelInfo
	LogLevelWarning = logging.LevelWarning
	LogLevelError   = logging.LevelError
)

// LogField holds a key/value pair for structured logging.
type LogField = logging.Field

// Logger is a generic logging interface so that you can easily use pgdrift
// with your existing structured logging solution. See [logging.Logger].
type Logger = logging.Logger

// Helper is an optional interface that your [Logger] can implement so that
// pgdrift's own logging helpers are omitted from stack traces.
type Helper = logging.Helper

// TestLogger writes all logs to a given test's output.
type TestLogger = logging.TestLogger

// NewTestLogger returns a [TestLogger] for t.
func NewTestLogger(t *testing.T) TestLogger {
	return logging.NewTestLogger(t)
}
