package logging

import (
	"context"
	"fmt"
	"strings"
	"testing"
)

// NewTestLogger returns a [TestLogger] that writes to t's output.
func NewTestLogger(t *testing.T) TestLogger {
	return TestLogger{t}
}

// TestLogger implements [Logger] and [Helper] and writes all logs to a test's
// output in pseudo key=value form, preserving the caller's line numbers.
type TestLogger struct {
	*testing.T
}

func (t TestLogger) Log(_ context.Context, level Level, msg string, fields ...Field) {
	t.Helper()
	var line strings.Builder
	fmt.Fprintf(&line, "%s: %s", level, msg)
	for _, field := range fields {
		fmt.Fprintf(&line, " %s=%v", field.Key, field.Value)
	}
	t.T.Log(line.String())
}
