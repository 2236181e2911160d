package shared

import (
	"context"

	"github.com/charmbracelet/log"

	"github.com/peterldowns/pgdrift"
)

type LogFormat string

const (
	LogFormatJSON LogFormat = "json"
	LogFormatText LogFormat = "text"
)

// LogAdapter lets a charmbracelet logger receive pgdrift's log messages.
type LogAdapter struct {
	*log.Logger
}

func (l LogAdapter) Log(_ context.Context, level pgdrift.LogLevel, msg string, fields ...pgdrift.LogField) {
	args := make([]any, 0, 2*len(fields))
	for _, field := range fields {
		args = append(args, field.Key, field.Value)
	}
	switch level {
	case pgdrift.LogLevelDebug:
		l.Logger.Debug(msg, args...)
	case pgdrift.LogLevelInfo:
		l.Logger.Info(msg, args...)
	case pgdrift.LogLevelWarning:
		l.Logger.Warn(msg, args...)
	case pgdrift.LogLevelError:
		l.Logger.Error(msg, args...)
	default:
		l.Logger.Print(msg, args...)
	}
}
