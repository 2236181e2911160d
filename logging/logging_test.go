package logging_test

import (
	"context"
	"errors"
	"testing"

	"github.com/peterldowns/testy/check"

	"github.com/peterldowns/pgdrift/logging"
)

type recorder struct {
	levels []logging.Level
	fields [][]logging.Field
}

func (r *recorder) Log(_ context.Context, level logging.Level, _ string, fields ...logging.Field) {
	r.levels = append(r.levels, level)
	r.fields = append(r.fields, fields)
}

func TestEmitWithNilLoggerIsSilent(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	logging.Emit(ctx, nil, logging.LevelInfo, "hello", logging.Field{Key: "location", Value: "world"})
	logging.EmitError(ctx, nil, errors.New("boom"), "hello")
}

func TestEmitErrorAttachesErrorField(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	rec := &recorder{}
	boom := errors.New("boom")
	logging.Emit(ctx, rec, logging.LevelDebug, "first")
	logging.EmitError(ctx, rec, boom, "second", logging.Field{Key: "name", Value: "0001_init.sql"})

	check.Equal(t, []logging.Level{logging.LevelDebug, logging.LevelError}, rec.levels)
	check.Equal(t, 2, len(rec.fields[1]))
	check.Equal(t, "error", rec.fields[1][1].Key)
	check.True(t, rec.fields[1][1].Value == boom)
}

func TestTestLoggerWritesToTestOutput(t *testing.T) {
	t.Parallel()
	logger := logging.NewTestLogger(t)
	logging.Emit(context.Background(), logger, logging.LevelWarning, "hello", logging.Field{Key: "count", Value: 3})
}
