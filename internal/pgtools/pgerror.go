package pgtools

import (
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
)

// ErrorData returns as much information as possible about an error reported
// by the Postgres server, for logging purposes. Both the pgx and lib/pq error
// types are understood; any other error yields an empty map.
func ErrorData(err error) map[string]any {
	data := make(map[string]any)
	var pgxErr *pgconn.PgError
	if errors.As(err, &pgxErr) {
		put(data, "pg_code", pgxErr.Code)
		put(data, "pg_detail", pgxErr.Detail)
		put(data, "pg_hint", pgxErr.Hint)
		put(data, "pg_schema", pgxErr.SchemaName)
		put(data, "pg_table", pgxErr.TableName)
		put(data, "pg_column", pgxErr.ColumnName)
		put(data, "pg_constraint", pgxErr.ConstraintName)
		put(data, "pg_where", pgxErr.Where)
		put(data, "pg_severity", pgxErr.Severity)
		return data
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		put(data, "pg_code", string(pqErr.Code))
		put(data, "pg_detail", pqErr.Detail)
		put(data, "pg_hint", pqErr.Hint)
		put(data, "pg_schema", pqErr.Schema)
		put(data, "pg_table", pqErr.Table)
		put(data, "pg_column", pqErr.Column)
		put(data, "pg_constraint", pqErr.Constraint)
		put(data, "pg_where", pqErr.Where)
		put(data, "pg_severity", pqErr.Severity)
	}
	return data
}

func put(data map[string]any, key, value string) {
	if value != "" {
		data[key] = value
	}
}
