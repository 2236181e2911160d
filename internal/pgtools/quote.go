package pgtools

import (
	"strings"

	"github.com/lib/pq"
)

// DefaultSchema is the schema assumed for a table name that has no schema
// qualifier.
const DefaultSchema = "public"

// Identifier quotes an identifier (a table, a schema, a column) for use in a
// DDL statement. Each part of a dotted name is quoted separately, so
// "public.pgdrift_migrations" becomes "public"."pgdrift_migrations".
//
// For convenience, Identifier accepts either the parts of a fully-qualified
// identifier or a single un-split dotted identifier.
func Identifier(parts ...string) string {
	if len(parts) == 1 {
		parts = strings.Split(parts[0], ".")
	}
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		out = append(out, pq.QuoteIdentifier(part))
	}
	return strings.Join(out, ".")
}

// Literal quotes a string literal for statements that do not accept bind
// parameters.
func Literal(literal string) string {
	return pq.QuoteLiteral(literal)
}

// ParseTableName splits a possibly schema-qualified table name into its schema
// and table parts. An unqualified name is placed in [DefaultSchema]; only the
// first dot is treated as the separator.
func ParseTableName(name string) (schema string, table string) {
	schema, table, found := strings.Cut(name, ".")
	if !found {
		return DefaultSchema, name
	}
	return schema, table
}
