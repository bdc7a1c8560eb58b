package errors

import (
	stdErrors "errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
)

// LogFields flattens err for structured logging: its code, the unwrap chain
// and, when a Postgres error is in the chain, the server-side diagnostics.
func LogFields(err error) map[string]any {
	if err == nil {
		return nil
	}
	var chain []string
	for e := err; e != nil; e = stdErrors.Unwrap(e) {
		chain = append(chain, fmt.Sprintf("%T", e))
	}
	fields := map[string]any{
		"error_code":  CodeOf(err),
		"error_chain": chain,
	}

	var pg *pgconn.PgError
	if stdErrors.As(err, &pg) {
		for key, value := range map[string]string{
			"pg_code":       pg.Code,
			"pg_constraint": pg.ConstraintName,
			"pg_table":      pg.TableName,
			"pg_column":     pg.ColumnName,
			"pg_detail":     pg.Detail,
			"pg_message":    pg.Message,
		} {
			if value != "" {
				fields[key] = value
			}
		}
	}
	return fields
}
