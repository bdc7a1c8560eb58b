package db

import (
	"errors"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
)

const pgUniqueViolation = "23505"

// IsUniqueViolation reports whether the provided error is a unique constraint
// violation. When constraintName is provided, only that constraint matches.
// SQLite errors are matched by message since its driver exposes no code type.
func IsUniqueViolation(err error, constraintName string) bool {
	if err == nil {
		return false
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		if pgErr.Code != pgUniqueViolation {
			return false
		}
		return constraintName == "" || pgErr.ConstraintName == constraintName
	}

	msg := err.Error()
	if constraintName != "" && strings.Contains(msg, constraintName) {
		return true
	}
	if strings.Contains(msg, "UNIQUE constraint failed") {
		return constraintName == "" || strings.Contains(msg, constraintColumn(constraintName))
	}
	return constraintName == "" && strings.Contains(msg, "duplicate key value")
}

// constraintColumn maps a conventional "<table>_<column>_key" constraint name to
// the "<table>.<column>" form SQLite reports.
func constraintColumn(constraintName string) string {
	name := strings.TrimSuffix(constraintName, "_key")
	for _, table := range []string{"group_orders", "orders", "email_deliveries", "notifications"} {
		if strings.HasPrefix(name, table+"_") {
			return table + "." + strings.TrimPrefix(name, table+"_")
		}
	}
	return name
}
