package db

import (
	"errors"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
)

const (
	pgUniqueViolationCode = "23505"

	// sqlite (test driver) reports table.column pairs instead of the
	// constraint name.
	sqliteUniquePrefix = "UNIQUE constraint failed: "
)

// IsUniqueViolation reports whether the error is a unique violation.
// When constraintName is provided, the violated constraint must match:
// by name for Postgres, by the violated table for sqlite messages.
func IsUniqueViolation(err error, constraintName string) bool {
	if err == nil {
		return false
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		if pgErr.Code != pgUniqueViolationCode {
			return false
		}
		return constraintName == "" || pgErr.ConstraintName == constraintName
	}

	msg := err.Error()
	if i := strings.Index(msg, sqliteUniquePrefix); i >= 0 {
		if constraintName == "" {
			return true
		}
		rest := msg[i+len(sqliteUniquePrefix):]
		table, _, ok := strings.Cut(rest, ".")
		return ok && strings.Contains(constraintName, table)
	}

	if constraintName != "" {
		return strings.Contains(msg, constraintName)
	}
	return strings.Contains(msg, "duplicate key value")
}
