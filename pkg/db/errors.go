package db

import (
	"errors"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
)

// Postgres class 23 integrity violation for duplicate keys.
const uniqueViolationCode = "23505"

// IsUniqueViolation reports whether err is a unique constraint violation. When
// constraintName is provided, the violation must reference that constraint.
// Falls back to message matching for drivers that do not expose a PgError
// (the sqlite test harness among them).
func IsUniqueViolation(err error, constraintName string) bool {
	if err == nil {
		return false
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		if pgErr.Code != uniqueViolationCode {
			return false
		}
		return constraintName == "" || pgErr.ConstraintName == constraintName
	}

	msg := err.Error()
	if !strings.Contains(msg, "duplicate key value") &&
		!strings.Contains(msg, "UNIQUE constraint failed") {
		return false
	}
	return constraintName == "" || strings.Contains(msg, constraintName)
}
