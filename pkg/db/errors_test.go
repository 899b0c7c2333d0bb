package db

import (
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
)

func TestIsUniqueViolation(t *testing.T) {
	pgDup := &pgconn.PgError{Code: "23505", ConstraintName: "idx_users_email"}

	tests := []struct {
		name       string
		err        error
		constraint string
		want       bool
	}{
		{"nil", nil, "", false},
		{"pg duplicate", pgDup, "", true},
		{"pg duplicate named", pgDup, "idx_users_email", true},
		{"pg duplicate wrong constraint", pgDup, "idx_other", false},
		{"pg other code", &pgconn.PgError{Code: "23503"}, "", false},
		{"wrapped pg error", fmt.Errorf("create user: %w", pgDup), "", true},
		{"message match", errors.New(`duplicate key value violates unique constraint "idx_users_email"`), "idx_users_email", true},
		{"sqlite message", errors.New("UNIQUE constraint failed: users.email"), "", true},
		{"unrelated", errors.New("connection refused"), "", false},
	}
	for _, tt := range tests {
		if got := IsUniqueViolation(tt.err, tt.constraint); got != tt.want {
			t.Fatalf("%s: IsUniqueViolation = %v, want %v", tt.name, got, tt.want)
		}
	}
}
