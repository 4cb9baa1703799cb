// Package pgutils provides PostgreSQL utility functions for the Go server.
package pgutils

import (
	"errors"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
)

// PostgreSQL error codes
// See: https://www.postgresql.org/docs/current/errcodes-appendix.html
const (
	// Class 23 — Integrity Constraint Violation
	CodeUniqueViolation     = "23505"
	CodeForeignKeyViolation = "23503"
	CodeNotNullViolation    = "23502"
	CodeCheckViolation      = "23514"
)

// IsUniqueViolation checks if the error is a PostgreSQL unique constraint violation (23505).
func IsUniqueViolation(err error) bool {
	return hasErrorCode(err, CodeUniqueViolation)
}

// IsForeignKeyViolation checks if the error is a PostgreSQL foreign key violation (23503).
func IsForeignKeyViolation(err error) bool {
	return hasErrorCode(err, CodeForeignKeyViolation)
}

// IsNotNullViolation checks if the error is a PostgreSQL not-null constraint violation (23502).
func IsNotNullViolation(err error) bool {
	return hasErrorCode(err, CodeNotNullViolation)
}

// IsCheckViolation checks if the error is a PostgreSQL check constraint violation (23514).
func IsCheckViolation(err error) bool {
	return hasErrorCode(err, CodeCheckViolation)
}

// IsIntegrityViolation checks for any class-23 constraint violation.
func IsIntegrityViolation(err error) bool {
	if pgErr := pgError(err); pgErr != nil {
		return strings.HasPrefix(pgErr.Code, "23")
	}
	return IsUniqueViolation(err) || IsForeignKeyViolation(err) ||
		IsNotNullViolation(err) || IsCheckViolation(err)
}

// ConstraintName returns the name of the violated constraint, or "" when the
// error is not a pgx constraint violation. Useful for turning CHECK failures
// into field-level validation messages.
func ConstraintName(err error) string {
	if pgErr := pgError(err); pgErr != nil {
		return pgErr.ConstraintName
	}
	return ""
}

// hasErrorCode matches the SQLSTATE via the pgx error chain when available and
// falls back to message inspection for wrapped or driver-mangled errors.
func hasErrorCode(err error, code string) bool {
	if err == nil {
		return false
	}
	if pgErr := pgError(err); pgErr != nil {
		return pgErr.Code == code
	}
	errStr := err.Error()
	return len(errStr) > 0 && (strings.Contains(errStr, code) || strings.Contains(errStr, "SQLSTATE "+code))
}

func pgError(err error) *pgconn.PgError {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr
	}
	return nil
}
