package db

import (
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
)

// Postgres error codes the repositories translate into domain errors.
const (
	CodeUniqueViolation       = "23505"
	CodeForeignKeyViolation   = "23503"
	CodeInsufficientPrivilege = "42501"
)

// HasCode reports whether err wraps a Postgres error with the given SQLSTATE.
func HasCode(err error, code string) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == code
}

func IsUniqueViolation(err error) bool { return HasCode(err, CodeUniqueViolation) }

func IsForeignKeyViolation(err error) bool { return HasCode(err, CodeForeignKeyViolation) }

// IsPolicyViolation reports a row rejected by a row-level security policy or
// a missing grant.
func IsPolicyViolation(err error) bool { return HasCode(err, CodeInsufficientPrivilege) }
