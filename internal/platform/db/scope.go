package db

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/labstack/echo/v4"
)

type contextKey string

const (
	UserIDKey contextKey = "db_user_id"
	DBTxKey   contextKey = "db_tx"
)

// AuthenticatedRole is the database role RLS policies are written against.
const AuthenticatedRole = "authenticated"

// ErrNoUserScope is returned when a scoped query runs without a caller identity.
var ErrNoUserScope = errors.New("no user scope in context")

// Beginner is satisfied by *pgxpool.Pool, *pgxpool.Conn and pgx.Tx.
type Beginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// WithUserID records the caller whose row-level policies scoped queries must
// run under.
func WithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, UserIDKey, userID)
}

// UserIDFromContext retrieves the scoped caller id from context.
func UserIDFromContext(ctx context.Context) string {
	uid, _ := ctx.Value(UserIDKey).(string)
	return uid
}

// TxFromContext returns the scoped transaction when fn is running inside
// InUserScope.
func TxFromContext(ctx context.Context) pgx.Tx {
	tx, _ := ctx.Value(DBTxKey).(pgx.Tx)
	return tx
}

// InUserScope runs fn in a transaction that has switched to the
// authenticated role with request.jwt.claim.sub set to the caller, so every
// statement is subject to row-level security. Nested calls reuse the outer
// transaction.
func InUserScope(ctx context.Context, db Beginner, fn func(ctx context.Context, tx pgx.Tx) error) error {
	if tx := TxFromContext(ctx); tx != nil {
		return fn(ctx, tx)
	}

	userID := UserIDFromContext(ctx)
	if userID == "" {
		return ErrNoUserScope
	}
	if _, err := uuid.Parse(userID); err != nil {
		return fmt.Errorf("invalid scoped user id %q: %w", userID, err)
	}

	return pgx.BeginFunc(ctx, db, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, "SET LOCAL ROLE "+AuthenticatedRole); err != nil {
			return fmt.Errorf("set role: %w", err)
		}
		if _, err := tx.Exec(ctx, "SELECT set_config('request.jwt.claim.sub', $1, true)", userID); err != nil {
			return fmt.Errorf("set claim: %w", err)
		}
		return fn(context.WithValue(ctx, DBTxKey, tx), tx)
	})
}

// ScopeMiddleware copies the caller id resolved by earlier middleware into the
// request context so repositories can open scoped transactions. Requests
// without a caller pass through unscoped.
func ScopeMiddleware(callerID func(c echo.Context) string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			uid := callerID(c)
			if uid == "" {
				return next(c)
			}
			ctx := WithUserID(c.Request().Context(), uid)
			c.SetRequest(c.Request().WithContext(ctx))
			return next(c)
		}
	}
}
