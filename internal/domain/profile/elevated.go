package profile

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/clinica/clinica/internal/platform/auth"
)

// ErrNotFound is returned when no profile exists for an id. It is the same
// sentinel the role verifier checks for.
var ErrNotFound = auth.ErrProfileNotFound

type serviceQuerier interface {
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
}

// Elevated reads and writes profiles past row-level security. It is built
// from the service pool in main and handed only to the role verifier and the
// verification callback; it deliberately offers nothing else.
type Elevated struct {
	db serviceQuerier
}

func NewElevated(service *pgxpool.Pool) *Elevated {
	return &Elevated{db: service}
}

// RoleOf returns the stored role of id, untrimmed.
func (e *Elevated) RoleOf(ctx context.Context, id string) (string, error) {
	if _, err := uuid.Parse(id); err != nil {
		return "", ErrNotFound
	}
	var role string
	err := e.db.QueryRow(ctx, `SELECT role FROM profiles WHERE id = $1`, id).Scan(&role)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", ErrNotFound
		}
		return "", fmt.Errorf("select role: %w", err)
	}
	return role, nil
}

// Activate marks the profile active. Activating an active profile is a no-op.
func (e *Elevated) Activate(ctx context.Context, id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return ErrNotFound
	}
	tag, err := e.db.Exec(ctx, `UPDATE profiles SET is_active = true, updated_at = now() WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("activate profile: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
