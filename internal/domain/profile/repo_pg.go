package profile

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/clinica/clinica/internal/platform/db"
)

const profileColumns = `id, role, is_active, email, nombre, apellido, telefono, created_at, updated_at`

type repoPG struct {
	pool db.Beginner
}

// NewRepo builds the scoped repository. pool must be the application pool.
func NewRepo(pool *pgxpool.Pool) Repository {
	return &repoPG{pool: pool}
}

func scanProfile(row pgx.Row) (*Profile, error) {
	var p Profile
	err := row.Scan(&p.ID, &p.Role, &p.IsActive, &p.Email, &p.Nombre, &p.Apellido,
		&p.Telefono, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &p, nil
}

func (r *repoPG) GetOwn(ctx context.Context) (*Profile, error) {
	var p *Profile
	err := db.InUserScope(ctx, r.pool, func(ctx context.Context, tx pgx.Tx) error {
		var err error
		p, err = scanProfile(tx.QueryRow(ctx,
			`SELECT `+profileColumns+` FROM profiles WHERE id = current_user_id()`))
		return err
	})
	return p, err
}

func (r *repoPG) UpdateContact(ctx context.Context, u ContactUpdate) (*Profile, error) {
	var p *Profile
	err := db.InUserScope(ctx, r.pool, func(ctx context.Context, tx pgx.Tx) error {
		var err error
		p, err = scanProfile(tx.QueryRow(ctx, `
			UPDATE profiles SET nombre = $1, apellido = $2, telefono = $3, updated_at = now()
			WHERE id = current_user_id()
			RETURNING `+profileColumns,
			u.Nombre, u.Apellido, u.Telefono))
		return err
	})
	if err != nil && !errors.Is(err, ErrNotFound) {
		return nil, fmt.Errorf("update profile: %w", err)
	}
	return p, err
}

// List returns the profiles the caller's policies expose: every profile for
// an administrator, only their own otherwise.
func (r *repoPG) List(ctx context.Context, role string, limit, offset int) ([]*Profile, int, error) {
	where := ` WHERE 1=1`
	var args []interface{}
	if role != "" {
		args = append(args, role)
		where += fmt.Sprintf(` AND lower(btrim(role)) = $%d`, len(args))
	}

	var (
		profiles []*Profile
		total    int
	)
	err := db.InUserScope(ctx, r.pool, func(ctx context.Context, tx pgx.Tx) error {
		if err := tx.QueryRow(ctx, `SELECT COUNT(*) FROM profiles`+where, args...).Scan(&total); err != nil {
			return err
		}

		page := append(args, limit, offset)
		rows, err := tx.Query(ctx, fmt.Sprintf(
			`SELECT `+profileColumns+` FROM profiles`+where+` ORDER BY apellido, nombre, id LIMIT $%d OFFSET $%d`,
			len(args)+1, len(args)+2), page...)
		if err != nil {
			return err
		}
		defer rows.Close()

		for rows.Next() {
			p, err := scanProfile(rows)
			if err != nil {
				return err
			}
			profiles = append(profiles, p)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, 0, fmt.Errorf("list profiles: %w", err)
	}
	return profiles, total, nil
}
