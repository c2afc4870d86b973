package identity

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/clinica/clinica/internal/platform/db"
)

type querier interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
}

// PGStore is the Postgres Store. It must be built from the service pool.
type PGStore struct {
	db querier
}

func NewPGStore(pool *pgxpool.Pool) *PGStore {
	return &PGStore{db: pool}
}

const userCols = `u.id, u.email, u.raw_user_meta, u.email_confirmed_at, u.created_at`

func scanUser(row pgx.Row, extra ...interface{}) (*User, error) {
	var u User
	var meta []byte
	dest := append([]interface{}{&u.ID, &u.Email, &meta, &u.EmailConfirmedAt, &u.CreatedAt}, extra...)
	if err := row.Scan(dest...); err != nil {
		return nil, err
	}
	if len(meta) > 0 {
		if err := json.Unmarshal(meta, &u.Metadata); err != nil {
			return nil, fmt.Errorf("decode user metadata: %w", err)
		}
	}
	return &u, nil
}

func (s *PGStore) CreateUser(ctx context.Context, email, passwordHash string, metadata map[string]string, codeHash string, codeExpiresAt time.Time) (*User, error) {
	if metadata == nil {
		metadata = map[string]string{}
	}
	meta, err := json.Marshal(metadata)
	if err != nil {
		return nil, fmt.Errorf("encode user metadata: %w", err)
	}

	var u *User
	err = pgx.BeginFunc(ctx, s.db, func(tx pgx.Tx) error {
		var err error
		u, err = scanUser(tx.QueryRow(ctx, `
			INSERT INTO auth_users AS u (email, password_hash, raw_user_meta)
			VALUES ($1, $2, $3)
			RETURNING `+userCols, email, passwordHash, meta))
		if err != nil {
			return err
		}
		_, err = tx.Exec(ctx, `
			INSERT INTO auth_verification_codes (code_hash, user_id, expires_at)
			VALUES ($1, $2, $3)`, codeHash, u.ID, codeExpiresAt)
		return err
	})
	if err != nil {
		if db.IsUniqueViolation(err) {
			return nil, ErrEmailTaken
		}
		return nil, fmt.Errorf("create user: %w", err)
	}
	return u, nil
}

func (s *PGStore) DeleteUser(ctx context.Context, userID string) error {
	_, err := s.db.Exec(ctx,
		`DELETE FROM auth_users WHERE id = $1 AND email_confirmed_at IS NULL`, userID)
	return err
}

func (s *PGStore) UserByEmail(ctx context.Context, email string) (*User, string, error) {
	var hash string
	u, err := scanUser(s.db.QueryRow(ctx,
		`SELECT `+userCols+`, u.password_hash FROM auth_users u WHERE lower(u.email) = lower($1)`, email), &hash)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, "", ErrUserNotFound
		}
		return nil, "", fmt.Errorf("user by email: %w", err)
	}
	return u, hash, nil
}

func (s *PGStore) ConfirmEmail(ctx context.Context, userID string) error {
	_, err := s.db.Exec(ctx, `
		UPDATE auth_users SET email_confirmed_at = coalesce(email_confirmed_at, now()), updated_at = now()
		WHERE id = $1`, userID)
	return err
}

func (s *PGStore) CreateSession(ctx context.Context, userID, refreshHash string, expiresAt time.Time) (string, error) {
	var id string
	err := s.db.QueryRow(ctx, `
		INSERT INTO auth_sessions (user_id, refresh_token_hash, expires_at)
		VALUES ($1, $2, $3)
		RETURNING id`, userID, refreshHash, expiresAt).Scan(&id)
	return id, err
}

func (s *PGStore) ActiveSessionUser(ctx context.Context, sessionID, userID string) (*User, error) {
	u, err := scanUser(s.db.QueryRow(ctx, `
		SELECT `+userCols+`
		FROM auth_sessions s
		JOIN auth_users u ON u.id = s.user_id
		WHERE s.id = $1 AND s.user_id = $2 AND s.revoked_at IS NULL AND s.expires_at > now()`,
		sessionID, userID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrSessionNotFound
		}
		return nil, fmt.Errorf("active session user: %w", err)
	}
	return u, nil
}

func (s *PGStore) RotateRefresh(ctx context.Context, oldHash, newHash string, expiresAt time.Time, reuseWindow time.Duration) (Rotation, error) {
	var r Rotation
	err := s.db.QueryRow(ctx, `
		UPDATE auth_sessions
		SET previous_refresh_hash = refresh_token_hash, refresh_token_hash = $2,
		    expires_at = $3, refreshed_at = now()
		WHERE refresh_token_hash = $1 AND revoked_at IS NULL AND expires_at > now()
		RETURNING id, user_id`, oldHash, newHash, expiresAt).Scan(&r.SessionID, &r.UserID)
	if err == nil {
		return r, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return Rotation{}, fmt.Errorf("rotate refresh token: %w", err)
	}

	// A concurrent request may have rotated this token a moment ago.
	err = s.db.QueryRow(ctx, `
		SELECT id, user_id FROM auth_sessions
		WHERE previous_refresh_hash = $1 AND revoked_at IS NULL AND expires_at > now()
		  AND refreshed_at > now() - make_interval(secs => $2)`,
		oldHash, reuseWindow.Seconds()).Scan(&r.SessionID, &r.UserID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Rotation{}, ErrSessionNotFound
		}
		return Rotation{}, fmt.Errorf("rotate refresh token: %w", err)
	}
	r.Reused = true
	return r, nil
}

func (s *PGStore) RevokeSession(ctx context.Context, sessionID string) error {
	_, err := s.db.Exec(ctx,
		`UPDATE auth_sessions SET revoked_at = now() WHERE id = $1 AND revoked_at IS NULL`, sessionID)
	return err
}

func (s *PGStore) ConsumeCode(ctx context.Context, codeHash string) (string, error) {
	var userID string
	err := s.db.QueryRow(ctx, `
		DELETE FROM auth_verification_codes
		WHERE code_hash = $1 AND expires_at > now()
		RETURNING user_id`, codeHash).Scan(&userID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", ErrInvalidCode
		}
		return "", fmt.Errorf("consume verification code: %w", err)
	}
	return userID, nil
}
