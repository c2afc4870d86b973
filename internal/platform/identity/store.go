package identity

import (
	"context"
	"time"
)

// Store persists identities, sessions and verification codes. Implementations
// run against the service pool; these tables are invisible to the
// authenticated role.
type Store interface {
	// CreateUser inserts the identity together with its first verification
	// code in one transaction, or returns ErrEmailTaken.
	CreateUser(ctx context.Context, email, passwordHash string, metadata map[string]string, codeHash string, codeExpiresAt time.Time) (*User, error)
	// DeleteUser removes an identity that never confirmed its email.
	DeleteUser(ctx context.Context, userID string) error
	// UserByEmail returns the user and its password hash, or ErrUserNotFound.
	UserByEmail(ctx context.Context, email string) (*User, string, error)
	ConfirmEmail(ctx context.Context, userID string) error

	CreateSession(ctx context.Context, userID, refreshHash string, expiresAt time.Time) (string, error)
	// ActiveSessionUser returns the user owning a live, unrevoked session, or
	// ErrSessionNotFound.
	ActiveSessionUser(ctx context.Context, sessionID, userID string) (*User, error)
	// RotateRefresh swaps the refresh hash of a live session. A hash that was
	// rotated away less than reuseWindow ago matches the same session with
	// Reused set and nothing changed. Otherwise ErrSessionNotFound.
	RotateRefresh(ctx context.Context, oldHash, newHash string, expiresAt time.Time, reuseWindow time.Duration) (Rotation, error)
	RevokeSession(ctx context.Context, sessionID string) error

	// ConsumeCode deletes an unexpired code and returns its user id, or
	// ErrInvalidCode.
	ConsumeCode(ctx context.Context, codeHash string) (string, error)
}

// Rotation is the outcome of RotateRefresh.
type Rotation struct {
	SessionID string
	UserID    string
	Reused    bool
}
