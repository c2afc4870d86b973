package identity

import (
	"context"
	"errors"
)

var (
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrEmailTaken         = errors.New("email already registered")
	ErrInvalidCode        = errors.New("verification code is invalid, expired or already used")
	ErrSessionNotFound    = errors.New("session not found or revoked")
	ErrInvalidToken       = errors.New("invalid access token")
	ErrTokenExpired       = errors.New("access token expired")
	ErrUserNotFound       = errors.New("user not found")
	ErrInvalidEmail       = errors.New("email is not valid")
	ErrWeakPassword       = errors.New("password must be at least 8 characters")
)

// Provider is the identity and session service the HTTP layer talks to.
type Provider interface {
	// SignInWithPassword checks the credentials and opens a session.
	SignInWithPassword(ctx context.Context, email, password string) (*Session, error)
	// SignUp registers a new identity and sends its verification link.
	SignUp(ctx context.Context, email, password string, metadata map[string]string) (*User, error)
	// GetUser returns the identity behind a live access token.
	GetUser(ctx context.Context, accessToken string) (*User, error)
	// Refresh rotates a refresh token into a new session credential pair. A
	// token rotated moments ago by a concurrent request yields only a new
	// access token, with RefreshToken left empty.
	Refresh(ctx context.Context, refreshToken string) (*Session, error)
	// SignOut revokes the session an access token belongs to. Expired tokens
	// are accepted.
	SignOut(ctx context.Context, accessToken string) error
	// ExchangeCodeForSession consumes a one-time verification code.
	ExchangeCodeForSession(ctx context.Context, code string) (*Session, error)
}

// VerificationSender delivers verification codes to a new user.
type VerificationSender interface {
	SendVerification(ctx context.Context, email, code string) error
}
