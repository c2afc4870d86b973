package identity

import (
	"time"
)

// User is an authenticated identity. Profile data (role, activation) lives in
// the profiles table and is never carried here.
type User struct {
	ID               string            `json:"id"`
	Email            string            `json:"email"`
	Metadata         map[string]string `json:"metadata,omitempty"`
	EmailConfirmedAt *time.Time        `json:"email_confirmed_at,omitempty"`
	CreatedAt        time.Time         `json:"created_at"`
}

// Confirmed reports whether the user has completed email verification.
func (u *User) Confirmed() bool {
	return u.EmailConfirmedAt != nil
}

// Session is the credential pair handed to the browser after sign-in or a
// code exchange.
type Session struct {
	ID               string
	User             *User
	AccessToken      string
	AccessExpiresAt  time.Time
	RefreshToken     string
	RefreshExpiresAt time.Time
}
