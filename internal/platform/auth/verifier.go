package auth

import (
	"context"
	"errors"
	"fmt"
)

// RoleSource reads the stored role of a profile. Implementations must see
// past row-level security: the lookup has to work before the caller's own
// policies would allow a self read.
type RoleSource interface {
	RoleOf(ctx context.Context, userID string) (string, error)
}

// Verifier answers role questions for authenticated identities.
type Verifier struct {
	src RoleSource
}

func NewVerifier(src RoleSource) *Verifier {
	return &Verifier{src: src}
}

// RoleOf returns the normalized role of userID. A missing profile or an empty
// role yields ErrProfileNotFound; anything else is a backend failure.
func (v *Verifier) RoleOf(ctx context.Context, userID string) (Role, error) {
	raw, err := v.src.RoleOf(ctx, userID)
	if err != nil {
		if errors.Is(err, ErrProfileNotFound) {
			return "", ErrProfileNotFound
		}
		return "", fmt.Errorf("role lookup: %w", err)
	}
	role := NormalizeRole(raw)
	if role == "" {
		return "", ErrProfileNotFound
	}
	return role, nil
}

// Check verifies that userID may act as expected.
func (v *Verifier) Check(ctx context.Context, userID string, expected Role) (Role, error) {
	role, err := v.RoleOf(ctx, userID)
	if err != nil {
		return "", err
	}
	if !role.Satisfies(expected) {
		return role, ErrRoleMismatch
	}
	return role, nil
}
