package auth

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/clinica/clinica/internal/platform/identity"
)

type contextKey string

const (
	UserKey contextKey = "auth_user"
	roleKey contextKey = "auth_role"
)

// roleCache loads the caller's role at most once per request.
type roleCache struct {
	once sync.Once
	load func(ctx context.Context) (Role, error)
	role Role
	err  error
}

// WithUser stores the resolved caller on the context.
func WithUser(ctx context.Context, u *identity.User) context.Context {
	return context.WithValue(ctx, UserKey, u)
}

// UserFromContext returns the resolved caller, or nil for anonymous requests.
func UserFromContext(ctx context.Context) *identity.User {
	u, _ := ctx.Value(UserKey).(*identity.User)
	return u
}

// UserIDFromContext returns the caller's id, or "" when anonymous.
func UserIDFromContext(ctx context.Context) string {
	if u := UserFromContext(ctx); u != nil {
		return u.ID
	}
	return ""
}

// CallerID returns the caller's id as a UUID, or ErrNoCaller when anonymous.
func CallerID(ctx context.Context) (uuid.UUID, error) {
	raw := UserIDFromContext(ctx)
	if raw == "" {
		return uuid.Nil, ErrNoCaller
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, fmt.Errorf("caller id %q: %w", raw, err)
	}
	return id, nil
}

// WithRole stores an already known role.
func WithRole(ctx context.Context, role Role) context.Context {
	return withRoleLoader(ctx, func(context.Context) (Role, error) { return role, nil })
}

func withRoleLoader(ctx context.Context, load func(ctx context.Context) (Role, error)) context.Context {
	return context.WithValue(ctx, roleKey, &roleCache{load: load})
}

// CallerRole returns the caller's role, loading it through the verifier the
// guard attached if this is the first use in the request.
func CallerRole(ctx context.Context) (Role, error) {
	rc, ok := ctx.Value(roleKey).(*roleCache)
	if !ok {
		return "", ErrNoCaller
	}
	rc.once.Do(func() {
		rc.role, rc.err = rc.load(ctx)
	})
	return rc.role, rc.err
}
