package auth

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/clinica/clinica/internal/platform/identity"
)

const (
	AccessCookie  = "sb-access"
	RefreshCookie = "sb-refresh"
)

// CookieConfig controls the attributes of the session cookies.
type CookieConfig struct {
	Secure bool
	Domain string
}

// Resolver turns request cookies into an identity and keeps the session
// cookies in step with the identity service.
type Resolver struct {
	provider identity.Provider
	cookies  CookieConfig
	logger   zerolog.Logger
}

func NewResolver(provider identity.Provider, cookies CookieConfig, logger zerolog.Logger) *Resolver {
	return &Resolver{provider: provider, cookies: cookies, logger: logger}
}

// staleCredential reports errors that mean "this cookie no longer
// authenticates anyone" as opposed to a backend failure.
func staleCredential(err error) bool {
	return errors.Is(err, identity.ErrTokenExpired) ||
		errors.Is(err, identity.ErrInvalidToken) ||
		errors.Is(err, identity.ErrSessionNotFound)
}

// Resolve returns the caller's identity, or (nil, nil) when the request is
// anonymous. An expired access token is refreshed and the cookies are
// rotated on the response. Errors are backend failures only.
func (r *Resolver) Resolve(c echo.Context) (*identity.User, error) {
	ctx := c.Request().Context()

	hadAccess := false
	if ck, err := c.Cookie(AccessCookie); err == nil && ck.Value != "" {
		hadAccess = true
		u, err := r.provider.GetUser(ctx, ck.Value)
		if err == nil {
			return u, nil
		}
		if !staleCredential(err) {
			return nil, fmt.Errorf("resolve session: %w", err)
		}
	}

	rc, err := c.Cookie(RefreshCookie)
	if err != nil || rc.Value == "" {
		if hadAccess {
			r.ClearSession(c)
		}
		return nil, nil
	}

	sess, err := r.provider.Refresh(ctx, rc.Value)
	if err != nil {
		if staleCredential(err) {
			r.ClearSession(c)
			return nil, nil
		}
		return nil, fmt.Errorf("refresh session: %w", err)
	}
	r.SetSession(c, sess)
	r.logger.Debug().Str("user_id", sess.User.ID).Msg("session refreshed")
	return sess.User, nil
}

// SetSession writes the session cookies. The refresh cookie is left alone
// when the session carries no refresh token.
func (r *Resolver) SetSession(c echo.Context, sess *identity.Session) {
	c.SetCookie(r.cookie(AccessCookie, sess.AccessToken, sess.AccessExpiresAt))
	if sess.RefreshToken != "" {
		c.SetCookie(r.cookie(RefreshCookie, sess.RefreshToken, sess.RefreshExpiresAt))
	}
}

// ClearSession expires both session cookies.
func (r *Resolver) ClearSession(c echo.Context) {
	for _, name := range []string{AccessCookie, RefreshCookie} {
		ck := r.cookie(name, "", time.Unix(0, 0))
		ck.MaxAge = -1
		c.SetCookie(ck)
	}
}

// SignOut revokes the caller's session, if any, and expires the cookies.
func (r *Resolver) SignOut(c echo.Context) error {
	ctx := c.Request().Context()
	defer r.ClearSession(c)

	if ck, err := c.Cookie(AccessCookie); err == nil && ck.Value != "" {
		if err := r.provider.SignOut(ctx, ck.Value); err != nil && !errors.Is(err, identity.ErrInvalidToken) {
			return err
		}
		return nil
	}

	if rc, err := c.Cookie(RefreshCookie); err == nil && rc.Value != "" {
		sess, err := r.provider.Refresh(ctx, rc.Value)
		if err != nil {
			if staleCredential(err) {
				return nil
			}
			return err
		}
		return r.provider.SignOut(ctx, sess.AccessToken)
	}
	return nil
}

func (r *Resolver) cookie(name, value string, expires time.Time) *http.Cookie {
	return &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		Domain:   r.cookies.Domain,
		Expires:  expires,
		Secure:   r.cookies.Secure,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	}
}
