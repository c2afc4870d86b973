package auth

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/clinica/clinica/internal/platform/identity"
)

// AuthCodeError is the error tag used when a verification code cannot be
// exchanged.
const AuthCodeError = "auth-code-error"

const headerXForwardedHost = "X-Forwarded-Host"

// Callback outcomes, also used as metric labels.
const (
	CallbackActivated      = "activated"
	CallbackInvalidCode    = "invalid_code"
	CallbackResolveFailed  = "resolve_failed"
	CallbackActivateFailed = "activate_failed"
)

// Activator flips the profile of an identity to active. It must be
// idempotent.
type Activator interface {
	Activate(ctx context.Context, userID string) error
}

// CallbackConfig wires the verification callback.
type CallbackConfig struct {
	Provider  identity.Provider
	Resolver  *Resolver
	Activator Activator
	// Development makes redirects use the request origin and ignore
	// X-Forwarded-Host.
	Development bool
	Recorder    Recorder
	Logger      zerolog.Logger
}

// CallbackHandler completes the email verification handshake.
type CallbackHandler struct {
	cfg      CallbackConfig
	recorder Recorder
	logger   zerolog.Logger
}

func NewCallbackHandler(cfg CallbackConfig) *CallbackHandler {
	return &CallbackHandler{
		cfg:      cfg,
		recorder: recorderOrNop(cfg.Recorder),
		logger:   cfg.Logger.With().Str("component", "callback").Logger(),
	}
}

// Handle serves GET /auth/callback?code=&next=.
func (h *CallbackHandler) Handle(c echo.Context) error {
	ctx, span := otel.Tracer("github.com/clinica/clinica/internal/platform/auth").Start(c.Request().Context(), "auth.callback")
	defer span.End()

	base := h.redirectBase(c.Request())
	next := SafeNext(c.QueryParam("next"))
	codeErrorURL := base + DefaultLoginPath + "?" + url.Values{"error": {AuthCodeError}}.Encode()

	finish := func(outcome, target string) error {
		span.SetAttributes(attribute.String("outcome", outcome))
		if outcome != CallbackActivated {
			span.SetStatus(codes.Error, outcome)
		}
		h.recorder.CallbackOutcome(outcome)
		return c.Redirect(http.StatusFound, target)
	}

	sess, err := h.cfg.Provider.ExchangeCodeForSession(ctx, c.QueryParam("code"))
	if err != nil {
		if !errors.Is(err, identity.ErrInvalidCode) {
			h.logger.Error().Err(err).Msg("code exchange failed")
		}
		return finish(CallbackInvalidCode, codeErrorURL)
	}
	h.cfg.Resolver.SetSession(c, sess)

	user, err := h.cfg.Provider.GetUser(ctx, sess.AccessToken)
	if err != nil {
		h.logger.Error().Err(err).Str("session_id", sess.ID).Msg("re-resolving identity after exchange")
		h.revoke(c, sess)
		return finish(CallbackResolveFailed, codeErrorURL)
	}

	if err := h.cfg.Activator.Activate(ctx, user.ID); err != nil {
		h.logger.Error().Err(err).Str("user_id", user.ID).Msg("profile activation failed")
		h.revoke(c, sess)
		target := base + DefaultLoginPath + "?" + url.Values{"error": {MsgDatabaseError + err.Error()}}.Encode()
		return finish(CallbackActivateFailed, target)
	}

	h.logger.Info().Str("user_id", user.ID).Msg("profile activated")
	return finish(CallbackActivated, base+next)
}

// revoke drops a session that was opened but cannot be used.
func (h *CallbackHandler) revoke(c echo.Context, sess *identity.Session) {
	if err := h.cfg.Provider.SignOut(c.Request().Context(), sess.AccessToken); err != nil {
		h.logger.Warn().Err(err).Msg("revoking callback session")
	}
	h.cfg.Resolver.ClearSession(c)
}

// redirectBase is the scheme and host redirects are built on. Outside
// development a forwarded host from the reverse proxy wins so users land on
// the public domain.
func (h *CallbackHandler) redirectBase(r *http.Request) string {
	origin := requestOrigin(r)
	if h.cfg.Development {
		return origin
	}
	if fwd := forwardedHost(r); fwd != "" {
		return "https://" + fwd
	}
	return origin
}

func requestOrigin(r *http.Request) string {
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	return scheme + "://" + r.Host
}

// forwardedHost returns the first X-Forwarded-Host entry.
func forwardedHost(r *http.Request) string {
	v := r.Header.Get(headerXForwardedHost)
	if i := strings.IndexByte(v, ','); i >= 0 {
		v = v[:i]
	}
	return strings.TrimSpace(v)
}

// SafeNext accepts only same-site absolute paths and falls back to the
// dashboard.
func SafeNext(next string) string {
	if next == "" || !strings.HasPrefix(next, "/") || strings.HasPrefix(next, "//") || strings.Contains(next, `\`) {
		return DashboardPrefix
	}
	u, err := url.Parse(next)
	if err != nil || u.Scheme != "" || u.Host != "" {
		return DashboardPrefix
	}
	return next
}
