package auth

import (
	"context"
	"errors"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/clinica/clinica/internal/platform/identity"
)

const (
	MsgInvalidCredentials = "Credenciales inválidas"
	MsgDatabaseError      = "Error de base de datos: "
)

// Portal is a login entry point and the role it admits.
type Portal struct {
	Slug     string
	Title    string
	Expected Role
	Mismatch string
}

const DefaultPortal = "profesionales"

var portals = map[string]Portal{
	"profesionales": {
		Slug:     "profesionales",
		Title:    "Acceso profesionales",
		Expected: RoleMedico,
		Mismatch: "Esta cuenta no tiene acceso al portal de profesionales",
	},
	"pacientes": {
		Slug:     "pacientes",
		Title:    "Acceso pacientes",
		Expected: RolePaciente,
		Mismatch: "Esta cuenta no tiene acceso al portal de pacientes",
	},
}

// PortalBySlug looks up a portal by its URL segment.
func PortalBySlug(slug string) (Portal, bool) {
	p, ok := portals[slug]
	return p, ok
}

// Path is the login form URL of the portal.
func (p Portal) Path() string {
	return LoginPath + "/" + p.Slug
}

// LoginOutcome is a terminal state of the login state machine.
type LoginOutcome string

const (
	OutcomeSuccess            LoginOutcome = "success"
	OutcomeInvalidCredentials LoginOutcome = "invalid_credentials"
	OutcomeDatabaseError      LoginOutcome = "database_error"
	OutcomeNoProfile          LoginOutcome = "no_profile"
	OutcomeRoleMismatch       LoginOutcome = "role_mismatch"
)

// loginTerminal enumerates the side effects of each terminal state.
type loginTerminal struct {
	signOut bool
	message func(p Portal, detail string) string
}

var loginTerminals = map[LoginOutcome]loginTerminal{
	OutcomeSuccess: {},
	OutcomeInvalidCredentials: {
		message: func(Portal, string) string { return MsgInvalidCredentials },
	},
	OutcomeDatabaseError: {
		signOut: true,
		message: func(_ Portal, detail string) string { return MsgDatabaseError + detail },
	},
	OutcomeNoProfile: {
		signOut: true,
		message: func(p Portal, _ string) string { return p.Mismatch },
	},
	OutcomeRoleMismatch: {
		signOut: true,
		message: func(p Portal, _ string) string { return p.Mismatch },
	},
}

// LoginResult is what the form handler acts on. Session is set only on
// success; SignedOut means a session was opened and then revoked.
type LoginResult struct {
	Outcome   LoginOutcome
	Session   *identity.Session
	Role      Role
	Message   string
	SignedOut bool
}

// Login runs the sign-in state machine: credential check, role lookup
// through the verifier, then a terminal state.
type Login struct {
	provider identity.Provider
	verifier *Verifier
	recorder Recorder
	logger   zerolog.Logger
	tracer   trace.Tracer
}

func NewLogin(provider identity.Provider, verifier *Verifier, recorder Recorder, logger zerolog.Logger) *Login {
	return &Login{
		provider: provider,
		verifier: verifier,
		recorder: recorderOrNop(recorder),
		logger:   logger.With().Str("component", "login").Logger(),
		tracer:   otel.Tracer("github.com/clinica/clinica/internal/platform/auth"),
	}
}

// Attempt never returns an error: every failure is a terminal outcome with a
// user-facing message.
func (l *Login) Attempt(ctx context.Context, portal Portal, email, password string) LoginResult {
	ctx, span := l.tracer.Start(ctx, "auth.login", trace.WithAttributes(attribute.String("portal", portal.Slug)))
	defer span.End()

	outcome, sess, role, detail := l.evaluate(ctx, portal, email, password)
	term := loginTerminals[outcome]

	res := LoginResult{Outcome: outcome, Role: role}
	if term.message != nil {
		res.Message = term.message(portal, detail)
	}
	if term.signOut && sess != nil {
		if err := l.provider.SignOut(ctx, sess.AccessToken); err != nil {
			l.logger.Error().Err(err).Str("user_id", sess.User.ID).Msg("sign-out after failed login")
		}
		res.SignedOut = true
		sess = nil
	}
	res.Session = sess

	span.SetAttributes(attribute.String("outcome", string(outcome)))
	if outcome != OutcomeSuccess {
		span.SetStatus(codes.Error, string(outcome))
	}
	l.recorder.LoginAttempt(portal.Slug, string(outcome))

	level := zerolog.InfoLevel
	if outcome == OutcomeDatabaseError {
		level = zerolog.ErrorLevel
	}
	ev := l.logger.WithLevel(level)
	if detail != "" {
		ev = ev.Str("detail", detail)
	}
	if res.Session != nil {
		ev = ev.Str("user_id", res.Session.User.ID)
	}
	ev.Str("portal", portal.Slug).Str("outcome", string(outcome)).Msg("login attempt")

	return res
}

// evaluate walks the transitions. Precedence is fixed by the order of the
// checks: credentials, database error, missing profile, role mismatch.
func (l *Login) evaluate(ctx context.Context, portal Portal, email, password string) (LoginOutcome, *identity.Session, Role, string) {
	sess, err := l.provider.SignInWithPassword(ctx, email, password)
	if err != nil {
		if errors.Is(err, identity.ErrInvalidCredentials) {
			return OutcomeInvalidCredentials, nil, "", ""
		}
		return OutcomeDatabaseError, nil, "", err.Error()
	}

	role, err := l.verifier.RoleOf(ctx, sess.User.ID)
	switch {
	case errors.Is(err, ErrProfileNotFound):
		return OutcomeNoProfile, sess, "", ""
	case err != nil:
		return OutcomeDatabaseError, sess, "", err.Error()
	case !role.Satisfies(portal.Expected):
		return OutcomeRoleMismatch, sess, role, ""
	}
	return OutcomeSuccess, sess, role, ""
}
