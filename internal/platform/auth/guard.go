package auth

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
)

// Guard redirect rules, also used as metric labels.
const (
	RuleDashboardAnonymous = "dashboard_anonymous"
	RuleAdminAnonymous     = "admin_anonymous"
	RuleAdminForbidden     = "admin_forbidden"
	RuleLoginAuthenticated = "login_authenticated"
	RuleBareLogin          = "bare_login"
)

// GuardConfig wires the route guard.
type GuardConfig struct {
	Resolver *Resolver
	Verifier *Verifier
	Recorder Recorder
	Logger   zerolog.Logger
}

// Guard runs before any page logic. It resolves the caller, attaches it to the
// request context and issues at most one redirect; the first matching rule
// wins:
//
//  1. dashboard path, anonymous          -> login chooser
//  2. admin path, anonymous              -> login chooser
//  3. admin path, role other than admin  -> dashboard
//  4. login page, authenticated          -> dashboard
//  5. bare /login                        -> professional login
//
// The role is only looked up for admin paths. Handlers further down can still
// ask for it through CallerRole.
func Guard(cfg GuardConfig) echo.MiddlewareFunc {
	rec := recorderOrNop(cfg.Recorder)
	logger := cfg.Logger.With().Str("component", "guard").Logger()

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			path := req.URL.Path
			if IsPublicPath(path) {
				return next(c)
			}

			user, err := cfg.Resolver.Resolve(c)
			if err != nil {
				logger.Error().Err(err).Str("path", path).Msg("session resolution failed")
				user = nil
			}

			if user != nil {
				ctx := WithUser(req.Context(), user)
				ctx = withRoleLoader(ctx, func(ctx context.Context) (Role, error) {
					return cfg.Verifier.RoleOf(ctx, user.ID)
				})
				c.SetRequest(req.WithContext(ctx))
			}

			redirect := func(rule, target string) error {
				rec.GuardRedirect(rule)
				return c.Redirect(http.StatusFound, target)
			}

			dashboard := underPrefix(path, DashboardPrefix)
			admin := underPrefix(path, AdminPrefix)

			switch {
			case dashboard && user == nil:
				return redirect(RuleDashboardAnonymous, LoginChooserPath)
			case admin && user == nil:
				return redirect(RuleAdminAnonymous, LoginChooserPath)
			case admin:
				role, err := CallerRole(c.Request().Context())
				if err != nil {
					logger.Warn().Err(err).Str("user_id", user.ID).Msg("role lookup failed on admin path")
				}
				if err != nil || role != RoleAdmin {
					return redirect(RuleAdminForbidden, DashboardPrefix)
				}
			case IsLoginPage(path) && user != nil:
				return redirect(RuleLoginAuthenticated, DashboardPrefix)
			case path == LoginPath:
				target := DefaultLoginPath
				if q := req.URL.RawQuery; q != "" {
					target += "?" + q
				}
				return redirect(RuleBareLogin, target)
			}

			return next(c)
		}
	}
}

// CallerFromContext is the id the database scope runs under.
func CallerFromContext(c echo.Context) string {
	return UserIDFromContext(c.Request().Context())
}
