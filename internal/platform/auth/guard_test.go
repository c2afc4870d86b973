package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/clinica/clinica/internal/platform/identity"
)

// newGuardedServer mounts the guard in front of a handler that reports the
// caller it saw.
func newGuardedServer(env *testEnv) (*echo.Echo, *int) {
	e := echo.New()
	e.Use(Guard(GuardConfig{
		Resolver: env.resolver,
		Verifier: env.verifier,
		Recorder: env.recorder,
		Logger:   zerolog.Nop(),
	}))
	hits := new(int)
	h := func(c echo.Context) error {
		*hits++
		return c.String(http.StatusOK, "caller="+CallerFromContext(c))
	}
	for _, p := range []string{
		"/health", "/metrics", "/auth/callback", "/static/app.css",
		"/dashboard", "/dashboard/perfil", "/admin", "/admin/perfiles",
		"/ingreso", "/login", "/login/profesionales", "/login/pacientes", "/",
	} {
		e.GET(p, h)
	}
	return e, hits
}

func serveGuarded(e *echo.Echo, path string, sess *identity.Session) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if sess != nil {
		withSessionCookies(req, sess)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestGuard_AnonymousProtectedPaths(t *testing.T) {
	env := newTestEnv()
	e, hits := newGuardedServer(env)

	for _, path := range []string{"/dashboard", "/dashboard/perfil", "/admin", "/admin/perfiles"} {
		rec := serveGuarded(e, path, nil)
		if rec.Code != http.StatusFound {
			t.Errorf("%s: expected 302, got %d", path, rec.Code)
		}
		if loc := rec.Header().Get(echo.HeaderLocation); loc != LoginChooserPath {
			t.Errorf("%s: expected redirect to %s, got %q", path, LoginChooserPath, loc)
		}
	}
	if *hits != 0 {
		t.Errorf("page logic must not run for anonymous protected paths, ran %d times", *hits)
	}
	if env.recorder.redirects[RuleDashboardAnonymous] != 2 || env.recorder.redirects[RuleAdminAnonymous] != 2 {
		t.Errorf("unexpected redirect counts: %v", env.recorder.redirects)
	}
}

func TestGuard_NonAdminOnAdminPath(t *testing.T) {
	for _, role := range []string{"medico", "paciente"} {
		t.Run(role, func(t *testing.T) {
			env := newTestEnv()
			env.addAccount("u1", "u1@clinica.test", "secreto123", role)
			sess := env.provider.login("u1@clinica.test")
			e, hits := newGuardedServer(env)

			rec := serveGuarded(e, "/admin/perfiles", sess)
			if rec.Code != http.StatusFound {
				t.Fatalf("expected 302, got %d", rec.Code)
			}
			if loc := rec.Header().Get(echo.HeaderLocation); loc != DashboardPrefix {
				t.Errorf("expected redirect to %s, got %q", DashboardPrefix, loc)
			}
			if *hits != 0 {
				t.Error("admin page must not run for a non-admin")
			}
		})
	}
}

func TestGuard_AdminAllowed(t *testing.T) {
	env := newTestEnv()
	env.addAccount("root", "root@clinica.test", "secreto123", " Admin")
	sess := env.provider.login("root@clinica.test")
	e, hits := newGuardedServer(env)

	rec := serveGuarded(e, "/admin/perfiles", sess)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if *hits != 1 || rec.Body.String() != "caller=root" {
		t.Errorf("expected the admin page to run for root, got %q", rec.Body.String())
	}
}

func TestGuard_RoleLookupFailureOnAdmin(t *testing.T) {
	env := newTestEnv()
	env.addAccount("root", "root@clinica.test", "secreto123", "admin")
	env.roles.err = errBackend
	sess := env.provider.login("root@clinica.test")
	e, _ := newGuardedServer(env)

	rec := serveGuarded(e, "/admin", sess)
	if rec.Code != http.StatusFound || rec.Header().Get(echo.HeaderLocation) != DashboardPrefix {
		t.Errorf("expected redirect to dashboard on lookup failure, got %d %q",
			rec.Code, rec.Header().Get(echo.HeaderLocation))
	}
	if env.recorder.redirects[RuleAdminForbidden] != 1 {
		t.Errorf("expected admin_forbidden to be recorded, got %v", env.recorder.redirects)
	}
}

func TestGuard_MissingProfileOnAdmin(t *testing.T) {
	env := newTestEnv()
	env.addAccount("u1", "u1@clinica.test", "secreto123", "")
	sess := env.provider.login("u1@clinica.test")
	e, _ := newGuardedServer(env)

	rec := serveGuarded(e, "/admin", sess)
	if rec.Header().Get(echo.HeaderLocation) != DashboardPrefix {
		t.Errorf("expected redirect to dashboard, got %q", rec.Header().Get(echo.HeaderLocation))
	}
}

func TestGuard_DashboardSkipsRoleLookup(t *testing.T) {
	env := newTestEnv()
	env.addAccount("u1", "u1@clinica.test", "secreto123", "paciente")
	sess := env.provider.login("u1@clinica.test")
	e, _ := newGuardedServer(env)

	rec := serveGuarded(e, "/dashboard", sess)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if rec.Body.String() != "caller=u1" {
		t.Errorf("expected the caller on the context, got %q", rec.Body.String())
	}
	if env.roles.calls != 0 {
		t.Errorf("expected no role lookup outside admin paths, got %d", env.roles.calls)
	}
}

func TestGuard_AuthenticatedOnLoginPages(t *testing.T) {
	env := newTestEnv()
	env.addAccount("u1", "u1@clinica.test", "secreto123", "medico")
	sess := env.provider.login("u1@clinica.test")
	e, hits := newGuardedServer(env)

	for _, path := range []string{"/ingreso", "/login", "/login/profesionales", "/login/pacientes"} {
		rec := serveGuarded(e, path, sess)
		if rec.Code != http.StatusFound || rec.Header().Get(echo.HeaderLocation) != DashboardPrefix {
			t.Errorf("%s: expected redirect to dashboard, got %d %q",
				path, rec.Code, rec.Header().Get(echo.HeaderLocation))
		}
	}
	if *hits != 0 {
		t.Error("login pages must not render for an authenticated caller")
	}
}

func TestGuard_BareLoginRedirect(t *testing.T) {
	env := newTestEnv()
	e, _ := newGuardedServer(env)

	tests := []struct {
		path string
		want string
	}{
		{"/login", "/login/profesionales"},
		{"/login?error=x", "/login/profesionales?error=x"},
		{"/login?a=1&b=dos", "/login/profesionales?a=1&b=dos"},
	}
	for _, tt := range tests {
		rec := serveGuarded(e, tt.path, nil)
		if rec.Code != http.StatusFound {
			t.Errorf("%s: expected 302, got %d", tt.path, rec.Code)
		}
		if loc := rec.Header().Get(echo.HeaderLocation); loc != tt.want {
			t.Errorf("%s: expected %q, got %q", tt.path, tt.want, loc)
		}
	}
}

func TestGuard_AnonymousOpenPages(t *testing.T) {
	env := newTestEnv()
	e, hits := newGuardedServer(env)

	for _, path := range []string{"/", "/ingreso", "/login/profesionales", "/login/pacientes"} {
		if rec := serveGuarded(e, path, nil); rec.Code != http.StatusOK {
			t.Errorf("%s: expected 200, got %d", path, rec.Code)
		}
	}
	if *hits != 4 {
		t.Errorf("expected 4 page hits, got %d", *hits)
	}
}

func TestGuard_PublicPathsSkipResolution(t *testing.T) {
	env := newTestEnv()
	env.provider.getUserErr = errBackend
	e, _ := newGuardedServer(env)
	stale := &identity.Session{AccessToken: "acc-x", RefreshToken: "ref-x"}

	for _, path := range []string{"/health", "/metrics", "/auth/callback", "/static/app.css"} {
		rec := serveGuarded(e, path, stale)
		if rec.Code != http.StatusOK {
			t.Errorf("%s: expected 200, got %d", path, rec.Code)
		}
		if len(rec.Header().Values("Set-Cookie")) != 0 {
			t.Errorf("%s: public paths must not touch cookies", path)
		}
	}
}

func TestGuard_ResolutionFailureTreatedAsAnonymous(t *testing.T) {
	env := newTestEnv()
	env.provider.getUserErr = errBackend
	e, _ := newGuardedServer(env)

	rec := serveGuarded(e, "/dashboard", &identity.Session{AccessToken: "acc-1"})
	if rec.Header().Get(echo.HeaderLocation) != LoginChooserPath {
		t.Errorf("expected redirect to chooser, got %q", rec.Header().Get(echo.HeaderLocation))
	}
}

func TestGuard_RefreshesExpiredAccess(t *testing.T) {
	env := newTestEnv()
	env.addAccount("u1", "u1@clinica.test", "secreto123", "paciente")
	sess := env.provider.login("u1@clinica.test")
	env.provider.expire(sess.AccessToken)
	e, _ := newGuardedServer(env)

	rec := serveGuarded(e, "/dashboard", sess)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 after refresh, got %d", rec.Code)
	}
	if ck := responseCookies(rec)[AccessCookie]; ck == nil || ck.Value == sess.AccessToken {
		t.Error("expected a rotated access cookie on the response")
	}
}
