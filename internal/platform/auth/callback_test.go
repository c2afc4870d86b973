package auth

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
)

func newCallback(env *testEnv, dev bool) *CallbackHandler {
	return NewCallbackHandler(CallbackConfig{
		Provider:    env.provider,
		Resolver:    env.resolver,
		Activator:   env.activator,
		Development: dev,
		Recorder:    env.recorder,
		Logger:      zerolog.Nop(),
	})
}

func serveCallback(env *testEnv, h *CallbackHandler, target string, header http.Header) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, target, nil)
	req.Host = "app.internal:8080"
	for k, vs := range header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	rec := httptest.NewRecorder()
	c := env.e.NewContext(req, rec)
	if err := h.Handle(c); err != nil {
		panic(err)
	}
	return rec
}

func TestCallback_ActivatesAndRedirects(t *testing.T) {
	env := newTestEnv()
	env.addAccount("u1", "ana@clinica.test", "secreto123", "paciente")
	env.provider.addCode("code-1", "ana@clinica.test")

	rec := serveCallback(env, newCallback(env, true), "/auth/callback?code=code-1&next=/dashboard/perfil", nil)
	if rec.Code != http.StatusFound {
		t.Fatalf("expected 302, got %d", rec.Code)
	}
	if loc := rec.Header().Get(echo.HeaderLocation); loc != "http://app.internal:8080/dashboard/perfil" {
		t.Errorf("unexpected redirect %q", loc)
	}
	if env.activator.count("u1") != 1 {
		t.Errorf("expected one activation, got %d", env.activator.count("u1"))
	}
	cookies := responseCookies(rec)
	if cookies[AccessCookie] == nil || cookies[AccessCookie].Value == "" {
		t.Error("expected the session cookies to be set")
	}
	if env.recorder.callbacks[CallbackActivated] != 1 {
		t.Errorf("expected the activation to be recorded, got %v", env.recorder.callbacks)
	}
}

func TestCallback_CodeIsSingleUse(t *testing.T) {
	env := newTestEnv()
	env.addAccount("u1", "ana@clinica.test", "secreto123", "paciente")
	env.provider.addCode("code-1", "ana@clinica.test")
	h := newCallback(env, true)

	first := serveCallback(env, h, "/auth/callback?code=code-1", nil)
	if loc := first.Header().Get(echo.HeaderLocation); loc != "http://app.internal:8080/dashboard" {
		t.Fatalf("first exchange: unexpected redirect %q", loc)
	}

	second := serveCallback(env, h, "/auth/callback?code=code-1", nil)
	want := "http://app.internal:8080/login/profesionales?error=auth-code-error"
	if loc := second.Header().Get(echo.HeaderLocation); loc != want {
		t.Errorf("second exchange: expected %q, got %q", want, loc)
	}
	if env.activator.count("u1") != 1 {
		t.Errorf("expected the profile to be activated once, got %d", env.activator.count("u1"))
	}
	if len(second.Header().Values("Set-Cookie")) != 0 {
		t.Error("a failed exchange must not set cookies")
	}
}

func TestCallback_MissingCode(t *testing.T) {
	env := newTestEnv()
	rec := serveCallback(env, newCallback(env, true), "/auth/callback", nil)

	u, err := url.Parse(rec.Header().Get(echo.HeaderLocation))
	if err != nil {
		t.Fatalf("bad location: %v", err)
	}
	if u.Path != DefaultLoginPath || u.Query().Get("error") != AuthCodeError {
		t.Errorf("unexpected redirect %s", u)
	}
	if env.recorder.callbacks[CallbackInvalidCode] != 1 {
		t.Errorf("expected invalid_code, got %v", env.recorder.callbacks)
	}
}

func TestCallback_RedirectBase(t *testing.T) {
	tests := []struct {
		name      string
		dev       bool
		forwarded string
		want      string
	}{
		{"development ignores forwarded host", true, "clinica.example.com", "http://app.internal:8080/dashboard"},
		{"production uses forwarded host", false, "clinica.example.com", "https://clinica.example.com/dashboard"},
		{"first forwarded entry wins", false, "clinica.example.com, proxy.internal", "https://clinica.example.com/dashboard"},
		{"production without forwarded host", false, "", "http://app.internal:8080/dashboard"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv()
			env.addAccount("u1", "ana@clinica.test", "secreto123", "paciente")
			env.provider.addCode("c", "ana@clinica.test")

			header := http.Header{}
			if tt.forwarded != "" {
				header.Set(headerXForwardedHost, tt.forwarded)
			}
			rec := serveCallback(env, newCallback(env, tt.dev), "/auth/callback?code=c", header)
			if loc := rec.Header().Get(echo.HeaderLocation); loc != tt.want {
				t.Errorf("expected %q, got %q", tt.want, loc)
			}
		})
	}
}

func TestCallback_UnsafeNextFallsBack(t *testing.T) {
	env := newTestEnv()
	env.addAccount("u1", "ana@clinica.test", "secreto123", "paciente")
	env.provider.addCode("c", "ana@clinica.test")

	rec := serveCallback(env, newCallback(env, true), "/auth/callback?code=c&next="+url.QueryEscape("//evil.example"), nil)
	if loc := rec.Header().Get(echo.HeaderLocation); loc != "http://app.internal:8080/dashboard" {
		t.Errorf("expected fallback to dashboard, got %q", loc)
	}
}

func TestCallback_ActivationFailure(t *testing.T) {
	env := newTestEnv()
	env.addAccount("u1", "ana@clinica.test", "secreto123", "paciente")
	env.provider.addCode("c", "ana@clinica.test")
	env.activator.err = errors.New("profile not found")

	rec := serveCallback(env, newCallback(env, true), "/auth/callback?code=c", nil)
	u, err := url.Parse(rec.Header().Get(echo.HeaderLocation))
	if err != nil {
		t.Fatalf("bad location: %v", err)
	}
	if u.Path != DefaultLoginPath {
		t.Errorf("expected the professional login, got %s", u.Path)
	}
	if got := u.Query().Get("error"); got != MsgDatabaseError+"profile not found" {
		t.Errorf("unexpected error message %q", got)
	}
	if env.provider.activeSessions() != 0 {
		t.Error("the session must be revoked when activation fails")
	}
	cookies := responseCookies(rec)
	if !expired(cookies[AccessCookie]) || !expired(cookies[RefreshCookie]) {
		t.Error("expected the session cookies to be cleared")
	}
}

func TestCallback_ResolveFailure(t *testing.T) {
	env := newTestEnv()
	env.addAccount("u1", "ana@clinica.test", "secreto123", "paciente")
	env.provider.addCode("c", "ana@clinica.test")
	env.provider.getUserErr = errBackend

	rec := serveCallback(env, newCallback(env, true), "/auth/callback?code=c", nil)
	if u, _ := url.Parse(rec.Header().Get(echo.HeaderLocation)); u.Query().Get("error") != AuthCodeError {
		t.Errorf("expected auth-code-error, got %s", u)
	}
	if env.activator.count("u1") != 0 {
		t.Error("activation must not run when the identity cannot be resolved")
	}
}

func TestSafeNext(t *testing.T) {
	tests := []struct {
		next string
		want string
	}{
		{"", "/dashboard"},
		{"/dashboard/perfil", "/dashboard/perfil"},
		{"/dashboard?tab=1", "/dashboard?tab=1"},
		{"//evil.example", "/dashboard"},
		{`/\evil.example`, "/dashboard"},
		{"https://evil.example/x", "/dashboard"},
		{"dashboard", "/dashboard"},
		{"javascript:alert(1)", "/dashboard"},
	}
	for _, tt := range tests {
		if got := SafeNext(tt.next); got != tt.want {
			t.Errorf("SafeNext(%q) = %q, want %q", tt.next, got, tt.want)
		}
	}
}
