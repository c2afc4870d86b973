package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/clinica/clinica/internal/platform/identity"
)

type fakeAccount struct {
	user     *identity.User
	password string
}

type fakeSession struct {
	id       string
	user     *identity.User
	refresh  string
	previous string
	revoked  bool
	expired  bool
}

// fakeProvider is an in-memory identity.Provider.
type fakeProvider struct {
	mu       sync.Mutex
	seq      int
	accounts map[string]*fakeAccount
	byAccess map[string]*fakeSession
	codes    map[string]string

	signInErr  error
	getUserErr error
	refreshErr error
	signOuts   int
}

func newFakeProvider() *fakeProvider {
	return &fakeProvider{
		accounts: make(map[string]*fakeAccount),
		byAccess: make(map[string]*fakeSession),
		codes:    make(map[string]string),
	}
}

func (f *fakeProvider) addUser(id, email, password string) *identity.User {
	f.mu.Lock()
	defer f.mu.Unlock()
	u := &identity.User{ID: id, Email: email}
	f.accounts[email] = &fakeAccount{user: u, password: password}
	return u
}

func (f *fakeProvider) addCode(code, email string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.codes[code] = email
}

func (f *fakeProvider) newSessionLocked(u *identity.User) *identity.Session {
	f.seq++
	s := &fakeSession{id: fmt.Sprintf("sess-%d", f.seq), user: u, refresh: fmt.Sprintf("ref-%d", f.seq)}
	access := fmt.Sprintf("acc-%d", f.seq)
	f.byAccess[access] = s
	return &identity.Session{
		ID:               s.id,
		User:             u,
		AccessToken:      access,
		AccessExpiresAt:  time.Now().Add(time.Hour),
		RefreshToken:     s.refresh,
		RefreshExpiresAt: time.Now().Add(24 * time.Hour),
	}
}

// login opens a session directly, bypassing credentials.
func (f *fakeProvider) login(email string) *identity.Session {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.newSessionLocked(f.accounts[email].user)
}

func (f *fakeProvider) expire(access string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.byAccess[access].expired = true
}

func (f *fakeProvider) activeSessions() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, s := range f.byAccess {
		if !s.revoked {
			n++
		}
	}
	return n
}

func (f *fakeProvider) SignInWithPassword(_ context.Context, email, password string) (*identity.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.signInErr != nil {
		return nil, f.signInErr
	}
	a, ok := f.accounts[email]
	if !ok || a.password != password || password == "" {
		return nil, identity.ErrInvalidCredentials
	}
	return f.newSessionLocked(a.user), nil
}

func (f *fakeProvider) SignUp(_ context.Context, email, password string, metadata map[string]string) (*identity.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.accounts[email]; ok {
		return nil, identity.ErrEmailTaken
	}
	if len(password) < 8 {
		return nil, identity.ErrWeakPassword
	}
	f.seq++
	u := &identity.User{ID: fmt.Sprintf("user-%d", f.seq), Email: email, Metadata: metadata}
	f.accounts[email] = &fakeAccount{user: u, password: password}
	return u, nil
}

func (f *fakeProvider) GetUser(_ context.Context, access string) (*identity.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getUserErr != nil {
		return nil, f.getUserErr
	}
	s, ok := f.byAccess[access]
	switch {
	case !ok:
		return nil, identity.ErrInvalidToken
	case s.expired:
		return nil, identity.ErrTokenExpired
	case s.revoked:
		return nil, identity.ErrSessionNotFound
	}
	return s.user, nil
}

// Refresh rotates like identity.Service: the token it replaced keeps
// resolving to the session, without a new refresh token.
func (f *fakeProvider) Refresh(_ context.Context, refresh string) (*identity.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.refreshErr != nil {
		return nil, f.refreshErr
	}
	for access, s := range f.byAccess {
		if s.revoked {
			continue
		}
		switch refresh {
		case s.refresh:
			delete(f.byAccess, access)
			f.seq++
			s.previous = s.refresh
			s.refresh = fmt.Sprintf("ref-%d", f.seq)
			s.expired = false
			next := fmt.Sprintf("acc-%d", f.seq)
			f.byAccess[next] = s
			return &identity.Session{
				ID: s.id, User: s.user,
				AccessToken: next, AccessExpiresAt: time.Now().Add(time.Hour),
				RefreshToken: s.refresh, RefreshExpiresAt: time.Now().Add(24 * time.Hour),
			}, nil
		case s.previous:
			f.seq++
			next := fmt.Sprintf("acc-%d", f.seq)
			f.byAccess[next] = s
			return &identity.Session{
				ID: s.id, User: s.user,
				AccessToken: next, AccessExpiresAt: time.Now().Add(time.Hour),
			}, nil
		}
	}
	return nil, identity.ErrSessionNotFound
}

func (f *fakeProvider) SignOut(_ context.Context, access string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.byAccess[access]
	if !ok {
		return identity.ErrInvalidToken
	}
	s.revoked = true
	f.signOuts++
	return nil
}

func (f *fakeProvider) ExchangeCodeForSession(_ context.Context, code string) (*identity.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	email, ok := f.codes[code]
	if !ok {
		return nil, identity.ErrInvalidCode
	}
	delete(f.codes, code)
	return f.newSessionLocked(f.accounts[email].user), nil
}

// fakeRoles is a RoleSource keyed by user id.
type fakeRoles struct {
	mu    sync.Mutex
	roles map[string]string
	err   error
	calls int
}

func (f *fakeRoles) RoleOf(_ context.Context, userID string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return "", f.err
	}
	r, ok := f.roles[userID]
	if !ok {
		return "", ErrProfileNotFound
	}
	return r, nil
}

type fakeActivator struct {
	mu     sync.Mutex
	active map[string]int
	err    error
}

func (f *fakeActivator) Activate(_ context.Context, userID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	if f.active == nil {
		f.active = make(map[string]int)
	}
	f.active[userID]++
	return nil
}

func (f *fakeActivator) count(userID string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.active[userID]
}

type fakeRecorder struct {
	mu        sync.Mutex
	logins    map[string]int
	redirects map[string]int
	callbacks map[string]int
}

func newFakeRecorder() *fakeRecorder {
	return &fakeRecorder{logins: map[string]int{}, redirects: map[string]int{}, callbacks: map[string]int{}}
}

func (r *fakeRecorder) LoginAttempt(portal, outcome string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.logins[portal+"/"+outcome]++
}

func (r *fakeRecorder) GuardRedirect(rule string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.redirects[rule]++
}

func (r *fakeRecorder) CallbackOutcome(outcome string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.callbacks[outcome]++
}

var errBackend = errors.New("connection refused")

// testEnv wires the auth components over the fakes.
type testEnv struct {
	provider  *fakeProvider
	roles     *fakeRoles
	activator *fakeActivator
	recorder  *fakeRecorder
	resolver  *Resolver
	verifier  *Verifier
	login     *Login
	e         *echo.Echo
}

func newTestEnv() *testEnv {
	env := &testEnv{
		provider:  newFakeProvider(),
		roles:     &fakeRoles{roles: map[string]string{}},
		activator: &fakeActivator{},
		recorder:  newFakeRecorder(),
		e:         echo.New(),
	}
	env.resolver = NewResolver(env.provider, CookieConfig{}, zerolog.Nop())
	env.verifier = NewVerifier(env.roles)
	env.login = NewLogin(env.provider, env.verifier, env.recorder, zerolog.Nop())
	return env
}

// addAccount registers a user with a stored role ("" means no profile).
func (env *testEnv) addAccount(id, email, password, role string) *identity.User {
	u := env.provider.addUser(id, email, password)
	if role != "" {
		env.roles.mu.Lock()
		env.roles.roles[id] = role
		env.roles.mu.Unlock()
	}
	return u
}

func withSessionCookies(req *http.Request, sess *identity.Session) {
	req.AddCookie(&http.Cookie{Name: AccessCookie, Value: sess.AccessToken})
	req.AddCookie(&http.Cookie{Name: RefreshCookie, Value: sess.RefreshToken})
}

// responseCookies indexes the Set-Cookie headers of a response by name.
func responseCookies(rec *httptest.ResponseRecorder) map[string]*http.Cookie {
	out := make(map[string]*http.Cookie)
	for _, ck := range (&http.Response{Header: rec.Header()}).Cookies() {
		out[ck.Name] = ck
	}
	return out
}

func expired(ck *http.Cookie) bool {
	return ck != nil && ck.Value == "" && ck.MaxAge < 0
}
