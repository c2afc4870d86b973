package identity

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

type fakeSession struct {
	userID       string
	refreshHash  string
	previousHash string
	refreshedAt  time.Time
	expiresAt    time.Time
	revoked      bool
}

type fakeCode struct {
	userID    string
	expiresAt time.Time
}

type fakeStore struct {
	mu       sync.Mutex
	now      func() time.Time
	users    map[string]*User
	hashes   map[string]string
	sessions map[string]*fakeSession
	codes    map[string]fakeCode
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		now:      time.Now,
		users:    make(map[string]*User),
		hashes:   make(map[string]string),
		sessions: make(map[string]*fakeSession),
		codes:    make(map[string]fakeCode),
	}
}

func (f *fakeStore) CreateUser(_ context.Context, email, passwordHash string, metadata map[string]string, codeHash string, codeExpiresAt time.Time) (*User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.users {
		if strings.EqualFold(u.Email, email) {
			return nil, ErrEmailTaken
		}
	}
	u := &User{ID: uuid.New().String(), Email: email, Metadata: metadata, CreatedAt: f.now()}
	f.users[u.ID] = u
	f.hashes[u.ID] = passwordHash
	f.codes[codeHash] = fakeCode{userID: u.ID, expiresAt: codeExpiresAt}
	return u, nil
}

func (f *fakeStore) DeleteUser(_ context.Context, userID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if u, ok := f.users[userID]; !ok || u.EmailConfirmedAt != nil {
		return nil
	}
	delete(f.users, userID)
	delete(f.hashes, userID)
	for h, c := range f.codes {
		if c.userID == userID {
			delete(f.codes, h)
		}
	}
	for id, s := range f.sessions {
		if s.userID == userID {
			delete(f.sessions, id)
		}
	}
	return nil
}

func (f *fakeStore) userCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.users)
}

func (f *fakeStore) codeCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.codes)
}

func (f *fakeStore) UserByEmail(_ context.Context, email string) (*User, string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.users {
		if strings.EqualFold(u.Email, email) {
			return u, f.hashes[u.ID], nil
		}
	}
	return nil, "", ErrUserNotFound
}

func (f *fakeStore) ConfirmEmail(_ context.Context, userID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if u, ok := f.users[userID]; ok && u.EmailConfirmedAt == nil {
		t := f.now()
		u.EmailConfirmedAt = &t
	}
	return nil
}

func (f *fakeStore) CreateSession(_ context.Context, userID, refreshHash string, expiresAt time.Time) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	id := uuid.New().String()
	f.sessions[id] = &fakeSession{userID: userID, refreshHash: refreshHash, refreshedAt: f.now(), expiresAt: expiresAt}
	return id, nil
}

func (f *fakeStore) ActiveSessionUser(_ context.Context, sessionID, userID string) (*User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.sessions[sessionID]
	if !ok || s.revoked || s.userID != userID || !s.expiresAt.After(f.now()) {
		return nil, ErrSessionNotFound
	}
	return f.users[userID], nil
}

func (f *fakeStore) RotateRefresh(_ context.Context, oldHash, newHash string, expiresAt time.Time, reuseWindow time.Duration) (Rotation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	now := f.now()
	for id, s := range f.sessions {
		if s.revoked || !s.expiresAt.After(now) {
			continue
		}
		if s.refreshHash == oldHash {
			s.previousHash = oldHash
			s.refreshHash = newHash
			s.refreshedAt = now
			s.expiresAt = expiresAt
			return Rotation{SessionID: id, UserID: s.userID}, nil
		}
		if s.previousHash == oldHash && s.refreshedAt.After(now.Add(-reuseWindow)) {
			return Rotation{SessionID: id, UserID: s.userID, Reused: true}, nil
		}
	}
	return Rotation{}, ErrSessionNotFound
}

func (f *fakeStore) RevokeSession(_ context.Context, sessionID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if s, ok := f.sessions[sessionID]; ok {
		s.revoked = true
	}
	return nil
}

func (f *fakeStore) ConsumeCode(_ context.Context, codeHash string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.codes[codeHash]
	if !ok || !c.expiresAt.After(f.now()) {
		return "", ErrInvalidCode
	}
	delete(f.codes, codeHash)
	return c.userID, nil
}

// captureSender records the last code sent per email.
type captureSender struct {
	mu    sync.Mutex
	codes map[string]string
	err   error
}

func (c *captureSender) SendVerification(_ context.Context, email, code string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return c.err
	}
	if c.codes == nil {
		c.codes = make(map[string]string)
	}
	c.codes[email] = code
	return nil
}

func (c *captureSender) code(email string) string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.codes[email]
}
