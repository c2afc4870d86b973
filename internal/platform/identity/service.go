package identity

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"
)

const (
	minPasswordLen = 8

	defaultRefreshReuseWindow = 10 * time.Second
)

// ServiceConfig holds the lifetimes the service issues credentials with.
type ServiceConfig struct {
	RefreshTTL time.Duration
	CodeTTL    time.Duration
	// RefreshReuseWindow is how long a rotated refresh token still resolves
	// to its session, for parallel requests that carried the same cookie.
	// Defaults to 10s.
	RefreshReuseWindow time.Duration
	// HashCost defaults to bcrypt.DefaultCost.
	HashCost int
}

// Service is the Postgres-backed Provider.
type Service struct {
	store  Store
	tokens *TokenIssuer
	sender VerificationSender
	cfg    ServiceConfig
	logger zerolog.Logger
	now    func() time.Time

	// dummyHash is compared against when the email is unknown so a miss costs
	// as much as a wrong password.
	dummyHash []byte
}

func NewService(store Store, tokens *TokenIssuer, sender VerificationSender, cfg ServiceConfig, logger zerolog.Logger) (*Service, error) {
	if cfg.HashCost == 0 {
		cfg.HashCost = bcrypt.DefaultCost
	}
	if cfg.RefreshReuseWindow == 0 {
		cfg.RefreshReuseWindow = defaultRefreshReuseWindow
	}
	dummy, err := bcrypt.GenerateFromPassword([]byte("clinica-dummy-password"), cfg.HashCost)
	if err != nil {
		return nil, fmt.Errorf("prepare dummy hash: %w", err)
	}
	return &Service{
		store:     store,
		tokens:    tokens,
		sender:    sender,
		cfg:       cfg,
		logger:    logger.With().Str("component", "identity").Logger(),
		now:       time.Now,
		dummyHash: dummy,
	}, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func (s *Service) SignInWithPassword(ctx context.Context, email, password string) (*Session, error) {
	email = normalizeEmail(email)
	if email == "" || password == "" {
		return nil, ErrInvalidCredentials
	}

	user, hash, err := s.store.UserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			_ = bcrypt.CompareHashAndPassword(s.dummyHash, []byte(password))
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("look up user: %w", err)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}

	return s.openSession(ctx, user.ID, user)
}

func (s *Service) SignUp(ctx context.Context, email, password string, metadata map[string]string) (*User, error) {
	email = normalizeEmail(email)
	if _, err := mail.ParseAddress(email); err != nil {
		return nil, ErrInvalidEmail
	}
	if len(password) < minPasswordLen {
		return nil, ErrWeakPassword
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cfg.HashCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	code, err := newOpaqueToken()
	if err != nil {
		return nil, err
	}
	user, err := s.store.CreateUser(ctx, email, string(hash), metadata, hashToken(code), s.now().Add(s.cfg.CodeTTL))
	if err != nil {
		return nil, err
	}

	// Without the mail the identity can never be confirmed; drop it so the
	// same email can register again.
	if err := s.sender.SendVerification(ctx, user.Email, code); err != nil {
		if derr := s.store.DeleteUser(context.WithoutCancel(ctx), user.ID); derr != nil {
			s.logger.Error().Err(derr).Str("user_id", user.ID).Msg("failed to remove unverifiable user")
		}
		return nil, fmt.Errorf("send verification: %w", err)
	}

	s.logger.Info().Str("user_id", user.ID).Msg("user registered")
	return user, nil
}

func (s *Service) GetUser(ctx context.Context, accessToken string) (*User, error) {
	claims, err := s.tokens.Parse(accessToken)
	if err != nil {
		return nil, err
	}
	return s.store.ActiveSessionUser(ctx, claims.SessionID, claims.Subject)
}

func (s *Service) Refresh(ctx context.Context, refreshToken string) (*Session, error) {
	if refreshToken == "" {
		return nil, ErrSessionNotFound
	}
	next, err := newOpaqueToken()
	if err != nil {
		return nil, err
	}
	refreshExp := s.now().Add(s.cfg.RefreshTTL)

	rot, err := s.store.RotateRefresh(ctx, hashToken(refreshToken), hashToken(next), refreshExp, s.cfg.RefreshReuseWindow)
	if err != nil {
		return nil, err
	}
	user, err := s.store.ActiveSessionUser(ctx, rot.SessionID, rot.UserID)
	if err != nil {
		return nil, err
	}

	access, accessExp, err := s.tokens.Issue(user.ID, rot.SessionID)
	if err != nil {
		return nil, err
	}
	sess := &Session{
		ID:              rot.SessionID,
		User:            user,
		AccessToken:     access,
		AccessExpiresAt: accessExp,
	}
	// A reused token gets a fresh access token only; the refresh token the
	// winning request received stays the current one.
	if !rot.Reused {
		sess.RefreshToken = next
		sess.RefreshExpiresAt = refreshExp
	}
	return sess, nil
}

func (s *Service) SignOut(ctx context.Context, accessToken string) error {
	claims, err := s.tokens.ParseIgnoringExpiry(accessToken)
	if err != nil {
		return err
	}
	if err := s.store.RevokeSession(ctx, claims.SessionID); err != nil {
		return fmt.Errorf("revoke session: %w", err)
	}
	s.logger.Info().Str("user_id", claims.Subject).Str("session_id", claims.SessionID).Msg("session revoked")
	return nil
}

func (s *Service) ExchangeCodeForSession(ctx context.Context, code string) (*Session, error) {
	if strings.TrimSpace(code) == "" {
		return nil, ErrInvalidCode
	}
	userID, err := s.store.ConsumeCode(ctx, hashToken(code))
	if err != nil {
		return nil, err
	}
	if err := s.store.ConfirmEmail(ctx, userID); err != nil {
		return nil, fmt.Errorf("confirm email: %w", err)
	}

	sess, err := s.openSession(ctx, userID, nil)
	if err != nil {
		return nil, err
	}
	s.logger.Info().Str("user_id", userID).Msg("verification code exchanged")
	return sess, nil
}

// openSession creates a session row and its credential pair. A nil user is
// loaded through the same active-session query GetUser uses.
func (s *Service) openSession(ctx context.Context, userID string, user *User) (*Session, error) {
	refresh, err := newOpaqueToken()
	if err != nil {
		return nil, err
	}
	refreshExp := s.now().Add(s.cfg.RefreshTTL)
	sessionID, err := s.store.CreateSession(ctx, userID, hashToken(refresh), refreshExp)
	if err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}
	if user == nil {
		if user, err = s.store.ActiveSessionUser(ctx, sessionID, userID); err != nil {
			return nil, err
		}
	}

	access, accessExp, err := s.tokens.Issue(userID, sessionID)
	if err != nil {
		return nil, err
	}
	return &Session{
		ID:               sessionID,
		User:             user,
		AccessToken:      access,
		AccessExpiresAt:  accessExp,
		RefreshToken:     refresh,
		RefreshExpiresAt: refreshExp,
	}, nil
}
