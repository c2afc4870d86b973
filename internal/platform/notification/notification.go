// Package notification renders and delivers account emails. Outbound
// transport is a logging sender; the verification link is the only message
// the portal sends.
package notification

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"

	"github.com/rs/zerolog"
)

// EmailSender is the interface for sending email messages.
type EmailSender interface {
	SendEmail(ctx context.Context, to, subject, body string) error
}

// Template is a message with {{key}} placeholders.
type Template struct {
	Subject string
	Body    string
}

// Render performs {{key}} replacement. Keys absent from data are left as-is.
func (t Template) Render(data map[string]string) (subject, body string) {
	subject, body = t.Subject, t.Body
	for k, v := range data {
		placeholder := "{{" + k + "}}"
		subject = strings.ReplaceAll(subject, placeholder, v)
		body = strings.ReplaceAll(body, placeholder, v)
	}
	return subject, body
}

var verificationTemplate = Template{
	Subject: "Confirma tu cuenta",
	Body:    "Hola {{nombre}}, confirma tu correo para activar tu cuenta: {{link}}",
}

// LogEmailSender writes messages to the log instead of delivering them.
type LogEmailSender struct {
	logger zerolog.Logger
}

func NewLogEmailSender(logger zerolog.Logger) *LogEmailSender {
	return &LogEmailSender{logger: logger.With().Str("component", "mailer").Logger()}
}

func (s *LogEmailSender) SendEmail(_ context.Context, to, subject, body string) error {
	s.logger.Info().Str("to", to).Str("subject", subject).Str("body", body).Msg("email queued")
	return nil
}

// VerificationMailer sends the account confirmation link pointing at the
// verification callback.
type VerificationMailer struct {
	sender  EmailSender
	siteURL string
}

func NewVerificationMailer(sender EmailSender, siteURL string) *VerificationMailer {
	return &VerificationMailer{sender: sender, siteURL: strings.TrimRight(siteURL, "/")}
}

// VerificationLink builds SITE_URL/auth/callback?code=<code>.
func (m *VerificationMailer) VerificationLink(code string) string {
	return m.siteURL + "/auth/callback?" + url.Values{"code": {code}}.Encode()
}

func (m *VerificationMailer) SendVerification(ctx context.Context, email, code string) error {
	if code == "" {
		return errors.New("empty verification code")
	}
	subject, body := verificationTemplate.Render(map[string]string{
		"nombre": email,
		"link":   m.VerificationLink(code),
	})
	if err := m.sender.SendEmail(ctx, email, subject, body); err != nil {
		return fmt.Errorf("send verification email: %w", err)
	}
	return nil
}

// EmailCall records a single SendEmail invocation.
type EmailCall struct {
	To      string
	Subject string
	Body    string
}

// MockEmailSender is a test double for EmailSender.
type MockEmailSender struct {
	mu         sync.Mutex
	calls      []EmailCall
	ShouldFail bool
}

func (m *MockEmailSender) SendEmail(_ context.Context, to, subject, body string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, EmailCall{To: to, Subject: subject, Body: body})
	if m.ShouldFail {
		return errors.New("mock email send failure")
	}
	return nil
}

// Calls returns a copy of all recorded calls.
func (m *MockEmailSender) Calls() []EmailCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]EmailCall, len(m.calls))
	copy(out, m.calls)
	return out
}
