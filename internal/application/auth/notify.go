package auth

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"

	"github.com/go-auth-sessions/internal/domain"
)

// Mail and event delivery are awaited but never fail the surrounding flow.

func (s *service) sendVerificationEmail(ctx context.Context, a *domain.Account, tok string) {
	link := fmt.Sprintf("%s/verify-email?token=%s", s.policy.FrontendURL, url.QueryEscape(tok))
	body := fmt.Sprintf("Hi %s,\n\nConfirm your email address by opening the link below. It expires in %s.\n\n%s\n",
		a.Name, s.policy.EmailVerificationTTL, link)
	s.sendEmail(ctx, a, s.subject("Verify your email"), body)
}

func (s *service) sendResetEmail(ctx context.Context, a *domain.Account, tok string) {
	link := fmt.Sprintf("%s/reset-password?token=%s", s.policy.FrontendURL, url.QueryEscape(tok))
	body := fmt.Sprintf("Hi %s,\n\nReset your password with the link below. It expires in %s.\nIf you did not ask for this, ignore this email.\n\n%s\n",
		a.Name, s.policy.PasswordResetTTL, link)
	s.sendEmail(ctx, a, s.subject("Reset your password"), body)
}

func (s *service) sendNotice(ctx context.Context, a *domain.Account, subject, text string) {
	s.sendEmail(ctx, a, s.subject(subject), fmt.Sprintf("Hi %s,\n\n%s\n", a.Name, text))
}

func (s *service) sendEmail(ctx context.Context, a *domain.Account, subject, body string) {
	if s.mailer == nil {
		return
	}
	if err := s.mailer.SendEmail(ctx, a.Email, subject, body); err != nil {
		slog.ErrorContext(ctx, "failed to send email", "account_id", a.AccountID, "subject", subject, "err", err)
	}
}

func (s *service) subject(text string) string {
	if s.policy.AppName == "" {
		return text
	}
	return s.policy.AppName + ": " + text
}

func (s *service) publish(ctx context.Context, t domain.SecurityEventType, a *domain.Account) {
	if s.events == nil {
		return
	}
	ev := domain.SecurityEvent{Type: t, AccountID: a.AccountID, Email: a.Email, OccurredAt: s.now().UTC()}
	if err := s.events.Publish(ctx, ev); err != nil {
		slog.WarnContext(ctx, "failed to publish security event", "type", t, "account_id", a.AccountID, "err", err)
	}
}
