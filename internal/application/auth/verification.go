package auth

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/go-auth-sessions/internal/domain"
	"github.com/go-auth-sessions/internal/pkg/token"
)

func (s *service) VerifyEmail(ctx context.Context, tok string) error {
	tok = strings.TrimSpace(tok)
	if tok == "" {
		return errInvalidVerificationToken
	}
	a, err := s.accounts.GetByVerificationToken(ctx, token.Fingerprint(tok))
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return errInvalidVerificationToken
		}
		return internalErr("lookup verification token", err)
	}
	if domain.Expired(a.VerificationTokenExpires, s.now()) {
		return errInvalidVerificationToken
	}
	if err := s.accounts.MarkEmailVerified(ctx, a.AccountID, a.VerificationToken); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return errInvalidVerificationToken
		}
		return internalErr("mark email verified", err)
	}
	slog.InfoContext(ctx, "email verified", "account_id", a.AccountID)
	return nil
}

// ResendVerification replaces any outstanding verification token with a
// fresh one and mails it.
func (s *service) ResendVerification(ctx context.Context, accountID string) error {
	a, err := s.loadAccount(ctx, accountID)
	if err != nil {
		return err
	}
	if a.IsEmailVerified {
		return errEmailAlreadyVerified
	}
	tok, err := token.NewOpaque(32)
	if err != nil {
		return internalErr("verification token", err)
	}
	exp := s.now().UTC().Add(s.policy.EmailVerificationTTL)
	if err := s.accounts.SetVerificationToken(ctx, a.AccountID, token.Fingerprint(tok), exp); err != nil {
		return internalErr("store verification token", err)
	}
	s.sendVerificationEmail(ctx, a, tok)
	return nil
}
