package auth

import (
	"context"
	"errors"
	"log/slog"

	"github.com/go-auth-sessions/internal/domain"
	"github.com/go-auth-sessions/internal/pkg/token"
	"github.com/go-auth-sessions/internal/pkg/validate"
)

// ForgotPassword behaves identically for known and unknown addresses. Only a
// malformed request is reported; everything after that is logged.
func (s *service) ForgotPassword(ctx context.Context, req ForgotPasswordRequest) error {
	req.Email = validate.Email(req.Email)
	if err := validate.Struct(req); err != nil {
		return validationErr(err)
	}

	a, err := s.accounts.GetByEmail(ctx, req.Email)
	if err != nil {
		if !errors.Is(err, domain.ErrNotFound) {
			slog.ErrorContext(ctx, "forgot password lookup failed", "err", err)
		}
		return nil
	}

	tok, err := token.NewOpaque(32)
	if err != nil {
		slog.ErrorContext(ctx, "reset token generation failed", "err", err)
		return nil
	}
	exp := s.now().UTC().Add(s.policy.PasswordResetTTL)
	if err := s.accounts.SetResetToken(ctx, a.AccountID, token.Fingerprint(tok), exp); err != nil {
		slog.ErrorContext(ctx, "store reset token failed", "account_id", a.AccountID, "err", err)
		return nil
	}
	slog.InfoContext(ctx, "password reset requested", "account_id", a.AccountID)
	s.sendResetEmail(ctx, a, tok)
	return nil
}

// ResetPassword consumes a reset token, stores the new hash and revokes every
// session of the account.
func (s *service) ResetPassword(ctx context.Context, req ResetPasswordRequest) error {
	if err := validate.Struct(req); err != nil {
		return validationErr(err)
	}
	a, err := s.accounts.GetByResetToken(ctx, token.Fingerprint(req.Token))
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return errInvalidResetToken
		}
		return internalErr("lookup reset token", err)
	}
	if domain.Expired(a.ResetTokenExpires, s.now()) {
		return errInvalidResetToken
	}
	if err := validate.Password(req.NewPassword); err != nil {
		return validationErr(err)
	}

	pwHash, err := s.hasher.Hash(req.NewPassword)
	if err != nil {
		return internalErr("hash password", err)
	}
	if err := s.accounts.ResetPassword(ctx, a.AccountID, a.ResetToken, pwHash); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return errInvalidResetToken
		}
		return internalErr("store password", err)
	}
	if n, err := s.sessions.DeleteAllByAccount(ctx, a.AccountID); err != nil {
		slog.ErrorContext(ctx, "failed to revoke sessions after password reset", "account_id", a.AccountID, "err", err)
	} else {
		slog.InfoContext(ctx, "password reset", "account_id", a.AccountID, "sessions_revoked", n)
	}

	s.sendNotice(ctx, a, "Your password was reset",
		"The password for your account was just reset. If this was not you, contact support immediately.")
	s.publish(ctx, domain.EventPasswordReset, a)
	return nil
}

// ChangePassword requires proof of the current password even though the
// caller is already authenticated.
func (s *service) ChangePassword(ctx context.Context, accountID string, req ChangePasswordRequest) error {
	if err := validate.Struct(req); err != nil {
		return validationErr(err)
	}
	a, err := s.loadAccount(ctx, accountID)
	if err != nil {
		return err
	}
	if !s.hasher.Verify(req.CurrentPassword, a.PasswordHash) {
		return errWrongPassword
	}
	if err := validate.Password(req.NewPassword); err != nil {
		return validationErr(err)
	}
	pwHash, err := s.hasher.Hash(req.NewPassword)
	if err != nil {
		return internalErr("hash password", err)
	}
	if err := s.accounts.SetPasswordHash(ctx, a.AccountID, pwHash); err != nil {
		return internalErr("store password", err)
	}
	slog.InfoContext(ctx, "password changed", "account_id", a.AccountID)

	s.sendNotice(ctx, a, "Your password was changed",
		"The password for your account was just changed. If this was not you, reset it immediately.")
	s.publish(ctx, domain.EventPasswordChanged, a)
	return nil
}
