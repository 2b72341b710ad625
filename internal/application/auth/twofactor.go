package auth

import (
	"context"
	"errors"
	"log/slog"

	"github.com/go-auth-sessions/internal/domain"
	"github.com/go-auth-sessions/internal/infrastructure/totp"
	"github.com/go-auth-sessions/internal/pkg/token"
	"github.com/go-auth-sessions/internal/pkg/validate"
)

// Enable2FA starts setup: the new secret is parked as the temporary secret
// and is not trusted until Verify2FASetup confirms a code from it.
func (s *service) Enable2FA(ctx context.Context, accountID string) (*TwoFactorSetup, error) {
	a, err := s.loadAccount(ctx, accountID)
	if err != nil {
		return nil, err
	}
	if a.TwoFactorEnabled {
		return nil, errTwoFactorAlreadyEnabled
	}
	secret, err := s.totp.GenerateSecret(a.Email)
	if err != nil {
		return nil, internalErr("generate totp secret", err)
	}
	qr, err := s.totp.QRCode(secret.OTPAuthURL)
	if err != nil {
		return nil, internalErr("render qr code", err)
	}
	if err := s.accounts.SetTwoFactorTempSecret(ctx, a.AccountID, secret.Base32); err != nil {
		return nil, internalErr("store temp secret", err)
	}
	slog.InfoContext(ctx, "two-factor setup started", "account_id", a.AccountID)
	return &TwoFactorSetup{Secret: secret.Base32, OTPAuthURL: secret.OTPAuthURL, QRCode: qr}, nil
}

// Verify2FASetup promotes the temporary secret once a code from it checks
// out and returns plaintext backup codes. They are never retrievable again.
func (s *service) Verify2FASetup(ctx context.Context, req Verify2FASetupRequest) ([]string, error) {
	req.Email = validate.Email(req.Email)
	if err := validate.Struct(req); err != nil {
		return nil, validationErr(err)
	}
	a, err := s.accounts.GetByEmail(ctx, req.Email)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, errTwoFactorNotInitiated
		}
		return nil, internalErr("lookup account", err)
	}
	if a.TwoFactorTempSecret == "" {
		return nil, errTwoFactorNotInitiated
	}
	if !s.totp.Validate(a.TwoFactorTempSecret, req.Code, s.now()) {
		return nil, errInvalidTwoFactorCode
	}

	codes, err := s.totp.BackupCodes(s.policy.BackupCodeCount)
	if err != nil {
		return nil, internalErr("generate backup codes", err)
	}
	hashes := make([]string, len(codes))
	for i, c := range codes {
		if hashes[i], err = s.hashBackupCode(c); err != nil {
			return nil, internalErr("hash backup code", err)
		}
	}
	if err := s.accounts.EnableTwoFactor(ctx, a.AccountID, a.TwoFactorTempSecret, hashes); err != nil {
		return nil, internalErr("enable two-factor", err)
	}
	slog.InfoContext(ctx, "two-factor enabled", "account_id", a.AccountID)
	s.publish(ctx, domain.EventTwoFactorEnabled, a)
	return codes, nil
}

func (s *service) Disable2FA(ctx context.Context, accountID, code string) error {
	a, err := s.loadAccount(ctx, accountID)
	if err != nil {
		return err
	}
	if !a.TwoFactorEnabled {
		return errTwoFactorNotEnabled
	}
	if !s.totp.Validate(a.TwoFactorSecret, code, s.now()) {
		return errInvalidTwoFactorCode
	}
	if err := s.accounts.DisableTwoFactor(ctx, a.AccountID); err != nil {
		return internalErr("disable two-factor", err)
	}
	slog.InfoContext(ctx, "two-factor disabled", "account_id", a.AccountID)
	s.publish(ctx, domain.EventTwoFactorDisabled, a)
	return nil
}

// Validate2FALogin finishes a login that stopped at the second factor. The
// temp token is the capability; email and password are not asked again.
// Failed codes count toward lockout like failed passwords.
func (s *service) Validate2FALogin(ctx context.Context, req Validate2FARequest) (*AuthResult, error) {
	if err := validate.Struct(req); err != nil {
		return nil, validationErr(err)
	}
	a, err := s.accounts.GetByTempAuthToken(ctx, token.Fingerprint(req.TempToken))
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, errInvalidTwoFactorSession
		}
		return nil, internalErr("lookup temp auth token", err)
	}
	if domain.Expired(a.TempAuthExpires, s.now()) || !a.TwoFactorEnabled {
		s.clearTempAuth(ctx, a)
		return nil, errInvalidTwoFactorSession
	}
	if s.guard.IsLocked(a) {
		return nil, errAccountLocked
	}

	ok, err := s.checkSecondFactor(ctx, a, req.Code)
	if err != nil {
		return nil, err
	}
	if !ok {
		locked, err := s.guard.RecordFailure(ctx, a)
		if err != nil {
			return nil, internalErr("record failure", err)
		}
		if locked {
			s.clearTempAuth(ctx, a)
		}
		return nil, errInvalidTwoFactorCode
	}

	if err := s.accounts.ClearTempAuthToken(ctx, a.AccountID, a.TempAuthToken); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, errInvalidTwoFactorSession
		}
		return nil, internalErr("consume temp auth token", err)
	}
	a.TempAuthToken = ""
	a.TempAuthExpires = nil
	return s.completeLogin(ctx, a, req.IP, req.UserAgent)
}

// checkSecondFactor accepts a current TOTP code or an unused backup code. A
// matched backup code is removed so it cannot be used twice; losing the
// removal to a concurrent login counts as a wrong code.
func (s *service) checkSecondFactor(ctx context.Context, a *domain.Account, code string) (bool, error) {
	if s.totp.Validate(a.TwoFactorSecret, code, s.now()) {
		return true, nil
	}
	if !totp.IsBackupCode(code) {
		return false, nil
	}
	normalized := totp.NormalizeBackupCode(code)
	for i, h := range a.BackupCodeHashes {
		if !s.hasher.Verify(normalized, h) {
			continue
		}
		remaining := make([]string, 0, len(a.BackupCodeHashes)-1)
		remaining = append(remaining, a.BackupCodeHashes[:i]...)
		remaining = append(remaining, a.BackupCodeHashes[i+1:]...)
		if err := s.accounts.ConsumeBackupCode(ctx, a.AccountID, h, remaining); err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				return false, nil
			}
			return false, internalErr("consume backup code", err)
		}
		a.BackupCodeHashes = remaining
		slog.InfoContext(ctx, "backup code used", "account_id", a.AccountID, "remaining", len(remaining))
		return true, nil
	}
	return false, nil
}

func (s *service) hashBackupCode(code string) (string, error) {
	if s.policy.BackupCodeCost > 0 {
		return s.hasher.HashWithCost(code, s.policy.BackupCodeCost)
	}
	return s.hasher.Hash(code)
}

func (s *service) clearTempAuth(ctx context.Context, a *domain.Account) {
	err := s.accounts.ClearTempAuthToken(ctx, a.AccountID, a.TempAuthToken)
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		slog.WarnContext(ctx, "failed to clear temp auth token", "account_id", a.AccountID, "err", err)
	}
}
