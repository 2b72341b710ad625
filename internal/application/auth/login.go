package auth

import (
	"context"
	"errors"
	"log/slog"

	"github.com/go-auth-sessions/internal/domain"
	"github.com/go-auth-sessions/internal/pkg/token"
	"github.com/go-auth-sessions/internal/pkg/validate"
)

// Login checks, in order: account exists, account not locked, password. A
// 2FA-enabled account gets a temp token instead of a session.
func (s *service) Login(ctx context.Context, req LoginRequest) (*LoginResult, error) {
	if err := validate.Struct(req); err != nil {
		return nil, validationErr(err)
	}

	a, err := s.accounts.GetByEmail(ctx, validate.Email(req.Email))
	if err != nil {
		if !errors.Is(err, domain.ErrNotFound) {
			return nil, internalErr("lookup account", err)
		}
		s.hasher.Verify(req.Password, s.dummyHash)
		return nil, errInvalidCredentials
	}

	if s.guard.IsLocked(a) {
		return nil, errAccountLocked
	}

	if !s.hasher.Verify(req.Password, a.PasswordHash) {
		if _, err := s.guard.RecordFailure(ctx, a); err != nil {
			return nil, internalErr("record failure", err)
		}
		return nil, errInvalidCredentials
	}

	if a.TwoFactorEnabled {
		tempTok, err := s.issueTempAuthToken(ctx, a)
		if err != nil {
			return nil, err
		}
		return &LoginResult{RequiresTwoFactor: true, TempToken: tempTok}, nil
	}

	res, err := s.completeLogin(ctx, a, req.IP, req.UserAgent)
	if err != nil {
		return nil, err
	}
	return &LoginResult{AuthResult: res}, nil
}

func (s *service) issueTempAuthToken(ctx context.Context, a *domain.Account) (string, error) {
	tempTok, err := token.NewOpaque(32)
	if err != nil {
		return "", internalErr("temp auth token", err)
	}
	exp := s.now().UTC().Add(s.policy.TempAuthTTL)
	if err := s.accounts.SetTempAuthToken(ctx, a.AccountID, token.Fingerprint(tempTok), exp); err != nil {
		return "", internalErr("store temp auth token", err)
	}
	slog.InfoContext(ctx, "second factor required", "account_id", a.AccountID)
	return tempTok, nil
}

// completeLogin is the shared tail of password login and 2FA login: reset
// the guard, stamp the login, open a session.
func (s *service) completeLogin(ctx context.Context, a *domain.Account, ip, userAgent string) (*AuthResult, error) {
	if err := s.guard.RecordSuccess(ctx, a, ip); err != nil {
		return nil, internalErr("record login", err)
	}
	now := s.now().UTC()
	a.FailedLoginAttempts = 0
	a.LockedUntil = nil
	a.LastLoginAt = &now
	a.LastLoginIP = ip

	res, err := s.startSession(ctx, a, ip, userAgent)
	if err != nil {
		return nil, err
	}
	slog.InfoContext(ctx, "login succeeded", "account_id", a.AccountID, "session_id", res.SessionID)
	return res, nil
}
