package auth

import (
	"context"
	"errors"
	"log/slog"

	"github.com/go-auth-sessions/internal/domain"
	"github.com/go-auth-sessions/internal/pkg/id"
	"github.com/go-auth-sessions/internal/pkg/token"
	"github.com/go-auth-sessions/internal/pkg/validate"
)

// Register creates an unverified account, mails a verification link and logs
// the new account in straight away.
func (s *service) Register(ctx context.Context, req RegisterRequest) (*AuthResult, error) {
	req.Email = validate.Email(req.Email)
	if err := validate.Struct(req); err != nil {
		return nil, validationErr(err)
	}
	if err := validate.Password(req.Password); err != nil {
		return nil, validationErr(err)
	}

	_, err := s.accounts.GetByEmail(ctx, req.Email)
	if err == nil {
		return nil, errEmailTaken
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return nil, internalErr("lookup account", err)
	}

	pwHash, err := s.hasher.Hash(req.Password)
	if err != nil {
		return nil, internalErr("hash password", err)
	}
	verifyTok, err := token.NewOpaque(32)
	if err != nil {
		return nil, internalErr("verification token", err)
	}

	now := s.now().UTC()
	verifyExp := now.Add(s.policy.EmailVerificationTTL)
	a := &domain.Account{
		AccountID:                id.New(),
		Email:                    req.Email,
		Name:                     req.Name,
		PasswordHash:             pwHash,
		VerificationToken:        token.Fingerprint(verifyTok),
		VerificationTokenExpires: &verifyExp,
		CreatedAt:                now,
		UpdatedAt:                now,
	}
	if err := s.accounts.Create(ctx, a); err != nil {
		if errors.Is(err, domain.ErrConflict) {
			return nil, errEmailTaken
		}
		return nil, internalErr("create account", err)
	}
	slog.InfoContext(ctx, "account registered", "account_id", a.AccountID)

	s.sendVerificationEmail(ctx, a, verifyTok)

	return s.startSession(ctx, a, req.IP, req.UserAgent)
}
