package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"

	"github.com/go-auth-sessions/internal/domain"
	"github.com/go-auth-sessions/internal/pkg/id"
	"github.com/go-auth-sessions/internal/pkg/token"
)

// startSession persists a new session and mints the token pair for it. The
// refresh token is returned once; only a hash of its secret is stored.
func (s *service) startSession(ctx context.Context, a *domain.Account, ip, userAgent string) (*AuthResult, error) {
	sessionID := id.New()
	raw, secret, err := token.NewRefreshToken(sessionID)
	if err != nil {
		return nil, internalErr("refresh token", err)
	}
	secretHash, err := s.hasher.Hash(secret)
	if err != nil {
		return nil, internalErr("hash refresh token", err)
	}
	now := s.now().UTC()
	sess := &domain.Session{
		SessionID:        sessionID,
		AccountID:        a.AccountID,
		RefreshTokenHash: secretHash,
		ExpiresAt:        now.Add(s.policy.RefreshTokenTTL),
		IP:               ip,
		UserAgent:        userAgent,
		CreatedAt:        now,
	}
	if err := s.sessions.Create(ctx, sess); err != nil {
		return nil, internalErr("create session", err)
	}
	access, err := s.tokens.Issue(a.AccountID, a.Email)
	if err != nil {
		return nil, internalErr("issue access token", err)
	}
	return &AuthResult{
		AccessToken:      access,
		RefreshToken:     raw,
		RefreshExpiresAt: sess.ExpiresAt,
		SessionID:        sessionID,
		Account:          a,
	}, nil
}

// resolveSession finds the live session a presented refresh token belongs to.
// Every failure collapses to errInvalidRefreshToken.
func (s *service) resolveSession(ctx context.Context, refreshToken string) (*domain.Session, error) {
	sessionID, secret, ok := token.SplitRefreshToken(refreshToken)
	if !ok {
		return nil, errInvalidRefreshToken
	}
	sess, err := s.sessions.Get(ctx, sessionID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, errInvalidRefreshToken
		}
		return nil, internalErr("load session", err)
	}
	if !s.hasher.Verify(secret, sess.RefreshTokenHash) {
		return nil, errInvalidRefreshToken
	}
	if sess.ExpiredAt(s.now()) {
		if err := s.sessions.Delete(ctx, sess.SessionID); err != nil && !errors.Is(err, domain.ErrNotFound) {
			slog.WarnContext(ctx, "failed to delete expired session", "session_id", sess.SessionID, "err", err)
		}
		return nil, errInvalidRefreshToken
	}
	return sess, nil
}

// Refresh consumes the presented refresh token and replaces its session with
// a new one carrying the same client metadata. When two requests race with
// the same token only the one whose delete succeeds gets new tokens.
func (s *service) Refresh(ctx context.Context, refreshToken string) (*AuthResult, error) {
	sess, err := s.resolveSession(ctx, refreshToken)
	if err != nil {
		return nil, err
	}
	a, err := s.accounts.Get(ctx, sess.AccountID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			_ = s.sessions.Delete(ctx, sess.SessionID)
			return nil, errInvalidRefreshToken
		}
		return nil, internalErr("load account", err)
	}
	if err := s.sessions.Delete(ctx, sess.SessionID); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			slog.WarnContext(ctx, "refresh token reused", "account_id", sess.AccountID, "session_id", sess.SessionID)
			return nil, errInvalidRefreshToken
		}
		return nil, internalErr("delete session", err)
	}

	res, err := s.startSession(ctx, a, sess.IP, sess.UserAgent)
	if err != nil {
		return nil, err
	}
	slog.InfoContext(ctx, "refresh token rotated", "account_id", a.AccountID, "old_session_id", sess.SessionID, "session_id", res.SessionID)
	return res, nil
}

// Logout is best effort: it never fails, so clients can always clear local state.
func (s *service) Logout(ctx context.Context, refreshToken string) {
	sess, err := s.resolveSession(ctx, refreshToken)
	if err != nil {
		slog.DebugContext(ctx, "logout with unusable refresh token", "err", err)
		return
	}
	if err := s.sessions.Delete(ctx, sess.SessionID); err != nil {
		slog.DebugContext(ctx, "logout delete failed", "session_id", sess.SessionID, "err", err)
		return
	}
	slog.InfoContext(ctx, "logged out", "account_id", sess.AccountID, "session_id", sess.SessionID)
}

func (s *service) LogoutAll(ctx context.Context, accountID string) error {
	n, err := s.sessions.DeleteAllByAccount(ctx, accountID)
	if err != nil {
		return internalErr("delete sessions", err)
	}
	slog.InfoContext(ctx, "all sessions revoked", "account_id", accountID, "count", n)
	s.publish(ctx, domain.EventSessionsRevoked, &domain.Account{AccountID: accountID})
	return nil
}

// ListSessions returns the account's live sessions, newest first.
func (s *service) ListSessions(ctx context.Context, accountID string) ([]domain.Session, error) {
	all, err := s.sessions.ListByAccount(ctx, accountID)
	if err != nil {
		return nil, internalErr("list sessions", err)
	}
	now := s.now()
	live := make([]domain.Session, 0, len(all))
	for _, sess := range all {
		if !sess.ExpiredAt(now) {
			live = append(live, sess)
		}
	}
	sort.Slice(live, func(i, j int) bool { return live[i].CreatedAt.After(live[j].CreatedAt) })
	return live, nil
}

// RevokeSession deletes one of the caller's own sessions. Another account's
// session id reads as not found.
func (s *service) RevokeSession(ctx context.Context, accountID, sessionID string) error {
	sess, err := s.sessions.Get(ctx, sessionID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return fmt.Errorf("session not found: %w", domain.ErrNotFound)
		}
		return internalErr("load session", err)
	}
	if sess.AccountID != accountID {
		return fmt.Errorf("session not found: %w", domain.ErrNotFound)
	}
	if err := s.sessions.Delete(ctx, sessionID); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return fmt.Errorf("session not found: %w", domain.ErrNotFound)
		}
		return internalErr("delete session", err)
	}
	slog.InfoContext(ctx, "session revoked", "account_id", accountID, "session_id", sessionID)
	return nil
}

func (s *service) Profile(ctx context.Context, accountID string) (*domain.Account, error) {
	return s.loadAccount(ctx, accountID)
}

// loadAccount is for authenticated paths where the account must exist.
func (s *service) loadAccount(ctx context.Context, accountID string) (*domain.Account, error) {
	a, err := s.accounts.Get(ctx, accountID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, fmt.Errorf("account not found: %w", domain.ErrNotFound)
		}
		return nil, internalErr("load account", err)
	}
	return a, nil
}
