// Package guard implements the account lockout state machine: an account is
// Active until MaxAttempts consecutive password failures move it to
// Locked(until). Expiry is lazy; a past lockedUntil simply reads as unlocked.
package guard

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-auth-sessions/internal/domain"
)

const (
	DefaultMaxAttempts  = 5
	DefaultLockDuration = 30 * time.Minute
)

// Store is the slice of the account store the guard mutates.
type Store interface {
	RecordFailedLogin(ctx context.Context, accountID string) (int, error)
	Lock(ctx context.Context, accountID string, until time.Time) error
	RecordSuccessfulLogin(ctx context.Context, accountID, ip string, at time.Time) error
}

type EventPublisher interface {
	Publish(ctx context.Context, ev domain.SecurityEvent) error
}

type Config struct {
	MaxAttempts  int
	LockDuration time.Duration
	Events       EventPublisher // optional
	Now          func() time.Time
}

type Guard struct {
	store        Store
	events       EventPublisher
	maxAttempts  int
	lockDuration time.Duration
	now          func() time.Time
}

func New(store Store, cfg Config) *Guard {
	g := &Guard{
		store:        store,
		events:       cfg.Events,
		maxAttempts:  cfg.MaxAttempts,
		lockDuration: cfg.LockDuration,
		now:          cfg.Now,
	}
	if g.maxAttempts <= 0 {
		g.maxAttempts = DefaultMaxAttempts
	}
	if g.lockDuration <= 0 {
		g.lockDuration = DefaultLockDuration
	}
	if g.now == nil {
		g.now = time.Now
	}
	return g
}

func (g *Guard) IsLocked(a *domain.Account) bool {
	return a.IsLockedAt(g.now())
}

// RecordFailure counts one failed credential check and locks the account
// when the threshold is reached. It reports whether this failure locked it.
func (g *Guard) RecordFailure(ctx context.Context, a *domain.Account) (bool, error) {
	n, err := g.store.RecordFailedLogin(ctx, a.AccountID)
	if err != nil {
		return false, fmt.Errorf("record failed login: %w", err)
	}
	if n < g.maxAttempts {
		return false, nil
	}
	now := g.now()
	until := now.Add(g.lockDuration)
	if err := g.store.Lock(ctx, a.AccountID, until); err != nil {
		return false, fmt.Errorf("lock account: %w", err)
	}
	slog.WarnContext(ctx, "account locked", "account_id", a.AccountID, "until", until)
	if g.events != nil {
		ev := domain.SecurityEvent{Type: domain.EventAccountLocked, AccountID: a.AccountID, Email: a.Email, OccurredAt: now}
		if err := g.events.Publish(ctx, ev); err != nil {
			slog.WarnContext(ctx, "failed to publish security event", "type", ev.Type, "account_id", a.AccountID, "err", err)
		}
	}
	return true, nil
}

// RecordSuccess resets the counter, clears any lock and stamps the login.
func (g *Guard) RecordSuccess(ctx context.Context, a *domain.Account, ip string) error {
	if err := g.store.RecordSuccessfulLogin(ctx, a.AccountID, ip, g.now().UTC()); err != nil {
		return fmt.Errorf("record successful login: %w", err)
	}
	return nil
}
