package auth

import (
	"context"
	"testing"
	"time"

	"github.com/go-auth-sessions/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVerifyEmail_Flow(t *testing.T) {
	h := newHarness(t)
	h.register(t, testEmail, testPassword)
	tok := h.mailer.lastToken(t, testEmail, "/verify-email")
	ctx := context.Background()

	require.NoError(t, h.svc.VerifyEmail(ctx, tok))
	stored := h.accounts.byEmail(t, testEmail)
	assert.True(t, stored.IsEmailVerified)
	assert.Empty(t, stored.VerificationToken)
	assert.Nil(t, stored.VerificationTokenExpires)

	assert.ErrorIs(t, h.svc.VerifyEmail(ctx, tok), domain.ErrValidation)
}

func TestVerifyEmail_Expired(t *testing.T) {
	h := newHarness(t)
	h.register(t, testEmail, testPassword)
	tok := h.mailer.lastToken(t, testEmail, "/verify-email")

	h.clock.Advance(24*time.Hour + time.Second)
	err := h.svc.VerifyEmail(context.Background(), tok)
	assert.ErrorIs(t, err, errInvalidVerificationToken)
	assert.False(t, h.accounts.byEmail(t, testEmail).IsEmailVerified)
}

func TestVerifyEmail_Unknown(t *testing.T) {
	h := newHarness(t)
	assert.ErrorIs(t, h.svc.VerifyEmail(context.Background(), ""), domain.ErrValidation)
	assert.ErrorIs(t, h.svc.VerifyEmail(context.Background(), "abc"), domain.ErrValidation)
}

func TestResendVerification(t *testing.T) {
	h := newHarness(t)
	reg := h.register(t, testEmail, testPassword)
	first := h.mailer.lastToken(t, testEmail, "/verify-email")
	ctx := context.Background()

	h.clock.Advance(23 * time.Hour)
	require.NoError(t, h.svc.ResendVerification(ctx, reg.Account.AccountID))
	second := h.mailer.lastToken(t, testEmail, "/verify-email")
	assert.NotEqual(t, first, second)

	assert.ErrorIs(t, h.svc.VerifyEmail(ctx, first), domain.ErrValidation, "old token replaced")

	h.clock.Advance(2 * time.Hour)
	require.NoError(t, h.svc.VerifyEmail(ctx, second), "fresh expiry window")

	err := h.svc.ResendVerification(ctx, reg.Account.AccountID)
	assert.ErrorIs(t, err, domain.ErrConflict)
}
