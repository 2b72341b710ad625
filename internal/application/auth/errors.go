package auth

import (
	"fmt"

	"github.com/go-auth-sessions/internal/domain"
)

// Errors returned for several distinct causes are package-level values so
// callers cannot tell the causes apart by message.
var (
	errInvalidCredentials       = fmt.Errorf("invalid credentials: %w", domain.ErrUnauthorized)
	errAccountLocked            = fmt.Errorf("account temporarily locked, try again later: %w", domain.ErrUnauthorized)
	errInvalidRefreshToken      = fmt.Errorf("invalid or expired refresh token: %w", domain.ErrUnauthorized)
	errInvalidVerificationToken = fmt.Errorf("invalid or expired verification token: %w", domain.ErrValidation)
	errInvalidResetToken        = fmt.Errorf("invalid or expired reset token: %w", domain.ErrValidation)
	errWrongPassword            = fmt.Errorf("current password is incorrect: %w", domain.ErrUnauthorized)
	errInvalidTwoFactorCode     = fmt.Errorf("invalid two-factor code: %w", domain.ErrUnauthorized)
	errInvalidTwoFactorSession  = fmt.Errorf("invalid or expired two-factor session: %w", domain.ErrUnauthorized)
	errTwoFactorNotInitiated    = fmt.Errorf("two-factor setup not initiated: %w", domain.ErrValidation)
	errTwoFactorNotEnabled      = fmt.Errorf("two-factor authentication is not enabled: %w", domain.ErrValidation)
	errTwoFactorAlreadyEnabled  = fmt.Errorf("two-factor authentication already enabled: %w", domain.ErrConflict)
	errEmailAlreadyVerified     = fmt.Errorf("email already verified: %w", domain.ErrConflict)
	errEmailTaken               = fmt.Errorf("email already registered: %w", domain.ErrConflict)
)

func validationErr(err error) error {
	return fmt.Errorf("%s: %w", err.Error(), domain.ErrValidation)
}

// internalErr marks a collaborator failure that the caller cannot fix.
func internalErr(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, domain.ErrInternal, err)
}
