package auth

import (
	"time"

	"github.com/go-auth-sessions/internal/domain"
)

type RegisterRequest struct {
	Email     string `json:"email" validate:"required,email,max=254"`
	Password  string `json:"password" validate:"required"`
	Name      string `json:"name" validate:"required,max=100"`
	IP        string `json:"-"`
	UserAgent string `json:"-"`
}

type LoginRequest struct {
	Email     string `json:"email" validate:"required"`
	Password  string `json:"password" validate:"required"`
	IP        string `json:"-"`
	UserAgent string `json:"-"`
}

type ForgotPasswordRequest struct {
	Email string `json:"email" validate:"required,email"`
}

type ResetPasswordRequest struct {
	Token       string `json:"token" validate:"required"`
	NewPassword string `json:"new_password" validate:"required"`
}

type ChangePasswordRequest struct {
	CurrentPassword string `json:"current_password" validate:"required"`
	NewPassword     string `json:"new_password" validate:"required"`
}

// Verify2FASetupRequest confirms a pending secret. Email selects the account.
type Verify2FASetupRequest struct {
	Email string `json:"email" validate:"required"`
	Code  string `json:"code" validate:"required"`
}

type Validate2FARequest struct {
	TempToken string `json:"temp_token" validate:"required"`
	Code      string `json:"code" validate:"required"`
	IP        string `json:"-"`
	UserAgent string `json:"-"`
}

// AuthResult is a freshly minted token pair for an authenticated session.
type AuthResult struct {
	AccessToken      string
	RefreshToken     string
	RefreshExpiresAt time.Time
	SessionID        string
	Account          *domain.Account
}

// LoginResult carries either tokens or a second-factor challenge.
type LoginResult struct {
	*AuthResult
	RequiresTwoFactor bool
	TempToken         string
}

type TwoFactorSetup struct {
	Secret     string
	OTPAuthURL string
	QRCode     string // PNG data URL of OTPAuthURL
}
