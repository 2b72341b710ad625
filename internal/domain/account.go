package domain

import "time"

// Account is a registered user. Token fields hold sha256 fingerprints of the
// opaque values handed to the user, never the values themselves. Empty token
// strings are omitted on write so the sparse lookup indexes stay clean.
type Account struct {
	AccountID    string `json:"id" dynamodbav:"account_id"`
	Email        string `json:"email" dynamodbav:"email"`
	Name         string `json:"name" dynamodbav:"name"`
	PasswordHash string `json:"-" dynamodbav:"password_hash"`

	IsEmailVerified          bool       `json:"is_email_verified" dynamodbav:"is_email_verified"`
	VerificationToken        string     `json:"-" dynamodbav:"verification_token,omitempty"`
	VerificationTokenExpires *time.Time `json:"-" dynamodbav:"verification_token_expires,omitempty"`

	FailedLoginAttempts int        `json:"-" dynamodbav:"failed_login_attempts"`
	LockedUntil         *time.Time `json:"-" dynamodbav:"locked_until,omitempty"`

	ResetToken        string     `json:"-" dynamodbav:"reset_token,omitempty"`
	ResetTokenExpires *time.Time `json:"-" dynamodbav:"reset_token_expires,omitempty"`

	TwoFactorEnabled    bool       `json:"two_factor_enabled" dynamodbav:"two_factor_enabled"`
	TwoFactorSecret     string     `json:"-" dynamodbav:"two_factor_secret,omitempty"`
	TwoFactorTempSecret string     `json:"-" dynamodbav:"two_factor_temp_secret,omitempty"`
	BackupCodeHashes    []string   `json:"-" dynamodbav:"backup_code_hashes,omitempty"`
	TempAuthToken       string     `json:"-" dynamodbav:"temp_auth_token,omitempty"`
	TempAuthExpires     *time.Time `json:"-" dynamodbav:"temp_auth_expires,omitempty"`

	LastLoginAt *time.Time `json:"last_login_at,omitempty" dynamodbav:"last_login_at,omitempty"`
	LastLoginIP string     `json:"last_login_ip,omitempty" dynamodbav:"last_login_ip,omitempty"`
	CreatedAt   time.Time  `json:"created" dynamodbav:"created_at"`
	UpdatedAt   time.Time  `json:"updated" dynamodbav:"updated_at"`
}

// IsLockedAt reports whether the lockout window is still open at now.
// A past LockedUntil counts as unlocked.
func (a *Account) IsLockedAt(now time.Time) bool {
	return a.LockedUntil != nil && a.LockedUntil.After(now)
}

// Expired reports whether an optional expiry is missing or not after now.
func Expired(expires *time.Time, now time.Time) bool {
	return expires == nil || !expires.After(now)
}
