package dynamo

// DynamoDB attribute names used in update expressions across all repos.
// Using constants prevents silent runtime bugs caused by key typos.
const (
	fieldAccountID                = "account_id"
	fieldEmail                    = "email"
	fieldPasswordHash             = "password_hash"
	fieldUpdatedAt                = "updated_at"
	fieldIsEmailVerified          = "is_email_verified"
	fieldVerificationToken        = "verification_token"
	fieldVerificationTokenExpires = "verification_token_expires"
	fieldFailedLoginAttempts      = "failed_login_attempts"
	fieldLockedUntil              = "locked_until"
	fieldResetToken               = "reset_token"
	fieldResetTokenExpires        = "reset_token_expires"
	fieldTwoFactorEnabled         = "two_factor_enabled"
	fieldTwoFactorSecret          = "two_factor_secret"
	fieldTwoFactorTempSecret      = "two_factor_temp_secret"
	fieldBackupCodeHashes         = "backup_code_hashes"
	fieldTempAuthToken            = "temp_auth_token"
	fieldTempAuthExpires          = "temp_auth_expires"
	fieldLastLoginAt              = "last_login_at"
	fieldLastLoginIP              = "last_login_ip"

	fieldSessionID = "session_id"
	fieldExpiresAt = "expires_at"
)

// GSI names on the accounts and sessions tables.
const (
	indexEmail             = "email-index"
	indexVerificationToken = "verification_token-index"
	indexResetToken        = "reset_token-index"
	indexTempAuthToken     = "temp_auth_token-index"
	indexSessionAccount    = "account_id-index"
)
