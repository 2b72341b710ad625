package domain

import "time"

type SecurityEventType string

const (
	EventAccountLocked     SecurityEventType = "account_locked"
	EventPasswordReset     SecurityEventType = "password_reset"
	EventPasswordChanged   SecurityEventType = "password_changed"
	EventTwoFactorEnabled  SecurityEventType = "two_factor_enabled"
	EventTwoFactorDisabled SecurityEventType = "two_factor_disabled"
	EventSessionsRevoked   SecurityEventType = "sessions_revoked"
)

// SecurityEvent is published on the notification channel when an account's
// security posture changes.
type SecurityEvent struct {
	Type       SecurityEventType `json:"type"`
	AccountID  string            `json:"account_id"`
	Email      string            `json:"email"`
	OccurredAt time.Time         `json:"occurred_at"`
}
