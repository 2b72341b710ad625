package domain

import "time"

// Session is one issued refresh token. ExpiresAt is stored as epoch seconds so
// it doubles as the table's TTL attribute.
type Session struct {
	SessionID        string    `json:"id" dynamodbav:"session_id"`
	AccountID        string    `json:"account_id" dynamodbav:"account_id"`
	RefreshTokenHash string    `json:"-" dynamodbav:"refresh_token_hash"`
	ExpiresAt        time.Time `json:"expires_at" dynamodbav:"expires_at,unixtime"`
	IP               string    `json:"ip" dynamodbav:"ip"`
	UserAgent        string    `json:"user_agent" dynamodbav:"user_agent"`
	CreatedAt        time.Time `json:"created" dynamodbav:"created_at"`
}

func (s *Session) ExpiredAt(now time.Time) bool {
	return !s.ExpiresAt.After(now)
}
