package token

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"strings"
)

// RefreshSecretBytes is the entropy of the secret half of a refresh token.
// Base64url of 48 bytes is 64 characters, under bcrypt's 72-byte input cap.
const RefreshSecretBytes = 48

const refreshSep = "."

// NewOpaque returns n cryptographically random bytes as a hex string.
func NewOpaque(n int) (string, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate token: %w", err)
	}
	return hex.EncodeToString(b), nil
}

// Fingerprint is the at-rest form of single-use tokens (verification, reset,
// temp-auth): stable, indexable, and useless if the store leaks.
func Fingerprint(tok string) string {
	sum := sha256.Sum256([]byte(tok))
	return hex.EncodeToString(sum[:])
}

// NewRefreshToken returns "<sessionID>.<secret>" and the secret alone. Only a
// hash of the secret is persisted; the session id lets the server find the
// record without scanning.
func NewRefreshToken(sessionID string) (raw, secret string, err error) {
	b := make([]byte, RefreshSecretBytes)
	if _, err := rand.Read(b); err != nil {
		return "", "", fmt.Errorf("generate refresh token: %w", err)
	}
	secret = base64.RawURLEncoding.EncodeToString(b)
	return sessionID + refreshSep + secret, secret, nil
}

// SplitRefreshToken undoes NewRefreshToken. ok is false for anything that is
// not exactly two non-empty parts.
func SplitRefreshToken(raw string) (sessionID, secret string, ok bool) {
	sessionID, secret, found := strings.Cut(raw, refreshSep)
	if !found || sessionID == "" || secret == "" || strings.Contains(secret, refreshSep) {
		return "", "", false
	}
	return sessionID, secret, true
}
