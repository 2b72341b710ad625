package hash

import (
	"crypto/sha256"
	"encoding/base64"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// DefaultCost matches twelve bcrypt rounds.
const DefaultCost = 12

// Hasher is the one-way credential hasher used for passwords, refresh-token
// secrets and backup codes.
//
// Input is reduced to base64(sha256(plaintext)) before bcrypt so a 128-character
// password never hits bcrypt's 72-byte limit. The reduction is applied on both
// Hash and Verify, so it is invisible to callers.
type Hasher struct {
	cost int
}

func New(cost int) *Hasher {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = DefaultCost
	}
	return &Hasher{cost: cost}
}

func (h *Hasher) Hash(plaintext string) (string, error) {
	return h.HashWithCost(plaintext, h.cost)
}

// HashWithCost overrides the work factor for a single call. Backup codes use a
// lower cost than passwords because ten are hashed at once.
func (h *Hasher) HashWithCost(plaintext string, cost int) (string, error) {
	out, err := bcrypt.GenerateFromPassword(reduce(plaintext), cost)
	if err != nil {
		return "", fmt.Errorf("hash credential: %w", err)
	}
	return string(out), nil
}

// Verify reports whether plaintext matches hashed. A malformed or empty hash is
// a plain mismatch.
func (h *Hasher) Verify(plaintext, hashed string) bool {
	if hashed == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(hashed), reduce(plaintext)) == nil
}

func reduce(plaintext string) []byte {
	sum := sha256.Sum256([]byte(plaintext))
	return []byte(base64.StdEncoding.EncodeToString(sum[:]))
}
