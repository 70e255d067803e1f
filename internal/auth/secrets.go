package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"
)

const (
	PasswordResetTTL = 10 * time.Minute
	VerificationTTL  = 24 * time.Hour

	oneTimeTokenBytes = 32
)

// NewOneTimeToken returns a random token for e-mailing and the hash to store.
// The raw value is never persisted.
func NewOneTimeToken() (raw, hash string, err error) {
	b := make([]byte, oneTimeTokenBytes)
	if _, err := rand.Read(b); err != nil {
		return "", "", fmt.Errorf("generate token: %w", err)
	}
	raw = hex.EncodeToString(b)
	return raw, HashToken(raw), nil
}

// HashToken is the sha256 hex digest stored in place of one-time and refresh tokens.
func HashToken(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}
