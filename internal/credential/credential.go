// Package credential generates the rotating token / stable PIN pair that a
// session hands out to prove physical presence.
package credential

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"math/big"
)

// tokenBytes is the amount of randomness behind a session token.
const tokenBytes = 16

// NewToken returns a fresh opaque session token: 16 bytes of
// cryptographically strong randomness, hex encoded.
func NewToken() (string, error) {
	buf := make([]byte, tokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("credential: token generation: %w", err)
	}
	return hex.EncodeToString(buf), nil
}

// NewPIN returns a 4-digit PIN drawn uniformly from [1000, 9999].
// The PIN is issued once at session creation and never rotated.
func NewPIN() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(9000))
	if err != nil {
		return "", fmt.Errorf("credential: pin generation: %w", err)
	}
	return fmt.Sprintf("%d", 1000+n.Int64()), nil
}
