// Package tracking generates the opaque tokens handed to customers and
// calendar clients. The store's unique index is the final guard against
// collisions.
package tracking

import (
	"crypto/rand"
	"encoding/hex"
)

const tokenBytes = 16

// New returns 128 random bits as 32 lowercase hex characters.
func New() (string, error) {
	b := make([]byte, tokenBytes)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
