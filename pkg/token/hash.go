package token

import (
	"crypto/sha256"
	"encoding/hex"
)

// fingerprintLength is the number of hex characters kept by Fingerprint.
const fingerprintLength = 12

// Hash returns the hex encoded SHA-256 of a token.
func Hash(token string) string {
	h := sha256.Sum256([]byte(token))
	return hex.EncodeToString(h[:])
}

// Fingerprint returns a short, non-reversible identifier for a token that is
// safe to log. The empty token has the empty fingerprint.
func Fingerprint(token string) string {
	if token == "" {
		return ""
	}
	return Hash(token)[:fingerprintLength]
}
