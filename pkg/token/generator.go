package token

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
)

// AccessTokenLength is the number of random bytes in a minted access token.
const AccessTokenLength = 16

// Generate mints a new access token.
func Generate() (string, error) {
	return GenerateWithLength(AccessTokenLength)
}

// GenerateWithLength mints a token from length random bytes.
func GenerateWithLength(length int) (string, error) {
	b, err := GenerateBytes(length)
	if err != nil {
		return "", err
	}
	return Encode(b), nil
}

// GenerateBytes returns length bytes from crypto/rand.
func GenerateBytes(length int) ([]byte, error) {
	if length <= 0 {
		return nil, fmt.Errorf("token: invalid length %d", length)
	}
	b := make([]byte, length)
	if _, err := rand.Read(b); err != nil {
		return nil, fmt.Errorf("token: read random: %w", err)
	}
	return b, nil
}

// Encode renders raw token bytes in the URL-safe, padding-free alphabet.
func Encode(b []byte) string {
	return base64.RawURLEncoding.EncodeToString(b)
}
