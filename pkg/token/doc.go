// Package token mints the bearer tokens kms-cli submits when it creates or
// rotates a namespace, key or secret.
//
// Token format:
//
//   - 16 bytes from crypto/rand
//   - base64 with the URL-safe alphabet and no padding ('+' becomes '-',
//     '/' becomes '_', '=' is dropped), 22 characters
//
// Tokens are shown to the operator once and never written to logs; use
// Fingerprint when a log line needs to refer to one.
package token
