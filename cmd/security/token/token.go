package token

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
)

// MinSecretBytes is the floor applied to every HMAC secret in the service.
const MinSecretBytes = 32

// ParseSecret trims raw and returns its bytes.
// Blank input is ErrSecretMissing; fewer than minBytes bytes is ErrSecretTooShort.
func ParseSecret(raw string, minBytes int) ([]byte, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return nil, ErrSecretMissing
	}
	if minBytes > 0 && len(s) < minBytes {
		return nil, fmt.Errorf("%w: %d bytes, need %d", ErrSecretTooShort, len(s), minBytes)
	}
	return []byte(s), nil
}

// HMACSHA256 returns the raw HMAC-SHA256 of s under key.
func HMACSHA256(s string, key []byte) []byte {
	m := hmac.New(sha256.New, key)
	_, _ = m.Write([]byte(s))
	return m.Sum(nil)
}

// Fingerprint is a short non-reversible identifier for s, safe to log.
func Fingerprint(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:6])
}
