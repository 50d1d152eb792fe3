package token

import (
	"crypto/hmac"
	"encoding/base64"
	"strings"
)

const sigSep = "."

var sigEncoding = base64.RawURLEncoding

// Signer signs and verifies opaque string values with HMAC-SHA256.
// The zero value is not usable; build one with NewSigner.
type Signer struct {
	key []byte
}

// NewSigner returns a Signer for key. The key is copied.
func NewSigner(key []byte) *Signer {
	k := make([]byte, len(key))
	copy(k, key)
	return &Signer{key: k}
}

// Sign returns value with a detached signature appended.
func (s *Signer) Sign(value string) string {
	return value + sigSep + sigEncoding.EncodeToString(HMACSHA256(value, s.key))
}

// Unsign returns the original value when signed carries a valid signature.
// The signature is split at the last separator, so values may contain dots.
func (s *Signer) Unsign(signed string) (string, bool) {
	i := strings.LastIndex(signed, sigSep)
	if i <= 0 || i == len(signed)-1 {
		return "", false
	}
	value, sig := signed[:i], signed[i+1:]

	got, err := sigEncoding.DecodeString(sig)
	if err != nil {
		return "", false
	}
	if !hmac.Equal(got, HMACSHA256(value, s.key)) {
		return "", false
	}
	return value, true
}
