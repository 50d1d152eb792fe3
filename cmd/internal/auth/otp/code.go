package otp

import (
	"crypto/rand"
	"fmt"
	"math/big"
)

// Generator returns a numeric code of the given length.
type Generator func(length int) (string, error)

var ten = big.NewInt(10)

// RandomDigits draws each digit independently and uniformly from crypto/rand.
// Leading zeros are kept.
func RandomDigits(length int) (string, error) {
	if length <= 0 {
		return "", fmt.Errorf("otp: invalid code length %d", length)
	}
	buf := make([]byte, length)
	for i := range buf {
		n, err := rand.Int(rand.Reader, ten)
		if err != nil {
			return "", fmt.Errorf("otp: read random: %w", err)
		}
		buf[i] = byte('0' + n.Int64())
	}
	return string(buf), nil
}

func wellFormed(code string, length int) bool {
	if len(code) != length {
		return false
	}
	for i := 0; i < len(code); i++ {
		if code[i] < '0' || code[i] > '9' {
			return false
		}
	}
	return true
}
