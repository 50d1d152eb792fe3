package password

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// Validate checks password against the configured Policy.
// Length is measured in runes.
func (c Config) Validate(password string) error {
	n := utf8.RuneCountInString(password)

	if n < c.Policy.MinLength {
		return ErrPasswordTooShort
	}
	if n > c.Policy.MaxLength {
		return ErrPasswordTooLong
	}
	if c.Policy.RejectVeryWeak && isTrivial(password) {
		return ErrWeakPassword
	}
	return nil
}

var trivialPasswords = map[string]struct{}{
	"password":    {},
	"password1":   {},
	"password123": {},
	"12345678":    {},
	"123456789":   {},
	"qwerty123":   {},
	"qwertyuiop":  {},
	"11111111":    {},
	"iloveyou":    {},
	"letmein1":    {},
}

// isTrivial catches repeated characters, short digit-only strings and a
// small blocklist. It is not a strength estimator.
func isTrivial(pw string) bool {
	s := strings.TrimSpace(pw)
	if s == "" {
		return true
	}

	first, _ := utf8.DecodeRuneInString(s)
	if strings.Trim(s, string(first)) == "" {
		return true
	}

	digits := true
	for _, r := range s {
		if !unicode.IsDigit(r) {
			digits = false
			break
		}
	}
	if digits && utf8.RuneCountInString(s) < 12 {
		return true
	}

	_, listed := trivialPasswords[strings.ToLower(s)]
	return listed
}
