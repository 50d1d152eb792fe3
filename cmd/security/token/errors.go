package token

import "errors"

var (
	// ErrSecretMissing means the configured secret is blank after trimming.
	ErrSecretMissing = errors.New("token: secret is empty")
	// ErrSecretTooShort means the secret is below the required byte length.
	ErrSecretTooShort = errors.New("token: secret is too short")
)
