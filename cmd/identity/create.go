package identity

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/asifkhan2513/secure-auth/cmd/identity/ids"
	"github.com/asifkhan2513/secure-auth/cmd/security/password"
)

// newUserRecord validates in, hashes the password and assigns an ID.
// Backends call it before touching storage so every store applies the same rules.
func newUserRecord(op string, hasher PasswordHasher, in CreateUserInput) (UserAuth, error) {
	if hasher == nil {
		return UserAuth{}, errors.New(op + ": nil password hasher")
	}

	name := NormalizeName(in.Name)
	email := strings.TrimSpace(in.Email)

	if name == "" {
		return UserAuth{}, invalid(op, "name is required")
	}
	if !validName(name) {
		return UserAuth{}, invalid(op, "name is too long")
	}
	if email == "" {
		return UserAuth{}, invalid(op, "email is required")
	}
	if !ValidEmail(email) {
		return UserAuth{}, invalid(op, "email is invalid")
	}
	if in.Password == "" {
		return UserAuth{}, invalid(op, "password is required")
	}

	hash, err := hasher.Hash(in.Password)
	if err != nil {
		if password.IsPolicyViolation(err) {
			return UserAuth{}, OpError{Op: op, Kind: ErrInvalidInput, Msg: err.Error(), Err: err}
		}
		return UserAuth{}, fmt.Errorf("%s: hash password: %w", op, err)
	}

	now := in.Now
	if now.IsZero() {
		now = time.Now().UTC()
	}
	now = now.UTC().Truncate(time.Millisecond)

	id, err := ids.NewULID(now)
	if err != nil {
		return UserAuth{}, err
	}

	return UserAuth{
		User: User{
			ID:        id,
			Name:      name,
			Email:     email,
			EmailNorm: NormalizeEmail(email),
			CreatedAt: now,
			UpdatedAt: now,
		},
		PasswordHash: hash,
	}, nil
}
