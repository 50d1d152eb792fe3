package identity

import (
	"context"
	"time"
)

// User is the public view of an account. It never carries the password hash.
type User struct {
	ID        string
	Name      string
	Email     string
	EmailNorm string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// UserAuth is a User together with its stored hash. Only login reads it.
type UserAuth struct {
	User         User
	PasswordHash string
}

// CreateUserInput describes a registration request. Now defaults to time.Now().UTC().
type CreateUserInput struct {
	Name     string
	Email    string
	Password string
	Now      time.Time
}

// PasswordHasher is satisfied by password.Config.
type PasswordHasher interface {
	Hash(plain string) (string, error)
	Verify(encoded, plain string) (bool, error)
	// Matches reports a verified match; malformed or out-of-bounds hashes are false.
	Matches(encoded, plain string) bool
}

// Store is the credential persistence boundary.
//
// Lookups by email normalize their argument. FindByEmail and FindByID return
// NotFoundError when no user matches. Create returns ConflictError{Field: "email"}
// when the normalized email is taken, including when a concurrent Create wins.
type Store interface {
	FindByEmail(ctx context.Context, email string) (User, error)
	FindByEmailWithSecret(ctx context.Context, email string) (UserAuth, error)
	FindByID(ctx context.Context, id string) (User, error)
	Create(ctx context.Context, in CreateUserInput) (User, error)
	Delete(ctx context.Context, id string) error
}
