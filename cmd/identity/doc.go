// Package identity is the credential store: users, their normalized emails and
// their password hashes.
//
// Every backend (memory, PostgreSQL, MongoDB) enforces one user per normalized
// email with its own uniqueness primitive, hashes passwords through the injected
// PasswordHasher before persisting, and keeps the hash out of default reads.
package identity
