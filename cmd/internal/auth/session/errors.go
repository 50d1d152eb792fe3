package session

import "errors"

var (
	// ErrTokenExpired is returned for an authentic token past its exp claim.
	ErrTokenExpired = errors.New("token expired")

	// ErrTokenMalformed is returned when the token cannot be decoded or lacks a subject.
	ErrTokenMalformed = errors.New("token malformed")

	// ErrTokenSignature is returned when the signature, algorithm, issuer or
	// validity window does not check out.
	ErrTokenSignature = errors.New("token signature invalid")

	// ErrConfig is returned for invalid configuration.
	ErrConfig = errors.New("invalid session config")
)
