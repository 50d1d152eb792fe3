package otp

import "errors"

var (
	ErrInvalidEmail        = errors.New("otp: invalid email")
	ErrAlreadyRegistered   = errors.New("otp: email already registered")
	ErrCodeConflict        = errors.New("otp: code already live")
	ErrExhaustedGeneration = errors.New("otp: could not generate a unique code")
	ErrCodeInvalid         = errors.New("otp: code invalid or expired")
	ErrNotFound            = errors.New("otp: no live record")
	ErrConfig              = errors.New("otp: invalid config")
)
