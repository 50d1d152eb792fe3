package identity

import (
	"errors"
	"fmt"
)

// Error kinds. Callers match them with errors.Is; the API layer maps each
// to a stable response code.
var (
	ErrInvalidInput = errors.New("invalid input")
	ErrNotFound     = errors.New("user not found")
	ErrConflict     = errors.New("already exists")
)

// OpError reports rejected input. Msg is safe to show to the caller and
// never carries secrets. Err, when set, is the cause (a password policy
// violation, for example).
type OpError struct {
	Op   string
	Kind error
	Msg  string
	Err  error
}

func (e OpError) Error() string {
	if e.Msg == "" {
		return e.Op + ": " + e.Kind.Error()
	}
	return fmt.Sprintf("%s: %v: %s", e.Op, e.Kind, e.Msg)
}

func (e OpError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// ConflictError reports a uniqueness violation on Field ("email").
type ConflictError struct {
	Op    string
	Field string
}

func (e ConflictError) Error() string {
	if e.Field == "" {
		return e.Op + ": " + ErrConflict.Error()
	}
	return fmt.Sprintf("%s: %s %v", e.Op, e.Field, ErrConflict)
}

func (e ConflictError) Unwrap() error { return ErrConflict }

// NotFoundError reports a lookup that matched nothing.
type NotFoundError struct {
	Op string
}

func (e NotFoundError) Error() string { return e.Op + ": " + ErrNotFound.Error() }

func (e NotFoundError) Unwrap() error { return ErrNotFound }

func IsConflict(err error) bool { return errors.Is(err, ErrConflict) }

func IsNotFound(err error) bool { return errors.Is(err, ErrNotFound) }

func IsInvalidInput(err error) bool { return errors.Is(err, ErrInvalidInput) }

func invalid(op, msg string) error {
	return OpError{Op: op, Kind: ErrInvalidInput, Msg: msg}
}

func notFound(op string) error {
	return NotFoundError{Op: op}
}
