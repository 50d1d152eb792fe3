package otp

import (
	"context"
	"time"
)

// Record is one issued code.
type Record struct {
	ID        string
	Email     string
	Code      string
	CreatedAt time.Time
	ExpiresAt time.Time
}

func (r Record) liveAt(now time.Time) bool {
	return now.Before(r.ExpiresAt)
}

// Store persists records and enforces code uniqueness among live records.
//
// Insert returns ErrCodeConflict when rec.Code is already live, and otherwise
// replaces any live record for rec.Email. Lookup returns ErrNotFound for missing
// or expired codes. Consume deletes the live record for email when its code
// equals code and returns ErrCodeInvalid otherwise.
type Store interface {
	Insert(ctx context.Context, rec Record) error
	Lookup(ctx context.Context, code string, now time.Time) (Record, error)
	Consume(ctx context.Context, email, code string, now time.Time) error
}
