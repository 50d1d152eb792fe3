// Package ratelimit implements fixed-window counters keyed by arbitrary
// strings (client IP, normalized email). A window opens on the first hit for
// a key and lasts Rule.Window; at most Rule.Limit hits are allowed inside it.
package ratelimit

import (
	"context"
	"errors"
	"time"
)

var ErrInvalidRule = errors.New("ratelimit: invalid rule")

// Rule is a limit per window.
type Rule struct {
	Limit  int
	Window time.Duration
}

func (r Rule) validate() error {
	if r.Limit <= 0 || r.Window <= 0 {
		return ErrInvalidRule
	}
	return nil
}

// Decision is the state of a key after Hit or Peek.
type Decision struct {
	Allowed    bool
	Count      int
	RetryAfter time.Duration
}

// Limiter counts hits per key.
//
// Hit records one hit and reports whether it fit in the window. Peek reports
// whether one more hit would fit without recording it. Reset forgets the key.
type Limiter interface {
	Hit(ctx context.Context, key string) (Decision, error)
	Peek(ctx context.Context, key string) (Decision, error)
	Reset(ctx context.Context, key string) error
}

func decide(rule Rule, count int, remaining time.Duration, peek bool) Decision {
	allowed := count <= rule.Limit
	if peek {
		allowed = count < rule.Limit
	}
	d := Decision{Allowed: allowed, Count: count}
	if !allowed {
		d.RetryAfter = remaining
	}
	return d
}
