package otp

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/asifkhan2513/secure-auth/cmd/identity"
)

// UserLookup is the slice of identity.Store the engine needs.
type UserLookup interface {
	FindByEmail(ctx context.Context, email string) (identity.User, error)
}

// Notifier delivers a freshly issued code. Implementations should not block
// on the network; the engine only logs their errors.
type Notifier interface {
	NotifyCode(ctx context.Context, email, code string, expiresAt time.Time) error
}

// Issued is the result of RequestCode.
type Issued struct {
	Email     string
	Code      string
	ExpiresAt time.Time
	Attempts  int
}

// Engine implements the request and verify flows.
type Engine struct {
	cfg      Config
	store    Store
	users    UserLookup
	notifier Notifier
	log      *slog.Logger

	generate Generator
	now      func() time.Time
}

// Option customizes an Engine.
type Option func(*Engine)

// WithGenerator replaces RandomDigits.
func WithGenerator(g Generator) Option {
	return func(e *Engine) {
		if g != nil {
			e.generate = g
		}
	}
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		if now != nil {
			e.now = now
		}
	}
}

// WithNotifier sets where issued codes are delivered.
func WithNotifier(n Notifier) Option {
	return func(e *Engine) { e.notifier = n }
}

// WithLogger sets the engine logger.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.log = l
		}
	}
}

// NewEngine validates cfg and wires the collaborators.
func NewEngine(cfg Config, store Store, users UserLookup, opts ...Option) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if store == nil || users == nil {
		return nil, fmt.Errorf("%w: store and user lookup are required", ErrConfig)
	}

	e := &Engine{
		cfg:      cfg,
		store:    store,
		users:    users,
		log:      slog.Default(),
		generate: RandomDigits,
		now:      time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(e)
		}
	}
	return e, nil
}

// Config returns the engine configuration.
func (e *Engine) Config() Config { return e.cfg }

// RequestCode issues a code for an email that has no account yet.
func (e *Engine) RequestCode(ctx context.Context, email string) (Issued, error) {
	norm := identity.NormalizeEmail(email)
	if !identity.ValidEmail(norm) {
		return Issued{}, ErrInvalidEmail
	}

	_, err := e.users.FindByEmail(ctx, norm)
	switch {
	case err == nil:
		return Issued{}, ErrAlreadyRegistered
	case !identity.IsNotFound(err):
		return Issued{}, fmt.Errorf("otp: user lookup: %w", err)
	}

	now := e.now().UTC().Truncate(time.Millisecond)

	for attempt := 1; attempt <= e.cfg.MaxAttempts; attempt++ {
		code, err := e.generate(e.cfg.Length)
		if err != nil {
			return Issued{}, err
		}

		rec := Record{
			ID:        uuid.NewString(),
			Email:     norm,
			Code:      code,
			CreatedAt: now,
			ExpiresAt: now.Add(e.cfg.TTL),
		}

		err = e.store.Insert(ctx, rec)
		if errors.Is(err, ErrCodeConflict) {
			e.log.DebugContext(ctx, "otp.generate.collision", "attempt", attempt)
			continue
		}
		if err != nil {
			return Issued{}, err
		}

		e.notify(ctx, rec)
		return Issued{Email: norm, Code: code, ExpiresAt: rec.ExpiresAt, Attempts: attempt}, nil
	}

	e.log.WarnContext(ctx, "otp.generate.exhausted", "max_attempts", e.cfg.MaxAttempts)
	return Issued{}, ErrExhaustedGeneration
}

func (e *Engine) notify(ctx context.Context, rec Record) {
	if e.notifier == nil {
		return
	}
	if err := e.notifier.NotifyCode(ctx, rec.Email, rec.Code, rec.ExpiresAt); err != nil {
		e.log.WarnContext(ctx, "otp.mail.dispatch.fail", "otp_id", rec.ID, "err", err)
	}
}

// VerifyCode consumes the live code for email. Wrong, expired, superseded and
// already used codes all return ErrCodeInvalid.
func (e *Engine) VerifyCode(ctx context.Context, email, code string) error {
	norm := identity.NormalizeEmail(email)
	if !identity.ValidEmail(norm) {
		return ErrInvalidEmail
	}
	if !wellFormed(code, e.cfg.Length) {
		return ErrCodeInvalid
	}
	return e.store.Consume(ctx, norm, code, e.now().UTC())
}

// Lookup reports the live record holding code.
func (e *Engine) Lookup(ctx context.Context, code string) (Record, error) {
	return e.store.Lookup(ctx, code, e.now().UTC())
}
