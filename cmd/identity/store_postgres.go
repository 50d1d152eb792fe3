package identity

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore implements Store over PostgreSQL.
//
// The pgx pool is owned by the caller and never closed here. Identifiers are
// schema-qualified and quoted. Email uniqueness is the uq_users_email_norm
// constraint; a unique violation becomes ConflictError{Field: "email"}.
type PostgresStore struct {
	pool   *pgxpool.Pool
	hasher PasswordHasher
	schema string
}

var _ Store = (*PostgresStore)(nil)

// PostgresOption configures the store.
type PostgresOption func(*PostgresStore) error

var pgIdentRe = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// WithSchema sets the schema holding the users table (default "public").
func WithSchema(schema string) PostgresOption {
	return func(s *PostgresStore) error {
		schema = strings.TrimSpace(schema)
		if schema == "" {
			return fmt.Errorf("identity: empty schema")
		}
		if !pgIdentRe.MatchString(schema) {
			return fmt.Errorf("identity: invalid schema identifier")
		}
		s.schema = schema
		return nil
	}
}

// NewPostgresStore constructs a PostgresStore.
func NewPostgresStore(pool *pgxpool.Pool, hasher PasswordHasher, opts ...PostgresOption) (*PostgresStore, error) {
	st := &PostgresStore{
		pool:   pool,
		hasher: hasher,
		schema: "public",
	}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt(st); err != nil {
			return nil, err
		}
	}
	if st.pool == nil {
		return nil, fmt.Errorf("identity: nil pool")
	}
	if st.hasher == nil {
		return nil, fmt.Errorf("identity: nil password hasher")
	}
	return st, nil
}

func (s *PostgresStore) users() string {
	return pgx.Identifier{s.schema, "users"}.Sanitize()
}

func (s *PostgresStore) Create(ctx context.Context, in CreateUserInput) (User, error) {
	const op = "identity.Create"
	if err := ctx.Err(); err != nil {
		return User{}, err
	}

	rec, err := newUserRecord(op, s.hasher, in)
	if err != nil {
		return User{}, err
	}
	u := rec.User

	_, err = s.pool.Exec(ctx,
		`INSERT INTO `+s.users()+` (id, name, email, email_norm, password_hash, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $6)`,
		u.ID, u.Name, u.Email, u.EmailNorm, rec.PasswordHash, u.CreatedAt,
	)
	if err != nil {
		if field, ok := pgClassifyUniqueViolation(err); ok {
			return User{}, ConflictError{Op: op, Field: field}
		}
		return User{}, fmt.Errorf("%s: %w", op, err)
	}
	return u, nil
}

func (s *PostgresStore) FindByEmail(ctx context.Context, email string) (User, error) {
	const op = "identity.FindByEmail"

	row := s.pool.QueryRow(ctx,
		`SELECT id, name, email, email_norm, created_at, updated_at
		   FROM `+s.users()+`
		  WHERE email_norm = $1`,
		NormalizeEmail(email),
	)
	return scanUser(op, row)
}

func (s *PostgresStore) FindByEmailWithSecret(ctx context.Context, email string) (UserAuth, error) {
	const op = "identity.FindByEmailWithSecret"

	var out UserAuth
	err := s.pool.QueryRow(ctx,
		`SELECT id, name, email, email_norm, created_at, updated_at, password_hash
		   FROM `+s.users()+`
		  WHERE email_norm = $1`,
		NormalizeEmail(email),
	).Scan(
		&out.User.ID,
		&out.User.Name,
		&out.User.Email,
		&out.User.EmailNorm,
		&out.User.CreatedAt,
		&out.User.UpdatedAt,
		&out.PasswordHash,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return UserAuth{}, notFound(op)
		}
		return UserAuth{}, fmt.Errorf("%s: %w", op, err)
	}
	out.User.CreatedAt = out.User.CreatedAt.UTC()
	out.User.UpdatedAt = out.User.UpdatedAt.UTC()
	return out, nil
}

func (s *PostgresStore) FindByID(ctx context.Context, id string) (User, error) {
	const op = "identity.FindByID"

	if strings.TrimSpace(id) == "" {
		return User{}, notFound(op)
	}

	row := s.pool.QueryRow(ctx,
		`SELECT id, name, email, email_norm, created_at, updated_at
		   FROM `+s.users()+`
		  WHERE id = $1`,
		id,
	)
	return scanUser(op, row)
}

func (s *PostgresStore) Delete(ctx context.Context, id string) error {
	const op = "identity.Delete"

	tag, err := s.pool.Exec(ctx, `DELETE FROM `+s.users()+` WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if tag.RowsAffected() == 0 {
		return notFound(op)
	}
	return nil
}

// Ping checks pool connectivity for readiness probes.
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

func scanUser(op string, row pgx.Row) (User, error) {
	var (
		u         User
		createdAt time.Time
		updatedAt time.Time
	)
	err := row.Scan(&u.ID, &u.Name, &u.Email, &u.EmailNorm, &createdAt, &updatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return User{}, notFound(op)
		}
		return User{}, fmt.Errorf("%s: %w", op, err)
	}
	u.CreatedAt = createdAt.UTC()
	u.UpdatedAt = updatedAt.UTC()
	return u, nil
}

func pgClassifyUniqueViolation(err error) (field string, ok bool) {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return "", false
	}
	if pgErr.Code != "23505" { // unique_violation
		return "", false
	}

	// Prefer the stable constraint name; fall back to substring matching.
	c := strings.ToLower(strings.TrimSpace(pgErr.ConstraintName))
	switch {
	case c == "uq_users_email_norm", strings.Contains(c, "email"):
		return "email", true
	case c == "users_pkey":
		return "id", true
	default:
		return "unique", true
	}
}
