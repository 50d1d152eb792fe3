package identity

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/asifkhan2513/secure-auth/cmd/security/password"
)

func testHasher() password.Config {
	cfg := password.DefaultConfig()
	cfg.Params.MemoryKiB = 8 * 1024
	cfg.Params.Iterations = 1
	cfg.Params.Parallelism = 1
	return cfg
}

// runStoreContract exercises the behavior every Store backend must share.
func runStoreContract(t *testing.T, newStore func(t *testing.T) Store) {
	t.Run("create then find", func(t *testing.T) {
		s := newStore(t)
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()

		now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
		u, err := s.Create(ctx, CreateUserInput{
			Name:     "  Ada Lovelace ",
			Email:    " Ada@Example.COM ",
			Password: "analytical-engine",
			Now:      now,
		})
		if err != nil {
			t.Fatalf("create: %v", err)
		}
		if u.ID == "" || u.Name != "Ada Lovelace" || u.Email != "Ada@Example.COM" || u.EmailNorm != "ada@example.com" {
			t.Fatalf("unexpected user: %+v", u)
		}
		if !u.CreatedAt.Equal(now) {
			t.Fatalf("created_at = %v, want %v", u.CreatedAt, now)
		}

		got, err := s.FindByEmail(ctx, "ADA@example.com")
		if err != nil {
			t.Fatalf("find by email: %v", err)
		}
		if got.ID != u.ID {
			t.Fatalf("find by email id = %q, want %q", got.ID, u.ID)
		}

		byID, err := s.FindByID(ctx, u.ID)
		if err != nil {
			t.Fatalf("find by id: %v", err)
		}
		if byID.EmailNorm != u.EmailNorm {
			t.Fatalf("find by id = %+v", byID)
		}

		ua, err := s.FindByEmailWithSecret(ctx, "ada@example.com")
		if err != nil {
			t.Fatalf("find with secret: %v", err)
		}
		h := testHasher()
		if ua.PasswordHash == "analytical-engine" || !h.Matches(ua.PasswordHash, "analytical-engine") {
			t.Fatalf("stored hash does not verify")
		}
	})

	t.Run("duplicate email conflicts", func(t *testing.T) {
		s := newStore(t)
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()

		if _, err := s.Create(ctx, CreateUserInput{Name: "A", Email: "dup@example.com", Password: "password1"}); err != nil {
			t.Fatalf("create 1: %v", err)
		}
		_, err := s.Create(ctx, CreateUserInput{Name: "B", Email: "DUP@example.com", Password: "password2"})
		if !IsConflict(err) {
			t.Fatalf("expected conflict, got %v", err)
		}
		var ce ConflictError
		if !errors.As(err, &ce) || ce.Field != "email" {
			t.Fatalf("expected email conflict, got %#v", err)
		}
	})

	t.Run("concurrent creates admit one", func(t *testing.T) {
		s := newStore(t)
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		const n = 8
		var (
			wg        sync.WaitGroup
			mu        sync.Mutex
			ok        int
			conflicts int
		)
		for i := 0; i < n; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, err := s.Create(ctx, CreateUserInput{Name: "Racer", Email: "race@example.com", Password: "password1"})
				mu.Lock()
				defer mu.Unlock()
				switch {
				case err == nil:
					ok++
				case IsConflict(err):
					conflicts++
				default:
					t.Errorf("unexpected error: %v", err)
				}
			}()
		}
		wg.Wait()

		if ok != 1 || conflicts != n-1 {
			t.Fatalf("ok=%d conflicts=%d, want 1 and %d", ok, conflicts, n-1)
		}
	})

	t.Run("missing user", func(t *testing.T) {
		s := newStore(t)
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()

		if _, err := s.FindByEmail(ctx, "nobody@example.com"); !IsNotFound(err) {
			t.Fatalf("find by email: expected not found, got %v", err)
		}
		if _, err := s.FindByEmailWithSecret(ctx, "nobody@example.com"); !IsNotFound(err) {
			t.Fatalf("find with secret: expected not found, got %v", err)
		}
		if _, err := s.FindByID(ctx, "01J00000000000000000000000"); !IsNotFound(err) {
			t.Fatalf("find by id: expected not found, got %v", err)
		}
		if err := s.Delete(ctx, "01J00000000000000000000000"); !IsNotFound(err) {
			t.Fatalf("delete: expected not found, got %v", err)
		}
	})

	t.Run("invalid input", func(t *testing.T) {
		s := newStore(t)
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()

		cases := []CreateUserInput{
			{Name: "", Email: "a@example.com", Password: "password1"},
			{Name: "A", Email: "", Password: "password1"},
			{Name: "A", Email: "not-an-email", Password: "password1"},
			{Name: "A", Email: "a@example.com", Password: ""},
			{Name: "A", Email: "a@example.com", Password: "short"},
		}
		for _, in := range cases {
			if _, err := s.Create(ctx, in); !IsInvalidInput(err) {
				t.Fatalf("%+v: expected invalid input, got %v", in, err)
			}
		}

		_, err := s.Create(ctx, CreateUserInput{Name: "A", Email: "a@example.com", Password: "short"})
		if !errors.Is(err, password.ErrPasswordTooShort) {
			t.Fatalf("expected password policy cause, got %v", err)
		}
	})

	t.Run("delete frees email", func(t *testing.T) {
		s := newStore(t)
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()

		u, err := s.Create(ctx, CreateUserInput{Name: "A", Email: "gone@example.com", Password: "password1"})
		if err != nil {
			t.Fatalf("create: %v", err)
		}
		if err := s.Delete(ctx, u.ID); err != nil {
			t.Fatalf("delete: %v", err)
		}
		if _, err := s.FindByID(ctx, u.ID); !IsNotFound(err) {
			t.Fatalf("expected not found after delete, got %v", err)
		}
		if _, err := s.Create(ctx, CreateUserInput{Name: "A", Email: "gone@example.com", Password: "password1"}); err != nil {
			t.Fatalf("re-create after delete: %v", err)
		}
	})
}
