package otp

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"
)

type storeHarness struct {
	store Store
	// advance moves backend-side clocks (Redis key TTLs) forward by d.
	advance func(d time.Duration)
}

func rec(email, code string, at time.Time) Record {
	return Record{
		ID:        fmt.Sprintf("%s-%s-%d", email, code, at.UnixNano()),
		Email:     email,
		Code:      code,
		CreatedAt: at,
		ExpiresAt: at.Add(5 * time.Minute),
	}
}

func runStoreContract(t *testing.T, newHarness func(t *testing.T) storeHarness) {
	// Anchored to the wall clock so Mongo's TTL monitor does not reap fixtures.
	base := time.Now().UTC().Truncate(time.Millisecond)

	t.Run("insert then lookup", func(t *testing.T) {
		h := newHarness(t)
		ctx := context.Background()

		if err := h.store.Insert(ctx, rec("a@example.com", "123456", base)); err != nil {
			t.Fatalf("insert: %v", err)
		}
		got, err := h.store.Lookup(ctx, "123456", base.Add(time.Second))
		if err != nil {
			t.Fatalf("lookup: %v", err)
		}
		if got.Email != "a@example.com" || got.Code != "123456" || !got.ExpiresAt.Equal(base.Add(5*time.Minute)) {
			t.Fatalf("unexpected record: %+v", got)
		}
		if _, err := h.store.Lookup(ctx, "654321", base); !errors.Is(err, ErrNotFound) {
			t.Fatalf("expected ErrNotFound, got %v", err)
		}
	})

	t.Run("live code conflicts", func(t *testing.T) {
		h := newHarness(t)
		ctx := context.Background()

		if err := h.store.Insert(ctx, rec("a@example.com", "111111", base)); err != nil {
			t.Fatalf("insert: %v", err)
		}
		err := h.store.Insert(ctx, rec("b@example.com", "111111", base.Add(time.Second)))
		if !errors.Is(err, ErrCodeConflict) {
			t.Fatalf("expected ErrCodeConflict, got %v", err)
		}
		got, err := h.store.Lookup(ctx, "111111", base.Add(2*time.Second))
		if err != nil || got.Email != "a@example.com" {
			t.Fatalf("original record must survive: %+v %v", got, err)
		}
	})

	t.Run("new code supersedes", func(t *testing.T) {
		h := newHarness(t)
		ctx := context.Background()

		if err := h.store.Insert(ctx, rec("a@example.com", "222222", base)); err != nil {
			t.Fatalf("insert 1: %v", err)
		}
		if err := h.store.Insert(ctx, rec("a@example.com", "333333", base.Add(time.Second))); err != nil {
			t.Fatalf("insert 2: %v", err)
		}
		if _, err := h.store.Lookup(ctx, "222222", base.Add(2*time.Second)); !errors.Is(err, ErrNotFound) {
			t.Fatalf("old code should be gone, got %v", err)
		}
		if err := h.store.Consume(ctx, "a@example.com", "222222", base.Add(2*time.Second)); !errors.Is(err, ErrCodeInvalid) {
			t.Fatalf("old code must not verify, got %v", err)
		}
		if err := h.store.Consume(ctx, "a@example.com", "333333", base.Add(2*time.Second)); err != nil {
			t.Fatalf("new code should verify: %v", err)
		}
	})

	t.Run("consume once", func(t *testing.T) {
		h := newHarness(t)
		ctx := context.Background()
		at := base.Add(time.Minute)

		if err := h.store.Insert(ctx, rec("a@example.com", "444444", base)); err != nil {
			t.Fatalf("insert: %v", err)
		}
		if err := h.store.Consume(ctx, "a@example.com", "000000", at); !errors.Is(err, ErrCodeInvalid) {
			t.Fatalf("wrong code: expected ErrCodeInvalid, got %v", err)
		}
		if err := h.store.Consume(ctx, "b@example.com", "444444", at); !errors.Is(err, ErrCodeInvalid) {
			t.Fatalf("wrong email: expected ErrCodeInvalid, got %v", err)
		}
		if err := h.store.Consume(ctx, "a@example.com", "444444", at); err != nil {
			t.Fatalf("consume: %v", err)
		}
		if err := h.store.Consume(ctx, "a@example.com", "444444", at); !errors.Is(err, ErrCodeInvalid) {
			t.Fatalf("second consume: expected ErrCodeInvalid, got %v", err)
		}
		if _, err := h.store.Lookup(ctx, "444444", at); !errors.Is(err, ErrNotFound) {
			t.Fatalf("consumed code still live: %v", err)
		}
	})

	t.Run("expired records are invisible and reusable", func(t *testing.T) {
		h := newHarness(t)
		ctx := context.Background()
		later := base.Add(5*time.Minute + time.Second)

		if err := h.store.Insert(ctx, rec("a@example.com", "555555", base)); err != nil {
			t.Fatalf("insert: %v", err)
		}
		if _, err := h.store.Lookup(ctx, "555555", base.Add(5*time.Minute)); !errors.Is(err, ErrNotFound) {
			t.Fatalf("expected expiry at exactly expires_at, got %v", err)
		}
		if err := h.store.Consume(ctx, "a@example.com", "555555", later); !errors.Is(err, ErrCodeInvalid) {
			t.Fatalf("expired consume: expected ErrCodeInvalid, got %v", err)
		}

		h.advance(5*time.Minute + time.Second)
		if err := h.store.Insert(ctx, rec("b@example.com", "555555", later)); err != nil {
			t.Fatalf("reinsert after expiry: %v", err)
		}
		got, err := h.store.Lookup(ctx, "555555", later.Add(time.Second))
		if err != nil || got.Email != "b@example.com" {
			t.Fatalf("reinserted record: %+v %v", got, err)
		}
	})

	t.Run("concurrent inserts admit one", func(t *testing.T) {
		h := newHarness(t)
		ctx := context.Background()

		const n = 10
		var (
			wg        sync.WaitGroup
			mu        sync.Mutex
			ok        int
			conflicts int
		)
		for i := 0; i < n; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				err := h.store.Insert(ctx, rec(fmt.Sprintf("u%d@example.com", i), "777777", base))
				mu.Lock()
				defer mu.Unlock()
				switch {
				case err == nil:
					ok++
				case errors.Is(err, ErrCodeConflict):
					conflicts++
				default:
					t.Errorf("unexpected error: %v", err)
				}
			}(i)
		}
		wg.Wait()

		if ok != 1 || conflicts != n-1 {
			t.Fatalf("ok=%d conflicts=%d", ok, conflicts)
		}
	})

	t.Run("racing inserts for one email leave a verifiable code", func(t *testing.T) {
		h := newHarness(t)
		ctx := context.Background()

		codes := []string{"810001", "810002", "810003", "810004"}
		var wg sync.WaitGroup
		for _, code := range codes {
			wg.Add(1)
			go func(code string) {
				defer wg.Done()
				if err := h.store.Insert(ctx, rec("race@example.com", code, base)); err != nil {
					t.Errorf("insert %s: %v", code, err)
				}
			}(code)
		}
		wg.Wait()

		verified := 0
		for _, code := range codes {
			if err := h.store.Consume(ctx, "race@example.com", code, base.Add(time.Second)); err == nil {
				verified++
			}
		}
		if verified == 0 {
			t.Fatalf("no code issued to the email verifies")
		}
	})
}
