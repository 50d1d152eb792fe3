package otp

import (
	"context"
	"testing"
	"time"
)

func TestMemoryStore_Contract(t *testing.T) {
	runStoreContract(t, func(t *testing.T) storeHarness {
		return storeHarness{store: NewMemoryStore(), advance: func(time.Duration) {}}
	})
}

func TestMemoryStore_SweepsOnWrite(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	base := time.Date(2026, 4, 1, 9, 0, 0, 0, time.UTC)

	for i, code := range []string{"100000", "200000", "300000"} {
		email := string(rune('a'+i)) + "@example.com"
		if err := s.Insert(ctx, rec(email, code, base)); err != nil {
			t.Fatalf("insert: %v", err)
		}
	}
	if s.Len() != 3 {
		t.Fatalf("len = %d, want 3", s.Len())
	}

	if err := s.Insert(ctx, rec("z@example.com", "900000", base.Add(time.Hour))); err != nil {
		t.Fatalf("insert: %v", err)
	}
	if s.Len() != 1 {
		t.Fatalf("expired records should be swept, len = %d", s.Len())
	}
}
