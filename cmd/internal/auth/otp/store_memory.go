package otp

import (
	"context"
	"crypto/subtle"
	"sync"
	"time"
)

// MemoryStore keeps records in process. Expired records are swept on every write.
type MemoryStore struct {
	mu      sync.Mutex
	byCode  map[string]Record
	byEmail map[string]string // email -> code
}

var _ Store = (*MemoryStore)(nil)

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		byCode:  make(map[string]Record),
		byEmail: make(map[string]string),
	}
}

func (s *MemoryStore) Insert(ctx context.Context, rec Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.sweepLocked(rec.CreatedAt)

	if _, live := s.byCode[rec.Code]; live {
		return ErrCodeConflict
	}
	if prev, ok := s.byEmail[rec.Email]; ok {
		delete(s.byCode, prev)
	}
	s.byCode[rec.Code] = rec
	s.byEmail[rec.Email] = rec.Code
	return nil
}

func (s *MemoryStore) Lookup(ctx context.Context, code string, now time.Time) (Record, error) {
	if err := ctx.Err(); err != nil {
		return Record{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.byCode[code]
	if !ok || !rec.liveAt(now) {
		return Record{}, ErrNotFound
	}
	return rec, nil
}

func (s *MemoryStore) Consume(ctx context.Context, email, code string, now time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.sweepLocked(now)

	stored, ok := s.byEmail[email]
	if !ok || subtle.ConstantTimeCompare([]byte(stored), []byte(code)) != 1 {
		return ErrCodeInvalid
	}
	delete(s.byCode, stored)
	delete(s.byEmail, email)
	return nil
}

// Len reports live and not-yet-swept records.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.byCode)
}

func (s *MemoryStore) sweepLocked(now time.Time) {
	for code, rec := range s.byCode {
		if rec.liveAt(now) {
			continue
		}
		delete(s.byCode, code)
		if s.byEmail[rec.Email] == code {
			delete(s.byEmail, rec.Email)
		}
	}
}
