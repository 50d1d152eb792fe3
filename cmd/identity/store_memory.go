package identity

import (
	"context"
	"sync"
)

// MemoryStore is an in-process Store for development and tests.
type MemoryStore struct {
	hasher PasswordHasher

	mu      sync.RWMutex
	byID    map[string]UserAuth
	byEmail map[string]string // email_norm -> id
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore(hasher PasswordHasher) *MemoryStore {
	return &MemoryStore{
		hasher:  hasher,
		byID:    make(map[string]UserAuth),
		byEmail: make(map[string]string),
	}
}

func (s *MemoryStore) FindByEmail(ctx context.Context, email string) (User, error) {
	ua, err := s.FindByEmailWithSecret(ctx, email)
	if err != nil {
		return User{}, err
	}
	return ua.User, nil
}

func (s *MemoryStore) FindByEmailWithSecret(ctx context.Context, email string) (UserAuth, error) {
	const op = "identity.FindByEmail"
	if err := ctx.Err(); err != nil {
		return UserAuth{}, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.byEmail[NormalizeEmail(email)]
	if !ok {
		return UserAuth{}, notFound(op)
	}
	return s.byID[id], nil
}

func (s *MemoryStore) FindByID(ctx context.Context, id string) (User, error) {
	const op = "identity.FindByID"
	if err := ctx.Err(); err != nil {
		return User{}, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	ua, ok := s.byID[id]
	if !ok {
		return User{}, notFound(op)
	}
	return ua.User, nil
}

// Create hashes outside the lock; the uniqueness check and insert happen
// under a single write lock.
func (s *MemoryStore) Create(ctx context.Context, in CreateUserInput) (User, error) {
	const op = "identity.Create"
	if err := ctx.Err(); err != nil {
		return User{}, err
	}

	rec, err := newUserRecord(op, s.hasher, in)
	if err != nil {
		return User{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, taken := s.byEmail[rec.User.EmailNorm]; taken {
		return User{}, ConflictError{Op: op, Field: "email"}
	}
	s.byID[rec.User.ID] = rec
	s.byEmail[rec.User.EmailNorm] = rec.User.ID
	return rec.User, nil
}

func (s *MemoryStore) Delete(ctx context.Context, id string) error {
	const op = "identity.Delete"
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	ua, ok := s.byID[id]
	if !ok {
		return notFound(op)
	}
	delete(s.byID, id)
	delete(s.byEmail, ua.User.EmailNorm)
	return nil
}

// Len returns the number of stored users.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.byID)
}
