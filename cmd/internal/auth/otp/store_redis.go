package otp

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// insertLua claims the code key with NX, drops the email's previous code and
// points the email key at the new one.
// KEYS[1] = code key, KEYS[2] = email key
// ARGV[1] = record json, ARGV[2] = code, ARGV[3] = ttl ms, ARGV[4] = code key prefix
var insertLua = redis.NewScript(`
if not redis.call('SET', KEYS[1], ARGV[1], 'NX', 'PX', ARGV[3]) then
  return 0
end
local prev = redis.call('GET', KEYS[2])
if prev and prev ~= ARGV[2] then
  redis.call('DEL', ARGV[4] .. prev)
end
redis.call('SET', KEYS[2], ARGV[2], 'PX', ARGV[3])
return 1
`)

// consumeLua deletes both keys only if the email still points at the code.
// KEYS[1] = email key, KEYS[2] = code key, ARGV[1] = code
var consumeLua = redis.NewScript(`
if redis.call('GET', KEYS[1]) ~= ARGV[1] then
  return 0
end
redis.call('DEL', KEYS[1], KEYS[2])
return 1
`)

type redisRecord struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// RedisStore keeps records as <prefix>:code:<code> with a PX expiry and
// <prefix>:email:<email> pointing at the email's current code.
type RedisStore struct {
	rdb    redis.UniversalClient
	prefix string
}

var _ Store = (*RedisStore)(nil)

func NewRedisStore(rdb redis.UniversalClient, prefix string) *RedisStore {
	if prefix == "" {
		prefix = DefaultConfig().RedisPrefix
	}
	return &RedisStore{rdb: rdb, prefix: prefix}
}

func (s *RedisStore) codePrefix() string         { return s.prefix + ":code:" }
func (s *RedisStore) codeKey(code string) string { return s.codePrefix() + code }
func (s *RedisStore) emailKey(email string) string {
	return s.prefix + ":email:" + email
}

func (s *RedisStore) Insert(ctx context.Context, rec Record) error {
	ttl := rec.ExpiresAt.Sub(rec.CreatedAt)
	if ttl <= 0 {
		return fmt.Errorf("otp: non-positive ttl")
	}

	payload, err := json.Marshal(redisRecord{
		ID:        rec.ID,
		Email:     rec.Email,
		CreatedAt: rec.CreatedAt,
		ExpiresAt: rec.ExpiresAt,
	})
	if err != nil {
		return fmt.Errorf("otp: encode record: %w", err)
	}

	n, err := insertLua.Run(ctx, s.rdb,
		[]string{s.codeKey(rec.Code), s.emailKey(rec.Email)},
		payload, rec.Code, ttl.Milliseconds(), s.codePrefix(),
	).Int()
	if err != nil {
		return fmt.Errorf("otp: redis insert: %w", err)
	}
	if n == 0 {
		return ErrCodeConflict
	}
	return nil
}

func (s *RedisStore) Lookup(ctx context.Context, code string, now time.Time) (Record, error) {
	raw, err := s.rdb.Get(ctx, s.codeKey(code)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return Record{}, ErrNotFound
		}
		return Record{}, fmt.Errorf("otp: redis get: %w", err)
	}

	var rr redisRecord
	if err := json.Unmarshal(raw, &rr); err != nil {
		return Record{}, fmt.Errorf("otp: decode record: %w", err)
	}
	rec := Record{
		ID:        rr.ID,
		Email:     rr.Email,
		Code:      code,
		CreatedAt: rr.CreatedAt,
		ExpiresAt: rr.ExpiresAt,
	}
	if !rec.liveAt(now) {
		return Record{}, ErrNotFound
	}
	return rec, nil
}

func (s *RedisStore) Consume(ctx context.Context, email, code string, now time.Time) error {
	stored, err := s.rdb.Get(ctx, s.emailKey(email)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return ErrCodeInvalid
		}
		return fmt.Errorf("otp: redis get: %w", err)
	}
	if subtle.ConstantTimeCompare([]byte(stored), []byte(code)) != 1 {
		return ErrCodeInvalid
	}

	// Key expiry is authoritative; now only guards records that outlived their
	// own expires_at because of clock drift between hosts.
	rec, err := s.Lookup(ctx, stored, now)
	switch {
	case errors.Is(err, ErrNotFound):
		return ErrCodeInvalid
	case err != nil:
		return err
	case rec.Email != email:
		return ErrCodeInvalid
	}

	n, err := consumeLua.Run(ctx, s.rdb, []string{s.emailKey(email), s.codeKey(stored)}, stored).Int()
	if err != nil {
		return fmt.Errorf("otp: redis consume: %w", err)
	}
	if n == 0 {
		return ErrCodeInvalid
	}
	return nil
}
