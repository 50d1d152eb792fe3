package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// hitLua increments the counter and opens the window on the first hit.
// KEYS[1] = counter key, ARGV[1] = window ms
// Returns {count, pttl}.
var hitLua = redis.NewScript(`
local n = redis.call('INCR', KEYS[1])
if n == 1 then
  redis.call('PEXPIRE', KEYS[1], ARGV[1])
end
local ttl = redis.call('PTTL', KEYS[1])
if ttl < 0 then
  redis.call('PEXPIRE', KEYS[1], ARGV[1])
  ttl = tonumber(ARGV[1])
end
return {n, ttl}
`)

// Redis is a Limiter shared by every replica that talks to the same server.
type Redis struct {
	rdb    redis.UniversalClient
	rule   Rule
	prefix string
}

var _ Limiter = (*Redis)(nil)

// NewRedis returns a Redis limiter whose keys are "<prefix>:<key>".
func NewRedis(rdb redis.UniversalClient, prefix string, rule Rule) (*Redis, error) {
	if err := rule.validate(); err != nil {
		return nil, err
	}
	if rdb == nil {
		return nil, fmt.Errorf("ratelimit: nil redis client")
	}
	if prefix == "" {
		prefix = "secureauth:rl"
	}
	return &Redis{rdb: rdb, rule: rule, prefix: prefix}, nil
}

func (r *Redis) key(k string) string { return r.prefix + ":" + k }

func (r *Redis) Hit(ctx context.Context, key string) (Decision, error) {
	res, err := hitLua.Run(ctx, r.rdb, []string{r.key(key)}, r.rule.Window.Milliseconds()).Int64Slice()
	if err != nil {
		return Decision{}, fmt.Errorf("ratelimit: redis hit: %w", err)
	}
	if len(res) != 2 {
		return Decision{}, fmt.Errorf("ratelimit: unexpected script reply")
	}
	return decide(r.rule, int(res[0]), time.Duration(res[1])*time.Millisecond, false), nil
}

func (r *Redis) Peek(ctx context.Context, key string) (Decision, error) {
	k := r.key(key)

	pipe := r.rdb.Pipeline()
	get := pipe.Get(ctx, k)
	ttl := pipe.PTTL(ctx, k)
	if _, err := pipe.Exec(ctx); err != nil && err != redis.Nil {
		return Decision{}, fmt.Errorf("ratelimit: redis peek: %w", err)
	}

	n, err := get.Int()
	if err == redis.Nil {
		return Decision{Allowed: true}, nil
	}
	if err != nil {
		return Decision{}, fmt.Errorf("ratelimit: redis peek: %w", err)
	}
	return decide(r.rule, n, ttl.Val(), true), nil
}

func (r *Redis) Reset(ctx context.Context, key string) error {
	if err := r.rdb.Del(ctx, r.key(key)).Err(); err != nil {
		return fmt.Errorf("ratelimit: redis reset: %w", err)
	}
	return nil
}
