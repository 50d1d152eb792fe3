package authapi

import (
	"context"
	"fmt"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/asifkhan2513/secure-auth/cmd/internal/ratelimit"
)

// Rate limit rule names. They double as key prefixes and metric labels.
const (
	RuleLoginIP   = "login_ip"
	RuleLoginFail = "login_fail"
	RuleOTPIP     = "otp_ip"
	RuleOTPEmail  = "otp_email"
	RuleOTPVerify = "otp_verify"
)

// Limiters maps a rule name to its limiter. A missing rule is not enforced.
type Limiters map[string]ratelimit.Limiter

// MemoryLimiters builds in-process limiters for every rule in cfg.
func MemoryLimiters(cfg Config) (Limiters, error) {
	return buildLimiters(cfg, func(r ratelimit.Rule) (ratelimit.Limiter, error) {
		return ratelimit.NewMemory(r, nil)
	})
}

// RedisLimiters builds limiters shared through rdb.
func RedisLimiters(cfg Config, rdb redis.UniversalClient, prefix string) (Limiters, error) {
	return buildLimiters(cfg, func(r ratelimit.Rule) (ratelimit.Limiter, error) {
		return ratelimit.NewRedis(rdb, prefix, r)
	})
}

func buildLimiters(cfg Config, build func(ratelimit.Rule) (ratelimit.Limiter, error)) (Limiters, error) {
	out := make(Limiters)
	for name, rule := range cfg.Rules() {
		l, err := build(rule)
		if err != nil {
			return nil, fmt.Errorf("rate limit %s: %w", name, err)
		}
		out[name] = l
	}
	return out, nil
}

// hit records one attempt against rule for key. It writes the response and
// returns false when the request must stop.
func (h *Handler) hit(ctx context.Context, w http.ResponseWriter, rule, key string) bool {
	l := h.limits[rule]
	if l == nil {
		return true
	}
	d, err := l.Hit(ctx, rule+":"+key)
	return h.applyDecision(ctx, w, rule, d, err)
}

// peek checks rule for key without recording an attempt.
func (h *Handler) peek(ctx context.Context, w http.ResponseWriter, rule, key string) bool {
	l := h.limits[rule]
	if l == nil {
		return true
	}
	d, err := l.Peek(ctx, rule+":"+key)
	return h.applyDecision(ctx, w, rule, d, err)
}

func (h *Handler) record(ctx context.Context, rule, key string) {
	if l := h.limits[rule]; l != nil {
		if _, err := l.Hit(ctx, rule+":"+key); err != nil {
			h.log.ErrorContext(ctx, "auth.throttle.record.fail", "rule", rule, "err", err)
		}
	}
}

func (h *Handler) reset(ctx context.Context, rule, key string) {
	if l := h.limits[rule]; l != nil {
		if err := l.Reset(ctx, rule+":"+key); err != nil {
			h.log.ErrorContext(ctx, "auth.throttle.reset.fail", "rule", rule, "err", err)
		}
	}
}

func (h *Handler) applyDecision(ctx context.Context, w http.ResponseWriter, rule string, d ratelimit.Decision, err error) bool {
	if err != nil {
		h.log.ErrorContext(ctx, "auth.throttle.fail", "rule", rule, "err", err)
		writeError(w, http.StatusServiceUnavailable, "server_busy", "please retry later")
		return false
	}
	if !d.Allowed {
		h.rec.RateLimited(rule)
		writeRateLimited(w, d.RetryAfter)
		return false
	}
	return true
}

func writeRateLimited(w http.ResponseWriter, retryAfter time.Duration) {
	if retryAfter > 0 {
		secs := int64(math.Ceil(retryAfter.Seconds()))
		w.Header().Set("Retry-After", strconv.FormatInt(secs, 10))
	}
	writeError(w, http.StatusTooManyRequests, "rate_limited", "too many attempts")
}
