package ratelimit

import (
	"context"
	"sync"
	"time"
)

type window struct {
	count int
	ends  time.Time
}

// Memory is an in-process Limiter. Expired windows are swept lazily.
type Memory struct {
	rule Rule
	now  func() time.Time

	mu        sync.Mutex
	windows   map[string]window
	lastSweep time.Time
}

var _ Limiter = (*Memory)(nil)

// NewMemory returns a Memory limiter. now defaults to time.Now.
func NewMemory(rule Rule, now func() time.Time) (*Memory, error) {
	if err := rule.validate(); err != nil {
		return nil, err
	}
	if now == nil {
		now = time.Now
	}
	return &Memory{rule: rule, now: now, windows: make(map[string]window)}, nil
}

func (m *Memory) Hit(_ context.Context, key string) (Decision, error) {
	now := m.now()

	m.mu.Lock()
	defer m.mu.Unlock()

	m.sweepLocked(now)

	w, ok := m.windows[key]
	if !ok || !now.Before(w.ends) {
		w = window{ends: now.Add(m.rule.Window)}
	}
	w.count++
	m.windows[key] = w

	return decide(m.rule, w.count, w.ends.Sub(now), false), nil
}

func (m *Memory) Peek(_ context.Context, key string) (Decision, error) {
	now := m.now()

	m.mu.Lock()
	defer m.mu.Unlock()

	w, ok := m.windows[key]
	if !ok || !now.Before(w.ends) {
		return Decision{Allowed: true}, nil
	}
	return decide(m.rule, w.count, w.ends.Sub(now), true), nil
}

func (m *Memory) Reset(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.windows, key)
	return nil
}

func (m *Memory) sweepLocked(now time.Time) {
	if now.Sub(m.lastSweep) < m.rule.Window {
		return
	}
	m.lastSweep = now
	for k, w := range m.windows {
		if !now.Before(w.ends) {
			delete(m.windows, k)
		}
	}
}
