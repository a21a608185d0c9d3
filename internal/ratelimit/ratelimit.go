// Package ratelimit implements a fixed-window request counter keyed by an
// arbitrary identifier (the client IP in the HTTP layer). Counters live behind
// Store so a shared cache can replace the in-process map.
package ratelimit

import (
	"context"
	"fmt"
	"time"
)

type Counter struct {
	Count   int
	ResetAt time.Time
}

type Store interface {
	// Get returns the live counter for key, or a zero Counter when none exists.
	Get(ctx context.Context, key string) (Counter, error)
	// Increment adds one hit, opening a new window of the given length when the
	// previous one is over.
	Increment(ctx context.Context, key string, window time.Duration) (Counter, error)
	// Expire drops the counter for key.
	Expire(ctx context.Context, key string) error
}

type Decision struct {
	Allowed    bool
	Limit      int
	Remaining  int
	ResetAt    time.Time
	RetryAfter time.Duration
}

type Limiter struct {
	store  Store
	limit  int
	window time.Duration
	now    func() time.Time
}

func NewLimiter(store Store, limit int, window time.Duration) *Limiter {
	return &Limiter{store: store, limit: limit, window: window, now: time.Now}
}

func (l *Limiter) Allow(ctx context.Context, key string) (Decision, error) {
	counter, err := l.store.Increment(ctx, key, l.window)
	if err != nil {
		return Decision{}, fmt.Errorf("increment rate counter: %w", err)
	}

	decision := Decision{
		Allowed: counter.Count <= l.limit,
		Limit:   l.limit,
		ResetAt: counter.ResetAt,
	}
	if remaining := l.limit - counter.Count; remaining > 0 {
		decision.Remaining = remaining
	}
	if !decision.Allowed {
		decision.RetryAfter = counter.ResetAt.Sub(l.now())
		if decision.RetryAfter < time.Second {
			decision.RetryAfter = time.Second
		}
	}
	return decision, nil
}

func (l *Limiter) Reset(ctx context.Context, key string) error {
	return l.store.Expire(ctx, key)
}
