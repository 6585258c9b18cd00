// Package ratelimit guards the advisory HTTP API with a fixed-window
// limiter whose counters live in a storage backend, so several server
// replicas sharing one Redis agree on the same limits.
package ratelimit

import (
	"context"
	"fmt"
	"log"
	"strconv"
	"time"

	"github.com/minhtran2412/loadscope/internal/clock"
	"github.com/minhtran2412/loadscope/internal/storage"
)

// keyPrefix namespaces limiter counters inside a shared backend.
const keyPrefix = "loadscope:rl:"

// Decision captures the result of a rate limit check.
type Decision struct {
	Allowed   bool      `json:"allowed"`
	Remaining int       `json:"remaining"` // requests remaining in the window after this check
	Limit     int       `json:"limit"`     // max requests per window
	ResetAt   time.Time `json:"reset_at"`  // when the current window ends
	RetryAt   time.Time `json:"retry_at"`  // earliest time to retry (if denied)
}

// Limiter is a fixed-window rate limiter. Each key gets a counter per
// window; the counter key embeds the window start so expired windows
// age out of storage on their own.
type Limiter struct {
	storage storage.Storage
	clock   clock.Clock
	rate    int
	window  time.Duration
}

// New creates a fixed-window limiter allowing rate requests per window.
func New(st storage.Storage, rate int, window time.Duration, c clock.Clock) (*Limiter, error) {
	if st == nil {
		return nil, fmt.Errorf("storage is required")
	}
	if rate <= 0 {
		return nil, fmt.Errorf("rate must be positive, got %d", rate)
	}
	if window <= 0 {
		return nil, fmt.Errorf("window must be positive, got %s", window)
	}
	if c == nil {
		c = clock.NewRealClock()
	}
	return &Limiter{
		storage: st,
		clock:   c,
		rate:    rate,
		window:  window,
	}, nil
}

// Allow checks whether one more request for key fits in the current
// window. A storage failure denies the request with a short retry, so a
// dead backend degrades to rejecting rather than open-admitting.
func (l *Limiter) Allow(ctx context.Context, key string) Decision {
	now := l.clock.Now()
	windowStart := now.Truncate(l.window)
	resetAt := windowStart.Add(l.window)

	counterKey := keyPrefix + key + ":" + strconv.FormatInt(windowStart.Unix(), 10)

	// Counters expire a window after the window closes; enough slack that
	// in-flight checks near the boundary still see the counter.
	count, err := l.storage.Increment(ctx, counterKey, 1, 2*l.window)
	if err != nil {
		log.Printf("rate limit check failed for key %q: %v", key, err)
		return Decision{
			Allowed: false,
			Limit:   l.rate,
			ResetAt: resetAt,
			RetryAt: now.Add(time.Second),
		}
	}

	d := Decision{
		Allowed: count <= int64(l.rate),
		Limit:   l.rate,
		ResetAt: resetAt,
	}
	if remaining := int64(l.rate) - count; remaining > 0 {
		d.Remaining = int(remaining)
	}
	if !d.Allowed {
		d.RetryAt = resetAt
	}
	return d
}
