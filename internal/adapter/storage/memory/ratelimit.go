package memory

import (
	"context"
	"sync"
	"time"

	"wager-ledger/internal/core/ports"
)

type window struct {
	id    int64
	count int64
}

// RateLimiter implements ports.RateLimiter for a single process.
type RateLimiter struct {
	mu      sync.Mutex
	windows map[string]window
	now     func() time.Time
}

// NewRateLimiter creates an empty fixed-window limiter.
func NewRateLimiter() *RateLimiter {
	return &RateLimiter{windows: make(map[string]window), now: time.Now}
}

func (r *RateLimiter) Allow(_ context.Context, key string, limit int64, win time.Duration) (*ports.RateLimitResult, error) {
	secs := int64(win.Seconds())
	if secs < 1 {
		secs = 1
	}
	id := r.now().Unix() / secs

	r.mu.Lock()
	w := r.windows[key]
	if w.id != id {
		w = window{id: id}
	}
	w.count++
	r.windows[key] = w
	r.mu.Unlock()

	remaining := limit - w.count
	if remaining < 0 {
		remaining = 0
	}
	return &ports.RateLimitResult{
		Allowed:   w.count <= limit,
		Limit:     limit,
		Remaining: remaining,
		ResetAt:   (id + 1) * secs,
	}, nil
}
