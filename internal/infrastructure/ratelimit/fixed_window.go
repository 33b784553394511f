// Package ratelimit provides the in-process fixed-window rate limiter.
package ratelimit

import (
	"context"
	"sync"
	"time"

	"github.com/turtacn/taskflow/pkg/clock"
)

// Policy is the quota of one limiter instance.
type Policy struct {
	// MaxRequests is the number of admitted calls per window
	MaxRequests int
	// Window is the length of a counting window
	Window time.Duration
}

// Decision describes the outcome of one Decide call.
type Decision struct {
	Allowed   bool
	Limit     int
	Remaining int
	ResetAt   time.Time
}

// RetryAfter returns how long the caller should wait before the window resets.
func (d Decision) RetryAfter(now time.Time) time.Duration {
	if d.ResetAt.Before(now) {
		return 0
	}
	return d.ResetAt.Sub(now)
}

// window tracks one key. count is the number of calls since start, rejected ones included.
type window struct {
	start time.Time
	count int
}

// FixedWindowLimiter counts calls per key over fixed windows.
// A window restarts at the first call after the previous one fully elapsed.
type FixedWindowLimiter struct {
	mu      sync.Mutex
	policy  Policy
	clock   clock.Clock
	windows map[string]*window
}

// NewFixedWindowLimiter creates a limiter for policy.
//
// Parameters:
//   - policy: quota and window length
//   - clk: time source; nil selects the wall clock
//
// Returns:
//   - *FixedWindowLimiter: limiter with an empty window table
func NewFixedWindowLimiter(policy Policy, clk clock.Clock) *FixedWindowLimiter {
	if clk == nil {
		clk = clock.New()
	}
	return &FixedWindowLimiter{
		policy:  policy,
		clock:   clk,
		windows: make(map[string]*window),
	}
}

// Admit counts one call for key and reports whether it is within quota.
func (l *FixedWindowLimiter) Admit(key string) bool {
	return l.Decide(key).Allowed
}

// Decide counts one call for key and returns the full decision.
func (l *FixedWindowLimiter) Decide(key string) Decision {
	now := l.clock.Now()

	l.mu.Lock()
	defer l.mu.Unlock()

	w, ok := l.windows[key]
	if !ok || now.Sub(w.start) > l.policy.Window {
		w = &window{start: now}
		l.windows[key] = w
	}
	w.count++

	remaining := l.policy.MaxRequests - w.count
	if remaining < 0 {
		remaining = 0
	}
	return Decision{
		Allowed:   w.count <= l.policy.MaxRequests,
		Limit:     l.policy.MaxRequests,
		Remaining: remaining,
		ResetAt:   w.start.Add(l.policy.Window),
	}
}

// Policy returns the limiter's quota.
func (l *FixedWindowLimiter) Policy() Policy {
	return l.policy
}

// Now returns the limiter's notion of the current time.
func (l *FixedWindowLimiter) Now() time.Time {
	return l.clock.Now()
}

// Sweep removes windows that have fully elapsed and returns how many were dropped.
// Dropping an elapsed window is unobservable: the next call would reset it anyway.
func (l *FixedWindowLimiter) Sweep() int {
	now := l.clock.Now()

	l.mu.Lock()
	defer l.mu.Unlock()

	removed := 0
	for key, w := range l.windows {
		if now.Sub(w.start) > l.policy.Window {
			delete(l.windows, key)
			removed++
		}
	}
	return removed
}

// StartJanitor sweeps elapsed windows every interval until ctx is done. It bounds memory
// when many distinct keys (for example source addresses) show up once and never return.
func (l *FixedWindowLimiter) StartJanitor(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				l.Sweep()
			}
		}
	}()
}

// Size returns the number of tracked keys.
func (l *FixedWindowLimiter) Size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.windows)
}
