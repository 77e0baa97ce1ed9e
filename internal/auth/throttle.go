package auth

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Throttle limits login attempts per email. Each email gets a token bucket holding attempts
// tokens that refills completely over one window.
type Throttle struct {
	mu       sync.Mutex
	limiters map[string]*throttleEntry
	every    time.Duration
	burst    int
	idle     time.Duration
	now      func() time.Time
}

type throttleEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// ThrottleOption customizes a Throttle.
type ThrottleOption func(*Throttle)

// WithThrottleClock replaces the clock used to spend and refill attempts.
func WithThrottleClock(now func() time.Time) ThrottleOption {
	return func(t *Throttle) { t.now = now }
}

// NewThrottle allows attempts logins per email per window, regaining one attempt every
// window/attempts. A non-positive attempts or window disables throttling.
func NewThrottle(window time.Duration, attempts int, opts ...ThrottleOption) *Throttle {
	t := &Throttle{
		limiters: make(map[string]*throttleEntry),
		burst:    attempts,
		idle:     window,
		now:      time.Now,
	}
	if attempts > 0 && window > 0 {
		t.every = window / time.Duration(attempts)
	} else {
		t.burst = 0
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Allow consumes one attempt for key.
func (t *Throttle) Allow(key string) bool {
	if t == nil || t.burst <= 0 {
		return true
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	now := t.now()
	t.sweep(now)
	entry, ok := t.limiters[key]
	if !ok {
		entry = &throttleEntry{limiter: rate.NewLimiter(rate.Every(t.every), t.burst)}
		t.limiters[key] = entry
	}
	entry.lastSeen = now
	return entry.limiter.AllowN(now, 1)
}

// Reset forgets the attempts of key, typically after a successful login.
func (t *Throttle) Reset(key string) {
	if t == nil {
		return
	}
	t.mu.Lock()
	delete(t.limiters, key)
	t.mu.Unlock()
}

// sweep drops buckets that have refilled completely.
func (t *Throttle) sweep(now time.Time) {
	for key, entry := range t.limiters {
		if now.Sub(entry.lastSeen) > t.idle {
			delete(t.limiters, key)
		}
	}
}
