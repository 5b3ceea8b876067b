package security

import (
	"sync"
	"time"
)

// ThrottleConfig controls how many failures a key may accumulate within
// Window before it is locked for Lockout.
type ThrottleConfig struct {
	MaxAttempts int
	Window      time.Duration
	Lockout     time.Duration
}

// DefaultThrottleConfig returns 5 attempts per 3 minute window and a
// 3 minute lockout.
func DefaultThrottleConfig() ThrottleConfig {
	return ThrottleConfig{
		MaxAttempts: 5,
		Window:      3 * time.Minute,
		Lockout:     3 * time.Minute,
	}
}

type attemptRecord struct {
	failures    int
	windowStart time.Time
	lockedUntil time.Time
}

// Throttle counts failed logins per key and locks a key once it reaches
// MaxAttempts failures inside one window. Records expire lazily on the next
// access. State lives in process memory only and is not shared between
// instances.
type Throttle struct {
	cfg ThrottleConfig
	now func() time.Time

	mu      sync.Mutex
	records map[string]*attemptRecord
}

// ThrottleOption configures a Throttle.
type ThrottleOption func(*Throttle)

// WithClock replaces time.Now, mainly for tests.
func WithClock(now func() time.Time) ThrottleOption {
	return func(t *Throttle) { t.now = now }
}

// NewThrottle creates a throttle. Non-positive config values fall back to
// DefaultThrottleConfig.
func NewThrottle(cfg ThrottleConfig, opts ...ThrottleOption) *Throttle {
	def := DefaultThrottleConfig()
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = def.MaxAttempts
	}
	if cfg.Window <= 0 {
		cfg.Window = def.Window
	}
	if cfg.Lockout <= 0 {
		cfg.Lockout = def.Lockout
	}
	t := &Throttle{
		cfg:     cfg,
		now:     time.Now,
		records: make(map[string]*attemptRecord),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Config returns the active configuration.
func (t *Throttle) Config() ThrottleConfig {
	return t.cfg
}

// CanAttempt reports whether key is currently allowed to try a login.
func (t *Throttle) CanAttempt(key string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	rec := t.current(key, t.now())
	return rec == nil || rec.lockedUntil.IsZero()
}

// RecordFailure counts a failed attempt for key, locking it when the
// threshold is reached.
func (t *Throttle) RecordFailure(key string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.now()
	rec := t.current(key, now)
	if rec == nil {
		rec = &attemptRecord{windowStart: now}
		t.records[key] = rec
	}
	if !rec.lockedUntil.IsZero() {
		return
	}
	rec.failures++
	if rec.failures >= t.cfg.MaxAttempts {
		rec.lockedUntil = now.Add(t.cfg.Lockout)
	}
}

// RecordSuccess clears any state held for key.
func (t *Throttle) RecordSuccess(key string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.records, key)
}

// RemainingLock returns how long key stays locked, or zero.
func (t *Throttle) RemainingLock(key string) time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.now()
	rec := t.current(key, now)
	if rec == nil || rec.lockedUntil.IsZero() {
		return 0
	}
	return rec.lockedUntil.Sub(now)
}

// RemainingLockMs is RemainingLock in whole milliseconds, rounded up so a
// locked key never reports zero.
func (t *Throttle) RemainingLockMs(key string) int64 {
	d := t.RemainingLock(key)
	if d <= 0 {
		return 0
	}
	return int64((d + time.Millisecond - 1) / time.Millisecond)
}

// Failures returns the failure count in the current window.
func (t *Throttle) Failures(key string) int {
	t.mu.Lock()
	defer t.mu.Unlock()

	if rec := t.current(key, t.now()); rec != nil {
		return rec.failures
	}
	return 0
}

// current returns the live record for key, discarding it first if its lock
// has elapsed or its window expired without a lock. Caller holds mu.
func (t *Throttle) current(key string, now time.Time) *attemptRecord {
	rec, ok := t.records[key]
	if !ok {
		return nil
	}
	if !rec.lockedUntil.IsZero() {
		if now.Before(rec.lockedUntil) {
			return rec
		}
		delete(t.records, key)
		return nil
	}
	if now.Sub(rec.windowStart) > t.cfg.Window {
		delete(t.records, key)
		return nil
	}
	return rec
}
