package middleware

import (
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	apperrors "scoreauth/internal/errors"
	"scoreauth/internal/logger"
)

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// IPRateLimiter hands out one token bucket per client IP. A bucket holds max
// requests and refills completely over window. A bucket idle for a whole
// window is full again, so it is dropped on the next sweep.
type IPRateLimiter struct {
	mu        sync.Mutex
	visitors  map[string]*visitor
	every     rate.Limit
	burst     int
	window    time.Duration
	lastSweep time.Time
	now       func() time.Time
}

// NewIPRateLimiter allows max requests per window for each IP.
func NewIPRateLimiter(max int, window time.Duration) *IPRateLimiter {
	if max < 1 {
		max = 1
	}
	return &IPRateLimiter{
		visitors:  make(map[string]*visitor),
		every:     rate.Every(window / time.Duration(max)),
		burst:     max,
		window:    window,
		lastSweep: time.Now(),
		now:       time.Now,
	}
}

// Allow reports whether ip may make another request now. At most once per
// window it also evicts idle IPs.
func (rl *IPRateLimiter) Allow(ip string) bool {
	now := rl.now()

	rl.mu.Lock()
	defer rl.mu.Unlock()

	if now.Sub(rl.lastSweep) >= rl.window {
		rl.sweep(now)
	}

	v, ok := rl.visitors[ip]
	if !ok {
		v = &visitor{limiter: rate.NewLimiter(rl.every, rl.burst)}
		rl.visitors[ip] = v
	}
	v.lastSeen = now
	return v.limiter.AllowN(now, 1)
}

// sweep must be called with mu held.
func (rl *IPRateLimiter) sweep(now time.Time) {
	for ip, v := range rl.visitors {
		if now.Sub(v.lastSeen) >= rl.window {
			delete(rl.visitors, ip)
		}
	}
	rl.lastSweep = now
}

// Len returns the number of IPs currently tracked.
func (rl *IPRateLimiter) Len() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return len(rl.visitors)
}

// IPRateLimit rejects requests from an IP that exceeded its budget.
func IPRateLimit(rl *IPRateLimiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		ip := c.ClientIP()
		if !rl.Allow(ip) {
			logger.Security("rate_limited", "ip", ip, "path", c.FullPath())
			abortWithError(c, apperrors.ErrRateLimited)
			return
		}
		c.Next()
	}
}
