package middleware

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
)

func TestIPRateLimit(t *testing.T) {
	rl := NewIPRateLimiter(3, time.Hour)
	r := gin.New()
	r.Use(IPRateLimit(rl))
	r.GET("/test", func(c *gin.Context) { c.Status(http.StatusOK) })

	send := func(ip string) int {
		req := httptest.NewRequest(http.MethodGet, "/test", http.NoBody)
		req.RemoteAddr = ip + ":1234"
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, req)
		return rec.Code
	}

	for i := 0; i < 3; i++ {
		if code := send("10.0.0.1"); code != http.StatusOK {
			t.Fatalf("request %d: status = %d, want 200", i+1, code)
		}
	}
	if code := send("10.0.0.1"); code != http.StatusTooManyRequests {
		t.Errorf("status = %d, want 429", code)
	}
	if code := send("10.0.0.2"); code != http.StatusOK {
		t.Errorf("other IP: status = %d, want 200", code)
	}
}

func TestNewIPRateLimiter_clampsMax(t *testing.T) {
	rl := NewIPRateLimiter(0, time.Minute)
	if !rl.Allow("ip") {
		t.Error("expected first request to pass")
	}
	if rl.Allow("ip") {
		t.Error("expected second request to be limited")
	}
}

func TestIPRateLimiter_evictsIdleIPs(t *testing.T) {
	clock := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	rl := NewIPRateLimiter(2, time.Minute)
	rl.now = func() time.Time { return clock }
	rl.lastSweep = clock

	for i := 0; i < 50; i++ {
		rl.Allow(fmt.Sprintf("10.0.1.%d", i))
	}
	if got := rl.Len(); got != 50 {
		t.Fatalf("tracked IPs = %d, want 50", got)
	}

	clock = clock.Add(30 * time.Second)
	rl.Allow("10.0.2.1")
	if got := rl.Len(); got != 51 {
		t.Fatalf("tracked IPs before a full window = %d, want 51", got)
	}

	clock = clock.Add(31 * time.Second)
	rl.Allow("10.0.2.2")
	if got := rl.Len(); got != 2 {
		t.Errorf("tracked IPs after a window = %d, want 2", got)
	}
}

func TestIPRateLimiter_sweepKeepsRecentIPs(t *testing.T) {
	clock := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	rl := NewIPRateLimiter(2, time.Minute)
	rl.now = func() time.Time { return clock }
	rl.lastSweep = clock

	rl.Allow("10.0.0.1")
	clock = clock.Add(50 * time.Second)
	rl.Allow("10.0.0.2")
	rl.Allow("10.0.0.2")
	if rl.Allow("10.0.0.2") {
		t.Fatal("expected third request to be limited")
	}

	clock = clock.Add(11 * time.Second)
	rl.Allow("10.0.0.3")
	if got := rl.Len(); got != 2 {
		t.Fatalf("tracked IPs = %d, want 2", got)
	}
	// 11s of refill is less than one token, so the drained bucket was kept.
	if rl.Allow("10.0.0.2") {
		t.Error("expected recent IP to stay limited across a sweep")
	}
	if !rl.Allow("10.0.0.1") || !rl.Allow("10.0.0.1") {
		t.Error("expected evicted IP to start with a full bucket")
	}
}
