package middlewares

import (
	"fmt"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"

	"mandanten-backend/apperrors"
	"mandanten-backend/metrics"
)

type rateRecord struct {
	count       int
	windowStart time.Time
}

// RateLimiter is a fixed-window counter keyed "{endpoint}:{client_ip}",
// protecting discovery/login surfaces from enumeration and brute force.
// State is process-local and explicitly single-instance; horizontal scaling
// requires promoting it to a shared store.
type RateLimiter struct {
	mu      sync.Mutex
	records map[string]*rateRecord
	max     int
	window  time.Duration
	now     func() time.Time
	ops     int
}

func NewRateLimiter(max int, window time.Duration) *RateLimiter {
	if max <= 0 {
		max = 10
	}
	if window <= 0 {
		window = time.Minute
	}
	return &RateLimiter{
		records: make(map[string]*rateRecord),
		max:     max,
		window:  window,
		now:     time.Now,
	}
}

// Allow records one hit for key and reports whether it fits the window.
// When rejected, retryAfter is the time left until the window resets.
// An elapsed window resets atomically rather than accumulating.
func (rl *RateLimiter) Allow(key string) (ok bool, retryAfter time.Duration) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	rl.ops++
	if rl.ops%1024 == 0 {
		rl.pruneLocked(now)
	}

	rec, found := rl.records[key]
	if !found || now.Sub(rec.windowStart) >= rl.window {
		rl.records[key] = &rateRecord{count: 1, windowStart: now}
		return true, 0
	}
	if rec.count >= rl.max {
		return false, rec.windowStart.Add(rl.window).Sub(now)
	}
	rec.count++
	return true, 0
}

// pruneLocked drops records whose window elapsed; called opportunistically
// so the map does not grow with one entry per client forever.
func (rl *RateLimiter) pruneLocked(now time.Time) {
	for key, rec := range rl.records {
		if now.Sub(rec.windowStart) >= rl.window {
			delete(rl.records, key)
		}
	}
}

// RateLimit builds a Fiber middleware throttling one named endpoint per
// client IP.
func RateLimit(endpoint string, rl *RateLimiter, m *metrics.Metrics) fiber.Handler {
	return func(c *fiber.Ctx) error {
		key := endpoint + ":" + c.IP()
		ok, retryAfter := rl.Allow(key)
		if !ok {
			if m != nil {
				m.RateLimited.WithLabelValues(endpoint).Inc()
			}
			c.Set(fiber.HeaderRetryAfter, fmt.Sprintf("%d", int(retryAfter.Seconds())+1))
			return apperrors.E(apperrors.KindRateLimited, "too many requests")
		}
		return c.Next()
	}
}
