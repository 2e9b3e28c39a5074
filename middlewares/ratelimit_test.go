package middlewares

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRateLimiterWindow(t *testing.T) {
	rl := NewRateLimiter(10, 60*time.Second)
	now := time.Now()
	rl.now = func() time.Time { return now }

	const key = "discover:1.2.3.4"

	t.Run("allows the first 10, rejects the 11th", func(t *testing.T) {
		for i := 0; i < 10; i++ {
			ok, _ := rl.Allow(key)
			assert.True(t, ok, "call %d should pass", i+1)
		}
		ok, retryAfter := rl.Allow(key)
		assert.False(t, ok)
		assert.Equal(t, 60*time.Second, retryAfter, "retry-after matches the remaining window")
	})

	t.Run("retry-after shrinks as the window ages", func(t *testing.T) {
		now = now.Add(45 * time.Second)
		ok, retryAfter := rl.Allow(key)
		assert.False(t, ok)
		assert.Equal(t, 15*time.Second, retryAfter)
	})

	t.Run("elapsed window resets atomically", func(t *testing.T) {
		now = now.Add(20 * time.Second) // 65s past windowStart
		ok, _ := rl.Allow(key)
		assert.True(t, ok, "new window starts with a fresh count")

		// Counter restarted at 1, not accumulated.
		for i := 0; i < 9; i++ {
			ok, _ := rl.Allow(key)
			assert.True(t, ok)
		}
		ok, _ = rl.Allow(key)
		assert.False(t, ok)
	})
}

func TestRateLimiterKeysAreIndependent(t *testing.T) {
	rl := NewRateLimiter(2, time.Minute)

	ok, _ := rl.Allow("login:1.1.1.1")
	assert.True(t, ok)
	ok, _ = rl.Allow("login:1.1.1.1")
	assert.True(t, ok)
	ok, _ = rl.Allow("login:1.1.1.1")
	assert.False(t, ok)

	// Different client and different endpoint both have their own window.
	ok, _ = rl.Allow("login:2.2.2.2")
	assert.True(t, ok)
	ok, _ = rl.Allow("discover:1.1.1.1")
	assert.True(t, ok)
}

func TestRateLimiterPrunesExpiredRecords(t *testing.T) {
	rl := NewRateLimiter(5, time.Minute)
	now := time.Now()
	rl.now = func() time.Time { return now }

	rl.Allow("a:1.1.1.1")
	rl.Allow("b:2.2.2.2")
	now = now.Add(2 * time.Minute)

	rl.mu.Lock()
	rl.pruneLocked(now)
	remaining := len(rl.records)
	rl.mu.Unlock()
	assert.Equal(t, 0, remaining)
}
