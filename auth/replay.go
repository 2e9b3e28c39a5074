package auth

import (
	"context"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"mandanten-backend/apperrors"
)

// ReplayGuard tracks consumed single-use token identifiers. Consume must be
// atomic first-wins: under concurrent redemption of the same jti exactly one
// caller succeeds. Marking happens before the real token is issued, so a
// crash after Consume costs the user a retry, never a double redemption.
type ReplayGuard interface {
	// Consume marks jti as used for at least ttl. It fails AlreadyUsed if
	// the jti was consumed before.
	Consume(ctx context.Context, jti string, ttl time.Duration) error
	// IsConsumed reports whether jti has been consumed.
	IsConsumed(ctx context.Context, jti string) (bool, error)
}

const replayKeyPrefix = "replay:jti:"

// RedisReplayGuard backs the guard with a shared Redis store, so it is
// correct across multiple service instances, not just threads.
type RedisReplayGuard struct {
	client *redis.Client
}

func NewRedisReplayGuard(client *redis.Client) *RedisReplayGuard {
	return &RedisReplayGuard{client: client}
}

func (g *RedisReplayGuard) Consume(ctx context.Context, jti string, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = time.Minute
	}
	ok, err := g.client.SetNX(ctx, replayKeyPrefix+jti, "1", ttl).Result()
	if err != nil {
		return apperrors.Wrap(apperrors.KindUnavailable, "replay guard unreachable", err)
	}
	if !ok {
		return apperrors.E(apperrors.KindAlreadyUsed, "token already used")
	}
	return nil
}

func (g *RedisReplayGuard) IsConsumed(ctx context.Context, jti string) (bool, error) {
	n, err := g.client.Exists(ctx, replayKeyPrefix+jti).Result()
	if err != nil {
		return false, apperrors.Wrap(apperrors.KindUnavailable, "replay guard unreachable", err)
	}
	return n > 0, nil
}

// MemoryReplayGuard is a single-instance, in-process guard for development
// and tests. Horizontal scaling requires the Redis implementation.
type MemoryReplayGuard struct {
	mu   sync.Mutex
	seen map[string]time.Time // jti -> expiry
	now  func() time.Time
}

func NewMemoryReplayGuard() *MemoryReplayGuard {
	return &MemoryReplayGuard{seen: make(map[string]time.Time), now: time.Now}
}

func (g *MemoryReplayGuard) Consume(_ context.Context, jti string, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = time.Minute
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	now := g.now()
	g.evictLocked(now)
	if exp, ok := g.seen[jti]; ok && exp.After(now) {
		return apperrors.E(apperrors.KindAlreadyUsed, "token already used")
	}
	g.seen[jti] = now.Add(ttl)
	return nil
}

func (g *MemoryReplayGuard) IsConsumed(_ context.Context, jti string) (bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	exp, ok := g.seen[jti]
	return ok && exp.After(g.now()), nil
}

func (g *MemoryReplayGuard) evictLocked(now time.Time) {
	for jti, exp := range g.seen {
		if !exp.After(now) {
			delete(g.seen, jti)
		}
	}
}
