package auth

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mandanten-backend/apperrors"
)

func TestMemoryReplayGuard(t *testing.T) {
	ctx := context.Background()

	t.Run("first consume wins, second fails", func(t *testing.T) {
		g := NewMemoryReplayGuard()

		require.NoError(t, g.Consume(ctx, "jti-1", time.Minute))

		err := g.Consume(ctx, "jti-1", time.Minute)
		assert.Equal(t, apperrors.KindAlreadyUsed, apperrors.KindOf(err))

		used, err := g.IsConsumed(ctx, "jti-1")
		require.NoError(t, err)
		assert.True(t, used)
	})

	t.Run("distinct jtis are independent", func(t *testing.T) {
		g := NewMemoryReplayGuard()
		require.NoError(t, g.Consume(ctx, "jti-a", time.Minute))
		require.NoError(t, g.Consume(ctx, "jti-b", time.Minute))
	})

	t.Run("entry expires after ttl", func(t *testing.T) {
		g := NewMemoryReplayGuard()
		now := time.Now()
		g.now = func() time.Time { return now }

		require.NoError(t, g.Consume(ctx, "jti-ttl", time.Minute))

		now = now.Add(2 * time.Minute)
		used, err := g.IsConsumed(ctx, "jti-ttl")
		require.NoError(t, err)
		assert.False(t, used, "jti outlives its token only by the ttl")

		// The slot is reusable once expired; the token it guarded has
		// itself expired by then.
		require.NoError(t, g.Consume(ctx, "jti-ttl", time.Minute))
	})

	t.Run("concurrent consumption admits exactly one", func(t *testing.T) {
		g := NewMemoryReplayGuard()
		const n = 32
		results := make(chan error, n)
		for i := 0; i < n; i++ {
			go func() {
				results <- g.Consume(ctx, "jti-race", time.Minute)
			}()
		}
		var wins int
		for i := 0; i < n; i++ {
			if <-results == nil {
				wins++
			}
		}
		assert.Equal(t, 1, wins)
	})
}
