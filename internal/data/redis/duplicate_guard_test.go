package redis

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

func TestDuplicateGuard_Acquire(t *testing.T) {
	ctx := context.Background()
	mr, client := newTestRedis(t)
	guard := NewDuplicateGuard(slog.Default(), client, time.Minute)

	orgID := uuid.New()
	userID := uuid.New()

	t.Run("first submission acquires", func(t *testing.T) {
		err := guard.Acquire(ctx, orgID, userID, "0123456789", 100000)
		assert.NoError(t, err)
	})

	t.Run("identical submission within window is rejected", func(t *testing.T) {
		err := guard.Acquire(ctx, orgID, userID, "0123456789", 100000)
		assert.ErrorIs(t, err, ErrDuplicateAttempt)
	})

	t.Run("different amount acquires its own key", func(t *testing.T) {
		err := guard.Acquire(ctx, orgID, userID, "0123456789", 250000)
		assert.NoError(t, err)
	})

	t.Run("acquires again after window elapses", func(t *testing.T) {
		mr.FastForward(2 * time.Minute)

		err := guard.Acquire(ctx, orgID, userID, "0123456789", 100000)
		assert.NoError(t, err)
	})
}

func TestDuplicateGuard_Release(t *testing.T) {
	ctx := context.Background()
	_, client := newTestRedis(t)
	guard := NewDuplicateGuard(slog.Default(), client, time.Minute)

	orgID := uuid.New()
	userID := uuid.New()

	require.NoError(t, guard.Acquire(ctx, orgID, userID, "0123456789", 100000))
	assert.ErrorIs(t, guard.Acquire(ctx, orgID, userID, "0123456789", 100000), ErrDuplicateAttempt)

	guard.Release(ctx, orgID, userID, "0123456789", 100000)

	// Released key can be acquired again immediately
	assert.NoError(t, guard.Acquire(ctx, orgID, userID, "0123456789", 100000))
}

func TestDuplicateGuard_RedisDownAllowsSubmission(t *testing.T) {
	ctx := context.Background()
	mr, client := newTestRedis(t)
	guard := NewDuplicateGuard(slog.Default(), client, time.Minute)

	mr.Close()

	// Availability wins over duplicate suppression when Redis is unreachable
	err := guard.Acquire(ctx, uuid.New(), uuid.New(), "0123456789", 100000)
	assert.NoError(t, err)
}
