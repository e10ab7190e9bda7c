package redis

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// ErrDuplicateAttempt is returned when an identical transfer was submitted
// within the guard window
var ErrDuplicateAttempt = errors.New("identical transfer submitted within the duplicate window")

// DuplicateGuard blocks accidental resubmission of the same transfer. It is a
// best-effort pre-check over the durable reference uniqueness constraint, not
// a replacement for it.
type DuplicateGuard struct {
	client *redis.Client
	window time.Duration
	logger *slog.Logger
}

// NewDuplicateGuard creates a guard with the given suppression window
func NewDuplicateGuard(logger *slog.Logger, client *redis.Client, window time.Duration) *DuplicateGuard {
	return &DuplicateGuard{
		client: client,
		window: window,
		logger: logger,
	}
}

func guardKey(organizationID, userID uuid.UUID, accountNumber string, amount int64) string {
	return fmt.Sprintf("transfer:dup:%s:%s:%s:%d", organizationID, userID, accountNumber, amount)
}

// Acquire claims the guard key for the window. Returns ErrDuplicateAttempt if
// an identical submission already holds it. Redis failures are logged and
// treated as acquired; availability wins over duplicate suppression here.
func (g *DuplicateGuard) Acquire(ctx context.Context, organizationID, userID uuid.UUID, accountNumber string, amount int64) error {
	key := guardKey(organizationID, userID, accountNumber, amount)

	ok, err := g.client.SetNX(ctx, key, time.Now().Unix(), g.window).Result()
	if err != nil {
		g.logger.Error("Duplicate guard unavailable, allowing submission", "key", key, "error", err)
		return nil
	}
	if !ok {
		return ErrDuplicateAttempt
	}
	return nil
}

// Release frees the guard key early, called when the guarded submission fails
// before any balance was touched so the user can retry immediately.
func (g *DuplicateGuard) Release(ctx context.Context, organizationID, userID uuid.UUID, accountNumber string, amount int64) {
	key := guardKey(organizationID, userID, accountNumber, amount)
	if err := g.client.Del(ctx, key).Err(); err != nil {
		g.logger.Error("Failed to release duplicate guard", "key", key, "error", err)
	}
}
