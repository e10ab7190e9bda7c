package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/finverse-ledger-engine/internal/domain/counterparty"
)

// CounterpartyCache is the hot cache in front of the counterparty table.
// Misses and Redis failures both fall through to the caller; the cache never
// blocks a resolution.
type CounterpartyCache struct {
	client *redis.Client
	ttl    time.Duration
	logger *slog.Logger
}

// NewCounterpartyCache creates a cache with the given entry TTL
func NewCounterpartyCache(logger *slog.Logger, client *redis.Client, ttl time.Duration) *CounterpartyCache {
	return &CounterpartyCache{
		client: client,
		ttl:    ttl,
		logger: logger,
	}
}

func cacheKey(organizationID uuid.UUID, accountNumber, bankCode string) string {
	return fmt.Sprintf("counterparty:%s:%s:%s", organizationID, accountNumber, bankCode)
}

// Get returns the cached counterparty, or nil on a miss
func (c *CounterpartyCache) Get(ctx context.Context, organizationID uuid.UUID, accountNumber, bankCode string) (*counterparty.Counterparty, error) {
	key := cacheKey(organizationID, accountNumber, bankCode)

	raw, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		c.logger.Error("Counterparty cache read failed", "key", key, "error", err)
		return nil, nil
	}

	var cp counterparty.Counterparty
	if err := json.Unmarshal(raw, &cp); err != nil {
		c.logger.Error("Failed to decode cached counterparty, dropping entry", "key", key, "error", err)
		c.client.Del(ctx, key)
		return nil, nil
	}

	return &cp, nil
}

// Set stores a resolved counterparty for the cache TTL
func (c *CounterpartyCache) Set(ctx context.Context, cp *counterparty.Counterparty) error {
	key := cacheKey(cp.OrganizationID, cp.AccountNumber, cp.BankCode)

	raw, err := json.Marshal(cp)
	if err != nil {
		return fmt.Errorf("failed to encode counterparty: %w", err)
	}

	if err := c.client.Set(ctx, key, raw, c.ttl).Err(); err != nil {
		c.logger.Error("Counterparty cache write failed", "key", key, "error", err)
		return fmt.Errorf("failed to cache counterparty: %w", err)
	}

	return nil
}
