package redis

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/finverse-ledger-engine/internal/domain/counterparty"
)

func TestCounterpartyCache_SetAndGet(t *testing.T) {
	ctx := context.Background()
	mr, client := newTestRedis(t)
	cache := NewCounterpartyCache(slog.Default(), client, time.Hour)

	cp := &counterparty.Counterparty{
		ID:             uuid.New(),
		OrganizationID: uuid.New(),
		AccountNumber:  "0123456789",
		BankCode:       "058",
		AccountName:    "Ada Obi",
		BankName:       "Guaranty Trust Bank",
		BankID:         "gtb",
		IsRecipient:    true,
	}

	t.Run("miss returns nil without error", func(t *testing.T) {
		got, err := cache.Get(ctx, cp.OrganizationID, cp.AccountNumber, cp.BankCode)
		assert.NoError(t, err)
		assert.Nil(t, got)
	})

	t.Run("set then get round-trips", func(t *testing.T) {
		require.NoError(t, cache.Set(ctx, cp))

		got, err := cache.Get(ctx, cp.OrganizationID, cp.AccountNumber, cp.BankCode)
		assert.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, cp.AccountName, got.AccountName)
		assert.Equal(t, cp.BankName, got.BankName)
		assert.True(t, got.IsRecipient)
	})

	t.Run("entry expires after TTL", func(t *testing.T) {
		mr.FastForward(2 * time.Hour)

		got, err := cache.Get(ctx, cp.OrganizationID, cp.AccountNumber, cp.BankCode)
		assert.NoError(t, err)
		assert.Nil(t, got)
	})
}

func TestCounterpartyCache_CorruptEntryIsDropped(t *testing.T) {
	ctx := context.Background()
	mr, client := newTestRedis(t)
	cache := NewCounterpartyCache(slog.Default(), client, time.Hour)

	orgID := uuid.New()
	key := cacheKey(orgID, "0123456789", "058")
	require.NoError(t, mr.Set(key, "not json"))

	got, err := cache.Get(ctx, orgID, "0123456789", "058")
	assert.NoError(t, err)
	assert.Nil(t, got)

	// The corrupt value was deleted so the next resolution repopulates it
	assert.False(t, mr.Exists(key))
}

func TestCounterpartyCache_RedisDownFallsThrough(t *testing.T) {
	ctx := context.Background()
	mr, client := newTestRedis(t)
	cache := NewCounterpartyCache(slog.Default(), client, time.Hour)

	mr.Close()

	got, err := cache.Get(ctx, uuid.New(), "0123456789", "058")
	assert.NoError(t, err)
	assert.Nil(t, got)

	err = cache.Set(ctx, &counterparty.Counterparty{
		ID:             uuid.New(),
		OrganizationID: uuid.New(),
		AccountNumber:  "0123456789",
		BankCode:       "058",
	})
	assert.Error(t, err)
}
