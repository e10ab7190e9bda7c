package resolver

import (
	"context"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/finverse-ledger-engine/internal/data/redis"
	"github.com/finverse-ledger-engine/internal/domain/counterparty"
	"github.com/finverse-ledger-engine/internal/provider"
)

// MockCounterpartyRepository is a mock implementation of counterparty.Repository
type MockCounterpartyRepository struct {
	mock.Mock
}

func (m *MockCounterpartyRepository) Upsert(ctx context.Context, c *counterparty.Counterparty) error {
	args := m.Called(ctx, c)
	return args.Error(0)
}

func (m *MockCounterpartyRepository) GetByAccount(ctx context.Context, organizationID uuid.UUID, accountNumber, bankCode string) (*counterparty.Counterparty, error) {
	args := m.Called(ctx, organizationID, accountNumber, bankCode)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*counterparty.Counterparty), args.Error(1)
}

func (m *MockCounterpartyRepository) ListRecipients(ctx context.Context, organizationID uuid.UUID) ([]*counterparty.Counterparty, error) {
	args := m.Called(ctx, organizationID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*counterparty.Counterparty), args.Error(1)
}

func (m *MockCounterpartyRepository) SetRecipient(ctx context.Context, id uuid.UUID, isRecipient bool) error {
	args := m.Called(ctx, id, isRecipient)
	return args.Error(0)
}

// MockBankVerifier is a mock implementation of provider.BankVerificationProvider
type MockBankVerifier struct {
	mock.Mock
}

func (m *MockBankVerifier) ResolveAccount(ctx context.Context, accountNumber, bankCode string) (*provider.ResolvedAccount, error) {
	args := m.Called(ctx, accountNumber, bankCode)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*provider.ResolvedAccount), args.Error(1)
}

var _ counterparty.Repository = (*MockCounterpartyRepository)(nil)
var _ provider.BankVerificationProvider = (*MockBankVerifier)(nil)

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

func newTestCache(t *testing.T) (*redis.CounterpartyCache, *miniredis.Miniredis) {
	t.Helper()

	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	return redis.NewCounterpartyCache(newTestLogger(), client, time.Hour), mr
}

func storedCounterparty(organizationID uuid.UUID) *counterparty.Counterparty {
	now := time.Now().UTC().Truncate(time.Second)
	return &counterparty.Counterparty{
		ID:             uuid.New(),
		OrganizationID: organizationID,
		AccountNumber:  "0123456789",
		BankCode:       "058",
		AccountName:    "Acme Industrial Ltd",
		BankName:       "Guaranty Trust Bank",
		BankID:         "bnk_gtb",
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

func TestService_Resolve(t *testing.T) {
	ctx := context.Background()
	organizationID := uuid.New()

	t.Run("Redis hit skips repository and verifier", func(t *testing.T) {
		cache, _ := newTestCache(t)
		mockRepo := new(MockCounterpartyRepository)
		mockVerifier := new(MockBankVerifier)
		svc := NewService(newTestLogger(), mockVerifier, cache, mockRepo)

		cp := storedCounterparty(organizationID)
		require.NoError(t, cache.Set(ctx, cp))

		got, err := svc.Resolve(ctx, organizationID, cp.AccountNumber, cp.BankCode)

		require.NoError(t, err)
		assert.Equal(t, cp.ID, got.ID)
		assert.Equal(t, cp.AccountName, got.AccountName)
		mockRepo.AssertNotCalled(t, "GetByAccount", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
		mockVerifier.AssertNotCalled(t, "ResolveAccount", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("Postgres hit warms redis", func(t *testing.T) {
		cache, _ := newTestCache(t)
		mockRepo := new(MockCounterpartyRepository)
		mockVerifier := new(MockBankVerifier)
		svc := NewService(newTestLogger(), mockVerifier, cache, mockRepo)

		cp := storedCounterparty(organizationID)
		mockRepo.On("GetByAccount", ctx, organizationID, cp.AccountNumber, cp.BankCode).Return(cp, nil).Once()

		got, err := svc.Resolve(ctx, organizationID, cp.AccountNumber, cp.BankCode)

		require.NoError(t, err)
		assert.Equal(t, cp.ID, got.ID)
		mockVerifier.AssertNotCalled(t, "ResolveAccount", mock.Anything, mock.Anything, mock.Anything)

		// Second resolution is served from redis
		got, err = svc.Resolve(ctx, organizationID, cp.AccountNumber, cp.BankCode)
		require.NoError(t, err)
		assert.Equal(t, cp.ID, got.ID)
		mockRepo.AssertExpectations(t)
	})

	t.Run("Provider miss resolves and writes both caches", func(t *testing.T) {
		cache, _ := newTestCache(t)
		mockRepo := new(MockCounterpartyRepository)
		mockVerifier := new(MockBankVerifier)
		svc := NewService(newTestLogger(), mockVerifier, cache, mockRepo)

		mockRepo.On("GetByAccount", ctx, organizationID, "0123456789", "058").Return(nil, nil).Once()
		mockVerifier.On("ResolveAccount", ctx, "0123456789", "058").Return(&provider.ResolvedAccount{
			AccountNumber: "0123456789",
			BankCode:      "058",
			AccountName:   "Acme Industrial Ltd",
			BankName:      "Guaranty Trust Bank",
			BankID:        "bnk_gtb",
		}, nil).Once()
		mockRepo.On("Upsert", ctx, mock.MatchedBy(func(cp *counterparty.Counterparty) bool {
			return cp.OrganizationID == organizationID &&
				cp.AccountNumber == "0123456789" &&
				cp.AccountName == "Acme Industrial Ltd"
		})).Return(nil).Once()

		got, err := svc.Resolve(ctx, organizationID, "0123456789", "058")

		require.NoError(t, err)
		assert.NotEqual(t, uuid.Nil, got.ID)
		assert.Equal(t, "Acme Industrial Ltd", got.AccountName)

		cached, err := cache.Get(ctx, organizationID, "0123456789", "058")
		require.NoError(t, err)
		require.NotNil(t, cached)
		assert.Equal(t, got.ID, cached.ID)
		mockRepo.AssertExpectations(t)
		mockVerifier.AssertExpectations(t)
	})

	t.Run("Upsert failure does not block resolution", func(t *testing.T) {
		cache, _ := newTestCache(t)
		mockRepo := new(MockCounterpartyRepository)
		mockVerifier := new(MockBankVerifier)
		svc := NewService(newTestLogger(), mockVerifier, cache, mockRepo)

		mockRepo.On("GetByAccount", ctx, organizationID, "0123456789", "058").Return(nil, nil).Once()
		mockVerifier.On("ResolveAccount", ctx, "0123456789", "058").Return(&provider.ResolvedAccount{
			AccountNumber: "0123456789",
			BankCode:      "058",
			AccountName:   "Acme Industrial Ltd",
		}, nil).Once()
		mockRepo.On("Upsert", ctx, mock.Anything).Return(assert.AnError).Once()

		got, err := svc.Resolve(ctx, organizationID, "0123456789", "058")

		require.NoError(t, err)
		assert.Equal(t, "Acme Industrial Ltd", got.AccountName)
	})

	t.Run("Invalid account is not cached", func(t *testing.T) {
		cache, mr := newTestCache(t)
		mockRepo := new(MockCounterpartyRepository)
		mockVerifier := new(MockBankVerifier)
		svc := NewService(newTestLogger(), mockVerifier, cache, mockRepo)

		mockRepo.On("GetByAccount", ctx, organizationID, "0000000000", "058").Return(nil, nil).Once()
		mockVerifier.On("ResolveAccount", ctx, "0000000000", "058").Return(nil, provider.ErrInvalidAccount).Once()

		got, err := svc.Resolve(ctx, organizationID, "0000000000", "058")

		assert.ErrorIs(t, err, provider.ErrInvalidAccount)
		assert.Nil(t, got)
		assert.Empty(t, mr.Keys())
	})

	t.Run("Repository error is returned", func(t *testing.T) {
		cache, _ := newTestCache(t)
		mockRepo := new(MockCounterpartyRepository)
		mockVerifier := new(MockBankVerifier)
		svc := NewService(newTestLogger(), mockVerifier, cache, mockRepo)

		mockRepo.On("GetByAccount", ctx, organizationID, "0123456789", "058").Return(nil, assert.AnError).Once()

		got, err := svc.Resolve(ctx, organizationID, "0123456789", "058")

		assert.Error(t, err)
		assert.Nil(t, got)
		mockVerifier.AssertNotCalled(t, "ResolveAccount", mock.Anything, mock.Anything, mock.Anything)
	})
}

func TestService_SaveRecipient(t *testing.T) {
	ctx := context.Background()
	organizationID := uuid.New()

	t.Run("Flags a resolved counterparty", func(t *testing.T) {
		cache, _ := newTestCache(t)
		mockRepo := new(MockCounterpartyRepository)
		mockVerifier := new(MockBankVerifier)
		svc := NewService(newTestLogger(), mockVerifier, cache, mockRepo)

		cp := storedCounterparty(organizationID)
		mockRepo.On("GetByAccount", ctx, organizationID, cp.AccountNumber, cp.BankCode).Return(cp, nil).Once()
		mockRepo.On("SetRecipient", ctx, cp.ID, true).Return(nil).Once()

		got, err := svc.SaveRecipient(ctx, organizationID, cp.AccountNumber, cp.BankCode)

		require.NoError(t, err)
		assert.True(t, got.IsRecipient)

		cached, err := cache.Get(ctx, organizationID, cp.AccountNumber, cp.BankCode)
		require.NoError(t, err)
		require.NotNil(t, cached)
		assert.True(t, cached.IsRecipient)
		mockRepo.AssertExpectations(t)
	})

	t.Run("Already saved recipient is a no-op", func(t *testing.T) {
		cache, _ := newTestCache(t)
		mockRepo := new(MockCounterpartyRepository)
		mockVerifier := new(MockBankVerifier)
		svc := NewService(newTestLogger(), mockVerifier, cache, mockRepo)

		cp := storedCounterparty(organizationID)
		cp.IsRecipient = true
		mockRepo.On("GetByAccount", ctx, organizationID, cp.AccountNumber, cp.BankCode).Return(cp, nil).Once()

		got, err := svc.SaveRecipient(ctx, organizationID, cp.AccountNumber, cp.BankCode)

		require.NoError(t, err)
		assert.True(t, got.IsRecipient)
		mockRepo.AssertNotCalled(t, "SetRecipient", mock.Anything, mock.Anything, mock.Anything)
	})
}
