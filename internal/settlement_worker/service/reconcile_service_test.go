package service

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/finverse-ledger-engine/internal/domain/entry"
	"github.com/finverse-ledger-engine/internal/domain/shared"
	"github.com/finverse-ledger-engine/internal/notification"
)

// Mock implementations of the dependencies

type MockEntryRepository struct {
	mock.Mock
}

func (m *MockEntryRepository) Create(ctx context.Context, e *entry.WalletEntry) error {
	args := m.Called(ctx, e)
	return args.Error(0)
}

func (m *MockEntryRepository) GetByID(ctx context.Context, id uuid.UUID) (*entry.WalletEntry, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entry.WalletEntry), args.Error(1)
}

func (m *MockEntryRepository) GetByReference(ctx context.Context, reference string) (*entry.WalletEntry, error) {
	args := m.Called(ctx, reference)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entry.WalletEntry), args.Error(1)
}

func (m *MockEntryRepository) GetByWalletID(ctx context.Context, walletID uuid.UUID, limit, offset int) ([]*entry.WalletEntry, error) {
	args := m.Called(ctx, walletID, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*entry.WalletEntry), args.Error(1)
}

func (m *MockEntryRepository) MarkSettled(ctx context.Context, id uuid.UUID, status entry.Status, providerRef, failureReason string) error {
	args := m.Called(ctx, id, status, providerRef, failureReason)
	return args.Error(0)
}

func (m *MockEntryRepository) MarkReversed(ctx context.Context, id uuid.UUID) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockEntryRepository) SetProviderRef(ctx context.Context, id uuid.UUID, providerRef string) error {
	args := m.Called(ctx, id, providerRef)
	return args.Error(0)
}

func (m *MockEntryRepository) ListPendingBefore(ctx context.Context, cutoff time.Time, limit int) ([]*entry.WalletEntry, error) {
	args := m.Called(ctx, cutoff, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*entry.WalletEntry), args.Error(1)
}

func (m *MockEntryRepository) SumSpentByUser(ctx context.Context, userID uuid.UUID, budgetID *uuid.UUID, since time.Time) (int64, error) {
	args := m.Called(ctx, userID, budgetID, since)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockEntryRepository) WithTx(tx pgx.Tx) entry.Repository {
	args := m.Called(tx)
	return args.Get(0).(entry.Repository)
}

type MockLedger struct {
	mock.Mock
}

func (m *MockLedger) Settle(ctx context.Context, e *entry.WalletEntry, providerRef, gatewayResponse string) error {
	args := m.Called(ctx, e, providerRef, gatewayResponse)
	return args.Error(0)
}

func (m *MockLedger) CreditBack(ctx context.Context, e *entry.WalletEntry, failureReason string) error {
	args := m.Called(ctx, e, failureReason)
	return args.Error(0)
}

func (m *MockLedger) Reverse(ctx context.Context, e *entry.WalletEntry) error {
	args := m.Called(ctx, e)
	return args.Error(0)
}

type MockNotifier struct {
	mock.Mock
}

func (m *MockNotifier) Notify(ctx context.Context, notice *notification.Notice) {
	m.Called(ctx, notice)
}

var (
	_ entry.Repository      = (*MockEntryRepository)(nil)
	_ Ledger                = (*MockLedger)(nil)
	_ notification.Notifier = (*MockNotifier)(nil)
)

func pendingEntry(reference string) *entry.WalletEntry {
	return &entry.WalletEntry{
		ID:             uuid.New(),
		OrganizationID: uuid.New(),
		WalletID:       uuid.New(),
		UserID:         uuid.New(),
		Type:           entry.TypeDebit,
		Status:         entry.StatusPending,
		Scope:          entry.ScopeWalletTransfer,
		Amount:         100000,
		Fee:            2500,
		Currency:       "NGN",
		Reference:      reference,
		CreatedAt:      time.Now().Add(-time.Minute),
	}
}

func TestReconcileService_ProcessSettlementEvent(t *testing.T) {
	ctx := context.Background()
	log := slog.Default()

	t.Run("SuccessfulSettlement", func(t *testing.T) {
		entries := new(MockEntryRepository)
		ledger := new(MockLedger)
		notifier := new(MockNotifier)
		svc := NewReconcileService(entries, ledger, notifier, log)

		e := pendingEntry("tr_success_001")
		entries.On("GetByReference", ctx, "tr_success_001").Return(e, nil)
		ledger.On("Settle", ctx, e, "prov_abc", "approved").Return(nil)
		notifier.On("Notify", ctx, mock.AnythingOfType("*notification.Notice")).Return()

		err := svc.ProcessSettlementEvent(ctx, &shared.SettlementEvent{
			Reference:       "tr_success_001",
			Status:          shared.SettlementStatusSuccessful,
			Amount:          100000,
			Currency:        "NGN",
			ProviderRef:     "prov_abc",
			GatewayResponse: "approved",
		})

		assert.NoError(t, err)
		entries.AssertExpectations(t)
		ledger.AssertExpectations(t)
		notifier.AssertExpectations(t)
	})

	t.Run("FailedSettlementCreditsBack", func(t *testing.T) {
		entries := new(MockEntryRepository)
		ledger := new(MockLedger)
		svc := NewReconcileService(entries, ledger, nil, log)

		e := pendingEntry("tr_failed_001")
		entries.On("GetByReference", ctx, "tr_failed_001").Return(e, nil)
		ledger.On("CreditBack", ctx, e, "insufficient provider float").Return(nil)

		err := svc.ProcessSettlementEvent(ctx, &shared.SettlementEvent{
			Reference:       "tr_failed_001",
			Status:          shared.SettlementStatusFailed,
			Amount:          100000,
			GatewayResponse: "insufficient provider float",
		})

		assert.NoError(t, err)
		ledger.AssertExpectations(t)
	})

	t.Run("FailedSettlementWithoutReasonUsesProviderDeclined", func(t *testing.T) {
		entries := new(MockEntryRepository)
		ledger := new(MockLedger)
		svc := NewReconcileService(entries, ledger, nil, log)

		e := pendingEntry("tr_failed_002")
		entries.On("GetByReference", ctx, "tr_failed_002").Return(e, nil)
		ledger.On("CreditBack", ctx, e, string(shared.FailureReasonProviderDeclined)).Return(nil)

		err := svc.ProcessSettlementEvent(ctx, &shared.SettlementEvent{
			Reference: "tr_failed_002",
			Status:    shared.SettlementStatusFailed,
		})

		assert.NoError(t, err)
		ledger.AssertExpectations(t)
	})

	t.Run("ReversedSettlement", func(t *testing.T) {
		entries := new(MockEntryRepository)
		ledger := new(MockLedger)
		svc := NewReconcileService(entries, ledger, nil, log)

		e := pendingEntry("tr_reversed_001")
		e.Status = entry.StatusSuccessful
		entries.On("GetByReference", ctx, "tr_reversed_001").Return(e, nil)
		ledger.On("Reverse", ctx, e).Return(nil)

		err := svc.ProcessSettlementEvent(ctx, &shared.SettlementEvent{
			Reference: "tr_reversed_001",
			Status:    shared.SettlementStatusReversed,
		})

		assert.NoError(t, err)
		ledger.AssertExpectations(t)
	})

	t.Run("UnknownStatusAcknowledgedWithoutMutation", func(t *testing.T) {
		entries := new(MockEntryRepository)
		ledger := new(MockLedger)
		svc := NewReconcileService(entries, ledger, nil, log)

		err := svc.ProcessSettlementEvent(ctx, &shared.SettlementEvent{
			Reference: "tr_unknown_001",
			Status:    shared.SettlementStatus("on_hold"),
		})

		assert.NoError(t, err)
		entries.AssertNotCalled(t, "GetByReference", mock.Anything, mock.Anything)
		ledger.AssertNotCalled(t, "Settle", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("UnknownReferenceAcknowledged", func(t *testing.T) {
		entries := new(MockEntryRepository)
		ledger := new(MockLedger)
		svc := NewReconcileService(entries, ledger, nil, log)

		entries.On("GetByReference", ctx, "tr_missing_001").
			Return(nil, entry.ErrEntryNotFound{Reference: "tr_missing_001"})

		err := svc.ProcessSettlementEvent(ctx, &shared.SettlementEvent{
			Reference: "tr_missing_001",
			Status:    shared.SettlementStatusSuccessful,
		})

		assert.NoError(t, err)
		ledger.AssertNotCalled(t, "Settle", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("RepositoryErrorIsReturnedForRedelivery", func(t *testing.T) {
		entries := new(MockEntryRepository)
		ledger := new(MockLedger)
		svc := NewReconcileService(entries, ledger, nil, log)

		entries.On("GetByReference", ctx, "tr_db_down").
			Return(nil, errors.New("connection refused"))

		err := svc.ProcessSettlementEvent(ctx, &shared.SettlementEvent{
			Reference: "tr_db_down",
			Status:    shared.SettlementStatusSuccessful,
		})

		assert.Error(t, err)
		assert.Contains(t, err.Error(), "failed to load entry")
	})

	t.Run("SettleErrorIsReturnedForRedelivery", func(t *testing.T) {
		entries := new(MockEntryRepository)
		ledger := new(MockLedger)
		svc := NewReconcileService(entries, ledger, nil, log)

		e := pendingEntry("tr_settle_err")
		entries.On("GetByReference", ctx, "tr_settle_err").Return(e, nil)
		ledger.On("Settle", ctx, e, "", "").Return(errors.New("deadlock detected"))

		err := svc.ProcessSettlementEvent(ctx, &shared.SettlementEvent{
			Reference: "tr_settle_err",
			Status:    shared.SettlementStatusSuccessful,
		})

		assert.Error(t, err)
		assert.Contains(t, err.Error(), "failed to settle entry")
	})
}
