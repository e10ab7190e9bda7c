package statement_poller

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"log/slog"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/finverse-ledger-engine/internal/domain/entry"
	"github.com/finverse-ledger-engine/internal/domain/outbox"
	"github.com/finverse-ledger-engine/internal/domain/shared"
	"github.com/finverse-ledger-engine/internal/domain/statement"
)

// MockOutboxRepo for testing
type MockOutboxRepo struct {
	mock.Mock
}

func (m *MockOutboxRepo) Create(ctx context.Context, message *outbox.Message) error {
	args := m.Called(ctx, message)
	return args.Error(0)
}

func (m *MockOutboxRepo) GetPending(ctx context.Context, limit int) ([]*outbox.Message, error) {
	args := m.Called(ctx, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*outbox.Message), args.Error(1)
}

func (m *MockOutboxRepo) UpdateStatus(ctx context.Context, id int64, status shared.OutboxStatus) error {
	args := m.Called(ctx, id, status)
	return args.Error(0)
}

func (m *MockOutboxRepo) IncrementAttempts(ctx context.Context, id int64) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockOutboxRepo) Delete(ctx context.Context, id int64) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockOutboxRepo) GetByEntryID(ctx context.Context, entryID uuid.UUID) (*outbox.Message, error) {
	args := m.Called(ctx, entryID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*outbox.Message), args.Error(1)
}

func (m *MockOutboxRepo) WithTx(tx pgx.Tx) outbox.Repository {
	args := m.Called(tx)
	return args.Get(0).(outbox.Repository)
}

// MockStatementRepo for testing
type MockStatementRepo struct {
	mock.Mock
}

func (m *MockStatementRepo) Upsert(ctx context.Context, line *statement.Line) error {
	args := m.Called(ctx, line)
	return args.Error(0)
}

func (m *MockStatementRepo) GetByEntryID(ctx context.Context, entryID uuid.UUID) (*statement.Line, error) {
	args := m.Called(ctx, entryID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*statement.Line), args.Error(1)
}

func (m *MockStatementRepo) ListByWallet(ctx context.Context, walletID uuid.UUID, limit, offset int) ([]*statement.Line, error) {
	args := m.Called(ctx, walletID, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*statement.Line), args.Error(1)
}

func (m *MockStatementRepo) CountByWallet(ctx context.Context, walletID uuid.UUID) (int64, error) {
	args := m.Called(ctx, walletID)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockStatementRepo) ListByTimeRange(ctx context.Context, walletID uuid.UUID, start, end time.Time, limit, offset int) ([]*statement.Line, error) {
	args := m.Called(ctx, walletID, start, end, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*statement.Line), args.Error(1)
}

func TestStatementPublisher_PublishToStatement(t *testing.T) {
	mockOutboxRepo := &MockOutboxRepo{}
	mockStatementRepo := &MockStatementRepo{}
	logger := slog.Default()

	publisher := NewStatementPublisher(mockOutboxRepo, mockStatementRepo, logger)

	entryID := uuid.New()
	walletID := uuid.New()
	settled := &entry.WalletEntry{
		ID:            entryID,
		WalletID:      walletID,
		UserID:        uuid.New(),
		Type:          entry.TypeDebit,
		Status:        entry.StatusSuccessful,
		Scope:         entry.ScopeWalletTransfer,
		Amount:        100000,
		Fee:           2500,
		Currency:      "NGN",
		BalanceBefore: 500000,
		BalanceAfter:  397500,
		Reference:     "tr_statement_001",
		CorrelationID: "corr1",
		CreatedAt:     time.Now(),
	}

	payload, err := json.Marshal(settled)
	assert.NoError(t, err)

	message := &outbox.Message{
		ID:        1,
		EntryID:   entryID,
		WalletID:  walletID,
		Status:    shared.OutboxStatusPending,
		Payload:   payload,
		Attempts:  0,
		CreatedAt: time.Now(),
	}

	tests := []struct {
		name          string
		message       *outbox.Message
		setupMocks    func()
		expectedError error
	}{
		{
			name:    "successful projection",
			message: message,
			setupMocks: func() {
				mockStatementRepo.On("Upsert", mock.Anything, mock.MatchedBy(func(line *statement.Line) bool {
					return line.EntryID == entryID &&
						line.WalletID == walletID &&
						line.Amount == settled.Amount &&
						line.BalanceAfter == settled.BalanceAfter &&
						line.Reference == settled.Reference
				})).Return(nil).Once()

				mockOutboxRepo.On("UpdateStatus", mock.Anything, int64(1), shared.OutboxStatusProcessed).Return(nil).Once()
			},
			expectedError: nil,
		},
		{
			name: "error unmarshalling payload",
			message: &outbox.Message{
				ID:        1,
				EntryID:   entryID,
				WalletID:  walletID,
				Status:    shared.OutboxStatusPending,
				Payload:   []byte("invalid json"),
				Attempts:  0,
				CreatedAt: time.Now(),
			},
			setupMocks: func() {
				mockOutboxRepo.On("UpdateStatus", mock.Anything, int64(1), shared.OutboxStatusFailedToPublish).Return(nil).Once()
			},
			expectedError: errors.New("unmarshal payload"),
		},
		{
			name:    "error upserting statement line",
			message: message,
			setupMocks: func() {
				mockStatementRepo.On("Upsert", mock.Anything, mock.Anything).Return(errors.New("mongo unavailable")).Once()
			},
			expectedError: errors.New("failed to upsert statement line"),
		},
		{
			name:    "error updating outbox status",
			message: message,
			setupMocks: func() {
				mockStatementRepo.On("Upsert", mock.Anything, mock.Anything).Return(nil).Once()

				mockOutboxRepo.On("UpdateStatus", mock.Anything, int64(1), shared.OutboxStatusProcessed).Return(errors.New("db error")).Once()
			},
			expectedError: errors.New("failed to mark outbox"),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockOutboxRepo = &MockOutboxRepo{}
			mockStatementRepo = &MockStatementRepo{}
			publisher = NewStatementPublisher(mockOutboxRepo, mockStatementRepo, logger)

			tt.setupMocks()
			ctx := context.Background()

			err := publisher.PublishToStatement(ctx, tt.message)

			if tt.expectedError != nil {
				assert.Error(t, err)
				assert.Contains(t, err.Error(), tt.expectedError.Error())
			} else {
				assert.NoError(t, err)
			}

			mockOutboxRepo.AssertExpectations(t)
			mockStatementRepo.AssertExpectations(t)
		})
	}
}
