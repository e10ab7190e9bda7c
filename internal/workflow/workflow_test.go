package workflow

import (
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/finverse-ledger-engine/internal/domain/approval"
	"github.com/finverse-ledger-engine/internal/domain/entry"
	"github.com/finverse-ledger-engine/internal/notification"
)

// Mock implementations of the dependencies

type MockApprovalRepository struct {
	mock.Mock
}

func (m *MockApprovalRepository) CreateRule(ctx context.Context, rule *approval.Rule) error {
	args := m.Called(ctx, rule)
	return args.Error(0)
}

func (m *MockApprovalRepository) GetRuleByID(ctx context.Context, id uuid.UUID) (*approval.Rule, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*approval.Rule), args.Error(1)
}

func (m *MockApprovalRepository) ListRules(ctx context.Context, organizationID uuid.UUID) ([]*approval.Rule, error) {
	args := m.Called(ctx, organizationID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*approval.Rule), args.Error(1)
}

func (m *MockApprovalRepository) FindMatchingRule(ctx context.Context, organizationID uuid.UUID, workflowType approval.WorkflowType, amount int64) (*approval.Rule, error) {
	args := m.Called(ctx, organizationID, workflowType, amount)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*approval.Rule), args.Error(1)
}

func (m *MockApprovalRepository) CreateRequest(ctx context.Context, request *approval.Request) error {
	args := m.Called(ctx, request)
	return args.Error(0)
}

func (m *MockApprovalRepository) GetRequestByID(ctx context.Context, id uuid.UUID) (*approval.Request, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*approval.Request), args.Error(1)
}

func (m *MockApprovalRepository) ListPendingRequests(ctx context.Context, organizationID uuid.UUID, limit, offset int) ([]*approval.Request, error) {
	args := m.Called(ctx, organizationID, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*approval.Request), args.Error(1)
}

func (m *MockApprovalRepository) UpdateRequest(ctx context.Context, request *approval.Request) error {
	args := m.Called(ctx, request)
	return args.Error(0)
}

func (m *MockApprovalRepository) WithTx(tx pgx.Tx) approval.Repository {
	args := m.Called(tx)
	return args.Get(0).(approval.Repository)
}

type MockTransferExecutor struct {
	mock.Mock
}

func (m *MockTransferExecutor) ExecuteApproved(ctx context.Context, props approval.TransactionProperties, correlationID string) (*entry.WalletEntry, error) {
	args := m.Called(ctx, props, correlationID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entry.WalletEntry), args.Error(1)
}

type MockNotifier struct {
	mock.Mock
}

func (m *MockNotifier) Notify(ctx context.Context, notice *notification.Notice) {
	m.Called(ctx, notice)
}

func newTestService(approvals *MockApprovalRepository, executor *MockTransferExecutor, notifier *MockNotifier) *Service {
	svc := NewService(slog.Default(), approvals, nil, notifier)
	if executor != nil {
		svc.BindTransferExecutor(executor)
	}
	return svc
}

func transferProps(amount int64) approval.TransactionProperties {
	return approval.TransactionProperties{
		OrganizationID: uuid.New(),
		WalletID:       uuid.New(),
		UserID:         uuid.New(),
		Amount:         amount,
		Fee:            2500,
		Currency:       "NGN",
		AccountNumber:  "0123456789",
		BankCode:       "058",
		Reference:      "tr_wf_001",
	}
}

func TestService_RequestOrExecute(t *testing.T) {
	ctx := context.Background()
	orgID := uuid.New()
	requester := uuid.New()

	t.Run("no matching rule executes immediately", func(t *testing.T) {
		approvals := new(MockApprovalRepository)
		executor := new(MockTransferExecutor)
		svc := newTestService(approvals, executor, new(MockNotifier))

		props := transferProps(100000)
		executed := &entry.WalletEntry{ID: uuid.New(), Reference: props.Reference}

		approvals.On("FindMatchingRule", ctx, orgID, approval.WorkflowTransaction, int64(100000)).
			Return(nil, nil)
		executor.On("ExecuteApproved", ctx, props, "corr1").Return(executed, nil)

		outcome, err := svc.RequestOrExecute(ctx, orgID, requester, false, 100000, props, "corr1")

		require.NoError(t, err)
		assert.True(t, outcome.Executed)
		assert.Equal(t, executed, outcome.Entry)
		approvals.AssertNotCalled(t, "CreateRequest", mock.Anything, mock.Anything)
	})

	t.Run("owner bypasses matching rule", func(t *testing.T) {
		approvals := new(MockApprovalRepository)
		executor := new(MockTransferExecutor)
		svc := newTestService(approvals, executor, new(MockNotifier))

		props := transferProps(100000)
		rule := &approval.Rule{
			ID:           uuid.New(),
			WorkflowType: approval.WorkflowTransaction,
			ApprovalType: approval.ApprovalEveryone,
			Amount:       500000,
			Reviewers:    []uuid.UUID{uuid.New()},
		}

		approvals.On("FindMatchingRule", ctx, orgID, approval.WorkflowTransaction, int64(100000)).
			Return(rule, nil)
		executor.On("ExecuteApproved", ctx, props, "corr1").
			Return(&entry.WalletEntry{Reference: props.Reference}, nil)

		outcome, err := svc.RequestOrExecute(ctx, orgID, requester, true, 100000, props, "corr1")

		require.NoError(t, err)
		assert.True(t, outcome.Executed)
	})

	t.Run("anyone quorum with requester as reviewer executes immediately", func(t *testing.T) {
		approvals := new(MockApprovalRepository)
		executor := new(MockTransferExecutor)
		svc := newTestService(approvals, executor, new(MockNotifier))

		props := transferProps(100000)
		rule := &approval.Rule{
			ID:           uuid.New(),
			WorkflowType: approval.WorkflowTransaction,
			ApprovalType: approval.ApprovalAnyone,
			Amount:       500000,
			Reviewers:    []uuid.UUID{requester, uuid.New()},
		}

		approvals.On("FindMatchingRule", ctx, orgID, approval.WorkflowTransaction, int64(100000)).
			Return(rule, nil)
		executor.On("ExecuteApproved", ctx, props, "corr1").
			Return(&entry.WalletEntry{Reference: props.Reference}, nil)

		outcome, err := svc.RequestOrExecute(ctx, orgID, requester, false, 100000, props, "corr1")

		require.NoError(t, err)
		assert.True(t, outcome.Executed)
	})

	t.Run("everyone quorum with other reviewers suspends", func(t *testing.T) {
		approvals := new(MockApprovalRepository)
		notifier := new(MockNotifier)
		svc := newTestService(approvals, new(MockTransferExecutor), notifier)

		props := transferProps(100000)
		reviewer := uuid.New()
		rule := &approval.Rule{
			ID:             uuid.New(),
			OrganizationID: orgID,
			WorkflowType:   approval.WorkflowTransaction,
			ApprovalType:   approval.ApprovalEveryone,
			Amount:         500000,
			Reviewers:      []uuid.UUID{reviewer},
		}

		approvals.On("FindMatchingRule", ctx, orgID, approval.WorkflowTransaction, int64(100000)).
			Return(rule, nil)
		approvals.On("CreateRequest", ctx, mock.MatchedBy(func(r *approval.Request) bool {
			return r.Status == approval.RequestPending && r.RuleID == rule.ID && r.RequesterID == requester
		})).Return(nil)
		notifier.On("Notify", ctx, mock.MatchedBy(func(n *notification.Notice) bool {
			return n.UserID == reviewer
		})).Return()

		outcome, err := svc.RequestOrExecute(ctx, orgID, requester, false, 100000, props, "corr1")

		require.NoError(t, err)
		assert.False(t, outcome.Executed)
		require.NotNil(t, outcome.RequestID)
		approvals.AssertExpectations(t)
		notifier.AssertExpectations(t)
	})

	t.Run("unbound transfer executor fails", func(t *testing.T) {
		approvals := new(MockApprovalRepository)
		svc := newTestService(approvals, nil, new(MockNotifier))

		props := transferProps(100000)
		approvals.On("FindMatchingRule", ctx, orgID, approval.WorkflowTransaction, int64(100000)).
			Return(nil, nil)

		_, err := svc.RequestOrExecute(ctx, orgID, requester, false, 100000, props, "corr1")

		assert.ErrorIs(t, err, ErrTransferExecutorUnbound)
	})
}

func TestService_Review(t *testing.T) {
	ctx := context.Background()
	requester := uuid.New()

	pendingRequest := func(approvalType approval.ApprovalType, reviewers ...uuid.UUID) *approval.Request {
		rule := &approval.Rule{
			ID:             uuid.New(),
			OrganizationID: uuid.New(),
			WorkflowType:   approval.WorkflowTransaction,
			ApprovalType:   approvalType,
			Amount:         500000,
			Reviewers:      reviewers,
		}
		return approval.NewRequest(rule, requester, transferProps(100000))
	}

	t.Run("approval resolving the quorum dispatches the snapshot", func(t *testing.T) {
		approvals := new(MockApprovalRepository)
		executor := new(MockTransferExecutor)
		notifier := new(MockNotifier)
		svc := newTestService(approvals, executor, notifier)

		reviewer := uuid.New()
		request := pendingRequest(approval.ApprovalAnyone, reviewer, uuid.New())
		executed := &entry.WalletEntry{ID: uuid.New()}

		approvals.On("GetRequestByID", ctx, request.ID).Return(request, nil)
		approvals.On("UpdateRequest", ctx, mock.MatchedBy(func(r *approval.Request) bool {
			return r.Status == approval.RequestApproved
		})).Return(nil)
		executor.On("ExecuteApproved", ctx, mock.AnythingOfType("approval.TransactionProperties"), "corr1").
			Return(executed, nil)
		notifier.On("Notify", ctx, mock.MatchedBy(func(n *notification.Notice) bool {
			return n.UserID == requester
		})).Return()

		outcome, err := svc.Review(ctx, request.ID, reviewer, approval.ReviewApproved, "", "corr1")

		require.NoError(t, err)
		assert.True(t, outcome.Executed)
		assert.Equal(t, executed, outcome.Entry)
		approvals.AssertExpectations(t)
		executor.AssertExpectations(t)
	})

	t.Run("partial approval leaves the request pending", func(t *testing.T) {
		approvals := new(MockApprovalRepository)
		executor := new(MockTransferExecutor)
		svc := newTestService(approvals, executor, new(MockNotifier))

		first := uuid.New()
		request := pendingRequest(approval.ApprovalEveryone, first, uuid.New())

		approvals.On("GetRequestByID", ctx, request.ID).Return(request, nil)
		approvals.On("UpdateRequest", ctx, mock.MatchedBy(func(r *approval.Request) bool {
			return r.Status == approval.RequestPending
		})).Return(nil)

		outcome, err := svc.Review(ctx, request.ID, first, approval.ReviewApproved, "", "corr1")

		require.NoError(t, err)
		assert.False(t, outcome.Executed)
		require.NotNil(t, outcome.RequestID)
		executor.AssertNotCalled(t, "ExecuteApproved", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("decline resolves without executing", func(t *testing.T) {
		approvals := new(MockApprovalRepository)
		executor := new(MockTransferExecutor)
		notifier := new(MockNotifier)
		svc := newTestService(approvals, executor, notifier)

		reviewer := uuid.New()
		request := pendingRequest(approval.ApprovalEveryone, reviewer, uuid.New())

		approvals.On("GetRequestByID", ctx, request.ID).Return(request, nil)
		approvals.On("UpdateRequest", ctx, mock.MatchedBy(func(r *approval.Request) bool {
			return r.Status == approval.RequestDeclined
		})).Return(nil)
		notifier.On("Notify", ctx, mock.Anything).Return()

		outcome, err := svc.Review(ctx, request.ID, reviewer, approval.ReviewDeclined, "over budget", "corr1")

		require.NoError(t, err)
		assert.False(t, outcome.Executed)
		executor.AssertNotCalled(t, "ExecuteApproved", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("non-reviewer decision is rejected before persisting", func(t *testing.T) {
		approvals := new(MockApprovalRepository)
		svc := newTestService(approvals, new(MockTransferExecutor), new(MockNotifier))

		request := pendingRequest(approval.ApprovalEveryone, uuid.New())
		approvals.On("GetRequestByID", ctx, request.ID).Return(request, nil)

		_, err := svc.Review(ctx, request.ID, uuid.New(), approval.ReviewApproved, "", "corr1")

		assert.ErrorIs(t, err, approval.ErrNotReviewer)
		approvals.AssertNotCalled(t, "UpdateRequest", mock.Anything, mock.Anything)
	})

	t.Run("missing request surfaces not found", func(t *testing.T) {
		approvals := new(MockApprovalRepository)
		svc := newTestService(approvals, new(MockTransferExecutor), new(MockNotifier))

		requestID := uuid.New()
		approvals.On("GetRequestByID", ctx, requestID).
			Return(nil, approval.ErrRequestNotFound{RequestID: requestID})

		_, err := svc.Review(ctx, requestID, uuid.New(), approval.ReviewApproved, "", "corr1")

		assert.ErrorIs(t, err, approval.ErrRequestNotFound{})
	})

	t.Run("executor failure after approval is surfaced", func(t *testing.T) {
		approvals := new(MockApprovalRepository)
		executor := new(MockTransferExecutor)
		svc := newTestService(approvals, executor, new(MockNotifier))

		reviewer := uuid.New()
		request := pendingRequest(approval.ApprovalAnyone, reviewer)

		approvals.On("GetRequestByID", ctx, request.ID).Return(request, nil)
		approvals.On("UpdateRequest", ctx, mock.Anything).Return(nil)
		executor.On("ExecuteApproved", ctx, mock.AnythingOfType("approval.TransactionProperties"), "corr1").
			Return(nil, errors.New("provider unavailable"))

		_, err := svc.Review(ctx, request.ID, reviewer, approval.ReviewApproved, "", "corr1")

		assert.Error(t, err)
		assert.Contains(t, err.Error(), "approved action failed to execute")
	})

	t.Run("conflicting update re-applies on the fresh request", func(t *testing.T) {
		approvals := new(MockApprovalRepository)
		executor := new(MockTransferExecutor)
		notifier := new(MockNotifier)
		svc := newTestService(approvals, executor, notifier)

		first := uuid.New()
		second := uuid.New()
		stale := pendingRequest(approval.ApprovalEveryone, first, second)

		// The other reviewer's approval landed between our read and write;
		// the reload carries it, so re-applying resolves the quorum with
		// both decisions intact.
		fresh := pendingRequest(approval.ApprovalEveryone, first, second)
		fresh.ID = stale.ID
		fresh.Version = 2
		for i := range fresh.Reviews {
			if fresh.Reviews[i].UserID == first {
				fresh.Reviews[i].Status = approval.ReviewApproved
			}
		}

		executed := &entry.WalletEntry{ID: uuid.New()}

		approvals.On("GetRequestByID", ctx, stale.ID).Return(stale, nil).Once()
		approvals.On("UpdateRequest", ctx, mock.Anything).
			Return(approval.ErrConcurrentUpdate{RequestID: stale.ID}).Once()
		approvals.On("GetRequestByID", ctx, stale.ID).Return(fresh, nil).Once()
		approvals.On("UpdateRequest", ctx, mock.MatchedBy(func(r *approval.Request) bool {
			if r.Status != approval.RequestApproved {
				return false
			}
			for _, review := range r.Reviews {
				if review.Status != approval.ReviewApproved {
					return false
				}
			}
			return true
		})).Return(nil).Once()
		executor.On("ExecuteApproved", ctx, mock.AnythingOfType("approval.TransactionProperties"), "corr1").
			Return(executed, nil)
		notifier.On("Notify", ctx, mock.Anything).Return()

		outcome, err := svc.Review(ctx, stale.ID, second, approval.ReviewApproved, "", "corr1")

		require.NoError(t, err)
		assert.True(t, outcome.Executed)
		approvals.AssertExpectations(t)
		executor.AssertExpectations(t)
	})

	t.Run("persistent conflicts surface after bounded retries", func(t *testing.T) {
		approvals := new(MockApprovalRepository)
		svc := newTestService(approvals, new(MockTransferExecutor), new(MockNotifier))

		reviewer := uuid.New()
		other := uuid.New()
		requestID := uuid.New()

		// Every reload sees a request that still lacks this reviewer's
		// decision, and every write keeps losing the version race.
		for i := 0; i < maxReviewRetries+1; i++ {
			reloaded := pendingRequest(approval.ApprovalEveryone, reviewer, other)
			reloaded.ID = requestID
			reloaded.Version = i + 1
			approvals.On("GetRequestByID", ctx, requestID).Return(reloaded, nil).Once()
		}
		approvals.On("UpdateRequest", ctx, mock.Anything).
			Return(approval.ErrConcurrentUpdate{RequestID: requestID})

		_, err := svc.Review(ctx, requestID, reviewer, approval.ReviewApproved, "", "corr1")

		assert.ErrorIs(t, err, approval.ErrConcurrentUpdate{})
		approvals.AssertNumberOfCalls(t, "UpdateRequest", maxReviewRetries+1)
	})
}

func TestQuorumReducesToRequester(t *testing.T) {
	requester := uuid.New()
	other := uuid.New()

	tests := []struct {
		name     string
		rule     *approval.Rule
		expected bool
	}{
		{
			name:     "no reviewers",
			rule:     &approval.Rule{ApprovalType: approval.ApprovalEveryone},
			expected: true,
		},
		{
			name: "requester is the only reviewer",
			rule: &approval.Rule{
				ApprovalType: approval.ApprovalEveryone,
				Reviewers:    []uuid.UUID{requester},
			},
			expected: true,
		},
		{
			name: "anyone quorum counting the requester",
			rule: &approval.Rule{
				ApprovalType: approval.ApprovalAnyone,
				Reviewers:    []uuid.UUID{requester, other},
			},
			expected: true,
		},
		{
			name: "everyone quorum with another reviewer",
			rule: &approval.Rule{
				ApprovalType: approval.ApprovalEveryone,
				Reviewers:    []uuid.UUID{requester, other},
			},
			expected: false,
		},
		{
			name: "anyone quorum without the requester",
			rule: &approval.Rule{
				ApprovalType: approval.ApprovalAnyone,
				Reviewers:    []uuid.UUID{other},
			},
			expected: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, quorumReducesToRequester(tt.rule, requester))
		})
	}
}
