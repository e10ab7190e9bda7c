package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/finverse-ledger-engine/internal/domain/approval"
	"github.com/finverse-ledger-engine/internal/domain/budget"
	"github.com/finverse-ledger-engine/internal/workflow"
	"github.com/google/uuid"
)

// CreateBudgetCommand carries everything needed to carve a budget from a wallet
type CreateBudgetCommand struct {
	OrganizationID uuid.UUID
	WalletID       uuid.UUID
	RequesterID    uuid.UUID
	IsOwner        bool
	Name           string
	Amount         int64
	Currency       string
	Beneficiaries  []budget.Beneficiary
	CorrelationID  string
}

// WorkflowRunner is the slice of the approval workflow the budget service
// drives. Satisfied by workflow.Service.
type WorkflowRunner interface {
	RequestOrExecute(ctx context.Context, organizationID, requesterID uuid.UUID, isOwner bool, amount int64, props approval.Properties, correlationID string) (*workflow.Outcome, error)
}

// BudgetLedger is the slice of the ledger service the budget service drives.
// Satisfied by ledger.Service.
type BudgetLedger interface {
	CloseBudget(ctx context.Context, budgetID, userID uuid.UUID, correlationID string) error
	PauseBudget(ctx context.Context, budgetID uuid.UUID) error
	UnpauseBudget(ctx context.Context, budgetID uuid.UUID) error
}

// BudgetServiceImpl implements BudgetService
type BudgetServiceImpl struct {
	budgets  budget.Repository
	workflow WorkflowRunner
	ledger   BudgetLedger
	logger   *slog.Logger
}

func NewBudgetService(
	budgets budget.Repository,
	wf WorkflowRunner,
	ledger BudgetLedger,
	logger *slog.Logger,
) BudgetService {
	return &BudgetServiceImpl{
		budgets:  budgets,
		workflow: wf,
		ledger:   ledger,
		logger:   logger,
	}
}

// Create persists the budget in Pending state, then routes its funding through
// the approval workflow. The budget row exists before approval so a declined
// request has something to compensate (close).
func (s *BudgetServiceImpl) Create(ctx context.Context, cmd *CreateBudgetCommand) (*budget.Budget, *workflow.Outcome, error) {
	b, err := budget.NewBudget(cmd.OrganizationID, cmd.WalletID, cmd.RequesterID, cmd.Name, cmd.Currency, cmd.Amount)
	if err != nil {
		return nil, nil, err
	}
	b.Beneficiaries = cmd.Beneficiaries

	if err := s.budgets.Create(ctx, b); err != nil {
		return nil, nil, fmt.Errorf("failed to create budget: %w", err)
	}

	s.logger.Info("Budget created pending funding",
		"budget_id", b.ID.String(),
		"wallet_id", b.WalletID.String(),
		"amount", b.Amount,
		"correlation_id", cmd.CorrelationID,
	)

	outcome, err := s.workflow.RequestOrExecute(ctx, cmd.OrganizationID, cmd.RequesterID, cmd.IsOwner, cmd.Amount,
		approval.ExpenseProperties{BudgetID: b.ID, Amount: cmd.Amount}, cmd.CorrelationID)
	if err != nil {
		return b, nil, fmt.Errorf("failed to route budget funding through workflow: %w", err)
	}
	return b, outcome, nil
}

func (s *BudgetServiceImpl) Extend(ctx context.Context, budgetID, requesterID uuid.UUID, isOwner bool, extra int64, correlationID string) (*workflow.Outcome, error) {
	b, err := s.budgets.GetByID(ctx, budgetID)
	if err != nil {
		return nil, err
	}
	if b.Status != budget.StatusActive {
		return nil, budget.ErrBudgetNotActive
	}

	outcome, err := s.workflow.RequestOrExecute(ctx, b.OrganizationID, requesterID, isOwner, extra,
		approval.BudgetExtensionProperties{BudgetID: budgetID, Extra: extra}, correlationID)
	if err != nil {
		return nil, fmt.Errorf("failed to route budget extension through workflow: %w", err)
	}
	return outcome, nil
}

func (s *BudgetServiceImpl) Close(ctx context.Context, budgetID, requesterID uuid.UUID, correlationID string) error {
	return s.ledger.CloseBudget(ctx, budgetID, requesterID, correlationID)
}

func (s *BudgetServiceImpl) Pause(ctx context.Context, budgetID uuid.UUID) error {
	return s.ledger.PauseBudget(ctx, budgetID)
}

func (s *BudgetServiceImpl) Unpause(ctx context.Context, budgetID uuid.UUID) error {
	return s.ledger.UnpauseBudget(ctx, budgetID)
}

func (s *BudgetServiceImpl) Get(ctx context.Context, budgetID uuid.UUID) (*budget.Budget, error) {
	return s.budgets.GetByID(ctx, budgetID)
}
