package service

import (
	"context"

	"github.com/finverse-ledger-engine/internal/domain/approval"
	"github.com/finverse-ledger-engine/internal/domain/budget"
	"github.com/finverse-ledger-engine/internal/domain/counterparty"
	"github.com/finverse-ledger-engine/internal/domain/shared"
	"github.com/finverse-ledger-engine/internal/domain/statement"
	"github.com/finverse-ledger-engine/internal/transfer"
	"github.com/finverse-ledger-engine/internal/workflow"
	"github.com/google/uuid"
)

// WebhookService normalizes provider webhook payloads into settlement events
// and hands them to the message broker.
type WebhookService interface {
	IngestSettlementEvent(ctx context.Context, providerName string, payload []byte, correlationID string) (*shared.SettlementEvent, error)
}

// TransferService initiates outbound transfers. Satisfied by transfer.Service.
type TransferService interface {
	Transfer(ctx context.Context, req *transfer.Request) (*transfer.Result, error)
}

// ApprovalService reviews and lists pending approval requests. Satisfied by
// workflow.Service.
type ApprovalService interface {
	Review(ctx context.Context, requestID, reviewerID uuid.UUID, decision approval.ReviewStatus, reason, correlationID string) (*workflow.Outcome, error)
	ListPending(ctx context.Context, organizationID uuid.UUID, limit, offset int) ([]*approval.Request, error)
}

// CounterpartyService resolves and manages saved recipients. Satisfied by
// resolver.Service.
type CounterpartyService interface {
	Resolve(ctx context.Context, organizationID uuid.UUID, accountNumber, bankCode string) (*counterparty.Counterparty, error)
	SaveRecipient(ctx context.Context, organizationID uuid.UUID, accountNumber, bankCode string) (*counterparty.Counterparty, error)
	RemoveRecipient(ctx context.Context, id uuid.UUID) error
	ListRecipients(ctx context.Context, organizationID uuid.UUID) ([]*counterparty.Counterparty, error)
}

// BudgetService orchestrates the budget lifecycle through the approval
// workflow and the ledger.
type BudgetService interface {
	Create(ctx context.Context, req *CreateBudgetCommand) (*budget.Budget, *workflow.Outcome, error)
	Extend(ctx context.Context, budgetID, requesterID uuid.UUID, isOwner bool, extra int64, correlationID string) (*workflow.Outcome, error)
	Close(ctx context.Context, budgetID, requesterID uuid.UUID, correlationID string) error
	Pause(ctx context.Context, budgetID uuid.UUID) error
	Unpause(ctx context.Context, budgetID uuid.UUID) error
	Get(ctx context.Context, budgetID uuid.UUID) (*budget.Budget, error)
}

// StatementService reads the statement projection. Satisfied by the Mongo
// statement repository.
type StatementService interface {
	ListByWallet(ctx context.Context, walletID uuid.UUID, limit, offset int) ([]*statement.Line, error)
	CountByWallet(ctx context.Context, walletID uuid.UUID) (int64, error)
}
