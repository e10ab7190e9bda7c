package budget

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// Repository defines budget persistence operations. Debit and Credit are
// conditional updates mirroring the wallet repository contract; status
// transitions are guarded by the current status at write time.
type Repository interface {
	Create(ctx context.Context, b *Budget) error
	GetByID(ctx context.Context, id uuid.UUID) (*Budget, error)
	ListByWallet(ctx context.Context, walletID uuid.UUID) ([]*Budget, error)

	// Debit decrements balance and increments amount_used only if the budget is
	// Active and the balance is sufficient. Returns the new balance.
	Debit(ctx context.Context, id uuid.UUID, amount int64) (int64, error)

	// Credit increments balance, never beyond the approved amount
	Credit(ctx context.Context, id uuid.UUID, amount int64) (int64, error)

	// Activate funds the budget: sets balance to the approved amount and the
	// status to Active. Guarded by status = Pending at write time.
	Activate(ctx context.Context, id uuid.UUID) error

	// Extend raises the approved ceiling and the balance by extra
	Extend(ctx context.Context, id uuid.UUID, extra int64) error

	// Close forces balance to zero and the status to Closed, returning the
	// remainder that was still spendable. Guarded by status != Closed.
	Close(ctx context.Context, id uuid.UUID) (int64, error)

	// SetStatus performs a guarded Pause/Unpause transition
	SetStatus(ctx context.Context, id uuid.UUID, from, to Status) error

	WithTx(tx pgx.Tx) Repository
}

// ErrBudgetNotFound indicates missing budget
type ErrBudgetNotFound struct {
	BudgetID uuid.UUID
}

func (e ErrBudgetNotFound) Error() string {
	return "budget not found: " + e.BudgetID.String()
}

// Is implements the errors.Is interface for ErrBudgetNotFound
func (e ErrBudgetNotFound) Is(target error) bool {
	t, ok := target.(ErrBudgetNotFound)
	if !ok {
		return false
	}
	if t.BudgetID == uuid.Nil {
		return true
	}
	return e.BudgetID == t.BudgetID
}

// ErrInsufficientBudget indicates the conditional debit found the budget
// inactive or its balance short
type ErrInsufficientBudget struct {
	BudgetID uuid.UUID
}

func (e ErrInsufficientBudget) Error() string {
	return "budget inactive or balance insufficient: " + e.BudgetID.String()
}

// Is implements the errors.Is interface for ErrInsufficientBudget
func (e ErrInsufficientBudget) Is(target error) bool {
	t, ok := target.(ErrInsufficientBudget)
	if !ok {
		return false
	}
	if t.BudgetID == uuid.Nil {
		return true
	}
	return e.BudgetID == t.BudgetID
}
