package wallet

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// Balances captures the post-update balance pair returned by conditional writes
type Balances struct {
	Balance       int64
	LedgerBalance int64
}

// Repository defines wallet persistence operations. All balance mutation goes
// through ReserveFunds/Credit, which are conditional (compare-and-swap) updates
// and must be called inside the same transaction as the wallet entry write.
type Repository interface {
	Create(ctx context.Context, w *Wallet) error
	GetByID(ctx context.Context, id uuid.UUID) (*Wallet, error)
	GetPrimaryByOrganization(ctx context.Context, organizationID uuid.UUID) (*Wallet, error)

	// ReserveFunds decrements balance and ledger balance by total only if the
	// current balance is sufficient. Returns ErrInsufficientFunds otherwise.
	ReserveFunds(ctx context.Context, id uuid.UUID, total int64) (*Balances, error)

	// Credit increments balance and ledger balance by total
	Credit(ctx context.Context, id uuid.UUID, total int64) (*Balances, error)

	WithTx(tx pgx.Tx) Repository
}

// ErrWalletNotFound indicates missing wallet
type ErrWalletNotFound struct {
	WalletID uuid.UUID
}

func (e ErrWalletNotFound) Error() string {
	return "wallet not found: " + e.WalletID.String()
}

// Is implements the errors.Is interface for ErrWalletNotFound
func (e ErrWalletNotFound) Is(target error) bool {
	t, ok := target.(ErrWalletNotFound)
	if !ok {
		return false
	}
	if t.WalletID == uuid.Nil {
		return true
	}
	return e.WalletID == t.WalletID
}
