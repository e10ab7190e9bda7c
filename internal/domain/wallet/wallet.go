package wallet

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// Common errors
var (
	ErrInsufficientFunds = errors.New("insufficient funds for transfer")
	ErrInvalidAmount     = errors.New("amount must be positive")
	ErrInvalidCurrency   = errors.New("currency must be a 3-letter code")
)

// Wallet is an organization-scoped currency account. Balance is the spendable
// amount; LedgerBalance is balance net of unsettled reservations. Both are
// stored in minor currency units and mutated only via conditional updates.
type Wallet struct {
	ID             uuid.UUID `json:"id"`
	OrganizationID uuid.UUID `json:"organization_id"`
	Balance        int64     `json:"balance"`
	LedgerBalance  int64     `json:"ledger_balance"`
	Currency       string    `json:"currency"`
	Primary        bool      `json:"primary"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// NewWallet creates a new wallet for an organization
func NewWallet(organizationID uuid.UUID, currency string, primary bool) (*Wallet, error) {
	if len(currency) != 3 {
		return nil, ErrInvalidCurrency
	}

	return &Wallet{
		ID:             uuid.New(),
		OrganizationID: organizationID,
		Balance:        0,
		LedgerBalance:  0,
		Currency:       currency,
		Primary:        primary,
		CreatedAt:      time.Now(),
		UpdatedAt:      time.Now(),
	}, nil
}

// CanDebit checks whether the wallet could satisfy a debit of the given total.
// Advisory only: the authoritative check is the conditional update at write time.
func (w *Wallet) CanDebit(total int64) bool {
	return total > 0 && w.Balance >= total
}
