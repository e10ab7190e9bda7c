package budget

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// Common errors
var (
	ErrInvalidAmount       = errors.New("amount must be positive")
	ErrBudgetNotActive     = errors.New("budget is not active")
	ErrAllocationExceeded  = errors.New("beneficiary allocation exceeded")
	ErrNotBeneficiary      = errors.New("user is not a beneficiary of this budget")
	ErrInvalidStatusChange = errors.New("invalid budget status transition")
)

// Status defines budget lifecycle states
type Status string

const (
	StatusPending Status = "PENDING"
	StatusActive  Status = "ACTIVE"
	StatusPaused  Status = "PAUSED"
	StatusClosed  Status = "CLOSED"
)

// Beneficiary is a user allowed to spend from the budget, with an optional
// per-user cap in minor currency units
type Beneficiary struct {
	UserID     uuid.UUID `json:"user_id"`
	Allocation *int64    `json:"allocation,omitempty"`
}

// Budget is an allocation carved from a wallet. Amount is the approved ceiling,
// Balance the spendable remainder. Invariant: Balance <= Amount.
type Budget struct {
	ID             uuid.UUID     `json:"id"`
	OrganizationID uuid.UUID     `json:"organization_id"`
	WalletID       uuid.UUID     `json:"wallet_id"`
	ProjectID      *uuid.UUID    `json:"project_id,omitempty"`
	Name           string        `json:"name"`
	Amount         int64         `json:"amount"`
	Balance        int64         `json:"balance"`
	AmountUsed     int64         `json:"amount_used"`
	Status         Status        `json:"status"`
	Threshold      int64         `json:"threshold"`
	Currency       string        `json:"currency"`
	Beneficiaries  []Beneficiary `json:"beneficiaries"`
	RequesterID    uuid.UUID     `json:"requester_id"`
	CreatedAt      time.Time     `json:"created_at"`
	UpdatedAt      time.Time     `json:"updated_at"`
}

// NewBudget creates a budget in Pending state. It carries no balance until it
// is funded and activated.
func NewBudget(organizationID, walletID, requesterID uuid.UUID, name, currency string, amount int64) (*Budget, error) {
	if amount <= 0 {
		return nil, ErrInvalidAmount
	}

	return &Budget{
		ID:             uuid.New(),
		OrganizationID: organizationID,
		WalletID:       walletID,
		Name:           name,
		Amount:         amount,
		Balance:        0,
		AmountUsed:     0,
		Status:         StatusPending,
		Currency:       currency,
		RequesterID:    requesterID,
		CreatedAt:      time.Now(),
		UpdatedAt:      time.Now(),
	}, nil
}

// Beneficiary returns the beneficiary record for the user, if any
func (b *Budget) Beneficiary(userID uuid.UUID) (*Beneficiary, bool) {
	for i := range b.Beneficiaries {
		if b.Beneficiaries[i].UserID == userID {
			return &b.Beneficiaries[i], true
		}
	}
	return nil, false
}

// CheckAllocation verifies a spend of amount by the user against their
// allocation cap given what they have already spent. Budgets without
// beneficiaries are open to the whole organization.
func (b *Budget) CheckAllocation(userID uuid.UUID, amount, alreadySpent int64) error {
	if len(b.Beneficiaries) == 0 {
		return nil
	}
	ben, ok := b.Beneficiary(userID)
	if !ok {
		return ErrNotBeneficiary
	}
	if ben.Allocation != nil && alreadySpent+amount > *ben.Allocation {
		return ErrAllocationExceeded
	}
	return nil
}

// CanTransition reports whether the status machine allows moving to next.
// Closed is terminal.
func (b *Budget) CanTransition(next Status) bool {
	switch b.Status {
	case StatusPending:
		return next == StatusActive || next == StatusClosed
	case StatusActive:
		return next == StatusPaused || next == StatusClosed
	case StatusPaused:
		return next == StatusActive || next == StatusClosed
	case StatusClosed:
		return false
	}
	return false
}
