package entry

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	ErrAlreadySettled  = errors.New("wallet entry already left pending")
	ErrAlreadyReversed = errors.New("wallet entry already reversed")
)

// Type defines the direction of a wallet entry
type Type string

const (
	TypeDebit  Type = "DEBIT"
	TypeCredit Type = "CREDIT"
)

// Status defines wallet entry settlement states. An entry transitions out of
// Pending exactly once; reversal of a Successful entry is recorded as a new
// compensating entry, never an in-place status change.
type Status string

const (
	StatusPending    Status = "PENDING"
	StatusSuccessful Status = "SUCCESSFUL"
	StatusFailed     Status = "FAILED"
)

// Scope defines the business purpose of a wallet entry
type Scope string

const (
	ScopeWalletTransfer  Scope = "WALLET_TRANSFER"
	ScopeBudgetTransfer  Scope = "BUDGET_TRANSFER"
	ScopeBudgetFunding   Scope = "BUDGET_FUNDING"
	ScopeBudgetExtension Scope = "BUDGET_EXTENSION"
	ScopeBudgetClosure   Scope = "BUDGET_CLOSURE"
	ScopePayrollPayout   Scope = "PAYROLL_PAYOUT"
	ScopeReversal        Scope = "REVERSAL"
)

// Meta carries the scope-specific payload of an entry, most importantly the
// counterparty snapshot taken at initiation time. Stored as JSONB.
type Meta struct {
	CounterpartyName string `json:"counterparty_name,omitempty"`
	BankName         string `json:"bank_name,omitempty"`
	AccountNumber    string `json:"account_number,omitempty"`
	BankCode         string `json:"bank_code,omitempty"`
	Narration        string `json:"narration,omitempty"`
	InvoiceID        string `json:"invoice_id,omitempty"`
}

// WalletEntry is one balance-affecting ledger row. Balance snapshots capture
// the owning wallet's pre/post values inside the same transaction as the
// balance mutation, so BalanceAfter = BalanceBefore ± (Amount + Fee) holds by
// construction.
type WalletEntry struct {
	ID                  uuid.UUID  `json:"id"`
	OrganizationID      uuid.UUID  `json:"organization_id"`
	WalletID            uuid.UUID  `json:"wallet_id"`
	BudgetID            *uuid.UUID `json:"budget_id,omitempty"`
	ProjectID           *uuid.UUID `json:"project_id,omitempty"`
	PayrollID           *uuid.UUID `json:"payroll_id,omitempty"`
	UserID              uuid.UUID  `json:"user_id"`
	Type                Type       `json:"type"`
	Status              Status     `json:"status"`
	Scope               Scope      `json:"scope"`
	Amount              int64      `json:"amount"` // Minor currency units
	Fee                 int64      `json:"fee"`
	Currency            string     `json:"currency"`
	BalanceBefore       int64      `json:"balance_before"`
	BalanceAfter        int64      `json:"balance_after"`
	LedgerBalanceBefore int64      `json:"ledger_balance_before"`
	LedgerBalanceAfter  int64      `json:"ledger_balance_after"`
	Reference           string     `json:"reference"` // Caller-chosen idempotency key, unique
	ProviderRef         string     `json:"provider_ref,omitempty"`
	Provider            string     `json:"provider,omitempty"`
	Reversed            bool       `json:"reversed"`              // Reversal marker on the original entry
	ReversalOf          *uuid.UUID `json:"reversal_of,omitempty"` // Set on the compensating credit entry
	Meta                Meta       `json:"meta"`
	FailureReason       string     `json:"failure_reason,omitempty"`
	CorrelationID       string     `json:"correlation_id,omitempty"`
	CreatedAt           time.Time  `json:"created_at"`
	SettledAt           *time.Time `json:"settled_at,omitempty"`
}

// Total is the full balance impact of the entry
func (e *WalletEntry) Total() int64 {
	return e.Amount + e.Fee
}

// Terminal reports whether the entry has left Pending
func (e *WalletEntry) Terminal() bool {
	return e.Status == StatusSuccessful || e.Status == StatusFailed
}
