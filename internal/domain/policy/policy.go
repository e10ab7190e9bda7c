package policy

import (
	"time"

	"github.com/google/uuid"
)

// Kind identifies which constraint a transfer policy enforces
type Kind string

const (
	KindCalendar   Kind = "CALENDAR"
	KindSpendLimit Kind = "SPEND_LIMIT"
	KindInvoice    Kind = "INVOICE"
)

// Window is the rolling period a spend-limit policy sums over
type Window string

const (
	WindowDaily   Window = "DAILY"
	WindowWeekly  Window = "WEEKLY"
	WindowMonthly Window = "MONTHLY"
)

// Days returns the window length in days
func (w Window) Days() int {
	switch w {
	case WindowWeekly:
		return 7
	case WindowMonthly:
		return 30
	default:
		return 1
	}
}

// TransferScope is what a transfer request looks like to policy matching
type TransferScope struct {
	DepartmentID *uuid.UUID
	BudgetID     *uuid.UUID
	RecipientKey string // accountNumber|bankCode of the counterparty
}

// TransferPolicy constrains outbound transfers for an organization. A policy
// with no scope fields applies unconditionally; otherwise it applies when the
// transfer matches any populated scope field.
type TransferPolicy struct {
	ID             uuid.UUID      `json:"id"`
	OrganizationID uuid.UUID      `json:"organization_id"`
	Kind           Kind           `json:"kind"`
	DaysOfWeek     []time.Weekday `json:"days_of_week,omitempty"` // Calendar: blocked weekdays
	Window         Window         `json:"window,omitempty"`       // Spend limit: rolling window
	Amount         int64          `json:"amount,omitempty"`       // Spend limit: ceiling
	DepartmentIDs  []uuid.UUID    `json:"department_ids,omitempty"`
	BudgetIDs      []uuid.UUID    `json:"budget_ids,omitempty"`
	RecipientKeys  []string       `json:"recipient_keys,omitempty"`
	CreatedAt      time.Time      `json:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at"`
}

// AppliesTo reports whether the policy covers the given transfer scope
func (p *TransferPolicy) AppliesTo(scope TransferScope) bool {
	if len(p.DepartmentIDs) == 0 && len(p.BudgetIDs) == 0 && len(p.RecipientKeys) == 0 {
		return true
	}

	if scope.DepartmentID != nil {
		for _, id := range p.DepartmentIDs {
			if id == *scope.DepartmentID {
				return true
			}
		}
	}
	if scope.BudgetID != nil {
		for _, id := range p.BudgetIDs {
			if id == *scope.BudgetID {
				return true
			}
		}
	}
	if scope.RecipientKey != "" {
		for _, key := range p.RecipientKeys {
			if key == scope.RecipientKey {
				return true
			}
		}
	}
	return false
}

// BlocksWeekday reports whether a calendar policy blocks the given weekday
func (p *TransferPolicy) BlocksWeekday(day time.Weekday) bool {
	for _, d := range p.DaysOfWeek {
		if d == day {
			return true
		}
	}
	return false
}
