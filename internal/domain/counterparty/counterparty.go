package counterparty

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Counterparty is a cached resolved bank-account identity, keyed by
// (organization, account number, bank code). Upserted on every successful
// resolution; flagged IsRecipient when saved to the recipient list.
type Counterparty struct {
	ID             uuid.UUID `json:"id"`
	OrganizationID uuid.UUID `json:"organization_id"`
	AccountNumber  string    `json:"account_number"`
	BankCode       string    `json:"bank_code"`
	AccountName    string    `json:"account_name"`
	BankName       string    `json:"bank_name"`
	BankID         string    `json:"bank_id"`
	IsRecipient    bool      `json:"is_recipient"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// Repository manages the counterparty cache
type Repository interface {
	Upsert(ctx context.Context, c *Counterparty) error
	GetByAccount(ctx context.Context, organizationID uuid.UUID, accountNumber, bankCode string) (*Counterparty, error)
	ListRecipients(ctx context.Context, organizationID uuid.UUID) ([]*Counterparty, error)
	SetRecipient(ctx context.Context, id uuid.UUID, isRecipient bool) error
}
