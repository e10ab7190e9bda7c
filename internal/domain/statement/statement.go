package statement

import (
	"context"
	"time"

	"github.com/finverse-ledger-engine/internal/domain/entry"
	"github.com/google/uuid"
)

// Line is a denormalized statement row projected from a settled wallet entry.
// The projection is a read model only; wallet_entries in PostgreSQL stays the
// source of truth.
type Line struct {
	EntryID       uuid.UUID `bson:"entry_id" json:"entry_id"`
	WalletID      uuid.UUID `bson:"wallet_id" json:"wallet_id"`
	Type          string    `bson:"type" json:"type"`
	Status        string    `bson:"status" json:"status"`
	Scope         string    `bson:"scope" json:"scope"`
	Amount        int64     `bson:"amount" json:"amount"`
	Fee           int64     `bson:"fee" json:"fee"`
	Currency      string    `bson:"currency" json:"currency"`
	BalanceBefore int64     `bson:"balance_before" json:"balance_before"`
	BalanceAfter  int64     `bson:"balance_after" json:"balance_after"`
	Reference     string    `bson:"reference" json:"reference"`
	Counterparty  string    `bson:"counterparty,omitempty" json:"counterparty,omitempty"`
	Narration     string    `bson:"narration,omitempty" json:"narration,omitempty"`
	CreatedAt     time.Time `bson:"created_at" json:"created_at"`
	ProjectedAt   time.Time `bson:"projected_at" json:"projected_at"`
}

// LineFromEntry flattens a settled wallet entry into a statement line
func LineFromEntry(e *entry.WalletEntry) *Line {
	return &Line{
		EntryID:       e.ID,
		WalletID:      e.WalletID,
		Type:          string(e.Type),
		Status:        string(e.Status),
		Scope:         string(e.Scope),
		Amount:        e.Amount,
		Fee:           e.Fee,
		Currency:      e.Currency,
		BalanceBefore: e.BalanceBefore,
		BalanceAfter:  e.BalanceAfter,
		Reference:     e.Reference,
		Counterparty:  e.Meta.CounterpartyName,
		Narration:     e.Meta.Narration,
		CreatedAt:     e.CreatedAt,
		ProjectedAt:   time.Now(),
	}
}

// Repository manages the statement read model
type Repository interface {
	Upsert(ctx context.Context, line *Line) error
	GetByEntryID(ctx context.Context, entryID uuid.UUID) (*Line, error)
	ListByWallet(ctx context.Context, walletID uuid.UUID, limit, offset int) ([]*Line, error)
	CountByWallet(ctx context.Context, walletID uuid.UUID) (int64, error)
	ListByTimeRange(ctx context.Context, walletID uuid.UUID, start, end time.Time, limit, offset int) ([]*Line, error)
}

// ErrLineNotFound indicates missing statement line
type ErrLineNotFound struct {
	EntryID uuid.UUID
}

func (e ErrLineNotFound) Error() string {
	return "statement line not found: " + e.EntryID.String()
}

func (e ErrLineNotFound) Is(target error) bool {
	_, ok := target.(ErrLineNotFound)
	return ok
}
