package entry

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// Repository manages wallet entry persistence. Entries are append-mostly:
// MarkSettled and MarkReversed are the only mutations, both guarded by the
// entry's current state at write time so each transition happens exactly once.
type Repository interface {
	Create(ctx context.Context, e *WalletEntry) error
	GetByID(ctx context.Context, id uuid.UUID) (*WalletEntry, error)
	GetByReference(ctx context.Context, reference string) (*WalletEntry, error)
	GetByWalletID(ctx context.Context, walletID uuid.UUID, limit, offset int) ([]*WalletEntry, error)

	// MarkSettled transitions the entry out of Pending. Guarded by
	// status = PENDING; returns ErrAlreadySettled when the guard fails.
	MarkSettled(ctx context.Context, id uuid.UUID, status Status, providerRef, failureReason string) error

	// MarkReversed stamps the reversal marker on a settled entry. Guarded by
	// NOT reversed; returns ErrAlreadyReversed when the guard fails.
	MarkReversed(ctx context.Context, id uuid.UUID) error

	// SetProviderRef stamps the provider-assigned id on a still-pending entry
	// so the requery poller can verify it later
	SetProviderRef(ctx context.Context, id uuid.UUID, providerRef string) error

	// ListPendingBefore returns debit entries still Pending that were created
	// before the cutoff, for the requery poller
	ListPendingBefore(ctx context.Context, cutoff time.Time, limit int) ([]*WalletEntry, error)

	// SumSpentByUser sums successful and pending debit amounts for a user since
	// the given time, optionally scoped to a budget. Used by spend-limit
	// policies and allocation checks.
	SumSpentByUser(ctx context.Context, userID uuid.UUID, budgetID *uuid.UUID, since time.Time) (int64, error)

	WithTx(tx pgx.Tx) Repository
}

// ErrEntryNotFound indicates missing wallet entry
type ErrEntryNotFound struct {
	Reference string
}

func (e ErrEntryNotFound) Error() string {
	return "wallet entry not found: " + e.Reference
}

// Is implements the errors.Is interface for ErrEntryNotFound
func (e ErrEntryNotFound) Is(target error) bool {
	t, ok := target.(ErrEntryNotFound)
	if !ok {
		return false
	}
	if t.Reference == "" {
		return true
	}
	return e.Reference == t.Reference
}

// ErrDuplicateReference indicates the unique index on reference rejected the
// insert; the reference is the durable idempotency key
type ErrDuplicateReference struct {
	Reference string
}

func (e ErrDuplicateReference) Error() string {
	return "duplicate wallet entry reference: " + e.Reference
}

// Is implements the errors.Is interface for ErrDuplicateReference
func (e ErrDuplicateReference) Is(target error) bool {
	t, ok := target.(ErrDuplicateReference)
	if !ok {
		return false
	}
	if t.Reference == "" {
		return true
	}
	return e.Reference == t.Reference
}
