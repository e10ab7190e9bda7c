package service

import (
	"context"

	"github.com/finverse-ledger-engine/internal/domain/entry"
	"github.com/finverse-ledger-engine/internal/domain/shared"
)

// ProcessingService defines the interface for reconciling settlement events.
type ProcessingService interface {
	ProcessSettlementEvent(ctx context.Context, event *shared.SettlementEvent) error
}

// Ledger is the slice of the ledger service the reconciler drives. Each method
// is idempotent: replaying a settlement outcome against an entry that already
// absorbed it is a no-op.
type Ledger interface {
	Settle(ctx context.Context, e *entry.WalletEntry, providerRef, gatewayResponse string) error
	CreditBack(ctx context.Context, e *entry.WalletEntry, failureReason string) error
	Reverse(ctx context.Context, e *entry.WalletEntry) error
}
