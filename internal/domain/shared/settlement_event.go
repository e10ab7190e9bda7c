package shared

import (
	"errors"
	"time"
)

var (
	ErrUnexpectedSettlementStatus = errors.New("unexpected settlement status")
	ErrInvalidCurrency            = errors.New("invalid currency")
)

// SettlementStatus defines the terminal outcomes a provider can report for
// a previously initiated transfer
type SettlementStatus string

const (
	SettlementStatusSuccessful SettlementStatus = "successful"
	SettlementStatusFailed     SettlementStatus = "failed"
	SettlementStatusReversed   SettlementStatus = "reversed"
)

// Known reports whether the status belongs to the closed set of outcomes the
// reconciler understands. Anything else must abort processing without mutating
// state.
func (s SettlementStatus) Known() bool {
	switch s {
	case SettlementStatusSuccessful, SettlementStatusFailed, SettlementStatusReversed:
		return true
	}
	return false
}

// SettlementEvent is the normalized outcome message delivered by the webhook
// ingress or synthesized by the requery poller. Delivery is at-least-once and
// unordered across references.
type SettlementEvent struct {
	Reference       string           `json:"reference"` // Caller-chosen idempotency key of the entry
	Status          SettlementStatus `json:"status"`
	Amount          int64            `json:"amount"` // Minor currency units
	Currency        string           `json:"currency"`
	ProviderRef     string           `json:"provider_ref,omitempty"`
	GatewayResponse string           `json:"gateway_response,omitempty"`
	CorrelationID   string           `json:"correlation_id,omitempty"`
	ReceivedAt      time.Time        `json:"received_at"`
}

// FailureReason defines settlement failure categories
type FailureReason string

const (
	FailureReasonEntryNotFound       FailureReason = "ENTRY_NOT_FOUND"
	FailureReasonWalletNotFound      FailureReason = "WALLET_NOT_FOUND"
	FailureReasonBudgetNotFound      FailureReason = "BUDGET_NOT_FOUND"
	FailureReasonProviderDeclined    FailureReason = "PROVIDER_DECLINED"
	FailureReasonProviderReversed    FailureReason = "PROVIDER_REVERSED"
	FailureReasonProviderUnavailable FailureReason = "PROVIDER_UNAVAILABLE"
	FailureReasonUnexpectedStatus    FailureReason = "UNEXPECTED_SETTLEMENT_STATUS"
	FailureReasonReconcileAborted    FailureReason = "RECONCILE_ABORTED"
	FailureReasonUnknownError        FailureReason = "UNKNOWN_ERROR"
)

// OutboxStatus defines statement projection states
type OutboxStatus string

const (
	OutboxStatusPending         OutboxStatus = "PENDING"
	OutboxStatusProcessed       OutboxStatus = "PROCESSED"
	OutboxStatusFailedToPublish OutboxStatus = "FAILED_TO_PUBLISH"
)
