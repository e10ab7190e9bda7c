// Package transfer orchestrates outbound transfers end to end: duplicate
// guard, policy evaluation, approval gate, counterparty snapshot, fund
// reservation, provider initiation, and the synchronous half of settlement.
package transfer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/finverse-ledger-engine/internal/data/redis"
	"github.com/finverse-ledger-engine/internal/domain/approval"
	"github.com/finverse-ledger-engine/internal/domain/entry"
	"github.com/finverse-ledger-engine/internal/domain/policy"
	"github.com/finverse-ledger-engine/internal/domain/shared"
	"github.com/finverse-ledger-engine/internal/ledger"
	"github.com/finverse-ledger-engine/internal/policyengine"
	"github.com/finverse-ledger-engine/internal/provider"
	"github.com/finverse-ledger-engine/internal/resolver"
	"github.com/finverse-ledger-engine/internal/workflow"
)

// ErrTransferDeclined indicates the provider rejected the transfer at
// initiation; the reservation has already been credited back
var ErrTransferDeclined = errors.New("transfer declined by provider")

// Request describes an outbound transfer to orchestrate
type Request struct {
	OrganizationID uuid.UUID
	WalletID       uuid.UUID
	BudgetID       *uuid.UUID
	DepartmentID   *uuid.UUID
	UserID         uuid.UUID
	IsOwner        bool
	Amount         int64 // Minor currency units, fee excluded
	Currency       string
	AccountNumber  string
	BankCode       string
	Narration      string
	Reference      string // Caller-chosen idempotency key
	InvoiceID      string
	CorrelationID  string
}

// Result reports how the transfer ended on the synchronous path
type Result struct {
	Entry             *entry.WalletEntry
	ApprovalRequestID *uuid.UUID // Set when execution suspended for approval
}

// Service runs the transfer pipeline. It implements workflow.TransferExecutor
// so deferred transfers resolve through the same execution path.
type Service struct {
	guard    *redis.DuplicateGuard
	policies *policyengine.Engine
	workflow *workflow.Service
	resolver *resolver.Service
	ledger   *ledger.Service
	provider provider.TransferProvider
	fee      int64
	logger   *slog.Logger
}

// NewService creates a transfer orchestrator with a flat default fee
func NewService(
	logger *slog.Logger,
	guard *redis.DuplicateGuard,
	policies *policyengine.Engine,
	workflowSvc *workflow.Service,
	resolverSvc *resolver.Service,
	ledgerSvc *ledger.Service,
	transferProvider provider.TransferProvider,
	defaultFee int64,
) *Service {
	return &Service{
		guard:    guard,
		policies: policies,
		workflow: workflowSvc,
		resolver: resolverSvc,
		ledger:   ledgerSvc,
		provider: transferProvider,
		fee:      defaultFee,
		logger:   logger,
	}
}

// Transfer runs the full pipeline. Everything before the approval gate is
// synchronous and returns business-rule failures to the caller without retry.
func (s *Service) Transfer(ctx context.Context, req *Request) (*Result, error) {
	log := s.logger.With("correlation_id", req.CorrelationID)

	if err := s.guard.Acquire(ctx, req.OrganizationID, req.UserID, req.AccountNumber, req.Amount); err != nil {
		return nil, err
	}

	cp, err := s.resolver.Resolve(ctx, req.OrganizationID, req.AccountNumber, req.BankCode)
	if err != nil {
		s.guard.Release(ctx, req.OrganizationID, req.UserID, req.AccountNumber, req.Amount)
		return nil, err
	}

	check := &policyengine.CheckRequest{
		OrganizationID: req.OrganizationID,
		UserID:         req.UserID,
		Amount:         req.Amount,
		InvoiceID:      req.InvoiceID,
		At:             time.Now(),
		Scope: policy.TransferScope{
			DepartmentID: req.DepartmentID,
			BudgetID:     req.BudgetID,
			RecipientKey: req.AccountNumber + "|" + req.BankCode,
		},
	}
	if err := s.policies.CheckTransfer(ctx, check); err != nil {
		s.guard.Release(ctx, req.OrganizationID, req.UserID, req.AccountNumber, req.Amount)
		return nil, err
	}

	props := approval.TransactionProperties{
		OrganizationID: req.OrganizationID,
		WalletID:       req.WalletID,
		BudgetID:       req.BudgetID,
		UserID:         req.UserID,
		Amount:         req.Amount,
		Fee:            s.fee,
		Currency:       req.Currency,
		AccountNumber:  req.AccountNumber,
		BankCode:       req.BankCode,
		Narration:      req.Narration,
		Reference:      req.Reference,
		InvoiceID:      req.InvoiceID,
	}

	outcome, err := s.workflow.RequestOrExecute(ctx, req.OrganizationID, req.UserID, req.IsOwner, req.Amount, props, req.CorrelationID)
	if err != nil {
		return nil, err
	}
	if !outcome.Executed {
		log.Info("Transfer suspended pending approval",
			"reference", req.Reference,
			"request_id", outcome.RequestID.String(),
			"counterparty", cp.AccountName,
		)
		return &Result{ApprovalRequestID: outcome.RequestID}, nil
	}

	return &Result{Entry: outcome.Entry}, nil
}

// ExecuteApproved reserves funds and initiates the provider transfer. Called
// directly for ungated transfers and by the approval workflow once a gated
// one resolves. The reference's unique index makes replays safe: a second
// dispatch fails on ErrDuplicateReference before touching balances twice.
func (s *Service) ExecuteApproved(ctx context.Context, props approval.TransactionProperties, correlationID string) (*entry.WalletEntry, error) {
	log := s.logger.With("correlation_id", correlationID)

	cp, err := s.resolver.Resolve(ctx, props.OrganizationID, props.AccountNumber, props.BankCode)
	if err != nil {
		return nil, err
	}

	scope := entry.ScopeWalletTransfer
	if props.BudgetID != nil {
		scope = entry.ScopeBudgetTransfer
	}

	e, err := s.ledger.ReserveFunds(ctx, &ledger.ReservationRequest{
		OrganizationID: props.OrganizationID,
		WalletID:       props.WalletID,
		BudgetID:       props.BudgetID,
		UserID:         props.UserID,
		Scope:          scope,
		Amount:         props.Amount,
		Fee:            props.Fee,
		Currency:       props.Currency,
		Reference:      props.Reference,
		Meta: entry.Meta{
			CounterpartyName: cp.AccountName,
			BankName:         cp.BankName,
			AccountNumber:    cp.AccountNumber,
			BankCode:         cp.BankCode,
			Narration:        props.Narration,
			InvoiceID:        props.InvoiceID,
		},
		CorrelationID: correlationID,
	})
	if err != nil {
		return nil, err
	}

	result, err := s.provider.InitiateTransfer(ctx, &provider.TransferRequest{
		Reference:     props.Reference,
		AccountNumber: props.AccountNumber,
		BankCode:      props.BankCode,
		AccountName:   cp.AccountName,
		Narration:     props.Narration,
		Currency:      props.Currency,
		Amount:        props.Amount,
	})
	if err != nil {
		// The provider never saw the transfer; release the reservation
		if cbErr := s.ledger.CreditBack(ctx, e, string(shared.FailureReasonProviderUnavailable)); cbErr != nil {
			log.Error("Failed to credit back after provider error",
				"reference", e.Reference,
				"error", cbErr,
			)
			return nil, cbErr
		}
		return nil, err
	}

	switch result.Status {
	case provider.StatusSuccessful:
		if err := s.ledger.Settle(ctx, e, result.ProviderRef, result.GatewayResponse); err != nil {
			return nil, err
		}
		e.Status = entry.StatusSuccessful
		e.ProviderRef = result.ProviderRef
		return e, nil

	case provider.StatusFailed:
		if err := s.ledger.CreditBack(ctx, e, string(shared.FailureReasonProviderDeclined)); err != nil {
			return nil, err
		}
		e.Status = entry.StatusFailed
		return e, fmt.Errorf("%w: %s", ErrTransferDeclined, result.GatewayResponse)

	default:
		// Stays Pending until a webhook or the requery poller settles it
		if err := s.ledger.StampProviderRef(ctx, e, result.ProviderRef); err != nil {
			return nil, err
		}
		log.Info("Transfer pending provider settlement",
			"reference", e.Reference,
			"provider_ref", result.ProviderRef,
		)
		return e, nil
	}
}
