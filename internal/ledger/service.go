// Package ledger implements balance mutation with reservation semantics.
// Every multi-row mutation (wallet+entry, wallet+budget+entry) runs in a
// single transaction; balances only move through conditional updates, and
// every move leaves a wallet entry behind.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/finverse-ledger-engine/internal/domain/budget"
	"github.com/finverse-ledger-engine/internal/domain/entry"
	"github.com/finverse-ledger-engine/internal/domain/outbox"
	"github.com/finverse-ledger-engine/internal/domain/shared"
	"github.com/finverse-ledger-engine/internal/domain/wallet"
	"github.com/finverse-ledger-engine/internal/platform/persistence"
)

// ReservationRequest describes an outbound debit to reserve
type ReservationRequest struct {
	OrganizationID uuid.UUID
	WalletID       uuid.UUID
	BudgetID       *uuid.UUID
	ProjectID      *uuid.UUID
	PayrollID      *uuid.UUID
	UserID         uuid.UUID
	Scope          entry.Scope
	Amount         int64 // Minor currency units
	Fee            int64
	Currency       string
	Reference      string // Caller-chosen idempotency key
	Provider       string
	Meta           entry.Meta
	CorrelationID  string
}

// Service is the ledger core. All operations that touch more than one row go
// through PostgresDB.ExecuteTx with repositories rebound onto the transaction.
type Service struct {
	db      *persistence.PostgresDB
	wallets wallet.Repository
	budgets budget.Repository
	entries entry.Repository
	outbox  outbox.Repository
	logger  *slog.Logger
}

// NewService creates a ledger service
func NewService(
	logger *slog.Logger,
	db *persistence.PostgresDB,
	wallets wallet.Repository,
	budgets budget.Repository,
	entries entry.Repository,
	outboxRepo outbox.Repository,
) *Service {
	return &Service{
		db:      db,
		wallets: wallets,
		budgets: budgets,
		entries: entries,
		outbox:  outboxRepo,
		logger:  logger,
	}
}

// ReserveFunds atomically decrements the wallet (and budget, when scoped) by
// amount+fee and records a Pending debit entry, all in one transaction.
// Nothing is reserved without its entry, and vice versa.
func (s *Service) ReserveFunds(ctx context.Context, req *ReservationRequest) (*entry.WalletEntry, error) {
	if req.Amount <= 0 {
		return nil, budget.ErrInvalidAmount
	}
	total := req.Amount + req.Fee

	var created *entry.WalletEntry
	err := s.db.ExecuteTx(ctx, func(tx pgx.Tx) error {
		wallets := s.wallets.WithTx(tx)
		budgets := s.budgets.WithTx(tx)
		entries := s.entries.WithTx(tx)

		if req.BudgetID != nil {
			b, err := budgets.GetByID(ctx, *req.BudgetID)
			if err != nil {
				return err
			}
			spent, err := entries.SumSpentByUser(ctx, req.UserID, req.BudgetID, time.Time{})
			if err != nil {
				return fmt.Errorf("failed to compute beneficiary spend: %w", err)
			}
			if err := b.CheckAllocation(req.UserID, req.Amount, spent); err != nil {
				return err
			}
			if _, err := budgets.Debit(ctx, *req.BudgetID, total); err != nil {
				return err
			}
		}

		balances, err := wallets.ReserveFunds(ctx, req.WalletID, total)
		if err != nil {
			return err
		}

		e := &entry.WalletEntry{
			ID:                  uuid.New(),
			OrganizationID:      req.OrganizationID,
			WalletID:            req.WalletID,
			BudgetID:            req.BudgetID,
			ProjectID:           req.ProjectID,
			PayrollID:           req.PayrollID,
			UserID:              req.UserID,
			Type:                entry.TypeDebit,
			Status:              entry.StatusPending,
			Scope:               req.Scope,
			Amount:              req.Amount,
			Fee:                 req.Fee,
			Currency:            req.Currency,
			BalanceBefore:       balances.Balance + total,
			BalanceAfter:        balances.Balance,
			LedgerBalanceBefore: balances.LedgerBalance + total,
			LedgerBalanceAfter:  balances.LedgerBalance,
			Reference:           req.Reference,
			Provider:            req.Provider,
			Meta:                req.Meta,
			CorrelationID:       req.CorrelationID,
			CreatedAt:           time.Now(),
		}
		if err := entries.Create(ctx, e); err != nil {
			return err
		}

		created = e
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Funds reserved",
		"reference", created.Reference,
		"wallet_id", created.WalletID.String(),
		"amount", created.Amount,
		"fee", created.Fee,
		"correlation_id", created.CorrelationID,
	)

	return created, nil
}

// Settle marks a Pending entry Successful and runs the scope-specific confirm
// action. A replay against an already-terminal entry is a no-op.
func (s *Service) Settle(ctx context.Context, e *entry.WalletEntry, providerRef, gatewayResponse string) error {
	err := s.db.ExecuteTx(ctx, func(tx pgx.Tx) error {
		entries := s.entries.WithTx(tx)

		if err := entries.MarkSettled(ctx, e.ID, entry.StatusSuccessful, providerRef, ""); err != nil {
			return err
		}

		if err := s.confirmScope(ctx, tx, e); err != nil {
			return err
		}

		settled := *e
		settled.Status = entry.StatusSuccessful
		if providerRef != "" {
			settled.ProviderRef = providerRef
		}
		now := time.Now()
		settled.SettledAt = &now

		return s.appendToStatement(ctx, tx, &settled)
	})
	if errors.Is(err, entry.ErrAlreadySettled) {
		s.logger.Info("Settlement replay ignored, entry already terminal",
			"reference", e.Reference,
			"correlation_id", e.CorrelationID,
		)
		return nil
	}
	if err != nil {
		return err
	}

	s.logger.Info("Entry settled successful",
		"reference", e.Reference,
		"provider_ref", providerRef,
		"correlation_id", e.CorrelationID,
	)
	return nil
}

// CreditBack reverses a reservation after a failed outcome: amount+fee go back
// to the wallet (and budget, when scoped) and the entry is marked Failed, in
// one transaction. Replays are no-ops.
func (s *Service) CreditBack(ctx context.Context, e *entry.WalletEntry, failureReason string) error {
	total := e.Total()

	err := s.db.ExecuteTx(ctx, func(tx pgx.Tx) error {
		wallets := s.wallets.WithTx(tx)
		budgets := s.budgets.WithTx(tx)
		entries := s.entries.WithTx(tx)

		if err := entries.MarkSettled(ctx, e.ID, entry.StatusFailed, e.ProviderRef, failureReason); err != nil {
			return err
		}

		if _, err := wallets.Credit(ctx, e.WalletID, total); err != nil {
			return err
		}
		if e.BudgetID != nil {
			if _, err := budgets.Credit(ctx, *e.BudgetID, total); err != nil {
				return err
			}
		}

		failed := *e
		failed.Status = entry.StatusFailed
		failed.FailureReason = failureReason
		now := time.Now()
		failed.SettledAt = &now

		return s.appendToStatement(ctx, tx, &failed)
	})
	if errors.Is(err, entry.ErrAlreadySettled) {
		s.logger.Info("Credit-back replay ignored, entry already terminal",
			"reference", e.Reference,
			"correlation_id", e.CorrelationID,
		)
		return nil
	}
	if err != nil {
		return err
	}

	s.logger.Info("Reservation credited back",
		"reference", e.Reference,
		"amount", total,
		"failure_reason", failureReason,
		"correlation_id", e.CorrelationID,
	)
	return nil
}

// Reverse claws back a previously Successful entry. History is never edited:
// a new compensating Credit entry references the original, and the original
// gets a reversal marker so a replayed reversal event finds the guard down.
// A still-Pending entry is treated like the failed path instead.
func (s *Service) Reverse(ctx context.Context, e *entry.WalletEntry) error {
	if e.Status == entry.StatusPending {
		return s.CreditBack(ctx, e, string(shared.FailureReasonProviderReversed))
	}
	if e.Status != entry.StatusSuccessful {
		s.logger.Info("Reversal ignored for non-successful entry",
			"reference", e.Reference,
			"status", string(e.Status),
		)
		return nil
	}

	total := e.Total()

	err := s.db.ExecuteTx(ctx, func(tx pgx.Tx) error {
		wallets := s.wallets.WithTx(tx)
		budgets := s.budgets.WithTx(tx)
		entries := s.entries.WithTx(tx)

		if err := entries.MarkReversed(ctx, e.ID); err != nil {
			return err
		}

		balances, err := wallets.Credit(ctx, e.WalletID, total)
		if err != nil {
			return err
		}
		if e.BudgetID != nil {
			if _, err := budgets.Credit(ctx, *e.BudgetID, total); err != nil {
				return err
			}
		}

		now := time.Now()
		originalID := e.ID
		compensating := &entry.WalletEntry{
			ID:                  uuid.New(),
			OrganizationID:      e.OrganizationID,
			WalletID:            e.WalletID,
			BudgetID:            e.BudgetID,
			ProjectID:           e.ProjectID,
			UserID:              e.UserID,
			Type:                entry.TypeCredit,
			Status:              entry.StatusSuccessful,
			Scope:               entry.ScopeReversal,
			Amount:              e.Amount,
			Fee:                 e.Fee,
			Currency:            e.Currency,
			BalanceBefore:       balances.Balance - total,
			BalanceAfter:        balances.Balance,
			LedgerBalanceBefore: balances.LedgerBalance - total,
			LedgerBalanceAfter:  balances.LedgerBalance,
			Reference:           e.Reference + "_rvsl",
			ProviderRef:         e.ProviderRef,
			Provider:            e.Provider,
			ReversalOf:          &originalID,
			Meta:                e.Meta,
			CorrelationID:       e.CorrelationID,
			CreatedAt:           now,
			SettledAt:           &now,
		}
		if err := entries.Create(ctx, compensating); err != nil {
			return err
		}

		return s.appendToStatement(ctx, tx, compensating)
	})
	if errors.Is(err, entry.ErrAlreadyReversed) {
		s.logger.Info("Reversal replay ignored, marker already set",
			"reference", e.Reference,
			"correlation_id", e.CorrelationID,
		)
		return nil
	}
	if err != nil {
		return err
	}

	s.logger.Info("Entry reversed with compensating credit",
		"reference", e.Reference,
		"amount", total,
		"correlation_id", e.CorrelationID,
	)
	return nil
}

// FundBudget moves the budget's approved amount out of the wallet and
// activates it. Internal movement, no provider involved, so the entry is
// created already Successful.
func (s *Service) FundBudget(ctx context.Context, budgetID, userID uuid.UUID, correlationID string) error {
	err := s.db.ExecuteTx(ctx, func(tx pgx.Tx) error {
		wallets := s.wallets.WithTx(tx)
		budgets := s.budgets.WithTx(tx)
		entries := s.entries.WithTx(tx)

		b, err := budgets.GetByID(ctx, budgetID)
		if err != nil {
			return err
		}
		if !b.CanTransition(budget.StatusActive) {
			return budget.ErrInvalidStatusChange
		}

		balances, err := wallets.ReserveFunds(ctx, b.WalletID, b.Amount)
		if err != nil {
			return err
		}
		if err := budgets.Activate(ctx, budgetID); err != nil {
			return err
		}

		e := s.internalEntry(b, userID, entry.TypeDebit, entry.ScopeBudgetFunding, b.Amount, balances, correlationID)
		e.Meta.Narration = "budget funding: " + b.Name
		if err := entries.Create(ctx, e); err != nil {
			return err
		}
		return s.appendToStatement(ctx, tx, e)
	})
	if err != nil {
		return err
	}

	s.logger.Info("Budget funded and activated",
		"budget_id", budgetID.String(),
		"correlation_id", correlationID,
	)
	return nil
}

// ExtendBudget raises the budget ceiling by extra and funds the difference
// from the wallet
func (s *Service) ExtendBudget(ctx context.Context, budgetID uuid.UUID, extra int64, userID uuid.UUID, correlationID string) error {
	if extra <= 0 {
		return budget.ErrInvalidAmount
	}

	err := s.db.ExecuteTx(ctx, func(tx pgx.Tx) error {
		wallets := s.wallets.WithTx(tx)
		budgets := s.budgets.WithTx(tx)
		entries := s.entries.WithTx(tx)

		b, err := budgets.GetByID(ctx, budgetID)
		if err != nil {
			return err
		}

		balances, err := wallets.ReserveFunds(ctx, b.WalletID, extra)
		if err != nil {
			return err
		}
		if err := budgets.Extend(ctx, budgetID, extra); err != nil {
			return err
		}

		e := s.internalEntry(b, userID, entry.TypeDebit, entry.ScopeBudgetExtension, extra, balances, correlationID)
		e.Meta.Narration = "budget extension: " + b.Name
		if err := entries.Create(ctx, e); err != nil {
			return err
		}
		return s.appendToStatement(ctx, tx, e)
	})
	if err != nil {
		return err
	}

	s.logger.Info("Budget extended",
		"budget_id", budgetID.String(),
		"extra", extra,
		"correlation_id", correlationID,
	)
	return nil
}

// CloseBudget zeroes the budget and returns the unspent remainder to the
// wallet. Closing an already-empty budget writes no entry.
func (s *Service) CloseBudget(ctx context.Context, budgetID, userID uuid.UUID, correlationID string) error {
	err := s.db.ExecuteTx(ctx, func(tx pgx.Tx) error {
		wallets := s.wallets.WithTx(tx)
		budgets := s.budgets.WithTx(tx)
		entries := s.entries.WithTx(tx)

		b, err := budgets.GetByID(ctx, budgetID)
		if err != nil {
			return err
		}

		remainder, err := budgets.Close(ctx, budgetID)
		if err != nil {
			return err
		}
		if remainder == 0 {
			return nil
		}

		balances, err := wallets.Credit(ctx, b.WalletID, remainder)
		if err != nil {
			return err
		}

		e := s.internalEntry(b, userID, entry.TypeCredit, entry.ScopeBudgetClosure, remainder, balances, correlationID)
		e.Meta.Narration = "budget closure: " + b.Name
		if err := entries.Create(ctx, e); err != nil {
			return err
		}
		return s.appendToStatement(ctx, tx, e)
	})
	if err != nil {
		return err
	}

	s.logger.Info("Budget closed",
		"budget_id", budgetID.String(),
		"correlation_id", correlationID,
	)
	return nil
}

// StampProviderRef records the provider-assigned id on a pending entry so
// the requery poller can verify it later
func (s *Service) StampProviderRef(ctx context.Context, e *entry.WalletEntry, providerRef string) error {
	if err := s.entries.SetProviderRef(ctx, e.ID, providerRef); err != nil {
		return err
	}
	e.ProviderRef = providerRef
	return nil
}

// PauseBudget suspends spending from an active budget
func (s *Service) PauseBudget(ctx context.Context, budgetID uuid.UUID) error {
	return s.budgets.SetStatus(ctx, budgetID, budget.StatusActive, budget.StatusPaused)
}

// UnpauseBudget resumes spending from a paused budget
func (s *Service) UnpauseBudget(ctx context.Context, budgetID uuid.UUID) error {
	return s.budgets.SetStatus(ctx, budgetID, budget.StatusPaused, budget.StatusActive)
}

// confirmScope runs the scope-specific side effect of a successful settlement.
// Only a funding entry settled through the async path needs one: the budget it
// funded is still waiting to be activated.
func (s *Service) confirmScope(ctx context.Context, tx pgx.Tx, e *entry.WalletEntry) error {
	switch e.Scope {
	case entry.ScopeBudgetFunding:
		if e.BudgetID == nil {
			return nil
		}
		err := s.budgets.WithTx(tx).Activate(ctx, *e.BudgetID)
		if errors.Is(err, budget.ErrInvalidStatusChange) {
			return nil // already active
		}
		return err
	default:
		return nil
	}
}

// internalEntry builds a settled entry for wallet<->budget movements. The
// balance snapshot comes from the conditional update that just ran in the
// same transaction.
func (s *Service) internalEntry(b *budget.Budget, userID uuid.UUID, typ entry.Type, scope entry.Scope, amount int64, balances *wallet.Balances, correlationID string) *entry.WalletEntry {
	now := time.Now()
	delta := amount
	if typ == entry.TypeCredit {
		delta = -amount
	}
	budgetID := b.ID
	return &entry.WalletEntry{
		ID:                  uuid.New(),
		OrganizationID:      b.OrganizationID,
		WalletID:            b.WalletID,
		BudgetID:            &budgetID,
		ProjectID:           b.ProjectID,
		UserID:              userID,
		Type:                typ,
		Status:              entry.StatusSuccessful,
		Scope:               scope,
		Amount:              amount,
		Currency:            b.Currency,
		BalanceBefore:       balances.Balance + delta,
		BalanceAfter:        balances.Balance,
		LedgerBalanceBefore: balances.LedgerBalance + delta,
		LedgerBalanceAfter:  balances.LedgerBalance,
		Reference:           string(scope) + "_" + uuid.New().String(),
		CorrelationID:       correlationID,
		CreatedAt:           now,
		SettledAt:           &now,
	}
}

// appendToStatement writes the outbox row that feeds the statement read model.
// Same transaction as the mutation it describes.
func (s *Service) appendToStatement(ctx context.Context, tx pgx.Tx, e *entry.WalletEntry) error {
	msg, err := outbox.NewMessage(e)
	if err != nil {
		return fmt.Errorf("failed to build statement outbox message: %w", err)
	}
	return s.outbox.WithTx(tx).Create(ctx, msg)
}
