// Package policyengine evaluates an organization's transfer policies against
// an outbound transfer before any balance is touched. Checks for the three
// policy kinds run concurrently; the first violation blocks the transfer.
package policyengine

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/finverse-ledger-engine/internal/domain/entry"
	"github.com/finverse-ledger-engine/internal/domain/policy"
)

// Violation is returned when a transfer breaks a policy. It carries the
// offending policy so callers can tell the user which rule blocked them.
type Violation struct {
	Kind     policy.Kind
	PolicyID uuid.UUID
	Reason   string
}

func (v *Violation) Error() string {
	return fmt.Sprintf("transfer blocked by %s policy: %s", v.Kind, v.Reason)
}

// Is implements the errors.Is interface for Violation
func (v *Violation) Is(target error) bool {
	t, ok := target.(*Violation)
	if !ok {
		return false
	}
	return t.Kind == "" || t.Kind == v.Kind
}

// CheckRequest describes the transfer under evaluation
type CheckRequest struct {
	OrganizationID uuid.UUID
	UserID         uuid.UUID
	Amount         int64 // Minor currency units, fee excluded
	InvoiceID      string
	At             time.Time
	Scope          policy.TransferScope
}

// Engine evaluates transfer policies
type Engine struct {
	policies policy.Repository
	entries  entry.Repository
	logger   *slog.Logger
}

// NewEngine creates a policy engine
func NewEngine(logger *slog.Logger, policies policy.Repository, entries entry.Repository) *Engine {
	return &Engine{
		policies: policies,
		entries:  entries,
		logger:   logger,
	}
}

// CheckTransfer runs all policy kinds against the request. Returns nil when no
// policy blocks the transfer, a *Violation when one does, and a plain error
// when evaluation itself failed (the transfer must not proceed on evaluation
// failure either).
func (e *Engine) CheckTransfer(ctx context.Context, req *CheckRequest) error {
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error { return e.checkCalendar(gctx, req) })
	g.Go(func() error { return e.checkSpendLimit(gctx, req) })
	g.Go(func() error { return e.checkInvoice(gctx, req) })

	if err := g.Wait(); err != nil {
		return err
	}

	return nil
}

// checkCalendar blocks transfers on weekdays a calendar policy forbids
func (e *Engine) checkCalendar(ctx context.Context, req *CheckRequest) error {
	policies, err := e.policies.ListByKind(ctx, req.OrganizationID, policy.KindCalendar)
	if err != nil {
		return fmt.Errorf("failed to load calendar policies: %w", err)
	}

	day := req.At.Weekday()
	for _, p := range policies {
		if !p.AppliesTo(req.Scope) {
			continue
		}
		if p.BlocksWeekday(day) {
			return &Violation{
				Kind:     policy.KindCalendar,
				PolicyID: p.ID,
				Reason:   fmt.Sprintf("transfers are not allowed on %s", day),
			}
		}
	}
	return nil
}

// checkSpendLimit sums the user's debits over each policy's rolling window and
// blocks when this transfer would push the total over the ceiling. Pending
// debits count; funds already reserved are spent until proven otherwise.
func (e *Engine) checkSpendLimit(ctx context.Context, req *CheckRequest) error {
	policies, err := e.policies.ListByKind(ctx, req.OrganizationID, policy.KindSpendLimit)
	if err != nil {
		return fmt.Errorf("failed to load spend-limit policies: %w", err)
	}

	for _, p := range policies {
		if !p.AppliesTo(req.Scope) {
			continue
		}

		since := req.At.AddDate(0, 0, -p.Window.Days())
		spent, err := e.entries.SumSpentByUser(ctx, req.UserID, req.Scope.BudgetID, since)
		if err != nil {
			return fmt.Errorf("failed to sum spend for limit check: %w", err)
		}

		// Blocks at the ceiling itself: spending the full limit needs headroom
		if spent+req.Amount >= p.Amount {
			return &Violation{
				Kind:     policy.KindSpendLimit,
				PolicyID: p.ID,
				Reason: fmt.Sprintf("%s limit of %d reached: %d spent, %d requested",
					p.Window, p.Amount, spent, req.Amount),
			}
		}
	}
	return nil
}

// checkInvoice blocks transfers above an invoice policy's threshold unless an
// invoice is attached
func (e *Engine) checkInvoice(ctx context.Context, req *CheckRequest) error {
	policies, err := e.policies.ListByKind(ctx, req.OrganizationID, policy.KindInvoice)
	if err != nil {
		return fmt.Errorf("failed to load invoice policies: %w", err)
	}

	for _, p := range policies {
		if !p.AppliesTo(req.Scope) {
			continue
		}
		if req.Amount >= p.Amount && req.InvoiceID == "" {
			return &Violation{
				Kind:     policy.KindInvoice,
				PolicyID: p.ID,
				Reason:   fmt.Sprintf("transfers of %d and above require an attached invoice", p.Amount),
			}
		}
	}
	return nil
}
