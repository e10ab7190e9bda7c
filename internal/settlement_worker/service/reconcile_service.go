package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/finverse-ledger-engine/internal/domain/entry"
	"github.com/finverse-ledger-engine/internal/domain/shared"
	"github.com/finverse-ledger-engine/internal/notification"
)

type ReconcileServiceImpl struct {
	entries  entry.Repository
	ledger   Ledger
	notifier notification.Notifier
	logger   *slog.Logger
}

func NewReconcileService(
	entries entry.Repository,
	ledger Ledger,
	notifier notification.Notifier,
	logger *slog.Logger,
) ProcessingService {
	return &ReconcileServiceImpl{
		entries:  entries,
		ledger:   ledger,
		notifier: notifier,
		logger:   logger,
	}
}

// ProcessSettlementEvent applies a provider-reported outcome to the entry it
// references. Malformed or unresolvable events are logged and acknowledged so
// they do not wedge the partition; infrastructure errors are returned so Kafka
// redelivers the event.
func (s *ReconcileServiceImpl) ProcessSettlementEvent(ctx context.Context, event *shared.SettlementEvent) error {
	logger := s.logger
	if event.CorrelationID != "" {
		logger = s.logger.With("correlation_id", event.CorrelationID)
	}

	logger.Info("Processing settlement event",
		"reference", event.Reference,
		"status", string(event.Status),
		"amount", event.Amount,
	)

	if !event.Status.Known() {
		// Never guess at an outcome the state machine does not define.
		logger.Error("Settlement event carries unknown status, aborting without mutating state",
			"reference", event.Reference,
			"status", string(event.Status),
		)
		return nil // Acknowledge; redelivery cannot make the status known
	}

	e, err := s.entries.GetByReference(ctx, event.Reference)
	if err != nil {
		if errors.Is(err, entry.ErrEntryNotFound{}) {
			logger.Error("Settlement event references unknown entry, aborting without mutating state",
				"reference", event.Reference,
			)
			return nil // Acknowledge; the entry will never appear retroactively
		}
		return fmt.Errorf("failed to load entry for reference %s: %w", event.Reference, err)
	}

	if e.Amount != event.Amount && event.Amount != 0 {
		logger.Warn("Settlement event amount differs from entry amount",
			"reference", event.Reference,
			"entry_amount", e.Amount,
			"event_amount", event.Amount,
		)
	}

	switch event.Status {
	case shared.SettlementStatusSuccessful:
		if err := s.ledger.Settle(ctx, e, event.ProviderRef, event.GatewayResponse); err != nil {
			return fmt.Errorf("failed to settle entry %s: %w", event.Reference, err)
		}
		s.notify(ctx, e, "Transfer successful",
			fmt.Sprintf("Your transfer %s for %d %s was completed.", e.Reference, e.Amount, e.Currency))

	case shared.SettlementStatusFailed:
		reason := event.GatewayResponse
		if reason == "" {
			reason = string(shared.FailureReasonProviderDeclined)
		}
		if err := s.ledger.CreditBack(ctx, e, reason); err != nil {
			return fmt.Errorf("failed to credit back entry %s: %w", event.Reference, err)
		}
		s.notify(ctx, e, "Transfer failed",
			fmt.Sprintf("Your transfer %s for %d %s failed and the funds were returned.", e.Reference, e.Amount, e.Currency))

	case shared.SettlementStatusReversed:
		if err := s.ledger.Reverse(ctx, e); err != nil {
			return fmt.Errorf("failed to reverse entry %s: %w", event.Reference, err)
		}
		s.notify(ctx, e, "Transfer reversed",
			fmt.Sprintf("Your transfer %s for %d %s was reversed by the network and the funds were returned.", e.Reference, e.Amount, e.Currency))
	}

	logger.Info("Settlement event reconciled", "reference", event.Reference, "status", string(event.Status))
	return nil
}

func (s *ReconcileServiceImpl) notify(ctx context.Context, e *entry.WalletEntry, subject, body string) {
	if s.notifier == nil {
		return
	}
	s.notifier.Notify(ctx, &notification.Notice{
		UserID:  e.UserID,
		Subject: subject,
		Body:    body,
	})
}
