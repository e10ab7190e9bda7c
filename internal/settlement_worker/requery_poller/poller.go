package requery_poller

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/finverse-ledger-engine/internal/config"
	"github.com/finverse-ledger-engine/internal/domain/entry"
	"github.com/finverse-ledger-engine/internal/domain/shared"
	"github.com/finverse-ledger-engine/internal/provider"
	"github.com/finverse-ledger-engine/internal/settlement_worker/service"
)

// Poller re-verifies entries stuck in Pending against the transfer provider.
// Webhooks can be lost; the poller synthesizes the settlement event the
// webhook would have carried and feeds it through the same reconciler.
type Poller struct {
	entries           entry.Repository
	transferProvider  provider.TransferProvider
	processingService service.ProcessingService
	logger            *slog.Logger
	pollInterval      time.Duration
	pendingThreshold  time.Duration
	batchSize         int
}

func NewPoller(
	cfg *config.RequeryConfig,
	entries entry.Repository,
	transferProvider provider.TransferProvider,
	processingService service.ProcessingService,
	logger *slog.Logger,
) *Poller {
	return &Poller{
		entries:           entries,
		transferProvider:  transferProvider,
		processingService: processingService,
		logger:            logger,
		pollInterval:      cfg.PollingInterval,
		pendingThreshold:  cfg.PendingThreshold,
		batchSize:         cfg.BatchSize,
	}
}

// Start begins polling until context is canceled
func (p *Poller) Start(ctx context.Context) {
	p.logger.Info("Starting Requery Poller",
		"poll_interval", p.pollInterval.String(),
		"pending_threshold", p.pendingThreshold.String(),
		"batch_size", p.batchSize,
	)
	ticker := time.NewTicker(p.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			p.logger.Info("Requery Poller stopping due to context cancellation.")
			return
		case <-ticker.C:
			p.logger.Debug("Requery Poller tick: re-verifying stale pending entries")
			if err := p.requeryStalePending(ctx); err != nil {
				p.logger.Error("Error during requery of stale pending entries", "error", err)
			}
		}
	}
}

func (p *Poller) requeryStalePending(ctx context.Context) error {
	cutoff := time.Now().Add(-p.pendingThreshold)
	entries, err := p.entries.ListPendingBefore(ctx, cutoff, p.batchSize)
	if err != nil {
		return fmt.Errorf("failed to list stale pending entries: %w", err)
	}

	if len(entries) == 0 {
		p.logger.Debug("No stale pending entries found.")
		return nil
	}

	p.logger.Info("Fetched stale pending entries for requery", "count", len(entries))

	for _, e := range entries {
		logger := p.logger
		if e.CorrelationID != "" {
			logger = p.logger.With("correlation_id", e.CorrelationID)
		}

		result, err := p.transferProvider.VerifyTransfer(ctx, e.Reference)
		if err != nil {
			if errors.Is(err, provider.ErrTransferNotFound) {
				// The provider never received this transfer. Leave it for the
				// operator; guessing failed here would double-spend a webhook
				// that raced the initiation.
				logger.Warn("Provider has no record of pending transfer, skipping",
					"reference", e.Reference, "entry_id", e.ID,
				)
				continue
			}
			logger.Error("Failed to verify pending transfer with provider",
				"reference", e.Reference, "entry_id", e.ID, "error", err,
			)
			continue // Next tick retries
		}

		status := mapProviderStatus(result.Status)
		if status == "" {
			logger.Debug("Transfer still pending at provider, will requery later",
				"reference", e.Reference, "entry_id", e.ID,
			)
			continue
		}

		event := &shared.SettlementEvent{
			Reference:       e.Reference,
			Status:          status,
			Amount:          e.Amount,
			Currency:        e.Currency,
			ProviderRef:     result.ProviderRef,
			GatewayResponse: result.GatewayResponse,
			CorrelationID:   e.CorrelationID,
			ReceivedAt:      time.Now().UTC(),
		}

		if err := p.processingService.ProcessSettlementEvent(ctx, event); err != nil {
			logger.Error("Failed to reconcile requeried settlement outcome",
				"reference", e.Reference, "entry_id", e.ID, "error", err,
			)
			continue
		}
		logger.Info("Requeried pending entry reconciled",
			"reference", e.Reference, "entry_id", e.ID, "status", string(status),
		)
	}
	return nil
}

// mapProviderStatus translates a provider verification status into a
// settlement outcome; still-pending maps to the empty string (no event).
func mapProviderStatus(s provider.Status) shared.SettlementStatus {
	switch s {
	case provider.StatusSuccessful:
		return shared.SettlementStatusSuccessful
	case provider.StatusFailed:
		return shared.SettlementStatusFailed
	default:
		return ""
	}
}
