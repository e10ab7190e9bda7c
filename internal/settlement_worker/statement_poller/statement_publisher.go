package statement_poller

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/finverse-ledger-engine/internal/domain/entry"
	"github.com/finverse-ledger-engine/internal/domain/outbox"
	"github.com/finverse-ledger-engine/internal/domain/shared"
	"github.com/finverse-ledger-engine/internal/domain/statement"
)

// StatementPublisher projects outbox messages into the statement read model
type StatementPublisher interface {
	PublishToStatement(ctx context.Context, message *outbox.Message) error
}

// StatementPublisherImpl implements StatementPublisher
type StatementPublisherImpl struct {
	outboxRepo    outbox.Repository
	statementRepo statement.Repository
	logger        *slog.Logger
}

// NewStatementPublisher creates a new publisher
func NewStatementPublisher(
	outboxRepo outbox.Repository,
	statementRepo statement.Repository,
	logger *slog.Logger,
) StatementPublisher {
	return &StatementPublisherImpl{
		outboxRepo:    outboxRepo,
		statementRepo: statementRepo,
		logger:        logger,
	}
}

// PublishToStatement projects a settled wallet entry into the statement collection
func (p *StatementPublisherImpl) PublishToStatement(ctx context.Context, message *outbox.Message) error {
	var e entry.WalletEntry
	if err := json.Unmarshal(message.Payload, &e); err != nil {
		p.logger.Error("Failed to unmarshal wallet entry from outbox payload",
			"outbox_id", message.ID, "entry_id", message.EntryID, "error", err,
		)
		if updateErr := p.outboxRepo.UpdateStatus(ctx, message.ID, shared.OutboxStatusFailedToPublish); updateErr != nil {
			p.logger.Error("Also failed to update outbox status to FAILED_TO_PUBLISH after unmarshal error", "outbox_id", message.ID, "update_error", updateErr)
		}
		return fmt.Errorf("unmarshal payload for outbox %d failed: %w", message.ID, err)
	}

	// Add correlation ID to logger
	logger := p.logger
	if e.CorrelationID != "" {
		logger = p.logger.With("correlation_id", e.CorrelationID)
	}

	logger.Info("Attempting to project outbox message into statement", "outbox_id", message.ID, "entry_id", message.EntryID)

	// Upsert keyed by entry id, so redelivery after a crashed PROCESSED update
	// rewrites the same line instead of duplicating it.
	line := statement.LineFromEntry(&e)
	if err := p.statementRepo.Upsert(ctx, line); err != nil {
		logger.Error("Failed to upsert statement line in MongoDB", "entry_id", e.ID, "error", err)
		return fmt.Errorf("failed to upsert statement line %s: %w", e.ID, err)
	}

	// Mark outbox message as processed
	if err := p.outboxRepo.UpdateStatus(ctx, message.ID, shared.OutboxStatusProcessed); err != nil {
		logger.Error("Failed to update outbox message status to PROCESSED",
			"outbox_id", message.ID, "entry_id", message.EntryID, "error", err,
		)
		return fmt.Errorf("statement write for %s OK, but failed to mark outbox %d as PROCESSED: %w", message.EntryID, message.ID, err)
	}

	logger.Info("Outbox message successfully projected and marked as PROCESSED", "outbox_id", message.ID, "entry_id", message.EntryID)
	return nil
}
