package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/finverse-ledger-engine/internal/domain/shared"
	"github.com/finverse-ledger-engine/internal/platform/messaging/producers"
	"github.com/finverse-ledger-engine/internal/provider"
)

var (
	// ErrUnknownProvider indicates a webhook from a provider we do not integrate
	ErrUnknownProvider = errors.New("unknown webhook provider")

	// ErrMalformedPayload indicates a webhook body that could not be normalized
	ErrMalformedPayload = errors.New("malformed webhook payload")
)

// WebhookServiceImpl normalizes provider webhook payloads and publishes the
// resulting settlement events to Kafka. Ingestion is deliberately thin: no
// ledger state is touched here, the reconciler owns all mutations.
type WebhookServiceImpl struct {
	publisher producers.MessagePublisher
	logger    *slog.Logger
}

func NewWebhookService(publisher producers.MessagePublisher, logger *slog.Logger) WebhookService {
	return &WebhookServiceImpl{
		publisher: publisher,
		logger:    logger,
	}
}

// vaultpayWebhook is VaultPay's webhook envelope
type vaultpayWebhook struct {
	Event string `json:"event"`
	Data  struct {
		Reference string `json:"reference"`
		ID        string `json:"id"`
		Amount    int64  `json:"amount"`
		Currency  string `json:"currency"`
		Message   string `json:"message"`
	} `json:"data"`
}

// IngestSettlementEvent validates and normalizes a provider webhook, then
// publishes the settlement event keyed by reference so all outcomes for one
// transfer land on the same partition.
func (s *WebhookServiceImpl) IngestSettlementEvent(ctx context.Context, providerName string, payload []byte, correlationID string) (*shared.SettlementEvent, error) {
	name, err := provider.ParseName(providerName)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrUnknownProvider, providerName)
	}

	var event *shared.SettlementEvent
	switch name {
	case provider.NameSandbox:
		event, err = normalizeSandbox(payload)
	case provider.NameVaultpay:
		event, err = normalizeVaultpay(payload)
	}
	if err != nil {
		return nil, err
	}

	if event.Reference == "" {
		return nil, fmt.Errorf("%w: missing reference", ErrMalformedPayload)
	}
	if !event.Status.Known() {
		return nil, fmt.Errorf("%w: unknown status %q", ErrMalformedPayload, string(event.Status))
	}

	event.CorrelationID = correlationID
	event.ReceivedAt = time.Now().UTC()

	if err := s.publisher.Publish(ctx, event.Reference, event); err != nil {
		return nil, fmt.Errorf("failed to publish settlement event for %s: %w", event.Reference, err)
	}

	s.logger.Info("Settlement event ingested",
		"provider", string(name),
		"reference", event.Reference,
		"status", string(event.Status),
		"correlation_id", correlationID,
	)
	return event, nil
}

// normalizeSandbox accepts the already-normalized event shape the sandbox posts
func normalizeSandbox(payload []byte) (*shared.SettlementEvent, error) {
	var event shared.SettlementEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrMalformedPayload, err.Error())
	}
	return &event, nil
}

// normalizeVaultpay maps VaultPay's event envelope onto the settlement event
func normalizeVaultpay(payload []byte) (*shared.SettlementEvent, error) {
	var hook vaultpayWebhook
	if err := json.Unmarshal(payload, &hook); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrMalformedPayload, err.Error())
	}

	var status shared.SettlementStatus
	switch hook.Event {
	case "transfer.successful", "transfer.completed":
		status = shared.SettlementStatusSuccessful
	case "transfer.failed":
		status = shared.SettlementStatusFailed
	case "transfer.reversed":
		status = shared.SettlementStatusReversed
	default:
		return nil, fmt.Errorf("%w: unknown event %q", ErrMalformedPayload, hook.Event)
	}

	return &shared.SettlementEvent{
		Reference:       hook.Data.Reference,
		Status:          status,
		Amount:          hook.Data.Amount,
		Currency:        hook.Data.Currency,
		ProviderRef:     hook.Data.ID,
		GatewayResponse: hook.Data.Message,
	}, nil
}
