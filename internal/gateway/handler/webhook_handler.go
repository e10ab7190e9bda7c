package handler

import (
	"errors"
	"io"
	"log/slog"

	"github.com/finverse-ledger-engine/internal/gateway/middleware"
	"github.com/finverse-ledger-engine/internal/gateway/service"
	"github.com/gin-gonic/gin"
)

// WebhookHandler receives provider settlement webhooks
type WebhookHandler struct {
	webhookService service.WebhookService
	logger         *slog.Logger
}

// NewWebhookHandler creates a new webhook handler
func NewWebhookHandler(logger *slog.Logger, webhookService service.WebhookService) *WebhookHandler {
	return &WebhookHandler{
		webhookService: webhookService,
		logger:         logger,
	}
}

// Receive ingests a provider webhook. A 200 tells the provider to stop
// retrying; anything transient returns 5xx so the provider redelivers.
func (h *WebhookHandler) Receive(c *gin.Context) {
	providerName := c.Param("provider")

	payload, err := io.ReadAll(c.Request.Body)
	if err != nil {
		h.logger.Error("Failed to read webhook body", "provider", providerName, "error", err)
		RespondBadRequest(c, "Unreadable request body")
		return
	}

	event, err := h.webhookService.IngestSettlementEvent(c.Request.Context(), providerName, payload, middleware.GetCorrelationID(c))
	if err != nil {
		switch {
		case errors.Is(err, service.ErrUnknownProvider):
			RespondNotFound(c, "Unknown provider")
		case errors.Is(err, service.ErrMalformedPayload):
			h.logger.Error("Malformed webhook payload", "provider", providerName, "error", err)
			RespondBadRequest(c, "Malformed webhook payload")
		default:
			h.logger.Error("Failed to ingest webhook", "provider", providerName, "error", err)
			RespondInternalError(c)
		}
		return
	}

	RespondOK(c, gin.H{
		"reference": event.Reference,
		"status":    "accepted",
	})
}
