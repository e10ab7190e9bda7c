package handler

import (
	"errors"
	"log/slog"

	"github.com/finverse-ledger-engine/internal/domain/counterparty"
	"github.com/finverse-ledger-engine/internal/gateway/service"
	"github.com/finverse-ledger-engine/internal/provider"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// CounterpartyHandler handles HTTP requests for account resolution and the
// saved recipient list
type CounterpartyHandler struct {
	counterpartyService service.CounterpartyService
	logger              *slog.Logger
}

// NewCounterpartyHandler creates a new counterparty handler
func NewCounterpartyHandler(logger *slog.Logger, counterpartyService service.CounterpartyService) *CounterpartyHandler {
	return &CounterpartyHandler{
		counterpartyService: counterpartyService,
		logger:              logger,
	}
}

// Resolve looks up the account name behind an account number and bank code
func (h *CounterpartyHandler) Resolve(c *gin.Context) {
	var query ResolveAccountQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		RespondBadRequest(c, "Invalid query parameters: "+err.Error())
		return
	}

	organizationID, err := uuid.Parse(query.OrganizationID)
	if err != nil {
		RespondBadRequest(c, "Invalid organization ID")
		return
	}

	cp, err := h.counterpartyService.Resolve(c.Request.Context(), organizationID, query.AccountNumber, query.BankCode)
	if err != nil {
		h.respondResolveError(c, err)
		return
	}

	RespondOK(c, mapCounterpartyToResponse(cp))
}

// SaveRecipient resolves an account and pins it to the recipient list
func (h *CounterpartyHandler) SaveRecipient(c *gin.Context) {
	var req SaveRecipientRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondBadRequest(c, "Invalid request body: "+err.Error())
		return
	}

	organizationID, err := uuid.Parse(req.OrganizationID)
	if err != nil {
		RespondBadRequest(c, "Invalid organization ID")
		return
	}

	cp, err := h.counterpartyService.SaveRecipient(c.Request.Context(), organizationID, req.AccountNumber, req.BankCode)
	if err != nil {
		h.respondResolveError(c, err)
		return
	}

	RespondCreated(c, mapCounterpartyToResponse(cp))
}

// RemoveRecipient unpins a counterparty from the recipient list
func (h *CounterpartyHandler) RemoveRecipient(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		RespondBadRequest(c, "Invalid recipient ID")
		return
	}

	if err := h.counterpartyService.RemoveRecipient(c.Request.Context(), id); err != nil {
		h.logger.Error("Failed to remove recipient", "id", id.String(), "error", err)
		RespondInternalError(c)
		return
	}
	RespondNoContent(c)
}

// ListRecipients returns the organization's saved recipients
func (h *CounterpartyHandler) ListRecipients(c *gin.Context) {
	organizationID, err := uuid.Parse(c.Query("organization_id"))
	if err != nil {
		RespondBadRequest(c, "Invalid organization ID")
		return
	}

	recipients, err := h.counterpartyService.ListRecipients(c.Request.Context(), organizationID)
	if err != nil {
		h.logger.Error("Failed to list recipients", "organization_id", organizationID.String(), "error", err)
		RespondInternalError(c)
		return
	}

	responses := make([]CounterpartyResponse, 0, len(recipients))
	for _, cp := range recipients {
		responses = append(responses, mapCounterpartyToResponse(cp))
	}
	RespondOK(c, responses)
}

func (h *CounterpartyHandler) respondResolveError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, provider.ErrInvalidAccount):
		RespondUnprocessable(c, "INVALID_ACCOUNT", "The account could not be resolved")
	case errors.Is(err, provider.ErrProviderUnavailable):
		RespondWithError(c, 502, "PROVIDER_UNAVAILABLE", "The verification provider is unavailable, try again later")
	default:
		h.logger.Error("Failed to resolve counterparty", "error", err)
		RespondInternalError(c)
	}
}

// mapCounterpartyToResponse converts a counterparty to its API representation
func mapCounterpartyToResponse(cp *counterparty.Counterparty) CounterpartyResponse {
	return CounterpartyResponse{
		ID:            cp.ID.String(),
		AccountNumber: cp.AccountNumber,
		AccountName:   cp.AccountName,
		BankCode:      cp.BankCode,
		BankName:      cp.BankName,
		IsRecipient:   cp.IsRecipient,
	}
}
