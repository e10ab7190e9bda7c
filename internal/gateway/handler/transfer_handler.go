package handler

import (
	"errors"
	"log/slog"
	"time"

	"github.com/finverse-ledger-engine/internal/data/redis"
	"github.com/finverse-ledger-engine/internal/domain/entry"
	"github.com/finverse-ledger-engine/internal/domain/wallet"
	"github.com/finverse-ledger-engine/internal/gateway/middleware"
	"github.com/finverse-ledger-engine/internal/gateway/service"
	"github.com/finverse-ledger-engine/internal/policyengine"
	"github.com/finverse-ledger-engine/internal/provider"
	"github.com/finverse-ledger-engine/internal/transfer"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// TransferHandler handles HTTP requests for outbound transfers
type TransferHandler struct {
	transferService service.TransferService
	entries         entry.Repository
	logger          *slog.Logger
}

// NewTransferHandler creates a new transfer handler
func NewTransferHandler(logger *slog.Logger, transferService service.TransferService, entries entry.Repository) *TransferHandler {
	return &TransferHandler{
		transferService: transferService,
		entries:         entries,
		logger:          logger,
	}
}

// Create initiates an outbound transfer. The response is either the executed
// entry, a pending-approval handle, or a business-rule rejection.
func (h *TransferHandler) Create(c *gin.Context) {
	var req InitiateTransferRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Error("Invalid request body", "error", err)
		RespondBadRequest(c, "Invalid request body: "+err.Error())
		return
	}

	organizationID, err := uuid.Parse(req.OrganizationID)
	if err != nil {
		RespondBadRequest(c, "Invalid organization ID")
		return
	}
	walletID, err := uuid.Parse(req.WalletID)
	if err != nil {
		RespondBadRequest(c, "Invalid wallet ID")
		return
	}
	userID, err := uuid.Parse(req.UserID)
	if err != nil {
		RespondBadRequest(c, "Invalid user ID")
		return
	}

	var budgetID *uuid.UUID
	if req.BudgetID != "" {
		id, err := uuid.Parse(req.BudgetID)
		if err != nil {
			RespondBadRequest(c, "Invalid budget ID")
			return
		}
		budgetID = &id
	}
	var departmentID *uuid.UUID
	if req.DepartmentID != "" {
		id, err := uuid.Parse(req.DepartmentID)
		if err != nil {
			RespondBadRequest(c, "Invalid department ID")
			return
		}
		departmentID = &id
	}

	if req.Reference == "" {
		req.Reference = "tr_" + uuid.New().String()
	}

	result, err := h.transferService.Transfer(c.Request.Context(), &transfer.Request{
		OrganizationID: organizationID,
		WalletID:       walletID,
		BudgetID:       budgetID,
		DepartmentID:   departmentID,
		UserID:         userID,
		IsOwner:        req.IsOwner,
		Amount:         req.Amount,
		Currency:       req.Currency,
		AccountNumber:  req.AccountNumber,
		BankCode:       req.BankCode,
		Narration:      req.Narration,
		Reference:      req.Reference,
		InvoiceID:      req.InvoiceID,
		CorrelationID:  middleware.GetCorrelationID(c),
	})
	if err != nil {
		h.respondTransferError(c, err)
		return
	}

	if result.ApprovalRequestID != nil {
		RespondAccepted(c, TransferResponse{
			ApprovalRequestID: result.ApprovalRequestID.String(),
			Status:            "PENDING_APPROVAL",
		})
		return
	}

	RespondCreated(c, TransferResponse{
		Entry:  mapEntryToResponse(result.Entry),
		Status: string(result.Entry.Status),
	})
}

// GetByReference retrieves a transfer's entry by its reference
func (h *TransferHandler) GetByReference(c *gin.Context) {
	reference := c.Param("reference")
	if reference == "" {
		RespondBadRequest(c, "Missing transfer reference")
		return
	}

	e, err := h.entries.GetByReference(c.Request.Context(), reference)
	if err != nil {
		if errors.Is(err, entry.ErrEntryNotFound{}) {
			RespondNotFound(c, "Transfer not found")
			return
		}
		h.logger.Error("Failed to get transfer by reference", "reference", reference, "error", err)
		RespondInternalError(c)
		return
	}

	RespondOK(c, mapEntryToResponse(e))
}

// respondTransferError maps pipeline failures onto HTTP statuses
func (h *TransferHandler) respondTransferError(c *gin.Context, err error) {
	var violation *policyengine.Violation
	switch {
	case errors.Is(err, redis.ErrDuplicateAttempt):
		RespondConflict(c, "An identical transfer was submitted moments ago")
	case errors.As(err, &violation):
		RespondUnprocessable(c, "POLICY_VIOLATION", violation.Reason)
	case errors.Is(err, wallet.ErrInsufficientFunds):
		RespondUnprocessable(c, "INSUFFICIENT_FUNDS", "Insufficient funds for transfer")
	case errors.Is(err, provider.ErrInvalidAccount):
		RespondUnprocessable(c, "INVALID_ACCOUNT", "The destination account could not be resolved")
	case errors.Is(err, provider.ErrProviderUnavailable):
		RespondWithError(c, 502, "PROVIDER_UNAVAILABLE", "The transfer provider is unavailable, try again later")
	case errors.Is(err, transfer.ErrTransferDeclined):
		RespondUnprocessable(c, "TRANSFER_DECLINED", err.Error())
	case errors.Is(err, entry.ErrDuplicateReference{}):
		RespondConflict(c, "A transfer with this reference already exists")
	default:
		h.logger.Error("Failed to initiate transfer", "error", err)
		RespondInternalError(c)
	}
}

// mapEntryToResponse converts a wallet entry to its API representation
func mapEntryToResponse(e *entry.WalletEntry) *EntryResponse {
	resp := &EntryResponse{
		ID:            e.ID.String(),
		WalletID:      e.WalletID.String(),
		UserID:        e.UserID.String(),
		Type:          string(e.Type),
		Status:        string(e.Status),
		Scope:         string(e.Scope),
		Amount:        e.Amount,
		Fee:           e.Fee,
		Currency:      e.Currency,
		BalanceBefore: e.BalanceBefore,
		BalanceAfter:  e.BalanceAfter,
		Reference:     e.Reference,
		ProviderRef:   e.ProviderRef,
		Reversed:      e.Reversed,
		FailureReason: e.FailureReason,
		CreatedAt:     e.CreatedAt.Format(time.RFC3339),
	}
	if e.BudgetID != nil {
		resp.BudgetID = e.BudgetID.String()
	}
	if e.SettledAt != nil {
		resp.SettledAt = e.SettledAt.Format(time.RFC3339)
	}
	return resp
}
