package handler

import (
	"errors"
	"log/slog"
	"time"

	"github.com/finverse-ledger-engine/internal/domain/budget"
	"github.com/finverse-ledger-engine/internal/domain/wallet"
	"github.com/finverse-ledger-engine/internal/gateway/middleware"
	"github.com/finverse-ledger-engine/internal/gateway/service"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// BudgetHandler handles HTTP requests for the budget lifecycle
type BudgetHandler struct {
	budgetService service.BudgetService
	logger        *slog.Logger
}

// NewBudgetHandler creates a new budget handler
func NewBudgetHandler(logger *slog.Logger, budgetService service.BudgetService) *BudgetHandler {
	return &BudgetHandler{
		budgetService: budgetService,
		logger:        logger,
	}
}

// Create carves a new budget from a wallet. Funding goes through the approval
// workflow, so the budget may come back Pending behind an approval request.
func (h *BudgetHandler) Create(c *gin.Context) {
	var req CreateBudgetRequest
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
	requesterID, err := uuid.Parse(req.RequesterID)
	if err != nil {
		RespondBadRequest(c, "Invalid requester ID")
		return
	}

	beneficiaries := make([]budget.Beneficiary, 0, len(req.Beneficiaries))
	for _, b := range req.Beneficiaries {
		userID, err := uuid.Parse(b.UserID)
		if err != nil {
			RespondBadRequest(c, "Invalid beneficiary user ID")
			return
		}
		beneficiaries = append(beneficiaries, budget.Beneficiary{UserID: userID, Allocation: b.Allocation})
	}

	b, outcome, err := h.budgetService.Create(c.Request.Context(), &service.CreateBudgetCommand{
		OrganizationID: organizationID,
		WalletID:       walletID,
		RequesterID:    requesterID,
		IsOwner:        req.IsOwner,
		Name:           req.Name,
		Amount:         req.Amount,
		Currency:       req.Currency,
		Beneficiaries:  beneficiaries,
		CorrelationID:  middleware.GetCorrelationID(c),
	})
	if err != nil {
		h.respondBudgetError(c, err)
		return
	}

	resp := gin.H{"budget": mapBudgetToResponse(b)}
	if outcome.RequestID != nil {
		resp["approval_request_id"] = outcome.RequestID.String()
		RespondAccepted(c, resp)
		return
	}
	RespondCreated(c, resp)
}

// GetByID retrieves budget details
func (h *BudgetHandler) GetByID(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		RespondBadRequest(c, "Invalid budget ID")
		return
	}

	b, err := h.budgetService.Get(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, budget.ErrBudgetNotFound{}) {
			RespondNotFound(c, "Budget not found")
			return
		}
		h.logger.Error("Failed to get budget", "id", id.String(), "error", err)
		RespondInternalError(c)
		return
	}

	RespondOK(c, mapBudgetToResponse(b))
}

// Extend raises a budget's ceiling, routed through the approval workflow
func (h *BudgetHandler) Extend(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		RespondBadRequest(c, "Invalid budget ID")
		return
	}

	var req ExtendBudgetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondBadRequest(c, "Invalid request body: "+err.Error())
		return
	}
	requesterID, err := uuid.Parse(req.RequesterID)
	if err != nil {
		RespondBadRequest(c, "Invalid requester ID")
		return
	}

	outcome, err := h.budgetService.Extend(c.Request.Context(), id, requesterID, req.IsOwner, req.Extra, middleware.GetCorrelationID(c))
	if err != nil {
		h.respondBudgetError(c, err)
		return
	}

	resp := WorkflowOutcomeResponse{Executed: outcome.Executed, ResourceID: id.String()}
	if outcome.RequestID != nil {
		resp.ApprovalRequestID = outcome.RequestID.String()
		RespondAccepted(c, resp)
		return
	}
	RespondOK(c, resp)
}

// Close retires a budget and returns the unspent remainder to the wallet
func (h *BudgetHandler) Close(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		RespondBadRequest(c, "Invalid budget ID")
		return
	}

	var req BudgetActionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondBadRequest(c, "Invalid request body: "+err.Error())
		return
	}
	requesterID, err := uuid.Parse(req.RequesterID)
	if err != nil {
		RespondBadRequest(c, "Invalid requester ID")
		return
	}

	if err := h.budgetService.Close(c.Request.Context(), id, requesterID, middleware.GetCorrelationID(c)); err != nil {
		h.respondBudgetError(c, err)
		return
	}
	RespondNoContent(c)
}

// Pause suspends spending from an active budget
func (h *BudgetHandler) Pause(c *gin.Context) {
	h.setPaused(c, true)
}

// Unpause resumes spending from a paused budget
func (h *BudgetHandler) Unpause(c *gin.Context) {
	h.setPaused(c, false)
}

func (h *BudgetHandler) setPaused(c *gin.Context, paused bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		RespondBadRequest(c, "Invalid budget ID")
		return
	}

	if paused {
		err = h.budgetService.Pause(c.Request.Context(), id)
	} else {
		err = h.budgetService.Unpause(c.Request.Context(), id)
	}
	if err != nil {
		h.respondBudgetError(c, err)
		return
	}
	RespondNoContent(c)
}

func (h *BudgetHandler) respondBudgetError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, budget.ErrBudgetNotFound{}):
		RespondNotFound(c, "Budget not found")
	case errors.Is(err, budget.ErrInvalidAmount):
		RespondBadRequest(c, "Amount must be positive")
	case errors.Is(err, budget.ErrBudgetNotActive):
		RespondConflict(c, "Budget is not active")
	case errors.Is(err, budget.ErrInvalidStatusChange):
		RespondConflict(c, "Budget cannot make that transition")
	case errors.Is(err, wallet.ErrInsufficientFunds):
		RespondUnprocessable(c, "INSUFFICIENT_FUNDS", "The wallet cannot cover this budget")
	default:
		h.logger.Error("Budget operation failed", "error", err)
		RespondInternalError(c)
	}
}

// mapBudgetToResponse converts a budget to its API representation
func mapBudgetToResponse(b *budget.Budget) BudgetResponse {
	return BudgetResponse{
		ID:         b.ID.String(),
		WalletID:   b.WalletID.String(),
		Name:       b.Name,
		Amount:     b.Amount,
		Balance:    b.Balance,
		AmountUsed: b.AmountUsed,
		Status:     string(b.Status),
		Currency:   b.Currency,
		CreatedAt:  b.CreatedAt.Format(time.RFC3339),
	}
}
