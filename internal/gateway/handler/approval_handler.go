package handler

import (
	"errors"
	"log/slog"
	"time"

	"github.com/finverse-ledger-engine/internal/domain/approval"
	"github.com/finverse-ledger-engine/internal/gateway/middleware"
	"github.com/finverse-ledger-engine/internal/gateway/service"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// ApprovalHandler handles HTTP requests for the approval workflow
type ApprovalHandler struct {
	approvalService service.ApprovalService
	logger          *slog.Logger
}

// NewApprovalHandler creates a new approval handler
func NewApprovalHandler(logger *slog.Logger, approvalService service.ApprovalService) *ApprovalHandler {
	return &ApprovalHandler{
		approvalService: approvalService,
		logger:          logger,
	}
}

// Review records a reviewer's decision. If the decision resolves the request,
// the deferred action runs before this returns.
func (h *ApprovalHandler) Review(c *gin.Context) {
	requestID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		RespondBadRequest(c, "Invalid approval request ID")
		return
	}

	var req ReviewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Error("Invalid request body", "error", err)
		RespondBadRequest(c, "Invalid request body: "+err.Error())
		return
	}

	reviewerID, err := uuid.Parse(req.ReviewerID)
	if err != nil {
		RespondBadRequest(c, "Invalid reviewer ID")
		return
	}

	decision := approval.ReviewStatus(req.Decision)

	outcome, err := h.approvalService.Review(c.Request.Context(), requestID, reviewerID, decision, req.Reason, middleware.GetCorrelationID(c))
	if err != nil {
		switch {
		case errors.Is(err, approval.ErrRequestNotFound{}):
			RespondNotFound(c, "Approval request not found")
		case errors.Is(err, approval.ErrNotReviewer):
			RespondForbidden(c, "You are not a reviewer on this request")
		case errors.Is(err, approval.ErrAlreadyResolved):
			RespondConflict(c, "Approval request already resolved")
		case errors.Is(err, approval.ErrAlreadyReviewed):
			RespondConflict(c, "You already submitted a decision")
		case errors.Is(err, approval.ErrInvalidDecision):
			RespondBadRequest(c, "Decision must be APPROVED or DECLINED")
		default:
			h.logger.Error("Failed to review approval request", "request_id", requestID.String(), "error", err)
			RespondInternalError(c)
		}
		return
	}

	resp := WorkflowOutcomeResponse{Executed: outcome.Executed}
	if outcome.Entry != nil {
		resp.ResourceID = outcome.Entry.ID.String()
	}
	if outcome.RequestID != nil {
		resp.ApprovalRequestID = outcome.RequestID.String()
	}
	RespondOK(c, resp)
}

// ListPending returns the organization's unresolved approval requests
func (h *ApprovalHandler) ListPending(c *gin.Context) {
	organizationID, err := uuid.Parse(c.Query("organization_id"))
	if err != nil {
		RespondBadRequest(c, "Invalid organization ID")
		return
	}

	var pagination PaginationParams
	if err := c.ShouldBindQuery(&pagination); err != nil {
		RespondBadRequest(c, "Invalid pagination parameters: "+err.Error())
		return
	}

	offset := (pagination.Page - 1) * pagination.PerPage
	requests, err := h.approvalService.ListPending(c.Request.Context(), organizationID, pagination.PerPage, offset)
	if err != nil {
		h.logger.Error("Failed to list pending approval requests", "organization_id", organizationID.String(), "error", err)
		RespondInternalError(c)
		return
	}

	responses := make([]ApprovalRequestResponse, 0, len(requests))
	for _, r := range requests {
		responses = append(responses, mapApprovalRequestToResponse(r))
	}
	RespondOK(c, responses)
}

// mapApprovalRequestToResponse converts an approval request to its API representation
func mapApprovalRequestToResponse(r *approval.Request) ApprovalRequestResponse {
	reviews := make([]ReviewEntryResponse, 0, len(r.Reviews))
	for _, review := range r.Reviews {
		reviews = append(reviews, ReviewEntryResponse{
			UserID: review.UserID.String(),
			Status: string(review.Status),
			Reason: review.Reason,
		})
	}

	resp := ApprovalRequestResponse{
		ID:           r.ID.String(),
		WorkflowType: string(r.WorkflowType),
		RequesterID:  r.RequesterID.String(),
		ApprovalType: string(r.ApprovalType),
		Status:       string(r.Status),
		Reviews:      reviews,
		CreatedAt:    r.CreatedAt.Format(time.RFC3339),
	}
	if r.ResolvedAt != nil {
		resp.ResolvedAt = r.ResolvedAt.Format(time.RFC3339)
	}
	return resp
}
