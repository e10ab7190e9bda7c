package handler

import (
	"log/slog"
	"time"

	"github.com/finverse-ledger-engine/internal/domain/statement"
	"github.com/finverse-ledger-engine/internal/gateway/service"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// StatementHandler serves the statement read model
type StatementHandler struct {
	statementService service.StatementService
	logger           *slog.Logger
}

// NewStatementHandler creates a new statement handler
func NewStatementHandler(logger *slog.Logger, statementService service.StatementService) *StatementHandler {
	return &StatementHandler{
		statementService: statementService,
		logger:           logger,
	}
}

// GetByWalletID retrieves a wallet's paginated statement, newest first
func (h *StatementHandler) GetByWalletID(c *gin.Context) {
	walletID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		RespondBadRequest(c, "Invalid wallet ID")
		return
	}

	var query StatementQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		RespondBadRequest(c, "Invalid pagination parameters: "+err.Error())
		return
	}

	offset := (query.Page - 1) * query.PerPage
	lines, err := h.statementService.ListByWallet(c.Request.Context(), walletID, query.PerPage, offset)
	if err != nil {
		h.logger.Error("Failed to list statement lines", "wallet_id", walletID.String(), "error", err)
		RespondInternalError(c)
		return
	}

	total, err := h.statementService.CountByWallet(c.Request.Context(), walletID)
	if err != nil {
		h.logger.Error("Failed to count statement lines", "wallet_id", walletID.String(), "error", err)
		RespondInternalError(c)
		return
	}

	responses := make([]StatementLineResponse, 0, len(lines))
	for _, line := range lines {
		responses = append(responses, mapStatementLineToResponse(line))
	}
	RespondWithPaginatedData(c, 200, responses, query.Page, query.PerPage, int(total))
}

// mapStatementLineToResponse converts a statement line to its API representation
func mapStatementLineToResponse(line *statement.Line) StatementLineResponse {
	return StatementLineResponse{
		EntryID:       line.EntryID.String(),
		Type:          line.Type,
		Status:        line.Status,
		Scope:         line.Scope,
		Amount:        line.Amount,
		Fee:           line.Fee,
		Currency:      line.Currency,
		BalanceBefore: line.BalanceBefore,
		BalanceAfter:  line.BalanceAfter,
		Reference:     line.Reference,
		Counterparty:  line.Counterparty,
		Narration:     line.Narration,
		CreatedAt:     line.CreatedAt.Format(time.RFC3339),
	}
}
