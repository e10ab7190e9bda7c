package gateway

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/finverse-ledger-engine/internal/gateway/handler"
	"github.com/finverse-ledger-engine/internal/gateway/middleware"
	"github.com/gin-gonic/gin"
)

// setupRouter configures API routes and middleware for the application
func setupRouter(
	logger *slog.Logger,
	r *gin.Engine,
	webhookHandler *handler.WebhookHandler,
	transferHandler *handler.TransferHandler,
	approvalHandler *handler.ApprovalHandler,
	counterpartyHandler *handler.CounterpartyHandler,
	budgetHandler *handler.BudgetHandler,
	statementHandler *handler.StatementHandler,
) {
	r.Use(middleware.Recovery(logger))
	r.Use(middleware.Logger(logger))
	r.Use(middleware.CorrelationID())

	// Provider webhooks
	r.POST("/webhooks/:provider", webhookHandler.Receive)

	// API v1 endpoints
	v1 := r.Group("/api/v1")
	{
		// Transfer operations
		transfers := v1.Group("/transfers")
		{
			transfers.POST("", transferHandler.Create)
			transfers.GET("/:reference", transferHandler.GetByReference)
		}

		// Approval workflow
		approvals := v1.Group("/approvals")
		{
			approvals.GET("", approvalHandler.ListPending)
			approvals.POST("/:id/review", approvalHandler.Review)
		}

		// Counterparty resolution and recipients
		v1.GET("/counterparties/resolve", counterpartyHandler.Resolve)
		recipients := v1.Group("/recipients")
		{
			recipients.GET("", counterpartyHandler.ListRecipients)
			recipients.POST("", counterpartyHandler.SaveRecipient)
			recipients.DELETE("/:id", counterpartyHandler.RemoveRecipient)
		}

		// Budget lifecycle
		budgets := v1.Group("/budgets")
		{
			budgets.POST("", budgetHandler.Create)
			budgets.GET("/:id", budgetHandler.GetByID)
			budgets.POST("/:id/extend", budgetHandler.Extend)
			budgets.POST("/:id/close", budgetHandler.Close)
			budgets.POST("/:id/pause", budgetHandler.Pause)
			budgets.POST("/:id/unpause", budgetHandler.Unpause)
		}

		// Statement read model
		v1.GET("/wallets/:id/statement", statementHandler.GetByWalletID)
	}

	// Health check endpoint for monitoring
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "timestamp": time.Now().UTC()})
	})
}
