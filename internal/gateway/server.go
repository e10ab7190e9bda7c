package gateway

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/finverse-ledger-engine/internal/config"
	"github.com/finverse-ledger-engine/internal/domain/entry"
	"github.com/finverse-ledger-engine/internal/gateway/handler"
	"github.com/finverse-ledger-engine/internal/gateway/service"
	"github.com/gin-gonic/gin"
)

// Server handles HTTP requests and manages the application's lifecycle
type Server struct {
	logger     *slog.Logger // For structured logging
	httpServer *http.Server // Underlying HTTP server
	httpRouter *gin.Engine  // Gin router instance
}

// Services bundles everything the gateway's handlers depend on
type Services struct {
	Webhook      service.WebhookService
	Transfer     service.TransferService
	Approval     service.ApprovalService
	Counterparty service.CounterpartyService
	Budget       service.BudgetService
	Statement    service.StatementService
	Entries      entry.Repository
}

// NewServer creates and configures a new HTTP server with the given services
func NewServer(log *slog.Logger, cfg *config.Config, services *Services) *Server {
	if cfg.Application.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	httpRouter := gin.New()

	webhookHandler := handler.NewWebhookHandler(log, services.Webhook)
	transferHandler := handler.NewTransferHandler(log, services.Transfer, services.Entries)
	approvalHandler := handler.NewApprovalHandler(log, services.Approval)
	counterpartyHandler := handler.NewCounterpartyHandler(log, services.Counterparty)
	budgetHandler := handler.NewBudgetHandler(log, services.Budget)
	statementHandler := handler.NewStatementHandler(log, services.Statement)

	setupRouter(log, httpRouter, webhookHandler, transferHandler, approvalHandler, counterpartyHandler, budgetHandler, statementHandler)

	httpServer := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      httpRouter,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	return &Server{
		logger:     log,
		httpServer: httpServer,
		httpRouter: httpRouter,
	}
}

// Start begins listening for HTTP requests
func (s *Server) Start() error {
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("failed to start HTTP server: %w", err)
	}
	return nil
}

// Stop gracefully shuts down the HTTP server with a timeout
func (s *Server) Stop(ctx context.Context) error {
	s.logger.Info("stopping HTTP server")

	shutdownCtx, cancel := context.WithTimeout(ctx, s.httpServer.WriteTimeout)
	defer cancel()

	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to stop HTTP server: %w", err)
	}

	return nil
}
