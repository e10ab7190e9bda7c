package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/finverse-ledger-engine/internal/config"
	"github.com/finverse-ledger-engine/internal/data/mongo"
	"github.com/finverse-ledger-engine/internal/data/postgres"
	"github.com/finverse-ledger-engine/internal/data/redis"
	"github.com/finverse-ledger-engine/internal/gateway"
	"github.com/finverse-ledger-engine/internal/gateway/service"
	"github.com/finverse-ledger-engine/internal/ledger"
	"github.com/finverse-ledger-engine/internal/logger"
	"github.com/finverse-ledger-engine/internal/notification"
	"github.com/finverse-ledger-engine/internal/platform/messaging/producers"
	"github.com/finverse-ledger-engine/internal/platform/persistence"
	"github.com/finverse-ledger-engine/internal/policyengine"
	"github.com/finverse-ledger-engine/internal/provider"
	"github.com/finverse-ledger-engine/internal/resolver"
	"github.com/finverse-ledger-engine/internal/transfer"
	"github.com/finverse-ledger-engine/internal/workflow"
)

func main() {
	// Create base context with cancellation
	appCtx, cancelAppCtx := context.WithCancel(context.Background())
	defer cancelAppCtx()

	// Initialize configuration
	cfg, err := config.LoadConfig("webhook_gateway")
	if err != nil {
		// logger is not initialized yet, so we use fmt
		fmt.Printf("Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	log := logger.NewLogger(cfg)

	// Initialize databases with app context
	postgresDB, err := persistence.NewPostgresDB(appCtx, log, &cfg.Postgres)
	if err != nil {
		log.Error("Failed to initialize PostgreSQL", "error", err)
		os.Exit(1)
	}

	mongoDB, err := persistence.NewMongoDB(appCtx, log, &cfg.MongoDB)
	if err != nil {
		log.Error("Failed to initialize MongoDB", "error", err)
		os.Exit(1)
	}

	redisDB, err := persistence.NewRedisDB(appCtx, log, &cfg.Redis)
	if err != nil {
		log.Error("Failed to initialize Redis", "error", err)
		os.Exit(1)
	}

	// Initialize Kafka producer (publishes normalized settlement events)
	settlementProducer, err := producers.NewSettlementEventProducer(appCtx, log, &cfg.Kafka)
	if err != nil {
		log.Error("Failed to initialize settlement event Kafka producer", "error", err)
		os.Exit(1)
	}

	// Initialize providers
	transferProvider, err := provider.NewTransferProvider(log, &cfg.Provider)
	if err != nil {
		log.Error("Failed to initialize transfer provider", "error", err)
		os.Exit(1)
	}
	verificationProvider, err := provider.NewBankVerificationProvider(log, &cfg.Provider)
	if err != nil {
		log.Error("Failed to initialize bank verification provider", "error", err)
		os.Exit(1)
	}

	// Initialize repositories
	walletRepo := postgres.NewWalletRepository(log, postgresDB)
	budgetRepo := postgres.NewBudgetRepository(log, postgresDB)
	entryRepo := postgres.NewEntryRepository(log, postgresDB)
	approvalRepo := postgres.NewApprovalRepository(log, postgresDB)
	policyRepo := postgres.NewPolicyRepository(log, postgresDB)
	counterpartyRepo := postgres.NewCounterpartyRepository(log, postgresDB)
	outboxRepo := postgres.NewOutboxRepository(log, postgresDB)
	statementRepo := mongo.NewStatementRepository(log, mongoDB.Database())

	// Initialize redis-backed guards and caches
	duplicateGuard := redis.NewDuplicateGuard(log, redisDB.Client(), cfg.Redis.DuplicateWindow)
	counterpartyCache := redis.NewCounterpartyCache(log, redisDB.Client(), cfg.Redis.CounterpartyTTL)

	// Initialize domain services
	notifier := notification.NewLogNotifier(log)
	ledgerService := ledger.NewService(log, postgresDB, walletRepo, budgetRepo, entryRepo, outboxRepo)
	workflowService := workflow.NewService(log, approvalRepo, ledgerService, notifier)
	resolverService := resolver.NewService(log, verificationProvider, counterpartyCache, counterpartyRepo)
	policyEngine := policyengine.NewEngine(log, policyRepo, entryRepo)
	transferService := transfer.NewService(log, duplicateGuard, policyEngine, workflowService, resolverService, ledgerService, transferProvider, cfg.Transfer.DefaultFee)

	// Deferred Transaction workflows resolve through the same transfer pipeline
	workflowService.BindTransferExecutor(transferService)

	// Initialize gateway services
	webhookService := service.NewWebhookService(settlementProducer, log)
	budgetService := service.NewBudgetService(budgetRepo, workflowService, ledgerService, log)

	// Initialize REST server
	server := gateway.NewServer(log, cfg, &gateway.Services{
		Webhook:      webhookService,
		Transfer:     transferService,
		Approval:     workflowService,
		Counterparty: resolverService,
		Budget:       budgetService,
		Statement:    statementRepo,
		Entries:      entryRepo,
	})
	log.Info("REST server initialized")

	// Create error channel for server errors
	errChan := make(chan error, 1)

	// Start server in goroutine
	go func() {
		log.Info("Starting HTTP server", "port", cfg.Server.Port)
		if err := server.Start(); err != nil {
			errChan <- fmt.Errorf("HTTP server error: %w", err)
		}
	}()

	// Set up signal handling
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	// Wait for a shutdown signal or error
	var serverErr error
	select {
	case <-quit:
		log.Info("Shutdown signal received")
	case err := <-errChan:
		log.Error("Server error occurred", "error", err)
		serverErr = err
	}

	// Cancel the application context
	cancelAppCtx()

	// Create a shutdown context with timeout
	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancelShutdown()

	// Graceful shutdown sequence
	log.Info("Starting graceful shutdown...")

	// Shutdown postgres connection pool
	postgresDB.Close()

	// Shutdown HTTP server
	if err = server.Stop(shutdownCtx); err != nil {
		log.Error("Error during server shutdown", "error", err)
	}

	if err = settlementProducer.Close(); err != nil {
		log.Error("Error closing Kafka producer", "error", err)
	}

	if err = redisDB.Close(); err != nil {
		log.Error("Error closing Redis connection", "error", err)
	}

	if err = mongoDB.Close(shutdownCtx); err != nil {
		log.Error("Error closing MongoDB connection", "error", err)
	}

	// Final status
	if serverErr != nil {
		log.Error("HTTP server shutdown with errors", "error", serverErr)
	}
	if err != nil {
		log.Error("Server shutdown completed with errors")
	} else {
		log.Info("Server shutdown completed successfully")
	}
}
