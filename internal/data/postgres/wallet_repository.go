// Package postgres provides PostgreSQL implementations of the domain repositories.
// It handles all database operations while maintaining transaction safety and
// proper error handling for the ledger engine.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/finverse-ledger-engine/internal/domain/wallet"
	"github.com/finverse-ledger-engine/internal/platform/persistence"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// WalletRepository implements the wallet.Repository interface for PostgreSQL
type WalletRepository struct {
	querier persistence.Querier // Can be *pgxpool.Pool or pgx.Tx
	logger  *slog.Logger
}

// NewWalletRepository creates a new PostgreSQL wallet repository.
// It expects db.Pool() to satisfy persistence.Querier.
func NewWalletRepository(logger *slog.Logger, db *persistence.PostgresDB) wallet.Repository {
	return &WalletRepository{
		querier: db.Pool(),
		logger:  logger,
	}
}

// WithTx wraps the repository with a transaction, allowing for atomic operations
// across multiple repository calls. The returned repository will use the provided
// transaction for all database operations.
func (r *WalletRepository) WithTx(tx pgx.Tx) wallet.Repository {
	return &WalletRepository{
		querier: tx,
		logger:  r.logger,
	}
}

// Create stores a new wallet in the database
func (r *WalletRepository) Create(ctx context.Context, w *wallet.Wallet) error {
	query := `
		INSERT INTO wallets (id, organization_id, balance, ledger_balance, currency, is_primary, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`

	_, err := r.querier.Exec(ctx, query,
		w.ID,
		w.OrganizationID,
		w.Balance,
		w.LedgerBalance,
		w.Currency,
		w.Primary,
		w.CreatedAt,
		w.UpdatedAt,
	)
	if err != nil {
		r.logger.Error("Failed to create wallet", "error", err)
		return fmt.Errorf("failed to create wallet: %w", err)
	}

	return nil
}

// GetByID retrieves a wallet by its ID
func (r *WalletRepository) GetByID(ctx context.Context, id uuid.UUID) (*wallet.Wallet, error) {
	query := `
		SELECT id, organization_id, balance, ledger_balance, currency, is_primary, created_at, updated_at
		FROM wallets
		WHERE id = $1
	`

	var w wallet.Wallet
	err := r.querier.QueryRow(ctx, query, id).Scan(
		&w.ID,
		&w.OrganizationID,
		&w.Balance,
		&w.LedgerBalance,
		&w.Currency,
		&w.Primary,
		&w.CreatedAt,
		&w.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, wallet.ErrWalletNotFound{WalletID: id}
		}
		r.logger.Error("Failed to get wallet", "id", id.String(), "error", err)
		return nil, fmt.Errorf("failed to get wallet: %w", err)
	}

	return &w, nil
}

// GetPrimaryByOrganization retrieves the organization's primary wallet
func (r *WalletRepository) GetPrimaryByOrganization(ctx context.Context, organizationID uuid.UUID) (*wallet.Wallet, error) {
	query := `
		SELECT id, organization_id, balance, ledger_balance, currency, is_primary, created_at, updated_at
		FROM wallets
		WHERE organization_id = $1 AND is_primary = TRUE
	`

	var w wallet.Wallet
	err := r.querier.QueryRow(ctx, query, organizationID).Scan(
		&w.ID,
		&w.OrganizationID,
		&w.Balance,
		&w.LedgerBalance,
		&w.Currency,
		&w.Primary,
		&w.CreatedAt,
		&w.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, wallet.ErrWalletNotFound{}
		}
		r.logger.Error("Failed to get primary wallet", "organization_id", organizationID.String(), "error", err)
		return nil, fmt.Errorf("failed to get primary wallet: %w", err)
	}

	return &w, nil
}

// ReserveFunds atomically decrements balance and ledger balance by total, only
// if the current balance can cover it. The conditional WHERE clause is the sole
// concurrency-control mechanism: of two racing debits, at most one can win
// when the balance covers only one.
func (r *WalletRepository) ReserveFunds(ctx context.Context, id uuid.UUID, total int64) (*wallet.Balances, error) {
	query := `
		UPDATE wallets
		SET balance = balance - $1, ledger_balance = ledger_balance - $1, updated_at = NOW()
		WHERE id = $2 AND balance >= $1
		RETURNING balance, ledger_balance
	`

	var b wallet.Balances
	err := r.querier.QueryRow(ctx, query, total, id).Scan(&b.Balance, &b.LedgerBalance)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			// Distinguish a missing wallet from an insufficient balance
			if _, getErr := r.GetByID(ctx, id); getErr != nil {
				return nil, getErr
			}
			return nil, wallet.ErrInsufficientFunds
		}
		r.logger.Error("Failed to reserve funds", "id", id.String(), "total", total, "error", err)
		return nil, fmt.Errorf("failed to reserve funds: %w", err)
	}

	return &b, nil
}

// Credit increments balance and ledger balance by total
func (r *WalletRepository) Credit(ctx context.Context, id uuid.UUID, total int64) (*wallet.Balances, error) {
	query := `
		UPDATE wallets
		SET balance = balance + $1, ledger_balance = ledger_balance + $1, updated_at = NOW()
		WHERE id = $2
		RETURNING balance, ledger_balance
	`

	var b wallet.Balances
	err := r.querier.QueryRow(ctx, query, total, id).Scan(&b.Balance, &b.LedgerBalance)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, wallet.ErrWalletNotFound{WalletID: id}
		}
		r.logger.Error("Failed to credit wallet", "id", id.String(), "total", total, "error", err)
		return nil, fmt.Errorf("failed to credit wallet: %w", err)
	}

	return &b, nil
}
