package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/finverse-ledger-engine/internal/domain/budget"
	"github.com/finverse-ledger-engine/internal/platform/persistence"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// BudgetRepository implements the budget.Repository interface for PostgreSQL.
// Beneficiaries are stored as a JSONB column; they are read together with the
// budget and never lazily populated.
type BudgetRepository struct {
	querier persistence.Querier
	logger  *slog.Logger
}

// NewBudgetRepository creates a new PostgreSQL budget repository
func NewBudgetRepository(logger *slog.Logger, db *persistence.PostgresDB) budget.Repository {
	return &BudgetRepository{
		querier: db.Pool(),
		logger:  logger,
	}
}

// WithTx wraps the repository with a transaction
func (r *BudgetRepository) WithTx(tx pgx.Tx) budget.Repository {
	return &BudgetRepository{
		querier: tx,
		logger:  r.logger,
	}
}

const budgetColumns = `id, organization_id, wallet_id, project_id, name, amount, balance, amount_used, status, threshold, currency, beneficiaries, requester_id, created_at, updated_at`

// Create stores a new budget in the database
func (r *BudgetRepository) Create(ctx context.Context, b *budget.Budget) error {
	beneficiaries, err := json.Marshal(b.Beneficiaries)
	if err != nil {
		return fmt.Errorf("failed to marshal beneficiaries: %w", err)
	}

	query := `
		INSERT INTO budgets (` + budgetColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
	`

	_, err = r.querier.Exec(ctx, query,
		b.ID,
		b.OrganizationID,
		b.WalletID,
		b.ProjectID,
		b.Name,
		b.Amount,
		b.Balance,
		b.AmountUsed,
		b.Status,
		b.Threshold,
		b.Currency,
		beneficiaries,
		b.RequesterID,
		b.CreatedAt,
		b.UpdatedAt,
	)
	if err != nil {
		r.logger.Error("Failed to create budget", "error", err)
		return fmt.Errorf("failed to create budget: %w", err)
	}

	return nil
}

func (r *BudgetRepository) scanBudget(row pgx.Row) (*budget.Budget, error) {
	var b budget.Budget
	var beneficiaries []byte
	err := row.Scan(
		&b.ID,
		&b.OrganizationID,
		&b.WalletID,
		&b.ProjectID,
		&b.Name,
		&b.Amount,
		&b.Balance,
		&b.AmountUsed,
		&b.Status,
		&b.Threshold,
		&b.Currency,
		&beneficiaries,
		&b.RequesterID,
		&b.CreatedAt,
		&b.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if len(beneficiaries) > 0 {
		if err := json.Unmarshal(beneficiaries, &b.Beneficiaries); err != nil {
			return nil, fmt.Errorf("failed to unmarshal beneficiaries: %w", err)
		}
	}
	return &b, nil
}

// GetByID retrieves a budget by its ID
func (r *BudgetRepository) GetByID(ctx context.Context, id uuid.UUID) (*budget.Budget, error) {
	query := `SELECT ` + budgetColumns + ` FROM budgets WHERE id = $1`

	b, err := r.scanBudget(r.querier.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, budget.ErrBudgetNotFound{BudgetID: id}
		}
		r.logger.Error("Failed to get budget", "id", id.String(), "error", err)
		return nil, fmt.Errorf("failed to get budget: %w", err)
	}

	return b, nil
}

// ListByWallet retrieves all budgets carved from the given wallet
func (r *BudgetRepository) ListByWallet(ctx context.Context, walletID uuid.UUID) ([]*budget.Budget, error) {
	query := `SELECT ` + budgetColumns + ` FROM budgets WHERE wallet_id = $1 ORDER BY created_at DESC`

	rows, err := r.querier.Query(ctx, query, walletID)
	if err != nil {
		r.logger.Error("Failed to list budgets", "wallet_id", walletID.String(), "error", err)
		return nil, fmt.Errorf("failed to list budgets: %w", err)
	}
	defer rows.Close()

	var budgets []*budget.Budget
	for rows.Next() {
		b, err := r.scanBudget(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan budget: %w", err)
		}
		budgets = append(budgets, b)
	}

	return budgets, rows.Err()
}

// Debit decrements the budget balance and increments amount used, only if the
// budget is Active and its balance is sufficient
func (r *BudgetRepository) Debit(ctx context.Context, id uuid.UUID, amount int64) (int64, error) {
	query := `
		UPDATE budgets
		SET balance = balance - $1, amount_used = amount_used + $1, updated_at = NOW()
		WHERE id = $2 AND status = 'ACTIVE' AND balance >= $1
		RETURNING balance
	`

	var balance int64
	err := r.querier.QueryRow(ctx, query, amount, id).Scan(&balance)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			if _, getErr := r.GetByID(ctx, id); getErr != nil {
				return 0, getErr
			}
			return 0, budget.ErrInsufficientBudget{BudgetID: id}
		}
		r.logger.Error("Failed to debit budget", "id", id.String(), "amount", amount, "error", err)
		return 0, fmt.Errorf("failed to debit budget: %w", err)
	}

	return balance, nil
}

// Credit increments the budget balance, never beyond the approved amount
func (r *BudgetRepository) Credit(ctx context.Context, id uuid.UUID, amount int64) (int64, error) {
	query := `
		UPDATE budgets
		SET balance = LEAST(balance + $1, amount), amount_used = GREATEST(amount_used - $1, 0), updated_at = NOW()
		WHERE id = $2
		RETURNING balance
	`

	var balance int64
	err := r.querier.QueryRow(ctx, query, amount, id).Scan(&balance)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, budget.ErrBudgetNotFound{BudgetID: id}
		}
		r.logger.Error("Failed to credit budget", "id", id.String(), "amount", amount, "error", err)
		return 0, fmt.Errorf("failed to credit budget: %w", err)
	}

	return balance, nil
}

// Activate funds the budget: balance becomes the approved amount, status Active.
// Guarded by status = PENDING so funding applies exactly once.
func (r *BudgetRepository) Activate(ctx context.Context, id uuid.UUID) error {
	query := `
		UPDATE budgets
		SET balance = amount, status = 'ACTIVE', updated_at = NOW()
		WHERE id = $1 AND status = 'PENDING'
	`

	result, err := r.querier.Exec(ctx, query, id)
	if err != nil {
		r.logger.Error("Failed to activate budget", "id", id.String(), "error", err)
		return fmt.Errorf("failed to activate budget: %w", err)
	}

	if result.RowsAffected() == 0 {
		if _, getErr := r.GetByID(ctx, id); getErr != nil {
			return getErr
		}
		return budget.ErrInvalidStatusChange
	}

	return nil
}

// Extend raises the approved ceiling and the balance by extra
func (r *BudgetRepository) Extend(ctx context.Context, id uuid.UUID, extra int64) error {
	query := `
		UPDATE budgets
		SET amount = amount + $1, balance = balance + $1, updated_at = NOW()
		WHERE id = $2 AND status IN ('ACTIVE', 'PAUSED')
	`

	result, err := r.querier.Exec(ctx, query, extra, id)
	if err != nil {
		r.logger.Error("Failed to extend budget", "id", id.String(), "extra", extra, "error", err)
		return fmt.Errorf("failed to extend budget: %w", err)
	}

	if result.RowsAffected() == 0 {
		if _, getErr := r.GetByID(ctx, id); getErr != nil {
			return getErr
		}
		return budget.ErrInvalidStatusChange
	}

	return nil
}

// Close forces balance to zero and status to Closed, returning the remainder
func (r *BudgetRepository) Close(ctx context.Context, id uuid.UUID) (int64, error) {
	// Self-join against the pre-update row to return the balance being zeroed
	query := `
		UPDATE budgets b
		SET balance = 0, status = 'CLOSED', updated_at = NOW()
		FROM (SELECT id, balance FROM budgets WHERE id = $1 FOR UPDATE) old
		WHERE b.id = old.id AND b.status != 'CLOSED'
		RETURNING old.balance
	`

	var remainder int64
	err := r.querier.QueryRow(ctx, query, id).Scan(&remainder)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			if _, getErr := r.GetByID(ctx, id); getErr != nil {
				return 0, getErr
			}
			return 0, budget.ErrInvalidStatusChange
		}
		r.logger.Error("Failed to close budget", "id", id.String(), "error", err)
		return 0, fmt.Errorf("failed to close budget: %w", err)
	}

	return remainder, nil
}

// SetStatus performs a guarded status transition (Pause/Unpause)
func (r *BudgetRepository) SetStatus(ctx context.Context, id uuid.UUID, from, to budget.Status) error {
	query := `
		UPDATE budgets
		SET status = $1, updated_at = NOW()
		WHERE id = $2 AND status = $3
	`

	result, err := r.querier.Exec(ctx, query, to, id, from)
	if err != nil {
		r.logger.Error("Failed to set budget status", "id", id.String(), "from", from, "to", to, "error", err)
		return fmt.Errorf("failed to set budget status: %w", err)
	}

	if result.RowsAffected() == 0 {
		if _, getErr := r.GetByID(ctx, id); getErr != nil {
			return getErr
		}
		return budget.ErrInvalidStatusChange
	}

	return nil
}
