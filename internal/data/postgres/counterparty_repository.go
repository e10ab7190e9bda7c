package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/finverse-ledger-engine/internal/domain/counterparty"
	"github.com/finverse-ledger-engine/internal/platform/persistence"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// CounterpartyRepository implements the counterparty.Repository interface for PostgreSQL
type CounterpartyRepository struct {
	querier persistence.Querier
	logger  *slog.Logger
}

// NewCounterpartyRepository creates a new PostgreSQL counterparty repository
func NewCounterpartyRepository(logger *slog.Logger, db *persistence.PostgresDB) counterparty.Repository {
	return &CounterpartyRepository{
		querier: db.Pool(),
		logger:  logger,
	}
}

// Upsert stores or refreshes a resolved counterparty, keyed by
// (organization, account number, bank code)
func (r *CounterpartyRepository) Upsert(ctx context.Context, c *counterparty.Counterparty) error {
	query := `
		INSERT INTO counterparties (id, organization_id, account_number, bank_code, account_name, bank_name, bank_id, is_recipient, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (organization_id, account_number, bank_code)
		DO UPDATE SET account_name = EXCLUDED.account_name, bank_name = EXCLUDED.bank_name, bank_id = EXCLUDED.bank_id, updated_at = NOW()
	`

	_, err := r.querier.Exec(ctx, query,
		c.ID, c.OrganizationID, c.AccountNumber, c.BankCode, c.AccountName, c.BankName, c.BankID, c.IsRecipient, c.CreatedAt, c.UpdatedAt,
	)
	if err != nil {
		r.logger.Error("Failed to upsert counterparty", "account_number", c.AccountNumber, "error", err)
		return fmt.Errorf("failed to upsert counterparty: %w", err)
	}

	return nil
}

// GetByAccount retrieves a cached counterparty. Returns nil when not cached.
func (r *CounterpartyRepository) GetByAccount(ctx context.Context, organizationID uuid.UUID, accountNumber, bankCode string) (*counterparty.Counterparty, error) {
	query := `
		SELECT id, organization_id, account_number, bank_code, account_name, bank_name, bank_id, is_recipient, created_at, updated_at
		FROM counterparties
		WHERE organization_id = $1 AND account_number = $2 AND bank_code = $3
	`

	var c counterparty.Counterparty
	err := r.querier.QueryRow(ctx, query, organizationID, accountNumber, bankCode).Scan(
		&c.ID, &c.OrganizationID, &c.AccountNumber, &c.BankCode, &c.AccountName, &c.BankName, &c.BankID, &c.IsRecipient, &c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		r.logger.Error("Failed to get counterparty", "account_number", accountNumber, "error", err)
		return nil, fmt.Errorf("failed to get counterparty: %w", err)
	}

	return &c, nil
}

// ListRecipients retrieves counterparties saved to the recipient list
func (r *CounterpartyRepository) ListRecipients(ctx context.Context, organizationID uuid.UUID) ([]*counterparty.Counterparty, error) {
	query := `
		SELECT id, organization_id, account_number, bank_code, account_name, bank_name, bank_id, is_recipient, created_at, updated_at
		FROM counterparties
		WHERE organization_id = $1 AND is_recipient = TRUE
		ORDER BY account_name
	`

	rows, err := r.querier.Query(ctx, query, organizationID)
	if err != nil {
		r.logger.Error("Failed to list recipients", "organization_id", organizationID.String(), "error", err)
		return nil, fmt.Errorf("failed to list recipients: %w", err)
	}
	defer rows.Close()

	var counterparties []*counterparty.Counterparty
	for rows.Next() {
		var c counterparty.Counterparty
		err := rows.Scan(
			&c.ID, &c.OrganizationID, &c.AccountNumber, &c.BankCode, &c.AccountName, &c.BankName, &c.BankID, &c.IsRecipient, &c.CreatedAt, &c.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan counterparty: %w", err)
		}
		counterparties = append(counterparties, &c)
	}

	return counterparties, rows.Err()
}

// SetRecipient flags or unflags a counterparty as a saved recipient
func (r *CounterpartyRepository) SetRecipient(ctx context.Context, id uuid.UUID, isRecipient bool) error {
	result, err := r.querier.Exec(ctx, `UPDATE counterparties SET is_recipient = $1, updated_at = NOW() WHERE id = $2`, isRecipient, id)
	if err != nil {
		r.logger.Error("Failed to set recipient flag", "id", id.String(), "error", err)
		return fmt.Errorf("failed to set recipient flag: %w", err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("counterparty not found: %s", id.String())
	}
	return nil
}
