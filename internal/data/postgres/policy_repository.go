package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/finverse-ledger-engine/internal/domain/policy"
	"github.com/finverse-ledger-engine/internal/platform/persistence"
	"github.com/google/uuid"
)

// PolicyRepository implements the policy.Repository interface for PostgreSQL
type PolicyRepository struct {
	querier persistence.Querier
	logger  *slog.Logger
}

// NewPolicyRepository creates a new PostgreSQL transfer policy repository
func NewPolicyRepository(logger *slog.Logger, db *persistence.PostgresDB) policy.Repository {
	return &PolicyRepository{
		querier: db.Pool(),
		logger:  logger,
	}
}

// Create stores a new transfer policy
func (r *PolicyRepository) Create(ctx context.Context, p *policy.TransferPolicy) error {
	daysOfWeek, err := json.Marshal(p.DaysOfWeek)
	if err != nil {
		return fmt.Errorf("failed to marshal days of week: %w", err)
	}
	departments, err := json.Marshal(p.DepartmentIDs)
	if err != nil {
		return fmt.Errorf("failed to marshal department ids: %w", err)
	}
	budgets, err := json.Marshal(p.BudgetIDs)
	if err != nil {
		return fmt.Errorf("failed to marshal budget ids: %w", err)
	}
	recipients, err := json.Marshal(p.RecipientKeys)
	if err != nil {
		return fmt.Errorf("failed to marshal recipient keys: %w", err)
	}

	query := `
		INSERT INTO transfer_policies (id, organization_id, kind, days_of_week, time_window, amount, department_ids, budget_ids, recipient_keys, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`

	_, err = r.querier.Exec(ctx, query,
		p.ID, p.OrganizationID, p.Kind, daysOfWeek, p.Window, p.Amount, departments, budgets, recipients, p.CreatedAt, p.UpdatedAt,
	)
	if err != nil {
		r.logger.Error("Failed to create transfer policy", "error", err)
		return fmt.Errorf("failed to create transfer policy: %w", err)
	}

	return nil
}

// Delete removes a transfer policy
func (r *PolicyRepository) Delete(ctx context.Context, id uuid.UUID) error {
	_, err := r.querier.Exec(ctx, `DELETE FROM transfer_policies WHERE id = $1`, id)
	if err != nil {
		r.logger.Error("Failed to delete transfer policy", "id", id.String(), "error", err)
		return fmt.Errorf("failed to delete transfer policy: %w", err)
	}
	return nil
}

// ListByKind retrieves all policies of the given kind for an organization
func (r *PolicyRepository) ListByKind(ctx context.Context, organizationID uuid.UUID, kind policy.Kind) ([]*policy.TransferPolicy, error) {
	query := `
		SELECT id, organization_id, kind, days_of_week, time_window, amount, department_ids, budget_ids, recipient_keys, created_at, updated_at
		FROM transfer_policies
		WHERE organization_id = $1 AND kind = $2
	`

	rows, err := r.querier.Query(ctx, query, organizationID, kind)
	if err != nil {
		r.logger.Error("Failed to list transfer policies", "organization_id", organizationID.String(), "kind", kind, "error", err)
		return nil, fmt.Errorf("failed to list transfer policies: %w", err)
	}
	defer rows.Close()

	var policies []*policy.TransferPolicy
	for rows.Next() {
		var p policy.TransferPolicy
		var daysOfWeek, departments, budgets, recipients []byte
		err := rows.Scan(
			&p.ID, &p.OrganizationID, &p.Kind, &daysOfWeek, &p.Window, &p.Amount,
			&departments, &budgets, &recipients, &p.CreatedAt, &p.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan transfer policy: %w", err)
		}
		if err := unmarshalInto(daysOfWeek, &p.DaysOfWeek); err != nil {
			return nil, err
		}
		if err := unmarshalInto(departments, &p.DepartmentIDs); err != nil {
			return nil, err
		}
		if err := unmarshalInto(budgets, &p.BudgetIDs); err != nil {
			return nil, err
		}
		if err := unmarshalInto(recipients, &p.RecipientKeys); err != nil {
			return nil, err
		}
		policies = append(policies, &p)
	}

	return policies, rows.Err()
}

func unmarshalInto(data []byte, target any) error {
	if len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, target); err != nil {
		return fmt.Errorf("failed to unmarshal policy field: %w", err)
	}
	return nil
}
