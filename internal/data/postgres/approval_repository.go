package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/finverse-ledger-engine/internal/domain/approval"
	"github.com/finverse-ledger-engine/internal/platform/persistence"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// ApprovalRepository implements the approval.Repository interface for PostgreSQL.
// Reviews and reviewers are stored as JSONB; the properties payload is
// persisted in its tagged-envelope form.
type ApprovalRepository struct {
	querier persistence.Querier
	logger  *slog.Logger
}

// NewApprovalRepository creates a new PostgreSQL approval repository
func NewApprovalRepository(logger *slog.Logger, db *persistence.PostgresDB) approval.Repository {
	return &ApprovalRepository{
		querier: db.Pool(),
		logger:  logger,
	}
}

// WithTx wraps the repository with a transaction
func (r *ApprovalRepository) WithTx(tx pgx.Tx) approval.Repository {
	return &ApprovalRepository{
		querier: tx,
		logger:  r.logger,
	}
}

// CreateRule stores a new approval rule
func (r *ApprovalRepository) CreateRule(ctx context.Context, rule *approval.Rule) error {
	reviewers, err := json.Marshal(rule.Reviewers)
	if err != nil {
		return fmt.Errorf("failed to marshal reviewers: %w", err)
	}

	query := `
		INSERT INTO approval_rules (id, organization_id, workflow_type, approval_type, amount, reviewers, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`

	_, err = r.querier.Exec(ctx, query,
		rule.ID, rule.OrganizationID, rule.WorkflowType, rule.ApprovalType, rule.Amount, reviewers, rule.CreatedAt, rule.UpdatedAt,
	)
	if err != nil {
		r.logger.Error("Failed to create approval rule", "error", err)
		return fmt.Errorf("failed to create approval rule: %w", err)
	}

	return nil
}

func (r *ApprovalRepository) scanRule(row pgx.Row) (*approval.Rule, error) {
	var rule approval.Rule
	var reviewers []byte
	err := row.Scan(
		&rule.ID, &rule.OrganizationID, &rule.WorkflowType, &rule.ApprovalType, &rule.Amount, &reviewers, &rule.CreatedAt, &rule.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if len(reviewers) > 0 {
		if err := json.Unmarshal(reviewers, &rule.Reviewers); err != nil {
			return nil, fmt.Errorf("failed to unmarshal reviewers: %w", err)
		}
	}
	return &rule, nil
}

// GetRuleByID retrieves an approval rule by its ID
func (r *ApprovalRepository) GetRuleByID(ctx context.Context, id uuid.UUID) (*approval.Rule, error) {
	query := `
		SELECT id, organization_id, workflow_type, approval_type, amount, reviewers, created_at, updated_at
		FROM approval_rules
		WHERE id = $1
	`

	rule, err := r.scanRule(r.querier.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, approval.ErrRuleNotFound{RuleID: id}
		}
		r.logger.Error("Failed to get approval rule", "id", id.String(), "error", err)
		return nil, fmt.Errorf("failed to get approval rule: %w", err)
	}

	return rule, nil
}

// ListRules retrieves all approval rules for an organization
func (r *ApprovalRepository) ListRules(ctx context.Context, organizationID uuid.UUID) ([]*approval.Rule, error) {
	query := `
		SELECT id, organization_id, workflow_type, approval_type, amount, reviewers, created_at, updated_at
		FROM approval_rules
		WHERE organization_id = $1
		ORDER BY workflow_type, amount
	`

	rows, err := r.querier.Query(ctx, query, organizationID)
	if err != nil {
		r.logger.Error("Failed to list approval rules", "organization_id", organizationID.String(), "error", err)
		return nil, fmt.Errorf("failed to list approval rules: %w", err)
	}
	defer rows.Close()

	var rules []*approval.Rule
	for rows.Next() {
		rule, err := r.scanRule(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan approval rule: %w", err)
		}
		rules = append(rules, rule)
	}

	return rules, rows.Err()
}

// FindMatchingRule returns the rule with the smallest threshold still covering
// the amount, or nil when no rule matches
func (r *ApprovalRepository) FindMatchingRule(ctx context.Context, organizationID uuid.UUID, workflowType approval.WorkflowType, amount int64) (*approval.Rule, error) {
	query := `
		SELECT id, organization_id, workflow_type, approval_type, amount, reviewers, created_at, updated_at
		FROM approval_rules
		WHERE organization_id = $1 AND workflow_type = $2 AND amount >= $3
		ORDER BY amount ASC
		LIMIT 1
	`

	rule, err := r.scanRule(r.querier.QueryRow(ctx, query, organizationID, workflowType, amount))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil // No rule matches: the action executes immediately
		}
		r.logger.Error("Failed to find matching approval rule", "organization_id", organizationID.String(), "error", err)
		return nil, fmt.Errorf("failed to find matching approval rule: %w", err)
	}

	return rule, nil
}

// CreateRequest stores a new approval request with its snapshot payload
func (r *ApprovalRepository) CreateRequest(ctx context.Context, request *approval.Request) error {
	reviews, err := json.Marshal(request.Reviews)
	if err != nil {
		return fmt.Errorf("failed to marshal reviews: %w", err)
	}
	properties, err := approval.EncodeProperties(request.Properties)
	if err != nil {
		return fmt.Errorf("failed to encode request properties: %w", err)
	}

	query := `
		INSERT INTO approval_requests (id, organization_id, workflow_type, requester_id, rule_id, approval_type, reviews, status, properties, version, created_at, resolved_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`

	_, err = r.querier.Exec(ctx, query,
		request.ID, request.OrganizationID, request.WorkflowType, request.RequesterID, request.RuleID,
		request.ApprovalType, reviews, request.Status, properties, request.Version, request.CreatedAt, request.ResolvedAt,
	)
	if err != nil {
		r.logger.Error("Failed to create approval request", "error", err)
		return fmt.Errorf("failed to create approval request: %w", err)
	}

	return nil
}

func (r *ApprovalRepository) scanRequest(row pgx.Row) (*approval.Request, error) {
	var request approval.Request
	var reviews, properties []byte
	err := row.Scan(
		&request.ID, &request.OrganizationID, &request.WorkflowType, &request.RequesterID, &request.RuleID,
		&request.ApprovalType, &reviews, &request.Status, &properties, &request.Version, &request.CreatedAt, &request.ResolvedAt,
	)
	if err != nil {
		return nil, err
	}
	if len(reviews) > 0 {
		if err := json.Unmarshal(reviews, &request.Reviews); err != nil {
			return nil, fmt.Errorf("failed to unmarshal reviews: %w", err)
		}
	}
	props, err := approval.DecodeProperties(properties)
	if err != nil {
		return nil, err
	}
	request.Properties = props
	return &request, nil
}

// GetRequestByID retrieves an approval request by its ID
func (r *ApprovalRepository) GetRequestByID(ctx context.Context, id uuid.UUID) (*approval.Request, error) {
	query := `
		SELECT id, organization_id, workflow_type, requester_id, rule_id, approval_type, reviews, status, properties, version, created_at, resolved_at
		FROM approval_requests
		WHERE id = $1
	`

	request, err := r.scanRequest(r.querier.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, approval.ErrRequestNotFound{RequestID: id}
		}
		r.logger.Error("Failed to get approval request", "id", id.String(), "error", err)
		return nil, fmt.Errorf("failed to get approval request: %w", err)
	}

	return request, nil
}

// ListPendingRequests retrieves paginated pending requests, oldest first
func (r *ApprovalRepository) ListPendingRequests(ctx context.Context, organizationID uuid.UUID, limit, offset int) ([]*approval.Request, error) {
	query := `
		SELECT id, organization_id, workflow_type, requester_id, rule_id, approval_type, reviews, status, properties, version, created_at, resolved_at
		FROM approval_requests
		WHERE organization_id = $1 AND status = 'PENDING'
		ORDER BY created_at ASC
		LIMIT $2 OFFSET $3
	`

	rows, err := r.querier.Query(ctx, query, organizationID, limit, offset)
	if err != nil {
		r.logger.Error("Failed to list pending approval requests", "organization_id", organizationID.String(), "error", err)
		return nil, fmt.Errorf("failed to list pending approval requests: %w", err)
	}
	defer rows.Close()

	var requests []*approval.Request
	for rows.Next() {
		request, err := r.scanRequest(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan approval request: %w", err)
		}
		requests = append(requests, request)
	}

	return requests, rows.Err()
}

// UpdateRequest persists reviews and the overall status. The version guard
// rejects writes against a request that changed since it was read, so racing
// reviewers never overwrite each other; the status guard keeps resolution
// exactly-once.
func (r *ApprovalRepository) UpdateRequest(ctx context.Context, request *approval.Request) error {
	reviews, err := json.Marshal(request.Reviews)
	if err != nil {
		return fmt.Errorf("failed to marshal reviews: %w", err)
	}

	query := `
		UPDATE approval_requests
		SET reviews = $1, status = $2, resolved_at = $3, version = version + 1
		WHERE id = $4 AND version = $5 AND status = 'PENDING'
	`

	result, err := r.querier.Exec(ctx, query, reviews, request.Status, request.ResolvedAt, request.ID, request.Version)
	if err != nil {
		r.logger.Error("Failed to update approval request", "id", request.ID.String(), "error", err)
		return fmt.Errorf("failed to update approval request: %w", err)
	}

	if result.RowsAffected() == 0 {
		return approval.ErrConcurrentUpdate{RequestID: request.ID}
	}

	request.Version++
	return nil
}
