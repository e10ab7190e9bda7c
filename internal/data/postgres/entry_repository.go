package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/finverse-ledger-engine/internal/domain/entry"
	"github.com/finverse-ledger-engine/internal/platform/persistence"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// uniqueViolationCode is the PostgreSQL error code for unique constraint violations
const uniqueViolationCode = "23505"

// EntryRepository implements the entry.Repository interface for PostgreSQL.
// Wallet entries live in the same database as the balances they snapshot so a
// reservation and its entry commit or abort together.
type EntryRepository struct {
	querier persistence.Querier
	logger  *slog.Logger
}

// NewEntryRepository creates a new PostgreSQL wallet entry repository
func NewEntryRepository(logger *slog.Logger, db *persistence.PostgresDB) entry.Repository {
	return &EntryRepository{
		querier: db.Pool(),
		logger:  logger,
	}
}

// WithTx wraps the repository with a transaction
func (r *EntryRepository) WithTx(tx pgx.Tx) entry.Repository {
	return &EntryRepository{
		querier: tx,
		logger:  r.logger,
	}
}

const entryColumns = `id, organization_id, wallet_id, budget_id, project_id, payroll_id, user_id, type, status, scope,
	amount, fee, currency, balance_before, balance_after, ledger_balance_before, ledger_balance_after,
	reference, provider_ref, provider, reversed, reversal_of, meta, failure_reason, correlation_id, created_at, settled_at`

// Create stores a new wallet entry. The unique index on reference makes the
// caller-chosen reference a durable idempotency key; violations surface as
// ErrDuplicateReference.
func (r *EntryRepository) Create(ctx context.Context, e *entry.WalletEntry) error {
	meta, err := json.Marshal(e.Meta)
	if err != nil {
		return fmt.Errorf("failed to marshal entry meta: %w", err)
	}

	query := `
		INSERT INTO wallet_entries (` + entryColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21, $22, $23, $24, $25, $26, $27)
	`

	_, err = r.querier.Exec(ctx, query,
		e.ID, e.OrganizationID, e.WalletID, e.BudgetID, e.ProjectID, e.PayrollID, e.UserID,
		e.Type, e.Status, e.Scope,
		e.Amount, e.Fee, e.Currency,
		e.BalanceBefore, e.BalanceAfter, e.LedgerBalanceBefore, e.LedgerBalanceAfter,
		e.Reference, e.ProviderRef, e.Provider, e.Reversed, e.ReversalOf, meta,
		e.FailureReason, e.CorrelationID, e.CreatedAt, e.SettledAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolationCode {
			return entry.ErrDuplicateReference{Reference: e.Reference}
		}
		r.logger.Error("Failed to create wallet entry", "reference", e.Reference, "error", err)
		return fmt.Errorf("failed to create wallet entry: %w", err)
	}

	return nil
}

func (r *EntryRepository) scanEntry(row pgx.Row) (*entry.WalletEntry, error) {
	var e entry.WalletEntry
	var meta []byte
	err := row.Scan(
		&e.ID, &e.OrganizationID, &e.WalletID, &e.BudgetID, &e.ProjectID, &e.PayrollID, &e.UserID,
		&e.Type, &e.Status, &e.Scope,
		&e.Amount, &e.Fee, &e.Currency,
		&e.BalanceBefore, &e.BalanceAfter, &e.LedgerBalanceBefore, &e.LedgerBalanceAfter,
		&e.Reference, &e.ProviderRef, &e.Provider, &e.Reversed, &e.ReversalOf, &meta,
		&e.FailureReason, &e.CorrelationID, &e.CreatedAt, &e.SettledAt,
	)
	if err != nil {
		return nil, err
	}
	if len(meta) > 0 {
		if err := json.Unmarshal(meta, &e.Meta); err != nil {
			return nil, fmt.Errorf("failed to unmarshal entry meta: %w", err)
		}
	}
	return &e, nil
}

// GetByID retrieves a wallet entry by its ID
func (r *EntryRepository) GetByID(ctx context.Context, id uuid.UUID) (*entry.WalletEntry, error) {
	query := `SELECT ` + entryColumns + ` FROM wallet_entries WHERE id = $1`

	e, err := r.scanEntry(r.querier.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, entry.ErrEntryNotFound{Reference: id.String()}
		}
		r.logger.Error("Failed to get wallet entry", "id", id.String(), "error", err)
		return nil, fmt.Errorf("failed to get wallet entry: %w", err)
	}

	return e, nil
}

// GetByReference retrieves a wallet entry by its idempotency reference
func (r *EntryRepository) GetByReference(ctx context.Context, reference string) (*entry.WalletEntry, error) {
	query := `SELECT ` + entryColumns + ` FROM wallet_entries WHERE reference = $1`

	e, err := r.scanEntry(r.querier.QueryRow(ctx, query, reference))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, entry.ErrEntryNotFound{Reference: reference}
		}
		r.logger.Error("Failed to get wallet entry by reference", "reference", reference, "error", err)
		return nil, fmt.Errorf("failed to get wallet entry by reference: %w", err)
	}

	return e, nil
}

// GetByWalletID retrieves paginated wallet entries, newest first
func (r *EntryRepository) GetByWalletID(ctx context.Context, walletID uuid.UUID, limit, offset int) ([]*entry.WalletEntry, error) {
	query := `SELECT ` + entryColumns + ` FROM wallet_entries WHERE wallet_id = $1 ORDER BY created_at DESC LIMIT $2 OFFSET $3`

	rows, err := r.querier.Query(ctx, query, walletID, limit, offset)
	if err != nil {
		r.logger.Error("Failed to get wallet entries", "wallet_id", walletID.String(), "error", err)
		return nil, fmt.Errorf("failed to get wallet entries: %w", err)
	}
	defer rows.Close()

	var entries []*entry.WalletEntry
	for rows.Next() {
		e, err := r.scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan wallet entry: %w", err)
		}
		entries = append(entries, e)
	}

	return entries, rows.Err()
}

// MarkSettled transitions the entry out of Pending exactly once. The guard on
// the current status makes duplicate settlement deliveries no-ops at the
// storage layer.
func (r *EntryRepository) MarkSettled(ctx context.Context, id uuid.UUID, status entry.Status, providerRef, failureReason string) error {
	query := `
		UPDATE wallet_entries
		SET status = $1,
		    provider_ref = CASE WHEN $2 = '' THEN provider_ref ELSE $2 END,
		    failure_reason = $3,
		    settled_at = NOW()
		WHERE id = $4 AND status = 'PENDING'
	`

	result, err := r.querier.Exec(ctx, query, status, providerRef, failureReason, id)
	if err != nil {
		r.logger.Error("Failed to mark wallet entry settled", "id", id.String(), "status", status, "error", err)
		return fmt.Errorf("failed to mark wallet entry settled: %w", err)
	}

	if result.RowsAffected() == 0 {
		if _, getErr := r.GetByID(ctx, id); getErr != nil {
			return getErr
		}
		return entry.ErrAlreadySettled
	}

	return nil
}

// MarkReversed stamps the reversal marker on the entry, exactly once
func (r *EntryRepository) MarkReversed(ctx context.Context, id uuid.UUID) error {
	query := `
		UPDATE wallet_entries
		SET reversed = TRUE
		WHERE id = $1 AND reversed = FALSE
	`

	result, err := r.querier.Exec(ctx, query, id)
	if err != nil {
		r.logger.Error("Failed to mark wallet entry reversed", "id", id.String(), "error", err)
		return fmt.Errorf("failed to mark wallet entry reversed: %w", err)
	}

	if result.RowsAffected() == 0 {
		if _, getErr := r.GetByID(ctx, id); getErr != nil {
			return getErr
		}
		return entry.ErrAlreadyReversed
	}

	return nil
}

// SetProviderRef stamps the provider-assigned id on a still-pending entry
func (r *EntryRepository) SetProviderRef(ctx context.Context, id uuid.UUID, providerRef string) error {
	query := `
		UPDATE wallet_entries
		SET provider_ref = $1
		WHERE id = $2 AND status = 'PENDING'
	`

	result, err := r.querier.Exec(ctx, query, providerRef, id)
	if err != nil {
		r.logger.Error("Failed to set provider ref", "id", id.String(), "error", err)
		return fmt.Errorf("failed to set provider ref: %w", err)
	}

	if result.RowsAffected() == 0 {
		if _, getErr := r.GetByID(ctx, id); getErr != nil {
			return getErr
		}
		return entry.ErrAlreadySettled
	}

	return nil
}

// ListPendingBefore returns debit entries still Pending created before cutoff
func (r *EntryRepository) ListPendingBefore(ctx context.Context, cutoff time.Time, limit int) ([]*entry.WalletEntry, error) {
	query := `
		SELECT ` + entryColumns + `
		FROM wallet_entries
		WHERE status = 'PENDING' AND type = 'DEBIT' AND provider_ref != '' AND created_at < $1
		ORDER BY created_at ASC
		LIMIT $2
	`

	rows, err := r.querier.Query(ctx, query, cutoff, limit)
	if err != nil {
		r.logger.Error("Failed to list pending wallet entries", "cutoff", cutoff, "error", err)
		return nil, fmt.Errorf("failed to list pending wallet entries: %w", err)
	}
	defer rows.Close()

	var entries []*entry.WalletEntry
	for rows.Next() {
		e, err := r.scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan wallet entry: %w", err)
		}
		entries = append(entries, e)
	}

	return entries, rows.Err()
}

// SumSpentByUser sums successful and pending debit totals for a user since the
// given time, optionally scoped to a budget
func (r *EntryRepository) SumSpentByUser(ctx context.Context, userID uuid.UUID, budgetID *uuid.UUID, since time.Time) (int64, error) {
	query := `
		SELECT COALESCE(SUM(amount), 0)
		FROM wallet_entries
		WHERE user_id = $1
		  AND type = 'DEBIT'
		  AND status IN ('PENDING', 'SUCCESSFUL')
		  AND created_at >= $2
		  AND ($3::uuid IS NULL OR budget_id = $3)
	`

	var sum int64
	err := r.querier.QueryRow(ctx, query, userID, since, budgetID).Scan(&sum)
	if err != nil {
		r.logger.Error("Failed to sum spent amounts", "user_id", userID.String(), "error", err)
		return 0, fmt.Errorf("failed to sum spent amounts: %w", err)
	}

	return sum, nil
}
