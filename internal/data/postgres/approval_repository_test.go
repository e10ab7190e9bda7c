package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/finverse-ledger-engine/internal/domain/approval"
)

func pendingRequest(t *testing.T) *approval.Request {
	t.Helper()
	return &approval.Request{
		ID:             uuid.New(),
		OrganizationID: uuid.New(),
		WorkflowType:   approval.WorkflowTransaction,
		RequesterID:    uuid.New(),
		RuleID:         uuid.New(),
		ApprovalType:   approval.ApprovalEveryone,
		Reviews: []approval.Review{
			{UserID: uuid.New(), Status: approval.ReviewApproved},
			{UserID: uuid.New(), Status: approval.ReviewPending},
		},
		Status:    approval.RequestPending,
		Version:   1,
		CreatedAt: time.Now(),
	}
}

func TestApprovalRepository_UpdateRequest(t *testing.T) {
	ctx := context.Background()
	logger := newTestLogger()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := &ApprovalRepository{querier: mock, logger: logger}

	query := `
		UPDATE approval_requests
		SET reviews = \$1, status = \$2, resolved_at = \$3, version = version \+ 1
		WHERE id = \$4 AND version = \$5 AND status = 'PENDING'
	`

	t.Run("success bumps the version", func(t *testing.T) {
		request := pendingRequest(t)
		reviews, err := json.Marshal(request.Reviews)
		require.NoError(t, err)

		mock.ExpectExec(query).
			WithArgs(reviews, request.Status, request.ResolvedAt, request.ID, 1).
			WillReturnResult(pgxmock.NewResult("UPDATE", 1))

		err = repo.UpdateRequest(ctx, request)
		assert.NoError(t, err)
		assert.Equal(t, 2, request.Version)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("stale version leaves the stored request intact", func(t *testing.T) {
		// A second reviewer already bumped the row; writing with the old
		// version must not clobber their decision.
		request := pendingRequest(t)
		reviews, err := json.Marshal(request.Reviews)
		require.NoError(t, err)

		mock.ExpectExec(query).
			WithArgs(reviews, request.Status, request.ResolvedAt, request.ID, 1).
			WillReturnResult(pgxmock.NewResult("UPDATE", 0))

		err = repo.UpdateRequest(ctx, request)
		assert.Error(t, err)
		assert.ErrorIs(t, err, approval.ErrConcurrentUpdate{})
		var conflictErr approval.ErrConcurrentUpdate
		assert.ErrorAs(t, err, &conflictErr)
		assert.Equal(t, request.ID, conflictErr.RequestID)
		assert.Equal(t, 1, request.Version)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("db error", func(t *testing.T) {
		request := pendingRequest(t)
		reviews, err := json.Marshal(request.Reviews)
		require.NoError(t, err)

		dbErr := errors.New("update db error")
		mock.ExpectExec(query).
			WithArgs(reviews, request.Status, request.ResolvedAt, request.ID, 1).
			WillReturnError(dbErr)

		err = repo.UpdateRequest(ctx, request)
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "failed to update approval request")
		assert.ErrorIs(t, err, dbErr)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}
