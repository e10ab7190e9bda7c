package approval

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// Repository manages approval rule and request persistence
type Repository interface {
	CreateRule(ctx context.Context, rule *Rule) error
	GetRuleByID(ctx context.Context, id uuid.UUID) (*Rule, error)
	ListRules(ctx context.Context, organizationID uuid.UUID) ([]*Rule, error)

	// FindMatchingRule returns the tightest rule covering the amount: the one
	// with the smallest threshold still at or above it. Nil when none matches.
	FindMatchingRule(ctx context.Context, organizationID uuid.UUID, workflowType WorkflowType, amount int64) (*Rule, error)

	CreateRequest(ctx context.Context, request *Request) error
	GetRequestByID(ctx context.Context, id uuid.UUID) (*Request, error)
	ListPendingRequests(ctx context.Context, organizationID uuid.UUID, limit, offset int) ([]*Request, error)

	// UpdateRequest persists reviews and the overall status. Guarded by the
	// request's version and status = PENDING at write time, so a request
	// resolves exactly once and a stale read never overwrites another
	// reviewer's decision. Returns ErrConcurrentUpdate when the guard fails.
	UpdateRequest(ctx context.Context, request *Request) error

	WithTx(tx pgx.Tx) Repository
}

// ErrRequestNotFound indicates missing approval request
type ErrRequestNotFound struct {
	RequestID uuid.UUID
}

func (e ErrRequestNotFound) Error() string {
	return "approval request not found: " + e.RequestID.String()
}

// Is implements the errors.Is interface for ErrRequestNotFound
func (e ErrRequestNotFound) Is(target error) bool {
	t, ok := target.(ErrRequestNotFound)
	if !ok {
		return false
	}
	if t.RequestID == uuid.Nil {
		return true
	}
	return e.RequestID == t.RequestID
}

// ErrRuleNotFound indicates missing approval rule
type ErrRuleNotFound struct {
	RuleID uuid.UUID
}

func (e ErrRuleNotFound) Error() string {
	return "approval rule not found: " + e.RuleID.String()
}

// ErrConcurrentUpdate indicates the guarded request update lost a race:
// another review changed or resolved the request since it was read. Callers
// reload and re-apply their review.
type ErrConcurrentUpdate struct {
	RequestID uuid.UUID
}

func (e ErrConcurrentUpdate) Error() string {
	return "approval request updated concurrently: " + e.RequestID.String()
}

// Is implements the errors.Is interface for ErrConcurrentUpdate
func (e ErrConcurrentUpdate) Is(target error) bool {
	t, ok := target.(ErrConcurrentUpdate)
	if !ok {
		return false
	}
	if t.RequestID == uuid.Nil {
		return true
	}
	return e.RequestID == t.RequestID
}
