// Package workflow gates money-moving actions behind reviewer approval.
// Actions either execute immediately (no matching rule, owner override, or a
// quorum that reduces to the requester) or suspend into an ApprovalRequest
// whose snapshot is re-dispatched once the quorum resolves.
package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/finverse-ledger-engine/internal/domain/approval"
	"github.com/finverse-ledger-engine/internal/domain/entry"
	"github.com/finverse-ledger-engine/internal/ledger"
	"github.com/finverse-ledger-engine/internal/notification"
)

// ErrTransferExecutorUnbound indicates the transfer executor was never wired
// in at startup
var ErrTransferExecutorUnbound = errors.New("transfer executor not bound")

// maxReviewRetries bounds how many times a review is re-applied after a
// version conflict before giving up
const maxReviewRetries = 3

// TransferExecutor runs a deferred outbound transfer once its approval
// resolves. Implemented by the transfer orchestrator and bound in main; the
// indirection keeps the gate and the action it gates in separate packages.
type TransferExecutor interface {
	ExecuteApproved(ctx context.Context, props approval.TransactionProperties, correlationID string) (*entry.WalletEntry, error)
}

// Outcome reports how a gated action ended: executed now, or suspended
// pending approval
type Outcome struct {
	Executed  bool
	RequestID *uuid.UUID         // Set when the action suspended
	Entry     *entry.WalletEntry // Set when a transfer executed
}

// Service matches approval rules, records reviews, and dispatches resolved
// requests
type Service struct {
	approvals approval.Repository
	ledger    *ledger.Service
	transfers TransferExecutor
	notifier  notification.Notifier
	logger    *slog.Logger
}

// NewService creates an approval workflow service. BindTransferExecutor must
// be called before any Transaction workflow resolves.
func NewService(
	logger *slog.Logger,
	approvals approval.Repository,
	ledgerSvc *ledger.Service,
	notifier notification.Notifier,
) *Service {
	return &Service{
		approvals: approvals,
		ledger:    ledgerSvc,
		notifier:  notifier,
		logger:    logger,
	}
}

// BindTransferExecutor wires in the transfer orchestrator after construction
func (s *Service) BindTransferExecutor(executor TransferExecutor) {
	s.transfers = executor
}

// RequestOrExecute runs the action now when no quorum stands in the way,
// otherwise persists an approval request and suspends. isOwner marks the
// organization owner, whose actions never wait for approval.
func (s *Service) RequestOrExecute(ctx context.Context, organizationID, requesterID uuid.UUID, isOwner bool, amount int64, props approval.Properties, correlationID string) (*Outcome, error) {
	rule, err := s.approvals.FindMatchingRule(ctx, organizationID, props.WorkflowType(), amount)
	if err != nil {
		return nil, err
	}

	if rule == nil || isOwner || quorumReducesToRequester(rule, requesterID) {
		e, err := s.dispatch(ctx, requesterID, props, correlationID)
		if err != nil {
			return nil, err
		}
		return &Outcome{Executed: true, Entry: e}, nil
	}

	request := approval.NewRequest(rule, requesterID, props)
	if err := s.approvals.CreateRequest(ctx, request); err != nil {
		return nil, err
	}

	s.logger.Info("Approval request created",
		"request_id", request.ID.String(),
		"workflow_type", string(request.WorkflowType),
		"approval_type", string(request.ApprovalType),
		"reviewers", len(request.Reviews),
		"correlation_id", correlationID,
	)
	s.notifyReviewers(ctx, request)

	return &Outcome{RequestID: &request.ID}, nil
}

// Review records one reviewer's decision. When the decision resolves the
// request, the stored snapshot is dispatched (Approved) or compensated
// (Declined). The version-guarded request update makes the dispatch
// exactly-once even under racing reviewers: a conflicting write reloads the
// request and re-applies the decision on top of it, so no reviewer's
// decision is lost.
func (s *Service) Review(ctx context.Context, requestID, reviewerID uuid.UUID, decision approval.ReviewStatus, reason, correlationID string) (*Outcome, error) {
	request, err := s.approvals.GetRequestByID(ctx, requestID)
	if err != nil {
		return nil, err
	}

	var status approval.RequestStatus
	for attempt := 0; ; attempt++ {
		status, err = request.ApplyReview(reviewerID, decision, reason)
		if err != nil {
			return nil, err
		}

		err = s.approvals.UpdateRequest(ctx, request)
		if err == nil {
			break
		}
		if !errors.Is(err, approval.ErrConcurrentUpdate{}) || attempt >= maxReviewRetries {
			return nil, err
		}

		s.logger.Warn("Approval request changed during review, retrying",
			"request_id", request.ID.String(),
			"correlation_id", correlationID,
		)
		request, err = s.approvals.GetRequestByID(ctx, requestID)
		if err != nil {
			return nil, err
		}
	}

	switch status {
	case approval.RequestApproved:
		s.logger.Info("Approval request approved",
			"request_id", request.ID.String(),
			"workflow_type", string(request.WorkflowType),
			"correlation_id", correlationID,
		)
		e, err := s.dispatch(ctx, request.RequesterID, request.Properties, correlationID)
		if err != nil {
			return nil, fmt.Errorf("approved action failed to execute: %w", err)
		}
		s.notifyRequester(ctx, request, "Request approved", "Your "+string(request.WorkflowType)+" request was approved and executed.")
		return &Outcome{Executed: true, Entry: e}, nil

	case approval.RequestDeclined:
		s.logger.Info("Approval request declined",
			"request_id", request.ID.String(),
			"workflow_type", string(request.WorkflowType),
			"correlation_id", correlationID,
		)
		if err := s.compensate(ctx, request, correlationID); err != nil {
			return nil, err
		}
		s.notifyRequester(ctx, request, "Request declined", "Your "+string(request.WorkflowType)+" request was declined. "+reason)
		return &Outcome{}, nil
	}

	return &Outcome{RequestID: &request.ID}, nil
}

// ListPending returns unresolved requests for an organization
func (s *Service) ListPending(ctx context.Context, organizationID uuid.UUID, limit, offset int) ([]*approval.Request, error) {
	return s.approvals.ListPendingRequests(ctx, organizationID, limit, offset)
}

// dispatch re-invokes the workflow-specific executor. The switch is
// exhaustive over the Properties variants.
func (s *Service) dispatch(ctx context.Context, requesterID uuid.UUID, props approval.Properties, correlationID string) (*entry.WalletEntry, error) {
	switch p := props.(type) {
	case approval.ExpenseProperties:
		return nil, s.ledger.FundBudget(ctx, p.BudgetID, requesterID, correlationID)
	case approval.BudgetExtensionProperties:
		return nil, s.ledger.ExtendBudget(ctx, p.BudgetID, p.Extra, requesterID, correlationID)
	case approval.TransactionProperties:
		if s.transfers == nil {
			return nil, ErrTransferExecutorUnbound
		}
		return s.transfers.ExecuteApproved(ctx, p, correlationID)
	case approval.PayrollProperties:
		// Payout scheduling lives outside the engine; approval just unblocks it
		s.logger.Info("Payroll approved for processing",
			"payroll_id", p.PayrollID.String(),
			"correlation_id", correlationID,
		)
		return nil, nil
	default:
		return nil, fmt.Errorf("no executor for properties type %T", props)
	}
}

// compensate undoes what a declined request left half-done. Only an expense
// leaves anything behind: the budget it would have funded stays Pending and
// is closed here.
func (s *Service) compensate(ctx context.Context, request *approval.Request, correlationID string) error {
	switch p := request.Properties.(type) {
	case approval.ExpenseProperties:
		return s.ledger.CloseBudget(ctx, p.BudgetID, request.RequesterID, correlationID)
	default:
		return nil
	}
}

func (s *Service) notifyReviewers(ctx context.Context, request *approval.Request) {
	for _, review := range request.Reviews {
		if review.Status != approval.ReviewPending {
			continue
		}
		s.notifier.Notify(ctx, &notification.Notice{
			UserID:  review.UserID,
			Subject: "Approval requested",
			Body:    "A " + string(request.WorkflowType) + " request is waiting for your review.",
		})
	}
}

func (s *Service) notifyRequester(ctx context.Context, request *approval.Request, subject, body string) {
	s.notifier.Notify(ctx, &notification.Notice{
		UserID:  request.RequesterID,
		Subject: subject,
		Body:    body,
	})
}

// quorumReducesToRequester reports whether the rule's reviewers amount to the
// requester alone: either they are the only reviewer, or an Anyone quorum
// counts their own pre-approved review
func quorumReducesToRequester(rule *approval.Rule, requesterID uuid.UUID) bool {
	if len(rule.Reviewers) == 0 {
		return true
	}
	requesterIsReviewer := false
	others := 0
	for _, reviewer := range rule.Reviewers {
		if reviewer == requesterID {
			requesterIsReviewer = true
		} else {
			others++
		}
	}
	if others == 0 {
		return true
	}
	return rule.ApprovalType == approval.ApprovalAnyone && requesterIsReviewer
}
