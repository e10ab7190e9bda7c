package approval

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	ErrNotReviewer     = errors.New("user is not a reviewer on this request")
	ErrAlreadyResolved = errors.New("approval request already resolved")
	ErrAlreadyReviewed = errors.New("reviewer already submitted a decision")
	ErrInvalidDecision = errors.New("decision must be approved or declined")
)

// WorkflowType identifies which money-moving action an approval gates
type WorkflowType string

const (
	WorkflowExpense         WorkflowType = "EXPENSE"
	WorkflowTransaction     WorkflowType = "TRANSACTION"
	WorkflowBudgetExtension WorkflowType = "BUDGET_EXTENSION"
	WorkflowPayroll         WorkflowType = "PAYROLL"
)

// ApprovalType defines the reviewer quorum rule
type ApprovalType string

const (
	// ApprovalEveryone requires every reviewer to approve
	ApprovalEveryone ApprovalType = "EVERYONE"
	// ApprovalAnyone resolves on the first approval
	ApprovalAnyone ApprovalType = "ANYONE"
)

// ReviewStatus is the state of one reviewer's decision
type ReviewStatus string

const (
	ReviewPending  ReviewStatus = "PENDING"
	ReviewApproved ReviewStatus = "APPROVED"
	ReviewDeclined ReviewStatus = "DECLINED"
)

// RequestStatus mirrors the overall outcome of the request
type RequestStatus string

const (
	RequestPending  RequestStatus = "PENDING"
	RequestApproved RequestStatus = "APPROVED"
	RequestDeclined RequestStatus = "DECLINED"
)

// Rule is a per-organization approval policy. A rule matches a requested
// action when the workflow types agree and the action amount is at or below
// the rule's threshold.
type Rule struct {
	ID             uuid.UUID    `json:"id"`
	OrganizationID uuid.UUID    `json:"organization_id"`
	WorkflowType   WorkflowType `json:"workflow_type"`
	ApprovalType   ApprovalType `json:"approval_type"`
	Amount         int64        `json:"amount"` // Threshold in minor currency units
	Reviewers      []uuid.UUID  `json:"reviewers"`
	CreatedAt      time.Time    `json:"created_at"`
	UpdatedAt      time.Time    `json:"updated_at"`
}

// Matches reports whether the rule applies to an action of the given amount
func (r *Rule) Matches(workflowType WorkflowType, amount int64) bool {
	return r.WorkflowType == workflowType && amount <= r.Amount
}

// Review is one reviewer's decision on a request
type Review struct {
	UserID uuid.UUID    `json:"user_id"`
	Status ReviewStatus `json:"status"`
	Reason string       `json:"reason,omitempty"`
}

// Request is one pending or resolved approval decision. Properties snapshots
// everything needed to re-invoke the deferred action once the quorum is met.
type Request struct {
	ID             uuid.UUID     `json:"id"`
	OrganizationID uuid.UUID     `json:"organization_id"`
	WorkflowType   WorkflowType  `json:"workflow_type"`
	RequesterID    uuid.UUID     `json:"requester_id"`
	RuleID         uuid.UUID     `json:"rule_id"`
	ApprovalType   ApprovalType  `json:"approval_type"`
	Reviews        []Review      `json:"reviews"`
	Status         RequestStatus `json:"status"`
	Properties     Properties    `json:"properties"`
	Version        int           `json:"version"` // Optimistic concurrency control
	CreatedAt      time.Time     `json:"created_at"`
	ResolvedAt     *time.Time    `json:"resolved_at,omitempty"`
}

// NewRequest builds a pending request with reviews seeded from the rule's
// reviewers. If the requester is among them, their review is pre-approved.
func NewRequest(rule *Rule, requesterID uuid.UUID, props Properties) *Request {
	reviews := make([]Review, 0, len(rule.Reviewers))
	for _, reviewer := range rule.Reviewers {
		status := ReviewPending
		if reviewer == requesterID {
			status = ReviewApproved
		}
		reviews = append(reviews, Review{UserID: reviewer, Status: status})
	}

	return &Request{
		ID:             uuid.New(),
		OrganizationID: rule.OrganizationID,
		WorkflowType:   rule.WorkflowType,
		RequesterID:    requesterID,
		RuleID:         rule.ID,
		ApprovalType:   rule.ApprovalType,
		Reviews:        reviews,
		Status:         RequestPending,
		Properties:     props,
		Version:        1,
		CreatedAt:      time.Now(),
	}
}

// ApplyReview records a reviewer's decision and recomputes the overall status.
// Returns the resulting request status.
func (r *Request) ApplyReview(reviewerID uuid.UUID, decision ReviewStatus, reason string) (RequestStatus, error) {
	if r.Status != RequestPending {
		return r.Status, ErrAlreadyResolved
	}
	if decision != ReviewApproved && decision != ReviewDeclined {
		return r.Status, ErrInvalidDecision
	}

	found := false
	for i := range r.Reviews {
		if r.Reviews[i].UserID != reviewerID {
			continue
		}
		if r.Reviews[i].Status != ReviewPending {
			return r.Status, ErrAlreadyReviewed
		}
		r.Reviews[i].Status = decision
		r.Reviews[i].Reason = reason
		found = true
		break
	}
	if !found {
		return r.Status, ErrNotReviewer
	}

	r.Status = r.resolve()
	if r.Status != RequestPending {
		now := time.Now()
		r.ResolvedAt = &now
	}
	return r.Status, nil
}

// resolve computes the overall outcome from the reviews. A single decline is
// terminal regardless of approval type. For Anyone a single approval resolves
// the whole request; for Everyone all reviews must be approved.
func (r *Request) resolve() RequestStatus {
	approved := 0
	for i := range r.Reviews {
		switch r.Reviews[i].Status {
		case ReviewDeclined:
			return RequestDeclined
		case ReviewApproved:
			approved++
		}
	}

	switch r.ApprovalType {
	case ApprovalAnyone:
		if approved > 0 {
			return RequestApproved
		}
	case ApprovalEveryone:
		if approved == len(r.Reviews) {
			return RequestApproved
		}
	}
	return RequestPending
}
