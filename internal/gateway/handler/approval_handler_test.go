package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/finverse-ledger-engine/internal/domain/approval"
	"github.com/finverse-ledger-engine/internal/workflow"
)

// MockApprovalService is a mock implementation of service.ApprovalService
type MockApprovalService struct {
	mock.Mock
}

func (m *MockApprovalService) Review(ctx context.Context, requestID, reviewerID uuid.UUID, decision approval.ReviewStatus, reason, correlationID string) (*workflow.Outcome, error) {
	args := m.Called(ctx, requestID, reviewerID, decision, reason, correlationID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*workflow.Outcome), args.Error(1)
}

func (m *MockApprovalService) ListPending(ctx context.Context, organizationID uuid.UUID, limit, offset int) ([]*approval.Request, error) {
	args := m.Called(ctx, organizationID, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*approval.Request), args.Error(1)
}

func TestApprovalHandler_Review(t *testing.T) {
	logger := newTestLogger()
	gin.SetMode(gin.TestMode)

	postReview := func(handler *ApprovalHandler, requestID string, body interface{}) *httptest.ResponseRecorder {
		router := gin.New()
		router.POST("/approvals/:id/review", handler.Review)

		jsonBody, _ := json.Marshal(body)
		req, _ := http.NewRequest(http.MethodPost, "/approvals/"+requestID+"/review", bytes.NewBuffer(jsonBody))
		req.Header.Set("Content-Type", "application/json")
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)
		return rr
	}

	requestID := uuid.New()
	reviewerID := uuid.New()

	t.Run("ResolvingApprovalReportsExecution", func(t *testing.T) {
		mockService := new(MockApprovalService)
		handler := NewApprovalHandler(logger, mockService)

		executedEntry := settledEntry("TRF-20250601-0020")
		mockService.On("Review", mock.Anything, requestID, reviewerID, approval.ReviewApproved, "", mock.Anything).
			Return(&workflow.Outcome{Executed: true, Entry: executedEntry}, nil).Once()

		rr := postReview(handler, requestID.String(), ReviewRequest{
			ReviewerID: reviewerID.String(),
			Decision:   "APPROVED",
		})

		assert.Equal(t, http.StatusOK, rr.Code)

		var resp Response
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
		data, ok := resp.Data.(map[string]interface{})
		require.True(t, ok)
		assert.Equal(t, true, data["executed"])
		assert.Equal(t, executedEntry.ID.String(), data["resource_id"])
		mockService.AssertExpectations(t)
	})

	t.Run("PartialApprovalStaysPending", func(t *testing.T) {
		mockService := new(MockApprovalService)
		handler := NewApprovalHandler(logger, mockService)

		mockService.On("Review", mock.Anything, requestID, reviewerID, approval.ReviewApproved, "", mock.Anything).
			Return(&workflow.Outcome{Executed: false, RequestID: &requestID}, nil).Once()

		rr := postReview(handler, requestID.String(), ReviewRequest{
			ReviewerID: reviewerID.String(),
			Decision:   "APPROVED",
		})

		assert.Equal(t, http.StatusOK, rr.Code)

		var resp Response
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
		data, ok := resp.Data.(map[string]interface{})
		require.True(t, ok)
		assert.Equal(t, false, data["executed"])
		assert.Equal(t, requestID.String(), data["approval_request_id"])
	})

	t.Run("DeclineWithReason", func(t *testing.T) {
		mockService := new(MockApprovalService)
		handler := NewApprovalHandler(logger, mockService)

		mockService.On("Review", mock.Anything, requestID, reviewerID, approval.ReviewDeclined, "Out of budget cycle", mock.Anything).
			Return(&workflow.Outcome{Executed: false}, nil).Once()

		rr := postReview(handler, requestID.String(), ReviewRequest{
			ReviewerID: reviewerID.String(),
			Decision:   "DECLINED",
			Reason:     "Out of budget cycle",
		})

		assert.Equal(t, http.StatusOK, rr.Code)
		mockService.AssertExpectations(t)
	})

	t.Run("InvalidRequestID", func(t *testing.T) {
		mockService := new(MockApprovalService)
		handler := NewApprovalHandler(logger, mockService)

		rr := postReview(handler, "not-a-uuid", ReviewRequest{
			ReviewerID: reviewerID.String(),
			Decision:   "APPROVED",
		})

		assert.Equal(t, http.StatusBadRequest, rr.Code)
		mockService.AssertNotCalled(t, "Review",
			mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("InvalidDecisionRejectedByBinding", func(t *testing.T) {
		mockService := new(MockApprovalService)
		handler := NewApprovalHandler(logger, mockService)

		rr := postReview(handler, requestID.String(), ReviewRequest{
			ReviewerID: reviewerID.String(),
			Decision:   "MAYBE",
		})

		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})

	t.Run("RequestNotFound", func(t *testing.T) {
		mockService := new(MockApprovalService)
		handler := NewApprovalHandler(logger, mockService)

		mockService.On("Review", mock.Anything, requestID, reviewerID, approval.ReviewApproved, "", mock.Anything).
			Return(nil, approval.ErrRequestNotFound{RequestID: requestID}).Once()

		rr := postReview(handler, requestID.String(), ReviewRequest{
			ReviewerID: reviewerID.String(),
			Decision:   "APPROVED",
		})

		assert.Equal(t, http.StatusNotFound, rr.Code)
	})

	t.Run("NonReviewerIsForbidden", func(t *testing.T) {
		mockService := new(MockApprovalService)
		handler := NewApprovalHandler(logger, mockService)

		mockService.On("Review", mock.Anything, requestID, reviewerID, approval.ReviewApproved, "", mock.Anything).
			Return(nil, approval.ErrNotReviewer).Once()

		rr := postReview(handler, requestID.String(), ReviewRequest{
			ReviewerID: reviewerID.String(),
			Decision:   "APPROVED",
		})

		assert.Equal(t, http.StatusForbidden, rr.Code)
	})

	t.Run("AlreadyResolvedConflicts", func(t *testing.T) {
		mockService := new(MockApprovalService)
		handler := NewApprovalHandler(logger, mockService)

		mockService.On("Review", mock.Anything, requestID, reviewerID, approval.ReviewApproved, "", mock.Anything).
			Return(nil, approval.ErrAlreadyResolved).Once()

		rr := postReview(handler, requestID.String(), ReviewRequest{
			ReviewerID: reviewerID.String(),
			Decision:   "APPROVED",
		})

		assert.Equal(t, http.StatusConflict, rr.Code)
	})

	t.Run("ExecutorFailureIsInternal", func(t *testing.T) {
		mockService := new(MockApprovalService)
		handler := NewApprovalHandler(logger, mockService)

		mockService.On("Review", mock.Anything, requestID, reviewerID, approval.ReviewApproved, "", mock.Anything).
			Return(nil, assert.AnError).Once()

		rr := postReview(handler, requestID.String(), ReviewRequest{
			ReviewerID: reviewerID.String(),
			Decision:   "APPROVED",
		})

		assert.Equal(t, http.StatusInternalServerError, rr.Code)
	})
}

func TestApprovalHandler_ListPending(t *testing.T) {
	logger := newTestLogger()
	gin.SetMode(gin.TestMode)

	organizationID := uuid.New()

	listPending := func(handler *ApprovalHandler, query string) *httptest.ResponseRecorder {
		router := gin.New()
		router.GET("/approvals", handler.ListPending)
		req, _ := http.NewRequest(http.MethodGet, "/approvals?"+query, nil)
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)
		return rr
	}

	t.Run("Success", func(t *testing.T) {
		mockService := new(MockApprovalService)
		handler := NewApprovalHandler(logger, mockService)

		pending := []*approval.Request{
			{
				ID:             uuid.New(),
				OrganizationID: organizationID,
				WorkflowType:   approval.WorkflowTransaction,
				RequesterID:    uuid.New(),
				ApprovalType:   approval.ApprovalEveryone,
				Status:         approval.RequestPending,
				Reviews: []approval.Review{
					{UserID: uuid.New(), Status: approval.ReviewApproved},
					{UserID: uuid.New(), Status: approval.ReviewPending},
				},
				CreatedAt: time.Now(),
			},
		}
		mockService.On("ListPending", mock.Anything, organizationID, 10, 0).Return(pending, nil).Once()

		rr := listPending(handler, "organization_id="+organizationID.String())

		assert.Equal(t, http.StatusOK, rr.Code)

		var resp Response
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
		data, ok := resp.Data.([]interface{})
		require.True(t, ok)
		require.Len(t, data, 1)
		first, ok := data[0].(map[string]interface{})
		require.True(t, ok)
		assert.Equal(t, pending[0].ID.String(), first["id"])
		assert.Equal(t, "PENDING", first["status"])
		reviews, ok := first["reviews"].([]interface{})
		require.True(t, ok)
		assert.Len(t, reviews, 2)
		mockService.AssertExpectations(t)
	})

	t.Run("PaginationIsForwarded", func(t *testing.T) {
		mockService := new(MockApprovalService)
		handler := NewApprovalHandler(logger, mockService)

		mockService.On("ListPending", mock.Anything, organizationID, 25, 50).
			Return([]*approval.Request{}, nil).Once()

		rr := listPending(handler, "organization_id="+organizationID.String()+"&page=3&per_page=25")

		assert.Equal(t, http.StatusOK, rr.Code)
		mockService.AssertExpectations(t)
	})

	t.Run("MissingOrganizationID", func(t *testing.T) {
		mockService := new(MockApprovalService)
		handler := NewApprovalHandler(logger, mockService)

		rr := listPending(handler, "")

		assert.Equal(t, http.StatusBadRequest, rr.Code)
		mockService.AssertNotCalled(t, "ListPending", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("ServiceError", func(t *testing.T) {
		mockService := new(MockApprovalService)
		handler := NewApprovalHandler(logger, mockService)

		mockService.On("ListPending", mock.Anything, organizationID, 10, 0).
			Return(nil, assert.AnError).Once()

		rr := listPending(handler, "organization_id="+organizationID.String())

		assert.Equal(t, http.StatusInternalServerError, rr.Code)
	})
}
