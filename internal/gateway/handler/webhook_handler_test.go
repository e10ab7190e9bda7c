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
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/finverse-ledger-engine/internal/domain/shared"
	"github.com/finverse-ledger-engine/internal/gateway/service"
)

// MockWebhookService is a mock implementation of service.WebhookService
type MockWebhookService struct {
	mock.Mock
}

func (m *MockWebhookService) IngestSettlementEvent(ctx context.Context, providerName string, payload []byte, correlationID string) (*shared.SettlementEvent, error) {
	args := m.Called(ctx, providerName, payload, correlationID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*shared.SettlementEvent), args.Error(1)
}

func TestWebhookHandler_Receive(t *testing.T) {
	logger := newTestLogger()
	gin.SetMode(gin.TestMode)

	postWebhook := func(handler *WebhookHandler, providerName string, payload []byte) *httptest.ResponseRecorder {
		router := gin.New()
		router.POST("/webhooks/:provider", handler.Receive)
		req, _ := http.NewRequest(http.MethodPost, "/webhooks/"+providerName, bytes.NewBuffer(payload))
		req.Header.Set("Content-Type", "application/json")
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)
		return rr
	}

	t.Run("AcceptedEventReturnsOK", func(t *testing.T) {
		mockService := new(MockWebhookService)
		handler := NewWebhookHandler(logger, mockService)

		payload := []byte(`{"event":"transfer.successful","data":{"reference":"TRF-20250601-0001"}}`)
		mockService.On("IngestSettlementEvent", mock.Anything, "vaultpay", payload, mock.Anything).
			Return(&shared.SettlementEvent{
				Reference:  "TRF-20250601-0001",
				Status:     shared.SettlementStatusSuccessful,
				ReceivedAt: time.Now(),
			}, nil).Once()

		rr := postWebhook(handler, "vaultpay", payload)

		assert.Equal(t, http.StatusOK, rr.Code)

		var resp Response
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
		data, ok := resp.Data.(map[string]interface{})
		require.True(t, ok)
		assert.Equal(t, "TRF-20250601-0001", data["reference"])
		assert.Equal(t, "accepted", data["status"])
		mockService.AssertExpectations(t)
	})

	t.Run("UnknownProviderIsNotFound", func(t *testing.T) {
		mockService := new(MockWebhookService)
		handler := NewWebhookHandler(logger, mockService)

		mockService.On("IngestSettlementEvent", mock.Anything, "paystack", mock.Anything, mock.Anything).
			Return(nil, service.ErrUnknownProvider).Once()

		rr := postWebhook(handler, "paystack", []byte(`{}`))

		assert.Equal(t, http.StatusNotFound, rr.Code)
	})

	t.Run("MalformedPayloadIsBadRequest", func(t *testing.T) {
		mockService := new(MockWebhookService)
		handler := NewWebhookHandler(logger, mockService)

		mockService.On("IngestSettlementEvent", mock.Anything, "vaultpay", mock.Anything, mock.Anything).
			Return(nil, service.ErrMalformedPayload).Once()

		rr := postWebhook(handler, "vaultpay", []byte(`{"event":"transfer.queued"}`))

		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})

	t.Run("PublishFailureIsInternalSoProviderRetries", func(t *testing.T) {
		mockService := new(MockWebhookService)
		handler := NewWebhookHandler(logger, mockService)

		mockService.On("IngestSettlementEvent", mock.Anything, "vaultpay", mock.Anything, mock.Anything).
			Return(nil, assert.AnError).Once()

		rr := postWebhook(handler, "vaultpay", []byte(`{"event":"transfer.successful","data":{"reference":"TRF-1"}}`))

		assert.Equal(t, http.StatusInternalServerError, rr.Code)
	})
}
