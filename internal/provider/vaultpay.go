package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"

	"github.com/finverse-ledger-engine/internal/config"
)

// VaultpayClient talks to the Vaultpay disbursement API over HTTPS. It serves
// both the transfer and verification interfaces since Vaultpay exposes both
// under one credential.
type VaultpayClient struct {
	baseURL   string
	secretKey string
	client    *http.Client
	logger    *slog.Logger
}

// NewVaultpayClient validates the credentials and builds an API client
func NewVaultpayClient(logger *slog.Logger, cfg *config.ProviderConfig) (*VaultpayClient, error) {
	if cfg.BaseURL == "" {
		return nil, errors.New("vaultpay provider requires PROVIDER_BASE_URL")
	}
	if cfg.SecretKey == "" {
		return nil, errors.New("vaultpay provider requires PROVIDER_SECRET_KEY")
	}

	return &VaultpayClient{
		baseURL:   cfg.BaseURL,
		secretKey: cfg.SecretKey,
		client:    &http.Client{Timeout: cfg.Timeout},
		logger:    logger,
	}, nil
}

type vaultpayTransferRequest struct {
	Reference     string `json:"reference"`
	AccountNumber string `json:"account_number"`
	BankCode      string `json:"bank_code"`
	AccountName   string `json:"account_name,omitempty"`
	Narration     string `json:"narration,omitempty"`
	Currency      string `json:"currency"`
	Amount        int64  `json:"amount"`
}

type vaultpayTransferResponse struct {
	Status  bool   `json:"status"`
	Message string `json:"message"`
	Data    struct {
		Reference   string `json:"reference"`
		ProviderRef string `json:"transfer_code"`
		Status      string `json:"status"`
	} `json:"data"`
}

type vaultpayResolveResponse struct {
	Status  bool   `json:"status"`
	Message string `json:"message"`
	Data    struct {
		AccountNumber string `json:"account_number"`
		AccountName   string `json:"account_name"`
		BankName      string `json:"bank_name"`
		BankID        string `json:"bank_id"`
	} `json:"data"`
}

// InitiateTransfer submits a disbursement. Vaultpay acknowledges with pending;
// the terminal outcome arrives by webhook.
func (c *VaultpayClient) InitiateTransfer(ctx context.Context, req *TransferRequest) (*TransferResult, error) {
	body, err := json.Marshal(vaultpayTransferRequest{
		Reference:     req.Reference,
		AccountNumber: req.AccountNumber,
		BankCode:      req.BankCode,
		AccountName:   req.AccountName,
		Narration:     req.Narration,
		Currency:      req.Currency,
		Amount:        req.Amount,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to encode transfer request: %w", err)
	}

	var resp vaultpayTransferResponse
	if err := c.do(ctx, http.MethodPost, "/transfers", bytes.NewReader(body), &resp); err != nil {
		return nil, err
	}
	if !resp.Status {
		return &TransferResult{
			Reference:       req.Reference,
			Status:          StatusFailed,
			GatewayResponse: resp.Message,
		}, nil
	}

	return &TransferResult{
		Reference:       resp.Data.Reference,
		ProviderRef:     resp.Data.ProviderRef,
		Status:          mapVaultpayStatus(resp.Data.Status),
		GatewayResponse: resp.Message,
	}, nil
}

// VerifyTransfer fetches the current status of a previously initiated transfer
func (c *VaultpayClient) VerifyTransfer(ctx context.Context, reference string) (*TransferResult, error) {
	var resp vaultpayTransferResponse
	err := c.do(ctx, http.MethodGet, "/transfers/"+url.PathEscape(reference), nil, &resp)
	if err != nil {
		return nil, err
	}
	if !resp.Status {
		return nil, fmt.Errorf("%w: %s", ErrTransferNotFound, reference)
	}

	return &TransferResult{
		Reference:       resp.Data.Reference,
		ProviderRef:     resp.Data.ProviderRef,
		Status:          mapVaultpayStatus(resp.Data.Status),
		GatewayResponse: resp.Message,
	}, nil
}

// ResolveAccount verifies an account number against Vaultpay's bank registry
func (c *VaultpayClient) ResolveAccount(ctx context.Context, accountNumber, bankCode string) (*ResolvedAccount, error) {
	path := fmt.Sprintf("/banks/resolve?account_number=%s&bank_code=%s",
		url.QueryEscape(accountNumber), url.QueryEscape(bankCode))

	var resp vaultpayResolveResponse
	if err := c.do(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}
	if !resp.Status {
		return nil, fmt.Errorf("%w: %s", ErrInvalidAccount, resp.Message)
	}

	return &ResolvedAccount{
		AccountNumber: resp.Data.AccountNumber,
		BankCode:      bankCode,
		AccountName:   resp.Data.AccountName,
		BankName:      resp.Data.BankName,
		BankID:        resp.Data.BankID,
	}, nil
}

func (c *VaultpayClient) do(ctx context.Context, method, path string, body io.Reader, out any) error {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("failed to build provider request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.secretKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		c.logger.Error("Vaultpay request failed", "method", method, "path", path, "error", err)
		return fmt.Errorf("%w: %v", ErrProviderUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusInternalServerError {
		return fmt.Errorf("%w: status %d", ErrProviderUnavailable, resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode provider response: %w", err)
	}
	return nil
}

func mapVaultpayStatus(s string) Status {
	switch s {
	case "success", "successful":
		return StatusSuccessful
	case "failed", "reversed":
		return StatusFailed
	default:
		return StatusPending
	}
}
