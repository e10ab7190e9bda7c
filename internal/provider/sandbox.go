package provider

import (
	"context"
	"fmt"
	"hash/fnv"
	"log/slog"
	"sync"

	"github.com/google/uuid"
)

// Sandbox is a deterministic in-process provider for local development and
// integration tests. Outcomes are driven by the request itself:
//
//   - amounts ending in 99 are declined at initiation
//   - amounts ending in 98 stay pending until the requery poller asks again
//   - everything else succeeds immediately
//   - account numbers must be 10 digits; those starting with "00" fail
//     resolution
type Sandbox struct {
	logger *slog.Logger

	mu        sync.Mutex
	transfers map[string]*TransferResult
}

// NewSandbox creates a sandbox provider with empty transfer state
func NewSandbox(logger *slog.Logger) *Sandbox {
	return &Sandbox{
		logger:    logger,
		transfers: make(map[string]*TransferResult),
	}
}

// InitiateTransfer records the transfer and returns its deterministic outcome
func (s *Sandbox) InitiateTransfer(_ context.Context, req *TransferRequest) (*TransferResult, error) {
	status := StatusSuccessful
	response := "approved"

	switch req.Amount % 100 {
	case 99:
		status = StatusFailed
		response = "insufficient provider float"
	case 98:
		status = StatusPending
		response = "queued for processing"
	}

	result := &TransferResult{
		Reference:       req.Reference,
		ProviderRef:     "sbx_" + uuid.New().String(),
		Status:          status,
		GatewayResponse: response,
	}

	s.mu.Lock()
	// Idempotent on reference: a replayed initiation returns the first outcome
	if existing, ok := s.transfers[req.Reference]; ok {
		s.mu.Unlock()
		return existing, nil
	}
	s.transfers[req.Reference] = result
	s.mu.Unlock()

	s.logger.Info("Sandbox transfer initiated",
		"reference", req.Reference,
		"status", string(status),
	)

	return result, nil
}

// VerifyTransfer replays the recorded outcome. Transfers left pending at
// initiation resolve to successful on verification, which exercises the
// requery path end to end.
func (s *Sandbox) VerifyTransfer(_ context.Context, reference string) (*TransferResult, error) {
	s.mu.Lock()
	result, ok := s.transfers[reference]
	if ok && result.Status == StatusPending {
		result = &TransferResult{
			Reference:       result.Reference,
			ProviderRef:     result.ProviderRef,
			Status:          StatusSuccessful,
			GatewayResponse: "approved after requery",
		}
		s.transfers[reference] = result
	}
	s.mu.Unlock()

	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrTransferNotFound, reference)
	}
	return result, nil
}

// ResolveAccount derives a stable synthetic account holder from the account
// number so repeated resolutions agree
func (s *Sandbox) ResolveAccount(_ context.Context, accountNumber, bankCode string) (*ResolvedAccount, error) {
	if len(accountNumber) != 10 || !allDigits(accountNumber) {
		return nil, fmt.Errorf("%w: account number must be 10 digits", ErrInvalidAccount)
	}
	if accountNumber[:2] == "00" {
		return nil, fmt.Errorf("%w: %s", ErrInvalidAccount, accountNumber)
	}

	return &ResolvedAccount{
		AccountNumber: accountNumber,
		BankCode:      bankCode,
		AccountName:   syntheticName(accountNumber),
		BankName:      "Sandbox Bank " + bankCode,
		BankID:        "sbx-" + bankCode,
	}, nil
}

func allDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

var firstNames = []string{"ADA", "KOFI", "NGOZI", "TUNDE", "AMINA", "EMEKA", "FOLAKE", "SEGUN"}
var lastNames = []string{"OKAFOR", "MENSAH", "ADEBAYO", "DIOP", "EZE", "OWUSU", "BANKOLE", "MUSA"}

func syntheticName(accountNumber string) string {
	h := fnv.New32a()
	h.Write([]byte(accountNumber))
	sum := h.Sum32()
	return firstNames[sum%uint32(len(firstNames))] + " " + lastNames[(sum/8)%uint32(len(lastNames))]
}
