// Package provider defines the external transfer and bank verification
// integrations. Provider names form a closed set; selecting one happens
// exhaustively in the factory so an unknown name fails at startup, never
// mid-transfer.
package provider

import (
	"context"
	"errors"
	"fmt"
)

var (
	// ErrProviderUnavailable indicates the provider could not be reached or
	// returned a non-business failure
	ErrProviderUnavailable = errors.New("provider unavailable")
	// ErrInvalidAccount indicates the account number or bank code failed
	// verification
	ErrInvalidAccount = errors.New("account could not be resolved")
	// ErrTransferNotFound indicates the provider has no record of the
	// referenced transfer
	ErrTransferNotFound = errors.New("transfer not found at provider")
)

// Name identifies a configured provider. The set is closed; ParseName rejects
// anything else.
type Name string

const (
	NameSandbox  Name = "sandbox"
	NameVaultpay Name = "vaultpay"
)

// ParseName validates a configured provider name
func ParseName(s string) (Name, error) {
	switch Name(s) {
	case NameSandbox:
		return NameSandbox, nil
	case NameVaultpay:
		return NameVaultpay, nil
	}
	return "", fmt.Errorf("unknown provider name: %q", s)
}

// Status is the provider-side state of an initiated transfer
type Status string

const (
	StatusPending    Status = "pending"
	StatusSuccessful Status = "successful"
	StatusFailed     Status = "failed"
)

// TransferRequest carries everything a provider needs to move money out
type TransferRequest struct {
	Reference     string // Caller-chosen idempotency key, echoed back in webhooks
	AccountNumber string
	BankCode      string
	AccountName   string
	Narration     string
	Currency      string
	Amount        int64 // Minor currency units
}

// TransferResult is the provider's view of a transfer, from initiation or
// a later verification
type TransferResult struct {
	Reference       string
	ProviderRef     string
	Status          Status
	GatewayResponse string
}

// TransferProvider initiates outbound transfers and re-verifies their status
type TransferProvider interface {
	InitiateTransfer(ctx context.Context, req *TransferRequest) (*TransferResult, error)
	VerifyTransfer(ctx context.Context, reference string) (*TransferResult, error)
}

// ResolvedAccount is a verified bank account identity
type ResolvedAccount struct {
	AccountNumber string
	BankCode      string
	AccountName   string
	BankName      string
	BankID        string
}

// BankVerificationProvider resolves account numbers to account holders
type BankVerificationProvider interface {
	ResolveAccount(ctx context.Context, accountNumber, bankCode string) (*ResolvedAccount, error)
}
