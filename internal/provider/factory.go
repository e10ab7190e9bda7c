package provider

import (
	"fmt"
	"log/slog"

	"github.com/finverse-ledger-engine/internal/config"
)

// NewTransferProvider builds the configured transfer provider. The switch is
// exhaustive over the closed name set.
func NewTransferProvider(logger *slog.Logger, cfg *config.ProviderConfig) (TransferProvider, error) {
	name, err := ParseName(cfg.Transfer)
	if err != nil {
		return nil, fmt.Errorf("transfer provider: %w", err)
	}

	switch name {
	case NameSandbox:
		return NewSandbox(logger), nil
	case NameVaultpay:
		return NewVaultpayClient(logger, cfg)
	}
	return nil, fmt.Errorf("transfer provider %q has no implementation", name)
}

// NewBankVerificationProvider builds the configured verification provider
func NewBankVerificationProvider(logger *slog.Logger, cfg *config.ProviderConfig) (BankVerificationProvider, error) {
	name, err := ParseName(cfg.Verification)
	if err != nil {
		return nil, fmt.Errorf("verification provider: %w", err)
	}

	switch name {
	case NameSandbox:
		return NewSandbox(logger), nil
	case NameVaultpay:
		return NewVaultpayClient(logger, cfg)
	}
	return nil, fmt.Errorf("verification provider %q has no implementation", name)
}
