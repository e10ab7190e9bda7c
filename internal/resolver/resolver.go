// Package resolver verifies external bank accounts through the configured
// verification provider, with a redis hot cache in front of a durable
// Postgres cache. Resolution results feed the counterparty snapshot stamped
// onto outbound transfer entries.
package resolver

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/finverse-ledger-engine/internal/data/redis"
	"github.com/finverse-ledger-engine/internal/domain/counterparty"
	"github.com/finverse-ledger-engine/internal/provider"
)

// Service resolves and caches counterparties
type Service struct {
	verifier provider.BankVerificationProvider
	cache    *redis.CounterpartyCache
	repo     counterparty.Repository
	logger   *slog.Logger
}

// NewService creates a counterparty resolver
func NewService(
	logger *slog.Logger,
	verifier provider.BankVerificationProvider,
	cache *redis.CounterpartyCache,
	repo counterparty.Repository,
) *Service {
	return &Service{
		verifier: verifier,
		cache:    cache,
		repo:     repo,
		logger:   logger,
	}
}

// Resolve returns the verified identity behind an account number. Lookup
// order: redis, Postgres, provider. Provider results are written back to both
// caches; an invalid account is not retried and not cached.
func (s *Service) Resolve(ctx context.Context, organizationID uuid.UUID, accountNumber, bankCode string) (*counterparty.Counterparty, error) {
	if cached, _ := s.cache.Get(ctx, organizationID, accountNumber, bankCode); cached != nil {
		return cached, nil
	}

	stored, err := s.repo.GetByAccount(ctx, organizationID, accountNumber, bankCode)
	if err != nil {
		return nil, err
	}
	if stored != nil {
		if err := s.cache.Set(ctx, stored); err != nil {
			s.logger.Warn("Failed to warm counterparty cache", "error", err)
		}
		return stored, nil
	}

	resolved, err := s.verifier.ResolveAccount(ctx, accountNumber, bankCode)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	cp := &counterparty.Counterparty{
		ID:             uuid.New(),
		OrganizationID: organizationID,
		AccountNumber:  resolved.AccountNumber,
		BankCode:       resolved.BankCode,
		AccountName:    resolved.AccountName,
		BankName:       resolved.BankName,
		BankID:         resolved.BankID,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	if err := s.repo.Upsert(ctx, cp); err != nil {
		// Resolution succeeded; a cache write failure must not block the caller
		s.logger.Error("Failed to persist resolved counterparty", "error", err)
	}
	if err := s.cache.Set(ctx, cp); err != nil {
		s.logger.Warn("Failed to warm counterparty cache", "error", err)
	}

	return cp, nil
}

// SaveRecipient flags a resolved counterparty for the saved-recipient list.
// The account is resolved first so only verified accounts can be saved.
func (s *Service) SaveRecipient(ctx context.Context, organizationID uuid.UUID, accountNumber, bankCode string) (*counterparty.Counterparty, error) {
	cp, err := s.Resolve(ctx, organizationID, accountNumber, bankCode)
	if err != nil {
		return nil, err
	}
	if cp.IsRecipient {
		return cp, nil
	}
	if err := s.repo.SetRecipient(ctx, cp.ID, true); err != nil {
		return nil, err
	}
	cp.IsRecipient = true
	if err := s.cache.Set(ctx, cp); err != nil {
		s.logger.Warn("Failed to refresh counterparty cache", "error", err)
	}
	return cp, nil
}

// RemoveRecipient unflags a saved recipient
func (s *Service) RemoveRecipient(ctx context.Context, id uuid.UUID) error {
	return s.repo.SetRecipient(ctx, id, false)
}

// ListRecipients returns the organization's saved recipients
func (s *Service) ListRecipients(ctx context.Context, organizationID uuid.UUID) ([]*counterparty.Counterparty, error) {
	return s.repo.ListRecipients(ctx, organizationID)
}
