package policy

import (
	"context"

	"github.com/google/uuid"
)

// Repository manages transfer policy persistence. Policies are read far more
// often than written; evaluation never mutates them, so no WithTx is needed.
type Repository interface {
	Create(ctx context.Context, p *TransferPolicy) error
	Delete(ctx context.Context, id uuid.UUID) error
	ListByKind(ctx context.Context, organizationID uuid.UUID, kind Kind) ([]*TransferPolicy, error)
}
