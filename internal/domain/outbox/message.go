package outbox

import (
	"encoding/json"
	"time"

	"github.com/finverse-ledger-engine/internal/domain/entry"
	"github.com/finverse-ledger-engine/internal/domain/shared"
	"github.com/google/uuid"
)

// Message stores a settled wallet entry for reliable projection into the
// statement read model. Written in the same transaction as the settlement.
type Message struct {
	ID            int64               `json:"id"`
	EntryID       uuid.UUID           `json:"entry_id"`
	WalletID      uuid.UUID           `json:"wallet_id"`
	Payload       json.RawMessage     `json:"payload"`
	Status        shared.OutboxStatus `json:"status"`
	Attempts      int                 `json:"attempts"`
	CreatedAt     time.Time           `json:"created_at"`
	LastAttemptAt *time.Time          `json:"last_attempt_at,omitempty"`
}

func NewMessage(e *entry.WalletEntry) (*Message, error) {
	payload, err := json.Marshal(e)
	if err != nil {
		return nil, err
	}

	return &Message{
		EntryID:   e.ID,
		WalletID:  e.WalletID,
		Payload:   payload,
		Status:    shared.OutboxStatusPending,
		Attempts:  0,
		CreatedAt: time.Now(),
	}, nil
}

func (m *Message) IncrementAttempts() {
	m.Attempts++
	now := time.Now()
	m.LastAttemptAt = &now
}

func (m *Message) MarkAsProcessed() {
	m.Status = shared.OutboxStatusProcessed
	now := time.Now()
	m.LastAttemptAt = &now
}

func (m *Message) MarkAsFailed() {
	m.Status = shared.OutboxStatusFailedToPublish
	now := time.Now()
	m.LastAttemptAt = &now
}

// GetWalletEntry extracts the wallet entry from the payload
func (m *Message) GetWalletEntry() (*entry.WalletEntry, error) {
	var e entry.WalletEntry
	if err := json.Unmarshal(m.Payload, &e); err != nil {
		return nil, err
	}
	return &e, nil
}
