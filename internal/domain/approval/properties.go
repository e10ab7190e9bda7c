package approval

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
)

// Properties is the workflow-type-tagged payload snapshotted onto a request.
// One concrete variant exists per workflow type; the executor dispatches
// exhaustively on the variant, so an unsupported payload is a compile error
// rather than a runtime surprise.
type Properties interface {
	WorkflowType() WorkflowType
}

// ExpenseProperties funds and activates a pending budget
type ExpenseProperties struct {
	BudgetID uuid.UUID `json:"budget_id"`
	Amount   int64     `json:"amount"`
}

func (ExpenseProperties) WorkflowType() WorkflowType { return WorkflowExpense }

// BudgetExtensionProperties raises a budget's ceiling by Extra
type BudgetExtensionProperties struct {
	BudgetID uuid.UUID `json:"budget_id"`
	Extra    int64     `json:"extra"`
}

func (BudgetExtensionProperties) WorkflowType() WorkflowType { return WorkflowBudgetExtension }

// TransactionProperties snapshots an outbound transfer for deferred execution
type TransactionProperties struct {
	OrganizationID uuid.UUID  `json:"organization_id"`
	WalletID       uuid.UUID  `json:"wallet_id"`
	BudgetID       *uuid.UUID `json:"budget_id,omitempty"`
	UserID         uuid.UUID  `json:"user_id"`
	Amount         int64      `json:"amount"`
	Fee            int64      `json:"fee"`
	Currency       string     `json:"currency"`
	AccountNumber  string     `json:"account_number"`
	BankCode       string     `json:"bank_code"`
	Narration      string     `json:"narration"`
	Reference      string     `json:"reference"`
	InvoiceID      string     `json:"invoice_id,omitempty"`
}

func (TransactionProperties) WorkflowType() WorkflowType { return WorkflowTransaction }

// PayrollProperties marks a payroll run approved for processing
type PayrollProperties struct {
	PayrollID uuid.UUID `json:"payroll_id"`
}

func (PayrollProperties) WorkflowType() WorkflowType { return WorkflowPayroll }

// propertiesEnvelope is the persisted form: the workflow type tag plus the
// raw variant payload
type propertiesEnvelope struct {
	WorkflowType WorkflowType    `json:"workflow_type"`
	Payload      json.RawMessage `json:"payload"`
}

// EncodeProperties serializes a Properties variant into its tagged envelope
func EncodeProperties(p Properties) ([]byte, error) {
	payload, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal properties payload: %w", err)
	}
	return json.Marshal(propertiesEnvelope{
		WorkflowType: p.WorkflowType(),
		Payload:      payload,
	})
}

// DecodeProperties deserializes a tagged envelope back into its typed variant
func DecodeProperties(data []byte) (Properties, error) {
	var env propertiesEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("failed to unmarshal properties envelope: %w", err)
	}

	switch env.WorkflowType {
	case WorkflowExpense:
		var p ExpenseProperties
		if err := json.Unmarshal(env.Payload, &p); err != nil {
			return nil, fmt.Errorf("failed to unmarshal expense properties: %w", err)
		}
		return p, nil
	case WorkflowBudgetExtension:
		var p BudgetExtensionProperties
		if err := json.Unmarshal(env.Payload, &p); err != nil {
			return nil, fmt.Errorf("failed to unmarshal budget extension properties: %w", err)
		}
		return p, nil
	case WorkflowTransaction:
		var p TransactionProperties
		if err := json.Unmarshal(env.Payload, &p); err != nil {
			return nil, fmt.Errorf("failed to unmarshal transaction properties: %w", err)
		}
		return p, nil
	case WorkflowPayroll:
		var p PayrollProperties
		if err := json.Unmarshal(env.Payload, &p); err != nil {
			return nil, fmt.Errorf("failed to unmarshal payroll properties: %w", err)
		}
		return p, nil
	default:
		return nil, fmt.Errorf("unknown workflow type in properties envelope: %q", env.WorkflowType)
	}
}
