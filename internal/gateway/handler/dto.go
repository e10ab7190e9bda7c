package handler

// InitiateTransferRequest represents a request to send money to a counterparty
type InitiateTransferRequest struct {
	OrganizationID string `json:"organization_id" binding:"required,uuid"`
	WalletID       string `json:"wallet_id" binding:"required,uuid"`
	BudgetID       string `json:"budget_id,omitempty" binding:"omitempty,uuid"`
	DepartmentID   string `json:"department_id,omitempty" binding:"omitempty,uuid"`
	UserID         string `json:"user_id" binding:"required,uuid"`
	IsOwner        bool   `json:"is_owner"`
	Amount         int64  `json:"amount" binding:"required,gt=0"`
	Currency       string `json:"currency" binding:"required,len=3"`
	AccountNumber  string `json:"account_number" binding:"required"`
	BankCode       string `json:"bank_code" binding:"required"`
	Narration      string `json:"narration,omitempty"`
	Reference      string `json:"reference,omitempty"`
	InvoiceID      string `json:"invoice_id,omitempty"`
}

// EntryResponse represents a wallet entry in API responses
type EntryResponse struct {
	ID            string `json:"id"`
	WalletID      string `json:"wallet_id"`
	BudgetID      string `json:"budget_id,omitempty"`
	UserID        string `json:"user_id"`
	Type          string `json:"type"`
	Status        string `json:"status"`
	Scope         string `json:"scope"`
	Amount        int64  `json:"amount"`
	Fee           int64  `json:"fee"`
	Currency      string `json:"currency"`
	BalanceBefore int64  `json:"balance_before"`
	BalanceAfter  int64  `json:"balance_after"`
	Reference     string `json:"reference"`
	ProviderRef   string `json:"provider_ref,omitempty"`
	Reversed      bool   `json:"reversed"`
	FailureReason string `json:"failure_reason,omitempty"`
	CreatedAt     string `json:"created_at"`
	SettledAt     string `json:"settled_at,omitempty"`
}

// TransferResponse represents the outcome of a transfer request: either an
// executed entry or a pending approval request
type TransferResponse struct {
	Entry             *EntryResponse `json:"entry,omitempty"`
	ApprovalRequestID string         `json:"approval_request_id,omitempty"`
	Status            string         `json:"status"`
}

// ReviewRequest represents a reviewer's decision on a pending approval
type ReviewRequest struct {
	ReviewerID string `json:"reviewer_id" binding:"required,uuid"`
	Decision   string `json:"decision" binding:"required,oneof=APPROVED DECLINED"`
	Reason     string `json:"reason,omitempty"`
}

// ReviewEntryResponse represents one reviewer's state on a request
type ReviewEntryResponse struct {
	UserID string `json:"user_id"`
	Status string `json:"status"`
	Reason string `json:"reason,omitempty"`
}

// ApprovalRequestResponse represents an approval request in API responses
type ApprovalRequestResponse struct {
	ID           string                `json:"id"`
	WorkflowType string                `json:"workflow_type"`
	RequesterID  string                `json:"requester_id"`
	ApprovalType string                `json:"approval_type"`
	Status       string                `json:"status"`
	Reviews      []ReviewEntryResponse `json:"reviews"`
	CreatedAt    string                `json:"created_at"`
	ResolvedAt   string                `json:"resolved_at,omitempty"`
}

// ResolveAccountQuery represents counterparty resolution query parameters
type ResolveAccountQuery struct {
	OrganizationID string `form:"organization_id" binding:"required,uuid"`
	AccountNumber  string `form:"account_number" binding:"required"`
	BankCode       string `form:"bank_code" binding:"required"`
}

// SaveRecipientRequest represents a request to save a counterparty as a recipient
type SaveRecipientRequest struct {
	OrganizationID string `json:"organization_id" binding:"required,uuid"`
	AccountNumber  string `json:"account_number" binding:"required"`
	BankCode       string `json:"bank_code" binding:"required"`
}

// CounterpartyResponse represents a resolved counterparty in API responses
type CounterpartyResponse struct {
	ID            string `json:"id"`
	AccountNumber string `json:"account_number"`
	AccountName   string `json:"account_name"`
	BankCode      string `json:"bank_code"`
	BankName      string `json:"bank_name,omitempty"`
	IsRecipient   bool   `json:"is_recipient"`
}

// CreateBudgetRequest represents a request to carve a budget from a wallet
type CreateBudgetRequest struct {
	OrganizationID string               `json:"organization_id" binding:"required,uuid"`
	WalletID       string               `json:"wallet_id" binding:"required,uuid"`
	RequesterID    string               `json:"requester_id" binding:"required,uuid"`
	IsOwner        bool                 `json:"is_owner"`
	Name           string               `json:"name" binding:"required"`
	Amount         int64                `json:"amount" binding:"required,gt=0"`
	Currency       string               `json:"currency" binding:"required,len=3"`
	Beneficiaries  []BeneficiaryRequest `json:"beneficiaries,omitempty"`
}

// BeneficiaryRequest represents a budget beneficiary with an optional cap
type BeneficiaryRequest struct {
	UserID     string `json:"user_id" binding:"required,uuid"`
	Allocation *int64 `json:"allocation,omitempty"`
}

// ExtendBudgetRequest represents a request to raise a budget's ceiling
type ExtendBudgetRequest struct {
	RequesterID string `json:"requester_id" binding:"required,uuid"`
	IsOwner     bool   `json:"is_owner"`
	Extra       int64  `json:"extra" binding:"required,gt=0"`
}

// BudgetActionRequest identifies the actor for close/pause/unpause operations
type BudgetActionRequest struct {
	RequesterID string `json:"requester_id" binding:"required,uuid"`
}

// BudgetResponse represents a budget in API responses
type BudgetResponse struct {
	ID         string `json:"id"`
	WalletID   string `json:"wallet_id"`
	Name       string `json:"name"`
	Amount     int64  `json:"amount"`
	Balance    int64  `json:"balance"`
	AmountUsed int64  `json:"amount_used"`
	Status     string `json:"status"`
	Currency   string `json:"currency"`
	CreatedAt  string `json:"created_at"`
}

// WorkflowOutcomeResponse reports whether an action executed immediately or
// was parked behind an approval request
type WorkflowOutcomeResponse struct {
	Executed          bool   `json:"executed"`
	ResourceID        string `json:"resource_id,omitempty"`
	ApprovalRequestID string `json:"approval_request_id,omitempty"`
}

// PaginationParams represents pagination parameters for list endpoints
type PaginationParams struct {
	Page    int `form:"page,default=1" binding:"min=1"`
	PerPage int `form:"per_page,default=10" binding:"min=1,max=100"`
}

// StatementQuery represents statement listing query parameters
type StatementQuery struct {
	Page    int `form:"page,default=1" binding:"min=1"`
	PerPage int `form:"per_page,default=20" binding:"min=1,max=100"`
}

// StatementLineResponse represents one statement line in API responses
type StatementLineResponse struct {
	EntryID       string `json:"entry_id"`
	Type          string `json:"type"`
	Status        string `json:"status"`
	Scope         string `json:"scope"`
	Amount        int64  `json:"amount"`
	Fee           int64  `json:"fee"`
	Currency      string `json:"currency"`
	BalanceBefore int64  `json:"balance_before"`
	BalanceAfter  int64  `json:"balance_after"`
	Reference     string `json:"reference"`
	Counterparty  string `json:"counterparty,omitempty"`
	Narration     string `json:"narration,omitempty"`
	CreatedAt     string `json:"created_at"`
}

// WebhookEventRequest is the raw provider webhook envelope. Providers disagree
// on field names; the webhook service normalizes per provider.
type WebhookEventRequest struct {
	Event string                 `json:"event"`
	Data  map[string]interface{} `json:"data"`
}
