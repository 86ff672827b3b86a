package credit

import (
	"time"

	"github.com/consulta/backend/internal/domain/credit"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// =============================================================================
// Request DTOs
// =============================================================================

// CreditRequest represents a request to add credit to a user's ledger
type CreditRequest struct {
	Kind        string `json:"kind" binding:"required,oneof=purchase add auto_renewal"`
	AmountCents int64  `json:"amount_cents" binding:"required,gt=0"`
	Description string `json:"description" binding:"required,max=500"`
	PaymentRef  string `json:"payment_ref" binding:"omitempty,max=255"`
}

// DebitRequest represents a request to deduct credit from a user's ledger
type DebitRequest struct {
	Kind        string `json:"kind" binding:"required,oneof=usage subtract"`
	AmountCents int64  `json:"amount_cents" binding:"required,gt=0"`
	Description string `json:"description" binding:"required,max=500"`
}

// TransactionListFilter represents filter options for ledger transaction list
type TransactionListFilter struct {
	Kind     string `form:"kind" binding:"omitempty,oneof=purchase add usage subtract auto_renewal"`
	DateFrom string `form:"date_from"`
	DateTo   string `form:"date_to"`
	Page     int    `form:"page" binding:"min=1"`
	PageSize int    `form:"page_size" binding:"min=1,max=100"`
}

// CreateConsultationTypeRequest represents a request to add a catalog entry
type CreateConsultationTypeRequest struct {
	Code      string `json:"code" binding:"required,consultation_code,max=64"`
	Name      string `json:"name" binding:"required,max=255"`
	CostCents int64  `json:"cost_cents" binding:"min=0"`
}

// UpdateConsultationTypeRequest represents a request to reprice or toggle a
// catalog entry
type UpdateConsultationTypeRequest struct {
	Name      *string `json:"name" binding:"omitempty,max=255"`
	CostCents *int64  `json:"cost_cents" binding:"omitempty,min=0"`
	IsActive  *bool   `json:"is_active"`
}

// =============================================================================
// Response DTOs
// =============================================================================

// LedgerTransactionResponse represents a ledger transaction in API responses
type LedgerTransactionResponse struct {
	ID                uuid.UUID       `json:"id"`
	UserID            uuid.UUID       `json:"user_id"`
	Kind              string          `json:"kind"`
	AmountCents       int64           `json:"amount_cents"`
	Amount            decimal.Decimal `json:"amount"`
	BalanceAfterCents int64           `json:"balance_after_cents"`
	BalanceAfter      decimal.Decimal `json:"balance_after"`
	Description       string          `json:"description"`
	ConsultationID    *uuid.UUID      `json:"consultation_id,omitempty"`
	PaymentRef        *string         `json:"payment_ref,omitempty"`
	CreatedAt         time.Time       `json:"created_at"`
}

// LedgerTransactionListResponse represents a paginated transaction list
type LedgerTransactionListResponse struct {
	Transactions []LedgerTransactionResponse `json:"transactions"`
	Total        int64                       `json:"total"`
	Page         int                         `json:"page"`
	PageSize     int                         `json:"page_size"`
}

// BalanceResponse represents a user's current credit balance
type BalanceResponse struct {
	UserID       uuid.UUID       `json:"user_id"`
	BalanceCents int64           `json:"balance_cents"`
	Balance      decimal.Decimal `json:"balance"`
	AsOf         time.Time       `json:"as_of"`
}

// LedgerAuditResponse reports whether a user's ledger satisfies the
// running-sum property
type LedgerAuditResponse struct {
	UserID             uuid.UUID `json:"user_id"`
	SumAmountCents     int64     `json:"sum_amount_cents"`
	LatestBalanceCents int64     `json:"latest_balance_cents"`
	Consistent         bool      `json:"consistent"`
}

// ConsultationTypeResponse represents a catalog entry in API responses
type ConsultationTypeResponse struct {
	ID        uuid.UUID       `json:"id"`
	Code      string          `json:"code"`
	Name      string          `json:"name"`
	CostCents int64           `json:"cost_cents"`
	Cost      decimal.Decimal `json:"cost"`
	IsActive  bool            `json:"is_active"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// QuoteResponse represents the priced cost of a set of sub-services before
// any credit is reserved
type QuoteResponse struct {
	Codes          []string         `json:"codes"`
	CostByCode     map[string]int64 `json:"cost_by_code"`
	TotalCostCents int64            `json:"total_cost_cents"`
	TotalCost      decimal.Decimal  `json:"total_cost"`
}

// =============================================================================
// Converters
// =============================================================================

// centsToDecimal converts integer cents to a two-place decimal amount for
// display. All arithmetic stays in cents; decimals appear only at the edge.
func centsToDecimal(cents int64) decimal.Decimal {
	return decimal.NewFromInt(cents).Div(decimal.NewFromInt(100))
}

// ToLedgerTransactionResponse converts a domain LedgerTransaction to LedgerTransactionResponse
func ToLedgerTransactionResponse(t *credit.LedgerTransaction) LedgerTransactionResponse {
	return LedgerTransactionResponse{
		ID:                t.ID,
		UserID:            t.UserID,
		Kind:              string(t.Kind),
		AmountCents:       t.AmountCents,
		Amount:            centsToDecimal(t.AmountCents),
		BalanceAfterCents: t.BalanceAfterCents,
		BalanceAfter:      centsToDecimal(t.BalanceAfterCents),
		Description:       t.Description,
		ConsultationID:    t.ConsultationID,
		PaymentRef:        t.PaymentRef,
		CreatedAt:         t.CreatedAt,
	}
}

// ToLedgerTransactionResponses converts a slice of domain LedgerTransactions to responses
func ToLedgerTransactionResponses(transactions []*credit.LedgerTransaction) []LedgerTransactionResponse {
	responses := make([]LedgerTransactionResponse, len(transactions))
	for i, t := range transactions {
		responses[i] = ToLedgerTransactionResponse(t)
	}
	return responses
}

// ToConsultationTypeResponse converts a domain ConsultationType to ConsultationTypeResponse
func ToConsultationTypeResponse(ct *credit.ConsultationType) ConsultationTypeResponse {
	return ConsultationTypeResponse{
		ID:        ct.ID,
		Code:      ct.Code,
		Name:      ct.Name,
		CostCents: ct.CostCents,
		Cost:      centsToDecimal(ct.CostCents),
		IsActive:  ct.IsActive,
		CreatedAt: ct.CreatedAt,
		UpdatedAt: ct.UpdatedAt,
	}
}

// ToConsultationTypeResponses converts a slice of catalog entries to responses
func ToConsultationTypeResponses(types []*credit.ConsultationType) []ConsultationTypeResponse {
	responses := make([]ConsultationTypeResponse, len(types))
	for i, ct := range types {
		responses[i] = ToConsultationTypeResponse(ct)
	}
	return responses
}
