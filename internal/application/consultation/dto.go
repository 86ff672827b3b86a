package consultation

import (
	"encoding/json"
	"time"

	"github.com/consulta/backend/internal/domain/consultation"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// =============================================================================
// Request DTOs
// =============================================================================

// PerformConsultationRequest represents a request to run a consultation
// against a company document
type PerformConsultationRequest struct {
	CompanyDoc string   `json:"company_doc" binding:"required,cnpj"`
	Codes      []string `json:"codes" binding:"required,min=1,dive,consultation_code"`
}

// RefundConsultationRequest represents an administrative refund of a
// consultation's debit
type RefundConsultationRequest struct {
	Reason string `json:"reason" binding:"required,max=500"`
}

// ListFilter represents filter options for consultation list
type ListFilter struct {
	Status   string `form:"status" binding:"omitempty,oneof=priced reserved committed refunded failed"`
	Page     int    `form:"page" binding:"min=1"`
	PageSize int    `form:"page_size" binding:"min=1,max=100"`
}

// =============================================================================
// Response DTOs
// =============================================================================

// DetailResponse represents one sub-service outcome in API responses
type DetailResponse struct {
	Code         string          `json:"code"`
	CostCents    int64           `json:"cost_cents"`
	Success      bool            `json:"success"`
	CacheHit     bool            `json:"cache_hit"`
	ErrorMessage string          `json:"error_message,omitempty"`
	ElapsedMs    int64           `json:"elapsed_ms"`
	Payload      json.RawMessage `json:"payload,omitempty"`
}

// ConsultationResponse represents a consultation in API responses
type ConsultationResponse struct {
	ID                  uuid.UUID        `json:"id"`
	UserID              uuid.UUID        `json:"user_id"`
	CompanyDoc          string           `json:"company_doc"`
	Status              string           `json:"status"`
	TotalCostCents      int64            `json:"total_cost_cents"`
	TotalCost           decimal.Decimal  `json:"total_cost"`
	LedgerTransactionID *uuid.UUID       `json:"ledger_transaction_id,omitempty"`
	Details             []DetailResponse `json:"details"`
	CreatedAt           time.Time        `json:"created_at"`
	UpdatedAt           time.Time        `json:"updated_at"`
}

// ConsultationListResponse represents a paginated consultation list. List
// rows omit payloads; details are returned by the single-consultation
// endpoint.
type ConsultationListResponse struct {
	Consultations []ConsultationResponse `json:"consultations"`
	Total         int64                  `json:"total"`
	Page          int                    `json:"page"`
	PageSize      int                    `json:"page_size"`
}

// =============================================================================
// Converters
// =============================================================================

// ToDetailResponse converts a domain Detail to DetailResponse
func ToDetailResponse(d *consultation.Detail) DetailResponse {
	return DetailResponse{
		Code:         d.Code,
		CostCents:    d.CostCents,
		Success:      d.Success,
		CacheHit:     d.CacheHit,
		ErrorMessage: d.ErrorMessage,
		ElapsedMs:    d.ElapsedMs,
		Payload:      d.Payload,
	}
}

// ToConsultationResponse converts a domain Consultation to ConsultationResponse
func ToConsultationResponse(c *consultation.Consultation) ConsultationResponse {
	details := make([]DetailResponse, len(c.Details))
	for i, d := range c.Details {
		details[i] = ToDetailResponse(d)
	}

	return ConsultationResponse{
		ID:                  c.ID,
		UserID:              c.UserID,
		CompanyDoc:          c.CompanyDoc,
		Status:              string(c.Status),
		TotalCostCents:      c.TotalCostCents,
		TotalCost:           decimal.NewFromInt(c.TotalCostCents).Div(decimal.NewFromInt(100)),
		LedgerTransactionID: c.LedgerTransactionID,
		Details:             details,
		CreatedAt:           c.CreatedAt,
		UpdatedAt:           c.UpdatedAt,
	}
}

// ToConsultationResponses converts a slice of domain Consultations to responses
func ToConsultationResponses(consultations []*consultation.Consultation) []ConsultationResponse {
	responses := make([]ConsultationResponse, len(consultations))
	for i, c := range consultations {
		responses[i] = ToConsultationResponse(c)
	}
	return responses
}
