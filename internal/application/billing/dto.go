package billing

import (
	"time"

	"github.com/consulta/backend/internal/domain/billing"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// =============================================================================
// Request DTOs
// =============================================================================

// CreatePlanRequest represents a request to register a purchasable plan
type CreatePlanRequest struct {
	Code          string `json:"code" binding:"required,max=64"`
	Name          string `json:"name" binding:"required,max=255"`
	PriceCents    int64  `json:"price_cents" binding:"required,gt=0"`
	CreditCents   int64  `json:"credit_cents" binding:"required,gt=0"`
	StripePriceID string `json:"stripe_price_id" binding:"required,max=255"`
}

// =============================================================================
// Response DTOs
// =============================================================================

// PlanResponse represents a subscription plan in API responses
type PlanResponse struct {
	ID            uuid.UUID       `json:"id"`
	Code          string          `json:"code"`
	Name          string          `json:"name"`
	PriceCents    int64           `json:"price_cents"`
	Price         decimal.Decimal `json:"price"`
	CreditCents   int64           `json:"credit_cents"`
	Credit        decimal.Decimal `json:"credit"`
	StripePriceID string          `json:"stripe_price_id"`
	IsActive      bool            `json:"is_active"`
	CreatedAt     time.Time       `json:"created_at"`
}

// SubscriptionResponse represents a subscription in API responses
type SubscriptionResponse struct {
	ID                   uuid.UUID  `json:"id"`
	UserID               uuid.UUID  `json:"user_id"`
	PlanID               string     `json:"plan_id"`
	Status               string     `json:"status"`
	StripeSubscriptionID string     `json:"stripe_subscription_id"`
	CurrentPeriodStart   time.Time  `json:"current_period_start"`
	CurrentPeriodEnd     time.Time  `json:"current_period_end"`
	CancelAtPeriodEnd    bool       `json:"cancel_at_period_end"`
	RenewalCount         int        `json:"renewal_count"`
	LastRenewalAt        *time.Time `json:"last_renewal_at,omitempty"`
	CreatedAt            time.Time  `json:"created_at"`
}

// WebhookResult contains the outcome of processing one provider event
type WebhookResult struct {
	EventID   string `json:"event_id"`
	EventType string `json:"event_type"`
	Processed bool   `json:"processed"`
	Message   string `json:"message,omitempty"`
}

// =============================================================================
// Converters
// =============================================================================

func centsToDecimal(cents int64) decimal.Decimal {
	return decimal.NewFromInt(cents).Div(decimal.NewFromInt(100))
}

// ToPlanResponse converts a domain SubscriptionPlan to PlanResponse
func ToPlanResponse(p *billing.SubscriptionPlan) PlanResponse {
	return PlanResponse{
		ID:            p.ID,
		Code:          p.Code,
		Name:          p.Name,
		PriceCents:    p.PriceCents,
		Price:         centsToDecimal(p.PriceCents),
		CreditCents:   p.CreditCents,
		Credit:        centsToDecimal(p.CreditCents),
		StripePriceID: p.StripePriceID,
		IsActive:      p.IsActive,
		CreatedAt:     p.CreatedAt,
	}
}

// ToPlanResponses converts a slice of domain SubscriptionPlans to responses
func ToPlanResponses(plans []*billing.SubscriptionPlan) []PlanResponse {
	responses := make([]PlanResponse, len(plans))
	for i, p := range plans {
		responses[i] = ToPlanResponse(p)
	}
	return responses
}

// ToSubscriptionResponse converts a domain Subscription to SubscriptionResponse
func ToSubscriptionResponse(s *billing.Subscription) SubscriptionResponse {
	return SubscriptionResponse{
		ID:                   s.ID,
		UserID:               s.UserID,
		PlanID:               s.PlanID,
		Status:               string(s.Status),
		StripeSubscriptionID: s.StripeSubscriptionID,
		CurrentPeriodStart:   s.CurrentPeriodStart,
		CurrentPeriodEnd:     s.CurrentPeriodEnd,
		CancelAtPeriodEnd:    s.CancelAtPeriodEnd,
		RenewalCount:         s.RenewalCount,
		LastRenewalAt:        s.LastRenewalAt,
		CreatedAt:            s.CreatedAt,
	}
}

// ToSubscriptionResponses converts a slice of domain Subscriptions to responses
func ToSubscriptionResponses(subs []*billing.Subscription) []SubscriptionResponse {
	responses := make([]SubscriptionResponse, len(subs))
	for i, s := range subs {
		responses[i] = ToSubscriptionResponse(s)
	}
	return responses
}
