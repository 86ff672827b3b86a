package billing

import (
	"time"

	"github.com/consulta/backend/internal/domain/shared"
)

// SubscriptionPlan describes a purchasable credit plan. PriceCents is what
// the customer pays per cycle; CreditCents is the credit granted to the
// ledger for that payment. The two are usually equal (1:1 currency-to-
// credit) but promotional plans may grant more credit than they cost.
type SubscriptionPlan struct {
	shared.BaseEntity
	Code          string
	Name          string
	PriceCents    int64
	CreditCents   int64
	StripePriceID string
	IsActive      bool
}

// NewSubscriptionPlan creates an active plan
func NewSubscriptionPlan(code, name string, priceCents, creditCents int64, stripePriceID string) (*SubscriptionPlan, error) {
	if code == "" {
		return nil, shared.NewDomainError("INVALID_PLAN", "Plan code cannot be empty")
	}
	if priceCents <= 0 {
		return nil, shared.NewDomainError("INVALID_PRICE", "Plan price must be positive")
	}
	if creditCents <= 0 {
		return nil, shared.NewDomainError("INVALID_CREDIT", "Plan credit must be positive")
	}

	return &SubscriptionPlan{
		BaseEntity:    shared.NewBaseEntity(),
		Code:          code,
		Name:          name,
		PriceCents:    priceCents,
		CreditCents:   creditCents,
		StripePriceID: stripePriceID,
		IsActive:      true,
	}, nil
}

// Deactivate hides the plan from new subscriptions; existing subscriptions
// keep renewing against it.
func (p *SubscriptionPlan) Deactivate() {
	p.IsActive = false
	p.UpdatedAt = time.Now()
}
