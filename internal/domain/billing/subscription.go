package billing

import (
	"time"

	"github.com/consulta/backend/internal/domain/shared"
	"github.com/google/uuid"
)

// SubscriptionStatus represents the lifecycle status of a subscription
type SubscriptionStatus string

const (
	// SubscriptionStatusActive is a subscription in good standing
	SubscriptionStatusActive SubscriptionStatus = "active"
	// SubscriptionStatusCanceled is a subscription terminated locally or at the provider
	SubscriptionStatusCanceled SubscriptionStatus = "canceled"
	// SubscriptionStatusPastDue is a subscription whose latest invoice failed
	SubscriptionStatusPastDue SubscriptionStatus = "past_due"
)

// String returns the string representation of SubscriptionStatus
func (s SubscriptionStatus) String() string {
	return string(s)
}

// IsValid returns true if the status is valid
func (s SubscriptionStatus) IsValid() bool {
	switch s {
	case SubscriptionStatusActive, SubscriptionStatusCanceled, SubscriptionStatusPastDue:
		return true
	}
	return false
}

// Subscription links a user to a plan at the payment provider. At most one
// subscription per user may be active at any instant; the reconciler's
// supersession rule cancels older active subscriptions when a new one is
// created, because the checkout flow allows starting a second subscription
// before canceling the first.
type Subscription struct {
	shared.BaseEntity
	UserID               uuid.UUID
	PlanID               string
	Status               SubscriptionStatus
	StripeSubscriptionID string
	CurrentPeriodStart   time.Time
	CurrentPeriodEnd     time.Time
	CancelAtPeriodEnd    bool
	RenewalCount         int
	LastRenewalAt        *time.Time
}

// NewSubscription creates an active subscription
func NewSubscription(userID uuid.UUID, planID, stripeSubscriptionID string, periodStart, periodEnd time.Time) (*Subscription, error) {
	if userID == uuid.Nil {
		return nil, shared.NewDomainError("INVALID_USER", "User ID cannot be empty")
	}
	if planID == "" {
		return nil, shared.NewDomainError("INVALID_PLAN", "Plan ID cannot be empty")
	}
	if stripeSubscriptionID == "" {
		return nil, shared.NewDomainError("INVALID_SUBSCRIPTION", "Stripe subscription ID cannot be empty")
	}

	return &Subscription{
		BaseEntity:           shared.NewBaseEntity(),
		UserID:               userID,
		PlanID:               planID,
		Status:               SubscriptionStatusActive,
		StripeSubscriptionID: stripeSubscriptionID,
		CurrentPeriodStart:   periodStart,
		CurrentPeriodEnd:     periodEnd,
	}, nil
}

// IsActive returns true if the subscription is in good standing
func (s *Subscription) IsActive() bool {
	return s.Status == SubscriptionStatusActive
}

// Cancel marks the subscription canceled. Canceling an already-canceled
// subscription is a no-op so provider events can be replayed safely.
func (s *Subscription) Cancel() {
	if s.Status == SubscriptionStatusCanceled {
		return
	}
	s.Status = SubscriptionStatusCanceled
	s.UpdatedAt = time.Now()
}

// MarkPastDue flags the subscription after a failed invoice
func (s *Subscription) MarkPastDue() {
	if s.Status == SubscriptionStatusCanceled {
		return
	}
	s.Status = SubscriptionStatusPastDue
	s.UpdatedAt = time.Now()
}

// Reactivate returns a past_due or canceled subscription to active, used
// when the provider reports the subscription healthy again.
func (s *Subscription) Reactivate() {
	s.Status = SubscriptionStatusActive
	s.UpdatedAt = time.Now()
}

// UpdatePeriod overwrites the billing period boundaries from a provider event
func (s *Subscription) UpdatePeriod(start, end time.Time) {
	s.CurrentPeriodStart = start
	s.CurrentPeriodEnd = end
	s.UpdatedAt = time.Now()
}

// RecordRenewal bumps the on-demand renewal counter
func (s *Subscription) RecordRenewal() {
	now := time.Now()
	s.RenewalCount++
	s.LastRenewalAt = &now
	s.UpdatedAt = now
}

// SetCancelAtPeriodEnd schedules or unschedules cancellation at period end
func (s *Subscription) SetCancelAtPeriodEnd(cancel bool) {
	s.CancelAtPeriodEnd = cancel
	s.UpdatedAt = time.Now()
}
