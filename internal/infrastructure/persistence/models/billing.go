package models

import (
	"time"

	"github.com/consulta/backend/internal/domain/billing"
	"github.com/consulta/backend/internal/domain/shared"
	"github.com/google/uuid"
)

// SubscriptionModel is the persistence model for the Subscription entity.
type SubscriptionModel struct {
	BaseModel
	UserID               uuid.UUID                  `gorm:"type:uuid;not null;index:idx_subscription_user_status,priority:1"`
	PlanID               string                     `gorm:"type:varchar(50);not null"`
	Status               billing.SubscriptionStatus `gorm:"type:varchar(20);not null;index:idx_subscription_user_status,priority:2"`
	StripeSubscriptionID string                     `gorm:"type:varchar(100);not null;uniqueIndex:idx_subscription_stripe_id"`
	CurrentPeriodStart   time.Time                  `gorm:"type:timestamptz;not null"`
	CurrentPeriodEnd     time.Time                  `gorm:"type:timestamptz;not null"`
	CancelAtPeriodEnd    bool                       `gorm:"not null;default:false"`
	RenewalCount         int                        `gorm:"not null;default:0"`
	LastRenewalAt        *time.Time                 `gorm:"type:timestamptz"`
}

// TableName returns the table name for GORM
func (SubscriptionModel) TableName() string {
	return "subscriptions"
}

// ToDomain converts the persistence model to a domain Subscription entity.
func (m *SubscriptionModel) ToDomain() *billing.Subscription {
	return &billing.Subscription{
		BaseEntity: shared.BaseEntity{
			ID:        m.ID,
			CreatedAt: m.CreatedAt,
			UpdatedAt: m.UpdatedAt,
		},
		UserID:               m.UserID,
		PlanID:               m.PlanID,
		Status:               m.Status,
		StripeSubscriptionID: m.StripeSubscriptionID,
		CurrentPeriodStart:   m.CurrentPeriodStart,
		CurrentPeriodEnd:     m.CurrentPeriodEnd,
		CancelAtPeriodEnd:    m.CancelAtPeriodEnd,
		RenewalCount:         m.RenewalCount,
		LastRenewalAt:        m.LastRenewalAt,
	}
}

// FromDomain populates the persistence model from a domain Subscription entity.
func (m *SubscriptionModel) FromDomain(s *billing.Subscription) {
	m.FromDomainBaseEntity(s.BaseEntity)
	m.UserID = s.UserID
	m.PlanID = s.PlanID
	m.Status = s.Status
	m.StripeSubscriptionID = s.StripeSubscriptionID
	m.CurrentPeriodStart = s.CurrentPeriodStart
	m.CurrentPeriodEnd = s.CurrentPeriodEnd
	m.CancelAtPeriodEnd = s.CancelAtPeriodEnd
	m.RenewalCount = s.RenewalCount
	m.LastRenewalAt = s.LastRenewalAt
}

// SubscriptionModelFromDomain creates a new persistence model from a domain Subscription entity.
func SubscriptionModelFromDomain(s *billing.Subscription) *SubscriptionModel {
	m := &SubscriptionModel{}
	m.FromDomain(s)
	return m
}

// SubscriptionPlanModel is the persistence model for the SubscriptionPlan entity.
type SubscriptionPlanModel struct {
	BaseModel
	Code          string `gorm:"type:varchar(50);not null;uniqueIndex:idx_plan_code"`
	Name          string `gorm:"type:varchar(200);not null"`
	PriceCents    int64  `gorm:"not null"`
	CreditCents   int64  `gorm:"not null"`
	StripePriceID string `gorm:"type:varchar(100);index:idx_plan_stripe_price"`
	IsActive      bool   `gorm:"not null;default:true"`
}

// TableName returns the table name for GORM
func (SubscriptionPlanModel) TableName() string {
	return "subscription_plans"
}

// ToDomain converts the persistence model to a domain SubscriptionPlan entity.
func (m *SubscriptionPlanModel) ToDomain() *billing.SubscriptionPlan {
	return &billing.SubscriptionPlan{
		BaseEntity: shared.BaseEntity{
			ID:        m.ID,
			CreatedAt: m.CreatedAt,
			UpdatedAt: m.UpdatedAt,
		},
		Code:          m.Code,
		Name:          m.Name,
		PriceCents:    m.PriceCents,
		CreditCents:   m.CreditCents,
		StripePriceID: m.StripePriceID,
		IsActive:      m.IsActive,
	}
}

// FromDomain populates the persistence model from a domain SubscriptionPlan entity.
func (m *SubscriptionPlanModel) FromDomain(p *billing.SubscriptionPlan) {
	m.FromDomainBaseEntity(p.BaseEntity)
	m.Code = p.Code
	m.Name = p.Name
	m.PriceCents = p.PriceCents
	m.CreditCents = p.CreditCents
	m.StripePriceID = p.StripePriceID
	m.IsActive = p.IsActive
}

// SubscriptionPlanModelFromDomain creates a new persistence model from a domain SubscriptionPlan entity.
func SubscriptionPlanModelFromDomain(p *billing.SubscriptionPlan) *SubscriptionPlanModel {
	m := &SubscriptionPlanModel{}
	m.FromDomain(p)
	return m
}

// WebhookEventModel is the persistence model for the WebhookEventRecord.
// The unique index on EventID is what makes Claim safe under concurrent
// deliveries of the same event.
type WebhookEventModel struct {
	BaseModel
	EventID     string     `gorm:"type:varchar(100);not null;uniqueIndex:idx_webhook_event_id"`
	EventType   string     `gorm:"type:varchar(100);not null;index:idx_webhook_event_type"`
	Processed   bool       `gorm:"not null;default:false"`
	ReceivedAt  time.Time  `gorm:"type:timestamptz;not null"`
	ProcessedAt *time.Time `gorm:"type:timestamptz"`
}

// TableName returns the table name for GORM
func (WebhookEventModel) TableName() string {
	return "webhook_events"
}

// ToDomain converts the persistence model to a domain WebhookEventRecord.
func (m *WebhookEventModel) ToDomain() *billing.WebhookEventRecord {
	return &billing.WebhookEventRecord{
		BaseEntity: shared.BaseEntity{
			ID:        m.ID,
			CreatedAt: m.CreatedAt,
			UpdatedAt: m.UpdatedAt,
		},
		EventID:     m.EventID,
		EventType:   m.EventType,
		Processed:   m.Processed,
		ReceivedAt:  m.ReceivedAt,
		ProcessedAt: m.ProcessedAt,
	}
}

// FromDomain populates the persistence model from a domain WebhookEventRecord.
func (m *WebhookEventModel) FromDomain(r *billing.WebhookEventRecord) {
	m.FromDomainBaseEntity(r.BaseEntity)
	m.EventID = r.EventID
	m.EventType = r.EventType
	m.Processed = r.Processed
	m.ReceivedAt = r.ReceivedAt
	m.ProcessedAt = r.ProcessedAt
}

// WebhookEventModelFromDomain creates a new persistence model from a domain WebhookEventRecord.
func WebhookEventModelFromDomain(r *billing.WebhookEventRecord) *WebhookEventModel {
	m := &WebhookEventModel{}
	m.FromDomain(r)
	return m
}
