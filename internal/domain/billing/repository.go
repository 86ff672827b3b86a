package billing

import (
	"context"

	"github.com/consulta/backend/internal/domain/credit"
	"github.com/consulta/backend/internal/domain/identity"
	"github.com/google/uuid"
)

// SubscriptionRepository provides access to subscriptions
type SubscriptionRepository interface {
	Create(ctx context.Context, sub *Subscription) error
	Save(ctx context.Context, sub *Subscription) error
	FindByID(ctx context.Context, id uuid.UUID) (*Subscription, error)
	FindByStripeSubscriptionID(ctx context.Context, stripeSubscriptionID string) (*Subscription, error)

	// FindActiveByUserID returns the user's single active subscription,
	// shared.ErrNotFound when none exists.
	FindActiveByUserID(ctx context.Context, userID uuid.UUID) (*Subscription, error)

	// FindAllActiveByUserID returns every active subscription for a user.
	// More than one element means the supersession rule has work to do.
	FindAllActiveByUserID(ctx context.Context, userID uuid.UUID) ([]*Subscription, error)

	FindByUserID(ctx context.Context, userID uuid.UUID) ([]*Subscription, error)
}

// PlanRepository provides access to subscription plans
type PlanRepository interface {
	Create(ctx context.Context, plan *SubscriptionPlan) error
	Save(ctx context.Context, plan *SubscriptionPlan) error
	FindByCode(ctx context.Context, code string) (*SubscriptionPlan, error)
	FindByStripePriceID(ctx context.Context, stripePriceID string) (*SubscriptionPlan, error)
	FindActive(ctx context.Context) ([]*SubscriptionPlan, error)
}

// WebhookEventRepository provides access to the webhook idempotency guard
type WebhookEventRepository interface {
	// Claim inserts the record, relying on the unique constraint on
	// EventID. Returns (true, nil) when this caller inserted the row,
	// (false, nil) when the event was already claimed by an earlier or
	// concurrent delivery.
	Claim(ctx context.Context, record *WebhookEventRecord) (bool, error)

	FindByEventID(ctx context.Context, eventID string) (*WebhookEventRecord, error)

	// MarkProcessed flips the processed flag for the event
	MarkProcessed(ctx context.Context, eventID string) error
}

// ReconcileRepos is the repository set bound to one reconciliation
// transaction.
type ReconcileRepos struct {
	Events        WebhookEventRepository
	Subscriptions SubscriptionRepository
	Plans         PlanRepository
	Users         identity.UserRepository
	Ledger        credit.LedgerRepository
}

// ReconcileStore runs a provider event's effects and its processed flip in
// one unit of work, so a crash mid-processing leaves the event claimable by
// the provider's retry instead of half-applied.
type ReconcileStore interface {
	// InTx runs fn inside a single database transaction.
	InTx(ctx context.Context, fn func(repos ReconcileRepos) error) error

	// WithUserLock is InTx plus an exclusive lock on the user's row, for
	// event handlers that append to the user's ledger.
	WithUserLock(ctx context.Context, userID uuid.UUID, fn func(repos ReconcileRepos) error) error
}
