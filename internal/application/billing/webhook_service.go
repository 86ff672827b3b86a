package billing

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/consulta/backend/internal/domain/billing"
	"github.com/consulta/backend/internal/domain/credit"
	"github.com/consulta/backend/internal/domain/identity"
	"github.com/consulta/backend/internal/domain/shared"
	"github.com/stripe/stripe-go/v81"
	"github.com/stripe/stripe-go/v81/webhook"
	"go.uber.org/zap"
)

// SubscriptionCanceler cancels a subscription at the payment provider
type SubscriptionCanceler interface {
	CancelSubscription(ctx context.Context, subscriptionID string) error
}

// WebhookService reconciles payment provider events into local billing state.
// Each event is claimed exactly once through the unique event ID, and the
// claim, its effects, and the processed flip share one database transaction:
// a crash mid-processing rolls all of it back and the provider's retry gets a
// clean second attempt. Redelivered events that were already claimed are
// acknowledged without effects.
type WebhookService struct {
	store         billing.ReconcileStore
	userRepo      identity.UserRepository
	gateway       SubscriptionCanceler
	webhookSecret string
	logger        *zap.Logger
}

// WebhookServiceConfig contains configuration for WebhookService
type WebhookServiceConfig struct {
	Store         billing.ReconcileStore
	UserRepo      identity.UserRepository
	Gateway       SubscriptionCanceler
	WebhookSecret string
	Logger        *zap.Logger
}

// NewWebhookService creates a new webhook reconciliation service
func NewWebhookService(cfg WebhookServiceConfig) *WebhookService {
	return &WebhookService{
		store:         cfg.Store,
		userRepo:      cfg.UserRepo,
		gateway:       cfg.Gateway,
		webhookSecret: cfg.WebhookSecret,
		logger:        cfg.Logger,
	}
}

// ProcessWebhook verifies and processes one provider event
func (s *WebhookService) ProcessWebhook(ctx context.Context, payload []byte, signature string) (*WebhookResult, error) {
	event, err := s.verifyEvent(payload, signature)
	if err != nil {
		s.logger.Error("Failed to verify webhook signature",
			zap.Error(err))
		return nil, fmt.Errorf("webhook signature verification failed: %w", err)
	}

	s.logger.Info("Processing Stripe webhook event",
		zap.String("event_id", event.ID),
		zap.String("event_type", string(event.Type)))

	result := &WebhookResult{
		EventID:   event.ID,
		EventType: string(event.Type),
		Processed: true,
	}

	switch event.Type {
	case "customer.subscription.created":
		err = s.handleSubscriptionCreated(ctx, event)
	case "customer.subscription.updated":
		err = s.handleSubscriptionUpdated(ctx, event)
	case "customer.subscription.deleted":
		err = s.handleSubscriptionDeleted(ctx, event)
	case "invoice.paid", "invoice.payment_succeeded":
		err = s.handleInvoicePaid(ctx, event)
	case "invoice.payment_failed":
		err = s.handleInvoicePaymentFailed(ctx, event)
	default:
		s.logger.Debug("Unhandled webhook event type",
			zap.String("event_type", string(event.Type)))
		result.Message = "Event type not handled"
	}

	if err != nil {
		if errors.Is(err, errDuplicateEvent) {
			result.Message = "Event already processed"
			return result, nil
		}
		if errors.Is(err, errMalformedPayload) {
			// Redelivering the same malformed object cannot succeed; ack it
			s.logger.Error("Webhook event payload malformed",
				zap.String("event_id", event.ID),
				zap.String("event_type", string(event.Type)),
				zap.Error(err))
			result.Message = "Event payload malformed"
			return result, nil
		}
		s.logger.Error("Failed to process webhook event",
			zap.String("event_id", event.ID),
			zap.String("event_type", string(event.Type)),
			zap.Error(err))
		result.Processed = false
		result.Message = err.Error()
		return result, err
	}

	return result, nil
}

// errDuplicateEvent aborts a reconciliation transaction when the event was
// already claimed by an earlier delivery. Never surfaced to callers.
var errDuplicateEvent = errors.New("webhook event already claimed")

// errMalformedPayload marks an event whose object cannot be decoded; these
// are acknowledged rather than retried
var errMalformedPayload = errors.New("webhook payload malformed")

// verifyEvent checks the payload signature. With no webhook secret configured
// the payload is accepted unverified; the config layer refuses that outside
// development.
func (s *WebhookService) verifyEvent(payload []byte, signature string) (stripe.Event, error) {
	if s.webhookSecret == "" {
		s.logger.Warn("Webhook secret not configured, accepting unsigned event")
		var event stripe.Event
		if err := json.Unmarshal(payload, &event); err != nil {
			return stripe.Event{}, fmt.Errorf("failed to parse event: %w", err)
		}
		return event, nil
	}
	return webhook.ConstructEvent(payload, signature, s.webhookSecret)
}

// claim inserts the idempotency record for the event, aborting the enclosing
// transaction with errDuplicateEvent when the event was seen before
func claim(ctx context.Context, repos billing.ReconcileRepos, event stripe.Event) error {
	record, err := billing.NewWebhookEventRecord(event.ID, string(event.Type))
	if err != nil {
		return err
	}
	claimed, err := repos.Events.Claim(ctx, record)
	if err != nil {
		return fmt.Errorf("failed to claim event: %w", err)
	}
	if !claimed {
		return errDuplicateEvent
	}
	return nil
}

// handleSubscriptionCreated registers the new subscription and applies the
// supersession rule: any other subscription still active for the same user is
// canceled locally, then best-effort at the provider. The checkout flow
// allows starting a second subscription before the first is canceled, so the
// newest one wins.
func (s *WebhookService) handleSubscriptionCreated(ctx context.Context, event stripe.Event) error {
	var sub stripe.Subscription
	if err := json.Unmarshal(event.Data.Raw, &sub); err != nil {
		return fmt.Errorf("%w: subscription: %v", errMalformedPayload, err)
	}

	customerID := ""
	if sub.Customer != nil {
		customerID = sub.Customer.ID
	}
	if customerID == "" {
		s.logger.Warn("Subscription has no customer ID, skipping",
			zap.String("subscription_id", sub.ID))
		return nil
	}

	user, err := s.userRepo.FindByStripeCustomerID(ctx, customerID)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			// Acknowledge to stop provider retries; the customer is not ours
			// or signup has not finished yet
			s.logger.Warn("User not found for Stripe customer",
				zap.String("customer_id", customerID))
			return nil
		}
		return fmt.Errorf("failed to find user: %w", err)
	}

	var superseded []string
	err = s.store.InTx(ctx, func(repos billing.ReconcileRepos) error {
		if err := claim(ctx, repos, event); err != nil {
			return err
		}

		// Replays after a partial provider retry are possible even with the
		// claim; an existing row means the work is done
		if _, err := repos.Subscriptions.FindByStripeSubscriptionID(ctx, sub.ID); err == nil {
			return repos.Events.MarkProcessed(ctx, event.ID)
		} else if !errors.Is(err, shared.ErrNotFound) {
			return err
		}

		plan, err := s.resolvePlan(ctx, repos, &sub)
		if err != nil {
			return err
		}

		newSub, err := billing.NewSubscription(user.ID, plan.Code, sub.ID,
			time.Unix(sub.CurrentPeriodStart, 0), time.Unix(sub.CurrentPeriodEnd, 0))
		if err != nil {
			return err
		}
		if err := repos.Subscriptions.Create(ctx, newSub); err != nil {
			return err
		}

		actives, err := repos.Subscriptions.FindAllActiveByUserID(ctx, user.ID)
		if err != nil {
			return err
		}
		for _, active := range actives {
			if active.StripeSubscriptionID == sub.ID {
				continue
			}
			active.Cancel()
			if err := repos.Subscriptions.Save(ctx, active); err != nil {
				return err
			}
			superseded = append(superseded, active.StripeSubscriptionID)
		}

		return repos.Events.MarkProcessed(ctx, event.ID)
	})
	if err != nil {
		return err
	}

	// Provider-side cancellation is best effort and outside the transaction;
	// the local cancel already stops renewals from granting credit
	for _, stripeSubID := range superseded {
		s.logger.Info("Superseding older subscription",
			zap.String("user_id", user.ID.String()),
			zap.String("superseded_subscription_id", stripeSubID),
			zap.String("new_subscription_id", sub.ID))
		if s.gateway == nil {
			s.logger.Warn("Payment gateway not configured, skipping provider-side cancel",
				zap.String("subscription_id", stripeSubID))
			continue
		}
		if cancelErr := s.gateway.CancelSubscription(ctx, stripeSubID); cancelErr != nil {
			s.logger.Warn("Failed to cancel superseded subscription at provider",
				zap.String("subscription_id", stripeSubID),
				zap.Error(cancelErr))
		}
	}

	s.logger.Info("Subscription created processed successfully",
		zap.String("user_id", user.ID.String()),
		zap.String("subscription_id", sub.ID))

	return nil
}

// resolvePlan maps the provider subscription to a local plan through the
// Stripe price ID
func (s *WebhookService) resolvePlan(ctx context.Context, repos billing.ReconcileRepos, sub *stripe.Subscription) (*billing.SubscriptionPlan, error) {
	if sub.Items == nil || len(sub.Items.Data) == 0 || sub.Items.Data[0].Price == nil {
		return nil, fmt.Errorf("subscription %s carries no price", sub.ID)
	}
	priceID := sub.Items.Data[0].Price.ID

	plan, err := repos.Plans.FindByStripePriceID(ctx, priceID)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return nil, fmt.Errorf("no plan registered for Stripe price %s", priceID)
		}
		return nil, err
	}
	return plan, nil
}

// handleSubscriptionUpdated syncs period and status changes. Updates carrying
// a period older than what is stored are stale reorderings and are absorbed
// without effect.
func (s *WebhookService) handleSubscriptionUpdated(ctx context.Context, event stripe.Event) error {
	var sub stripe.Subscription
	if err := json.Unmarshal(event.Data.Raw, &sub); err != nil {
		return fmt.Errorf("%w: subscription: %v", errMalformedPayload, err)
	}

	return s.store.InTx(ctx, func(repos billing.ReconcileRepos) error {
		if err := claim(ctx, repos, event); err != nil {
			return err
		}

		local, err := repos.Subscriptions.FindByStripeSubscriptionID(ctx, sub.ID)
		if err != nil {
			if errors.Is(err, shared.ErrNotFound) {
				s.logger.Warn("Subscription not found for update event",
					zap.String("subscription_id", sub.ID))
				return repos.Events.MarkProcessed(ctx, event.ID)
			}
			return err
		}

		incomingPeriodEnd := time.Unix(sub.CurrentPeriodEnd, 0)
		if incomingPeriodEnd.Before(local.CurrentPeriodEnd) {
			s.logger.Warn("Ignoring stale subscription update",
				zap.String("subscription_id", sub.ID),
				zap.Time("incoming_period_end", incomingPeriodEnd),
				zap.Time("stored_period_end", local.CurrentPeriodEnd))
			return repos.Events.MarkProcessed(ctx, event.ID)
		}

		local.UpdatePeriod(time.Unix(sub.CurrentPeriodStart, 0), incomingPeriodEnd)
		local.SetCancelAtPeriodEnd(sub.CancelAtPeriodEnd)

		switch sub.Status {
		case stripe.SubscriptionStatusActive, stripe.SubscriptionStatusTrialing:
			if !local.IsActive() {
				local.Reactivate()
			}
		case stripe.SubscriptionStatusPastDue, stripe.SubscriptionStatusUnpaid:
			local.MarkPastDue()
		case stripe.SubscriptionStatusCanceled:
			local.Cancel()
		}

		if err := repos.Subscriptions.Save(ctx, local); err != nil {
			return err
		}

		return repos.Events.MarkProcessed(ctx, event.ID)
	})
}

// handleSubscriptionDeleted cancels the local subscription
func (s *WebhookService) handleSubscriptionDeleted(ctx context.Context, event stripe.Event) error {
	var sub stripe.Subscription
	if err := json.Unmarshal(event.Data.Raw, &sub); err != nil {
		return fmt.Errorf("%w: subscription: %v", errMalformedPayload, err)
	}

	return s.store.InTx(ctx, func(repos billing.ReconcileRepos) error {
		if err := claim(ctx, repos, event); err != nil {
			return err
		}

		local, err := repos.Subscriptions.FindByStripeSubscriptionID(ctx, sub.ID)
		if err != nil {
			if errors.Is(err, shared.ErrNotFound) {
				s.logger.Warn("Subscription not found for delete event",
					zap.String("subscription_id", sub.ID))
				return repos.Events.MarkProcessed(ctx, event.ID)
			}
			return err
		}

		local.Cancel()
		if err := repos.Subscriptions.Save(ctx, local); err != nil {
			return err
		}

		s.logger.Info("Subscription canceled from provider event",
			zap.String("subscription_id", sub.ID),
			zap.String("user_id", local.UserID.String()))

		return repos.Events.MarkProcessed(ctx, event.ID)
	})
}

// handleInvoicePaid credits the paid amount of the invoice one-to-one.
// The credit is appended under the user's ledger lock in the same transaction
// as the event claim, so a redelivered invoice can never credit twice.
// Stripe sends both invoice.paid and invoice.payment_succeeded for the same
// payment; the claim dedupes per event, the payment ref per invoice.
func (s *WebhookService) handleInvoicePaid(ctx context.Context, event stripe.Event) error {
	var invoice stripe.Invoice
	if err := json.Unmarshal(event.Data.Raw, &invoice); err != nil {
		return fmt.Errorf("%w: invoice: %v", errMalformedPayload, err)
	}

	customerID := ""
	if invoice.Customer != nil {
		customerID = invoice.Customer.ID
	}
	if customerID == "" {
		s.logger.Warn("Invoice has no customer ID, skipping",
			zap.String("invoice_id", invoice.ID))
		return nil
	}

	user, err := s.userRepo.FindByStripeCustomerID(ctx, customerID)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			s.logger.Warn("User not found for Stripe customer",
				zap.String("customer_id", customerID),
				zap.String("invoice_id", invoice.ID))
			return nil
		}
		return fmt.Errorf("failed to find user: %w", err)
	}

	return s.store.WithUserLock(ctx, user.ID, func(repos billing.ReconcileRepos) error {
		if err := claim(ctx, repos, event); err != nil {
			return err
		}

		// invoice.paid and invoice.payment_succeeded arrive as separate
		// events for one payment; the payment ref keeps the credit single
		creditCents := invoice.AmountPaid
		if creditCents > 0 {
			existing, err := repos.Ledger.FindByPaymentRef(ctx, invoice.ID)
			if err != nil {
				return err
			}
			if len(existing) > 0 {
				s.logger.Info("Invoice already credited, skipping",
					zap.String("invoice_id", invoice.ID),
					zap.String("user_id", user.ID.String()))
				creditCents = 0
			}
		}
		if creditCents > 0 {
			var balanceBefore int64
			latest, err := repos.Ledger.GetLatestByUserID(ctx, user.ID)
			if err != nil {
				if !errors.Is(err, shared.ErrNotFound) {
					return err
				}
			} else {
				balanceBefore = latest.BalanceAfterCents
			}

			kind := credit.TransactionKindAdd
			if invoice.BillingReason == stripe.InvoiceBillingReasonSubscriptionCreate {
				kind = credit.TransactionKindPurchase
			}

			tx, err := credit.NewCreditTransaction(
				user.ID, kind, creditCents, balanceBefore,
				fmt.Sprintf("Subscription invoice %s", invoice.ID))
			if err != nil {
				return err
			}
			tx.WithPaymentRef(invoice.ID)

			if err := repos.Ledger.Append(ctx, tx); err != nil {
				return err
			}

			s.logger.Info("Credited invoice payment",
				zap.String("user_id", user.ID.String()),
				zap.String("invoice_id", invoice.ID),
				zap.Int64("credit_cents", creditCents),
				zap.Int64("balance_after_cents", tx.BalanceAfterCents))
		}

		// A paid invoice puts a past_due subscription back in good standing
		if invoice.Subscription != nil {
			local, err := repos.Subscriptions.FindByStripeSubscriptionID(ctx, invoice.Subscription.ID)
			if err == nil && local.Status == billing.SubscriptionStatusPastDue {
				local.Reactivate()
				if err := repos.Subscriptions.Save(ctx, local); err != nil {
					return err
				}
			} else if err != nil && !errors.Is(err, shared.ErrNotFound) {
				return err
			}
		}

		return repos.Events.MarkProcessed(ctx, event.ID)
	})
}

// handleInvoicePaymentFailed flags the subscription past due. No credit moves.
func (s *WebhookService) handleInvoicePaymentFailed(ctx context.Context, event stripe.Event) error {
	var invoice stripe.Invoice
	if err := json.Unmarshal(event.Data.Raw, &invoice); err != nil {
		return fmt.Errorf("%w: invoice: %v", errMalformedPayload, err)
	}

	if invoice.Subscription == nil {
		s.logger.Warn("Failed invoice carries no subscription, skipping",
			zap.String("invoice_id", invoice.ID))
		return nil
	}

	return s.store.InTx(ctx, func(repos billing.ReconcileRepos) error {
		if err := claim(ctx, repos, event); err != nil {
			return err
		}

		local, err := repos.Subscriptions.FindByStripeSubscriptionID(ctx, invoice.Subscription.ID)
		if err != nil {
			if errors.Is(err, shared.ErrNotFound) {
				s.logger.Warn("Subscription not found for failed invoice",
					zap.String("subscription_id", invoice.Subscription.ID))
				return repos.Events.MarkProcessed(ctx, event.ID)
			}
			return err
		}

		local.MarkPastDue()
		if err := repos.Subscriptions.Save(ctx, local); err != nil {
			return err
		}

		s.logger.Warn("Subscription marked past due after failed invoice",
			zap.String("subscription_id", invoice.Subscription.ID),
			zap.String("user_id", local.UserID.String()),
			zap.String("invoice_id", invoice.ID))

		return repos.Events.MarkProcessed(ctx, event.ID)
	})
}
