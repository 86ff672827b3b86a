package payment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/consulta/backend/internal/domain/shared"
	"github.com/stripe/stripe-go/v81"
	"github.com/stripe/stripe-go/v81/customer"
	"github.com/stripe/stripe-go/v81/paymentintent"
	"github.com/stripe/stripe-go/v81/subscription"
	"go.uber.org/zap"
)

// StripeAdapter implements the payment operations the billing flows need:
// customer provisioning, synchronous off-session charges for on-demand
// renewals, and best-effort subscription cancellation for supersession.
type StripeAdapter struct {
	config *StripeConfig
	logger *zap.Logger
}

// NewStripeAdapter creates a new Stripe adapter
func NewStripeAdapter(config *StripeConfig, logger *zap.Logger) (*StripeAdapter, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	// Initialize Stripe client
	config.InitStripeClient()

	return &StripeAdapter{
		config: config,
		logger: logger,
	}, nil
}

// CreateCustomer creates a new customer in Stripe
func (a *StripeAdapter) CreateCustomer(ctx context.Context, input CreateCustomerInput) (*CreateCustomerOutput, error) {
	a.logger.Debug("Creating Stripe customer",
		zap.String("user_id", input.UserID.String()),
		zap.String("email", input.Email))

	params := &stripe.CustomerParams{
		Params: stripe.Params{Context: ctx},
		Email:  stripe.String(input.Email),
		Name:   stripe.String(input.Name),
	}

	params.Metadata = map[string]string{
		"user_id": input.UserID.String(),
	}
	for k, v := range input.Metadata {
		params.Metadata[k] = v
	}

	cust, err := customer.New(params)
	if err != nil {
		a.logger.Error("Failed to create Stripe customer",
			zap.String("user_id", input.UserID.String()),
			zap.Error(err))
		return nil, fmt.Errorf("stripe: failed to create customer: %w", err)
	}

	a.logger.Info("Created Stripe customer",
		zap.String("user_id", input.UserID.String()),
		zap.String("customer_id", cust.ID))

	return &CreateCustomerOutput{
		CustomerID: cust.ID,
		Email:      cust.Email,
		Name:       cust.Name,
		CreatedAt:  time.Unix(cust.Created, 0),
	}, nil
}

// ChargeOffSession charges the customer's saved payment method without
// interaction, bounded by the configured charge timeout. A decline, an
// unexpected intent status, or a timeout all map to ErrPaymentDeclined: the
// caller must not grant credit on any of them. If a timed-out charge did in
// fact succeed, the invoice webhook reconciles the credit later.
func (a *StripeAdapter) ChargeOffSession(ctx context.Context, input ChargeInput) (*ChargeOutput, error) {
	a.logger.Debug("Charging customer off-session",
		zap.String("customer_id", input.CustomerID),
		zap.Int64("amount_cents", input.AmountCents))

	chargeCtx, cancel := context.WithTimeout(ctx, a.config.ChargeTimeout)
	defer cancel()

	params := &stripe.PaymentIntentParams{
		Params:      stripe.Params{Context: chargeCtx},
		Amount:      stripe.Int64(input.AmountCents),
		Currency:    stripe.String(a.config.DefaultCurrency),
		Customer:    stripe.String(input.CustomerID),
		Confirm:     stripe.Bool(true),
		OffSession:  stripe.Bool(true),
		Description: stripe.String(input.Description),
		AutomaticPaymentMethods: &stripe.PaymentIntentAutomaticPaymentMethodsParams{
			Enabled:        stripe.Bool(true),
			AllowRedirects: stripe.String("never"),
		},
	}
	if len(input.Metadata) > 0 {
		params.Metadata = input.Metadata
	}

	intent, err := paymentintent.New(params)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			a.logger.Warn("Off-session charge timed out",
				zap.String("customer_id", input.CustomerID),
				zap.Duration("timeout", a.config.ChargeTimeout))
			return nil, fmt.Errorf("stripe: charge timed out after %s: %w",
				a.config.ChargeTimeout, shared.ErrPaymentDeclined)
		}

		var stripeErr *stripe.Error
		if errors.As(err, &stripeErr) && stripeErr.Type == stripe.ErrorTypeCard {
			a.logger.Warn("Off-session charge declined",
				zap.String("customer_id", input.CustomerID),
				zap.String("decline_code", string(stripeErr.DeclineCode)))
			return nil, fmt.Errorf("stripe: card declined (%s): %w",
				stripeErr.DeclineCode, shared.ErrPaymentDeclined)
		}

		a.logger.Error("Off-session charge failed",
			zap.String("customer_id", input.CustomerID),
			zap.Error(err))
		return nil, fmt.Errorf("stripe: failed to charge customer: %w", err)
	}

	if intent.Status != stripe.PaymentIntentStatusSucceeded {
		a.logger.Warn("Off-session charge did not succeed",
			zap.String("customer_id", input.CustomerID),
			zap.String("intent_id", intent.ID),
			zap.String("status", string(intent.Status)))
		return nil, fmt.Errorf("stripe: payment intent status %s: %w",
			intent.Status, shared.ErrPaymentDeclined)
	}

	a.logger.Info("Off-session charge succeeded",
		zap.String("customer_id", input.CustomerID),
		zap.String("intent_id", intent.ID),
		zap.Int64("amount_cents", intent.Amount))

	return &ChargeOutput{
		PaymentIntentID: intent.ID,
		AmountCents:     intent.Amount,
		Currency:        string(intent.Currency),
	}, nil
}

// CancelSubscription cancels a subscription at the provider immediately
func (a *StripeAdapter) CancelSubscription(ctx context.Context, subscriptionID string) error {
	a.logger.Debug("Canceling Stripe subscription",
		zap.String("subscription_id", subscriptionID))

	params := &stripe.SubscriptionCancelParams{
		Params: stripe.Params{Context: ctx},
	}

	sub, err := subscription.Cancel(subscriptionID, params)
	if err != nil {
		a.logger.Error("Failed to cancel Stripe subscription",
			zap.String("subscription_id", subscriptionID),
			zap.Error(err))
		return fmt.Errorf("stripe: failed to cancel subscription: %w", err)
	}

	a.logger.Info("Canceled Stripe subscription",
		zap.String("subscription_id", sub.ID),
		zap.String("status", string(sub.Status)))

	return nil
}
