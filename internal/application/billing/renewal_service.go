package billing

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/consulta/backend/internal/domain/billing"
	"github.com/consulta/backend/internal/domain/credit"
	"github.com/consulta/backend/internal/domain/identity"
	"github.com/consulta/backend/internal/domain/shared"
	"github.com/consulta/backend/internal/infrastructure/payment"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// PaymentGateway is the payment provider surface the renewal flow needs
type PaymentGateway interface {
	ChargeOffSession(ctx context.Context, input payment.ChargeInput) (*payment.ChargeOutput, error)
}

// RenewalService performs on-demand plan renewals: when a debit cannot be
// covered, the user's plan amount is charged off-session and the plan credit
// is appended to the ledger in the same flow, synchronously, so the blocked
// consultation can retry immediately. A per-user in-flight guard keeps two
// concurrent shortfalls from double-charging; the loser fails fast and the
// winner's credit covers both.
type RenewalService struct {
	guard            shared.InflightGuard
	uow              credit.UnitOfWork
	subscriptionRepo billing.SubscriptionRepository
	planRepo         billing.PlanRepository
	userRepo         identity.UserRepository
	gateway          PaymentGateway
	guardTTL         time.Duration
	logger           *zap.Logger
}

// NewRenewalService creates a new renewal service
func NewRenewalService(
	guard shared.InflightGuard,
	uow credit.UnitOfWork,
	subscriptionRepo billing.SubscriptionRepository,
	planRepo billing.PlanRepository,
	userRepo identity.UserRepository,
	gateway PaymentGateway,
	guardTTL time.Duration,
	logger *zap.Logger,
) *RenewalService {
	return &RenewalService{
		guard:            guard,
		uow:              uow,
		subscriptionRepo: subscriptionRepo,
		planRepo:         planRepo,
		userRepo:         userRepo,
		gateway:          gateway,
		guardTTL:         guardTTL,
		logger:           logger,
	}
}

// renewalGuardKey returns the in-flight guard key for a user's renewals
func renewalGuardKey(userID uuid.UUID) string {
	return "renewal:" + userID.String()
}

// Renew charges the user's plan off-session and credits the plan amount.
// Returns shared.ErrRenewalDisabled when the user cannot renew,
// shared.ErrRenewalInProgress when another renewal holds the guard, and
// shared.ErrPaymentDeclined (wrapped) when the charge fails.
func (s *RenewalService) Renew(ctx context.Context, userID uuid.UUID) error {
	// Deployments without Stripe credentials run with no gateway wired
	if s.gateway == nil {
		return fmt.Errorf("payment gateway not configured: %w", shared.ErrRenewalDisabled)
	}

	user, err := s.userRepo.FindByID(ctx, userID)
	if err != nil {
		return err
	}
	if !user.AutoRenewalEnabled {
		return shared.ErrRenewalDisabled
	}
	if user.StripeCustomerID == "" {
		return fmt.Errorf("no payment profile on file: %w", shared.ErrRenewalDisabled)
	}

	sub, err := s.subscriptionRepo.FindActiveByUserID(ctx, userID)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return fmt.Errorf("no active subscription: %w", shared.ErrRenewalDisabled)
		}
		return err
	}

	plan, err := s.planRepo.FindByCode(ctx, sub.PlanID)
	if err != nil {
		return err
	}

	acquired, err := s.guard.Acquire(ctx, renewalGuardKey(userID), s.guardTTL)
	if err != nil {
		return fmt.Errorf("renewal guard unavailable: %w", err)
	}
	if !acquired {
		return shared.ErrRenewalInProgress
	}
	defer func() {
		if releaseErr := s.guard.Release(context.WithoutCancel(ctx), renewalGuardKey(userID)); releaseErr != nil {
			s.logger.Warn("Failed to release renewal guard",
				zap.String("user_id", userID.String()),
				zap.Error(releaseErr))
		}
	}()

	s.logger.Info("Starting on-demand renewal",
		zap.String("user_id", userID.String()),
		zap.String("plan_code", plan.Code),
		zap.Int64("price_cents", plan.PriceCents))

	charge, err := s.gateway.ChargeOffSession(ctx, payment.ChargeInput{
		CustomerID:  user.StripeCustomerID,
		AmountCents: plan.PriceCents,
		Description: fmt.Sprintf("Plan renewal: %s", plan.Name),
		Metadata: map[string]string{
			"user_id":   userID.String(),
			"plan_code": plan.Code,
			"reason":    "on_demand_renewal",
		},
	})
	if err != nil {
		return err
	}

	// Charge succeeded; the credit must land. The payment reference ties the
	// ledger row back to the payment intent if anything downstream fails.
	err = s.uow.WithUserLock(ctx, userID, func(ledger credit.LedgerRepository) error {
		var balanceBefore int64
		latest, err := ledger.GetLatestByUserID(ctx, userID)
		if err != nil {
			if !errors.Is(err, shared.ErrNotFound) {
				return err
			}
		} else {
			balanceBefore = latest.BalanceAfterCents
		}

		tx, err := credit.NewCreditTransaction(
			userID, credit.TransactionKindAutoRenewal, plan.CreditCents, balanceBefore,
			fmt.Sprintf("On-demand renewal: %s", plan.Name))
		if err != nil {
			return err
		}
		tx.WithPaymentRef(charge.PaymentIntentID)

		return ledger.Append(ctx, tx)
	})
	if err != nil {
		s.logger.Error("Charge succeeded but credit failed, manual reconciliation required",
			zap.String("user_id", userID.String()),
			zap.String("payment_intent_id", charge.PaymentIntentID),
			zap.Int64("credit_cents", plan.CreditCents),
			zap.Error(err))
		return err
	}

	sub.RecordRenewal()
	if err := s.subscriptionRepo.Save(ctx, sub); err != nil {
		s.logger.Warn("Failed to record renewal on subscription",
			zap.String("subscription_id", sub.ID.String()),
			zap.Error(err))
	}

	s.logger.Info("On-demand renewal completed",
		zap.String("user_id", userID.String()),
		zap.String("payment_intent_id", charge.PaymentIntentID),
		zap.Int64("credit_cents", plan.CreditCents))

	return nil
}
