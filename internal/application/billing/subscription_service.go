package billing

import (
	"context"
	"errors"

	"github.com/consulta/backend/internal/domain/billing"
	"github.com/consulta/backend/internal/domain/shared"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// SubscriptionService handles plan administration and subscription queries.
// Subscriptions themselves are created and mutated by the webhook reconciler;
// this service only reads them.
type SubscriptionService struct {
	subscriptionRepo billing.SubscriptionRepository
	planRepo         billing.PlanRepository
	logger           *zap.Logger
}

// NewSubscriptionService creates a new subscription service
func NewSubscriptionService(
	subscriptionRepo billing.SubscriptionRepository,
	planRepo billing.PlanRepository,
	logger *zap.Logger,
) *SubscriptionService {
	return &SubscriptionService{
		subscriptionRepo: subscriptionRepo,
		planRepo:         planRepo,
		logger:           logger,
	}
}

// CreatePlan registers a purchasable plan
func (s *SubscriptionService) CreatePlan(ctx context.Context, req *CreatePlanRequest) (*PlanResponse, error) {
	existing, err := s.planRepo.FindByCode(ctx, req.Code)
	if err != nil && !errors.Is(err, shared.ErrNotFound) {
		return nil, err
	}
	if existing != nil {
		return nil, shared.ErrAlreadyExists
	}

	plan, err := billing.NewSubscriptionPlan(req.Code, req.Name, req.PriceCents, req.CreditCents, req.StripePriceID)
	if err != nil {
		return nil, err
	}

	if err := s.planRepo.Create(ctx, plan); err != nil {
		return nil, err
	}

	s.logger.Info("Created subscription plan",
		zap.String("code", plan.Code),
		zap.Int64("price_cents", plan.PriceCents),
		zap.Int64("credit_cents", plan.CreditCents))

	response := ToPlanResponse(plan)
	return &response, nil
}

// DeactivatePlan hides a plan from new subscriptions
func (s *SubscriptionService) DeactivatePlan(ctx context.Context, code string) (*PlanResponse, error) {
	plan, err := s.planRepo.FindByCode(ctx, code)
	if err != nil {
		return nil, err
	}

	plan.Deactivate()
	if err := s.planRepo.Save(ctx, plan); err != nil {
		return nil, err
	}

	response := ToPlanResponse(plan)
	return &response, nil
}

// GetPlan returns a plan by code
func (s *SubscriptionService) GetPlan(ctx context.Context, code string) (*PlanResponse, error) {
	plan, err := s.planRepo.FindByCode(ctx, code)
	if err != nil {
		return nil, err
	}

	response := ToPlanResponse(plan)
	return &response, nil
}

// ListPlans returns plans available for purchase, cheapest first
func (s *SubscriptionService) ListPlans(ctx context.Context) ([]PlanResponse, error) {
	plans, err := s.planRepo.FindActive(ctx)
	if err != nil {
		return nil, err
	}
	return ToPlanResponses(plans), nil
}

// GetActiveSubscription returns the user's single active subscription
func (s *SubscriptionService) GetActiveSubscription(ctx context.Context, userID uuid.UUID) (*SubscriptionResponse, error) {
	sub, err := s.subscriptionRepo.FindActiveByUserID(ctx, userID)
	if err != nil {
		return nil, err
	}

	response := ToSubscriptionResponse(sub)
	return &response, nil
}

// ListSubscriptions returns the user's subscription history
func (s *SubscriptionService) ListSubscriptions(ctx context.Context, userID uuid.UUID) ([]SubscriptionResponse, error) {
	subs, err := s.subscriptionRepo.FindByUserID(ctx, userID)
	if err != nil {
		return nil, err
	}
	return ToSubscriptionResponses(subs), nil
}
