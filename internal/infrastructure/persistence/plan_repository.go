package persistence

import (
	"context"
	"errors"

	"github.com/consulta/backend/internal/domain/billing"
	"github.com/consulta/backend/internal/domain/shared"
	"github.com/consulta/backend/internal/infrastructure/persistence/models"
	"gorm.io/gorm"
)

// GormPlanRepository implements PlanRepository using GORM
type GormPlanRepository struct {
	db *gorm.DB
}

// NewGormPlanRepository creates a new GormPlanRepository
func NewGormPlanRepository(db *gorm.DB) *GormPlanRepository {
	return &GormPlanRepository{db: db}
}

// Create creates a new subscription plan
func (r *GormPlanRepository) Create(ctx context.Context, plan *billing.SubscriptionPlan) error {
	model := models.SubscriptionPlanModelFromDomain(plan)
	if err := r.db.WithContext(ctx).Create(model).Error; err != nil {
		if isUniqueViolation(err) {
			return shared.ErrAlreadyExists
		}
		return err
	}
	return nil
}

// Save persists changes to an existing subscription plan
func (r *GormPlanRepository) Save(ctx context.Context, plan *billing.SubscriptionPlan) error {
	model := models.SubscriptionPlanModelFromDomain(plan)
	return r.db.WithContext(ctx).Save(model).Error
}

// FindByCode finds a plan by its stable code
func (r *GormPlanRepository) FindByCode(ctx context.Context, code string) (*billing.SubscriptionPlan, error) {
	var model models.SubscriptionPlanModel
	if err := r.db.WithContext(ctx).
		Where("code = ?", code).
		First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindByStripePriceID finds a plan by its provider-side price reference
func (r *GormPlanRepository) FindByStripePriceID(ctx context.Context, stripePriceID string) (*billing.SubscriptionPlan, error) {
	var model models.SubscriptionPlanModel
	if err := r.db.WithContext(ctx).
		Where("stripe_price_id = ?", stripePriceID).
		First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindActive lists plans open for new subscriptions
func (r *GormPlanRepository) FindActive(ctx context.Context) ([]*billing.SubscriptionPlan, error) {
	var planModels []models.SubscriptionPlanModel
	if err := r.db.WithContext(ctx).
		Where("is_active = ?", true).
		Order("price_cents ASC").
		Find(&planModels).Error; err != nil {
		return nil, err
	}
	plans := make([]*billing.SubscriptionPlan, len(planModels))
	for i, model := range planModels {
		plans[i] = model.ToDomain()
	}
	return plans, nil
}

// Ensure GormPlanRepository implements PlanRepository
var _ billing.PlanRepository = (*GormPlanRepository)(nil)
