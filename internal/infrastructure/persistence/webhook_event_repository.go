package persistence

import (
	"context"
	"errors"
	"time"

	"github.com/consulta/backend/internal/domain/billing"
	"github.com/consulta/backend/internal/domain/shared"
	"github.com/consulta/backend/internal/infrastructure/persistence/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormWebhookEventRepository implements WebhookEventRepository using GORM
type GormWebhookEventRepository struct {
	db *gorm.DB
}

// NewGormWebhookEventRepository creates a new GormWebhookEventRepository
func NewGormWebhookEventRepository(db *gorm.DB) *GormWebhookEventRepository {
	return &GormWebhookEventRepository{db: db}
}

// Claim inserts the record with ON CONFLICT DO NOTHING on the event ID.
// RowsAffected == 0 means another delivery already claimed the event; there
// is no window where two deliveries both believe they own it.
func (r *GormWebhookEventRepository) Claim(ctx context.Context, record *billing.WebhookEventRecord) (bool, error) {
	model := models.WebhookEventModelFromDomain(record)
	result := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "event_id"}},
			DoNothing: true,
		}).
		Create(model)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

// FindByEventID finds a webhook event record by the provider-issued event ID
func (r *GormWebhookEventRepository) FindByEventID(ctx context.Context, eventID string) (*billing.WebhookEventRecord, error) {
	var model models.WebhookEventModel
	if err := r.db.WithContext(ctx).
		Where("event_id = ?", eventID).
		First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// MarkProcessed flips the processed flag for the event
func (r *GormWebhookEventRepository) MarkProcessed(ctx context.Context, eventID string) error {
	now := time.Now()
	result := r.db.WithContext(ctx).
		Model(&models.WebhookEventModel{}).
		Where("event_id = ? AND processed = ?", eventID, false).
		Updates(map[string]any{
			"processed":    true,
			"processed_at": now,
			"updated_at":   now,
		})
	if result.Error != nil {
		return result.Error
	}
	return nil
}

// Ensure GormWebhookEventRepository implements WebhookEventRepository
var _ billing.WebhookEventRepository = (*GormWebhookEventRepository)(nil)
