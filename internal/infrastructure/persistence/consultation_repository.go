package persistence

import (
	"context"
	"errors"

	"github.com/consulta/backend/internal/domain/consultation"
	"github.com/consulta/backend/internal/domain/shared"
	"github.com/consulta/backend/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// GormConsultationRepository implements consultation.Repository using GORM
type GormConsultationRepository struct {
	db *gorm.DB
}

// NewGormConsultationRepository creates a new GormConsultationRepository
func NewGormConsultationRepository(db *gorm.DB) *GormConsultationRepository {
	return &GormConsultationRepository{db: db}
}

// Create persists the consultation together with its detail rows
func (r *GormConsultationRepository) Create(ctx context.Context, c *consultation.Consultation) error {
	model := models.ConsultationModelFromDomain(c)
	return r.db.WithContext(ctx).Create(model).Error
}

// Save persists state transitions on an existing consultation. Detail rows
// are written alongside so outcomes recorded after creation land too.
func (r *GormConsultationRepository) Save(ctx context.Context, c *consultation.Consultation) error {
	model := models.ConsultationModelFromDomain(c)
	return r.db.WithContext(ctx).
		Session(&gorm.Session{FullSaveAssociations: true}).
		Save(model).Error
}

// FindByID finds a consultation with its details by ID
func (r *GormConsultationRepository) FindByID(ctx context.Context, id uuid.UUID) (*consultation.Consultation, error) {
	var model models.ConsultationModel
	if err := r.db.WithContext(ctx).
		Preload("Details").
		Where("id = ?", id).
		First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindByUserID lists consultations for a user, most recent first
func (r *GormConsultationRepository) FindByUserID(ctx context.Context, userID uuid.UUID, filter consultation.Filter) ([]*consultation.Consultation, int64, error) {
	var consultationModels []models.ConsultationModel
	var total int64

	countQuery := r.db.WithContext(ctx).Model(&models.ConsultationModel{}).
		Where("user_id = ?", userID)
	countQuery = r.applyFilter(countQuery, filter)
	if err := countQuery.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	query := r.db.WithContext(ctx).Model(&models.ConsultationModel{}).
		Preload("Details").
		Where("user_id = ?", userID)
	query = r.applyFilter(query, filter)

	if filter.Page > 0 && filter.PageSize > 0 {
		offset := (filter.Page - 1) * filter.PageSize
		query = query.Offset(offset).Limit(filter.PageSize)
	}

	query = query.Order("created_at DESC")

	if err := query.Find(&consultationModels).Error; err != nil {
		return nil, 0, err
	}

	consultations := make([]*consultation.Consultation, len(consultationModels))
	for i := range consultationModels {
		consultations[i] = consultationModels[i].ToDomain()
	}
	return consultations, total, nil
}

// applyFilter applies filter options to the query
func (r *GormConsultationRepository) applyFilter(query *gorm.DB, filter consultation.Filter) *gorm.DB {
	if filter.Status != nil {
		query = query.Where("status = ?", *filter.Status)
	}
	return query
}

// Ensure GormConsultationRepository implements consultation.Repository
var _ consultation.Repository = (*GormConsultationRepository)(nil)
