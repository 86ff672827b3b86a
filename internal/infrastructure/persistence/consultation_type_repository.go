package persistence

import (
	"context"
	"errors"

	"github.com/consulta/backend/internal/domain/credit"
	"github.com/consulta/backend/internal/domain/shared"
	"github.com/consulta/backend/internal/infrastructure/persistence/models"
	"gorm.io/gorm"
)

// GormConsultationTypeRepository implements ConsultationTypeRepository using GORM
type GormConsultationTypeRepository struct {
	db *gorm.DB
}

// NewGormConsultationTypeRepository creates a new GormConsultationTypeRepository
func NewGormConsultationTypeRepository(db *gorm.DB) *GormConsultationTypeRepository {
	return &GormConsultationTypeRepository{db: db}
}

// Create creates a new consultation type
func (r *GormConsultationTypeRepository) Create(ctx context.Context, ct *credit.ConsultationType) error {
	model := models.ConsultationTypeModelFromDomain(ct)
	if err := r.db.WithContext(ctx).Create(model).Error; err != nil {
		if isUniqueViolation(err) {
			return shared.ErrAlreadyExists
		}
		return err
	}
	return nil
}

// Save persists changes to an existing consultation type
func (r *GormConsultationTypeRepository) Save(ctx context.Context, ct *credit.ConsultationType) error {
	model := models.ConsultationTypeModelFromDomain(ct)
	return r.db.WithContext(ctx).Save(model).Error
}

// FindByCode finds a consultation type by its stable code
func (r *GormConsultationTypeRepository) FindByCode(ctx context.Context, code string) (*credit.ConsultationType, error) {
	var model models.ConsultationTypeModel
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

// FindAll lists consultation types, optionally including inactive ones
func (r *GormConsultationTypeRepository) FindAll(ctx context.Context, includeInactive bool) ([]*credit.ConsultationType, error) {
	var typeModels []models.ConsultationTypeModel

	query := r.db.WithContext(ctx).Order("code ASC")
	if !includeInactive {
		query = query.Where("is_active = ?", true)
	}

	if err := query.Find(&typeModels).Error; err != nil {
		return nil, err
	}

	types := make([]*credit.ConsultationType, len(typeModels))
	for i, model := range typeModels {
		types[i] = model.ToDomain()
	}
	return types, nil
}

// Ensure GormConsultationTypeRepository implements ConsultationTypeRepository
var _ credit.ConsultationTypeRepository = (*GormConsultationTypeRepository)(nil)
