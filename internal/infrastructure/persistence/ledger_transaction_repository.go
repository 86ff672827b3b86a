package persistence

import (
	"context"
	"errors"

	"github.com/consulta/backend/internal/domain/credit"
	"github.com/consulta/backend/internal/domain/shared"
	"github.com/consulta/backend/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// GormLedgerRepository implements LedgerRepository using GORM
type GormLedgerRepository struct {
	db *gorm.DB
}

// NewGormLedgerRepository creates a new GormLedgerRepository
func NewGormLedgerRepository(db *gorm.DB) *GormLedgerRepository {
	return &GormLedgerRepository{db: db}
}

// Append persists a new ledger transaction. Existing rows are never touched.
func (r *GormLedgerRepository) Append(ctx context.Context, tx *credit.LedgerTransaction) error {
	model := models.LedgerTransactionModelFromDomain(tx)
	return r.db.WithContext(ctx).Create(model).Error
}

// FindByID finds a ledger transaction by ID
func (r *GormLedgerRepository) FindByID(ctx context.Context, id uuid.UUID) (*credit.LedgerTransaction, error) {
	var model models.LedgerTransactionModel
	if err := r.db.WithContext(ctx).
		Where("id = ?", id).
		First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// GetLatestByUserID gets the most recent ledger transaction for a user.
// Its BalanceAfterCents is the user's current balance.
func (r *GormLedgerRepository) GetLatestByUserID(ctx context.Context, userID uuid.UUID) (*credit.LedgerTransaction, error) {
	var model models.LedgerTransactionModel
	if err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindByUserID lists ledger transactions for a user, most recent first
func (r *GormLedgerRepository) FindByUserID(ctx context.Context, userID uuid.UUID, filter credit.TransactionFilter) ([]*credit.LedgerTransaction, int64, error) {
	var transactionModels []models.LedgerTransactionModel
	var total int64

	countQuery := r.db.WithContext(ctx).Model(&models.LedgerTransactionModel{}).
		Where("user_id = ?", userID)
	countQuery = r.applyFilter(countQuery, filter)
	if err := countQuery.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	query := r.db.WithContext(ctx).Model(&models.LedgerTransactionModel{}).
		Where("user_id = ?", userID)
	query = r.applyFilter(query, filter)

	if filter.Page > 0 && filter.PageSize > 0 {
		offset := (filter.Page - 1) * filter.PageSize
		query = query.Offset(offset).Limit(filter.PageSize)
	}

	query = query.Order("created_at DESC")

	if err := query.Find(&transactionModels).Error; err != nil {
		return nil, 0, err
	}

	transactions := make([]*credit.LedgerTransaction, len(transactionModels))
	for i, model := range transactionModels {
		transactions[i] = model.ToDomain()
	}
	return transactions, total, nil
}

// FindByPaymentRef finds ledger transactions carrying an external payment reference
func (r *GormLedgerRepository) FindByPaymentRef(ctx context.Context, paymentRef string) ([]*credit.LedgerTransaction, error) {
	var transactionModels []models.LedgerTransactionModel
	if err := r.db.WithContext(ctx).
		Where("payment_ref = ?", paymentRef).
		Order("created_at DESC").
		Find(&transactionModels).Error; err != nil {
		return nil, err
	}
	transactions := make([]*credit.LedgerTransaction, len(transactionModels))
	for i, model := range transactionModels {
		transactions[i] = model.ToDomain()
	}
	return transactions, nil
}

// SumAmountByUserID sums all transaction amounts for a user. The result must
// equal the latest transaction's BalanceAfterCents; a mismatch means the
// ledger is corrupt.
func (r *GormLedgerRepository) SumAmountByUserID(ctx context.Context, userID uuid.UUID) (int64, error) {
	var result struct {
		Total int64
	}

	if err := r.db.WithContext(ctx).
		Model(&models.LedgerTransactionModel{}).
		Select("COALESCE(SUM(amount_cents), 0) as total").
		Where("user_id = ?", userID).
		Scan(&result).Error; err != nil {
		return 0, err
	}

	return result.Total, nil
}

// applyFilter applies filter options to the query
func (r *GormLedgerRepository) applyFilter(query *gorm.DB, filter credit.TransactionFilter) *gorm.DB {
	if filter.Kind != nil {
		query = query.Where("kind = ?", *filter.Kind)
	}

	if filter.DateFrom != nil {
		query = query.Where("created_at >= ?", *filter.DateFrom)
	}

	if filter.DateTo != nil {
		query = query.Where("created_at <= ?", *filter.DateTo)
	}

	return query
}

// Ensure GormLedgerRepository implements LedgerRepository
var _ credit.LedgerRepository = (*GormLedgerRepository)(nil)
