package persistence

import (
	"context"
	"errors"

	"github.com/consulta/backend/internal/domain/billing"
	"github.com/consulta/backend/internal/domain/credit"
	"github.com/consulta/backend/internal/domain/shared"
	"github.com/consulta/backend/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormLedgerUnitOfWork implements credit.UnitOfWork. The exclusive lock on
// the user's row is the only serialization point for that user's ledger:
// every mutation path (consultation debit, invoice credit, renewal credit,
// manual adjustment) goes through WithUserLock, so reads of the latest
// balance snapshot inside fn cannot race with another append.
type GormLedgerUnitOfWork struct {
	db *gorm.DB
}

// NewGormLedgerUnitOfWork creates a new GormLedgerUnitOfWork
func NewGormLedgerUnitOfWork(db *gorm.DB) *GormLedgerUnitOfWork {
	return &GormLedgerUnitOfWork{db: db}
}

// WithUserLock runs fn in a transaction holding the user's row lock.
// Transient failures (deadlock, serialization, connection loss) rerun the
// whole transaction; the rollback makes the retry safe.
func (u *GormLedgerUnitOfWork) WithUserLock(ctx context.Context, userID uuid.UUID, fn func(ledger credit.LedgerRepository) error) error {
	return WithRetry(ctx, func() error {
		return u.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			if err := lockUserRow(tx, userID); err != nil {
				return err
			}
			return fn(NewGormLedgerRepository(tx))
		})
	})
}

// GormReconcileStore implements billing.ReconcileStore
type GormReconcileStore struct {
	db *gorm.DB
}

// NewGormReconcileStore creates a new GormReconcileStore
func NewGormReconcileStore(db *gorm.DB) *GormReconcileStore {
	return &GormReconcileStore{db: db}
}

// InTx runs fn inside a single database transaction, retried on transient
// failures
func (s *GormReconcileStore) InTx(ctx context.Context, fn func(repos billing.ReconcileRepos) error) error {
	return WithRetry(ctx, func() error {
		return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			return fn(reconcileRepos(tx))
		})
	})
}

// WithUserLock runs fn inside a transaction holding the user's row lock,
// retried on transient failures
func (s *GormReconcileStore) WithUserLock(ctx context.Context, userID uuid.UUID, fn func(repos billing.ReconcileRepos) error) error {
	return WithRetry(ctx, func() error {
		return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			if err := lockUserRow(tx, userID); err != nil {
				return err
			}
			return fn(reconcileRepos(tx))
		})
	})
}

// reconcileRepos binds the full repository set to one transaction
func reconcileRepos(tx *gorm.DB) billing.ReconcileRepos {
	return billing.ReconcileRepos{
		Events:        NewGormWebhookEventRepository(tx),
		Subscriptions: NewGormSubscriptionRepository(tx),
		Plans:         NewGormPlanRepository(tx),
		Users:         NewGormUserRepository(tx),
		Ledger:        NewGormLedgerRepository(tx),
	}
}

// lockUserRow takes a SELECT ... FOR UPDATE lock on the user's row
func lockUserRow(tx *gorm.DB, userID uuid.UUID) error {
	var model models.UserModel
	if err := tx.
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", userID).
		First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return shared.ErrNotFound
		}
		return err
	}
	return nil
}

// Ensure implementations satisfy their interfaces
var (
	_ credit.UnitOfWork      = (*GormLedgerUnitOfWork)(nil)
	_ billing.ReconcileStore = (*GormReconcileStore)(nil)
)
