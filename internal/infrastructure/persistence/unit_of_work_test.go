package persistence

import (
	"context"
	"database/sql"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/consulta/backend/internal/domain/billing"
	"github.com/consulta/backend/internal/domain/credit"
	"github.com/consulta/backend/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// newMockGormDB creates a GORM DB backed by sqlmock with the postgres dialector
func newMockGormDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock, *sql.DB) {
	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)

	dialector := postgres.New(postgres.Config{
		Conn:       mockDB,
		DriverName: "postgres",
	})

	gormDB, err := gorm.Open(dialector, &gorm.Config{
		SkipDefaultTransaction: true,
	})
	require.NoError(t, err)

	return gormDB, mock, mockDB
}

func TestGormLedgerUnitOfWork_WithUserLock(t *testing.T) {
	t.Run("locks the user row before running fn", func(t *testing.T) {
		gormDB, mock, mockDB := newMockGormDB(t)
		defer mockDB.Close()

		userID := uuid.New()

		mock.ExpectBegin()
		mock.ExpectQuery(`SELECT \* FROM "users" WHERE id = \$1 ORDER BY .* LIMIT .* FOR UPDATE`).
			WithArgs(userID, 1).
			WillReturnRows(sqlmock.NewRows([]string{"id", "email", "active"}).
				AddRow(userID, "user@example.com", true))
		mock.ExpectExec(`INSERT INTO "ledger_transactions"`).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()

		uow := NewGormLedgerUnitOfWork(gormDB)
		err := uow.WithUserLock(context.Background(), userID, func(ledger credit.LedgerRepository) error {
			tx, err := credit.NewCreditTransaction(userID, credit.TransactionKindAdd, 1000, 0, "credit")
			require.NoError(t, err)
			return ledger.Append(context.Background(), tx)
		})

		assert.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("rolls back when the user does not exist", func(t *testing.T) {
		gormDB, mock, mockDB := newMockGormDB(t)
		defer mockDB.Close()

		userID := uuid.New()

		mock.ExpectBegin()
		mock.ExpectQuery(`SELECT \* FROM "users" WHERE id = \$1 ORDER BY .* LIMIT .* FOR UPDATE`).
			WithArgs(userID, 1).
			WillReturnError(gorm.ErrRecordNotFound)
		mock.ExpectRollback()

		uow := NewGormLedgerUnitOfWork(gormDB)
		called := false
		err := uow.WithUserLock(context.Background(), userID, func(ledger credit.LedgerRepository) error {
			called = true
			return nil
		})

		assert.Equal(t, shared.ErrNotFound, err)
		assert.False(t, called)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("rolls back when fn fails", func(t *testing.T) {
		gormDB, mock, mockDB := newMockGormDB(t)
		defer mockDB.Close()

		userID := uuid.New()

		mock.ExpectBegin()
		mock.ExpectQuery(`SELECT \* FROM "users" WHERE id = \$1 ORDER BY .* LIMIT .* FOR UPDATE`).
			WithArgs(userID, 1).
			WillReturnRows(sqlmock.NewRows([]string{"id", "email", "active"}).
				AddRow(userID, "user@example.com", true))
		mock.ExpectRollback()

		uow := NewGormLedgerUnitOfWork(gormDB)
		err := uow.WithUserLock(context.Background(), userID, func(ledger credit.LedgerRepository) error {
			return assert.AnError
		})

		assert.Equal(t, assert.AnError, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestGormReconcileStore_InTx(t *testing.T) {
	t.Run("retries the transaction after a transient failure", func(t *testing.T) {
		gormDB, mock, mockDB := newMockGormDB(t)
		defer mockDB.Close()

		// First attempt deadlocks and rolls back, second commits
		mock.ExpectBegin()
		mock.ExpectRollback()
		mock.ExpectBegin()
		mock.ExpectCommit()

		store := NewGormReconcileStore(gormDB)
		attempts := 0
		err := store.InTx(context.Background(), func(repos billing.ReconcileRepos) error {
			attempts++
			if attempts == 1 {
				return &pgconn.PgError{Code: "40P01"}
			}
			return nil
		})

		assert.NoError(t, err)
		assert.Equal(t, 2, attempts)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("does not retry domain errors", func(t *testing.T) {
		gormDB, mock, mockDB := newMockGormDB(t)
		defer mockDB.Close()

		mock.ExpectBegin()
		mock.ExpectRollback()

		store := NewGormReconcileStore(gormDB)
		attempts := 0
		err := store.InTx(context.Background(), func(repos billing.ReconcileRepos) error {
			attempts++
			return assert.AnError
		})

		assert.Equal(t, assert.AnError, err)
		assert.Equal(t, 1, attempts)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("commits when fn succeeds", func(t *testing.T) {
		gormDB, mock, mockDB := newMockGormDB(t)
		defer mockDB.Close()

		mock.ExpectBegin()
		mock.ExpectCommit()

		store := NewGormReconcileStore(gormDB)
		err := store.InTx(context.Background(), func(repos billing.ReconcileRepos) error {
			assert.NotNil(t, repos.Events)
			assert.NotNil(t, repos.Subscriptions)
			assert.NotNil(t, repos.Ledger)
			return nil
		})

		assert.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}
