package credit

import (
	"context"

	"github.com/google/uuid"
)

// LedgerRepository provides access to the append-only transaction ledger.
// Append and GetLatestByUserID are expected to run inside the per-user
// serialized unit of work managed by the ledger service; list/sum queries
// have no ordering requirements.
type LedgerRepository interface {
	// Append persists a new ledger transaction. Transactions are never
	// updated or deleted.
	Append(ctx context.Context, tx *LedgerTransaction) error

	// FindByID finds a ledger transaction by ID
	FindByID(ctx context.Context, id uuid.UUID) (*LedgerTransaction, error)

	// GetLatestByUserID returns the most recent transaction for a user,
	// shared.ErrNotFound when the user has no transactions.
	GetLatestByUserID(ctx context.Context, userID uuid.UUID) (*LedgerTransaction, error)

	// FindByUserID lists transactions for a user, most recent first
	FindByUserID(ctx context.Context, userID uuid.UUID, filter TransactionFilter) ([]*LedgerTransaction, int64, error)

	// FindByPaymentRef finds transactions carrying an external payment reference
	FindByPaymentRef(ctx context.Context, paymentRef string) ([]*LedgerTransaction, error)

	// SumAmountByUserID returns the arithmetic sum of all transaction
	// amounts for a user. Used to audit the running-sum invariant against
	// the latest snapshot.
	SumAmountByUserID(ctx context.Context, userID uuid.UUID) (int64, error)
}

// ConsultationTypeRepository provides access to the pricing catalog
type ConsultationTypeRepository interface {
	Create(ctx context.Context, ct *ConsultationType) error
	Save(ctx context.Context, ct *ConsultationType) error
	FindByCode(ctx context.Context, code string) (*ConsultationType, error)
	FindAll(ctx context.Context, includeInactive bool) ([]*ConsultationType, error)
}

// UnitOfWork serializes ledger mutations per user. WithUserLock opens a
// database transaction, takes an exclusive lock on the user's row, and runs
// fn with a LedgerRepository bound to that transaction. Two concurrent
// mutations for the same user therefore observe and extend the ledger
// strictly one after the other; mutations for different users do not block
// each other.
type UnitOfWork interface {
	WithUserLock(ctx context.Context, userID uuid.UUID, fn func(ledger LedgerRepository) error) error
}
