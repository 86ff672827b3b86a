package credit

import (
	"time"

	"github.com/consulta/backend/internal/domain/shared"
	"github.com/google/uuid"
)

// TransactionKind represents the kind of ledger transaction
type TransactionKind string

const (
	// TransactionKindPurchase represents credit bought through a subscription invoice
	TransactionKindPurchase TransactionKind = "purchase"
	// TransactionKindAdd represents credit added from a recurring invoice or manual grant
	TransactionKindAdd TransactionKind = "add"
	// TransactionKindUsage represents credit consumed by a consultation
	TransactionKindUsage TransactionKind = "usage"
	// TransactionKindSubtract represents a manual administrative deduction
	TransactionKindSubtract TransactionKind = "subtract"
	// TransactionKindAutoRenewal represents credit added by an on-demand plan renewal
	TransactionKindAutoRenewal TransactionKind = "auto_renewal"
)

// String returns the string representation of TransactionKind
func (k TransactionKind) String() string {
	return string(k)
}

// IsValid returns true if the transaction kind is valid
func (k TransactionKind) IsValid() bool {
	switch k {
	case TransactionKindPurchase,
		TransactionKindAdd,
		TransactionKindUsage,
		TransactionKindSubtract,
		TransactionKindAutoRenewal:
		return true
	}
	return false
}

// IsCredit returns true if this kind increases the balance
func (k TransactionKind) IsCredit() bool {
	switch k {
	case TransactionKindPurchase, TransactionKindAdd, TransactionKindAutoRenewal:
		return true
	}
	return false
}

// IsDebit returns true if this kind decreases the balance
func (k TransactionKind) IsDebit() bool {
	switch k {
	case TransactionKindUsage, TransactionKindSubtract:
		return true
	}
	return false
}

// LedgerTransaction is an immutable record of a single balance-affecting
// event. AmountCents is signed: positive for credits, negative for debits.
// BalanceAfterCents is the running sum through this transaction, so the
// current balance of a user is the BalanceAfterCents of their most recent
// transaction. It is never stored anywhere else. Corrections are made with
// new transactions, never by mutating existing rows.
type LedgerTransaction struct {
	shared.BaseEntity
	UserID            uuid.UUID
	Kind              TransactionKind
	AmountCents       int64
	BalanceAfterCents int64
	Description       string
	ConsultationID    *uuid.UUID // Set for usage transactions tied to a consultation
	PaymentRef        *string    // External payment reference (invoice or charge ID)
}

// NewCreditTransaction creates a transaction that increases the balance.
// amountCents must be positive; balanceBefore is the balance observed under
// the per-user lock.
func NewCreditTransaction(
	userID uuid.UUID,
	kind TransactionKind,
	amountCents int64,
	balanceBeforeCents int64,
	description string,
) (*LedgerTransaction, error) {
	if userID == uuid.Nil {
		return nil, shared.NewDomainError("INVALID_USER", "User ID cannot be empty")
	}
	if !kind.IsValid() || !kind.IsCredit() {
		return nil, shared.NewDomainError("INVALID_KIND", "Kind must be a credit kind")
	}
	if amountCents <= 0 {
		return nil, shared.NewDomainError("INVALID_AMOUNT", "Amount must be positive")
	}

	return &LedgerTransaction{
		BaseEntity:        shared.NewBaseEntity(),
		UserID:            userID,
		Kind:              kind,
		AmountCents:       amountCents,
		BalanceAfterCents: balanceBeforeCents + amountCents,
		Description:       description,
	}, nil
}

// NewDebitTransaction creates a transaction that decreases the balance.
// amountCents must be positive and is stored negated. Fails with
// InsufficientBalanceError when the amount exceeds the observed balance.
func NewDebitTransaction(
	userID uuid.UUID,
	kind TransactionKind,
	amountCents int64,
	balanceBeforeCents int64,
	description string,
) (*LedgerTransaction, error) {
	if userID == uuid.Nil {
		return nil, shared.NewDomainError("INVALID_USER", "User ID cannot be empty")
	}
	if !kind.IsValid() || !kind.IsDebit() {
		return nil, shared.NewDomainError("INVALID_KIND", "Kind must be a debit kind")
	}
	if amountCents <= 0 {
		return nil, shared.NewDomainError("INVALID_AMOUNT", "Amount must be positive")
	}
	if amountCents > balanceBeforeCents {
		return nil, &shared.InsufficientBalanceError{
			BalanceCents:   balanceBeforeCents,
			RequestedCents: amountCents,
		}
	}

	return &LedgerTransaction{
		BaseEntity:        shared.NewBaseEntity(),
		UserID:            userID,
		Kind:              kind,
		AmountCents:       -amountCents,
		BalanceAfterCents: balanceBeforeCents - amountCents,
		Description:       description,
	}, nil
}

// WithConsultationID links the transaction to a consultation
func (t *LedgerTransaction) WithConsultationID(id uuid.UUID) *LedgerTransaction {
	t.ConsultationID = &id
	return t
}

// WithPaymentRef links the transaction to an external payment document
func (t *LedgerTransaction) WithPaymentRef(ref string) *LedgerTransaction {
	t.PaymentRef = &ref
	return t
}

// IsCredit returns true if this transaction increased the balance
func (t *LedgerTransaction) IsCredit() bool {
	return t.AmountCents > 0
}

// IsDebit returns true if this transaction decreased the balance
func (t *LedgerTransaction) IsDebit() bool {
	return t.AmountCents < 0
}

// FollowsFrom reports whether this transaction's snapshot is consistent with
// the previous transaction in the user's ledger, i.e. the running-sum
// invariant balanceAfter[i] == balanceAfter[i-1] + amount[i] holds. A nil
// prev means this is the first transaction.
func (t *LedgerTransaction) FollowsFrom(prev *LedgerTransaction) bool {
	if prev == nil {
		return t.BalanceAfterCents == t.AmountCents
	}
	return t.BalanceAfterCents == prev.BalanceAfterCents+t.AmountCents
}

// TransactionFilter represents filter options for ledger transaction queries
type TransactionFilter struct {
	Kind     *TransactionKind
	DateFrom *time.Time
	DateTo   *time.Time
	Page     int
	PageSize int
}
