package credit

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/consulta/backend/internal/domain/credit"
	"github.com/consulta/backend/internal/domain/identity"
	"github.com/consulta/backend/internal/domain/shared"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// LedgerService handles credit ledger operations. Every mutation runs inside
// the per-user unit of work: the user's row is locked, the latest snapshot is
// read, and the new transaction is appended with its running balance, so two
// concurrent mutations for one user can never both extend the same snapshot.
type LedgerService struct {
	uow                credit.UnitOfWork
	ledgerRepo         credit.LedgerRepository
	userRepo           identity.UserRepository
	logger             *zap.Logger
	welcomeCreditCents int64
}

// NewLedgerService creates a new ledger service
func NewLedgerService(
	uow credit.UnitOfWork,
	ledgerRepo credit.LedgerRepository,
	userRepo identity.UserRepository,
	logger *zap.Logger,
	welcomeCreditCents int64,
) *LedgerService {
	return &LedgerService{
		uow:                uow,
		ledgerRepo:         ledgerRepo,
		userRepo:           userRepo,
		logger:             logger,
		welcomeCreditCents: welcomeCreditCents,
	}
}

// latestBalance reads the balance snapshot from the most recent transaction.
// A user with no transactions has a zero balance.
func latestBalance(ctx context.Context, ledger credit.LedgerRepository, userID uuid.UUID) (int64, error) {
	latest, err := ledger.GetLatestByUserID(ctx, userID)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return 0, nil
		}
		return 0, err
	}
	return latest.BalanceAfterCents, nil
}

// GetBalance returns the user's current balance, derived from the latest
// ledger transaction. Reads do not take the user lock.
func (s *LedgerService) GetBalance(ctx context.Context, userID uuid.UUID) (*BalanceResponse, error) {
	latest, err := s.ledgerRepo.GetLatestByUserID(ctx, userID)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return &BalanceResponse{
				UserID: userID,
				AsOf:   time.Now(),
			}, nil
		}
		return nil, err
	}

	return &BalanceResponse{
		UserID:       userID,
		BalanceCents: latest.BalanceAfterCents,
		Balance:      centsToDecimal(latest.BalanceAfterCents),
		AsOf:         latest.CreatedAt,
	}, nil
}

// Credit appends a balance-increasing transaction to the user's ledger
func (s *LedgerService) Credit(ctx context.Context, userID uuid.UUID, req *CreditRequest) (*LedgerTransactionResponse, error) {
	kind := credit.TransactionKind(req.Kind)
	if !kind.IsCredit() {
		return nil, shared.NewDomainError("INVALID_KIND", "Kind must be a credit kind")
	}

	// Verify the user exists before taking the lock
	if _, err := s.userRepo.FindByID(ctx, userID); err != nil {
		return nil, err
	}

	var transaction *credit.LedgerTransaction
	err := s.uow.WithUserLock(ctx, userID, func(ledger credit.LedgerRepository) error {
		balanceBefore, err := latestBalance(ctx, ledger, userID)
		if err != nil {
			return err
		}

		transaction, err = credit.NewCreditTransaction(userID, kind, req.AmountCents, balanceBefore, req.Description)
		if err != nil {
			return err
		}
		if req.PaymentRef != "" {
			transaction.WithPaymentRef(req.PaymentRef)
		}

		return ledger.Append(ctx, transaction)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Credited user ledger",
		zap.String("user_id", userID.String()),
		zap.String("kind", req.Kind),
		zap.Int64("amount_cents", req.AmountCents),
		zap.Int64("balance_after_cents", transaction.BalanceAfterCents))

	response := ToLedgerTransactionResponse(transaction)
	return &response, nil
}

// Debit appends a balance-decreasing transaction to the user's ledger.
// Returns shared.InsufficientBalanceError when the amount exceeds the
// balance observed under the lock.
func (s *LedgerService) Debit(ctx context.Context, userID uuid.UUID, req *DebitRequest) (*LedgerTransactionResponse, error) {
	kind := credit.TransactionKind(req.Kind)
	if !kind.IsDebit() {
		return nil, shared.NewDomainError("INVALID_KIND", "Kind must be a debit kind")
	}

	if _, err := s.userRepo.FindByID(ctx, userID); err != nil {
		return nil, err
	}

	var transaction *credit.LedgerTransaction
	err := s.uow.WithUserLock(ctx, userID, func(ledger credit.LedgerRepository) error {
		balanceBefore, err := latestBalance(ctx, ledger, userID)
		if err != nil {
			return err
		}

		transaction, err = credit.NewDebitTransaction(userID, kind, req.AmountCents, balanceBefore, req.Description)
		if err != nil {
			return err
		}

		return ledger.Append(ctx, transaction)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Debited user ledger",
		zap.String("user_id", userID.String()),
		zap.String("kind", req.Kind),
		zap.Int64("amount_cents", req.AmountCents),
		zap.Int64("balance_after_cents", transaction.BalanceAfterCents))

	response := ToLedgerTransactionResponse(transaction)
	return &response, nil
}

// ProvisionWelcomeCredit grants the initial trial credit to a fresh account.
// It refuses to run on a ledger that already has transactions, so calling it
// twice for the same user cannot double-grant.
func (s *LedgerService) ProvisionWelcomeCredit(ctx context.Context, userID uuid.UUID) (*LedgerTransactionResponse, error) {
	if s.welcomeCreditCents <= 0 {
		return nil, nil
	}

	var transaction *credit.LedgerTransaction
	err := s.uow.WithUserLock(ctx, userID, func(ledger credit.LedgerRepository) error {
		_, err := ledger.GetLatestByUserID(ctx, userID)
		if err == nil {
			return fmt.Errorf("ledger already has transactions: %w", shared.ErrAlreadyExists)
		}
		if !errors.Is(err, shared.ErrNotFound) {
			return err
		}

		transaction, err = credit.NewCreditTransaction(
			userID, credit.TransactionKindAdd, s.welcomeCreditCents, 0, "Welcome credit")
		if err != nil {
			return err
		}

		return ledger.Append(ctx, transaction)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Provisioned welcome credit",
		zap.String("user_id", userID.String()),
		zap.Int64("amount_cents", s.welcomeCreditCents))

	response := ToLedgerTransactionResponse(transaction)
	return &response, nil
}

// GetTransaction returns a single ledger transaction by ID
func (s *LedgerService) GetTransaction(ctx context.Context, id uuid.UUID) (*LedgerTransactionResponse, error) {
	transaction, err := s.ledgerRepo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}

	response := ToLedgerTransactionResponse(transaction)
	return &response, nil
}

// ListTransactions returns a user's ledger transactions, most recent first
func (s *LedgerService) ListTransactions(ctx context.Context, userID uuid.UUID, filter *TransactionListFilter) (*LedgerTransactionListResponse, error) {
	domainFilter := credit.TransactionFilter{
		Page:     filter.Page,
		PageSize: filter.PageSize,
	}
	if domainFilter.Page < 1 {
		domainFilter.Page = 1
	}
	if domainFilter.PageSize < 1 {
		domainFilter.PageSize = 20
	}

	if filter.Kind != "" {
		kind := credit.TransactionKind(filter.Kind)
		if !kind.IsValid() {
			return nil, shared.NewDomainError("INVALID_KIND", "Unknown transaction kind")
		}
		domainFilter.Kind = &kind
	}
	if filter.DateFrom != "" {
		dateFrom, err := time.Parse("2006-01-02", filter.DateFrom)
		if err != nil {
			return nil, shared.NewDomainError("INVALID_DATE", "Invalid date_from format, expected YYYY-MM-DD")
		}
		domainFilter.DateFrom = &dateFrom
	}
	if filter.DateTo != "" {
		dateTo, err := time.Parse("2006-01-02", filter.DateTo)
		if err != nil {
			return nil, shared.NewDomainError("INVALID_DATE", "Invalid date_to format, expected YYYY-MM-DD")
		}
		// Include the whole end day
		endOfDay := dateTo.Add(24*time.Hour - time.Nanosecond)
		domainFilter.DateTo = &endOfDay
	}

	transactions, total, err := s.ledgerRepo.FindByUserID(ctx, userID, domainFilter)
	if err != nil {
		return nil, err
	}

	return &LedgerTransactionListResponse{
		Transactions: ToLedgerTransactionResponses(transactions),
		Total:        total,
		Page:         domainFilter.Page,
		PageSize:     domainFilter.PageSize,
	}, nil
}

// Audit checks the running-sum property of a user's ledger: the arithmetic
// sum of all amounts must equal the latest balance snapshot.
func (s *LedgerService) Audit(ctx context.Context, userID uuid.UUID) (*LedgerAuditResponse, error) {
	sum, err := s.ledgerRepo.SumAmountByUserID(ctx, userID)
	if err != nil {
		return nil, err
	}

	var latestBalanceCents int64
	latest, err := s.ledgerRepo.GetLatestByUserID(ctx, userID)
	if err != nil {
		if !errors.Is(err, shared.ErrNotFound) {
			return nil, err
		}
	} else {
		latestBalanceCents = latest.BalanceAfterCents
	}

	consistent := sum == latestBalanceCents
	if !consistent {
		s.logger.Error("Ledger running-sum check failed",
			zap.String("user_id", userID.String()),
			zap.Int64("sum_amount_cents", sum),
			zap.Int64("latest_balance_cents", latestBalanceCents))
	}

	return &LedgerAuditResponse{
		UserID:             userID,
		SumAmountCents:     sum,
		LatestBalanceCents: latestBalanceCents,
		Consistent:         consistent,
	}, nil
}
