package consultation

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	creditapp "github.com/consulta/backend/internal/application/credit"
	"github.com/consulta/backend/internal/domain/consultation"
	"github.com/consulta/backend/internal/domain/credit"
	"github.com/consulta/backend/internal/domain/identity"
	"github.com/consulta/backend/internal/domain/shared"
	"github.com/consulta/backend/internal/infrastructure/lookup"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// maxParallelLookups bounds the provider fan-out of a single consultation
const maxParallelLookups = 4

// Pricer resolves the cost of a set of sub-service codes
type Pricer interface {
	Quote(ctx context.Context, codes []string) (*creditapp.QuoteResponse, error)
}

// Renewer performs an on-demand plan renewal for a user whose balance cannot
// cover a debit
type Renewer interface {
	Renew(ctx context.Context, userID uuid.UUID) error
}

// Fetcher retrieves one sub-service result from the upstream data provider
type Fetcher interface {
	Fetch(ctx context.Context, companyDoc, code string) (*lookup.Result, error)
}

// BillingService runs the consultation lifecycle: price the requested codes,
// reserve credit under the per-user lock, fan lookups out to the provider,
// and commit. The debit pays for the attempt, not the result: a sub-service
// that fails after the debit is recorded on its detail row and the charge
// stands. Refunds are an explicit administrative operation.
type BillingService struct {
	uow              credit.UnitOfWork
	consultationRepo consultation.Repository
	userRepo         identity.UserRepository
	pricer           Pricer
	renewer          Renewer
	fetcher          Fetcher
	logger           *zap.Logger
}

// NewBillingService creates a new consultation billing service
func NewBillingService(
	uow credit.UnitOfWork,
	consultationRepo consultation.Repository,
	userRepo identity.UserRepository,
	pricer Pricer,
	renewer Renewer,
	fetcher Fetcher,
	logger *zap.Logger,
) *BillingService {
	return &BillingService{
		uow:              uow,
		consultationRepo: consultationRepo,
		userRepo:         userRepo,
		pricer:           pricer,
		renewer:          renewer,
		fetcher:          fetcher,
		logger:           logger,
	}
}

// normalizeCompanyDoc strips formatting from a CNPJ and validates its shape
func normalizeCompanyDoc(doc string) (string, error) {
	var digits strings.Builder
	for _, r := range doc {
		if r >= '0' && r <= '9' {
			digits.WriteRune(r)
		}
	}
	normalized := digits.String()
	if len(normalized) != 14 {
		return "", shared.NewDomainError("INVALID_COMPANY", "Company document must be a 14-digit CNPJ")
	}
	return normalized, nil
}

// Perform runs a consultation end to end
func (s *BillingService) Perform(ctx context.Context, userID uuid.UUID, req *PerformConsultationRequest) (*ConsultationResponse, error) {
	user, err := s.userRepo.FindByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !user.Active {
		return nil, shared.ErrForbidden
	}

	companyDoc, err := normalizeCompanyDoc(req.CompanyDoc)
	if err != nil {
		return nil, err
	}

	// Price before touching the ledger; an unpriceable code aborts with no
	// consultation record and no debit
	quote, err := s.pricer.Quote(ctx, req.Codes)
	if err != nil {
		return nil, err
	}

	c, err := consultation.NewConsultation(userID, companyDoc, quote.TotalCostCents)
	if err != nil {
		return nil, err
	}
	for _, code := range quote.Codes {
		detail, err := consultation.NewDetail(code, quote.CostByCode[code])
		if err != nil {
			return nil, err
		}
		c.AddDetail(detail)
	}

	if err := s.consultationRepo.Create(ctx, c); err != nil {
		return nil, err
	}

	if err := s.reserve(ctx, user, c); err != nil {
		return nil, err
	}

	s.runLookups(ctx, c)

	if err := c.Commit(); err != nil {
		return nil, err
	}
	if err := s.consultationRepo.Save(ctx, c); err != nil {
		return nil, err
	}

	s.logger.Info("Consultation committed",
		zap.String("consultation_id", c.ID.String()),
		zap.String("user_id", userID.String()),
		zap.Int64("total_cost_cents", c.TotalCostCents),
		zap.Int("succeeded", c.SucceededCount()),
		zap.Int("requested", len(c.Details)))

	response := ToConsultationResponse(c)
	return &response, nil
}

// reserve debits the consultation cost under the per-user lock and moves the
// consultation to Reserved. On insufficient balance it triggers one on-demand
// renewal and retries the debit exactly once.
func (s *BillingService) reserve(ctx context.Context, user *identity.User, c *consultation.Consultation) error {
	if c.TotalCostCents == 0 {
		if err := c.ReserveWithoutCharge(); err != nil {
			return err
		}
		return s.consultationRepo.Save(ctx, c)
	}

	tx, err := s.debit(ctx, c)

	var insufficient *shared.InsufficientBalanceError
	if errors.As(err, &insufficient) && user.AutoRenewalEnabled && s.renewer != nil {
		s.logger.Info("Balance insufficient, attempting on-demand renewal",
			zap.String("user_id", user.ID.String()),
			zap.Int64("shortfall_cents", insufficient.Shortfall()))

		if renewErr := s.renewer.Renew(ctx, user.ID); renewErr != nil {
			s.fail(ctx, c)
			return renewErr
		}

		// One retry after the renewal credit landed
		tx, err = s.debit(ctx, c)
	}
	if err != nil {
		s.fail(ctx, c)
		return err
	}

	if err := c.Reserve(tx.ID); err != nil {
		return err
	}
	return s.consultationRepo.Save(ctx, c)
}

// debit appends the usage transaction for the consultation under the user lock
func (s *BillingService) debit(ctx context.Context, c *consultation.Consultation) (*credit.LedgerTransaction, error) {
	var tx *credit.LedgerTransaction
	err := s.uow.WithUserLock(ctx, c.UserID, func(ledger credit.LedgerRepository) error {
		var balanceBefore int64
		latest, err := ledger.GetLatestByUserID(ctx, c.UserID)
		if err != nil {
			if !errors.Is(err, shared.ErrNotFound) {
				return err
			}
		} else {
			balanceBefore = latest.BalanceAfterCents
		}

		tx, err = credit.NewDebitTransaction(
			c.UserID, credit.TransactionKindUsage, c.TotalCostCents, balanceBefore,
			fmt.Sprintf("Consultation %s", c.CompanyDoc))
		if err != nil {
			return err
		}
		tx.WithConsultationID(c.ID)

		return ledger.Append(ctx, tx)
	})
	if err != nil {
		return nil, err
	}
	return tx, nil
}

// fail moves a still-unreserved consultation to Failed, best effort
func (s *BillingService) fail(ctx context.Context, c *consultation.Consultation) {
	if err := c.Fail(); err != nil {
		return
	}
	if err := s.consultationRepo.Save(ctx, c); err != nil {
		s.logger.Warn("Failed to persist consultation failure",
			zap.String("consultation_id", c.ID.String()),
			zap.Error(err))
	}
}

// runLookups fans out one provider call per detail. Failures are recorded on
// the detail and never abort the consultation.
func (s *BillingService) runLookups(ctx context.Context, c *consultation.Consultation) {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxParallelLookups)

	for _, d := range c.Details {
		g.Go(func() error {
			start := time.Now()
			result, err := s.fetcher.Fetch(gctx, c.CompanyDoc, d.Code)
			if err != nil {
				d.MarkError(err.Error(), time.Since(start).Milliseconds())
				return nil
			}
			d.MarkSuccess(result.Payload, result.CacheHit, result.ElapsedMs)
			return nil
		})
	}

	// Goroutines report outcomes on their detail rows, never as errors
	_ = g.Wait()
}

// Get returns a consultation with its details. A consultation belonging to
// another user is reported as not found.
func (s *BillingService) Get(ctx context.Context, userID, consultationID uuid.UUID) (*ConsultationResponse, error) {
	c, err := s.consultationRepo.FindByID(ctx, consultationID)
	if err != nil {
		return nil, err
	}
	if c.UserID != userID {
		return nil, shared.ErrNotFound
	}

	response := ToConsultationResponse(c)
	return &response, nil
}

// List returns a user's consultations, most recent first
func (s *BillingService) List(ctx context.Context, userID uuid.UUID, filter *ListFilter) (*ConsultationListResponse, error) {
	domainFilter := consultation.Filter{
		Page:     filter.Page,
		PageSize: filter.PageSize,
	}
	if domainFilter.Page < 1 {
		domainFilter.Page = 1
	}
	if domainFilter.PageSize < 1 {
		domainFilter.PageSize = 20
	}
	if filter.Status != "" {
		status := consultation.Status(filter.Status)
		if !status.IsValid() {
			return nil, shared.NewDomainError("INVALID_STATUS", "Unknown consultation status")
		}
		domainFilter.Status = &status
	}

	consultations, total, err := s.consultationRepo.FindByUserID(ctx, userID, domainFilter)
	if err != nil {
		return nil, err
	}

	return &ConsultationListResponse{
		Consultations: ToConsultationResponses(consultations),
		Total:         total,
		Page:          domainFilter.Page,
		PageSize:      domainFilter.PageSize,
	}, nil
}

// Refund reverses a consultation's debit with a compensating credit and marks
// the consultation refunded. Administrative operation; the ledger keeps both
// the original debit and the refund.
func (s *BillingService) Refund(ctx context.Context, consultationID uuid.UUID, req *RefundConsultationRequest) (*ConsultationResponse, error) {
	c, err := s.consultationRepo.FindByID(ctx, consultationID)
	if err != nil {
		return nil, err
	}
	if c.Status != consultation.StatusReserved && c.Status != consultation.StatusCommitted {
		return nil, shared.ErrInvalidState
	}

	if c.TotalCostCents > 0 {
		err = s.uow.WithUserLock(ctx, c.UserID, func(ledger credit.LedgerRepository) error {
			var balanceBefore int64
			latest, err := ledger.GetLatestByUserID(ctx, c.UserID)
			if err != nil {
				if !errors.Is(err, shared.ErrNotFound) {
					return err
				}
			} else {
				balanceBefore = latest.BalanceAfterCents
			}

			tx, err := credit.NewCreditTransaction(
				c.UserID, credit.TransactionKindAdd, c.TotalCostCents, balanceBefore,
				fmt.Sprintf("Refund: %s", req.Reason))
			if err != nil {
				return err
			}
			tx.WithConsultationID(c.ID)

			return ledger.Append(ctx, tx)
		})
		if err != nil {
			return nil, err
		}
	}

	if err := c.Refund(); err != nil {
		return nil, err
	}
	if err := s.consultationRepo.Save(ctx, c); err != nil {
		return nil, err
	}

	s.logger.Info("Consultation refunded",
		zap.String("consultation_id", c.ID.String()),
		zap.String("user_id", c.UserID.String()),
		zap.Int64("amount_cents", c.TotalCostCents))

	response := ToConsultationResponse(c)
	return &response, nil
}
