package credit

import (
	"context"
	"errors"
	"time"

	"github.com/consulta/backend/internal/domain/credit"
	"github.com/consulta/backend/internal/domain/shared"
	gocache "github.com/patrickmn/go-cache"
	"go.uber.org/zap"
)

// PricingService resolves consultation costs from the catalog and manages
// catalog entries. Costs are cached with a short TTL so catalog reprices
// propagate within the cache window; pricing fails closed, a code that is
// missing or inactive is an error, never a zero-cost default. Catalog writes
// go through this service so they can invalidate the cache entry they touch.
type PricingService struct {
	typeRepo  credit.ConsultationTypeRepository
	costCache *gocache.Cache
	logger    *zap.Logger
}

// NewPricingService creates a new pricing service. cacheTTL bounds how stale
// a cached cost may be.
func NewPricingService(typeRepo credit.ConsultationTypeRepository, cacheTTL time.Duration, logger *zap.Logger) *PricingService {
	return &PricingService{
		typeRepo:  typeRepo,
		costCache: gocache.New(cacheTTL, 2*cacheTTL),
		logger:    logger,
	}
}

// PriceOf returns the cost in cents of a single sub-service code. Returns
// shared.UnpriceableError when the code is missing from the catalog or
// inactive. Only orderable costs are cached; an unpriceable code is
// re-checked on every call so reactivating it takes effect immediately.
func (s *PricingService) PriceOf(ctx context.Context, code string) (int64, error) {
	if cached, found := s.costCache.Get(code); found {
		return cached.(int64), nil
	}

	ct, err := s.typeRepo.FindByCode(ctx, code)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return 0, &shared.UnpriceableError{Code: code}
		}
		return 0, err
	}
	if !ct.IsOrderable() {
		return 0, &shared.UnpriceableError{Code: code}
	}

	s.costCache.SetDefault(code, ct.CostCents)
	return ct.CostCents, nil
}

// Quote prices a set of sub-service codes. Duplicate codes are collapsed;
// a single unpriceable code fails the whole quote.
func (s *PricingService) Quote(ctx context.Context, codes []string) (*QuoteResponse, error) {
	if len(codes) == 0 {
		return nil, shared.NewDomainError("INVALID_CODES", "At least one consultation code is required")
	}

	seen := make(map[string]bool, len(codes))
	unique := make([]string, 0, len(codes))
	for _, code := range codes {
		if code == "" {
			return nil, shared.NewDomainError("INVALID_CODES", "Consultation code cannot be empty")
		}
		if !seen[code] {
			seen[code] = true
			unique = append(unique, code)
		}
	}

	costByCode := make(map[string]int64, len(unique))
	var total int64
	for _, code := range unique {
		cost, err := s.PriceOf(ctx, code)
		if err != nil {
			return nil, err
		}
		costByCode[code] = cost
		total += cost
	}

	return &QuoteResponse{
		Codes:          unique,
		CostByCode:     costByCode,
		TotalCostCents: total,
		TotalCost:      centsToDecimal(total),
	}, nil
}

// CreateType adds a new catalog entry
func (s *PricingService) CreateType(ctx context.Context, req *CreateConsultationTypeRequest) (*ConsultationTypeResponse, error) {
	// Check for existing code
	existing, err := s.typeRepo.FindByCode(ctx, req.Code)
	if err != nil && !errors.Is(err, shared.ErrNotFound) {
		return nil, err
	}
	if existing != nil {
		return nil, shared.ErrAlreadyExists
	}

	ct, err := credit.NewConsultationType(req.Code, req.Name, req.CostCents)
	if err != nil {
		return nil, err
	}

	if err := s.typeRepo.Create(ctx, ct); err != nil {
		return nil, err
	}

	s.logger.Info("Created consultation type",
		zap.String("code", ct.Code),
		zap.Int64("cost_cents", ct.CostCents))

	response := ToConsultationTypeResponse(ct)
	return &response, nil
}

// UpdateType reprices or toggles a catalog entry and drops its cached cost
func (s *PricingService) UpdateType(ctx context.Context, code string, req *UpdateConsultationTypeRequest) (*ConsultationTypeResponse, error) {
	ct, err := s.typeRepo.FindByCode(ctx, code)
	if err != nil {
		return nil, err
	}

	if req.Name != nil {
		ct.Name = *req.Name
		ct.UpdatedAt = time.Now()
	}
	if req.CostCents != nil {
		if err := ct.SetCost(*req.CostCents); err != nil {
			return nil, err
		}
	}
	if req.IsActive != nil {
		if *req.IsActive {
			ct.Activate()
		} else {
			ct.Deactivate()
		}
	}

	if err := s.typeRepo.Save(ctx, ct); err != nil {
		return nil, err
	}

	// Drop the stale cost so the new price takes effect without waiting
	// out the TTL
	s.costCache.Delete(code)

	s.logger.Info("Updated consultation type",
		zap.String("code", ct.Code),
		zap.Int64("cost_cents", ct.CostCents),
		zap.Bool("is_active", ct.IsActive))

	response := ToConsultationTypeResponse(ct)
	return &response, nil
}

// GetType returns a single catalog entry by code
func (s *PricingService) GetType(ctx context.Context, code string) (*ConsultationTypeResponse, error) {
	ct, err := s.typeRepo.FindByCode(ctx, code)
	if err != nil {
		return nil, err
	}

	response := ToConsultationTypeResponse(ct)
	return &response, nil
}

// ListTypes returns catalog entries, optionally including inactive ones
func (s *PricingService) ListTypes(ctx context.Context, includeInactive bool) ([]ConsultationTypeResponse, error) {
	types, err := s.typeRepo.FindAll(ctx, includeInactive)
	if err != nil {
		return nil, err
	}
	return ToConsultationTypeResponses(types), nil
}
