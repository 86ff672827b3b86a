package credit

import (
	"time"

	"github.com/consulta/backend/internal/domain/shared"
)

// ConsultationType is a catalog entry for a single orderable sub-service.
// Code is the stable string key used by clients (e.g. "protestos",
// "receita_federal"). A missing or inactive code is not orderable: pricing
// fails closed instead of defaulting to zero.
type ConsultationType struct {
	shared.BaseEntity
	Code      string
	Name      string
	CostCents int64
	IsActive  bool
}

// NewConsultationType creates a new catalog entry
func NewConsultationType(code, name string, costCents int64) (*ConsultationType, error) {
	if code == "" {
		return nil, shared.NewDomainError("INVALID_CODE", "Code cannot be empty")
	}
	if name == "" {
		return nil, shared.NewDomainError("INVALID_NAME", "Name cannot be empty")
	}
	if costCents < 0 {
		return nil, shared.NewDomainError("INVALID_COST", "Cost cannot be negative")
	}

	return &ConsultationType{
		BaseEntity: shared.NewBaseEntity(),
		Code:       code,
		Name:       name,
		CostCents:  costCents,
		IsActive:   true,
	}, nil
}

// SetCost updates the cost of the consultation type
func (c *ConsultationType) SetCost(costCents int64) error {
	if costCents < 0 {
		return shared.NewDomainError("INVALID_COST", "Cost cannot be negative")
	}
	c.CostCents = costCents
	c.UpdatedAt = time.Now()
	return nil
}

// Activate makes the type orderable
func (c *ConsultationType) Activate() {
	c.IsActive = true
	c.UpdatedAt = time.Now()
}

// Deactivate makes the type not orderable
func (c *ConsultationType) Deactivate() {
	c.IsActive = false
	c.UpdatedAt = time.Now()
}

// IsOrderable returns true if the type can currently be priced and ordered
func (c *ConsultationType) IsOrderable() bool {
	return c.IsActive
}
