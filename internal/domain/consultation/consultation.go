package consultation

import (
	"time"

	"github.com/consulta/backend/internal/domain/shared"
	"github.com/google/uuid"
)

// Status represents the billing state of a consultation request
type Status string

const (
	// StatusPriced means the cost has been resolved but no credit reserved yet
	StatusPriced Status = "priced"
	// StatusReserved means credit has been debited and lookups are running
	StatusReserved Status = "reserved"
	// StatusCommitted means the consultation finished and the debit stands
	StatusCommitted Status = "committed"
	// StatusRefunded means the debit was reversed by a compensating credit
	StatusRefunded Status = "refunded"
	// StatusFailed means the consultation was not performed (no debit stands)
	StatusFailed Status = "failed"
)

// String returns the string representation of Status
func (s Status) String() string {
	return string(s)
}

// IsValid returns true if the status is valid
func (s Status) IsValid() bool {
	switch s {
	case StatusPriced, StatusReserved, StatusCommitted, StatusRefunded, StatusFailed:
		return true
	}
	return false
}

// IsTerminal returns true if no further transitions are allowed
func (s Status) IsTerminal() bool {
	switch s {
	case StatusCommitted, StatusRefunded, StatusFailed:
		return true
	}
	return false
}

// Consultation is one metered request against a company document. Its
// lifecycle is Priced -> Reserved -> {Committed, Refunded, Failed}. The
// ledger debit happens on the Priced -> Reserved transition; a sub-service
// failure after that point does not reverse the debit (cost of attempt, not
// cost of success) and is recorded on the detail row instead.
type Consultation struct {
	shared.BaseEntity
	UserID              uuid.UUID
	CompanyDoc          string // CNPJ, digits only
	Status              Status
	TotalCostCents      int64
	LedgerTransactionID *uuid.UUID
	Details             []*Detail
}

// Detail records the outcome of one requested sub-service within a
// consultation, independent of the payment outcome.
type Detail struct {
	shared.BaseEntity
	ConsultationID uuid.UUID
	Code           string
	CostCents      int64
	Success        bool
	CacheHit       bool
	ErrorMessage   string
	ElapsedMs      int64
	Payload        []byte // Raw provider response, JSON
}

// NewConsultation creates a consultation in the Priced state
func NewConsultation(userID uuid.UUID, companyDoc string, totalCostCents int64) (*Consultation, error) {
	if userID == uuid.Nil {
		return nil, shared.NewDomainError("INVALID_USER", "User ID cannot be empty")
	}
	if companyDoc == "" {
		return nil, shared.NewDomainError("INVALID_COMPANY", "Company document cannot be empty")
	}
	if totalCostCents < 0 {
		return nil, shared.NewDomainError("INVALID_COST", "Total cost cannot be negative")
	}

	return &Consultation{
		BaseEntity:     shared.NewBaseEntity(),
		UserID:         userID,
		CompanyDoc:     companyDoc,
		Status:         StatusPriced,
		TotalCostCents: totalCostCents,
	}, nil
}

// Reserve records the ledger debit backing this consultation
func (c *Consultation) Reserve(ledgerTransactionID uuid.UUID) error {
	if c.Status != StatusPriced {
		return shared.ErrInvalidState
	}
	c.Status = StatusReserved
	c.LedgerTransactionID = &ledgerTransactionID
	c.UpdatedAt = time.Now()
	return nil
}

// ReserveWithoutCharge moves a zero-cost consultation to Reserved with no
// backing debit
func (c *Consultation) ReserveWithoutCharge() error {
	if c.Status != StatusPriced {
		return shared.ErrInvalidState
	}
	if c.TotalCostCents != 0 {
		return shared.ErrInvalidState
	}
	c.Status = StatusReserved
	c.UpdatedAt = time.Now()
	return nil
}

// Commit finalizes the consultation after lookups completed
func (c *Consultation) Commit() error {
	if c.Status != StatusReserved {
		return shared.ErrInvalidState
	}
	c.Status = StatusCommitted
	c.UpdatedAt = time.Now()
	return nil
}

// Refund marks the debit as reversed by a compensating credit
func (c *Consultation) Refund() error {
	if c.Status != StatusReserved && c.Status != StatusCommitted {
		return shared.ErrInvalidState
	}
	c.Status = StatusRefunded
	c.UpdatedAt = time.Now()
	return nil
}

// Fail marks the consultation as not performed. Only legal before credit
// has been reserved; once debited, the outcome is Committed or Refunded.
func (c *Consultation) Fail() error {
	if c.Status != StatusPriced {
		return shared.ErrInvalidState
	}
	c.Status = StatusFailed
	c.UpdatedAt = time.Now()
	return nil
}

// AddDetail appends a per-sub-service outcome
func (c *Consultation) AddDetail(detail *Detail) {
	detail.ConsultationID = c.ID
	c.Details = append(c.Details, detail)
}

// SucceededCount returns how many sub-services completed successfully
func (c *Consultation) SucceededCount() int {
	n := 0
	for _, d := range c.Details {
		if d.Success {
			n++
		}
	}
	return n
}

// NewDetail creates a detail row for a requested sub-service
func NewDetail(code string, costCents int64) (*Detail, error) {
	if code == "" {
		return nil, shared.NewDomainError("INVALID_CODE", "Code cannot be empty")
	}
	if costCents < 0 {
		return nil, shared.NewDomainError("INVALID_COST", "Cost cannot be negative")
	}

	return &Detail{
		BaseEntity: shared.NewBaseEntity(),
		Code:       code,
		CostCents:  costCents,
	}, nil
}

// MarkSuccess records a successful lookup outcome
func (d *Detail) MarkSuccess(payload []byte, cacheHit bool, elapsedMs int64) {
	d.Success = true
	d.CacheHit = cacheHit
	d.ElapsedMs = elapsedMs
	d.Payload = payload
	d.UpdatedAt = time.Now()
}

// MarkError records a failed lookup outcome. The cost stands.
func (d *Detail) MarkError(message string, elapsedMs int64) {
	d.Success = false
	d.ErrorMessage = message
	d.ElapsedMs = elapsedMs
	d.UpdatedAt = time.Now()
}
