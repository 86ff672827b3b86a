package models

import (
	"github.com/consulta/backend/internal/domain/consultation"
	"github.com/consulta/backend/internal/domain/shared"
	"github.com/google/uuid"
)

// ConsultationModel is the persistence model for the Consultation entity.
type ConsultationModel struct {
	BaseModel
	UserID              uuid.UUID                 `gorm:"type:uuid;not null;index:idx_consultation_user_created,priority:1"`
	CompanyDoc          string                    `gorm:"type:varchar(14);not null;index:idx_consultation_company"`
	Status              consultation.Status       `gorm:"type:varchar(20);not null;index:idx_consultation_status"`
	TotalCostCents      int64                     `gorm:"not null"`
	LedgerTransactionID *uuid.UUID                `gorm:"type:uuid"`
	Details             []ConsultationDetailModel `gorm:"foreignKey:ConsultationID"`
}

// TableName returns the table name for GORM
func (ConsultationModel) TableName() string {
	return "consultations"
}

// ToDomain converts the persistence model to a domain Consultation entity.
func (m *ConsultationModel) ToDomain() *consultation.Consultation {
	details := make([]*consultation.Detail, len(m.Details))
	for i := range m.Details {
		details[i] = m.Details[i].ToDomain()
	}
	return &consultation.Consultation{
		BaseEntity: shared.BaseEntity{
			ID:        m.ID,
			CreatedAt: m.CreatedAt,
			UpdatedAt: m.UpdatedAt,
		},
		UserID:              m.UserID,
		CompanyDoc:          m.CompanyDoc,
		Status:              m.Status,
		TotalCostCents:      m.TotalCostCents,
		LedgerTransactionID: m.LedgerTransactionID,
		Details:             details,
	}
}

// FromDomain populates the persistence model from a domain Consultation entity.
func (m *ConsultationModel) FromDomain(c *consultation.Consultation) {
	m.FromDomainBaseEntity(c.BaseEntity)
	m.UserID = c.UserID
	m.CompanyDoc = c.CompanyDoc
	m.Status = c.Status
	m.TotalCostCents = c.TotalCostCents
	m.LedgerTransactionID = c.LedgerTransactionID
	m.Details = make([]ConsultationDetailModel, len(c.Details))
	for i, d := range c.Details {
		m.Details[i].FromDomain(d)
	}
}

// ConsultationModelFromDomain creates a new persistence model from a domain Consultation entity.
func ConsultationModelFromDomain(c *consultation.Consultation) *ConsultationModel {
	m := &ConsultationModel{}
	m.FromDomain(c)
	return m
}

// ConsultationDetailModel is the persistence model for a per-sub-service
// outcome row.
type ConsultationDetailModel struct {
	BaseModel
	ConsultationID uuid.UUID `gorm:"type:uuid;not null;index:idx_consultation_detail_parent"`
	Code           string    `gorm:"type:varchar(50);not null"`
	CostCents      int64     `gorm:"not null"`
	Success        bool      `gorm:"not null;default:false"`
	CacheHit       bool      `gorm:"not null;default:false"`
	ErrorMessage   string    `gorm:"type:varchar(500)"`
	ElapsedMs      int64     `gorm:"not null;default:0"`
	Payload        []byte    `gorm:"type:jsonb"`
}

// TableName returns the table name for GORM
func (ConsultationDetailModel) TableName() string {
	return "consultation_details"
}

// ToDomain converts the persistence model to a domain Detail entity.
func (m *ConsultationDetailModel) ToDomain() *consultation.Detail {
	return &consultation.Detail{
		BaseEntity: shared.BaseEntity{
			ID:        m.ID,
			CreatedAt: m.CreatedAt,
			UpdatedAt: m.UpdatedAt,
		},
		ConsultationID: m.ConsultationID,
		Code:           m.Code,
		CostCents:      m.CostCents,
		Success:        m.Success,
		CacheHit:       m.CacheHit,
		ErrorMessage:   m.ErrorMessage,
		ElapsedMs:      m.ElapsedMs,
		Payload:        m.Payload,
	}
}

// FromDomain populates the persistence model from a domain Detail entity.
func (m *ConsultationDetailModel) FromDomain(d *consultation.Detail) {
	m.FromDomainBaseEntity(d.BaseEntity)
	m.ConsultationID = d.ConsultationID
	m.Code = d.Code
	m.CostCents = d.CostCents
	m.Success = d.Success
	m.CacheHit = d.CacheHit
	m.ErrorMessage = d.ErrorMessage
	m.ElapsedMs = d.ElapsedMs
	m.Payload = d.Payload
}
