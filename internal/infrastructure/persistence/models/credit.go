package models

import (
	"github.com/consulta/backend/internal/domain/credit"
	"github.com/consulta/backend/internal/domain/shared"
	"github.com/google/uuid"
)

// LedgerTransactionModel is the persistence model for the LedgerTransaction
// entity. Rows are insert-only; there is no code path that updates or
// deletes them.
type LedgerTransactionModel struct {
	BaseModel
	UserID            uuid.UUID              `gorm:"type:uuid;not null;index:idx_ledger_user_created,priority:1"`
	Kind              credit.TransactionKind `gorm:"type:varchar(20);not null;index:idx_ledger_kind"`
	AmountCents       int64                  `gorm:"not null"`
	BalanceAfterCents int64                  `gorm:"not null"`
	Description       string                 `gorm:"type:varchar(500)"`
	ConsultationID    *uuid.UUID             `gorm:"type:uuid;index:idx_ledger_consultation"`
	PaymentRef        *string                `gorm:"type:varchar(100);index:idx_ledger_payment_ref"`
}

// TableName returns the table name for GORM
func (LedgerTransactionModel) TableName() string {
	return "ledger_transactions"
}

// ToDomain converts the persistence model to a domain LedgerTransaction entity.
func (m *LedgerTransactionModel) ToDomain() *credit.LedgerTransaction {
	return &credit.LedgerTransaction{
		BaseEntity: shared.BaseEntity{
			ID:        m.ID,
			CreatedAt: m.CreatedAt,
			UpdatedAt: m.UpdatedAt,
		},
		UserID:            m.UserID,
		Kind:              m.Kind,
		AmountCents:       m.AmountCents,
		BalanceAfterCents: m.BalanceAfterCents,
		Description:       m.Description,
		ConsultationID:    m.ConsultationID,
		PaymentRef:        m.PaymentRef,
	}
}

// FromDomain populates the persistence model from a domain LedgerTransaction entity.
func (m *LedgerTransactionModel) FromDomain(t *credit.LedgerTransaction) {
	m.FromDomainBaseEntity(t.BaseEntity)
	m.UserID = t.UserID
	m.Kind = t.Kind
	m.AmountCents = t.AmountCents
	m.BalanceAfterCents = t.BalanceAfterCents
	m.Description = t.Description
	m.ConsultationID = t.ConsultationID
	m.PaymentRef = t.PaymentRef
}

// LedgerTransactionModelFromDomain creates a new persistence model from a domain LedgerTransaction entity.
func LedgerTransactionModelFromDomain(t *credit.LedgerTransaction) *LedgerTransactionModel {
	m := &LedgerTransactionModel{}
	m.FromDomain(t)
	return m
}

// ConsultationTypeModel is the persistence model for the ConsultationType
// catalog entry.
type ConsultationTypeModel struct {
	BaseModel
	Code      string `gorm:"type:varchar(50);not null;uniqueIndex:idx_consultation_type_code"`
	Name      string `gorm:"type:varchar(200);not null"`
	CostCents int64  `gorm:"not null;default:0"`
	IsActive  bool   `gorm:"not null;default:true"`
}

// TableName returns the table name for GORM
func (ConsultationTypeModel) TableName() string {
	return "consultation_types"
}

// ToDomain converts the persistence model to a domain ConsultationType entity.
func (m *ConsultationTypeModel) ToDomain() *credit.ConsultationType {
	return &credit.ConsultationType{
		BaseEntity: shared.BaseEntity{
			ID:        m.ID,
			CreatedAt: m.CreatedAt,
			UpdatedAt: m.UpdatedAt,
		},
		Code:      m.Code,
		Name:      m.Name,
		CostCents: m.CostCents,
		IsActive:  m.IsActive,
	}
}

// FromDomain populates the persistence model from a domain ConsultationType entity.
func (m *ConsultationTypeModel) FromDomain(ct *credit.ConsultationType) {
	m.FromDomainBaseEntity(ct.BaseEntity)
	m.Code = ct.Code
	m.Name = ct.Name
	m.CostCents = ct.CostCents
	m.IsActive = ct.IsActive
}

// ConsultationTypeModelFromDomain creates a new persistence model from a domain ConsultationType entity.
func ConsultationTypeModelFromDomain(ct *credit.ConsultationType) *ConsultationTypeModel {
	m := &ConsultationTypeModel{}
	m.FromDomain(ct)
	return m
}
