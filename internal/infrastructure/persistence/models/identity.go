package models

import (
	"github.com/consulta/backend/internal/domain/identity"
	"github.com/consulta/backend/internal/domain/shared"
)

// UserModel is the persistence model for the User entity. The row doubles
// as the lock target for per-user ledger serialization.
type UserModel struct {
	BaseModel
	Email              string `gorm:"type:varchar(200);not null;uniqueIndex:idx_user_email"`
	Name               string `gorm:"type:varchar(200)"`
	StripeCustomerID   string `gorm:"type:varchar(100);index:idx_user_stripe_customer"`
	AutoRenewalEnabled bool   `gorm:"not null;default:true"`
	Active             bool   `gorm:"not null;default:true"`
}

// TableName returns the table name for GORM
func (UserModel) TableName() string {
	return "users"
}

// ToDomain converts the persistence model to a domain User entity.
func (m *UserModel) ToDomain() *identity.User {
	return &identity.User{
		BaseEntity: shared.BaseEntity{
			ID:        m.ID,
			CreatedAt: m.CreatedAt,
			UpdatedAt: m.UpdatedAt,
		},
		Email:              m.Email,
		Name:               m.Name,
		StripeCustomerID:   m.StripeCustomerID,
		AutoRenewalEnabled: m.AutoRenewalEnabled,
		Active:             m.Active,
	}
}

// FromDomain populates the persistence model from a domain User entity.
func (m *UserModel) FromDomain(u *identity.User) {
	m.FromDomainBaseEntity(u.BaseEntity)
	m.Email = u.Email
	m.Name = u.Name
	m.StripeCustomerID = u.StripeCustomerID
	m.AutoRenewalEnabled = u.AutoRenewalEnabled
	m.Active = u.Active
}

// UserModelFromDomain creates a new persistence model from a domain User entity.
func UserModelFromDomain(u *identity.User) *UserModel {
	m := &UserModel{}
	m.FromDomain(u)
	return m
}
