package identity

import (
	"time"

	"github.com/consulta/backend/internal/domain/shared"
)

// User is the billing identity that owns a credit ledger. Authentication
// lives outside this service; the user row exists so ledger operations have
// a stable per-user lock target and so provider events can be correlated
// back through StripeCustomerID.
type User struct {
	shared.BaseEntity
	Email              string
	Name               string
	StripeCustomerID   string
	AutoRenewalEnabled bool
	Active             bool
}

// NewUser creates an active user
func NewUser(email, name string) (*User, error) {
	if email == "" {
		return nil, shared.NewDomainError("INVALID_EMAIL", "Email cannot be empty")
	}

	return &User{
		BaseEntity:         shared.NewBaseEntity(),
		Email:              email,
		Name:               name,
		AutoRenewalEnabled: true,
		Active:             true,
	}, nil
}

// SetStripeCustomerID records the provider-side customer reference
func (u *User) SetStripeCustomerID(customerID string) {
	u.StripeCustomerID = customerID
	u.UpdatedAt = time.Now()
}

// SetAutoRenewal toggles on-demand plan renewal on insufficient balance
func (u *User) SetAutoRenewal(enabled bool) {
	u.AutoRenewalEnabled = enabled
	u.UpdatedAt = time.Now()
}

// Deactivate blocks the user from new consultations
func (u *User) Deactivate() {
	u.Active = false
	u.UpdatedAt = time.Now()
}
