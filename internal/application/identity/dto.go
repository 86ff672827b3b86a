package identity

import (
	"time"

	"github.com/consulta/backend/internal/domain/identity"
	"github.com/google/uuid"
)

// RegisterUserRequest represents a request to create a billing account
type RegisterUserRequest struct {
	Email string `json:"email" binding:"required,email,max=255"`
	Name  string `json:"name" binding:"required,max=255"`
}

// UpdateAutoRenewalRequest represents a request to toggle on-demand renewal
type UpdateAutoRenewalRequest struct {
	Enabled *bool `json:"enabled" binding:"required"`
}

// UserResponse represents a user in API responses
type UserResponse struct {
	ID                 uuid.UUID `json:"id"`
	Email              string    `json:"email"`
	Name               string    `json:"name"`
	StripeCustomerID   string    `json:"stripe_customer_id,omitempty"`
	AutoRenewalEnabled bool      `json:"auto_renewal_enabled"`
	Active             bool      `json:"active"`
	CreatedAt          time.Time `json:"created_at"`
}

// ToUserResponse converts a domain User to UserResponse
func ToUserResponse(u *identity.User) UserResponse {
	return UserResponse{
		ID:                 u.ID,
		Email:              u.Email,
		Name:               u.Name,
		StripeCustomerID:   u.StripeCustomerID,
		AutoRenewalEnabled: u.AutoRenewalEnabled,
		Active:             u.Active,
		CreatedAt:          u.CreatedAt,
	}
}
