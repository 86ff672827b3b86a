package payment

import (
	"time"

	"github.com/google/uuid"
)

// CreateCustomerInput contains data for creating a Stripe customer
type CreateCustomerInput struct {
	UserID   uuid.UUID
	Email    string
	Name     string
	Metadata map[string]string
}

// CreateCustomerOutput contains the created customer details
type CreateCustomerOutput struct {
	CustomerID string
	Email      string
	Name       string
	CreatedAt  time.Time
}

// ChargeInput contains data for an off-session charge against a saved
// payment method
type ChargeInput struct {
	CustomerID  string
	AmountCents int64
	Description string
	Metadata    map[string]string
}

// ChargeOutput contains the result of a successful charge
type ChargeOutput struct {
	PaymentIntentID string
	AmountCents     int64
	Currency        string
}
