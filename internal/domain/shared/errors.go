package shared

import "fmt"

// DomainError represents a domain-level error
type DomainError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Error implements the error interface
func (e *DomainError) Error() string {
	return e.Message
}

// NewDomainError creates a new domain error
func NewDomainError(code, message string) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
	}
}

// Common domain errors
var (
	ErrNotFound            = NewDomainError("NOT_FOUND", "Resource not found")
	ErrAlreadyExists       = NewDomainError("ALREADY_EXISTS", "Resource already exists")
	ErrInvalidInput        = NewDomainError("INVALID_INPUT", "Invalid input provided")
	ErrConcurrencyConflict = NewDomainError("CONCURRENCY_CONFLICT", "Resource was modified by another process")
	ErrUnauthorized        = NewDomainError("UNAUTHORIZED", "Not authorized to perform this action")
	ErrForbidden           = NewDomainError("FORBIDDEN", "Access to this resource is forbidden")
	ErrInvalidState        = NewDomainError("INVALID_STATE", "Operation not allowed in current state")
	ErrRenewalDisabled     = NewDomainError("RENEWAL_DISABLED", "Auto renewal is not enabled for this user")
	ErrPaymentDeclined     = NewDomainError("PAYMENT_DECLINED", "Payment was declined by the provider")
	ErrRenewalInProgress   = NewDomainError("RENEWAL_IN_PROGRESS", "A renewal is already in progress for this user")
)

// InsufficientBalanceError is returned when a debit exceeds the current
// balance. Shortfall is the number of cents missing to cover the debit.
type InsufficientBalanceError struct {
	BalanceCents   int64
	RequestedCents int64
}

// Error implements the error interface
func (e *InsufficientBalanceError) Error() string {
	return fmt.Sprintf("insufficient balance: have %d, need %d (short %d)",
		e.BalanceCents, e.RequestedCents, e.Shortfall())
}

// Shortfall returns the missing amount in cents
func (e *InsufficientBalanceError) Shortfall() int64 {
	return e.RequestedCents - e.BalanceCents
}

// UnpriceableError is returned when a consultation type cannot be priced
// because it is missing from the catalog or inactive. Pricing fails closed:
// an unpriceable code never defaults to zero cost.
type UnpriceableError struct {
	Code string
}

// Error implements the error interface
func (e *UnpriceableError) Error() string {
	return fmt.Sprintf("consultation type %q is not orderable", e.Code)
}
