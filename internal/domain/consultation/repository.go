package consultation

import (
	"context"

	"github.com/google/uuid"
)

// Filter represents filter options for consultation queries
type Filter struct {
	Status   *Status
	Page     int
	PageSize int
}

// Repository provides access to consultations and their details
type Repository interface {
	// Create persists the consultation together with its detail rows
	Create(ctx context.Context, c *Consultation) error

	// Save persists state transitions on an existing consultation
	Save(ctx context.Context, c *Consultation) error

	FindByID(ctx context.Context, id uuid.UUID) (*Consultation, error)
	FindByUserID(ctx context.Context, userID uuid.UUID, filter Filter) ([]*Consultation, int64, error)
}
