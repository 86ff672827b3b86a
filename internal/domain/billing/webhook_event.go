package billing

import (
	"time"

	"github.com/consulta/backend/internal/domain/shared"
)

// WebhookEventRecord is the durable idempotency guard for provider events.
// EventID is the provider-issued identifier and carries a unique constraint;
// claiming an event is an insert that fails on duplicates, never a separate
// read-then-write. Processed flips exactly once, in the same unit of work as
// the ledger or subscription mutation the event produced.
type WebhookEventRecord struct {
	shared.BaseEntity
	EventID     string
	EventType   string
	Processed   bool
	ReceivedAt  time.Time
	ProcessedAt *time.Time
}

// NewWebhookEventRecord creates an unprocessed record for a first-seen event
func NewWebhookEventRecord(eventID, eventType string) (*WebhookEventRecord, error) {
	if eventID == "" {
		return nil, shared.NewDomainError("INVALID_EVENT", "Event ID cannot be empty")
	}
	if eventType == "" {
		return nil, shared.NewDomainError("INVALID_EVENT", "Event type cannot be empty")
	}

	return &WebhookEventRecord{
		BaseEntity: shared.NewBaseEntity(),
		EventID:    eventID,
		EventType:  eventType,
		Processed:  false,
		ReceivedAt: time.Now(),
	}, nil
}

// MarkProcessed flips the processed flag. Idempotent.
func (r *WebhookEventRecord) MarkProcessed() {
	if r.Processed {
		return
	}
	now := time.Now()
	r.Processed = true
	r.ProcessedAt = &now
	r.UpdatedAt = now
}
