package domain

import (
	"fmt"
	"strings"
	"time"
)

// Well-known event types emitted by the email pipeline. Ingestion accepts
// any non-empty type so new producers do not require engine changes.
const (
	EventEmailReceived   = "email.received"
	EventEmailSent       = "email.sent"
	EventEmailBounced    = "email.bounced"
	EventEmailComplained = "email.complained"
	EventThreadCreated   = "thread.created"
	EventThreadUpdated   = "thread.updated"
)

// Event is an inbound domain event offered to the delivery engine.
// Attributes carry filterable metadata (mailbox id, domain id, labels);
// Payload is the opaque notification body delivered to endpoints.
type Event struct {
	Type       string
	TenantID   string
	Attributes map[string]string
	Payload    []byte
	OccurredAt time.Time
}

func (e *Event) Validate() error {
	if e == nil {
		return fmt.Errorf("%w: event is required", ErrValidation)
	}
	if strings.TrimSpace(e.Type) == "" {
		return fmt.Errorf("%w: event type is required", ErrValidation)
	}
	if strings.TrimSpace(e.TenantID) == "" {
		return fmt.Errorf("%w: tenant id is required", ErrValidation)
	}
	if len(e.Payload) == 0 {
		return fmt.Errorf("%w: event payload is required", ErrValidation)
	}
	return nil
}
