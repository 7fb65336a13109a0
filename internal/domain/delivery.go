package domain

import (
	"fmt"
	"strings"
	"time"
)

// DeliveryStatus represents the lifecycle state of a scheduled delivery.
type DeliveryStatus string

const (
	DeliveryPending         DeliveryStatus = "pending"
	DeliveryProcessing      DeliveryStatus = "processing"
	DeliveryDelivered       DeliveryStatus = "delivered"
	DeliveryFailed          DeliveryStatus = "failed"
	DeliveryFailedPermanent DeliveryStatus = "failed_permanent"
	DeliveryExpired         DeliveryStatus = "expired"
)

func (s DeliveryStatus) String() string { return string(s) }

func (s DeliveryStatus) IsValid() bool {
	switch s {
	case DeliveryPending, DeliveryProcessing, DeliveryDelivered,
		DeliveryFailed, DeliveryFailedPermanent, DeliveryExpired:
		return true
	}
	return false
}

// IsTerminal reports whether a delivery in this state is finished and must
// never be claimed again.
func (s DeliveryStatus) IsTerminal() bool {
	switch s {
	case DeliveryDelivered, DeliveryFailedPermanent, DeliveryExpired:
		return true
	}
	return false
}

func ParseDeliveryStatusFromString(s string) (DeliveryStatus, error) {
	st := DeliveryStatus(strings.ToLower(strings.TrimSpace(s)))
	if !st.IsValid() {
		return "", fmt.Errorf("%w: invalid delivery status %q", ErrValidation, s)
	}
	return st, nil
}

// DefaultMaxAttempts caps transient retries per delivery.
const DefaultMaxAttempts = 5

// backoffSchedule is the fixed delay applied after the Nth transient
// failure (1-based).
var backoffSchedule = [...]time.Duration{
	1 * time.Second,
	5 * time.Second,
	25 * time.Second,
	125 * time.Second,
	625 * time.Second,
}

// BackoffDelay returns the delay before the retry that follows transient
// attempt attemptNumber (1-based). Out-of-range inputs clamp to the
// schedule bounds.
func BackoffDelay(attemptNumber int) time.Duration {
	if attemptNumber < 1 {
		attemptNumber = 1
	}
	if attemptNumber > len(backoffSchedule) {
		attemptNumber = len(backoffSchedule)
	}
	return backoffSchedule[attemptNumber-1]
}

// ScheduledDelivery is one unit of webhook delivery work. The payload is an
// immutable snapshot taken at scheduling time; rows are never deleted, only
// transitioned to a terminal status.
type ScheduledDelivery struct {
	ID             string         `gorm:"type:varchar(44);primaryKey"`
	WebhookID      string         `gorm:"type:varchar(40);not null"`
	TenantID       string         `gorm:"type:varchar(40);not null"`
	EventType      string         `gorm:"type:varchar(100);not null"`
	Payload        []byte         `gorm:"type:bytea;not null"`
	Status         DeliveryStatus `gorm:"type:varchar(20);not null"`
	AttemptCount   int            `gorm:"not null;default:0"`
	MaxAttempts    int            `gorm:"not null;default:5"`
	NextAttemptAt  time.Time      `gorm:"not null"`
	LeaseExpiresAt *time.Time
	LastAttemptAt  *time.Time
	DeliveredAt    *time.Time
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

func (d *ScheduledDelivery) Validate() error {
	if d == nil {
		return fmt.Errorf("%w: delivery is required", ErrValidation)
	}
	if strings.TrimSpace(d.WebhookID) == "" {
		return fmt.Errorf("%w: webhook id is required", ErrValidation)
	}
	if strings.TrimSpace(d.TenantID) == "" {
		return fmt.Errorf("%w: tenant id is required", ErrValidation)
	}
	if strings.TrimSpace(d.EventType) == "" {
		return fmt.Errorf("%w: event type is required", ErrValidation)
	}
	if len(d.Payload) == 0 {
		return fmt.Errorf("%w: payload snapshot is required", ErrValidation)
	}
	if !d.Status.IsValid() {
		return fmt.Errorf("%w: invalid delivery status %q", ErrValidation, d.Status)
	}
	return nil
}

// NewScheduledDelivery builds a pending delivery for one matched webhook,
// snapshotting the payload so later mutation of the event cannot leak in.
func NewScheduledDelivery(webhook *Webhook, event Event, now time.Time) *ScheduledDelivery {
	payload := make([]byte, len(event.Payload))
	copy(payload, event.Payload)

	return &ScheduledDelivery{
		ID:            NewDeliveryID(),
		WebhookID:     webhook.ID,
		TenantID:      webhook.TenantID,
		EventType:     event.Type,
		Payload:       payload,
		Status:        DeliveryPending,
		AttemptCount:  0,
		MaxAttempts:   DefaultMaxAttempts,
		NextAttemptAt: now,
	}
}
