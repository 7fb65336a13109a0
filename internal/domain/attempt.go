package domain

import (
	"fmt"
	"strings"
	"time"
)

// AttemptOutcome classifies a single delivery attempt.
type AttemptOutcome string

const (
	OutcomeSuccess   AttemptOutcome = "success"
	OutcomeTransient AttemptOutcome = "transient"
	OutcomePermanent AttemptOutcome = "permanent"
)

func (o AttemptOutcome) String() string { return string(o) }

func (o AttemptOutcome) IsValid() bool {
	switch o {
	case OutcomeSuccess, OutcomeTransient, OutcomePermanent:
		return true
	}
	return false
}

func ParseAttemptOutcomeFromString(s string) (AttemptOutcome, error) {
	o := AttemptOutcome(strings.ToLower(strings.TrimSpace(s)))
	if !o.IsValid() {
		return "", fmt.Errorf("%w: invalid attempt outcome %q", ErrValidation, s)
	}
	return o, nil
}

// DeliveryAttempt is the immutable record of one execution of a scheduled
// delivery. Rows are append-only and never updated.
type DeliveryAttempt struct {
	ID             string          `gorm:"type:uuid;primaryKey"`
	DeliveryID     string          `gorm:"type:varchar(44);not null"`
	WebhookID      string          `gorm:"type:varchar(40);not null"`
	TenantID       string          `gorm:"type:varchar(40);not null"`
	AttemptNumber  int             `gorm:"not null"`
	RequestURL     string          `gorm:"type:text;not null"`
	RequestHeaders string          `gorm:"type:text"`
	RequestBody    []byte          `gorm:"type:bytea"`
	StatusCode     *int            `gorm:"type:int"`
	ResponseBody   *string         `gorm:"type:text"`
	Error          *string         `gorm:"type:text"`
	Outcome        AttemptOutcome  `gorm:"type:varchar(10);not null"`
	CreatedAt      time.Time
}
