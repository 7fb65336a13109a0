package repository

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/mailhookoss/delivery-engine/internal/domain"
)

// WebhookModel is the persistence model for the webhooks table. The filter
// is serialized as JSON so new predicate fields do not require migrations.
type WebhookModel struct {
	ID          string `gorm:"type:varchar(40);primaryKey"`
	TenantID    string `gorm:"type:varchar(40);not null;index"`
	URL         string `gorm:"type:text;not null"`
	Secret      string `gorm:"type:varchar(255);not null"`
	Description string `gorm:"type:text"`
	Filter      string `gorm:"type:jsonb;not null;default:'{}'"`
	Enabled     bool   `gorm:"not null;default:true"`
	Ephemeral   bool   `gorm:"not null;default:false"`
	ExpiresAt   *time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

func (WebhookModel) TableName() string {
	return "webhooks"
}

// DeliveryModel is the persistence model for scheduled_deliveries.
type DeliveryModel struct {
	ID             string                `gorm:"type:varchar(44);primaryKey"`
	WebhookID      string                `gorm:"type:varchar(40);not null;index"`
	TenantID       string                `gorm:"type:varchar(40);not null;index"`
	EventType      string                `gorm:"type:varchar(100);not null"`
	Payload        []byte                `gorm:"type:bytea;not null"`
	Status         domain.DeliveryStatus `gorm:"type:varchar(20);not null"`
	AttemptCount   int                   `gorm:"not null;default:0"`
	MaxAttempts    int                   `gorm:"not null;default:5"`
	NextAttemptAt  time.Time             `gorm:"not null"`
	LeaseExpiresAt *time.Time
	LastAttemptAt  *time.Time
	DeliveredAt    *time.Time
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

func (DeliveryModel) TableName() string {
	return "scheduled_deliveries"
}

// DeliveryAttemptModel is the persistence model for delivery_attempts.
// Append-only: no update path exists on purpose.
type DeliveryAttemptModel struct {
	ID             string                `gorm:"type:uuid;primaryKey"`
	DeliveryID     string                `gorm:"type:varchar(44);not null;index"`
	WebhookID      string                `gorm:"type:varchar(40);not null;index"`
	TenantID       string                `gorm:"type:varchar(40);not null;index"`
	AttemptNumber  int                   `gorm:"not null"`
	RequestURL     string                `gorm:"type:text;not null"`
	RequestHeaders string                `gorm:"type:text"`
	RequestBody    []byte                `gorm:"type:bytea"`
	StatusCode     *int                  `gorm:"type:int"`
	ResponseBody   *string               `gorm:"type:text"`
	Error          *string               `gorm:"type:text"`
	Outcome        domain.AttemptOutcome `gorm:"type:varchar(10);not null"`
	CreatedAt      time.Time
}

func (DeliveryAttemptModel) TableName() string {
	return "delivery_attempts"
}

func webhookModelFromDomain(w *domain.Webhook) (*WebhookModel, error) {
	if w == nil {
		return nil, nil
	}

	filterJSON, err := json.Marshal(w.Filter)
	if err != nil {
		return nil, fmt.Errorf("failed to serialize webhook filter: %w", err)
	}

	return &WebhookModel{
		ID:          w.ID,
		TenantID:    w.TenantID,
		URL:         w.URL,
		Secret:      w.Secret,
		Description: w.Description,
		Filter:      string(filterJSON),
		Enabled:     w.Enabled,
		Ephemeral:   w.Ephemeral,
		ExpiresAt:   w.ExpiresAt,
		CreatedAt:   w.CreatedAt,
		UpdatedAt:   w.UpdatedAt,
	}, nil
}

func webhookModelToDomain(m *WebhookModel) (*domain.Webhook, error) {
	if m == nil {
		return nil, nil
	}

	var filter domain.Filter
	if m.Filter != "" {
		if err := json.Unmarshal([]byte(m.Filter), &filter); err != nil {
			return nil, fmt.Errorf("failed to parse webhook filter for %s: %w", m.ID, err)
		}
	}

	return &domain.Webhook{
		ID:          m.ID,
		TenantID:    m.TenantID,
		URL:         m.URL,
		Secret:      m.Secret,
		Description: m.Description,
		Filter:      filter,
		Enabled:     m.Enabled,
		Ephemeral:   m.Ephemeral,
		ExpiresAt:   m.ExpiresAt,
		CreatedAt:   m.CreatedAt,
		UpdatedAt:   m.UpdatedAt,
	}, nil
}

func deliveryModelFromDomain(d *domain.ScheduledDelivery) *DeliveryModel {
	if d == nil {
		return nil
	}

	return &DeliveryModel{
		ID:             d.ID,
		WebhookID:      d.WebhookID,
		TenantID:       d.TenantID,
		EventType:      d.EventType,
		Payload:        d.Payload,
		Status:         d.Status,
		AttemptCount:   d.AttemptCount,
		MaxAttempts:    d.MaxAttempts,
		NextAttemptAt:  d.NextAttemptAt,
		LeaseExpiresAt: d.LeaseExpiresAt,
		LastAttemptAt:  d.LastAttemptAt,
		DeliveredAt:    d.DeliveredAt,
		CreatedAt:      d.CreatedAt,
		UpdatedAt:      d.UpdatedAt,
	}
}

func deliveryModelToDomain(m *DeliveryModel) *domain.ScheduledDelivery {
	if m == nil {
		return nil
	}

	return &domain.ScheduledDelivery{
		ID:             m.ID,
		WebhookID:      m.WebhookID,
		TenantID:       m.TenantID,
		EventType:      m.EventType,
		Payload:        m.Payload,
		Status:         m.Status,
		AttemptCount:   m.AttemptCount,
		MaxAttempts:    m.MaxAttempts,
		NextAttemptAt:  m.NextAttemptAt,
		LeaseExpiresAt: m.LeaseExpiresAt,
		LastAttemptAt:  m.LastAttemptAt,
		DeliveredAt:    m.DeliveredAt,
		CreatedAt:      m.CreatedAt,
		UpdatedAt:      m.UpdatedAt,
	}
}

func attemptModelFromDomain(a *domain.DeliveryAttempt) *DeliveryAttemptModel {
	if a == nil {
		return nil
	}

	return &DeliveryAttemptModel{
		ID:             a.ID,
		DeliveryID:     a.DeliveryID,
		WebhookID:      a.WebhookID,
		TenantID:       a.TenantID,
		AttemptNumber:  a.AttemptNumber,
		RequestURL:     a.RequestURL,
		RequestHeaders: a.RequestHeaders,
		RequestBody:    a.RequestBody,
		StatusCode:     a.StatusCode,
		ResponseBody:   a.ResponseBody,
		Error:          a.Error,
		Outcome:        a.Outcome,
		CreatedAt:      a.CreatedAt,
	}
}

func attemptModelToDomain(m *DeliveryAttemptModel) *domain.DeliveryAttempt {
	if m == nil {
		return nil
	}

	return &domain.DeliveryAttempt{
		ID:             m.ID,
		DeliveryID:     m.DeliveryID,
		WebhookID:      m.WebhookID,
		TenantID:       m.TenantID,
		AttemptNumber:  m.AttemptNumber,
		RequestURL:     m.RequestURL,
		RequestHeaders: m.RequestHeaders,
		RequestBody:    m.RequestBody,
		StatusCode:     m.StatusCode,
		ResponseBody:   m.ResponseBody,
		Error:          m.Error,
		Outcome:        m.Outcome,
		CreatedAt:      m.CreatedAt,
	}
}
