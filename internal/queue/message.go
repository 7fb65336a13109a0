package queue

import (
	"fmt"
	"strings"
)

// DeliveryMessage is the broker payload waking a worker for one scheduled
// delivery. It intentionally carries identifiers only; workers reload state
// from the store at claim time.
type DeliveryMessage struct {
	DeliveryID string `json:"deliveryId"`
	WebhookID  string `json:"webhookId,omitempty"`
	TenantID   string `json:"tenantId,omitempty"`
	EventType  string `json:"eventType,omitempty"`
}

func (m DeliveryMessage) Validate() error {
	if strings.TrimSpace(m.DeliveryID) == "" {
		return fmt.Errorf("deliveryId is required")
	}
	return nil
}
