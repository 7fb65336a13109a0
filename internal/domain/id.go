package domain

import (
	"fmt"

	"github.com/google/uuid"
)

// Entity IDs carry a short type prefix so they are recognizable in logs
// and in webhook payloads (wh_..., whd_...).
const (
	WebhookIDPrefix  = "wh"
	DeliveryIDPrefix = "whd"
)

func newPrefixedID(prefix string) string {
	return fmt.Sprintf("%s_%s", prefix, uuid.NewString())
}

// NewWebhookID generates a webhook identifier.
func NewWebhookID() string {
	return newPrefixedID(WebhookIDPrefix)
}

// NewDeliveryID generates a scheduled delivery identifier.
func NewDeliveryID() string {
	return newPrefixedID(DeliveryIDPrefix)
}
