package domain

import (
	"fmt"
	"net/url"
	"strings"
	"time"
)

// Filter decides which events a webhook subscription receives. EventTypes
// is the subscribed set; an empty set subscribes to every event type.
// Attributes maps an event attribute name to its accepted values: an absent
// attribute means "don't care", a present one requires membership.
type Filter struct {
	EventTypes []string            `json:"event_types,omitempty"`
	Attributes map[string][]string `json:"attributes,omitempty"`
}

func (f Filter) Matches(eventType string, attributes map[string]string) bool {
	if len(f.EventTypes) > 0 && !containsString(f.EventTypes, eventType) {
		return false
	}

	for name, accepted := range f.Attributes {
		if len(accepted) == 0 {
			continue
		}
		value, ok := attributes[name]
		if !ok {
			return false
		}
		if !containsString(accepted, value) {
			return false
		}
	}

	return true
}

func containsString(values []string, target string) bool {
	for _, v := range values {
		if v == target {
			return true
		}
	}
	return false
}

// Webhook is a tenant-owned subscription describing where and under what
// filter event notifications are delivered. The secret is retained in full
// because it is needed live for every signature; it is returned to the
// caller only at creation time.
type Webhook struct {
	ID          string `gorm:"type:varchar(40);primaryKey"`
	TenantID    string `gorm:"type:varchar(40);not null"`
	URL         string `gorm:"type:text;not null"`
	Secret      string `gorm:"type:varchar(255);not null"`
	Description string `gorm:"type:text"`
	Filter      Filter `gorm:"-"`
	Enabled     bool   `gorm:"not null;default:true"`
	Ephemeral   bool   `gorm:"not null;default:false"`
	ExpiresAt   *time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

func (w *Webhook) Validate() error {
	if w == nil {
		return fmt.Errorf("%w: webhook is required", ErrValidation)
	}
	if strings.TrimSpace(w.TenantID) == "" {
		return fmt.Errorf("%w: tenant id is required", ErrValidation)
	}
	if err := ValidateEndpointURL(w.URL); err != nil {
		return err
	}
	if w.Ephemeral && w.ExpiresAt == nil {
		return fmt.Errorf("%w: ephemeral webhook requires an expiry", ErrValidation)
	}
	return nil
}

// MatchesEvent reports whether this subscription should receive the event.
// Disabled webhooks never match.
func (w *Webhook) MatchesEvent(e Event) bool {
	if w == nil || !w.Enabled {
		return false
	}
	if w.TenantID != e.TenantID {
		return false
	}
	return w.Filter.Matches(e.Type, e.Attributes)
}

// ValidateEndpointURL rejects destinations that can never be delivered to.
func ValidateEndpointURL(raw string) error {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return fmt.Errorf("%w: webhook url is required", ErrValidation)
	}

	parsed, err := url.Parse(trimmed)
	if err != nil {
		return fmt.Errorf("%w: invalid webhook url: %v", ErrValidation, err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return fmt.Errorf("%w: webhook url must use http or https", ErrValidation)
	}
	if parsed.Host == "" {
		return fmt.Errorf("%w: webhook url must include a host", ErrValidation)
	}
	return nil
}
