package domain

import (
	"testing"
	"time"
)

func TestFilterMatches(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		filter     Filter
		eventType  string
		attributes map[string]string
		want       bool
	}{
		{
			name:      "empty filter matches everything",
			filter:    Filter{},
			eventType: EventEmailReceived,
			want:      true,
		},
		{
			name:      "event type member",
			filter:    Filter{EventTypes: []string{EventEmailReceived, EventEmailBounced}},
			eventType: EventEmailBounced,
			want:      true,
		},
		{
			name:      "event type not subscribed",
			filter:    Filter{EventTypes: []string{EventEmailReceived}},
			eventType: EventThreadCreated,
			want:      false,
		},
		{
			name:       "attribute value accepted",
			filter:     Filter{Attributes: map[string][]string{"mailbox_id": {"mb_1", "mb_2"}}},
			eventType:  EventEmailReceived,
			attributes: map[string]string{"mailbox_id": "mb_2"},
			want:       true,
		},
		{
			name:       "attribute value rejected",
			filter:     Filter{Attributes: map[string][]string{"mailbox_id": {"mb_1"}}},
			eventType:  EventEmailReceived,
			attributes: map[string]string{"mailbox_id": "mb_9"},
			want:       false,
		},
		{
			name:      "required attribute absent on event",
			filter:    Filter{Attributes: map[string][]string{"mailbox_id": {"mb_1"}}},
			eventType: EventEmailReceived,
			want:      false,
		},
		{
			name:       "unconstrained event attribute ignored",
			filter:     Filter{Attributes: map[string][]string{"mailbox_id": {"mb_1"}}},
			eventType:  EventEmailReceived,
			attributes: map[string]string{"mailbox_id": "mb_1", "label": "inbox"},
			want:       true,
		},
		{
			name:       "empty accepted values means don't care",
			filter:     Filter{Attributes: map[string][]string{"mailbox_id": {}}},
			eventType:  EventEmailReceived,
			attributes: map[string]string{},
			want:       true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := tt.filter.Matches(tt.eventType, tt.attributes); got != tt.want {
				t.Fatalf("Matches() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestWebhookMatchesEvent(t *testing.T) {
	t.Parallel()

	webhook := &Webhook{
		ID:       "wh_1",
		TenantID: "tenant-1",
		URL:      "https://hooks.acme.test/inbox",
		Enabled:  true,
		Filter:   Filter{EventTypes: []string{EventEmailReceived}},
	}

	event := Event{Type: EventEmailReceived, TenantID: "tenant-1", Payload: []byte("{}")}
	if !webhook.MatchesEvent(event) {
		t.Fatal("enabled webhook with matching filter should match")
	}

	otherTenant := event
	otherTenant.TenantID = "tenant-2"
	if webhook.MatchesEvent(otherTenant) {
		t.Fatal("webhook must never match another tenant's event")
	}

	webhook.Enabled = false
	if webhook.MatchesEvent(event) {
		t.Fatal("disabled webhook must never match")
	}
}

func TestWebhookValidate(t *testing.T) {
	t.Parallel()

	expiry := time.Now().Add(time.Hour)

	tests := []struct {
		name    string
		webhook Webhook
		wantErr bool
	}{
		{
			name:    "valid",
			webhook: Webhook{TenantID: "tenant-1", URL: "https://hooks.acme.test"},
		},
		{
			name:    "missing tenant",
			webhook: Webhook{URL: "https://hooks.acme.test"},
			wantErr: true,
		},
		{
			name:    "missing url",
			webhook: Webhook{TenantID: "tenant-1"},
			wantErr: true,
		},
		{
			name:    "non http scheme",
			webhook: Webhook{TenantID: "tenant-1", URL: "ftp://hooks.acme.test"},
			wantErr: true,
		},
		{
			name:    "ephemeral without expiry",
			webhook: Webhook{TenantID: "tenant-1", URL: "https://hooks.acme.test", Ephemeral: true},
			wantErr: true,
		},
		{
			name:    "ephemeral with expiry",
			webhook: Webhook{TenantID: "tenant-1", URL: "https://hooks.acme.test", Ephemeral: true, ExpiresAt: &expiry},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			err := tt.webhook.Validate()
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestValidateEndpointURL(t *testing.T) {
	t.Parallel()

	if err := ValidateEndpointURL("https://hooks.acme.test/path?x=1"); err != nil {
		t.Fatalf("ValidateEndpointURL() error = %v", err)
	}
	if err := ValidateEndpointURL("http://localhost:9000/hook"); err != nil {
		t.Fatalf("ValidateEndpointURL() error = %v", err)
	}

	invalid := []string{"", "   ", "https://", "not a url at all ://", "mailto:user@acme.test"}
	for _, raw := range invalid {
		if err := ValidateEndpointURL(raw); err == nil {
			t.Errorf("ValidateEndpointURL(%q) = nil, want error", raw)
		}
	}
}
