package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/mailhookoss/delivery-engine/internal/domain"
)

type fakeIngestor struct {
	ingestFn func(ctx context.Context, event domain.Event) ([]domain.ScheduledDelivery, error)
}

func (f *fakeIngestor) Ingest(ctx context.Context, event domain.Event) ([]domain.ScheduledDelivery, error) {
	return f.ingestFn(ctx, event)
}

func newEventTestApp(t *testing.T, ingestor EventIngestor) *fiber.App {
	t.Helper()

	app := fiber.New()
	if err := RegisterEventRoutes(app, ingestor); err != nil {
		t.Fatalf("RegisterEventRoutes() error = %v", err)
	}
	return app
}

func TestIngestEvent(t *testing.T) {
	t.Parallel()

	var received domain.Event
	ingestor := &fakeIngestor{
		ingestFn: func(ctx context.Context, event domain.Event) ([]domain.ScheduledDelivery, error) {
			received = event
			return []domain.ScheduledDelivery{
				{ID: "whd_1", WebhookID: "wh_1"},
				{ID: "whd_2", WebhookID: "wh_2"},
			}, nil
		},
	}
	app := newEventTestApp(t, ingestor)

	body := `{
		"type": "email.received",
		"tenantId": "tenant-1",
		"attributes": {"mailbox_id": "mb_1"},
		"payload": {"message_id": "m1", "subject": "hello"}
	}`
	req := httptest.NewRequest("POST", "/v1/events", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")

	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test() error = %v", err)
	}
	if resp.StatusCode != fiber.StatusAccepted {
		t.Fatalf("status = %d, want 202", resp.StatusCode)
	}

	if received.Type != "email.received" || received.TenantID != "tenant-1" {
		t.Fatalf("event = %+v", received)
	}
	if received.Attributes["mailbox_id"] != "mb_1" {
		t.Fatalf("attributes = %v", received.Attributes)
	}

	var payload map[string]any
	if err := json.Unmarshal(received.Payload, &payload); err != nil {
		t.Fatalf("payload is not the raw JSON body: %v", err)
	}
	if payload["message_id"] != "m1" {
		t.Fatalf("payload = %v", payload)
	}

	var got ingestEventResponse
	if err := json.NewDecoder(resp.Body).Decode(&got); err != nil {
		t.Fatalf("decode error = %v", err)
	}
	if len(got.Scheduled) != 2 || got.Scheduled[0].DeliveryID != "whd_1" {
		t.Fatalf("response = %+v", got)
	}
}

func TestIngestEventValidationError(t *testing.T) {
	t.Parallel()

	ingestor := &fakeIngestor{
		ingestFn: func(ctx context.Context, event domain.Event) ([]domain.ScheduledDelivery, error) {
			return nil, fmt.Errorf("%w: event type is required", domain.ErrValidation)
		},
	}
	app := newEventTestApp(t, ingestor)

	req := httptest.NewRequest("POST", "/v1/events", bytes.NewBufferString(`{"tenantId":"tenant-1","payload":{}}`))
	req.Header.Set("Content-Type", "application/json")

	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test() error = %v", err)
	}
	if resp.StatusCode != fiber.StatusBadRequest {
		t.Fatalf("status = %d, want 400", resp.StatusCode)
	}
}

func TestIngestEventBadBody(t *testing.T) {
	t.Parallel()

	app := newEventTestApp(t, &fakeIngestor{})

	req := httptest.NewRequest("POST", "/v1/events", bytes.NewBufferString("not json"))
	req.Header.Set("Content-Type", "application/json")

	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test() error = %v", err)
	}
	if resp.StatusCode != fiber.StatusBadRequest {
		t.Fatalf("status = %d, want 400", resp.StatusCode)
	}
}
