package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/mailhookoss/delivery-engine/internal/domain"
	"github.com/mailhookoss/delivery-engine/internal/repository"
)

type fakeDeliveryService struct {
	getDeliveryFn            func(ctx context.Context, id string) (*domain.ScheduledDelivery, error)
	listDeliveriesFn         func(ctx context.Context, params repository.ListParams) ([]domain.ScheduledDelivery, int64, error)
	redeliverFn              func(ctx context.Context, deliveryID string) (*domain.ScheduledDelivery, error)
	listAttemptsByDeliveryFn func(ctx context.Context, deliveryID string) ([]domain.DeliveryAttempt, error)
	listAttemptsByWebhookFn  func(ctx context.Context, webhookID string, limit int) ([]domain.DeliveryAttempt, error)
	listAttemptsByTenantFn   func(ctx context.Context, tenantID string, limit int) ([]domain.DeliveryAttempt, error)
}

func (f *fakeDeliveryService) GetDelivery(ctx context.Context, id string) (*domain.ScheduledDelivery, error) {
	return f.getDeliveryFn(ctx, id)
}

func (f *fakeDeliveryService) ListDeliveries(ctx context.Context, params repository.ListParams) ([]domain.ScheduledDelivery, int64, error) {
	return f.listDeliveriesFn(ctx, params)
}

func (f *fakeDeliveryService) Redeliver(ctx context.Context, deliveryID string) (*domain.ScheduledDelivery, error) {
	return f.redeliverFn(ctx, deliveryID)
}

func (f *fakeDeliveryService) ListAttemptsByDelivery(ctx context.Context, deliveryID string) ([]domain.DeliveryAttempt, error) {
	return f.listAttemptsByDeliveryFn(ctx, deliveryID)
}

func (f *fakeDeliveryService) ListAttemptsByWebhook(ctx context.Context, webhookID string, limit int) ([]domain.DeliveryAttempt, error) {
	return f.listAttemptsByWebhookFn(ctx, webhookID, limit)
}

func (f *fakeDeliveryService) ListAttemptsByTenant(ctx context.Context, tenantID string, limit int) ([]domain.DeliveryAttempt, error) {
	return f.listAttemptsByTenantFn(ctx, tenantID, limit)
}

func newDeliveryTestApp(t *testing.T, svc DeliveryService) *fiber.App {
	t.Helper()

	app := fiber.New()
	if err := RegisterDeliveryRoutes(app, svc); err != nil {
		t.Fatalf("RegisterDeliveryRoutes() error = %v", err)
	}
	return app
}

func TestGetDelivery(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	svc := &fakeDeliveryService{
		getDeliveryFn: func(ctx context.Context, id string) (*domain.ScheduledDelivery, error) {
			if id != "whd_1" {
				return nil, fmt.Errorf("%w: delivery %s", domain.ErrNotFound, id)
			}
			return &domain.ScheduledDelivery{
				ID:            "whd_1",
				WebhookID:     "wh_1",
				TenantID:      "tenant-1",
				EventType:     domain.EventEmailReceived,
				Payload:       []byte("{}"),
				Status:        domain.DeliveryDelivered,
				AttemptCount:  2,
				MaxAttempts:   5,
				NextAttemptAt: now,
				DeliveredAt:   &now,
			}, nil
		},
	}
	app := newDeliveryTestApp(t, svc)

	resp, err := app.Test(httptest.NewRequest("GET", "/v1/deliveries/whd_1", nil))
	if err != nil {
		t.Fatalf("app.Test() error = %v", err)
	}
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}

	var got deliveryResponse
	if err := json.NewDecoder(resp.Body).Decode(&got); err != nil {
		t.Fatalf("decode error = %v", err)
	}
	if got.Status != "delivered" || got.AttemptCount != 2 {
		t.Fatalf("response = %+v", got)
	}

	resp, err = app.Test(httptest.NewRequest("GET", "/v1/deliveries/whd_missing", nil))
	if err != nil {
		t.Fatalf("app.Test() error = %v", err)
	}
	if resp.StatusCode != fiber.StatusNotFound {
		t.Fatalf("status = %d, want 404", resp.StatusCode)
	}
}

func TestListDeliveriesParsesQuery(t *testing.T) {
	t.Parallel()

	svc := &fakeDeliveryService{
		listDeliveriesFn: func(ctx context.Context, params repository.ListParams) ([]domain.ScheduledDelivery, int64, error) {
			if params.TenantID != "tenant-1" || params.WebhookID != "wh_1" {
				t.Errorf("params = %+v", params)
			}
			if params.Status == nil || *params.Status != domain.DeliveryFailedPermanent {
				t.Errorf("status = %v, want failed_permanent", params.Status)
			}
			if params.Page != 2 || params.PageSize != 10 {
				t.Errorf("pagination = %d/%d, want 2/10", params.Page, params.PageSize)
			}
			return []domain.ScheduledDelivery{}, 0, nil
		},
	}
	app := newDeliveryTestApp(t, svc)

	target := "/v1/deliveries?tenantId=tenant-1&webhookId=wh_1&status=failed_permanent&page=2&pageSize=10"
	resp, err := app.Test(httptest.NewRequest("GET", target, nil))
	if err != nil {
		t.Fatalf("app.Test() error = %v", err)
	}
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
}

func TestListDeliveriesRejectsBadStatus(t *testing.T) {
	t.Parallel()

	app := newDeliveryTestApp(t, &fakeDeliveryService{})

	resp, err := app.Test(httptest.NewRequest("GET", "/v1/deliveries?status=bogus", nil))
	if err != nil {
		t.Fatalf("app.Test() error = %v", err)
	}
	if resp.StatusCode != fiber.StatusBadRequest {
		t.Fatalf("status = %d, want 400", resp.StatusCode)
	}
}

func TestRedeliverEndpoint(t *testing.T) {
	t.Parallel()

	svc := &fakeDeliveryService{
		redeliverFn: func(ctx context.Context, deliveryID string) (*domain.ScheduledDelivery, error) {
			if deliveryID != "whd_old" {
				t.Errorf("id = %s, want whd_old", deliveryID)
			}
			return &domain.ScheduledDelivery{
				ID:        "whd_new",
				WebhookID: "wh_1",
				TenantID:  "tenant-1",
				EventType: domain.EventEmailReceived,
				Status:    domain.DeliveryPending,
			}, nil
		},
	}
	app := newDeliveryTestApp(t, svc)

	resp, err := app.Test(httptest.NewRequest("POST", "/v1/deliveries/whd_old/redeliver", nil))
	if err != nil {
		t.Fatalf("app.Test() error = %v", err)
	}
	if resp.StatusCode != fiber.StatusAccepted {
		t.Fatalf("status = %d, want 202", resp.StatusCode)
	}

	var got deliveryResponse
	if err := json.NewDecoder(resp.Body).Decode(&got); err != nil {
		t.Fatalf("decode error = %v", err)
	}
	if got.ID != "whd_new" || got.Status != "pending" {
		t.Fatalf("response = %+v", got)
	}
}

func TestListDeliveryAttempts(t *testing.T) {
	t.Parallel()

	status := 503
	body := "maintenance"
	svc := &fakeDeliveryService{
		listAttemptsByDeliveryFn: func(ctx context.Context, deliveryID string) ([]domain.DeliveryAttempt, error) {
			return []domain.DeliveryAttempt{
				{
					ID:             "a1",
					DeliveryID:     deliveryID,
					WebhookID:      "wh_1",
					AttemptNumber:  1,
					RequestURL:     "https://hooks.acme.test",
					RequestHeaders: `{"webhook-id":"whd_1"}`,
					StatusCode:     &status,
					ResponseBody:   &body,
					Outcome:        domain.OutcomeTransient,
				},
			}, nil
		},
	}
	app := newDeliveryTestApp(t, svc)

	resp, err := app.Test(httptest.NewRequest("GET", "/v1/deliveries/whd_1/attempts", nil))
	if err != nil {
		t.Fatalf("app.Test() error = %v", err)
	}
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}

	var got listAttemptsResponse
	if err := json.NewDecoder(resp.Body).Decode(&got); err != nil {
		t.Fatalf("decode error = %v", err)
	}
	if len(got.Data) != 1 {
		t.Fatalf("attempts = %d, want 1", len(got.Data))
	}
	attempt := got.Data[0]
	if attempt.Outcome != "transient" || attempt.StatusCode == nil || *attempt.StatusCode != 503 {
		t.Fatalf("attempt = %+v", attempt)
	}
}

func TestListWebhookAttemptsLimit(t *testing.T) {
	t.Parallel()

	svc := &fakeDeliveryService{
		listAttemptsByWebhookFn: func(ctx context.Context, webhookID string, limit int) ([]domain.DeliveryAttempt, error) {
			if webhookID != "wh_1" {
				t.Errorf("webhook id = %s, want wh_1", webhookID)
			}
			if limit != 5 {
				t.Errorf("limit = %d, want 5", limit)
			}
			return nil, nil
		},
	}
	app := newDeliveryTestApp(t, svc)

	resp, err := app.Test(httptest.NewRequest("GET", "/v1/webhooks/wh_1/attempts?limit=5", nil))
	if err != nil {
		t.Fatalf("app.Test() error = %v", err)
	}
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
}

func TestListTenantAttempts(t *testing.T) {
	t.Parallel()

	svc := &fakeDeliveryService{
		listAttemptsByTenantFn: func(ctx context.Context, tenantID string, limit int) ([]domain.DeliveryAttempt, error) {
			if tenantID != "tenant-1" {
				t.Errorf("tenant id = %s, want tenant-1", tenantID)
			}
			if limit != defaultAttemptLimit {
				t.Errorf("limit = %d, want %d", limit, defaultAttemptLimit)
			}
			return []domain.DeliveryAttempt{{
				ID:            "att_1",
				DeliveryID:    "whd_1",
				WebhookID:     "wh_1",
				TenantID:      "tenant-1",
				AttemptNumber: 1,
				Outcome:       domain.OutcomeSuccess,
			}}, nil
		},
	}
	app := newDeliveryTestApp(t, svc)

	resp, err := app.Test(httptest.NewRequest("GET", "/v1/tenants/tenant-1/attempts", nil))
	if err != nil {
		t.Fatalf("app.Test() error = %v", err)
	}
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}

	var body listAttemptsResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(body.Data) != 1 || body.Data[0].DeliveryID != "whd_1" {
		t.Fatalf("body = %+v, want one attempt for whd_1", body.Data)
	}
}
