package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/mailhookoss/delivery-engine/internal/domain"
	"github.com/mailhookoss/delivery-engine/internal/repository"
)

const (
	defaultPage         = 1
	defaultPageSize     = 50
	maxPageSize         = 100
	defaultAttemptLimit = 50
)

type DeliveryService interface {
	GetDelivery(ctx context.Context, id string) (*domain.ScheduledDelivery, error)
	ListDeliveries(ctx context.Context, params repository.ListParams) ([]domain.ScheduledDelivery, int64, error)
	Redeliver(ctx context.Context, deliveryID string) (*domain.ScheduledDelivery, error)
	ListAttemptsByDelivery(ctx context.Context, deliveryID string) ([]domain.DeliveryAttempt, error)
	ListAttemptsByWebhook(ctx context.Context, webhookID string, limit int) ([]domain.DeliveryAttempt, error)
	ListAttemptsByTenant(ctx context.Context, tenantID string, limit int) ([]domain.DeliveryAttempt, error)
}

type DeliveryHandler struct {
	service DeliveryService
}

func NewDeliveryHandler(service DeliveryService) (*DeliveryHandler, error) {
	if service == nil {
		return nil, fmt.Errorf("delivery service is required")
	}
	return &DeliveryHandler{service: service}, nil
}

func RegisterDeliveryRoutes(router fiber.Router, service DeliveryService) error {
	h, err := NewDeliveryHandler(service)
	if err != nil {
		return err
	}

	v1 := router.Group("/v1")
	v1.Get("/deliveries", h.ListDeliveries)
	v1.Get("/deliveries/:id", h.GetDelivery)
	v1.Post("/deliveries/:id/redeliver", h.Redeliver)
	v1.Get("/deliveries/:id/attempts", h.ListDeliveryAttempts)
	v1.Get("/webhooks/:id/attempts", h.ListWebhookAttempts)
	v1.Get("/tenants/:id/attempts", h.ListTenantAttempts)

	return nil
}

type deliveryResponse struct {
	ID             string     `json:"id"`
	WebhookID      string     `json:"webhookId"`
	TenantID       string     `json:"tenantId"`
	EventType      string     `json:"eventType"`
	Status         string     `json:"status"`
	AttemptCount   int        `json:"attemptCount"`
	MaxAttempts    int        `json:"maxAttempts"`
	NextAttemptAt  time.Time  `json:"nextAttemptAt"`
	LeaseExpiresAt *time.Time `json:"leaseExpiresAt,omitempty"`
	LastAttemptAt  *time.Time `json:"lastAttemptAt,omitempty"`
	DeliveredAt    *time.Time `json:"deliveredAt,omitempty"`
	CreatedAt      time.Time  `json:"createdAt"`
	UpdatedAt      time.Time  `json:"updatedAt"`
}

type listDeliveriesResponse struct {
	Data []deliveryResponse `json:"data"`
	Meta listMeta           `json:"meta"`
}

type listMeta struct {
	Page     int   `json:"page"`
	PageSize int   `json:"pageSize"`
	Total    int64 `json:"total"`
}

type attemptResponse struct {
	ID             string          `json:"id"`
	DeliveryID     string          `json:"deliveryId"`
	WebhookID      string          `json:"webhookId"`
	AttemptNumber  int             `json:"attemptNumber"`
	RequestURL     string          `json:"requestUrl"`
	RequestHeaders json.RawMessage `json:"requestHeaders,omitempty"`
	StatusCode     *int            `json:"statusCode,omitempty"`
	ResponseBody   *string         `json:"responseBody,omitempty"`
	Error          *string         `json:"error,omitempty"`
	Outcome        string          `json:"outcome"`
	CreatedAt      time.Time       `json:"createdAt"`
}

type listAttemptsResponse struct {
	Data []attemptResponse `json:"data"`
}

func (h *DeliveryHandler) GetDelivery(c *fiber.Ctx) error {
	id := strings.TrimSpace(c.Params("id"))
	delivery, err := h.service.GetDelivery(c.Context(), id)
	if err != nil {
		return toHTTPError(err)
	}

	return c.Status(fiber.StatusOK).JSON(toDeliveryResponse(delivery))
}

func (h *DeliveryHandler) ListDeliveries(c *fiber.Ctx) error {
	params, err := parseListParams(c)
	if err != nil {
		return toHTTPError(err)
	}

	deliveries, total, err := h.service.ListDeliveries(c.Context(), params)
	if err != nil {
		return toHTTPError(err)
	}

	responses := make([]deliveryResponse, 0, len(deliveries))
	for i := range deliveries {
		responses = append(responses, toDeliveryResponse(&deliveries[i]))
	}

	return c.Status(fiber.StatusOK).JSON(listDeliveriesResponse{
		Data: responses,
		Meta: listMeta{
			Page:     params.Page,
			PageSize: params.PageSize,
			Total:    total,
		},
	})
}

func (h *DeliveryHandler) Redeliver(c *fiber.Ctx) error {
	id := strings.TrimSpace(c.Params("id"))
	delivery, err := h.service.Redeliver(c.Context(), id)
	if err != nil {
		return toHTTPError(err)
	}

	return c.Status(fiber.StatusAccepted).JSON(toDeliveryResponse(delivery))
}

func (h *DeliveryHandler) ListDeliveryAttempts(c *fiber.Ctx) error {
	id := strings.TrimSpace(c.Params("id"))
	attempts, err := h.service.ListAttemptsByDelivery(c.Context(), id)
	if err != nil {
		return toHTTPError(err)
	}

	return c.Status(fiber.StatusOK).JSON(listAttemptsResponse{Data: toAttemptResponses(attempts)})
}

func (h *DeliveryHandler) ListWebhookAttempts(c *fiber.Ctx) error {
	id := strings.TrimSpace(c.Params("id"))
	limit := c.QueryInt("limit", defaultAttemptLimit)
	attempts, err := h.service.ListAttemptsByWebhook(c.Context(), id, limit)
	if err != nil {
		return toHTTPError(err)
	}

	return c.Status(fiber.StatusOK).JSON(listAttemptsResponse{Data: toAttemptResponses(attempts)})
}

func (h *DeliveryHandler) ListTenantAttempts(c *fiber.Ctx) error {
	id := strings.TrimSpace(c.Params("id"))
	limit := c.QueryInt("limit", defaultAttemptLimit)
	attempts, err := h.service.ListAttemptsByTenant(c.Context(), id, limit)
	if err != nil {
		return toHTTPError(err)
	}

	return c.Status(fiber.StatusOK).JSON(listAttemptsResponse{Data: toAttemptResponses(attempts)})
}

func parseListParams(c *fiber.Ctx) (repository.ListParams, error) {
	params := repository.ListParams{
		TenantID:  strings.TrimSpace(c.Query("tenantId")),
		WebhookID: strings.TrimSpace(c.Query("webhookId")),
		Page:      c.QueryInt("page", defaultPage),
		PageSize:  c.QueryInt("pageSize", defaultPageSize),
	}

	if params.Page < 1 {
		return repository.ListParams{}, fmt.Errorf("%w: page must be >= 1", domain.ErrValidation)
	}
	if params.PageSize < 1 || params.PageSize > maxPageSize {
		return repository.ListParams{}, fmt.Errorf("%w: pageSize must be between 1 and %d", domain.ErrValidation, maxPageSize)
	}

	if rawStatus := strings.TrimSpace(c.Query("status")); rawStatus != "" {
		status, err := domain.ParseDeliveryStatusFromString(rawStatus)
		if err != nil {
			return repository.ListParams{}, err
		}
		params.Status = &status
	}

	from, err := parseRFC3339Query(c.Query("from"), "from")
	if err != nil {
		return repository.ListParams{}, err
	}
	to, err := parseRFC3339Query(c.Query("to"), "to")
	if err != nil {
		return repository.ListParams{}, err
	}
	params.From = from
	params.To = to

	return params, nil
}

func toDeliveryResponse(d *domain.ScheduledDelivery) deliveryResponse {
	if d == nil {
		return deliveryResponse{}
	}

	return deliveryResponse{
		ID:             d.ID,
		WebhookID:      d.WebhookID,
		TenantID:       d.TenantID,
		EventType:      d.EventType,
		Status:         d.Status.String(),
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

func toAttemptResponses(attempts []domain.DeliveryAttempt) []attemptResponse {
	responses := make([]attemptResponse, 0, len(attempts))
	for i := range attempts {
		a := attempts[i]
		var headers json.RawMessage
		if a.RequestHeaders != "" {
			headers = json.RawMessage(a.RequestHeaders)
		}
		responses = append(responses, attemptResponse{
			ID:             a.ID,
			DeliveryID:     a.DeliveryID,
			WebhookID:      a.WebhookID,
			AttemptNumber:  a.AttemptNumber,
			RequestURL:     a.RequestURL,
			RequestHeaders: headers,
			StatusCode:     a.StatusCode,
			ResponseBody:   a.ResponseBody,
			Error:          a.Error,
			Outcome:        a.Outcome.String(),
			CreatedAt:      a.CreatedAt,
		})
	}
	return responses
}
