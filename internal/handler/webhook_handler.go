package handler

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/mailhookoss/delivery-engine/internal/domain"
	"github.com/mailhookoss/delivery-engine/internal/service"
)

type WebhookService interface {
	Create(ctx context.Context, params service.CreateWebhookParams) (*domain.Webhook, error)
	GetByID(ctx context.Context, id string) (*domain.Webhook, error)
	ListByTenant(ctx context.Context, tenantID string) ([]domain.Webhook, error)
	Update(ctx context.Context, id string, params service.UpdateWebhookParams) (*domain.Webhook, error)
	Delete(ctx context.Context, id string) error
}

type WebhookHandler struct {
	service WebhookService
}

func NewWebhookHandler(service WebhookService) (*WebhookHandler, error) {
	if service == nil {
		return nil, fmt.Errorf("webhook service is required")
	}
	return &WebhookHandler{service: service}, nil
}

func RegisterWebhookRoutes(router fiber.Router, service WebhookService) error {
	h, err := NewWebhookHandler(service)
	if err != nil {
		return err
	}

	v1 := router.Group("/v1")
	v1.Post("/webhooks", h.CreateWebhook)
	v1.Get("/webhooks", h.ListWebhooks)
	v1.Get("/webhooks/:id", h.GetWebhook)
	v1.Patch("/webhooks/:id", h.UpdateWebhook)
	v1.Delete("/webhooks/:id", h.DeleteWebhook)

	return nil
}

type filterRequest struct {
	EventTypes []string            `json:"eventTypes,omitempty"`
	Attributes map[string][]string `json:"attributes,omitempty"`
}

type createWebhookRequest struct {
	TenantID    string        `json:"tenantId"`
	URL         string        `json:"url"`
	Description string        `json:"description,omitempty"`
	Filter      filterRequest `json:"filter"`
	Ephemeral   bool          `json:"ephemeral,omitempty"`
	TTLSeconds  int           `json:"ttlSeconds,omitempty"`
}

type updateWebhookRequest struct {
	URL         *string        `json:"url,omitempty"`
	Description *string        `json:"description,omitempty"`
	Filter      *filterRequest `json:"filter,omitempty"`
	Enabled     *bool          `json:"enabled,omitempty"`
}

type webhookResponse struct {
	ID          string        `json:"id"`
	TenantID    string        `json:"tenantId"`
	URL         string        `json:"url"`
	Secret      string        `json:"secret,omitempty"`
	Description string        `json:"description,omitempty"`
	Filter      filterRequest `json:"filter"`
	Enabled     bool          `json:"enabled"`
	Ephemeral   bool          `json:"ephemeral,omitempty"`
	ExpiresAt   *time.Time    `json:"expiresAt,omitempty"`
	CreatedAt   time.Time     `json:"createdAt"`
	UpdatedAt   time.Time     `json:"updatedAt"`
}

type listWebhooksResponse struct {
	Data []webhookResponse `json:"data"`
}

func (h *WebhookHandler) CreateWebhook(c *fiber.Ctx) error {
	var req createWebhookRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	webhook, err := h.service.Create(c.Context(), service.CreateWebhookParams{
		TenantID:    req.TenantID,
		URL:         req.URL,
		Description: req.Description,
		Filter:      filterFromRequest(req.Filter),
		Ephemeral:   req.Ephemeral,
		TTL:         time.Duration(req.TTLSeconds) * time.Second,
	})
	if err != nil {
		return toHTTPError(err)
	}

	// The only response that ever carries the signing secret.
	return c.Status(fiber.StatusCreated).JSON(toWebhookResponse(webhook, true))
}

func (h *WebhookHandler) GetWebhook(c *fiber.Ctx) error {
	id := strings.TrimSpace(c.Params("id"))
	webhook, err := h.service.GetByID(c.Context(), id)
	if err != nil {
		return toHTTPError(err)
	}

	return c.Status(fiber.StatusOK).JSON(toWebhookResponse(webhook, false))
}

func (h *WebhookHandler) ListWebhooks(c *fiber.Ctx) error {
	tenantID := strings.TrimSpace(c.Query("tenantId"))
	if tenantID == "" {
		return toHTTPError(fmt.Errorf("%w: tenantId is required", domain.ErrValidation))
	}

	webhooks, err := h.service.ListByTenant(c.Context(), tenantID)
	if err != nil {
		return toHTTPError(err)
	}

	responses := make([]webhookResponse, 0, len(webhooks))
	for i := range webhooks {
		responses = append(responses, toWebhookResponse(&webhooks[i], false))
	}

	return c.Status(fiber.StatusOK).JSON(listWebhooksResponse{Data: responses})
}

func (h *WebhookHandler) UpdateWebhook(c *fiber.Ctx) error {
	id := strings.TrimSpace(c.Params("id"))

	var req updateWebhookRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	params := service.UpdateWebhookParams{
		URL:         req.URL,
		Description: req.Description,
		Enabled:     req.Enabled,
	}
	if req.Filter != nil {
		filter := filterFromRequest(*req.Filter)
		params.Filter = &filter
	}

	webhook, err := h.service.Update(c.Context(), id, params)
	if err != nil {
		return toHTTPError(err)
	}

	return c.Status(fiber.StatusOK).JSON(toWebhookResponse(webhook, false))
}

func (h *WebhookHandler) DeleteWebhook(c *fiber.Ctx) error {
	id := strings.TrimSpace(c.Params("id"))
	if err := h.service.Delete(c.Context(), id); err != nil {
		return toHTTPError(err)
	}

	return c.SendStatus(fiber.StatusNoContent)
}

func filterFromRequest(req filterRequest) domain.Filter {
	return domain.Filter{
		EventTypes: req.EventTypes,
		Attributes: req.Attributes,
	}
}

func toWebhookResponse(w *domain.Webhook, includeSecret bool) webhookResponse {
	if w == nil {
		return webhookResponse{}
	}

	resp := webhookResponse{
		ID:          w.ID,
		TenantID:    w.TenantID,
		URL:         w.URL,
		Description: w.Description,
		Filter: filterRequest{
			EventTypes: w.Filter.EventTypes,
			Attributes: w.Filter.Attributes,
		},
		Enabled:   w.Enabled,
		Ephemeral: w.Ephemeral,
		ExpiresAt: w.ExpiresAt,
		CreatedAt: w.CreatedAt,
		UpdatedAt: w.UpdatedAt,
	}
	if includeSecret {
		resp.Secret = w.Secret
	}
	return resp
}
