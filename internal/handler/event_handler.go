package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/mailhookoss/delivery-engine/internal/domain"
)

type EventIngestor interface {
	Ingest(ctx context.Context, event domain.Event) ([]domain.ScheduledDelivery, error)
}

type EventHandler struct {
	ingestor EventIngestor
}

func NewEventHandler(ingestor EventIngestor) (*EventHandler, error) {
	if ingestor == nil {
		return nil, fmt.Errorf("event ingestor is required")
	}
	return &EventHandler{ingestor: ingestor}, nil
}

func RegisterEventRoutes(router fiber.Router, ingestor EventIngestor) error {
	h, err := NewEventHandler(ingestor)
	if err != nil {
		return err
	}

	v1 := router.Group("/v1")
	v1.Post("/events", h.IngestEvent)

	return nil
}

type ingestEventRequest struct {
	Type       string            `json:"type"`
	TenantID   string            `json:"tenantId"`
	Attributes map[string]string `json:"attributes,omitempty"`
	Payload    json.RawMessage   `json:"payload"`
	OccurredAt *time.Time        `json:"occurredAt,omitempty"`
}

type ingestEventResponse struct {
	Scheduled []scheduledDeliveryRef `json:"scheduled"`
}

type scheduledDeliveryRef struct {
	DeliveryID string `json:"deliveryId"`
	WebhookID  string `json:"webhookId"`
}

func (h *EventHandler) IngestEvent(c *fiber.Ctx) error {
	var req ingestEventRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	event := domain.Event{
		Type:       strings.TrimSpace(req.Type),
		TenantID:   strings.TrimSpace(req.TenantID),
		Attributes: req.Attributes,
		Payload:    []byte(req.Payload),
	}
	if req.OccurredAt != nil {
		event.OccurredAt = *req.OccurredAt
	} else {
		event.OccurredAt = time.Now().UTC()
	}

	deliveries, err := h.ingestor.Ingest(c.Context(), event)
	if err != nil {
		return toHTTPError(err)
	}

	refs := make([]scheduledDeliveryRef, 0, len(deliveries))
	for i := range deliveries {
		refs = append(refs, scheduledDeliveryRef{
			DeliveryID: deliveries[i].ID,
			WebhookID:  deliveries[i].WebhookID,
		})
	}

	return c.Status(fiber.StatusAccepted).JSON(ingestEventResponse{Scheduled: refs})
}
