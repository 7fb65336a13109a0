package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/mailhookoss/delivery-engine/internal/domain"
	"github.com/mailhookoss/delivery-engine/internal/observability"
	"github.com/mailhookoss/delivery-engine/internal/queue"
	"github.com/mailhookoss/delivery-engine/internal/repository"
	"go.uber.org/zap"
)

// DeliveryService turns inbound events into scheduled deliveries and owns
// the administrative read surface over deliveries and attempts.
type DeliveryService struct {
	webhooks   repository.WebhookRepository
	deliveries repository.DeliveryRepository
	attempts   repository.AttemptRepository
	publisher  queue.Publisher
	logger     *zap.Logger
	metrics    *observability.Metrics
	now        func() time.Time
}

func NewDeliveryService(
	webhooks repository.WebhookRepository,
	deliveries repository.DeliveryRepository,
	attempts repository.AttemptRepository,
	publisher queue.Publisher,
	logger *zap.Logger,
) (*DeliveryService, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	return &DeliveryService{
		webhooks:   webhooks,
		deliveries: deliveries,
		attempts:   attempts,
		publisher:  publisher,
		logger:     logger,
		now:        time.Now,
	}, nil
}

func (s *DeliveryService) SetMetrics(metrics *observability.Metrics) {
	if s == nil {
		return
	}
	s.metrics = metrics
}

// Ingest matches an event against the tenant's enabled webhooks and creates
// one pending delivery per match. No match is a normal, empty result.
// Deduplication of duplicate upstream events is the producer's concern.
func (s *DeliveryService) Ingest(ctx context.Context, event domain.Event) ([]domain.ScheduledDelivery, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if err := event.Validate(); err != nil {
		return nil, err
	}

	webhooks, err := s.webhooks.ListEnabledByTenant(ctx, event.TenantID)
	if err != nil {
		return nil, fmt.Errorf("failed to load tenant webhooks: %w", err)
	}

	now := s.now().UTC()
	scheduled := make([]domain.ScheduledDelivery, 0, len(webhooks))
	for i := range webhooks {
		webhook := webhooks[i]
		if !webhook.MatchesEvent(event) {
			continue
		}

		delivery := domain.NewScheduledDelivery(&webhook, event, now)
		if err := s.deliveries.Create(ctx, delivery); err != nil {
			return scheduled, fmt.Errorf("failed to schedule delivery for webhook %s: %w", webhook.ID, err)
		}

		s.publishWakeup(ctx, delivery)
		scheduled = append(scheduled, *delivery)

		if s.metrics != nil {
			s.metrics.IncDeliveryScheduled(event.Type)
		}
	}

	return scheduled, nil
}

// Redeliver creates a brand-new pending delivery reusing the original's
// webhook and payload snapshot. The original delivery, whatever its state,
// and its attempt history are left untouched.
func (s *DeliveryService) Redeliver(ctx context.Context, deliveryID string) (*domain.ScheduledDelivery, error) {
	if strings.TrimSpace(deliveryID) == "" {
		return nil, fmt.Errorf("%w: delivery id is required", domain.ErrValidation)
	}

	original, err := s.deliveries.GetByID(ctx, strings.TrimSpace(deliveryID))
	if err != nil {
		return nil, err
	}

	payload := make([]byte, len(original.Payload))
	copy(payload, original.Payload)

	now := s.now().UTC()
	replacement := &domain.ScheduledDelivery{
		ID:            domain.NewDeliveryID(),
		WebhookID:     original.WebhookID,
		TenantID:      original.TenantID,
		EventType:     original.EventType,
		Payload:       payload,
		Status:        domain.DeliveryPending,
		AttemptCount:  0,
		MaxAttempts:   original.MaxAttempts,
		NextAttemptAt: now,
	}

	if err := s.deliveries.Create(ctx, replacement); err != nil {
		return nil, fmt.Errorf("failed to create redelivery: %w", err)
	}

	s.publishWakeup(ctx, replacement)
	if s.metrics != nil {
		s.metrics.IncDeliveryScheduled(replacement.EventType)
	}

	s.logger.Info("redelivery scheduled",
		zap.String("originalDeliveryId", original.ID),
		zap.String("deliveryId", replacement.ID),
		zap.String("webhookId", replacement.WebhookID),
	)

	return replacement, nil
}

func (s *DeliveryService) GetDelivery(ctx context.Context, id string) (*domain.ScheduledDelivery, error) {
	if strings.TrimSpace(id) == "" {
		return nil, fmt.Errorf("%w: delivery id is required", domain.ErrValidation)
	}
	return s.deliveries.GetByID(ctx, strings.TrimSpace(id))
}

func (s *DeliveryService) ListDeliveries(ctx context.Context, params repository.ListParams) ([]domain.ScheduledDelivery, int64, error) {
	return s.deliveries.List(ctx, params)
}

func (s *DeliveryService) ListAttemptsByDelivery(ctx context.Context, deliveryID string) ([]domain.DeliveryAttempt, error) {
	if strings.TrimSpace(deliveryID) == "" {
		return nil, fmt.Errorf("%w: delivery id is required", domain.ErrValidation)
	}
	if _, err := s.deliveries.GetByID(ctx, strings.TrimSpace(deliveryID)); err != nil {
		return nil, err
	}
	return s.attempts.ListByDelivery(ctx, strings.TrimSpace(deliveryID))
}

func (s *DeliveryService) ListAttemptsByWebhook(ctx context.Context, webhookID string, limit int) ([]domain.DeliveryAttempt, error) {
	if strings.TrimSpace(webhookID) == "" {
		return nil, fmt.Errorf("%w: webhook id is required", domain.ErrValidation)
	}
	return s.attempts.ListByWebhook(ctx, strings.TrimSpace(webhookID), limit)
}

func (s *DeliveryService) ListAttemptsByTenant(ctx context.Context, tenantID string, limit int) ([]domain.DeliveryAttempt, error) {
	if strings.TrimSpace(tenantID) == "" {
		return nil, fmt.Errorf("%w: tenant id is required", domain.ErrValidation)
	}
	return s.attempts.ListByTenant(ctx, strings.TrimSpace(tenantID), limit)
}

// publishWakeup nudges a worker. Failures are logged, not returned: the
// delivery row is the durable source of truth and the retry scanner will
// republish anything that stays due.
func (s *DeliveryService) publishWakeup(ctx context.Context, delivery *domain.ScheduledDelivery) {
	if s.publisher == nil {
		return
	}

	msg := queue.DeliveryMessage{
		DeliveryID: delivery.ID,
		WebhookID:  delivery.WebhookID,
		TenantID:   delivery.TenantID,
		EventType:  delivery.EventType,
	}
	if err := s.publisher.Publish(ctx, queue.WorkQueueName, msg); err != nil {
		s.logger.Warn("failed to publish delivery wakeup",
			zap.String("deliveryId", delivery.ID),
			zap.Error(err),
		)
	}
}
