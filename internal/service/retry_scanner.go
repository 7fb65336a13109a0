package service

import (
	"context"
	"fmt"
	"time"

	"github.com/mailhookoss/delivery-engine/internal/queue"
	"github.com/mailhookoss/delivery-engine/internal/repository"
	"go.uber.org/zap"
)

const (
	defaultRetryScanInterval = 5 * time.Second
	defaultRetryScanLimit    = 100
)

// RetryScanner periodically publishes wakeup messages for due deliveries and
// returns expired leases to the pending pool. Because claiming is a
// conditional update on the delivery row, republishing a delivery that was
// already picked up is harmless.
type RetryScanner struct {
	deliveries repository.DeliveryRepository
	publisher  queue.Publisher
	logger     *zap.Logger
	interval   time.Duration
	limit      int
	now        func() time.Time
}

func NewRetryScanner(
	deliveries repository.DeliveryRepository,
	publisher queue.Publisher,
	interval time.Duration,
	limit int,
	logger *zap.Logger,
) (*RetryScanner, error) {
	if deliveries == nil {
		return nil, fmt.Errorf("delivery repository is required")
	}
	if publisher == nil {
		return nil, fmt.Errorf("publisher is required")
	}
	if interval <= 0 {
		interval = defaultRetryScanInterval
	}
	if limit <= 0 {
		limit = defaultRetryScanLimit
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &RetryScanner{
		deliveries: deliveries,
		publisher:  publisher,
		logger:     logger,
		interval:   interval,
		limit:      limit,
		now:        time.Now,
	}, nil
}

func (s *RetryScanner) Start(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	// Run an initial scan so already-due deliveries do not wait for the first ticker edge.
	if err := s.scanDue(ctx); err != nil && ctx.Err() == nil {
		s.logger.Error("retry scanner initial scan failed", zap.Error(err))
	}

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if err := s.scanDue(ctx); err != nil {
				if ctx.Err() != nil {
					return nil
				}
				s.logger.Error("retry scanner scan failed", zap.Error(err))
			}
		}
	}
}

func (s *RetryScanner) scanDue(ctx context.Context) error {
	reclaimed, err := s.deliveries.ReleaseExpiredLeases(ctx, s.now().UTC())
	if err != nil {
		return fmt.Errorf("failed to release expired leases: %w", err)
	}
	if reclaimed > 0 {
		s.logger.Warn("reclaimed deliveries from expired leases", zap.Int64("count", reclaimed))
	}

	dueDeliveries, err := s.deliveries.GetDueForRetry(ctx, s.limit)
	if err != nil {
		return fmt.Errorf("failed to fetch due deliveries: %w", err)
	}

	for i := range dueDeliveries {
		delivery := dueDeliveries[i]
		msg := queue.DeliveryMessage{
			DeliveryID: delivery.ID,
			WebhookID:  delivery.WebhookID,
			TenantID:   delivery.TenantID,
			EventType:  delivery.EventType,
		}

		if err := s.publisher.Publish(ctx, queue.WorkQueueName, msg); err != nil {
			s.logger.Error("failed to publish delivery wakeup",
				zap.String("deliveryId", delivery.ID),
				zap.Error(err),
			)
			continue
		}
	}

	return nil
}
