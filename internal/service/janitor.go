package service

import (
	"context"
	"fmt"
	"time"

	"github.com/mailhookoss/delivery-engine/internal/repository"
	"go.uber.org/zap"
)

const defaultJanitorInterval = 10 * time.Minute

// Janitor removes ephemeral webhooks whose TTL has elapsed. Scheduled
// deliveries pointing at a removed webhook are finalized by the workers;
// attempt history is never touched.
type Janitor struct {
	webhooks repository.WebhookRepository
	logger   *zap.Logger
	interval time.Duration
	now      func() time.Time
}

func NewJanitor(webhooks repository.WebhookRepository, interval time.Duration, logger *zap.Logger) (*Janitor, error) {
	if webhooks == nil {
		return nil, fmt.Errorf("webhook repository is required")
	}
	if interval <= 0 {
		interval = defaultJanitorInterval
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Janitor{
		webhooks: webhooks,
		logger:   logger,
		interval: interval,
		now:      time.Now,
	}, nil
}

func (j *Janitor) Start(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	if err := j.sweep(ctx); err != nil && ctx.Err() == nil {
		j.logger.Error("janitor initial sweep failed", zap.Error(err))
	}

	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if err := j.sweep(ctx); err != nil {
				if ctx.Err() != nil {
					return nil
				}
				j.logger.Error("janitor sweep failed", zap.Error(err))
			}
		}
	}
}

func (j *Janitor) sweep(ctx context.Context) error {
	removed, err := j.webhooks.DeleteExpiredEphemeral(ctx, j.now().UTC())
	if err != nil {
		return fmt.Errorf("failed to delete expired ephemeral webhooks: %w", err)
	}
	if removed > 0 {
		j.logger.Info("removed expired ephemeral webhooks", zap.Int64("count", removed))
	}
	return nil
}
