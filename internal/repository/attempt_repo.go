package repository

import (
	"context"

	"github.com/mailhookoss/delivery-engine/internal/domain"
	"gorm.io/gorm"
)

// AttemptRepository is the append-only delivery attempt ledger. There is no
// update or delete path: recorded attempts are immutable history.
type AttemptRepository interface {
	Create(ctx context.Context, a *domain.DeliveryAttempt) error
	ListByDelivery(ctx context.Context, deliveryID string) ([]domain.DeliveryAttempt, error)
	ListByWebhook(ctx context.Context, webhookID string, limit int) ([]domain.DeliveryAttempt, error)
	ListByTenant(ctx context.Context, tenantID string, limit int) ([]domain.DeliveryAttempt, error)
}

type GormAttemptRepo struct {
	db *gorm.DB
}

func NewGormAttemptRepo(db *gorm.DB) *GormAttemptRepo {
	return &GormAttemptRepo{db: db}
}

func (r *GormAttemptRepo) Create(ctx context.Context, a *domain.DeliveryAttempt) error {
	model := attemptModelFromDomain(a)
	if err := r.db.WithContext(ctx).Create(model).Error; err != nil {
		return err
	}
	if a != nil {
		*a = *attemptModelToDomain(model)
	}
	return nil
}

func (r *GormAttemptRepo) ListByDelivery(ctx context.Context, deliveryID string) ([]domain.DeliveryAttempt, error) {
	return r.list(ctx, r.db.WithContext(ctx).
		Where("delivery_id = ?", deliveryID).
		Order("attempt_number ASC"))
}

func (r *GormAttemptRepo) ListByWebhook(ctx context.Context, webhookID string, limit int) ([]domain.DeliveryAttempt, error) {
	return r.list(ctx, r.db.WithContext(ctx).
		Where("webhook_id = ?", webhookID).
		Order("created_at DESC").
		Limit(normalizeLimit(limit)))
}

func (r *GormAttemptRepo) ListByTenant(ctx context.Context, tenantID string, limit int) ([]domain.DeliveryAttempt, error) {
	return r.list(ctx, r.db.WithContext(ctx).
		Where("tenant_id = ?", tenantID).
		Order("created_at DESC").
		Limit(normalizeLimit(limit)))
}

func (r *GormAttemptRepo) list(ctx context.Context, query *gorm.DB) ([]domain.DeliveryAttempt, error) {
	var models []DeliveryAttemptModel
	if err := query.Find(&models).Error; err != nil {
		return nil, err
	}

	attempts := make([]domain.DeliveryAttempt, 0, len(models))
	for i := range models {
		attempts = append(attempts, *attemptModelToDomain(&models[i]))
	}

	return attempts, nil
}

func normalizeLimit(limit int) int {
	if limit < 1 {
		return 50
	}
	return min(limit, 500)
}
