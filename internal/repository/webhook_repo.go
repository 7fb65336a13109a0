package repository

import (
	"context"
	"errors"
	"time"

	"github.com/mailhookoss/delivery-engine/internal/domain"
	"gorm.io/gorm"
)

type WebhookRepository interface {
	Create(ctx context.Context, w *domain.Webhook) error
	GetByID(ctx context.Context, id string) (*domain.Webhook, error)
	ListByTenant(ctx context.Context, tenantID string) ([]domain.Webhook, error)
	ListEnabledByTenant(ctx context.Context, tenantID string) ([]domain.Webhook, error)
	Update(ctx context.Context, w *domain.Webhook) error
	Delete(ctx context.Context, id string) error
	DeleteExpiredEphemeral(ctx context.Context, now time.Time) (int64, error)
}

type GormWebhookRepo struct {
	db *gorm.DB
}

func NewGormWebhookRepo(db *gorm.DB) *GormWebhookRepo {
	return &GormWebhookRepo{db: db}
}

func (r *GormWebhookRepo) Create(ctx context.Context, w *domain.Webhook) error {
	model, err := webhookModelFromDomain(w)
	if err != nil {
		return err
	}
	if err := r.db.WithContext(ctx).Create(model).Error; err != nil {
		return err
	}
	if w != nil {
		restored, err := webhookModelToDomain(model)
		if err != nil {
			return err
		}
		*w = *restored
	}
	return nil
}

func (r *GormWebhookRepo) GetByID(ctx context.Context, id string) (*domain.Webhook, error) {
	var model WebhookModel
	err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return webhookModelToDomain(&model)
}

func (r *GormWebhookRepo) ListByTenant(ctx context.Context, tenantID string) ([]domain.Webhook, error) {
	return r.list(ctx, r.db.WithContext(ctx).Where("tenant_id = ?", tenantID))
}

func (r *GormWebhookRepo) ListEnabledByTenant(ctx context.Context, tenantID string) ([]domain.Webhook, error) {
	return r.list(ctx, r.db.WithContext(ctx).Where("tenant_id = ? AND enabled = ?", tenantID, true))
}

func (r *GormWebhookRepo) list(ctx context.Context, query *gorm.DB) ([]domain.Webhook, error) {
	var models []WebhookModel
	if err := query.Order("created_at ASC").Find(&models).Error; err != nil {
		return nil, err
	}

	webhooks := make([]domain.Webhook, 0, len(models))
	for i := range models {
		w, err := webhookModelToDomain(&models[i])
		if err != nil {
			return nil, err
		}
		webhooks = append(webhooks, *w)
	}
	return webhooks, nil
}

func (r *GormWebhookRepo) Update(ctx context.Context, w *domain.Webhook) error {
	model, err := webhookModelFromDomain(w)
	if err != nil {
		return err
	}
	if model == nil {
		return domain.ErrNotFound
	}

	result := r.db.WithContext(ctx).
		Model(&WebhookModel{}).
		Where("id = ?", model.ID).
		Updates(map[string]any{
			"url":         model.URL,
			"description": model.Description,
			"filter":      model.Filter,
			"enabled":     model.Enabled,
			"ephemeral":   model.Ephemeral,
			"expires_at":  model.ExpiresAt,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *GormWebhookRepo) Delete(ctx context.Context, id string) error {
	result := r.db.WithContext(ctx).Delete(&WebhookModel{}, "id = ?", id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// DeleteExpiredEphemeral reaps ephemeral test subscriptions whose expiry
// has passed. Delivery history belonging to them is kept.
func (r *GormWebhookRepo) DeleteExpiredEphemeral(ctx context.Context, now time.Time) (int64, error) {
	result := r.db.WithContext(ctx).
		Where("ephemeral = ? AND expires_at IS NOT NULL AND expires_at <= ?", true, now).
		Delete(&WebhookModel{})
	if result.Error != nil {
		return 0, result.Error
	}
	return result.RowsAffected, nil
}
