package repository

import (
	"context"
	"errors"
	"time"

	"github.com/mailhookoss/delivery-engine/internal/domain"
	"gorm.io/gorm"
)

type ListParams struct {
	TenantID  string
	WebhookID string
	Status    *domain.DeliveryStatus
	From      *time.Time
	To        *time.Time
	Page      int
	PageSize  int
}

// claimableStatuses are the only states a worker may claim from.
var claimableStatuses = []domain.DeliveryStatus{
	domain.DeliveryPending,
	domain.DeliveryFailed,
}

type DeliveryRepository interface {
	Create(ctx context.Context, d *domain.ScheduledDelivery) error
	GetByID(ctx context.Context, id string) (*domain.ScheduledDelivery, error)
	List(ctx context.Context, params ListParams) ([]domain.ScheduledDelivery, int64, error)
	ClaimDue(ctx context.Context, id string, leaseFor time.Duration) (*domain.ScheduledDelivery, error)
	GetDueForRetry(ctx context.Context, limit int) ([]domain.ScheduledDelivery, error)
	ReleaseExpiredLeases(ctx context.Context, now time.Time) (int64, error)
	MarkDelivered(ctx context.Context, id string, attemptCount int, at time.Time) error
	MarkFailedPermanent(ctx context.Context, id string, attemptCount int, at time.Time) error
	MarkExpired(ctx context.Context, id string, attemptCount int, at time.Time) error
	MarkFailedForRetry(ctx context.Context, id string, attemptCount int, nextAttemptAt time.Time, at time.Time) error
}

type GormDeliveryRepo struct {
	db  *gorm.DB
	now func() time.Time
}

func NewGormDeliveryRepo(db *gorm.DB) *GormDeliveryRepo {
	return &GormDeliveryRepo{db: db, now: time.Now}
}

func (r *GormDeliveryRepo) Create(ctx context.Context, d *domain.ScheduledDelivery) error {
	model := deliveryModelFromDomain(d)
	if err := r.db.WithContext(ctx).Create(model).Error; err != nil {
		return err
	}
	if d != nil {
		*d = *deliveryModelToDomain(model)
	}
	return nil
}

func (r *GormDeliveryRepo) GetByID(ctx context.Context, id string) (*domain.ScheduledDelivery, error) {
	var model DeliveryModel
	err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return deliveryModelToDomain(&model), nil
}

func (r *GormDeliveryRepo) List(ctx context.Context, params ListParams) ([]domain.ScheduledDelivery, int64, error) {
	query := r.db.WithContext(ctx).Model(&DeliveryModel{})

	if params.TenantID != "" {
		query = query.Where("tenant_id = ?", params.TenantID)
	}
	if params.WebhookID != "" {
		query = query.Where("webhook_id = ?", params.WebhookID)
	}
	if params.Status != nil {
		query = query.Where("status = ?", *params.Status)
	}
	if params.From != nil {
		query = query.Where("created_at >= ?", *params.From)
	}
	if params.To != nil {
		query = query.Where("created_at <= ?", *params.To)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	page := max(params.Page, 1)
	pageSize := params.PageSize
	if pageSize < 1 {
		pageSize = 50
	}
	pageSize = min(pageSize, 100)

	var models []DeliveryModel
	err := query.
		Order("created_at DESC").
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&models).Error
	if err != nil {
		return nil, 0, err
	}

	deliveries := make([]domain.ScheduledDelivery, 0, len(models))
	for i := range models {
		deliveries = append(deliveries, *deliveryModelToDomain(&models[i]))
	}

	return deliveries, total, nil
}

// ClaimDue atomically transitions one due delivery to processing and takes
// a lease on it. Returns (nil, nil) when the row is not claimable: already
// claimed, terminal, or not yet due. That is normal contention, not an
// error.
func (r *GormDeliveryRepo) ClaimDue(ctx context.Context, id string, leaseFor time.Duration) (*domain.ScheduledDelivery, error) {
	now := r.now().UTC()
	leaseExpiresAt := now.Add(leaseFor)

	result := r.db.WithContext(ctx).
		Model(&DeliveryModel{}).
		Where("id = ? AND status IN ? AND next_attempt_at <= ?", id, claimableStatuses, now).
		Updates(map[string]any{
			"status":           domain.DeliveryProcessing,
			"lease_expires_at": leaseExpiresAt,
		})
	if result.Error != nil {
		return nil, result.Error
	}
	if result.RowsAffected == 0 {
		return nil, nil
	}

	var model DeliveryModel
	if err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return deliveryModelToDomain(&model), nil
}

func (r *GormDeliveryRepo) GetDueForRetry(ctx context.Context, limit int) ([]domain.ScheduledDelivery, error) {
	var models []DeliveryModel
	err := r.db.WithContext(ctx).
		Where("status IN ? AND next_attempt_at <= ?", claimableStatuses, r.now().UTC()).
		Order("next_attempt_at ASC").
		Limit(limit).
		Find(&models).Error
	if err != nil {
		return nil, err
	}

	deliveries := make([]domain.ScheduledDelivery, 0, len(models))
	for i := range models {
		deliveries = append(deliveries, *deliveryModelToDomain(&models[i]))
	}

	return deliveries, nil
}

// ReleaseExpiredLeases returns crashed-worker claims to pending so another
// worker can reclaim them. The claim is a lease, not a permanent lock.
func (r *GormDeliveryRepo) ReleaseExpiredLeases(ctx context.Context, now time.Time) (int64, error) {
	result := r.db.WithContext(ctx).
		Model(&DeliveryModel{}).
		Where("status = ? AND lease_expires_at IS NOT NULL AND lease_expires_at <= ?", domain.DeliveryProcessing, now).
		Updates(map[string]any{
			"status":           domain.DeliveryPending,
			"lease_expires_at": nil,
		})
	if result.Error != nil {
		return 0, result.Error
	}
	return result.RowsAffected, nil
}

func (r *GormDeliveryRepo) MarkDelivered(ctx context.Context, id string, attemptCount int, at time.Time) error {
	return r.finalize(ctx, id, map[string]any{
		"status":           domain.DeliveryDelivered,
		"attempt_count":    attemptCount,
		"lease_expires_at": nil,
		"last_attempt_at":  at,
		"delivered_at":     at,
	})
}

func (r *GormDeliveryRepo) MarkFailedPermanent(ctx context.Context, id string, attemptCount int, at time.Time) error {
	return r.finalize(ctx, id, map[string]any{
		"status":           domain.DeliveryFailedPermanent,
		"attempt_count":    attemptCount,
		"lease_expires_at": nil,
		"last_attempt_at":  at,
	})
}

func (r *GormDeliveryRepo) MarkExpired(ctx context.Context, id string, attemptCount int, at time.Time) error {
	return r.finalize(ctx, id, map[string]any{
		"status":           domain.DeliveryExpired,
		"attempt_count":    attemptCount,
		"lease_expires_at": nil,
		"last_attempt_at":  at,
	})
}

func (r *GormDeliveryRepo) MarkFailedForRetry(ctx context.Context, id string, attemptCount int, nextAttemptAt time.Time, at time.Time) error {
	return r.finalize(ctx, id, map[string]any{
		"status":           domain.DeliveryFailed,
		"attempt_count":    attemptCount,
		"lease_expires_at": nil,
		"last_attempt_at":  at,
		"next_attempt_at":  nextAttemptAt,
	})
}

// finalize releases the lease while applying the outcome. Only the claim
// holder calls this, so a plain id match is sufficient.
func (r *GormDeliveryRepo) finalize(ctx context.Context, id string, updates map[string]any) error {
	result := r.db.WithContext(ctx).
		Model(&DeliveryModel{}).
		Where("id = ? AND status = ?", id, domain.DeliveryProcessing).
		Updates(updates)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domain.ErrConflict
	}
	return nil
}
