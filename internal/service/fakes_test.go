package service

import (
	"context"
	"sync"
	"time"

	"github.com/mailhookoss/delivery-engine/internal/domain"
	"github.com/mailhookoss/delivery-engine/internal/queue"
	"github.com/mailhookoss/delivery-engine/internal/repository"
	"github.com/mailhookoss/delivery-engine/internal/sender"
)

type fakeWebhookRepo struct {
	createFn                 func(ctx context.Context, w *domain.Webhook) error
	getByIDFn                func(ctx context.Context, id string) (*domain.Webhook, error)
	listByTenantFn           func(ctx context.Context, tenantID string) ([]domain.Webhook, error)
	listEnabledByTenantFn    func(ctx context.Context, tenantID string) ([]domain.Webhook, error)
	updateFn                 func(ctx context.Context, w *domain.Webhook) error
	deleteFn                 func(ctx context.Context, id string) error
	deleteExpiredEphemeralFn func(ctx context.Context, now time.Time) (int64, error)
}

func (f *fakeWebhookRepo) Create(ctx context.Context, w *domain.Webhook) error {
	if f.createFn == nil {
		return nil
	}
	return f.createFn(ctx, w)
}

func (f *fakeWebhookRepo) GetByID(ctx context.Context, id string) (*domain.Webhook, error) {
	return f.getByIDFn(ctx, id)
}

func (f *fakeWebhookRepo) ListByTenant(ctx context.Context, tenantID string) ([]domain.Webhook, error) {
	return f.listByTenantFn(ctx, tenantID)
}

func (f *fakeWebhookRepo) ListEnabledByTenant(ctx context.Context, tenantID string) ([]domain.Webhook, error) {
	return f.listEnabledByTenantFn(ctx, tenantID)
}

func (f *fakeWebhookRepo) Update(ctx context.Context, w *domain.Webhook) error {
	return f.updateFn(ctx, w)
}

func (f *fakeWebhookRepo) Delete(ctx context.Context, id string) error {
	return f.deleteFn(ctx, id)
}

func (f *fakeWebhookRepo) DeleteExpiredEphemeral(ctx context.Context, now time.Time) (int64, error) {
	return f.deleteExpiredEphemeralFn(ctx, now)
}

type fakeDeliveryRepo struct {
	createFn               func(ctx context.Context, d *domain.ScheduledDelivery) error
	getByIDFn              func(ctx context.Context, id string) (*domain.ScheduledDelivery, error)
	listFn                 func(ctx context.Context, params repository.ListParams) ([]domain.ScheduledDelivery, int64, error)
	claimDueFn             func(ctx context.Context, id string, leaseFor time.Duration) (*domain.ScheduledDelivery, error)
	getDueForRetryFn       func(ctx context.Context, limit int) ([]domain.ScheduledDelivery, error)
	releaseExpiredLeasesFn func(ctx context.Context, now time.Time) (int64, error)
	markDeliveredFn        func(ctx context.Context, id string, attemptCount int, at time.Time) error
	markFailedPermanentFn  func(ctx context.Context, id string, attemptCount int, at time.Time) error
	markExpiredFn          func(ctx context.Context, id string, attemptCount int, at time.Time) error
	markFailedForRetryFn   func(ctx context.Context, id string, attemptCount int, nextAttemptAt time.Time, at time.Time) error
}

func (f *fakeDeliveryRepo) Create(ctx context.Context, d *domain.ScheduledDelivery) error {
	return f.createFn(ctx, d)
}

func (f *fakeDeliveryRepo) GetByID(ctx context.Context, id string) (*domain.ScheduledDelivery, error) {
	return f.getByIDFn(ctx, id)
}

func (f *fakeDeliveryRepo) List(ctx context.Context, params repository.ListParams) ([]domain.ScheduledDelivery, int64, error) {
	return f.listFn(ctx, params)
}

func (f *fakeDeliveryRepo) ClaimDue(ctx context.Context, id string, leaseFor time.Duration) (*domain.ScheduledDelivery, error) {
	return f.claimDueFn(ctx, id, leaseFor)
}

func (f *fakeDeliveryRepo) GetDueForRetry(ctx context.Context, limit int) ([]domain.ScheduledDelivery, error) {
	return f.getDueForRetryFn(ctx, limit)
}

func (f *fakeDeliveryRepo) ReleaseExpiredLeases(ctx context.Context, now time.Time) (int64, error) {
	if f.releaseExpiredLeasesFn == nil {
		return 0, nil
	}
	return f.releaseExpiredLeasesFn(ctx, now)
}

func (f *fakeDeliveryRepo) MarkDelivered(ctx context.Context, id string, attemptCount int, at time.Time) error {
	return f.markDeliveredFn(ctx, id, attemptCount, at)
}

func (f *fakeDeliveryRepo) MarkFailedPermanent(ctx context.Context, id string, attemptCount int, at time.Time) error {
	return f.markFailedPermanentFn(ctx, id, attemptCount, at)
}

func (f *fakeDeliveryRepo) MarkExpired(ctx context.Context, id string, attemptCount int, at time.Time) error {
	return f.markExpiredFn(ctx, id, attemptCount, at)
}

func (f *fakeDeliveryRepo) MarkFailedForRetry(ctx context.Context, id string, attemptCount int, nextAttemptAt time.Time, at time.Time) error {
	return f.markFailedForRetryFn(ctx, id, attemptCount, nextAttemptAt, at)
}

type fakeAttemptRepo struct {
	mu       sync.Mutex
	attempts []domain.DeliveryAttempt
	createFn func(ctx context.Context, a *domain.DeliveryAttempt) error
}

func (f *fakeAttemptRepo) Create(ctx context.Context, a *domain.DeliveryAttempt) error {
	if f.createFn != nil {
		return f.createFn(ctx, a)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.attempts = append(f.attempts, *a)
	return nil
}

func (f *fakeAttemptRepo) recorded() []domain.DeliveryAttempt {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]domain.DeliveryAttempt, len(f.attempts))
	copy(out, f.attempts)
	return out
}

func (f *fakeAttemptRepo) ListByDelivery(ctx context.Context, deliveryID string) ([]domain.DeliveryAttempt, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.DeliveryAttempt
	for _, a := range f.attempts {
		if a.DeliveryID == deliveryID {
			out = append(out, a)
		}
	}
	return out, nil
}

func (f *fakeAttemptRepo) ListByWebhook(ctx context.Context, webhookID string, limit int) ([]domain.DeliveryAttempt, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.DeliveryAttempt
	for _, a := range f.attempts {
		if a.WebhookID == webhookID {
			out = append(out, a)
		}
	}
	return out, nil
}

func (f *fakeAttemptRepo) ListByTenant(ctx context.Context, tenantID string, limit int) ([]domain.DeliveryAttempt, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.DeliveryAttempt
	for _, a := range f.attempts {
		if a.TenantID == tenantID {
			out = append(out, a)
		}
	}
	return out, nil
}

type fakePublisher struct {
	mu        sync.Mutex
	published []queue.DeliveryMessage
	publishFn func(ctx context.Context, queueName string, msg queue.DeliveryMessage) error
}

func (f *fakePublisher) Publish(ctx context.Context, queueName string, msg queue.DeliveryMessage) error {
	if f.publishFn != nil {
		return f.publishFn(ctx, queueName, msg)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.published = append(f.published, msg)
	return nil
}

func (f *fakePublisher) Close() error {
	return nil
}

func (f *fakePublisher) messages() []queue.DeliveryMessage {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]queue.DeliveryMessage, len(f.published))
	copy(out, f.published)
	return out
}

type fakeSender struct {
	mu       sync.Mutex
	requests []sender.Request
	sendFn   func(ctx context.Context, req sender.Request) (*sender.Response, error)
}

func (f *fakeSender) Send(ctx context.Context, req sender.Request) (*sender.Response, error) {
	f.mu.Lock()
	f.requests = append(f.requests, req)
	f.mu.Unlock()
	return f.sendFn(ctx, req)
}

func (f *fakeSender) sent() []sender.Request {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]sender.Request, len(f.requests))
	copy(out, f.requests)
	return out
}

type fakeRateLimiter struct {
	mu        sync.Mutex
	endpoints []string
}

func (f *fakeRateLimiter) Allow(ctx context.Context, endpoint string) (bool, error) {
	return true, nil
}

func (f *fakeRateLimiter) Wait(ctx context.Context, endpoint string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.endpoints = append(f.endpoints, endpoint)
	return nil
}
