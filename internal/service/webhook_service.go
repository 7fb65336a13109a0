package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/mailhookoss/delivery-engine/internal/domain"
	"github.com/mailhookoss/delivery-engine/internal/repository"
	"github.com/mailhookoss/delivery-engine/internal/signature"
	"go.uber.org/zap"
)

// DefaultEphemeralTTL bounds the lifetime of ephemeral test subscriptions
// created without an explicit TTL.
const DefaultEphemeralTTL = time.Hour

// WebhookService owns webhook subscription CRUD. The signing secret is
// generated here and surfaces in full exactly once, on the Create return
// value; reads go through the handler layer which redacts it.
type WebhookService struct {
	webhooks repository.WebhookRepository
	logger   *zap.Logger
	now      func() time.Time
}

type CreateWebhookParams struct {
	TenantID    string
	URL         string
	Description string
	Filter      domain.Filter
	Ephemeral   bool
	TTL         time.Duration
}

type UpdateWebhookParams struct {
	URL         *string
	Description *string
	Filter      *domain.Filter
	Enabled     *bool
}

func NewWebhookService(webhooks repository.WebhookRepository, logger *zap.Logger) (*WebhookService, error) {
	if webhooks == nil {
		return nil, fmt.Errorf("webhook repository is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &WebhookService{
		webhooks: webhooks,
		logger:   logger,
		now:      time.Now,
	}, nil
}

func (s *WebhookService) Create(ctx context.Context, params CreateWebhookParams) (*domain.Webhook, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	secret, err := signature.GenerateSecret()
	if err != nil {
		return nil, err
	}

	webhook := &domain.Webhook{
		ID:          domain.NewWebhookID(),
		TenantID:    strings.TrimSpace(params.TenantID),
		URL:         strings.TrimSpace(params.URL),
		Secret:      secret,
		Description: strings.TrimSpace(params.Description),
		Filter:      params.Filter,
		Enabled:     true,
		Ephemeral:   params.Ephemeral,
	}

	if params.Ephemeral {
		ttl := params.TTL
		if ttl <= 0 {
			ttl = DefaultEphemeralTTL
		}
		expiresAt := s.now().UTC().Add(ttl)
		webhook.ExpiresAt = &expiresAt
	}

	if err := webhook.Validate(); err != nil {
		return nil, err
	}

	if err := s.webhooks.Create(ctx, webhook); err != nil {
		return nil, fmt.Errorf("failed to create webhook: %w", err)
	}

	s.logger.Info("webhook created",
		zap.String("webhookId", webhook.ID),
		zap.String("tenantId", webhook.TenantID),
		zap.Bool("ephemeral", webhook.Ephemeral),
	)

	return webhook, nil
}

func (s *WebhookService) GetByID(ctx context.Context, id string) (*domain.Webhook, error) {
	if strings.TrimSpace(id) == "" {
		return nil, fmt.Errorf("%w: webhook id is required", domain.ErrValidation)
	}
	return s.webhooks.GetByID(ctx, strings.TrimSpace(id))
}

func (s *WebhookService) ListByTenant(ctx context.Context, tenantID string) ([]domain.Webhook, error) {
	if strings.TrimSpace(tenantID) == "" {
		return nil, fmt.Errorf("%w: tenant id is required", domain.ErrValidation)
	}
	return s.webhooks.ListByTenant(ctx, strings.TrimSpace(tenantID))
}

func (s *WebhookService) Update(ctx context.Context, id string, params UpdateWebhookParams) (*domain.Webhook, error) {
	webhook, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if params.URL != nil {
		webhook.URL = strings.TrimSpace(*params.URL)
	}
	if params.Description != nil {
		webhook.Description = strings.TrimSpace(*params.Description)
	}
	if params.Filter != nil {
		webhook.Filter = *params.Filter
	}
	if params.Enabled != nil {
		webhook.Enabled = *params.Enabled
	}

	if err := webhook.Validate(); err != nil {
		return nil, err
	}

	if err := s.webhooks.Update(ctx, webhook); err != nil {
		return nil, fmt.Errorf("failed to update webhook: %w", err)
	}

	return webhook, nil
}

// Delete removes a subscription. Deliveries already scheduled for it are
// not deleted; workers finalize them as permanently failed at claim time.
// Attempt history is always preserved.
func (s *WebhookService) Delete(ctx context.Context, id string) error {
	if strings.TrimSpace(id) == "" {
		return fmt.Errorf("%w: webhook id is required", domain.ErrValidation)
	}
	return s.webhooks.Delete(ctx, strings.TrimSpace(id))
}
