package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/mailhookoss/delivery-engine/internal/domain"
	"github.com/mailhookoss/delivery-engine/internal/observability"
	"github.com/mailhookoss/delivery-engine/internal/queue"
	"github.com/mailhookoss/delivery-engine/internal/ratelimit"
	"github.com/mailhookoss/delivery-engine/internal/repository"
	"github.com/mailhookoss/delivery-engine/internal/sender"
	"github.com/mailhookoss/delivery-engine/internal/signature"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	minWorkerConcurrency = 1

	// DefaultClaimLease bounds how long a crashed worker can hold a
	// delivery before it becomes reclaimable.
	DefaultClaimLease = 60 * time.Second
)

// WorkerService drives claimed deliveries to completion or to their next
// scheduled retry. The claim-with-lease transition in the repository is the
// mutual exclusion guarantee; queue messages are only wakeups.
type WorkerService struct {
	webhooks    repository.WebhookRepository
	deliveries  repository.DeliveryRepository
	attempts    repository.AttemptRepository
	consumer    queue.Consumer
	sender      sender.Sender
	classifier  *sender.Classifier
	rateLimiter ratelimit.RateLimiter
	logger      *zap.Logger
	metrics     *observability.Metrics
	concurrency int
	claimLease  time.Duration
	now         func() time.Time
}

func NewWorkerService(
	webhooks repository.WebhookRepository,
	deliveries repository.DeliveryRepository,
	attempts repository.AttemptRepository,
	consumer queue.Consumer,
	snd sender.Sender,
	classifier *sender.Classifier,
	rateLimiter ratelimit.RateLimiter,
	concurrency int,
	claimLease time.Duration,
	logger *zap.Logger,
) (*WorkerService, error) {
	if concurrency < minWorkerConcurrency {
		concurrency = minWorkerConcurrency
	}
	if claimLease <= 0 {
		claimLease = DefaultClaimLease
	}
	if classifier == nil {
		classifier = sender.NewClassifier(nil)
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &WorkerService{
		webhooks:    webhooks,
		deliveries:  deliveries,
		attempts:    attempts,
		consumer:    consumer,
		sender:      snd,
		classifier:  classifier,
		rateLimiter: rateLimiter,
		logger:      logger,
		concurrency: concurrency,
		claimLease:  claimLease,
		now:         time.Now,
	}, nil
}

func (s *WorkerService) SetMetrics(metrics *observability.Metrics) {
	if s == nil {
		return
	}
	s.metrics = metrics
}

// Start consumes the wakeup queue with the configured number of workers
// until context cancellation.
func (s *WorkerService) Start(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	g, groupCtx := errgroup.WithContext(ctx)
	for i := 0; i < s.concurrency; i++ {
		workerID := i + 1

		g.Go(func() error {
			s.logger.Info("delivery worker started", zap.Int("workerId", workerID))

			err := s.consumer.Consume(groupCtx, queue.WorkQueueName, s.processMessage)
			if err != nil {
				s.logger.Error("delivery worker stopped with error",
					zap.Int("workerId", workerID),
					zap.Error(err),
				)
				return err
			}

			s.logger.Info("delivery worker stopped", zap.Int("workerId", workerID))
			return nil
		})
	}

	return g.Wait()
}

func (s *WorkerService) processMessage(ctx context.Context, msg queue.DeliveryMessage) error {
	delivery, err := s.deliveries.ClaimDue(ctx, msg.DeliveryID, s.claimLease)
	if err != nil {
		return fmt.Errorf("failed to claim delivery: %w", err)
	}

	// Nil means the row is terminal, not yet due, or already claimed by a
	// peer. Ack and move on.
	if delivery == nil {
		return nil
	}

	if s.metrics != nil {
		s.metrics.IncWorkerInFlight(delivery.EventType)
		defer s.metrics.DecWorkerInFlight(delivery.EventType)
	}

	recorded, err := s.attempts.ListByDelivery(ctx, delivery.ID)
	if err != nil {
		return fmt.Errorf("failed to load recorded attempts: %w", err)
	}
	if len(recorded) > delivery.AttemptCount {
		// A previous holder recorded this attempt but died before
		// finalizing, so the row counter lags the ledger. Finish the
		// bookkeeping from the recorded outcome instead of sending the
		// payload again.
		last := recorded[len(recorded)-1]
		s.logger.Warn("resuming delivery from recorded attempt",
			zap.String("deliveryId", delivery.ID),
			zap.Int("attemptNumber", last.AttemptNumber),
		)
		return s.finalize(ctx, delivery, last.AttemptNumber, last.Outcome)
	}
	attemptNumber := len(recorded) + 1

	webhook, err := s.webhooks.GetByID(ctx, delivery.WebhookID)
	if errors.Is(err, domain.ErrNotFound) || (err == nil && !webhook.Enabled) {
		// The subscription vanished or was disabled after scheduling.
		// Retrying cannot help, so finalize without an HTTP call.
		return s.finalizeUnavailableWebhook(ctx, delivery, webhook, attemptNumber)
	}
	if err != nil {
		return fmt.Errorf("failed to load webhook for delivery: %w", err)
	}

	if s.rateLimiter != nil {
		if err := s.rateLimiter.Wait(ctx, endpointHost(webhook.URL)); err != nil {
			return fmt.Errorf("rate limiter wait failed: %w", err)
		}
	}

	sentAt := s.now().UTC()
	req := s.buildRequest(delivery, webhook, sentAt)

	resp, sendErr := s.sender.Send(ctx, req)
	if s.metrics != nil {
		s.metrics.ObserveAttemptDuration(delivery.EventType, s.now().Sub(sentAt))
	}

	outcome := s.classifier.Classify(resp, sendErr)

	if err := s.recordAttempt(ctx, delivery, attemptNumber, req, resp, sendErr, outcome); err != nil {
		return fmt.Errorf("failed to record attempt: %w", err)
	}

	return s.finalize(ctx, delivery, attemptNumber, outcome)
}

func (s *WorkerService) buildRequest(delivery *domain.ScheduledDelivery, webhook *domain.Webhook, sentAt time.Time) sender.Request {
	sig := signature.Sign(delivery.ID, sentAt, delivery.Payload, webhook.Secret)

	return sender.Request{
		DeliveryID: delivery.ID,
		URL:        webhook.URL,
		Headers: map[string]string{
			"webhook-id":        delivery.ID,
			"webhook-timestamp": strconv.FormatInt(sentAt.Unix(), 10),
			"webhook-signature": sig,
		},
		Body:      delivery.Payload,
		Timestamp: sentAt,
	}
}

func (s *WorkerService) finalize(ctx context.Context, delivery *domain.ScheduledDelivery, attemptNumber int, outcome domain.AttemptOutcome) error {
	now := s.now().UTC()

	switch outcome {
	case domain.OutcomeSuccess:
		if err := s.deliveries.MarkDelivered(ctx, delivery.ID, attemptNumber, now); err != nil {
			return fmt.Errorf("failed to mark delivery as delivered: %w", err)
		}
		if s.metrics != nil {
			s.metrics.IncDeliveryDelivered(delivery.EventType)
		}
		return nil

	case domain.OutcomePermanent:
		if err := s.deliveries.MarkFailedPermanent(ctx, delivery.ID, attemptNumber, now); err != nil {
			return fmt.Errorf("failed to mark delivery as permanently failed: %w", err)
		}
		if s.metrics != nil {
			s.metrics.IncDeliveryFailed(delivery.EventType, "permanent_error")
		}
		return nil

	default:
		maxAttempts := delivery.MaxAttempts
		if maxAttempts <= 0 {
			maxAttempts = domain.DefaultMaxAttempts
		}

		if attemptNumber >= maxAttempts {
			if err := s.deliveries.MarkExpired(ctx, delivery.ID, attemptNumber, now); err != nil {
				return fmt.Errorf("failed to mark delivery as expired: %w", err)
			}
			if s.metrics != nil {
				s.metrics.IncDeliveryFailed(delivery.EventType, "retry_exhausted")
			}
			return nil
		}

		nextAttemptAt := now.Add(domain.BackoffDelay(attemptNumber))
		if err := s.deliveries.MarkFailedForRetry(ctx, delivery.ID, attemptNumber, nextAttemptAt, now); err != nil {
			return fmt.Errorf("failed to mark delivery for retry: %w", err)
		}
		if s.metrics != nil {
			s.metrics.IncRetryScheduled(delivery.EventType)
		}
		return nil
	}
}

func (s *WorkerService) finalizeUnavailableWebhook(ctx context.Context, delivery *domain.ScheduledDelivery, webhook *domain.Webhook, attemptNumber int) error {
	reason := "webhook deleted before delivery"
	requestURL := ""
	if webhook != nil {
		reason = "webhook disabled before delivery"
		requestURL = webhook.URL
	}

	errText := reason
	attempt := &domain.DeliveryAttempt{
		ID:            uuid.NewString(),
		DeliveryID:    delivery.ID,
		WebhookID:     delivery.WebhookID,
		TenantID:      delivery.TenantID,
		AttemptNumber: attemptNumber,
		RequestURL:    requestURL,
		Error:         &errText,
		Outcome:       domain.OutcomePermanent,
		CreatedAt:     s.now().UTC(),
	}
	if err := s.attempts.Create(ctx, attempt); err != nil {
		return fmt.Errorf("failed to record attempt: %w", err)
	}

	if err := s.deliveries.MarkFailedPermanent(ctx, delivery.ID, attemptNumber, s.now().UTC()); err != nil {
		return fmt.Errorf("failed to finalize delivery without webhook: %w", err)
	}
	if s.metrics != nil {
		s.metrics.IncDeliveryFailed(delivery.EventType, "webhook_unavailable")
	}

	s.logger.Warn("finalized delivery for unavailable webhook",
		zap.String("deliveryId", delivery.ID),
		zap.String("webhookId", delivery.WebhookID),
		zap.String("reason", reason),
	)
	return nil
}

func (s *WorkerService) recordAttempt(
	ctx context.Context,
	delivery *domain.ScheduledDelivery,
	attemptNumber int,
	req sender.Request,
	resp *sender.Response,
	sendErr error,
	outcome domain.AttemptOutcome,
) error {
	var statusCode *int
	var responseBody *string
	var attemptErr *string

	if resp != nil {
		if resp.StatusCode > 0 {
			value := resp.StatusCode
			statusCode = &value
		}
		if body := strings.TrimSpace(resp.Body); body != "" {
			value := resp.Body
			responseBody = &value
		}
	}

	if sendErr != nil {
		value := sendErr.Error()
		attemptErr = &value
	}

	headers, err := json.Marshal(req.Headers)
	if err != nil {
		return fmt.Errorf("failed to serialize request headers: %w", err)
	}

	attempt := &domain.DeliveryAttempt{
		ID:             uuid.NewString(),
		DeliveryID:     delivery.ID,
		WebhookID:      delivery.WebhookID,
		TenantID:       delivery.TenantID,
		AttemptNumber:  attemptNumber,
		RequestURL:     req.URL,
		RequestHeaders: string(headers),
		RequestBody:    req.Body,
		StatusCode:     statusCode,
		ResponseBody:   responseBody,
		Error:          attemptErr,
		Outcome:        outcome,
		CreatedAt:      s.now().UTC(),
	}

	return s.attempts.Create(ctx, attempt)
}

func endpointHost(raw string) string {
	parsed, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || parsed.Host == "" {
		return "unknown"
	}
	return strings.ToLower(parsed.Host)
}
