package sender

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

const (
	// DefaultTimeout bounds one webhook HTTP exchange.
	DefaultTimeout = 30 * time.Second

	// maxRecordedBodyBytes bounds the response body prefix kept for the
	// attempt ledger.
	maxRecordedBodyBytes = 4096
)

// HTTPSender performs signed webhook POSTs against tenant endpoints.
type HTTPSender struct {
	client *resty.Client
}

func NewHTTPSender(timeout time.Duration) *HTTPSender {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	client := resty.New()
	client.SetTimeout(timeout)
	// Retrying is the worker's job; the HTTP layer performs exactly one call.
	client.SetRetryCount(0)

	return &HTTPSender{client: client}
}

func NewHTTPSenderWithClient(client *resty.Client) (*HTTPSender, error) {
	if client == nil {
		return nil, fmt.Errorf("resty client is required")
	}
	if client.GetClient().Timeout == 0 {
		client.SetTimeout(DefaultTimeout)
	}
	client.SetRetryCount(0)

	return &HTTPSender{client: client}, nil
}

func (s *HTTPSender) Send(ctx context.Context, req Request) (*Response, error) {
	if s == nil || s.client == nil {
		return nil, fmt.Errorf("sender is not initialized")
	}

	if err := validateDestination(req.URL); err != nil {
		return nil, err
	}

	request := s.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(req.Body)
	for name, value := range req.Headers {
		request.SetHeader(name, value)
	}

	response, err := request.Post(req.URL)
	if err != nil {
		return nil, newTransientError("endpoint request failed", err)
	}
	if response == nil {
		return nil, newTransientError("endpoint returned empty response", nil)
	}

	return &Response{
		StatusCode: response.StatusCode(),
		Body:       truncateBody(response.String()),
	}, nil
}

// validateDestination rejects URLs that can never succeed; these are
// permanent failures, not candidates for retry.
func validateDestination(raw string) error {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return newPermanentError("webhook url is empty")
	}

	parsed, err := url.Parse(trimmed)
	if err != nil {
		return newPermanentError("invalid webhook url %q", trimmed)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return newPermanentError("unsupported url scheme %q", parsed.Scheme)
	}
	if parsed.Host == "" {
		return newPermanentError("webhook url %q has no host", trimmed)
	}
	return nil
}

func truncateBody(body string) string {
	if len(body) <= maxRecordedBodyBytes {
		return body
	}
	return body[:maxRecordedBodyBytes]
}
