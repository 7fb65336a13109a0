package sender

import (
	"context"
	"time"
)

// Request is one signed webhook HTTP exchange to perform. Headers carries
// the Standard Webhooks headers alongside content type; Body is the exact
// payload snapshot bytes.
type Request struct {
	DeliveryID string
	URL        string
	Headers    map[string]string
	Body       []byte
	Timestamp  time.Time
}

// Response stores endpoint call metadata for audit and persistence. The
// body is truncated to a bounded prefix before recording.
type Response struct {
	StatusCode int
	Body       string
}

// Sender is the outbound webhook delivery port. Implementations return a
// Response for any completed HTTP exchange regardless of status code, and
// an error only when no response was obtained.
type Sender interface {
	Send(ctx context.Context, req Request) (*Response, error)
}
