package sender

import (
	"net/http"

	"github.com/mailhookoss/delivery-engine/internal/domain"
)

// DefaultRetryableClientCodes are the 4xx codes treated as transient.
// Everything else in 400-499 is a permanent failure.
var DefaultRetryableClientCodes = []int{
	http.StatusRequestTimeout,
	http.StatusTooManyRequests,
}

// Classifier turns an attempt result into an outcome. The retryable set is
// data, not branching, so the transient/permanent boundary stays in one
// configurable place.
type Classifier struct {
	retryableClientCodes map[int]struct{}
}

func NewClassifier(retryableClientCodes []int) *Classifier {
	if len(retryableClientCodes) == 0 {
		retryableClientCodes = DefaultRetryableClientCodes
	}

	codes := make(map[int]struct{}, len(retryableClientCodes))
	for _, code := range retryableClientCodes {
		codes[code] = struct{}{}
	}

	return &Classifier{retryableClientCodes: codes}
}

// Classify maps a completed attempt to success, transient, or permanent.
// resp and err are mutually exclusive the way Sender.Send returns them.
func (c *Classifier) Classify(resp *Response, err error) domain.AttemptOutcome {
	if err != nil {
		if IsPermanent(err) {
			return domain.OutcomePermanent
		}
		return domain.OutcomeTransient
	}
	if resp == nil {
		return domain.OutcomeTransient
	}

	status := resp.StatusCode
	switch {
	case status >= 200 && status < 300:
		return domain.OutcomeSuccess
	case status >= 400 && status < 500:
		if _, retryable := c.retryableClientCodes[status]; retryable {
			return domain.OutcomeTransient
		}
		return domain.OutcomePermanent
	default:
		// 3xx, 5xx, and anything unexpected retry.
		return domain.OutcomeTransient
	}
}
