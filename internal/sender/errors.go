package sender

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
)

// SendError classifies failures that produced no HTTP response. Permanent
// is set when retrying can never help, e.g. a structurally invalid URL.
type SendError struct {
	Message   string
	Permanent bool
	Cause     error
}

func (e *SendError) Error() string {
	if e == nil {
		return "<nil>"
	}

	parts := make([]string, 0, 3)
	parts = append(parts, "send error")

	if msg := strings.TrimSpace(e.Message); msg != "" {
		parts = append(parts, msg)
	}
	if e.Cause != nil {
		parts = append(parts, e.Cause.Error())
	}

	return strings.Join(parts, ": ")
}

func (e *SendError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}

// IsPermanent reports whether an error rules out any retry. Timeouts and
// connection failures are transient; only structural failures (bad URL,
// canceled context aside) are permanent.
func IsPermanent(err error) bool {
	if err == nil {
		return false
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	var sendErr *SendError
	if errors.As(err, &sendErr) {
		return sendErr.Permanent
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return false
	}

	return false
}

func newPermanentError(format string, args ...any) *SendError {
	return &SendError{Message: fmt.Sprintf(format, args...), Permanent: true}
}

func newTransientError(message string, cause error) *SendError {
	return &SendError{Message: message, Cause: cause}
}
