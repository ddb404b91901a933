package resilience

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
)

// StatusError is returned for a backend response the caller treats as a
// failure.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("backend status %d", e.StatusCode)
	}
	return fmt.Sprintf("backend status %d: %s", e.StatusCode, e.Body)
}

// ClassifyHTTP treats network failures, timeouts and 5xx/429 responses as
// retryable breaker failures. Other status errors are returned as-is and do
// not count against the breaker. Caller cancellation is neither.
func ClassifyHTTP(err error) ErrorClassification {
	if errors.Is(err, context.Canceled) {
		return ErrorClassification{}
	}
	var se *StatusError
	if errors.As(err, &se) {
		transient := se.StatusCode >= 500 || se.StatusCode == http.StatusTooManyRequests
		return ErrorClassification{Retryable: transient, RecordFailure: transient}
	}
	var ne net.Error
	if errors.As(err, &ne) || errors.Is(err, context.DeadlineExceeded) {
		return ErrorClassification{Retryable: true, RecordFailure: true}
	}
	return ErrorClassification{Retryable: false, RecordFailure: true}
}

// Transport is an http.RoundTripper that sends every request through the
// executor's breaker for one operation. 5xx responses count as failures but
// are still handed to the caller.
type Transport struct {
	Base      http.RoundTripper
	Executor  *Executor
	Operation string
}

// RoundTrip implements http.RoundTripper.
func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	base := t.Base
	if base == nil {
		base = http.DefaultTransport
	}
	var resp *http.Response
	err := t.Executor.Guard(req.Context(), t.Operation, func(context.Context) error {
		var rtErr error
		resp, rtErr = base.RoundTrip(req)
		if rtErr != nil {
			return rtErr
		}
		if resp.StatusCode >= 500 {
			return &StatusError{StatusCode: resp.StatusCode}
		}
		return nil
	}, ClassifyHTTP)

	var se *StatusError
	if errors.As(err, &se) && resp != nil {
		return resp, nil
	}
	if err != nil {
		return nil, err
	}
	return resp, nil
}
