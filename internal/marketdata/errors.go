package marketdata

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/agatticelli/crypto-tray-feed/internal/platform/resilience"
)

var (
	// ErrTransient covers timeouts and connection failures
	ErrTransient = errors.New("marketdata: transient network error")

	// ErrRateLimited is returned for HTTP 429 responses
	ErrRateLimited = errors.New("marketdata: rate limited")

	// ErrMalformedResponse is returned when a body does not have the expected shape
	ErrMalformedResponse = errors.New("marketdata: malformed response")

	// ErrUpstream is returned for any other non-2xx response
	ErrUpstream = errors.New("marketdata: upstream error")
)

// StatusError carries a non-2xx HTTP status
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("unexpected status code %d", e.Code)
	}
	return fmt.Sprintf("unexpected status code %d: %s", e.Code, e.Body)
}

// Unwrap maps 429 to ErrRateLimited and everything else to ErrUpstream
func (e *StatusError) Unwrap() error {
	if e.Code == http.StatusTooManyRequests {
		return ErrRateLimited
	}
	return ErrUpstream
}

// IsRetryable reports whether a failed call is worth repeating
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	if errors.Is(err, resilience.ErrCircuitOpen) || errors.Is(err, ErrMalformedResponse) {
		return false
	}

	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return statusErr.Code == http.StatusTooManyRequests || statusErr.Code >= 500
	}

	return errors.Is(err, ErrTransient)
}

// IsUpstreamFault reports whether err reflects on the upstream's health.
// Client errors such as an unknown coin id (4xx other than 429) do not.
func IsUpstreamFault(err error) bool {
	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return statusErr.Code == http.StatusTooManyRequests || statusErr.Code >= 500
	}
	return true
}
