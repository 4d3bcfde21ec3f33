package llm

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrUnavailable indicates the endpoint could not be reached (network
// failure, connection refused, 5xx). Safe to retry.
var ErrUnavailable = errors.New("llm: endpoint unavailable")

// RateLimitError indicates the provider throttled the request.
// Safe to retry after the given delay.
type RateLimitError struct {
	Provider   string
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	if e.RetryAfter > 0 {
		return fmt.Sprintf("llm: %s rate limited, retry after %s", e.Provider, e.RetryAfter)
	}
	return fmt.Sprintf("llm: %s rate limited", e.Provider)
}

// EndpointError is a non-transient provider failure (bad request,
// authentication, content policy). Callers surface it as a pipeline-level
// failure instead of retrying.
type EndpointError struct {
	Provider   string
	StatusCode int
	Message    string
	Cause      error
}

func (e *EndpointError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("llm: %s endpoint error (status=%d): %s", e.Provider, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("llm: %s endpoint error: %s", e.Provider, e.Message)
}

func (e *EndpointError) Unwrap() error {
	return e.Cause
}

// classifyStatus maps an HTTP status code to the error taxonomy.
func classifyStatus(provider string, status int, message string, cause error) error {
	switch {
	case status == 429:
		return &RateLimitError{Provider: provider}
	case status == 408 || status >= 500:
		return fmt.Errorf("%w: %s status %d: %s", ErrUnavailable, provider, status, message)
	default:
		return &EndpointError{Provider: provider, StatusCode: status, Message: message, Cause: cause}
	}
}

// IsRetryable reports whether an invocation failure is safe to retry.
// Unavailability and rate limits are transient; endpoint errors and
// cancellation are not.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	if errors.Is(err, ErrUnavailable) {
		return true
	}
	var rl *RateLimitError
	if errors.As(err, &rl) {
		return true
	}
	var ep *EndpointError
	if errors.As(err, &ep) {
		return false
	}
	// Unknown errors (e.g. transport-level) default to retryable.
	return true
}
