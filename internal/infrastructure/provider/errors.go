package provider

import (
	"errors"
	"fmt"
	"time"
)

// ErrMissingCredentials indicates the client was constructed without an API
// key or shop id. Operations short-circuit rather than hitting the API.
var ErrMissingCredentials = errors.New("provider: missing credentials")

// RateLimitedError indicates the API rejected the call with HTTP 429 after
// transport-level retries were exhausted.
type RateLimitedError struct {
	RetryAfter time.Duration
}

func (e *RateLimitedError) Error() string {
	return fmt.Sprintf("provider: rate limited, retry after %s", e.RetryAfter)
}

// ClientError indicates a non-retryable 4xx response (other than 429).
type ClientError struct {
	Status int
	Body   string
}

func (e *ClientError) Error() string {
	return fmt.Sprintf("provider: client error %d: %s", e.Status, e.Body)
}

// ServerError indicates a 5xx response after transport-level retries were
// exhausted.
type ServerError struct {
	Status int
}

func (e *ServerError) Error() string {
	return fmt.Sprintf("provider: server error %d", e.Status)
}

// NetworkError wraps a transport failure (connection refused, timeout).
type NetworkError struct {
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("provider: network error: %v", e.Err)
}

func (e *NetworkError) Unwrap() error {
	return e.Err
}

// IsTransient reports whether the error is worth retrying at the logical
// level (resync later). Client errors and missing credentials are permanent.
func IsTransient(err error) bool {
	var rateLimited *RateLimitedError
	var serverErr *ServerError
	var netErr *NetworkError
	return errors.As(err, &rateLimited) ||
		errors.As(err, &serverErr) ||
		errors.As(err, &netErr)
}
