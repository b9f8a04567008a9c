package http

import (
	"errors"
	"fmt"
	"time"
)

// RateLimitError indicates the server rate limited the request (429 or 503).
type RateLimitError struct {
	StatusCode int
	// RetryAfter is the larger of the server's Retry-After and the limiter's backoff.
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	if e.RetryAfter > 0 {
		return fmt.Sprintf("rate limited (status %d): retry after %v", e.StatusCode, e.RetryAfter)
	}
	return fmt.Sprintf("rate limited (status %d)", e.StatusCode)
}

// RetryDelay lets retry.Do wait at least as long as the server asked.
func (e *RateLimitError) RetryDelay() time.Duration {
	return e.RetryAfter
}

// HTTPError indicates a non-2xx response other than a rate limit.
type HTTPError struct {
	StatusCode int
	Body       []byte
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("http error: status %d", e.StatusCode)
}

// StatusCode reports the HTTP status carried by err, or 0 when err is not
// an *HTTPError or *RateLimitError.
func StatusCode(err error) int {
	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		return httpErr.StatusCode
	}
	var rlErr *RateLimitError
	if errors.As(err, &rlErr) {
		return rlErr.StatusCode
	}
	return 0
}

// ErrRequestFailed indicates the request itself failed (network error).
var ErrRequestFailed = errors.New("http request failed")
