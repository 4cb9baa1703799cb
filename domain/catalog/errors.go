package catalog

import (
	"errors"
	"fmt"
	"time"
)

// ErrNotFound signals a missing resource: no usable external id for a lookup,
// or a 404 from the API.
var ErrNotFound = errors.New("catalog: not found")

// NetworkError wraps transient transport failures (timeouts, connection
// resets, 5xx responses). The client retries these before giving up.
type NetworkError struct {
	Op  string
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("catalog: network error during %s: %v", e.Op, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

// RateLimitedError signals an HTTP 429 from the API. RetryAfter carries the
// server's backoff hint when the Retry-After header was present.
type RateLimitedError struct {
	RetryAfter time.Duration
}

func (e *RateLimitedError) Error() string {
	if e.RetryAfter > 0 {
		return fmt.Sprintf("catalog: rate limited, retry after %s", e.RetryAfter)
	}
	return "catalog: rate limited"
}

// ProtocolError signals a permanent API contract violation: an unexpected
// 4xx, a malformed body, or a paging link without a cursor. Never retried.
type ProtocolError struct {
	Reason string
}

func (e *ProtocolError) Error() string {
	return "catalog: protocol error: " + e.Reason
}

// retriable reports whether the client may attempt the call again.
func retriable(err error) bool {
	var netErr *NetworkError
	if errors.As(err, &netErr) {
		return true
	}
	var rlErr *RateLimitedError
	return errors.As(err, &rlErr)
}
