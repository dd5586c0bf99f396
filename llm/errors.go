package llm

import (
	"errors"
	"fmt"
)

// ErrorKind classifies a terminal upstream failure.
type ErrorKind string

const (
	// KindRateLimitExhausted means every attempt came back 429.
	KindRateLimitExhausted ErrorKind = "rate_limit_exhausted"

	// KindTimeout means every attempt timed out.
	KindTimeout ErrorKind = "timeout"

	// KindHTTPStatus is a non-429 HTTP error status. Not retried.
	KindHTTPStatus ErrorKind = "http_status"

	// KindNetwork is a connection-level failure. Not retried.
	KindNetwork ErrorKind = "network"

	// KindDecode is a 2xx reply whose body could not be decoded.
	KindDecode ErrorKind = "decode"
)

// UpstreamError is the error Complete returns when a turn's upstream
// call fails for good. Kind tells the caller whether the failure was
// retried internally (rate limit, timeout) or surfaced immediately.
type UpstreamError struct {
	Kind ErrorKind

	// Status carries the HTTP status code for KindHTTPStatus.
	Status int

	Err error
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("upstream %s: %v", e.Kind, e.Err)
}

func (e *UpstreamError) Unwrap() error {
	return e.Err
}

// IsRateLimitExhausted reports whether err is an upstream failure that
// burned every retry on 429 responses.
func IsRateLimitExhausted(err error) bool {
	return KindOf(err) == KindRateLimitExhausted
}

// IsTimeout reports whether err is an upstream failure that burned
// every retry on timeouts.
func IsTimeout(err error) bool {
	return KindOf(err) == KindTimeout
}

// KindOf returns the classification of err, or "" if err is not an
// UpstreamError.
func KindOf(err error) ErrorKind {
	var ue *UpstreamError
	if errors.As(err, &ue) {
		return ue.Kind
	}
	return ""
}

// rateLimitedError marks a single 429 attempt. The retry loop either
// recovers from it or converts it to KindRateLimitExhausted; it never
// escapes Complete.
type rateLimitedError struct {
	body string
}

func (e *rateLimitedError) Error() string {
	return fmt.Sprintf("upstream returned 429: %s", e.body)
}

// timeoutError marks a single timed-out attempt. Like
// rateLimitedError, it never escapes Complete.
type timeoutError struct {
	err error
}

func (e *timeoutError) Error() string {
	return fmt.Sprintf("upstream timed out: %v", e.err)
}

func (e *timeoutError) Unwrap() error {
	return e.err
}
