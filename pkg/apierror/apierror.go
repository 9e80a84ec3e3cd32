// Package apierror defines the closed error taxonomy used throughout the
// agent. Every failure that crosses a package boundary above the transport
// layer is one of these kinds; lower layers translate library errors into
// the nearest matching kind at the call site where they occur.
package apierror

import (
	"errors"
	"fmt"
)

// Kind identifies one category from the closed taxonomy.
type Kind string

const (
	KindAuthentication     Kind = "AUTHENTICATION_ERROR"
	KindAuthorization      Kind = "AUTHORIZATION_ERROR"
	KindNotFound           Kind = "NOT_FOUND"
	KindValidation         Kind = "VALIDATION_ERROR"
	KindRateLimit          Kind = "RATE_LIMIT_EXCEEDED"
	KindConflict           Kind = "CONFLICT"
	KindTimeout            Kind = "TIMEOUT"
	KindNetwork            Kind = "NETWORK_ERROR"
	KindServiceUnavailable Kind = "SERVICE_UNAVAILABLE"
	KindQuotaExceeded      Kind = "QUOTA_EXCEEDED"
	KindRetryExhausted     Kind = "RETRY_EXHAUSTED"
	KindInternal           Kind = "INTERNAL_ERROR"
)

// StatusCode returns the HTTP-shaped status code for a kind. Network errors
// carry 0 because they are client-side and never saw an upstream status.
func (k Kind) StatusCode() int {
	switch k {
	case KindAuthentication:
		return 401
	case KindAuthorization:
		return 403
	case KindNotFound:
		return 404
	case KindValidation:
		return 400
	case KindRateLimit, KindQuotaExceeded:
		return 429
	case KindConflict:
		return 409
	case KindTimeout:
		return 408
	case KindNetwork:
		return 0
	case KindServiceUnavailable:
		return 503
	default:
		return 500
	}
}

// Error is the single error type carried across the agent. Details holds
// machine-readable context (offending fields, resource ids, quota counters).
type Error struct {
	Kind    Kind
	Message string
	Details map[string]any
	// RetryAfter is the caller hint in seconds for RateLimit,
	// ServiceUnavailable and QuotaExceeded errors. Zero means no hint.
	RetryAfter int
	// Cause is the wrapped lower-level error, if any.
	Cause error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s (status_code=%d)", e.Message, e.Kind.StatusCode())
}

func (e *Error) Unwrap() error { return e.Cause }

// StatusCode returns the numeric code surfaced to callers.
func (e *Error) StatusCode() int { return e.Kind.StatusCode() }

// WithDetail returns e after recording a detail entry.
func (e *Error) WithDetail(key string, value any) *Error {
	if e.Details == nil {
		e.Details = map[string]any{}
	}
	e.Details[key] = value
	return e
}

// New constructs an Error of the given kind.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Wrap constructs an Error of the given kind around a cause.
func Wrap(kind Kind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, Cause: cause}
}

// Authentication reports a failed or missing authentication (401).
func Authentication(message string) *Error {
	if message == "" {
		message = "Authentication failed"
	}
	return New(KindAuthentication, message)
}

// Authorization reports a forbidden action (403).
func Authorization(message string) *Error {
	if message == "" {
		message = "Not authorized to perform this action"
	}
	return New(KindAuthorization, message)
}

// NotFound reports a missing resource (404). The resource type and id are
// recorded in Details for machine consumption.
func NotFound(resourceType string, resourceID string) *Error {
	msg := resourceType + " not found"
	if resourceID != "" {
		msg += " with ID: " + resourceID
	}
	e := New(KindNotFound, msg).WithDetail("resource_type", resourceType)
	if resourceID != "" {
		e.WithDetail("resource_id", resourceID)
	}
	return e
}

// Validation reports invalid input (400). fields lists the offending
// parameter names.
func Validation(message string, fields ...string) *Error {
	e := New(KindValidation, message)
	if len(fields) > 0 {
		e.WithDetail("fields", fields)
	}
	return e
}

// RateLimit reports an exceeded rate limit (429) with a retry hint.
func RateLimit(message string, retryAfter int) *Error {
	if message == "" {
		message = "Rate limit exceeded"
	}
	e := New(KindRateLimit, message)
	e.RetryAfter = retryAfter
	return e.WithDetail("retry_after", retryAfter)
}

// QuotaExceeded reports an exhausted quota (429) with its counters.
func QuotaExceeded(message string, limit, used int, reset int64) *Error {
	if message == "" {
		message = "Quota exceeded"
	}
	e := New(KindQuotaExceeded, message)
	e.WithDetail("quota_limit", limit)
	e.WithDetail("quota_used", used)
	if reset > 0 {
		e.WithDetail("quota_reset", reset)
	}
	return e
}

// Timeout reports an expired deadline (408).
func Timeout(message string) *Error {
	if message == "" {
		message = "Request timed out"
	}
	return New(KindTimeout, message)
}

// Network reports a client-side transport failure (status 0).
func Network(message string, cause error) *Error {
	if message == "" {
		message = "Network error occurred"
	}
	return Wrap(KindNetwork, message, cause)
}

// ServiceUnavailable reports a temporarily unavailable upstream (503).
func ServiceUnavailable(message string, retryAfter int) *Error {
	if message == "" {
		message = "Service temporarily unavailable"
	}
	e := New(KindServiceUnavailable, message)
	e.RetryAfter = retryAfter
	if retryAfter > 0 {
		e.WithDetail("retry_after", retryAfter)
	}
	return e
}

// Conflict reports a state conflict (409).
func Conflict(message string) *Error {
	if message == "" {
		message = "Conflict with the current state of the resource"
	}
	return New(KindConflict, message)
}

// RetryExhausted wraps the last error after all retry attempts failed.
func RetryExhausted(attempts int, last error) *Error {
	e := Wrap(KindRetryExhausted, fmt.Sprintf("All %d attempts failed", attempts), last)
	if last != nil {
		e.WithDetail("last_error", last.Error())
	}
	return e.WithDetail("attempts", attempts)
}

// Internal reports an unexpected failure that escaped classification.
func Internal(message string, cause error) *Error {
	if message == "" {
		message = "Internal error"
	}
	return Wrap(KindInternal, message, cause)
}

// As extracts a taxonomy *Error from err's chain, or nil.
func As(err error) *Error {
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return nil
}

// KindOf returns the taxonomy kind of err, or KindInternal for errors that
// escaped classification.
func KindOf(err error) Kind {
	if e := As(err); e != nil {
		return e.Kind
	}
	return KindInternal
}

// IsKind reports whether err is a taxonomy error of the given kind. A
// RetryExhausted error also matches the kind of its wrapped cause, so callers
// can test for the condition that actually failed.
func IsKind(err error, kind Kind) bool {
	e := As(err)
	if e == nil {
		return false
	}
	if e.Kind == kind {
		return true
	}
	if e.Kind == KindRetryExhausted && e.Cause != nil {
		return IsKind(e.Cause, kind)
	}
	return false
}

// IsTransient reports whether err represents a transient condition worth
// retrying: network, timeout, rate limit, or upstream unavailability.
// Matching is structural only; callers must never inspect message text.
func IsTransient(err error) bool {
	switch KindOf(err) {
	case KindNetwork, KindTimeout, KindRateLimit, KindServiceUnavailable:
		return true
	case KindRetryExhausted:
		if e := As(err); e != nil && e.Cause != nil {
			return IsTransient(e.Cause)
		}
	}
	return false
}

// RetryAfterOf returns the retry hint in seconds from err, or 0.
func RetryAfterOf(err error) int {
	if e := As(err); e != nil {
		return e.RetryAfter
	}
	return 0
}
