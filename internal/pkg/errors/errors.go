// Package errors provides custom error types and error handling utilities.
package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
)

// Error codes.
const (
	// Caller errors.
	CodeValidation = "VALIDATION_ERROR"
	CodeNotFound   = "NOT_FOUND"

	// Coordination errors.
	CodeRegistrationRejected = "REGISTRATION_REJECTED"
	CodeDuplicateWidget      = "DUPLICATE_WIDGET"
	CodeTransportMissing     = "TRANSPORT_MISSING"
	CodeStaleResponse        = "STALE_RESPONSE"
	CodeMalformedSegment     = "MALFORMED_SEGMENT"

	// Backend errors.
	CodeTransport   = "TRANSPORT_ERROR"
	CodeRateLimited = "RATE_LIMITED"
	CodeUnavailable = "SERVICE_UNAVAILABLE"
	CodeTimeout     = "TIMEOUT"
	CodeInternal    = "INTERNAL_ERROR"
)

// AppError represents an application error with code and details.
type AppError struct {
	Code    string            `json:"code"`
	Message string            `json:"message"`
	Details map[string]string `json:"details,omitempty"`
	Err     error             `json:"-"`
}

// Error implements the error interface.
func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the wrapped error.
func (e *AppError) Unwrap() error {
	return e.Err
}

// New creates a new AppError.
func New(code, message string) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
	}
}

// Wrap wraps an error with an AppError.
func Wrap(code, message string, err error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// WithDetails adds details to the error.
func (e *AppError) WithDetails(details map[string]string) *AppError {
	e.Details = details
	return e
}

// WithDetail adds a single detail to the error.
func (e *AppError) WithDetail(key, value string) *AppError {
	if e.Details == nil {
		e.Details = make(map[string]string)
	}
	e.Details[key] = value
	return e
}

// Convenience constructors.

// ValidationError creates a validation error.
func ValidationError(message string) *AppError {
	return New(CodeValidation, message)
}

// NotFoundError creates a not found error.
func NotFoundError(resource string) *AppError {
	return New(CodeNotFound, fmt.Sprintf("%s not found", resource))
}

// RejectedError reports a widget refused by the admission predicate.
func RejectedError(widgetID string) *AppError {
	return New(CodeRegistrationRejected, "widget rejected by admission predicate").
		WithDetail("widget", widgetID)
}

// DuplicateWidgetError reports a second registration under an existing id.
func DuplicateWidgetError(widgetID string) *AppError {
	return New(CodeDuplicateWidget, fmt.Sprintf("widget %q already registered", widgetID)).
		WithDetail("widget", widgetID)
}

// TransportMissingError reports a coordinator built without a transport.
func TransportMissingError() *AppError {
	return New(CodeTransportMissing, "no transport configured")
}

// StaleResponseError reports a response that belongs to a superseded request.
func StaleResponseError(seq, latest uint64) *AppError {
	return New(CodeStaleResponse, "response superseded by a newer request").
		WithDetails(map[string]string{
			"seq":    fmt.Sprintf("%d", seq),
			"latest": fmt.Sprintf("%d", latest),
		})
}

// MalformedSegmentError reports an unparseable fragment segment.
func MalformedSegmentError(segment string, err error) *AppError {
	return Wrap(CodeMalformedSegment, "malformed fragment segment", err).
		WithDetail("segment", segment)
}

// TransportError wraps a failure talking to the search backend.
func TransportError(message string, err error) *AppError {
	return Wrap(CodeTransport, message, err)
}

// InternalError creates an internal error.
func InternalError(message string, err error) *AppError {
	return Wrap(CodeInternal, message, err)
}

// TimeoutError creates a timeout error for a specific operation.
func TimeoutError(operation string) *AppError {
	message := "operation timed out"
	if operation != "" {
		message = fmt.Sprintf("%s timed out", operation)
	}
	return New(CodeTimeout, message)
}

// ServiceUnavailableError creates a service unavailable error.
func ServiceUnavailableError(service string) *AppError {
	message := "service unavailable"
	if service != "" {
		message = fmt.Sprintf("%s is unavailable", service)
	}
	return New(CodeUnavailable, message)
}

// IsCode reports whether err, or any error it wraps, is an AppError with code.
func IsCode(err error, code string) bool {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr.Code == code
	}
	return false
}

// CodeOf returns the code of the first AppError in err's chain, or "".
func CodeOf(err error) string {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr.Code
	}
	return ""
}

// IsNotFound checks if error is a not found error.
func IsNotFound(err error) bool {
	return IsCode(err, CodeNotFound)
}

// IsValidation checks if error is a validation error.
func IsValidation(err error) bool {
	return IsCode(err, CodeValidation)
}

// IsStale checks if error marks a discarded stale response.
func IsStale(err error) bool {
	return IsCode(err, CodeStaleResponse)
}

// IsRejected checks if error is a rejected registration.
func IsRejected(err error) bool {
	return IsCode(err, CodeRegistrationRejected)
}

// FromHTTPStatus builds an error for a failed backend response.
// The body is kept as a detail, truncated to keep log lines bounded.
func FromHTTPStatus(status int, body string) *AppError {
	if len(body) > 512 {
		body = body[:512]
	}
	return New(codeForStatus(status), fmt.Sprintf("backend returned HTTP %d", status)).
		WithDetail("status", fmt.Sprintf("%d", status)).
		WithDetail("body", body)
}

// codeForStatus returns an error code for common HTTP status codes.
func codeForStatus(status int) string {
	switch status {
	case http.StatusBadRequest:
		return CodeValidation
	case http.StatusNotFound:
		return CodeNotFound
	case http.StatusTooManyRequests:
		return CodeRateLimited
	case http.StatusServiceUnavailable, http.StatusBadGateway:
		return CodeUnavailable
	case http.StatusGatewayTimeout, http.StatusRequestTimeout:
		return CodeTimeout
	default:
		return CodeTransport
	}
}
