package common

import (
	"errors"
	"fmt"
	"net/http"
	"time"
)

// ErrorKind is a machine-readable error code carried by every engine error.
// The surrounding API layer maps kinds to HTTP statuses via HTTPStatus.
type ErrorKind string

const (
	KindInvalidPDF             ErrorKind = "invalid_pdf"
	KindEncryptedPDF           ErrorKind = "unsupported_encrypted_pdf"
	KindImageExtractionAborted ErrorKind = "image_extraction_aborted"
	KindOCRUnavailable         ErrorKind = "ocr_unavailable"
	KindNoProvidersAvailable   ErrorKind = "no_providers_available"
	KindProviderUnavailable    ErrorKind = "provider_unavailable"
	KindInvalidAPIKey          ErrorKind = "invalid_api_key"
	KindRateLimitExceeded      ErrorKind = "rate_limit_exceeded"
	KindQuotaExhausted         ErrorKind = "quota_exhausted"
	KindInvalidOption          ErrorKind = "invalid_option"
	KindEvaluationFailed       ErrorKind = "evaluation_failed"
	KindCancelled              ErrorKind = "cancelled"
	KindTimeout                ErrorKind = "timeout"
	KindUnknown                ErrorKind = "unknown"
)

// HTTPStatus returns the status hint for the API layer
func (k ErrorKind) HTTPStatus() int {
	switch k {
	case KindInvalidPDF, KindInvalidOption:
		return http.StatusBadRequest
	case KindInvalidAPIKey:
		return http.StatusUnauthorized
	case KindEncryptedPDF:
		return http.StatusUnprocessableEntity
	case KindRateLimitExceeded, KindQuotaExhausted:
		return http.StatusTooManyRequests
	case KindNoProvidersAvailable, KindProviderUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// Error is the engine's typed error. Messages are user-safe: no stack
// traces or secrets, those stay in the wrapped cause and the logs.
type Error struct {
	Kind      ErrorKind
	Message   string
	Stage     string    // Pipeline stage that produced the error, if any
	NextReset time.Time // Populated for quota_exhausted
	cause     error
}

func (e *Error) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s: %s", e.Kind, e.Message)
	}
	return string(e.Kind)
}

func (e *Error) Unwrap() error {
	return e.cause
}

// Is matches on kind so callers can use errors.Is with a bare-kind target
func (e *Error) Is(target error) bool {
	var t *Error
	if errors.As(target, &t) {
		return e.Kind == t.Kind
	}
	return false
}

// NewError creates a typed error with a formatted message
func NewError(kind ErrorKind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// WrapError wraps a cause with a typed kind and user-safe message
func WrapError(kind ErrorKind, cause error, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), cause: cause}
}

// QuotaExhaustedError carries the next daily reset so callers can surface it
func QuotaExhaustedError(nextReset time.Time) *Error {
	return &Error{
		Kind:      KindQuotaExhausted,
		Message:   fmt.Sprintf("daily request quota exhausted for all eligible models, resets at %s", nextReset.Format(time.RFC3339)),
		NextReset: nextReset,
	}
}

// KindOf extracts the kind from any error, unknown when untyped
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// IsKind reports whether err carries the given kind
func IsKind(err error, kind ErrorKind) bool {
	return KindOf(err) == kind
}
