package apierrors

import (
	"fmt"
	"net/http"
)

// Machine-readable error codes returned to API clients.
const (
	CodeInvalidInput      = "INVALID_INPUT"
	CodeNotFound          = "NOT_FOUND"
	CodeCallNotFound      = "CALL_NOT_FOUND"
	CodeConfigNotFound    = "CONFIG_NOT_FOUND"
	CodeConfigActive      = "CONFIG_ACTIVE"
	CodeInvalidScenario   = "INVALID_SCENARIO"
	CodePhoneRequired     = "PHONE_NUMBER_REQUIRED"
	CodeInvalidPhone      = "INVALID_PHONE_NUMBER"
	CodeInvalidTransition = "INVALID_TRANSITION"
	CodeInvalidSignature  = "INVALID_SIGNATURE"
	CodeUnauthorized      = "UNAUTHORIZED"
	CodeVendorUnavailable = "VENDOR_UNAVAILABLE"
	CodeAIServiceError    = "AI_SERVICE_ERROR"
	CodeEmailServiceError = "EMAIL_SERVICE_ERROR"
	CodeInternalError     = "INTERNAL_ERROR"
)

// APIError represents an error response sent to API clients.
// Message is safe to expose; Internal carries the underlying cause for logs.
type APIError struct {
	StatusCode int
	Code       string
	Message    string
	Internal   error
}

// Error implements the error interface
func (e *APIError) Error() string {
	if e.Internal != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Internal)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap exposes the internal error for errors.Is/As chains
func (e *APIError) Unwrap() error {
	return e.Internal
}

// BadRequest creates a 400 error
func BadRequest(code, message string) *APIError {
	return &APIError{StatusCode: http.StatusBadRequest, Code: code, Message: message}
}

// Unauthorized creates a 401 error
func Unauthorized(message string) *APIError {
	return &APIError{StatusCode: http.StatusUnauthorized, Code: CodeUnauthorized, Message: message}
}

// Forbidden creates a 403 error
func Forbidden(message string) *APIError {
	return &APIError{StatusCode: http.StatusForbidden, Code: "FORBIDDEN", Message: message}
}

// NotFound creates a 404 error
func NotFound(code, message string) *APIError {
	return &APIError{StatusCode: http.StatusNotFound, Code: code, Message: message}
}

// Conflict creates a 409 error
func Conflict(code, message string) *APIError {
	return &APIError{StatusCode: http.StatusConflict, Code: code, Message: message}
}

// ServiceUnavailable creates a 503 error and carries the internal cause
func ServiceUnavailable(code, message string, internal error) *APIError {
	return &APIError{StatusCode: http.StatusServiceUnavailable, Code: code, Message: message, Internal: internal}
}

// InternalError creates a sanitized 500 error - never exposes internal details
func InternalError(internal error) *APIError {
	return &APIError{
		StatusCode: http.StatusInternalServerError,
		Code:       CodeInternalError,
		Message:    "An internal error occurred. Please try again later.",
		Internal:   internal,
	}
}
