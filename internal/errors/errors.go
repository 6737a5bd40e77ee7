// FilePath: internal/errors/errors.go
package errors

import (
	"fmt"
	"net/http"
)

// ErrorType represents the type of error
type ErrorType string

const (
	// Error types
	ErrorTypeValidation  ErrorType = "validation"
	ErrorTypeDatabase    ErrorType = "database"
	ErrorTypeAuth        ErrorType = "authentication"
	ErrorTypeAuthorize   ErrorType = "authorization"
	ErrorTypeNotFound    ErrorType = "not_found"
	ErrorTypeConflict    ErrorType = "conflict"
	ErrorTypeTransient   ErrorType = "transient"
	ErrorTypeInternal    ErrorType = "internal"
	ErrorTypeUnavailable ErrorType = "service_unavailable"
)

// APIError represents a structured API error. The JSON body always carries
// a human-readable "detail" field alongside the machine-readable type.
type APIError struct {
	Type      ErrorType `json:"type"`
	Detail    string    `json:"detail"`
	Code      int       `json:"code"`
	RequestID string    `json:"request_id,omitempty"`
	err       error     // Internal error for logging
}

// Error implements the error interface
func (e *APIError) Error() string {
	if e.err != nil {
		return fmt.Sprintf("%s: %s (internal: %v)", e.Type, e.Detail, e.err)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Detail)
}

// Unwrap exposes the internal error to errors.Is/As chains
func (e *APIError) Unwrap() error {
	return e.err
}

// WithRequestID adds a request ID to the error
func (e *APIError) WithRequestID(id string) *APIError {
	e.RequestID = id
	return e
}

// NewValidationError creates a new validation error
func NewValidationError(msg string, err error) *APIError {
	return &APIError{
		Type:   ErrorTypeValidation,
		Detail: msg,
		Code:   http.StatusBadRequest,
		err:    err,
	}
}

// NewDatabaseError creates a new database error
func NewDatabaseError(msg string, err error) *APIError {
	return &APIError{
		Type:   ErrorTypeDatabase,
		Detail: msg,
		Code:   http.StatusInternalServerError,
		err:    err,
	}
}

// NewAuthError creates a new authentication error
func NewAuthError(msg string, err error) *APIError {
	return &APIError{
		Type:   ErrorTypeAuth,
		Detail: msg,
		Code:   http.StatusUnauthorized,
		err:    err,
	}
}

// NewAuthorizationError creates a new authorization error
func NewAuthorizationError(msg string, err error) *APIError {
	return &APIError{
		Type:   ErrorTypeAuthorize,
		Detail: msg,
		Code:   http.StatusForbidden,
		err:    err,
	}
}

// NewNotFoundError creates a new not found error
func NewNotFoundError(msg string, err error) *APIError {
	return &APIError{
		Type:   ErrorTypeNotFound,
		Detail: msg,
		Code:   http.StatusNotFound,
		err:    err,
	}
}

// NewConflictError creates a new uniqueness-conflict error
func NewConflictError(msg string, err error) *APIError {
	return &APIError{
		Type:   ErrorTypeConflict,
		Detail: msg,
		Code:   http.StatusConflict,
		err:    err,
	}
}

// NewTransientError creates an error for a store failure that may
// succeed on retry (connection loss, pool exhaustion, timeout).
func NewTransientError(msg string, err error) *APIError {
	return &APIError{
		Type:   ErrorTypeTransient,
		Detail: msg,
		Code:   http.StatusServiceUnavailable,
		err:    err,
	}
}

// NewInternalError creates a new internal server error
func NewInternalError(msg string, err error) *APIError {
	return &APIError{
		Type:   ErrorTypeInternal,
		Detail: msg,
		Code:   http.StatusInternalServerError,
		err:    err,
	}
}

// IsNotFound checks if an error is a NotFound error
func IsNotFound(err error) bool {
	if apiErr, ok := err.(*APIError); ok {
		return apiErr.Type == ErrorTypeNotFound
	}
	return false
}

// IsValidation checks if an error is a Validation error
func IsValidation(err error) bool {
	if apiErr, ok := err.(*APIError); ok {
		return apiErr.Type == ErrorTypeValidation
	}
	return false
}

// IsConflict checks if an error is a Conflict error
func IsConflict(err error) bool {
	if apiErr, ok := err.(*APIError); ok {
		return apiErr.Type == ErrorTypeConflict
	}
	return false
}

// IsTransient reports whether an error is worth retrying
func IsTransient(err error) bool {
	if apiErr, ok := err.(*APIError); ok {
		return apiErr.Type == ErrorTypeTransient
	}
	return false
}

// IsAuthorization checks if an error is an Authorization error
func IsAuthorization(err error) bool {
	if apiErr, ok := err.(*APIError); ok {
		return apiErr.Type == ErrorTypeAuthorize
	}
	return false
}
