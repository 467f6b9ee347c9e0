/*
 * Copyright 2025 Cong Wang
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"time"

	"github.com/amtp-protocol/specregistry/internal/types"
)

// ErrorCode represents standardized error codes
type ErrorCode string

const (
	// Request validation errors
	ErrInvalidRequestFormat ErrorCode = "INVALID_REQUEST_FORMAT"
	ErrValidationFailed     ErrorCode = "VALIDATION_FAILED"
	ErrMissingField         ErrorCode = "MISSING_FIELD"
	ErrInvalidParameter     ErrorCode = "INVALID_PARAMETER"
	ErrInvalidDocument      ErrorCode = "INVALID_DOCUMENT"
	ErrPayloadTooLarge      ErrorCode = "PAYLOAD_TOO_LARGE"

	// Resource errors
	ErrApplicationNotFound ErrorCode = "APPLICATION_NOT_FOUND"
	ErrServiceNotFound     ErrorCode = "SERVICE_NOT_FOUND"
	ErrSchemaNotFound      ErrorCode = "SCHEMA_NOT_FOUND"

	// Allocation errors
	ErrVersionConflict ErrorCode = "VERSION_CONFLICT"

	// Storage errors
	ErrCatalogFailed  ErrorCode = "CATALOG_FAILED"
	ErrArtifactFailed ErrorCode = "ARTIFACT_FAILED"

	// Rate limiting errors
	ErrRateLimitExceeded ErrorCode = "RATE_LIMIT_EXCEEDED"

	// System errors
	ErrInternalError      ErrorCode = "INTERNAL_ERROR"
	ErrServiceUnavailable ErrorCode = "SERVICE_UNAVAILABLE"
	ErrTimeout            ErrorCode = "TIMEOUT"
)

// RegistryError represents a structured registry error
type RegistryError struct {
	Code      ErrorCode              `json:"code"`
	Message   string                 `json:"message"`
	Details   map[string]interface{} `json:"details,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
	RequestID string                 `json:"request_id,omitempty"`
	Cause     error                  `json:"-"` // Internal cause, not exposed in JSON
}

// Error implements the error interface
func (e *RegistryError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause error
func (e *RegistryError) Unwrap() error {
	return e.Cause
}

// ToErrorResponse converts RegistryError to types.ErrorResponse
func (e *RegistryError) ToErrorResponse() types.ErrorResponse {
	return types.ErrorResponse{
		Detail: e.Message,
		Error: types.ErrorDetail{
			Code:      string(e.Code),
			Message:   e.Message,
			Details:   e.Details,
			Timestamp: e.Timestamp,
			RequestID: e.RequestID,
		},
	}
}

// New creates a new RegistryError
func New(code ErrorCode, message string) *RegistryError {
	return &RegistryError{
		Code:      code,
		Message:   message,
		Timestamp: time.Now().UTC(),
	}
}

// Newf creates a new RegistryError with formatted message
func Newf(code ErrorCode, format string, args ...interface{}) *RegistryError {
	return New(code, fmt.Sprintf(format, args...))
}

// Wrap creates a new RegistryError wrapping an existing error
func Wrap(code ErrorCode, message string, cause error) *RegistryError {
	err := New(code, message)
	err.Cause = cause
	return err
}

// Wrapf creates a new RegistryError wrapping an existing error with formatted message
func Wrapf(code ErrorCode, cause error, format string, args ...interface{}) *RegistryError {
	return Wrap(code, fmt.Sprintf(format, args...), cause)
}

// WithDetails adds details to a RegistryError
func (e *RegistryError) WithDetails(details map[string]interface{}) *RegistryError {
	e.Details = details
	return e
}

// WithRequestID adds a request ID to a RegistryError
func (e *RegistryError) WithRequestID(requestID string) *RegistryError {
	e.RequestID = requestID
	return e
}

// IsRetryable reports whether a client may retry the same request unchanged.
func (e *RegistryError) IsRetryable() bool {
	switch e.Code {
	case ErrVersionConflict, ErrServiceUnavailable, ErrTimeout, ErrRateLimitExceeded:
		return true
	default:
		return false
	}
}

// IsClientError reports whether the error is an expected business outcome
// rather than an operational failure.
func (e *RegistryError) IsClientError() bool {
	return e.GetHTTPStatus() < http.StatusInternalServerError
}

// GetHTTPStatus returns the appropriate HTTP status code for the error
func (e *RegistryError) GetHTTPStatus() int {
	switch e.Code {
	case ErrInvalidRequestFormat, ErrValidationFailed, ErrInvalidDocument:
		return http.StatusBadRequest

	case ErrMissingField, ErrInvalidParameter:
		return http.StatusUnprocessableEntity

	case ErrApplicationNotFound, ErrServiceNotFound, ErrSchemaNotFound:
		return http.StatusNotFound

	case ErrPayloadTooLarge:
		return http.StatusRequestEntityTooLarge

	case ErrRateLimitExceeded:
		return http.StatusTooManyRequests

	case ErrVersionConflict, ErrServiceUnavailable:
		return http.StatusServiceUnavailable

	case ErrTimeout:
		return http.StatusGatewayTimeout

	default:
		return http.StatusInternalServerError
	}
}

// Common error constructors for convenience

// NewValidationError creates a validation error
func NewValidationError(message string, details map[string]interface{}) *RegistryError {
	return New(ErrValidationFailed, message).WithDetails(details)
}

// NewMissingFieldError reports a required request field that was not supplied.
func NewMissingFieldError(field string) *RegistryError {
	return Newf(ErrMissingField, "Field required: %s", field).
		WithDetails(map[string]interface{}{"field": field})
}

// NewStorageError wraps a catalog or artifact failure.
func NewStorageError(code ErrorCode, message string, cause error) *RegistryError {
	return Wrap(code, message, cause)
}

// NewInternalError creates an internal error
func NewInternalError(message string, cause error) *RegistryError {
	return Wrap(ErrInternalError, message, cause)
}

// AsRegistryError finds the first RegistryError in err's chain.
func AsRegistryError(err error) (*RegistryError, bool) {
	var regErr *RegistryError
	if stderrors.As(err, &regErr) {
		return regErr, true
	}
	return nil, false
}

// HasCode reports whether err carries the given code.
func HasCode(err error, code ErrorCode) bool {
	regErr, ok := AsRegistryError(err)
	return ok && regErr.Code == code
}
