// Package core provides shared types and the error taxonomy for the agents backend.
package core

import (
	"fmt"
	"net/http"
)

// MaxErrorBodyLength is the maximum number of upstream response body
// characters carried inside an error message.
const MaxErrorBodyLength = 500

// ErrorType represents the class of failure that occurred
type ErrorType string

const (
	// ErrorTypeConfiguration indicates a missing credential or assistant id.
	// Never caused by the caller's request and never retried.
	ErrorTypeConfiguration ErrorType = "configuration_error"
	// ErrorTypeUpstreamStatus indicates a non-2xx response from the external API
	ErrorTypeUpstreamStatus ErrorType = "upstream_status_error"
	// ErrorTypeConnectivity indicates the external API was unreachable
	// (DNS failure, connection refused, timeout)
	ErrorTypeConnectivity ErrorType = "connectivity_error"
	// ErrorTypeProtocol indicates a well-formed 2xx response missing an
	// expected field (upstream contract violation)
	ErrorTypeProtocol ErrorType = "protocol_error"
	// ErrorTypeInvalidRequest indicates a client error (4xx)
	ErrorTypeInvalidRequest ErrorType = "invalid_request_error"
)

// GatewayError is the base error type for all backend errors
type GatewayError struct {
	Type    ErrorType `json:"type"`
	Message string    `json:"message"`
	// UpstreamStatus is the HTTP status returned by the external API,
	// set only for upstream_status_error
	UpstreamStatus int `json:"upstream_status,omitempty"`
	// StatusCode overrides the HTTP status used when surfacing this error
	StatusCode int `json:"-"`
	// Original error for debugging (not exposed to clients)
	Err error `json:"-"`
}

// Error implements the error interface
func (e *GatewayError) Error() string {
	if e.UpstreamStatus != 0 {
		return fmt.Sprintf("%s (%d): %s", e.Type, e.UpstreamStatus, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Unwrap implements the error unwrapping interface
func (e *GatewayError) Unwrap() error {
	return e.Err
}

// HTTPStatusCode returns the HTTP status code used when surfacing this error.
// Configuration failures are server-side (500); everything that went wrong
// talking to the external API surfaces as a gateway failure (502).
func (e *GatewayError) HTTPStatusCode() int {
	if e.StatusCode != 0 {
		return e.StatusCode
	}
	switch e.Type {
	case ErrorTypeConfiguration:
		return http.StatusInternalServerError
	case ErrorTypeInvalidRequest:
		return http.StatusBadRequest
	case ErrorTypeUpstreamStatus, ErrorTypeConnectivity, ErrorTypeProtocol:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// ToJSON converts the error to a JSON-compatible map
func (e *GatewayError) ToJSON() map[string]interface{} {
	inner := map[string]interface{}{
		"type":    e.Type,
		"message": e.Message,
	}
	if e.UpstreamStatus != 0 {
		inner["upstream_status"] = e.UpstreamStatus
	}
	return map[string]interface{}{"error": inner}
}

// NewConfigurationError creates an error for a missing credential or setting
func NewConfigurationError(message string) *GatewayError {
	return &GatewayError{
		Type:    ErrorTypeConfiguration,
		Message: message,
	}
}

// NewUpstreamStatusError creates an error for a non-2xx upstream response.
// The response body is truncated to MaxErrorBodyLength characters.
func NewUpstreamStatusError(endpoint string, statusCode int, body []byte) *GatewayError {
	return &GatewayError{
		Type:           ErrorTypeUpstreamStatus,
		Message:        fmt.Sprintf("%s returned an error: %s", endpoint, TruncateBody(body)),
		UpstreamStatus: statusCode,
	}
}

// NewConnectivityError creates an error for a network-level failure
func NewConnectivityError(endpoint string, err error) *GatewayError {
	return &GatewayError{
		Type:    ErrorTypeConnectivity,
		Message: fmt.Sprintf("failed to reach %s: %v", endpoint, err),
		Err:     err,
	}
}

// NewProtocolError creates an error for a 2xx response missing an expected field
func NewProtocolError(message string) *GatewayError {
	return &GatewayError{
		Type:    ErrorTypeProtocol,
		Message: message,
	}
}

// NewInvalidRequestError creates a new invalid request error (400)
func NewInvalidRequestError(message string, err error) *GatewayError {
	return NewInvalidRequestErrorWithStatus(http.StatusBadRequest, message, err)
}

// NewInvalidRequestErrorWithStatus creates an invalid request error with a specific status code
func NewInvalidRequestErrorWithStatus(statusCode int, message string, err error) *GatewayError {
	return &GatewayError{
		Type:       ErrorTypeInvalidRequest,
		Message:    message,
		StatusCode: statusCode,
		Err:        err,
	}
}

// TruncateBody returns at most MaxErrorBodyLength characters of an upstream
// response body for inclusion in error messages.
func TruncateBody(body []byte) string {
	if len(body) > MaxErrorBodyLength {
		return string(body[:MaxErrorBodyLength])
	}
	return string(body)
}
