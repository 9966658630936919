package types

import (
	"encoding/json"
	"net/http"
)

// ErrorTypeProxy tags every error body the bridge emits itself, so
// callers can tell bridge failures apart from provider failures that
// were forwarded verbatim.
const ErrorTypeProxy = "proxy_error"

// Error codes discriminating proxy_error bodies.
const (
	// CodeInvalidRequest indicates a request the bridge rejected before
	// forwarding (400).
	CodeInvalidRequest = "invalid_request"

	// CodeProviderUnreachable indicates the local provider could not be
	// reached (502).
	CodeProviderUnreachable = "provider_unreachable"

	// CodeProviderError indicates the provider failed mid-exchange (502).
	CodeProviderError = "provider_error"

	// CodeInternalError indicates a failure inside the bridge (500).
	CodeInternalError = "internal_error"
)

// ErrorResponse is the wire shape of every error the bridge originates.
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail carries the error message and its discriminant code.
type ErrorDetail struct {
	// Message is a human-readable description.
	Message string `json:"message"`

	// Type is always ErrorTypeProxy for bridge-originated errors.
	Type string `json:"type"`

	// Code discriminates the failure class.
	Code string `json:"code"`
}

// NewErrorResponse builds a proxy_error body with the given code.
func NewErrorResponse(message, code string) *ErrorResponse {
	return &ErrorResponse{
		Error: ErrorDetail{
			Message: message,
			Type:    ErrorTypeProxy,
			Code:    code,
		},
	}
}

// NewInvalidRequestError builds a 400 body.
func NewInvalidRequestError(message string) *ErrorResponse {
	return NewErrorResponse(message, CodeInvalidRequest)
}

// NewProviderUnreachableError builds a 502 body for an unreachable
// provider.
func NewProviderUnreachableError(message string) *ErrorResponse {
	return NewErrorResponse(message, CodeProviderUnreachable)
}

// NewProviderError builds a 502 body for a provider-side failure.
func NewProviderError(message string) *ErrorResponse {
	return NewErrorResponse(message, CodeProviderError)
}

// NewInternalError builds a 500 body.
func NewInternalError(message string) *ErrorResponse {
	return NewErrorResponse(message, CodeInternalError)
}

// HTTPStatusCode maps the error code to its HTTP status.
func (e *ErrorDetail) HTTPStatusCode() int {
	switch e.Code {
	case CodeInvalidRequest:
		return http.StatusBadRequest
	case CodeProviderUnreachable, CodeProviderError:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// WriteError serializes resp to w with its mapped status code.
func WriteError(w http.ResponseWriter, resp *ErrorResponse) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(resp.Error.HTTPStatusCode())
	_ = json.NewEncoder(w).Encode(resp)
}
