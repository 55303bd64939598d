// Package core provides the error model, retrying HTTP and auth helpers
// shared by the viewer backend.
package core

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/mark3labs/mcp-go/mcp"
)

// ErrorCode defines standard error codes for MCP tools
type ErrorCode string

// Standard error codes
const (
	// Input validation errors
	ErrInvalidInput     ErrorCode = "INVALID_INPUT"
	ErrInvalidZoom      ErrorCode = "INVALID_ZOOM"
	ErrInvalidRef       ErrorCode = "INVALID_REF"
	ErrEmptyParameter   ErrorCode = "EMPTY_PARAMETER"
	ErrMissingParameter ErrorCode = "MISSING_PARAMETER"
	ErrInvalidParameter ErrorCode = "INVALID_PARAMETER"

	// Service errors
	ErrServiceUnavailable ErrorCode = "SERVICE_UNAVAILABLE"
	ErrServiceTimeout     ErrorCode = "SERVICE_TIMEOUT"
	ErrRateLimit          ErrorCode = "RATE_LIMIT"
	ErrNetworkError       ErrorCode = "NETWORK_ERROR"
	ErrUnauthorized       ErrorCode = "UNAUTHORIZED"

	// Data errors
	ErrNoResults     ErrorCode = "NO_RESULTS"
	ErrNotFound      ErrorCode = "NOT_FOUND"
	ErrParseError    ErrorCode = "PARSE_ERROR"
	ErrInternalError ErrorCode = "INTERNAL_ERROR"
)

// HTTPStatus is the status the JSON API answers with for code.
func (c ErrorCode) HTTPStatus() int {
	switch c {
	case ErrNotFound, ErrNoResults:
		return http.StatusNotFound
	case ErrInvalidInput, ErrInvalidZoom, ErrInvalidRef,
		ErrEmptyParameter, ErrMissingParameter, ErrInvalidParameter:
		return http.StatusBadRequest
	case ErrUnauthorized:
		return http.StatusUnauthorized
	case ErrRateLimit:
		return http.StatusTooManyRequests
	case ErrServiceTimeout:
		return http.StatusGatewayTimeout
	case ErrServiceUnavailable, ErrNetworkError, ErrParseError:
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

// MCPError is the error body returned by tools and the JSON API.
type MCPError struct {
	Code        string   `json:"code"`
	Message     string   `json:"message"`
	Query       string   `json:"query,omitempty"`
	Suggestions []string `json:"suggestions,omitempty"`
	Guidance    string   `json:"guidance,omitempty"`
}

func (e MCPError) Error() string {
	if e.Guidance != "" {
		return fmt.Sprintf("%s: %s. %s", e.Code, e.Message, e.Guidance)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// NewError creates a new MCPError with the given code and message
func NewError(code ErrorCode, message string) *MCPError {
	return &MCPError{
		Code:    string(code),
		Message: message,
	}
}

// NewValidationError creates an error for rejected arguments.
func NewValidationError(code ErrorCode, message string) *MCPError {
	return NewError(code, message).
		WithGuidance("Please correct the parameters and try again.")
}

// WithQuery records the request that failed, such as an object URL.
func (e *MCPError) WithQuery(query string) *MCPError {
	e.Query = query
	return e
}

// WithGuidance adds guidance information to the error
func (e *MCPError) WithGuidance(guidance string) *MCPError {
	e.Guidance = guidance
	return e
}

// WithSuggestions adds suggestions to the error
func (e *MCPError) WithSuggestions(suggestions ...string) *MCPError {
	e.Suggestions = append(e.Suggestions, suggestions...)
	return e
}

// HTTPStatus is the status for the error's code.
func (e *MCPError) HTTPStatus() int {
	return ErrorCode(e.Code).HTTPStatus()
}

// ToMCPResult converts the error to a tool result carrying the JSON body.
func (e *MCPError) ToMCPResult() *mcp.CallToolResult {
	b, err := json.Marshal(e)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("ERROR: %s - %s", e.Code, e.Message))
	}
	return mcp.NewToolResultError(string(b))
}

// AsMCPError finds the structured error in err's chain. Validation errors
// are converted; ok is false for anything else.
func AsMCPError(err error) (e *MCPError, ok bool) {
	if errors.As(err, &e) {
		return e, true
	}
	var valErr ValidationError
	if errors.As(err, &valErr) {
		return NewError(ErrorCode(valErr.Code), valErr.Message).WithGuidance(valErr.Guidance), true
	}
	return nil, false
}

// CodeOf returns the error code carried by err, or INTERNAL_ERROR.
func CodeOf(err error) ErrorCode {
	if e, ok := AsMCPError(err); ok {
		return ErrorCode(e.Code)
	}
	return ErrInternalError
}

// ServiceError maps an HTTP status from a backend to an error code.
func ServiceError(service string, statusCode int, message string) *MCPError {
	var code ErrorCode
	var guidance string

	switch statusCode {
	case http.StatusTooManyRequests:
		code = ErrRateLimit
		guidance = "The service is rate-limited. Please try again in a few moments."
	case http.StatusRequestTimeout, http.StatusGatewayTimeout:
		code = ErrServiceTimeout
		guidance = "The request timed out. Please try again later."
	case http.StatusNotFound:
		code = ErrNotFound
		guidance = "The service does not know the requested resource."
	case http.StatusBadRequest:
		code = ErrInvalidInput
		guidance = "The service rejected the request."
	default:
		code = ErrServiceUnavailable
		guidance = "The service is temporarily unavailable. Please try again later."
	}

	return NewError(code, fmt.Sprintf("%s service error: %s", service, message)).
		WithGuidance(guidance)
}
