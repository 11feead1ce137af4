package errors

import (
	"fmt"
	"net/http"
	"regexp"
	"strings"
	"time"
)

// ProblemDetails represents RFC 7807 compliant error response
// RFC 7807: Problem Details for HTTP APIs
// swagger:model
type ProblemDetails struct {
	// Type is a URI reference that identifies the problem type
	Type string `json:"type"`
	// Title is a short, human-readable summary of the problem type
	Title string `json:"title"`
	// Status is the HTTP status code
	Status int `json:"status"`
	// Detail is a human-readable explanation specific to this occurrence of the problem
	Detail string `json:"detail"`
	// Instance is a URI reference that identifies the specific occurrence of the problem
	Instance string `json:"instance,omitempty"`
	// Kind is the machine readable error kind
	Kind string `json:"kind,omitempty"`
	// Timestamp when the error occurred
	Timestamp time.Time `json:"timestamp"`
	// TraceID for request tracing and debugging
	TraceID string `json:"traceId,omitempty"`
	// Errors contains field-specific validation errors
	Errors []ValidationError `json:"errors,omitempty"`
}

// ValidationError represents field-specific validation errors
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

const typeBaseURI = "https://accountmanager.dev/errors/"

// Standard error types with URIs
const (
	TypeValidationError = typeBaseURI + "validation-error"
	TypeNotFound        = typeBaseURI + "not-found"
	TypeConflict        = typeBaseURI + "conflict"
	TypeInternalError   = typeBaseURI + "internal-error"
	TypeUnavailable     = typeBaseURI + "unavailable"
	TypeTimeout         = typeBaseURI + "timeout"
)

// NewProblemDetails creates a new RFC 7807 compliant error
func NewProblemDetails(problemType, title string, status int, detail, instance string) *ProblemDetails {
	return &ProblemDetails{
		Type:      problemType,
		Title:     title,
		Status:    status,
		Detail:    detail,
		Instance:  instance,
		Timestamp: time.Now().UTC(),
	}
}

// WithTraceID adds a trace ID to the problem details
func (p *ProblemDetails) WithTraceID(traceID string) *ProblemDetails {
	p.TraceID = traceID
	return p
}

// WithValidationErrors adds validation errors to the problem details
func (p *ProblemDetails) WithValidationErrors(errors []ValidationError) *ProblemDetails {
	p.Errors = errors
	return p
}

// AddValidationError adds a single validation error
func (p *ProblemDetails) AddValidationError(field, message, code string) *ProblemDetails {
	p.Errors = append(p.Errors, ValidationError{
		Field:   field,
		Message: message,
		Code:    code,
	})
	return p
}

// Error implements the error interface
func (p *ProblemDetails) Error() string {
	return fmt.Sprintf("[%d] %s: %s", p.Status, p.Title, p.Detail)
}

// NewValidationError creates a validation error
func NewValidationError(detail, instance string) *ProblemDetails {
	return NewProblemDetails(TypeValidationError, "Validation Error", http.StatusBadRequest, detail, instance)
}

// NewInternalError creates an internal server error
func NewInternalError(detail, instance string) *ProblemDetails {
	return NewProblemDetails(TypeInternalError, "Internal Server Error", http.StatusInternalServerError, detail, instance)
}

var kindWords = regexp.MustCompile(`([a-z0-9])([A-Z])`)

// typeFor derives a problem type URI from an error kind, e.g.
// "InsufficientFunds" becomes ".../insufficient-funds".
func typeFor(kind string, status int) string {
	if kind == "" || kind == http.StatusText(status) {
		switch status {
		case http.StatusBadRequest:
			return TypeValidationError
		case http.StatusNotFound:
			return TypeNotFound
		case http.StatusConflict:
			return TypeConflict
		case http.StatusServiceUnavailable:
			return TypeUnavailable
		case http.StatusGatewayTimeout:
			return TypeTimeout
		default:
			return TypeInternalError
		}
	}
	slug := strings.ToLower(kindWords.ReplaceAllString(kind, "${1}-${2}"))
	return typeBaseURI + strings.ReplaceAll(slug, " ", "-")
}

// ToProblemDetails converts an Error to RFC 7807 ProblemDetails
func (e *Error) ToProblemDetails(instance string) *ProblemDetails {
	status := e.StatusCode()
	detail := e.Message
	if status >= http.StatusInternalServerError && status != http.StatusServiceUnavailable && status != http.StatusGatewayTimeout {
		detail = "An unexpected error occurred"
	}
	if detail == "" {
		detail = http.StatusText(status)
	}

	pd := NewProblemDetails(typeFor(e.Kind, status), http.StatusText(status), status, detail, instance)
	pd.Kind = e.Kind
	for _, field := range e.Fields {
		pd.AddValidationError(field.Field, field.Message, field.Kind)
	}
	return pd
}

// ToProblemDetails converts any error into RFC 7807 ProblemDetails.
func ToProblemDetails(err error, instance string) *ProblemDetails {
	var pd *ProblemDetails
	if As(err, &pd) {
		return pd
	}
	var e *Error
	if As(err, &e) {
		return e.ToProblemDetails(instance)
	}
	var status StatusCode
	if As(err, &status) {
		return Status(int(status)).ToProblemDetails(instance)
	}
	return NewInternalError("An unexpected error occurred", instance)
}
