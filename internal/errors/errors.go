package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies every failure a workbench operation can report
type Kind string

const (
	// KindEmptyInput is a local validation failure; no request was sent
	KindEmptyInput Kind = "EmptyInput"
	// KindInvalidInput is a non-empty value that failed local validation; no request was sent
	KindInvalidInput Kind = "InvalidInput"
	// KindServerRejected means the engine answered with success=false
	KindServerRejected Kind = "ServerRejected"
	// KindTransportError covers network failures and unreadable responses
	KindTransportError Kind = "TransportError"
	// KindNotImplemented marks a declared but unavailable feature
	KindNotImplemented Kind = "NotImplemented"
	// KindSuperseded marks a response discarded because a newer request replaced it
	KindSuperseded Kind = "Superseded"
	// KindNotFound is used by the HTTP surface for unknown sessions and routes
	KindNotFound Kind = "NotFound"
	// KindInternal is anything unclassified
	KindInternal Kind = "Internal"
)

// AppError is the structured error returned by workbench operations
type AppError struct {
	Kind    Kind
	Message string
	Cause   error
	Context map[string]interface{}
}

// Error implements the error interface. Transport errors carry their cause
// after the generic message; server rejections are the server text verbatim.
func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

// Unwrap allows errors.Is and errors.As to reach the cause
func (e *AppError) Unwrap() error {
	return e.Cause
}

// Is matches another AppError by kind, so sentinel comparisons work
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	if !ok {
		return false
	}
	return t.Message == "" && t.Kind == e.Kind
}

// WithContext adds context to the error
func (e *AppError) WithContext(key string, value interface{}) *AppError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

// New creates an AppError of the given kind
func New(kind Kind, message string, cause error) *AppError {
	return &AppError{
		Kind:    kind,
		Message: message,
		Cause:   cause,
		Context: make(map[string]interface{}),
	}
}

// Sentinels for errors.Is checks by kind
var (
	ErrEmptyInput     = &AppError{Kind: KindEmptyInput}
	ErrInvalidInput   = &AppError{Kind: KindInvalidInput}
	ErrServerRejected = &AppError{Kind: KindServerRejected}
	ErrTransport      = &AppError{Kind: KindTransportError}
	ErrNotImplemented = &AppError{Kind: KindNotImplemented}
	ErrSuperseded     = &AppError{Kind: KindSuperseded}
	ErrNotFound       = &AppError{Kind: KindNotFound}
)

// EmptyInput creates a local empty-input failure
func EmptyInput(message string) *AppError {
	return New(KindEmptyInput, message, nil)
}

// InvalidInput creates a local validation failure
func InvalidInput(message string) *AppError {
	return New(KindInvalidInput, message, nil)
}

// InvalidInputf creates a formatted local validation failure
func InvalidInputf(format string, args ...interface{}) *AppError {
	return New(KindInvalidInput, fmt.Sprintf(format, args...), nil)
}

// ServerRejected wraps the message supplied by the engine, unchanged
func ServerRejected(message string) *AppError {
	if message == "" {
		message = "Request rejected by server"
	}
	return New(KindServerRejected, message, nil)
}

// Transport creates a transport failure with the underlying cause appended
func Transport(message string, cause error) *AppError {
	return New(KindTransportError, message, cause)
}

// NotImplemented reports a stubbed feature
func NotImplemented(feature string) *AppError {
	return New(KindNotImplemented, fmt.Sprintf("%s not implemented yet", feature), nil)
}

// Superseded reports a response that lost the generation race
func Superseded(operation string) *AppError {
	return New(KindSuperseded, fmt.Sprintf("%s superseded by a newer request", operation), nil)
}

// NotFound reports a missing resource
func NotFound(resource string) *AppError {
	return New(KindNotFound, fmt.Sprintf("%s not found", resource), nil)
}

// KindOf returns the kind of err, or KindInternal for foreign errors
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Kind
	}
	return KindInternal
}

// IsKind reports whether err carries the given kind
func IsKind(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// HTTPStatus maps a kind to the status code used by the web surface
func HTTPStatus(kind Kind) int {
	switch kind {
	case KindEmptyInput, KindInvalidInput:
		return http.StatusBadRequest
	case KindServerRejected:
		return http.StatusUnprocessableEntity
	case KindTransportError:
		return http.StatusBadGateway
	case KindNotImplemented:
		return http.StatusNotImplemented
	case KindSuperseded:
		return http.StatusConflict
	case KindNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}
