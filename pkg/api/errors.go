package api

import (
	"context"
	"errors"
	"fmt"
	"net"
)

// ErrorKind is the closed taxonomy every backend and tool failure maps into.
type ErrorKind string

const (
	// ErrorKindTransport covers network failures, timeouts and non-structured
	// HTTP failures.
	ErrorKindTransport ErrorKind = "transport_error"

	// ErrorKindProviderRejection means the backend returned a structured
	// error (bad credentials, content policy, invalid parameters).
	ErrorKindProviderRejection ErrorKind = "provider_rejection"

	// ErrorKindSchemaMismatch means the backend answered with a shape the
	// adapter could not interpret.
	ErrorKindSchemaMismatch ErrorKind = "schema_mismatch"

	// ErrorKindToolNotFound means a tool call named no registered handler.
	ErrorKindToolNotFound ErrorKind = "tool_not_found"

	// ErrorKindBackendUnsupported means the selected backend has no adapter
	// registered for its provider kind.
	ErrorKindBackendUnsupported ErrorKind = "backend_unsupported"

	// ErrorKindNotFound is returned by lookups (backends, conversations).
	ErrorKindNotFound ErrorKind = "not_found"

	// ErrorKindInvalidRequest is returned for malformed caller input.
	ErrorKindInvalidRequest ErrorKind = "invalid_request"

	// ErrorKindTurnInFlight is returned when a conversation already has an
	// uncommitted turn.
	ErrorKindTurnInFlight ErrorKind = "turn_in_flight"
)

// Error is the normalized error carried across component boundaries.
type Error struct {
	Kind    ErrorKind `json:"type"`
	Message string    `json:"message"`

	// Provider names the backend or tool that produced the failure.
	Provider string `json:"provider,omitempty"`

	// Status is the upstream HTTP status, 0 when not applicable.
	Status int `json:"status,omitempty"`

	// PolicyViolation is set when the backend refused the request on
	// content-policy grounds. It only selects the user-facing notice.
	PolicyViolation bool `json:"policy_violation,omitempty"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Provider != "" {
		return fmt.Sprintf("%s: %s: %s", e.Kind, e.Provider, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Is reports whether target is an *Error of the same kind, so callers can
// write errors.Is(err, &api.Error{Kind: api.ErrorKindToolNotFound}).
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

// ErrorResponse wraps an Error for JSON serialization as a top-level body.
type ErrorResponse struct {
	Error *Error `json:"error"`
}

// NewTransportError creates an Error for network-level failures.
func NewTransportError(provider, message string) *Error {
	return &Error{Kind: ErrorKindTransport, Provider: provider, Message: message}
}

// NewProviderRejection creates an Error for a structured backend refusal.
func NewProviderRejection(provider string, status int, message string, policy bool) *Error {
	return &Error{
		Kind:            ErrorKindProviderRejection,
		Provider:        provider,
		Status:          status,
		Message:         message,
		PolicyViolation: policy,
	}
}

// NewSchemaMismatch creates an Error for an unexpected response shape.
func NewSchemaMismatch(provider, message string) *Error {
	return &Error{Kind: ErrorKindSchemaMismatch, Provider: provider, Message: message}
}

// NewToolNotFound creates an Error for an unresolved tool name.
func NewToolNotFound(name, message string) *Error {
	return &Error{Kind: ErrorKindToolNotFound, Provider: name, Message: message}
}

// NewBackendUnsupported creates an Error for a backend without an adapter.
func NewBackendUnsupported(backendID, message string) *Error {
	return &Error{Kind: ErrorKindBackendUnsupported, Provider: backendID, Message: message}
}

// NewNotFoundError creates an Error for a missing resource.
func NewNotFoundError(message string) *Error {
	return &Error{Kind: ErrorKindNotFound, Message: message}
}

// NewInvalidRequestError creates an Error for malformed caller input.
func NewInvalidRequestError(message string) *Error {
	return &Error{Kind: ErrorKindInvalidRequest, Message: message}
}

// NewTurnInFlightError creates an Error for a rejected concurrent turn.
func NewTurnInFlightError(conversationID string) *Error {
	return &Error{
		Kind:    ErrorKindTurnInFlight,
		Message: fmt.Sprintf("conversation %s already has a turn in progress", conversationID),
	}
}

// Normalize converts any error into an *Error. Errors that already carry
// the taxonomy pass through unchanged; context cancellation and network
// errors become transport errors; anything else is treated as a transport
// failure of the named provider.
func Normalize(provider string, err error) *Error {
	if err == nil {
		return nil
	}

	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr
	}

	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return NewTransportError(provider, "request timed out")
	case errors.Is(err, context.Canceled):
		return NewTransportError(provider, "request cancelled")
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return NewTransportError(provider, "connection error: "+netErr.Error())
	}

	return NewTransportError(provider, err.Error())
}

// UserMessage returns the text shown to the user for this error. Policy
// violations get a dedicated notice; everything else shows the message.
func (e *Error) UserMessage() string {
	if e.PolicyViolation {
		return "The request was rejected by the content policy of " + providerOrBackend(e.Provider) + "."
	}
	return e.Error()
}

func providerOrBackend(p string) string {
	if p == "" {
		return "the backend"
	}
	return p
}
