// Package apperrors defines the failure taxonomy shared by the localization
// stages. Every stage failure is recoverable: the orchestrator inspects the
// Kind and advances to the next stage instead of aborting the request.
package apperrors

import (
	"errors"
	"fmt"
)

// Kind categorizes a failure.
type Kind string

const (
	// GeometryInvalid means a candidate box failed the validation policy.
	GeometryInvalid Kind = "geometry_invalid"
	// ParseFailure means a model reply could not be recovered as a box.
	ParseFailure Kind = "parse_failure"
	// BackendUnavailable means a detector or LLM call failed, timed out,
	// or the backend could not be constructed.
	BackendUnavailable Kind = "backend_unavailable"
	// NoMatch means the OCR fallback found nothing scoring above zero.
	NoMatch Kind = "no_match"
	// ConfigInvalid is reserved for startup configuration errors.
	ConfigInvalid Kind = "config_invalid"
)

// Error is a categorized failure with an optional cause.
type Error struct {
	Kind    Kind   `json:"kind"`
	Op      string `json:"op,omitempty"`
	Message string `json:"message"`
	Cause   error  `json:"-"`
}

// Error implements the error interface
func (e *Error) Error() string {
	prefix := string(e.Kind)
	if e.Op != "" {
		prefix = e.Op + ": " + prefix
	}
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", prefix, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", prefix, e.Message)
}

// Unwrap returns the underlying error
func (e *Error) Unwrap() error {
	return e.Cause
}

// NewGeometryInvalid creates a geometry validation error
func NewGeometryInvalid(message string) *Error {
	return &Error{Kind: GeometryInvalid, Message: message}
}

// NewParseFailure creates a parse error
func NewParseFailure(message string, cause error) *Error {
	return &Error{Kind: ParseFailure, Message: message, Cause: cause}
}

// NewBackendUnavailable creates a backend error for the named operation
func NewBackendUnavailable(op, message string, cause error) *Error {
	return &Error{Kind: BackendUnavailable, Op: op, Message: message, Cause: cause}
}

// NewNoMatch creates a no-match error
func NewNoMatch(message string) *Error {
	return &Error{Kind: NoMatch, Message: message}
}

// NewConfigInvalid creates a configuration error
func NewConfigInvalid(message string, cause error) *Error {
	return &Error{Kind: ConfigInvalid, Message: message, Cause: cause}
}

// IsKind reports whether any error in err's chain is an *Error of the given kind.
func IsKind(err error, kind Kind) bool {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Kind == kind
	}
	return false
}

// KindOf returns the Kind of the first *Error in err's chain, or "" if none.
func KindOf(err error) Kind {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Kind
	}
	return ""
}
