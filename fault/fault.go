// Package fault defines the error taxonomy shared by the validators, the
// sandbox, and the orchestrator. Every failure that crosses a package
// boundary is a *Error carrying one of the enumerated kinds, so handlers
// can map outcomes without string matching.
package fault

import (
	"errors"
	"fmt"
)

// Kind classifies a failure.
type Kind string

const (
	// Validation failures, detected before anything is persisted.
	SyntaxInvalid             Kind = "SyntaxInvalid"
	UnsafeConstruct           Kind = "UnsafeConstruct"
	SignatureInvalid          Kind = "SignatureInvalid"
	SchemaInvalid             Kind = "SchemaInvalid"
	ParameterValidationFailed Kind = "ParameterValidationFailed"

	// Execution-time failures, always captured and recorded.
	ExecutionError Kind = "ExecutionError"
	Timeout        Kind = "Timeout"
	MemoryExceeded Kind = "MemoryExceeded"

	// Orchestrator failures.
	Conflict Kind = "Conflict"
	NotFound Kind = "NotFound"
)

// Error is a classified failure.
type Error struct {
	Kind    Kind
	Message string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// New builds a classified error.
func New(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// KindOf extracts the kind from err, or "" if err carries no *Error.
func KindOf(err error) Kind {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Kind
	}
	return ""
}

// IsValidation reports whether the kind is one of the pre-persistence
// validation rejections.
func IsValidation(k Kind) bool {
	switch k {
	case SyntaxInvalid, UnsafeConstruct, SignatureInvalid, SchemaInvalid, ParameterValidationFailed:
		return true
	}
	return false
}
