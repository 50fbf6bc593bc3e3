package openapi

import (
	"errors"
	"fmt"
)

// Sentinel errors for use with errors.Is().
var (
	// ErrDuplicateOperation indicates two operations share a method and path,
	// or two operations share an operationId.
	ErrDuplicateOperation = errors.New("duplicate operation")

	// ErrInvalidLink indicates a link whose target or parameter wiring does
	// not hold.
	ErrInvalidLink = errors.New("invalid link")

	// ErrInvalidPath indicates a malformed path template.
	ErrInvalidPath = errors.New("invalid path")

	// ErrInvalidSchema indicates a Go type or document schema that cannot be
	// expressed by the schema model.
	ErrInvalidSchema = errors.New("invalid schema")
)

// OperationError reports a problem with a single registered operation.
type OperationError struct {
	Method  string
	Path    string
	Message string
	Err     error
}

// Error returns a human-readable error message.
func (e *OperationError) Error() string {
	msg := fmt.Sprintf("operation %s %s: %s", e.Method, e.Path, e.Message)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap returns the underlying error.
func (e *OperationError) Unwrap() error {
	return e.Err
}

// LinkError reports a response link whose parameter cannot be wired to the
// target operation. It names both ends of the link.
type LinkError struct {
	// SourceOperation is the operationId owning the response link.
	SourceOperation string
	// SourceKey is the runtime expression or constant supplying the value.
	SourceKey string
	// TargetOperation is the operationId the link points to.
	TargetOperation string
	// TargetParameter is the parameter key on the target operation.
	TargetParameter string
	// Reason describes why the link is rejected.
	Reason string
}

// Error returns a human-readable error message.
func (e *LinkError) Error() string {
	return fmt.Sprintf("link %s[%s] -> %s[%s]: %s",
		e.SourceOperation, e.SourceKey, e.TargetOperation, e.TargetParameter, e.Reason)
}

// Is reports whether target matches this error type.
func (e *LinkError) Is(target error) bool {
	return target == ErrInvalidLink
}

// SchemaError reports a Go type that the schema generator cannot convert.
type SchemaError struct {
	Type    string
	Field   string
	Message string
	Err     error
}

// Error returns a human-readable error message.
func (e *SchemaError) Error() string {
	msg := "schema " + e.Type
	if e.Field != "" {
		msg += "." + e.Field
	}
	msg += ": " + e.Message
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Is reports whether target matches this error type.
func (e *SchemaError) Is(target error) bool {
	return target == ErrInvalidSchema
}

// Unwrap returns the underlying error.
func (e *SchemaError) Unwrap() error {
	return e.Err
}
