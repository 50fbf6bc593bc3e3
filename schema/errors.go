package schema

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors for use with errors.Is().
var (
	// ErrConstruction indicates a node violated one of its local invariants.
	ErrConstruction = errors.New("schema construction error")

	// ErrIncompatibleFormat indicates a format that is not valid for the
	// primitive kind it was applied to.
	ErrIncompatibleFormat = errors.New("incompatible format")
)

// ConstructionError reports an invalid node definition. It names the node
// kind, the offending field and, where a closed set applies, the accepted
// values.
type ConstructionError struct {
	// Node is the kind of node being constructed (e.g. "integer", "object").
	Node string
	// Field is the offending field (e.g. "format", "enum", "properties").
	Field string
	// Value is the rejected value (may be nil).
	Value any
	// Expected lists the accepted values, when the field takes a closed set.
	Expected []string
	// Message describes the violated invariant.
	Message string
}

// Error returns a human-readable error message.
func (e *ConstructionError) Error() string {
	msg := "schema construction error"
	if e.Node != "" {
		msg += " in " + e.Node
	}
	if e.Field != "" {
		msg += "." + e.Field
	}
	if e.Message != "" {
		msg += ": " + e.Message
	}
	if e.Value != nil {
		msg += fmt.Sprintf(" (got %v)", e.Value)
	}
	if len(e.Expected) > 0 {
		msg += " (expected one of: " + strings.Join(e.Expected, ", ") + ")"
	}
	return msg
}

// Is reports whether target matches this error type. Matches ErrConstruction,
// and also ErrIncompatibleFormat when the offending field is the format.
func (e *ConstructionError) Is(target error) bool {
	if target == ErrConstruction {
		return true
	}
	return target == ErrIncompatibleFormat && e.Field == "format"
}

func constructionError(kind Kind, field string, value any, msg string) *ConstructionError {
	return &ConstructionError{Node: kind.String(), Field: field, Value: value, Message: msg}
}
