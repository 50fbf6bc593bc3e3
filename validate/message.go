package validate

import (
	"errors"
	"fmt"
	"slices"
	"strings"
)

// ErrorKind classifies a validation message.
type ErrorKind string

const (
	KindEmptyString         ErrorKind = "empty-string"
	KindValueNotAllowed     ErrorKind = "value-not-allowed"
	KindInvalidFormat       ErrorKind = "invalid-format"
	KindTypeMismatch        ErrorKind = "type-mismatch"
	KindNoVariantMatched    ErrorKind = "no-variant-matched"
	KindAmbiguousVariant    ErrorKind = "ambiguous-variant"
	KindDuplicateArrayItems ErrorKind = "duplicate-array-items"
	KindOutOfRange          ErrorKind = "out-of-range"
	KindInvalidLength       ErrorKind = "invalid-length"
	KindRequired            ErrorKind = "required"
	KindUnresolvedReference ErrorKind = "unresolved-reference"
	KindDepthExceeded       ErrorKind = "depth-exceeded"
)

// Message is one validation problem, located by its field path.
type Message struct {
	Path   FieldPath      `json:"path"`
	Kind   ErrorKind      `json:"kind"`
	Text   string         `json:"message"`
	Params map[string]any `json:"params,omitempty"`
}

// String returns "<path>: <text>", using "/" for the root path.
func (m Message) String() string {
	p := m.Path.String()
	if p == "" {
		p = "/"
	}
	return p + ": " + m.Text
}

// Messages is the ordered result of a validation pass. An empty list means
// the value conforms.
type Messages []Message

// OK reports whether there are no messages.
func (ms Messages) OK() bool { return len(ms) == 0 }

// Prepend returns a copy with segments added at the start of every path.
func (ms Messages) Prepend(segments ...Segment) Messages {
	if ms == nil {
		return nil
	}
	out := make(Messages, len(ms))
	for i, m := range ms {
		m.Path = m.Path.Prepend(segments...)
		out[i] = m
	}
	return out
}

// Kinds returns the kind of every message, in order.
func (ms Messages) Kinds() []ErrorKind {
	kinds := make([]ErrorKind, len(ms))
	for i, m := range ms {
		kinds[i] = m.Kind
	}
	return kinds
}

// Has reports whether any message has the given kind.
func (ms Messages) Has(kind ErrorKind) bool {
	return slices.ContainsFunc(ms, func(m Message) bool { return m.Kind == kind })
}

// Err returns nil when there are no messages and an *Error otherwise.
func (ms Messages) Err() error {
	if len(ms) == 0 {
		return nil
	}
	return &Error{Messages: slices.Clone(ms)}
}

// ErrValidation is matched by every *Error.
var ErrValidation = errors.New("validation failed")

// Error carries validation messages across APIs that return error.
type Error struct {
	Messages Messages
}

// Error returns a human-readable error message.
func (e *Error) Error() string {
	switch len(e.Messages) {
	case 0:
		return "validation failed"
	case 1:
		return "validation failed: " + e.Messages[0].String()
	}
	parts := make([]string, len(e.Messages))
	for i, m := range e.Messages {
		parts[i] = m.String()
	}
	return fmt.Sprintf("validation failed with %d problems: %s", len(e.Messages), strings.Join(parts, "; "))
}

// Is reports whether target matches this error type.
func (e *Error) Is(target error) bool {
	return target == ErrValidation
}
