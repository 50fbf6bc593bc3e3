package components

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors for use with errors.Is().
var (
	// ErrDuplicateName indicates a (type, name) pair was inserted twice.
	ErrDuplicateName = errors.New("duplicate component name")

	// ErrUnknownReference indicates a reference to a component that is not registered.
	ErrUnknownReference = errors.New("unknown reference")

	// ErrCircularReference indicates a reference chain that loops back on
	// itself without passing through an array, map or object.
	ErrCircularReference = errors.New("circular reference")

	// ErrInvalidComponent indicates a component rejected at insertion.
	ErrInvalidComponent = errors.New("invalid component")
)

// DuplicateNameError reports a second insertion of the same (type, name)
// pair. It is returned regardless of whether the two values are equal.
type DuplicateNameError struct {
	Type Type
	Name string
}

// Error returns a human-readable error message.
func (e *DuplicateNameError) Error() string {
	return fmt.Sprintf("duplicate component name: %s %q", e.Type, e.Name)
}

// Is reports whether target matches this error type.
func (e *DuplicateNameError) Is(target error) bool {
	return target == ErrDuplicateName
}

// UnknownReferenceError reports a reference that cannot be followed, either
// because its target is not registered or because it is part of a cycle.
type UnknownReferenceError struct {
	// Type is the component type the reference points into.
	Type Type
	// Name is the referenced component name.
	Name string
	// Referrer is the component holding the reference, if known.
	Referrer string
	// Cycle lists the chain of component names when the reference closes a
	// cycle, starting and ending with the same name.
	Cycle []string
}

// IsCircular reports whether the error describes a reference cycle.
func (e *UnknownReferenceError) IsCircular() bool {
	return len(e.Cycle) > 0
}

// Error returns a human-readable error message.
func (e *UnknownReferenceError) Error() string {
	if e.IsCircular() {
		return "circular reference: " + strings.Join(e.Cycle, " -> ")
	}
	msg := fmt.Sprintf("unknown reference: %s %q", e.Type, e.Name)
	if e.Referrer != "" {
		msg += fmt.Sprintf(" (referenced from %q)", e.Referrer)
	}
	return msg
}

// Is reports whether target matches this error type. Matches
// ErrUnknownReference for missing targets and ErrCircularReference for cycles.
func (e *UnknownReferenceError) Is(target error) bool {
	if e.IsCircular() {
		return target == ErrCircularReference
	}
	return target == ErrUnknownReference
}

// InvalidComponentError reports a component rejected at insertion because of
// its type, name or value.
type InvalidComponentError struct {
	Type    Type
	Name    string
	Message string
}

// Error returns a human-readable error message.
func (e *InvalidComponentError) Error() string {
	return fmt.Sprintf("invalid component %s %q: %s", e.Type, e.Name, e.Message)
}

// Is reports whether target matches this error type.
func (e *InvalidComponentError) Is(target error) bool {
	return target == ErrInvalidComponent
}
