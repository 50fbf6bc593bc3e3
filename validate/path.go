package validate

import (
	"encoding/json"
	"slices"
	"strconv"
	"strings"
)

// Segment is one step of a FieldPath: a property name or an array index.
type Segment struct {
	key     string
	index   int
	isIndex bool
}

// Key returns a property-name segment.
func Key(name string) Segment { return Segment{key: name} }

// Index returns an array-index segment.
func Index(i int) Segment { return Segment{index: i, isIndex: true} }

// IsIndex reports whether the segment is an array index.
func (s Segment) IsIndex() bool { return s.isIndex }

// Name returns the property name of a key segment.
func (s Segment) Name() string { return s.key }

// Position returns the index of an array-index segment.
func (s Segment) Position() int { return s.index }

// String returns the segment as it appears in a JSON pointer, with "~" and
// "/" escaped.
//
// See: https://www.rfc-editor.org/rfc/rfc6901#section-3
func (s Segment) String() string {
	if s.isIndex {
		return strconv.Itoa(s.index)
	}
	return pointerEscaper.Replace(s.key)
}

// MarshalJSON encodes a key as a JSON string and an index as a JSON number.
func (s Segment) MarshalJSON() ([]byte, error) {
	if s.isIndex {
		return json.Marshal(s.index)
	}
	return json.Marshal(s.key)
}

var pointerEscaper = strings.NewReplacer("~", "~0", "/", "~1")

// FieldPath locates a value inside a decoded document. Paths are values:
// Append and Prepend return new paths and never modify the receiver.
type FieldPath struct {
	segments []Segment
}

// Root returns the empty path, locating the value being validated itself.
func Root() FieldPath { return FieldPath{} }

// Path builds a path from segments.
func Path(segments ...Segment) FieldPath {
	return FieldPath{segments: slices.Clone(segments)}
}

// Append returns a new path with segments added at the end.
func (p FieldPath) Append(segments ...Segment) FieldPath {
	return FieldPath{segments: slices.Concat(p.segments, segments)}
}

// Prepend returns a new path with segments added at the start.
func (p FieldPath) Prepend(segments ...Segment) FieldPath {
	return FieldPath{segments: slices.Concat(segments, p.segments)}
}

// Key returns a new path extended by a property name.
func (p FieldPath) Key(name string) FieldPath { return p.Append(Key(name)) }

// Index returns a new path extended by an array index.
func (p FieldPath) Index(i int) FieldPath { return p.Append(Index(i)) }

// Segments returns a copy of the path segments.
func (p FieldPath) Segments() []Segment { return slices.Clone(p.segments) }

// Len returns the number of segments.
func (p FieldPath) Len() int { return len(p.segments) }

// IsRoot reports whether the path has no segments.
func (p FieldPath) IsRoot() bool { return len(p.segments) == 0 }

// Equal reports whether two paths have the same segments.
func (p FieldPath) Equal(q FieldPath) bool {
	return slices.Equal(p.segments, q.segments)
}

// String returns the path as a JSON pointer, e.g. "/items/2/name". The root
// path is the empty string.
func (p FieldPath) String() string {
	var b strings.Builder
	for _, s := range p.segments {
		b.WriteByte('/')
		b.WriteString(s.String())
	}
	return b.String()
}

// MarshalJSON encodes the path as an array of segments, e.g. ["items",2,"name"].
func (p FieldPath) MarshalJSON() ([]byte, error) {
	if p.segments == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(p.segments)
}
