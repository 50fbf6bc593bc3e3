// Package schema provides the immutable schema node model used to describe
// request and response values, together with the compatibility checker that
// decides whether one node's value domain fits inside another's.
//
// A schema is a tree of Node values. Node is a closed sum type implemented by
// *Primitive, *Array, *Map, *Object, *Reference and *Discriminator; code that
// walks a tree switches over exactly these types.
//
// Nodes are constructed through factories that validate local invariants and
// fail fast with a *ConstructionError. Every mutator returns a new node and
// leaves the receiver untouched, so nodes can be shared freely between
// components and goroutines.
//
//	id := schema.Must(schema.NewString(schema.Format(format.UUID)))
//	pet := schema.Must(schema.NewObject(
//	    schema.Prop("id", id),
//	    schema.Prop("name", schema.Must(schema.NewString())),
//	))
//
// See: https://spec.openapis.org/oas/v3.0.3#schema-object
package schema

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/vitalvas/apicontract/internal/yamlutil"
)

// RefPrefix is the JSON pointer prefix of a component schema reference.
//
// See: https://spec.openapis.org/oas/v3.0.3#reference-object
const RefPrefix = "#/components/schemas/"

// Kind identifies the variant of a Node.
type Kind int

const (
	KindInteger Kind = iota + 1
	KindNumber
	KindString
	KindBoolean
	KindArray
	KindMap
	KindObject
	KindReference
	KindDiscriminator
)

// String returns the lower-case kind name.
func (k Kind) String() string {
	switch k {
	case KindInteger:
		return "integer"
	case KindNumber:
		return "number"
	case KindString:
		return "string"
	case KindBoolean:
		return "boolean"
	case KindArray:
		return "array"
	case KindMap:
		return "map"
	case KindObject:
		return "object"
	case KindReference:
		return "reference"
	case KindDiscriminator:
		return "discriminator"
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// IsPrimitive reports whether the kind is one of the four scalar kinds.
func (k Kind) IsPrimitive() bool {
	switch k {
	case KindInteger, KindNumber, KindString, KindBoolean:
		return true
	}
	return false
}

// Node is one node of a schema tree.
type Node interface {
	// Kind returns the node variant.
	Kind() Kind

	// IsNullable reports whether an explicit null is accepted in place of a value.
	IsNullable() bool

	// Description returns the human-readable description, if any.
	Description() string

	// MarshalJSON encodes the node as an OpenAPI 3.0.3 schema object.
	MarshalJSON() ([]byte, error)

	// MarshalYAML encodes the node as an OpenAPI 3.0.3 schema object with
	// the same key order as MarshalJSON.
	MarshalYAML() (any, error)

	node()
}

// Resolver looks up named component schemas referenced by Reference nodes.
type Resolver interface {
	ResolveSchema(name string) (Node, error)
}

// Must panics if err is non-nil and returns n otherwise. It is intended for
// statically declared schemas, in the manner of regexp.MustCompile.
func Must[T Node](n T, err error) T {
	if err != nil {
		panic(err)
	}
	return n
}

// Property is a named member of an Object.
type Property struct {
	Name   string
	Schema Node
}

// Prop is shorthand for a Property literal.
func Prop(name string, n Node) Property {
	return Property{Name: name, Schema: n}
}

func marshalNode(n Node) ([]byte, error) {
	data, err := DocumentForm(n).MarshalJSON()
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	if err := json.Compact(&buf, data); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func marshalNodeYAML(n Node) (any, error) {
	data, err := marshalNode(n)
	if err != nil {
		return nil, err
	}
	return yamlutil.FromJSON(data)
}
