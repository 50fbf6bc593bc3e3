// Package components provides the persistent registry of named OpenAPI
// components: schemas, responses, parameters, examples, request bodies,
// headers, security schemes and links.
//
// A Registry is immutable. Insert returns a new registry and leaves the
// receiver untouched, so a registry can be built once and then read from any
// number of goroutines without locking.
//
// See: https://spec.openapis.org/oas/v3.0.3#components-object
package components

import (
	"bytes"
	"encoding/json"
	"maps"
	"slices"

	"github.com/iancoleman/orderedmap"

	"github.com/vitalvas/apicontract/internal/yamlutil"
	"github.com/vitalvas/apicontract/schema"
)

// Type is a component section of the components object.
type Type string

const (
	Schemas         Type = "schemas"
	Responses       Type = "responses"
	Parameters      Type = "parameters"
	Examples        Type = "examples"
	RequestBodies   Type = "requestBodies"
	Headers         Type = "headers"
	SecuritySchemes Type = "securitySchemes"
	Links           Type = "links"
)

// Types lists every component type.
var Types = []Type{Schemas, Responses, Parameters, Examples, RequestBodies, Headers, SecuritySchemes, Links}

// Valid reports whether t is a known component type.
func (t Type) Valid() bool {
	return slices.Contains(Types, t)
}

// Ref returns the JSON reference of the named component of this type,
// e.g. "#/components/responses/NotFound".
func (t Type) Ref(name string) string {
	return "#/components/" + string(t) + "/" + name
}

// SchemaCarrier is implemented by non-schema components that embed schema
// nodes, so that Check can follow the references they hold.
type SchemaCarrier interface {
	CarriedSchemas() []schema.Node
}

// Registry is an immutable store of named components keyed by type. The
// zero value is an empty registry.
type Registry struct {
	entries map[Type]map[string]any
}

// New returns an empty registry.
func New() *Registry {
	return &Registry{entries: map[Type]map[string]any{}}
}

// Insert returns a new registry with v registered under (t, name). Inserting
// an existing (t, name) pair fails with a *DuplicateNameError; values of
// type Schemas must be schema nodes.
func (r *Registry) Insert(t Type, name string, v any) (*Registry, error) {
	if !t.Valid() {
		return nil, &InvalidComponentError{Type: t, Name: name, Message: "unknown component type"}
	}
	if !schema.ValidComponentName(name) {
		return nil, &InvalidComponentError{Type: t, Name: name, Message: "name must match ^[a-zA-Z0-9.\\-_]+$"}
	}
	if v == nil {
		return nil, &InvalidComponentError{Type: t, Name: name, Message: "value is required"}
	}
	if _, ok := v.(schema.Node); t == Schemas && !ok {
		return nil, &InvalidComponentError{Type: t, Name: name, Message: "value is not a schema node"}
	}
	if _, ok := r.entries[t][name]; ok {
		return nil, &DuplicateNameError{Type: t, Name: name}
	}

	next := &Registry{entries: maps.Clone(r.entries)}
	if next.entries == nil {
		next.entries = make(map[Type]map[string]any, 1)
	}
	section := maps.Clone(r.entries[t])
	if section == nil {
		section = make(map[string]any, 1)
	}
	section[name] = v
	next.entries[t] = section
	return next, nil
}

// InsertSchema returns a new registry with n registered as a named schema.
func (r *Registry) InsertSchema(name string, n schema.Node) (*Registry, error) {
	if n == nil {
		return nil, &InvalidComponentError{Type: Schemas, Name: name, Message: "value is required"}
	}
	return r.Insert(Schemas, name, n)
}

// Merge returns a new registry holding the components of both registries.
// Any (type, name) pair present in both fails with a *DuplicateNameError.
// Merging a nil registry returns r.
func (r *Registry) Merge(other *Registry) (*Registry, error) {
	if other == nil {
		return r, nil
	}
	out := r
	for _, t := range Types {
		for _, name := range other.Names(t) {
			var err error
			if out, err = out.Insert(t, name, other.entries[t][name]); err != nil {
				return nil, err
			}
		}
	}
	return out, nil
}

// Resolve returns the component registered under (t, name).
func (r *Registry) Resolve(t Type, name string) (any, error) {
	v, ok := r.entries[t][name]
	if !ok {
		return nil, &UnknownReferenceError{Type: t, Name: name}
	}
	return v, nil
}

// ResolveSchema returns the named schema. It implements schema.Resolver.
func (r *Registry) ResolveSchema(name string) (schema.Node, error) {
	v, err := r.Resolve(Schemas, name)
	if err != nil {
		return nil, err
	}
	return v.(schema.Node), nil
}

// Has reports whether (t, name) is registered.
func (r *Registry) Has(t Type, name string) bool {
	_, ok := r.entries[t][name]
	return ok
}

// Names returns the registered names of type t in lexicographic order.
func (r *Registry) Names(t Type) []string {
	return slices.Sorted(maps.Keys(r.entries[t]))
}

// Len returns the number of registered components of type t.
func (r *Registry) Len(t Type) int {
	return len(r.entries[t])
}

// IsEmpty reports whether no component of any type is registered.
func (r *Registry) IsEmpty() bool {
	for _, section := range r.entries {
		if len(section) > 0 {
			return false
		}
	}
	return true
}

// DocumentForm returns the components object with component types and names
// both sorted lexicographically, so the encoded document is stable across
// builds. Types without components are omitted.
func (r *Registry) DocumentForm() *orderedmap.OrderedMap {
	out := orderedmap.New()
	out.SetEscapeHTML(false)

	types := slices.Clone(Types)
	slices.Sort(types)

	for _, t := range types {
		names := r.Names(t)
		if len(names) == 0 {
			continue
		}
		section := orderedmap.New()
		section.SetEscapeHTML(false)
		for _, name := range names {
			section.Set(name, r.entries[t][name])
		}
		out.Set(string(t), section)
	}
	return out
}

// MarshalJSON encodes the registry as an OpenAPI components object.
func (r *Registry) MarshalJSON() ([]byte, error) {
	data, err := r.DocumentForm().MarshalJSON()
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := json.Compact(&buf, data); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// MarshalYAML encodes the registry as an OpenAPI components object.
func (r *Registry) MarshalYAML() (any, error) {
	data, err := r.MarshalJSON()
	if err != nil {
		return nil, err
	}
	return yamlutil.FromJSON(data)
}
