package schema

import (
	"regexp"
	"slices"
)

// Array is a sequence of values sharing one item schema.
//
// See: https://spec.openapis.org/oas/v3.0.3#schema-object (items, uniqueItems)
type Array struct {
	items       Node
	uniqueItems bool
	nullable    bool
	description string
}

// NewArray creates an array schema with the given item schema.
func NewArray(items Node) (*Array, error) {
	if items == nil {
		return nil, constructionError(KindArray, "items", nil, "item schema is required")
	}
	return &Array{items: items}, nil
}

func (a *Array) node() {}

// Kind returns KindArray.
func (a *Array) Kind() Kind { return KindArray }

// IsNullable reports whether null is accepted.
func (a *Array) IsNullable() bool { return a.nullable }

// Description returns the description.
func (a *Array) Description() string { return a.description }

// Items returns the item schema.
func (a *Array) Items() Node { return a.items }

// UniqueItems reports whether elements must be pairwise distinct.
func (a *Array) UniqueItems() bool { return a.uniqueItems }

// MarshalJSON encodes the array as an OpenAPI schema object.
func (a *Array) MarshalJSON() ([]byte, error) { return marshalNode(a) }

// MarshalYAML encodes the array as an OpenAPI schema object.
func (a *Array) MarshalYAML() (any, error) { return marshalNodeYAML(a) }

// WithUniqueItems returns a copy requiring pairwise distinct elements.
func (a *Array) WithUniqueItems() *Array {
	c := *a
	c.uniqueItems = true
	return &c
}

// AsNullable returns a copy that accepts null.
func (a *Array) AsNullable() *Array {
	c := *a
	c.nullable = true
	return &c
}

// WithDescription returns a copy with the description set.
func (a *Array) WithDescription(s string) *Array {
	c := *a
	c.description = s
	return &c
}

// Map is a string-keyed mapping whose values share one schema. Only string
// primitives and references are accepted as value schemas.
//
// See: https://spec.openapis.org/oas/v3.0.3#schema-object (additionalProperties)
type Map struct {
	values      Node
	nullable    bool
	description string
}

// NewMap creates a map schema with the given value schema.
func NewMap(values Node) (*Map, error) {
	switch v := values.(type) {
	case *Reference:
	case *Primitive:
		if v.Kind() != KindString {
			return nil, &ConstructionError{
				Node:     KindMap.String(),
				Field:    "additionalProperties",
				Value:    v.Kind().String(),
				Expected: []string{KindString.String(), KindReference.String()},
				Message:  "unsupported value schema",
			}
		}
	case nil:
		return nil, constructionError(KindMap, "additionalProperties", nil, "value schema is required")
	default:
		return nil, &ConstructionError{
			Node:     KindMap.String(),
			Field:    "additionalProperties",
			Value:    values.Kind().String(),
			Expected: []string{KindString.String(), KindReference.String()},
			Message:  "unsupported value schema",
		}
	}
	return &Map{values: values}, nil
}

func (m *Map) node() {}

// Kind returns KindMap.
func (m *Map) Kind() Kind { return KindMap }

// IsNullable reports whether null is accepted.
func (m *Map) IsNullable() bool { return m.nullable }

// Description returns the description.
func (m *Map) Description() string { return m.description }

// Values returns the value schema.
func (m *Map) Values() Node { return m.values }

// MarshalJSON encodes the map as an OpenAPI schema object.
func (m *Map) MarshalJSON() ([]byte, error) { return marshalNode(m) }

// MarshalYAML encodes the map as an OpenAPI schema object.
func (m *Map) MarshalYAML() (any, error) { return marshalNodeYAML(m) }

// AsNullable returns a copy that accepts null.
func (m *Map) AsNullable() *Map {
	c := *m
	c.nullable = true
	return &c
}

// WithDescription returns a copy with the description set.
func (m *Map) WithDescription(s string) *Map {
	c := *m
	c.description = s
	return &c
}

// Object is a mapping with a fixed, ordered set of named properties.
// Properties listed as required must be present in a value; all others are
// optional.
//
// See: https://spec.openapis.org/oas/v3.0.3#schema-object (properties, required)
type Object struct {
	properties  []Property
	required    []string
	nullable    bool
	description string
}

// NewObject creates an object schema. At least one property is required and
// property names must be unique and non-empty.
func NewObject(props ...Property) (*Object, error) {
	o := &Object{properties: slices.Clone(props)}
	if err := o.check(); err != nil {
		return nil, err
	}
	return o, nil
}

func (o *Object) check() error {
	if len(o.properties) == 0 {
		return constructionError(KindObject, "properties", nil, "object must declare at least one property")
	}
	seen := make(map[string]struct{}, len(o.properties))
	for _, p := range o.properties {
		if p.Name == "" {
			return constructionError(KindObject, "properties", nil, "property name must not be empty")
		}
		if p.Schema == nil {
			return constructionError(KindObject, "properties", p.Name, "property schema is required")
		}
		if _, ok := seen[p.Name]; ok {
			return constructionError(KindObject, "properties", p.Name, "duplicate property name")
		}
		seen[p.Name] = struct{}{}
	}
	for _, name := range o.required {
		if _, ok := seen[name]; !ok {
			return &ConstructionError{
				Node:     KindObject.String(),
				Field:    "required",
				Value:    name,
				Expected: o.propertyNames(),
				Message:  "required property is not declared",
			}
		}
	}
	return nil
}

func (o *Object) propertyNames() []string {
	names := make([]string, len(o.properties))
	for i, p := range o.properties {
		names[i] = p.Name
	}
	return names
}

func (o *Object) node() {}

// Kind returns KindObject.
func (o *Object) Kind() Kind { return KindObject }

// IsNullable reports whether null is accepted.
func (o *Object) IsNullable() bool { return o.nullable }

// Description returns the description.
func (o *Object) Description() string { return o.description }

// Properties returns the properties in declaration order.
func (o *Object) Properties() []Property { return slices.Clone(o.properties) }

// Property returns the schema of the named property.
func (o *Object) Property(name string) (Node, bool) {
	for _, p := range o.properties {
		if p.Name == name {
			return p.Schema, true
		}
	}
	return nil, false
}

// Required returns the names of the required properties.
func (o *Object) Required() []string { return slices.Clone(o.required) }

// IsRequired reports whether the named property is required.
func (o *Object) IsRequired(name string) bool { return slices.Contains(o.required, name) }

// MarshalJSON encodes the object as an OpenAPI schema object.
func (o *Object) MarshalJSON() ([]byte, error) { return marshalNode(o) }

// MarshalYAML encodes the object as an OpenAPI schema object.
func (o *Object) MarshalYAML() (any, error) { return marshalNodeYAML(o) }

func (o *Object) clone() *Object {
	c := *o
	c.properties = slices.Clone(o.properties)
	c.required = slices.Clone(o.required)
	return &c
}

// WithProperty returns a copy with an additional property appended.
func (o *Object) WithProperty(name string, n Node) (*Object, error) {
	c := o.clone()
	c.properties = append(c.properties, Prop(name, n))
	if err := c.check(); err != nil {
		return nil, err
	}
	return c, nil
}

// WithRequired returns a copy with the given properties marked as required.
func (o *Object) WithRequired(names ...string) (*Object, error) {
	c := o.clone()
	for _, name := range names {
		if !slices.Contains(c.required, name) {
			c.required = append(c.required, name)
		}
	}
	if err := c.check(); err != nil {
		return nil, err
	}
	return c, nil
}

// AsNullable returns a copy that accepts null.
func (o *Object) AsNullable() *Object {
	c := o.clone()
	c.nullable = true
	return c
}

// WithDescription returns a copy with the description set.
func (o *Object) WithDescription(s string) *Object {
	c := o.clone()
	c.description = s
	return c
}

// componentNameRegexp matches valid component keys.
//
// See: https://spec.openapis.org/oas/v3.0.3#components-object
var componentNameRegexp = regexp.MustCompile(`^[a-zA-Z0-9.\-_]+$`)

// ValidComponentName reports whether name may be used as a component key.
func ValidComponentName(name string) bool {
	return componentNameRegexp.MatchString(name)
}

// Reference is a non-owning pointer to a named component schema. It carries
// no constraints of its own; the target is resolved lazily through a
// Resolver, so mutually referential schemas can be declared in any order.
//
// See: https://spec.openapis.org/oas/v3.0.3#reference-object
type Reference struct {
	target string
}

// NewReference creates a reference to the named component schema.
func NewReference(target string) (*Reference, error) {
	if target == "" {
		return nil, constructionError(KindReference, "$ref", nil, "target name must not be empty")
	}
	if !ValidComponentName(target) {
		return nil, constructionError(KindReference, "$ref", target, "target name must match ^[a-zA-Z0-9.\\-_]+$")
	}
	return &Reference{target: target}, nil
}

func (r *Reference) node() {}

// Kind returns KindReference.
func (r *Reference) Kind() Kind { return KindReference }

// IsNullable always returns false; nullability belongs to the target.
func (r *Reference) IsNullable() bool { return false }

// Description always returns ""; references carry no annotations.
func (r *Reference) Description() string { return "" }

// Target returns the referenced component name.
func (r *Reference) Target() string { return r.target }

// Ref returns the full JSON reference, e.g. "#/components/schemas/Pet".
func (r *Reference) Ref() string { return RefPrefix + r.target }

// MarshalJSON encodes the reference as {"$ref": "..."}.
func (r *Reference) MarshalJSON() ([]byte, error) { return marshalNode(r) }

// MarshalYAML encodes the reference as an OpenAPI schema object.
func (r *Reference) MarshalYAML() (any, error) { return marshalNodeYAML(r) }
