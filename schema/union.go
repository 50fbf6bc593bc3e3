package schema

import "slices"

// Mode selects how the members of a Discriminator combine.
type Mode int

const (
	// OneOf accepts values matching exactly one member.
	OneOf Mode = iota + 1
	// AnyOf accepts values matching at least one member.
	AnyOf
	// AllOf accepts values matching every member.
	AllOf
)

// Keyword returns the OpenAPI keyword for the mode.
func (m Mode) Keyword() string {
	switch m {
	case OneOf:
		return "oneOf"
	case AnyOf:
		return "anyOf"
	case AllOf:
		return "allOf"
	}
	return ""
}

// String returns the OpenAPI keyword for the mode.
func (m Mode) String() string { return m.Keyword() }

// Discriminator is a union (oneOf, anyOf) or intersection (allOf) of member
// schemas. AllOf members must not be primitives.
//
// See: https://spec.openapis.org/oas/v3.0.3#schema-object (allOf, oneOf, anyOf)
type Discriminator struct {
	mode        Mode
	members     []Node
	nullable    bool
	description string
}

// NewOneOf creates a union accepting values that match exactly one member.
func NewOneOf(members ...Node) (*Discriminator, error) {
	return NewDiscriminator(OneOf, members...)
}

// NewAnyOf creates a union accepting values that match at least one member.
func NewAnyOf(members ...Node) (*Discriminator, error) {
	return NewDiscriminator(AnyOf, members...)
}

// NewAllOf creates an intersection accepting values that match every member.
func NewAllOf(members ...Node) (*Discriminator, error) {
	return NewDiscriminator(AllOf, members...)
}

// NewDiscriminator creates a discriminator with the given mode.
func NewDiscriminator(mode Mode, members ...Node) (*Discriminator, error) {
	if mode.Keyword() == "" {
		return nil, &ConstructionError{
			Node:     KindDiscriminator.String(),
			Field:    "mode",
			Value:    int(mode),
			Expected: []string{"oneOf", "anyOf", "allOf"},
			Message:  "unknown composition mode",
		}
	}
	if len(members) == 0 {
		return nil, constructionError(KindDiscriminator, mode.Keyword(), nil, "at least one member is required")
	}
	for i, m := range members {
		if m == nil {
			return nil, constructionError(KindDiscriminator, mode.Keyword(), i, "member must not be nil")
		}
		if mode == AllOf && m.Kind().IsPrimitive() {
			return nil, constructionError(KindDiscriminator, "allOf", m.Kind().String(), "allOf members must not be primitives")
		}
	}
	return &Discriminator{mode: mode, members: slices.Clone(members)}, nil
}

func (d *Discriminator) node() {}

// Kind returns KindDiscriminator.
func (d *Discriminator) Kind() Kind { return KindDiscriminator }

// IsNullable reports whether null is accepted.
func (d *Discriminator) IsNullable() bool { return d.nullable }

// Description returns the description.
func (d *Discriminator) Description() string { return d.description }

// Mode returns the composition mode.
func (d *Discriminator) Mode() Mode { return d.mode }

// Members returns the member schemas in declaration order.
func (d *Discriminator) Members() []Node { return slices.Clone(d.members) }

// MarshalJSON encodes the discriminator as an OpenAPI schema object.
func (d *Discriminator) MarshalJSON() ([]byte, error) { return marshalNode(d) }

// MarshalYAML encodes the discriminator as an OpenAPI schema object.
func (d *Discriminator) MarshalYAML() (any, error) { return marshalNodeYAML(d) }

// AsNullable returns a copy that accepts null.
func (d *Discriminator) AsNullable() *Discriminator {
	c := *d
	c.members = slices.Clone(d.members)
	c.nullable = true
	return &c
}

// WithDescription returns a copy with the description set.
func (d *Discriminator) WithDescription(s string) *Discriminator {
	c := *d
	c.members = slices.Clone(d.members)
	c.description = s
	return &c
}
