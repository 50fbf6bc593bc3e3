package schema

import (
	"math"
	"slices"

	"github.com/vitalvas/apicontract/format"
)

// validFormats lists the formats accepted for each primitive kind.
//
// See: https://spec.openapis.org/oas/v3.0.3#data-types
var validFormats = map[Kind][]format.Name{
	KindInteger: {format.Int32, format.Int64},
	KindNumber:  {format.Float, format.Double},
	KindString: {
		format.Email, format.UUID, format.URL, format.Date, format.DateTime,
		format.Time, format.Regex, format.Byte, format.Binary, format.Password,
		format.Hostname,
	},
	KindBoolean: nil,
}

// ValidFormats returns the formats accepted for the given primitive kind.
func ValidFormats(k Kind) []format.Name {
	return slices.Clone(validFormats[k])
}

// Primitive is an integer, number, string or boolean schema.
//
// See: https://spec.openapis.org/oas/v3.0.3#data-types
type Primitive struct {
	kind        Kind
	format      format.Name
	enum        []string
	minimum     *float64
	maximum     *float64
	minLength   *int
	maxLength   *int
	nullable    bool
	description string
	example     any
}

// PrimitiveOption configures a Primitive at construction time.
type PrimitiveOption func(*Primitive)

// Format sets the value format.
func Format(f format.Name) PrimitiveOption {
	return func(p *Primitive) { p.format = f }
}

// Enum restricts a string to the given values.
func Enum(values ...string) PrimitiveOption {
	return func(p *Primitive) {
		p.enum = append([]string{}, values...)
	}
}

// Minimum sets the inclusive lower bound of a numeric value.
func Minimum(v float64) PrimitiveOption {
	return func(p *Primitive) { p.minimum = &v }
}

// Maximum sets the inclusive upper bound of a numeric value.
func Maximum(v float64) PrimitiveOption {
	return func(p *Primitive) { p.maximum = &v }
}

// MinLength sets the minimum string length in characters.
func MinLength(n int) PrimitiveOption {
	return func(p *Primitive) { p.minLength = &n }
}

// MaxLength sets the maximum string length in characters.
func MaxLength(n int) PrimitiveOption {
	return func(p *Primitive) { p.maxLength = &n }
}

// Nullable marks the primitive as accepting null.
func Nullable() PrimitiveOption {
	return func(p *Primitive) { p.nullable = true }
}

// Describe sets the description.
func Describe(s string) PrimitiveOption {
	return func(p *Primitive) { p.description = s }
}

// Example sets an example value emitted in the document.
func Example(v any) PrimitiveOption {
	return func(p *Primitive) { p.example = v }
}

// NewInteger creates an integer schema.
func NewInteger(opts ...PrimitiveOption) (*Primitive, error) {
	return newPrimitive(KindInteger, opts)
}

// NewNumber creates a number schema.
func NewNumber(opts ...PrimitiveOption) (*Primitive, error) {
	return newPrimitive(KindNumber, opts)
}

// NewString creates a string schema.
func NewString(opts ...PrimitiveOption) (*Primitive, error) {
	return newPrimitive(KindString, opts)
}

// NewBoolean creates a boolean schema.
func NewBoolean(opts ...PrimitiveOption) (*Primitive, error) {
	return newPrimitive(KindBoolean, opts)
}

// NewPrimitive creates a primitive schema of the given kind.
func NewPrimitive(kind Kind, opts ...PrimitiveOption) (*Primitive, error) {
	if !kind.IsPrimitive() {
		return nil, constructionError(kind, "type", kind.String(), "not a primitive kind")
	}
	return newPrimitive(kind, opts)
}

func newPrimitive(kind Kind, opts []PrimitiveOption) (*Primitive, error) {
	p := &Primitive{kind: kind}
	for _, opt := range opts {
		opt(p)
	}
	if err := p.check(); err != nil {
		return nil, err
	}
	return p, nil
}

// check validates the local invariants of the primitive.
func (p *Primitive) check() error {
	if p.format != "" {
		allowed := validFormats[p.kind]
		if !slices.Contains(allowed, p.format) {
			err := constructionError(p.kind, "format", string(p.format), "format is not valid for this type")
			for _, f := range allowed {
				err.Expected = append(err.Expected, string(f))
			}
			return err
		}
	}

	if p.enum != nil {
		if p.kind != KindString {
			return constructionError(p.kind, "enum", nil, "enum is only supported on strings")
		}
		if len(p.enum) == 0 {
			return constructionError(p.kind, "enum", nil, "enum must not be empty")
		}
		if p.format != "" {
			return constructionError(p.kind, "enum", nil, "enum and format are mutually exclusive")
		}
	}

	if p.minimum != nil || p.maximum != nil {
		if p.kind != KindInteger && p.kind != KindNumber {
			return constructionError(p.kind, "minimum", nil, "bounds are only supported on numeric types")
		}
		if p.minimum != nil && math.IsNaN(*p.minimum) {
			return constructionError(p.kind, "minimum", *p.minimum, "bound must be a number")
		}
		if p.maximum != nil && math.IsNaN(*p.maximum) {
			return constructionError(p.kind, "maximum", *p.maximum, "bound must be a number")
		}
		if p.minimum != nil && p.maximum != nil && *p.minimum > *p.maximum {
			return constructionError(p.kind, "minimum", *p.minimum, "minimum must not exceed maximum")
		}
	}

	if p.minLength != nil || p.maxLength != nil {
		if p.kind != KindString {
			return constructionError(p.kind, "minLength", nil, "length limits are only supported on strings")
		}
		if p.minLength != nil && *p.minLength < 0 {
			return constructionError(p.kind, "minLength", *p.minLength, "length must not be negative")
		}
		if p.maxLength != nil && *p.maxLength < 0 {
			return constructionError(p.kind, "maxLength", *p.maxLength, "length must not be negative")
		}
		if p.minLength != nil && p.maxLength != nil && *p.minLength > *p.maxLength {
			return constructionError(p.kind, "minLength", *p.minLength, "minLength must not exceed maxLength")
		}
	}

	return nil
}

func (p *Primitive) node() {}

// Kind returns the primitive kind.
func (p *Primitive) Kind() Kind { return p.kind }

// IsNullable reports whether null is accepted.
func (p *Primitive) IsNullable() bool { return p.nullable }

// Description returns the description.
func (p *Primitive) Description() string { return p.description }

// Format returns the value format, or "" when unset.
func (p *Primitive) Format() format.Name { return p.format }

// Enum returns a copy of the allowed values, or nil when unrestricted.
func (p *Primitive) Enum() []string { return slices.Clone(p.enum) }

// HasEnum reports whether the primitive restricts values to an enum.
func (p *Primitive) HasEnum() bool { return p.enum != nil }

// Minimum returns the inclusive lower bound, if set.
func (p *Primitive) Minimum() (float64, bool) { return derefFloat(p.minimum) }

// Maximum returns the inclusive upper bound, if set.
func (p *Primitive) Maximum() (float64, bool) { return derefFloat(p.maximum) }

// MinLength returns the minimum length, if set.
func (p *Primitive) MinLength() (int, bool) { return derefInt(p.minLength) }

// MaxLength returns the maximum length, if set.
func (p *Primitive) MaxLength() (int, bool) { return derefInt(p.maxLength) }

// Example returns the example value, if any.
func (p *Primitive) Example() any { return p.example }

// MarshalJSON encodes the primitive as an OpenAPI schema object.
func (p *Primitive) MarshalJSON() ([]byte, error) { return marshalNode(p) }

// MarshalYAML encodes the primitive as an OpenAPI schema object.
func (p *Primitive) MarshalYAML() (any, error) { return marshalNodeYAML(p) }

func (p *Primitive) clone() *Primitive {
	c := *p
	c.enum = slices.Clone(p.enum)
	return &c
}

// with returns a modified copy after re-checking invariants.
func (p *Primitive) with(opt PrimitiveOption) (*Primitive, error) {
	c := p.clone()
	opt(c)
	if err := c.check(); err != nil {
		return nil, err
	}
	return c, nil
}

// WithDescription returns a copy with the description set.
func (p *Primitive) WithDescription(s string) *Primitive {
	c := p.clone()
	c.description = s
	return c
}

// AsNullable returns a copy that accepts null.
func (p *Primitive) AsNullable() *Primitive {
	c := p.clone()
	c.nullable = true
	return c
}

// WithExample returns a copy with the example set.
func (p *Primitive) WithExample(v any) *Primitive {
	c := p.clone()
	c.example = v
	return c
}

// WithFormat returns a copy with the format set.
func (p *Primitive) WithFormat(f format.Name) (*Primitive, error) {
	return p.with(Format(f))
}

// WithEnum returns a copy restricted to the given values.
func (p *Primitive) WithEnum(values ...string) (*Primitive, error) {
	return p.with(Enum(values...))
}

// WithMinimum returns a copy with the lower bound set.
func (p *Primitive) WithMinimum(v float64) (*Primitive, error) {
	return p.with(Minimum(v))
}

// WithMaximum returns a copy with the upper bound set.
func (p *Primitive) WithMaximum(v float64) (*Primitive, error) {
	return p.with(Maximum(v))
}

// WithMinLength returns a copy with the minimum length set.
func (p *Primitive) WithMinLength(n int) (*Primitive, error) {
	return p.with(MinLength(n))
}

// WithMaxLength returns a copy with the maximum length set.
func (p *Primitive) WithMaxLength(n int) (*Primitive, error) {
	return p.with(MaxLength(n))
}

func derefFloat(p *float64) (float64, bool) {
	if p == nil {
		return 0, false
	}
	return *p, true
}

func derefInt(p *int) (int, bool) {
	if p == nil {
		return 0, false
	}
	return *p, true
}
