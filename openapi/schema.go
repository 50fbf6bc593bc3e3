package openapi

import (
	"errors"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/vitalvas/apicontract/components"
	"github.com/vitalvas/apicontract/format"
	"github.com/vitalvas/apicontract/schema"
)

// Exampler can be implemented by types mapped to a primitive schema to
// provide the "example" value of that schema.
//
//	func (s Status) OpenAPIExample() any {
//	    return "active"
//	}
//
// See: https://spec.openapis.org/oas/v3.0.3#schema-object (example)
type Exampler interface {
	OpenAPIExample() any
}

var (
	timeType = reflect.TypeFor[time.Time]()
	uuidType = reflect.TypeFor[uuid.UUID]()
)

// SchemaGenerator converts Go types to schema nodes and collects named
// struct types into a component registry, referencing them by name.
//
// See: https://spec.openapis.org/oas/v3.0.3#schema-object
// See: https://spec.openapis.org/oas/v3.0.3#components-object (schemas)
type SchemaGenerator struct {
	registry  *components.Registry
	visited   map[reflect.Type]bool
	typeNames map[reflect.Type]string // type -> chosen schema name
	nameTypes map[string]reflect.Type // schema name -> type that claimed it
}

// NewSchemaGenerator creates a new schema generator.
func NewSchemaGenerator() *SchemaGenerator {
	return &SchemaGenerator{
		registry:  components.New(),
		visited:   make(map[reflect.Type]bool),
		typeNames: make(map[reflect.Type]string),
		nameTypes: make(map[string]reflect.Type),
	}
}

// Registry returns the component schemas generated so far.
func (g *SchemaGenerator) Registry() *components.Registry {
	return g.registry
}

// Generate produces a schema node for the given Go value. Named struct types
// are stored in the generator's registry and referenced by name.
func (g *SchemaGenerator) Generate(v any) (schema.Node, error) {
	if v == nil {
		return nil, &SchemaError{Type: "nil", Message: "cannot generate a schema for nil"}
	}
	return g.generateType(reflect.TypeOf(v))
}

// generateType produces a node for the given Go type, using a reference for
// named struct types and inline schemas for everything else.
func (g *SchemaGenerator) generateType(t reflect.Type) (schema.Node, error) {
	nullable := false
	if t.Kind() == reflect.Pointer {
		nullable = true
		t = t.Elem()
	}

	if t.Kind() == reflect.Struct && t != timeType {
		if name := g.schemaName(t); name != "" {
			if !g.visited[t] {
				// Marked before generation so self-referencing types terminate.
				g.visited[t] = true
				obj, err := g.generateStructSchema(t)
				if err != nil {
					return nil, err
				}
				if g.registry, err = g.registry.InsertSchema(name, obj); err != nil {
					return nil, err
				}
			}

			ref, err := schema.NewReference(name)
			if err != nil {
				return nil, &SchemaError{Type: t.String(), Message: "invalid component name", Err: err}
			}
			if nullable {
				// A reference cannot carry nullable, so it is wrapped.
				wrapped, err := schema.NewAllOf(ref)
				if err != nil {
					return nil, err
				}
				return wrapped.AsNullable(), nil
			}
			return ref, nil
		}
	}

	n, err := g.generateInlineType(t)
	if err != nil {
		return nil, err
	}
	if nullable {
		n = asNullable(n)
	}
	return n, nil
}

// generateInlineType maps Go primitive and composite types to schema nodes.
//
// See: https://spec.openapis.org/oas/v3.0.3#data-types
func (g *SchemaGenerator) generateInlineType(t reflect.Type) (schema.Node, error) {
	var (
		n   schema.Node
		err error
	)

	switch {
	case t == timeType:
		n, err = schema.NewString(schema.Format(format.DateTime))
	case t == uuidType:
		n, err = schema.NewString(schema.Format(format.UUID))
	default:
		switch t.Kind() {
		case reflect.Bool:
			n, err = schema.NewBoolean()

		case reflect.Int8, reflect.Int16, reflect.Int32, reflect.Uint8, reflect.Uint16:
			n, err = schema.NewInteger(schema.Format(format.Int32))

		case reflect.Int, reflect.Int64, reflect.Uint, reflect.Uint32, reflect.Uint64:
			n, err = schema.NewInteger(schema.Format(format.Int64))

		case reflect.Float32:
			n, err = schema.NewNumber(schema.Format(format.Float))

		case reflect.Float64:
			n, err = schema.NewNumber(schema.Format(format.Double))

		case reflect.String:
			n, err = schema.NewString()

		case reflect.Slice, reflect.Array:
			if t.Kind() == reflect.Slice && t.Elem().Kind() == reflect.Uint8 {
				n, err = schema.NewString(schema.Format(format.Byte))
				break
			}
			items, itemErr := g.generateType(t.Elem())
			if itemErr != nil {
				return nil, itemErr
			}
			n, err = schema.NewArray(items)

		case reflect.Map:
			if t.Key().Kind() != reflect.String {
				return nil, &SchemaError{Type: t.String(), Message: "map keys must be strings"}
			}
			values, valErr := g.generateType(t.Elem())
			if valErr != nil {
				return nil, valErr
			}
			n, err = schema.NewMap(values)

		case reflect.Struct:
			return g.generateStructSchema(t)

		default:
			return nil, &SchemaError{Type: t.String(), Message: "unsupported kind " + t.Kind().String()}
		}
	}
	if err != nil {
		return nil, &SchemaError{Type: t.String(), Message: "cannot build schema", Err: err}
	}

	if p, ok := n.(*schema.Primitive); ok {
		if ex, ok := reflect.Zero(t).Interface().(Exampler); ok {
			n = p.WithExample(ex.OpenAPIExample())
		}
	}
	return n, nil
}

// structFields accumulates properties while walking a struct and the
// structs embedded in it.
type structFields struct {
	props    []schema.Property
	required []string
}

// generateStructSchema builds an object schema from struct fields in
// declaration order. Structs without exported fields cannot be expressed.
//
// See: https://spec.openapis.org/oas/v3.0.3#schema-object (properties, required)
func (g *SchemaGenerator) generateStructSchema(t reflect.Type) (schema.Node, error) {
	var fields structFields
	if err := g.collectFields(t, &fields, false); err != nil {
		return nil, err
	}
	if len(fields.props) == 0 {
		return nil, &SchemaError{Type: t.String(), Message: "struct has no exported fields"}
	}

	obj, err := schema.NewObject(fields.props...)
	if err != nil {
		return nil, &SchemaError{Type: t.String(), Message: "cannot build object", Err: err}
	}
	if len(fields.required) > 0 {
		if obj, err = obj.WithRequired(fields.required...); err != nil {
			return nil, &SchemaError{Type: t.String(), Message: "cannot build object", Err: err}
		}
	}
	return obj, nil
}

// collectFields recursively collects struct fields. When allOptional is true,
// all fields are treated as optional regardless of their json tags. This is
// used for pointer-embedded structs where the entire embedded struct can be
// nil and thus all its fields may be absent.
func (g *SchemaGenerator) collectFields(t reflect.Type, out *structFields, allOptional bool) error {
	for i := range t.NumField() {
		field := t.Field(i)

		if !field.IsExported() {
			continue
		}

		// encoding/json treats an anonymous field with a tag name as a
		// regular named field, not inlined.
		if field.Anonymous {
			jsonName, _ := parseJSONTag(field.Tag.Get("json"))
			if jsonName == "" {
				ft := field.Type
				isPtr := ft.Kind() == reflect.Pointer
				if isPtr {
					ft = ft.Elem()
				}
				if ft.Kind() == reflect.Struct {
					if err := g.collectFields(ft, out, allOptional || isPtr); err != nil {
						return err
					}
					continue
				}
			}
		}

		jsonTag := field.Tag.Get("json")
		if jsonTag == "-" {
			continue
		}

		// Interface values have no schema in the model.
		if field.Type.Kind() == reflect.Interface {
			continue
		}

		name, opts := parseJSONTag(jsonTag)
		if name == "" {
			name = field.Name
		}

		n, err := g.generateType(field.Type)
		if err != nil {
			return err
		}

		// The encoding/json ",string" option encodes numeric and boolean
		// values as JSON strings.
		if opts.stringEncode {
			n, err = stringEncoded(n)
			if err != nil {
				return &SchemaError{Type: t.String(), Field: field.Name, Message: "invalid string encoding", Err: err}
			}
		}

		if n, err = applyOpenAPITag(n, field.Tag.Get("openapi")); err != nil {
			return &SchemaError{Type: t.String(), Field: field.Name, Message: "invalid openapi tag", Err: err}
		}

		out.props = append(out.props, schema.Prop(name, n))
		if !opts.omitempty && !allOptional {
			out.required = append(out.required, name)
		}
	}
	return nil
}

type jsonTagOpts struct {
	omitempty    bool
	stringEncode bool // encoding/json ",string" option
}

func parseJSONTag(tag string) (string, jsonTagOpts) {
	if tag == "" {
		return "", jsonTagOpts{}
	}
	name, rest, _ := strings.Cut(tag, ",")
	return name, jsonTagOpts{
		omitempty:    strings.Contains(rest, "omitempty") || strings.Contains(rest, "omitzero"),
		stringEncode: strings.Contains(rest, "string"),
	}
}

var errTagNotApplicable = errors.New("key does not apply to this schema")

// applyOpenAPITag parses the `openapi` struct tag and applies constraints to
// the node. Keys that do not apply to the node kind are rejected.
//
//	Name string `json:"name" openapi:"description=Pet name,minLength=1,maxLength=64"`
//	Kind string `json:"kind" openapi:"enum=cat|dog"`
//
// See: https://spec.openapis.org/oas/v3.0.3#schema-object
func applyOpenAPITag(n schema.Node, tag string) (schema.Node, error) {
	if tag == "" {
		return n, nil
	}

	for part := range strings.SplitSeq(tag, ",") {
		key, value, _ := strings.Cut(part, "=")
		key = strings.TrimSpace(key)
		value = strings.TrimSpace(value)

		var err error
		switch key {
		case "description":
			n, err = withDescription(n, value)
		case "nullable":
			n = asNullable(n)
		case "uniqueItems":
			a, ok := n.(*schema.Array)
			if !ok {
				return nil, tagError(key, errTagNotApplicable)
			}
			n = a.WithUniqueItems()
		default:
			p, ok := n.(*schema.Primitive)
			if !ok {
				return nil, tagError(key, errTagNotApplicable)
			}
			n, err = applyPrimitiveTag(p, key, value)
		}
		if err != nil {
			return nil, tagError(key, err)
		}
	}
	return n, nil
}

func applyPrimitiveTag(p *schema.Primitive, key, value string) (*schema.Primitive, error) {
	switch key {
	case "example":
		return p.WithExample(parseExampleValue(p, value)), nil
	case "format":
		return p.WithFormat(format.Name(value))
	case "enum":
		return p.WithEnum(strings.Split(value, "|")...)
	case "minimum", "maximum":
		v, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return nil, err
		}
		if key == "minimum" {
			return p.WithMinimum(v)
		}
		return p.WithMaximum(v)
	case "minLength", "maxLength":
		v, err := strconv.Atoi(value)
		if err != nil {
			return nil, err
		}
		if key == "minLength" {
			return p.WithMinLength(v)
		}
		return p.WithMaxLength(v)
	}
	return nil, errors.New("unknown key")
}

func tagError(key string, err error) error {
	return &schema.ConstructionError{Node: "tag", Field: key, Message: err.Error()}
}

// parseExampleValue converts a string tag value to the Go type matching the
// primitive kind.
func parseExampleValue(p *schema.Primitive, value string) any {
	switch p.Kind() {
	case schema.KindInteger:
		if v, err := strconv.ParseInt(value, 10, 64); err == nil {
			return v
		}
	case schema.KindNumber:
		if v, err := strconv.ParseFloat(value, 64); err == nil {
			return v
		}
	case schema.KindBoolean:
		if v, err := strconv.ParseBool(value); err == nil {
			return v
		}
	}
	return value
}

// stringEncoded replaces a numeric or boolean primitive with a string,
// keeping nullability and description.
func stringEncoded(n schema.Node) (schema.Node, error) {
	p, ok := n.(*schema.Primitive)
	if !ok || p.Kind() == schema.KindString {
		return n, nil
	}
	opts := []schema.PrimitiveOption{schema.Describe(p.Description())}
	if p.IsNullable() {
		opts = append(opts, schema.Nullable())
	}
	return schema.NewString(opts...)
}

func asNullable(n schema.Node) schema.Node {
	switch v := n.(type) {
	case *schema.Primitive:
		return v.AsNullable()
	case *schema.Array:
		return v.AsNullable()
	case *schema.Map:
		return v.AsNullable()
	case *schema.Object:
		return v.AsNullable()
	case *schema.Discriminator:
		return v.AsNullable()
	case *schema.Reference:
		wrapped := schema.Must(schema.NewAllOf(v))
		return wrapped.AsNullable()
	}
	return n
}

func withDescription(n schema.Node, s string) (schema.Node, error) {
	switch v := n.(type) {
	case *schema.Primitive:
		return v.WithDescription(s), nil
	case *schema.Array:
		return v.WithDescription(s), nil
	case *schema.Map:
		return v.WithDescription(s), nil
	case *schema.Object:
		return v.WithDescription(s), nil
	case *schema.Discriminator:
		return v.WithDescription(s), nil
	}
	return nil, errTagNotApplicable
}

// schemaName returns a unique schema name for the given type. If two types
// from different packages share the same simple name (e.g., models.User and
// api.User), the second type gets a qualified name using its package's last
// path segment as a prefix (e.g., "ApiUser"). When the prefixed name still
// collides, a numeric suffix is appended (e.g., "ApiUser2").
//
// See: https://spec.openapis.org/oas/v3.0.3#components-object (schemas)
func (g *SchemaGenerator) schemaName(t reflect.Type) string {
	simple := sanitizeSchemaName(t.Name())
	if simple == "" || t.PkgPath() == "" {
		return ""
	}

	if name, ok := g.typeNames[t]; ok {
		return name
	}

	name := simple
	if existing, ok := g.nameTypes[name]; ok && existing != t {
		name = pkgPrefix(t.PkgPath()) + simple
		if existing, ok := g.nameTypes[name]; ok && existing != t {
			base := name
			for i := 2; ; i++ {
				candidate := base + strconv.Itoa(i)
				if _, ok := g.nameTypes[candidate]; !ok {
					name = candidate
					break
				}
			}
		}
	}

	g.typeNames[t] = name
	g.nameTypes[name] = t
	return name
}

// pkgPrefix extracts the last segment of a Go package path and capitalizes
// it for use as a schema name prefix (e.g., "net/http" -> "Http").
func pkgPrefix(pkgPath string) string {
	if idx := strings.LastIndexByte(pkgPath, '/'); idx >= 0 {
		pkgPath = pkgPath[idx+1:]
	}
	if len(pkgPath) == 0 {
		return ""
	}
	pkgPath = strings.ReplaceAll(pkgPath, "-", "_")
	pkgPath = strings.ReplaceAll(pkgPath, ".", "_")
	return strings.ToUpper(pkgPath[:1]) + pkgPath[1:]
}

// sanitizeSchemaName cleans up Go type names for use as component keys.
// Generic type names like "ResponseData[User]" are converted to
// "ResponseDataUser", and "ResponseData[[]User]" becomes
// "ResponseDataUserList". Package paths in type parameters are stripped.
func sanitizeSchemaName(name string) string {
	idx := strings.IndexByte(name, '[')
	if idx < 0 {
		return name
	}

	base := name[:idx]
	inner := name[idx+1 : len(name)-1]

	isList := strings.HasPrefix(inner, "[]")
	inner = strings.TrimPrefix(inner, "[]")

	// "github.com/foo/bar.User" -> "User".
	if dot := strings.LastIndexByte(inner, '.'); dot >= 0 {
		inner = inner[dot+1:]
	}

	result := base + inner
	if isList {
		result += "List"
	}

	return result
}
