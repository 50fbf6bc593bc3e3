package openapi

import (
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/vitalvas/apicontract/components"
	"github.com/vitalvas/apicontract/format"
	"github.com/vitalvas/apicontract/schema"
)

// schemaKeywords lists the schema object keywords the model can express.
var schemaKeywords = map[string]bool{
	"$ref": true, "type": true, "format": true, "description": true,
	"nullable": true, "enum": true, "minimum": true, "maximum": true,
	"minLength": true, "maxLength": true, "items": true, "uniqueItems": true,
	"properties": true, "required": true, "additionalProperties": true,
	"oneOf": true, "anyOf": true, "allOf": true, "example": true,
}

// ParseError reports a document node that cannot be loaded. Location is a
// dotted path such as "components.schemas.Pet.properties.name".
type ParseError struct {
	Location string
	Line     int
	Message  string
	Err      error
}

// Error returns a human-readable error message.
func (e *ParseError) Error() string {
	msg := e.Location
	if e.Line > 0 {
		msg += fmt.Sprintf(" (line %d)", e.Line)
	}
	msg += ": " + e.Message
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Is reports whether target matches this error type.
func (e *ParseError) Is(target error) bool {
	return target == ErrInvalidSchema
}

// Unwrap returns the underlying error.
func (e *ParseError) Unwrap() error {
	return e.Err
}

// ParsedDocument is the part of an OpenAPI document that is loaded: its
// version, info object and component schemas.
type ParsedDocument struct {
	OpenAPI  string
	Info     Info
	Registry *components.Registry
}

// ParseDocument loads an OpenAPI 3.0.x document encoded as YAML or JSON and
// converts components.schemas into a registry. Any schema that cannot be
// expressed, and any reference that does not resolve, fails the load.
func ParseDocument(data []byte) (*ParsedDocument, error) {
	root, err := parseRoot(data)
	if err != nil {
		return nil, err
	}

	out := &ParsedDocument{Registry: components.New()}

	version := mappingValue(root, "openapi")
	if version == nil || version.Kind != yaml.ScalarNode {
		return nil, &ParseError{Location: "openapi", Message: "version is required"}
	}
	if !strings.HasPrefix(version.Value, "3.0.") {
		return nil, &ParseError{Location: "openapi", Line: version.Line, Message: fmt.Sprintf("unsupported version %q", version.Value)}
	}
	out.OpenAPI = version.Value

	if info := mappingValue(root, "info"); info != nil {
		if err := info.Decode(&out.Info); err != nil {
			return nil, &ParseError{Location: "info", Line: info.Line, Message: "invalid info object", Err: err}
		}
	}

	comps := mappingValue(root, "components")
	if comps == nil {
		return out, nil
	}
	schemas := mappingValue(comps, "schemas")
	if schemas == nil {
		return out, nil
	}

	if out.Registry, err = parseSchemaMap(schemas, "components.schemas"); err != nil {
		return nil, err
	}
	return out, nil
}

// ParseSchemas loads a YAML or JSON mapping of component names to schema
// objects into a registry.
func ParseSchemas(data []byte) (*components.Registry, error) {
	root, err := parseRoot(data)
	if err != nil {
		return nil, err
	}
	return parseSchemaMap(root, "schemas")
}

func parseRoot(data []byte) (*yaml.Node, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, &ParseError{Location: "document", Message: "malformed document", Err: err}
	}
	if doc.Kind != yaml.DocumentNode || len(doc.Content) == 0 {
		return nil, &ParseError{Location: "document", Message: "empty document"}
	}
	root := unalias(doc.Content[0])
	if root.Kind != yaml.MappingNode {
		return nil, &ParseError{Location: "document", Line: root.Line, Message: "document must be a mapping"}
	}
	return root, nil
}

func parseSchemaMap(n *yaml.Node, at string) (*components.Registry, error) {
	n = unalias(n)
	if n.Kind != yaml.MappingNode {
		return nil, &ParseError{Location: at, Line: n.Line, Message: "must be a mapping"}
	}

	reg := components.New()
	for i := 0; i+1 < len(n.Content); i += 2 {
		name := n.Content[i].Value
		node, err := convertSchema(n.Content[i+1], at+"."+name)
		if err != nil {
			return nil, err
		}
		if reg, err = reg.InsertSchema(name, node); err != nil {
			return nil, &ParseError{Location: at + "." + name, Line: n.Content[i].Line, Message: "cannot register schema", Err: err}
		}
	}

	if err := reg.Check(); err != nil {
		return nil, &ParseError{Location: at, Message: "invalid references", Err: err}
	}
	return reg, nil
}

// convertSchema converts one schema object into a node.
func convertSchema(n *yaml.Node, at string) (schema.Node, error) {
	n = unalias(n)
	if n.Kind != yaml.MappingNode {
		return nil, &ParseError{Location: at, Line: n.Line, Message: "schema must be a mapping"}
	}

	fields := make(map[string]*yaml.Node, len(n.Content)/2)
	for i := 0; i+1 < len(n.Content); i += 2 {
		key := n.Content[i].Value
		if !schemaKeywords[key] {
			return nil, &ParseError{Location: at, Line: n.Content[i].Line, Message: fmt.Sprintf("unsupported keyword %q", key)}
		}
		fields[key] = unalias(n.Content[i+1])
	}

	fail := func(msg string, err error) error {
		return &ParseError{Location: at, Line: n.Line, Message: msg, Err: err}
	}

	if ref, ok := fields["$ref"]; ok {
		if len(fields) > 1 {
			return nil, fail("$ref must not have sibling keywords", nil)
		}
		name, ok := strings.CutPrefix(ref.Value, schema.RefPrefix)
		if !ok {
			return nil, fail(fmt.Sprintf("unsupported reference %q", ref.Value), nil)
		}
		r, err := schema.NewReference(name)
		if err != nil {
			return nil, fail("invalid reference", err)
		}
		return r, nil
	}

	var (
		nullable    bool
		description string
	)
	if err := decodeField(fields, "nullable", &nullable); err != nil {
		return nil, fail("invalid nullable", err)
	}
	if err := decodeField(fields, "description", &description); err != nil {
		return nil, fail("invalid description", err)
	}

	node, err := convertShape(fields, at, fail)
	if err != nil {
		return nil, err
	}

	if description != "" {
		if node, err = withDescription(node, description); err != nil {
			return nil, fail("invalid description", err)
		}
	}
	if nullable {
		node = asNullable(node)
	}
	return node, nil
}

func convertShape(fields map[string]*yaml.Node, at string, fail func(string, error) error) (schema.Node, error) {
	var composition []schema.Mode
	for _, mode := range []schema.Mode{schema.OneOf, schema.AnyOf, schema.AllOf} {
		if _, ok := fields[mode.Keyword()]; ok {
			composition = append(composition, mode)
		}
	}

	typ := ""
	if t, ok := fields["type"]; ok {
		typ = t.Value
	}

	switch {
	case len(composition) > 1:
		return nil, fail("only one of oneOf, anyOf and allOf may be used", nil)
	case len(composition) == 1:
		if typ != "" {
			return nil, fail("type must not be combined with "+composition[0].Keyword(), nil)
		}
		return convertComposition(fields[composition[0].Keyword()], composition[0], at, fail)
	}

	switch typ {
	case "integer", "number", "string", "boolean":
		return convertPrimitive(fields, typ, fail)

	case "array":
		items, ok := fields["items"]
		if !ok {
			return nil, fail("array requires items", nil)
		}
		itemNode, err := convertSchema(items, at+".items")
		if err != nil {
			return nil, err
		}
		a, err := schema.NewArray(itemNode)
		if err != nil {
			return nil, fail("invalid array", err)
		}
		var unique bool
		if err := decodeField(fields, "uniqueItems", &unique); err != nil {
			return nil, fail("invalid uniqueItems", err)
		}
		if unique {
			a = a.WithUniqueItems()
		}
		return a, nil

	case "object":
		return convertObject(fields, at, fail)

	case "":
		return nil, fail("type is required", nil)
	}
	return nil, fail(fmt.Sprintf("unsupported type %q", typ), nil)
}

func convertComposition(list *yaml.Node, mode schema.Mode, at string, fail func(string, error) error) (schema.Node, error) {
	if list.Kind != yaml.SequenceNode {
		return nil, fail(mode.Keyword()+" must be a list", nil)
	}
	members := make([]schema.Node, 0, len(list.Content))
	for i, item := range list.Content {
		m, err := convertSchema(item, fmt.Sprintf("%s.%s[%d]", at, mode.Keyword(), i))
		if err != nil {
			return nil, err
		}
		members = append(members, m)
	}
	d, err := schema.NewDiscriminator(mode, members...)
	if err != nil {
		return nil, fail("invalid "+mode.Keyword(), err)
	}
	return d, nil
}

func convertPrimitive(fields map[string]*yaml.Node, typ string, fail func(string, error) error) (schema.Node, error) {
	var opts []schema.PrimitiveOption

	if f, ok := fields["format"]; ok {
		opts = append(opts, schema.Format(format.Name(f.Value)))
	}
	if e, ok := fields["enum"]; ok {
		if e.Kind != yaml.SequenceNode {
			return nil, fail("enum must be a list", nil)
		}
		values := make([]string, len(e.Content))
		for i, v := range e.Content {
			if v.Kind != yaml.ScalarNode || v.Tag != "!!str" {
				return nil, fail("enum values must be strings", nil)
			}
			values[i] = v.Value
		}
		opts = append(opts, schema.Enum(values...))
	}

	for key, opt := range map[string]func(float64) schema.PrimitiveOption{
		"minimum": schema.Minimum,
		"maximum": schema.Maximum,
	} {
		if _, ok := fields[key]; !ok {
			continue
		}
		var v float64
		if err := decodeField(fields, key, &v); err != nil {
			return nil, fail("invalid "+key, err)
		}
		opts = append(opts, opt(v))
	}
	for key, opt := range map[string]func(int) schema.PrimitiveOption{
		"minLength": schema.MinLength,
		"maxLength": schema.MaxLength,
	} {
		if _, ok := fields[key]; !ok {
			continue
		}
		var v int
		if err := decodeField(fields, key, &v); err != nil {
			return nil, fail("invalid "+key, err)
		}
		opts = append(opts, opt(v))
	}

	if ex, ok := fields["example"]; ok {
		var v any
		if err := ex.Decode(&v); err != nil {
			return nil, fail("invalid example", err)
		}
		opts = append(opts, schema.Example(v))
	}

	kind := map[string]schema.Kind{
		"integer": schema.KindInteger,
		"number":  schema.KindNumber,
		"string":  schema.KindString,
		"boolean": schema.KindBoolean,
	}[typ]

	p, err := schema.NewPrimitive(kind, opts...)
	if err != nil {
		return nil, fail("invalid "+typ, err)
	}
	return p, nil
}

func convertObject(fields map[string]*yaml.Node, at string, fail func(string, error) error) (schema.Node, error) {
	props, hasProps := fields["properties"]
	additional, hasAdditional := fields["additionalProperties"]

	switch {
	case hasProps && hasAdditional:
		return nil, fail("properties and additionalProperties are mutually exclusive", nil)

	case hasAdditional:
		if additional.Kind != yaml.MappingNode {
			return nil, fail("additionalProperties must be a schema", nil)
		}
		values, err := convertSchema(additional, at+".additionalProperties")
		if err != nil {
			return nil, err
		}
		m, err := schema.NewMap(values)
		if err != nil {
			return nil, fail("invalid map", err)
		}
		return m, nil

	case hasProps:
		if props.Kind != yaml.MappingNode {
			return nil, fail("properties must be a mapping", nil)
		}
		list := make([]schema.Property, 0, len(props.Content)/2)
		for i := 0; i+1 < len(props.Content); i += 2 {
			name := props.Content[i].Value
			n, err := convertSchema(props.Content[i+1], at+".properties."+name)
			if err != nil {
				return nil, err
			}
			list = append(list, schema.Prop(name, n))
		}
		obj, err := schema.NewObject(list...)
		if err != nil {
			return nil, fail("invalid object", err)
		}

		var required []string
		if err := decodeField(fields, "required", &required); err != nil {
			return nil, fail("invalid required", err)
		}
		if len(required) > 0 {
			if obj, err = obj.WithRequired(required...); err != nil {
				return nil, fail("invalid required", err)
			}
		}
		return obj, nil
	}

	return nil, fail("object requires properties or additionalProperties", nil)
}

func decodeField(fields map[string]*yaml.Node, key string, out any) error {
	n, ok := fields[key]
	if !ok {
		return nil
	}
	return n.Decode(out)
}

// mappingValue returns the value stored under key in a mapping node.
func mappingValue(n *yaml.Node, key string) *yaml.Node {
	n = unalias(n)
	if n.Kind != yaml.MappingNode {
		return nil
	}
	for i := 0; i+1 < len(n.Content); i += 2 {
		if n.Content[i].Value == key {
			return unalias(n.Content[i+1])
		}
	}
	return nil
}

func unalias(n *yaml.Node) *yaml.Node {
	for n.Kind == yaml.AliasNode && n.Alias != nil {
		n = n.Alias
	}
	return n
}
