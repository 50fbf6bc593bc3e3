package schema

import (
	"fmt"

	"github.com/iancoleman/orderedmap"
)

// DocumentForm converts a node into its OpenAPI 3.0.3 schema object. Keys are
// emitted in a fixed order and unset fields are omitted rather than written as
// null or empty values, so the encoded form is stable across builds.
//
// See: https://spec.openapis.org/oas/v3.0.3#schema-object
func DocumentForm(n Node) *orderedmap.OrderedMap {
	out := orderedmap.New()
	out.SetEscapeHTML(false)

	switch v := n.(type) {
	case *Reference:
		out.Set("$ref", v.Ref())

	case *Primitive:
		out.Set("type", v.kind.String())
		if v.format != "" {
			out.Set("format", string(v.format))
		}
		setCommon(out, v.description, v.nullable)
		if v.enum != nil {
			out.Set("enum", v.Enum())
		}
		if v.minimum != nil {
			out.Set("minimum", *v.minimum)
		}
		if v.maximum != nil {
			out.Set("maximum", *v.maximum)
		}
		if v.minLength != nil {
			out.Set("minLength", *v.minLength)
		}
		if v.maxLength != nil {
			out.Set("maxLength", *v.maxLength)
		}
		if v.example != nil {
			out.Set("example", v.example)
		}

	case *Array:
		out.Set("type", "array")
		setCommon(out, v.description, v.nullable)
		out.Set("items", DocumentForm(v.items))
		if v.uniqueItems {
			out.Set("uniqueItems", true)
		}

	case *Map:
		out.Set("type", "object")
		setCommon(out, v.description, v.nullable)
		out.Set("additionalProperties", DocumentForm(v.values))

	case *Object:
		out.Set("type", "object")
		setCommon(out, v.description, v.nullable)
		props := orderedmap.New()
		props.SetEscapeHTML(false)
		for _, p := range v.properties {
			props.Set(p.Name, DocumentForm(p.Schema))
		}
		out.Set("properties", props)
		if len(v.required) > 0 {
			out.Set("required", v.Required())
		}

	case *Discriminator:
		setCommon(out, v.description, v.nullable)
		members := make([]*orderedmap.OrderedMap, len(v.members))
		for i, m := range v.members {
			members[i] = DocumentForm(m)
		}
		out.Set(v.mode.Keyword(), members)

	default:
		panic(fmt.Sprintf("schema: unknown node type %T", n))
	}

	return out
}

func setCommon(out *orderedmap.OrderedMap, description string, nullable bool) {
	if description != "" {
		out.Set("description", description)
	}
	if nullable {
		out.Set("nullable", true)
	}
}
