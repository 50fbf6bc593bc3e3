package openapi

import (
	"maps"
	"net/http"
	"slices"
	"strconv"

	"github.com/vitalvas/apicontract/schema"
)

// operationMeta stores metadata collected via the fluent builder
// before the final spec is built. Fields correspond to the Operation Object.
//
// See: https://spec.openapis.org/oas/v3.0.3#operation-object
type operationMeta struct {
	operationID  string
	summary      string
	description  string
	tags         []string
	deprecated   bool
	parameters   []*Parameter
	security     []SecurityRequirement
	externalDocs *ExternalDocs
	servers      []Server

	requestContents      map[string]any                // contentType -> body
	requestDescription   string                        // request body description
	requestRequired      *bool                         // nil = default (true), non-nil = explicit
	responseContents     map[string]map[string]any     // statusKey -> contentType -> body
	responseDescriptions map[string]string             // statusKey -> custom description
	responseHeaders      map[string]map[string]*Header // statusKey -> headerName -> header
	responseLinks        map[string]map[string]*Link   // statusKey -> linkName -> link
}

// OperationBuilder provides a fluent API for attaching OpenAPI metadata
// to a registered method and path. It assembles an Operation Object.
//
// See: https://spec.openapis.org/oas/v3.0.3#operation-object
type OperationBuilder struct {
	method string
	path   string
	meta   *operationMeta
}

func newOperationBuilder(method, path string) *OperationBuilder {
	return &OperationBuilder{
		method: method,
		path:   path,
		meta: &operationMeta{
			requestContents:  make(map[string]any),
			responseContents: make(map[string]map[string]any),
		},
	}
}

// defaultKey is the Responses Object key that covers undeclared status codes.
const defaultKey = "default"

// setEntry stores v under key and name, allocating the maps on first use.
func setEntry[V any](m *map[string]map[string]V, key, name string, v V) {
	if *m == nil {
		*m = make(map[string]map[string]V)
	}
	if (*m)[key] == nil {
		(*m)[key] = make(map[string]V)
	}
	(*m)[key][name] = v
}

// setResponse registers body as the application/json content of the response
// at key. A nil body declares a response without content and drops any
// content registered before.
func (m *operationMeta) setResponse(key string, body any) {
	if body == nil {
		if m.responseContents == nil {
			m.responseContents = make(map[string]map[string]any)
		}
		m.responseContents[key] = nil
		return
	}
	setEntry(&m.responseContents, key, "application/json", body)
}

func (m *operationMeta) setDescription(key, desc string) {
	if m.responseDescriptions == nil {
		m.responseDescriptions = make(map[string]string)
	}
	m.responseDescriptions[key] = desc
}

// clone returns a deep copy of the collections in m, so that builders
// created from the same group defaults never share maps or slices.
func (m *operationMeta) clone() *operationMeta {
	out := *m
	out.tags = slices.Clone(m.tags)
	out.parameters = slices.Clone(m.parameters)
	out.servers = slices.Clone(m.servers)
	out.security = slices.Clone(m.security)
	out.requestContents = maps.Clone(m.requestContents)
	if out.requestContents == nil {
		out.requestContents = make(map[string]any)
	}
	out.responseContents = cloneNested(m.responseContents)
	if out.responseContents == nil {
		out.responseContents = make(map[string]map[string]any)
	}
	out.responseDescriptions = maps.Clone(m.responseDescriptions)
	out.responseHeaders = cloneNested(m.responseHeaders)
	out.responseLinks = cloneNested(m.responseLinks)
	return &out
}

func cloneNested[V any](m map[string]map[string]V) map[string]map[string]V {
	if m == nil {
		return nil
	}
	out := make(map[string]map[string]V, len(m))
	for k, inner := range m {
		out[k] = maps.Clone(inner)
	}
	return out
}

// OperationID sets the operation ID. Link targets refer to operations by it,
// so it must be unique within the document.
//
// See: https://spec.openapis.org/oas/v3.0.3#operation-object (operationId)
func (b *OperationBuilder) OperationID(id string) *OperationBuilder {
	b.meta.operationID = id
	return b
}

// Summary sets the operation summary.
//
// See: https://spec.openapis.org/oas/v3.0.3#operation-object (summary)
func (b *OperationBuilder) Summary(s string) *OperationBuilder {
	b.meta.summary = s
	return b
}

// Description sets the operation description.
//
// See: https://spec.openapis.org/oas/v3.0.3#operation-object (description)
func (b *OperationBuilder) Description(d string) *OperationBuilder {
	b.meta.description = d
	return b
}

// Tags adds one or more tags to the operation.
//
// See: https://spec.openapis.org/oas/v3.0.3#operation-object (tags)
func (b *OperationBuilder) Tags(tags ...string) *OperationBuilder {
	b.meta.tags = append(b.meta.tags, tags...)
	return b
}

// Deprecated marks the operation as deprecated.
//
// See: https://spec.openapis.org/oas/v3.0.3#operation-object (deprecated)
func (b *OperationBuilder) Deprecated() *OperationBuilder {
	b.meta.deprecated = true
	return b
}

// Request registers an application/json request body type for the operation.
// This is a shortcut for RequestContent("application/json", body).
//
// See: https://spec.openapis.org/oas/v3.0.3#request-body-object
func (b *OperationBuilder) Request(body any) *OperationBuilder {
	b.meta.requestContents["application/json"] = body
	return b
}

// RequestContent registers a request body with the given content type.
// The body can be a Go type (schema generated via reflection), a schema.Node
// for explicit schema control, or nil for a content type with no schema.
//
// See: https://spec.openapis.org/oas/v3.0.3#request-body-object
func (b *OperationBuilder) RequestContent(contentType string, body any) *OperationBuilder {
	b.meta.requestContents[contentType] = body
	return b
}

// RequestDescription sets the description for the request body.
//
// See: https://spec.openapis.org/oas/v3.0.3#request-body-object (description)
func (b *OperationBuilder) RequestDescription(desc string) *OperationBuilder {
	b.meta.requestDescription = desc
	return b
}

// RequestRequired sets whether the request body is required.
// By default, request bodies are required (true).
//
// See: https://spec.openapis.org/oas/v3.0.3#request-body-object (required)
func (b *OperationBuilder) RequestRequired(required bool) *OperationBuilder {
	b.meta.requestRequired = &required
	return b
}

// Response registers an application/json response type for the given HTTP
// status code. Pass nil body for responses with no content (e.g., 204).
//
// See: https://spec.openapis.org/oas/v3.0.3#responses-object
// See: https://spec.openapis.org/oas/v3.0.3#response-object
func (b *OperationBuilder) Response(statusCode int, body any) *OperationBuilder {
	b.meta.setResponse(strconv.Itoa(statusCode), body)
	return b
}

// ResponseContent registers a response with the given status code and content
// type. The body can be a Go type (schema generated via reflection), a
// schema.Node for explicit schema control, or nil for a content type with no
// schema.
//
// See: https://spec.openapis.org/oas/v3.0.3#response-object
func (b *OperationBuilder) ResponseContent(statusCode int, contentType string, body any) *OperationBuilder {
	setEntry(&b.meta.responseContents, strconv.Itoa(statusCode), contentType, body)
	return b
}

// DefaultResponse registers an application/json response for the "default"
// status key, which covers every status code without its own response.
//
// See: https://spec.openapis.org/oas/v3.0.3#responses-object (default)
func (b *OperationBuilder) DefaultResponse(body any) *OperationBuilder {
	b.meta.setResponse(defaultKey, body)
	return b
}

// DefaultResponseContent registers a response with the given content type
// for the "default" status key.
//
// See: https://spec.openapis.org/oas/v3.0.3#media-type-object
func (b *OperationBuilder) DefaultResponseContent(contentType string, body any) *OperationBuilder {
	setEntry(&b.meta.responseContents, defaultKey, contentType, body)
	return b
}

// ResponseHeader adds a header to the response for the given HTTP status code.
//
// See: https://spec.openapis.org/oas/v3.0.3#response-object (headers)
func (b *OperationBuilder) ResponseHeader(statusCode int, name string, h *Header) *OperationBuilder {
	setEntry(&b.meta.responseHeaders, strconv.Itoa(statusCode), name, h)
	return b
}

// ResponseLink adds a link to the response for the given HTTP status code.
// Build checks that the link target exists and that every parameter value
// fits the target parameter.
//
// See: https://spec.openapis.org/oas/v3.0.3#link-object
func (b *OperationBuilder) ResponseLink(statusCode int, name string, l *Link) *OperationBuilder {
	setEntry(&b.meta.responseLinks, strconv.Itoa(statusCode), name, l)
	return b
}

// DefaultResponseHeader adds a header to the default response.
func (b *OperationBuilder) DefaultResponseHeader(name string, h *Header) *OperationBuilder {
	setEntry(&b.meta.responseHeaders, defaultKey, name, h)
	return b
}

// DefaultResponseLink adds a link to the default response.
func (b *OperationBuilder) DefaultResponseLink(name string, l *Link) *OperationBuilder {
	setEntry(&b.meta.responseLinks, defaultKey, name, l)
	return b
}

// ResponseDescription overrides the description of a response, which
// otherwise is the HTTP status text (e.g., "OK", "Not Found").
//
// See: https://spec.openapis.org/oas/v3.0.3#response-object (description)
func (b *OperationBuilder) ResponseDescription(statusCode int, desc string) *OperationBuilder {
	b.meta.setDescription(strconv.Itoa(statusCode), desc)
	return b
}

// DefaultResponseDescription overrides the description of the default response.
func (b *OperationBuilder) DefaultResponseDescription(desc string) *OperationBuilder {
	b.meta.setDescription(defaultKey, desc)
	return b
}

// Parameter adds a custom parameter to the operation.
//
// See: https://spec.openapis.org/oas/v3.0.3#parameter-object
func (b *OperationBuilder) Parameter(param *Parameter) *OperationBuilder {
	b.meta.parameters = append(b.meta.parameters, param)
	return b
}

// QueryParam adds a query parameter with the given schema.
//
// See: https://spec.openapis.org/oas/v3.0.3#parameter-locations
func (b *OperationBuilder) QueryParam(name string, n schema.Node, required bool) *OperationBuilder {
	return b.Parameter(&Parameter{Name: name, In: InQuery, Required: required, Schema: n})
}

// HeaderParam adds a header parameter with the given schema.
//
// See: https://spec.openapis.org/oas/v3.0.3#parameter-locations
func (b *OperationBuilder) HeaderParam(name string, n schema.Node, required bool) *OperationBuilder {
	return b.Parameter(&Parameter{Name: name, In: InHeader, Required: required, Schema: n})
}

// Security sets operation-level security requirements.
// Call with no arguments to explicitly mark the operation as unauthenticated
// (overrides document-level security).
//
// See: https://spec.openapis.org/oas/v3.0.3#operation-object (security)
// See: https://spec.openapis.org/oas/v3.0.3#security-requirement-object
func (b *OperationBuilder) Security(reqs ...SecurityRequirement) *OperationBuilder {
	if reqs == nil {
		reqs = []SecurityRequirement{}
	}
	b.meta.security = reqs
	return b
}

// ExternalDocs sets external documentation for the operation.
//
// See: https://spec.openapis.org/oas/v3.0.3#external-documentation-object
func (b *OperationBuilder) ExternalDocs(url, description string) *OperationBuilder {
	b.meta.externalDocs = &ExternalDocs{URL: url, Description: description}
	return b
}

// Server adds a server override for the operation.
//
// See: https://spec.openapis.org/oas/v3.0.3#operation-object (servers)
func (b *OperationBuilder) Server(server Server) *OperationBuilder {
	b.meta.servers = append(b.meta.servers, server)
	return b
}

// mergeParameters combines auto-generated path parameters with custom
// parameters. Custom parameters with the same name+in override the
// auto-generated ones. Parameters not present in custom are kept from auto.
// OpenAPI identifies a parameter by its name and location (in).
//
// See: https://spec.openapis.org/oas/v3.0.3#operation-object (parameters)
func mergeParameters(auto, custom []*Parameter) []*Parameter {
	if len(auto) == 0 && len(custom) == 0 {
		return nil
	}

	// Index custom parameters by name+in for O(1) lookup.
	overrides := make(map[[2]string]struct{}, len(custom))
	for _, p := range custom {
		overrides[[2]string{p.Name, p.In}] = struct{}{}
	}

	// Keep auto parameters that are not overridden by custom.
	var merged []*Parameter
	for _, p := range auto {
		if _, ok := overrides[[2]string{p.Name, p.In}]; !ok {
			merged = append(merged, p)
		}
	}

	merged = append(merged, custom...)
	return merged
}

// resolveSchema returns a schema node for the given body value. If body is a
// schema.Node it is used directly; otherwise the schema generator produces one
// via reflection.
func resolveSchema(gen *SchemaGenerator, body any) (schema.Node, error) {
	if body == nil {
		return nil, nil
	}
	if n, ok := body.(schema.Node); ok {
		return n, nil
	}
	return gen.Generate(body)
}

// responseDescription returns a human-readable description for a response key.
//
// See: https://spec.openapis.org/oas/v3.0.3#response-object (description)
func responseDescription(key string) string {
	if key == defaultKey {
		return "Default response"
	}
	code, err := strconv.Atoi(key)
	if err == nil {
		if text := http.StatusText(code); text != "" {
			return text
		}
	}
	return key
}

// buildContent converts content-type keyed bodies into media type objects.
func buildContent(gen *SchemaGenerator, contents map[string]any) (map[string]*MediaType, error) {
	out := make(map[string]*MediaType, len(contents))
	for ct, body := range contents {
		n, err := resolveSchema(gen, body)
		if err != nil {
			return nil, err
		}
		out[ct] = &MediaType{Schema: n}
	}
	return out, nil
}

// buildOperation converts the collected metadata into an Operation Object
// using the given schema generator.
//
// See: https://spec.openapis.org/oas/v3.0.3#operation-object
func (b *OperationBuilder) buildOperation(gen *SchemaGenerator, pathParams []*Parameter) (*Operation, error) {
	op := &Operation{
		OperationID:  b.meta.operationID,
		Summary:      b.meta.summary,
		Description:  b.meta.description,
		Tags:         b.meta.tags,
		Deprecated:   b.meta.deprecated,
		Security:     b.meta.security,
		ExternalDocs: b.meta.externalDocs,
		Servers:      b.meta.servers,
	}

	// Custom parameters with the same name+in override auto-generated path
	// parameters, since OpenAPI requires unique name+in.
	op.Parameters = mergeParameters(pathParams, b.meta.parameters)

	if len(b.meta.requestContents) > 0 {
		required := true
		if b.meta.requestRequired != nil {
			required = *b.meta.requestRequired
		}
		content, err := buildContent(gen, b.meta.requestContents)
		if err != nil {
			return nil, b.wrapErr("request body", err)
		}
		op.RequestBody = &RequestBody{
			Description: b.meta.requestDescription,
			Required:    required,
			Content:     content,
		}
	}

	// The responses object is required, so an operation without declared
	// responses gets an empty default one.
	if len(b.meta.responseContents) == 0 {
		op.Responses = map[string]*Response{
			defaultKey: {Description: responseDescription(defaultKey)},
		}
		return op, nil
	}

	op.Responses = make(map[string]*Response, len(b.meta.responseContents))
	for key, contents := range b.meta.responseContents {
		desc := responseDescription(key)
		if custom, ok := b.meta.responseDescriptions[key]; ok {
			desc = custom
		}
		resp := &Response{
			Description: desc,
		}
		if len(contents) > 0 {
			content, err := buildContent(gen, contents)
			if err != nil {
				return nil, b.wrapErr("response "+key, err)
			}
			resp.Content = content
		}
		if headers, ok := b.meta.responseHeaders[key]; ok && len(headers) > 0 {
			resp.Headers = headers
		}
		if links, ok := b.meta.responseLinks[key]; ok && len(links) > 0 {
			resp.Links = links
		}
		op.Responses[key] = resp
	}

	return op, nil
}

func (b *OperationBuilder) wrapErr(msg string, err error) error {
	return &OperationError{Method: b.method, Path: b.path, Message: msg, Err: err}
}
