package openapi

import (
	"strconv"
)

// RouteGroup applies shared metadata to a set of operations. Operations
// created through a group start from a copy of the group's metadata and are
// registered into the parent Spec, so Build treats them like any other
// operation. Changing the group afterwards does not affect operations already
// created.
//
// Per field:
//
//   - Tags, Servers, Parameters: the operation appends to the group values
//   - Security, ExternalDocs: an operation-level call replaces the group value
//   - Deprecated: cannot be undone per operation
//   - Responses: the operation overrides per status code and content type
type RouteGroup struct {
	spec       *Spec
	meta       operationMeta
	pathPrefix string
}

// Tags appends tags shared by the group's operations.
func (g *RouteGroup) Tags(tags ...string) *RouteGroup {
	g.meta.tags = append(g.meta.tags, tags...)
	return g
}

// Security sets the group's security requirements. Call with no arguments
// to mark the group as public, overriding document-level security.
func (g *RouteGroup) Security(reqs ...SecurityRequirement) *RouteGroup {
	if reqs == nil {
		reqs = []SecurityRequirement{}
	}
	g.meta.security = reqs
	return g
}

// Deprecated marks every operation of the group as deprecated.
func (g *RouteGroup) Deprecated() *RouteGroup {
	g.meta.deprecated = true
	return g
}

// Server adds a server shared by the group's operations.
func (g *RouteGroup) Server(server Server) *RouteGroup {
	g.meta.servers = append(g.meta.servers, server)
	return g
}

// Parameter adds a parameter shared by the group's operations.
func (g *RouteGroup) Parameter(param *Parameter) *RouteGroup {
	g.meta.parameters = append(g.meta.parameters, param)
	return g
}

// ExternalDocs sets external documentation for the group's operations.
func (g *RouteGroup) ExternalDocs(url, description string) *RouteGroup {
	g.meta.externalDocs = &ExternalDocs{URL: url, Description: description}
	return g
}

// Response adds a shared application/json response for the given HTTP status
// code. Pass nil body for a response with no content.
func (g *RouteGroup) Response(statusCode int, body any) *RouteGroup {
	g.meta.setResponse(strconv.Itoa(statusCode), body)
	return g
}

// ResponseContent adds a shared response with the given status code and
// content type.
func (g *RouteGroup) ResponseContent(statusCode int, contentType string, body any) *RouteGroup {
	setEntry(&g.meta.responseContents, strconv.Itoa(statusCode), contentType, body)
	return g
}

// ResponseDescription sets the description of a shared response.
func (g *RouteGroup) ResponseDescription(statusCode int, desc string) *RouteGroup {
	g.meta.setDescription(strconv.Itoa(statusCode), desc)
	return g
}

// ResponseHeader adds a header to a shared response.
func (g *RouteGroup) ResponseHeader(statusCode int, name string, h *Header) *RouteGroup {
	setEntry(&g.meta.responseHeaders, strconv.Itoa(statusCode), name, h)
	return g
}

// ResponseLink adds a link to a shared response. Each operation's copy of
// the link is checked against its target when the document is built.
func (g *RouteGroup) ResponseLink(statusCode int, name string, l *Link) *RouteGroup {
	setEntry(&g.meta.responseLinks, strconv.Itoa(statusCode), name, l)
	return g
}

// DefaultResponse adds a shared application/json default response.
func (g *RouteGroup) DefaultResponse(body any) *RouteGroup {
	g.meta.setResponse(defaultKey, body)
	return g
}

// DefaultResponseDescription sets the description of the shared default
// response.
func (g *RouteGroup) DefaultResponseDescription(desc string) *RouteGroup {
	g.meta.setDescription(defaultKey, desc)
	return g
}

// DefaultResponseHeader adds a header to the shared default response.
func (g *RouteGroup) DefaultResponseHeader(name string, h *Header) *RouteGroup {
	setEntry(&g.meta.responseHeaders, defaultKey, name, h)
	return g
}

// PathPrefix sets a prefix joined in front of every path registered through
// this group.
func (g *RouteGroup) PathPrefix(prefix string) *RouteGroup {
	g.pathPrefix = prefix
	return g
}

// Operation returns the OperationBuilder for the given method and path,
// starting from the group's metadata. If the operation was previously
// registered, the existing builder is returned unchanged.
func (g *RouteGroup) Operation(method, path string) *OperationBuilder {
	method, path = normalizeRoute(method, g.pathPrefix+path)
	if b := g.spec.lookup(method, path); b != nil {
		return b
	}

	b := &OperationBuilder{method: method, path: path, meta: g.meta.clone()}
	g.spec.register(b)
	return b
}
