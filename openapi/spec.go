package openapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"regexp"
	"slices"
	"sort"
	"strings"

	"github.com/vitalvas/apicontract/components"
	"github.com/vitalvas/apicontract/format"
	"github.com/vitalvas/apicontract/internal/yamlutil"
	"github.com/vitalvas/apicontract/schema"
)

// macroSchemas maps path template macros to the schema of the parameter.
var macroSchemas = map[string]func() (*schema.Primitive, error){
	"uuid":     func() (*schema.Primitive, error) { return schema.NewString(schema.Format(format.UUID)) },
	"int":      func() (*schema.Primitive, error) { return schema.NewInteger(schema.Format(format.Int64)) },
	"float":    func() (*schema.Primitive, error) { return schema.NewNumber(schema.Format(format.Double)) },
	"slug":     func() (*schema.Primitive, error) { return schema.NewString() },
	"alpha":    func() (*schema.Primitive, error) { return schema.NewString() },
	"alphanum": func() (*schema.Primitive, error) { return schema.NewString() },
	"date":     func() (*schema.Primitive, error) { return schema.NewString(schema.Format(format.Date)) },
	"hex":      func() (*schema.Primitive, error) { return schema.NewString() },
	"domain":   func() (*schema.Primitive, error) { return schema.NewString(schema.Format(format.Hostname)) },
}

// pathVarRegexp matches path variables in the form {name} or {name:macro}.
var pathVarRegexp = regexp.MustCompile(`\{([^}]+)\}`)

// methods lists the HTTP methods a path item can hold.
var methods = []string{
	http.MethodGet, http.MethodPut, http.MethodPost, http.MethodDelete,
	http.MethodOptions, http.MethodHead, http.MethodPatch, http.MethodTrace,
}

// Spec collects OpenAPI metadata for operations and builds a complete
// Document. Operations are registered explicitly with Operation and kept in
// registration order.
type Spec struct {
	info       Info
	servers    []Server
	operations []*OperationBuilder

	pathServers      map[string][]Server     // keyed by OpenAPI path
	pathSummaries    map[string]string       // keyed by OpenAPI path
	pathDescriptions map[string]string       // keyed by OpenAPI path
	pathParameters   map[string][]*Parameter // keyed by OpenAPI path

	externalDocs *ExternalDocs
	security     []SecurityRequirement
	tags         []Tag
	registry     *components.Registry

	// errs collects registration failures reported by Build.
	errs   []error
	logger *slog.Logger
}

// NewSpec creates a new spec builder with the given API info.
func NewSpec(info Info) *Spec {
	return &Spec{
		info:     info,
		registry: components.New(),
		logger:   slog.New(slog.DiscardHandler),
	}
}

// SetLogger sets the logger used while building and serving the document.
func (s *Spec) SetLogger(logger *slog.Logger) *Spec {
	if logger != nil {
		s.logger = logger
	}
	return s
}

// AddServer adds a server to the document.
func (s *Spec) AddServer(server Server) *Spec {
	s.servers = append(s.servers, server)
	return s
}

// AddPathServer adds a server override for a specific path. The path must use
// OpenAPI format (e.g., "/files", "/users/{id}"). All operations under this
// path inherit these servers, overriding the document-level servers.
func (s *Spec) AddPathServer(path string, server Server) *Spec {
	if s.pathServers == nil {
		s.pathServers = make(map[string][]Server)
	}
	s.pathServers[path] = append(s.pathServers[path], server)
	return s
}

// SetPathSummary sets a brief summary for a specific path. The path must use
// OpenAPI format (e.g., "/users/{id}").
func (s *Spec) SetPathSummary(path, summary string) *Spec {
	if s.pathSummaries == nil {
		s.pathSummaries = make(map[string]string)
	}
	s.pathSummaries[path] = summary
	return s
}

// SetPathDescription sets a detailed description for a specific path. The path
// must use OpenAPI format (e.g., "/users/{id}") and supports Markdown.
func (s *Spec) SetPathDescription(path, description string) *Spec {
	if s.pathDescriptions == nil {
		s.pathDescriptions = make(map[string]string)
	}
	s.pathDescriptions[path] = description
	return s
}

// AddPathParameter adds a shared parameter for a specific path. Path-level
// parameters apply to all operations under this path and can be overridden
// at the operation level.
func (s *Spec) AddPathParameter(path string, param *Parameter) *Spec {
	if s.pathParameters == nil {
		s.pathParameters = make(map[string][]*Parameter)
	}
	s.pathParameters[path] = append(s.pathParameters[path], param)
	return s
}

// SetExternalDocs sets the document-level external documentation link.
func (s *Spec) SetExternalDocs(url, description string) *Spec {
	s.externalDocs = &ExternalDocs{URL: url, Description: description}
	return s
}

// SetSecurity sets the document-level security requirements.
func (s *Spec) SetSecurity(reqs ...SecurityRequirement) *Spec {
	s.security = reqs
	return s
}

// AddTag adds a user-defined tag with optional description and external docs.
func (s *Spec) AddTag(tag Tag) *Spec {
	s.tags = append(s.tags, tag)
	return s
}

// addComponent inserts into the component registry, recording failures for
// Build to report.
func (s *Spec) addComponent(t components.Type, name string, v any) *Spec {
	reg, err := s.registry.Insert(t, name, v)
	if err != nil {
		s.errs = append(s.errs, err)
		return s
	}
	s.registry = reg
	return s
}

// AddComponentSchema registers a reusable schema in components.
func (s *Spec) AddComponentSchema(name string, n schema.Node) *Spec {
	if n == nil {
		return s.addComponent(components.Schemas, name, nil)
	}
	return s.addComponent(components.Schemas, name, n)
}

// AddSecurityScheme registers a reusable security scheme in components.
func (s *Spec) AddSecurityScheme(name string, scheme *SecurityScheme) *Spec {
	return s.addComponent(components.SecuritySchemes, name, scheme)
}

// AddComponentResponse registers a reusable response in components.
func (s *Spec) AddComponentResponse(name string, resp *Response) *Spec {
	return s.addComponent(components.Responses, name, resp)
}

// AddComponentParameter registers a reusable parameter in components.
func (s *Spec) AddComponentParameter(name string, param *Parameter) *Spec {
	return s.addComponent(components.Parameters, name, param)
}

// AddComponentExample registers a reusable example in components.
func (s *Spec) AddComponentExample(name string, ex *Example) *Spec {
	return s.addComponent(components.Examples, name, ex)
}

// AddComponentRequestBody registers a reusable request body in components.
func (s *Spec) AddComponentRequestBody(name string, rb *RequestBody) *Spec {
	return s.addComponent(components.RequestBodies, name, rb)
}

// AddComponentHeader registers a reusable header in components.
func (s *Spec) AddComponentHeader(name string, h *Header) *Spec {
	return s.addComponent(components.Headers, name, h)
}

// AddComponentLink registers a reusable link in components.
func (s *Spec) AddComponentLink(name string, l *Link) *Spec {
	return s.addComponent(components.Links, name, l)
}

// Group creates a new RouteGroup for applying shared OpenAPI metadata defaults
// to a logical group of operations. The returned group pre-populates each
// OperationBuilder with the group's default tags, security, servers,
// parameters, responses and external docs.
func (s *Spec) Group() *RouteGroup {
	return &RouteGroup{spec: s}
}

// Operation returns the OperationBuilder for the given method and path
// template. Templates use {name} or {name:macro} variables, where macro is
// one of uuid, int, float, slug, alpha, alphanum, date, hex or domain.
// Calling Operation again with the same method and template returns the
// existing builder.
func (s *Spec) Operation(method, path string) *OperationBuilder {
	method, path = normalizeRoute(method, path)
	if b := s.lookup(method, path); b != nil {
		return b
	}
	b := newOperationBuilder(method, path)
	s.register(b)
	return b
}

func (s *Spec) lookup(method, path string) *OperationBuilder {
	for _, b := range s.operations {
		if b.method == method && b.path == path {
			return b
		}
	}
	return nil
}

func (s *Spec) register(b *OperationBuilder) {
	s.operations = append(s.operations, b)
}

func normalizeRoute(method, path string) (string, string) {
	return strings.ToUpper(method), path
}

// builtOperation ties a compiled operation to its method and path.
type builtOperation struct {
	method string
	path   string
	op     *Operation
}

// Build assembles a complete OpenAPI document. Component registration
// failures, malformed paths, duplicate operations, unresolved references and
// invalid links fail the build; all problems found are joined into the
// returned error.
func (s *Spec) Build() (*Document, error) {
	gen := NewSchemaGenerator()
	doc := &Document{
		OpenAPI:      Version,
		Info:         s.info,
		Servers:      s.servers,
		Paths:        make(map[string]*PathItem),
		ExternalDocs: s.externalDocs,
		Security:     s.security,
	}

	errs := slices.Clone(s.errs)
	var built []builtOperation

	for _, b := range s.operations {
		if !slices.Contains(methods, b.method) {
			errs = append(errs, &OperationError{Method: b.method, Path: b.path, Message: "unsupported method", Err: ErrInvalidPath})
			continue
		}

		openAPIPath, pathParams, err := parsePath(b.path)
		if err != nil {
			errs = append(errs, &OperationError{Method: b.method, Path: b.path, Message: "invalid path template", Err: err})
			continue
		}

		op, err := b.buildOperation(gen, pathParams)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if err := checkPathParameters(op, pathParams); err != nil {
			errs = append(errs, &OperationError{Method: b.method, Path: b.path, Message: "invalid parameters", Err: err})
			continue
		}

		pathItem, ok := doc.Paths[openAPIPath]
		if !ok {
			pathItem = &PathItem{}
			doc.Paths[openAPIPath] = pathItem
		}
		if _, taken := pathItem.Operations()[b.method]; taken {
			errs = append(errs, &OperationError{Method: b.method, Path: openAPIPath, Message: "registered twice", Err: ErrDuplicateOperation})
			continue
		}
		assignOperation(pathItem, b.method, op)
		built = append(built, builtOperation{method: b.method, path: openAPIPath, op: op})
	}

	for path, summary := range s.pathSummaries {
		if pathItem, ok := doc.Paths[path]; ok {
			pathItem.Summary = summary
		}
	}
	for path, description := range s.pathDescriptions {
		if pathItem, ok := doc.Paths[path]; ok {
			pathItem.Description = description
		}
	}
	for path, servers := range s.pathServers {
		if pathItem, ok := doc.Paths[path]; ok {
			pathItem.Servers = append(pathItem.Servers, servers...)
		}
	}
	for path, params := range s.pathParameters {
		if pathItem, ok := doc.Paths[path]; ok {
			pathItem.Parameters = append(pathItem.Parameters, params...)
		}
	}

	reg, err := s.registry.Merge(gen.Registry())
	if err != nil {
		errs = append(errs, err)
		reg = s.registry
	}
	if err := reg.Check(); err != nil {
		errs = append(errs, err)
	}
	errs = append(errs, checkOperationRefs(reg, built)...)
	errs = append(errs, checkOperationIDs(built)...)

	if len(errs) == 0 {
		errs = append(errs, checkLinks(reg, built)...)
	}

	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}

	if !reg.IsEmpty() {
		doc.Components = reg
	}
	doc.Tags = s.mergeTags(doc.Paths)

	s.logger.Debug("openapi document built",
		slog.Int("paths", len(doc.Paths)),
		slog.Int("operations", len(built)),
		slog.Int("schemas", reg.Len(components.Schemas)),
	)

	return doc, nil
}

// checkOperationRefs verifies that every reference held by an operation's
// parameters, bodies and headers resolves against the registry.
func checkOperationRefs(reg *components.Registry, ops []builtOperation) []error {
	var errs []error
	for _, b := range ops {
		var carried []schema.Node
		for _, p := range b.op.Parameters {
			carried = append(carried, p.CarriedSchemas()...)
		}
		if b.op.RequestBody != nil {
			carried = append(carried, b.op.RequestBody.CarriedSchemas()...)
		}
		for _, key := range sortedKeys(b.op.Responses) {
			carried = append(carried, b.op.Responses[key].CarriedSchemas()...)
		}
		for _, n := range carried {
			if err := reg.CheckSchema(n); err != nil {
				errs = append(errs, &OperationError{Method: b.method, Path: b.path, Message: "unresolved schema", Err: err})
				break
			}
		}
	}
	return errs
}

// checkOperationIDs rejects operationIds used by more than one operation.
func checkOperationIDs(ops []builtOperation) []error {
	var errs []error
	seen := make(map[string]builtOperation, len(ops))
	for _, b := range ops {
		id := b.op.OperationID
		if id == "" {
			continue
		}
		if first, ok := seen[id]; ok {
			errs = append(errs, &OperationError{
				Method:  b.method,
				Path:    b.path,
				Message: fmt.Sprintf("operationId %q already used by %s %s", id, first.method, first.path),
				Err:     ErrDuplicateOperation,
			})
			continue
		}
		seen[id] = b
	}
	return errs
}

// checkPathParameters verifies that every path parameter is declared in the
// template. Path parameters are always required.
func checkPathParameters(op *Operation, pathParams []*Parameter) error {
	for _, p := range op.Parameters {
		if p.In != InPath {
			continue
		}
		if !slices.ContainsFunc(pathParams, func(pp *Parameter) bool { return pp.Name == p.Name }) {
			return fmt.Errorf("%w: path parameter %q is not in the template", ErrInvalidPath, p.Name)
		}
		if !p.Required {
			return fmt.Errorf("%w: path parameter %q must be required", ErrInvalidPath, p.Name)
		}
	}
	return nil
}

// mergeTags combines auto-collected tags from operations with user-defined tags.
// User-defined tags take precedence (their description and externalDocs are kept).
// Tags not seen in operations but defined by the user are still included.
// The result is sorted alphabetically.
func (s *Spec) mergeTags(paths map[string]*PathItem) []Tag {
	userTags := make(map[string]Tag, len(s.tags))
	for _, tag := range s.tags {
		userTags[tag.Name] = tag
	}

	seen := make(map[string]bool)
	var tags []Tag

	for _, pathItem := range paths {
		for _, op := range pathItem.Operations() {
			for _, tagName := range op.Tags {
				if seen[tagName] {
					continue
				}
				seen[tagName] = true
				if userTag, ok := userTags[tagName]; ok {
					tags = append(tags, userTag)
				} else {
					tags = append(tags, Tag{Name: tagName})
				}
			}
		}
	}

	for _, tag := range s.tags {
		if !seen[tag.Name] {
			seen[tag.Name] = true
			tags = append(tags, tag)
		}
	}

	sort.Slice(tags, func(i, j int) bool {
		return tags[i].Name < tags[j].Name
	})

	return tags
}

// assignOperation assigns an operation to the correct HTTP method field
// on the path item.
func assignOperation(pathItem *PathItem, method string, op *Operation) {
	switch method {
	case http.MethodGet:
		pathItem.Get = op
	case http.MethodPost:
		pathItem.Post = op
	case http.MethodPut:
		pathItem.Put = op
	case http.MethodDelete:
		pathItem.Delete = op
	case http.MethodPatch:
		pathItem.Patch = op
	case http.MethodHead:
		pathItem.Head = op
	case http.MethodOptions:
		pathItem.Options = op
	case http.MethodTrace:
		pathItem.Trace = op
	}
}

// parsePath extracts variables from a path template, converts it to OpenAPI
// format, and generates required path parameters. Variables with a known
// macro get the macro's schema; any other pattern is a plain string.
func parsePath(tpl string) (string, []*Parameter, error) {
	if !strings.HasPrefix(tpl, "/") {
		return "", nil, fmt.Errorf("%w: %q must start with /", ErrInvalidPath, tpl)
	}

	var (
		params []*Parameter
		errs   []error
	)

	openAPIPath := pathVarRegexp.ReplaceAllStringFunc(tpl, func(match string) string {
		inner := match[1 : len(match)-1]
		varName, macroName, _ := strings.Cut(inner, ":")

		if varName == "" {
			errs = append(errs, fmt.Errorf("%w: empty variable name in %q", ErrInvalidPath, tpl))
			return match
		}
		if slices.ContainsFunc(params, func(p *Parameter) bool { return p.Name == varName }) {
			errs = append(errs, fmt.Errorf("%w: variable %q repeated in %q", ErrInvalidPath, varName, tpl))
			return match
		}

		build := macroSchemas["slug"]
		if fn, ok := macroSchemas[macroName]; ok {
			build = fn
		}
		n, err := build()
		if err != nil {
			errs = append(errs, err)
			return match
		}

		params = append(params, &Parameter{
			Name:     varName,
			In:       InPath,
			Required: true,
			Schema:   n,
		})
		return "{" + varName + "}"
	})

	if len(errs) > 0 {
		return "", nil, errors.Join(errs...)
	}
	return openAPIPath, params, nil
}

// JSON returns the document encoded as indented JSON.
func (d *Document) JSON() ([]byte, error) {
	return json.MarshalIndent(d, "", "  ")
}

// YAML returns the document encoded as YAML, with the same key order as the
// JSON form.
func (d *Document) YAML() ([]byte, error) {
	data, err := json.Marshal(d)
	if err != nil {
		return nil, err
	}
	return yamlutil.Marshal(data)
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
