package openapi

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/vitalvas/apicontract/components"
	"github.com/vitalvas/apicontract/schema"
	"github.com/vitalvas/apicontract/validate"
)

// maxPointerDerefs bounds reference hops while walking a JSON pointer into a
// schema.
const maxPointerDerefs = 32

const jsonContentType = "application/json"

// linkContext carries what a single response link is checked against.
type linkContext struct {
	reg       *components.Registry
	checker   *schema.Checker
	validator *validate.Validator
	byID      map[string]builtOperation
	byPath    map[string]map[string]builtOperation
}

// checkLinks verifies every response link of every operation: the target
// operation must exist, each parameter key must name a target parameter, and
// the value supplied must fit the target parameter's schema. Runtime
// expressions are checked with the compatibility checker; constants are
// validated as values.
//
// See: https://spec.openapis.org/oas/v3.0.3#link-object
// See: https://spec.openapis.org/oas/v3.0.3#runtime-expressions
func checkLinks(reg *components.Registry, ops []builtOperation) []error {
	lc := &linkContext{
		reg:       reg,
		checker:   schema.NewChecker(reg),
		validator: validate.New(reg),
		byID:      make(map[string]builtOperation, len(ops)),
		byPath:    make(map[string]map[string]builtOperation, len(ops)),
	}
	for _, b := range ops {
		if b.op.OperationID != "" {
			lc.byID[b.op.OperationID] = b
		}
		if lc.byPath[b.path] == nil {
			lc.byPath[b.path] = make(map[string]builtOperation)
		}
		lc.byPath[b.path][b.method] = b
	}

	var errs []error
	for _, src := range ops {
		for _, status := range sortedKeys(src.op.Responses) {
			resp := src.op.Responses[status]
			for _, name := range sortedKeys(resp.Links) {
				errs = append(errs, lc.checkLink(src, resp, resp.Links[name])...)
			}
		}
	}

	for _, name := range reg.Names(components.Links) {
		v, _ := reg.Resolve(components.Links, name)
		l, ok := v.(*Link)
		if !ok {
			continue
		}
		if _, err := lc.target(l); err != nil {
			errs = append(errs, &LinkError{SourceOperation: components.Links.Ref(name), TargetOperation: linkTargetName(l), Reason: err.Error()})
		}
	}

	return errs
}

func (lc *linkContext) checkLink(src builtOperation, resp *Response, l *Link) []error {
	srcName := operationName(src)

	dst, err := lc.target(l)
	if err != nil {
		return []error{&LinkError{SourceOperation: srcName, TargetOperation: linkTargetName(l), Reason: err.Error()}}
	}
	dstName := operationName(dst)

	var errs []error
	fail := func(key, param, reason string) {
		errs = append(errs, &LinkError{
			SourceOperation: srcName,
			SourceKey:       key,
			TargetOperation: dstName,
			TargetParameter: param,
			Reason:          reason,
		})
	}

	for _, key := range sortedKeys(l.Parameters) {
		value := l.Parameters[key]
		param, err := findParameter(dst.op, key)
		if err != nil {
			fail(sourceKey(value), key, err.Error())
			continue
		}
		if param.Schema == nil {
			fail(sourceKey(value), key, "target parameter has no schema")
			continue
		}
		if reason := lc.checkValue(src, resp, value, param.Schema); reason != "" {
			fail(sourceKey(value), key, reason)
		}
	}

	if l.RequestBody != nil {
		var body schema.Node
		if dst.op.RequestBody != nil {
			if mt := dst.op.RequestBody.Content[jsonContentType]; mt != nil {
				body = mt.Schema
			}
		}
		if body == nil {
			fail(sourceKey(l.RequestBody), "requestBody", "target operation has no JSON request body")
		} else if reason := lc.checkValue(src, resp, l.RequestBody, body); reason != "" {
			fail(sourceKey(l.RequestBody), "requestBody", reason)
		}
	}

	return errs
}

// checkValue returns the reason value cannot supply target, or "".
func (lc *linkContext) checkValue(src builtOperation, resp *Response, value any, target schema.Node) string {
	expr, isExpr := value.(string)
	if !isExpr || !strings.HasPrefix(expr, "$") {
		if msgs := lc.validator.Validate(target, value); !msgs.OK() {
			return "constant does not validate: " + msgs[0].String()
		}
		return ""
	}

	source, runtime, err := lc.expressionSchema(src, resp, expr)
	if err != nil {
		return err.Error()
	}
	if runtime {
		return ""
	}
	if !lc.checker.IsCompatible(source, target) {
		return "incompatible schemas"
	}
	return ""
}

// expressionSchema resolves a runtime expression to the schema of the value
// it denotes. Expressions whose value is only known at runtime, such as $url,
// report runtime=true.
func (lc *linkContext) expressionSchema(src builtOperation, resp *Response, expr string) (n schema.Node, runtime bool, err error) {
	switch expr {
	case "$url", "$method", "$statusCode":
		return nil, true, nil
	}

	source, rest, ok := strings.Cut(expr, ".")
	if !ok {
		return nil, false, fmt.Errorf("malformed expression %q", expr)
	}

	switch source {
	case "$request":
		if ptr, ok := strings.CutPrefix(rest, "body"); ok {
			return lc.bodySchema(requestContent(src.op), ptr, expr)
		}
		in, name, ok := strings.Cut(rest, ".")
		if !ok || name == "" {
			return nil, false, fmt.Errorf("malformed expression %q", expr)
		}
		switch in {
		case InPath, InQuery, InHeader:
		default:
			return nil, false, fmt.Errorf("unsupported source %q in %q", in, expr)
		}
		for _, p := range src.op.Parameters {
			if p.In == in && (p.Name == name || (in == InHeader && strings.EqualFold(p.Name, name))) {
				if p.Schema == nil {
					return nil, false, fmt.Errorf("source parameter %q has no schema", name)
				}
				return p.Schema, false, nil
			}
		}
		return nil, false, fmt.Errorf("source parameter %s.%s not found", in, name)

	case "$response":
		if ptr, ok := strings.CutPrefix(rest, "body"); ok {
			return lc.bodySchema(resp.Content, ptr, expr)
		}
		if name, ok := strings.CutPrefix(rest, "header."); ok {
			for key, h := range resp.Headers {
				if strings.EqualFold(key, name) && h != nil && h.Schema != nil {
					return h.Schema, false, nil
				}
			}
			return nil, false, fmt.Errorf("response header %q not found", name)
		}
	}
	return nil, false, fmt.Errorf("unsupported expression %q", expr)
}

func (lc *linkContext) bodySchema(content map[string]*MediaType, ptr, expr string) (schema.Node, bool, error) {
	mt := content[jsonContentType]
	if mt == nil || mt.Schema == nil {
		return nil, false, fmt.Errorf("no JSON body for %q", expr)
	}
	if ptr == "" {
		return mt.Schema, false, nil
	}
	ptr, ok := strings.CutPrefix(ptr, "#")
	if !ok {
		return nil, false, fmt.Errorf("malformed expression %q", expr)
	}
	n, err := walkPointer(lc.reg, mt.Schema, ptr)
	if err != nil {
		return nil, false, fmt.Errorf("%q: %w", expr, err)
	}
	return n, false, nil
}

func requestContent(op *Operation) map[string]*MediaType {
	if op.RequestBody == nil {
		return nil
	}
	return op.RequestBody.Content
}

// walkPointer follows a JSON pointer through object properties, map values,
// array items and allOf members.
//
// See: https://datatracker.ietf.org/doc/html/rfc6901
func walkPointer(r schema.Resolver, n schema.Node, ptr string) (schema.Node, error) {
	if ptr == "" {
		return n, nil
	}
	if !strings.HasPrefix(ptr, "/") {
		return nil, fmt.Errorf("pointer %q must start with /", ptr)
	}

	for _, raw := range strings.Split(ptr[1:], "/") {
		seg := strings.ReplaceAll(strings.ReplaceAll(raw, "~1", "/"), "~0", "~")
		next, err := step(r, n, seg, 0)
		if err != nil {
			return nil, err
		}
		n = next
	}
	return n, nil
}

func step(r schema.Resolver, n schema.Node, seg string, derefs int) (schema.Node, error) {
	if derefs > maxPointerDerefs {
		return nil, fmt.Errorf("too many references resolving %q", seg)
	}

	switch v := n.(type) {
	case *schema.Reference:
		target, err := r.ResolveSchema(v.Target())
		if err != nil {
			return nil, err
		}
		return step(r, target, seg, derefs+1)

	case *schema.Object:
		if p, ok := v.Property(seg); ok {
			return p, nil
		}
		return nil, fmt.Errorf("property %q not found", seg)

	case *schema.Map:
		return v.Values(), nil

	case *schema.Array:
		if _, err := strconv.Atoi(seg); err != nil {
			return nil, fmt.Errorf("array index %q is not a number", seg)
		}
		return v.Items(), nil

	case *schema.Discriminator:
		if v.Mode() != schema.AllOf {
			return nil, fmt.Errorf("cannot select %q through %s", seg, v.Mode())
		}
		for _, m := range v.Members() {
			if found, err := step(r, m, seg, derefs+1); err == nil {
				return found, nil
			}
		}
		return nil, fmt.Errorf("property %q not found", seg)

	case *schema.Primitive:
		return nil, fmt.Errorf("cannot select %q in a %s", seg, v.Kind())
	}
	return nil, fmt.Errorf("unknown node type %T", n)
}

// target returns the operation a link points to.
func (lc *linkContext) target(l *Link) (builtOperation, error) {
	switch {
	case l.OperationID != "" && l.OperationRef != "":
		return builtOperation{}, fmt.Errorf("operationId and operationRef are mutually exclusive")
	case l.OperationID != "":
		b, ok := lc.byID[l.OperationID]
		if !ok {
			return builtOperation{}, fmt.Errorf("operationId %q not found", l.OperationID)
		}
		return b, nil
	case l.OperationRef != "":
		path, method, err := parseOperationRef(l.OperationRef)
		if err != nil {
			return builtOperation{}, err
		}
		b, ok := lc.byPath[path][method]
		if !ok {
			return builtOperation{}, fmt.Errorf("operationRef %q not found", l.OperationRef)
		}
		return b, nil
	}
	return builtOperation{}, fmt.Errorf("operationId or operationRef is required")
}

// parseOperationRef splits a local operation reference such as
// "#/paths/~1users~1{id}/get" into path and upper-case method.
func parseOperationRef(ref string) (string, string, error) {
	rest, ok := strings.CutPrefix(ref, "#/paths/")
	if !ok {
		return "", "", fmt.Errorf("operationRef %q must be local (#/paths/...)", ref)
	}
	escaped, method, ok := strings.Cut(rest, "/")
	if !ok || method == "" || strings.Contains(method, "/") {
		return "", "", fmt.Errorf("malformed operationRef %q", ref)
	}
	path := strings.ReplaceAll(strings.ReplaceAll(escaped, "~1", "/"), "~0", "~")
	return path, strings.ToUpper(method), nil
}

// findParameter resolves a link parameter key. Keys may be qualified with a
// location ("path.id") or bare ("id"); a bare key must be unambiguous.
func findParameter(op *Operation, key string) (*Parameter, error) {
	if in, name, ok := strings.Cut(key, "."); ok {
		switch in {
		case InPath, InQuery, InHeader, InCookie:
			for _, p := range op.Parameters {
				if p.In == in && p.Name == name {
					return p, nil
				}
			}
			return nil, fmt.Errorf("target parameter %s.%s not found", in, name)
		}
	}

	var found *Parameter
	for _, p := range op.Parameters {
		if p.Name != key {
			continue
		}
		if found != nil {
			return nil, fmt.Errorf("target parameter %q is ambiguous, qualify it with its location", key)
		}
		found = p
	}
	if found == nil {
		return nil, fmt.Errorf("target parameter %q not found", key)
	}
	return found, nil
}

func operationName(b builtOperation) string {
	if b.op.OperationID != "" {
		return b.op.OperationID
	}
	return b.method + " " + b.path
}

func linkTargetName(l *Link) string {
	if l.OperationID != "" {
		return l.OperationID
	}
	return l.OperationRef
}

func sourceKey(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprintf("%v", v)
}
