package openapi

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/big"
	"mime"
	"net/http"
	"regexp"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/vitalvas/apicontract/components"
	"github.com/vitalvas/apicontract/schema"
	"github.com/vitalvas/apicontract/validate"
)

// DefaultMaxBodySize is the request body limit applied when
// MiddlewareConfig.MaxBodySize is zero.
const DefaultMaxBodySize int64 = 1 << 20

// RequestIDHeader is read to correlate rejected requests in logs. When absent,
// a random UUID is generated.
const RequestIDHeader = "X-Request-ID"

// ErrorHandlerFunc writes the response for a rejected request.
type ErrorHandlerFunc func(w http.ResponseWriter, r *http.Request, status int, msgs validate.Messages)

// MiddlewareConfig configures the request validation middleware.
type MiddlewareConfig struct {
	// MaxBodySize limits request bodies read for validation. Larger bodies
	// are answered with 413. Zero means DefaultMaxBodySize.
	MaxBodySize int64

	// MaxDepth bounds reference and composition steps while validating.
	// Zero means validate.DefaultMaxDepth.
	MaxDepth int

	// ErrorHandler writes rejected requests. The default answers with
	// {"errors": [...]} encoded as JSON.
	ErrorHandler ErrorHandlerFunc
}

// ErrorResponse is the body written by the default error handler.
type ErrorResponse struct {
	Errors validate.Messages `json:"errors"`
}

// route is a compiled operation with its effective parameters.
type route struct {
	method string
	path   string
	op     *Operation
	params []*Parameter
}

// Middleware returns a middleware validating requests against the compiled
// document. Requests are matched to operations by method and path; path,
// query, header and cookie parameters are coerced to their schema kind and
// validated, then a JSON request body is decoded and validated. Rejected
// requests never reach the next handler. Requests matching no operation pass
// through unchanged.
//
//	validator, err := spec.Middleware(nil)
//	if err != nil {
//	    return err
//	}
//	http.ListenAndServe(":8080", validator(mux))
//
// The document is built once, when Middleware is called.
func (s *Spec) Middleware(cfg *MiddlewareConfig) (func(http.Handler) http.Handler, error) {
	if cfg == nil {
		cfg = &MiddlewareConfig{}
	}
	maxBody := cfg.MaxBodySize
	if maxBody <= 0 {
		maxBody = DefaultMaxBodySize
	}
	onError := cfg.ErrorHandler
	if onError == nil {
		onError = writeErrors
	}

	doc, err := s.Build()
	if err != nil {
		return nil, err
	}

	reg := doc.Components
	if reg == nil {
		reg = components.New()
	}

	opts := []validate.Option{validate.WithLogger(s.logger)}
	if cfg.MaxDepth > 0 {
		opts = append(opts, validate.WithMaxDepth(cfg.MaxDepth))
	}

	rv := &requestValidator{
		reg:       reg,
		validator: validate.New(reg, opts...),
		maxBody:   maxBody,
		onError:   onError,
		logger:    s.logger,
	}

	var routes []route
	for _, path := range sortedKeys(doc.Paths) {
		item := doc.Paths[path]
		for _, method := range methods {
			op, ok := item.Operations()[method]
			if !ok {
				continue
			}
			routes = append(routes, route{
				method: method,
				path:   path,
				op:     op,
				params: mergeParameters(item.Parameters, op.Parameters),
			})
		}
	}

	// Patterns are checked up front so that Middleware, not the first
	// request, reports conflicts.
	if _, err := rv.mux(routes, http.NotFoundHandler()); err != nil {
		return nil, err
	}

	return func(next http.Handler) http.Handler {
		mux, _ := rv.mux(routes, next)
		return mux
	}, nil
}

// mux routes each operation to a validating handler in front of next, and
// everything else straight to next.
func (rv *requestValidator) mux(routes []route, next http.Handler) (mux *http.ServeMux, err error) {
	defer func() {
		// ServeMux panics on conflicting patterns.
		if p := recover(); p != nil {
			err = fmt.Errorf("%w: %v", ErrInvalidPath, p)
		}
	}()

	mux = http.NewServeMux()
	mux.Handle("/", next)
	for _, rt := range routes {
		if !servable(rt.path) {
			rv.logger.Warn("openapi path cannot be routed, requests pass through unvalidated",
				slog.String("method", rt.method),
				slog.String("path", rt.path),
			)
			continue
		}
		pattern := rt.path
		if strings.HasSuffix(pattern, "/") {
			// A trailing slash would otherwise match the whole subtree.
			pattern += "{$}"
		}
		mux.Handle(rt.method+" "+pattern, rv.handler(rt, next))
	}
	return mux, nil
}

// wildcardRegexp matches a path segment usable as a ServeMux wildcard.
var wildcardRegexp = regexp.MustCompile(`^\{[A-Za-z_][A-Za-z0-9_]*\}$`)

// servable reports whether every variable in path fills a whole segment and
// is named like a Go identifier, as ServeMux wildcards require.
func servable(path string) bool {
	for seg := range strings.SplitSeq(path, "/") {
		if strings.ContainsAny(seg, "{}") && !wildcardRegexp.MatchString(seg) {
			return false
		}
	}
	return true
}

type requestValidator struct {
	reg       *components.Registry
	validator *validate.Validator
	maxBody   int64
	onError   ErrorHandlerFunc
	logger    *slog.Logger
}

func (rv *requestValidator) handler(rt route, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		msgs := rv.checkParameters(rt, r)

		status := http.StatusBadRequest
		if rt.op.RequestBody != nil {
			bodyStatus, bodyMsgs := rv.checkBody(rt, w, r)
			msgs = append(msgs, bodyMsgs...)
			if bodyStatus != 0 {
				status = bodyStatus
			}
		}

		if len(msgs) == 0 {
			next.ServeHTTP(w, r)
			return
		}

		requestID := r.Header.Get(RequestIDHeader)
		if requestID == "" {
			requestID = uuid.NewString()
		}
		w.Header().Set(RequestIDHeader, requestID)

		rv.logger.Debug("request rejected",
			slog.String("request_id", requestID),
			slog.String("method", rt.method),
			slog.String("operation", rt.path),
			slog.Int("status", status),
			slog.Int("errors", len(msgs)),
		)
		rv.onError(w, r, status, msgs)
	})
}

func (rv *requestValidator) checkParameters(rt route, r *http.Request) validate.Messages {
	var msgs validate.Messages
	query := r.URL.Query()

	for _, p := range rt.params {
		path := validate.Path(validate.Key(p.In), validate.Key(p.Name))

		var raw []string
		switch p.In {
		case InPath:
			if v := r.PathValue(p.Name); v != "" {
				raw = []string{v}
			}
		case InQuery:
			raw = query[p.Name]
		case InHeader:
			raw = r.Header.Values(p.Name)
		case InCookie:
			if c, err := r.Cookie(p.Name); err == nil {
				raw = []string{c.Value}
			}
		}

		if len(raw) == 0 {
			if p.Required {
				msgs = append(msgs, validate.Message{
					Path: path,
					Kind: validate.KindRequired,
					Text: fmt.Sprintf("required %s parameter is missing", p.In),
				})
			}
			continue
		}
		if p.Schema == nil {
			continue
		}

		value := coerce(rv.reg, p.Schema, raw)
		msgs = append(msgs, rv.validator.ValidateAt(p.Schema, value, path)...)
	}
	return msgs
}

// checkBody reads, decodes and validates the request body, then restores it
// for the next handler. A non-zero status overrides the default 400.
func (rv *requestValidator) checkBody(rt route, w http.ResponseWriter, r *http.Request) (int, validate.Messages) {
	path := validate.Path(validate.Key("body"))
	rb := rt.op.RequestBody

	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, rv.maxBody))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return http.StatusRequestEntityTooLarge, validate.Messages{{
				Path:   path,
				Kind:   validate.KindOutOfRange,
				Text:   "request body is too large",
				Params: map[string]any{"limit": tooLarge.Limit},
			}}
		}
		return 0, validate.Messages{{Path: path, Kind: validate.KindTypeMismatch, Text: "failed to read request body"}}
	}
	r.Body = io.NopCloser(bytes.NewReader(data))

	if len(data) == 0 {
		if rb.Required {
			return 0, validate.Messages{{Path: path, Kind: validate.KindRequired, Text: "request body is required"}}
		}
		return 0, nil
	}

	ct, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	mt, declared := rb.Content[ct]
	if err != nil || !declared {
		return http.StatusUnsupportedMediaType, validate.Messages{{
			Path:   path,
			Kind:   validate.KindValueNotAllowed,
			Text:   "unsupported content type",
			Params: map[string]any{"value": r.Header.Get("Content-Type"), "expected": sortedKeys(rb.Content)},
		}}
	}
	if mt == nil || mt.Schema == nil || !isJSON(ct) {
		return 0, nil
	}

	value, err := decodeJSON(data)
	if err != nil {
		return 0, validate.Messages{{Path: path, Kind: validate.KindTypeMismatch, Text: "malformed JSON body: " + err.Error()}}
	}
	return 0, rv.validator.ValidateAt(mt.Schema, value, path)
}

// decodeJSON decodes exactly one JSON value, keeping numbers exact.
func decodeJSON(data []byte) (any, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, err
	}
	if dec.More() {
		return nil, errors.New("unexpected data after JSON value")
	}
	return v, nil
}

func isJSON(ct string) bool {
	return ct == jsonContentType || strings.HasSuffix(ct, "+json")
}

// coerce converts raw parameter strings to the value shape of n. Values that
// do not parse are left as strings so the validator reports the mismatch.
func coerce(r schema.Resolver, n schema.Node, raw []string) any {
	n = deref(r, n)

	switch v := n.(type) {
	case *schema.Array:
		parts := raw
		if len(raw) == 1 {
			parts = strings.Split(raw[0], ",")
		}
		out := make([]any, len(parts))
		for i, part := range parts {
			out[i] = coerce(r, v.Items(), []string{part})
		}
		return out

	case *schema.Primitive:
		s := raw[0]
		switch v.Kind() {
		case schema.KindInteger:
			if i, err := strconv.ParseInt(s, 10, 64); err == nil {
				return i
			}
			// Out of int64 range: keep the exact text for the format check.
			if _, ok := new(big.Int).SetString(s, 10); ok {
				return json.Number(s)
			}
		case schema.KindNumber:
			if f, err := strconv.ParseFloat(s, 64); err == nil {
				return f
			}
		case schema.KindBoolean:
			if b, err := strconv.ParseBool(s); err == nil {
				return b
			}
		}
		return s
	}
	return raw[0]
}

// deref follows references to a concrete node, giving up after a bounded
// number of hops.
func deref(r schema.Resolver, n schema.Node) schema.Node {
	for range maxPointerDerefs {
		ref, ok := n.(*schema.Reference)
		if !ok {
			return n
		}
		target, err := r.ResolveSchema(ref.Target())
		if err != nil {
			return n
		}
		n = target
	}
	return n
}

// writeErrors is the default ErrorHandlerFunc.
func writeErrors(w http.ResponseWriter, _ *http.Request, status int, msgs validate.Messages) {
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(ErrorResponse{Errors: msgs}); err != nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(buf.Bytes())
}
