// Package validate checks decoded values against schema nodes and reports
// every problem as a Message tagged with the FieldPath where it occurred.
//
// Validation never fails as a whole: problems are returned as data and an
// empty result means the value conforms. Values are expected in the form
// produced by encoding/json (nil, bool, string, float64 or json.Number,
// []any, map[string]any); Go integer kinds and typed slices and maps are
// accepted as well.
package validate

import (
	"fmt"
	"log/slog"
	"math/big"
	"slices"
	"unicode/utf8"

	"github.com/vitalvas/apicontract/format"
	"github.com/vitalvas/apicontract/schema"
)

// DefaultMaxDepth is the default number of consecutive reference and
// composition steps allowed without descending into the value.
const DefaultMaxDepth = 64

// Option configures a Validator.
type Option func(*Validator)

// WithMaxDepth limits the number of consecutive reference and composition
// steps taken without descending into the value. Values below 1 are ignored.
func WithMaxDepth(n int) Option {
	return func(v *Validator) {
		if n > 0 {
			v.maxDepth = n
		}
	}
}

// WithLogger sets the logger used to report schema problems found while
// validating, such as unresolved references. A nil logger is ignored.
func WithLogger(l *slog.Logger) Option {
	return func(v *Validator) {
		if l != nil {
			v.logger = l
		}
	}
}

// Validator walks a schema and a decoded value in lock-step. It holds no
// mutable state and may be used from multiple goroutines.
type Validator struct {
	resolver schema.Resolver
	maxDepth int
	logger   *slog.Logger
}

// New creates a validator resolving references through r. A nil resolver
// makes every reference unresolved.
func New(r schema.Resolver, opts ...Option) *Validator {
	v := &Validator{
		resolver: r,
		maxDepth: DefaultMaxDepth,
		logger:   slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Validate checks value against n with default options.
func Validate(n schema.Node, r schema.Resolver, value any) Messages {
	return New(r).Validate(n, value)
}

// Validate checks value against n, reporting paths relative to the root.
func (v *Validator) Validate(n schema.Node, value any) Messages {
	return v.ValidateAt(n, value, Root())
}

// ValidateAt checks value against n, reporting paths relative to path.
func (v *Validator) ValidateAt(n schema.Node, value any, path FieldPath) Messages {
	w := &walker{
		Validator: v,
		active:    make(map[visit]bool),
		done:      make(map[visit]result),
	}
	return w.walk(n, value, path, 0)
}

// visit identifies a reference target applied at a value location. The
// value at a path is fixed for a single run, so repeated visits yield the
// same messages unless the depth guard cuts them short.
type visit struct {
	target string
	path   string
}

// result is a finished visit and the depth it was entered at.
type result struct {
	msgs  Messages
	depth int
}

// walker carries the state of a single validation run. A visit that is
// re-entered while still active is a reference cycle that consumes no
// input; finished visits are memoized so unions that reach the same
// target through several members are walked once.
type walker struct {
	*Validator
	active map[visit]bool
	done   map[visit]result
}

func (v *walker) depthExceeded(path FieldPath) Messages {
	v.logger.Warn("validation depth exceeded", "path", path.String(), "max_depth", v.maxDepth)
	return Messages{{
		Path:   path,
		Kind:   KindDepthExceeded,
		Text:   fmt.Sprintf("schema nesting exceeds %d steps", v.maxDepth),
		Params: map[string]any{"max_depth": v.maxDepth},
	}}
}

func (v *walker) walk(n schema.Node, value any, path FieldPath, depth int) Messages {
	if depth > v.maxDepth {
		return v.depthExceeded(path)
	}

	if ref, ok := n.(*schema.Reference); ok {
		return v.walkReference(ref, value, path, depth)
	}

	if value == nil && n.IsNullable() {
		return nil
	}

	switch node := n.(type) {
	case *schema.Primitive:
		return v.walkPrimitive(node, value, path)
	case *schema.Array:
		return v.walkArray(node, value, path)
	case *schema.Map:
		return v.walkMap(node, value, path)
	case *schema.Object:
		return v.walkObject(node, value, path)
	case *schema.Discriminator:
		return v.walkDiscriminator(node, value, path, depth)
	default:
		panic(fmt.Sprintf("validate: unknown node type %T", n))
	}
}

func (v *walker) walkReference(ref *schema.Reference, value any, path FieldPath, depth int) Messages {
	var target schema.Node
	var err error
	if v.resolver == nil {
		err = fmt.Errorf("no resolver for %s", ref.Ref())
	} else {
		target, err = v.resolver.ResolveSchema(ref.Target())
	}
	if err != nil {
		v.logger.Warn("unresolved reference", "ref", ref.Ref(), "path", path.String(), "error", err)
		return Messages{{
			Path:   path,
			Kind:   KindUnresolvedReference,
			Text:   "unresolved reference " + ref.Ref(),
			Params: map[string]any{"ref": ref.Ref()},
		}}
	}

	key := visit{target: ref.Target(), path: path.String()}
	// A result cut short by the depth guard holds for entries at the same
	// depth or deeper.
	if prev, ok := v.done[key]; ok && (depth >= prev.depth || !prev.msgs.Has(KindDepthExceeded)) {
		return prev.msgs
	}
	if v.active[key] {
		return v.depthExceeded(path)
	}

	v.active[key] = true
	res := v.walk(target, value, path, depth+1)
	delete(v.active, key)

	v.done[key] = result{msgs: res, depth: depth}
	return res
}

func typeMismatch(path FieldPath, expected string, value any) Messages {
	actual := kindName(value)
	return Messages{{
		Path:   path,
		Kind:   KindTypeMismatch,
		Text:   fmt.Sprintf("expected %s, got %s", expected, actual),
		Params: map[string]any{"expected": expected, "actual": actual},
	}}
}

func (v *walker) walkPrimitive(p *schema.Primitive, value any, path FieldPath) Messages {
	switch p.Kind() {
	case schema.KindBoolean:
		if _, ok := value.(bool); !ok {
			return typeMismatch(path, "boolean", value)
		}
		return nil

	case schema.KindInteger:
		n, ok := asInteger(value)
		if !ok {
			return typeMismatch(path, "integer", value)
		}
		return checkInteger(p, n, path)

	case schema.KindNumber:
		if n, ok := asInteger(value); ok {
			return checkInteger(p, n, path)
		}
		n, ok := asNumber(value)
		if !ok {
			return typeMismatch(path, "number", value)
		}
		return checkNumber(p, n, path)

	case schema.KindString:
		s, ok := value.(string)
		if !ok {
			return typeMismatch(path, "string", value)
		}
		return checkString(p, s, path)

	default:
		panic(fmt.Sprintf("validate: unknown primitive kind %s", p.Kind()))
	}
}

func checkInteger(p *schema.Primitive, n *big.Int, path FieldPath) Messages {
	var out Messages
	if violation := format.CheckInteger(p.Format(), n); violation != nil {
		out = append(out, Message{Path: path, Kind: KindInvalidFormat, Text: violation.Text, Params: violation.Params})
	}

	exact := new(big.Float).SetInt(n)
	return append(out, checkBounds(p, integerParam(n), path, func(bound float64) int {
		return exact.Cmp(big.NewFloat(bound))
	})...)
}

func checkNumber(p *schema.Primitive, n float64, path FieldPath) Messages {
	var out Messages
	if violation := format.CheckNumber(p.Format(), n); violation != nil {
		out = append(out, Message{Path: path, Kind: KindInvalidFormat, Text: violation.Text, Params: violation.Params})
	}

	return append(out, checkBounds(p, n, path, func(bound float64) int {
		switch {
		case n < bound:
			return -1
		case n > bound:
			return 1
		}
		return 0
	})...)
}

// checkBounds applies minimum and maximum; cmp compares the value with a
// bound the way big.Float.Cmp does.
func checkBounds(p *schema.Primitive, value any, path FieldPath, cmp func(bound float64) int) Messages {
	var out Messages

	if lo, ok := p.Minimum(); ok && cmp(lo) < 0 {
		out = append(out, Message{
			Path:   path,
			Kind:   KindOutOfRange,
			Text:   fmt.Sprintf("value %v is less than the minimum %v", value, lo),
			Params: map[string]any{"value": value, "minimum": lo},
		})
	}
	if hi, ok := p.Maximum(); ok && cmp(hi) > 0 {
		out = append(out, Message{
			Path:   path,
			Kind:   KindOutOfRange,
			Text:   fmt.Sprintf("value %v is greater than the maximum %v", value, hi),
			Params: map[string]any{"value": value, "maximum": hi},
		})
	}

	return out
}

func checkString(p *schema.Primitive, s string, path FieldPath) Messages {
	minLen, hasMin := p.MinLength()
	if s == "" && (!hasMin || minLen > 0) {
		return Messages{{Path: path, Kind: KindEmptyString, Text: "value must not be empty"}}
	}

	var out Messages

	length := utf8.RuneCountInString(s)
	if hasMin && length < minLen {
		out = append(out, Message{
			Path:   path,
			Kind:   KindInvalidLength,
			Text:   fmt.Sprintf("length %d is less than the minimum length %d", length, minLen),
			Params: map[string]any{"length": length, "minLength": minLen},
		})
	}
	if maxLen, ok := p.MaxLength(); ok && length > maxLen {
		out = append(out, Message{
			Path:   path,
			Kind:   KindInvalidLength,
			Text:   fmt.Sprintf("length %d is greater than the maximum length %d", length, maxLen),
			Params: map[string]any{"length": length, "maxLength": maxLen},
		})
	}

	if violation := format.Check(p.Format(), s); violation != nil {
		out = append(out, Message{Path: path, Kind: KindInvalidFormat, Text: violation.Text, Params: violation.Params})
	}

	if p.HasEnum() {
		allowed := p.Enum()
		if !slices.Contains(allowed, s) {
			out = append(out, Message{
				Path:   path,
				Kind:   KindValueNotAllowed,
				Text:   fmt.Sprintf("value %q is not one of the allowed values", s),
				Params: map[string]any{"value": s, "allowed": allowed},
			})
		}
	}

	return out
}

func (v *walker) walkArray(a *schema.Array, value any, path FieldPath) Messages {
	items, ok := asSlice(value)
	if !ok {
		return typeMismatch(path, "array", value)
	}

	var out Messages
	for i, item := range items {
		out = append(out, v.walk(a.Items(), item, path.Index(i), 0)...)
	}

	if a.UniqueItems() {
		if dups := duplicateIndices(items); len(dups) > 0 {
			out = append(out, Message{
				Path:   path,
				Kind:   KindDuplicateArrayItems,
				Text:   fmt.Sprintf("array items must be unique, duplicates at indices %v", dups),
				Params: map[string]any{"indices": dups},
			})
		}
	}

	return out
}

// duplicateIndices returns, in ascending order, the indices of every element
// that is equal to some other element.
func duplicateIndices(items []any) []int {
	groups := make(map[string][]int, len(items))
	for i, item := range items {
		key := canonical(item)
		groups[key] = append(groups[key], i)
	}

	var out []int
	for _, idx := range groups {
		if len(idx) > 1 {
			out = append(out, idx...)
		}
	}
	slices.Sort(out)
	return out
}

func (v *walker) walkMap(m *schema.Map, value any, path FieldPath) Messages {
	entries, ok := asMapping(value)
	if !ok {
		return typeMismatch(path, "object", value)
	}

	var out Messages
	for _, key := range sortedKeys(entries) {
		out = append(out, v.walk(m.Values(), entries[key], path.Key(key), 0)...)
	}
	return out
}

func (v *walker) walkObject(o *schema.Object, value any, path FieldPath) Messages {
	entries, ok := asMapping(value)
	if !ok {
		return typeMismatch(path, "object", value)
	}

	var out Messages
	for _, prop := range o.Properties() {
		field, present := entries[prop.Name]
		if !present {
			if o.IsRequired(prop.Name) {
				out = append(out, Message{
					Path:   path.Key(prop.Name),
					Kind:   KindRequired,
					Text:   fmt.Sprintf("property %q is required", prop.Name),
					Params: map[string]any{"property": prop.Name},
				})
			}
			continue
		}
		out = append(out, v.walk(prop.Schema, field, path.Key(prop.Name), 0)...)
	}
	return out
}

func (v *walker) walkDiscriminator(d *schema.Discriminator, value any, path FieldPath, depth int) Messages {
	members := d.Members()

	if d.Mode() == schema.AllOf {
		var out Messages
		for _, m := range members {
			out = append(out, v.walk(m, value, path, depth+1)...)
		}
		return out
	}

	var matched []int
	var deepest Messages
	for i, m := range members {
		res := v.walk(m, value, path, depth+1)
		if res.OK() {
			matched = append(matched, i)
			continue
		}
		if res.Has(KindDepthExceeded) && deepest == nil {
			deepest = res
		}
	}

	switch {
	case len(matched) == 0:
		if deepest != nil {
			return deepest
		}
		return Messages{{
			Path:   path,
			Kind:   KindNoVariantMatched,
			Text:   fmt.Sprintf("value does not match any of the %d %s variants", len(members), d.Mode()),
			Params: map[string]any{"mode": d.Mode().Keyword(), "variants": len(members)},
		}}

	case len(matched) > 1 && d.Mode() == schema.OneOf:
		return Messages{{
			Path:   path,
			Kind:   KindAmbiguousVariant,
			Text:   fmt.Sprintf("value matches %d oneOf variants %v, expected exactly one", len(matched), matched),
			Params: map[string]any{"mode": d.Mode().Keyword(), "matched": matched},
		}}
	}

	return nil
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
