package schema

import (
	"fmt"
	"slices"

	"github.com/vitalvas/apicontract/format"
)

// Checker decides whether every value accepted by a candidate schema is also
// accepted by a target schema. The relation is directional: it answers "can a
// value of the candidate be used wherever the target is expected".
//
// A Checker without a Resolver treats two references as compatible only when
// they name the same component; with a Resolver, references are dereferenced
// and reference cycles are cut by assuming compatibility on re-entry.
type Checker struct {
	resolver Resolver
}

// NewChecker creates a checker that dereferences references through r.
// A nil resolver is allowed.
func NewChecker(r Resolver) *Checker {
	return &Checker{resolver: r}
}

// IsCompatibleWith reports whether candidate is compatible with target
// without dereferencing references.
func IsCompatibleWith(candidate, target Node) bool {
	return NewChecker(nil).IsCompatible(candidate, target)
}

// IsCompatible reports whether candidate is compatible with target.
func (c *Checker) IsCompatible(candidate, target Node) bool {
	if candidate == nil || target == nil {
		return false
	}
	return c.compatible(candidate, target, make(map[[2]string]struct{}))
}

func (c *Checker) compatible(a, b Node, visited map[[2]string]struct{}) bool {
	ra, aIsRef := a.(*Reference)
	rb, bIsRef := b.(*Reference)
	if aIsRef || bIsRef {
		if aIsRef && bIsRef && ra.target == rb.target {
			return true
		}
		if c.resolver == nil {
			return false
		}
		var key [2]string
		if aIsRef {
			key[0] = ra.target
		}
		if bIsRef {
			key[1] = rb.target
		}
		if _, ok := visited[key]; ok {
			return true
		}
		visited[key] = struct{}{}

		var err error
		if aIsRef {
			if a, err = c.resolver.ResolveSchema(ra.target); err != nil {
				return false
			}
		}
		if bIsRef {
			if b, err = c.resolver.ResolveSchema(rb.target); err != nil {
				return false
			}
		}
		return c.compatible(a, b, visited)
	}

	if a.IsNullable() && !b.IsNullable() {
		return false
	}

	if da, ok := a.(*Discriminator); ok {
		if da.mode == AllOf {
			// Any one member being compatible is sufficient: the value satisfies all of them.
			for _, m := range da.members {
				if c.compatible(m, b, visited) {
					return true
				}
			}
			return false
		}
		for _, m := range da.members {
			if !c.compatible(m, b, visited) {
				return false
			}
		}
		return true
	}

	if db, ok := b.(*Discriminator); ok {
		if db.mode == AllOf {
			for _, m := range db.members {
				if !c.compatible(a, m, visited) {
					return false
				}
			}
			return true
		}
		for _, m := range db.members {
			if c.compatible(a, m, visited) {
				return true
			}
		}
		return false
	}

	switch va := a.(type) {
	case *Primitive:
		vb, ok := b.(*Primitive)
		return ok && primitiveCompatible(va, vb)

	case *Array:
		vb, ok := b.(*Array)
		if !ok {
			return false
		}
		if vb.uniqueItems && !va.uniqueItems {
			return false
		}
		return c.compatible(va.items, vb.items, visited)

	case *Map:
		vb, ok := b.(*Map)
		return ok && c.compatible(va.values, vb.values, visited)

	case *Object:
		vb, ok := b.(*Object)
		if !ok {
			return false
		}
		for _, name := range vb.required {
			if !slices.Contains(va.required, name) {
				return false
			}
		}
		for _, pb := range vb.properties {
			pa, found := va.Property(pb.Name)
			if !found || !c.compatible(pa, pb.Schema, visited) {
				return false
			}
		}
		return true

	default:
		panic(fmt.Sprintf("schema: unknown node type %T", a))
	}
}

func primitiveCompatible(a, b *Primitive) bool {
	if a.kind != b.kind && !(a.kind == KindInteger && b.kind == KindNumber) {
		return false
	}

	if b.enum != nil {
		if a.enum == nil {
			return false
		}
		for _, v := range a.enum {
			if !slices.Contains(b.enum, v) {
				return false
			}
		}
	}

	// Integer values are always representable where a number is expected, so
	// the number's format does not constrain an integer candidate.
	if b.format != "" && a.kind == b.kind && a.format != b.format {
		if !(a.format == format.Int32 && b.format == format.Int64) {
			return false
		}
	}

	if b.minimum != nil && (a.minimum == nil || *a.minimum < *b.minimum) {
		return false
	}
	if b.maximum != nil && (a.maximum == nil || *a.maximum > *b.maximum) {
		return false
	}
	if b.minLength != nil && (a.minLength == nil || *a.minLength < *b.minLength) {
		return false
	}
	if b.maxLength != nil && (a.maxLength == nil || *a.maxLength > *b.maxLength) {
		return false
	}

	return true
}
