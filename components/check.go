package components

import (
	"fmt"
	"slices"

	"github.com/vitalvas/apicontract/schema"
)

// edge is a reference found while walking a schema. Guarded edges pass
// through an array, map or object on the way to the reference, so following
// them consumes input.
type edge struct {
	target  string
	guarded bool
}

// Check verifies that every reference reachable from a registered component
// resolves, and that no chain of references loops back on itself without
// passing through an array, map or object. Such a chain would make the
// validator recurse without ever consuming input. It also rejects allOf
// members that are references resolving to a primitive schema.
//
// Components are visited in lexicographic order; the first problem found is
// returned as an *UnknownReferenceError, or an *InvalidComponentError for
// allOf members.
func (r *Registry) Check() error {
	graph := make(map[string][]edge, r.Len(Schemas))

	for _, name := range r.Names(Schemas) {
		n, _ := r.ResolveSchema(name)
		edges := collectEdges(n, false, nil)
		for _, e := range edges {
			if !r.Has(Schemas, e.target) {
				return &UnknownReferenceError{Type: Schemas, Name: e.target, Referrer: name}
			}
		}
		graph[name] = edges
	}

	for _, t := range Types {
		if t == Schemas {
			continue
		}
		for _, name := range r.Names(t) {
			carrier, ok := r.entries[t][name].(SchemaCarrier)
			if !ok {
				continue
			}
			for _, n := range carrier.CarriedSchemas() {
				for _, e := range collectEdges(n, false, nil) {
					if !r.Has(Schemas, e.target) {
						return &UnknownReferenceError{Type: Schemas, Name: e.target, Referrer: name}
					}
				}
			}
		}
	}

	if cycle := findCycle(graph, r.Names(Schemas)); cycle != nil {
		return &UnknownReferenceError{Type: Schemas, Name: cycle[0], Cycle: cycle}
	}

	for _, t := range Types {
		for _, name := range r.Names(t) {
			var nodes []schema.Node
			switch v := r.entries[t][name].(type) {
			case schema.Node:
				nodes = []schema.Node{v}
			case SchemaCarrier:
				nodes = v.CarriedSchemas()
			}
			for _, n := range nodes {
				if ref := r.primitiveAllOfMember(n); ref != nil {
					return &InvalidComponentError{
						Type:    t,
						Name:    name,
						Message: fmt.Sprintf("allOf member %s resolves to a primitive", ref.Ref()),
					}
				}
			}
		}
	}
	return nil
}

// primitiveAllOfMember returns the first allOf member reachable from n that
// is a reference to a primitive schema, or nil.
func (r *Registry) primitiveAllOfMember(n schema.Node) *schema.Reference {
	switch v := n.(type) {
	case *schema.Array:
		return r.primitiveAllOfMember(v.Items())
	case *schema.Map:
		return r.primitiveAllOfMember(v.Values())
	case *schema.Object:
		for _, p := range v.Properties() {
			if ref := r.primitiveAllOfMember(p.Schema); ref != nil {
				return ref
			}
		}
	case *schema.Discriminator:
		for _, m := range v.Members() {
			if ref, ok := m.(*schema.Reference); ok && v.Mode() == schema.AllOf && r.resolvesToPrimitive(ref) {
				return ref
			}
			if ref := r.primitiveAllOfMember(m); ref != nil {
				return ref
			}
		}
	}
	return nil
}

// resolvesToPrimitive follows a chain of references to its first
// non-reference schema. Chains are acyclic once findCycle has passed.
func (r *Registry) resolvesToPrimitive(ref *schema.Reference) bool {
	var n schema.Node = ref
	for range r.Len(Schemas) + 1 {
		next, ok := n.(*schema.Reference)
		if !ok {
			break
		}
		target, err := r.ResolveSchema(next.Target())
		if err != nil {
			return false
		}
		n = target
	}
	return n.Kind().IsPrimitive()
}

// CheckSchema verifies that every reference reachable from n resolves
// against the registry.
func (r *Registry) CheckSchema(n schema.Node) error {
	for _, e := range collectEdges(n, false, nil) {
		if !r.Has(Schemas, e.target) {
			return &UnknownReferenceError{Type: Schemas, Name: e.target}
		}
	}
	return nil
}

func collectEdges(n schema.Node, guarded bool, out []edge) []edge {
	switch v := n.(type) {
	case *schema.Primitive:
	case *schema.Reference:
		out = append(out, edge{target: v.Target(), guarded: guarded})
	case *schema.Array:
		out = collectEdges(v.Items(), true, out)
	case *schema.Map:
		out = collectEdges(v.Values(), true, out)
	case *schema.Object:
		for _, p := range v.Properties() {
			out = collectEdges(p.Schema, true, out)
		}
	case *schema.Discriminator:
		for _, m := range v.Members() {
			out = collectEdges(m, guarded, out)
		}
	default:
		panic(fmt.Sprintf("components: unknown node type %T", n))
	}
	return out
}

// findCycle returns the first cycle formed by unguarded edges, as a list of
// names starting and ending with the same component, or nil.
func findCycle(graph map[string][]edge, names []string) []string {
	const (
		unvisited = iota
		inProgress
		done
	)
	state := make(map[string]int, len(names))
	var stack []string

	var visit func(name string) []string
	visit = func(name string) []string {
		state[name] = inProgress
		stack = append(stack, name)

		for _, e := range graph[name] {
			if e.guarded {
				continue
			}
			switch state[e.target] {
			case inProgress:
				start := slices.Index(stack, e.target)
				return append(slices.Clone(stack[start:]), e.target)
			case unvisited:
				if cycle := visit(e.target); cycle != nil {
					return cycle
				}
			}
		}

		stack = stack[:len(stack)-1]
		state[name] = done
		return nil
	}

	for _, name := range names {
		if state[name] == unvisited {
			if cycle := visit(name); cycle != nil {
				return cycle
			}
		}
	}
	return nil
}
