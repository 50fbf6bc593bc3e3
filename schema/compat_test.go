package schema

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/vitalvas/apicontract/format"
)

type mapResolver map[string]Node

func (m mapResolver) ResolveSchema(name string) (Node, error) {
	n, ok := m[name]
	if !ok {
		return nil, fmt.Errorf("unknown schema %q", name)
	}
	return n, nil
}

func TestIsCompatibleWith(t *testing.T) {
	int32Node := Must(NewInteger(Format(format.Int32)))
	int64Node := Must(NewInteger(Format(format.Int64)))
	number := Must(NewNumber())
	str := Must(NewString())
	enumA := Must(NewString(Enum("A")))
	enumAB := Must(NewString(Enum("A", "B")))

	tests := []struct {
		name      string
		candidate Node
		target    Node
		want      bool
	}{
		{"int32 into number", int32Node, number, true},
		{"int64 into int32", int64Node, int32Node, false},
		{"int32 into int64", int32Node, int64Node, true},
		{"int64 into int64", int64Node, int64Node, true},
		{"int64 into plain integer", int64Node, Must(NewInteger()), true},
		{"plain integer into int32", Must(NewInteger()), int32Node, false},
		{"integer into double", int64Node, Must(NewNumber(Format(format.Double))), true},
		{"number into integer", number, Must(NewInteger()), false},
		{"enum subset", enumA, enumAB, true},
		{"enum superset", enumAB, enumA, false},
		{"plain string into enum", str, enumA, false},
		{"enum into plain string", enumA, str, true},
		{"uuid into string", Must(NewString(Format(format.UUID))), str, true},
		{"string into uuid", str, Must(NewString(Format(format.UUID))), false},
		{"email into uuid", Must(NewString(Format(format.Email))), Must(NewString(Format(format.UUID))), false},
		{"string into boolean", str, Must(NewBoolean()), false},
		{"nullable into non-nullable", str.AsNullable(), str, false},
		{"non-nullable into nullable", str, str.AsNullable(), true},
		{"tighter bounds", Must(NewInteger(Minimum(1), Maximum(5))), Must(NewInteger(Minimum(0), Maximum(10))), true},
		{"looser bounds", Must(NewInteger(Minimum(0))), Must(NewInteger(Minimum(1))), false},
		{"missing bound", Must(NewInteger()), Must(NewInteger(Maximum(1))), false},
		{"tighter length", Must(NewString(MaxLength(3))), Must(NewString(MaxLength(5))), true},
		{"looser length", Must(NewString(MinLength(1))), Must(NewString(MinLength(2))), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsCompatibleWith(tt.candidate, tt.target))
		})
	}

	t.Run("nil nodes", func(t *testing.T) {
		assert.False(t, IsCompatibleWith(nil, str))
		assert.False(t, IsCompatibleWith(str, nil))
	})
}

func TestIsCompatibleWithComposite(t *testing.T) {
	str := Must(NewString())
	id32 := Must(NewInteger(Format(format.Int32)))
	id64 := Must(NewInteger(Format(format.Int64)))

	t.Run("array", func(t *testing.T) {
		a := Must(NewArray(id32))
		b := Must(NewArray(id64))
		assert.True(t, IsCompatibleWith(a, b))
		assert.False(t, IsCompatibleWith(b, a))
		assert.True(t, IsCompatibleWith(a.WithUniqueItems(), b))
		assert.False(t, IsCompatibleWith(a, b.WithUniqueItems()))
		assert.False(t, IsCompatibleWith(a, str))
	})

	t.Run("map", func(t *testing.T) {
		m := Must(NewMap(str))
		assert.True(t, IsCompatibleWith(m, Must(NewMap(str))))
		assert.False(t, IsCompatibleWith(m, Must(NewMap(Must(NewString(Enum("A")))))))
		assert.False(t, IsCompatibleWith(m, Must(NewObject(Prop("a", str)))))
	})

	t.Run("object", func(t *testing.T) {
		wide := Must(NewObject(Prop("id", id32), Prop("name", str)))
		narrow := Must(NewObject(Prop("id", id64)))

		assert.True(t, IsCompatibleWith(wide, narrow))
		assert.False(t, IsCompatibleWith(narrow, wide))

		required := Must(narrow.WithRequired("id"))
		assert.False(t, IsCompatibleWith(wide, required))
		assert.True(t, IsCompatibleWith(Must(wide.WithRequired("id")), required))
	})

	t.Run("candidate union", func(t *testing.T) {
		target := Must(NewNumber())
		assert.True(t, IsCompatibleWith(Must(NewOneOf(id32, id64)), target))
		assert.False(t, IsCompatibleWith(Must(NewAnyOf(id32, str)), target))
	})

	t.Run("candidate allOf", func(t *testing.T) {
		base := Must(NewObject(Prop("id", id32)))
		extra := Must(NewObject(Prop("name", str)))
		all := Must(NewAllOf(base, extra))

		assert.True(t, IsCompatibleWith(all, Must(NewObject(Prop("name", str)))))
		assert.False(t, IsCompatibleWith(all, Must(NewObject(Prop("age", id32)))))
	})

	t.Run("target union", func(t *testing.T) {
		target := Must(NewOneOf(str, Must(NewBoolean())))
		assert.True(t, IsCompatibleWith(str, target))
		assert.False(t, IsCompatibleWith(id32, target))
	})

	t.Run("target allOf", func(t *testing.T) {
		a := Must(NewObject(Prop("id", id64)))
		b := Must(NewObject(Prop("name", str)))
		target := Must(NewAllOf(a, b))

		assert.True(t, IsCompatibleWith(Must(NewObject(Prop("id", id32), Prop("name", str))), target))
		assert.False(t, IsCompatibleWith(Must(NewObject(Prop("id", id32))), target))
	})
}

func TestCheckerReferences(t *testing.T) {
	pet := Must(NewObject(Prop("id", Must(NewInteger(Format(format.Int64))))))
	petRef := Must(NewReference("Pet"))
	tagRef := Must(NewReference("Tag"))

	t.Run("same name without resolver", func(t *testing.T) {
		assert.True(t, IsCompatibleWith(petRef, Must(NewReference("Pet"))))
		assert.False(t, IsCompatibleWith(petRef, tagRef))
		assert.False(t, IsCompatibleWith(petRef, pet))
	})

	t.Run("resolved", func(t *testing.T) {
		c := NewChecker(mapResolver{
			"Pet": pet,
			"Tag": Must(NewObject(Prop("label", Must(NewString())))),
		})

		assert.True(t, c.IsCompatible(petRef, pet))
		assert.True(t, c.IsCompatible(pet, petRef))
		assert.False(t, c.IsCompatible(petRef, tagRef))
	})

	t.Run("unresolved", func(t *testing.T) {
		c := NewChecker(mapResolver{})
		assert.False(t, c.IsCompatible(petRef, pet))
	})

	t.Run("recursive schemas", func(t *testing.T) {
		node := Must(NewObject(
			Prop("value", Must(NewString())),
			Prop("next", Must(NewReference("Node"))),
		))
		list := Must(NewObject(
			Prop("value", Must(NewString())),
			Prop("next", Must(NewReference("List"))),
		))
		c := NewChecker(mapResolver{"Node": node, "List": list})

		assert.True(t, c.IsCompatible(Must(NewReference("Node")), Must(NewReference("List"))))
	})
}
