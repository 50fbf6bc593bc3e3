package validate

import (
	"encoding/json"
	"fmt"
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vitalvas/apicontract/format"
	"github.com/vitalvas/apicontract/schema"
)

type mapResolver map[string]schema.Node

func (m mapResolver) ResolveSchema(name string) (schema.Node, error) {
	n, ok := m[name]
	if !ok {
		return nil, fmt.Errorf("unknown schema %q", name)
	}
	return n, nil
}

// brief is the comparable projection of a Message used in table tests.
type brief struct {
	Path string
	Kind ErrorKind
}

func briefs(ms Messages) []brief {
	out := make([]brief, 0, len(ms))
	for _, m := range ms {
		out = append(out, brief{Path: m.Path.String(), Kind: m.Kind})
	}
	return out
}

func decode(t *testing.T, s string) any {
	t.Helper()
	var v any
	require.NoError(t, json.Unmarshal([]byte(s), &v))
	return v
}

func TestValidatePrimitive(t *testing.T) {
	str := schema.Must(schema.NewString())
	integer := schema.Must(schema.NewInteger())
	number := schema.Must(schema.NewNumber())
	boolean := schema.Must(schema.NewBoolean())

	tests := []struct {
		name  string
		node  schema.Node
		value any
		want  []brief
	}{
		{"string ok", str, "abc", nil},
		{"empty string", str, "", []brief{{"", KindEmptyString}}},
		{"string type mismatch", str, []any{"a"}, []brief{{"", KindTypeMismatch}}},
		{"string null", str, nil, []brief{{"", KindTypeMismatch}}},
		{"nullable string null", str.AsNullable(), nil, nil},
		{"integer from float", integer, 42.0, nil},
		{"integer native", integer, int64(7), nil},
		{"integer json.Number", integer, json.Number("12"), nil},
		{"integer fraction", integer, 1.5, []brief{{"", KindTypeMismatch}}},
		{"integer json.Number fraction", integer, json.Number("1.5"), []brief{{"", KindTypeMismatch}}},
		{"integer string", integer, "1", []brief{{"", KindTypeMismatch}}},
		{"number ok", number, 1.5, nil},
		{"number from int", number, 3, nil},
		{"number bool", number, true, []brief{{"", KindTypeMismatch}}},
		{"boolean ok", boolean, false, nil},
		{"boolean string", boolean, "true", []brief{{"", KindTypeMismatch}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Validate(tt.node, nil, tt.value)
			if diff := cmp.Diff(tt.want, briefs(got), cmpEmpty); diff != "" {
				t.Errorf("messages mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

var cmpEmpty = cmpopts.EquateEmpty()

func TestValidateString(t *testing.T) {
	t.Run("empty string yields exactly one message", func(t *testing.T) {
		for _, n := range []*schema.Primitive{
			schema.Must(schema.NewString()),
			schema.Must(schema.NewString(schema.Format(format.Email))),
			schema.Must(schema.NewString(schema.Enum("a", "b"))),
			schema.Must(schema.NewString(schema.MinLength(3))),
			schema.Must(schema.NewString(schema.Format(format.Password))),
		} {
			got := Validate(n, nil, "")
			require.Len(t, got, 1)
			assert.Equal(t, KindEmptyString, got[0].Kind)
		}
	})

	t.Run("empty string allowed by explicit zero minLength", func(t *testing.T) {
		n := schema.Must(schema.NewString(schema.MinLength(0)))
		assert.Empty(t, Validate(n, nil, ""))
	})

	t.Run("non-empty string without constraints", func(t *testing.T) {
		n := schema.Must(schema.NewString())
		for _, s := range []string{"a", " ", "日本語", "2021-02-30"} {
			assert.Empty(t, Validate(n, nil, s), s)
		}
	})

	t.Run("format", func(t *testing.T) {
		n := schema.Must(schema.NewString(schema.Format(format.Date)))
		assert.Empty(t, Validate(n, nil, "2024-02-29"))

		got := Validate(n, nil, "2021-02-30")
		require.Len(t, got, 1)
		assert.Equal(t, KindInvalidFormat, got[0].Kind)
		assert.Equal(t, "date", got[0].Params["format"])
		assert.Equal(t, "2021-02-30", got[0].Params["value"])
	})

	t.Run("opaque formats", func(t *testing.T) {
		for _, f := range []format.Name{format.Byte, format.Binary, format.Password} {
			n := schema.Must(schema.NewString(schema.Format(f)))
			assert.Empty(t, Validate(n, nil, "!!not checked!!"), f)
		}
	})

	t.Run("enum", func(t *testing.T) {
		n := schema.Must(schema.NewString(schema.Enum("cat", "dog")))
		assert.Empty(t, Validate(n, nil, "dog"))

		got := Validate(n, nil, "bird")
		require.Len(t, got, 1)
		assert.Equal(t, KindValueNotAllowed, got[0].Kind)
		assert.Equal(t, []string{"cat", "dog"}, got[0].Params["allowed"])
	})

	t.Run("length counts characters", func(t *testing.T) {
		n := schema.Must(schema.NewString(schema.MinLength(2), schema.MaxLength(3)))
		assert.Empty(t, Validate(n, nil, "日本語"))

		got := Validate(n, nil, "a")
		require.Len(t, got, 1)
		assert.Equal(t, KindInvalidLength, got[0].Kind)

		got = Validate(n, nil, "abcd")
		require.Len(t, got, 1)
		assert.Equal(t, 4, got[0].Params["length"])
	})
}

func TestValidateNumber(t *testing.T) {
	t.Run("bounds", func(t *testing.T) {
		n := schema.Must(schema.NewInteger(schema.Minimum(1), schema.Maximum(10)))
		assert.Empty(t, Validate(n, nil, 1.0))
		assert.Empty(t, Validate(n, nil, 10.0))

		got := Validate(n, nil, 0.0)
		require.Len(t, got, 1)
		assert.Equal(t, KindOutOfRange, got[0].Kind)
		assert.Equal(t, 1.0, got[0].Params["minimum"])

		got = Validate(n, nil, 11.0)
		require.Len(t, got, 1)
		assert.Equal(t, 10.0, got[0].Params["maximum"])
	})

	t.Run("int32 range", func(t *testing.T) {
		n := schema.Must(schema.NewInteger(schema.Format(format.Int32)))
		assert.Empty(t, Validate(n, nil, 2147483647.0))

		got := Validate(n, nil, 2147483648.0)
		require.Len(t, got, 1)
		assert.Equal(t, KindInvalidFormat, got[0].Kind)
	})

	t.Run("float range", func(t *testing.T) {
		n := schema.Must(schema.NewNumber(schema.Format(format.Float)))
		assert.Empty(t, Validate(n, nil, 1.5))
		assert.Len(t, Validate(n, nil, 1e300), 1)
	})

	t.Run("int64 range is exact", func(t *testing.T) {
		n := schema.Must(schema.NewInteger(schema.Format(format.Int64)))

		for _, value := range []any{
			int64(math.MaxInt64),
			int64(math.MinInt64),
			uint64(math.MaxInt64),
			json.Number("9223372036854775807"),
			json.Number("-9223372036854775808"),
		} {
			assert.Empty(t, Validate(n, nil, value), "%v", value)
		}

		for _, value := range []any{
			uint64(math.MaxInt64) + 1,
			json.Number("9223372036854775808"),
			json.Number("-9223372036854775809"),
		} {
			got := Validate(n, nil, value)
			require.Len(t, got, 1, "%v", value)
			assert.Equal(t, KindInvalidFormat, got[0].Kind)
		}
	})

	t.Run("large integers compare exactly with bounds", func(t *testing.T) {
		n := schema.Must(schema.NewInteger(schema.Maximum(9007199254740992)))
		assert.Empty(t, Validate(n, nil, json.Number("9007199254740992")))

		got := Validate(n, nil, json.Number("9007199254740993"))
		require.Len(t, got, 1)
		assert.Equal(t, KindOutOfRange, got[0].Kind)
		assert.Equal(t, int64(9007199254740993), got[0].Params["value"])
	})

	t.Run("integral json numbers beyond int64", func(t *testing.T) {
		assert.Empty(t, Validate(schema.Must(schema.NewInteger()), nil, json.Number("123456789012345678901234567890")))
		assert.Empty(t, Validate(schema.Must(schema.NewNumber()), nil, json.Number("9223372036854775807")))
	})
}

func TestValidateArray(t *testing.T) {
	integers := schema.Must(schema.NewArray(schema.Must(schema.NewInteger())))
	unique := integers.WithUniqueItems()

	t.Run("elements", func(t *testing.T) {
		got := Validate(integers, nil, decode(t, `[1, "two", 3, true]`))
		want := []brief{{"/1", KindTypeMismatch}, {"/3", KindTypeMismatch}}
		if diff := cmp.Diff(want, briefs(got)); diff != "" {
			t.Errorf("messages mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("unique items", func(t *testing.T) {
		assert.Empty(t, Validate(unique, nil, decode(t, `[1, 2, 3]`)))

		got := Validate(unique, nil, decode(t, `[1, 2, 2]`))
		require.Len(t, got, 1)
		assert.Equal(t, KindDuplicateArrayItems, got[0].Kind)
		assert.True(t, got[0].Path.IsRoot())
		assert.Equal(t, []int{1, 2}, got[0].Params["indices"])
	})

	t.Run("unique compares by value", func(t *testing.T) {
		objects := schema.Must(schema.NewArray(schema.Must(schema.NewMap(schema.Must(schema.NewString()))))).WithUniqueItems()

		got := Validate(objects, nil, decode(t, `[{"a":"x","b":"y"}, {"b":"y","a":"x"}, {"a":"z"}]`))
		require.Len(t, got, 1)
		assert.Equal(t, []int{0, 1}, got[0].Params["indices"])

		assert.Len(t, Validate(unique, nil, []any{1, 1.0, json.Number("1")}), 1)
	})

	t.Run("unique keeps large integers apart", func(t *testing.T) {
		items := []any{json.Number("9007199254740993"), json.Number("9007199254740992")}
		assert.Empty(t, Validate(unique, nil, items))
		assert.Empty(t, Validate(unique, nil, []any{int64(math.MaxInt64), int64(math.MaxInt64 - 1)}))

		got := Validate(unique, nil, []any{json.Number("9007199254740993"), int64(9007199254740993)})
		require.Len(t, got, 1)
		assert.Equal(t, []int{0, 1}, got[0].Params["indices"])
	})

	t.Run("typed slices", func(t *testing.T) {
		assert.Empty(t, Validate(integers, nil, []int{1, 2}))
	})

	t.Run("not an array", func(t *testing.T) {
		got := Validate(integers, nil, map[string]any{})
		require.Len(t, got, 1)
		assert.Equal(t, "array", got[0].Params["expected"])
		assert.Equal(t, "object", got[0].Params["actual"])
	})
}

func TestValidateMap(t *testing.T) {
	labels := schema.Must(schema.NewMap(schema.Must(schema.NewString())))

	assert.Empty(t, Validate(labels, nil, map[string]string{"a": "b"}))

	got := Validate(labels, nil, decode(t, `{"b": "", "a": 1, "c": "ok"}`))
	want := []brief{{"/a", KindTypeMismatch}, {"/b", KindEmptyString}}
	if diff := cmp.Diff(want, briefs(got)); diff != "" {
		t.Errorf("messages mismatch (-want +got):\n%s", diff)
	}

	assert.Len(t, Validate(labels, nil, "x"), 1)
}

func TestValidateObject(t *testing.T) {
	pet := schema.Must(schema.NewObject(
		schema.Prop("id", schema.Must(schema.NewInteger(schema.Format(format.Int64)))),
		schema.Prop("name", schema.Must(schema.NewString())),
		schema.Prop("tags", schema.Must(schema.NewArray(schema.Must(schema.NewString())))),
	))

	t.Run("absent properties are not flagged", func(t *testing.T) {
		assert.Empty(t, Validate(pet, nil, decode(t, `{"name":"rex"}`)))
	})

	t.Run("extra properties are ignored", func(t *testing.T) {
		assert.Empty(t, Validate(pet, nil, decode(t, `{"name":"rex","color":"brown"}`)))
	})

	t.Run("nested paths", func(t *testing.T) {
		got := Validate(pet, nil, decode(t, `{"id":"x","name":"","tags":["a",""]}`))
		want := []brief{
			{"/id", KindTypeMismatch},
			{"/name", KindEmptyString},
			{"/tags/1", KindEmptyString},
		}
		if diff := cmp.Diff(want, briefs(got)); diff != "" {
			t.Errorf("messages mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("required", func(t *testing.T) {
		required := schema.Must(pet.WithRequired("id", "name"))

		got := Validate(required, nil, decode(t, `{"name":"rex"}`))
		require.Len(t, got, 1)
		assert.Equal(t, KindRequired, got[0].Kind)
		assert.Equal(t, "/id", got[0].Path.String())
	})

	t.Run("null member", func(t *testing.T) {
		n := schema.Must(schema.NewObject(schema.Prop("note", schema.Must(schema.NewString()).AsNullable())))
		assert.Empty(t, Validate(n, nil, decode(t, `{"note":null}`)))
	})

	t.Run("not an object", func(t *testing.T) {
		got := Validate(pet, nil, decode(t, `[]`))
		require.Len(t, got, 1)
		assert.Equal(t, KindTypeMismatch, got[0].Kind)
	})
}

func TestValidateDiscriminator(t *testing.T) {
	str := schema.Must(schema.NewString())
	integer := schema.Must(schema.NewInteger())

	t.Run("oneOf", func(t *testing.T) {
		n := schema.Must(schema.NewOneOf(str, integer))

		assert.Empty(t, Validate(n, nil, "abc"))
		assert.Empty(t, Validate(n, nil, 42.0))

		got := Validate(n, nil, true)
		require.Len(t, got, 1)
		assert.Equal(t, KindNoVariantMatched, got[0].Kind)
	})

	t.Run("oneOf ambiguous", func(t *testing.T) {
		n := schema.Must(schema.NewOneOf(integer, schema.Must(schema.NewNumber())))

		got := Validate(n, nil, 3.0)
		require.Len(t, got, 1)
		assert.Equal(t, KindAmbiguousVariant, got[0].Kind)
		assert.Equal(t, []int{0, 1}, got[0].Params["matched"])

		assert.Empty(t, Validate(n, nil, 3.5))
	})

	t.Run("anyOf", func(t *testing.T) {
		n := schema.Must(schema.NewAnyOf(integer, schema.Must(schema.NewNumber())))
		assert.Empty(t, Validate(n, nil, 3.0))

		got := Validate(n, nil, "x")
		require.Len(t, got, 1)
		assert.Equal(t, KindNoVariantMatched, got[0].Kind)
		assert.Equal(t, "anyOf", got[0].Params["mode"])
	})

	t.Run("allOf merges object checks", func(t *testing.T) {
		base := schema.Must(schema.NewObject(schema.Prop("id", integer)))
		named := schema.Must(schema.Must(schema.NewObject(schema.Prop("name", str))).WithRequired("name"))
		n := schema.Must(schema.NewAllOf(base, named))

		assert.Empty(t, Validate(n, nil, decode(t, `{"id":1,"name":"a"}`)))

		got := Validate(n, nil, decode(t, `{"id":"x"}`))
		want := []brief{{"/id", KindTypeMismatch}, {"/name", KindRequired}}
		if diff := cmp.Diff(want, briefs(got)); diff != "" {
			t.Errorf("messages mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("nullable", func(t *testing.T) {
		n := schema.Must(schema.NewOneOf(str, integer))
		assert.Len(t, Validate(n, nil, nil), 1)
		assert.Empty(t, Validate(n.AsNullable(), nil, nil))
	})
}

func TestValidateReference(t *testing.T) {
	node := schema.Must(schema.NewObject(
		schema.Prop("value", schema.Must(schema.NewString())),
		schema.Prop("next", schema.Must(schema.NewReference("Node"))),
	))
	r := mapResolver{
		"Node":    node,
		"Name":    schema.Must(schema.NewString()).AsNullable(),
		"Loop":    schema.Must(schema.NewReference("Loop")),
		"Either":  schema.Must(schema.NewAnyOf(schema.Must(schema.NewReference("Either")))),
		"Missing": schema.Must(schema.NewReference("Gone")),
	}

	t.Run("resolves and keeps path", func(t *testing.T) {
		got := Validate(schema.Must(schema.NewReference("Node")), r, decode(t, `{"value":"a","next":{"value":"","next":{"value":1}}}`))
		want := []brief{{"/next/value", KindEmptyString}, {"/next/next/value", KindTypeMismatch}}
		if diff := cmp.Diff(want, briefs(got)); diff != "" {
			t.Errorf("messages mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("nullable target", func(t *testing.T) {
		assert.Empty(t, Validate(schema.Must(schema.NewReference("Name")), r, nil))
	})

	t.Run("unresolved", func(t *testing.T) {
		got := Validate(schema.Must(schema.NewReference("Missing")), r, "x")
		require.Len(t, got, 1)
		assert.Equal(t, KindUnresolvedReference, got[0].Kind)
		assert.Equal(t, "#/components/schemas/Gone", got[0].Params["ref"])

		got = Validate(schema.Must(schema.NewReference("Node")), nil, "x")
		require.Len(t, got, 1)
		assert.Equal(t, KindUnresolvedReference, got[0].Kind)
	})

	t.Run("depth guard", func(t *testing.T) {
		v := New(r, WithMaxDepth(8))

		got := v.Validate(schema.Must(schema.NewReference("Loop")), "x")
		require.Len(t, got, 1)
		assert.Equal(t, KindDepthExceeded, got[0].Kind)
		assert.Equal(t, 8, got[0].Params["max_depth"])

		got = v.Validate(schema.Must(schema.NewReference("Either")), "x")
		require.Len(t, got, 1)
		assert.Equal(t, KindDepthExceeded, got[0].Kind)
	})

	t.Run("union cycle at default depth", func(t *testing.T) {
		self := schema.Must(schema.NewReference("Self"))
		cyclic := mapResolver{"Self": schema.Must(schema.NewOneOf(self, self, self))}

		got := New(cyclic).Validate(self, decode(t, `[{"a": 1}]`))
		require.Len(t, got, 1)
		assert.Equal(t, KindDepthExceeded, got[0].Kind)
		assert.Equal(t, DefaultMaxDepth, got[0].Params["max_depth"])
	})

	t.Run("shared union members", func(t *testing.T) {
		chain := func(levels int) (mapResolver, schema.Node) {
			r := mapResolver{}
			name := func(i int) string { return fmt.Sprintf("L%d", i) }
			for i := range levels {
				next := schema.Must(schema.NewReference(name(i + 1)))
				r[name(i)] = schema.Must(schema.NewAnyOf(next, next))
			}
			r[name(levels)] = schema.Must(schema.NewString())
			return r, schema.Must(schema.NewReference(name(0)))
		}

		r, root := chain(30)
		assert.Empty(t, New(r).Validate(root, "x"))

		got := New(r).Validate(root, 1)
		require.Len(t, got, 1)
		assert.Equal(t, KindNoVariantMatched, got[0].Kind)

		r, root = chain(200)
		got = New(r).Validate(root, "x")
		require.Len(t, got, 1)
		assert.Equal(t, KindDepthExceeded, got[0].Kind)
	})
}

func TestValidatorOptions(t *testing.T) {
	v := New(nil, WithMaxDepth(0), WithLogger(nil))
	assert.Equal(t, DefaultMaxDepth, v.maxDepth)
	assert.NotNil(t, v.logger)

	got := v.ValidateAt(schema.Must(schema.NewString()), "", Path(Key("body")))
	require.Len(t, got, 1)
	assert.Equal(t, "/body", got[0].Path.String())
}
