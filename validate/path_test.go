package validate

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFieldPath(t *testing.T) {
	t.Run("root", func(t *testing.T) {
		p := Root()
		assert.True(t, p.IsRoot())
		assert.Equal(t, "", p.String())
		assert.Equal(t, 0, p.Len())
	})

	t.Run("string", func(t *testing.T) {
		p := Root().Key("items").Index(2).Key("name")
		assert.Equal(t, "/items/2/name", p.String())
		assert.Equal(t, 3, p.Len())
	})

	t.Run("escaping", func(t *testing.T) {
		p := Path(Key("a/b"), Key("m~n"))
		assert.Equal(t, "/a~1b/m~0n", p.String())
	})

	t.Run("append does not alias", func(t *testing.T) {
		base := Root().Key("a").Key("b")
		x := base.Key("x")
		y := base.Key("y")

		assert.Equal(t, "/a/b", base.String())
		assert.Equal(t, "/a/b/x", x.String())
		assert.Equal(t, "/a/b/y", y.String())
	})

	t.Run("prepend", func(t *testing.T) {
		p := Root().Index(0).Prepend(Key("body"), Key("items"))
		assert.Equal(t, "/body/items/0", p.String())
	})

	t.Run("segments", func(t *testing.T) {
		segs := Root().Key("a").Index(1).Segments()
		require.Len(t, segs, 2)
		assert.False(t, segs[0].IsIndex())
		assert.Equal(t, "a", segs[0].Name())
		assert.True(t, segs[1].IsIndex())
		assert.Equal(t, 1, segs[1].Position())
	})

	t.Run("equal", func(t *testing.T) {
		assert.True(t, Root().Key("a").Equal(Path(Key("a"))))
		assert.False(t, Root().Key("1").Equal(Root().Index(1)))
	})

	t.Run("json", func(t *testing.T) {
		data, err := json.Marshal(Root().Key("items").Index(2))
		require.NoError(t, err)
		assert.Equal(t, `["items",2]`, string(data))

		data, err = json.Marshal(Root())
		require.NoError(t, err)
		assert.Equal(t, `[]`, string(data))
	})
}
