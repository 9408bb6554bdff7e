package codec

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistry(t *testing.T) {
	type point struct{ X, Y int }

	t.Run("Builtins", func(t *testing.T) {
		r := NewRegistry()
		tag, err := r.TagOf("s")
		require.NoError(t, err)
		assert.Equal(t, TagString, tag)

		tag, err = r.TagOf(nil)
		require.NoError(t, err)
		assert.Equal(t, TagNull, tag)

		tag, err = r.TagOf(map[string]any{"a": 1})
		require.NoError(t, err)
		assert.Equal(t, TagAnyMap, tag)
	})

	t.Run("Register", func(t *testing.T) {
		r := NewRegistry()
		require.NoError(t, Register[point](r, "point"))
		require.NoError(t, Register[point](r, "point"), "same type and tag is idempotent")

		tag, err := r.TagOf(point{1, 2})
		require.NoError(t, err)
		assert.Equal(t, "point", tag)

		c, ok := r.Lookup("point")
		require.True(t, ok)
		payload, err := c.Encode(point{1, 2})
		require.NoError(t, err)
		v, err := c.Decode(payload)
		require.NoError(t, err)
		assert.Equal(t, point{1, 2}, v)
	})

	t.Run("Conflicts", func(t *testing.T) {
		r := NewRegistry()
		require.NoError(t, Register[point](r, "point"))
		assert.ErrorIs(t, Register[point](r, "other"), ErrDuplicateTag)
		assert.ErrorIs(t, Register[*point](r, "point"), ErrDuplicateTag)
	})

	t.Run("InvalidTags", func(t *testing.T) {
		r := NewEmptyRegistry()
		assert.ErrorIs(t, Register[point](r, ""), ErrInvalidTag)
		assert.ErrorIs(t, Register[point](r, TagNull), ErrInvalidTag)
		assert.ErrorIs(t, Register[point](r, "two\nlines"), ErrInvalidTag)
		assert.Panics(t, func() { MustRegister[point](r, "") })
	})

	t.Run("Unregistered", func(t *testing.T) {
		r := NewEmptyRegistry()
		_, err := r.TagOf(point{})
		assert.ErrorIs(t, err, ErrUnregisteredType)
		_, ok := r.Lookup(TagString)
		assert.False(t, ok, "an empty registry has no built-ins")
	})

	t.Run("Normalize", func(t *testing.T) {
		r := NewRegistry()

		got := r.Normalize(TagAnyMap, map[string]any{"n": 1, "list": []int{2}})
		assert.Equal(t, map[string]any{"n": float64(1), "list": []any{float64(2)}}, got)

		got = r.Normalize(TagAnySlice, []any{1, "two", int64(3)})
		assert.Equal(t, []any{float64(1), "two", float64(3)}, got)

		assert.Equal(t, map[string]int{"n": 1}, r.Normalize(TagIntMap, map[string]int{"n": 1}))
		assert.Equal(t, 7, r.Normalize(TagInt, 7))
		assert.Equal(t, "v", r.Normalize("unknown", "v"))
	})
}
