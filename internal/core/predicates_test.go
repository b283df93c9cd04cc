package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEqualOrContainsArrayMembership(t *testing.T) {
	arr := Array([]Value{String("a"), String("b"), String("c")})
	assert.True(t, EqualOrContains(arr, String("b")))
	assert.False(t, EqualOrContains(arr, String("z")))
	assert.True(t, EqualOrContains(String("b"), String("b")))
}

func TestGreaterThanArrayContains(t *testing.T) {
	arr := Array([]Value{Int32(1), Int32(10)})
	assert.True(t, GreaterThan(arr, Int32(5)))
	assert.False(t, GreaterThan(Array([]Value{Int32(1)}), Int32(5)))
}

func TestAllRequiresEveryElement(t *testing.T) {
	tags := Array([]Value{String("x"), String("y"), String("z")})
	assert.True(t, All(tags, []Value{String("x"), String("y")}))
	assert.False(t, All(tags, []Value{String("x"), String("q")}))
	assert.False(t, All(String("x"), nil), "non-array document value is false unconditionally")
}

func TestSizeEquals(t *testing.T) {
	assert.True(t, SizeEquals(Array([]Value{Int32(1), Int32(2)}), 2))
	assert.False(t, SizeEquals(Array([]Value{Int32(1)}), 2))
	assert.False(t, SizeEquals(String("ab"), 2))
}

func TestMatchesRegex(t *testing.T) {
	ok, err := MatchesRegex(String("Hello"), Regex{Pattern: "^hello$", Options: "i"})
	assert.NoError(t, err)
	assert.True(t, ok)

	ok, err = MatchesRegex(String("Hello"), Regex{Pattern: "^hello$"})
	assert.NoError(t, err)
	assert.False(t, ok)

	_, err = MatchesRegex(String("x"), Regex{Pattern: "a", Options: "pl"})
	assert.ErrorIs(t, err, ErrInvalidRegexOptions)
}

func TestInAndNotIn(t *testing.T) {
	list := []Value{Int32(1), Int32(2), Int32(3)}
	assert.True(t, In(Int32(2), list))
	assert.False(t, In(Int32(9), list))
	assert.True(t, NotIn(Int32(9), list))

	assert.True(t, In(Array([]Value{Int32(9), Int32(2)}), list), "array document-side needs only a non-empty intersection")
}
