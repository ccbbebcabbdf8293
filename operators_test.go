package listq

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseOperator(t *testing.T) {
	tests := []struct {
		input    string
		expected Operator
		ok       bool
	}{
		{"==", OpEqual, true},
		{"eq", OpEqual, true},
		{"EQ", OpEqual, true},
		{"!=", OpNotEqual, true},
		{"ne", OpNotEqual, true},
		{"neq", OpNotEqual, true},
		{"<", OpLess, true},
		{"lt", OpLess, true},
		{"<=", OpLessOrEqual, true},
		{"lte", OpLessOrEqual, true},
		{"lteq", OpLessOrEqual, true},
		{">", OpGreater, true},
		{"gt", OpGreater, true},
		{">=", OpGreaterOrEqual, true},
		{"gte", OpGreaterOrEqual, true},
		{"gteq", OpGreaterOrEqual, true},
		{"in", OpIn, true},
		{"not_in", OpNotIn, true},
		{"nin", OpNotIn, true},
		{"contains", OpContains, true},
		{"not_contains", OpNotContains, true},
		{"like", OpLike, true},
		{"not_like", OpNotLike, true},
		{"ilike", OpILike, true},
		{"not_ilike", OpNotILike, true},
		{"=~", OpMatch, true},
		{"like_and", OpLikeAnd, true},
		{"like_or", OpLikeOr, true},
		{"ilike_and", OpILikeAnd, true},
		{"ilike_or", OpILikeOr, true},
		{"empty", OpEmpty, true},
		{"isnull", OpEmpty, true},
		{"not_empty", OpNotEmpty, true},
		{"isnotnull", OpNotEmpty, true},
		{" in ", OpIn, true},
		{"invalid", "", false},
		{"", "", false},
		{"=", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			op, ok := ParseOperator(tt.input)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.expected, op)
		})
	}
}

func TestEscapeLike(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"plain", "plain"},
		{"50%", `50\%`},
		{"a_b", `a\_b`},
		{`back\slash`, `back\\slash`},
		{`50%_off\`, `50\%\_off\\`},
		{"", ""},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.expected, escapeLike(tt.input))
		})
	}
}

func TestSubstringPattern(t *testing.T) {
	assert.Equal(t, "%acme%", substringPattern("acme"))
	assert.Equal(t, `%100\%%`, substringPattern("100%"))
}

func TestDefaultOperators(t *testing.T) {
	t.Run("string gets the full set", func(t *testing.T) {
		ops := DefaultOperators(TypeString)
		assert.Len(t, ops, 19)
		assert.Contains(t, ops, OpLikeAnd)
		assert.Contains(t, ops, OpMatch)
		assert.Contains(t, ops, OpNotEmpty)
	})

	t.Run("enum has no range comparisons", func(t *testing.T) {
		ops := DefaultOperators(TypeEnum)
		assert.Contains(t, ops, OpEqual)
		assert.Contains(t, ops, OpIn)
		assert.NotContains(t, ops, OpLess)
		assert.NotContains(t, ops, OpLike)
	})

	t.Run("numerics and dates compare but never match patterns", func(t *testing.T) {
		for _, typ := range []StorageType{TypeInt, TypeFloat, TypeDecimal, TypeDate, TypeDatetime} {
			ops := DefaultOperators(typ)
			assert.Contains(t, ops, OpGreaterOrEqual, "type %s", typ)
			assert.Contains(t, ops, OpNotIn, "type %s", typ)
			assert.NotContains(t, ops, OpILike, "type %s", typ)
		}
	})

	t.Run("bool", func(t *testing.T) {
		assert.ElementsMatch(t,
			[]Operator{OpEqual, OpNotEqual, OpEmpty, OpNotEmpty},
			DefaultOperators(TypeBool))
	})

	t.Run("arrays use containment", func(t *testing.T) {
		for _, typ := range []StorageType{TypeStringArray, TypeIntArray} {
			assert.ElementsMatch(t,
				[]Operator{OpContains, OpNotContains, OpEmpty, OpNotEmpty},
				DefaultOperators(typ), "type %s", typ)
		}
	})

	t.Run("map only answers presence", func(t *testing.T) {
		assert.ElementsMatch(t,
			[]Operator{OpEmpty, OpNotEmpty},
			DefaultOperators(TypeMap))
	})

	t.Run("unknown type has none", func(t *testing.T) {
		assert.Nil(t, DefaultOperators(StorageType("geometry")))
	})
}

func TestOperatorFamilies(t *testing.T) {
	assert.True(t, OpMatch.substring())
	assert.True(t, OpLikeOr.substring())
	assert.False(t, OpIn.substring())

	assert.True(t, OpILikeAnd.multiTerm())
	assert.False(t, OpILike.multiTerm())

	assert.True(t, OpMatch.insensitive())
	assert.True(t, OpNotILike.insensitive())
	assert.False(t, OpLike.insensitive())

	assert.True(t, OpNotIn.negated())
	assert.True(t, OpNotEmpty.negated())
	assert.False(t, OpEmpty.negated())
}
