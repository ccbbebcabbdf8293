package listq

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newReplaceSchema(t *testing.T) *Schema {
	t.Helper()
	cfg := testSchemaConfig()
	cfg.ReplaceInvalidParams = ptr(true)
	s, err := NewSchema(cfg)
	require.NoError(t, err)
	return s
}

func requireValidationErrors(t *testing.T, err error) *ValidationErrors {
	t.Helper()
	require.Error(t, err)
	var verr *ValidationErrors
	require.ErrorAs(t, err, &verr)
	return verr
}

func TestValidateDefaults(t *testing.T) {
	s := newTestSchema(t)

	q, err := Validate(s, Params{})
	require.NoError(t, err)

	assert.Equal(t, PaginateOffset, q.Pagination)
	assert.Equal(t, 50, q.Limit)
	assert.Equal(t, 0, q.Offset)
	assert.False(t, q.Backward)
	assert.Empty(t, q.Filters)
	assert.Equal(t, []string{"created_at", "id"}, q.OrderFields())
}

func TestValidatePaginationStrategies(t *testing.T) {
	s := newTestSchema(t)

	t.Run("limit and offset", func(t *testing.T) {
		q, err := Validate(s, Params{Limit: ptr(10), Offset: ptr(20)})
		require.NoError(t, err)
		assert.Equal(t, PaginateOffset, q.Pagination)
		assert.Equal(t, 10, q.Limit)
		assert.Equal(t, 20, q.Offset)
	})

	t.Run("offset alone keeps the default limit", func(t *testing.T) {
		q, err := Validate(s, Params{Offset: ptr(30)})
		require.NoError(t, err)
		assert.Equal(t, 50, q.Limit)
		assert.Equal(t, 30, q.Offset)
	})

	t.Run("page and page_size translate to an offset", func(t *testing.T) {
		q, err := Validate(s, Params{Page: ptr(3), PageSize: ptr(20)})
		require.NoError(t, err)
		assert.Equal(t, PaginatePage, q.Pagination)
		assert.Equal(t, 3, q.Page)
		assert.Equal(t, 20, q.Limit)
		assert.Equal(t, 40, q.Offset)
	})

	t.Run("page_size alone starts at page one", func(t *testing.T) {
		q, err := Validate(s, Params{PageSize: ptr(25)})
		require.NoError(t, err)
		assert.Equal(t, 1, q.Page)
		assert.Equal(t, 0, q.Offset)
	})

	t.Run("first paginates forward by cursor", func(t *testing.T) {
		q, err := Validate(s, Params{First: ptr(5)})
		require.NoError(t, err)
		assert.Equal(t, PaginateCursor, q.Pagination)
		assert.Equal(t, 5, q.Limit)
		assert.False(t, q.Backward)
		assert.Nil(t, q.Cursor)
	})

	t.Run("last paginates backward", func(t *testing.T) {
		q, err := Validate(s, Params{Last: ptr(5)})
		require.NoError(t, err)
		assert.Equal(t, PaginateCursor, q.Pagination)
		assert.True(t, q.Backward)
	})
}

func TestValidateMixedStrategiesRejected(t *testing.T) {
	s := newTestSchema(t)

	_, err := Validate(s, Params{Limit: ptr(10), First: ptr(5)})
	verr := requireValidationErrors(t, err)
	assert.ErrorContains(t, verr.Field("pagination"), "multiple pagination strategies")

	t.Run("even under the replace policy", func(t *testing.T) {
		rs := newReplaceSchema(t)
		_, err := Validate(rs, Params{Page: ptr(1), After: ptr("abc")})
		verr := requireValidationErrors(t, err)
		assert.ErrorContains(t, verr.Field("pagination"), "multiple pagination strategies")
	})

	t.Run("conflict short-circuits the rest of the pass", func(t *testing.T) {
		_, err := Validate(s, Params{
			Limit:   ptr(10),
			First:   ptr(5),
			OrderBy: []string{"ghost"},
			Filters: []Filter{{Field: "ghost", Op: "==", Value: 1}},
		})
		verr := requireValidationErrors(t, err)
		require.Len(t, verr.Errors, 1)
		assert.Error(t, verr.Field("pagination"))
	})

	t.Run("params within one group do not conflict", func(t *testing.T) {
		_, err := Validate(s, Params{Limit: ptr(10), Offset: ptr(5)})
		assert.NoError(t, err)
	})
}

func TestValidateDisabledStrategy(t *testing.T) {
	cfg := testSchemaConfig()
	cfg.PaginationTypes = []PaginationType{PaginateOffset, PaginatePage}
	s, err := NewSchema(cfg)
	require.NoError(t, err)

	_, err = Validate(s, Params{First: ptr(5)})
	verr := requireValidationErrors(t, err)
	assert.ErrorContains(t, verr.Field("pagination"), "not enabled")

	t.Run("replace falls back to the default strategy", func(t *testing.T) {
		cfg := testSchemaConfig()
		cfg.PaginationTypes = []PaginationType{PaginateOffset}
		cfg.ReplaceInvalidParams = ptr(true)
		rs, err := NewSchema(cfg)
		require.NoError(t, err)

		q, err := Validate(rs, Params{First: ptr(5)})
		require.NoError(t, err)
		assert.Equal(t, PaginateOffset, q.Pagination)
		assert.Equal(t, 50, q.Limit)
	})
}

func TestValidateLimitBounds(t *testing.T) {
	s := newTestSchema(t)

	t.Run("zero limit", func(t *testing.T) {
		_, err := Validate(s, Params{Limit: ptr(0)})
		verr := requireValidationErrors(t, err)
		assert.Error(t, verr.Field("limit"))
	})

	t.Run("limit above the cap", func(t *testing.T) {
		_, err := Validate(s, Params{Limit: ptr(2000)})
		verr := requireValidationErrors(t, err)
		assert.Error(t, verr.Field("limit"))
	})

	t.Run("negative offset", func(t *testing.T) {
		_, err := Validate(s, Params{Offset: ptr(-1)})
		verr := requireValidationErrors(t, err)
		assert.Error(t, verr.Field("offset"))
	})

	t.Run("zero page", func(t *testing.T) {
		_, err := Validate(s, Params{Page: ptr(0)})
		verr := requireValidationErrors(t, err)
		assert.Error(t, verr.Field("page"))
	})

	t.Run("zero page size", func(t *testing.T) {
		_, err := Validate(s, Params{Page: ptr(1), PageSize: ptr(0)})
		verr := requireValidationErrors(t, err)
		assert.Error(t, verr.Field("page_size"))
	})

	t.Run("zero first", func(t *testing.T) {
		_, err := Validate(s, Params{First: ptr(0)})
		verr := requireValidationErrors(t, err)
		assert.Error(t, verr.Field("first"))
	})

	t.Run("uncapped schema takes any positive limit", func(t *testing.T) {
		cfg := testSchemaConfig()
		cfg.MaxLimit = NoLimit
		unc, err := NewSchema(cfg)
		require.NoError(t, err)
		q, err := Validate(unc, Params{Limit: ptr(100000)})
		require.NoError(t, err)
		assert.Equal(t, 100000, q.Limit)
	})

	t.Run("replace clamps instead", func(t *testing.T) {
		rs := newReplaceSchema(t)

		q, err := Validate(rs, Params{Limit: ptr(0)})
		require.NoError(t, err)
		assert.Equal(t, 50, q.Limit)

		q, err = Validate(rs, Params{Limit: ptr(5000)})
		require.NoError(t, err)
		assert.Equal(t, 1000, q.Limit)

		q, err = Validate(rs, Params{Offset: ptr(-10)})
		require.NoError(t, err)
		assert.Equal(t, 0, q.Offset)

		q, err = Validate(rs, Params{Page: ptr(-2), PageSize: ptr(10)})
		require.NoError(t, err)
		assert.Equal(t, 1, q.Page)
		assert.Equal(t, 0, q.Offset)
	})
}

func TestValidateOrder(t *testing.T) {
	s := newTestSchema(t)

	t.Run("explicit ordering", func(t *testing.T) {
		q, err := Validate(s, Params{
			OrderBy:         []string{"amount", "id"},
			OrderDirections: []OrderDirection{"desc"},
		})
		require.NoError(t, err)
		require.Len(t, q.Order, 2)
		assert.Equal(t, OrderDesc, q.Order[0].Direction)
		// Directions shorter than fields pad ascending.
		assert.Equal(t, OrderAsc, q.Order[1].Direction)
	})

	t.Run("unsortable field", func(t *testing.T) {
		_, err := Validate(s, Params{OrderBy: []string{"description"}})
		verr := requireValidationErrors(t, err)
		assert.ErrorContains(t, verr.Field("order_by", "0"), "not sortable")
	})

	t.Run("unknown direction", func(t *testing.T) {
		_, err := Validate(s, Params{
			OrderBy:         []string{"amount"},
			OrderDirections: []OrderDirection{"sideways"},
		})
		verr := requireValidationErrors(t, err)
		assert.ErrorContains(t, verr.Field("order_directions", "0"), "unknown direction")
	})

	t.Run("replace drops the bad entries", func(t *testing.T) {
		rs := newReplaceSchema(t)
		q, err := Validate(rs, Params{
			OrderBy:         []string{"description", "amount"},
			OrderDirections: []OrderDirection{"desc", "sideways"},
		})
		require.NoError(t, err)
		require.Len(t, q.Order, 1)
		assert.Equal(t, "amount", q.Order[0].Field.Name)
		assert.Equal(t, OrderAsc, q.Order[0].Direction)
	})

	t.Run("cursor pagination needs an ordering", func(t *testing.T) {
		cfg := testSchemaConfig()
		cfg.DefaultOrder = nil
		bare, err := NewSchema(cfg)
		require.NoError(t, err)

		_, err = Validate(bare, Params{First: ptr(5)})
		verr := requireValidationErrors(t, err)
		assert.ErrorContains(t, verr.Field("order_by"), "requires an ordering")
	})
}

func TestValidateCursorParam(t *testing.T) {
	s := newTestSchema(t)
	created := time.Date(2025, 6, 1, 12, 30, 0, 0, time.UTC)

	enc, err := StdCodec{}.Encode(Cursor{
		{Field: "created_at", Value: created},
		{Field: "id", Value: "txn_0042"},
	})
	require.NoError(t, err)

	q, err := Validate(s, Params{First: ptr(10), After: &enc})
	require.NoError(t, err)
	require.Len(t, q.Cursor, 2)

	got, ok := q.Cursor.Get("created_at")
	require.True(t, ok)
	assert.True(t, got.(time.Time).Equal(created))

	got, ok = q.Cursor.Get("id")
	require.True(t, ok)
	assert.Equal(t, "txn_0042", got)

	t.Run("garbage cursor short-circuits the rest of the pass", func(t *testing.T) {
		bad := "!!not-base64!!"
		_, err := Validate(s, Params{After: &bad, OrderBy: []string{"ghost"}})
		verr := requireValidationErrors(t, err)
		require.Len(t, verr.Errors, 1)
		assert.ErrorContains(t, verr.Field("after"), "invalid cursor")
	})

	t.Run("cursor naming an unsortable field", func(t *testing.T) {
		tok, err := StdCodec{}.Encode(Cursor{{Field: "rate", Value: 1.5}})
		require.NoError(t, err)
		_, err = Validate(s, Params{After: &tok})
		verr := requireValidationErrors(t, err)
		assert.ErrorContains(t, verr.Field("after"), "not sortable")
	})

	t.Run("replace drops a garbage cursor", func(t *testing.T) {
		rs := newReplaceSchema(t)
		bad := "!!not-base64!!"
		q, err := Validate(rs, Params{Before: &bad})
		require.NoError(t, err)
		assert.Nil(t, q.Cursor)
		assert.True(t, q.Backward)
	})
}

func TestValidateFilters(t *testing.T) {
	s := newTestSchema(t)

	t.Run("scalar operands coerce to the storage type", func(t *testing.T) {
		q, err := Validate(s, Params{Filters: []Filter{
			{Field: "amount", Op: ">=", Value: "10.5"},
			{Field: "attempts", Op: "<", Value: "3"},
			{Field: "created_at", Op: ">", Value: "2025-06-01T00:00:00Z"},
			{Field: "settled", Op: "==", Value: "true"},
		}})
		require.NoError(t, err)
		require.Len(t, q.Filters, 4)

		amount := q.Filters[0].Value.(decimal.Decimal)
		assert.True(t, amount.Equal(decimal.RequireFromString("10.5")))
		assert.Equal(t, int64(3), q.Filters[1].Value)
		assert.Equal(t, time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC), q.Filters[2].Value.(time.Time).UTC())
		assert.Equal(t, true, q.Filters[3].Value)
	})

	t.Run("operator aliases canonicalize", func(t *testing.T) {
		q, err := Validate(s, Params{Filters: []Filter{
			{Field: "amount", Op: "gte", Value: 10},
		}})
		require.NoError(t, err)
		assert.Equal(t, OpGreaterOrEqual, q.Filters[0].Op)
	})

	t.Run("membership keeps nil elements", func(t *testing.T) {
		q, err := Validate(s, Params{Filters: []Filter{
			{Field: "status", Op: "in", Value: []any{"queued", nil, "applied"}},
		}})
		require.NoError(t, err)
		assert.Equal(t, []any{"queued", nil, "applied"}, q.Filters[0].Value)
	})

	t.Run("multi term operands split on whitespace", func(t *testing.T) {
		q, err := Validate(s, Params{Filters: []Filter{
			{Field: "description", Op: "ilike_and", Value: "  urgent   refund "},
		}})
		require.NoError(t, err)
		assert.Equal(t, []string{"urgent", "refund"}, q.Filters[0].Value)
	})

	t.Run("presence operands take boolean-like forms only", func(t *testing.T) {
		q, err := Validate(s, Params{Filters: []Filter{
			{Field: "tags", Op: "empty", Value: true},
			{Field: "meta_data", Op: "not_empty", Value: "false"},
			{Field: "tags", Op: "empty", Value: nil},
			{Field: "tags", Op: "empty", Value: "whenever"},
		}})
		require.NoError(t, err)
		require.Len(t, q.Filters, 4)
		assert.Equal(t, true, q.Filters[0].Value)
		assert.Equal(t, false, q.Filters[1].Value)
		// Anything else leaves the filter inert.
		assert.Nil(t, q.Filters[2].Value)
		assert.Nil(t, q.Filters[3].Value)
	})

	t.Run("substring operand may be a list of terms", func(t *testing.T) {
		q, err := Validate(s, Params{Filters: []Filter{
			{Field: "description", Op: "ilike", Value: []any{"urgent", "refund"}},
		}})
		require.NoError(t, err)
		assert.Equal(t, []string{"urgent", "refund"}, q.Filters[0].Value)
	})

	t.Run("multi term list operands keep their terms as given", func(t *testing.T) {
		q, err := Validate(s, Params{Filters: []Filter{
			{Field: "description", Op: "like_or", Value: []string{"urgent", ""}},
		}})
		require.NoError(t, err)
		assert.Equal(t, []string{"urgent", ""}, q.Filters[0].Value)
	})

	t.Run("custom field operands reach the builder untouched", func(t *testing.T) {
		// No substring or list coercion applies; the builder owns the
		// operand's interpretation.
		q, err := Validate(s, Params{Filters: []Filter{
			{Field: "search", Op: "=~", Value: []any{"urgent", 5}},
		}})
		require.NoError(t, err)
		assert.Equal(t, []any{"urgent", 5}, q.Filters[0].Value)
	})

	t.Run("nil operands pass through", func(t *testing.T) {
		q, err := Validate(s, Params{Filters: []Filter{
			{Field: "amount", Op: "==", Value: nil},
		}})
		require.NoError(t, err)
		assert.Nil(t, q.Filters[0].Value)
	})

	t.Run("error keys nest under the filter index", func(t *testing.T) {
		_, err := Validate(s, Params{Filters: []Filter{
			{Field: "amount", Op: ">=", Value: "10"},
			{Field: "ghost", Op: "==", Value: 1},
			{Field: "amount", Op: "bogus", Value: 1},
			{Field: "status", Op: "==", Value: "nope"},
			{Field: "", Op: "==", Value: 1},
			{Field: "amount", Op: ""},
		}})
		verr := requireValidationErrors(t, err)
		assert.Nil(t, verr.Field("filters", "0"))
		assert.ErrorContains(t, verr.Field("filters", "1", "field"), "not filterable")
		assert.ErrorContains(t, verr.Field("filters", "2", "op"), "unknown operator")
		assert.ErrorContains(t, verr.Field("filters", "3", "value"), "must be one of")
		assert.ErrorContains(t, verr.Field("filters", "4", "field"), "blank")
		assert.ErrorContains(t, verr.Field("filters", "5", "op"), "blank")
	})

	t.Run("operator not allowed for the field", func(t *testing.T) {
		_, err := Validate(s, Params{Filters: []Filter{
			{Field: "amount", Op: "ilike", Value: "10"},
		}})
		verr := requireValidationErrors(t, err)
		assert.ErrorContains(t, verr.Field("filters", "0", "op"), "not allowed")
	})

	t.Run("bad operand type", func(t *testing.T) {
		_, err := Validate(s, Params{Filters: []Filter{
			{Field: "attempts", Op: "==", Value: "many"},
		}})
		verr := requireValidationErrors(t, err)
		assert.ErrorContains(t, verr.Field("filters", "0", "value"), "not an integer")
	})

	t.Run("replace drops broken filters and keeps the rest", func(t *testing.T) {
		rs := newReplaceSchema(t)
		q, err := Validate(rs, Params{Filters: []Filter{
			{Field: "ghost", Op: "==", Value: 1},
			{Field: "amount", Op: ">=", Value: "10"},
			{Field: "status", Op: "==", Value: "nope"},
		}})
		require.NoError(t, err)
		require.Len(t, q.Filters, 1)
		assert.Equal(t, "amount", q.Filters[0].Field)
	})
}

func TestValidateCompositePolicy(t *testing.T) {
	t.Run("warn passes the filter through", func(t *testing.T) {
		s := newTestSchema(t)
		q, err := Validate(s, Params{Filters: []Filter{
			{Field: "full_name", Op: "==", Value: "Ada"},
		}})
		require.NoError(t, err)
		require.Len(t, q.Filters, 1)
		assert.Equal(t, OpEqual, q.Filters[0].Op)
		// The operand is left uncoerced; the compiler drops the filter.
		assert.Equal(t, "Ada", q.Filters[0].Value)
	})

	t.Run("error policy rejects", func(t *testing.T) {
		cfg := testSchemaConfig()
		cfg.OnUnsupportedCompositeOp = CompositeOpError
		s, err := NewSchema(cfg)
		require.NoError(t, err)

		_, err = Validate(s, Params{Filters: []Filter{
			{Field: "full_name", Op: "==", Value: "Ada"},
		}})
		verr := requireValidationErrors(t, err)
		assert.ErrorContains(t, verr.Field("filters", "0", "op"), "composite")
	})

	t.Run("supported composite operators validate normally", func(t *testing.T) {
		s := newTestSchema(t)
		q, err := Validate(s, Params{Filters: []Filter{
			{Field: "full_name", Op: "ilike", Value: "ada"},
		}})
		require.NoError(t, err)
		assert.Equal(t, "ada", q.Filters[0].Value)
	})
}

func TestValidateGuards(t *testing.T) {
	st := DefaultSettings()
	st.MaxFilters = 2
	st.MaxInValues = 2
	cfg := testSchemaConfig()
	cfg.Settings = &st
	s, err := NewSchema(cfg)
	require.NoError(t, err)

	many := []Filter{
		{Field: "amount", Op: ">", Value: 1},
		{Field: "amount", Op: "<", Value: 9},
		{Field: "attempts", Op: "==", Value: 1},
	}

	t.Run("filter count cap", func(t *testing.T) {
		_, err := Validate(s, Params{Filters: many})
		verr := requireValidationErrors(t, err)
		assert.ErrorContains(t, verr.Field("filters"), "too many filters")
	})

	t.Run("in list cap", func(t *testing.T) {
		_, err := Validate(s, Params{Filters: []Filter{
			{Field: "status", Op: "in", Value: []string{"queued", "applied", "rejected"}},
		}})
		verr := requireValidationErrors(t, err)
		assert.ErrorContains(t, verr.Field("filters", "0", "value"), "too many values")
	})

	t.Run("replace truncates both", func(t *testing.T) {
		cfg := testSchemaConfig()
		cfg.Settings = &st
		cfg.ReplaceInvalidParams = ptr(true)
		rs, err := NewSchema(cfg)
		require.NoError(t, err)

		q, err := Validate(rs, Params{Filters: many})
		require.NoError(t, err)
		assert.Len(t, q.Filters, 2)

		q, err = Validate(rs, Params{Filters: []Filter{
			{Field: "status", Op: "in", Value: []string{"queued", "applied", "rejected"}},
		}})
		require.NoError(t, err)
		assert.Equal(t, []any{"queued", "applied"}, q.Filters[0].Value)
	})
}

func TestValidationErrorsReporting(t *testing.T) {
	s := newTestSchema(t)
	p := Params{Limit: ptr(0), OrderBy: []string{"ghost"}}
	_, err := Validate(s, p)
	verr := requireValidationErrors(t, err)

	// The offending params ride along for error reporting.
	assert.Equal(t, p, verr.Params)
	assert.Contains(t, verr.Error(), "INVALID_PARAMS")
	assert.Nil(t, verr.Field("filters"))
	assert.Nil(t, verr.Field("order_by", "7"))
}
