package listq

// PaginationType selects one of the three pagination strategies.
type PaginationType string

const (
	// PaginateOffset pages with limit/offset.
	PaginateOffset PaginationType = "offset"
	// PaginatePage pages with page/page_size.
	PaginatePage PaginationType = "page"
	// PaginateCursor pages with first/after forward or last/before
	// backward.
	PaginateCursor PaginationType = "cursor"
)

// Filter is one filter criterion. Value carries the operand; membership
// operators take a list, pattern operators a string (or list of terms),
// presence operators an optional bool.
type Filter struct {
	Field string   `json:"field"`
	Op    Operator `json:"op"`
	Value any      `json:"value,omitempty"`
}

// Params is the raw, untrusted request input. Pagination fields are
// pointers so that "absent" and "zero" stay distinguishable; wire
// decoding (query strings, JSON bodies) is the caller's concern.
type Params struct {
	Filters []Filter `json:"filters,omitempty"`

	OrderBy         []string         `json:"order_by,omitempty"`
	OrderDirections []OrderDirection `json:"order_directions,omitempty"`

	Limit  *int `json:"limit,omitempty"`
	Offset *int `json:"offset,omitempty"`

	Page     *int `json:"page,omitempty"`
	PageSize *int `json:"page_size,omitempty"`

	First *int    `json:"first,omitempty"`
	After *string `json:"after,omitempty"`

	Last   *int    `json:"last,omitempty"`
	Before *string `json:"before,omitempty"`
}

// Query is a validated request: fields resolved against the schema,
// operand values coerced to their storage types, pagination collapsed
// to a single strategy with defaults applied, cursors decoded.
type Query struct {
	Schema *Schema `json:"-"`

	Filters []Filter    `json:"filters,omitempty"`
	Order   []OrderTerm `json:"-"`

	Pagination PaginationType `json:"pagination"`

	// Limit is the effective page size under every strategy.
	Limit int `json:"limit"`
	// Offset is the effective row offset for the offset and page
	// strategies; page requests are normalized to (page-1)*limit.
	Offset int `json:"offset"`
	// Page is the 1-based page number for the page strategy, 0
	// otherwise.
	Page int `json:"page,omitempty"`

	// Cursor is the decoded after/before cursor, nil on an uncursored
	// request. Backward marks a last/before request.
	Cursor   Cursor `json:"-"`
	Backward bool   `json:"backward,omitempty"`
}

// OrderFields returns the logical names of the query ordering.
func (q *Query) OrderFields() []string {
	names := make([]string, len(q.Order))
	for i, t := range q.Order {
		names[i] = t.Field.Name
	}
	return names
}
