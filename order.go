package listq

import "strings"

// OrderDirection is a sort direction, optionally pinning NULL placement.
// The plain directions leave NULL placement to the backend default
// (Postgres sorts nulls last ascending, nulls first descending).
type OrderDirection string

const (
	OrderAsc            OrderDirection = "asc"
	OrderDesc           OrderDirection = "desc"
	OrderAscNullsFirst  OrderDirection = "asc_nulls_first"
	OrderAscNullsLast   OrderDirection = "asc_nulls_last"
	OrderDescNullsFirst OrderDirection = "desc_nulls_first"
	OrderDescNullsLast  OrderDirection = "desc_nulls_last"
)

// ParseDirection resolves a direction tag.
func ParseDirection(s string) (OrderDirection, bool) {
	switch OrderDirection(strings.ToLower(strings.TrimSpace(s))) {
	case OrderAsc:
		return OrderAsc, true
	case OrderDesc:
		return OrderDesc, true
	case OrderAscNullsFirst:
		return OrderAscNullsFirst, true
	case OrderAscNullsLast:
		return OrderAscNullsLast, true
	case OrderDescNullsFirst:
		return OrderDescNullsFirst, true
	case OrderDescNullsLast:
		return OrderDescNullsLast, true
	default:
		return "", false
	}
}

// Descending reports whether d sorts high to low.
func (d OrderDirection) Descending() bool {
	switch d {
	case OrderDesc, OrderDescNullsFirst, OrderDescNullsLast:
		return true
	}
	return false
}

// NullsFirst reports the effective NULL placement, applying the backend
// default when the direction does not pin one.
func (d OrderDirection) NullsFirst() bool {
	switch d {
	case OrderAscNullsFirst, OrderDescNullsFirst:
		return true
	case OrderAscNullsLast, OrderDescNullsLast:
		return false
	default:
		return d.Descending()
	}
}

// Reverse returns the mirrored direction. Pinned NULL placement flips
// with it, so reversing a full ordering yields the exact reverse row
// sequence.
func (d OrderDirection) Reverse() OrderDirection {
	switch d {
	case OrderAsc:
		return OrderDesc
	case OrderDesc:
		return OrderAsc
	case OrderAscNullsFirst:
		return OrderDescNullsLast
	case OrderAscNullsLast:
		return OrderDescNullsFirst
	case OrderDescNullsFirst:
		return OrderAscNullsLast
	case OrderDescNullsLast:
		return OrderAscNullsFirst
	default:
		return d
	}
}

// SQL returns the ORDER BY fragment for the direction.
func (d OrderDirection) SQL() string {
	switch d {
	case OrderAsc:
		return "ASC"
	case OrderDesc:
		return "DESC"
	case OrderAscNullsFirst:
		return "ASC NULLS FIRST"
	case OrderAscNullsLast:
		return "ASC NULLS LAST"
	case OrderDescNullsFirst:
		return "DESC NULLS FIRST"
	case OrderDescNullsLast:
		return "DESC NULLS LAST"
	default:
		return "ASC"
	}
}

// OrderTerm is one resolved ordering criterion. Composite fields stay a
// single term here; adapters expand them into their members.
type OrderTerm struct {
	Field     *FieldDescriptor
	Direction OrderDirection
}

// ReverseOrder mirrors every term of an ordering. Fetching with the
// reversed ordering returns rows in the exact reverse sequence of the
// original, which is what backward cursor pagination relies on.
func ReverseOrder(order []OrderTerm) []OrderTerm {
	rev := make([]OrderTerm, len(order))
	for i, t := range order {
		rev[i] = OrderTerm{Field: t.Field, Direction: t.Direction.Reverse()}
	}
	return rev
}

// OrderSpec pairs order fields with directions, for schema-level
// default ordering. Directions may be shorter than Fields; missing
// entries default to ascending.
type OrderSpec struct {
	Fields     []string         `json:"fields" yaml:"fields"`
	Directions []OrderDirection `json:"directions,omitempty" yaml:"directions,omitempty"`
}
