package listq

import (
	"fmt"
	"strconv"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

// Validate checks raw parameters against the schema and produces the
// validated query. All problems found in one pass are reported together
// as a *ValidationErrors, keyed by parameter; filter and order problems
// nest under their index. With the schema's replace-invalid policy on,
// repairable problems are fixed instead: out-of-range numbers are
// clamped, unknown fields, broken filters, and undecodable cursors are
// dropped.
func Validate(s *Schema, p Params) (*Query, error) {
	v := &validator{
		schema:  s,
		params:  p,
		errs:    validation.Errors{},
		replace: s.replaceInvalid,
	}
	q := v.run()
	if len(v.errs) > 0 {
		return nil, &ValidationErrors{Params: p, Errors: v.errs}
	}
	return q, nil
}

type validator struct {
	schema  *Schema
	params  Params
	errs    validation.Errors
	replace bool

	// fatal short-circuits the rest of the pass: a strategy conflict or
	// an undecodable cursor leaves no sensible partial request to keep
	// checking.
	fatal bool
}

func (v *validator) run() *Query {
	q := &Query{Schema: v.schema}

	v.applyPagination(q)
	if v.fatal {
		return q
	}
	v.applyOrder(q)
	v.applyFilters(q)

	if q.Pagination == PaginateCursor && len(q.Order) == 0 {
		// Without an ordering there is no keyset to paginate over.
		// Not repairable: inventing an ordering would silently change
		// the page contents.
		v.errs["order_by"] = fmt.Errorf("cursor pagination requires an ordering")
	}

	return q
}

type paramGroup struct {
	name     string
	present  bool
	strategy PaginationType
	backward bool
}

func (v *validator) applyPagination(q *Query) {
	p := v.params
	groups := []paramGroup{
		{"limit/offset", p.Limit != nil || p.Offset != nil, PaginateOffset, false},
		{"page/page_size", p.Page != nil || p.PageSize != nil, PaginatePage, false},
		{"first/after", p.First != nil || p.After != nil, PaginateCursor, false},
		{"last/before", p.Last != nil || p.Before != nil, PaginateCursor, true},
	}

	var chosen []paramGroup
	for _, g := range groups {
		if g.present {
			chosen = append(chosen, g)
		}
	}

	switch {
	case len(chosen) > 1:
		names := make([]string, len(chosen))
		for i, g := range chosen {
			names[i] = g.name
		}
		// Ambiguous intent is never repaired, even under the replace
		// policy.
		v.errs["pagination"] = fmt.Errorf("multiple pagination strategies: %s", strings.Join(names, " and "))
		v.fatal = true
		v.fallbackPagination(q)
		return
	case len(chosen) == 0:
		v.fallbackPagination(q)
		return
	}

	g := chosen[0]
	if !v.schema.paginationTypes[g.strategy] {
		if v.replace {
			v.fallbackPagination(q)
			return
		}
		v.errs["pagination"] = fmt.Errorf("pagination type %q is not enabled", g.strategy)
		q.Pagination = g.strategy
		q.Limit = v.schema.defaultLimit
		return
	}

	q.Pagination = g.strategy
	q.Backward = g.backward
	q.Limit = v.schema.defaultLimit

	switch g.strategy {
	case PaginateOffset:
		if p.Limit != nil {
			q.Limit = v.checkLimit("limit", *p.Limit)
		}
		if p.Offset != nil {
			q.Offset = v.checkMin("offset", *p.Offset, 0)
		}

	case PaginatePage:
		q.Page = 1
		if p.Page != nil {
			q.Page = v.checkMin("page", *p.Page, 1)
		}
		if p.PageSize != nil {
			q.Limit = v.checkLimit("page_size", *p.PageSize)
		}
		q.Offset = (q.Page - 1) * q.Limit

	case PaginateCursor:
		if g.backward {
			if p.Last != nil {
				q.Limit = v.checkLimit("last", *p.Last)
			}
			q.Cursor = v.decodeCursor("before", p.Before)
		} else {
			if p.First != nil {
				q.Limit = v.checkLimit("first", *p.First)
			}
			q.Cursor = v.decodeCursor("after", p.After)
		}
	}
}

// fallbackPagination resets the query to the schema's default
// strategy with the default page size.
func (v *validator) fallbackPagination(q *Query) {
	q.Pagination = v.schema.defaultPagination
	q.Backward = false
	q.Limit = v.schema.defaultLimit
	q.Offset = 0
	if q.Pagination == PaginatePage {
		q.Page = 1
	}
}

// checkLimit validates a page size. Under the replace policy a
// non-positive size falls back to the default and an oversized one is
// clamped to the cap. The thresholds are checked directly: ozzo skips
// its rules on zero values, and a zero limit must fail here.
func (v *validator) checkLimit(key string, val int) int {
	if val < 1 {
		if v.replace {
			return v.schema.defaultLimit
		}
		v.errs[key] = fmt.Errorf("must be greater than 0")
		return v.schema.defaultLimit
	}
	if v.schema.maxLimit != NoLimit && val > v.schema.maxLimit {
		if v.replace {
			return v.schema.maxLimit
		}
		v.errs[key] = fmt.Errorf("must be no greater than %d", v.schema.maxLimit)
		return v.schema.defaultLimit
	}
	return val
}

func (v *validator) checkMin(key string, val, min int) int {
	if val < min {
		if v.replace {
			return min
		}
		v.errs[key] = fmt.Errorf("must be no less than %d", min)
		return min
	}
	return val
}

func (v *validator) decodeCursor(key string, raw *string) Cursor {
	if raw == nil {
		return nil
	}
	c, err := v.schema.DecodeCursor(*raw)
	if err != nil {
		if v.replace {
			return nil
		}
		v.errs[key] = fmt.Errorf("invalid cursor: %s", err)
		v.fatal = true
		return nil
	}
	return c
}

func (v *validator) applyOrder(q *Query) {
	p := v.params
	orderErrs := validation.Errors{}
	dirErrs := validation.Errors{}

	for i, name := range p.OrderBy {
		idx := strconv.Itoa(i)
		fd, ok := v.schema.sortable[name]
		if !ok {
			if v.replace {
				continue
			}
			orderErrs[idx] = fmt.Errorf("field %q is not sortable", name)
			continue
		}
		dir := OrderAsc
		if i < len(p.OrderDirections) {
			d, ok := ParseDirection(string(p.OrderDirections[i]))
			if !ok {
				if !v.replace {
					dirErrs[idx] = fmt.Errorf("unknown direction %q", p.OrderDirections[i])
				}
			} else {
				dir = d
			}
		}
		q.Order = append(q.Order, OrderTerm{Field: fd, Direction: dir})
	}

	if len(orderErrs) > 0 {
		v.errs["order_by"] = orderErrs
	}
	if len(dirErrs) > 0 {
		v.errs["order_directions"] = dirErrs
	}

	if len(q.Order) == 0 {
		q.Order = v.schema.DefaultOrder()
	}
}

func (v *validator) applyFilters(q *Query) {
	p := v.params
	if len(p.Filters) == 0 {
		return
	}

	filters := p.Filters
	if max := v.schema.settings.MaxFilters; max > 0 && len(filters) > max {
		if v.replace {
			filters = filters[:max]
		} else {
			v.errs["filters"] = fmt.Errorf("too many filters: %d exceeds the limit of %d", len(filters), max)
			return
		}
	}

	filterErrs := validation.Errors{}
	kept := make([]Filter, 0, len(filters))

	for i, f := range filters {
		checked, fe := v.checkFilter(f)
		if len(fe) > 0 {
			if v.replace {
				continue
			}
			filterErrs[strconv.Itoa(i)] = fe
			continue
		}
		kept = append(kept, checked)
	}

	if len(filterErrs) > 0 {
		v.errs["filters"] = filterErrs
	}
	q.Filters = kept
}

// checkFilter resolves, authorizes, and coerces one filter. The
// returned filter carries the canonical operator tag and the coerced
// operand.
func (v *validator) checkFilter(f Filter) (Filter, validation.Errors) {
	fe := validation.Errors{}

	if f.Field == "" {
		fe["field"] = fmt.Errorf("cannot be blank")
		return f, fe
	}
	fd, ok := v.schema.Filterable(f.Field)
	if !ok {
		fe["field"] = fmt.Errorf("field %q is not filterable", f.Field)
		return f, fe
	}

	if f.Op == "" {
		fe["op"] = fmt.Errorf("cannot be blank")
		return f, fe
	}
	op, ok := ParseOperator(string(f.Op))
	if !ok {
		fe["op"] = fmt.Errorf("unknown operator %q", f.Op)
		return f, fe
	}
	f.Op = op

	if !fd.Allows(op) {
		if fd.Kind == KindComposite {
			// Under the warn policy the filter passes through and the
			// compiler drops it.
			if v.schema.compositePolicy == CompositeOpError {
				fe["op"] = fmt.Errorf("operator %q is not supported on composite fields", op)
			}
			return f, fe
		}
		fe["op"] = fmt.Errorf("operator %q is not allowed for field %q", op, f.Field)
		return f, fe
	}

	coerced, err := v.coerceOperand(fd, op, f.Value)
	if err != nil {
		fe["value"] = err
		return f, fe
	}
	f.Value = coerced
	return f, fe
}

func (v *validator) coerceOperand(fd *FieldDescriptor, op Operator, val any) (any, error) {
	switch {
	case fd.Kind == KindCustom:
		// Custom builders interpret their own operands; nothing here
		// may rewrite them first.
		return val, nil
	case op == OpEmpty || op == OpNotEmpty:
		return presenceOperand(val), nil
	case val == nil:
		return nil, nil
	case op == OpIn || op == OpNotIn:
		list, err := coerceList(fd, val)
		if err != nil {
			return nil, err
		}
		if max := v.schema.settings.MaxInValues; max > 0 && len(list) > max {
			if v.replace {
				return list[:max], nil
			}
			return nil, fmt.Errorf("too many values: %d exceeds the limit of %d", len(list), max)
		}
		return list, nil
	case op.multiTerm():
		return searchTerms(val)
	case op.substring():
		return patternOperand(val)
	default:
		return coerceScalar(fd, val)
	}
}
