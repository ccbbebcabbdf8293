// Package memadapter executes compiled plans against an in-memory row
// slice. It is meant for tests and for small data sets that are
// already loaded; its semantics mirror the SQL adapter, including
// SQL-style null handling, so a comparison against a missing or null
// field never matches.
//
// Raw predicate nodes cannot run in memory and fail with ErrRawExpr.
package memadapter

import (
	"context"
	"sort"

	"github.com/listq/listq"
)

// Executor serves Count and Fetch from a fixed row slice. The slice
// header is kept as given; rows are never mutated or reordered in
// place.
type Executor struct {
	rows []listq.Row
}

// New builds an Executor over rows. Join field values are expected
// nested under their binding key, alias values at the top level, the
// same shape the SQL adapter produces.
func New(rows []listq.Row) *Executor {
	return &Executor{rows: rows}
}

// Count implements listq.Executor.
func (e *Executor) Count(ctx context.Context, where listq.Expr) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	n := 0
	for _, row := range e.rows {
		ok, err := Eval(where, row)
		if err != nil {
			return 0, err
		}
		if ok {
			n++
		}
	}
	return n, nil
}

// Fetch implements listq.Executor.
func (e *Executor) Fetch(ctx context.Context, where listq.Expr, order []listq.OrderTerm, limit, offset int) ([]listq.Row, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var matched []listq.Row
	for _, row := range e.rows {
		ok, err := Eval(where, row)
		if err != nil {
			return nil, err
		}
		if ok {
			matched = append(matched, row)
		}
	}

	if err := sortRows(matched, order); err != nil {
		return nil, err
	}

	if offset > 0 {
		if offset >= len(matched) {
			return nil, nil
		}
		matched = matched[offset:]
	}
	if limit >= 0 && len(matched) > limit {
		matched = matched[:limit]
	}
	return matched, nil
}

// sortRows orders rows by the given terms, stable across ties.
// Composite terms expand to their members in declaration order, and
// null values honor the effective null placement of each direction.
func sortRows(rows []listq.Row, order []listq.OrderTerm) error {
	if len(order) == 0 {
		return nil
	}

	var terms []listq.OrderTerm
	for _, t := range order {
		if t.Field.Kind == listq.KindComposite {
			for _, m := range t.Field.MemberFields() {
				terms = append(terms, listq.OrderTerm{Field: m, Direction: t.Direction})
			}
			continue
		}
		terms = append(terms, t)
	}

	var sortErr error
	sort.SliceStable(rows, func(i, j int) bool {
		if sortErr != nil {
			return false
		}
		for _, t := range terms {
			vi, _ := listq.RowValue(rows[i], t.Field)
			vj, _ := listq.RowValue(rows[j], t.Field)
			switch {
			case vi == nil && vj == nil:
				continue
			case vi == nil:
				return t.Direction.NullsFirst()
			case vj == nil:
				return !t.Direction.NullsFirst()
			}
			c, err := listq.CompareValues(vi, vj)
			if err != nil {
				sortErr = err
				return false
			}
			if c == 0 {
				continue
			}
			if t.Direction.Descending() {
				return c > 0
			}
			return c < 0
		}
		return false
	})
	return sortErr
}
