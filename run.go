package listq

import (
	"context"
	"slices"

	"github.com/pkg/errors"
)

// RunOption adjusts a single Run or RunQuery call.
type RunOption func(*runConfig)

type runConfig struct {
	skipCount bool
}

// WithoutTotalCount skips the count query. TotalCount and TotalPages
// come back as -1; has_next_page still works through the look-ahead
// row.
func WithoutTotalCount() RunOption {
	return func(c *runConfig) { c.skipCount = true }
}

// Run validates the parameters, compiles them, and executes the plan:
// one count (unless skipped), one fetch with a look-ahead row, and for
// cursored requests a one-row probe behind the cursor. Rows come back
// in natural order regardless of pagination direction.
func Run(ctx context.Context, ex Executor, s *Schema, p Params, opts ...RunOption) (*Result, error) {
	q, err := Validate(s, p)
	if err != nil {
		return nil, err
	}
	return RunQuery(ctx, ex, q, opts...)
}

// RunQuery is Run for an already validated query.
func RunQuery(ctx context.Context, ex Executor, q *Query, opts ...RunOption) (*Result, error) {
	var cfg runConfig
	for _, o := range opts {
		o(&cfg)
	}

	plan, err := Compile(q)
	if err != nil {
		return nil, err
	}

	total := -1
	if !cfg.skipCount {
		total, err = ex.Count(ctx, plan.Where)
		if err != nil {
			return nil, errors.Wrap(err, "count")
		}
	}

	where := andAll([]Expr{plan.Where, plan.Boundary})
	rows, err := ex.Fetch(ctx, where, plan.FetchOrder, plan.Limit+1, plan.Offset)
	if err != nil {
		return nil, errors.Wrap(err, "fetch")
	}

	fetched := len(rows)
	if fetched > plan.Limit {
		rows = rows[:plan.Limit]
	}
	if plan.Backward {
		slices.Reverse(rows)
	}

	probeHit := false
	if plan.Strategy == PaginateCursor && len(q.Cursor) > 0 {
		probeHit, err = probeBeyondCursor(ctx, ex, plan, q.Cursor)
		if err != nil {
			return nil, err
		}
	}

	var start, end *string
	if plan.Strategy == PaginateCursor && len(rows) > 0 {
		if start, err = encodeRowCursor(q, rows[0], plan.Order); err != nil {
			return nil, err
		}
		if end, err = encodeRowCursor(q, rows[len(rows)-1], plan.Order); err != nil {
			return nil, err
		}
	}

	return &Result{
		Rows: rows,
		Meta: NewMeta(q, total, fetched, probeHit, start, end),
	}, nil
}

// probeBeyondCursor answers "does anything exist on the far side of the
// cursor": previous rows on a forward request, next rows on a backward
// one. It mirrors the fetch, reversing the ordering and rebuilding the
// boundary inclusively so the cursor row itself counts.
func probeBeyondCursor(ctx context.Context, ex Executor, plan *Plan, cur Cursor) (bool, error) {
	probeOrder := ReverseOrder(plan.FetchOrder)
	pinned := false
	for _, t := range probeOrder {
		if t.Field.Kind == KindComposite {
			continue
		}
		if _, ok := cur.Get(t.Field.Name); ok {
			pinned = true
			break
		}
	}
	if !pinned {
		// The cursor pinned no usable field; there is no position to
		// probe behind.
		return false, nil
	}
	boundary, err := boundaryExpr(probeOrder, cur, true)
	if err != nil {
		return false, err
	}
	rows, err := ex.Fetch(ctx, andAll([]Expr{plan.Where, boundary}), probeOrder, 1, 0)
	if err != nil {
		return false, errors.Wrap(err, "probe")
	}
	return len(rows) > 0, nil
}

func encodeRowCursor(q *Query, row Row, order []OrderTerm) (*string, error) {
	cur, err := CursorFromRow(row, order)
	if err != nil {
		return nil, err
	}
	s, err := q.Schema.EncodeCursor(cur)
	if err != nil {
		return nil, errors.Wrap(err, "encode cursor")
	}
	return &s, nil
}
