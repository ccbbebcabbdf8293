package sqladapter

import (
	sq "github.com/Masterminds/squirrel"
	"github.com/lib/pq"
	"github.com/pkg/errors"

	"github.com/listq/listq"
)

// Render translates a predicate tree into a squirrel Sqlizer, for
// callers embedding compiled predicates in statements of their own.
// The match-all predicate renders as TRUE.
func (e *Executor) Render(x listq.Expr) (sq.Sqlizer, error) {
	return e.renderExpr(x)
}

// render is Render for WHERE clauses: the second return is false when
// the tree matches everything and no clause is needed.
func (e *Executor) render(x listq.Expr) (sq.Sqlizer, bool, error) {
	if _, matchAll := x.(listq.True); matchAll {
		return nil, false, nil
	}
	pred, err := e.renderExpr(x)
	if err != nil {
		return nil, false, err
	}
	return pred, true, nil
}

func (e *Executor) renderExpr(x listq.Expr) (sq.Sqlizer, error) {
	switch node := x.(type) {
	case listq.True:
		return sq.Expr("TRUE"), nil
	case listq.And:
		parts, err := e.renderAll(node)
		if err != nil {
			return nil, err
		}
		return sq.And(parts), nil
	case listq.Or:
		parts, err := e.renderAll(node)
		if err != nil {
			return nil, err
		}
		return sq.Or(parts), nil
	case listq.Not:
		inner, err := e.renderExpr(node.Expr)
		if err != nil {
			return nil, err
		}
		return sq.Expr("NOT (?)", inner), nil
	case listq.Cmp:
		return e.renderCmp(node)
	case listq.In:
		return e.renderIn(node)
	case listq.Match:
		return e.renderMatch(node)
	case listq.Contains:
		return e.renderContains(node)
	case listq.Null:
		column, err := e.column(node.Field)
		if err != nil {
			return nil, err
		}
		if node.Negate {
			return sq.NotEq{column: nil}, nil
		}
		return sq.Eq{column: nil}, nil
	case listq.Empty:
		return e.renderEmpty(node)
	case listq.Raw:
		return sq.Expr(node.SQL, node.Args...), nil
	default:
		return nil, errors.Errorf("unsupported predicate node %T", x)
	}
}

func (e *Executor) renderAll(nodes []listq.Expr) ([]sq.Sqlizer, error) {
	parts := make([]sq.Sqlizer, 0, len(nodes))
	for _, n := range nodes {
		part, err := e.renderExpr(n)
		if err != nil {
			return nil, err
		}
		parts = append(parts, part)
	}
	return parts, nil
}

func (e *Executor) renderCmp(node listq.Cmp) (sq.Sqlizer, error) {
	column, err := e.column(node.Field)
	if err != nil {
		return nil, err
	}
	switch node.Op {
	case listq.CmpEq:
		return sq.Eq{column: node.Value}, nil
	case listq.CmpNotEq:
		return sq.NotEq{column: node.Value}, nil
	case listq.CmpLess:
		return sq.Lt{column: node.Value}, nil
	case listq.CmpLessOrEq:
		return sq.LtOrEq{column: node.Value}, nil
	case listq.CmpGreater:
		return sq.Gt{column: node.Value}, nil
	case listq.CmpGreaterOrEq:
		return sq.GtOrEq{column: node.Value}, nil
	default:
		return nil, errors.Errorf("unsupported comparison %q", node.Op)
	}
}

// renderIn prefers = ANY($n) with a single array parameter for string
// lists, which keeps the statement text stable regardless of list
// length. Other element types go through squirrel's IN expansion.
func (e *Executor) renderIn(node listq.In) (sq.Sqlizer, error) {
	column, err := e.column(node.Field)
	if err != nil {
		return nil, err
	}

	var membership sq.Sqlizer
	if ss, ok := stringList(node.Values); ok && len(ss) > 0 {
		if node.Negate {
			membership = sq.Expr(column+" <> ALL(?)", pq.Array(ss))
		} else {
			membership = sq.Expr(column+" = ANY(?)", pq.Array(ss))
		}
	} else if node.Negate {
		membership = sq.NotEq{column: node.Values}
	} else {
		membership = sq.Eq{column: node.Values}
	}

	if !node.Null {
		return membership, nil
	}
	if node.Negate {
		return sq.And{membership, sq.NotEq{column: nil}}, nil
	}
	return sq.Or{membership, sq.Eq{column: nil}}, nil
}

func (e *Executor) renderMatch(node listq.Match) (sq.Sqlizer, error) {
	column, err := e.column(node.Field)
	if err != nil {
		return nil, err
	}
	switch {
	case node.Insensitive && node.Negate:
		return sq.NotILike{column: node.Pattern}, nil
	case node.Insensitive:
		return sq.ILike{column: node.Pattern}, nil
	case node.Negate:
		return sq.NotLike{column: node.Pattern}, nil
	default:
		return sq.Like{column: node.Pattern}, nil
	}
}

func (e *Executor) renderContains(node listq.Contains) (sq.Sqlizer, error) {
	column, err := e.column(node.Field)
	if err != nil {
		return nil, err
	}
	if node.Negate {
		return sq.Expr("NOT (? = ANY("+column+"))", node.Value), nil
	}
	return sq.Expr("? = ANY("+column+")", node.Value), nil
}

// renderEmpty treats NULL and the empty collection alike for array and
// map columns; scalar columns reduce to a NULL test.
func (e *Executor) renderEmpty(node listq.Empty) (sq.Sqlizer, error) {
	column, err := e.column(node.Field)
	if err != nil {
		return nil, err
	}
	var emptyLit string
	switch node.Field.Type {
	case listq.TypeStringArray, listq.TypeIntArray:
		emptyLit = "'{}'"
	case listq.TypeMap:
		emptyLit = "'{}'::jsonb"
	default:
		if node.Negate {
			return sq.NotEq{column: nil}, nil
		}
		return sq.Eq{column: nil}, nil
	}
	if node.Negate {
		return sq.And{sq.NotEq{column: nil}, sq.Expr(column + " <> " + emptyLit)}, nil
	}
	return sq.Or{sq.Eq{column: nil}, sq.Expr(column + " = " + emptyLit)}, nil
}

func stringList(vals []any) ([]string, bool) {
	out := make([]string, 0, len(vals))
	for _, v := range vals {
		s, ok := v.(string)
		if !ok {
			return nil, false
		}
		out = append(out, s)
	}
	return out, true
}

// column resolves a field descriptor to its qualified SQL column.
func (e *Executor) column(fd *listq.FieldDescriptor) (string, error) {
	if fd == nil {
		return "", errors.New("predicate node without a field")
	}
	switch fd.Kind {
	case listq.KindPlain:
		return e.alias + "." + fd.Column, nil
	case listq.KindJoin:
		j, ok := e.joins[fd.Binding]
		if !ok {
			return "", errors.Errorf("no join configured for binding %q", fd.Binding)
		}
		return j.Alias + "." + fd.RemoteField, nil
	default:
		return "", errors.Errorf("field %q of kind %q has no storage column", fd.Name, fd.Kind)
	}
}

// orderClauses renders ORDER BY terms. Composite terms expand to their
// members in declaration order; alias terms sort by their output name.
func (e *Executor) orderClauses(order []listq.OrderTerm) ([]string, error) {
	var clauses []string
	for _, term := range order {
		switch term.Field.Kind {
		case listq.KindComposite:
			for _, member := range term.Field.MemberFields() {
				column, err := e.column(member)
				if err != nil {
					return nil, err
				}
				clauses = append(clauses, column+" "+term.Direction.SQL())
			}
		case listq.KindAlias:
			clauses = append(clauses, pq.QuoteIdentifier(term.Field.Name)+" "+term.Direction.SQL())
		default:
			column, err := e.column(term.Field)
			if err != nil {
				return nil, err
			}
			clauses = append(clauses, column+" "+term.Direction.SQL())
		}
	}
	return clauses, nil
}

// referencedBindings walks a predicate for the join bindings it
// touches. The second return is true when a raw fragment makes the set
// unknowable and every join must be included.
func referencedBindings(x listq.Expr) (map[string]bool, bool) {
	set := map[string]bool{}
	includeAll := collectBindings(x, set)
	return set, includeAll
}

func collectBindings(x listq.Expr, set map[string]bool) bool {
	mark := func(fd *listq.FieldDescriptor) {
		if fd != nil && fd.Kind == listq.KindJoin {
			set[fd.Binding] = true
		}
	}
	switch node := x.(type) {
	case listq.And:
		includeAll := false
		for _, sub := range node {
			includeAll = collectBindings(sub, set) || includeAll
		}
		return includeAll
	case listq.Or:
		includeAll := false
		for _, sub := range node {
			includeAll = collectBindings(sub, set) || includeAll
		}
		return includeAll
	case listq.Not:
		return collectBindings(node.Expr, set)
	case listq.Cmp:
		mark(node.Field)
	case listq.In:
		mark(node.Field)
	case listq.Match:
		mark(node.Field)
	case listq.Contains:
		mark(node.Field)
	case listq.Null:
		mark(node.Field)
	case listq.Empty:
		mark(node.Field)
	case listq.Raw:
		return true
	}
	return false
}
