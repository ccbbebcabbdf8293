package listq

import (
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// Expr is a node of the compiled predicate tree. The set of
// implementations is closed; adapters switch over it exhaustively and
// reject nodes they cannot express.
type Expr interface {
	isExpr()
}

// True is the match-all identity. Ignored filters compile to it, and an
// empty conjunction folds to it.
type True struct{}

// And is a conjunction, in filter order.
type And []Expr

// Or is a disjunction.
type Or []Expr

// Not inverts a predicate. The compiler itself never emits Not around
// nullable comparisons; custom builders that do should mind SQL null
// semantics.
type Not struct {
	Expr Expr
}

// CmpOp is the comparison carried by a Cmp node.
type CmpOp string

const (
	CmpEq          CmpOp = "="
	CmpNotEq       CmpOp = "<>"
	CmpLess        CmpOp = "<"
	CmpLessOrEq    CmpOp = "<="
	CmpGreater     CmpOp = ">"
	CmpGreaterOrEq CmpOp = ">="
)

// Cmp compares a field against a single coerced operand.
type Cmp struct {
	Field *FieldDescriptor
	Op    CmpOp
	Value any
}

// In tests membership of a field value in a list. Null records that the
// original list contained nil: the match then also accepts NULL, and
// the negated form additionally requires NOT NULL.
type In struct {
	Field  *FieldDescriptor
	Values []any
	Negate bool
	Null   bool
}

// Match applies a LIKE pattern (wildcards already escaped, %...%
// wrapping applied) to a field.
type Match struct {
	Field       *FieldDescriptor
	Pattern     string
	Insensitive bool
	Negate      bool
}

// Contains tests membership of a single value in an array field.
type Contains struct {
	Field  *FieldDescriptor
	Value  any
	Negate bool
}

// Null tests a scalar field for NULL.
type Null struct {
	Field  *FieldDescriptor
	Negate bool
}

// Empty tests an array or map field for NULL-or-empty.
type Empty struct {
	Field  *FieldDescriptor
	Negate bool
}

// Raw is an opaque SQL fragment produced by a custom field builder.
// Only SQL-backed executors accept it.
type Raw struct {
	SQL  string
	Args []any
}

func (True) isExpr()     {}
func (And) isExpr()      {}
func (Or) isExpr()       {}
func (Not) isExpr()      {}
func (Cmp) isExpr()      {}
func (In) isExpr()       {}
func (Match) isExpr()    {}
func (Contains) isExpr() {}
func (Null) isExpr()     {}
func (Empty) isExpr()    {}
func (Raw) isExpr()      {}

// andAll folds a conjunction, dropping match-all members.
func andAll(exprs []Expr) Expr {
	kept := make([]Expr, 0, len(exprs))
	for _, e := range exprs {
		if _, isTrue := e.(True); isTrue {
			continue
		}
		kept = append(kept, e)
	}
	switch len(kept) {
	case 0:
		return True{}
	case 1:
		return kept[0]
	default:
		return And(kept)
	}
}

// orAll folds a disjunction; a match-all member absorbs it.
func orAll(exprs []Expr) Expr {
	for _, e := range exprs {
		if _, isTrue := e.(True); isTrue {
			return True{}
		}
	}
	switch len(exprs) {
	case 0:
		return True{}
	case 1:
		return exprs[0]
	default:
		return Or(exprs)
	}
}

// Plan is a compiled query: everything an Executor needs, plus the
// natural ordering for cursor reconstruction.
type Plan struct {
	// Where is the filter predicate; the count query uses it alone.
	Where Expr
	// Boundary is the keyset predicate derived from the request
	// cursor, relative to FetchOrder. True when the request carries no
	// cursor.
	Boundary Expr
	// Order is the requested (natural) ordering; FetchOrder is what
	// the fetch actually uses, reversed for backward requests.
	Order      []OrderTerm
	FetchOrder []OrderTerm

	Limit    int
	Offset   int
	Strategy PaginationType
	Backward bool
}

// Compile lowers a validated query into a plan. It is pure aside from
// the warning log a dropped composite filter emits.
func Compile(q *Query) (*Plan, error) {
	where, err := compileFilters(q)
	if err != nil {
		return nil, err
	}

	fetchOrder := q.Order
	if q.Backward {
		fetchOrder = ReverseOrder(q.Order)
	}

	boundary := Expr(True{})
	if q.Pagination == PaginateCursor && len(q.Cursor) > 0 {
		boundary, err = BoundaryExpr(fetchOrder, q.Cursor)
		if err != nil {
			return nil, err
		}
	}

	return &Plan{
		Where:      where,
		Boundary:   boundary,
		Order:      q.Order,
		FetchOrder: fetchOrder,
		Limit:      q.Limit,
		Offset:     q.Offset,
		Strategy:   q.Pagination,
		Backward:   q.Backward,
	}, nil
}

func compileFilters(q *Query) (Expr, error) {
	exprs := make([]Expr, 0, len(q.Filters))
	for _, f := range q.Filters {
		e, err := compileFilter(q.Schema, f)
		if err != nil {
			return nil, err
		}
		exprs = append(exprs, e)
	}
	return andAll(exprs), nil
}

func compileFilter(s *Schema, f Filter) (Expr, error) {
	fd, ok := s.Filterable(f.Field)
	if !ok {
		return nil, misuseErr("compile", "field %q is not filterable on schema %q", f.Field, s.name)
	}

	// Filters without an operand match everything. Presence operators
	// land here too when their operand was not boolean-like.
	if f.Value == nil {
		return True{}, nil
	}

	switch fd.Kind {
	case KindCustom:
		expr, err := fd.Build(f, fd.Options)
		if err != nil {
			return nil, errors.Wrapf(err, "custom field %q", fd.Name)
		}
		if expr == nil {
			return True{}, nil
		}
		return expr, nil
	case KindComposite:
		return compileComposite(s, fd, f)
	default:
		return compileSimple(fd, f)
	}
}

func compileSimple(fd *FieldDescriptor, f Filter) (Expr, error) {
	switch f.Op {
	case OpEqual:
		return Cmp{Field: fd, Op: CmpEq, Value: f.Value}, nil
	case OpNotEqual:
		return Cmp{Field: fd, Op: CmpNotEq, Value: f.Value}, nil
	case OpLess:
		return Cmp{Field: fd, Op: CmpLess, Value: f.Value}, nil
	case OpLessOrEqual:
		return Cmp{Field: fd, Op: CmpLessOrEq, Value: f.Value}, nil
	case OpGreater:
		return Cmp{Field: fd, Op: CmpGreater, Value: f.Value}, nil
	case OpGreaterOrEqual:
		return Cmp{Field: fd, Op: CmpGreaterOrEq, Value: f.Value}, nil

	case OpIn, OpNotIn:
		vals, _ := f.Value.([]any)
		kept := make([]any, 0, len(vals))
		sawNull := false
		for _, v := range vals {
			if v == nil {
				sawNull = true
				continue
			}
			kept = append(kept, v)
		}
		return In{Field: fd, Values: kept, Negate: f.Op == OpNotIn, Null: sawNull}, nil

	case OpContains, OpNotContains:
		return Contains{Field: fd, Value: f.Value, Negate: f.Op == OpNotContains}, nil

	case OpLike, OpNotLike, OpILike, OpNotILike, OpMatch:
		// A list operand means every pattern must hold (respectively,
		// for the negated forms, fail).
		if terms, ok := f.Value.([]string); ok {
			matches := make([]Expr, 0, len(terms))
			for _, t := range terms {
				matches = append(matches, Match{
					Field:       fd,
					Pattern:     substringPattern(t),
					Insensitive: f.Op.insensitive(),
					Negate:      f.Op.negated(),
				})
			}
			return andAll(matches), nil
		}
		term, err := toString(f.Value)
		if err != nil {
			return nil, misuseErr("compile", "operator %q on field %q needs a string operand", f.Op, fd.Name)
		}
		return Match{
			Field:       fd,
			Pattern:     substringPattern(term),
			Insensitive: f.Op.insensitive(),
			Negate:      f.Op.negated(),
		}, nil

	case OpLikeAnd, OpLikeOr, OpILikeAnd, OpILikeOr:
		terms, _ := f.Value.([]string)
		matches := make([]Expr, 0, len(terms))
		for _, t := range terms {
			matches = append(matches, Match{
				Field:       fd,
				Pattern:     substringPattern(t),
				Insensitive: f.Op.insensitive(),
			})
		}
		if len(matches) == 0 {
			return True{}, nil
		}
		if f.Op == OpLikeOr || f.Op == OpILikeOr {
			return orAll(matches), nil
		}
		return andAll(matches), nil

	case OpEmpty, OpNotEmpty:
		want, ok := f.Value.(bool)
		if !ok {
			return True{}, nil
		}
		isEmpty := (f.Op == OpEmpty) == want
		return presenceExpr(fd, isEmpty), nil

	default:
		return nil, misuseErr("compile", "operator %q has no lowering for field %q", f.Op, fd.Name)
	}
}

// presenceExpr picks the emptiness test matching the storage type.
func presenceExpr(fd *FieldDescriptor, isEmpty bool) Expr {
	switch fd.Type {
	case TypeStringArray, TypeIntArray, TypeMap:
		return Empty{Field: fd, Negate: !isEmpty}
	default:
		return Null{Field: fd, Negate: !isEmpty}
	}
}

func compileComposite(s *Schema, fd *FieldDescriptor, f Filter) (Expr, error) {
	if !compositeOps[f.Op] {
		// The error policy rejects these during validation; reaching
		// here means the schema runs warn_and_ignore.
		logger.WithFields(logrus.Fields{
			"schema": s.name,
			"field":  fd.Name,
			"op":     f.Op,
		}).Warn("filter ignored: operator not supported on composite fields")
		return True{}, nil
	}

	members := fd.MemberFields()

	switch f.Op {
	case OpEmpty, OpNotEmpty:
		want, ok := f.Value.(bool)
		if !ok {
			return True{}, nil
		}
		isEmpty := (f.Op == OpEmpty) == want
		exprs := make([]Expr, len(members))
		for i, m := range members {
			exprs[i] = presenceExpr(m, isEmpty)
		}
		// A composite is empty when every member is, non-empty when
		// any member is.
		if isEmpty {
			return andAll(exprs), nil
		}
		return orAll(exprs), nil

	case OpLike, OpILike, OpMatch:
		if terms, ok := f.Value.([]string); ok {
			perTerm := make([]Expr, len(terms))
			for i, t := range terms {
				perTerm[i] = matchAcrossMembers(members, t, f.Op.insensitive())
			}
			return andAll(perTerm), nil
		}
		term, err := toString(f.Value)
		if err != nil {
			return nil, misuseErr("compile", "operator %q on field %q needs a string operand", f.Op, fd.Name)
		}
		return matchAcrossMembers(members, term, f.Op.insensitive()), nil

	case OpLikeAnd, OpLikeOr, OpILikeAnd, OpILikeOr:
		terms, _ := f.Value.([]string)
		if len(terms) == 0 {
			return True{}, nil
		}
		perTerm := make([]Expr, len(terms))
		for i, t := range terms {
			perTerm[i] = matchAcrossMembers(members, t, f.Op.insensitive())
		}
		if f.Op == OpLikeOr || f.Op == OpILikeOr {
			return orAll(perTerm), nil
		}
		return andAll(perTerm), nil

	default:
		return nil, misuseErr("compile", "operator %q has no composite lowering", f.Op)
	}
}

// matchAcrossMembers builds the one-term disjunction: the term may
// appear in any member.
func matchAcrossMembers(members []*FieldDescriptor, term string, insensitive bool) Expr {
	exprs := make([]Expr, len(members))
	for i, m := range members {
		exprs[i] = Match{Field: m, Pattern: substringPattern(term), Insensitive: insensitive}
	}
	return orAll(exprs)
}
