package listq

import "strings"

// Operator identifies a filter operator. The comparison operators use
// their symbol form as the canonical tag; the rest use snake_case words.
type Operator string

const (
	OpEqual          Operator = "=="
	OpNotEqual       Operator = "!="
	OpLess           Operator = "<"
	OpLessOrEqual    Operator = "<="
	OpGreater        Operator = ">"
	OpGreaterOrEqual Operator = ">="
	OpIn             Operator = "in"
	OpNotIn          Operator = "not_in"
	OpContains       Operator = "contains"
	OpNotContains    Operator = "not_contains"
	OpLike           Operator = "like"
	OpNotLike        Operator = "not_like"
	OpILike          Operator = "ilike"
	OpNotILike       Operator = "not_ilike"
	// OpMatch is the =~ shorthand: case-insensitive substring, same
	// behavior as OpILike.
	OpMatch    Operator = "=~"
	OpLikeAnd  Operator = "like_and"
	OpLikeOr   Operator = "like_or"
	OpILikeAnd Operator = "ilike_and"
	OpILikeOr  Operator = "ilike_or"
	OpEmpty    Operator = "empty"
	OpNotEmpty Operator = "not_empty"
)

// ParseOperator resolves an operator tag, accepting the word aliases
// commonly seen in query strings (eq, ne, lt, ...) alongside the
// canonical forms.
func ParseOperator(s string) (Operator, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "==", "eq":
		return OpEqual, true
	case "!=", "ne", "neq":
		return OpNotEqual, true
	case "<", "lt":
		return OpLess, true
	case "<=", "lte", "lteq":
		return OpLessOrEqual, true
	case ">", "gt":
		return OpGreater, true
	case ">=", "gte", "gteq":
		return OpGreaterOrEqual, true
	case "in":
		return OpIn, true
	case "not_in", "nin":
		return OpNotIn, true
	case "contains":
		return OpContains, true
	case "not_contains":
		return OpNotContains, true
	case "like":
		return OpLike, true
	case "not_like":
		return OpNotLike, true
	case "ilike":
		return OpILike, true
	case "not_ilike":
		return OpNotILike, true
	case "=~":
		return OpMatch, true
	case "like_and":
		return OpLikeAnd, true
	case "like_or":
		return OpLikeOr, true
	case "ilike_and":
		return OpILikeAnd, true
	case "ilike_or":
		return OpILikeOr, true
	case "empty", "isnull":
		return OpEmpty, true
	case "not_empty", "isnotnull":
		return OpNotEmpty, true
	default:
		return "", false
	}
}

// substring reports whether op belongs to the pattern-match family
// (single- or multi-term, case-sensitive or not).
func (op Operator) substring() bool {
	switch op {
	case OpLike, OpNotLike, OpILike, OpNotILike, OpMatch,
		OpLikeAnd, OpLikeOr, OpILikeAnd, OpILikeOr:
		return true
	}
	return false
}

// multiTerm reports whether op splits its value into search terms.
func (op Operator) multiTerm() bool {
	switch op {
	case OpLikeAnd, OpLikeOr, OpILikeAnd, OpILikeOr:
		return true
	}
	return false
}

// insensitive reports whether op matches case-insensitively.
func (op Operator) insensitive() bool {
	switch op {
	case OpILike, OpNotILike, OpMatch, OpILikeAnd, OpILikeOr:
		return true
	}
	return false
}

// negated reports whether op inverts its match.
func (op Operator) negated() bool {
	switch op {
	case OpNotEqual, OpNotIn, OpNotContains, OpNotLike, OpNotILike, OpNotEmpty:
		return true
	}
	return false
}

var comparisonOps = []Operator{
	OpEqual, OpNotEqual, OpLess, OpLessOrEqual, OpGreater, OpGreaterOrEqual,
}

var membershipOps = []Operator{OpIn, OpNotIn}

var patternOps = []Operator{
	OpLike, OpNotLike, OpILike, OpNotILike, OpMatch,
	OpLikeAnd, OpLikeOr, OpILikeAnd, OpILikeOr,
}

var presenceOps = []Operator{OpEmpty, OpNotEmpty}

// DefaultOperators returns the operators permitted on a field of the
// given storage type when the field declares none explicitly.
func DefaultOperators(t StorageType) []Operator {
	switch t {
	case TypeString:
		ops := make([]Operator, 0, 19)
		ops = append(ops, comparisonOps...)
		ops = append(ops, membershipOps...)
		ops = append(ops, patternOps...)
		ops = append(ops, presenceOps...)
		return ops
	case TypeEnum:
		ops := make([]Operator, 0, 6)
		ops = append(ops, OpEqual, OpNotEqual)
		ops = append(ops, membershipOps...)
		ops = append(ops, presenceOps...)
		return ops
	case TypeInt, TypeFloat, TypeDecimal, TypeDate, TypeDatetime:
		ops := make([]Operator, 0, 10)
		ops = append(ops, comparisonOps...)
		ops = append(ops, membershipOps...)
		ops = append(ops, presenceOps...)
		return ops
	case TypeBool:
		return []Operator{OpEqual, OpNotEqual, OpEmpty, OpNotEmpty}
	case TypeStringArray, TypeIntArray:
		return []Operator{OpContains, OpNotContains, OpEmpty, OpNotEmpty}
	case TypeMap:
		return []Operator{OpEmpty, OpNotEmpty}
	default:
		return nil
	}
}

// compositeOps are the operators a composite field supports; everything
// else falls under the schema's unsupported-operator policy.
var compositeOps = map[Operator]bool{
	OpLike:     true,
	OpILike:    true,
	OpMatch:    true,
	OpLikeAnd:  true,
	OpLikeOr:   true,
	OpILikeAnd: true,
	OpILikeOr:  true,
	OpEmpty:    true,
	OpNotEmpty: true,
}

// likeEscaper neutralizes the LIKE metacharacters in user input before
// it is wrapped into a %...% pattern. Backslash is the escape character
// on the SQL side.
var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}

// substringPattern builds the SQL pattern for a single search term.
func substringPattern(term string) string {
	return "%" + escapeLike(term) + "%"
}
