package memadapter

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/pkg/errors"

	"github.com/listq/listq"
)

// ErrRawExpr marks a predicate that embeds a raw SQL fragment; those
// only run on SQL-backed executors.
var ErrRawExpr = errors.New("memadapter: raw SQL fragment is not executable in memory")

// Eval decides whether a row satisfies a predicate. Comparisons,
// pattern matches, and membership tests against a null or missing
// field value evaluate to no-match, as they would in SQL.
func Eval(e listq.Expr, row listq.Row) (bool, error) {
	switch node := e.(type) {
	case listq.True:
		return true, nil

	case listq.And:
		for _, sub := range node {
			ok, err := Eval(sub, row)
			if err != nil || !ok {
				return false, err
			}
		}
		return true, nil

	case listq.Or:
		for _, sub := range node {
			ok, err := Eval(sub, row)
			if err != nil {
				return false, err
			}
			if ok {
				return true, nil
			}
		}
		return false, nil

	case listq.Not:
		ok, err := Eval(node.Expr, row)
		return !ok, err

	case listq.Cmp:
		return evalCmp(node, row)

	case listq.In:
		return evalIn(node, row)

	case listq.Match:
		return evalMatch(node, row)

	case listq.Contains:
		return evalContains(node, row)

	case listq.Null:
		v, _ := listq.RowValue(row, node.Field)
		return (v == nil) != node.Negate, nil

	case listq.Empty:
		return evalEmpty(node, row)

	case listq.Raw:
		return false, ErrRawExpr

	default:
		return false, fmt.Errorf("memadapter: unsupported expression %T", e)
	}
}

func evalCmp(node listq.Cmp, row listq.Row) (bool, error) {
	v, _ := listq.RowValue(row, node.Field)
	if v == nil {
		return false, nil
	}
	c, err := listq.CompareValues(v, node.Value)
	if err != nil {
		return false, errors.Wrapf(err, "field %q", node.Field.Name)
	}
	switch node.Op {
	case listq.CmpEq:
		return c == 0, nil
	case listq.CmpNotEq:
		return c != 0, nil
	case listq.CmpLess:
		return c < 0, nil
	case listq.CmpLessOrEq:
		return c <= 0, nil
	case listq.CmpGreater:
		return c > 0, nil
	case listq.CmpGreaterOrEq:
		return c >= 0, nil
	default:
		return false, fmt.Errorf("memadapter: unsupported comparison %q", node.Op)
	}
}

func evalIn(node listq.In, row listq.Row) (bool, error) {
	v, _ := listq.RowValue(row, node.Field)
	if v == nil {
		// A null in the operand list means the filter also matches
		// NULL; the negated form then requires NOT NULL.
		return node.Null && !node.Negate, nil
	}
	member := false
	for _, candidate := range node.Values {
		c, err := listq.CompareValues(v, candidate)
		if err != nil {
			return false, errors.Wrapf(err, "field %q", node.Field.Name)
		}
		if c == 0 {
			member = true
			break
		}
	}
	return member != node.Negate, nil
}

func evalMatch(node listq.Match, row listq.Row) (bool, error) {
	v, _ := listq.RowValue(row, node.Field)
	if v == nil {
		return false, nil
	}
	s, ok := stringValue(v)
	if !ok {
		return false, fmt.Errorf("memadapter: field %q is not a string", node.Field.Name)
	}
	re, err := likeRegexp(node.Pattern, node.Insensitive)
	if err != nil {
		return false, errors.Wrapf(err, "field %q", node.Field.Name)
	}
	return re.MatchString(s) != node.Negate, nil
}

func evalContains(node listq.Contains, row listq.Row) (bool, error) {
	v, _ := listq.RowValue(row, node.Field)
	if v == nil {
		return false, nil
	}
	elements, ok := sliceValue(v)
	if !ok {
		return false, fmt.Errorf("memadapter: field %q is not an array", node.Field.Name)
	}
	contained := false
	for _, el := range elements {
		if el == nil {
			continue
		}
		c, err := listq.CompareValues(el, node.Value)
		if err != nil {
			return false, errors.Wrapf(err, "field %q", node.Field.Name)
		}
		if c == 0 {
			contained = true
			break
		}
	}
	return contained != node.Negate, nil
}

func evalEmpty(node listq.Empty, row listq.Row) (bool, error) {
	v, _ := listq.RowValue(row, node.Field)
	empty := true
	if v != nil {
		switch tv := v.(type) {
		case []any:
			empty = len(tv) == 0
		case []string:
			empty = len(tv) == 0
		case []int:
			empty = len(tv) == 0
		case []int64:
			empty = len(tv) == 0
		case []float64:
			empty = len(tv) == 0
		case map[string]any:
			empty = len(tv) == 0
		default:
			empty = false
		}
	}
	return empty != node.Negate, nil
}

// likeRegexp translates a LIKE pattern into an anchored regular
// expression. Backslash escapes the next character; % and _ become .*
// and . with newline-spanning enabled, matching SQL behavior.
func likeRegexp(pattern string, insensitive bool) (*regexp.Regexp, error) {
	var b strings.Builder
	if insensitive {
		b.WriteString("(?is)")
	} else {
		b.WriteString("(?s)")
	}
	b.WriteByte('^')
	escaped := false
	for _, r := range pattern {
		if escaped {
			b.WriteString(regexp.QuoteMeta(string(r)))
			escaped = false
			continue
		}
		switch r {
		case '\\':
			escaped = true
		case '%':
			b.WriteString(".*")
		case '_':
			b.WriteByte('.')
		default:
			b.WriteString(regexp.QuoteMeta(string(r)))
		}
	}
	if escaped {
		b.WriteString(regexp.QuoteMeta(`\`))
	}
	b.WriteByte('$')
	return regexp.Compile(b.String())
}

func stringValue(v any) (string, bool) {
	switch tv := v.(type) {
	case string:
		return tv, true
	case []byte:
		return string(tv), true
	default:
		return "", false
	}
}

func sliceValue(v any) ([]any, bool) {
	switch tv := v.(type) {
	case []any:
		return tv, true
	case []string:
		out := make([]any, len(tv))
		for i, s := range tv {
			out[i] = s
		}
		return out, true
	case []int:
		out := make([]any, len(tv))
		for i, n := range tv {
			out[i] = n
		}
		return out, true
	case []int64:
		out := make([]any, len(tv))
		for i, n := range tv {
			out[i] = n
		}
		return out, true
	case []float64:
		out := make([]any, len(tv))
		for i, n := range tv {
			out[i] = n
		}
		return out, true
	default:
		return nil, false
	}
}
