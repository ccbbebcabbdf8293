package listq

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// coerceScalar converts a single operand to the field's storage type.
// A nil operand stays nil.
func coerceScalar(fd *FieldDescriptor, v any) (any, error) {
	if v == nil {
		return nil, nil
	}
	switch fd.Type {
	case TypeInt:
		return toInt64(v)
	case TypeFloat:
		return toFloat64(v)
	case TypeDecimal:
		return toDecimal(v)
	case TypeString:
		return toString(v)
	case TypeBool:
		return toBool(v)
	case TypeDate, TypeDatetime:
		return toTime(v)
	case TypeEnum:
		s, err := toString(v)
		if err != nil {
			return nil, err
		}
		if !fd.allowsEnumValue(s) {
			return nil, fmt.Errorf("must be one of %s", strings.Join(fd.EnumValues, ", "))
		}
		return s, nil
	case TypeStringArray:
		return toString(v)
	case TypeIntArray:
		return toInt64(v)
	default:
		return nil, fmt.Errorf("type %q does not take scalar operands", fd.Type)
	}
}

// coerceList converts a membership operand element by element. Nil
// elements survive in place; the compiler turns them into the
// match-NULL branch.
func coerceList(fd *FieldDescriptor, v any) ([]any, error) {
	raw, ok := anySlice(v)
	if !ok {
		return nil, fmt.Errorf("must be a list")
	}
	out := make([]any, 0, len(raw))
	for i, el := range raw {
		if el == nil {
			out = append(out, nil)
			continue
		}
		cv, err := coerceScalar(fd, el)
		if err != nil {
			return nil, fmt.Errorf("element %d: %s", i, err)
		}
		out = append(out, cv)
	}
	return out, nil
}

// searchTerms splits a multi-term operand. A plain string splits on
// whitespace; a list is taken term by term, as given, empty strings
// included.
func searchTerms(v any) ([]string, error) {
	switch tv := v.(type) {
	case string:
		return strings.Fields(tv), nil
	default:
		raw, ok := anySlice(v)
		if !ok {
			return nil, fmt.Errorf("must be a string or a list of strings")
		}
		terms := make([]string, 0, len(raw))
		for i, el := range raw {
			s, err := toString(el)
			if err != nil {
				return nil, fmt.Errorf("term %d: %s", i, err)
			}
			terms = append(terms, s)
		}
		return terms, nil
	}
}

// patternOperand reads a single-term substring operand: one string, or
// a list of strings that must all match.
func patternOperand(v any) (any, error) {
	if s, ok := v.(string); ok {
		return s, nil
	}
	raw, ok := anySlice(v)
	if !ok {
		return nil, fmt.Errorf("must be a string or a list of strings")
	}
	terms := make([]string, 0, len(raw))
	for i, el := range raw {
		s, err := toString(el)
		if err != nil {
			return nil, fmt.Errorf("term %d: %s", i, err)
		}
		terms = append(terms, s)
	}
	return terms, nil
}

// presenceOperand reads the operand of a presence operator. Only
// boolean-like forms count; nil or anything else leaves the filter
// ignored.
func presenceOperand(v any) any {
	if v == nil {
		return nil
	}
	b, err := toBool(v)
	if err != nil {
		return nil
	}
	return b
}

func anySlice(v any) ([]any, bool) {
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

func toInt64(v any) (int64, error) {
	switch tv := v.(type) {
	case int:
		return int64(tv), nil
	case int8:
		return int64(tv), nil
	case int16:
		return int64(tv), nil
	case int32:
		return int64(tv), nil
	case int64:
		return tv, nil
	case uint:
		return int64(tv), nil
	case uint8:
		return int64(tv), nil
	case uint16:
		return int64(tv), nil
	case uint32:
		return int64(tv), nil
	case uint64:
		return int64(tv), nil
	case float64:
		if tv != float64(int64(tv)) {
			return 0, fmt.Errorf("not an integer: %v", tv)
		}
		return int64(tv), nil
	case json.Number:
		return tv.Int64()
	case string:
		n, err := strconv.ParseInt(tv, 10, 64)
		if err != nil {
			return 0, fmt.Errorf("not an integer: %q", tv)
		}
		return n, nil
	default:
		return 0, fmt.Errorf("not an integer: %v (%T)", v, v)
	}
}

func toFloat64(v any) (float64, error) {
	switch tv := v.(type) {
	case float32:
		return float64(tv), nil
	case float64:
		return tv, nil
	case int:
		return float64(tv), nil
	case int64:
		return float64(tv), nil
	case json.Number:
		return tv.Float64()
	case string:
		f, err := strconv.ParseFloat(tv, 64)
		if err != nil {
			return 0, fmt.Errorf("not a number: %q", tv)
		}
		return f, nil
	default:
		return 0, fmt.Errorf("not a number: %v (%T)", v, v)
	}
}

func toDecimal(v any) (decimal.Decimal, error) {
	switch tv := v.(type) {
	case decimal.Decimal:
		return tv, nil
	case string:
		d, err := decimal.NewFromString(tv)
		if err != nil {
			return decimal.Decimal{}, fmt.Errorf("not a decimal: %q", tv)
		}
		return d, nil
	case json.Number:
		d, err := decimal.NewFromString(tv.String())
		if err != nil {
			return decimal.Decimal{}, fmt.Errorf("not a decimal: %q", tv.String())
		}
		return d, nil
	case float64:
		return decimal.NewFromFloat(tv), nil
	case int:
		return decimal.NewFromInt(int64(tv)), nil
	case int64:
		return decimal.NewFromInt(tv), nil
	default:
		return decimal.Decimal{}, fmt.Errorf("not a decimal: %v (%T)", v, v)
	}
}

func toString(v any) (string, error) {
	switch tv := v.(type) {
	case string:
		return tv, nil
	case []byte:
		return string(tv), nil
	default:
		return "", fmt.Errorf("not a string: %v (%T)", v, v)
	}
}

func toBool(v any) (bool, error) {
	switch tv := v.(type) {
	case bool:
		return tv, nil
	case string:
		switch strings.ToLower(tv) {
		case "true":
			return true, nil
		case "false":
			return false, nil
		}
		return false, fmt.Errorf("not a boolean: %q", tv)
	default:
		return false, fmt.Errorf("not a boolean: %v (%T)", v, v)
	}
}

func toTime(v any) (time.Time, error) {
	switch tv := v.(type) {
	case time.Time:
		return tv, nil
	case string:
		return ParseDateTime(tv)
	default:
		return time.Time{}, fmt.Errorf("not a date: %v (%T)", v, v)
	}
}

// CompareValues orders two non-nil values of compatible types. It
// normalizes across the numeric kinds, so an int64 row value compares
// cleanly against a float64 operand. The result follows the usual
// -1/0/1 convention.
func CompareValues(a, b any) (int, error) {
	an := normalizeValue(a)
	bn := normalizeValue(b)

	if ad, ok := an.(decimal.Decimal); ok {
		bd, err := toDecimal(bn)
		if err != nil {
			return 0, err
		}
		return ad.Cmp(bd), nil
	}
	if bd, ok := bn.(decimal.Decimal); ok {
		ad, err := toDecimal(an)
		if err != nil {
			return 0, err
		}
		return ad.Cmp(bd), nil
	}

	switch av := an.(type) {
	case int64:
		switch bv := bn.(type) {
		case int64:
			return compareOrdered(av, bv), nil
		case float64:
			return compareOrdered(float64(av), bv), nil
		}
	case float64:
		switch bv := bn.(type) {
		case int64:
			return compareOrdered(av, float64(bv)), nil
		case float64:
			return compareOrdered(av, bv), nil
		}
	case string:
		if bv, ok := bn.(string); ok {
			return strings.Compare(av, bv), nil
		}
	case bool:
		if bv, ok := bn.(bool); ok {
			switch {
			case av == bv:
				return 0, nil
			case !av:
				return -1, nil
			default:
				return 1, nil
			}
		}
	case time.Time:
		if bv, ok := bn.(time.Time); ok {
			return av.Compare(bv), nil
		}
	}

	return 0, fmt.Errorf("cannot compare %T with %T", an, bn)
}

func compareOrdered[T int64 | float64](a, b T) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

func normalizeValue(v any) any {
	switch tv := v.(type) {
	case int:
		return int64(tv)
	case int8:
		return int64(tv)
	case int16:
		return int64(tv)
	case int32:
		return int64(tv)
	case uint:
		return int64(tv)
	case uint8:
		return int64(tv)
	case uint16:
		return int64(tv)
	case uint32:
		return int64(tv)
	case uint64:
		return int64(tv)
	case float32:
		return float64(tv)
	case []byte:
		return string(tv)
	case json.Number:
		if n, err := tv.Int64(); err == nil {
			return n
		}
		if f, err := tv.Float64(); err == nil {
			return f
		}
		return tv.String()
	default:
		return v
	}
}
