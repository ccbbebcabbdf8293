package listq

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// CursorEntry pins one ordering field to the value it had on the
// boundary row.
type CursorEntry struct {
	Field string
	Value any
}

// Cursor is an ordered snapshot of the ordering fields of a boundary
// row. Order matters: it mirrors the request ordering, and the default
// codec preserves it on the wire.
type Cursor []CursorEntry

// Get returns the value recorded for a field.
func (c Cursor) Get(field string) (any, bool) {
	for _, e := range c {
		if e.Field == field {
			return e.Value, true
		}
	}
	return nil, false
}

// Codec turns cursors into opaque page tokens and back. Implementations
// must round-trip: Decode(Encode(c)) yields c with equivalent values.
// Applications needing tamper-proof tokens can wrap the default codec
// with a signature.
type Codec interface {
	Encode(c Cursor) (string, error)
	Decode(s string) (Cursor, error)
}

// StdCodec is the default wire format: the cursor as a JSON object,
// keys in cursor order, base64url-encoded without padding. Values
// marshal through encoding/json, so times travel as RFC 3339 strings
// and decimals as quoted strings; decoding coerces them back by the
// field's storage type.
type StdCodec struct{}

// Encode implements Codec.
func (StdCodec) Encode(c Cursor) (string, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, e := range c {
		if i > 0 {
			buf.WriteByte(',')
		}
		k, err := json.Marshal(e.Field)
		if err != nil {
			return "", errors.Wrap(err, "encode cursor field")
		}
		buf.Write(k)
		buf.WriteByte(':')
		v, err := json.Marshal(e.Value)
		if err != nil {
			return "", errors.Wrapf(err, "encode cursor value for %q", e.Field)
		}
		buf.Write(v)
	}
	buf.WriteByte('}')
	return base64.RawURLEncoding.EncodeToString(buf.Bytes()), nil
}

// Decode implements Codec. Cursor values must be JSON scalars; numbers
// come back as json.Number so integer precision survives.
func (StdCodec) Decode(s string) (Cursor, error) {
	raw, err := base64.RawURLEncoding.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("not base64url: %s", err)
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()

	tok, err := dec.Token()
	if err != nil {
		return nil, fmt.Errorf("not a cursor object: %s", err)
	}
	if tok != json.Delim('{') {
		return nil, fmt.Errorf("not a cursor object")
	}

	var c Cursor
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return nil, fmt.Errorf("bad cursor key: %s", err)
		}
		key, ok := keyTok.(string)
		if !ok {
			return nil, fmt.Errorf("bad cursor key: %v", keyTok)
		}
		valTok, err := dec.Token()
		if err != nil {
			return nil, fmt.Errorf("bad cursor value for %q: %s", key, err)
		}
		if _, nested := valTok.(json.Delim); nested {
			return nil, fmt.Errorf("cursor value for %q is not a scalar", key)
		}
		c = append(c, CursorEntry{Field: key, Value: valTok})
	}
	if _, err := dec.Token(); err != nil {
		return nil, fmt.Errorf("bad cursor object: %s", err)
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, fmt.Errorf("trailing data after cursor object")
	}
	return c, nil
}

// EncodeCursor serializes a cursor through the schema's codec.
func (s *Schema) EncodeCursor(c Cursor) (string, error) {
	return s.codec.Encode(c)
}

// DecodeCursor decodes a page token through the schema's codec and
// coerces its values to the storage types of the fields they name.
// Every named field must be sortable on the schema; a token that names
// anything else was not produced for this schema.
func (s *Schema) DecodeCursor(token string) (Cursor, error) {
	c, err := s.codec.Decode(token)
	if err != nil {
		return nil, err
	}
	return coerceCursor(s, c)
}

func coerceCursor(s *Schema, c Cursor) (Cursor, error) {
	out := make(Cursor, 0, len(c))
	for _, e := range c {
		fd, ok := s.sortable[e.Field]
		if !ok {
			return nil, fmt.Errorf("field %q is not sortable", e.Field)
		}
		if fd.Kind == KindAlias || fd.Kind == KindComposite {
			out = append(out, e)
			continue
		}
		cv, err := coerceScalar(fd, e.Value)
		if err != nil {
			return nil, fmt.Errorf("field %q: %s", e.Field, err)
		}
		out = append(out, CursorEntry{Field: e.Field, Value: cv})
	}
	return out, nil
}

// BoundaryExpr derives the keyset predicate selecting the rows strictly
// after the cursor position, relative to the given fetch ordering. For
// an ascending term the base case is field > value; each preceding term
// wraps the remainder as (field >= value AND (field > value OR rest)).
// Descending terms mirror the comparisons. The comparisons are
// null-aware: rows on the far side of a term's nulls block satisfy the
// boundary outright, and a null pivot value anchors the walk inside the
// block instead of dropping the term. Fields absent from the cursor are
// skipped, as are composite terms (with a warning); an alias term is a
// misuse because its column value never appears in fetched rows.
func BoundaryExpr(order []OrderTerm, cur Cursor) (Expr, error) {
	return boundaryExpr(order, cur, false)
}

// boundaryExpr with inclusive set relaxes the innermost comparison to
// at-or-after, so the cursor row itself satisfies the predicate. The
// probe behind a cursor needs that: "is there a previous page" includes
// the row the cursor was taken from.
func boundaryExpr(order []OrderTerm, cur Cursor, inclusive bool) (Expr, error) {
	type bound struct {
		fd  *FieldDescriptor
		dir OrderDirection
		val any
	}

	kept := make([]bound, 0, len(order))
	for _, t := range order {
		switch t.Field.Kind {
		case KindAlias:
			return nil, misuseErr("cursor", "ordering by alias field %q cannot be cursor-paginated", t.Field.Name)
		case KindComposite:
			warnCompositeCursor(t.Field)
			continue
		case KindCustom:
			return nil, misuseErr("cursor", "ordering by custom field %q cannot be cursor-paginated", t.Field.Name)
		}
		v, ok := cur.Get(t.Field.Name)
		if !ok {
			continue
		}
		kept = append(kept, bound{fd: t.Field, dir: t.Direction, val: v})
	}
	if len(kept) == 0 {
		return True{}, nil
	}

	var expr Expr
	for i := len(kept) - 1; i >= 0; i-- {
		b := kept[i]
		after, atOrAfter := keyBounds(b.fd, b.dir, b.val)
		if i == len(kept)-1 {
			if inclusive {
				expr = atOrAfter
			} else {
				expr = after
			}
			continue
		}
		switch {
		case expr == nil:
			// No row follows the pivot on the inner keys, so only rows
			// strictly past this key remain.
			expr = after
		case after == nil:
			// A null pivot with nulls sorted last: every remaining row
			// ties on this key and falls through to the inner keys.
			expr = And{atOrAfter, expr}
		default:
			wrapped := Expr(Or{after, expr})
			if _, always := atOrAfter.(True); always {
				expr = wrapped
			} else {
				expr = And{atOrAfter, wrapped}
			}
		}
	}
	if expr == nil {
		return Not{Expr: True{}}, nil
	}
	return expr, nil
}

// keyBounds builds the single-key comparisons the boundary fold
// combines: after selects rows sorting strictly past the pivot on this
// key alone, atOrAfter additionally admits ties. Null rows sort as one
// block before or after every non-null value, per the term's null
// placement, so a nulls-last key reaches its null rows through an extra
// IS NULL arm and a null pivot value compares by block membership. A
// nil after means no row can sort past the pivot on this key.
func keyBounds(fd *FieldDescriptor, dir OrderDirection, val any) (after, atOrAfter Expr) {
	nullsFirst := dir.NullsFirst()
	if val == nil {
		if nullsFirst {
			return Null{Field: fd, Negate: true}, True{}
		}
		return nil, Null{Field: fd}
	}

	strictOp, orEqOp := CmpGreater, CmpGreaterOrEq
	if dir.Descending() {
		strictOp, orEqOp = CmpLess, CmpLessOrEq
	}
	after = Cmp{Field: fd, Op: strictOp, Value: val}
	atOrAfter = Cmp{Field: fd, Op: orEqOp, Value: val}
	if !nullsFirst {
		after = Or{after, Null{Field: fd}}
		atOrAfter = Or{atOrAfter, Null{Field: fd}}
	}
	return after, atOrAfter
}

// CursorFromRow snapshots the ordering fields of a boundary row into a
// cursor. Composite terms are skipped with a warning; alias and custom
// terms are a misuse, their values cannot be read back from rows.
func CursorFromRow(row Row, order []OrderTerm) (Cursor, error) {
	cur := make(Cursor, 0, len(order))
	for _, t := range order {
		switch t.Field.Kind {
		case KindAlias:
			return nil, misuseErr("cursor", "ordering by alias field %q cannot be cursor-paginated", t.Field.Name)
		case KindComposite:
			warnCompositeCursor(t.Field)
			continue
		case KindCustom:
			return nil, misuseErr("cursor", "ordering by custom field %q cannot be cursor-paginated", t.Field.Name)
		}
		v, _ := RowValue(row, t.Field)
		cur = append(cur, CursorEntry{Field: t.Field.Name, Value: v})
	}
	return cur, nil
}

func warnCompositeCursor(fd *FieldDescriptor) {
	logger.WithFields(logrus.Fields{
		"field": fd.Name,
	}).Warn("composite field skipped in cursor position")
}

// RowValue reads the value an ordering or cursor field has in a fetched
// row, following the access path of join fields. The second return is
// false when the row carries no entry for the field.
func RowValue(row Row, fd *FieldDescriptor) (any, bool) {
	switch fd.Kind {
	case KindPlain, KindAlias:
		v, ok := row[fd.Name]
		return v, ok
	case KindJoin:
		var cur any = row
		for i, seg := range fd.Path {
			m, ok := asMap(cur)
			if !ok {
				return nil, false
			}
			cur, ok = m[seg]
			if !ok {
				return nil, false
			}
			if i == len(fd.Path)-1 {
				return cur, true
			}
		}
		return nil, false
	default:
		return nil, false
	}
}

func asMap(v any) (map[string]any, bool) {
	switch m := v.(type) {
	case Row:
		return m, true
	case map[string]any:
		return m, true
	default:
		return nil, false
	}
}
