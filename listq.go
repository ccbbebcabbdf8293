// Package listq validates untrusted list parameters (filters, ordering,
// pagination) against a declarative schema and compiles them into an
// executable query plan: a predicate tree, a resolved ordering, and
// pagination bounds. Running a plan against an Executor yields the page
// rows plus metadata (cursors, page numbers, has_next/has_previous).
//
// The package never talks to a database itself. An Executor adapter owns
// row access; the sqladapter and memadapter subpackages provide a
// Postgres-backed and an in-memory implementation. Compilation is pure:
// the same parameters against the same schema always produce the same
// plan.
//
// Three pagination strategies are supported and mutually exclusive per
// request: limit/offset, page/page_size, and cursor (first/after or
// last/before). Cursor pagination derives a keyset boundary predicate
// from the request ordering, so it needs at least one order field.
package listq

import (
	"context"

	"github.com/sirupsen/logrus"
)

// Row is a fetched record. Plain and alias fields sit at the top level
// under their logical names; join fields are nested under their binding
// key, following the field's access path.
type Row map[string]any

// Executor fetches rows for a compiled plan. Count receives the filter
// predicate only (never the cursor boundary); Fetch receives the full
// predicate, the effective fetch ordering, and resolved bounds. Limit is
// always the exact number of rows wanted, including any look-ahead row
// the pipeline requested.
type Executor interface {
	Count(ctx context.Context, where Expr) (int, error)
	Fetch(ctx context.Context, where Expr, order []OrderTerm, limit, offset int) ([]Row, error)
}

// Result is the outcome of Run: the page rows in natural order and the
// assembled metadata.
type Result struct {
	Rows []Row `json:"rows"`
	Meta *Meta `json:"meta"`
}

var logger logrus.FieldLogger = logrus.StandardLogger()

// SetLogger redirects the package's warning logs, for applications that
// configure their own logrus instance. Passing nil keeps the current
// logger.
func SetLogger(l logrus.FieldLogger) {
	if l != nil {
		logger = l
	}
}
