// Package sqladapter executes compiled queries against PostgreSQL.
//
// It maps a schema onto one base table plus any number of LEFT JOINed
// associations, renders predicate trees through squirrel with $n
// placeholders, and scans result rows into listq.Row values with join
// fields nested under their binding name.
package sqladapter

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"strings"

	sq "github.com/Masterminds/squirrel"
	"github.com/lib/pq"
	"github.com/pkg/errors"

	"github.com/listq/listq"
)

// Join describes one association of the base table.
type Join struct {
	// Table is the joined relation.
	Table string
	// Alias is the SQL alias the join's columns are addressed by.
	Alias string
	// On is the join condition, written against the configured aliases.
	On string
	// Distinct marks a to-many association: Count then deduplicates by
	// the base table's primary key, and Fetch selects DISTINCT rows.
	Distinct bool
}

// Config binds a schema to concrete tables.
type Config struct {
	// Table is the base relation.
	Table string
	// Alias is the base relation's SQL alias. Defaults to "main".
	Alias string
	// Primary is the base table's primary key column, used when a
	// Distinct join forces deduplicated counting. Defaults to "id".
	Primary string
	// Joins supplies one Join per binding named by the schema's join
	// fields.
	Joins map[string]Join
	// Aliases supplies the select expression for each alias field.
	Aliases map[string]string
}

// Executor runs compiled queries over database/sql.
type Executor struct {
	Conn *sql.DB

	schema  *listq.Schema
	table   string
	alias   string
	primary string
	joins   map[string]Join

	// Parallel select list and scan keys, fixed at construction.
	selects []string
	names   []string
}

// New builds an Executor for one schema. Every join field's binding
// must have a Join entry and every alias field an expression, or
// construction fails with a ConfigError.
func New(conn *sql.DB, schema *listq.Schema, cfg Config) (*Executor, error) {
	if cfg.Table == "" {
		return nil, &listq.ConfigError{Schema: schema.Name(), Reason: "sql adapter needs a base table"}
	}
	e := &Executor{
		Conn:    conn,
		schema:  schema,
		table:   cfg.Table,
		alias:   cfg.Alias,
		primary: cfg.Primary,
		joins:   cfg.Joins,
	}
	if e.alias == "" {
		e.alias = "main"
	}
	if e.primary == "" {
		e.primary = "id"
	}

	for _, fd := range schema.FieldsOfKind(listq.KindPlain) {
		e.selects = append(e.selects, fmt.Sprintf("%s.%s AS %s", e.alias, fd.Column, pq.QuoteIdentifier(fd.Name)))
		e.names = append(e.names, fd.Name)
	}
	for _, fd := range schema.FieldsOfKind(listq.KindJoin) {
		j, ok := cfg.Joins[fd.Binding]
		if !ok {
			return nil, &listq.ConfigError{
				Schema: schema.Name(), Field: fd.Name,
				Reason: fmt.Sprintf("no join configured for binding %q", fd.Binding),
			}
		}
		key := strings.Join(fd.Path, "__")
		e.selects = append(e.selects, fmt.Sprintf("%s.%s AS %s", j.Alias, fd.RemoteField, pq.QuoteIdentifier(key)))
		e.names = append(e.names, key)
	}
	for _, fd := range schema.FieldsOfKind(listq.KindAlias) {
		expr, ok := cfg.Aliases[fd.Name]
		if !ok {
			return nil, &listq.ConfigError{
				Schema: schema.Name(), Field: fd.Name,
				Reason: "no select expression configured for alias field",
			}
		}
		e.selects = append(e.selects, fmt.Sprintf("%s AS %s", expr, pq.QuoteIdentifier(fd.Name)))
		e.names = append(e.names, fd.Name)
	}
	return e, nil
}

// Count returns the number of base rows matching the predicate.
func (e *Executor) Count(ctx context.Context, where listq.Expr) (int, error) {
	bindings, includeAll := referencedBindings(where)

	column := "COUNT(*)"
	sb := sq.Select().From(fmt.Sprintf("%s AS %s", e.table, e.alias)).
		PlaceholderFormat(sq.Dollar)
	for _, j := range e.sortedJoins() {
		if !includeAll && !bindings[j.binding] {
			continue
		}
		sb = sb.LeftJoin(fmt.Sprintf("%s AS %s ON %s", j.Table, j.Alias, j.On))
		if j.Distinct {
			column = fmt.Sprintf("COUNT(DISTINCT %s.%s)", e.alias, e.primary)
		}
	}
	sb = sb.Column(column)

	if pred, ok, err := e.render(where); err != nil {
		return 0, err
	} else if ok {
		sb = sb.Where(pred)
	}

	query, args, err := sb.ToSql()
	if err != nil {
		return 0, errors.Wrap(err, "build count query")
	}
	var total int
	if err := e.Conn.QueryRowContext(ctx, query, args...).Scan(&total); err != nil {
		return 0, wrapQueryErr(err, "count rows")
	}
	return total, nil
}

// Fetch returns matching rows in the requested order. A negative limit
// fetches without bound.
func (e *Executor) Fetch(ctx context.Context, where listq.Expr, order []listq.OrderTerm, limit, offset int) ([]listq.Row, error) {
	sb := sq.Select(e.selects...).From(fmt.Sprintf("%s AS %s", e.table, e.alias)).
		PlaceholderFormat(sq.Dollar)
	for _, j := range e.sortedJoins() {
		sb = sb.LeftJoin(fmt.Sprintf("%s AS %s ON %s", j.Table, j.Alias, j.On))
		if j.Distinct {
			sb = sb.Distinct()
		}
	}

	if pred, ok, err := e.render(where); err != nil {
		return nil, err
	} else if ok {
		sb = sb.Where(pred)
	}
	clauses, err := e.orderClauses(order)
	if err != nil {
		return nil, err
	}
	if len(clauses) > 0 {
		sb = sb.OrderBy(clauses...)
	}
	if limit >= 0 {
		sb = sb.Limit(uint64(limit))
	}
	if offset > 0 {
		sb = sb.Offset(uint64(offset))
	}

	query, args, err := sb.ToSql()
	if err != nil {
		return nil, errors.Wrap(err, "build list query")
	}
	rows, err := e.Conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, wrapQueryErr(err, "list rows")
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, errors.Wrap(err, "read columns")
	}
	if len(cols) != len(e.names) {
		return nil, errors.Errorf("expected %d columns, query returned %d", len(e.names), len(cols))
	}

	var out []listq.Row
	for rows.Next() {
		values := make([]any, len(e.names))
		ptrs := make([]any, len(e.names))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, errors.Wrap(err, "scan row")
		}
		row := listq.Row{}
		for i, name := range e.names {
			setRowValue(row, name, normalizeSQLValue(values[i]))
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "iterate rows")
	}
	return out, nil
}

type boundJoin struct {
	binding string
	Join
}

// sortedJoins returns the configured joins in binding order so
// generated SQL is stable.
func (e *Executor) sortedJoins() []boundJoin {
	out := make([]boundJoin, 0, len(e.joins))
	for binding, j := range e.joins {
		out = append(out, boundJoin{binding: binding, Join: j})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].binding < out[j].binding })
	return out
}

// setRowValue nests "binding__field" scan keys under their binding.
func setRowValue(row listq.Row, key string, value any) {
	parts := strings.Split(key, "__")
	if len(parts) == 1 {
		row[key] = value
		return
	}
	node := map[string]any(row)
	for _, part := range parts[:len(parts)-1] {
		child, ok := node[part].(map[string]any)
		if !ok {
			child = map[string]any{}
			node[part] = child
		}
		node = child
	}
	node[parts[len(parts)-1]] = value
}

func normalizeSQLValue(v any) any {
	if b, ok := v.([]byte); ok {
		return string(b)
	}
	return v
}

func wrapQueryErr(err error, op string) error {
	if pqErr, ok := err.(*pq.Error); ok {
		switch pqErr.Code.Name() {
		case "undefined_column", "undefined_table":
			return errors.Wrapf(err, "%s: table binding does not match the schema", op)
		}
	}
	return errors.Wrap(err, op)
}
