package query

import (
	"sort"
	"time"

	"github.com/rs/zerolog"

	"github.com/openmon/livequery/internal/state"
)

// RowSink receives one rendered row and reports whether iteration should
// continue. Returning false terminates the scan immediately.
type RowSink func(values []Value) bool

// Query drives one table scan: it holds the requested columns and the
// filter tree, applies the filter and the row limit, renders accepted rows
// into the sink, and answers pushdown questions for specialized tables.
// A Query is built once per request and used for exactly one scan.
type Query struct {
	table   Table
	columns []Column
	filter  *Filter
	limit   int // < 0 means unlimited
	tz      time.Duration
	user    state.User
	sink    RowSink
	log     zerolog.Logger

	allColumns  map[string]struct{}
	currentLine int
}

// Options configures a Query.
type Options struct {
	// Columns to render, in output order. Empty means all table columns.
	Columns []Column
	Filter  *Filter
	Limit   int // < 0: unlimited
	// TimezoneOffset is added to rendered times and subtracted from
	// client-supplied time references for pushdown bounds.
	TimezoneOffset time.Duration
	User           state.User
	Logger         zerolog.Logger
}

// New builds a query against a table. The sink receives each accepted row's
// rendered column values.
func New(table Table, opts Options, sink RowSink) *Query {
	columns := opts.Columns
	if len(columns) == 0 {
		columns = table.Columns()
	}
	user := opts.User
	if user == nil {
		user = state.AllowAllUser{}
	}
	q := &Query{
		table:      table,
		columns:    columns,
		filter:     opts.Filter,
		limit:      opts.Limit,
		tz:         opts.TimezoneOffset,
		user:       user,
		sink:       sink,
		log:        opts.Logger,
		allColumns: make(map[string]struct{}),
	}
	for _, c := range columns {
		q.allColumns[c.Name()] = struct{}{}
	}
	q.filter.ColumnNames(q.allColumns)
	return q
}

// Columns returns the requested columns in output order.
func (q *Query) Columns() []Column { return q.columns }

// ColumnNames returns the requested column names in output order.
func (q *Query) ColumnNames() []string {
	names := make([]string, 0, len(q.columns))
	for _, c := range q.columns {
		names = append(names, c.Name())
	}
	return names
}

// AllColumnNames returns every column the query touches (requested or
// filtered on), sorted for deterministic protocol output.
func (q *Query) AllColumnNames() []string {
	names := make([]string, 0, len(q.allColumns))
	for n := range q.allColumns {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// User returns the acting user for this query.
func (q *Query) User() state.User { return q.user }

// TimezoneOffset returns the client timezone offset.
func (q *Query) TimezoneOffset() time.Duration { return q.tz }

// RowsRendered returns how many rows have passed the filter so far.
func (q *Query) RowsRendered() int { return q.currentLine }

// ProcessDataset evaluates one row: filter, limit, render. It returns false
// when the scan should stop. Authorization has already happened in the
// table at this point.
func (q *Query) ProcessDataset(row Row) bool {
	if !q.filter.Accepts(row, q.user, q.tz) {
		return true
	}
	if q.limit >= 0 && q.currentLine >= q.limit {
		return false
	}
	q.currentLine++
	values := make([]Value, 0, len(q.columns))
	for _, c := range q.columns {
		values = append(values, c.Value(row, q.user, q.tz))
	}
	return q.sink(values)
}

// GreatestLowerBoundFor returns the tightest lower bound the filter implies
// for a column, for pushdown into external sources.
func (q *Query) GreatestLowerBoundFor(column string) (int64, bool) {
	b, ok := q.filter.GreatestLowerBoundFor(column, q.tz)
	if ok {
		q.log.Debug().Str("table", q.table.Name()).Str("column", column).
			Int64("bound", b).Msg("greatest lower bound")
	}
	return b, ok
}

// LeastUpperBoundFor returns the tightest upper bound the filter implies
// for a column.
func (q *Query) LeastUpperBoundFor(column string) (int64, bool) {
	b, ok := q.filter.LeastUpperBoundFor(column, q.tz)
	if ok {
		q.log.Debug().Str("table", q.table.Name()).Str("column", column).
			Int64("bound", b).Msg("least upper bound")
	}
	return b, ok
}

// StringValueRestrictionFor returns the single value a string column is
// pinned to, if any.
func (q *Query) StringValueRestrictionFor(column string) (string, bool) {
	v, ok := q.filter.StringValueRestrictionFor(column)
	if ok {
		q.log.Debug().Str("table", q.table.Name()).Str("column", column).
			Str("value", v).Msg("string value restriction")
	}
	return v, ok
}

// PartialFilter extracts the forwardable subset of the filter: the
// conjuncts that mention only columns the predicate accepts.
func (q *Query) PartialFilter(pred func(columnName string) bool) *Filter {
	return q.filter.Partial(pred)
}
