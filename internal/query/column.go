package query

import (
	"time"

	"github.com/openmon/livequery/internal/state"
)

// ColumnOffsets shifts a row to an embedded sub-object before extraction,
// so one column set can be reused under a prefix for a joined table (e.g.
// the host_ columns of a service or event row).
type ColumnOffsets struct {
	shifters []func(Row) Row
}

// Add returns a new offset chain with one more shift appended. The receiver
// is not modified.
func (o ColumnOffsets) Add(shift func(Row) Row) ColumnOffsets {
	shifters := make([]func(Row) Row, 0, len(o.shifters)+1)
	shifters = append(shifters, o.shifters...)
	shifters = append(shifters, shift)
	return ColumnOffsets{shifters: shifters}
}

func (o ColumnOffsets) shift(row Row) Row {
	for _, s := range o.shifters {
		if row.IsNull() {
			return row
		}
		row = s(row)
	}
	return row
}

// Column is a typed accessor: given a row of the table's concrete type it
// extracts one value. Extraction must be pure; repeated calls on the same
// row yield the same value.
type Column interface {
	Name() string
	Description() string
	Kind() Kind
	// Value extracts the cell. user is consulted by aggregate columns that
	// fold authorized sub-rows; tz is added to rendered time values.
	Value(row Row, user state.User, tz time.Duration) Value
}

// DynamicColumn creates concrete columns on demand from a request-supplied
// argument string (requested as "name:arguments" in a column list).
type DynamicColumn interface {
	Name() string
	CreateColumn(fullName, arguments string) (Column, error)
}

type columnMeta struct {
	name        string
	description string
	offsets     ColumnOffsets
}

func (m columnMeta) Name() string        { return m.name }
func (m columnMeta) Description() string { return m.description }

type stringColumn[T any] struct {
	columnMeta
	get func(*T) string
}

func (c stringColumn[T]) Kind() Kind { return KindString }

func (c stringColumn[T]) Value(row Row, _ state.User, _ time.Duration) Value {
	if obj := Target[T](c.offsets.shift(row)); obj != nil {
		return StringValue(c.get(obj))
	}
	return StringValue("")
}

// NewStringColumn builds a string column bound to the row type T.
func NewStringColumn[T any](name, description string, offsets ColumnOffsets, get func(*T) string) Column {
	return stringColumn[T]{columnMeta{name, description, offsets}, get}
}

type intColumn[T any] struct {
	columnMeta
	get func(*T, state.User) int64
}

func (c intColumn[T]) Kind() Kind { return KindInt }

func (c intColumn[T]) Value(row Row, user state.User, _ time.Duration) Value {
	if obj := Target[T](c.offsets.shift(row)); obj != nil {
		return IntValue(c.get(obj, user))
	}
	return IntValue(0)
}

// NewIntColumn builds an int column bound to the row type T.
func NewIntColumn[T any](name, description string, offsets ColumnOffsets, get func(*T) int64) Column {
	return intColumn[T]{columnMeta{name, description, offsets},
		func(obj *T, _ state.User) int64 { return get(obj) }}
}

// NewIntColumnWithUser builds an int column whose getter sees the acting
// user, for aggregates over authorized sub-rows.
func NewIntColumnWithUser[T any](name, description string, offsets ColumnOffsets, get func(*T, state.User) int64) Column {
	return intColumn[T]{columnMeta{name, description, offsets}, get}
}

type doubleColumn[T any] struct {
	columnMeta
	get func(*T) float64
}

func (c doubleColumn[T]) Kind() Kind { return KindDouble }

func (c doubleColumn[T]) Value(row Row, _ state.User, _ time.Duration) Value {
	if obj := Target[T](c.offsets.shift(row)); obj != nil {
		return DoubleValue(c.get(obj))
	}
	return DoubleValue(0)
}

// NewDoubleColumn builds a double column bound to the row type T.
func NewDoubleColumn[T any](name, description string, offsets ColumnOffsets, get func(*T) float64) Column {
	return doubleColumn[T]{columnMeta{name, description, offsets}, get}
}

type timeColumn[T any] struct {
	columnMeta
	get func(*T) time.Time
}

func (c timeColumn[T]) Kind() Kind { return KindTime }

func (c timeColumn[T]) Value(row Row, _ state.User, tz time.Duration) Value {
	if obj := Target[T](c.offsets.shift(row)); obj != nil {
		t := c.get(obj)
		if t.IsZero() {
			return TimeValue(t)
		}
		return TimeValue(t.Add(tz))
	}
	return TimeValue(time.Time{})
}

// NewTimeColumn builds a time column bound to the row type T.
func NewTimeColumn[T any](name, description string, offsets ColumnOffsets, get func(*T) time.Time) Column {
	return timeColumn[T]{columnMeta{name, description, offsets}, get}
}

type listColumn[T any] struct {
	columnMeta
	get func(*T, state.User, time.Duration) []Value
}

func (c listColumn[T]) Kind() Kind { return KindList }

func (c listColumn[T]) Value(row Row, user state.User, tz time.Duration) Value {
	if obj := Target[T](c.offsets.shift(row)); obj != nil {
		return ListValue(c.get(obj, user, tz))
	}
	return ListValue(nil)
}

// NewStringListColumn builds a list-of-strings column bound to the row type T.
func NewStringListColumn[T any](name, description string, offsets ColumnOffsets, get func(*T) []string) Column {
	return listColumn[T]{columnMeta{name, description, offsets},
		func(obj *T, _ state.User, _ time.Duration) []Value {
			return StringListValue(get(obj)).List
		}}
}

// NewListColumn builds a list column with full access to user and timezone
// offset, for member lists and time-series data.
func NewListColumn[T any](name, description string, offsets ColumnOffsets, get func(*T, state.User, time.Duration) []Value) Column {
	return listColumn[T]{columnMeta{name, description, offsets}, get}
}
