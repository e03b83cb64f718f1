package query

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openmon/livequery/internal/state"
)

// fixtureTable iterates a fixed slice of fixture rows.
type fixtureTable struct {
	*ColumnSet
	rows []fixtureRow
}

func newFixtureTable(rows ...fixtureRow) *fixtureTable {
	t := &fixtureTable{ColumnSet: NewColumnSet(), rows: rows}
	t.AddColumn(nameCol)
	t.AddColumn(numCol)
	t.AddColumn(whenCol)
	t.AddColumn(tagsCol)
	return t
}

func (t *fixtureTable) Name() string       { return "fixtures" }
func (t *fixtureTable) NamePrefix() string { return "fixture_" }

func (t *fixtureTable) AnswerQuery(q *Query, _ state.User) error {
	for i := range t.rows {
		if !q.ProcessDataset(NewRow(&t.rows[i])) {
			return nil
		}
	}
	return nil
}

func (t *fixtureTable) Get(string) Row { return NewRow(nil) }

func runQuery(t *testing.T, table Table, opts Options) [][]Value {
	t.Helper()
	var rows [][]Value
	opts.Logger = zerolog.Nop()
	q := New(table, opts, func(values []Value) bool {
		rows = append(rows, append([]Value(nil), values...))
		return true
	})
	require.NoError(t, table.AnswerQuery(q, q.User()))
	return rows
}

func TestQueryAllRowsInTableOrder(t *testing.T) {
	table := newFixtureTable(
		fixtureRow{name: "a", num: 1},
		fixtureRow{name: "b", num: 2},
		fixtureRow{name: "c", num: 3},
	)
	rows := runQuery(t, table, Options{Limit: -1})
	require.Len(t, rows, 3)
	assert.Equal(t, "a", rows[0][0].Str)
	assert.Equal(t, "c", rows[2][0].Str)
	assert.Len(t, rows[0], 4, "all table columns when none requested")
}

func TestQueryFilterAndProjection(t *testing.T) {
	table := newFixtureTable(
		fixtureRow{name: "a", num: 1},
		fixtureRow{name: "b", num: 2},
		fixtureRow{name: "c", num: 3},
	)
	filter, err := NewComparison(numCol, OpGreaterOrEqual, "2")
	require.NoError(t, err)

	rows := runQuery(t, table, Options{
		Columns: []Column{nameCol},
		Filter:  filter,
		Limit:   -1,
	})
	require.Len(t, rows, 2)
	assert.Equal(t, "b", rows[0][0].Str)
	require.Len(t, rows[0], 1, "only requested columns are rendered")
}

func TestQueryLimitStopsScan(t *testing.T) {
	table := newFixtureTable(
		fixtureRow{name: "a"}, fixtureRow{name: "b"},
		fixtureRow{name: "c"}, fixtureRow{name: "d"},
	)
	rows := runQuery(t, table, Options{Limit: 2})
	assert.Len(t, rows, 2)

	rows = runQuery(t, table, Options{Limit: 0})
	assert.Empty(t, rows)

	rows = runQuery(t, table, Options{Limit: -1})
	assert.Len(t, rows, 4, "negative limit means unlimited")
}

func TestQuerySinkTermination(t *testing.T) {
	table := newFixtureTable(
		fixtureRow{name: "a"}, fixtureRow{name: "b"}, fixtureRow{name: "c"},
	)
	seen := 0
	q := New(table, Options{Limit: -1, Logger: zerolog.Nop()}, func([]Value) bool {
		seen++
		return seen < 2
	})
	require.NoError(t, table.AnswerQuery(q, q.User()))
	assert.Equal(t, 2, seen, "scan stops when the sink declines more rows")
}

func TestQueryAllColumnNamesIncludesFilterColumns(t *testing.T) {
	table := newFixtureTable()
	filter, err := NewComparison(numCol, OpEqual, "1")
	require.NoError(t, err)
	q := New(table, Options{
		Columns: []Column{nameCol},
		Filter:  filter,
		Limit:   -1,
		Logger:  zerolog.Nop(),
	}, func([]Value) bool { return true })

	assert.Equal(t, []string{"name", "num"}, q.AllColumnNames())
	assert.Equal(t, []string{"name"}, q.ColumnNames())
}

func TestQueryPushdownDelegation(t *testing.T) {
	table := newFixtureTable()
	filter := And(
		mustCmp(t, numCol, OpGreaterOrEqual, "5"),
		mustCmp(t, numCol, OpLessOrEqual, "9"),
		mustCmp(t, nameCol, OpEqual, "web01"),
	)
	q := New(table, Options{Filter: filter, Limit: -1, Logger: zerolog.Nop()},
		func([]Value) bool { return true })

	glb, ok := q.GreatestLowerBoundFor("num")
	require.True(t, ok)
	assert.Equal(t, int64(5), glb)
	lub, ok := q.LeastUpperBoundFor("num")
	require.True(t, ok)
	assert.Equal(t, int64(9), lub)
	v, ok := q.StringValueRestrictionFor("name")
	require.True(t, ok)
	assert.Equal(t, "web01", v)

	partial := q.PartialFilter(func(c string) bool { return c == "name" })
	require.NotNil(t, partial)
	assert.Len(t, partial.Conjuncts(), 1)
}

func TestColumnSetDynamicResolution(t *testing.T) {
	cs := NewColumnSet()
	cs.AddColumn(nameCol)
	cs.AddDynamicColumn(fixtureDynamic{})

	c, err := cs.Column("name")
	require.NoError(t, err)
	assert.Equal(t, "name", c.Name())

	c, err = cs.Column("samples:1:2")
	require.NoError(t, err)
	assert.Equal(t, "samples:1:2", c.Name())

	_, err = cs.Column("nosuch")
	assert.Error(t, err)
}

type fixtureDynamic struct{}

func (fixtureDynamic) Name() string { return "samples" }

func (fixtureDynamic) CreateColumn(fullName, arguments string) (Column, error) {
	return NewStringColumn[fixtureRow](fullName, "args "+arguments, ColumnOffsets{},
		func(*fixtureRow) string { return arguments }), nil
}
