package tables

import (
	"github.com/openmon/livequery/internal/query"
	"github.com/openmon/livequery/internal/state"
)

// columnMeta is one row of the self-describing columns table.
type columnMeta struct {
	Table       string
	Name        string
	Description string
	Type        string
}

// Columns serves one row per column of every registered table, so clients
// can discover the schema.
type Columns struct {
	*query.ColumnSet
	tables []query.Table
}

func NewColumns() *Columns {
	t := &Columns{ColumnSet: query.NewColumnSet()}
	offsets := query.ColumnOffsets{}
	t.AddColumn(query.NewStringColumn[columnMeta]("table",
		"The name of the table", offsets,
		func(m *columnMeta) string { return m.Table }))
	t.AddColumn(query.NewStringColumn[columnMeta]("name",
		"The name of the column within the table", offsets,
		func(m *columnMeta) string { return m.Name }))
	t.AddColumn(query.NewStringColumn[columnMeta]("description",
		"A description of the column", offsets,
		func(m *columnMeta) string { return m.Description }))
	t.AddColumn(query.NewStringColumn[columnMeta]("type",
		"The data type of the column (int, float, string, list, time)", offsets,
		func(m *columnMeta) string { return m.Type }))
	return t
}

// AddTable includes a table's columns in the rows served.
func (t *Columns) AddTable(table query.Table) {
	t.tables = append(t.tables, table)
}

func (t *Columns) Name() string       { return "columns" }
func (t *Columns) NamePrefix() string { return "column_" }

func (t *Columns) AnswerQuery(q *query.Query, user state.User) error {
	for _, table := range t.tables {
		for _, c := range table.Columns() {
			m := columnMeta{
				Table:       table.Name(),
				Name:        c.Name(),
				Description: c.Description(),
				Type:        c.Kind().String(),
			}
			if !q.ProcessDataset(query.NewRow(&m)) {
				return nil
			}
		}
	}
	return nil
}

func (t *Columns) Get(string) query.Row { return query.NewRow(nil) }
