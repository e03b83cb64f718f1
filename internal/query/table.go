package query

import (
	"fmt"
	"strings"

	"github.com/openmon/livequery/internal/state"
)

// Table is a named, ordered set of columns plus an iteration strategy over
// its row source. AnswerQuery iterates rows in a stable order, skips rows
// the user may not see, and hands accepted rows to the query until it
// signals termination.
type Table interface {
	Name() string
	// NamePrefix is the prefix the table's columns carry when joined into
	// another table (e.g. "host_").
	NamePrefix() string
	Columns() []Column
	Column(name string) (Column, error)
	AnswerQuery(q *Query, user state.User) error
	// Get performs a keyed lookup by primary key. Tables without a primary
	// key return the null row.
	Get(primaryKey string) Row
}

// ColumnSet is the column registry tables embed: ordered columns by unique
// name, plus dynamic column factories resolved from "name:arguments"
// requests.
type ColumnSet struct {
	ordered []Column
	byName  map[string]Column
	dynamic map[string]DynamicColumn
}

// NewColumnSet returns an empty column registry.
func NewColumnSet() *ColumnSet {
	return &ColumnSet{
		byName:  make(map[string]Column),
		dynamic: make(map[string]DynamicColumn),
	}
}

// AddColumn registers a column. Duplicate names are a programming error.
func (cs *ColumnSet) AddColumn(c Column) {
	if _, dup := cs.byName[c.Name()]; dup {
		panic(fmt.Sprintf("duplicate column %q", c.Name()))
	}
	cs.ordered = append(cs.ordered, c)
	cs.byName[c.Name()] = c
}

// AddDynamicColumn registers a dynamic column factory.
func (cs *ColumnSet) AddDynamicColumn(d DynamicColumn) {
	cs.dynamic[d.Name()] = d
}

// Columns returns all static columns in registration order.
func (cs *ColumnSet) Columns() []Column { return cs.ordered }

// Column resolves a column by name. A name of the form "dyn:args" resolves
// through the dynamic column factory registered under "dyn".
func (cs *ColumnSet) Column(name string) (Column, error) {
	if c, ok := cs.byName[name]; ok {
		return c, nil
	}
	if head, args, found := strings.Cut(name, ":"); found {
		if d, ok := cs.dynamic[head]; ok {
			return d.CreateColumn(name, args)
		}
	}
	return nil, fmt.Errorf("table has no column %q", name)
}

// HasColumn reports whether a static column with that name exists.
func (cs *ColumnSet) HasColumn(name string) bool {
	_, ok := cs.byName[name]
	return ok
}
