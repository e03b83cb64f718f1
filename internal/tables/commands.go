package tables

import (
	"github.com/openmon/livequery/internal/query"
	"github.com/openmon/livequery/internal/state"
)

// Commands serves one row per configured command definition.
type Commands struct {
	*query.ColumnSet
	core *state.Core
}

func NewCommands(core *state.Core) *Commands {
	t := &Commands{ColumnSet: query.NewColumnSet(), core: core}
	offsets := query.ColumnOffsets{}
	t.AddColumn(query.NewStringColumn[state.Command]("name",
		"The name of the command", offsets,
		func(c *state.Command) string { return c.Name }))
	t.AddColumn(query.NewStringColumn[state.Command]("line",
		"The shell command line", offsets,
		func(c *state.Command) string { return c.Line }))
	return t
}

func (t *Commands) Name() string       { return "commands" }
func (t *Commands) NamePrefix() string { return "command_" }

func (t *Commands) AnswerQuery(q *query.Query, user state.User) error {
	for _, c := range t.core.Commands() {
		if !q.ProcessDataset(query.NewRow(c)) {
			return nil
		}
	}
	return nil
}

func (t *Commands) Get(string) query.Row { return query.NewRow(nil) }
