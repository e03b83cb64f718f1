package ec

import (
	"bufio"
	"errors"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openmon/livequery/internal/query"
	"github.com/openmon/livequery/internal/state"
)

// eventsTable is a minimal local stand-in for the remote events table.
type eventsTable struct {
	*query.ColumnSet
}

func newEventsTable(withAuthContext bool) *eventsTable {
	t := &eventsTable{ColumnSet: query.NewColumnSet()}
	offsets := query.ColumnOffsets{}
	t.AddColumn(MakeIntColumn("event_id", "", offsets))
	t.AddColumn(MakeStringColumn("event_text", "", offsets))
	t.AddColumn(MakeTimeColumn("history_time", "", offsets))
	t.AddColumn(MakeStringColumn("event_host", "", offsets))
	if withAuthContext {
		t.AddColumn(MakeStringColumn("event_contact_groups_precedence", "", offsets))
		t.AddColumn(MakeListColumn("event_contact_groups", "", offsets))
	}
	hostJoin := query.ColumnOffsets{}.Add(func(r query.Row) query.Row {
		if row := query.Target[Row](r); row != nil {
			return query.NewRow(row.Host())
		}
		return query.NewRow(nil)
	})
	t.AddColumn(query.NewStringColumn[state.Host]("host_name", "", hostJoin,
		func(h *state.Host) string { return h.Name }))
	return t
}

func (t *eventsTable) Name() string       { return "eventconsoleevents" }
func (t *eventsTable) NamePrefix() string { return "event_" }
func (t *eventsTable) AnswerQuery(*query.Query, state.User) error {
	return nil
}
func (t *eventsTable) Get(string) query.Row { return query.NewRow(nil) }

func buildQuery(t *testing.T, table query.Table, columns []string, filter *query.Filter, sink query.RowSink) *query.Query {
	t.Helper()
	var cols []query.Column
	for _, name := range columns {
		c, err := table.Column(name)
		require.NoError(t, err)
		cols = append(cols, c)
	}
	if sink == nil {
		sink = func([]query.Value) bool { return true }
	}
	return query.New(table, query.Options{
		Columns: cols,
		Filter:  filter,
		Limit:   -1,
		Logger:  zerolog.Nop(),
	}, sink)
}

func filterOn(t *testing.T, table query.Table, column string, op query.RelOp, operand string) *query.Filter {
	t.Helper()
	c, err := table.Column(column)
	require.NoError(t, err)
	f, err := query.NewComparison(c, op, operand)
	require.NoError(t, err)
	return f
}

func TestBuildRequestBasics(t *testing.T) {
	table := newEventsTable(true)
	bridge := &Bridge{Log: zerolog.Nop()}
	q := buildQuery(t, table, []string{"event_text", "host_name"}, nil, nil)

	request := bridge.BuildRequest(table, q)
	lines := strings.Split(strings.TrimRight(request, "\n"), "\n")

	assert.Equal(t, "GET events", lines[0], "local prefix is stripped from the remote table name")
	assert.Equal(t, "OutputFormat: plain", lines[1])
	assert.True(t, strings.HasPrefix(lines[2], "Columns:"))
	assert.Contains(t, lines[2], "event_text")
	assert.Contains(t, lines[2], "event_host", "host designation is always requested")
	assert.Contains(t, lines[2], "event_contact_groups_precedence")
	assert.NotContains(t, lines[2], "host_name", "joined host columns stay local")
	assert.True(t, strings.HasSuffix(request, "\n\n"), "request ends with a blank line")
}

func TestBuildRequestForwardsTimeRange(t *testing.T) {
	table := newEventsTable(false)
	bridge := &Bridge{Log: zerolog.Nop()}
	filter := query.And(
		filterOn(t, table, "history_time", query.OpGreaterOrEqual, "1000"),
		filterOn(t, table, "history_time", query.OpLessOrEqual, "2000"),
	)
	q := buildQuery(t, table, []string{"event_id"}, filter, nil)

	request := bridge.BuildRequest(table, q)
	assert.Contains(t, request, "Filter: history_time >= 1000\n")
	assert.Contains(t, request, "Filter: history_time <= 2000\n")
}

func TestBuildRequestForwardsGreppingFilters(t *testing.T) {
	table := newEventsTable(false)
	bridge := &Bridge{Log: zerolog.Nop()}

	// A single supported comparison is forwarded verbatim.
	q := buildQuery(t, table, []string{"event_id"},
		filterOn(t, table, "event_text", query.OpMatches, "db.*down"), nil)
	assert.Contains(t, bridge.BuildRequest(table, q), "Filter: event_text ~ db.*down\n")

	// An equality pin on an integer column becomes an equality filter.
	q = buildQuery(t, table, []string{"event_text"},
		filterOn(t, table, "event_id", query.OpEqual, "42"), nil)
	assert.Contains(t, bridge.BuildRequest(table, q), "Filter: event_id = 42\n")

	// Negated operators are not in the forwardable set.
	q = buildQuery(t, table, []string{"event_id"},
		filterOn(t, table, "event_text", query.OpDoesntMatch, "noise"), nil)
	assert.NotContains(t, bridge.BuildRequest(table, q), "Filter: event_text")
}

func TestReceiveReply(t *testing.T) {
	table := newEventsTable(false)
	bridge := &Bridge{Log: zerolog.Nop()}

	var rows [][]query.Value
	q := buildQuery(t, table, []string{"event_id", "event_text"}, nil,
		func(values []query.Value) bool {
			rows = append(rows, append([]query.Value(nil), values...))
			return true
		})

	reply := "event_id\tevent_text\tevent_host\n" +
		"1\tdisk full\tweb01\n" +
		"2\tshort record\n" + // missing fields are right-padded
		"\n"
	err := bridge.receiveReply(bufio.NewScanner(strings.NewReader(reply)), q, func(*Row) bool { return true })
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, int64(1), rows[0][0].Int)
	assert.Equal(t, "disk full", rows[0][1].Str)
	assert.Equal(t, "", rows[1][1].Str)
}

func TestReceiveReplyAuthorization(t *testing.T) {
	table := newEventsTable(false)
	bridge := &Bridge{Log: zerolog.Nop()}

	var rows [][]query.Value
	q := buildQuery(t, table, []string{"event_id"}, nil,
		func(values []query.Value) bool {
			rows = append(rows, append([]query.Value(nil), values...))
			return true
		})

	reply := "event_id\n1\n2\n3\n\n"
	denyEven := func(r *Row) bool { return r.GetInt("event_id")%2 == 1 }
	err := bridge.receiveReply(bufio.NewScanner(strings.NewReader(reply)), q, denyEven)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, int64(1), rows[0][0].Int)
	assert.Equal(t, int64(3), rows[1][0].Int)
}

func TestAuthorizerFor(t *testing.T) {
	core := state.NewCore()
	require.NoError(t, core.AddHost(&state.Host{Name: "web01", Contacts: []string{"alice"}}))
	alice := &state.ContactUser{Name: "alice", Core: core}

	withContext := newEventsTable(true)
	authorized := AuthorizerFor(withContext, alice)

	visible := NewRow(core, []string{"event_host", "event_contact_groups_precedence", "event_contact_groups"},
		[]string{"web01", "host", ""})
	hidden := NewRow(core, []string{"event_host", "event_contact_groups_precedence", "event_contact_groups"},
		[]string{"db01", "host", "db-admins"})
	assert.True(t, authorized(visible))
	assert.False(t, authorized(hidden))

	// Tables without the authorization context accept everything.
	withoutContext := newEventsTable(false)
	acceptAll := AuthorizerFor(withoutContext, alice)
	assert.True(t, acceptAll(hidden))
}

func TestSplitList(t *testing.T) {
	assert.Nil(t, SplitList(""))
	assert.Equal(t, []string{"a"}, SplitList("a"))
	assert.Equal(t, []string{"a", "b"}, SplitList("a\x01b"))
}

func TestGatewayErrorUnwrap(t *testing.T) {
	cause := errors.New("connection refused")
	err := &GatewayError{Err: cause}
	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "connection refused")
}
