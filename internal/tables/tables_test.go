package tables

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openmon/livequery/internal/query"
	"github.com/openmon/livequery/internal/state"
)

func fixtureCore(t *testing.T) *state.Core {
	t.Helper()
	core := state.NewCore()
	web := &state.Host{
		Name: "web01", Alias: "frontend", Address: "10.0.0.5",
		State: state.HostUp, HasBeenChecked: true,
		Contacts: []string{"alice"}, Groups: []string{"prod"},
		Services: []*state.Service{
			{Description: "HTTP", State: state.ServiceOK,
				HardState: state.ServiceOK, HasBeenChecked: true},
			{Description: "Disk", State: state.ServiceCritical,
				HardState: state.ServiceCritical, HasBeenChecked: true, Acknowledged: true},
			{Description: "Backup"}, // never checked
		},
	}
	db := &state.Host{
		Name: "db01", Address: "10.0.0.6",
		State: state.HostDown, HasBeenChecked: true,
		Contacts: []string{"carol"}, Groups: []string{"prod"},
		Services: []*state.Service{
			{Description: "SQL", State: state.ServiceWarning,
				HardState: state.ServiceWarning, HasBeenChecked: true},
		},
	}
	require.NoError(t, core.AddHost(web))
	require.NoError(t, core.AddHost(db))
	core.AddHostGroup(&state.HostGroup{
		Name: "prod", Alias: "Production", Hosts: []*state.Host{web, db},
	})
	core.AddServiceGroup(&state.ServiceGroup{
		Name:    "frontends",
		Members: []*state.Service{web.Services[0], db.Services[0]},
	})
	core.AddCommand(&state.Command{
		Name: "check-http", Line: "/usr/lib/monitoring/check_http -H $HOSTADDRESS$",
	})
	return core
}

// scanTable runs an unfiltered query and returns the rendered rows.
func scanTable(t *testing.T, table query.Table, user state.User, columnNames ...string) [][]string {
	t.Helper()
	if user == nil {
		user = state.AllowAllUser{}
	}
	var columns []query.Column
	for _, name := range columnNames {
		c, err := table.Column(name)
		require.NoError(t, err)
		columns = append(columns, c)
	}
	var rows [][]string
	q := query.New(table, query.Options{
		Columns: columns,
		Limit:   -1,
		User:    user,
		Logger:  zerolog.Nop(),
	}, func(values []query.Value) bool {
		row := make([]string, 0, len(values))
		for _, v := range values {
			row = append(row, v.AsString())
		}
		rows = append(rows, row)
		return true
	})
	require.NoError(t, table.AnswerQuery(q, user))
	return rows
}

func cell(t *testing.T, table query.Table, name string, row query.Row, user state.User) query.Value {
	t.Helper()
	c, err := table.Column(name)
	require.NoError(t, err)
	if user == nil {
		user = state.AllowAllUser{}
	}
	return c.Value(row, user, 0)
}

func TestHostsTable(t *testing.T) {
	hosts := NewHosts(fixtureCore(t), nil)

	rows := scanTable(t, hosts, nil, "name", "state", "address")
	assert.Equal(t, [][]string{
		{"web01", "0", "10.0.0.5"},
		{"db01", "1", "10.0.0.6"},
	}, rows)
}

func TestHostsTableAuthorization(t *testing.T) {
	core := fixtureCore(t)
	hosts := NewHosts(core, nil)

	alice := &state.ContactUser{Name: "alice", Core: core}
	rows := scanTable(t, hosts, alice, "name")
	assert.Equal(t, [][]string{{"web01"}}, rows)

	assert.Empty(t, scanTable(t, hosts, state.DenyAllUser{}, "name"))
}

func TestHostsServiceAggregates(t *testing.T) {
	hosts := NewHosts(fixtureCore(t), nil)
	row := hosts.Get("web01")

	tests := []struct {
		column   string
		expected int64
	}{
		{"num_services", 3},
		{"num_services_pending", 1},
		{"num_services_ok", 1},
		{"num_services_crit", 1},
		{"num_services_handled_problems", 1}, // Disk is acknowledged
		{"num_services_unhandled_problems", 0},
		{"worst_service_state", int64(state.ServiceCritical)},
		{"num_services_hard_crit", 1},
		{"worst_service_hard_state", int64(state.ServiceCritical)},
	}
	for _, tt := range tests {
		t.Run(tt.column, func(t *testing.T) {
			assert.Equal(t, tt.expected, cell(t, hosts, tt.column, row, nil).Int)
		})
	}
}

func TestHostsServicesList(t *testing.T) {
	core := fixtureCore(t)
	hosts := NewHosts(core, nil)
	row := hosts.Get("web01")

	v := cell(t, hosts, "services", row, nil)
	require.Equal(t, query.KindList, v.Kind)
	assert.Equal(t, "HTTP,Disk,Backup", v.AsString())

	// A restricted user's aggregates only see authorized services.
	carol := &state.ContactUser{Name: "carol", Core: core}
	assert.Empty(t, cell(t, hosts, "services", row, carol).List)
	assert.Zero(t, cell(t, hosts, "num_services", row, carol).Int)
}

func TestHostsGet(t *testing.T) {
	hosts := NewHosts(fixtureCore(t), nil)

	row := hosts.Get("db01")
	assert.Equal(t, "db01", cell(t, hosts, "name", row, nil).Str)

	assert.True(t, hosts.Get("nosuch").IsNull())
}

func TestServicesTableJoinsHostColumns(t *testing.T) {
	services := NewServices(fixtureCore(t), nil)

	rows := scanTable(t, services, nil, "description", "state", "host_name", "host_state")
	assert.Equal(t, [][]string{
		{"HTTP", "0", "web01", "0"},
		{"Disk", "2", "web01", "0"},
		{"Backup", "0", "web01", "0"},
		{"SQL", "1", "db01", "1"},
	}, rows)
}

func TestServicesTableAuthorization(t *testing.T) {
	core := fixtureCore(t)
	services := NewServices(core, nil)

	// Loose authorization: a host contact sees all of the host's services.
	alice := &state.ContactUser{Name: "alice", Core: core, ServiceAuth: state.AuthLoose}
	rows := scanTable(t, services, alice, "description")
	assert.Equal(t, [][]string{{"HTTP"}, {"Disk"}, {"Backup"}}, rows)

	// Strict authorization requires being a contact of the service itself.
	strictAlice := &state.ContactUser{Name: "alice", Core: core, ServiceAuth: state.AuthStrict}
	assert.Empty(t, scanTable(t, services, strictAlice, "description"))
}

func TestServicesGet(t *testing.T) {
	services := NewServices(fixtureCore(t), nil)

	row := services.Get("web01;Disk")
	assert.Equal(t, "Disk", cell(t, services, "description", row, nil).Str)
	assert.Equal(t, "web01", cell(t, services, "host_name", row, nil).Str)

	assert.True(t, services.Get("web01").IsNull(), "key without separator")
	assert.True(t, services.Get("web01;nosuch").IsNull())
}

func TestHostGroupsTable(t *testing.T) {
	core := fixtureCore(t)
	groups := NewHostGroups(core, state.AuthAny)

	rows := scanTable(t, groups, nil, "name", "alias", "num_hosts", "num_hosts_up", "num_hosts_down")
	assert.Equal(t, [][]string{{"prod", "Production", "2", "1", "1"}}, rows)

	row := groups.Get("prod")
	assert.Equal(t, "web01,db01", cell(t, groups, "members", row, nil).AsString())
	assert.Equal(t, int64(4), cell(t, groups, "num_services", row, nil).Int)
	assert.Equal(t, int64(state.ServiceCritical), cell(t, groups, "worst_service_state", row, nil).Int)

	// Counts and member lists honor the acting user.
	alice := &state.ContactUser{Name: "alice", Core: core}
	assert.Equal(t, int64(1), cell(t, groups, "num_hosts", row, alice).Int)
	assert.Equal(t, "web01", cell(t, groups, "members", row, alice).AsString())
}

func TestGroupVisibility(t *testing.T) {
	core := fixtureCore(t)
	alice := &state.ContactUser{Name: "alice", Core: core}

	// AuthAny: one visible member makes the group visible.
	anyGroups := NewHostGroups(core, state.AuthAny)
	assert.Equal(t, [][]string{{"prod"}}, scanTable(t, anyGroups, alice, "name"))
	assert.Empty(t, scanTable(t, anyGroups, state.DenyAllUser{}, "name"))

	// AuthAll: alice is no contact of db01, so "prod" disappears.
	allGroups := NewHostGroups(core, state.AuthAll)
	assert.Empty(t, scanTable(t, allGroups, alice, "name"))
	assert.Equal(t, [][]string{{"prod"}}, scanTable(t, allGroups, nil, "name"))

	sgAny := NewServiceGroups(core, state.AuthAny)
	assert.Equal(t, [][]string{{"frontends"}}, scanTable(t, sgAny, alice, "name"))
	sgAll := NewServiceGroups(core, state.AuthAll)
	assert.Empty(t, scanTable(t, sgAll, alice, "name"),
		"alice may not see db01's SQL service")
}

func TestServiceGroupsTable(t *testing.T) {
	groups := NewServiceGroups(fixtureCore(t), state.AuthAny)
	row := groups.Get("frontends")

	assert.Equal(t, "web01|HTTP,db01|SQL", cell(t, groups, "members", row, nil).AsString())
	assert.Equal(t, "web01|HTTP|0|1,db01|SQL|1|1",
		cell(t, groups, "members_with_state", row, nil).AsString())
	assert.Equal(t, int64(2), cell(t, groups, "num_services", row, nil).Int)
	assert.Equal(t, int64(1), cell(t, groups, "num_services_warn", row, nil).Int)

	assert.True(t, groups.Get("nosuch").IsNull())
}

func TestCommandsTable(t *testing.T) {
	commands := NewCommands(fixtureCore(t))

	rows := scanTable(t, commands, nil, "name", "line")
	assert.Equal(t, [][]string{
		{"check-http", "/usr/lib/monitoring/check_http -H $HOSTADDRESS$"},
	}, rows)
}

func TestColumnsTable(t *testing.T) {
	core := fixtureCore(t)
	columns := NewColumns()
	columns.AddTable(NewCommands(core))
	columns.AddTable(columns)

	rows := scanTable(t, columns, nil, "table", "name", "type")
	assert.Equal(t, [][]string{
		{"commands", "name", "string"},
		{"commands", "line", "string"},
		{"columns", "table", "string"},
		{"columns", "name", "string"},
		{"columns", "description", "string"},
		{"columns", "type", "string"},
	}, rows)
}
