package tables

import (
	"fmt"
	"time"

	"github.com/openmon/livequery/internal/query"
	"github.com/openmon/livequery/internal/state"
)

// HostGroups serves one row per host group.
type HostGroups struct {
	*query.ColumnSet
	core      *state.Core
	groupAuth state.GroupAuthorization
}

func NewHostGroups(core *state.Core, groupAuth state.GroupAuthorization) *HostGroups {
	t := &HostGroups{ColumnSet: query.NewColumnSet(), core: core, groupAuth: groupAuth}
	cs, offsets := t.ColumnSet, query.ColumnOffsets{}

	cs.AddColumn(query.NewStringColumn[state.HostGroup]("name",
		"Name of the host group", offsets,
		func(g *state.HostGroup) string { return g.Name }))
	cs.AddColumn(query.NewStringColumn[state.HostGroup]("alias",
		"An alias of the host group", offsets,
		func(g *state.HostGroup) string { return g.Alias }))
	cs.AddColumn(query.NewStringColumn[state.HostGroup]("notes",
		"Optional additional notes about the host group", offsets,
		func(g *state.HostGroup) string { return g.Notes }))
	cs.AddColumn(query.NewListColumn[state.HostGroup]("members",
		"A list of all host names that are members of the host group", offsets,
		func(g *state.HostGroup, user state.User, _ time.Duration) []query.Value {
			var members []query.Value
			for _, h := range g.Hosts {
				if user.IsAuthorizedForHost(h) {
					members = append(members, query.StringValue(h.Name))
				}
			}
			return members
		}))
	cs.AddColumn(query.NewIntColumnWithUser[state.HostGroup]("num_hosts",
		"The total number of hosts in the group", offsets,
		func(g *state.HostGroup, user state.User) int64 {
			return countHosts(g, user, func(*state.Host) bool { return true })
		}))
	cs.AddColumn(query.NewIntColumnWithUser[state.HostGroup]("num_hosts_up",
		"The number of hosts in the group that are up", offsets,
		func(g *state.HostGroup, user state.User) int64 {
			return countHosts(g, user, func(h *state.Host) bool {
				return h.HasBeenChecked && h.State == state.HostUp
			})
		}))
	cs.AddColumn(query.NewIntColumnWithUser[state.HostGroup]("num_hosts_down",
		"The number of hosts in the group that are down", offsets,
		func(g *state.HostGroup, user state.User) int64 {
			return countHosts(g, user, func(h *state.Host) bool {
				return h.HasBeenChecked && h.State == state.HostDown
			})
		}))
	cs.AddColumn(query.NewIntColumnWithUser[state.HostGroup]("num_hosts_unreach",
		"The number of hosts in the group that are unreachable", offsets,
		func(g *state.HostGroup, user state.User) int64 {
			return countHosts(g, user, func(h *state.Host) bool {
				return h.HasBeenChecked && h.State == state.HostUnreachable
			})
		}))
	cs.AddColumn(query.NewIntColumnWithUser[state.HostGroup]("num_hosts_pending",
		"The number of hosts in the group that have not been checked yet", offsets,
		func(g *state.HostGroup, user state.User) int64 {
			return countHosts(g, user, func(h *state.Host) bool {
				return !h.HasBeenChecked
			})
		}))

	addServiceListColumns(cs, "", offsets, groupServices)
	return t
}

func countHosts(g *state.HostGroup, user state.User, pred func(*state.Host) bool) int64 {
	var n int64
	for _, h := range g.Hosts {
		if user.IsAuthorizedForHost(h) && pred(h) {
			n++
		}
	}
	return n
}

func groupServices(g *state.HostGroup) []*state.Service {
	var services []*state.Service
	for _, h := range g.Hosts {
		services = append(services, h.Services...)
	}
	return services
}

func (t *HostGroups) Name() string       { return "hostgroups" }
func (t *HostGroups) NamePrefix() string { return "hostgroup_" }

// authorized decides whether the group as a whole is visible: with AuthAny
// one visible member suffices, with AuthAll every member must be visible.
// Empty groups are visible to everyone.
func (t *HostGroups) authorized(g *state.HostGroup, user state.User) bool {
	if len(g.Hosts) == 0 {
		return true
	}
	n := countHosts(g, user, func(*state.Host) bool { return true })
	if t.groupAuth == state.AuthAll {
		return n == int64(len(g.Hosts))
	}
	return n > 0
}

func (t *HostGroups) AnswerQuery(q *query.Query, user state.User) error {
	for _, g := range t.core.HostGroups() {
		if !t.authorized(g, user) {
			continue
		}
		if !q.ProcessDataset(query.NewRow(g)) {
			return nil
		}
	}
	return nil
}

func (t *HostGroups) Get(primaryKey string) query.Row {
	if g, ok := t.core.HostGroup(primaryKey); ok {
		return query.NewRow(g)
	}
	return query.NewRow(nil)
}

// ServiceGroups serves one row per service group.
type ServiceGroups struct {
	*query.ColumnSet
	core      *state.Core
	groupAuth state.GroupAuthorization
}

func NewServiceGroups(core *state.Core, groupAuth state.GroupAuthorization) *ServiceGroups {
	t := &ServiceGroups{ColumnSet: query.NewColumnSet(), core: core, groupAuth: groupAuth}
	cs, offsets := t.ColumnSet, query.ColumnOffsets{}

	cs.AddColumn(query.NewStringColumn[state.ServiceGroup]("name",
		"Name of the service group", offsets,
		func(g *state.ServiceGroup) string { return g.Name }))
	cs.AddColumn(query.NewStringColumn[state.ServiceGroup]("alias",
		"An alias of the service group", offsets,
		func(g *state.ServiceGroup) string { return g.Alias }))
	cs.AddColumn(query.NewStringColumn[state.ServiceGroup]("notes",
		"Optional additional notes about the service group", offsets,
		func(g *state.ServiceGroup) string { return g.Notes }))
	cs.AddColumn(query.NewStringColumn[state.ServiceGroup]("notes_url",
		"An optional URL to further notes on the service group", offsets,
		func(g *state.ServiceGroup) string { return g.NotesURL }))
	cs.AddColumn(query.NewStringColumn[state.ServiceGroup]("action_url",
		"An optional URL to custom notes or actions on the service group", offsets,
		func(g *state.ServiceGroup) string { return g.ActionURL }))
	cs.AddColumn(query.NewListColumn[state.ServiceGroup]("members",
		"A list of all members of the service group as host/service pairs", offsets,
		func(g *state.ServiceGroup, user state.User, _ time.Duration) []query.Value {
			var members []query.Value
			for _, svc := range g.Members {
				if user.IsAuthorizedForService(svc) {
					members = append(members, query.StringValue(
						fmt.Sprintf("%s|%s", svc.Host.Name, svc.Description)))
				}
			}
			return members
		}))
	cs.AddColumn(query.NewListColumn[state.ServiceGroup]("members_with_state",
		"A list of all members of the service group with state and has_been_checked", offsets,
		func(g *state.ServiceGroup, user state.User, _ time.Duration) []query.Value {
			var members []query.Value
			for _, svc := range g.Members {
				if user.IsAuthorizedForService(svc) {
					members = append(members, query.StringValue(
						fmt.Sprintf("%s|%s|%d|%d", svc.Host.Name, svc.Description,
							svc.State, boolToInt(svc.HasBeenChecked))))
				}
			}
			return members
		}))

	addServiceListColumns(cs, "", offsets,
		func(g *state.ServiceGroup) []*state.Service { return g.Members })
	return t
}

func (t *ServiceGroups) Name() string       { return "servicegroups" }
func (t *ServiceGroups) NamePrefix() string { return "servicegroup_" }

func (t *ServiceGroups) authorized(g *state.ServiceGroup, user state.User) bool {
	if len(g.Members) == 0 {
		return true
	}
	var n int
	for _, svc := range g.Members {
		if user.IsAuthorizedForService(svc) {
			n++
		}
	}
	if t.groupAuth == state.AuthAll {
		return n == len(g.Members)
	}
	return n > 0
}

func (t *ServiceGroups) AnswerQuery(q *query.Query, user state.User) error {
	for _, g := range t.core.ServiceGroups() {
		if !t.authorized(g, user) {
			continue
		}
		if !q.ProcessDataset(query.NewRow(g)) {
			return nil
		}
	}
	return nil
}

func (t *ServiceGroups) Get(primaryKey string) query.Row {
	if g, ok := t.core.ServiceGroup(primaryKey); ok {
		return query.NewRow(g)
	}
	return query.NewRow(nil)
}
