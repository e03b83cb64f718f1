// Package tables defines the concrete tables served by the engine: the
// locally-iterated monitoring objects, the self-describing columns table,
// and the remote event console tables.
package tables

import (
	"time"

	"github.com/openmon/livequery/internal/query"
	"github.com/openmon/livequery/internal/rrd"
	"github.com/openmon/livequery/internal/state"
)

// Hosts serves one row per monitored host.
type Hosts struct {
	*query.ColumnSet
	core *state.Core
}

func NewHosts(core *state.Core, archive *rrd.Provider) *Hosts {
	t := &Hosts{ColumnSet: query.NewColumnSet(), core: core}
	AddHostColumns(t.ColumnSet, "", query.ColumnOffsets{}, archive)
	return t
}

func (t *Hosts) Name() string       { return "hosts" }
func (t *Hosts) NamePrefix() string { return "host_" }

func (t *Hosts) AnswerQuery(q *query.Query, user state.User) error {
	for _, h := range t.core.Hosts() {
		if !user.IsAuthorizedForHost(h) {
			continue
		}
		if !q.ProcessDataset(query.NewRow(h)) {
			return nil
		}
	}
	return nil
}

// Get looks a host up by name.
func (t *Hosts) Get(primaryKey string) query.Row {
	if h, ok := t.core.Host(primaryKey); ok {
		return query.NewRow(h)
	}
	return query.NewRow(nil)
}

// AddHostColumns registers the host column family under a prefix, so other
// tables can join it onto their own rows via an offset.
func AddHostColumns(cs *query.ColumnSet, prefix string, offsets query.ColumnOffsets, archive *rrd.Provider) {
	cs.AddColumn(query.NewStringColumn[state.Host](prefix+"name",
		"Host name", offsets,
		func(h *state.Host) string { return h.Name }))
	cs.AddColumn(query.NewStringColumn[state.Host](prefix+"alias",
		"An alias name for the host", offsets,
		func(h *state.Host) string { return h.Alias }))
	cs.AddColumn(query.NewStringColumn[state.Host](prefix+"address",
		"IP address", offsets,
		func(h *state.Host) string { return h.Address }))
	cs.AddColumn(query.NewIntColumn[state.Host](prefix+"state",
		"The current state of the host (0: up, 1: down, 2: unreachable)", offsets,
		func(h *state.Host) int64 { return int64(h.State) }))
	cs.AddColumn(query.NewIntColumn[state.Host](prefix+"hard_state",
		"The effective hard state of the host (eliminates a problem in hard_state)", offsets,
		func(h *state.Host) int64 { return int64(h.HardState) }))
	cs.AddColumn(query.NewIntColumn[state.Host](prefix+"has_been_checked",
		"Whether the host has already been checked (0/1)", offsets,
		func(h *state.Host) int64 { return boolToInt(h.HasBeenChecked) }))
	cs.AddColumn(query.NewIntColumn[state.Host](prefix+"acknowledged",
		"Whether the current host problem has been acknowledged (0/1)", offsets,
		func(h *state.Host) int64 { return boolToInt(h.Acknowledged) }))
	cs.AddColumn(query.NewIntColumn[state.Host](prefix+"scheduled_downtime_depth",
		"The number of downtimes this host is currently in", offsets,
		func(h *state.Host) int64 { return int64(h.ScheduledDowntimeDepth) }))
	cs.AddColumn(query.NewTimeColumn[state.Host](prefix+"last_check",
		"Time of the last check (Unix timestamp)", offsets,
		func(h *state.Host) time.Time { return h.LastCheck }))
	cs.AddColumn(query.NewTimeColumn[state.Host](prefix+"last_state_change",
		"Time of the last state change - soft or hard (Unix timestamp)", offsets,
		func(h *state.Host) time.Time { return h.LastStateChange }))
	cs.AddColumn(query.NewStringColumn[state.Host](prefix+"plugin_output",
		"Output of the last host check", offsets,
		func(h *state.Host) string { return h.PluginOutput }))
	cs.AddColumn(query.NewStringColumn[state.Host](prefix+"perf_data",
		"Optional performance data of the last host check", offsets,
		func(h *state.Host) string { return h.PerfData }))
	cs.AddColumn(query.NewStringColumn[state.Host](prefix+"notes",
		"Optional notes for this host", offsets,
		func(h *state.Host) string { return h.Notes }))
	cs.AddColumn(query.NewStringListColumn[state.Host](prefix+"contacts",
		"A list of all contacts of this host, either direct or via a contact group", offsets,
		func(h *state.Host) []string { return h.Contacts }))
	cs.AddColumn(query.NewStringListColumn[state.Host](prefix+"contact_groups",
		"A list of all contact groups this host is in", offsets,
		func(h *state.Host) []string { return h.ContactGroups }))
	cs.AddColumn(query.NewStringListColumn[state.Host](prefix+"groups",
		"A list of all host groups this host is in", offsets,
		func(h *state.Host) []string { return h.Groups }))
	cs.AddColumn(query.NewListColumn[state.Host](prefix+"services",
		"A list of all services of the host", offsets,
		func(h *state.Host, user state.User, _ time.Duration) []query.Value {
			var descriptions []query.Value
			for _, svc := range h.Services {
				if user.IsAuthorizedForService(svc) {
					descriptions = append(descriptions, query.StringValue(svc.Description))
				}
			}
			return descriptions
		}))

	addServiceListColumns(cs, prefix, offsets,
		func(h *state.Host) []*state.Service { return h.Services })

	if archive != nil {
		cs.AddDynamicColumn(rrd.NewDynamicColumn[state.Host](prefix+"rrddata",
			"Archived metric samples as [start, end, step, value, ...]",
			offsets, archive,
			func(h *state.Host) (string, string) {
				return h.Name, rrd.HostCheckDescription
			}))
	}
}

func boolToInt(b bool) int64 {
	if b {
		return 1
	}
	return 0
}

// addServiceListColumns registers the aggregate columns folding a row's
// service list into counts and worst states.
func addServiceListColumns[T any](cs *query.ColumnSet, prefix string, offsets query.ColumnOffsets, services func(*T) []*state.Service) {
	add := func(name, description string, typ state.ServiceListStateType) {
		cs.AddColumn(query.NewIntColumnWithUser[T](prefix+name, description, offsets,
			func(obj *T, user state.User) int64 {
				return int64(state.ServiceListState{Type: typ}.Reduce(services(obj), user))
			}))
	}
	add("num_services", "The total number of services", state.ServiceListNum)
	add("num_services_pending", "The number of services that have not been checked yet", state.ServiceListNumPending)
	add("num_services_handled_problems", "The number of services with problems that have been handled", state.ServiceListNumHandledProblems)
	add("num_services_unhandled_problems", "The number of services with unhandled problems", state.ServiceListNumUnhandledProblems)
	add("num_services_ok", "The number of services that are OK", state.ServiceListNumOK)
	add("num_services_warn", "The number of services that are WARN", state.ServiceListNumWarn)
	add("num_services_crit", "The number of services that are CRIT", state.ServiceListNumCrit)
	add("num_services_unknown", "The number of services that are UNKNOWN", state.ServiceListNumUnknown)
	add("worst_service_state", "The worst soft state of all services (OK <= WARN <= UNKNOWN <= CRIT)", state.ServiceListWorstState)
	add("num_services_hard_ok", "The number of services that are OK in hard state", state.ServiceListNumHardOK)
	add("num_services_hard_warn", "The number of services that are WARN in hard state", state.ServiceListNumHardWarn)
	add("num_services_hard_crit", "The number of services that are CRIT in hard state", state.ServiceListNumHardCrit)
	add("num_services_hard_unknown", "The number of services that are UNKNOWN in hard state", state.ServiceListNumHardUnknown)
	add("worst_service_hard_state", "The worst hard state of all services (OK <= WARN <= UNKNOWN <= CRIT)", state.ServiceListWorstHardState)
}
