package tables

import (
	"strings"
	"time"

	"github.com/openmon/livequery/internal/query"
	"github.com/openmon/livequery/internal/rrd"
	"github.com/openmon/livequery/internal/state"
)

// Services serves one row per monitored service, with the owning host's
// columns joined under the host_ prefix.
type Services struct {
	*query.ColumnSet
	core *state.Core
}

func NewServices(core *state.Core, archive *rrd.Provider) *Services {
	t := &Services{ColumnSet: query.NewColumnSet(), core: core}
	AddServiceColumns(t.ColumnSet, "", query.ColumnOffsets{}, archive)
	AddHostColumns(t.ColumnSet, "host_",
		query.ColumnOffsets{}.Add(func(r query.Row) query.Row {
			if svc := query.Target[state.Service](r); svc != nil {
				return query.NewRow(svc.Host)
			}
			return query.NewRow(nil)
		}), archive)
	return t
}

func (t *Services) Name() string       { return "services" }
func (t *Services) NamePrefix() string { return "service_" }

func (t *Services) AnswerQuery(q *query.Query, user state.User) error {
	for _, svc := range t.core.Services() {
		if !user.IsAuthorizedForService(svc) {
			continue
		}
		if !q.ProcessDataset(query.NewRow(svc)) {
			return nil
		}
	}
	return nil
}

// Get looks a service up by "host;description".
func (t *Services) Get(primaryKey string) query.Row {
	host, description, found := strings.Cut(primaryKey, ";")
	if found {
		if svc, ok := t.core.Service(host, description); ok {
			return query.NewRow(svc)
		}
	}
	return query.NewRow(nil)
}

// AddServiceColumns registers the service column family under a prefix.
func AddServiceColumns(cs *query.ColumnSet, prefix string, offsets query.ColumnOffsets, archive *rrd.Provider) {
	cs.AddColumn(query.NewStringColumn[state.Service](prefix+"description",
		"Service description", offsets,
		func(s *state.Service) string { return s.Description }))
	cs.AddColumn(query.NewStringColumn[state.Service](prefix+"display_name",
		"Optional display name", offsets,
		func(s *state.Service) string { return s.DisplayName }))
	cs.AddColumn(query.NewIntColumn[state.Service](prefix+"state",
		"The current state of the service (0: OK, 1: WARN, 2: CRIT, 3: UNKNOWN)", offsets,
		func(s *state.Service) int64 { return int64(s.State) }))
	cs.AddColumn(query.NewIntColumn[state.Service](prefix+"last_hard_state",
		"The last hard state of the service", offsets,
		func(s *state.Service) int64 { return int64(s.HardState) }))
	cs.AddColumn(query.NewIntColumn[state.Service](prefix+"has_been_checked",
		"Whether the service already has been checked (0/1)", offsets,
		func(s *state.Service) int64 { return boolToInt(s.HasBeenChecked) }))
	cs.AddColumn(query.NewIntColumn[state.Service](prefix+"acknowledged",
		"Whether the current service problem has been acknowledged (0/1)", offsets,
		func(s *state.Service) int64 { return boolToInt(s.Acknowledged) }))
	cs.AddColumn(query.NewIntColumn[state.Service](prefix+"scheduled_downtime_depth",
		"The number of downtimes this service is currently in", offsets,
		func(s *state.Service) int64 { return int64(s.ScheduledDowntimeDepth) }))
	cs.AddColumn(query.NewTimeColumn[state.Service](prefix+"last_check",
		"Time of the last check (Unix timestamp)", offsets,
		func(s *state.Service) time.Time { return s.LastCheck }))
	cs.AddColumn(query.NewTimeColumn[state.Service](prefix+"last_state_change",
		"Time of the last state change - soft or hard (Unix timestamp)", offsets,
		func(s *state.Service) time.Time { return s.LastStateChange }))
	cs.AddColumn(query.NewStringColumn[state.Service](prefix+"plugin_output",
		"Output of the last check", offsets,
		func(s *state.Service) string { return s.PluginOutput }))
	cs.AddColumn(query.NewStringColumn[state.Service](prefix+"perf_data",
		"Optional performance data of the last check", offsets,
		func(s *state.Service) string { return s.PerfData }))
	cs.AddColumn(query.NewStringListColumn[state.Service](prefix+"contacts",
		"A list of all contacts of the service, either direct or via a contact group", offsets,
		func(s *state.Service) []string { return s.Contacts }))
	cs.AddColumn(query.NewStringListColumn[state.Service](prefix+"contact_groups",
		"A list of all contact groups this service is in", offsets,
		func(s *state.Service) []string { return s.ContactGroups }))
	cs.AddColumn(query.NewStringListColumn[state.Service](prefix+"groups",
		"A list of all service groups this service is in", offsets,
		func(s *state.Service) []string { return s.Groups }))

	if archive != nil {
		cs.AddDynamicColumn(rrd.NewDynamicColumn[state.Service](prefix+"rrddata",
			"Archived metric samples as [start, end, step, value, ...]",
			offsets, archive,
			func(s *state.Service) (string, string) {
				host := ""
				if s.Host != nil {
					host = s.Host.Name
				}
				return host, s.Description
			}))
	}
}
