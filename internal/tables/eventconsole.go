package tables

import (
	"github.com/openmon/livequery/internal/ec"
	"github.com/openmon/livequery/internal/query"
	"github.com/openmon/livequery/internal/rrd"
	"github.com/openmon/livequery/internal/state"
)

// EventConsole is the base of the remote tables: rows are fetched from the
// event console daemon per query, with host columns joined locally onto
// the resolved owning host.
type EventConsole struct {
	*query.ColumnSet
	name   string
	bridge *ec.Bridge // nil when the event console is not configured
}

func (t *EventConsole) Name() string       { return t.name }
func (t *EventConsole) NamePrefix() string { return "event_" }

func (t *EventConsole) AnswerQuery(q *query.Query, user state.User) error {
	if t.bridge == nil {
		return nil
	}
	return t.bridge.AnswerQuery(t, q, user)
}

func (t *EventConsole) Get(string) query.Row { return query.NewRow(nil) }

func hostJoinOffsets() query.ColumnOffsets {
	return query.ColumnOffsets{}.Add(func(r query.Row) query.Row {
		if row := query.Target[ec.Row](r); row != nil {
			return query.NewRow(row.Host())
		}
		return query.NewRow(nil)
	})
}

// NewEventConsoleEvents builds the table of currently open events.
func NewEventConsoleEvents(bridge *ec.Bridge, archive *rrd.Provider) *EventConsole {
	t := &EventConsole{
		ColumnSet: query.NewColumnSet(),
		name:      "eventconsoleevents",
		bridge:    bridge,
	}
	addEventColumns(t.ColumnSet)
	AddHostColumns(t.ColumnSet, "host_", hostJoinOffsets(), archive)
	return t
}

// NewEventConsoleHistory builds the table of archived event history lines.
func NewEventConsoleHistory(bridge *ec.Bridge, archive *rrd.Provider) *EventConsole {
	t := &EventConsole{
		ColumnSet: query.NewColumnSet(),
		name:      "eventconsolehistory",
		bridge:    bridge,
	}
	cs := t.ColumnSet
	offsets := query.ColumnOffsets{}
	cs.AddColumn(ec.MakeIntColumn("history_line",
		"The line number of the event in the history file", offsets))
	cs.AddColumn(ec.MakeTimeColumn("history_time",
		"Time when the event was written into the history file (Unix timestamp)", offsets))
	cs.AddColumn(ec.MakeStringColumn("history_what",
		"What happened (one of NEW/DELETE/UPDATE/CANCELLED/ARCHIVED/AUTODELETE/CHANGESTATE)", offsets))
	cs.AddColumn(ec.MakeStringColumn("history_who",
		"The user who triggered the action", offsets))
	cs.AddColumn(ec.MakeStringColumn("history_addinfo",
		"Additional information, like the text of a changed field", offsets))
	addEventColumns(cs)
	AddHostColumns(cs, "host_", hostJoinOffsets(), archive)
	return t
}

func addEventColumns(cs *query.ColumnSet) {
	offsets := query.ColumnOffsets{}
	cs.AddColumn(ec.MakeIntColumn("event_id",
		"The unique ID for this event", offsets))
	cs.AddColumn(ec.MakeIntColumn("event_count",
		"The number of occurrences of this event within period", offsets))
	cs.AddColumn(ec.MakeStringColumn("event_text",
		"The textual description of the event", offsets))
	cs.AddColumn(ec.MakeTimeColumn("event_first",
		"Time of the first occurrence of the event (Unix timestamp)", offsets))
	cs.AddColumn(ec.MakeTimeColumn("event_last",
		"Time of the last occurrence of this event (Unix timestamp)", offsets))
	cs.AddColumn(ec.MakeStringColumn("event_comment",
		"Event comment", offsets))
	cs.AddColumn(ec.MakeIntColumn("event_sl",
		"The service level for this event", offsets))
	cs.AddColumn(ec.MakeStringColumn("event_host",
		"The host name for this event, potentially rewritten", offsets))
	cs.AddColumn(ec.MakeStringColumn("event_contact",
		"Contact information", offsets))
	cs.AddColumn(ec.MakeStringColumn("event_application",
		"Syslog tag/application", offsets))
	cs.AddColumn(ec.MakeIntColumn("event_pid",
		"The process ID of the originating process", offsets))
	cs.AddColumn(ec.MakeIntColumn("event_priority",
		"Syslog priority", offsets))
	cs.AddColumn(ec.MakeIntColumn("event_facility",
		"Syslog facility", offsets))
	cs.AddColumn(ec.MakeStringColumn("event_rule_id",
		"The ID of the rule", offsets))
	cs.AddColumn(ec.MakeIntColumn("event_state",
		"The state of the event (0/1/2/3)", offsets))
	cs.AddColumn(ec.MakeStringColumn("event_phase",
		"The phase the event is currently in (one of open/closed/delayed/counting/ack)", offsets))
	cs.AddColumn(ec.MakeStringColumn("event_owner",
		"The owner of the event", offsets))
	cs.AddColumn(ec.MakeListColumn("event_match_groups",
		"Text groups from regular expression match", offsets))
	cs.AddColumn(ec.MakeListColumn("event_contact_groups",
		"Contact groups", offsets))
	cs.AddColumn(ec.MakeStringColumn("event_ipaddress",
		"The IP address where the event originated", offsets))
	cs.AddColumn(ec.MakeStringColumn("event_orig_host",
		"The original host name for this event", offsets))
	cs.AddColumn(ec.MakeStringColumn("event_contact_groups_precedence",
		"Whether or not the host- or rule groups have precedence", offsets))
	cs.AddColumn(ec.MakeStringColumn("event_core_host",
		"The canonical name of the host for this event as known in the monitoring", offsets))
	cs.AddColumn(ec.MakeIntColumn("event_host_in_downtime",
		"Whether or not the host (if found in core) was in downtime during event creation (0/1)", offsets))
}
