package state

import "time"

// HostState is the numeric state of a host check.
type HostState int32

const (
	HostUp          HostState = 0
	HostDown        HostState = 1
	HostUnreachable HostState = 2
)

// ServiceState is the numeric state of a service check. Note that the
// severity order used for "worst state" aggregation is not the numeric
// order: OK <= WARN <= UNKNOWN <= CRIT.
type ServiceState int32

const (
	ServiceOK       ServiceState = 0
	ServiceWarning  ServiceState = 1
	ServiceCritical ServiceState = 2
	ServiceUnknown  ServiceState = 3
)

// badness maps a service state onto a scale where a higher value is worse.
func badness(s ServiceState) int {
	if s == ServiceCritical {
		return int(ServiceUnknown) + 1
	}
	return int(s)
}

// Worse reports whether a is worse than b under OK <= WARN <= UNKNOWN <= CRIT.
func Worse(a, b ServiceState) bool {
	return badness(a) > badness(b)
}

// Host is one monitored host. Objects are owned by the Core that created
// them; queries hold references only for the duration of one table scan.
type Host struct {
	Name                   string
	Alias                  string
	Address                string
	State                  HostState
	HardState              HostState
	HasBeenChecked         bool
	Acknowledged           bool
	ScheduledDowntimeDepth int32
	LastCheck              time.Time
	LastStateChange        time.Time
	PluginOutput           string
	PerfData               string
	Notes                  string
	Contacts               []string
	ContactGroups          []string
	Groups                 []string

	Services []*Service
}

// InDowntime reports whether the host is currently in a scheduled downtime.
func (h *Host) InDowntime() bool { return h.ScheduledDowntimeDepth > 0 }

// Service is one monitored service, always attached to a host.
type Service struct {
	Host                   *Host
	Description            string
	DisplayName            string
	State                  ServiceState
	HardState              ServiceState
	HasBeenChecked         bool
	Acknowledged           bool
	ScheduledDowntimeDepth int32
	LastCheck              time.Time
	LastStateChange        time.Time
	PluginOutput           string
	PerfData               string
	Contacts               []string
	ContactGroups          []string
	Groups                 []string
}

// InDowntime reports whether the service is currently in a scheduled downtime.
func (s *Service) InDowntime() bool { return s.ScheduledDowntimeDepth > 0 }

// HasProblem reports whether the live state is a problem state.
func (s *Service) HasProblem() bool { return s.State != ServiceOK }

// ProblemHandled reports whether a current problem is considered handled:
// acknowledged, in downtime, or the owning host is not up.
func (s *Service) ProblemHandled() bool {
	return s.Acknowledged || s.InDowntime() || (s.Host != nil && s.Host.State != HostUp)
}

// HostGroup is a named group of hosts.
type HostGroup struct {
	Name  string
	Alias string
	Notes string
	Hosts []*Host
}

// ServiceGroup is a named group of services.
type ServiceGroup struct {
	Name      string
	Alias     string
	Notes     string
	NotesURL  string
	ActionURL string
	Members   []*Service
}

// Command is a configured check or notification command.
type Command struct {
	Name string
	Line string
}
