package state

import (
	"encoding/json"
	"fmt"
	"os"
	"time"
)

// Snapshot is the JSON document describing one monitoring state export.
// Timestamps are Unix seconds; zero means "never".
type Snapshot struct {
	Hosts         []SnapshotHost         `json:"hosts"`
	HostGroups    []SnapshotGroup        `json:"host_groups"`
	ServiceGroups []SnapshotServiceGroup `json:"service_groups"`
	Commands      []SnapshotCommand      `json:"commands"`
	ContactGroups map[string][]string    `json:"contact_groups"`
}

type SnapshotHost struct {
	Name                   string            `json:"name"`
	Alias                  string            `json:"alias"`
	Address                string            `json:"address"`
	State                  int32             `json:"state"`
	HardState              int32             `json:"hard_state"`
	HasBeenChecked         bool              `json:"has_been_checked"`
	Acknowledged           bool              `json:"acknowledged"`
	ScheduledDowntimeDepth int32             `json:"scheduled_downtime_depth"`
	LastCheck              int64             `json:"last_check"`
	LastStateChange        int64             `json:"last_state_change"`
	PluginOutput           string            `json:"plugin_output"`
	PerfData               string            `json:"perf_data"`
	Notes                  string            `json:"notes"`
	Contacts               []string          `json:"contacts"`
	ContactGroups          []string          `json:"contact_groups"`
	Groups                 []string          `json:"groups"`
	Services               []SnapshotService `json:"services"`
}

type SnapshotService struct {
	Description            string   `json:"description"`
	DisplayName            string   `json:"display_name"`
	State                  int32    `json:"state"`
	HardState              int32    `json:"hard_state"`
	HasBeenChecked         bool     `json:"has_been_checked"`
	Acknowledged           bool     `json:"acknowledged"`
	ScheduledDowntimeDepth int32    `json:"scheduled_downtime_depth"`
	LastCheck              int64    `json:"last_check"`
	LastStateChange        int64    `json:"last_state_change"`
	PluginOutput           string   `json:"plugin_output"`
	PerfData               string   `json:"perf_data"`
	Contacts               []string `json:"contacts"`
	ContactGroups          []string `json:"contact_groups"`
	Groups                 []string `json:"groups"`
}

type SnapshotGroup struct {
	Name    string   `json:"name"`
	Alias   string   `json:"alias"`
	Notes   string   `json:"notes"`
	Members []string `json:"members"`
}

type SnapshotServiceGroup struct {
	Name      string   `json:"name"`
	Alias     string   `json:"alias"`
	Notes     string   `json:"notes"`
	NotesURL  string   `json:"notes_url"`
	ActionURL string   `json:"action_url"`
	// Members are "host;description" pairs.
	Members []string `json:"members"`
}

type SnapshotCommand struct {
	Name string `json:"name"`
	Line string `json:"line"`
}

// LoadSnapshot reads a snapshot file and builds the object graph.
func LoadSnapshot(path string) (*Core, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading snapshot: %w", err)
	}
	var snap Snapshot
	if err := json.Unmarshal(raw, &snap); err != nil {
		return nil, fmt.Errorf("decoding snapshot: %w", err)
	}
	return BuildCore(&snap)
}

// BuildCore turns a decoded snapshot into a Core. Group members referring
// to unknown hosts or services are an error: a snapshot is written in one
// piece and dangling references mean it is corrupt.
func BuildCore(snap *Snapshot) (*Core, error) {
	core := NewCore()

	for _, sh := range snap.Hosts {
		h := &Host{
			Name:                   sh.Name,
			Alias:                  sh.Alias,
			Address:                sh.Address,
			State:                  HostState(sh.State),
			HardState:              HostState(sh.HardState),
			HasBeenChecked:         sh.HasBeenChecked,
			Acknowledged:           sh.Acknowledged,
			ScheduledDowntimeDepth: sh.ScheduledDowntimeDepth,
			LastCheck:              unixOrZero(sh.LastCheck),
			LastStateChange:        unixOrZero(sh.LastStateChange),
			PluginOutput:           sh.PluginOutput,
			PerfData:               sh.PerfData,
			Notes:                  sh.Notes,
			Contacts:               sh.Contacts,
			ContactGroups:          sh.ContactGroups,
			Groups:                 sh.Groups,
		}
		for _, ss := range sh.Services {
			h.Services = append(h.Services, &Service{
				Description:            ss.Description,
				DisplayName:            ss.DisplayName,
				State:                  ServiceState(ss.State),
				HardState:              ServiceState(ss.HardState),
				HasBeenChecked:         ss.HasBeenChecked,
				Acknowledged:           ss.Acknowledged,
				ScheduledDowntimeDepth: ss.ScheduledDowntimeDepth,
				LastCheck:              unixOrZero(ss.LastCheck),
				LastStateChange:        unixOrZero(ss.LastStateChange),
				PluginOutput:           ss.PluginOutput,
				PerfData:               ss.PerfData,
				Contacts:               ss.Contacts,
				ContactGroups:          ss.ContactGroups,
				Groups:                 ss.Groups,
			})
		}
		if err := core.AddHost(h); err != nil {
			return nil, err
		}
	}

	for _, sg := range snap.HostGroups {
		g := &HostGroup{Name: sg.Name, Alias: sg.Alias, Notes: sg.Notes}
		for _, member := range sg.Members {
			h, ok := core.Host(member)
			if !ok {
				return nil, fmt.Errorf("host group %q: unknown host %q", sg.Name, member)
			}
			g.Hosts = append(g.Hosts, h)
		}
		core.AddHostGroup(g)
	}

	for _, sg := range snap.ServiceGroups {
		g := &ServiceGroup{
			Name:      sg.Name,
			Alias:     sg.Alias,
			Notes:     sg.Notes,
			NotesURL:  sg.NotesURL,
			ActionURL: sg.ActionURL,
		}
		for _, member := range sg.Members {
			host, desc, ok := cutServiceKey(member)
			if !ok {
				return nil, fmt.Errorf("service group %q: malformed member %q", sg.Name, member)
			}
			svc, found := core.Service(host, desc)
			if !found {
				return nil, fmt.Errorf("service group %q: unknown service %q", sg.Name, member)
			}
			g.Members = append(g.Members, svc)
		}
		core.AddServiceGroup(g)
	}

	for _, sc := range snap.Commands {
		core.AddCommand(&Command{Name: sc.Name, Line: sc.Line})
	}
	for name, members := range snap.ContactGroups {
		core.SetContactGroup(name, members)
	}
	return core, nil
}

func unixOrZero(sec int64) time.Time {
	if sec == 0 {
		return time.Time{}
	}
	return time.Unix(sec, 0)
}

func cutServiceKey(s string) (host, description string, ok bool) {
	for i := 0; i < len(s); i++ {
		if s[i] == ';' {
			return s[:i], s[i+1:], true
		}
	}
	return "", "", false
}
