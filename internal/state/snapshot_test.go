package state

import (
	"encoding/json"
	"testing"
	"time"
)

const snapshotFixture = `{
  "hosts": [
    {
      "name": "web01", "alias": "frontend", "address": "10.0.0.5",
      "state": 0, "has_been_checked": true, "last_check": 1700000000,
      "contacts": ["alice"], "groups": ["web"],
      "services": [
        {"description": "HTTP", "state": 2, "has_been_checked": true},
        {"description": "Disk", "state": 0, "has_been_checked": true}
      ]
    },
    {"name": "db01", "state": 1, "has_been_checked": true}
  ],
  "host_groups": [
    {"name": "web", "alias": "Web servers", "members": ["web01"]}
  ],
  "service_groups": [
    {"name": "critical", "members": ["web01;HTTP"]}
  ],
  "commands": [
    {"name": "check-http", "line": "/usr/lib/plugins/check_http -H $HOSTADDRESS$"}
  ],
  "contact_groups": {"web-admins": ["alice", "bob"]}
}`

func decodeFixture(t *testing.T) *Snapshot {
	t.Helper()
	var snap Snapshot
	if err := json.Unmarshal([]byte(snapshotFixture), &snap); err != nil {
		t.Fatal(err)
	}
	return &snap
}

func TestBuildCore(t *testing.T) {
	core, err := BuildCore(decodeFixture(t))
	if err != nil {
		t.Fatal(err)
	}

	if len(core.Hosts()) != 2 || len(core.Services()) != 2 {
		t.Fatalf("got %d hosts, %d services", len(core.Hosts()), len(core.Services()))
	}

	web, ok := core.Host("web01")
	if !ok {
		t.Fatal("web01 missing")
	}
	if web.LastCheck != time.Unix(1700000000, 0) {
		t.Errorf("last_check = %v", web.LastCheck)
	}
	if len(web.Services) != 2 || web.Services[0].Host != web {
		t.Error("services not linked back to their host")
	}

	db, _ := core.Host("db01")
	if !db.LastCheck.IsZero() {
		t.Error("absent last_check should stay the zero time")
	}

	hg, ok := core.HostGroup("web")
	if !ok || len(hg.Hosts) != 1 || hg.Hosts[0] != web {
		t.Error("host group membership not resolved to host objects")
	}

	sg, ok := core.ServiceGroup("critical")
	if !ok || len(sg.Members) != 1 || sg.Members[0].Description != "HTTP" {
		t.Error("service group membership not resolved")
	}

	if len(core.Commands()) != 1 || core.Commands()[0].Name != "check-http" {
		t.Error("commands not loaded")
	}
	if !core.ContactIsInGroup("bob", "web-admins") {
		t.Error("contact group membership not loaded")
	}
}

func TestBuildCoreRejectsDanglingReferences(t *testing.T) {
	snap := decodeFixture(t)
	snap.HostGroups[0].Members = append(snap.HostGroups[0].Members, "ghost")
	if _, err := BuildCore(snap); err == nil {
		t.Error("expected error for unknown host group member")
	}

	snap = decodeFixture(t)
	snap.ServiceGroups[0].Members = []string{"web01;Nope"}
	if _, err := BuildCore(snap); err == nil {
		t.Error("expected error for unknown service group member")
	}

	snap = decodeFixture(t)
	snap.ServiceGroups[0].Members = []string{"malformed"}
	if _, err := BuildCore(snap); err == nil {
		t.Error("expected error for malformed service reference")
	}

	snap = decodeFixture(t)
	snap.Hosts = append(snap.Hosts, SnapshotHost{Name: "web01"})
	if _, err := BuildCore(snap); err == nil {
		t.Error("expected error for duplicate host")
	}
}
