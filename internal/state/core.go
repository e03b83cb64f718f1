package state

import (
	"fmt"
	"sort"
)

// Core holds the in-memory monitoring object graph. It is built once at
// startup and treated as read-only afterwards, so concurrent queries may
// share it without locking.
type Core struct {
	hosts         []*Host
	hostsByName   map[string]*Host
	services      []*Service
	servicesByKey map[string]*Service
	hostGroups    []*HostGroup
	hgByName      map[string]*HostGroup
	serviceGroups []*ServiceGroup
	sgByName      map[string]*ServiceGroup
	commands      []*Command

	// contact group name -> member contact names
	contactGroups map[string][]string
}

// NewCore returns an empty object graph.
func NewCore() *Core {
	return &Core{
		hostsByName:   make(map[string]*Host),
		servicesByKey: make(map[string]*Service),
		hgByName:      make(map[string]*HostGroup),
		sgByName:      make(map[string]*ServiceGroup),
		contactGroups: make(map[string][]string),
	}
}

func serviceKey(host, description string) string {
	return host + ";" + description
}

// AddHost registers a host and all services already attached to it.
func (c *Core) AddHost(h *Host) error {
	if _, dup := c.hostsByName[h.Name]; dup {
		return fmt.Errorf("duplicate host %q", h.Name)
	}
	c.hosts = append(c.hosts, h)
	c.hostsByName[h.Name] = h
	for _, svc := range h.Services {
		svc.Host = h
		c.services = append(c.services, svc)
		c.servicesByKey[serviceKey(h.Name, svc.Description)] = svc
	}
	return nil
}

// AddHostGroup registers a host group.
func (c *Core) AddHostGroup(g *HostGroup) {
	c.hostGroups = append(c.hostGroups, g)
	c.hgByName[g.Name] = g
}

// AddServiceGroup registers a service group.
func (c *Core) AddServiceGroup(g *ServiceGroup) {
	c.serviceGroups = append(c.serviceGroups, g)
	c.sgByName[g.Name] = g
}

// AddCommand registers a command definition.
func (c *Core) AddCommand(cmd *Command) {
	c.commands = append(c.commands, cmd)
}

// SetContactGroup defines the membership of a contact group.
func (c *Core) SetContactGroup(name string, members []string) {
	c.contactGroups[name] = members
}

// Hosts returns all hosts in registration order.
func (c *Core) Hosts() []*Host { return c.hosts }

// Services returns all services in registration order.
func (c *Core) Services() []*Service { return c.services }

// HostGroups returns all host groups in registration order.
func (c *Core) HostGroups() []*HostGroup { return c.hostGroups }

// ServiceGroups returns all service groups in registration order.
func (c *Core) ServiceGroups() []*ServiceGroup { return c.serviceGroups }

// Commands returns all commands in registration order.
func (c *Core) Commands() []*Command { return c.commands }

// Host looks up a host by its configured name.
func (c *Core) Host(name string) (*Host, bool) {
	h, ok := c.hostsByName[name]
	return h, ok
}

// Service looks up a service by host name and description.
func (c *Core) Service(host, description string) (*Service, bool) {
	s, ok := c.servicesByKey[serviceKey(host, description)]
	return s, ok
}

// HostGroup looks up a host group by name.
func (c *Core) HostGroup(name string) (*HostGroup, bool) {
	g, ok := c.hgByName[name]
	return g, ok
}

// ServiceGroup looks up a service group by name.
func (c *Core) ServiceGroup(name string) (*ServiceGroup, bool) {
	g, ok := c.sgByName[name]
	return g, ok
}

// HostByDesignation resolves a host by name, falling back to alias and
// address. Remote event records identify their host this way, and the
// identification is not guaranteed to use the canonical name.
func (c *Core) HostByDesignation(designation string) *Host {
	if h, ok := c.hostsByName[designation]; ok {
		return h
	}
	for _, h := range c.hosts {
		if h.Alias == designation || h.Address == designation {
			return h
		}
	}
	return nil
}

// ContactGroupMembers returns the members of a contact group, or nil if the
// group is unknown.
func (c *Core) ContactGroupMembers(name string) []string {
	return c.contactGroups[name]
}

// ContactIsInGroup reports whether a contact belongs to a contact group.
func (c *Core) ContactIsInGroup(contact, group string) bool {
	for _, m := range c.contactGroups[group] {
		if m == contact {
			return true
		}
	}
	return false
}

// SortHosts orders hosts by name. Useful for deterministic output in tools
// and tests; the query engine itself only requires a stable order.
func (c *Core) SortHosts() {
	sort.Slice(c.hosts, func(i, j int) bool { return c.hosts[i].Name < c.hosts[j].Name })
}
