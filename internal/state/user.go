package state

// ServiceAuthorization controls whether being authorized for a host
// implies authorization for its services.
type ServiceAuthorization int

const (
	// AuthLoose grants access to a service when the user is a contact of
	// either the service or its host.
	AuthLoose ServiceAuthorization = iota
	// AuthStrict grants access only to direct service contacts.
	AuthStrict
)

// GroupAuthorization controls how group membership is decided when a user
// is a contact for only some members of a group.
type GroupAuthorization int

const (
	// AuthAny authorizes a group if the user may see at least one member.
	AuthAny GroupAuthorization = iota
	// AuthAll requires the user to see every member.
	AuthAll
)

// User decides per-object visibility for one request. Implementations must
// be safe for use from the single goroutine evaluating the query.
type User interface {
	IsAuthorizedForHost(h *Host) bool
	IsAuthorizedForService(s *Service) bool
	// IsAuthorizedForEvent decides visibility of a remote event record.
	// precedence is "rule" or "host" and selects whether the event's own
	// contact groups or the resolved host's contacts are consulted first.
	IsAuthorizedForEvent(precedence string, contactGroups []string, h *Host) bool
}

// AllowAllUser authorizes everything. Used when no AuthUser header is given.
type AllowAllUser struct{}

func (AllowAllUser) IsAuthorizedForHost(*Host) bool       { return true }
func (AllowAllUser) IsAuthorizedForService(*Service) bool { return true }
func (AllowAllUser) IsAuthorizedForEvent(string, []string, *Host) bool {
	return true
}

// DenyAllUser authorizes nothing. Used when an AuthUser header names an
// unknown contact.
type DenyAllUser struct{}

func (DenyAllUser) IsAuthorizedForHost(*Host) bool                  { return false }
func (DenyAllUser) IsAuthorizedForService(*Service) bool            { return false }
func (DenyAllUser) IsAuthorizedForEvent(string, []string, *Host) bool { return false }

// ContactUser authorizes objects the named contact is responsible for,
// either directly or via contact group membership.
type ContactUser struct {
	Name        string
	Core        *Core
	ServiceAuth ServiceAuthorization
}

func (u *ContactUser) isContactOf(contacts, contactGroups []string) bool {
	for _, c := range contacts {
		if c == u.Name {
			return true
		}
	}
	for _, g := range contactGroups {
		if u.Core.ContactIsInGroup(u.Name, g) {
			return true
		}
	}
	return false
}

func (u *ContactUser) IsAuthorizedForHost(h *Host) bool {
	if h == nil {
		return false
	}
	return u.isContactOf(h.Contacts, h.ContactGroups)
}

func (u *ContactUser) IsAuthorizedForService(s *Service) bool {
	if s == nil {
		return false
	}
	if u.isContactOf(s.Contacts, s.ContactGroups) {
		return true
	}
	return u.ServiceAuth == AuthLoose && s.Host != nil && u.IsAuthorizedForHost(s.Host)
}

func (u *ContactUser) isInAnyGroup(groups []string) bool {
	for _, g := range groups {
		if u.Core.ContactIsInGroup(u.Name, g) {
			return true
		}
	}
	return false
}

func (u *ContactUser) IsAuthorizedForEvent(precedence string, contactGroups []string, h *Host) bool {
	// Empty contact groups on the event means "unknown", not "nobody".
	switch precedence {
	case "rule":
		if len(contactGroups) > 0 {
			return u.isInAnyGroup(contactGroups)
		}
		if h != nil {
			return u.IsAuthorizedForHost(h)
		}
		return true
	default: // "host"
		if h != nil {
			return u.IsAuthorizedForHost(h)
		}
		if len(contactGroups) > 0 {
			return u.isInAnyGroup(contactGroups)
		}
		return true
	}
}
