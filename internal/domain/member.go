package domain

import "time"

// RoleGrant is one role held by a member inside a named system.
type RoleGrant struct {
	System string
	Role   string
}

// Member models a directory user who can hold work.
type Member struct {
	ID        string
	Name      string
	Email     string
	Admin     bool
	Active    bool
	Roles     []RoleGrant
	CreatedAt time.Time
	UpdatedAt time.Time
}

// HasRole reports whether the member holds role in system.
func (m *Member) HasRole(system, role string) bool {
	if m == nil {
		return false
	}
	for _, grant := range m.Roles {
		if grant.System == system && grant.Role == role {
			return true
		}
	}
	return false
}

// HasAnyRole reports whether the member holds at least one role in system.
func (m *Member) HasAnyRole(system string) bool {
	if m == nil {
		return false
	}
	for _, grant := range m.Roles {
		if grant.System == system {
			return true
		}
	}
	return false
}

// PrimaryRole returns the first role the member holds in system.
func (m *Member) PrimaryRole(system string) string {
	if m == nil {
		return ""
	}
	for _, grant := range m.Roles {
		if grant.System == system {
			return grant.Role
		}
	}
	return ""
}
