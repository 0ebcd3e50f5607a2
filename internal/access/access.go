// Package access maps API roles to capabilities. Roles come from the static
// token registry in the configuration; handlers check capabilities, never
// roles, so adding a role is a table edit.
package access

import (
	"git.home.luguber.info/inful/docdrift/internal/foundation/errors"
)

// Role is an API principal's role.
type Role string

const (
	RoleViewer Role = "viewer"
	RoleEditor Role = "editor"
	RoleAdmin  Role = "admin"
)

// Capability is a named permission a handler requires.
type Capability string

const (
	CapReadDocs     Capability = "read_docs"
	CapWriteDocs    Capability = "write_docs"
	CapAdminProject Capability = "admin_project"
)

var roleCapabilities = map[Role]map[Capability]bool{
	RoleViewer: {
		CapReadDocs: true,
	},
	RoleEditor: {
		CapReadDocs:  true,
		CapWriteDocs: true,
	},
	RoleAdmin: {
		CapReadDocs:     true,
		CapWriteDocs:    true,
		CapAdminProject: true,
	},
}

// ParseRole validates a role string from configuration.
func ParseRole(s string) (Role, error) {
	r := Role(s)
	if _, ok := roleCapabilities[r]; !ok {
		return "", errors.ValidationError("unknown role").
			WithContext("role", s).
			Build()
	}
	return r, nil
}

// Can reports whether the role grants the capability.
func (r Role) Can(c Capability) bool {
	return roleCapabilities[r][c]
}

// Principal is an authenticated API caller.
type Principal struct {
	Role     Role
	Projects []string // empty means all projects
}

// Can reports whether the principal holds the capability.
func (p Principal) Can(c Capability) bool {
	return p.Role.Can(c)
}

// AllowsProject reports whether the principal's scope covers a project.
func (p Principal) AllowsProject(id string) bool {
	if len(p.Projects) == 0 {
		return true
	}
	for _, allowed := range p.Projects {
		if allowed == id {
			return true
		}
	}
	return false
}
