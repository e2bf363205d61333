package auth

import "strings"

// Role is the caller's access level. Admins may do everything viewers can.
type Role string

const (
	RoleViewer Role = "viewer"
	RoleAdmin  Role = "admin"
)

// ParseRole accepts a role name in any case.
func ParseRole(value string) (Role, bool) {
	switch role := Role(strings.ToLower(strings.TrimSpace(value))); role {
	case RoleViewer, RoleAdmin:
		return role, true
	default:
		return "", false
	}
}

// Allows reports whether r satisfies required.
func (r Role) Allows(required Role) bool {
	return r.level() >= required.level() && r.level() > 0
}

func (r Role) level() int {
	switch r {
	case RoleViewer:
		return 1
	case RoleAdmin:
		return 2
	}
	return 0
}
