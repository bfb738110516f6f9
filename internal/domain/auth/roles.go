package auth

import "strings"

type Role string

const (
	RoleEmployee Role = "employee"
	RoleHR       Role = "hr"
	RoleManager  Role = "manager"
	RoleUnknown  Role = "unknown"
)

// PrivilegedRoles may call every protected operation.
var PrivilegedRoles = []Role{RoleHR, RoleManager}

var knownRoles = []Role{RoleEmployee, RoleHR, RoleManager}

// ParseRole maps any unrecognized value to RoleUnknown.
func ParseRole(raw string) Role {
	normalized := Role(strings.ToLower(strings.TrimSpace(raw)))
	for _, role := range knownRoles {
		if role == normalized {
			return role
		}
	}
	return RoleUnknown
}

func (r Role) Valid() bool {
	return ParseRole(string(r)) != RoleUnknown
}

func (r Role) String() string {
	return string(r)
}

func KnownRoles() []string {
	out := make([]string, 0, len(knownRoles))
	for _, role := range knownRoles {
		out = append(out, string(role))
	}
	return out
}

// Allows reports whether r is one of allowed. RoleUnknown never matches.
func (r Role) Allows(allowed ...Role) bool {
	if !r.Valid() {
		return false
	}
	for _, candidate := range allowed {
		if candidate == r {
			return true
		}
	}
	return false
}
