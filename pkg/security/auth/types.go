package auth

import "strings"

// rolePrefix is stripped from role names, so "ROLE_ADMIN" and "ADMIN" match.
const rolePrefix = "ROLE_"

// DefaultAdminRole bypasses table grants.
const DefaultAdminRole = "ADMIN"

// Identity is the authenticated caller of an operation.
type Identity struct {
	Username string
	Roles    []string
}

// HasRole reports whether the identity carries role. Comparison ignores case
// and the "ROLE_" prefix.
func (i Identity) HasRole(role string) bool {
	want := normalizeRole(role)
	if want == "" {
		return false
	}
	for _, r := range i.Roles {
		if normalizeRole(r) == want {
			return true
		}
	}
	return false
}

// ParseRoles splits a comma-separated role list.
func ParseRoles(s string) []string {
	var roles []string
	for _, r := range strings.Split(s, ",") {
		if r = strings.TrimSpace(r); r != "" {
			roles = append(roles, r)
		}
	}
	return roles
}

func normalizeRole(role string) string {
	role = strings.ToUpper(strings.TrimSpace(role))
	return strings.TrimPrefix(role, rolePrefix)
}
