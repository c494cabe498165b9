package authz

import (
	"fmt"
	"strings"

	"github.com/rsbst23/groundup/pkg/rbac"
)

// Requirement declares what a caller must hold to run an operation.
//
// Roles are always matched ANY-of. Permissions are matched ALL-of when
// RequireAll is set and ANY-of otherwise. When both lists are present both
// checks must pass. An empty requirement never blocks.
type Requirement struct {
	Permissions   []string `yaml:"permissions,omitempty" json:"permissions,omitempty"`
	RequiredRoles []string `yaml:"roles,omitempty" json:"roles,omitempty"`
	RequireAll    bool     `yaml:"require_all,omitempty" json:"require_all,omitempty"`
}

// RequirePermissions requires every listed permission
func RequirePermissions(perms ...string) Requirement {
	return Requirement{Permissions: clone(perms), RequireAll: true}
}

// RequireAnyPermission requires at least one listed permission
func RequireAnyPermission(perms ...string) Requirement {
	return Requirement{Permissions: clone(perms)}
}

// RequireRoles requires at least one listed role
func RequireRoles(roles ...string) Requirement {
	return Requirement{RequiredRoles: clone(roles)}
}

// WithRoles returns a copy of r that additionally requires one of roles
func (r Requirement) WithRoles(roles ...string) Requirement {
	out := r.clone()
	out.RequiredRoles = append(out.RequiredRoles, roles...)
	return out
}

// IsEmpty reports whether r places no constraint on the caller
func (r Requirement) IsEmpty() bool {
	return len(r.Permissions) == 0 && len(r.RequiredRoles) == 0
}

func (r Requirement) String() string {
	var parts []string
	if len(r.Permissions) > 0 {
		mode := "any"
		if r.RequireAll {
			mode = "all"
		}
		parts = append(parts, fmt.Sprintf("permissions(%s)=[%s]", mode, strings.Join(r.Permissions, ",")))
	}
	if len(r.RequiredRoles) > 0 {
		parts = append(parts, fmt.Sprintf("roles(any)=[%s]", strings.Join(r.RequiredRoles, ",")))
	}
	if len(parts) == 0 {
		return "none"
	}
	return strings.Join(parts, " ")
}

// evaluate returns what grants lacks to satisfy r. Both results are nil when
// r is satisfied.
func (r Requirement) evaluate(grants *rbac.GrantSet) (missingPerms, missingRoles []string) {
	if len(r.RequiredRoles) > 0 {
		held := false
		for _, role := range r.RequiredRoles {
			if grants.HasRole(role) {
				held = true
				break
			}
		}
		if !held {
			missingRoles = r.RequiredRoles
		}
	}

	if len(r.Permissions) > 0 {
		if r.RequireAll {
			for _, perm := range r.Permissions {
				if !grants.HasPermission(perm) {
					missingPerms = append(missingPerms, perm)
				}
			}
		} else {
			held := false
			for _, perm := range r.Permissions {
				if grants.HasPermission(perm) {
					held = true
					break
				}
			}
			if !held {
				missingPerms = r.Permissions
			}
		}
	}

	return missingPerms, missingRoles
}

func (r Requirement) clone() Requirement {
	return Requirement{
		Permissions:   clone(r.Permissions),
		RequiredRoles: clone(r.RequiredRoles),
		RequireAll:    r.RequireAll,
	}
}

func clone(in []string) []string {
	if len(in) == 0 {
		return nil
	}
	out := make([]string, len(in))
	copy(out, in)
	return out
}
