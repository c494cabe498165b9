package rbac

import (
	"sort"
	"time"
)

// SystemAdminRole is the global role allowed to manage tenants
const SystemAdminRole = "system:admin"

// Role is a named bundle of policies. A nil TenantID makes the role global:
// it can be assigned in any tenant.
type Role struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	TenantID  *int64    `json:"tenant_id,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// IsGlobal reports whether the role is tenant-agnostic
func (r Role) IsGlobal() bool {
	return r.TenantID == nil
}

// AppliesTo reports whether the role may contribute grants in tenantID
func (r Role) AppliesTo(tenantID int64) bool {
	return r.TenantID == nil || *r.TenantID == tenantID
}

// Policy is a named group of permissions
type Policy struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	TenantID  *int64    `json:"tenant_id,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// AppliesTo reports whether the policy may contribute grants in tenantID
func (p Policy) AppliesTo(tenantID int64) bool {
	return p.TenantID == nil || *p.TenantID == tenantID
}

// Permission is an atomic capability such as "inventory.view"
type Permission struct {
	ID          int64  `json:"id"`
	Code        string `json:"code"`
	Description string `json:"description,omitempty"`
}

// RolePolicy links a role to a policy
type RolePolicy struct {
	RoleID   int64 `json:"role_id"`
	PolicyID int64 `json:"policy_id"`
}

// UserTenant is a user's membership in a tenant
type UserTenant struct {
	ID       int64     `json:"id"`
	UserID   int64     `json:"user_id"`
	TenantID int64     `json:"tenant_id"`
	JoinedAt time.Time `json:"joined_at"`
}

// UserRole assigns a role to a user. A nil TenantID is a global assignment
// that applies in every tenant the user is a member of.
type UserRole struct {
	ID        int64     `json:"id"`
	UserID    int64     `json:"user_id"`
	RoleID    int64     `json:"role_id"`
	TenantID  *int64    `json:"tenant_id,omitempty"`
	GrantedAt time.Time `json:"granted_at"`
}

// GrantSet is the flattened set of permission codes and role names a user
// holds in one tenant. It is immutable once built and safe to share.
type GrantSet struct {
	permissions map[string]struct{}
	roles       map[string]struct{}
}

// NewGrantSet builds a grant set; duplicates collapse
func NewGrantSet(permissions, roles []string) *GrantSet {
	g := &GrantSet{
		permissions: make(map[string]struct{}, len(permissions)),
		roles:       make(map[string]struct{}, len(roles)),
	}
	for _, p := range permissions {
		g.permissions[p] = struct{}{}
	}
	for _, r := range roles {
		g.roles[r] = struct{}{}
	}
	return g
}

// HasPermission reports whether code is granted
func (g *GrantSet) HasPermission(code string) bool {
	if g == nil {
		return false
	}
	_, ok := g.permissions[code]
	return ok
}

// HasRole reports whether the role name is held
func (g *GrantSet) HasRole(name string) bool {
	if g == nil {
		return false
	}
	_, ok := g.roles[name]
	return ok
}

// Permissions returns the granted codes in sorted order
func (g *GrantSet) Permissions() []string {
	if g == nil {
		return nil
	}
	return sortedKeys(g.permissions)
}

// Roles returns the held role names in sorted order
func (g *GrantSet) Roles() []string {
	if g == nil {
		return nil
	}
	return sortedKeys(g.roles)
}

// IsEmpty is true for a member with no effective grants
func (g *GrantSet) IsEmpty() bool {
	return g == nil || (len(g.permissions) == 0 && len(g.roles) == 0)
}

func sortedKeys(m map[string]struct{}) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
