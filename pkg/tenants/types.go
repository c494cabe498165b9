package tenants

import (
	"errors"
	"time"
)

// Operation names declared in the authorization table
const (
	OpCreate       = "tenants.create"
	OpGet          = "tenants.get"
	OpList         = "tenants.list"
	OpListMembers  = "tenants.members.list"
	OpAddMember    = "tenants.members.add"
	OpRemoveMember = "tenants.members.remove"
)

// Permission codes checked by tenant operations
const (
	PermissionView   = "tenants.view"
	PermissionManage = "tenants.manage"
)

var (
	// ErrTenantNotFound is returned when a tenant does not exist or is not
	// visible from the current tenant context
	ErrTenantNotFound = errors.New("tenant not found")
	// ErrSlugTaken is returned when an explicit slug is already in use
	ErrSlugTaken = errors.New("tenant slug already in use")
	// ErrRoleNotFound is returned when a membership names an unknown role
	ErrRoleNotFound = errors.New("role not found")
	// ErrMemberNotFound is returned when removing a user who is not a member
	ErrMemberNotFound = errors.New("member not found")
	// ErrInvalidRequest is returned for requests that fail validation
	ErrInvalidRequest = errors.New("invalid request")
)

// Tenant is an isolated customer partition
type Tenant struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Slug      string    `json:"slug"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// CreateTenantRequest is the input of tenants.create
type CreateTenantRequest struct {
	Name string `json:"name" validate:"required,max=255"`
	Slug string `json:"slug,omitempty" validate:"omitempty,max=255"`
}

// AddMemberRequest is the input of tenants.members.add. Role optionally names
// a role to assign in the tenant.
type AddMemberRequest struct {
	UserID int64  `json:"user_id" validate:"gt=0"`
	Role   string `json:"role,omitempty" validate:"max=255"`
}

// Member is a user's membership in a tenant
type Member struct {
	UserID   int64     `json:"user_id"`
	TenantID int64     `json:"tenant_id"`
	Role     string    `json:"role,omitempty"`
	JoinedAt time.Time `json:"joined_at"`
}
