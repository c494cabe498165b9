package tenants

import (
	"context"
	"errors"
	"fmt"

	"github.com/rsbst23/groundup/pkg/authz"
	"github.com/rsbst23/groundup/pkg/rbac"
	"github.com/rsbst23/groundup/pkg/tenancy"
)

// Service is the tenant management surface. Implementations read the tenant
// and user from the tenancy context.
type Service interface {
	CreateTenant(ctx context.Context, req CreateTenantRequest) (*Tenant, error)
	GetTenant(ctx context.Context, id int64) (*Tenant, error)
	ListTenants(ctx context.Context) ([]*Tenant, error)
	ListMembers(ctx context.Context) ([]*Member, error)
	AddMember(ctx context.Context, req AddMemberRequest) (*Member, error)
	RemoveMember(ctx context.Context, userID int64) error
}

// MembershipStore is the subset of rbac.Store used for memberships
type MembershipStore interface {
	AddMember(ctx context.Context, userID, tenantID int64) (*rbac.UserTenant, error)
	RemoveMember(ctx context.Context, userID, tenantID int64) error
	ListMembers(ctx context.Context, tenantID int64) ([]rbac.UserTenant, error)
	GetRoleByName(ctx context.Context, name string, tenantID *int64) (*rbac.Role, error)
	AssignRole(ctx context.Context, userID, roleID int64, tenantID *int64) (*rbac.UserRole, error)
}

type service struct {
	store       *Store
	memberships MembershipStore
}

// NewService creates the unguarded tenant service
func NewService(store *Store, memberships MembershipStore) Service {
	return &service{store: store, memberships: memberships}
}

// CreateTenant creates a tenant and makes the caller its first member
func (s *service) CreateTenant(ctx context.Context, req CreateTenantRequest) (*Tenant, error) {
	tc, err := tenancy.Require(ctx)
	if err != nil {
		return nil, err
	}

	tenant := &Tenant{Name: req.Name, Slug: req.Slug}
	if err := s.store.CreateTenant(ctx, tenant); err != nil {
		return nil, err
	}
	if _, err := s.memberships.AddMember(ctx, tc.UserID(), tenant.ID); err != nil {
		return nil, fmt.Errorf("failed to add creator to tenant %d: %w", tenant.ID, err)
	}
	return tenant, nil
}

// GetTenant returns the current tenant. Other tenants are reported as not
// found.
func (s *service) GetTenant(ctx context.Context, id int64) (*Tenant, error) {
	tc, err := tenancy.Require(ctx)
	if err != nil {
		return nil, err
	}
	if id != tc.TenantID() {
		return nil, ErrTenantNotFound
	}
	return s.store.GetTenant(ctx, id)
}

// ListTenants returns the tenants the caller belongs to
func (s *service) ListTenants(ctx context.Context) ([]*Tenant, error) {
	tc, err := tenancy.Require(ctx)
	if err != nil {
		return nil, err
	}
	return s.store.ListTenantsForUser(ctx, tc.UserID())
}

// ListMembers returns the members of the current tenant
func (s *service) ListMembers(ctx context.Context) ([]*Member, error) {
	tc, err := tenancy.Require(ctx)
	if err != nil {
		return nil, err
	}

	rows, err := s.memberships.ListMembers(ctx, tc.TenantID())
	if err != nil {
		return nil, err
	}
	members := make([]*Member, 0, len(rows))
	for _, ut := range rows {
		members = append(members, &Member{UserID: ut.UserID, TenantID: ut.TenantID, JoinedAt: ut.JoinedAt})
	}
	return members, nil
}

// AddMember adds a user to the current tenant, optionally assigning a role
func (s *service) AddMember(ctx context.Context, req AddMemberRequest) (*Member, error) {
	tc, err := tenancy.Require(ctx)
	if err != nil {
		return nil, err
	}
	if req.UserID <= 0 {
		return nil, fmt.Errorf("%w: user_id must be positive", ErrInvalidRequest)
	}
	tenantID := tc.TenantID()

	var role *rbac.Role
	if req.Role != "" {
		role, err = s.memberships.GetRoleByName(ctx, req.Role, &tenantID)
		if errors.Is(err, rbac.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrRoleNotFound, req.Role)
		}
		if err != nil {
			return nil, err
		}
	}

	ut, err := s.memberships.AddMember(ctx, req.UserID, tenantID)
	if err != nil {
		return nil, err
	}
	member := &Member{UserID: ut.UserID, TenantID: ut.TenantID, JoinedAt: ut.JoinedAt}

	if role != nil {
		if _, err := s.memberships.AssignRole(ctx, req.UserID, role.ID, &tenantID); err != nil {
			return nil, fmt.Errorf("failed to assign role %s: %w", role.Name, err)
		}
		member.Role = role.Name
	}
	return member, nil
}

// RemoveMember removes a user from the current tenant
func (s *service) RemoveMember(ctx context.Context, userID int64) error {
	tc, err := tenancy.Require(ctx)
	if err != nil {
		return err
	}
	err = s.memberships.RemoveMember(ctx, userID, tc.TenantID())
	if errors.Is(err, rbac.ErrNotFound) {
		return ErrMemberNotFound
	}
	return err
}

// Register declares the tenant operations in reg
func Register(reg *authz.Registry) error {
	view := authz.RequireAnyPermission(PermissionView)
	manage := authz.RequirePermissions(PermissionManage)

	declarations := []struct {
		op  string
		req authz.Requirement
	}{
		{OpCreate, authz.RequireRoles(rbac.SystemAdminRole)},
		{OpGet, view},
		{OpList, view},
		{OpListMembers, view},
		{OpAddMember, manage},
		{OpRemoveMember, manage},
	}
	for _, d := range declarations {
		if err := reg.Register(d.op, d.req); err != nil {
			return err
		}
	}
	return nil
}

type guardedService struct {
	next Service
	a    authz.Authorizer
}

// NewGuardedService enforces the tenant operations' requirements before
// delegating to next
func NewGuardedService(next Service, a authz.Authorizer) Service {
	return &guardedService{next: next, a: a}
}

func (g *guardedService) CreateTenant(ctx context.Context, req CreateTenantRequest) (*Tenant, error) {
	return authz.GuardCall(g.a, OpCreate, g.next.CreateTenant)(ctx, req)
}

func (g *guardedService) GetTenant(ctx context.Context, id int64) (*Tenant, error) {
	return authz.GuardCall(g.a, OpGet, g.next.GetTenant)(ctx, id)
}

func (g *guardedService) ListTenants(ctx context.Context) ([]*Tenant, error) {
	return authz.Guard1(g.a, OpList, g.next.ListTenants)(ctx)
}

func (g *guardedService) ListMembers(ctx context.Context) ([]*Member, error) {
	return authz.Guard1(g.a, OpListMembers, g.next.ListMembers)(ctx)
}

func (g *guardedService) AddMember(ctx context.Context, req AddMemberRequest) (*Member, error) {
	return authz.GuardCall(g.a, OpAddMember, g.next.AddMember)(ctx, req)
}

func (g *guardedService) RemoveMember(ctx context.Context, userID int64) error {
	return authz.Guard(g.a, OpRemoveMember, func(ctx context.Context) error {
		return g.next.RemoveMember(ctx, userID)
	})(ctx)
}
