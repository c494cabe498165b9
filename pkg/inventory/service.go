package inventory

import (
	"context"
	"strings"

	"github.com/rsbst23/groundup/pkg/authz"
	"github.com/rsbst23/groundup/pkg/tenancy"
)

// Service is the inventory surface. Implementations scope every call to the
// tenant in the tenancy context.
type Service interface {
	List(ctx context.Context, opts ListOptions) ([]*Item, error)
	Get(ctx context.Context, id int64) (*Item, error)
	Create(ctx context.Context, req CreateItemRequest) (*Item, error)
	Update(ctx context.Context, id int64, req UpdateItemRequest) (*Item, error)
	Delete(ctx context.Context, id int64) error
}

type service struct {
	store *Store
}

// NewService creates the unguarded inventory service
func NewService(store *Store) Service {
	return &service{store: store}
}

func (s *service) List(ctx context.Context, opts ListOptions) ([]*Item, error) {
	tc, err := tenancy.Require(ctx)
	if err != nil {
		return nil, err
	}
	return s.store.List(ctx, tc.TenantID(), opts)
}

func (s *service) Get(ctx context.Context, id int64) (*Item, error) {
	tc, err := tenancy.Require(ctx)
	if err != nil {
		return nil, err
	}
	return s.store.Get(ctx, tc.TenantID(), id)
}

func (s *service) Create(ctx context.Context, req CreateItemRequest) (*Item, error) {
	tc, err := tenancy.Require(ctx)
	if err != nil {
		return nil, err
	}
	item := &Item{
		TenantID: tc.TenantID(),
		SKU:      strings.TrimSpace(req.SKU),
		Name:     strings.TrimSpace(req.Name),
		Quantity: req.Quantity,
	}
	if err := s.store.Create(ctx, item); err != nil {
		return nil, err
	}
	return item, nil
}

func (s *service) Update(ctx context.Context, id int64, req UpdateItemRequest) (*Item, error) {
	tc, err := tenancy.Require(ctx)
	if err != nil {
		return nil, err
	}
	return s.store.Update(ctx, tc.TenantID(), id, req)
}

func (s *service) Delete(ctx context.Context, id int64) error {
	tc, err := tenancy.Require(ctx)
	if err != nil {
		return err
	}
	return s.store.Delete(ctx, tc.TenantID(), id)
}

// Register declares the inventory operations in reg
func Register(reg *authz.Registry) error {
	declarations := map[string]authz.Requirement{
		OpList:   authz.RequireAnyPermission(PermissionView),
		OpGet:    authz.RequireAnyPermission(PermissionView),
		OpCreate: authz.RequirePermissions(PermissionCreate),
		OpUpdate: authz.RequirePermissions(PermissionView, PermissionUpdate),
		OpDelete: authz.RequirePermissions(PermissionDelete).WithRoles(DeleteRoles...),
	}
	for op, req := range declarations {
		if err := reg.Register(op, req); err != nil {
			return err
		}
	}
	return nil
}

type guardedService struct {
	next Service
	a    authz.Authorizer
}

// NewGuardedService enforces the inventory requirements before delegating to
// next
func NewGuardedService(next Service, a authz.Authorizer) Service {
	return &guardedService{next: next, a: a}
}

func (g *guardedService) List(ctx context.Context, opts ListOptions) ([]*Item, error) {
	return authz.GuardCall(g.a, OpList, g.next.List)(ctx, opts)
}

func (g *guardedService) Get(ctx context.Context, id int64) (*Item, error) {
	return authz.GuardCall(g.a, OpGet, g.next.Get)(ctx, id)
}

func (g *guardedService) Create(ctx context.Context, req CreateItemRequest) (*Item, error) {
	return authz.GuardCall(g.a, OpCreate, g.next.Create)(ctx, req)
}

func (g *guardedService) Update(ctx context.Context, id int64, req UpdateItemRequest) (*Item, error) {
	return authz.Guard1(g.a, OpUpdate, func(ctx context.Context) (*Item, error) {
		return g.next.Update(ctx, id, req)
	})(ctx)
}

func (g *guardedService) Delete(ctx context.Context, id int64) error {
	return authz.Guard(g.a, OpDelete, func(ctx context.Context) error {
		return g.next.Delete(ctx, id)
	})(ctx)
}
