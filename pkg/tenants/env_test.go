package tenants

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/rsbst23/groundup/pkg/authz"
	"github.com/rsbst23/groundup/pkg/rbac"
	"github.com/rsbst23/groundup/pkg/rbac/rbactest"
	"github.com/rsbst23/groundup/pkg/tenancy"
)

// Users in the test environment
const (
	adminUser   int64 = 1 // global system:admin, member of home
	managerUser int64 = 2 // TenantManager in home
	plainUser   int64 = 3 // member of home without roles
	outsider    int64 = 4 // not a member anywhere
)

type env struct {
	home    int64
	other   int64
	store   *Store
	rbac    *rbac.Store
	cache   *rbac.CachingResolver
	service Service
}

func newEnv(t *testing.T) *env {
	t.Helper()

	db := rbactest.OpenDB(t)
	bus := rbac.NewLocalBus()
	rbacStore := rbac.NewStore(db, rbac.WithPublisher(bus))
	fx := rbactest.NewFixture(t, db, rbacStore)

	e := &env{
		home:  fx.Tenant("Home"),
		other: fx.Tenant("Other"),
		store: NewStore(db),
		rbac:  rbacStore,
	}

	sysadmin := fx.Role(rbac.SystemAdminRole, nil)
	manage := fx.Policy("TenantAdministration", PermissionView, PermissionManage)
	manager := fx.Role("TenantManager", rbactest.ID(e.home), manage)
	fx.Role("Viewer", nil, fx.Policy("TenantReadOnly", PermissionView))

	fx.Member(adminUser, e.home)
	fx.Assign(adminUser, sysadmin, nil)
	fx.Member(managerUser, e.home)
	fx.Assign(managerUser, manager, rbactest.ID(e.home))
	fx.Member(plainUser, e.home)

	var err error
	e.cache, err = rbac.NewCachingResolver(context.Background(), rbac.NewResolver(rbacStore), bus, rbac.CacheConfig{}, nil)
	require.NoError(t, err)
	t.Cleanup(func() { e.cache.Close() })

	reg := authz.NewRegistry()
	require.NoError(t, Register(reg))
	reg.Freeze()
	interceptor, err := authz.NewInterceptor(reg, e.cache)
	require.NoError(t, err)

	e.service = NewGuardedService(NewService(e.store, rbacStore), interceptor)
	return e
}

func as(t *testing.T, tenantID, userID int64) context.Context {
	t.Helper()
	ctx, err := tenancy.WithContext(context.Background(), tenancy.New(tenantID, userID))
	require.NoError(t, err)
	return ctx
}
