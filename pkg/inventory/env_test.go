package inventory

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/rsbst23/groundup/pkg/authz"
	"github.com/rsbst23/groundup/pkg/rbac"
	"github.com/rsbst23/groundup/pkg/rbac/rbactest"
	"github.com/rsbst23/groundup/pkg/tenancy"
)

// itemsSchema mirrors Migrations in SQLite syntax
const itemsSchema = `
	CREATE TABLE inventory_items (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		tenant_id INTEGER NOT NULL REFERENCES tenants(id) ON DELETE CASCADE,
		sku TEXT NOT NULL,
		name TEXT NOT NULL,
		quantity INTEGER NOT NULL DEFAULT 0 CHECK (quantity >= 0),
		created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
		updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
		UNIQUE (tenant_id, sku)
	);
`

// Users in the test environment
const (
	manager  int64 = 1 // Manager in T1: view, create
	owner    int64 = 2 // global Owner: view, create, update, delete
	member   int64 = 3 // member of T1 without roles
	auditor  int64 = 4 // Auditor in T1: delete only
	stranger int64 = 5 // not a member
)

type env struct {
	t1, t2  int64
	db      *sql.DB
	store   *Store
	service Service
}

func newEnv(t *testing.T) *env {
	t.Helper()

	db := rbactest.OpenDB(t, itemsSchema)
	rbacStore := rbac.NewStore(db)
	fx := rbactest.NewFixture(t, db, rbacStore)

	e := &env{t1: fx.Tenant("T1"), t2: fx.Tenant("T2"), db: db, store: NewStore(db)}

	admin := fx.Policy("InventoryAdmin", PermissionView, PermissionCreate)
	full := fx.Policy("InventoryFull", PermissionView, PermissionCreate, PermissionUpdate, PermissionDelete)
	deleteOnly := fx.Policy("InventoryDelete", PermissionDelete)

	managerRole := fx.Role("Manager", rbactest.ID(e.t1), admin)
	ownerRole := fx.Role("Owner", nil, full)
	auditorRole := fx.Role("Auditor", rbactest.ID(e.t1), deleteOnly)

	fx.Member(manager, e.t1)
	fx.Assign(manager, managerRole, rbactest.ID(e.t1))
	fx.Member(owner, e.t1)
	fx.Member(owner, e.t2)
	fx.Assign(owner, ownerRole, nil)
	fx.Member(member, e.t1)
	fx.Member(auditor, e.t1)
	fx.Assign(auditor, auditorRole, rbactest.ID(e.t1))

	reg := authz.NewRegistry()
	require.NoError(t, Register(reg))
	reg.Freeze()
	interceptor, err := authz.NewInterceptor(reg, rbac.NewResolver(rbacStore))
	require.NoError(t, err)

	e.service = NewGuardedService(NewService(e.store), interceptor)
	return e
}

func as(t *testing.T, tenantID, userID int64) context.Context {
	t.Helper()
	ctx, err := tenancy.WithContext(context.Background(), tenancy.New(tenantID, userID))
	require.NoError(t, err)
	return ctx
}

func requireReason(t *testing.T, err error, reason authz.Reason) *authz.Denial {
	t.Helper()
	d, ok := authz.AsDenial(err)
	require.True(t, ok, "expected denial, got %v", err)
	require.Equal(t, reason, d.Reason)
	return d
}
