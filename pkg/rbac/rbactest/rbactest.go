// Package rbactest provides an in-memory SQLite schema equivalent to the
// PostgreSQL migrations, fixture builders and Postgres skip helpers for
// tests.
package rbactest

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"

	"github.com/rsbst23/groundup/pkg/rbac"
)

// Schema mirrors rbac.Migrations in SQLite syntax
const Schema = `
	CREATE TABLE tenants (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL,
		slug TEXT NOT NULL UNIQUE,
		created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
		updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE roles (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL,
		tenant_id INTEGER REFERENCES tenants(id) ON DELETE CASCADE,
		created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
		updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
	);
	CREATE UNIQUE INDEX idx_roles_name_tenant ON roles(name, COALESCE(tenant_id, 0));

	CREATE TABLE policies (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL,
		tenant_id INTEGER REFERENCES tenants(id) ON DELETE CASCADE,
		created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE permissions (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		code TEXT NOT NULL UNIQUE,
		description TEXT NOT NULL DEFAULT ''
	);

	CREATE TABLE role_policies (
		role_id INTEGER NOT NULL REFERENCES roles(id) ON DELETE CASCADE,
		policy_id INTEGER NOT NULL REFERENCES policies(id) ON DELETE CASCADE,
		PRIMARY KEY (role_id, policy_id)
	);

	CREATE TABLE policy_permissions (
		policy_id INTEGER NOT NULL REFERENCES policies(id) ON DELETE CASCADE,
		permission_id INTEGER NOT NULL REFERENCES permissions(id) ON DELETE CASCADE,
		PRIMARY KEY (policy_id, permission_id)
	);

	CREATE TABLE user_tenants (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		user_id INTEGER NOT NULL,
		tenant_id INTEGER NOT NULL REFERENCES tenants(id) ON DELETE CASCADE,
		joined_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
		UNIQUE (user_id, tenant_id)
	);

	CREATE TABLE user_roles (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		user_id INTEGER NOT NULL,
		role_id INTEGER NOT NULL REFERENCES roles(id) ON DELETE CASCADE,
		tenant_id INTEGER REFERENCES tenants(id) ON DELETE CASCADE,
		granted_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
	);
	CREATE UNIQUE INDEX idx_user_roles_unique ON user_roles(user_id, role_id, COALESCE(tenant_id, 0));
`

var dbSeq atomic.Int64

// OpenDB opens a private in-memory SQLite database with Schema plus any
// extra DDL applied. It is closed when the test ends.
func OpenDB(t testing.TB, extraSchema ...string) *sql.DB {
	t.Helper()

	// A named shared-cache database keeps every pooled connection on the
	// same data while staying isolated from other tests and other calls.
	dsn := fmt.Sprintf("file:%s_%d?mode=memory&cache=shared&_foreign_keys=on",
		strings.NewReplacer("/", "_", " ", "_").Replace(t.Name()), dbSeq.Add(1))
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })

	for _, ddl := range append([]string{Schema}, extraSchema...) {
		if _, err := db.Exec(ddl); err != nil {
			t.Fatalf("Failed to create schema: %v", err)
		}
	}
	return db
}

// Fixture seeds tenants, memberships and the role graph through rbac.Store
type Fixture struct {
	t     testing.TB
	db    *sql.DB
	Store *rbac.Store
}

// NewFixture creates a fixture writing through store
func NewFixture(t testing.TB, db *sql.DB, store *rbac.Store) *Fixture {
	return &Fixture{t: t, db: db, Store: store}
}

// Tenant inserts a tenant row
func (f *Fixture) Tenant(name string) int64 {
	f.t.Helper()
	now := time.Now().UTC()
	var id int64
	err := f.db.QueryRow(
		`INSERT INTO tenants (name, slug, created_at, updated_at) VALUES ($1, $2, $3, $4) RETURNING id`,
		name, strings.ToLower(name), now, now,
	).Scan(&id)
	if err != nil {
		f.t.Fatalf("Failed to create tenant %s: %v", name, err)
	}
	return id
}

// Member adds a membership
func (f *Fixture) Member(userID, tenantID int64) {
	f.t.Helper()
	if _, err := f.Store.AddMember(context.Background(), userID, tenantID); err != nil {
		f.t.Fatalf("Failed to add member: %v", err)
	}
}

// Policy creates a policy granting codes, creating missing permissions
func (f *Fixture) Policy(name string, codes ...string) *rbac.Policy {
	f.t.Helper()
	ctx := context.Background()

	policy := &rbac.Policy{Name: name}
	if err := f.Store.CreatePolicy(ctx, policy); err != nil {
		f.t.Fatalf("Failed to create policy %s: %v", name, err)
	}

	for _, code := range codes {
		perm, err := f.Store.GetPermissionByCode(ctx, code)
		if err != nil {
			perm = &rbac.Permission{Code: code}
			if err := f.Store.CreatePermission(ctx, perm); err != nil {
				f.t.Fatalf("Failed to create permission %s: %v", code, err)
			}
		}
		if err := f.Store.GrantPermission(ctx, policy.ID, perm.ID); err != nil {
			f.t.Fatalf("Failed to grant %s: %v", code, err)
		}
	}
	return policy
}

// Role creates a role (global when tenantID is nil) with policies attached
func (f *Fixture) Role(name string, tenantID *int64, policies ...*rbac.Policy) *rbac.Role {
	f.t.Helper()
	ctx := context.Background()

	role := &rbac.Role{Name: name, TenantID: tenantID}
	if err := f.Store.CreateRole(ctx, role); err != nil {
		f.t.Fatalf("Failed to create role %s: %v", name, err)
	}
	for _, p := range policies {
		if err := f.Store.AttachPolicy(ctx, role.ID, p.ID); err != nil {
			f.t.Fatalf("Failed to attach policy %s: %v", p.Name, err)
		}
	}
	return role
}

// Assign grants role to user in tenantID (global when nil)
func (f *Fixture) Assign(userID int64, role *rbac.Role, tenantID *int64) {
	f.t.Helper()
	if _, err := f.Store.AssignRole(context.Background(), userID, role.ID, tenantID); err != nil {
		f.t.Fatalf("Failed to assign role %s: %v", role.Name, err)
	}
}

// ID returns a pointer to id, for nullable tenant arguments
func ID(id int64) *int64 {
	return &id
}

// RequirePostgres opens the database named by TEST_POSTGRES_PRIMARY or skips
// the test when it is unset or unreachable.
func RequirePostgres(t testing.TB) *sql.DB {
	t.Helper()

	dbURL := os.Getenv("TEST_POSTGRES_PRIMARY")
	if dbURL == "" {
		t.Skip("Skipping test: TEST_POSTGRES_PRIMARY environment variable not set (database not available)")
	}

	db, err := sql.Open("postgres", dbURL)
	if err != nil {
		t.Skipf("Failed to connect to database: %v", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		t.Skipf("Database not reachable: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}
