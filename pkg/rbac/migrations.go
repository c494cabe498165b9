package rbac

import (
	"context"
	"database/sql"
	"errors"

	"github.com/rsbst23/groundup/pkg/storage"
)

// MigrationsTable records applied RBAC schema versions
const MigrationsTable = "rbac_migrations"

// Migrations returns the PostgreSQL schema for tenants, memberships and the
// role → policy → permission graph
func Migrations() []storage.Migration {
	return []storage.Migration{
		{
			Version:     1,
			Description: "Create tenants table",
			SQL: `
				CREATE TABLE IF NOT EXISTS tenants (
					id BIGSERIAL PRIMARY KEY,
					name VARCHAR(255) NOT NULL,
					slug VARCHAR(255) NOT NULL UNIQUE,
					created_at TIMESTAMP NOT NULL DEFAULT NOW(),
					updated_at TIMESTAMP NOT NULL DEFAULT NOW()
				);
			`,
		},
		{
			Version:     2,
			Description: "Create roles, policies and permissions tables",
			SQL: `
				CREATE TABLE IF NOT EXISTS roles (
					id BIGSERIAL PRIMARY KEY,
					name VARCHAR(255) NOT NULL,
					tenant_id BIGINT REFERENCES tenants(id) ON DELETE CASCADE,
					created_at TIMESTAMP NOT NULL DEFAULT NOW(),
					updated_at TIMESTAMP NOT NULL DEFAULT NOW()
				);
				CREATE UNIQUE INDEX IF NOT EXISTS idx_roles_name_tenant ON roles(name, COALESCE(tenant_id, 0));

				CREATE TABLE IF NOT EXISTS policies (
					id BIGSERIAL PRIMARY KEY,
					name VARCHAR(255) NOT NULL,
					tenant_id BIGINT REFERENCES tenants(id) ON DELETE CASCADE,
					created_at TIMESTAMP NOT NULL DEFAULT NOW()
				);
				CREATE UNIQUE INDEX IF NOT EXISTS idx_policies_name_tenant ON policies(name, COALESCE(tenant_id, 0));

				CREATE TABLE IF NOT EXISTS permissions (
					id BIGSERIAL PRIMARY KEY,
					code VARCHAR(255) NOT NULL UNIQUE,
					description TEXT NOT NULL DEFAULT ''
				);
			`,
		},
		{
			Version:     3,
			Description: "Create role_policies and policy_permissions join tables",
			SQL: `
				CREATE TABLE IF NOT EXISTS role_policies (
					role_id BIGINT NOT NULL REFERENCES roles(id) ON DELETE CASCADE,
					policy_id BIGINT NOT NULL REFERENCES policies(id) ON DELETE CASCADE,
					PRIMARY KEY (role_id, policy_id)
				);
				CREATE INDEX IF NOT EXISTS idx_role_policies_policy_id ON role_policies(policy_id);

				CREATE TABLE IF NOT EXISTS policy_permissions (
					policy_id BIGINT NOT NULL REFERENCES policies(id) ON DELETE CASCADE,
					permission_id BIGINT NOT NULL REFERENCES permissions(id) ON DELETE CASCADE,
					PRIMARY KEY (policy_id, permission_id)
				);
			`,
		},
		{
			Version:     4,
			Description: "Create user_tenants and user_roles tables",
			SQL: `
				CREATE TABLE IF NOT EXISTS user_tenants (
					id BIGSERIAL PRIMARY KEY,
					user_id BIGINT NOT NULL,
					tenant_id BIGINT NOT NULL REFERENCES tenants(id) ON DELETE CASCADE,
					joined_at TIMESTAMP NOT NULL DEFAULT NOW(),
					UNIQUE (user_id, tenant_id)
				);
				CREATE INDEX IF NOT EXISTS idx_user_tenants_tenant_id ON user_tenants(tenant_id);

				CREATE TABLE IF NOT EXISTS user_roles (
					id BIGSERIAL PRIMARY KEY,
					user_id BIGINT NOT NULL,
					role_id BIGINT NOT NULL REFERENCES roles(id) ON DELETE CASCADE,
					tenant_id BIGINT REFERENCES tenants(id) ON DELETE CASCADE,
					granted_at TIMESTAMP NOT NULL DEFAULT NOW()
				);
				CREATE UNIQUE INDEX IF NOT EXISTS idx_user_roles_unique ON user_roles(user_id, role_id, COALESCE(tenant_id, 0));
				CREATE INDEX IF NOT EXISTS idx_user_roles_user_tenant ON user_roles(user_id, tenant_id);
			`,
		},
	}
}

// RunMigrations applies pending RBAC migrations
func RunMigrations(ctx context.Context, db *sql.DB) error {
	return storage.Migrate(ctx, db, MigrationsTable, Migrations())
}

// EnsureSystemAdminRole creates the global system:admin role if missing
func EnsureSystemAdminRole(ctx context.Context, store *Store) (*Role, error) {
	role, err := store.GetRoleByName(ctx, SystemAdminRole, nil)
	if err == nil {
		return role, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, err
	}

	role = &Role{Name: SystemAdminRole}
	if err := store.CreateRole(ctx, role); err != nil {
		return nil, err
	}
	return role, nil
}
