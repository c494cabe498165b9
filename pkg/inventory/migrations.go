package inventory

import (
	"context"
	"database/sql"

	"github.com/rsbst23/groundup/pkg/storage"
)

// MigrationsTable records applied inventory schema versions
const MigrationsTable = "inventory_migrations"

// Migrations returns the PostgreSQL schema for inventory items. It depends
// on the tenants table created by the rbac migrations.
func Migrations() []storage.Migration {
	return []storage.Migration{
		{
			Version:     1,
			Description: "Create inventory_items table",
			SQL: `
				CREATE TABLE IF NOT EXISTS inventory_items (
					id BIGSERIAL PRIMARY KEY,
					tenant_id BIGINT NOT NULL REFERENCES tenants(id) ON DELETE CASCADE,
					sku VARCHAR(128) NOT NULL,
					name VARCHAR(255) NOT NULL,
					quantity INTEGER NOT NULL DEFAULT 0 CHECK (quantity >= 0),
					created_at TIMESTAMP NOT NULL DEFAULT NOW(),
					updated_at TIMESTAMP NOT NULL DEFAULT NOW(),
					UNIQUE (tenant_id, sku)
				);
				CREATE INDEX IF NOT EXISTS idx_inventory_items_tenant_name ON inventory_items(tenant_id, name);
			`,
		},
	}
}

// RunMigrations applies pending inventory migrations
func RunMigrations(ctx context.Context, db *sql.DB) error {
	return storage.Migrate(ctx, db, MigrationsTable, Migrations())
}
