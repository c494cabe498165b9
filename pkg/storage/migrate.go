package storage

import (
	"context"
	"database/sql"
	"fmt"
	"regexp"
	"sort"
)

// Migration represents a versioned schema change
type Migration struct {
	Version     int
	Description string
	SQL         string
}

var tableNamePattern = regexp.MustCompile(`^[a-z_][a-z0-9_]*$`)

// Migrate applies the pending migrations in version order, each in its own
// transaction, recording applied versions in table.
func Migrate(ctx context.Context, db *sql.DB, table string, migrations []Migration) error {
	if !tableNamePattern.MatchString(table) {
		return fmt.Errorf("invalid migrations table name %q", table)
	}

	_, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS `+table+` (
			version INT PRIMARY KEY,
			description TEXT NOT NULL,
			applied_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create migrations table: %w", err)
	}

	applied, err := appliedVersions(ctx, db, table)
	if err != nil {
		return err
	}

	pending := make([]Migration, 0, len(migrations))
	for _, m := range migrations {
		if !applied[m.Version] {
			pending = append(pending, m)
		}
	}
	sort.Slice(pending, func(i, j int) bool { return pending[i].Version < pending[j].Version })

	for _, m := range pending {
		if err := applyMigration(ctx, db, table, m); err != nil {
			return err
		}
	}
	return nil
}

func appliedVersions(ctx context.Context, db *sql.DB, table string) (map[int]bool, error) {
	rows, err := db.QueryContext(ctx, "SELECT version FROM "+table+" ORDER BY version")
	if err != nil {
		return nil, fmt.Errorf("failed to query migrations: %w", err)
	}
	defer rows.Close()

	applied := make(map[int]bool)
	for rows.Next() {
		var version int
		if err := rows.Scan(&version); err != nil {
			return nil, fmt.Errorf("failed to scan migration version: %w", err)
		}
		applied[version] = true
	}
	return applied, rows.Err()
}

func applyMigration(ctx context.Context, db *sql.DB, table string, m Migration) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to start transaction: %w", err)
	}

	if _, err := tx.ExecContext(ctx, m.SQL); err != nil {
		tx.Rollback()
		return fmt.Errorf("failed to execute migration %d (%s): %w", m.Version, m.Description, err)
	}

	if _, err := tx.ExecContext(ctx,
		"INSERT INTO "+table+" (version, description) VALUES ($1, $2)",
		m.Version, m.Description,
	); err != nil {
		tx.Rollback()
		return fmt.Errorf("failed to record migration %d: %w", m.Version, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit migration %d: %w", m.Version, err)
	}
	return nil
}
