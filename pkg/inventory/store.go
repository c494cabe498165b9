package inventory

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Masterminds/squirrel"

	"github.com/rsbst23/groundup/pkg/storage"
)

// Store persists inventory items. Every method takes the tenant explicitly
// and never touches rows of another tenant.
type Store struct {
	db      *sql.DB
	builder squirrel.StatementBuilderType
}

// NewStore creates an inventory store
func NewStore(db *sql.DB) *Store {
	return &Store{
		db:      db,
		builder: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

// List returns the tenant's items ordered by name
func (s *Store) List(ctx context.Context, tenantID int64, opts ListOptions) ([]*Item, error) {
	opts = opts.normalize()
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, tenant_id, sku, name, quantity, created_at, updated_at
		FROM inventory_items
		WHERE tenant_id = $1
		ORDER BY name, id
		LIMIT $2 OFFSET $3
	`, tenantID, opts.Limit, opts.Offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list items: %w", err)
	}
	defer rows.Close()

	items := []*Item{}
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

// Get retrieves one of the tenant's items
func (s *Store) Get(ctx context.Context, tenantID, id int64) (*Item, error) {
	item, err := scanItem(s.db.QueryRowContext(ctx, `
		SELECT id, tenant_id, sku, name, quantity, created_at, updated_at
		FROM inventory_items
		WHERE tenant_id = $1 AND id = $2
	`, tenantID, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrItemNotFound
	}
	return item, err
}

// Create inserts item for its tenant
func (s *Store) Create(ctx context.Context, item *Item) error {
	if err := validate(item.SKU, item.Name, item.Quantity); err != nil {
		return err
	}

	var exists bool
	if err := s.db.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM inventory_items WHERE tenant_id = $1 AND sku = $2)`,
		item.TenantID, item.SKU,
	).Scan(&exists); err != nil {
		return fmt.Errorf("failed to check sku: %w", err)
	}
	if exists {
		return fmt.Errorf("%w: %s", ErrDuplicateSKU, item.SKU)
	}

	now := time.Now().UTC()
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO inventory_items (tenant_id, sku, name, quantity, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $5)
		RETURNING id
	`, item.TenantID, item.SKU, item.Name, item.Quantity, now).Scan(&item.ID)
	if storage.IsUniqueViolation(err) {
		return fmt.Errorf("%w: %s", ErrDuplicateSKU, item.SKU)
	}
	if err != nil {
		return fmt.Errorf("failed to create item: %w", err)
	}
	item.CreatedAt = now
	item.UpdatedAt = now
	return nil
}

// Update applies the non-nil fields of req to one of the tenant's items
func (s *Store) Update(ctx context.Context, tenantID, id int64, req UpdateItemRequest) (*Item, error) {
	stmt := s.builder.Update("inventory_items")
	changed := false

	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name == "" {
			return nil, fmt.Errorf("%w: name is required", ErrInvalidItem)
		}
		stmt = stmt.Set("name", name)
		changed = true
	}
	if req.Quantity != nil {
		if *req.Quantity < 0 {
			return nil, fmt.Errorf("%w: quantity must not be negative", ErrInvalidItem)
		}
		stmt = stmt.Set("quantity", *req.Quantity)
		changed = true
	}

	if !changed {
		return s.Get(ctx, tenantID, id)
	}

	query, args, err := stmt.
		Set("updated_at", time.Now().UTC()).
		Where(squirrel.Eq{"tenant_id": tenantID, "id": id}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build update item sql: %w", err)
	}

	result, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to update item: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("failed to update item: %w", err)
	}
	if n == 0 {
		return nil, ErrItemNotFound
	}
	return s.Get(ctx, tenantID, id)
}

// Delete removes one of the tenant's items
func (s *Store) Delete(ctx context.Context, tenantID, id int64) error {
	result, err := s.db.ExecContext(ctx,
		`DELETE FROM inventory_items WHERE tenant_id = $1 AND id = $2`, tenantID, id)
	if err != nil {
		return fmt.Errorf("failed to delete item: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to delete item: %w", err)
	}
	if n == 0 {
		return ErrItemNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanItem(row rowScanner) (*Item, error) {
	item := &Item{}
	err := row.Scan(&item.ID, &item.TenantID, &item.SKU, &item.Name, &item.Quantity, &item.CreatedAt, &item.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan item: %w", err)
	}
	return item, nil
}

func validate(sku, name string, quantity int) error {
	switch {
	case strings.TrimSpace(sku) == "":
		return fmt.Errorf("%w: sku is required", ErrInvalidItem)
	case strings.TrimSpace(name) == "":
		return fmt.Errorf("%w: name is required", ErrInvalidItem)
	case quantity < 0:
		return fmt.Errorf("%w: quantity must not be negative", ErrInvalidItem)
	}
	return nil
}
