package tenants

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rsbst23/groundup/pkg/storage"
)

// maxSlugAttempts bounds suffixing of generated slugs
const maxSlugAttempts = 20

// Store persists tenants. Memberships and role assignments live in the rbac
// store so that writes publish grant invalidations.
type Store struct {
	db *sql.DB
}

// NewStore creates a tenant store
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// CreateTenant inserts tenant, deriving its slug from the name when empty
func (s *Store) CreateTenant(ctx context.Context, tenant *Tenant) error {
	tenant.Name = strings.TrimSpace(tenant.Name)
	if tenant.Name == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidRequest)
	}

	explicit := tenant.Slug != ""
	base := tenant.Slug
	if !explicit {
		base = generateSlug(tenant.Name)
	}
	if base == "" {
		return fmt.Errorf("%w: name %q yields an empty slug", ErrInvalidRequest, tenant.Name)
	}

	now := time.Now().UTC()
	for attempt := 1; attempt <= maxSlugAttempts; attempt++ {
		slug := base
		if attempt > 1 {
			slug = fmt.Sprintf("%s-%d", base, attempt)
		}

		taken, err := s.slugExists(ctx, slug)
		if err != nil {
			return err
		}
		if taken {
			if explicit {
				return fmt.Errorf("%w: %s", ErrSlugTaken, slug)
			}
			continue
		}

		err = s.db.QueryRowContext(ctx, `
			INSERT INTO tenants (name, slug, created_at, updated_at)
			VALUES ($1, $2, $3, $3)
			RETURNING id
		`, tenant.Name, slug, now).Scan(&tenant.ID)
		if storage.IsUniqueViolation(err) {
			// Lost a race for the slug.
			if explicit {
				return fmt.Errorf("%w: %s", ErrSlugTaken, slug)
			}
			continue
		}
		if err != nil {
			return fmt.Errorf("failed to create tenant: %w", err)
		}

		tenant.Slug = slug
		tenant.CreatedAt = now
		tenant.UpdatedAt = now
		return nil
	}

	return fmt.Errorf("%w: no free slug for %q", ErrSlugTaken, base)
}

// GetTenant retrieves a tenant by ID
func (s *Store) GetTenant(ctx context.Context, id int64) (*Tenant, error) {
	return s.scanOne(s.db.QueryRowContext(ctx, `
		SELECT id, name, slug, created_at, updated_at
		FROM tenants
		WHERE id = $1
	`, id))
}

// GetTenantBySlug retrieves a tenant by slug
func (s *Store) GetTenantBySlug(ctx context.Context, slug string) (*Tenant, error) {
	return s.scanOne(s.db.QueryRowContext(ctx, `
		SELECT id, name, slug, created_at, updated_at
		FROM tenants
		WHERE slug = $1
	`, slug))
}

// ListTenantsForUser returns the tenants userID is a member of, by name
func (s *Store) ListTenantsForUser(ctx context.Context, userID int64) ([]*Tenant, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT t.id, t.name, t.slug, t.created_at, t.updated_at
		FROM tenants t
		JOIN user_tenants ut ON ut.tenant_id = t.id
		WHERE ut.user_id = $1
		ORDER BY t.name, t.id
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list tenants: %w", err)
	}
	defer rows.Close()

	var tenants []*Tenant
	for rows.Next() {
		t := &Tenant{}
		if err := rows.Scan(&t.ID, &t.Name, &t.Slug, &t.CreatedAt, &t.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan tenant: %w", err)
		}
		tenants = append(tenants, t)
	}
	return tenants, rows.Err()
}

func (s *Store) slugExists(ctx context.Context, slug string) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM tenants WHERE slug = $1)`, slug,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check slug: %w", err)
	}
	return exists, nil
}

func (s *Store) scanOne(row *sql.Row) (*Tenant, error) {
	t := &Tenant{}
	err := row.Scan(&t.ID, &t.Name, &t.Slug, &t.CreatedAt, &t.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrTenantNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get tenant: %w", err)
	}
	return t, nil
}

// generateSlug lowercases name, turns spaces into dashes and drops anything
// outside [a-z0-9-]
func generateSlug(name string) string {
	slug := strings.ToLower(strings.TrimSpace(name))
	slug = strings.ReplaceAll(slug, " ", "-")
	slug = strings.Map(func(r rune) rune {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '-' {
			return r
		}
		return -1
	}, slug)
	for strings.Contains(slug, "--") {
		slug = strings.ReplaceAll(slug, "--", "-")
	}
	return strings.Trim(slug, "-")
}
