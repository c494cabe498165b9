package rbac

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/rsbst23/groundup/pkg/storage"
)

// ErrScopeMismatch is returned when a tenant-scoped role is assigned outside
// its tenant
var ErrScopeMismatch = errors.New("rbac: role is not assignable in this tenant")

// DataSource is the read-only query surface the resolver needs
type DataSource interface {
	TenantExists(ctx context.Context, tenantID int64) (bool, error)
	// Membership returns ErrNotFound when the user is not a member
	Membership(ctx context.Context, userID, tenantID int64) (*UserTenant, error)
	// RolesForUser returns roles assigned in tenantID plus global
	// assignments, limited to roles that apply in tenantID
	RolesForUser(ctx context.Context, userID, tenantID int64) ([]Role, error)
	PoliciesForRole(ctx context.Context, roleID int64) ([]Policy, error)
	PermissionsForPolicy(ctx context.Context, policyID int64) ([]Permission, error)
}

// Store handles RBAC data persistence. Writes that can change a grant set
// publish an Invalidation after they commit.
type Store struct {
	db        *sql.DB
	reader    func() *sql.DB
	publisher Publisher
}

// ReplicaSource hands out read handles; *storage.ConnectionManager
// satisfies it
type ReplicaSource interface {
	Replica() *sql.DB
}

// StoreOption configures a Store
type StoreOption func(*Store)

// WithReader routes DataSource queries to a separate handle
func WithReader(db *sql.DB) StoreOption {
	return func(s *Store) {
		if db != nil {
			s.reader = func() *sql.DB { return db }
		}
	}
}

// WithReplicas routes DataSource queries to src, asking it for a handle on
// every query so replicas dropped at runtime are never reused
func WithReplicas(src ReplicaSource) StoreOption {
	return func(s *Store) {
		if src != nil {
			s.reader = src.Replica
		}
	}
}

// WithPublisher sets where invalidations are announced
func WithPublisher(p Publisher) StoreOption {
	return func(s *Store) {
		if p != nil {
			s.publisher = p
		}
	}
}

// NewStore creates a new RBAC store
func NewStore(db *sql.DB, opts ...StoreOption) *Store {
	s := &Store{db: db, publisher: noopPublisher{}}
	s.reader = func() *sql.DB { return s.db }
	for _, opt := range opts {
		opt(s)
	}
	return s
}

var _ DataSource = (*Store)(nil)

func (s *Store) publish(ctx context.Context, event Invalidation) error {
	if err := s.publisher.Publish(ctx, event); err != nil {
		return fmt.Errorf("write committed but invalidation failed: %w", err)
	}
	return nil
}

// TenantExists reports whether the tenant row exists
func (s *Store) TenantExists(ctx context.Context, tenantID int64) (bool, error) {
	var exists bool
	err := s.reader().QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM tenants WHERE id = $1)`, tenantID,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check tenant: %w", err)
	}
	return exists, nil
}

// Membership returns the user's membership row in the tenant
func (s *Store) Membership(ctx context.Context, userID, tenantID int64) (*UserTenant, error) {
	var ut UserTenant
	err := s.reader().QueryRowContext(ctx, `
		SELECT id, user_id, tenant_id, joined_at
		FROM user_tenants
		WHERE user_id = $1 AND tenant_id = $2
	`, userID, tenantID).Scan(&ut.ID, &ut.UserID, &ut.TenantID, &ut.JoinedAt)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get membership: %w", err)
	}
	return &ut, nil
}

// RolesForUser returns the roles effective for the user in tenantID. A role
// assigned both globally and in the tenant appears twice.
func (s *Store) RolesForUser(ctx context.Context, userID, tenantID int64) ([]Role, error) {
	rows, err := s.reader().QueryContext(ctx, `
		SELECT r.id, r.name, r.tenant_id, r.created_at, r.updated_at
		FROM user_roles ur
		JOIN roles r ON r.id = ur.role_id
		WHERE ur.user_id = $1
		  AND (ur.tenant_id = $2 OR ur.tenant_id IS NULL)
		  AND (r.tenant_id = $2 OR r.tenant_id IS NULL)
		ORDER BY r.id
	`, userID, tenantID)
	if err != nil {
		return nil, fmt.Errorf("failed to query user roles: %w", err)
	}
	defer rows.Close()

	var roles []Role
	for rows.Next() {
		role, err := scanRole(rows)
		if err != nil {
			return nil, err
		}
		roles = append(roles, *role)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate user roles: %w", err)
	}
	return roles, nil
}

// PoliciesForRole returns the policies attached to a role
func (s *Store) PoliciesForRole(ctx context.Context, roleID int64) ([]Policy, error) {
	rows, err := s.reader().QueryContext(ctx, `
		SELECT p.id, p.name, p.tenant_id, p.created_at
		FROM role_policies rp
		JOIN policies p ON p.id = rp.policy_id
		WHERE rp.role_id = $1
		ORDER BY p.id
	`, roleID)
	if err != nil {
		return nil, fmt.Errorf("failed to query role policies: %w", err)
	}
	defer rows.Close()

	var policies []Policy
	for rows.Next() {
		var p Policy
		var tenantID sql.NullInt64
		if err := rows.Scan(&p.ID, &p.Name, &tenantID, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan policy: %w", err)
		}
		p.TenantID = nullableID(tenantID)
		policies = append(policies, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate role policies: %w", err)
	}
	return policies, nil
}

// PermissionsForPolicy returns the permissions granted by a policy
func (s *Store) PermissionsForPolicy(ctx context.Context, policyID int64) ([]Permission, error) {
	rows, err := s.reader().QueryContext(ctx, `
		SELECT pm.id, pm.code, pm.description
		FROM policy_permissions pp
		JOIN permissions pm ON pm.id = pp.permission_id
		WHERE pp.policy_id = $1
		ORDER BY pm.id
	`, policyID)
	if err != nil {
		return nil, fmt.Errorf("failed to query policy permissions: %w", err)
	}
	defer rows.Close()

	var perms []Permission
	for rows.Next() {
		var p Permission
		if err := rows.Scan(&p.ID, &p.Code, &p.Description); err != nil {
			return nil, fmt.Errorf("failed to scan permission: %w", err)
		}
		perms = append(perms, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate policy permissions: %w", err)
	}
	return perms, nil
}

// CreateRole inserts a role. Creating a role changes no grant set.
func (s *Store) CreateRole(ctx context.Context, role *Role) error {
	now := time.Now().UTC()
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO roles (name, tenant_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4)
		RETURNING id
	`, role.Name, role.TenantID, now, now).Scan(&role.ID)
	if err != nil {
		return fmt.Errorf("failed to create role %q: %w", role.Name, mapWriteError(err))
	}

	role.CreatedAt = now
	role.UpdatedAt = now
	return nil
}

// GetRole retrieves a role by ID
func (s *Store) GetRole(ctx context.Context, roleID int64) (*Role, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, name, tenant_id, created_at, updated_at
		FROM roles
		WHERE id = $1
	`, roleID)

	role, err := scanRole(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("role %d: %w", roleID, ErrNotFound)
	}
	return role, err
}

// GetRoleByName finds a role visible in tenantID, preferring a tenant-scoped
// role over a global one of the same name. A nil tenantID only matches
// global roles.
func (s *Store) GetRoleByName(ctx context.Context, name string, tenantID *int64) (*Role, error) {
	var row *sql.Row
	if tenantID == nil {
		row = s.db.QueryRowContext(ctx, `
			SELECT id, name, tenant_id, created_at, updated_at
			FROM roles
			WHERE name = $1 AND tenant_id IS NULL
		`, name)
	} else {
		row = s.db.QueryRowContext(ctx, `
			SELECT id, name, tenant_id, created_at, updated_at
			FROM roles
			WHERE name = $1 AND (tenant_id = $2 OR tenant_id IS NULL)
			ORDER BY (tenant_id IS NULL)
			LIMIT 1
		`, name, *tenantID)
	}

	role, err := scanRole(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("role %q: %w", name, ErrNotFound)
	}
	return role, err
}

// DeleteRole removes a role together with its assignments and policy links
func (s *Store) DeleteRole(ctx context.Context, roleID int64) error {
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM user_roles WHERE role_id = $1`, roleID); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM role_policies WHERE role_id = $1`, roleID); err != nil {
			return err
		}
		return execOne(ctx, tx, `DELETE FROM roles WHERE id = $1`, roleID)
	})
	if err != nil {
		return fmt.Errorf("failed to delete role %d: %w", roleID, err)
	}
	return s.publish(ctx, InvalidateAll())
}

// CreatePolicy inserts a policy
func (s *Store) CreatePolicy(ctx context.Context, policy *Policy) error {
	now := time.Now().UTC()
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO policies (name, tenant_id, created_at)
		VALUES ($1, $2, $3)
		RETURNING id
	`, policy.Name, policy.TenantID, now).Scan(&policy.ID)
	if err != nil {
		return fmt.Errorf("failed to create policy %q: %w", policy.Name, mapWriteError(err))
	}
	policy.CreatedAt = now
	return nil
}

// GetPolicyByName finds the policy with exactly this name and scope. A nil
// tenantID matches only global policies.
func (s *Store) GetPolicyByName(ctx context.Context, name string, tenantID *int64) (*Policy, error) {
	var row *sql.Row
	if tenantID == nil {
		row = s.db.QueryRowContext(ctx, `
			SELECT id, name, tenant_id, created_at
			FROM policies
			WHERE name = $1 AND tenant_id IS NULL
		`, name)
	} else {
		row = s.db.QueryRowContext(ctx, `
			SELECT id, name, tenant_id, created_at
			FROM policies
			WHERE name = $1 AND tenant_id = $2
		`, name, *tenantID)
	}

	var p Policy
	var scope sql.NullInt64
	err := row.Scan(&p.ID, &p.Name, &scope, &p.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("policy %q: %w", name, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get policy: %w", err)
	}
	p.TenantID = nullableID(scope)
	return &p, nil
}

// CreatePermission inserts a permission code
func (s *Store) CreatePermission(ctx context.Context, perm *Permission) error {
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO permissions (code, description)
		VALUES ($1, $2)
		RETURNING id
	`, perm.Code, perm.Description).Scan(&perm.ID)
	if err != nil {
		return fmt.Errorf("failed to create permission %q: %w", perm.Code, mapWriteError(err))
	}
	return nil
}

// GetPermissionByCode retrieves a permission by its code
func (s *Store) GetPermissionByCode(ctx context.Context, code string) (*Permission, error) {
	var p Permission
	err := s.db.QueryRowContext(ctx,
		`SELECT id, code, description FROM permissions WHERE code = $1`, code,
	).Scan(&p.ID, &p.Code, &p.Description)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("permission %q: %w", code, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get permission: %w", err)
	}
	return &p, nil
}

// AttachPolicy links a policy to a role
func (s *Store) AttachPolicy(ctx context.Context, roleID, policyID int64) error {
	if _, err := s.db.ExecContext(ctx,
		`INSERT INTO role_policies (role_id, policy_id) VALUES ($1, $2)`, roleID, policyID,
	); err != nil {
		return fmt.Errorf("failed to attach policy %d to role %d: %w", policyID, roleID, mapWriteError(err))
	}
	return s.publish(ctx, InvalidateAll())
}

// DetachPolicy unlinks a policy from a role
func (s *Store) DetachPolicy(ctx context.Context, roleID, policyID int64) error {
	if err := execOne(ctx, s.db,
		`DELETE FROM role_policies WHERE role_id = $1 AND policy_id = $2`, roleID, policyID,
	); err != nil {
		return fmt.Errorf("failed to detach policy %d from role %d: %w", policyID, roleID, err)
	}
	return s.publish(ctx, InvalidateAll())
}

// GrantPermission adds a permission to a policy
func (s *Store) GrantPermission(ctx context.Context, policyID, permissionID int64) error {
	if _, err := s.db.ExecContext(ctx,
		`INSERT INTO policy_permissions (policy_id, permission_id) VALUES ($1, $2)`, policyID, permissionID,
	); err != nil {
		return fmt.Errorf("failed to grant permission %d to policy %d: %w", permissionID, policyID, mapWriteError(err))
	}
	return s.publish(ctx, InvalidateAll())
}

// RevokePermission removes a permission from a policy
func (s *Store) RevokePermission(ctx context.Context, policyID, permissionID int64) error {
	if err := execOne(ctx, s.db,
		`DELETE FROM policy_permissions WHERE policy_id = $1 AND permission_id = $2`, policyID, permissionID,
	); err != nil {
		return fmt.Errorf("failed to revoke permission %d from policy %d: %w", permissionID, policyID, err)
	}
	return s.publish(ctx, InvalidateAll())
}

// AssignRole grants a role to a user in tenantID, or globally when tenantID
// is nil. Tenant-scoped roles can only be assigned in their own tenant.
func (s *Store) AssignRole(ctx context.Context, userID, roleID int64, tenantID *int64) (*UserRole, error) {
	role, err := s.GetRole(ctx, roleID)
	if err != nil {
		return nil, err
	}
	if role.TenantID != nil && (tenantID == nil || *tenantID != *role.TenantID) {
		return nil, fmt.Errorf("role %q: %w", role.Name, ErrScopeMismatch)
	}

	ur := &UserRole{UserID: userID, RoleID: roleID, TenantID: tenantID, GrantedAt: time.Now().UTC()}
	err = s.db.QueryRowContext(ctx, `
		INSERT INTO user_roles (user_id, role_id, tenant_id, granted_at)
		VALUES ($1, $2, $3, $4)
		RETURNING id
	`, userID, roleID, tenantID, ur.GrantedAt).Scan(&ur.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to assign role %d to user %d: %w", roleID, userID, mapWriteError(err))
	}

	return ur, s.publish(ctx, InvalidateUser(userID, tenantID))
}

// RevokeRole removes one role assignment
func (s *Store) RevokeRole(ctx context.Context, userID, roleID int64, tenantID *int64) error {
	var err error
	if tenantID == nil {
		err = execOne(ctx, s.db,
			`DELETE FROM user_roles WHERE user_id = $1 AND role_id = $2 AND tenant_id IS NULL`,
			userID, roleID)
	} else {
		err = execOne(ctx, s.db,
			`DELETE FROM user_roles WHERE user_id = $1 AND role_id = $2 AND tenant_id = $3`,
			userID, roleID, *tenantID)
	}
	if err != nil {
		return fmt.Errorf("failed to revoke role %d from user %d: %w", roleID, userID, err)
	}
	return s.publish(ctx, InvalidateUser(userID, tenantID))
}

// ListAssignments returns every role assignment of the user, global ones
// first
func (s *Store) ListAssignments(ctx context.Context, userID int64) ([]UserRole, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, role_id, tenant_id, granted_at
		FROM user_roles
		WHERE user_id = $1
		ORDER BY (tenant_id IS NOT NULL), tenant_id, role_id
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list assignments: %w", err)
	}
	defer rows.Close()

	var out []UserRole
	for rows.Next() {
		var ur UserRole
		var tenantID sql.NullInt64
		if err := rows.Scan(&ur.ID, &ur.UserID, &ur.RoleID, &tenantID, &ur.GrantedAt); err != nil {
			return nil, fmt.Errorf("failed to scan assignment: %w", err)
		}
		ur.TenantID = nullableID(tenantID)
		out = append(out, ur)
	}
	return out, rows.Err()
}

// AddMember records that userID belongs to tenantID
func (s *Store) AddMember(ctx context.Context, userID, tenantID int64) (*UserTenant, error) {
	ut := &UserTenant{UserID: userID, TenantID: tenantID, JoinedAt: time.Now().UTC()}
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO user_tenants (user_id, tenant_id, joined_at)
		VALUES ($1, $2, $3)
		RETURNING id
	`, userID, tenantID, ut.JoinedAt).Scan(&ut.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to add user %d to tenant %d: %w", userID, tenantID, mapWriteError(err))
	}
	return ut, s.publish(ctx, InvalidateUser(userID, &tenantID))
}

// RemoveMember deletes the membership and the user's tenant-scoped role
// assignments in that tenant
func (s *Store) RemoveMember(ctx context.Context, userID, tenantID int64) error {
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx,
			`DELETE FROM user_roles WHERE user_id = $1 AND tenant_id = $2`, userID, tenantID,
		); err != nil {
			return err
		}
		return execOne(ctx, tx,
			`DELETE FROM user_tenants WHERE user_id = $1 AND tenant_id = $2`, userID, tenantID)
	})
	if err != nil {
		return fmt.Errorf("failed to remove user %d from tenant %d: %w", userID, tenantID, err)
	}
	return s.publish(ctx, InvalidateUser(userID, &tenantID))
}

// ListMembers returns the tenant's memberships ordered by join time
func (s *Store) ListMembers(ctx context.Context, tenantID int64) ([]UserTenant, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, tenant_id, joined_at
		FROM user_tenants
		WHERE tenant_id = $1
		ORDER BY joined_at, id
	`, tenantID)
	if err != nil {
		return nil, fmt.Errorf("failed to list members: %w", err)
	}
	defer rows.Close()

	var members []UserTenant
	for rows.Next() {
		var ut UserTenant
		if err := rows.Scan(&ut.ID, &ut.UserID, &ut.TenantID, &ut.JoinedAt); err != nil {
			return nil, fmt.Errorf("failed to scan member: %w", err)
		}
		members = append(members, ut)
	}
	return members, rows.Err()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanRole(row rowScanner) (*Role, error) {
	var role Role
	var tenantID sql.NullInt64
	if err := row.Scan(&role.ID, &role.Name, &tenantID, &role.CreatedAt, &role.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan role: %w", err)
	}
	role.TenantID = nullableID(tenantID)
	return &role, nil
}

func nullableID(n sql.NullInt64) *int64 {
	if !n.Valid {
		return nil
	}
	id := n.Int64
	return &id
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

// execOne runs a statement that must affect a row, reporting ErrNotFound
// otherwise
func execOne(ctx context.Context, db execer, query string, args ...interface{}) error {
	res, err := db.ExecContext(ctx, query, args...)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Store) inTx(ctx context.Context, fn func(*sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to start transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}
	return tx.Commit()
}

func mapWriteError(err error) error {
	if storage.IsUniqueViolation(err) {
		return fmt.Errorf("%w: %v", ErrAlreadyExists, err)
	}
	return err
}
