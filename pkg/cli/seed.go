package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/rsbst23/groundup/pkg/rbac"
)

// SeedFile describes a role graph to create. Every entry is matched by name
// and scope, so applying the same file twice changes nothing.
type SeedFile struct {
	Permissions []SeedPermission `yaml:"permissions"`
	Policies    []SeedPolicy     `yaml:"policies"`
	Roles       []SeedRole       `yaml:"roles"`
	Members     []SeedMember     `yaml:"members"`
	Assignments []SeedAssignment `yaml:"assignments"`
}

// SeedPermission declares a permission code
type SeedPermission struct {
	Code        string `yaml:"code"`
	Description string `yaml:"description,omitempty"`
}

// SeedPolicy declares a policy. Permission codes not listed under
// permissions are created without a description.
type SeedPolicy struct {
	Name        string   `yaml:"name"`
	TenantID    *int64   `yaml:"tenant_id,omitempty"`
	Permissions []string `yaml:"permissions"`
}

// SeedRole declares a role and the policies attached to it. Policies are
// looked up in the role's tenant first, then globally.
type SeedRole struct {
	Name     string   `yaml:"name"`
	TenantID *int64   `yaml:"tenant_id,omitempty"`
	Policies []string `yaml:"policies"`
}

// SeedMember declares a tenant membership
type SeedMember struct {
	UserID   int64 `yaml:"user_id"`
	TenantID int64 `yaml:"tenant_id"`
}

// SeedAssignment grants a role, globally when TenantID is nil
type SeedAssignment struct {
	UserID   int64  `yaml:"user_id"`
	Role     string `yaml:"role"`
	TenantID *int64 `yaml:"tenant_id,omitempty"`
}

// SeedResult counts what a seed run created
type SeedResult struct {
	Permissions int
	Policies    int
	Roles       int
	Links       int
	Members     int
	Assignments int
}

// IsEmpty reports whether the run created nothing
func (r SeedResult) IsEmpty() bool {
	return r == SeedResult{}
}

// ParseSeedFile decodes a seed file, rejecting unknown keys
func ParseSeedFile(r io.Reader) (*SeedFile, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var f SeedFile
	if err := dec.Decode(&f); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("failed to parse seed file: %w", err)
	}
	if err := f.Validate(); err != nil {
		return nil, err
	}
	return &f, nil
}

// LoadSeedFile reads and parses the seed file at path
func LoadSeedFile(path string) (*SeedFile, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open seed file: %w", err)
	}
	defer file.Close()
	return ParseSeedFile(file)
}

// Validate checks that every entry names what it refers to
func (f *SeedFile) Validate() error {
	for i, p := range f.Permissions {
		if p.Code == "" {
			return fmt.Errorf("permissions[%d]: code is required", i)
		}
	}
	for i, p := range f.Policies {
		if p.Name == "" {
			return fmt.Errorf("policies[%d]: name is required", i)
		}
		for _, code := range p.Permissions {
			if code == "" {
				return fmt.Errorf("policy %q: empty permission code", p.Name)
			}
		}
	}
	for i, r := range f.Roles {
		if r.Name == "" {
			return fmt.Errorf("roles[%d]: name is required", i)
		}
	}
	for i, m := range f.Members {
		if m.UserID <= 0 || m.TenantID <= 0 {
			return fmt.Errorf("members[%d]: user_id and tenant_id must be positive", i)
		}
	}
	for i, a := range f.Assignments {
		if a.UserID <= 0 || a.Role == "" {
			return fmt.Errorf("assignments[%d]: user_id and role are required", i)
		}
	}
	return nil
}

// Seed applies f through store, creating only what is missing
func Seed(ctx context.Context, store *rbac.Store, f *SeedFile) (SeedResult, error) {
	s := &seeder{store: store}

	for _, p := range f.Permissions {
		if _, err := s.permission(ctx, p.Code, p.Description); err != nil {
			return s.result, err
		}
	}
	for _, p := range f.Policies {
		if err := s.policy(ctx, p); err != nil {
			return s.result, err
		}
	}
	for _, r := range f.Roles {
		if err := s.role(ctx, r); err != nil {
			return s.result, err
		}
	}
	for _, m := range f.Members {
		if err := s.member(ctx, m); err != nil {
			return s.result, err
		}
	}
	for _, a := range f.Assignments {
		if err := s.assignment(ctx, a); err != nil {
			return s.result, err
		}
	}
	return s.result, nil
}

type seeder struct {
	store  *rbac.Store
	result SeedResult
}

func (s *seeder) permission(ctx context.Context, code, description string) (*rbac.Permission, error) {
	perm, err := s.store.GetPermissionByCode(ctx, code)
	if err == nil {
		return perm, nil
	}
	if !errors.Is(err, rbac.ErrNotFound) {
		return nil, err
	}

	perm = &rbac.Permission{Code: code, Description: description}
	if err := s.store.CreatePermission(ctx, perm); err != nil {
		return nil, err
	}
	s.result.Permissions++
	return perm, nil
}

func (s *seeder) policy(ctx context.Context, p SeedPolicy) error {
	policy, err := s.store.GetPolicyByName(ctx, p.Name, p.TenantID)
	if errors.Is(err, rbac.ErrNotFound) {
		policy = &rbac.Policy{Name: p.Name, TenantID: p.TenantID}
		if err = s.store.CreatePolicy(ctx, policy); err == nil {
			s.result.Policies++
		}
	}
	if err != nil {
		return err
	}

	granted, err := s.store.PermissionsForPolicy(ctx, policy.ID)
	if err != nil {
		return err
	}
	have := make(map[string]bool, len(granted))
	for _, perm := range granted {
		have[perm.Code] = true
	}

	for _, code := range p.Permissions {
		if have[code] {
			continue
		}
		perm, err := s.permission(ctx, code, "")
		if err != nil {
			return err
		}
		if err := s.store.GrantPermission(ctx, policy.ID, perm.ID); err != nil {
			return err
		}
		have[code] = true
		s.result.Links++
	}
	return nil
}

func (s *seeder) role(ctx context.Context, r SeedRole) error {
	role, err := s.store.GetRoleByName(ctx, r.Name, r.TenantID)
	if err == nil && !sameScope(role.TenantID, r.TenantID) {
		// A global role of the same name is visible here; the tenant
		// still gets its own.
		err = rbac.ErrNotFound
	}
	if errors.Is(err, rbac.ErrNotFound) {
		role = &rbac.Role{Name: r.Name, TenantID: r.TenantID}
		if err = s.store.CreateRole(ctx, role); err == nil {
			s.result.Roles++
		}
	}
	if err != nil {
		return err
	}

	attached, err := s.store.PoliciesForRole(ctx, role.ID)
	if err != nil {
		return err
	}
	have := make(map[int64]bool, len(attached))
	for _, p := range attached {
		have[p.ID] = true
	}

	for _, name := range r.Policies {
		policy, err := s.findPolicy(ctx, name, r.TenantID)
		if err != nil {
			return fmt.Errorf("role %q: %w", r.Name, err)
		}
		if have[policy.ID] {
			continue
		}
		if err := s.store.AttachPolicy(ctx, role.ID, policy.ID); err != nil {
			return err
		}
		have[policy.ID] = true
		s.result.Links++
	}
	return nil
}

func (s *seeder) findPolicy(ctx context.Context, name string, tenantID *int64) (*rbac.Policy, error) {
	if tenantID != nil {
		policy, err := s.store.GetPolicyByName(ctx, name, tenantID)
		if !errors.Is(err, rbac.ErrNotFound) {
			return policy, err
		}
	}
	return s.store.GetPolicyByName(ctx, name, nil)
}

func (s *seeder) member(ctx context.Context, m SeedMember) error {
	_, err := s.store.Membership(ctx, m.UserID, m.TenantID)
	if err == nil {
		return nil
	}
	if !errors.Is(err, rbac.ErrNotFound) {
		return err
	}
	if _, err := s.store.AddMember(ctx, m.UserID, m.TenantID); err != nil {
		return err
	}
	s.result.Members++
	return nil
}

func (s *seeder) assignment(ctx context.Context, a SeedAssignment) error {
	role, err := s.store.GetRoleByName(ctx, a.Role, a.TenantID)
	if err != nil {
		return fmt.Errorf("assignment for user %d: %w", a.UserID, err)
	}

	existing, err := s.store.ListAssignments(ctx, a.UserID)
	if err != nil {
		return err
	}
	for _, ur := range existing {
		if ur.RoleID == role.ID && sameScope(ur.TenantID, a.TenantID) {
			return nil
		}
	}

	if _, err := s.store.AssignRole(ctx, a.UserID, role.ID, a.TenantID); err != nil {
		return err
	}
	s.result.Assignments++
	return nil
}

func sameScope(a, b *int64) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}
