package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rsbst23/groundup/pkg/rbac"
	"github.com/rsbst23/groundup/pkg/rbac/rbactest"
)

const seedTemplate = `
permissions:
  - code: inventory.view
    description: Read inventory items
  - code: inventory.delete
policies:
  - name: inventory-read
    permissions: [inventory.view]
  - name: inventory-admin
    tenant_id: %[1]d
    permissions: [inventory.view, inventory.create, inventory.delete]
roles:
  - name: Viewer
    policies: [inventory-read]
  - name: Manager
    tenant_id: %[1]d
    policies: [inventory-admin, inventory-read]
members:
  - {user_id: 7, tenant_id: %[1]d}
assignments:
  - {user_id: 7, role: Viewer}
  - {user_id: 7, role: Manager, tenant_id: %[1]d}
`

func TestParseSeedFile(t *testing.T) {
	f, err := ParseSeedFile(strings.NewReader(fmt.Sprintf(seedTemplate, 1)))
	require.NoError(t, err)

	assert.Len(t, f.Permissions, 2)
	assert.Equal(t, "Read inventory items", f.Permissions[0].Description)
	require.Len(t, f.Policies, 2)
	assert.Nil(t, f.Policies[0].TenantID)
	assert.Equal(t, int64(1), *f.Policies[1].TenantID)
	assert.Equal(t, []string{"inventory-admin", "inventory-read"}, f.Roles[1].Policies)
	assert.Equal(t, SeedMember{UserID: 7, TenantID: 1}, f.Members[0])
	assert.Nil(t, f.Assignments[0].TenantID)
}

func TestParseSeedFile_Empty(t *testing.T) {
	f, err := ParseSeedFile(strings.NewReader(""))
	require.NoError(t, err)
	assert.Empty(t, f.Roles)
}

func TestParseSeedFile_Errors(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr string
	}{
		{"unknown key", "roles:\n  - name: Viewer\n    color: blue\n", "failed to parse"},
		{"permission without code", "permissions:\n  - description: nothing\n", "permissions[0]: code is required"},
		{"policy without name", "policies:\n  - permissions: [a.b]\n", "policies[0]: name is required"},
		{"empty permission code", "policies:\n  - name: p\n    permissions: ['']\n", "empty permission code"},
		{"role without name", "roles:\n  - policies: [p]\n", "roles[0]: name is required"},
		{"bad member", "members:\n  - {user_id: 0, tenant_id: 1}\n", "members[0]"},
		{"assignment without role", "assignments:\n  - {user_id: 3}\n", "assignments[0]"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseSeedFile(strings.NewReader(tt.input))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoadSeedFile_Missing(t *testing.T) {
	_, err := LoadSeedFile(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to open seed file")
}

func TestSeed(t *testing.T) {
	ctx := context.Background()
	db := rbactest.OpenDB(t)
	store := rbac.NewStore(db)
	fx := rbactest.NewFixture(t, db, store)
	acme := fx.Tenant("Acme")

	f, err := ParseSeedFile(strings.NewReader(fmt.Sprintf(seedTemplate, acme)))
	require.NoError(t, err)

	result, err := Seed(ctx, store, f)
	require.NoError(t, err)
	assert.Equal(t, SeedResult{
		Permissions: 3, // inventory.create is created by the policy
		Policies:    2,
		Roles:       2,
		Links:       7,
		Members:     1,
		Assignments: 2,
	}, result)

	grants, err := rbac.NewResolver(store).Resolve(ctx, 7, acme)
	require.NoError(t, err)
	assert.Equal(t, []string{"inventory.create", "inventory.delete", "inventory.view"}, grants.Permissions())
	assert.Equal(t, []string{"Manager", "Viewer"}, grants.Roles())

	manager, err := store.GetRoleByName(ctx, "Manager", &acme)
	require.NoError(t, err)
	require.NotNil(t, manager.TenantID)
	assert.Equal(t, acme, *manager.TenantID)

	t.Run("second run creates nothing", func(t *testing.T) {
		again, err := Seed(ctx, store, f)
		require.NoError(t, err)
		assert.True(t, again.IsEmpty(), "got %+v", again)
	})

	t.Run("additions are applied incrementally", func(t *testing.T) {
		more := &SeedFile{
			Policies: []SeedPolicy{{Name: "inventory-read", Permissions: []string{"inventory.view", "inventory.update"}}},
			Members:  []SeedMember{{UserID: 8, TenantID: acme}},
		}
		result, err := Seed(ctx, store, more)
		require.NoError(t, err)
		assert.Equal(t, SeedResult{Permissions: 1, Links: 1, Members: 1}, result)
	})
}

func TestSeed_TenantRoleShadowsGlobal(t *testing.T) {
	ctx := context.Background()
	db := rbactest.OpenDB(t)
	store := rbac.NewStore(db)
	fx := rbactest.NewFixture(t, db, store)
	acme := fx.Tenant("Acme")

	global := fx.Role("Manager", nil)

	result, err := Seed(ctx, store, &SeedFile{
		Roles: []SeedRole{{Name: "Manager", TenantID: &acme}},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, result.Roles)

	scoped, err := store.GetRoleByName(ctx, "Manager", &acme)
	require.NoError(t, err)
	assert.NotEqual(t, global.ID, scoped.ID)
}

func TestSeed_UnknownReferences(t *testing.T) {
	ctx := context.Background()
	db := rbactest.OpenDB(t)
	store := rbac.NewStore(db)

	_, err := Seed(ctx, store, &SeedFile{
		Roles: []SeedRole{{Name: "Viewer", Policies: []string{"missing"}}},
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, rbac.ErrNotFound)
	assert.Contains(t, err.Error(), `role "Viewer"`)

	_, err = Seed(ctx, store, &SeedFile{
		Assignments: []SeedAssignment{{UserID: 1, Role: "Ghost"}},
	})
	assert.ErrorIs(t, err, rbac.ErrNotFound)
}

func TestSameScope(t *testing.T) {
	one, other := int64(1), int64(1)
	two := int64(2)

	assert.True(t, sameScope(nil, nil))
	assert.True(t, sameScope(&one, &other))
	assert.False(t, sameScope(&one, &two))
	assert.False(t, sameScope(nil, &one))
	assert.False(t, sameScope(&one, nil))
}

func writeSeedFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "seed.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}
