package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/rsbst23/groundup/pkg/authz"
	"github.com/rsbst23/groundup/pkg/permissions"
	"github.com/rsbst23/groundup/pkg/rbac"
	"github.com/rsbst23/groundup/pkg/tenancy"
)

// ErrDenied is returned by check when the operation would be denied
var ErrDenied = errors.New("operation denied")

// tenantScope maps the -tenant flag to a scope; 0 means global
func tenantScope(tenantID int64) *int64 {
	if tenantID == 0 {
		return nil
	}
	return &tenantID
}

func describeScope(tenantID *int64) string {
	if tenantID == nil {
		return "globally"
	}
	return fmt.Sprintf("in tenant %d", *tenantID)
}

func newMigrateCommand(app *App) *Command {
	cmd := &Command{
		Name:        "migrate",
		Description: "Apply pending database migrations",
		Flags:       newFlagSet("migrate", app.Out),
	}

	cmd.Run = func(ctx context.Context, args []string) error {
		if err := cmd.Flags.Parse(args); err != nil {
			return err
		}
		return app.withBackend(ctx, func(b *Backend) error {
			if err := b.Migrate(ctx); err != nil {
				return err
			}
			if _, err := rbac.EnsureSystemAdminRole(ctx, b.Store); err != nil {
				return fmt.Errorf("ensure %s role: %w", rbac.SystemAdminRole, err)
			}
			fmt.Fprintln(app.Out, "Migrations applied")
			return nil
		})
	}
	return cmd
}

func newSeedCommand(app *App) *Command {
	cmd := &Command{
		Name:        "seed",
		Description: "Create permissions, policies, roles and assignments from a YAML file",
		Flags:       newFlagSet("seed", app.Out),
	}
	file := cmd.Flags.String("file", "", "Seed file path (required)")

	cmd.Run = func(ctx context.Context, args []string) error {
		if err := cmd.Flags.Parse(args); err != nil {
			return err
		}
		if *file == "" {
			return fmt.Errorf("-file is required")
		}

		seed, err := LoadSeedFile(*file)
		if err != nil {
			return err
		}
		return app.withBackend(ctx, func(b *Backend) error {
			result, err := Seed(ctx, b.Store, seed)
			if err != nil {
				return err
			}
			if result.IsEmpty() {
				fmt.Fprintln(app.Out, "Nothing to do")
				return nil
			}
			fmt.Fprintf(app.Out, "Created %d permissions, %d policies, %d roles, %d links, %d members, %d assignments\n",
				result.Permissions, result.Policies, result.Roles, result.Links, result.Members, result.Assignments)
			return nil
		})
	}
	return cmd
}

// roleFlags are shared by assign and revoke
type roleFlags struct {
	user   *int64
	role   *string
	tenant *int64
}

func addRoleFlags(cmd *Command) roleFlags {
	return roleFlags{
		user:   cmd.Flags.Int64("user", 0, "User ID (required)"),
		role:   cmd.Flags.String("role", "", "Role name (required)"),
		tenant: cmd.Flags.Int64("tenant", 0, "Tenant ID; 0 for a global assignment"),
	}
}

func (f roleFlags) validate() error {
	if *f.user <= 0 {
		return fmt.Errorf("-user must be positive")
	}
	if *f.role == "" {
		return fmt.Errorf("-role is required")
	}
	if *f.tenant < 0 {
		return fmt.Errorf("-tenant must not be negative")
	}
	return nil
}

func newAssignCommand(app *App) *Command {
	cmd := &Command{
		Name:        "assign",
		Description: "Assign a role to a user",
		Flags:       newFlagSet("assign", app.Out),
	}
	flags := addRoleFlags(cmd)

	cmd.Run = func(ctx context.Context, args []string) error {
		if err := cmd.Flags.Parse(args); err != nil {
			return err
		}
		if err := flags.validate(); err != nil {
			return err
		}

		scope := tenantScope(*flags.tenant)
		return app.withBackend(ctx, func(b *Backend) error {
			role, err := b.Store.GetRoleByName(ctx, *flags.role, scope)
			if err != nil {
				return err
			}
			if _, err := b.Store.AssignRole(ctx, *flags.user, role.ID, scope); err != nil {
				return err
			}
			fmt.Fprintf(app.Out, "Assigned role %s to user %d %s\n", role.Name, *flags.user, describeScope(scope))
			return nil
		})
	}
	return cmd
}

func newRevokeCommand(app *App) *Command {
	cmd := &Command{
		Name:        "revoke",
		Description: "Revoke a role from a user",
		Flags:       newFlagSet("revoke", app.Out),
	}
	flags := addRoleFlags(cmd)

	cmd.Run = func(ctx context.Context, args []string) error {
		if err := cmd.Flags.Parse(args); err != nil {
			return err
		}
		if err := flags.validate(); err != nil {
			return err
		}

		scope := tenantScope(*flags.tenant)
		return app.withBackend(ctx, func(b *Backend) error {
			role, err := b.Store.GetRoleByName(ctx, *flags.role, scope)
			if err != nil {
				return err
			}
			if err := b.Store.RevokeRole(ctx, *flags.user, role.ID, scope); err != nil {
				return err
			}
			fmt.Fprintf(app.Out, "Revoked role %s from user %d %s\n", role.Name, *flags.user, describeScope(scope))
			return nil
		})
	}
	return cmd
}

func newMemberCommand(app *App) *Command {
	cmd := &Command{
		Name:        "member",
		Description: "Manage tenant memberships (add, remove, list)",
		Subcommands: make(map[string]*Command),
	}

	add := &Command{Name: "add", Description: "Add a user to a tenant", Flags: newFlagSet("member add", app.Out)}
	addUser := add.Flags.Int64("user", 0, "User ID (required)")
	addTenant := add.Flags.Int64("tenant", 0, "Tenant ID (required)")
	add.Run = func(ctx context.Context, args []string) error {
		if err := add.Flags.Parse(args); err != nil {
			return err
		}
		if *addUser <= 0 || *addTenant <= 0 {
			return fmt.Errorf("-user and -tenant must be positive")
		}
		return app.withBackend(ctx, func(b *Backend) error {
			if _, err := b.Store.AddMember(ctx, *addUser, *addTenant); err != nil {
				return err
			}
			fmt.Fprintf(app.Out, "Added user %d to tenant %d\n", *addUser, *addTenant)
			return nil
		})
	}

	remove := &Command{Name: "remove", Description: "Remove a user and their tenant roles", Flags: newFlagSet("member remove", app.Out)}
	rmUser := remove.Flags.Int64("user", 0, "User ID (required)")
	rmTenant := remove.Flags.Int64("tenant", 0, "Tenant ID (required)")
	remove.Run = func(ctx context.Context, args []string) error {
		if err := remove.Flags.Parse(args); err != nil {
			return err
		}
		if *rmUser <= 0 || *rmTenant <= 0 {
			return fmt.Errorf("-user and -tenant must be positive")
		}
		return app.withBackend(ctx, func(b *Backend) error {
			if err := b.Store.RemoveMember(ctx, *rmUser, *rmTenant); err != nil {
				return err
			}
			fmt.Fprintf(app.Out, "Removed user %d from tenant %d\n", *rmUser, *rmTenant)
			return nil
		})
	}

	list := &Command{Name: "list", Description: "List a tenant's members", Flags: newFlagSet("member list", app.Out)}
	listTenant := list.Flags.Int64("tenant", 0, "Tenant ID (required)")
	list.Run = func(ctx context.Context, args []string) error {
		if err := list.Flags.Parse(args); err != nil {
			return err
		}
		if *listTenant <= 0 {
			return fmt.Errorf("-tenant must be positive")
		}
		return app.withBackend(ctx, func(b *Backend) error {
			members, err := b.Store.ListMembers(ctx, *listTenant)
			if err != nil {
				return err
			}
			for _, m := range members {
				fmt.Fprintf(app.Out, "%d\t%s\n", m.UserID, m.JoinedAt.Format("2006-01-02T15:04:05Z"))
			}
			return nil
		})
	}

	for _, sub := range []*Command{add, remove, list} {
		cmd.Subcommands[sub.Name] = sub
	}
	return cmd
}

// grantsOutput is the -json form of grants
type grantsOutput struct {
	UserID      int64    `json:"user_id"`
	TenantID    int64    `json:"tenant_id"`
	Permissions []string `json:"permissions"`
	Roles       []string `json:"roles"`
}

func newGrantsCommand(app *App) *Command {
	cmd := &Command{
		Name:        "grants",
		Description: "Show the permissions and roles a user holds in a tenant",
		Flags:       newFlagSet("grants", app.Out),
	}
	user := cmd.Flags.Int64("user", 0, "User ID (required)")
	tenant := cmd.Flags.Int64("tenant", 0, "Tenant ID (required)")
	asJSON := cmd.Flags.Bool("json", false, "Print JSON")

	cmd.Run = func(ctx context.Context, args []string) error {
		if err := cmd.Flags.Parse(args); err != nil {
			return err
		}
		if *user <= 0 || *tenant <= 0 {
			return fmt.Errorf("-user and -tenant must be positive")
		}

		return app.withBackend(ctx, func(b *Backend) error {
			grants, err := rbac.NewResolver(b.Store).Resolve(ctx, *user, *tenant)
			if err != nil {
				return err
			}

			out := grantsOutput{
				UserID:      *user,
				TenantID:    *tenant,
				Permissions: grants.Permissions(),
				Roles:       grants.Roles(),
			}
			if *asJSON {
				enc := json.NewEncoder(app.Out)
				enc.SetIndent("", "  ")
				return enc.Encode(out)
			}
			fmt.Fprintf(app.Out, "Roles:       %s\n", joinOrNone(out.Roles))
			fmt.Fprintf(app.Out, "Permissions: %s\n", joinOrNone(out.Permissions))
			return nil
		})
	}
	return cmd
}

func joinOrNone(items []string) string {
	if len(items) == 0 {
		return "(none)"
	}
	return strings.Join(items, ", ")
}

func newCheckCommand(app *App) *Command {
	cmd := &Command{
		Name:        "check",
		Description: "Evaluate an operation for a user in a tenant",
		Flags:       newFlagSet("check", app.Out),
	}
	user := cmd.Flags.Int64("user", 0, "User ID (required)")
	tenant := cmd.Flags.Int64("tenant", 0, "Tenant ID (required)")
	op := cmd.Flags.String("op", "", "Operation name, e.g. inventory.delete (required)")
	table := cmd.Flags.String("permission-table", os.Getenv("GROUNDUP_PERMISSION_TABLE"), "YAML override for the permission table")

	cmd.Run = func(ctx context.Context, args []string) error {
		if err := cmd.Flags.Parse(args); err != nil {
			return err
		}
		if *op == "" {
			return fmt.Errorf("-op is required")
		}

		registry, err := permissions.Build(*table)
		if err != nil {
			return err
		}
		if _, ok := registry.Lookup(*op); !ok {
			return fmt.Errorf("unknown operation %q", *op)
		}

		ctx, err = tenancy.WithContext(ctx, tenancy.New(*tenant, *user))
		if err != nil {
			return err
		}

		return app.withBackend(ctx, func(b *Backend) error {
			interceptor, err := authz.NewInterceptor(registry, rbac.NewResolver(b.Store))
			if err != nil {
				return err
			}
			decision, err := interceptor.Check(ctx, *op)
			if err != nil {
				return err
			}
			if decision.Allowed {
				fmt.Fprintf(app.Out, "allowed: %s\n", *op)
				return nil
			}
			fmt.Fprintf(app.Out, "denied: %s\n", decision.Denial.Error())
			return ErrDenied
		})
	}
	return cmd
}

func newPermissionsCommand(app *App) *Command {
	cmd := &Command{
		Name:        "permissions",
		Description: "Print the effective permission table as YAML",
		Flags:       newFlagSet("permissions", app.Out),
	}
	table := cmd.Flags.String("permission-table", os.Getenv("GROUNDUP_PERMISSION_TABLE"), "YAML override for the permission table")

	cmd.Run = func(ctx context.Context, args []string) error {
		if err := cmd.Flags.Parse(args); err != nil {
			return err
		}
		registry, err := permissions.Build(*table)
		if err != nil {
			return err
		}
		return registry.WriteYAML(app.Out)
	}
	return cmd
}

// ErrNoTokenIssuer is returned by token when no signing key is configured
var ErrNoTokenIssuer = errors.New("token signing is not configured (set GROUNDUP_JWT_SECRET)")

func newTokenCommand(app *App) *Command {
	cmd := &Command{
		Name:        "token",
		Description: "Issue a bearer token for a user",
		Flags:       newFlagSet("token", app.Out),
	}
	user := cmd.Flags.Int64("user", 0, "User ID (required)")
	tenant := cmd.Flags.Int64("tenant", 0, "Tenant ID; 0 lets the caller choose with X-Tenant-ID")
	ttl := cmd.Flags.Duration("ttl", 0, "Token lifetime (default GROUNDUP_TOKEN_TTL)")

	cmd.Run = func(ctx context.Context, args []string) error {
		if err := cmd.Flags.Parse(args); err != nil {
			return err
		}
		if app.Tokens == nil {
			return ErrNoTokenIssuer
		}

		lifetime := *ttl
		if lifetime == 0 {
			lifetime = app.TokenTTL
		}
		token, err := app.Tokens.Issue(*user, *tenant, lifetime)
		if err != nil {
			return err
		}
		fmt.Fprintln(app.Out, token)
		return nil
	}
	return cmd
}
