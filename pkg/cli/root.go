package cli

import (
	"context"
	"flag"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"
)

// Command represents a CLI command
type Command struct {
	Name        string
	Description string
	Usage       string
	Run         func(ctx context.Context, args []string) error
	Subcommands map[string]*Command
	Flags       *flag.FlagSet
}

// TokenIssuer signs bearer tokens; *tenancy.JWTAuthenticator satisfies it
type TokenIssuer interface {
	Issue(userID, tenantID int64, ttl time.Duration) (string, error)
}

// App carries what every command needs: where to print and how to reach
// the database
type App struct {
	Out     io.Writer
	Connect Connector

	// Tokens is nil when no signing key is configured
	Tokens   TokenIssuer
	TokenTTL time.Duration
}

// NewRootCommand creates the groundup-admin root command
func NewRootCommand(app *App) *Command {
	root := &Command{
		Name:        "groundup-admin",
		Description: "groundup-admin - manage tenants, roles and grants",
		Subcommands: make(map[string]*Command),
		Flags:       flag.NewFlagSet("groundup-admin", flag.ContinueOnError),
	}

	// Add subcommands
	for _, cmd := range []*Command{
		newMigrateCommand(app),
		newSeedCommand(app),
		newAssignCommand(app),
		newRevokeCommand(app),
		newMemberCommand(app),
		newGrantsCommand(app),
		newCheckCommand(app),
		newPermissionsCommand(app),
		newTokenCommand(app),
	} {
		root.Subcommands[cmd.Name] = cmd
	}

	root.Flags.SetOutput(app.Out)
	return root
}

// Execute runs the subcommand named by args[0]
func (c *Command) Execute(ctx context.Context, out io.Writer, args []string) error {
	if len(args) == 0 {
		return c.usage(out)
	}

	// Check for help flag
	switch strings.ToLower(args[0]) {
	case "-h", "--help", "help":
		return c.usage(out)
	}

	// Check for subcommand
	if subcmd, ok := c.Subcommands[args[0]]; ok {
		if len(subcmd.Subcommands) > 0 {
			return subcmd.Execute(ctx, out, args[1:])
		}
		return subcmd.Run(ctx, args[1:])
	}

	return fmt.Errorf("unknown command: %s", args[0])
}

// usage prints the command usage
func (c *Command) usage(out io.Writer) error {
	fmt.Fprintf(out, "Usage: %s <command> [args]\n\n", c.Name)
	fmt.Fprintf(out, "Commands:\n")

	names := make([]string, 0, len(c.Subcommands))
	for name := range c.Subcommands {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Fprintf(out, "  %-15s %s\n", name, c.Subcommands[name].Description)
	}
	return nil
}

// newFlagSet returns a flag set that reports errors instead of exiting
func newFlagSet(name string, out io.Writer) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(out)
	return fs
}
