package cli

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRootCommand(t *testing.T) {
	root := NewRootCommand(&App{Out: &bytes.Buffer{}})

	// Test basic properties
	assert.Equal(t, "groundup-admin", root.Name)
	assert.NotNil(t, root.Subcommands)
	assert.NotNil(t, root.Flags)

	// Test that all expected subcommands are registered
	expectedCommands := []string{
		"migrate",
		"seed",
		"assign",
		"revoke",
		"member",
		"grants",
		"check",
		"permissions",
		"token",
	}

	for _, cmdName := range expectedCommands {
		assert.Contains(t, root.Subcommands, cmdName, "Expected subcommand %s to be registered", cmdName)
		assert.NotNil(t, root.Subcommands[cmdName], "Expected subcommand %s to be non-nil", cmdName)
	}

	// Verify the exact number of subcommands
	assert.Equal(t, len(expectedCommands), len(root.Subcommands))
	assert.Len(t, root.Subcommands["member"].Subcommands, 3)
}

func TestCommandUsage(t *testing.T) {
	var out bytes.Buffer
	root := NewRootCommand(&App{Out: &out})

	require.NoError(t, root.usage(&out))

	output := out.String()
	assert.Contains(t, output, "Usage: groundup-admin <command> [args]")
	assert.Contains(t, output, "Commands:")
	for name := range root.Subcommands {
		assert.Contains(t, output, name)
	}
	assert.Less(t, bytes.Index(out.Bytes(), []byte("assign")), bytes.Index(out.Bytes(), []byte("seed")),
		"commands are listed alphabetically")
}

func TestCommandExecute_NoArgs(t *testing.T) {
	var out bytes.Buffer
	root := NewRootCommand(&App{Out: &out})

	err := root.Execute(context.Background(), &out, []string{})
	assert.NoError(t, err)
	assert.Contains(t, out.String(), "Usage: groundup-admin")
}

func TestCommandExecute_Help(t *testing.T) {
	for _, arg := range []string{"-h", "--help", "help", "HELP"} {
		t.Run(arg, func(t *testing.T) {
			var out bytes.Buffer
			root := NewRootCommand(&App{Out: &out})

			err := root.Execute(context.Background(), &out, []string{arg})
			assert.NoError(t, err)
			assert.Contains(t, out.String(), "Commands:")
		})
	}
}

func TestCommandExecute_UnknownCommand(t *testing.T) {
	var out bytes.Buffer
	root := NewRootCommand(&App{Out: &out})

	err := root.Execute(context.Background(), &out, []string{"frobnicate"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown command: frobnicate")
}

func TestCommandExecute_NestedUsage(t *testing.T) {
	var out bytes.Buffer
	root := NewRootCommand(&App{Out: &out})

	err := root.Execute(context.Background(), &out, []string{"member"})
	assert.NoError(t, err)
	assert.Contains(t, out.String(), "Usage: member <command> [args]")
	assert.Contains(t, out.String(), "remove")
}
