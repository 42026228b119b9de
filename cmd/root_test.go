package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootCommand_HasSubcommands(t *testing.T) {
	cmds := rootCmd.Commands()

	// Collect subcommand names.
	names := make(map[string]bool)
	for _, c := range cmds {
		names[c.Name()] = true
	}

	// Verify expected subcommands are registered.
	expected := []string{"harvest", "dispatch", "checkpoints", "campaigns", "records", "suppress", "serve"}
	for _, name := range expected {
		assert.True(t, names[name], "expected subcommand %q not found", name)
	}
}

func TestRootCommand_Metadata(t *testing.T) {
	assert.Equal(t, "outreach", rootCmd.Use)
	assert.NotEmpty(t, rootCmd.Short)
	assert.NotEmpty(t, rootCmd.Long)
}

func TestHarvestCommand_Flags(t *testing.T) {
	flag := harvestCmd.Flags().Lookup("resume")
	require.NotNil(t, flag, "harvest command should have --resume flag")
	assert.Equal(t, "false", flag.DefValue)

	flag = harvestCmd.Flags().Lookup("max-results")
	require.NotNil(t, flag, "harvest command should have --max-results flag")
}

func TestServeCommand_Flags(t *testing.T) {
	flag := serveCmd.Flags().Lookup("port")
	require.NotNil(t, flag, "serve command should have --port flag")
	assert.Equal(t, "0", flag.DefValue)
}

func TestDispatchCommand_HasSubcommands(t *testing.T) {
	cmds := dispatchCmd.Commands()
	names := make(map[string]bool)
	for _, c := range cmds {
		names[c.Name()] = true
	}

	for _, name := range []string{"start", "resume"} {
		assert.True(t, names[name], "dispatch should have subcommand %q", name)
	}
}

func TestDispatchStartCommand_Flags(t *testing.T) {
	for _, flagName := range []string{"name", "message", "template", "category", "location", "limit", "delay"} {
		flag := dispatchStartCmd.Flags().Lookup(flagName)
		assert.NotNil(t, flag, "dispatch start should have --%s flag", flagName)
	}
}
