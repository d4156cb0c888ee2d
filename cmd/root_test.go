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
	expected := []string{"grid", "panel", "run", "export", "migrate", "runs", "serve"}
	for _, name := range expected {
		assert.True(t, names[name], "expected subcommand %q not found", name)
	}
}

func TestRootCommand_Metadata(t *testing.T) {
	assert.Equal(t, "hexpanel", rootCmd.Use)
	assert.NotEmpty(t, rootCmd.Short)
	assert.NotEmpty(t, rootCmd.Long)
}

func TestPanelCommand_Flags(t *testing.T) {
	flag := panelCmd.Flags().Lookup("run")
	require.NotNil(t, flag, "panel command should have --run flag")
	assert.Equal(t, "", flag.DefValue)
}

func TestExportCommand_HasBPolys(t *testing.T) {
	var found bool
	for _, c := range exportCmd.Commands() {
		if c.Name() == "bpolys" {
			found = true
		}
	}
	require.True(t, found)

	out := exportBPolysCmd.Flags().Lookup("out")
	require.NotNil(t, out)
	assert.Equal(t, "o", out.Shorthand)
}

func TestServeCommand_Flags(t *testing.T) {
	flag := serveCmd.Flags().Lookup("port")
	require.NotNil(t, flag, "serve command should have --port flag")
	assert.Equal(t, "0", flag.DefValue)
}

func TestRunsCommand_HasSubcommands(t *testing.T) {
	names := make(map[string]bool)
	for _, c := range runsCmd.Commands() {
		names[c.Name()] = true
	}
	assert.True(t, names["list"])
	assert.True(t, names["show"])

	limit := runsListCmd.Flags().Lookup("limit")
	require.NotNil(t, limit)
	assert.Equal(t, "20", limit.DefValue)
}
